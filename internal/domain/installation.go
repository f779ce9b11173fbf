package domain

import (
	"time"

	"github.com/google/uuid"
)

// GitHubInstallation binds a GitHub App installation to exactly one org.
// target_type must be "Organization"; user-account installs are rejected at
// the connect step. Without a row here an org cannot provision seeds or
// candidate repos.
type GitHubInstallation struct {
	OrgID              uuid.UUID `gorm:"column:org_id;type:uuid;primaryKey" json:"org_id"`
	InstallationID     int64     `gorm:"column:installation_id;uniqueIndex;not null" json:"installation_id"`
	TargetType         string    `gorm:"column:target_type;not null" json:"target_type"`
	AccountLogin       string    `gorm:"column:account_login;not null" json:"account_login"`
	AccountID          int64     `gorm:"column:account_id;not null" json:"account_id"`
	AccountAvatarURL   string    `gorm:"column:account_avatar_url" json:"account_avatar_url,omitempty"`
	AccountHTMLURL     string    `gorm:"column:account_html_url" json:"account_html_url,omitempty"`
	InstallationHTMLURL string   `gorm:"column:installation_html_url" json:"installation_html_url,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (GitHubInstallation) TableName() string {
	return "github_installations"
}

// GitHubInstallationState is the short-lived CSRF state issued when an admin
// begins the GitHub App install flow. Consumed (deleted) on completion.
type GitHubInstallationState struct {
	Token      string    `gorm:"column:token;primaryKey" json:"token"`
	OrgID      uuid.UUID `gorm:"column:org_id;type:uuid;index;not null" json:"org_id"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	ReturnPath string    `gorm:"column:return_path" json:"return_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (GitHubInstallationState) TableName() string {
	return "github_installation_states"
}
