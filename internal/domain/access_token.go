package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Access token scopes.
const (
	ScopeClone     = "clone"
	ScopePush      = "push"
	ScopeClonePush = "clone+push"
)

// AccessToken scopes clone/push access to one candidate repo for a bounded
// time. The raw secret is returned to the caller exactly once; only the hash
// is stored. Minting a new token revokes all prior ones for the invitation,
// so at most one non-revoked token is current at any time.
type AccessToken struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvitationID    uuid.UUID  `gorm:"column:invitation_id;type:uuid;index;not null" json:"invitation_id"`
	RepoFullName    string     `gorm:"column:repo_full_name;not null" json:"repo_full_name"`
	OpaqueTokenHash string     `gorm:"column:opaque_token_hash;uniqueIndex;not null" json:"-"`
	Scope           string     `gorm:"column:scope;not null;default:'clone+push'" json:"scope"`
	ExpiresAt       time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	Revoked         bool       `gorm:"column:revoked;not null;default:false" json:"revoked"`
	LastUsedAt      *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (AccessToken) TableName() string {
	return "access_tokens"
}

func (t *AccessToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Scope == "" {
		t.Scope = ScopeClonePush
	}
	return nil
}
