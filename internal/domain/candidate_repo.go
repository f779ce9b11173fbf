package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CandidateRepo is the private repository generated from a Seed for one
// invitation. At most one non-revoked repo exists per invitation; it is
// created lazily on first start and never re-created. Active goes false at
// submit time even when the GitHub archive call fails.
type CandidateRepo struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvitationID  uuid.UUID `gorm:"column:invitation_id;type:uuid;index;not null" json:"invitation_id"`
	SeedSHAPinned string    `gorm:"column:seed_sha_pinned;not null" json:"seed_sha_pinned"`
	RepoFullName  string    `gorm:"column:repo_full_name;uniqueIndex;not null" json:"repo_full_name"`
	RepoHTMLURL   string    `gorm:"column:repo_html_url" json:"repo_html_url,omitempty"`
	GitHubRepoID  int64     `gorm:"column:github_repo_id" json:"github_repo_id"`
	Active        bool      `gorm:"column:active;not null;default:true" json:"active"`
	Archived      bool      `gorm:"column:archived;not null;default:false" json:"archived"`
	CreatedAt     time.Time `json:"created_at"`
}

func (CandidateRepo) TableName() string {
	return "candidate_repos"
}

func (r *CandidateRepo) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
