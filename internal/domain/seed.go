package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Seed is an org-owned template repository mirrored from an external source.
// LatestMainSHA is the pinned HEAD new candidate repos are generated from; it
// is re-resolved at candidate-start time so invitations pin a fresh commit.
type Seed struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrgID            uuid.UUID `gorm:"column:org_id;type:uuid;index;not null" json:"org_id"`
	SourceRepoURL    string    `gorm:"column:source_repo_url;not null" json:"source_repo_url"`
	SeedRepoFullName string    `gorm:"column:seed_repo_full_name;not null" json:"seed_repo_full_name"`
	DefaultBranch    string    `gorm:"column:default_branch;not null;default:'main'" json:"default_branch"`
	IsTemplate       bool      `gorm:"column:is_template;not null;default:true" json:"is_template"`
	LatestMainSHA    string    `gorm:"column:latest_main_sha" json:"latest_main_sha"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Seed) TableName() string {
	return "seeds"
}

func (s *Seed) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
