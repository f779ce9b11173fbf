package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission records the candidate's final state at submit time.
type Submission struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvitationID uuid.UUID `gorm:"column:invitation_id;type:uuid;index;not null" json:"invitation_id"`
	FinalSHA     string    `gorm:"column:final_sha;not null" json:"final_sha"`
	RepoHTMLURL  string    `gorm:"column:repo_html_url" json:"repo_html_url,omitempty"`
	VideoURL     string    `gorm:"column:video_url" json:"video_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
