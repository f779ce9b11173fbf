package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assessment describes one take-home exercise built from a Seed.
// TimeToStart bounds how long a candidate has to begin after the invite is
// sent; TimeToComplete bounds the work window once started.
type Assessment struct {
	ID                    uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrgID                 uuid.UUID     `gorm:"column:org_id;type:uuid;index;not null" json:"org_id"`
	SeedID                uuid.UUID     `gorm:"column:seed_id;type:uuid;not null" json:"seed_id"`
	Title                 string        `gorm:"column:title;not null" json:"title"`
	Description           string        `gorm:"column:description" json:"description,omitempty"`
	Instructions          string        `gorm:"column:instructions" json:"instructions,omitempty"`
	CandidateEmailSubject string        `gorm:"column:candidate_email_subject" json:"candidate_email_subject,omitempty"`
	CandidateEmailBody    string        `gorm:"column:candidate_email_body" json:"candidate_email_body,omitempty"`
	TimeToStart           time.Duration `gorm:"column:time_to_start;not null" json:"time_to_start"`
	TimeToComplete        time.Duration `gorm:"column:time_to_complete;not null" json:"time_to_complete"`
	CreatedBy             *uuid.UUID    `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`

	Seed *Seed `gorm:"foreignKey:SeedID" json:"seed,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

func (a *Assessment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
