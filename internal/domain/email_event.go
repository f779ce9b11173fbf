package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Email event kinds.
const (
	EmailEventInvite             = "invite"
	EmailEventAssessmentStarted  = "assessment_started"
	EmailEventSubmissionReceived = "submission_received"
)

// EmailEvent is a best-effort audit row for every outbound candidate email.
// Write failures here never roll back the lifecycle transition that
// triggered the send.
type EmailEvent struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvitationID uuid.UUID      `gorm:"column:invitation_id;type:uuid;index;not null" json:"invitation_id"`
	Type         string         `gorm:"column:type" json:"type"`
	ToEmail      string         `gorm:"column:to_email" json:"to_email"`
	Status       string         `gorm:"column:status" json:"status"`
	Meta         datatypes.JSON `gorm:"column:meta" json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (EmailEvent) TableName() string {
	return "email_events"
}

func (e *EmailEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
