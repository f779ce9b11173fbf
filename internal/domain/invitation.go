package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation statuses. sent → started → submitted is the success path;
// expired and revoked are terminal side exits.
const (
	InvitationSent      = "sent"
	InvitationAccepted  = "accepted"
	InvitationStarted   = "started"
	InvitationSubmitted = "submitted"
	InvitationExpired   = "expired"
	InvitationRevoked   = "revoked"
)

// Invitation is one candidate's attempt at one assessment. The start link
// token is stored only as a one-way hash; CompleteDeadline is set when the
// candidate starts and equals started_at + assessment.time_to_complete.
type Invitation struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AssessmentID       uuid.UUID  `gorm:"column:assessment_id;type:uuid;index;not null" json:"assessment_id"`
	CandidateEmail     string     `gorm:"column:candidate_email;not null" json:"candidate_email"`
	CandidateName      string     `gorm:"column:candidate_name" json:"candidate_name,omitempty"`
	Status             string     `gorm:"column:status;not null;default:'sent'" json:"status"`
	StartDeadline      *time.Time `gorm:"column:start_deadline" json:"start_deadline,omitempty"`
	CompleteDeadline   *time.Time `gorm:"column:complete_deadline" json:"complete_deadline,omitempty"`
	StartLinkTokenHash string     `gorm:"column:start_link_token_hash;uniqueIndex;not null" json:"-"`
	SentAt             time.Time  `gorm:"column:sent_at;not null" json:"sent_at"`
	StartedAt          *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	SubmittedAt        *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ExpiredAt          *time.Time `gorm:"column:expired_at" json:"expired_at,omitempty"`

	Assessment    *Assessment    `gorm:"foreignKey:AssessmentID" json:"assessment,omitempty"`
	CandidateRepo *CandidateRepo `gorm:"foreignKey:InvitationID" json:"candidate_repo,omitempty"`
	AccessTokens  []AccessToken  `gorm:"foreignKey:InvitationID" json:"-"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.SentAt.IsZero() {
		i.SentAt = time.Now().UTC()
	}
	return nil
}

// Terminal reports whether no further lifecycle transition is allowed.
func (i *Invitation) Terminal() bool {
	switch i.Status {
	case InvitationSubmitted, InvitationExpired, InvitationRevoked:
		return true
	}
	return false
}
