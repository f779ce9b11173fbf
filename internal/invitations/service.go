package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
	"gauntlet-backend/internal/emails"
	"gauntlet-backend/internal/pkg/token"
	"gauntlet-backend/internal/pkg/validation"
)

var (
	ErrAssessmentNotFound = errors.New("Assessment not found")
	ErrInvitationNotFound = errors.New("Invitation not found")
	ErrEmailSendFailed    = errors.New("Failed to send invitation email")
	ErrInvalidEmail       = errors.New("Invalid candidate email")
)

// Service manages the admin side of invitations: issuing, reading, revoking
// and deleting. The candidate-facing transitions live in the candidate
// package.
type Service struct {
	DB       *gorm.DB
	Notifier emails.Notifier
}

type Invitee struct {
	CandidateEmail string `json:"candidate_email"`
	CandidateName  string `json:"candidate_name"`
}

// CreatedInvitation pairs a stored invitation with the raw start-link token.
// The token is returned exactly once here; only its hash is persisted.
type CreatedInvitation struct {
	Invitation     domain.Invitation `json:"invitation"`
	StartLinkToken string            `json:"start_link_token"`
}

// BatchCreate issues one invitation per invitee, all sharing the same start
// deadline (now + assessment.time_to_start), and sends the invite email per
// row. A failed email send rolls the whole batch back.
func (s *Service) BatchCreate(ctx context.Context, assessmentID uuid.UUID, invitees []Invitee) ([]CreatedInvitation, error) {
	var assessment domain.Assessment
	if err := s.DB.WithContext(ctx).Where("id = ?", assessmentID).First(&assessment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}

	for _, invitee := range invitees {
		if !validation.IsValidEmail(invitee.CandidateEmail) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEmail, invitee.CandidateEmail)
		}
	}

	now := time.Now().UTC()
	startDeadline := now.Add(assessment.TimeToStart)

	var created []CreatedInvitation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, invitee := range invitees {
			rawToken := token.Generate()
			invitation := domain.Invitation{
				AssessmentID:       assessmentID,
				CandidateEmail:     invitee.CandidateEmail,
				CandidateName:      invitee.CandidateName,
				Status:             domain.InvitationSent,
				StartDeadline:      &startDeadline,
				StartLinkTokenHash: token.Hash(rawToken),
			}
			if err := tx.Create(&invitation).Error; err != nil {
				return err
			}
			if err := s.Notifier.SendInvite(ctx, tx, &invitation, &assessment, rawToken); err != nil {
				log.Error().Err(err).Str("candidate_email", invitee.CandidateEmail).
					Msg("invite email send failed; rolling back batch")
				return ErrEmailSendFailed
			}
			created = append(created, CreatedInvitation{Invitation: invitation, StartLinkToken: rawToken})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns one invitation with its assessment and candidate repo.
func (s *Service) Get(ctx context.Context, invitationID uuid.UUID) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := s.DB.WithContext(ctx).
		Preload("Assessment").
		Preload("CandidateRepo").
		Where("id = ?", invitationID).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

// Revoke marks the invitation revoked. Terminal invitations are left
// untouched, so the call is idempotent and a delivered submission cannot be
// clawed back.
func (s *Service) Revoke(ctx context.Context, invitationID uuid.UUID) (*domain.Invitation, error) {
	invitation, err := s.Get(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation.Terminal() {
		return invitation, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"status": domain.InvitationRevoked}
	if invitation.ExpiredAt == nil {
		updates["expired_at"] = now
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Invitation{}).Where("id = ?", invitationID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&domain.AccessToken{}).
			Where("invitation_id = ? AND revoked = ?", invitationID, false).
			Update("revoked", true).Error
	})
	if err != nil {
		return nil, err
	}

	invitation.Status = domain.InvitationRevoked
	if invitation.ExpiredAt == nil {
		invitation.ExpiredAt = &now
	}
	return invitation, nil
}

// MarkSubmitted force-moves an invitation to submitted, for the case where a
// candidate delivered out of band. Idempotent on already-submitted rows.
func (s *Service) MarkSubmitted(ctx context.Context, invitationID uuid.UUID) (*domain.Invitation, error) {
	invitation, err := s.Get(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation.Status == domain.InvitationSubmitted {
		return invitation, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"status": domain.InvitationSubmitted}
	if invitation.SubmittedAt == nil {
		updates["submitted_at"] = now
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Invitation{}).Where("id = ?", invitationID).Updates(updates).Error; err != nil {
		return nil, err
	}

	invitation.Status = domain.InvitationSubmitted
	if invitation.SubmittedAt == nil {
		invitation.SubmittedAt = &now
	}
	return invitation, nil
}

// Delete removes an invitation and everything hanging off it.
func (s *Service) Delete(ctx context.Context, invitationID uuid.UUID) error {
	invitation, err := s.Get(ctx, invitationID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invitation_id = ?", invitationID).Delete(&domain.AccessToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invitation_id = ?", invitationID).Delete(&domain.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invitation_id = ?", invitationID).Delete(&domain.EmailEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invitation_id = ?", invitationID).Delete(&domain.CandidateRepo{}).Error; err != nil {
			return err
		}
		return tx.Delete(invitation).Error
	})
}
