package assessments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
)

var (
	ErrSeedNotFound       = errors.New("Seed not found")
	ErrAssessmentNotFound = errors.New("Assessment not found")
	ErrInvalidWindow      = errors.New("time_to_start and time_to_complete must be positive")
)

// Service manages assessments built on seed repositories.
type Service struct {
	DB *gorm.DB
}

type CreateAssessmentInput struct {
	OrgID                 uuid.UUID
	SeedID                uuid.UUID
	Title                 string
	Description           string
	Instructions          string
	CandidateEmailSubject string
	CandidateEmailBody    string
	TimeToStart           time.Duration
	TimeToComplete        time.Duration
	CreatedBy             *uuid.UUID
}

func (s *Service) Create(ctx context.Context, in CreateAssessmentInput) (*domain.Assessment, error) {
	if in.TimeToStart <= 0 || in.TimeToComplete <= 0 {
		return nil, ErrInvalidWindow
	}

	var seed domain.Seed
	if err := s.DB.WithContext(ctx).Where("id = ? AND org_id = ?", in.SeedID, in.OrgID).First(&seed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeedNotFound
		}
		return nil, err
	}

	assessment := domain.Assessment{
		OrgID:                 in.OrgID,
		SeedID:                in.SeedID,
		Title:                 in.Title,
		Description:           in.Description,
		Instructions:          in.Instructions,
		CandidateEmailSubject: in.CandidateEmailSubject,
		CandidateEmailBody:    in.CandidateEmailBody,
		TimeToStart:           in.TimeToStart,
		TimeToComplete:        in.TimeToComplete,
		CreatedBy:             in.CreatedBy,
	}
	if err := s.DB.WithContext(ctx).Create(&assessment).Error; err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (s *Service) Get(ctx context.Context, assessmentID uuid.UUID) (*domain.Assessment, error) {
	var assessment domain.Assessment
	err := s.DB.WithContext(ctx).Preload("Seed").Where("id = ?", assessmentID).First(&assessment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return &assessment, nil
}
