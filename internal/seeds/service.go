package seeds

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
	"gauntlet-backend/internal/installations"
)

var (
	ErrOrgNotFound  = errors.New("Organization not found")
	ErrSeedNotFound = errors.New("Seed not found")
)

// Service provisions and reads seed template repositories.
type Service struct {
	DB            *gorm.DB
	Installations *installations.Service
}

type CreateSeedInput struct {
	OrgID         uuid.UUID
	SourceRepoURL string
	DefaultBranch string
}

// Create runs the seed provisioning protocol against the org's GitHub
// installation and persists the resulting template repository.
func (s *Service) Create(ctx context.Context, in CreateSeedInput) (*domain.Seed, error) {
	var org domain.Org
	if err := s.DB.WithContext(ctx).Where("id = ?", in.OrgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}

	client, err := s.Installations.ClientForOrg(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}

	repo, err := client.EnsureSeedRepository(ctx, in.SourceRepoURL, in.DefaultBranch)
	if err != nil {
		return nil, err
	}

	seed := domain.Seed{
		OrgID:            in.OrgID,
		SourceRepoURL:    repo.CanonicalSource,
		SeedRepoFullName: repo.Repo.FullName,
		DefaultBranch:    repo.Repo.DefaultBranch,
		IsTemplate:       true,
		LatestMainSHA:    repo.HeadSHA,
	}
	if err := s.DB.WithContext(ctx).Create(&seed).Error; err != nil {
		return nil, err
	}
	return &seed, nil
}

// Get returns one seed by id.
func (s *Service) Get(ctx context.Context, seedID uuid.UUID) (*domain.Seed, error) {
	var seed domain.Seed
	if err := s.DB.WithContext(ctx).Where("id = ?", seedID).First(&seed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeedNotFound
		}
		return nil, err
	}
	return &seed, nil
}
