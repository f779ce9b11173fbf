package reviews

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/installations"
	"gauntlet-backend/internal/llm"
)

var (
	ErrRepoNotFound = errors.New("Candidate repository not found")
	ErrOrgUnknown   = errors.New("Candidate repository is not linked to an organization")
)

// Service retrieves diffs for candidate repos and, when an analyzer is
// configured, produces an LLM summary of the submitted work.
type Service struct {
	DB            *gorm.DB
	Installations *installations.Service
	Analyzer      llm.Analyzer
}

// clientFor resolves a candidate repo to its org-scoped GitHub client by
// walking repo → invitation → assessment → seed.
func (s *Service) clientFor(ctx context.Context, repoID uuid.UUID) (*domain.CandidateRepo, *github.Client, error) {
	var repo domain.CandidateRepo
	err := s.DB.WithContext(ctx).First(&repo, "id = ?", repoID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRepoNotFound
		}
		return nil, nil, err
	}

	var invitation domain.Invitation
	err = s.DB.WithContext(ctx).
		Preload("Assessment").
		Preload("Assessment.Seed").
		First(&invitation, "id = ?", repo.InvitationID).Error
	if err != nil {
		return nil, nil, err
	}
	if invitation.Assessment == nil || invitation.Assessment.Seed == nil {
		return nil, nil, ErrOrgUnknown
	}

	client, err := s.Installations.ClientForOrg(ctx, invitation.Assessment.Seed.OrgID)
	if err != nil {
		return nil, nil, err
	}
	return &repo, client, nil
}

// Diff compares the repo's first commit against headBranch. An empty branch
// falls back to main.
func (s *Service) Diff(ctx context.Context, repoID uuid.UUID, headBranch string) (*github.Diff, error) {
	repo, client, err := s.clientFor(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if headBranch == "" {
		headBranch = "main"
	}
	return client.GetDiff(ctx, repo.RepoFullName, headBranch)
}

// AnalyzeResult pairs the generated analysis with the diff totals it was
// produced from.
type AnalyzeResult struct {
	Analysis     llm.Analysis `json:"analysis"`
	FilesChanged int          `json:"files_changed"`
	TotalCommits int          `json:"total_commits"`
}

// Analyze fetches the diff and runs the configured LLM over it.
func (s *Service) Analyze(ctx context.Context, repoID uuid.UUID, headBranch string) (*AnalyzeResult, error) {
	if s.Analyzer == nil {
		return nil, llm.ErrNotConfigured
	}
	diff, err := s.Diff(ctx, repoID, headBranch)
	if err != nil {
		return nil, err
	}
	analysis, err := s.Analyzer.AnalyzeDiff(ctx, diff)
	if err != nil {
		return nil, err
	}
	return &AnalyzeResult{
		Analysis:     analysis,
		FilesChanged: len(diff.Files),
		TotalCommits: diff.TotalCommits,
	}, nil
}
