package candidate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
	"gauntlet-backend/internal/emails"
	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/installations"
	"gauntlet-backend/internal/pkg/token"
)

var (
	ErrInvitationNotFound = errors.New("Invitation not found")
	ErrSeedMissing        = errors.New("Assessment seed configuration missing")
	ErrSeedSHAMissing     = errors.New("Seed repository does not have a pinned main SHA")
	ErrStartExpired       = errors.New("Invitation start window has expired")
	ErrAlreadyStarted     = errors.New("Assessment already started")
	ErrNotStarted         = errors.New("Assessment is not in a started state")
	ErrRepoNotProvisioned = errors.New("Candidate repository has not been provisioned")
)

// Service is the invitation lifecycle state machine: sent → started →
// submitted, with expired and revoked side exits. Each transition commits
// atomically behind a status-guarded update, so concurrent starts or submits
// on the same invitation cannot both win.
type Service struct {
	DB            *gorm.DB
	Installations *installations.Service
	Notifier      emails.Notifier
}

// loadByToken resolves the opaque start-link token to its invitation via the
// stored one-way hash.
func (s *Service) loadByToken(ctx context.Context, rawToken string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := s.DB.WithContext(ctx).
		Preload("Assessment").
		Preload("Assessment.Seed").
		Preload("CandidateRepo").
		Preload("AccessTokens").
		Where("start_link_token_hash = ?", token.Hash(rawToken)).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

// Details is the read-only snapshot behind GET /api/start/:token.
type Details struct {
	Invitation    *domain.Invitation    `json:"invitation"`
	Assessment    *domain.Assessment    `json:"assessment"`
	Seed          *domain.Seed          `json:"seed"`
	CandidateRepo *domain.CandidateRepo `json:"candidate_repo"`
}

func (s *Service) GetDetails(ctx context.Context, rawToken string) (*Details, error) {
	invitation, err := s.loadByToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if invitation.Assessment == nil || invitation.Assessment.Seed == nil {
		return nil, ErrSeedMissing
	}
	return &Details{
		Invitation:    invitation,
		Assessment:    invitation.Assessment,
		Seed:          invitation.Assessment.Seed,
		CandidateRepo: invitation.CandidateRepo,
	}, nil
}

// StartResult carries the one-time access secret back to the candidate.
type StartResult struct {
	InvitationID         string                `json:"invitation_id"`
	Status               string                `json:"status"`
	StartedAt            *time.Time            `json:"started_at"`
	CompleteDeadline     *time.Time            `json:"complete_deadline"`
	CandidateRepo        *domain.CandidateRepo `json:"candidate_repo"`
	AccessToken          string                `json:"access_token"`
	AccessTokenExpiresAt time.Time             `json:"access_token_expires_at"`
}

// Start performs the sent → started transition: deadline and state guards,
// repo provisioning (or reuse after a partial earlier attempt), token mint,
// then the atomic status commit. GitHub provisioning runs before the status
// write so a provisioning failure leaves the invitation in sent.
func (s *Service) Start(ctx context.Context, rawToken string) (*StartResult, error) {
	invitation, err := s.loadByToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if invitation.StartDeadline != nil && now.After(*invitation.StartDeadline) {
		s.expire(ctx, invitation, now)
		return nil, ErrStartExpired
	}
	if invitation.Status != domain.InvitationSent {
		return nil, ErrAlreadyStarted
	}

	assessment := invitation.Assessment
	if assessment == nil || assessment.Seed == nil {
		return nil, ErrSeedMissing
	}
	seed := assessment.Seed
	if seed.LatestMainSHA == "" {
		return nil, ErrSeedSHAMissing
	}

	client, err := s.Installations.ClientForOrg(ctx, seed.OrgID)
	if err != nil {
		return nil, err
	}

	defaultBranch := seed.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	// Re-resolve the seed head so this invitation pins a fresh commit. The
	// row update rides the status transaction below, so a provisioning or
	// token-mint failure rolls it back along with everything else.
	latestSeedSHA, err := client.RefreshBranchSHA(ctx, seed.SeedRepoFullName, defaultBranch)
	if err != nil {
		return nil, err
	}

	// Reuse an existing repo from a partially-failed earlier start; provision
	// otherwise. Provisioning happens outside the transaction because it is a
	// remote mutation that cannot be rolled back anyway.
	candidateRepo := invitation.CandidateRepo
	newRepo := false
	if candidateRepo == nil {
		slug := invitation.ID.String()[:8]
		repo, err := client.CreateCandidateRepository(ctx, seed.SeedRepoFullName, defaultBranch, slug)
		if err != nil {
			return nil, err
		}
		candidateRepo = &domain.CandidateRepo{
			InvitationID:  invitation.ID,
			SeedSHAPinned: latestSeedSHA,
			RepoFullName:  repo.FullName,
			RepoHTMLURL:   repo.HTMLURL,
			GitHubRepoID:  repo.ID,
			Active:        true,
		}
		newRepo = true
	}

	secret, expiresAt, err := client.CreateRepositoryAccessToken(ctx, candidateRepo.GitHubRepoID)
	if err != nil {
		return nil, err
	}

	completeDeadline := now.Add(assessment.TimeToComplete)
	accessToken := domain.AccessToken{
		InvitationID:    invitation.ID,
		RepoFullName:    candidateRepo.RepoFullName,
		OpaqueTokenHash: token.Hash(secret),
		Scope:           domain.ScopeClonePush,
		ExpiresAt:       expiresAt,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, domain.InvitationSent).
			Updates(map[string]interface{}{
				"status":            domain.InvitationStarted,
				"started_at":        now,
				"complete_deadline": completeDeadline,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyStarted
		}
		if latestSeedSHA != seed.LatestMainSHA {
			if err := tx.Model(&domain.Seed{}).Where("id = ?", seed.ID).
				Update("latest_main_sha", latestSeedSHA).Error; err != nil {
				return err
			}
		}
		if newRepo {
			if err := tx.Create(candidateRepo).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&domain.AccessToken{}).
			Where("invitation_id = ? AND revoked = ?", invitation.ID, false).
			Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Create(&accessToken).Error
	})
	if err != nil {
		return nil, err
	}

	invitation.Status = domain.InvitationStarted
	invitation.StartedAt = &now
	invitation.CompleteDeadline = &completeDeadline

	if err := s.Notifier.SendAssessmentStarted(ctx, s.DB, invitation, assessment, candidateRepo.RepoHTMLURL); err != nil {
		log.Warn().Err(err).Str("invitation_id", invitation.ID.String()).
			Msg("assessment started email failed")
	}

	return &StartResult{
		InvitationID:         invitation.ID.String(),
		Status:               invitation.Status,
		StartedAt:            invitation.StartedAt,
		CompleteDeadline:     invitation.CompleteDeadline,
		CandidateRepo:        candidateRepo,
		AccessToken:          secret,
		AccessTokenExpiresAt: expiresAt,
	}, nil
}

// expire commits the sent → expired side exit after a deadline miss.
func (s *Service) expire(ctx context.Context, invitation *domain.Invitation, now time.Time) {
	err := s.DB.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, domain.InvitationSent).
		Updates(map[string]interface{}{
			"status":     domain.InvitationExpired,
			"expired_at": now,
		}).Error
	if err != nil {
		log.Warn().Err(err).Str("invitation_id", invitation.ID.String()).
			Msg("failed to persist expired status")
	}
}

type SubmitInput struct {
	FinalSHA    string `json:"final_sha"`
	RepoHTMLURL string `json:"repo_html_url"`
	VideoURL    string `json:"video_url"`
}

type SubmitResult struct {
	InvitationID string     `json:"invitation_id"`
	SubmissionID string     `json:"submission_id"`
	FinalSHA     string     `json:"final_sha"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	Status       string     `json:"status"`
	VideoURL     string     `json:"video_url,omitempty"`
}

// Submit performs the started → submitted transition: records the
// submission, revokes every live access token and deactivates the repo in
// one transaction, then archives on GitHub best-effort.
func (s *Service) Submit(ctx context.Context, rawToken string, in SubmitInput) (*SubmitResult, error) {
	invitation, err := s.loadByToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if invitation.Assessment == nil || invitation.Assessment.Seed == nil {
		return nil, ErrSeedMissing
	}
	if invitation.Status != domain.InvitationStarted {
		return nil, ErrNotStarted
	}
	candidateRepo := invitation.CandidateRepo
	if candidateRepo == nil {
		return nil, ErrRepoNotProvisioned
	}

	now := time.Now().UTC()
	finalSHA := in.FinalSHA
	if finalSHA == "" {
		finalSHA = candidateRepo.SeedSHAPinned
	}
	repoHTMLURL := in.RepoHTMLURL
	if repoHTMLURL == "" {
		repoHTMLURL = candidateRepo.RepoHTMLURL
	}
	submission := domain.Submission{
		InvitationID: invitation.ID,
		FinalSHA:     finalSHA,
		RepoHTMLURL:  repoHTMLURL,
		VideoURL:     in.VideoURL,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, domain.InvitationStarted).
			Updates(map[string]interface{}{
				"status":       domain.InvitationSubmitted,
				"submitted_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotStarted
		}
		if err := tx.Create(&submission).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.AccessToken{}).
			Where("invitation_id = ? AND revoked = ?", invitation.ID, false).
			Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Model(&domain.CandidateRepo{}).
			Where("id = ?", candidateRepo.ID).
			Update("active", false).Error
	})
	if err != nil {
		return nil, err
	}

	invitation.Status = domain.InvitationSubmitted
	invitation.SubmittedAt = &now

	s.archiveRepo(ctx, invitation, candidateRepo)

	if err := s.Notifier.SendSubmissionReceived(ctx, s.DB, invitation, invitation.Assessment); err != nil {
		log.Warn().Err(err).Str("invitation_id", invitation.ID.String()).
			Msg("submission received email failed")
	}

	return &SubmitResult{
		InvitationID: invitation.ID.String(),
		SubmissionID: submission.ID.String(),
		FinalSHA:     submission.FinalSHA,
		SubmittedAt:  invitation.SubmittedAt,
		Status:       invitation.Status,
		VideoURL:     submission.VideoURL,
	}, nil
}

// archiveRepo archives the candidate repo on GitHub. Best-effort: the repo
// is already inactive locally, so upstream failure only costs tidiness.
func (s *Service) archiveRepo(ctx context.Context, invitation *domain.Invitation, repo *domain.CandidateRepo) {
	client, err := s.Installations.ClientForOrg(ctx, invitation.Assessment.Seed.OrgID)
	if err != nil {
		log.Warn().Err(err).Str("repo", repo.RepoFullName).Msg("skipping archive; no github client")
		return
	}
	if err := client.ArchiveRepository(ctx, repo.RepoFullName); err != nil {
		var apiErr *github.APIError
		if errors.As(err, &apiErr) {
			log.Warn().Err(err).Str("repo", repo.RepoFullName).Msg("archive failed on github")
		} else {
			log.Warn().Err(err).Str("repo", repo.RepoFullName).Msg("archive failed")
		}
		return
	}
	if err := s.DB.WithContext(ctx).Model(&domain.CandidateRepo{}).
		Where("id = ?", repo.ID).Update("archived", true).Error; err != nil {
		log.Warn().Err(err).Str("repo", repo.RepoFullName).Msg("failed to persist archived flag")
	}
}
