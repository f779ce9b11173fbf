package installations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gauntlet-backend/internal/domain"
	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/pkg/token"
)

// How long an install-flow state token stays valid.
const stateTTL = 30 * time.Minute

var (
	ErrNotConnected     = errors.New("Connect the GitHub App to this organization before performing GitHub actions")
	ErrOrgNotFound      = errors.New("Organization not found")
	ErrStateNotFound    = errors.New("Installation state not found")
	ErrStateExpired     = errors.New("Installation link expired")
	ErrNotOrganization  = errors.New("Install the GitHub App on an organization, not a user account")
	ErrAppNotConfigured = errors.New("GitHub App credentials are not configured")
)

// Service manages GitHub App installation bindings and produces
// installation-scoped API clients for the rest of the backend.
type Service struct {
	DB  *gorm.DB
	App *github.App
}

// Get returns the installation bound to orgID, or nil if none.
func (s *Service) Get(ctx context.Context, orgID uuid.UUID) (*domain.GitHubInstallation, error) {
	var installation domain.GitHubInstallation
	err := s.DB.WithContext(ctx).Where("org_id = ?", orgID).First(&installation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &installation, nil
}

// ClientForOrg returns an installation-scoped GitHub client for orgID.
// Returns ErrNotConnected when the org has no installation.
func (s *Service) ClientForOrg(ctx context.Context, orgID uuid.UUID) (*github.Client, error) {
	if s.App == nil {
		return nil, ErrAppNotConfigured
	}
	installation, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if installation == nil {
		return nil, ErrNotConnected
	}
	return s.App.ForInstallation(installation.InstallationID, installation.AccountLogin), nil
}

// StartInstall begins the install flow: replaces any pending state for the
// org with a fresh CSRF token and returns the GitHub install URL carrying it.
func (s *Service) StartInstall(ctx context.Context, orgID uuid.UUID, returnPath, redirectURL string) (string, error) {
	if s.App == nil {
		return "", ErrAppNotConfigured
	}
	var org domain.Org
	if err := s.DB.WithContext(ctx).Where("id = ?", orgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrOrgNotFound
		}
		return "", err
	}

	appSlug, err := s.App.Settings().RequireAppSlug()
	if err != nil {
		return "", err
	}

	stateToken := token.Generate()
	state := domain.GitHubInstallationState{
		Token:      stateToken,
		OrgID:      orgID,
		ExpiresAt:  time.Now().UTC().Add(stateTTL),
		ReturnPath: normalizeReturnPath(returnPath),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ?", orgID).Delete(&domain.GitHubInstallationState{}).Error; err != nil {
			return err
		}
		return tx.Create(&state).Error
	})
	if err != nil {
		return "", err
	}

	query := url.Values{"state": {stateToken}}
	if normalized := normalizeRedirectURL(redirectURL); normalized != "" {
		query.Set("redirect_url", normalized)
	}
	return fmt.Sprintf("https://github.com/apps/%s/installations/new?%s", appSlug, query.Encode()), nil
}

// CompleteInstall finishes the flow: validates the state token, fetches the
// installation from GitHub, rejects user-account targets and upserts the 1:1
// org binding. The state row is consumed either way once resolved.
func (s *Service) CompleteInstall(ctx context.Context, stateToken string, installationID int64) (*domain.GitHubInstallation, string, error) {
	if s.App == nil {
		return nil, "", ErrAppNotConfigured
	}
	stateToken = strings.TrimSpace(stateToken)
	if stateToken == "" {
		return nil, "", ErrStateNotFound
	}

	var state domain.GitHubInstallationState
	if err := s.DB.WithContext(ctx).Where("token = ?", stateToken).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrStateNotFound
		}
		return nil, "", err
	}
	if time.Now().UTC().After(state.ExpiresAt) {
		s.DB.WithContext(ctx).Delete(&state)
		return nil, "", ErrStateExpired
	}

	payload, err := s.App.FetchInstallation(ctx, installationID)
	if err != nil {
		return nil, "", err
	}

	targetType := payload.TargetType
	if targetType == "" {
		targetType = payload.Account.Type
	}
	if targetType != "Organization" {
		return nil, "", ErrNotOrganization
	}
	if payload.Account.Login == "" || payload.Account.ID == 0 {
		return nil, "", fmt.Errorf("github installation response was malformed")
	}

	installation := domain.GitHubInstallation{
		OrgID:               state.OrgID,
		InstallationID:      installationID,
		TargetType:          targetType,
		AccountLogin:        payload.Account.Login,
		AccountID:           payload.Account.ID,
		AccountAvatarURL:    payload.Account.AvatarURL,
		AccountHTMLURL:      payload.Account.HTMLURL,
		InstallationHTMLURL: payload.HTMLURL,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "org_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"installation_id", "target_type", "account_login", "account_id",
				"account_avatar_url", "account_html_url", "installation_html_url", "updated_at",
			}),
		}).Create(&installation).Error; err != nil {
			return err
		}
		return tx.Delete(&state).Error
	})
	if err != nil {
		return nil, "", err
	}

	return &installation, state.ReturnPath, nil
}

// normalizeReturnPath limits post-install redirects to in-app paths while
// preserving query strings.
func normalizeReturnPath(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return ""
		}
		path := parsed.Path
		if path == "" {
			path = "/"
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + strings.TrimLeft(path, "/")
		}
		if parsed.RawQuery != "" {
			path += "?" + parsed.RawQuery
		}
		if parsed.Fragment != "" {
			path += "#" + parsed.Fragment
		}
		trimmed = path
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + strings.TrimLeft(trimmed, "/")
	}
	if len(trimmed) > 512 {
		trimmed = trimmed[:512]
	}
	return trimmed
}

// normalizeRedirectURL validates the GitHub installation redirect URL.
func normalizeRedirectURL(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	normalized := parsed.Scheme + "://" + parsed.Host + parsed.Path
	if parsed.RawQuery != "" {
		normalized += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		normalized += "#" + parsed.Fragment
	}
	return normalized
}
