package github

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"gauntlet-backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Settings is the validated, ready-to-use form of config.GitHubConfig.
type Settings struct {
	AppID               string
	PrivateKey          *rsa.PrivateKey
	AppSlug             string
	APIBaseURL          string
	RequestTimeout      time.Duration
	MirrorTimeout       time.Duration
	SeedRepoPrefix      string
	CandidateRepoPrefix string
}

// NewSettings validates cfg and parses the signing key.
func NewSettings(cfg config.GitHubConfig) (Settings, error) {
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		AppID:               cfg.AppID,
		PrivateKey:          key,
		AppSlug:             cfg.AppSlug,
		APIBaseURL:          strings.TrimRight(cfg.APIBaseURL, "/"),
		RequestTimeout:      cfg.RequestTimeout,
		MirrorTimeout:       cfg.MirrorTimeout,
		SeedRepoPrefix:      cfg.SeedRepoPrefix,
		CandidateRepoPrefix: cfg.CandidateRepoPrefix,
	}, nil
}

// parsePrivateKey accepts the key as raw PEM, PEM with literal "\n" escapes
// (common when the key is stored in a single-line env var), or base64-wrapped
// PEM.
func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	key := strings.TrimSpace(raw)
	if strings.Contains(key, `\n`) {
		key = strings.ReplaceAll(key, `\n`, "\n")
	}
	if !strings.Contains(key, "-----BEGIN") {
		if decoded, err := base64.StdEncoding.DecodeString(key); err == nil && strings.Contains(string(decoded), "-----BEGIN") {
			key = string(decoded)
		}
	}
	parsed, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("github: invalid app private key: %w", err)
	}
	return parsed, nil
}

// RequireAppSlug returns the configured app slug or a configuration error.
func (s Settings) RequireAppSlug() (string, error) {
	if s.AppSlug == "" {
		return "", errors.New("GitHub App slug is not configured; set GITHUB_APP_SLUG")
	}
	return s.AppSlug, nil
}

var slugRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func slugify(value string) string {
	normalized := strings.ToLower(strings.Trim(slugRe.ReplaceAllString(value, "-"), "-"))
	if normalized == "" {
		return "repo"
	}
	return normalized
}

// ParseRepoRef returns (owner, name) for a GitHub repo reference given as
// either an https URL or an "owner/name" path.
func ParseRepoRef(source string) (string, string, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return "", "", errors.New("repository reference cannot be empty")
	}

	var segments []string
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", "", fmt.Errorf("invalid repository URL: %w", err)
		}
		segments = splitPath(parsed.Path)
	} else {
		segments = splitPath(trimmed)
	}

	if len(segments) < 2 {
		return "", "", errors.New("repository reference must include owner and name")
	}
	owner, name := segments[0], segments[1]
	name = strings.TrimSuffix(name, ".git")
	return owner, name, nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
