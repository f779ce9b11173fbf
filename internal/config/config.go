package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env           string
	Port          string
	DatabaseURL   string
	RedisURL      string
	SessionSecret string

	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool

	// CandidateAppURL is the base URL embedded in candidate start links.
	CandidateAppURL string

	BrevoAPIKey string
	MailFrom    string

	OpenAIAPIKey string
	OpenAIModel  string

	HealthAdminKey string

	GitHub GitHubConfig
}

// GitHubConfig is everything the GitHub App integration needs. AppID and
// PrivateKey are required before any seed or candidate repo can be
// provisioned; missing values fail at first use, not at startup, so the rest
// of the API stays available.
type GitHubConfig struct {
	AppID               string
	PrivateKey          string
	AppSlug             string
	APIBaseURL          string
	RequestTimeout      time.Duration
	MirrorTimeout       time.Duration
	SeedRepoPrefix      string
	CandidateRepoPrefix string
}

// Validate checks the fields required for API calls.
func (g GitHubConfig) Validate() error {
	if g.AppID == "" || g.PrivateKey == "" {
		return errors.New("GitHub App credentials are not configured; set GITHUB_APP_ID and GITHUB_APP_PRIVATE_KEY")
	}
	return nil
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	return &Config{
		Env:                 env,
		Port:                port,
		DatabaseURL:         viper.GetString("DATABASE_URL"),
		RedisURL:            viper.GetString("REDIS_URL"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		CandidateAppURL:     strings.TrimRight(viper.GetString("CANDIDATE_APP_URL"), "/"),
		BrevoAPIKey:         viper.GetString("BREVO_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		OpenAIAPIKey:        viper.GetString("OPENAI_API_KEY"),
		OpenAIModel:         viper.GetString("OPENAI_MODEL"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		GitHub: GitHubConfig{
			AppID:               viper.GetString("GITHUB_APP_ID"),
			PrivateKey:          viper.GetString("GITHUB_APP_PRIVATE_KEY"),
			AppSlug:             viper.GetString("GITHUB_APP_SLUG"),
			APIBaseURL:          stringOr(viper.GetString("GITHUB_API_BASE_URL"), "https://api.github.com"),
			RequestTimeout:      durationOr(viper.GetString("GITHUB_HTTP_TIMEOUT"), 15*time.Second),
			MirrorTimeout:       durationOr(viper.GetString("GITHUB_MIRROR_TIMEOUT"), 5*time.Minute),
			SeedRepoPrefix:      stringOr(viper.GetString("GITHUB_SEED_PREFIX"), "gauntlet-seed"),
			CandidateRepoPrefix: stringOr(viper.GetString("GITHUB_CANDIDATE_PREFIX"), "gauntlet-candidate"),
		},
	}, nil
}

func stringOr(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
