package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"gauntlet-backend/internal/assessments"
	"gauntlet-backend/internal/candidate"
	"gauntlet-backend/internal/config"
	"gauntlet-backend/internal/database"
	"gauntlet-backend/internal/emails"
	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/health"
	"gauntlet-backend/internal/installations"
	"gauntlet-backend/internal/invitations"
	"gauntlet-backend/internal/llm"
	"gauntlet-backend/internal/middleware"
	"gauntlet-backend/internal/reviews"
	"gauntlet-backend/internal/seeds"
)

// gormPinger adapts *gorm.DB to the health check's DBPinger.
type gormPinger struct {
	db *gorm.DB
}

func (p *gormPinger) Ping() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Create builds the Fiber app with all global middleware and routes. GitHub
// credentials are optional at boot: without them the GitHub-backed endpoints
// answer 503 while the rest of the API stays up.
func Create(cfg *config.Config) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionHandler, rdb, err := middleware.Session(middleware.SessionConfig{
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	})
	if err != nil {
		return nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.RequestStats(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	var ghApp *github.App
	if cfg.GitHub.Validate() == nil {
		settings, err := github.NewSettings(cfg.GitHub)
		if err != nil {
			return nil, err
		}
		ghApp = github.NewApp(settings)
	} else {
		log.Warn().Msg("github app credentials missing; provisioning endpoints disabled")
	}

	notifier := &emails.BrevoClient{
		APIKey:          cfg.BrevoAPIKey,
		MailFrom:        cfg.MailFrom,
		CandidateAppURL: cfg.CandidateAppURL,
	}

	var analyzer llm.Analyzer
	if cfg.OpenAIAPIKey != "" {
		analyzer, err = llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
	}

	installationsSvc := &installations.Service{DB: db, App: ghApp}
	seedsSvc := &seeds.Service{DB: db, Installations: installationsSvc}
	assessmentsSvc := &assessments.Service{DB: db}
	invitationsSvc := &invitations.Service{DB: db, Notifier: notifier}
	candidateSvc := &candidate.Service{DB: db, Installations: installationsSvc, Notifier: notifier}
	reviewsSvc := &reviews.Service{DB: db, Installations: installationsSvc, Analyzer: analyzer}

	healthHandlers := &health.Handlers{
		Rdb:           rdb,
		DB:            &gormPinger{db: db},
		AdminKey:      cfg.HealthAdminKey,
		GitHubBaseURL: cfg.GitHub.APIBaseURL,
	}
	app.Get("/health", healthHandlers.Live)
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/errors", healthHandlers.Errors)
	app.Get("/health/reset", healthHandlers.Reset)

	// Candidate routes are public; the start-link token is the credential.
	candidateHandlers := &candidate.Handlers{Service: candidateSvc}
	app.Get("/api/start/:token", candidateHandlers.GetDetails)
	app.Post("/api/start/:token", candidateHandlers.Start)
	app.Post("/api/submit/:token", candidateHandlers.Submit)

	// Admin routes require a session plus owner or admin role.
	admin := app.Group("/api", middleware.RequireAuth(),
		middleware.RequireRole(middleware.RoleOwner, middleware.RoleAdmin))

	installationHandlers := &installations.Handlers{Service: installationsSvc}
	admin.Post("/github/installations/start", installationHandlers.StartInstall)
	admin.Post("/github/installations/complete", installationHandlers.CompleteInstall)
	admin.Get("/github/installations", installationHandlers.GetInstallation)

	seedHandlers := &seeds.Handlers{Service: seedsSvc}
	admin.Post("/seeds", seedHandlers.CreateSeed)
	admin.Get("/seeds/:id", seedHandlers.GetSeed)

	assessmentHandlers := &assessments.Handlers{Service: assessmentsSvc}
	admin.Post("/assessments", assessmentHandlers.CreateAssessment)
	admin.Get("/assessments/:id", assessmentHandlers.GetAssessment)

	invitationHandlers := &invitations.Handlers{Service: invitationsSvc}
	admin.Post("/invitations", invitationHandlers.CreateInvitations)
	admin.Get("/invitations/:id", invitationHandlers.GetInvitation)
	admin.Patch("/invitations/:id/revoke", invitationHandlers.RevokeInvitation)
	admin.Post("/invitations/:id/mark-submitted", invitationHandlers.MarkSubmitted)
	admin.Delete("/invitations/:id", invitationHandlers.DeleteInvitation)

	reviewHandlers := &reviews.Handlers{Service: reviewsSvc}
	admin.Get("/candidate-repos/:repo_id/diff", reviewHandlers.GetDiff)
	admin.Post("/candidate-repos/:repo_id/analyze", reviewHandlers.Analyze)

	return app, nil
}
