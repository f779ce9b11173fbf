package database

import (
	"gauntlet-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN. PreferSimpleProtocol disables prepared
// statement caching to avoid 42P05 ("prepared statement already exists")
// when running behind a connection pooler (PgBouncer, Supabase, Render).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// AutoMigrate runs migrations for all assessment-domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Org{},
		&domain.GitHubInstallation{},
		&domain.GitHubInstallationState{},
		&domain.Seed{},
		&domain.Assessment{},
		&domain.Invitation{},
		&domain.CandidateRepo{},
		&domain.AccessToken{},
		&domain.Submission{},
		&domain.EmailEvent{},
	)
}
