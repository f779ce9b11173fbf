package assessments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
)

func setupAssessmentTest(t *testing.T) (*Service, *gorm.DB, domain.Seed) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Org{}, &domain.Seed{}, &domain.Assessment{}))

	org := domain.Org{Name: "Acme"}
	require.NoError(t, db.Create(&org).Error)
	seed := domain.Seed{
		OrgID:            org.ID,
		SourceRepoURL:    "https://github.com/upstream/kata",
		SeedRepoFullName: "acme/seed-repo",
		DefaultBranch:    "main",
		LatestMainSHA:    "abc123",
	}
	require.NoError(t, db.Create(&seed).Error)
	return &Service{DB: db}, db, seed
}

func TestCreate_ValidatesWindows(t *testing.T) {
	svc, _, seed := setupAssessmentTest(t)

	_, err := svc.Create(context.Background(), CreateAssessmentInput{
		OrgID:          seed.OrgID,
		SeedID:         seed.ID,
		Title:          "Kata",
		TimeToStart:    0,
		TimeToComplete: 48 * time.Hour,
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCreate_RejectsForeignSeed(t *testing.T) {
	svc, db, seed := setupAssessmentTest(t)
	other := domain.Org{Name: "Rival"}
	require.NoError(t, db.Create(&other).Error)

	_, err := svc.Create(context.Background(), CreateAssessmentInput{
		OrgID:          other.ID,
		SeedID:         seed.ID,
		Title:          "Kata",
		TimeToStart:    72 * time.Hour,
		TimeToComplete: 48 * time.Hour,
	})
	assert.ErrorIs(t, err, ErrSeedNotFound, "seeds are scoped to their org")
}

func TestCreateAndGet_RoundTrip(t *testing.T) {
	svc, _, seed := setupAssessmentTest(t)

	created, err := svc.Create(context.Background(), CreateAssessmentInput{
		OrgID:          seed.OrgID,
		SeedID:         seed.ID,
		Title:          "Backend Kata",
		Instructions:   "Build the thing.",
		TimeToStart:    72 * time.Hour,
		TimeToComplete: 48 * time.Hour,
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backend Kata", got.Title)
	assert.Equal(t, 72*time.Hour, got.TimeToStart)
	require.NotNil(t, got.Seed)
	assert.Equal(t, "acme/seed-repo", got.Seed.SeedRepoFullName)
}

func TestGet_Unknown(t *testing.T) {
	svc, _, _ := setupAssessmentTest(t)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestCreateAssessmentRoute_InvalidBody(t *testing.T) {
	svc, _, _ := setupAssessmentTest(t)
	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Post("/api/assessments", h.CreateAssessment)

	body, _ := json.Marshal(map[string]interface{}{"title": "Kata"})
	req := httptest.NewRequest("POST", "/api/assessments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateAssessmentRoute_Success(t *testing.T) {
	svc, _, seed := setupAssessmentTest(t)
	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Post("/api/assessments", h.CreateAssessment)

	body, _ := json.Marshal(map[string]interface{}{
		"org_id":                 seed.OrgID.String(),
		"seed_id":                seed.ID.String(),
		"title":                  "Backend Kata",
		"time_to_start_hours":    72,
		"time_to_complete_hours": 48,
	})
	req := httptest.NewRequest("POST", "/api/assessments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}
