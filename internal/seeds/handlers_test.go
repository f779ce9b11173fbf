package seeds

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
	"gauntlet-backend/internal/installations"
)

func setupSeedTest(t *testing.T) (*Handlers, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Org{}, &domain.GitHubInstallation{}, &domain.Seed{}))

	service := &Service{DB: db, Installations: &installations.Service{DB: db}}
	return &Handlers{Service: service}, db
}

func TestCreateSeedRoute_MissingFields(t *testing.T) {
	h, _ := setupSeedTest(t)
	app := fiber.New()
	app.Post("/api/seeds", h.CreateSeed)

	body, _ := json.Marshal(map[string]string{"org_id": uuid.New().String()})
	req := httptest.NewRequest("POST", "/api/seeds", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateSeedRoute_UnknownOrg(t *testing.T) {
	h, _ := setupSeedTest(t)
	app := fiber.New()
	app.Post("/api/seeds", h.CreateSeed)

	body, _ := json.Marshal(map[string]string{
		"org_id":          uuid.New().String(),
		"source_repo_url": "https://github.com/upstream/kata",
	})
	req := httptest.NewRequest("POST", "/api/seeds", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetSeedRoute_RoundTrip(t *testing.T) {
	h, db := setupSeedTest(t)
	app := fiber.New()
	app.Get("/api/seeds/:id", h.GetSeed)

	org := domain.Org{Name: "Acme"}
	require.NoError(t, db.Create(&org).Error)
	seed := domain.Seed{
		OrgID:            org.ID,
		SourceRepoURL:    "https://github.com/upstream/kata",
		SeedRepoFullName: "acme/gauntlet-seed-kata",
		DefaultBranch:    "main",
		LatestMainSHA:    "abc123",
	}
	require.NoError(t, db.Create(&seed).Error)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/seeds/"+seed.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/seeds/"+uuid.New().String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
