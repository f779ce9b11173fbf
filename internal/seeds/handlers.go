package seeds

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/installations"
	"gauntlet-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

// POST /api/seeds
func (h *Handlers) CreateSeed(c *fiber.Ctx) error {
	var body struct {
		OrgID         string `json:"org_id"`
		SourceRepoURL string `json:"source_repo_url"`
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.BodyParser(&body); err != nil || body.OrgID == "" || body.SourceRepoURL == "" {
		return response.Error(c, "org_id and source_repo_url are required", fiber.StatusBadRequest, nil)
	}
	orgID, err := uuid.Parse(body.OrgID)
	if err != nil {
		return response.Error(c, "Invalid org id", fiber.StatusBadRequest, nil)
	}

	seed, err := h.Service.Create(c.Context(), CreateSeedInput{
		OrgID:         orgID,
		SourceRepoURL: body.SourceRepoURL,
		DefaultBranch: body.DefaultBranch,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrgNotFound):
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		case errors.Is(err, installations.ErrNotConnected):
			return response.Error(c, err.Error(), fiber.StatusConflict, nil)
		default:
			var authErr *github.AuthError
			var apiErr *github.APIError
			if errors.As(err, &authErr) || errors.As(err, &apiErr) {
				return response.Error(c, err.Error(), fiber.StatusBadGateway, nil)
			}
			return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
		}
	}
	return response.SuccessCreated(c, "Seed repository provisioned", seed)
}

// GET /api/seeds/:id
func (h *Handlers) GetSeed(c *fiber.Ctx) error {
	seedID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid seed id", fiber.StatusBadRequest, nil)
	}
	seed, err := h.Service.Get(c.Context(), seedID)
	if err != nil {
		if errors.Is(err, ErrSeedNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Seed fetched", seed)
}
