package installations

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

// POST /api/github/installations/start
func (h *Handlers) StartInstall(c *fiber.Ctx) error {
	var body struct {
		OrgID       string `json:"org_id"`
		ReturnPath  string `json:"return_path"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.BodyParser(&body); err != nil || body.OrgID == "" {
		return response.Error(c, "org_id is required", fiber.StatusBadRequest, nil)
	}
	orgID, err := uuid.Parse(body.OrgID)
	if err != nil {
		return response.Error(c, "Invalid org id", fiber.StatusBadRequest, nil)
	}

	installURL, err := h.Service.StartInstall(c.Context(), orgID, body.ReturnPath, body.RedirectURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrgNotFound):
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		case errors.Is(err, ErrAppNotConfigured):
			return response.Error(c, err.Error(), fiber.StatusServiceUnavailable, nil)
		}
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Installation flow started", fiber.Map{"installation_url": installURL})
}

// POST /api/github/installations/complete
func (h *Handlers) CompleteInstall(c *fiber.Ctx) error {
	var body struct {
		State          string `json:"state"`
		InstallationID int64  `json:"installation_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.State == "" || body.InstallationID == 0 {
		return response.Error(c, "state and installation_id are required", fiber.StatusBadRequest, nil)
	}

	installation, returnPath, err := h.Service.CompleteInstall(c.Context(), body.State, body.InstallationID)
	if err != nil {
		switch {
		case errors.Is(err, ErrStateNotFound):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, ErrStateExpired):
			return response.Error(c, err.Error(), fiber.StatusGone, nil)
		case errors.Is(err, ErrNotOrganization):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, ErrAppNotConfigured):
			return response.Error(c, err.Error(), fiber.StatusServiceUnavailable, nil)
		default:
			var authErr *github.AuthError
			var apiErr *github.APIError
			if errors.As(err, &authErr) || errors.As(err, &apiErr) {
				return response.Error(c, err.Error(), fiber.StatusBadGateway, nil)
			}
			return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
		}
	}
	return response.Success(c, "GitHub App connected", fiber.Map{
		"installation": installation,
		"return_path":  returnPath,
	})
}

// GET /api/github/installations?org_id=
func (h *Handlers) GetInstallation(c *fiber.Ctx) error {
	orgID, err := uuid.Parse(c.Query("org_id"))
	if err != nil {
		return response.Error(c, "Invalid org id", fiber.StatusBadRequest, nil)
	}
	installation, err := h.Service.Get(c.Context(), orgID)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	if installation == nil {
		return response.Success(c, "No installation connected", fiber.Map{"connected": false})
	}
	return response.Success(c, "Installation fetched", fiber.Map{
		"connected":    true,
		"installation": installation,
	})
}
