package candidate

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/installations"
	"gauntlet-backend/internal/pkg/response"
)

// Handlers exposes the public token-addressed candidate routes. No session
// auth here; the start-link token is the credential.
type Handlers struct {
	Service *Service
}

// GET /api/start/:token
func (h *Handlers) GetDetails(c *fiber.Ctx) error {
	details, err := h.Service.GetDetails(c.Context(), c.Params("token"))
	if err != nil {
		return mapLifecycleError(c, err)
	}
	return response.Success(c, "Assessment details fetched", details)
}

// POST /api/start/:token
func (h *Handlers) Start(c *fiber.Ctx) error {
	result, err := h.Service.Start(c.Context(), c.Params("token"))
	if err != nil {
		return mapLifecycleError(c, err)
	}
	return response.Success(c, "Assessment started", result)
}

// POST /api/submit/:token
func (h *Handlers) Submit(c *fiber.Ctx) error {
	var body SubmitInput
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	result, err := h.Service.Submit(c.Context(), c.Params("token"), body)
	if err != nil {
		return mapLifecycleError(c, err)
	}
	return response.Success(c, "Submission received", result)
}

func mapLifecycleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvitationNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, ErrStartExpired):
		return response.Error(c, err.Error(), fiber.StatusGone, nil)
	case errors.Is(err, ErrAlreadyStarted), errors.Is(err, ErrNotStarted),
		errors.Is(err, installations.ErrNotConnected):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, ErrSeedMissing), errors.Is(err, ErrSeedSHAMissing),
		errors.Is(err, ErrRepoNotProvisioned):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, installations.ErrAppNotConfigured):
		return response.Error(c, err.Error(), fiber.StatusServiceUnavailable, nil)
	}
	var authErr *github.AuthError
	var apiErr *github.APIError
	if errors.As(err, &authErr) || errors.As(err, &apiErr) {
		return response.Error(c, err.Error(), fiber.StatusBadGateway, nil)
	}
	return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
}
