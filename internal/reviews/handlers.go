package reviews

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/installations"
	"gauntlet-backend/internal/llm"
	"gauntlet-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

// GET /api/candidate-repos/:repo_id/diff
func (h *Handlers) GetDiff(c *fiber.Ctx) error {
	repoID, err := uuid.Parse(c.Params("repo_id"))
	if err != nil {
		return response.Error(c, "Invalid repository id", fiber.StatusBadRequest, nil)
	}
	diff, err := h.Service.Diff(c.Context(), repoID, c.Query("head_branch"))
	if err != nil {
		return mapDiffError(c, err)
	}
	return response.Success(c, "Diff fetched", diff)
}

// POST /api/candidate-repos/:repo_id/analyze
func (h *Handlers) Analyze(c *fiber.Ctx) error {
	repoID, err := uuid.Parse(c.Params("repo_id"))
	if err != nil {
		return response.Error(c, "Invalid repository id", fiber.StatusBadRequest, nil)
	}
	var body struct {
		HeadBranch string `json:"head_branch"`
	}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	result, err := h.Service.Analyze(c.Context(), repoID, body.HeadBranch)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return response.Error(c, err.Error(), fiber.StatusServiceUnavailable, nil)
		}
		return mapDiffError(c, err)
	}
	return response.Success(c, "Analysis generated", result)
}

func mapDiffError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrRepoNotFound), errors.Is(err, github.ErrNoCommits),
		errors.Is(err, github.ErrCannotCompare):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, ErrOrgUnknown):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, installations.ErrNotConnected):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case github.IsServerError(err):
		return response.Error(c, "GitHub is temporarily unavailable", fiber.StatusServiceUnavailable, nil)
	}
	var authErr *github.AuthError
	var apiErr *github.APIError
	if errors.As(err, &authErr) || errors.As(err, &apiErr) {
		return response.Error(c, err.Error(), fiber.StatusBadGateway, nil)
	}
	return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
}
