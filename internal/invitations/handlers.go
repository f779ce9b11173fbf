package invitations

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"gauntlet-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

// POST /api/invitations
func (h *Handlers) CreateInvitations(c *fiber.Ctx) error {
	var body struct {
		AssessmentID string    `json:"assessment_id"`
		Invitations  []Invitee `json:"invitations"`
	}
	if err := c.BodyParser(&body); err != nil || body.AssessmentID == "" || len(body.Invitations) == 0 {
		return response.Error(c, "assessment_id and at least one invitation are required", fiber.StatusBadRequest, nil)
	}
	assessmentID, err := uuid.Parse(body.AssessmentID)
	if err != nil {
		return response.Error(c, "Invalid assessment id", fiber.StatusBadRequest, nil)
	}

	created, err := h.Service.BatchCreate(c.Context(), assessmentID, body.Invitations)
	if err != nil {
		switch {
		case errors.Is(err, ErrAssessmentNotFound):
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		case errors.Is(err, ErrInvalidEmail):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, ErrEmailSendFailed):
			return response.Error(c, err.Error(), fiber.StatusBadGateway, nil)
		default:
			return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
		}
	}
	return response.SuccessCreated(c, "Invitations created", created)
}

// GET /api/invitations/:id
func (h *Handlers) GetInvitation(c *fiber.Ctx) error {
	invitationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", fiber.StatusBadRequest, nil)
	}
	invitation, err := h.Service.Get(c.Context(), invitationID)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Invitation fetched", invitation)
}

// PATCH /api/invitations/:id/revoke
func (h *Handlers) RevokeInvitation(c *fiber.Ctx) error {
	invitationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", fiber.StatusBadRequest, nil)
	}
	invitation, err := h.Service.Revoke(c.Context(), invitationID)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Invitation revoked", invitation)
}

// POST /api/invitations/:id/mark-submitted
func (h *Handlers) MarkSubmitted(c *fiber.Ctx) error {
	invitationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", fiber.StatusBadRequest, nil)
	}
	invitation, err := h.Service.MarkSubmitted(c.Context(), invitationID)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Invitation marked submitted", invitation)
}

// DELETE /api/invitations/:id
func (h *Handlers) DeleteInvitation(c *fiber.Ctx) error {
	invitationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid invitation id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.Context(), invitationID); err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
