package assessments

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"gauntlet-backend/internal/middleware"
	"gauntlet-backend/internal/pkg/response"
)

type Handlers struct {
	Service *Service
}

// POST /api/assessments
func (h *Handlers) CreateAssessment(c *fiber.Ctx) error {
	var body struct {
		OrgID                 string `json:"org_id"`
		SeedID                string `json:"seed_id"`
		Title                 string `json:"title"`
		Description           string `json:"description"`
		Instructions          string `json:"instructions"`
		CandidateEmailSubject string `json:"candidate_email_subject"`
		CandidateEmailBody    string `json:"candidate_email_body"`
		TimeToStartHours      int    `json:"time_to_start_hours"`
		TimeToCompleteHours   int    `json:"time_to_complete_hours"`
	}
	if err := c.BodyParser(&body); err != nil || body.OrgID == "" || body.SeedID == "" || body.Title == "" {
		return response.Error(c, "org_id, seed_id and title are required", fiber.StatusBadRequest, nil)
	}
	orgID, err := uuid.Parse(body.OrgID)
	if err != nil {
		return response.Error(c, "Invalid org id", fiber.StatusBadRequest, nil)
	}
	seedID, err := uuid.Parse(body.SeedID)
	if err != nil {
		return response.Error(c, "Invalid seed id", fiber.StatusBadRequest, nil)
	}

	var createdBy *uuid.UUID
	if user := middleware.GetUser(c); user != nil {
		if id, err := uuid.Parse(user.UserID); err == nil {
			createdBy = &id
		}
	}

	assessment, err := h.Service.Create(c.Context(), CreateAssessmentInput{
		OrgID:                 orgID,
		SeedID:                seedID,
		Title:                 body.Title,
		Description:           body.Description,
		Instructions:          body.Instructions,
		CandidateEmailSubject: body.CandidateEmailSubject,
		CandidateEmailBody:    body.CandidateEmailBody,
		TimeToStart:           time.Duration(body.TimeToStartHours) * time.Hour,
		TimeToComplete:        time.Duration(body.TimeToCompleteHours) * time.Hour,
		CreatedBy:             createdBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSeedNotFound):
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		case errors.Is(err, ErrInvalidWindow):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		default:
			return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
		}
	}
	return response.SuccessCreated(c, "Assessment created", assessment)
}

// GET /api/assessments/:id
func (h *Handlers) GetAssessment(c *fiber.Ctx) error {
	assessmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid assessment id", fiber.StatusBadRequest, nil)
	}
	assessment, err := h.Service.Get(c.Context(), assessmentID)
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Assessment fetched", assessment)
}
