package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-triage/internal/api/dto"
	"github.com/spec-kit/helpdesk-triage/internal/service"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

// TriageHandler exposes stateless triage helpers.
type TriageHandler struct {
	service  *service.TicketService
	validate *validator.Validate
}

// NewTriageHandler constructs handler.
func NewTriageHandler(ticketService *service.TicketService, validate *validator.Validate) *TriageHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TriageHandler{service: ticketService, validate: validate}
}

// FollowUp POST /triage/follow-up.
func (h *TriageHandler) FollowUp(c *fiber.Ctx) error {
	var req dto.FollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(h.validate, req); err != nil {
		return err
	}
	needs, err := h.service.NeedsFollowUp(c.UserContext(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FollowUpResponse{NeedsFollowUp: needs}})
}
