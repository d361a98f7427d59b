package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-triage/internal/api/dto"
	"github.com/spec-kit/helpdesk-triage/internal/service"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket triage endpoints.
type TicketsHandler struct {
	service  *service.TicketService
	validate *validator.Validate
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, validate *validator.Validate) *TicketsHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TicketsHandler{service: ticketService, validate: validate}
}

// SubmitTicket POST /tickets.
func (h *TicketsHandler) SubmitTicket(c *fiber.Ctx) error {
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(h.validate, req); err != nil {
		return err
	}

	result, err := h.service.Submit(c.UserContext(), service.TicketSubmitInput{
		Name:        req.Name,
		Email:       req.Email,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SubmitTicketResponse{
		Ticket:        dto.NewTicketSummary(result.Ticket),
		Response:      result.Ticket.AIResponse,
		RequiresHuman: result.RequiresHuman,
	}})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := dashboardQuery(c)
	if err != nil {
		return err
	}
	dashboard, err := h.service.Dashboard(c.UserContext(), query)
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(dashboard.Tickets))
	for i := range dashboard.Tickets {
		items = append(items, dto.NewTicketSummary(&dashboard.Tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		Tickets: items,
		Metrics: dto.DashboardMetrics{
			TotalTickets:    dashboard.Metrics.TotalTickets,
			ResolvedTickets: dashboard.Metrics.ResolvedTickets,
			PendingTickets:  dashboard.Metrics.PendingTickets,
		},
	}})
}

// ExportTickets GET /tickets/export.
func (h *TicketsHandler) ExportTickets(c *fiber.Ctx) error {
	query, err := dashboardQuery(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.UserContext(), query, &buf); err != nil {
		return err
	}
	c.Attachment(service.ExportFilename(time.Now()))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

// ChartData GET /tickets/charts.
func (h *TicketsHandler) ChartData(c *fiber.Ctx) error {
	charts, err := h.service.ChartData(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChartDataResponse{
		AgeDistribution: dto.ChartSeries(charts.AgeDistribution),
		ResolutionTime:  dto.ChartSeries(charts.ResolutionTime),
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, msgs)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(h.validate, req); err != nil {
		return err
	}

	result, err := h.service.HandleMessage(c.UserContext(), id, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChatMessageResponse{
		Response:          result.Response,
		Escalated:         result.Escalated,
		FollowUpRequested: result.FollowUpRequested,
		Ticket:            dto.NewTicketSummary(result.Ticket),
	}})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, changed, err := h.service.Escalate(c.UserContext(), id)
	if err != nil {
		return err
	}
	message := "Ticket escalated successfully"
	if !changed {
		message = "Ticket already escalated"
	}
	return c.JSON(fiber.Map{"message": message, "data": dto.NewTicketSummary(ticket)})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ResolveTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		if err := validateStruct(h.validate, req); err != nil {
			return err
		}
	}
	ticket, err := h.service.Resolve(c.UserContext(), id, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Ticket marked as resolved", "data": dto.NewTicketSummary(ticket)})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return int64(id), nil
}

func dashboardQuery(c *fiber.Ctx) (service.DashboardQuery, error) {
	var q dto.DashboardQuery
	if err := c.QueryParser(&q); err != nil {
		return service.DashboardQuery{}, apperrors.NewValidationError("invalid query", nil)
	}
	return service.DashboardQuery{
		Status:    q.Status,
		Category:  q.Category,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	}, nil
}

func validateStruct(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError("validation failed", details)
}
