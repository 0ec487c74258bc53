package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/api/dto"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/service"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// ComplaintsHandler serves the public filing and secret-gated endpoints.
type ComplaintsHandler struct {
	complaints *service.ComplaintService
	gate       *service.MutationGate
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaints *service.ComplaintService, gate *service.MutationGate) *ComplaintsHandler {
	return &ComplaintsHandler{complaints: complaints, gate: gate}
}

// Create POST /complaints.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateComplaintRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	complaint, err := h.complaints.Submit(c.UserContext(), service.ComplaintSubmitInput{
		SubmitterName:    req.Name,
		SubmitterContact: req.Contact,
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		CategoryLabel:    req.Category,
		Secret:           req.Secret,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// Track GET /complaints/:ref.
func (h *ComplaintsHandler) Track(c *fiber.Ctx) error {
	complaint, updates, err := h.complaints.Track(c.UserContext(), c.Params("ref"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintDetailResponse(complaint, updates)})
}

// Authorize POST /complaints/:ref/authorize.
func (h *ComplaintsHandler) Authorize(c *fiber.Ctx) error {
	var req dto.SecretRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	complaint, err := h.gate.Authorize(c.UserContext(), c.Params("ref"), req.Secret)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// Edit PATCH /complaints/:ref.
func (h *ComplaintsHandler) Edit(c *fiber.Ctx) error {
	var req dto.EditComplaintRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	complaint, err := h.gate.Edit(c.UserContext(), c.Params("ref"), req.Secret, service.EditInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// AppendUpdate POST /complaints/:ref/updates.
func (h *ComplaintsHandler) AppendUpdate(c *fiber.Ctx) error {
	var req dto.AppendUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	var status *domain.ComplaintStatus
	if req.Status != nil {
		s := domain.ComplaintStatus(*req.Status)
		status = &s
	}
	complaint, update, err := h.gate.AppendUpdate(c.UserContext(), c.Params("ref"), req.Secret, req.Message, status)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"complaint": dto.NewComplaintResponse(complaint),
		"update":    dto.NewComplaintUpdateResponse(*update),
	}})
}

// Withdraw POST /complaints/:ref/withdraw.
func (h *ComplaintsHandler) Withdraw(c *fiber.Ctx) error {
	var req dto.SecretRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	complaint, err := h.gate.Withdraw(c.UserContext(), c.Params("ref"), req.Secret)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}
