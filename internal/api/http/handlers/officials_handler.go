package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/api/dto"
	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	"github.com/civicdesk/grievance-service/internal/service"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// OfficialsHandler manages official login and triage endpoints.
type OfficialsHandler struct {
	auth       *service.AuthService
	complaints *service.ComplaintService
}

// NewOfficialsHandler constructs handler.
func NewOfficialsHandler(authService *service.AuthService, complaints *service.ComplaintService) *OfficialsHandler {
	return &OfficialsHandler{auth: authService, complaints: complaints}
}

// Login POST /auth/officials/login.
func (h *OfficialsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	official, token, exp, err := h.auth.LoginOfficial(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		AccessToken: token,
		ExpiresAt:   exp,
		Official:    dto.NewOfficialResponse(official),
	}})
}

// List GET /officials/complaints.
func (h *OfficialsHandler) List(c *fiber.Ctx) error {
	complaints, err := h.complaints.List(c.UserContext(), parseComplaintFilter(c))
	if err != nil {
		return err
	}
	items := make([]dto.OfficialComplaintResponse, 0, len(complaints))
	for i := range complaints {
		items = append(items, dto.NewOfficialComplaintResponse(&complaints[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /officials/complaints/:ref.
func (h *OfficialsHandler) Get(c *fiber.Ctx) error {
	complaint, updates, err := h.complaints.Track(c.UserContext(), c.Params("ref"))
	if err != nil {
		return err
	}
	detail := dto.NewComplaintDetailResponse(complaint, updates)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"complaint":         detail,
		"submitter_name":    complaint.SubmitterName,
		"submitter_contact": complaint.SubmitterContact,
	}})
}

// ChangeStatus POST /officials/complaints/:ref/status.
func (h *OfficialsHandler) ChangeStatus(c *fiber.Ctx) error {
	official, ok := auth.OfficialFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("official required")
	}
	var req dto.StatusChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	complaint, update, err := h.complaints.SetStatus(c.UserContext(), c.Params("ref"), official, domain.ComplaintStatus(req.Status), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"complaint": dto.NewOfficialComplaintResponse(complaint),
		"update":    dto.NewComplaintUpdateResponse(*update),
	}})
}

func parseComplaintFilter(c *fiber.Ctx) repository.ComplaintFilter {
	filter := repository.ComplaintFilter{}
	for _, part := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.ComplaintStatus(part))
	}
	for _, part := range splitQuery(c.Query("category")) {
		filter.Categories = append(filter.Categories, domain.NormalizeCategory(part))
	}
	for _, part := range splitQuery(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.Priority(strings.ToLower(part)))
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func splitQuery(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
