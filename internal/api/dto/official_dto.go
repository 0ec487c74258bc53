package dto

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse carries a bearer token.
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Official    OfficialResponse `json:"official"`
}

// OfficialResponse is the public view of an official.
type OfficialResponse struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Email string              `json:"email"`
	Role  domain.OfficialRole `json:"role"`
}

// StatusChangeRequest is an official's status update.
type StatusChangeRequest struct {
	Status  string `json:"status" validate:"required,complaint_status"`
	Message string `json:"message" validate:"max=2000"`
}

// ComplaintListQuery captures official list filters.
type ComplaintListQuery struct {
	Statuses   []domain.ComplaintStatus
	Categories []domain.Category
	Priorities []domain.Priority
	Search     *string
	Page       int
	PageSize   int
}

// NewOfficialResponse maps an official.
func NewOfficialResponse(o *domain.Official) OfficialResponse {
	return OfficialResponse{ID: o.ID, Name: o.Name, Email: o.Email, Role: o.Role}
}
