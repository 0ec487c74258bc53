package dto

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// CreateComplaintRequest is a web-form filing.
type CreateComplaintRequest struct {
	Name        string `json:"name" validate:"max=120"`
	Contact     string `json:"contact" validate:"max=200"`
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"notblank,max=4000"`
	Location    string `json:"location" validate:"notblank,max=300"`
	Category    string `json:"category" validate:"max=80"`
	Secret      string `json:"secret" validate:"min=6,max=72"`
}

// SecretRequest carries only the complaint secret.
type SecretRequest struct {
	Secret string `json:"secret" validate:"required,max=72"`
}

// EditComplaintRequest changes free-text fields. Omitted fields are kept.
type EditComplaintRequest struct {
	Secret      string  `json:"secret" validate:"required,max=72"`
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Location    *string `json:"location" validate:"omitempty,max=300"`
}

// AppendUpdateRequest adds a citizen note, optionally with a status.
type AppendUpdateRequest struct {
	Secret  string  `json:"secret" validate:"required,max=72"`
	Message string  `json:"message" validate:"max=2000"`
	Status  *string `json:"status" validate:"omitempty,complaint_status"`
}

// ChatMessageRequest is one inbound message from a chat gateway.
type ChatMessageRequest struct {
	Sender string `json:"sender" validate:"notblank,max=200"`
	Text   string `json:"text" validate:"max=4000"`
}

// ChatMessageResponse carries the dialogue's reply.
type ChatMessageResponse struct {
	Reply string `json:"reply"`
}

// ClassificationResponse exposes classifier provenance.
type ClassificationResponse struct {
	Category                domain.Category `json:"category"`
	Priority                domain.Priority `json:"priority"`
	Valid                   bool            `json:"valid"`
	EstimatedResolutionDays int             `json:"estimated_resolution_days,omitempty"`
	Provider                string          `json:"provider,omitempty"`
	Fallback                bool            `json:"fallback,omitempty"`
}

// ComplaintResponse is the public view of a complaint. It never carries the
// secret or its hash.
type ComplaintResponse struct {
	ID             string                  `json:"id"`
	PublicID       string                  `json:"public_id"`
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	Category       domain.Category         `json:"category"`
	CategoryLabel  string                  `json:"category_label"`
	Priority       domain.Priority         `json:"priority"`
	Status         domain.ComplaintStatus  `json:"status"`
	Location       string                  `json:"location"`
	Channel        domain.Channel          `json:"channel"`
	Classification *ClassificationResponse `json:"classification,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// OfficialComplaintResponse adds submitter details visible to officials.
type OfficialComplaintResponse struct {
	ComplaintResponse
	SubmitterName    string `json:"submitter_name"`
	SubmitterContact string `json:"submitter_contact"`
}

// ComplaintUpdateResponse is one entry of the update log.
type ComplaintUpdateResponse struct {
	ID        string                  `json:"id"`
	ActorType domain.ActorType        `json:"actor_type"`
	Message   string                  `json:"message"`
	Status    *domain.ComplaintStatus `json:"status,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// ComplaintDetailResponse is a complaint with its update log.
type ComplaintDetailResponse struct {
	ComplaintResponse
	Updates []ComplaintUpdateResponse `json:"updates"`
}

// NewComplaintResponse maps a complaint to its public view.
func NewComplaintResponse(c *domain.Complaint) ComplaintResponse {
	resp := ComplaintResponse{
		ID:            c.ID,
		PublicID:      c.PublicID,
		Title:         c.Title,
		Description:   c.Description,
		Category:      c.Category,
		CategoryLabel: c.Category.Label(),
		Priority:      c.Priority,
		Status:        c.Status,
		Location:      c.Location,
		Channel:       c.Channel,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if cls := c.Classification; cls != nil {
		resp.Classification = &ClassificationResponse{
			Category:                cls.Category,
			Priority:                cls.Priority,
			Valid:                   cls.Valid,
			EstimatedResolutionDays: cls.EstimatedResolutionDays,
			Provider:                cls.Provider,
			Fallback:                cls.Fallback,
		}
	}
	return resp
}

// NewComplaintUpdateResponse maps an update log entry.
func NewComplaintUpdateResponse(u domain.ComplaintUpdate) ComplaintUpdateResponse {
	return ComplaintUpdateResponse{
		ID:        u.ID,
		ActorType: u.ActorType,
		Message:   u.Message,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// NewComplaintDetailResponse maps a complaint and its log.
func NewComplaintDetailResponse(c *domain.Complaint, updates []domain.ComplaintUpdate) ComplaintDetailResponse {
	items := make([]ComplaintUpdateResponse, 0, len(updates))
	for _, u := range updates {
		items = append(items, NewComplaintUpdateResponse(u))
	}
	return ComplaintDetailResponse{ComplaintResponse: NewComplaintResponse(c), Updates: items}
}

// NewOfficialComplaintResponse maps a complaint for official views.
func NewOfficialComplaintResponse(c *domain.Complaint) OfficialComplaintResponse {
	return OfficialComplaintResponse{
		ComplaintResponse: NewComplaintResponse(c),
		SubmitterName:     c.SubmitterName,
		SubmitterContact:  c.SubmitterContact,
	}
}
