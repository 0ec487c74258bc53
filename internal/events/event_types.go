package events

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated       EventType = "complaint_created"
	EventComplaintStatusChanged EventType = "complaint_status_changed"
	EventComplaintEdited        EventType = "complaint_edited"
)

// Actor encapsulates actor metadata for an event. Citizens are anonymous, so
// only officials carry an id.
type Actor struct {
	Type       domain.ActorType `json:"type"`
	OfficialID *string          `json:"official_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ComplaintID string    `json:"complaint_id"`
	PublicID    string    `json:"public_id"`
	Actor       Actor     `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	Channel          domain.Channel  `json:"channel"`
	Category         domain.Category `json:"category"`
	Priority         domain.Priority `json:"priority"`
	Title            string          `json:"title"`
	SubmitterContact string          `json:"-"`
}

// ComplaintStatusChangedPayload payload.
type ComplaintStatusChangedPayload struct {
	OldStatus        domain.ComplaintStatus `json:"old_status"`
	NewStatus        domain.ComplaintStatus `json:"new_status"`
	Message          string                 `json:"message,omitempty"`
	Channel          domain.Channel         `json:"channel"`
	SubmitterContact string                 `json:"-"`
}

// ComplaintEditedPayload lists the fields a complainant changed.
type ComplaintEditedPayload struct {
	Fields []string `json:"fields"`
}
