// Package intake runs the chat dialogue that assembles a complaint across
// several messages from one sender.
package intake

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// State is a dialogue position.
type State string

const (
	StateIdle                  State = "idle"
	StateCollectingDescription State = "collecting_description"
	StateCollectingLocation    State = "collecting_location"
	StateCollectingSecret      State = "collecting_secret"
	StateAwaitingComplaintID   State = "awaiting_complaint_id"
)

// States lists every dialogue state.
var States = []State{
	StateIdle,
	StateCollectingDescription,
	StateCollectingLocation,
	StateCollectingSecret,
	StateAwaitingComplaintID,
}

// Draft is the partially assembled complaint. Key stays fixed for the life of
// the draft and makes filing it idempotent.
type Draft struct {
	Key            string                   `json:"key,omitempty"`
	Description    string                   `json:"description,omitempty"`
	Classification *domain.ClassifierOutput `json:"classification,omitempty"`
	Location       string                   `json:"location,omitempty"`
}

// Session is one sender's dialogue state.
type Session struct {
	Sender       string    `json:"sender"`
	State        State     `json:"state"`
	Draft        Draft     `json:"draft"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewSession starts an idle session.
func NewSession(sender string, now time.Time) *Session {
	return &Session{Sender: sender, State: StateIdle, CreatedAt: now, LastActivity: now}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Draft.Classification != nil {
		cls := *s.Draft.Classification
		out.Draft.Classification = &cls
	}
	return &out
}

// Expired reports whether the session has idled past ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

func (s *Session) reset() {
	s.State = StateIdle
	s.Draft = Draft{}
}
