package domain

import "time"

// ActorType indicates who produced a complaint update.
type ActorType string

const (
	ActorCitizen  ActorType = "citizen"
	ActorOfficial ActorType = "official"
	ActorSystem   ActorType = "system"
)

// ComplaintUpdate is an immutable, append-only log entry against a complaint.
type ComplaintUpdate struct {
	ID          string
	ComplaintID string
	ActorType   ActorType
	ActorID     *string
	Message     string
	Status      *ComplaintStatus
	CreatedAt   time.Time
}

// DeriveStatus returns the status set by the most recent update that set one,
// or base when no update overrides it. Updates must be in append order.
func DeriveStatus(base ComplaintStatus, updates []ComplaintUpdate) ComplaintStatus {
	for i := len(updates) - 1; i >= 0; i-- {
		if updates[i].Status != nil {
			return *updates[i].Status
		}
	}
	return base
}
