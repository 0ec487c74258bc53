package domain

import "time"

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	StatusSubmitted   ComplaintStatus = "submitted"
	StatusInProgress  ComplaintStatus = "in-progress"
	StatusUnderReview ComplaintStatus = "under-review"
	StatusResolved    ComplaintStatus = "resolved"
	StatusRejected    ComplaintStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInProgress, StatusUnderReview, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further status change is accepted.
func (s ComplaintStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Priority enumerates complaint urgency, ordered low < medium < high < urgent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// Rank returns the ordinal of p, or 0 for an unknown priority.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Channel records where a complaint was filed.
type Channel string

const (
	ChannelWeb  Channel = "web"
	ChannelChat Channel = "chat"
)

// ClassifierOutput is the classifier's verdict kept as provenance on the complaint.
type ClassifierOutput struct {
	Category                Category `json:"category"`
	Priority                Priority `json:"priority"`
	Valid                   bool     `json:"valid"`
	EstimatedResolutionDays int      `json:"estimated_resolution_days,omitempty"`
	Provider                string   `json:"provider,omitempty"`
	Fallback                bool     `json:"fallback,omitempty"`
}

// Complaint is the durable grievance record. IntakeKey names the chat draft a
// complaint was filed from; a store keeps at most one complaint per key.
type Complaint struct {
	ID               string
	PublicID         string
	SubmitterName    string
	SubmitterContact string
	Title            string
	Description      string
	Category         Category
	Priority         Priority
	Status           ComplaintStatus
	Location         string
	Channel          Channel
	Classification   *ClassifierOutput
	SecretHash       string `json:"-"`
	IntakeKey        string `json:"-"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy so callers cannot alias store-owned state.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	if c.Classification != nil {
		cls := *c.Classification
		out.Classification = &cls
	}
	return &out
}
