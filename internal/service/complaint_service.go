package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/classifier"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// ComplaintService coordinates complaint filing, tracking and official triage.
type ComplaintService struct {
	complaints repository.ComplaintRepository
	secrets    *auth.SecretManager
	classifier classifier.Classifier
	gate       *MutationGate
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	Secrets       *auth.SecretManager
	Classifier    classifier.Classifier
	Gate          *MutationGate
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// ComplaintSubmitInput is a web-form filing.
type ComplaintSubmitInput struct {
	SubmitterName    string
	SubmitterContact string
	Title            string
	Description      string
	Location         string
	CategoryLabel    string
	Secret           string
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{
		complaints: deps.ComplaintRepo,
		secrets:    deps.Secrets,
		classifier: deps.Classifier,
		gate:       deps.Gate,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// File hashes secret and persists c. It is the single creation path for both
// chat and web filings. Filing a chat draft whose IntakeKey is already stored
// returns the stored complaint and publishes nothing.
func (s *ComplaintService) File(ctx context.Context, c *domain.Complaint, secret string) (*domain.Complaint, error) {
	if strings.TrimSpace(c.Description) == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	hash, err := s.secrets.Hash(secret)
	if err != nil {
		return nil, apperrors.NewValidationError("secret cannot be used", map[string]any{"reason": err.Error()})
	}
	c.SecretHash = hash
	c.Status = domain.StatusSubmitted
	err = s.complaints.Create(ctx, c)
	if errors.Is(err, repository.ErrAlreadyFiled) {
		s.logger.Info("chat draft already filed", zap.String("public_id", c.PublicID))
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint filed",
		zap.String("public_id", c.PublicID),
		zap.String("channel", string(c.Channel)),
		zap.String("category", string(c.Category)),
		zap.String("priority", string(c.Priority)))
	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintCreated,
		ComplaintID: c.ID,
		PublicID:    c.PublicID,
		Actor:       events.Actor{Type: domain.ActorCitizen},
		Payload: events.ComplaintCreatedPayload{
			Channel:          c.Channel,
			Category:         c.Category,
			Priority:         c.Priority,
			Title:            c.Title,
			SubmitterContact: c.SubmitterContact,
		},
	})
	return c, nil
}

// Submit files a web-form complaint. The classifier supplies priority and
// provenance; an explicit category label from the form wins over its guess.
func (s *ComplaintService) Submit(ctx context.Context, in ComplaintSubmitInput) (*domain.Complaint, error) {
	description := strings.TrimSpace(in.Description)
	verdict := s.classify(ctx, strings.TrimSpace(in.Title+" "+description))

	c := &domain.Complaint{
		SubmitterName:    strings.TrimSpace(in.SubmitterName),
		SubmitterContact: strings.TrimSpace(in.SubmitterContact),
		Title:            strings.TrimSpace(in.Title),
		Description:      description,
		Location:         strings.TrimSpace(in.Location),
		Category:         verdict.Category,
		Priority:         verdict.Priority,
		Channel:          domain.ChannelWeb,
		Classification:   &verdict,
	}
	if label := strings.TrimSpace(in.CategoryLabel); label != "" {
		c.Category = domain.NormalizeCategory(label)
	}
	return s.File(ctx, c, in.Secret)
}

// Lookup resolves a display id or internal id. No secret is needed to read.
func (s *ComplaintService) Lookup(ctx context.Context, ref string) (*domain.Complaint, error) {
	return resolveComplaint(ctx, s.complaints, ref)
}

// Track returns a complaint together with its update log.
func (s *ComplaintService) Track(ctx context.Context, ref string) (*domain.Complaint, []domain.ComplaintUpdate, error) {
	c, err := resolveComplaint(ctx, s.complaints, ref)
	if err != nil {
		return nil, nil, err
	}
	updates, err := s.complaints.ListUpdates(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, updates, nil
}

// Withdraw lets the complainant close their complaint through the gate.
func (s *ComplaintService) Withdraw(ctx context.Context, ref, secret string) (*domain.Complaint, error) {
	return s.gate.Withdraw(ctx, ref, secret)
}

// List returns complaints matching filter for officials.
func (s *ComplaintService) List(ctx context.Context, filter repository.ComplaintFilter) ([]domain.Complaint, error) {
	return s.complaints.List(ctx, filter)
}

// SetStatus records an official's status change. Officials are authorized by
// role, not by the complaint secret.
func (s *ComplaintService) SetStatus(ctx context.Context, ref string, official *domain.Official, status domain.ComplaintStatus, message string) (*domain.Complaint, *domain.ComplaintUpdate, error) {
	if official == nil {
		return nil, nil, apperrors.NewForbidden("official required")
	}
	if !status.Valid() {
		return nil, nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	c, err := resolveComplaint(ctx, s.complaints, ref)
	if err != nil {
		return nil, nil, err
	}

	var old domain.ComplaintStatus
	actorID := official.ID
	updated, entry, err := s.complaints.AppendUpdate(ctx, c.ID, func(current *domain.Complaint) error {
		old = current.Status
		return nil
	}, repository.UpdateInput{
		ActorType: domain.ActorOfficial,
		ActorID:   &actorID,
		Message:   strings.TrimSpace(message),
		Status:    &status,
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("complaint status changed",
		zap.String("public_id", updated.PublicID),
		zap.String("official_id", official.ID),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(status)))
	s.publishEvent(ctx, statusChangedEvent(updated, old, entry, events.Actor{Type: domain.ActorOfficial, OfficialID: &actorID}))
	return updated, entry, nil
}

func (s *ComplaintService) classify(ctx context.Context, text string) domain.ClassifierOutput {
	if s.classifier == nil {
		return classifier.Fallback()
	}
	out, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logger.Warn("classification fell back to default", zap.Error(err))
		return classifier.Fallback()
	}
	return out
}

func (s *ComplaintService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

// resolveComplaint accepts a display id in any case or an internal UUID.
func resolveComplaint(ctx context.Context, repo repository.ComplaintRepository, ref string) (*domain.Complaint, error) {
	ref = strings.TrimSpace(ref)
	if domain.IsInternalID(ref) {
		return repo.GetByID(ctx, ref)
	}
	return repo.GetByPublicID(ctx, ref)
}

func statusChangedEvent(c *domain.Complaint, old domain.ComplaintStatus, entry *domain.ComplaintUpdate, actor events.Actor) events.Event {
	return events.Event{
		Type:        events.EventComplaintStatusChanged,
		ComplaintID: c.ID,
		PublicID:    c.PublicID,
		Actor:       actor,
		Timestamp:   entry.CreatedAt,
		Payload: events.ComplaintStatusChangedPayload{
			OldStatus:        old,
			NewStatus:        c.Status,
			Message:          entry.Message,
			Channel:          c.Channel,
			SubmitterContact: c.SubmitterContact,
		},
	}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
