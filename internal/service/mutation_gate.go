package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/observability"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// WithdrawalMessage is recorded on the update that withdraws a complaint.
const WithdrawalMessage = "withdrawn by complainant"

// MutationGate authorizes anonymous changes to a complaint by its secret.
// It holds no per-complaint state besides the failure throttle; the secret
// check and the write run as one atomic unit inside the store.
type MutationGate struct {
	complaints repository.ComplaintRepository
	secrets    *auth.SecretManager
	limiter    *attemptLimiter
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// GateDependencies bundles collaborators for the gate.
type GateDependencies struct {
	ComplaintRepo              repository.ComplaintRepository
	Secrets                    *auth.SecretManager
	Dispatcher                 events.Dispatcher
	Metrics                    *observability.Metrics
	Logger                     *zap.Logger
	MaxFailedAttemptsPerMinute int
	Clock                      func() time.Time
}

// EditInput carries the fields a complainant may change. Nil means unchanged.
type EditInput struct {
	Title       *string
	Description *string
	Location    *string
}

// NewMutationGate constructs the gate.
func NewMutationGate(deps GateDependencies) *MutationGate {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationGate{
		complaints: deps.ComplaintRepo,
		secrets:    deps.Secrets,
		limiter:    newAttemptLimiter(deps.MaxFailedAttemptsPerMinute, deps.Clock),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Authorize checks secret against the complaint named by ref.
func (g *MutationGate) Authorize(ctx context.Context, ref, secret string) (*domain.Complaint, error) {
	c, err := g.resolve(ctx, ref)
	if err == nil {
		err = g.guard(secret)(c)
	}
	g.record("authorize", err)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Edit changes free-text fields of a non-terminal complaint.
func (g *MutationGate) Edit(ctx context.Context, ref, secret string, in EditInput) (*domain.Complaint, error) {
	m, fields, err := mutationFrom(in)
	if err != nil {
		return nil, err
	}
	c, err := g.resolve(ctx, ref)
	if err != nil {
		g.record("edit", err)
		return nil, err
	}
	updated, err := g.complaints.ApplyMutation(ctx, c.ID, g.guard(secret), m)
	g.record("edit", err)
	if err != nil {
		return nil, err
	}

	publish(ctx, g.dispatcher, g.logger, events.Event{
		Type:        events.EventComplaintEdited,
		ComplaintID: updated.ID,
		PublicID:    updated.PublicID,
		Actor:       events.Actor{Type: domain.ActorCitizen},
		Timestamp:   updated.UpdatedAt,
		Payload:     events.ComplaintEditedPayload{Fields: fields},
	})
	return updated, nil
}

// AppendUpdate adds a citizen update, optionally changing the status.
func (g *MutationGate) AppendUpdate(ctx context.Context, ref, secret, message string, status *domain.ComplaintStatus) (*domain.Complaint, *domain.ComplaintUpdate, error) {
	return g.appendUpdate(ctx, "append_update", ref, secret, strings.TrimSpace(message), status)
}

// Withdraw rejects the complaint on the complainant's behalf.
func (g *MutationGate) Withdraw(ctx context.Context, ref, secret string) (*domain.Complaint, error) {
	rejected := domain.StatusRejected
	c, _, err := g.appendUpdate(ctx, "withdraw", ref, secret, WithdrawalMessage, &rejected)
	return c, err
}

func (g *MutationGate) appendUpdate(ctx context.Context, op, ref, secret, message string, status *domain.ComplaintStatus) (*domain.Complaint, *domain.ComplaintUpdate, error) {
	c, err := g.resolve(ctx, ref)
	if err != nil {
		g.record(op, err)
		return nil, nil, err
	}

	verify := g.guard(secret)
	var old domain.ComplaintStatus
	updated, entry, err := g.complaints.AppendUpdate(ctx, c.ID, func(current *domain.Complaint) error {
		old = current.Status
		return verify(current)
	}, repository.UpdateInput{
		ActorType: domain.ActorCitizen,
		Message:   message,
		Status:    status,
	})
	g.record(op, err)
	if err != nil {
		return nil, nil, err
	}

	g.logger.Info("complaint updated by complainant",
		zap.String("public_id", updated.PublicID),
		zap.String("operation", op),
		zap.String("status", string(updated.Status)))
	if status != nil && old != updated.Status {
		publish(ctx, g.dispatcher, g.logger, statusChangedEvent(updated, old, entry, events.Actor{Type: domain.ActorCitizen}))
	}
	return updated, entry, nil
}

// guard verifies secret against the record the store has locked. The
// throttle is consulted first so a blocked complaint never reaches bcrypt.
func (g *MutationGate) guard(secret string) repository.Guard {
	return func(current *domain.Complaint) error {
		if g.limiter.blocked(current.ID) {
			return apperrors.ErrTooManyAttempts
		}
		if !g.secrets.Verify(secret, current.SecretHash) {
			g.limiter.fail(current.ID)
			return apperrors.ErrAuthFailure
		}
		return nil
	}
}

func (g *MutationGate) resolve(ctx context.Context, ref string) (*domain.Complaint, error) {
	return resolveComplaint(ctx, g.complaints, ref)
}

func (g *MutationGate) record(op string, err error) {
	g.metrics.RecordGateDecision(op, gateOutcome(err))
	if err != nil && !errors.Is(err, apperrors.ErrStoreUnavailable) {
		g.logger.Debug("gate refused mutation", zap.String("operation", op), zap.String("outcome", gateOutcome(err)))
	}
}

func gateOutcome(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrAuthFailure):
		return "auth_failure"
	case errors.Is(err, apperrors.ErrComplaintClosed):
		return "closed"
	case errors.Is(err, apperrors.ErrTooManyAttempts):
		return "throttled"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func mutationFrom(in EditInput) (repository.Mutation, []string, error) {
	var (
		m      repository.Mutation
		fields []string
	)
	set := func(name string, v *string) (*string, error) {
		if v == nil {
			return nil, nil
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed == "" {
			return nil, apperrors.NewValidationError(name+" cannot be empty", map[string]any{"field": name})
		}
		fields = append(fields, name)
		return &trimmed, nil
	}
	var err error
	if m.Title, err = set("title", in.Title); err != nil {
		return m, nil, err
	}
	if m.Description, err = set("description", in.Description); err != nil {
		return m, nil, err
	}
	if m.Location, err = set("location", in.Location); err != nil {
		return m, nil, err
	}
	if m.Empty() {
		return m, nil, apperrors.NewValidationError("nothing to change", nil)
	}
	return m, fields, nil
}
