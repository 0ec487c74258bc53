package intake

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/classifier"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/observability"
)

const maxTitleLength = 80

// Complaints is what the dialogue needs from the complaint service.
type Complaints interface {
	File(ctx context.Context, c *domain.Complaint, secret string) (*domain.Complaint, error)
	Lookup(ctx context.Context, ref string) (*domain.Complaint, error)
	Withdraw(ctx context.Context, ref, secret string) (*domain.Complaint, error)
}

// Engine feeds inbound messages through the registry and the transition
// functions and carries out the side effects they request.
type Engine struct {
	registry   *Registry
	classifier classifier.Classifier
	complaints Complaints
	rules      Rules
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewEngine wires an engine. The classifier should already be bounded by a timeout.
func NewEngine(registry *Registry, cls classifier.Classifier, complaints Complaints, rules Rules, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:   registry,
		classifier: cls,
		complaints: complaints,
		rules:      rules.withDefaults(),
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle processes one message from sender and returns the reply. A reply is
// returned even when err is non-nil.
func (e *Engine) Handle(ctx context.Context, sender, text string) (string, error) {
	var reply string
	err := e.registry.WithSession(ctx, sender, func(s *Session) (*Session, error) {
		step := e.run(ctx, s, text)
		if step.Next.State != StateIdle && step.Next.Draft.Key == "" {
			step.Next.Draft.Key = uuid.NewString()
		}
		e.metrics.RecordTransition(string(s.State), string(step.Next.State))
		e.logger.Debug("intake transition",
			zap.String("sender", sender),
			zap.String("input", string(step.Input.Class)),
			zap.String("from", string(s.State)),
			zap.String("to", string(step.Next.State)),
		)
		reply = step.Reply
		return step.Next, nil
	})
	if err != nil {
		e.logger.Warn("intake session unavailable", zap.String("sender", sender), zap.Error(err))
		return replyServiceInterrupted, err
	}
	return reply, nil
}

func (e *Engine) run(ctx context.Context, s *Session, text string) Step {
	step := Transition(s, text, e.rules)
	in := step.Input

	switch step.Effect {
	case EffectClassify:
		return AfterClassification(s, in, e.classify(ctx, in.Text))
	case EffectLookupStatus:
		c, err := e.complaints.Lookup(ctx, in.Ref)
		return AfterLookup(s, in, c, err)
	case EffectCreateComplaint:
		c, err := e.complaints.File(ctx, complaintFromDraft(s, e.sourceName(s.Sender)), in.Text)
		if err != nil {
			e.logger.Error("chat complaint not stored", zap.String("sender", s.Sender), zap.Error(err))
		}
		return AfterCreate(s, in, c, err)
	case EffectWithdraw:
		c, err := e.complaints.Withdraw(ctx, in.Ref, in.Secret)
		return AfterWithdraw(s, in, c, err)
	}
	return step
}

// classify never fails: errors and timeouts yield the fallback verdict so the
// dialogue keeps moving.
func (e *Engine) classify(ctx context.Context, text string) domain.ClassifierOutput {
	out, err := e.classifier.Classify(ctx, text)
	if err == nil {
		return out
	}
	e.logger.Warn("classification fell back to default", zap.Error(err))
	fb := classifier.Fallback()
	fb.Valid = strings.TrimSpace(text) != ""
	return fb
}

func (e *Engine) sourceName(sender string) string {
	if i := strings.IndexByte(sender, ':'); i > 0 {
		return sender[:i] + " user"
	}
	return "chat user"
}

func complaintFromDraft(s *Session, name string) *domain.Complaint {
	c := &domain.Complaint{
		SubmitterName:    name,
		SubmitterContact: s.Sender,
		IntakeKey:        s.Draft.Key,
		Title:            titleFrom(s.Draft.Description),
		Description:      s.Draft.Description,
		Category:         domain.CategoryOther,
		Priority:         domain.PriorityMedium,
		Status:           domain.StatusSubmitted,
		Location:         s.Draft.Location,
		Channel:          domain.ChannelChat,
	}
	if cls := s.Draft.Classification; cls != nil {
		out := *cls
		c.Classification = &out
		c.Category = cls.Category
		c.Priority = cls.Priority
	}
	return c
}

// titleFrom shortens a description to its first line, cut at a word boundary.
func titleFrom(description string) string {
	title := strings.TrimSpace(description)
	if i := strings.IndexAny(title, "\r\n"); i >= 0 {
		title = title[:i]
	}
	if utf8.RuneCountInString(title) <= maxTitleLength {
		return title
	}
	runes := []rune(title)[:maxTitleLength]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > maxTitleLength/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
