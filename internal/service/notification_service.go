package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
)

// Notifier delivers a text message to a channel-scoped address such as
// telegram:12345.
type Notifier interface {
	Notify(ctx context.Context, address, text string) error
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig

	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		notifiers:  make(map[string]Notifier),
	}
}

// RegisterNotifier routes addresses with the given scheme prefix to n.
func (n *NotificationService) RegisterNotifier(scheme string, notifier Notifier) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifiers[scheme] = notifier
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventComplaintCreated, n.handleComplaintCreated)
	n.dispatcher.Subscribe(events.EventComplaintStatusChanged, n.handleComplaintStatusChanged)
	n.dispatcher.Subscribe(events.EventComplaintEdited, n.handleComplaintEdited)
}

func (n *NotificationService) handleComplaintCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintCreated", zap.String("public_id", event.PublicID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleComplaintStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintStatusChanged", zap.String("public_id", event.PublicID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)

	payload, ok := event.Payload.(events.ComplaintStatusChangedPayload)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("Update on complaint %s: status is now %s.", event.PublicID, payload.NewStatus)
	if payload.Message != "" {
		text += "\n" + payload.Message
	}
	if payload.Channel == domain.ChannelChat {
		return n.notifyComplainant(ctx, payload.SubmitterContact, text)
	}
	n.sendEmailNotificationStub(ctx, payload.SubmitterContact, event)
	return nil
}

func (n *NotificationService) handleComplaintEdited(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintEdited", zap.String("public_id", event.PublicID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) notifyComplainant(ctx context.Context, address, text string) error {
	scheme, _, ok := strings.Cut(address, ":")
	if !ok {
		return nil
	}
	n.mu.RLock()
	notifier := n.notifiers[scheme]
	n.mu.RUnlock()
	if notifier == nil {
		n.logger.Debug("no notifier for channel", zap.String("scheme", scheme))
		return nil
	}
	return notifier.Notify(ctx, address, text)
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, contact string, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || !strings.Contains(contact, "@") {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("public_id", event.PublicID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("public_id", event.PublicID),
		zap.String("event_type", string(event.Type)))
}
