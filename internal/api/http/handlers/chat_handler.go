package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/api/dto"
)

// WebhookScheme prefixes every sender arriving through the webhook, so a
// caller can only ever address webhook sessions, never another channel's.
const WebhookScheme = "webhook"

// Dialogue answers one chat message.
type Dialogue interface {
	Handle(ctx context.Context, sender, text string) (string, error)
}

// ChatHandler is a synchronous webhook for chat gateways such as SMS or
// WhatsApp bridges that expect the reply in the response.
type ChatHandler struct {
	dialogue Dialogue
	logger   *zap.Logger
}

// NewChatHandler constructs handler.
func NewChatHandler(dialogue Dialogue, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{dialogue: dialogue, logger: logger}
}

// Message POST /chat/messages. The reply is returned even when the turn
// failed internally, so the gateway always has something to relay.
func (h *ChatHandler) Message(c *fiber.Ctx) error {
	var req dto.ChatMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sender := WebhookAddress(req.Sender)
	reply, err := h.dialogue.Handle(c.UserContext(), sender, req.Text)
	if err != nil {
		h.logger.Warn("chat turn failed", zap.String("sender", sender), zap.Error(err))
	}
	return c.JSON(dto.ChatMessageResponse{Reply: reply})
}

// WebhookAddress returns the session key for a gateway-supplied sender id.
func WebhookAddress(sender string) string {
	return WebhookScheme + ":" + strings.TrimSpace(sender)
}
