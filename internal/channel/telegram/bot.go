// Package telegram connects the intake dialogue to a Telegram bot through
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/intake"
)

// Scheme prefixes every Telegram sender address.
const Scheme = "telegram"

const inboxBuffer = 8

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler produces the reply for one inbound message.
type Handler interface {
	Handle(ctx context.Context, sender, text string) (string, error)
}

// Bot relays Telegram messages to the dialogue and sends its replies back.
type Bot struct {
	api         API
	handler     Handler
	shards      int
	pollTimeout int
	logger      *zap.Logger
}

// New creates a bot. shards bounds how many chats are handled in parallel.
func New(api API, handler Handler, shards, pollTimeoutSec int, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{api: api, handler: handler, shards: shards, pollTimeout: pollTimeoutSec, logger: logger}
}

// Connect authorizes token against the Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = false
	return api, nil
}

// Address returns the sender address for a chat.
func Address(chatID int64) string {
	return Scheme + ":" + strconv.FormatInt(chatID, 10)
}

func chatIDFrom(address string) (int64, error) {
	rest, ok := strings.CutPrefix(address, Scheme+":")
	if !ok {
		return 0, fmt.Errorf("not a telegram address: %q", address)
	}
	return strconv.ParseInt(rest, 10, 64)
}

// Run polls for updates until ctx is cancelled. Messages from one chat are
// handled in arrival order; queued messages are finished before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	inbox := intake.NewInbox(b.shards, inboxBuffer, b.deliver)
	inbox.Start(ctx)
	defer inbox.Close()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			msg := update.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			if err := inbox.Submit(ctx, Address(msg.Chat.ID), messageText(msg)); err != nil && ctx.Err() == nil {
				b.logger.Warn("telegram message dropped", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
			}
		}
	}
}

// Notify sends text to a telegram address outside a conversation turn.
func (b *Bot) Notify(_ context.Context, address, text string) error {
	chatID, err := chatIDFrom(address)
	if err != nil {
		return err
	}
	return b.send(chatID, text)
}

func (b *Bot) deliver(ctx context.Context, sender, text string) {
	reply, err := b.handler.Handle(ctx, sender, text)
	if err != nil {
		b.logger.Warn("intake turn failed", zap.String("sender", sender), zap.Error(err))
	}
	if reply == "" {
		return
	}
	chatID, err := chatIDFrom(sender)
	if err != nil {
		b.logger.Error("bad sender address", zap.String("sender", sender), zap.Error(err))
		return
	}
	if err := b.send(chatID, reply); err != nil {
		b.logger.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) send(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// messageText extracts text or a caption; other media yield an empty message.
func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}
