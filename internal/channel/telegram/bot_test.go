package telegram

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAPI struct {
	updates chan tgbotapi.Update

	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, fmt.Errorf("unexpected chattable %T", c)
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) sentMessages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type echoHandler struct {
	mu   sync.Mutex
	seen map[string][]string
}

func (h *echoHandler) Handle(_ context.Context, sender, text string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seen == nil {
		h.seen = make(map[string][]string)
	}
	h.seen[sender] = append(h.seen[sender], text)
	return "echo: " + text, nil
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}}
}

func TestBot_RelaysMessagesInOrder(t *testing.T) {
	api := newFakeAPI()
	handler := &echoHandler{}
	bot := New(api, handler, 2, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	for i := 0; i < 5; i++ {
		api.updates <- textUpdate(7, fmt.Sprint(i))
	}
	api.updates <- tgbotapi.Update{}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 8}, Caption: "photo of the pothole"}}

	require.Eventually(t, func() bool { return len(api.sentMessages()) == 6 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, handler.seen["telegram:7"])
	assert.Equal(t, []string{"photo of the pothole"}, handler.seen["telegram:8"])
	assert.True(t, api.stopped)
}

func TestBot_Notify(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, &echoHandler{}, 1, 0, nil)

	require.NoError(t, bot.Notify(context.Background(), "telegram:12345", "status is now resolved"))
	sent := api.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(12345), sent[0].ChatID)
	assert.Equal(t, "status is now resolved", sent[0].Text)

	assert.Error(t, bot.Notify(context.Background(), "sms:12345", "x"))
	assert.Error(t, bot.Notify(context.Background(), "telegram:abc", "x"))
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "telegram:-100200", Address(-100200))
	id, err := chatIDFrom(Address(-100200))
	require.NoError(t, err)
	assert.Equal(t, int64(-100200), id)
}
