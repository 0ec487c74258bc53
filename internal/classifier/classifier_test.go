package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/civicdesk/grievance-service/internal/domain"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestKeywordClassifier(t *testing.T) {
	k := NewKeywordClassifier(nil)

	tests := []struct {
		name     string
		text     string
		category domain.Category
		priority domain.Priority
		valid    bool
	}{
		{"pothole with accidents", "There is a large pothole near the bus stand causing accidents daily", domain.CategoryRoads, domain.PriorityHigh, true},
		{"garbage", "Garbage has not been collected from our lane for a week", domain.CategorySanitation, domain.PriorityMedium, true},
		{"live wire", "A live wire is hanging from the electric pole next to the market", domain.CategoryElectricity, domain.PriorityUrgent, true},
		{"streetlight minor", "Minor issue, one streetlight flickers at night", domain.CategoryStreetLighting, domain.PriorityLow, true},
		{"unmatched", "Something is wrong in my neighbourhood and nobody helps", domain.CategoryOther, domain.PriorityMedium, true},
		{"too short", "  water  ", domain.CategoryOther, domain.PriorityMedium, false},
		{"empty", "", domain.CategoryOther, domain.PriorityMedium, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := k.Classify(context.Background(), tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.category, out.Category)
			assert.Equal(t, tc.priority, out.Priority)
			assert.Equal(t, tc.valid, out.Valid)
			assert.Equal(t, "keyword", out.Provider)
		})
	}
}

func TestKeywordClassifier_ResolutionDays(t *testing.T) {
	out, err := NewKeywordClassifier(nil).Classify(context.Background(), "Sewage overflow from the manhole on 5th cross")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryDrainage, out.Category)
	assert.Equal(t, 5, out.EstimatedResolutionDays)
}

func TestParseVocabulary_RejectsUnknownSlug(t *testing.T) {
	_, err := ParseVocabulary([]byte("categories:\n  - slug: potholes-and-more\n    keywords: [x]\n"))
	assert.Error(t, err)
}

func TestDefaultVocabulary_CoversEveryCategory(t *testing.T) {
	seen := map[domain.Category]bool{}
	for _, c := range DefaultVocabulary().Categories {
		seen[c.Slug] = true
	}
	for _, c := range domain.Categories {
		if c == domain.CategoryOther {
			continue
		}
		assert.True(t, seen[c], "category %s has no keywords", c)
	}
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
	}}
}

func TestOpenAIClassifier_NormalizesReply(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "gpt-test" && len(req.Messages) == 2
	})).Return(reply("```json\n{\"category\":\"Roads & Potholes\",\"priority\":\"URGENT\",\"valid\":true,\"estimated_resolution_days\":4}\n```"), nil).Once()

	c := NewOpenAIClassifier(client, "gpt-test", nil)
	out, err := c.Classify(context.Background(), "Huge crater on the highway exit ramp")
	require.NoError(t, err)

	assert.Equal(t, domain.CategoryRoads, out.Category)
	assert.Equal(t, domain.PriorityUrgent, out.Priority)
	assert.True(t, out.Valid)
	assert.Equal(t, 4, out.EstimatedResolutionDays)
	assert.Equal(t, "openai", out.Provider)
	client.AssertExpectations(t)
}

func TestOpenAIClassifier_UnknownValuesDegrade(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(reply(`{"category":"alien invasion","priority":"critical"}`), nil).Once()

	out, err := NewOpenAIClassifier(client, "", nil).Classify(context.Background(), "Spaceship parked on my street corner")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryOther, out.Category)
	assert.Equal(t, domain.PriorityMedium, out.Priority)
	assert.True(t, out.Valid)
}

func TestOpenAIClassifier_ShortTextSkipsUpstream(t *testing.T) {
	client := &mockCompleter{}
	out, err := NewOpenAIClassifier(client, "", nil).Classify(context.Background(), "hi")
	require.NoError(t, err)
	assert.False(t, out.Valid)
	client.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
}

func TestOpenAIClassifier_Errors(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("429 rate limited")).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(reply("not json"), nil).Once()

	c := NewOpenAIClassifier(client, "", nil)
	_, err := c.Classify(context.Background(), "The park benches are all broken")
	assert.Error(t, err)
	_, err = c.Classify(context.Background(), "The park benches are all broken")
	assert.Error(t, err)
}

type stubClassifier struct {
	delay time.Duration
	err   error
	panic bool
}

func (s stubClassifier) Name() string { return "stub" }

func (s stubClassifier) Classify(ctx context.Context, text string) (domain.ClassifierOutput, error) {
	if s.panic {
		panic("boom")
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return domain.ClassifierOutput{}, ctx.Err()
	}
	if s.err != nil {
		return domain.ClassifierOutput{}, s.err
	}
	return domain.ClassifierOutput{Category: domain.CategoryNoise, Priority: domain.PriorityLow, Valid: true}, nil
}

func TestBounded(t *testing.T) {
	t.Run("passes through", func(t *testing.T) {
		out, err := Bounded(stubClassifier{}, time.Second, nil, nil).Classify(context.Background(), "loud music")
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryNoise, out.Category)
		assert.Equal(t, "stub", out.Provider)
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		_, err := Bounded(stubClassifier{delay: time.Second}, 20*time.Millisecond, nil, nil).Classify(context.Background(), "x")
		assert.ErrorIs(t, err, apperrors.ErrClassificationTimeout)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("failure", func(t *testing.T) {
		_, err := Bounded(stubClassifier{err: errors.New("upstream 500")}, time.Second, nil, nil).Classify(context.Background(), "x")
		assert.ErrorIs(t, err, apperrors.ErrClassificationFailure)
	})

	t.Run("panic", func(t *testing.T) {
		_, err := Bounded(stubClassifier{panic: true}, time.Second, nil, nil).Classify(context.Background(), "x")
		assert.ErrorIs(t, err, apperrors.ErrClassificationFailure)
	})
}

func TestFallback(t *testing.T) {
	fb := Fallback()
	assert.Equal(t, domain.CategoryOther, fb.Category)
	assert.Equal(t, domain.PriorityMedium, fb.Priority)
	assert.True(t, fb.Valid)
	assert.True(t, fb.Fallback)
}
