package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// ChatCompleter is the slice of the OpenAI client the classifier needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClassifier asks a chat model for a JSON verdict. Identical texts
// classified concurrently share one upstream call.
type OpenAIClassifier struct {
	client   ChatCompleter
	model    string
	prompt   string
	minLen   int
	logger   *zap.Logger
	inflight singleflight.Group
}

// NewOpenAIClassifier builds a classifier over an OpenAI client.
func NewOpenAIClassifier(client ChatCompleter, model string, logger *zap.Logger) *OpenAIClassifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClassifier{
		client: client,
		model:  model,
		prompt: buildPrompt(),
		minLen: DefaultVocabulary().MinLength,
		logger: logger,
	}
}

// NewOpenAIClient builds the upstream client from an API key.
func NewOpenAIClient(apiKey string) *openai.Client {
	return openai.NewClient(apiKey)
}

func (o *OpenAIClassifier) Name() string { return "openai" }

type llmVerdict struct {
	Category                string `json:"category"`
	Priority                string `json:"priority"`
	Valid                   *bool  `json:"valid"`
	EstimatedResolutionDays int    `json:"estimated_resolution_days"`
}

func (o *OpenAIClassifier) Classify(ctx context.Context, text string) (domain.ClassifierOutput, error) {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < o.minLen {
		return domain.ClassifierOutput{
			Category: domain.CategoryOther,
			Priority: domain.PriorityMedium,
			Provider: o.Name(),
		}, nil
	}

	sum := sha256.Sum256([]byte(trimmed))
	v, err, _ := o.inflight.Do(hex.EncodeToString(sum[:]), func() (interface{}, error) {
		return o.complete(ctx, trimmed)
	})
	if err != nil {
		return domain.ClassifierOutput{}, err
	}
	return v.(domain.ClassifierOutput), nil
}

func (o *OpenAIClassifier) complete(ctx context.Context, text string) (domain.ClassifierOutput, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.ClassifierOutput{}, fmt.Errorf("openai call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ClassifierOutput{}, errors.New("openai returned no choices")
	}
	out, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		o.logger.Debug("unparseable classifier reply", zap.Error(err))
		return domain.ClassifierOutput{}, err
	}
	out.Provider = o.Name()
	return out, nil
}

// parseVerdict decodes the model reply, tolerating markdown fences, and
// normalizes category and priority into the closed sets.
func parseVerdict(content string) (domain.ClassifierOutput, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var v llmVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &v); err != nil {
		return domain.ClassifierOutput{}, fmt.Errorf("decode verdict: %w", err)
	}

	priority := domain.Priority(strings.ToLower(strings.TrimSpace(v.Priority)))
	if !priority.Valid() {
		priority = domain.PriorityMedium
	}
	valid := true
	if v.Valid != nil {
		valid = *v.Valid
	}
	days := v.EstimatedResolutionDays
	if days < 0 {
		days = 0
	}
	return domain.ClassifierOutput{
		Category:                domain.NormalizeCategory(v.Category),
		Priority:                priority,
		Valid:                   valid,
		EstimatedResolutionDays: days,
	}, nil
}

func buildPrompt() string {
	var b strings.Builder
	b.WriteString("You triage municipal civic complaints.\n")
	b.WriteString("Choose exactly one category slug from this list:\n")
	for _, c := range domain.Categories {
		fmt.Fprintf(&b, "- %s (%s)\n", c, c.Label())
	}
	b.WriteString("Choose a priority from: low, medium, high, urgent.\n")
	b.WriteString("Set valid to false if the text is not a genuine civic complaint.\n")
	b.WriteString("Respond with ONLY a JSON object: ")
	b.WriteString(`{"category":"slug","priority":"level","valid":true,"estimated_resolution_days":0}`)
	return b.String()
}
