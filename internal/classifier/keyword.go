package classifier

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/civicdesk/grievance-service/internal/domain"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary drives the keyword classifier.
type Vocabulary struct {
	MinLength       int                `yaml:"min_length"`
	DefaultPriority domain.Priority    `yaml:"default_priority"`
	Categories      []CategoryKeywords `yaml:"categories"`
	Priority        PriorityKeywords   `yaml:"priority"`
}

// CategoryKeywords lists the cues for one category slug.
type CategoryKeywords struct {
	Slug           domain.Category `yaml:"slug"`
	ResolutionDays int             `yaml:"resolution_days"`
	Keywords       []string        `yaml:"keywords"`
}

// PriorityKeywords lists the cues that raise or lower priority.
type PriorityKeywords struct {
	Urgent []string `yaml:"urgent"`
	High   []string `yaml:"high"`
	Low    []string `yaml:"low"`
}

// ParseVocabulary decodes and validates a YAML vocabulary.
func ParseVocabulary(raw []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if v.MinLength <= 0 {
		v.MinLength = 10
	}
	if !v.DefaultPriority.Valid() {
		v.DefaultPriority = domain.PriorityMedium
	}
	for i, c := range v.Categories {
		if !c.Slug.Valid() {
			return nil, fmt.Errorf("vocabulary category %d: unknown slug %q", i, c.Slug)
		}
		for j, kw := range c.Keywords {
			v.Categories[i].Keywords[j] = normalizeText(kw)
		}
	}
	v.Priority.Urgent = normalizeAll(v.Priority.Urgent)
	v.Priority.High = normalizeAll(v.Priority.High)
	v.Priority.Low = normalizeAll(v.Priority.Low)
	return &v, nil
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic(err)
	}
	return v
}

// KeywordClassifier scores text against a keyword vocabulary.
type KeywordClassifier struct {
	vocab *Vocabulary
}

// NewKeywordClassifier builds a classifier. A nil vocabulary uses the embedded one.
func NewKeywordClassifier(vocab *Vocabulary) *KeywordClassifier {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &KeywordClassifier{vocab: vocab}
}

func (k *KeywordClassifier) Name() string { return "keyword" }

// Classify never fails; it honours ctx only to stop early.
func (k *KeywordClassifier) Classify(ctx context.Context, text string) (domain.ClassifierOutput, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClassifierOutput{}, err
	}

	trimmed := strings.TrimSpace(text)
	out := domain.ClassifierOutput{
		Category: domain.CategoryOther,
		Priority: k.vocab.DefaultPriority,
		Valid:    len([]rune(trimmed)) >= k.vocab.MinLength,
		Provider: k.Name(),
	}
	if !out.Valid {
		return out, nil
	}

	padded := " " + normalizeText(trimmed) + " "
	best := 0
	for _, c := range k.vocab.Categories {
		score := 0
		for _, kw := range c.Keywords {
			if matchesWord(padded, kw) {
				score++
			}
		}
		if score > best {
			best = score
			out.Category = c.Slug
			out.EstimatedResolutionDays = c.ResolutionDays
		}
	}

	switch {
	case matchesAny(padded, k.vocab.Priority.Urgent):
		out.Priority = domain.PriorityUrgent
	case matchesAny(padded, k.vocab.Priority.High):
		out.Priority = domain.PriorityHigh
	case matchesAny(padded, k.vocab.Priority.Low):
		out.Priority = domain.PriorityLow
	}
	return out, nil
}

// normalizeText lowercases and collapses punctuation into single spaces.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalizeText(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// matchesWord reports whether kw occurs in padded starting at a word boundary.
func matchesWord(padded, kw string) bool {
	return kw != "" && strings.Contains(padded, " "+kw)
}

func matchesAny(padded string, kws []string) bool {
	for _, kw := range kws {
		if matchesWord(padded, kw) {
			return true
		}
	}
	return false
}
