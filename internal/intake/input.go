package intake

import (
	"strings"
	"unicode"

	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/domain"
)

// InputClass buckets an inbound message for the transition table.
type InputClass string

const (
	InputCancel          InputClass = "cancel"
	InputEmpty           InputClass = "empty"
	InputGreeting        InputClass = "greeting"
	InputComplaintID     InputClass = "complaint_id"
	InputStatusRequest   InputClass = "status_request"
	InputWithdrawRequest InputClass = "withdraw_request"
	InputFiling          InputClass = "filing"
	InputOther           InputClass = "other"
)

// InputClasses lists every class.
var InputClasses = []InputClass{
	InputCancel,
	InputEmpty,
	InputGreeting,
	InputComplaintID,
	InputStatusRequest,
	InputWithdrawRequest,
	InputFiling,
	InputOther,
}

// Rules holds the dialogue thresholds.
type Rules struct {
	MinDescriptionLength int
	MinSecretLength      int
	MaxSecretLength      int
}

// DefaultRules returns the standard thresholds.
func DefaultRules() Rules {
	return Rules{MinDescriptionLength: 20, MinSecretLength: 6, MaxSecretLength: auth.MaxSecretLength}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.MinDescriptionLength <= 0 {
		r.MinDescriptionLength = d.MinDescriptionLength
	}
	if r.MinSecretLength <= 0 {
		r.MinSecretLength = d.MinSecretLength
	}
	if r.MaxSecretLength <= 0 || r.MaxSecretLength > auth.MaxSecretLength {
		r.MaxSecretLength = d.MaxSecretLength
	}
	return r
}

var (
	cancelWords   = set("cancel", "stop", "quit", "reset", "abort")
	greetingWords = set("hi", "hello", "hey", "help", "menu", "start", "namaste", "hola", "good morning", "good evening")
	statusWords   = set("status", "track", "check", "lookup")
	filingWords   = set("complaint", "complain", "report", "file", "issue", "problem", "grievance", "new")
)

// Input is a classified message.
type Input struct {
	Class InputClass
	// Text is the message with surrounding whitespace removed.
	Text string
	// Ref is the complaint id found in the message, canonicalized.
	Ref string
	// Secret is the secret supplied with a withdraw command.
	Secret string
}

// ClassifyInput buckets text. It depends only on the text and rules, never on state.
func ClassifyInput(text string, rules Rules) Input {
	rules = rules.withDefaults()
	in := Input{Text: strings.TrimSpace(text)}
	if in.Text == "" {
		in.Class = InputEmpty
		return in
	}

	words := wordsOf(in.Text)
	phrase := strings.Join(words, " ")
	short := len([]rune(in.Text)) < rules.MinDescriptionLength

	if cancelWords[phrase] {
		in.Class = InputCancel
		return in
	}

	raw := strings.Fields(in.Text)
	if strings.EqualFold(strings.TrimPrefix(raw[0], "/"), "withdraw") {
		in.Class = InputWithdrawRequest
		if len(raw) == 3 {
			if ref, ok := domain.CanonicalPublicID(raw[1]); ok {
				in.Ref, in.Secret = ref, raw[2]
			}
		}
		return in
	}

	if ref, ok := refIn(raw); ok {
		in.Class = InputComplaintID
		in.Ref = ref
		return in
	}

	switch {
	case greetingWords[phrase] || (short && len(words) > 0 && greetingWords[words[0]]):
		in.Class = InputGreeting
	case len(words) > 0 && statusWords[words[0]], short && anyOf(words, statusWords):
		in.Class = InputStatusRequest
	case !short || anyOf(words, filingWords):
		in.Class = InputFiling
	default:
		in.Class = InputOther
	}
	return in
}

// refIn finds a complaint id in a message of at most a few tokens, such as
// "CMP-1A2B3C4D" or "status of CMP-1A2B3C4D".
func refIn(raw []string) (string, bool) {
	if len(raw) > 4 {
		return "", false
	}
	for _, tok := range raw {
		if ref, ok := domain.CanonicalPublicID(strings.Trim(tok, ".,!?:;\"'()")); ok {
			return ref, true
		}
	}
	return "", false
}

func wordsOf(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func anyOf(words []string, vocab map[string]bool) bool {
	for _, w := range words {
		if vocab[w] {
			return true
		}
	}
	return false
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
