package intake

import (
	"errors"
	"unicode/utf8"

	"github.com/civicdesk/grievance-service/internal/domain"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// Effect is the side effect a transition asks the engine to perform.
type Effect string

const (
	EffectNone            Effect = ""
	EffectClassify        Effect = "classify"
	EffectLookupStatus    Effect = "lookup_status"
	EffectCreateComplaint Effect = "create_complaint"
	EffectWithdraw        Effect = "withdraw"
)

// Step is the outcome of a transition. When Effect is not EffectNone, Next
// equals the current session and the matching After function computes the
// final step from the effect's result.
type Step struct {
	Input  Input
	Next   *Session
	Reply  string
	Effect Effect
}

// Transition decides the next dialogue step for text received in session s.
// It is pure: s is not modified and no I/O happens.
func Transition(s *Session, text string, rules Rules) Step {
	rules = rules.withDefaults()
	in := ClassifyInput(text, rules)
	step := Step{Input: in, Next: s.Clone()}
	next := step.Next

	if in.Class == InputCancel {
		next.reset()
		step.Reply = replyCancelled
		return step
	}

	switch s.State {
	case StateIdle:
		idle(&step, rules)
	case StateCollectingDescription:
		if in.Class == InputEmpty {
			step.Reply = replyDescriptionAgain
			return step
		}
		step.Effect = EffectClassify
	case StateCollectingLocation:
		if in.Class == InputEmpty {
			step.Reply = replyAskLocationAgain
			return step
		}
		next.Draft.Location = in.Text
		next.State = StateCollectingSecret
		step.Reply = replyAskSecret(rules)
	case StateCollectingSecret:
		if utf8.RuneCountInString(in.Text) < rules.MinSecretLength || len(in.Text) > rules.MaxSecretLength {
			step.Reply = replySecretLength(rules)
			return step
		}
		step.Effect = EffectCreateComplaint
	case StateAwaitingComplaintID:
		if in.Class != InputComplaintID {
			step.Reply = replyComplaintIDAgain
			return step
		}
		step.Effect = EffectLookupStatus
	default:
		next.reset()
		step.Reply = replyFallback
	}
	return step
}

func idle(step *Step, rules Rules) {
	in, next := step.Input, step.Next
	switch in.Class {
	case InputGreeting:
		step.Reply = replyGreeting
	case InputComplaintID:
		step.Effect = EffectLookupStatus
	case InputStatusRequest:
		next.State = StateAwaitingComplaintID
		step.Reply = replyAskComplaintID
	case InputWithdrawRequest:
		if in.Ref == "" {
			step.Reply = replyWithdrawUsage
			return
		}
		step.Effect = EffectWithdraw
	case InputFiling:
		if utf8.RuneCountInString(in.Text) < rules.MinDescriptionLength {
			next.State = StateCollectingDescription
			step.Reply = replyAskDescription
			return
		}
		step.Effect = EffectClassify
	default:
		step.Reply = replyFallback
	}
}

// AfterClassification completes an EffectClassify step.
func AfterClassification(s *Session, in Input, out domain.ClassifierOutput) Step {
	next := s.Clone()
	step := Step{Input: in, Next: next}
	if !out.Valid {
		next.State = StateCollectingDescription
		next.Draft = Draft{Key: s.Draft.Key}
		step.Reply = replyDescriptionAgain
		return step
	}
	out.Category = domain.NormalizeCategory(string(out.Category))
	if !out.Priority.Valid() {
		out.Priority = domain.PriorityMedium
	}
	next.Draft = Draft{Key: s.Draft.Key, Description: in.Text, Classification: &out}
	next.State = StateCollectingLocation
	step.Reply = replyAckAndAskLocation(out)
	return step
}

// AfterLookup completes an EffectLookupStatus step. A missing complaint ends
// the lookup; a store failure leaves the session where it was.
func AfterLookup(s *Session, in Input, c *domain.Complaint, err error) Step {
	next := s.Clone()
	step := Step{Input: in, Next: next}
	switch {
	case err == nil:
		next.reset()
		step.Reply = renderStatus(c)
	case errors.Is(err, apperrors.ErrNotFound):
		next.reset()
		step.Reply = replyNotFound
	default:
		step.Reply = replyStoreUnavailable
	}
	return step
}

// AfterCreate completes an EffectCreateComplaint step. Only success resets
// the session, so a failed write can be retried with the same secret.
func AfterCreate(s *Session, in Input, c *domain.Complaint, err error) Step {
	next := s.Clone()
	step := Step{Input: in, Next: next}
	if err != nil {
		step.Reply = replyStoreUnavailable
		return step
	}
	next.reset()
	step.Reply = replyCreated(c)
	return step
}

// AfterWithdraw completes an EffectWithdraw step.
func AfterWithdraw(s *Session, in Input, c *domain.Complaint, err error) Step {
	step := Step{Input: in, Next: s.Clone()}
	switch {
	case err == nil:
		step.Reply = replyWithdrawn(c)
	case errors.Is(err, apperrors.ErrNotFound):
		step.Reply = replyNotFound
	case errors.Is(err, apperrors.ErrAuthFailure):
		step.Reply = replyIncorrectSecret
	case errors.Is(err, apperrors.ErrComplaintClosed):
		step.Reply = replyClosed(in.Ref)
	case errors.Is(err, apperrors.ErrTooManyAttempts):
		step.Reply = replyTooManyAttempts
	default:
		step.Reply = replyStoreUnavailable
	}
	return step
}
