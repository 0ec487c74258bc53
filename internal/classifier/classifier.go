// Package classifier maps free complaint text to a category, priority and
// validity verdict. Implementations are interchangeable behind Classifier.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/observability"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// Classifier judges complaint text.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (domain.ClassifierOutput, error)
}

// Fallback is the verdict used when a classifier fails or times out.
func Fallback() domain.ClassifierOutput {
	return domain.ClassifierOutput{
		Category: domain.CategoryOther,
		Priority: domain.PriorityMedium,
		Valid:    true,
		Provider: "fallback",
		Fallback: true,
	}
}

type bounded struct {
	inner   Classifier
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Bounded wraps inner so every call returns within timeout. A deadline yields
// ErrClassificationTimeout and any other failure ErrClassificationFailure.
func Bounded(inner Classifier, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &bounded{inner: inner, timeout: timeout, metrics: metrics, logger: logger}
}

func (b *bounded) Name() string { return b.inner.Name() }

type outcome struct {
	out domain.ClassifierOutput
	err error
}

func (b *bounded) Classify(ctx context.Context, text string) (domain.ClassifierOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("classifier panic: %v", r)}
			}
		}()
		out, err := b.inner.Classify(ctx, text)
		done <- outcome{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return b.timedOut()
			}
			b.metrics.RecordClassification(b.inner.Name(), "error")
			b.logger.Warn("classifier failed", zap.String("provider", b.inner.Name()), zap.Error(res.err))
			return domain.ClassifierOutput{}, fmt.Errorf("%s: %w: %v", b.inner.Name(), apperrors.ErrClassificationFailure, res.err)
		}
		b.metrics.RecordClassification(b.inner.Name(), "ok")
		res.out.Provider = b.inner.Name()
		return res.out, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return b.timedOut()
		}
		b.metrics.RecordClassification(b.inner.Name(), "error")
		return domain.ClassifierOutput{}, fmt.Errorf("%s: %w: %v", b.inner.Name(), apperrors.ErrClassificationFailure, ctx.Err())
	}
}

func (b *bounded) timedOut() (domain.ClassifierOutput, error) {
	b.metrics.RecordClassification(b.inner.Name(), "timeout")
	b.logger.Warn("classifier timed out", zap.String("provider", b.inner.Name()), zap.Duration("timeout", b.timeout))
	return domain.ClassifierOutput{}, fmt.Errorf("%s: %w", b.inner.Name(), apperrors.ErrClassificationTimeout)
}
