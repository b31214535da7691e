package vet

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/leadscout"
	"golang.org/x/time/rate"
)

// Model stage defaults.
const (
	DefaultMaxChars     = 8000
	DefaultModelRetries = 3
)

// DefaultModelRetryDelays are the waits between model attempts.
var DefaultModelRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// ModelVetter classifies unclear domains with a language model. Decisions
// are cached by (domain, content hash): unchanged content never reaches the
// model twice.
type ModelVetter struct {
	Classifier leadscout.Classifier
	Records    leadscout.VettingService
	// Limiter paces model calls across all domains.
	Limiter     *rate.Limiter
	Retries     int
	RetryDelays []time.Duration
	// CallTimeout bounds each model call. Zero means
	// leadscout.DefaultModelTimeout.
	CallTimeout time.Duration
	// MaxChars trims content sent to the model.
	MaxChars int
}

// Decide returns the model decision for content, from the cache when the
// content hash was classified before. The bool reports a cache hit.
func (m *ModelVetter) Decide(ctx context.Context, c *Content, industry string) (*leadscout.VettingRecord, bool, error) {
	rec, err := m.Records.FindVetting(ctx, c.Domain, c.Hash, leadscout.StageModel)
	if err == nil {
		return rec, true, nil
	}
	if leadscout.ErrorCode(err) != leadscout.ENOTFOUND {
		return nil, false, err
	}

	text := c.Text
	if limit := m.maxChars(); len(text) > limit {
		text = strings.ToValidUTF8(text[:limit], "")
	}

	cls, err := m.classify(ctx, c.Domain, industry, text)
	if err != nil {
		return nil, false, err
	}

	rec = &leadscout.VettingRecord{
		Domain:      c.Domain,
		ContentHash: c.Hash,
		Stage:       leadscout.StageModel,
		Decision:    cls.Decision,
		Rationale:   cls.Rationale,
		Score:       cls.Confidence,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.Records.SaveVetting(ctx, rec); err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

// classify calls the model, retrying EMODEL and ETRANSIENT failures.
func (m *ModelVetter) classify(ctx context.Context, domain, industry, text string) (*leadscout.Classification, error) {
	delays := m.RetryDelays
	if delays == nil {
		delays = DefaultModelRetryDelays
	}
	retries := m.Retries
	if retries <= 0 {
		retries = DefaultModelRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 && len(delays) > 0 {
			delay := delays[min(attempt-1, len(delays)-1)]
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if m.Limiter != nil {
			if err := m.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		cls, err := leadscout.CallModel(ctx, m.CallTimeout, func(ctx context.Context) (*leadscout.Classification, error) {
			return m.Classifier.Classify(ctx, domain, industry, text)
		})
		if err == nil && cls.Decision != leadscout.DecisionAccept && cls.Decision != leadscout.DecisionReject {
			err = leadscout.Errorf(leadscout.EMODEL, "model answered %q for %s", cls.Decision, domain)
		}
		if err == nil {
			return cls, nil
		}
		lastErr = err
		if code := leadscout.ErrorCode(err); code != leadscout.EMODEL && code != leadscout.ETRANSIENT {
			return nil, err
		}
	}
	return nil, lastErr
}

func (m *ModelVetter) maxChars() int {
	if m.MaxChars > 0 {
		return m.MaxChars
	}
	return DefaultMaxChars
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
