package vet_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/mock"
	"github.com/fwojciec/leadscout/vet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelVetter_Decide(t *testing.T) {
	t.Parallel()

	t.Run("classifies a content hash at most once", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		m := &vet.ModelVetter{
			Classifier: &mock.Classifier{
				ClassifyFn: func(_ context.Context, domain, industry, _ string) (*leadscout.Classification, error) {
					calls.Add(1)
					assert.Equal(t, "shop.example", domain)
					assert.Equal(t, "goalkeeper gloves", industry)
					return &leadscout.Classification{Decision: leadscout.DecisionAccept, Rationale: "sells gloves", Confidence: 0.9}, nil
				},
			},
			Records: newMemRecords().service(),
		}
		c := content(gardenHTML)

		rec, cached, err := m.Decide(context.Background(), c, "goalkeeper gloves")
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, leadscout.DecisionAccept, rec.Decision)
		assert.Equal(t, c.Hash, rec.ContentHash)
		assert.Equal(t, leadscout.StageModel, rec.Stage)

		rec, cached, err = m.Decide(context.Background(), c, "goalkeeper gloves")
		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, "sells gloves", rec.Rationale)
		assert.Equal(t, int32(1), calls.Load())

		changed := content(shopHTML)
		changed.Domain = c.Domain
		_, cached, err = m.Decide(context.Background(), changed, "goalkeeper gloves")
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("retries model errors a bounded number of times", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		m := &vet.ModelVetter{
			Classifier: &mock.Classifier{
				ClassifyFn: func(context.Context, string, string, string) (*leadscout.Classification, error) {
					if calls.Add(1) < 3 {
						return nil, leadscout.Errorf(leadscout.EMODEL, "malformed answer")
					}
					return &leadscout.Classification{Decision: leadscout.DecisionReject}, nil
				},
			},
			Records:     newMemRecords().service(),
			RetryDelays: []time.Duration{},
		}

		rec, _, err := m.Decide(context.Background(), content(gardenHTML), "gloves")
		require.NoError(t, err)
		assert.Equal(t, leadscout.DecisionReject, rec.Decision)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("retries a classification that hangs past the call timeout", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		m := &vet.ModelVetter{
			Classifier: &mock.Classifier{
				ClassifyFn: func(ctx context.Context, _, _, _ string) (*leadscout.Classification, error) {
					if calls.Add(1) == 1 {
						<-ctx.Done()
						return nil, ctx.Err()
					}
					return &leadscout.Classification{Decision: leadscout.DecisionAccept}, nil
				},
			},
			Records:     newMemRecords().service(),
			RetryDelays: []time.Duration{},
			CallTimeout: 20 * time.Millisecond,
		}

		rec, _, err := m.Decide(context.Background(), content(gardenHTML), "gloves")
		require.NoError(t, err)
		assert.Equal(t, leadscout.DecisionAccept, rec.Decision)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		records := newMemRecords()
		m := &vet.ModelVetter{
			Classifier: &mock.Classifier{
				ClassifyFn: func(context.Context, string, string, string) (*leadscout.Classification, error) {
					calls.Add(1)
					return &leadscout.Classification{Decision: leadscout.DecisionUnclear}, nil
				},
			},
			Records:     records.service(),
			Retries:     2,
			RetryDelays: []time.Duration{},
		}

		_, _, err := m.Decide(context.Background(), content(gardenHTML), "gloves")
		assert.Equal(t, leadscout.EMODEL, leadscout.ErrorCode(err))
		assert.Equal(t, int32(3), calls.Load())
		assert.Zero(t, records.count())
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		m := &vet.ModelVetter{
			Classifier: &mock.Classifier{
				ClassifyFn: func(context.Context, string, string, string) (*leadscout.Classification, error) {
					calls.Add(1)
					return nil, leadscout.Errorf(leadscout.EINVALID, "api key missing")
				},
			},
			Records:     newMemRecords().service(),
			RetryDelays: []time.Duration{},
		}

		_, _, err := m.Decide(context.Background(), content(gardenHTML), "gloves")
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("trims content to MaxChars", func(t *testing.T) {
		t.Parallel()

		m := &vet.ModelVetter{
			Classifier: &mock.Classifier{
				ClassifyFn: func(_ context.Context, _, _, text string) (*leadscout.Classification, error) {
					assert.Len(t, text, 10)
					return &leadscout.Classification{Decision: leadscout.DecisionAccept}, nil
				},
			},
			Records:  newMemRecords().service(),
			MaxChars: 10,
		}

		_, _, err := m.Decide(context.Background(), content(shopHTML), "gloves")
		require.NoError(t, err)
	})
}
