package leadscout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallModel(t *testing.T) {
	t.Parallel()

	t.Run("returns the result of a call that finishes in time", func(t *testing.T) {
		t.Parallel()

		v, err := leadscout.CallModel(context.Background(), time.Second, func(context.Context) (string, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("reports an expired call as a model error", func(t *testing.T) {
		t.Parallel()

		_, err := leadscout.CallModel(context.Background(), 10*time.Millisecond, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		assert.Equal(t, leadscout.EMODEL, leadscout.ErrorCode(err))
		assert.Contains(t, leadscout.ErrorMessage(err), "timed out")
	})

	t.Run("keeps cancellation of the caller", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := leadscout.CallModel(ctx, time.Second, func(ctx context.Context) (string, error) {
			return "", ctx.Err()
		})
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("negative timeout passes the caller context through", func(t *testing.T) {
		t.Parallel()

		_, err := leadscout.CallModel(context.Background(), -1, func(ctx context.Context) (bool, error) {
			_, ok := ctx.Deadline()
			assert.False(t, ok)
			return true, nil
		})
		require.NoError(t, err)
	})
}
