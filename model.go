package leadscout

import (
	"context"
	"errors"
	"time"
)

// DefaultModelTimeout bounds a single language model call.
const DefaultModelTimeout = 2 * time.Minute

// CallModel runs fn under a per-call deadline. A zero timeout means
// DefaultModelTimeout and a negative one disables the deadline. A deadline
// that expires while ctx is still live is returned as EMODEL, so callers
// retry it like any other failed invocation.
func CallModel[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout == 0 {
		timeout = DefaultModelTimeout
	}
	if timeout < 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, Errorf(EMODEL, "model call timed out after %s", timeout)
	}
	return v, err
}
