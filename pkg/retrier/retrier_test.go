package retrier

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrier_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		attempts := 0
		err := New().Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after retries", func(t *testing.T) {
		r := New(WithMaxRetries(3), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("fail")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var retried []int
		r := New(
			WithMaxRetries(2),
			WithInitialInterval(time.Millisecond),
			WithOnRetry(func(attempt int, err error) { retried = append(retried, attempt) }),
		)
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("fail")
		})
		assert.EqualError(t, err, "fail")
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		sentinel := errors.New("bad payload")
		r := New(WithMaxRetries(5), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return Permanent(sentinel)
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})
}

func TestRetrier_Backoff(t *testing.T) {
	r := New(WithInitialInterval(time.Second), WithMaxInterval(3*time.Second), WithJitter(0))

	require.Equal(t, 2*time.Second, r.next(time.Second))
	require.Equal(t, 3*time.Second, r.next(2*time.Second))
	require.Equal(t, time.Second, r.withJitter(time.Second))
}

func TestRetrier_DoWithData(t *testing.T) {
	val, err := DoWithData(New(), context.Background(), func(ctx context.Context) (string, error) {
		return "snapshot", nil
	})
	require.NoError(t, err)
	require.Equal(t, "snapshot", val)

	r := New(WithMaxRetries(1), WithInitialInterval(time.Millisecond))
	val, err = DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("fail")
	})
	require.Error(t, err)
	require.Empty(t, val)

	require.Nil(t, Permanent(nil))
}
