package feed

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func TestRedisSnapshotSource(t *testing.T) {
	ctx := context.Background()

	t.Run("cached snapshot", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Get", ctx, "tradelens:snapshot").
			Return(redis.NewStringResult(`{"data": {"bot_status": "idle"}, "empty": false}`, nil))

		snap, err := NewRedisSnapshotSource(client, "tradelens:snapshot").FetchSnapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, "idle", snap.Data.BotStatus)
		client.AssertExpectations(t)
	})

	t.Run("missing key", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Get", ctx, "k").Return(redis.NewStringResult("", redis.Nil))

		snap, err := NewRedisSnapshotSource(client, "k").FetchSnapshot(ctx)
		require.NoError(t, err)
		require.False(t, snap.HasData())
	})

	t.Run("connection error", func(t *testing.T) {
		client := &mockRedis{}
		client.On("Get", ctx, "k").Return(redis.NewStringResult("", errors.New("dial tcp: refused")))

		_, err := NewRedisSnapshotSource(client, "k").FetchSnapshot(ctx)
		require.True(t, errors.Is(err, ErrSourceUnavailable))
	})
}
