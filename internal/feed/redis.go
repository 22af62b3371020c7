package feed

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisGetter is the subset of the redis client used by RedisSnapshotSource.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSnapshotSource reads the snapshot the backend caches in redis.
type RedisSnapshotSource struct {
	client redisGetter
	key    string
}

// NewRedisSnapshotSource creates a snapshot source reading key.
func NewRedisSnapshotSource(client redisGetter, key string) *RedisSnapshotSource {
	return &RedisSnapshotSource{client: client, key: key}
}

// NewRedisClient connects to a redis server.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// FetchSnapshot reads and decodes the cached snapshot. A missing key is an empty snapshot.
func (s *RedisSnapshotSource) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	body, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Snapshot{Empty: true}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "redis get %s: %v", s.key, err)
	}

	snap, err := DecodeSnapshot(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode cached snapshot")
	}
	return snap, nil
}
