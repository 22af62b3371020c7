// Package journal persists append-only event streams in a write-ahead log.
package journal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultSegmentLimit = 1000
	defaultMaxSegments  = 100
)

// ErrNotInitialized returned by calls on a nil or closed store.
var ErrNotInitialized = errors.New("journal is not initialized")

// Config locates a journal on disk.
type Config struct {
	Dir              string
	Prefix           string
	SegmentThreshold int
	MaxSegments      int
}

// Record is an event together with its WAL index.
type Record[T any] struct {
	Index uint64 `json:"index"`
	Event T      `json:"event"`
}

// WALStore persists events of type T in a WAL. Keys are prefixed so foreign entries are skipped
// on read.
type WALStore[T any] struct {
	wal    *gowal.Wal
	prefix string
	mu     sync.RWMutex
}

// NewWALStore opens or creates the WAL described by cfg.
func NewWALStore[T any](cfg Config) (*WALStore[T], error) {
	if cfg.Dir == "" {
		return nil, errors.New("journal dir is required")
	}
	if cfg.Prefix == "" {
		return nil, errors.New("journal prefix is required")
	}
	if cfg.SegmentThreshold <= 0 {
		cfg.SegmentThreshold = defaultSegmentLimit
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = defaultMaxSegments
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              cfg.Dir,
		Prefix:           cfg.Prefix,
		SegmentThreshold: cfg.SegmentThreshold,
		MaxSegments:      cfg.MaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "init %s WAL", cfg.Prefix)
	}

	return &WALStore[T]{wal: wal, prefix: cfg.Prefix}, nil
}

// Save appends event under key and returns its index.
func (s *WALStore[T]) Save(key string, event T) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, ErrNotInitialized
	}
	if key == "" {
		return 0, errors.New("journal key is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, errors.Wrap(err, "marshal journal event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(next, s.prefix+key, payload); err != nil {
		return 0, errors.Wrapf(err, "write journal event %d", next)
	}
	return next, nil
}

// EventsAfter returns all events written after index, oldest first.
func (s *WALStore[T]) EventsAfter(index uint64) ([]Record[T], error) {
	if s == nil || s.wal == nil {
		return nil, ErrNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record[T], 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, ok := s.wal.Get(idx)
		if !ok || !strings.HasPrefix(key, s.prefix) {
			continue
		}
		var event T
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrapf(err, "decode journal event %d", idx)
		}
		records = append(records, Record[T]{Index: idx, Event: event})
	}

	return records, nil
}

// Latest returns up to n most recent events, oldest first.
func (s *WALStore[T]) Latest(n int) ([]Record[T], error) {
	if n <= 0 {
		return nil, nil
	}
	current := s.CurrentIndex()
	var after uint64
	if current > uint64(n) {
		after = current - uint64(n)
	}
	return s.EventsAfter(after)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore[T]) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore[T]) Close() error {
	if s == nil || s.wal == nil {
		return ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
