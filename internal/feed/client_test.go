package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/pkg/retrier"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		BaseURL:      srv.URL,
		SnapshotPath: "/api/snapshot",
		LivePath:     "/api/live-state",
		OrdersPath:   "/api/orders",
		Token:        "secret",
		Timeout:      time.Second,
	}, zap.NewNop(), retrier.WithMaxRetries(2), retrier.WithInitialInterval(time.Millisecond))
}

func TestClient_FetchLive(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/live-state", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(liveFixture))
	})

	state, err := client.FetchLive(context.Background())
	require.NoError(t, err)
	require.Len(t, state.OpenOrders, 2)
}

func TestClient_FetchSnapshot(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/snapshot", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": {}, "empty": false, "stale": false, "last_updated_at": "2026-01-02T10:00:00Z"}`))
	})

	snap, err := client.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.True(t, snap.HasData())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"orders": []}`))
	})

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)
	require.EqualValues(t, 3, calls.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchLive(context.Background())
	require.True(t, errors.Is(err, ErrSourceUnavailable))
	require.EqualValues(t, 1, calls.Load())
}

func TestClient_MalformedBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.FetchLive(context.Background())
	require.True(t, errors.Is(err, ErrMalformedSource))
}
