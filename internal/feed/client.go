package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/pkg/retrier"
)

const maxResponseBytes = 8 << 20

// ClientConfig addresses the backend endpoints.
type ClientConfig struct {
	BaseURL      string
	SnapshotPath string
	LivePath     string
	OrdersPath   string
	Token        string
	Timeout      time.Duration
}

// Client fetches snapshot, live state and legacy orders over HTTP.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	retrier    *retrier.Retrier
	logger     *zap.Logger
}

// NewClient creates a feed client. Retry options override the defaults.
func NewClient(cfg ClientConfig, logger *zap.Logger, opts ...retrier.Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	opts = append([]retrier.Option{retrier.WithOnRetry(func(attempt int, err error) {
		c.logger.Debug("retrying feed request", zap.Int("attempt", attempt), zap.Error(err))
	})}, opts...)
	c.retrier = retrier.New(opts...)

	return c
}

// FetchSnapshot fetches the cached snapshot.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	body, err := c.get(ctx, c.cfg.SnapshotPath)
	if err != nil {
		return nil, errors.Wrap(err, "fetch snapshot")
	}

	snap, err := DecodeSnapshot(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return snap, nil
}

// FetchLive fetches the full live state.
func (c *Client) FetchLive(ctx context.Context) (*LiveState, error) {
	body, err := c.get(ctx, c.cfg.LivePath)
	if err != nil {
		return nil, errors.Wrap(err, "fetch live state")
	}

	state, err := DecodeLiveState(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode live state")
	}
	if state.Malformed > 0 {
		c.logger.Warn("live state contained malformed records", zap.Int("dropped", state.Malformed))
	}
	return state, nil
}

// FetchOrders fetches the legacy order list.
func (c *Client) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	body, err := c.get(ctx, c.cfg.OrdersPath)
	if err != nil {
		return nil, errors.Wrap(err, "fetch orders")
	}

	orders, err := DecodeOrders(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, retrier.Permanent(errors.Wrap(err, "failed to create HTTP request"))
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrap(ErrSourceUnavailable, err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, errors.Wrap(ErrSourceUnavailable, err.Error())
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := errors.Wrapf(ErrSourceUnavailable, "%s returned status %d", path, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, retrier.Permanent(statusErr)
			}
			return nil, statusErr
		}

		return body, nil
	})
}
