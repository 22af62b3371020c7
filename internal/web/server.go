// Package web exposes the derived views over HTTP: JSON queries, SSE streams and a WebSocket push.
package web

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/events"
	"github.com/vadiminshakov/tradelens/internal/storage/journal"
	"github.com/vadiminshakov/tradelens/internal/view"
)

const (
	DefaultAddr = ":8080"

	journalPollInterval = 2 * time.Second
	heartbeatInterval   = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
)

type signalJournal interface {
	EventsAfter(index uint64) ([]journal.Record[domain.SignalEvent], error)
}

type historyReader interface {
	Latest(n int) ([]journal.Record[domain.PortfolioPoint], error)
}

// Config wires the server to the view store and its streams.
type Config struct {
	Addr    string
	View    *view.Context
	Updates *events.Broadcaster[events.ViewUpdate]
	Journal signalJournal
	History historyReader
	// Origin allowed to open WebSocket connections; "*" allows any.
	Origin string
}

// Server serves read-only queries against the view context.
type Server struct {
	addr     string
	view     *view.Context
	updates  *events.Broadcaster[events.ViewUpdate]
	journal  signalJournal
	history  historyReader
	origin   string
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Origin == "" {
		cfg.Origin = "*"
	}
	s := &Server{
		addr:    cfg.Addr,
		view:    cfg.View,
		updates: cfg.Updates,
		journal: cfg.Journal,
		history: cfg.History,
		origin:  cfg.Origin,
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, s.origin) },
	}
	return s
}

// Handler returns the router with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/portfolio/history", s.handlePortfolioHistory)
		r.Get("/orders", s.handleOrders)
		r.Get("/positions", s.handlePositions)
		r.Get("/rules", s.handleRules)
		r.Get("/signals", s.handleSignals)
		r.Get("/signals/journal/stream", s.handleJournalStream)
		r.Get("/signals/{symbol}", s.handleSignal)
		r.Get("/stream", s.handleViewStream)
	})
	r.Get("/ws", s.handleWS)

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// StartWithAutoTLS serves over HTTPS with certificates obtained from Let's Encrypt for domains.
// A plain HTTP listener on :80 answers ACME challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme server failed", zap.Error(err))
		}
	}()

	s.logger.Info("web server listening with auto TLS",
		zap.String("addr", s.addr),
		zap.Strings("domains", domains),
	)
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen tls")
	}
	return nil
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
