package web

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// allowOrigin accepts the configured origin, or any loopback origin when the configured one is
// loopback. Requests without an Origin header come from non-browser clients and pass.
func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if reqOrigin == "" {
		return true
	}
	if strings.EqualFold(reqOrigin, origin) {
		return true
	}
	return isLoopback(origin) && isLoopback(reqOrigin)
}

func isLoopback(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	switch host := strings.ToLower(u.Hostname()); host {
	case "localhost", "::1":
		return true
	default:
		return strings.HasPrefix(host, "127.") && net.ParseIP(host) != nil
	}
}

// handleWS pushes the current views and then every view update to the client.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		http.Error(w, "view stream not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.updates.Subscribe()
	defer s.updates.Unsubscribe(sub)

	// clients never send anything meaningful; reading detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, u := range s.currentViews() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(u); err != nil {
			return
		}
	}

	for {
		select {
		case u, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(u); err != nil {
				s.logger.Debug("websocket write", zap.Error(err))
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
