package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/internal/events"
)

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func writeEvent(w http.ResponseWriter, id, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	return nil
}

// currentViews returns the present state of every view as updates, so a new subscriber
// does not wait for the next cycle.
func (s *Server) currentViews() []events.ViewUpdate {
	now := s.view.UpdatedAt()
	return []events.ViewUpdate{
		{Kind: events.KindPortfolio, Timestamp: now, Data: s.view.Portfolio()},
		{Kind: events.KindOrders, Timestamp: now, Data: s.view.Orders()},
		{Kind: events.KindPositions, Timestamp: now, Data: s.view.Positions()},
	}
}

func (s *Server) handleViewStream(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("view stream not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.updates.Subscribe()
	defer s.updates.Unsubscribe(sub)

	sseHeaders(w)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for _, u := range s.currentViews() {
		if err := writeEvent(w, "", string(u.Kind), u); err != nil {
			s.logger.Error("view stream initial state", zap.Error(err))
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case u, ok := <-sub:
			if !ok {
				return
			}
			if err := writeEvent(w, "", string(u.Kind), u); err != nil {
				s.logger.Warn("view stream encode", zap.String("kind", string(u.Kind)), zap.Error(err))
				continue
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleJournalStream(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("signal journal not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sseHeaders(w)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	lastIndex := s.parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	sendEvents := func() error {
		records, err := s.journal.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := writeEvent(w, strconv.FormatUint(record.Index, 10), "signal", record.Event); err != nil {
				return err
			}
			lastIndex = record.Index
		}
		if len(records) > 0 {
			flusher.Flush()
		}
		return nil
	}

	if err := sendEvents(); err != nil {
		http.Error(w, "failed to load signal journal", http.StatusInternalServerError)
		s.logger.Error("journal stream initial load", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				s.logger.Warn("journal stream poll", zap.Error(err))
			}
		}
	}
}

// parseLastEventID reads the resume index from the Last-Event-ID header, falling back to the
// query parameter.
func (s *Server) parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		s.logger.Debug("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}
