package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/view"
)

const (
	defaultHistoryLimit = 500
	maxHistoryLimit     = 5000
	keepRecentPoints    = 100
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type signalsResponse struct {
	Preset  domain.Preset         `json:"preset"`
	Risk    domain.RiskMode       `json:"risk"`
	Signals []domain.SignalResult `json:"signals"`
}

type rulesResponse struct {
	Default domain.StrategyRule   `json:"default"`
	Rules   []domain.StrategyRule `json:"rules"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if at := s.view.UpdatedAt(); !at.IsZero() {
		resp.UpdatedAt = &at
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view.Portfolio())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view.Orders())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view.Positions())
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, rulesResponse{
		Default: s.view.DefaultRule(),
		Rules:   domain.Rules(),
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	preset, risk, err := s.ruleFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	set, err := s.view.Signals(preset, risk)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	results := make([]domain.SignalResult, 0, len(set))
	for _, res := range set {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })

	s.writeJSON(w, http.StatusOK, signalsResponse{Preset: preset, Risk: risk, Signals: results})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	preset, risk, err := s.ruleFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.view.Signal(chi.URLParam(r, "symbol"), preset, risk)
	switch {
	case errors.Is(err, view.ErrUnknownSymbol):
		s.writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("portfolio history not available"))
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, errors.Errorf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.Latest(limit)
	if err != nil {
		s.logger.Error("load portfolio history", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to load portfolio history"))
		return
	}

	points := make([]domain.PortfolioPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, rec.Event)
	}
	s.writeJSON(w, http.StatusOK, thinPoints(points, keepRecentPoints))
}

// ruleFromQuery reads preset and risk from the query, defaulting each to the context's rule.
func (s *Server) ruleFromQuery(r *http.Request) (domain.Preset, domain.RiskMode, error) {
	def := s.view.DefaultRule()
	preset, risk := def.Preset, def.Risk

	q := r.URL.Query()
	if raw := q.Get("preset"); raw != "" {
		p, err := domain.ParsePreset(raw)
		if err != nil {
			return "", "", err
		}
		preset = p
	}
	if raw := q.Get("risk"); raw != "" {
		rm, err := domain.ParseRiskMode(raw)
		if err != nil {
			return "", "", err
		}
		risk = rm
	}
	return preset, risk, nil
}

// thinPoints keeps the most recent keep points and exponentially thins the older ones.
func thinPoints(points []domain.PortfolioPoint, keep int) []domain.PortfolioPoint {
	if len(points) <= keep {
		return points
	}

	older := points[:len(points)-keep]
	var thinned []domain.PortfolioPoint
	step := 2
	taken := 0
	for i := len(older) - 1; i >= 0; i -= step {
		thinned = append(thinned, older[i])
		taken++
		if taken%12 == 0 {
			step *= 2
		}
	}
	for i, j := 0, len(thinned)-1; i < j; i, j = i+1, j-1 {
		thinned[i], thinned[j] = thinned[j], thinned[i]
	}

	return append(thinned, points[len(points)-keep:]...)
}
