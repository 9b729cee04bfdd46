package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
)

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrPaused):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotConfigured),
		errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrLevelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyConfigured),
		errors.Is(err, domain.ErrAlreadyInitialized):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Owner      string          `json:"owner"`
		Paused     bool            `json:"paused"`
		LevelCount int             `json:"level_count"`
		BalanceA   decimal.Decimal `json:"balance_a"`
		BalanceB   decimal.Decimal `json:"balance_b"`
		Price      decimal.Decimal `json:"price,omitempty"`
		PriceError string          `json:"price_error,omitempty"`
	}

	st := status{
		Owner:      s.service.Owner(),
		Paused:     s.service.Paused(),
		LevelCount: s.service.LevelCount(),
		BalanceA:   s.service.BalanceA(),
		BalanceB:   s.service.BalanceB(),
	}
	if price, err := s.service.CurrentPrice(r.Context()); err != nil {
		st.PriceError = err.Error()
	} else {
		st.Price = price
	}
	s.writeJSON(w, st)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.GridConfig()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, cfg)
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.service.Levels())
}

func (s *Server) levelIndex(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("index"))
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	index, err := s.levelIndex(r)
	if err != nil {
		http.Error(w, "invalid level index", http.StatusBadRequest)
		return
	}
	lvl, err := s.service.Level(index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, lvl)
}

func (s *Server) handleActivateLevel(w http.ResponseWriter, r *http.Request) {
	s.handleSetActive(w, r, true)
}

func (s *Server) handleDeactivateLevel(w http.ResponseWriter, r *http.Request) {
	s.handleSetActive(w, r, false)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request, active bool) {
	index, err := s.levelIndex(r)
	if err != nil {
		http.Error(w, "invalid level index", http.StatusBadRequest)
		return
	}
	if err := s.service.SetLevelActive(r.Context(), s.operator, index, active); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetCooldown(w http.ResponseWriter, r *http.Request) {
	index, err := s.levelIndex(r)
	if err != nil {
		http.Error(w, "invalid level index", http.StatusBadRequest)
		return
	}
	if err := s.service.ResetLevelCooldown(r.Context(), s.operator, index); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// listLimit parses the limit query parameter, falling back to the
// default and capping at maxListLimit.
func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.ListExecutions(r.Context(), listLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, recs)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.repo.ListReports(r.Context(), listLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, reports)
}

func (s *Server) handleCheckUpkeep(w http.ResponseWriter, r *http.Request) {
	needed, payload, err := s.service.CheckUpkeep(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{"needed": needed}
	if len(payload) > 0 {
		resp["payload"] = json.RawMessage(payload)
	}
	s.writeJSON(w, resp)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Pause(r.Context(), s.operator); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Unpause(r.Context(), s.operator); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
