package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fetris/internal/hub"
	"github.com/DoyleJ11/fetris/internal/leaderboard"
	"github.com/DoyleJ11/fetris/internal/match"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Leaderboard interface {
	Top(ctx context.Context, n int) ([]leaderboard.Entry, error)
}

type History interface {
	RecentMatches(ctx context.Context, n int) ([]match.Result, error)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func Pools(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.Snapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "hub unavailable")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func TopPlayers(lb Leaderboard, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		top, err := lb.Top(r.Context(), limit(r))
		if err != nil {
			log.Warn("leaderboard", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to get leaderboard")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Leaderboard []leaderboard.Entry `json:"leaderboard"`
		}{top})
	}
}

func RecentMatches(hist History, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hist == nil {
			writeError(w, http.StatusServiceUnavailable, "match history disabled")
			return
		}
		matches, err := hist.RecentMatches(r.Context(), limit(r))
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn("recent matches", zap.Error(err))
			}
			writeError(w, http.StatusInternalServerError, "failed to get matches")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Matches []match.Result `json:"matches"`
		}{matches})
	}
}

// limit reads ?limit=, clamped to [1, maxLimit].
func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{msg})
}
