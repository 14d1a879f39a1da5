package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fetris/internal/hub"
	"github.com/DoyleJ11/fetris/internal/leaderboard"
	"github.com/DoyleJ11/fetris/internal/ws"
)

type Deps struct {
	WS          ws.Config
	Leaderboard Leaderboard
	// History may be nil when no database is configured.
	History History
	Log     *zap.Logger
}

func SetupRoutes(h *hub.Hub, deps Deps) http.Handler {
	if deps.Leaderboard == nil {
		deps.Leaderboard = (*leaderboard.Leaderboard)(nil)
	}
	log := deps.Log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.Handler(h, deps.WS, deps.Log))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/pools", Pools(h))
		r.Get("/leaderboard", TopPlayers(deps.Leaderboard, log))
		r.Get("/matches", RecentMatches(deps.History, log))
	})
	return r
}
