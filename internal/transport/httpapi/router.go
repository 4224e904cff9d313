// Package httpapi serves the HTTP side of the server: the websocket endpoint,
// health and metrics, and the operator admin API.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"envoy.ai/internal/observability"
	"envoy.ai/internal/persistence/indexdb"
	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/session"
)

// SessionAPI is the part of *session.Session the admin routes call.
type SessionAPI interface {
	ListTreaties(ctx context.Context) ([]session.TreatySummary, error)
	PlayerInfo(ctx context.Context, p model.PlayerID) (protocol.PlayerInfoMsg, bool, error)
	Eliminate(ctx context.Context, p model.PlayerID) (bool, error)
	AdvanceTurn(ctx context.Context) (int, error)
	EstablishEmbassy(ctx context.Context, a, b model.PlayerID) (bool, error)
	MakeContact(ctx context.Context, a, b model.PlayerID) (bool, error)
}

// HistoryStore answers questions about closed treaties. *indexdb.SQLiteIndex
// implements it.
type HistoryStore interface {
	History(ctx context.Context, player, limit int) ([]indexdb.TreatyHistory, error)
	Events(ctx context.Context, treatyID string) ([]session.TreatyRecord, error)
}

type RouterConfig struct {
	// Session is required.
	Session SessionAPI
	// History is optional; history routes answer 501 without it.
	History HistoryStore
	// WS serves /v1/ws when set.
	WS http.Handler

	Gatherer prometheus.Gatherer
	Metrics  *observability.Metrics

	// AdminToken guards /admin. When empty only loopback clients may use it.
	AdminToken string

	// RateLimiter guards /admin and is required. The caller owns it and
	// calls Stop when the server is done.
	RateLimiter    *IPRateLimiter
	CORSOrigins    []string
	DisableLogging bool
}

type handlers struct {
	sess    SessionAPI
	history HistoryStore
}

// NewRouter builds the router. It opens no listener.
func NewRouter(cfg RouterConfig) (*chi.Mux, error) {
	if cfg.Session == nil {
		return nil, errors.New("httpapi: nil session")
	}
	if cfg.RateLimiter == nil {
		return nil, errors.New("httpapi: nil rate limiter")
	}
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-Token"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if cfg.WS != nil {
		r.Handle("/v1/ws", cfg.WS)
	}

	h := &handlers{sess: cfg.Session, history: cfg.History}
	r.Route("/admin", func(r chi.Router) {
		r.Use(cfg.RateLimiter.Middleware)
		r.Use(adminAuth(cfg.AdminToken))

		r.Get("/treaties", h.listTreaties)
		r.Get("/treaties/{id}/events", h.treatyEvents)
		r.Get("/players/{id}", h.playerInfo)
		r.Post("/players/{id}/eliminate", h.eliminate)
		r.Post("/players/{id}/embassy/{other}", h.establishEmbassy)
		r.Post("/players/{id}/contact/{other}", h.makeContact)
		r.Post("/turn", h.advanceTurn)
		r.Get("/history", h.playerHistory)
	})

	return r, nil
}
