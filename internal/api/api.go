// Package api exposes the roster HTTP surface.
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/datastore"
	"github.com/jbweber/homelab/roster/internal/repository"
	"github.com/jbweber/homelab/roster/internal/service"
)

// API holds the handler groups and their shared dependencies
type API struct {
	ds      *datastore.Datastore
	users   *Users
	metrics *Metrics
	log     *zap.Logger
}

// NewAPI creates a new API instance with repositories initialized from the
// datastore. Metrics are registered on reg, or on a private registry when
// reg is nil.
func NewAPI(ds *datastore.Datastore, log *zap.Logger, reg *prometheus.Registry) (*API, error) {
	if log == nil {
		log = zap.NewNop()
	}

	userRepo, err := repository.NewUserRepository(ds, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create user repository: %w", err)
	}

	metrics, err := NewMetrics(reg, ds)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return &API{
		ds:      ds,
		users:   NewUsers(service.NewUserService(userRepo)),
		metrics: metrics,
		log:     log.Named("http"),
	}, nil
}

// Router builds the chi router with middleware and every route mounted
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.healthHandler)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	a.users.RegisterRoutes(r)
}

// healthHandler reports whether the database answers
func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.ds.DB.PingContext(r.Context()); err != nil {
		a.log.Warn("health check failed", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
