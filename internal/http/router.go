package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-refresh/internal/observability"
)

// RouterConfig configures NewRouter. RefreshLimiter may be nil to disable
// rate limiting of manual refreshes.
type RouterConfig struct {
	RequestTimeout time.Duration
	RefreshLimiter *rate.Limiter
	Logger         *zap.Logger
}

// NewRouter wires the control API routes.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(cfg.Logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	router.HandleFunc("/forecast", h.GetForecast).Methods(http.MethodGet)
	refresh := router.PathPrefix("/forecast/refresh").Subrouter()
	refresh.Use(RateLimitMiddleware(cfg.RefreshLimiter))
	refresh.Use(TimeoutMiddleware(cfg.RequestTimeout))
	refresh.HandleFunc("", h.PostRefresh).Methods(http.MethodPost)

	router.HandleFunc("/lifecycle/{state}", h.PutLifecycle).Methods(http.MethodPut)

	router.HandleFunc("/locations/saved", h.GetSaved).Methods(http.MethodGet)
	router.HandleFunc("/locations/saved", h.PostSaved).Methods(http.MethodPost)
	router.HandleFunc("/locations/saved/{id}", h.DeleteSaved).Methods(http.MethodDelete)
	router.HandleFunc("/locations/main", h.GetMain).Methods(http.MethodGet)
	router.HandleFunc("/locations/main", h.PutMain).Methods(http.MethodPut)
	router.HandleFunc("/locations/main", h.DeleteMain).Methods(http.MethodDelete)

	upstream := router.PathPrefix("/locations").Subrouter()
	upstream.Use(TimeoutMiddleware(cfg.RequestTimeout))
	upstream.HandleFunc("/search", h.GetSearch).Methods(http.MethodGet)
	upstream.HandleFunc("/forecast", h.GetLookup).Methods(http.MethodGet)

	router.HandleFunc("/settings/units", h.GetUnits).Methods(http.MethodGet)
	router.HandleFunc("/settings/units", h.PutUnits).Methods(http.MethodPut)
	router.HandleFunc("/settings/time-format", h.GetTimeFormat).Methods(http.MethodGet)
	router.HandleFunc("/settings/time-format", h.PutTimeFormat).Methods(http.MethodPut)
	router.HandleFunc("/settings/details", h.GetDetails).Methods(http.MethodGet)
	router.HandleFunc("/settings/details/{detail}/toggle", h.PostDetailToggle).Methods(http.MethodPost)
	router.HandleFunc("/settings/details/{detail}/move/{direction}", h.PostDetailMove).Methods(http.MethodPost)

	return router
}
