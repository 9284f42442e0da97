package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/client"
	"github.com/kjstillabower/weather-refresh/internal/lifecycle"
	"github.com/kjstillabower/weather-refresh/internal/location"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
	"github.com/kjstillabower/weather-refresh/internal/service"
	"github.com/kjstillabower/weather-refresh/internal/settings"
	"github.com/kjstillabower/weather-refresh/internal/validation"
)

const (
	defaultSearchCount = 10
	maxSearchCount     = 20
)

// Orchestrator is the part of the refresh orchestrator the control API drives.
type Orchestrator interface {
	Snapshot() service.Snapshot
	Refetch(ctx context.Context) error
	AppStateChanged(state lifecycle.AppState)
}

type LocationSearcher interface {
	Search(ctx context.Context, name string, count int) ([]models.GeocodingResult, error)
}

type ForecastLookup interface {
	Forecast(ctx context.Context, lat, lon float64) (*service.LookupResult, error)
}

// Deps are the handler's collaborators. StoragePing is optional; when set,
// /health reports storage reachability.
type Deps struct {
	Orchestrator Orchestrator
	Search       LocationSearcher
	Lookup       ForecastLookup
	Saved        *location.SavedLocations
	Main         *location.MainLocation
	Units        *settings.Units
	TimeFormat   *settings.TimeFormat
	Details      *settings.Details
	StoragePing  func(ctx context.Context) error
	Logger       *zap.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	deps             Deps
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, logger: observability.OrNop(deps.Logger)}
}

// forecastView is the JSON form of an orchestrator snapshot. LastUpdated is
// null until a fetch has succeeded.
type forecastView struct {
	LocationLabel   string                 `json:"locationLabel"`
	SourceKey       string                 `json:"sourceKey"`
	Weather         *models.WeatherData    `json:"weather"`
	AirQuality      *models.AirQualityData `json:"airQuality"`
	Error           *errorView             `json:"error"`
	DataLoaded      bool                   `json:"dataLoaded"`
	Fetching        bool                   `json:"fetching"`
	LastUpdated     *time.Time             `json:"lastUpdated"`
	AgeSeconds      *float64               `json:"ageSeconds"`
	Cycles          uint64                 `json:"cycles"`
	DroppedTriggers uint64                 `json:"droppedTriggers"`
}

type errorView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newForecastView(s service.Snapshot, now time.Time) forecastView {
	v := forecastView{
		LocationLabel:   s.LocationLabel,
		SourceKey:       s.SourceKey,
		Weather:         s.Weather,
		AirQuality:      s.AirQuality,
		DataLoaded:      s.DataLoaded,
		Fetching:        s.Fetching,
		Cycles:          s.Cycles,
		DroppedTriggers: s.DroppedTriggers,
	}
	if s.ErrorMsg != "" {
		v.Error = &errorView{Kind: string(s.ErrorKind), Message: s.ErrorMsg}
	}
	if !s.LastUpdated.IsZero() {
		t := s.LastUpdated.UTC()
		age := now.Sub(s.LastUpdated).Seconds()
		v.LastUpdated = &t
		v.AgeSeconds = &age
	}
	return v
}

// GetForecast handles GET /forecast.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newForecastView(h.deps.Orchestrator.Snapshot(), time.Now()))
}

// PostRefresh handles POST /forecast/refresh. It waits for the cycle and
// returns the resulting snapshot.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	if lifecycle.IsShuttingDown() {
		writeError(w, r, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Service is shutting down")
		return
	}
	if err := h.deps.Orchestrator.Refetch(r.Context()); err != nil {
		switch {
		case errors.Is(err, service.ErrNotRunning):
			writeError(w, r, http.StatusServiceUnavailable, "NOT_RUNNING", "Refresh is not running")
		case errors.Is(err, service.ErrNotReady):
			writeError(w, r, http.StatusServiceUnavailable, "NOT_READY", "Settings are still loading")
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Refresh did not finish in time")
		default:
			writeError(w, r, http.StatusServiceUnavailable, "REFRESH_FAILED", "Refresh failed")
		}
		loggerFrom(r, h.logger).Debug("refetch not completed", zap.Error(err))
		return
	}
	writeJSON(w, http.StatusOK, newForecastView(h.deps.Orchestrator.Snapshot(), time.Now()))
}

// PutLifecycle handles PUT /lifecycle/{state}.
func (h *Handler) PutLifecycle(w http.ResponseWriter, r *http.Request) {
	state, err := lifecycle.ParseAppState(mux.Vars(r)["state"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATE", "state must be active, inactive or background")
		return
	}
	prev := lifecycle.SetState(state)
	h.deps.Orchestrator.AppStateChanged(state)
	loggerFrom(r, h.logger).Info("app state changed", zap.String("from", string(prev)), zap.String("to", string(state)))
	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(state), "previous": string(prev)})
}

// GetSearch handles GET /locations/search?q=&count=.
func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	count := defaultSearchCount
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxSearchCount {
			writeError(w, r, http.StatusBadRequest, "INVALID_COUNT", "count must be between 1 and 20")
			return
		}
		count = n
	}
	results, err := h.deps.Search.Search(r.Context(), r.URL.Query().Get("q"), count)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidQuery) {
			writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// GetLookup handles GET /locations/forecast?lat=&lon=, a one-off uncached
// forecast for a search result.
func (h *Handler) GetLookup(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "lat and lon are required numbers")
		return
	}
	res, err := h.deps.Lookup.Forecast(r.Context(), lat, lon)
	switch {
	case errors.Is(err, service.ErrInvalidCoordinates):
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "Invalid location coordinates.")
		return
	case errors.Is(err, service.ErrWeatherUnavailable):
		writeError(w, r, http.StatusBadGateway, "WEATHER_UNAVAILABLE", "Could not fetch weather data for this location.")
		return
	case err != nil:
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"weather": res.Weather, "airQuality": res.AirQuality})
}

// GetSaved handles GET /locations/saved.
func (h *Handler) GetSaved(w http.ResponseWriter, r *http.Request) {
	locs, err := h.deps.Saved.List(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locations": locs})
}

// PostSaved handles POST /locations/saved.
func (h *Handler) PostSaved(w http.ResponseWriter, r *http.Request) {
	var loc models.SavedLocation
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "body must be a location object")
		return
	}
	saved, err := h.deps.Saved.Save(r.Context(), loc)
	switch {
	case errors.Is(err, location.ErrInvalidLocation):
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	case err != nil:
		writeStorageError(w, r, err)
		return
	case !saved:
		writeError(w, r, http.StatusConflict, "ALREADY_SAVED", "location is already saved")
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// DeleteSaved handles DELETE /locations/saved/{id}.
func (h *Handler) DeleteSaved(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", "id must be an integer")
		return
	}
	if err := h.deps.Saved.Remove(r.Context(), id); err != nil {
		writeStorageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mainLocationView struct {
	Location *models.SavedLocation `json:"location"`
	Label    string                `json:"label"`
}

func (h *Handler) mainView() mainLocationView {
	loc := h.deps.Main.Get()
	return mainLocationView{Location: loc, Label: location.Label(location.FromMain(loc))}
}

// GetMain handles GET /locations/main. A null location means current location.
func (h *Handler) GetMain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mainView())
}

// PutMain handles PUT /locations/main.
func (h *Handler) PutMain(w http.ResponseWriter, r *http.Request) {
	var loc models.SavedLocation
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "body must be a location object")
		return
	}
	h.setMain(w, r, &loc)
}

// DeleteMain handles DELETE /locations/main, switching back to current location.
func (h *Handler) DeleteMain(w http.ResponseWriter, r *http.Request) {
	h.setMain(w, r, nil)
}

func (h *Handler) setMain(w http.ResponseWriter, r *http.Request, loc *models.SavedLocation) {
	err := h.deps.Main.Set(r.Context(), loc)
	if errors.Is(err, location.ErrInvalidLocation) {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}
	if err != nil {
		// The selection already changed in memory; only persistence failed.
		loggerFrom(r, h.logger).Warn("main location not persisted", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, h.mainView())
}

// GetUnits handles GET /settings/units.
func (h *Handler) GetUnits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Units.Get())
}

// PutUnits handles PUT /settings/units. Omitted fields keep their value.
func (h *Handler) PutUnits(w http.ResponseWriter, r *http.Request) {
	var next models.Units
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "body must be a units object")
		return
	}
	if err := h.deps.Units.Set(r.Context(), next); err != nil {
		if errors.Is(err, settings.ErrInvalidUnit) {
			writeError(w, r, http.StatusBadRequest, "INVALID_UNIT", err.Error())
			return
		}
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Units.Get())
}

// GetTimeFormat handles GET /settings/time-format.
func (h *Handler) GetTimeFormat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"timeFormat": string(h.deps.TimeFormat.Get())})
}

// PutTimeFormat handles PUT /settings/time-format.
func (h *Handler) PutTimeFormat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TimeFormat settings.Format `json:"timeFormat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "body must be {\"timeFormat\": \"24h\"|\"12h\"}")
		return
	}
	if err := h.deps.TimeFormat.Set(r.Context(), body.TimeFormat); err != nil {
		if errors.Is(err, settings.ErrInvalidUnit) {
			writeError(w, r, http.StatusBadRequest, "INVALID_TIME_FORMAT", err.Error())
			return
		}
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"timeFormat": string(h.deps.TimeFormat.Get())})
}

// GetDetails handles GET /settings/details.
func (h *Handler) GetDetails(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.detailsView(false))
}

// PostDetailToggle handles POST /settings/details/{detail}/toggle.
func (h *Handler) PostDetailToggle(w http.ResponseWriter, r *http.Request) {
	changed, err := h.deps.Details.Toggle(r.Context(), settings.Detail(mux.Vars(r)["detail"]))
	if errors.Is(err, settings.ErrUnknownDetail) {
		writeError(w, r, http.StatusBadRequest, "UNKNOWN_DETAIL", err.Error())
		return
	}
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.detailsView(changed))
}

// PostDetailMove handles POST /settings/details/{detail}/move/{direction}.
func (h *Handler) PostDetailMove(w http.ResponseWriter, r *http.Request) {
	dir := settings.Direction(mux.Vars(r)["direction"])
	if dir != settings.Up && dir != settings.Down {
		writeError(w, r, http.StatusBadRequest, "INVALID_DIRECTION", "direction must be up or down")
		return
	}
	changed, err := h.deps.Details.Reorder(r.Context(), settings.Detail(mux.Vars(r)["detail"]), dir)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.detailsView(changed))
}

func (h *Handler) detailsView(changed bool) map[string]interface{} {
	return map[string]interface{}{
		"selected":  h.deps.Details.Selected(),
		"available": settings.KnownDetails,
		"max":       settings.MaxDetails,
		"changed":   changed,
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	snap := h.deps.Orchestrator.Snapshot()
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weatherd",
		"version":   "dev",
		"checks":    checks,
		"appState":  lifecycle.State(),
		"fetching":  snap.Fetching,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if !snap.LastUpdated.IsZero() {
		resp["lastUpdated"] = snap.LastUpdated.UTC().Format(time.RFC3339)
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > storage unreachable > healthy. A failing fetch does not
// make the daemon unhealthy; it keeps serving the last good data.
func (h *Handler) computeHealthStatus(ctx context.Context) (healthResult, map[string]string) {
	checks := map[string]string{}
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}
	if h.deps.StoragePing != nil {
		if err := h.deps.StoragePing(ctx); err != nil {
			checks["storage"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "storage_unreachable"}, checks
		}
		checks["storage"] = "healthy"
	}
	switch h.deps.Orchestrator.Snapshot().ErrorKind {
	case service.ErrorKindNone:
		checks["forecast"] = "healthy"
	default:
		checks["forecast"] = "unhealthy"
	}
	return healthResult{"healthy", http.StatusOK, ""}, checks
}

func loggerFrom(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

// writeServiceError writes a 503 for upstream failures with the user-facing
// message for the error's category.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", client.UserMessage(err))
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
	}
}

func writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "STORAGE_ERROR", "Could not read or write settings")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Error("storage error", zap.Error(err))
	}
}
