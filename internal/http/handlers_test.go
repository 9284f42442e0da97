package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-refresh/internal/client"
	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/lifecycle"
	"github.com/kjstillabower/weather-refresh/internal/location"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/service"
	"github.com/kjstillabower/weather-refresh/internal/settings"
	"github.com/kjstillabower/weather-refresh/internal/validation"
)

type fakeOrchestrator struct {
	mu         sync.Mutex
	snap       service.Snapshot
	refetchErr error
	refetches  int
	block      chan struct{}
	states     []lifecycle.AppState
}

func (f *fakeOrchestrator) Snapshot() service.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeOrchestrator) Refetch(ctx context.Context) error {
	f.mu.Lock()
	f.refetches++
	block, err := f.block, f.refetchErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeOrchestrator) AppStateChanged(state lifecycle.AppState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

type fakeSearcher struct {
	results []models.GeocodingResult
	err     error
	gotName string
	gotN    int
}

func (f *fakeSearcher) Search(ctx context.Context, name string, count int) ([]models.GeocodingResult, error) {
	f.gotName, f.gotN = name, count
	return f.results, f.err
}

type fakeLookup struct {
	res *service.LookupResult
	err error
}

func (f *fakeLookup) Forecast(ctx context.Context, lat, lon float64) (*service.LookupResult, error) {
	return f.res, f.err
}

type testEnv struct {
	router  *mux.Router
	orch    *fakeOrchestrator
	search  *fakeSearcher
	lookup  *fakeLookup
	store   *kv.InMemoryStore
	main    *location.MainLocation
	units   *settings.Units
	pingErr error
}

var berlin = models.SavedLocation{ID: 2950159, Name: "Berlin", Admin1: "Land Berlin", Country: "Germany", Latitude: 52.52, Longitude: 13.41}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kv.NewInMemoryStore()
	env := &testEnv{
		orch:   &fakeOrchestrator{},
		search: &fakeSearcher{},
		lookup: &fakeLookup{},
		store:  store,
		main:   location.NewMainLocation(store, nil),
		units:  settings.NewUnits(store, nil),
	}
	ctx := context.Background()
	env.main.Load(ctx)
	env.units.Load(ctx)
	details := settings.NewDetails(store, nil)
	details.Load(ctx)
	tf := settings.NewTimeFormat(store, nil)
	tf.Load(ctx)

	h := NewHandler(Deps{
		Orchestrator: env.orch,
		Search:       env.search,
		Lookup:       env.lookup,
		Saved:        location.NewSavedLocations(store, nil),
		Main:         env.main,
		Units:        env.units,
		TimeFormat:   tf,
		Details:      details,
		StoragePing:  func(ctx context.Context) error { return env.pingErr },
		Logger:       zap.NewNop(),
	})
	env.router = NewRouter(h, RouterConfig{RequestTimeout: time.Second, Logger: zap.NewNop()})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

type errResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errResponse
	decode(t, w, &resp)
	return resp.Error.Code
}

func TestHandler_GetForecast(t *testing.T) {
	env := newTestEnv(t)
	updated := time.Now().Add(-2 * time.Minute)
	env.orch.snap = service.Snapshot{
		LocationLabel: "Current Location",
		SourceKey:     "current",
		Weather:       &models.WeatherData{Current: models.CurrentWeather{Temperature2m: 21.5}},
		ErrorMsg:      "The weather service is busy. Try again in a few minutes.",
		ErrorKind:     service.ErrorKindFetchFailed,
		DataLoaded:    true,
		LastUpdated:   updated,
		Cycles:        3,
	}

	w := env.do(t, http.MethodGet, "/forecast", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var v forecastView
	decode(t, w, &v)
	if v.LocationLabel != "Current Location" || v.Weather == nil || v.Weather.Current.Temperature2m != 21.5 {
		t.Errorf("view = %+v", v)
	}
	if v.AirQuality != nil {
		t.Errorf("AirQuality = %+v, want null", v.AirQuality)
	}
	if v.Error == nil || v.Error.Kind != "fetch_failed" {
		t.Errorf("Error = %+v", v.Error)
	}
	if v.LastUpdated == nil || !v.LastUpdated.Equal(updated) {
		t.Errorf("LastUpdated = %v, want %v", v.LastUpdated, updated)
	}
	if v.AgeSeconds == nil || *v.AgeSeconds < 119 {
		t.Errorf("AgeSeconds = %v, want about 120", v.AgeSeconds)
	}
}

func TestHandler_GetForecast_NeverUpdated(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/forecast", "")

	var raw map[string]json.RawMessage
	decode(t, w, &raw)
	for _, k := range []string{"lastUpdated", "ageSeconds", "weather", "error"} {
		if string(raw[k]) != "null" {
			t.Errorf("%s = %s, want null", k, raw[k])
		}
	}
}

func TestHandler_PostRefresh(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"success", nil, http.StatusOK, ""},
		{"not running", service.ErrNotRunning, http.StatusServiceUnavailable, "NOT_RUNNING"},
		{"settings loading", service.ErrNotReady, http.StatusServiceUnavailable, "NOT_READY"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.orch.refetchErr = tt.err
			env.orch.snap = service.Snapshot{DataLoaded: true, Cycles: 1}

			w := env.do(t, http.MethodPost, "/forecast/refresh", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w); got != tt.wantCode {
					t.Errorf("error.code = %q, want %q", got, tt.wantCode)
				}
			}
			if env.orch.refetches != 1 {
				t.Errorf("refetches = %d, want 1", env.orch.refetches)
			}
		})
	}
}

func TestHandler_PostRefresh_TimesOut(t *testing.T) {
	env := newTestEnv(t)
	env.orch.block = make(chan struct{})
	defer close(env.orch.block)

	h := NewHandler(Deps{Orchestrator: env.orch, Logger: zap.NewNop()})
	router := NewRouter(h, RouterConfig{RequestTimeout: 30 * time.Millisecond})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/forecast/refresh", nil))
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestHandler_PostRefresh_ShuttingDown(t *testing.T) {
	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/forecast/refresh", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if env.orch.refetches != 0 {
		t.Error("refetch started while shutting down")
	}
}

func TestHandler_PutLifecycle(t *testing.T) {
	defer lifecycle.SetState(lifecycle.Active)
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/lifecycle/background", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if lifecycle.State() != lifecycle.Background {
		t.Errorf("State() = %q, want background", lifecycle.State())
	}
	w = env.do(t, http.MethodPut, "/lifecycle/active", "")
	var resp map[string]string
	decode(t, w, &resp)
	if resp["previous"] != "background" || resp["state"] != "active" {
		t.Errorf("response = %v", resp)
	}
	if len(env.orch.states) != 2 || env.orch.states[1] != lifecycle.Active {
		t.Errorf("states posted = %v", env.orch.states)
	}

	w = env.do(t, http.MethodPut, "/lifecycle/asleep", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown state status = %d, want 400", w.Code)
	}
}

func TestHandler_GetSearch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantCount  int
	}{
		{"default count", "/locations/search?q=Berlin", nil, http.StatusOK, 10},
		{"explicit count", "/locations/search?q=Berlin&count=5", nil, http.StatusOK, 5},
		{"bad count", "/locations/search?q=Berlin&count=99", nil, http.StatusBadRequest, 0},
		{"invalid query", "/locations/search?q=%3Cscript%3E", validation.ErrInvalidQuery, http.StatusBadRequest, 10},
		{"upstream down", "/locations/search?q=Berlin", client.ErrUpstreamFailure, http.StatusServiceUnavailable, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.search.err = tt.err
			env.search.results = []models.GeocodingResult{{ID: berlin.ID, Name: "Berlin", Country: "Germany"}}

			w := env.do(t, http.MethodGet, tt.query, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if env.search.gotN != tt.wantCount {
				t.Errorf("count = %d, want %d", env.search.gotN, tt.wantCount)
			}
			if tt.wantStatus == http.StatusOK {
				var resp struct {
					Results []models.GeocodingResult `json:"results"`
				}
				decode(t, w, &resp)
				if len(resp.Results) != 1 || resp.Results[0].Name != "Berlin" {
					t.Errorf("results = %+v", resp.Results)
				}
			}
		})
	}
}

func TestHandler_GetLookup(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"success", "?lat=52.52&lon=13.41", nil, http.StatusOK, ""},
		{"missing lon", "?lat=52.52", nil, http.StatusBadRequest, "INVALID_LOCATION"},
		{"invalid coordinates", "?lat=0&lon=0", service.ErrInvalidCoordinates, http.StatusBadRequest, "INVALID_LOCATION"},
		{"weather unavailable", "?lat=52.52&lon=13.41", service.ErrWeatherUnavailable, http.StatusBadGateway, "WEATHER_UNAVAILABLE"},
		{"upstream", "?lat=52.52&lon=13.41", client.ErrRateLimited, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.lookup.err = tt.err
			if tt.err == nil {
				env.lookup.res = &service.LookupResult{Weather: &models.WeatherData{}}
			}
			w := env.do(t, http.MethodGet, "/locations/forecast"+tt.query, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w); got != tt.wantCode {
					t.Errorf("error.code = %q, want %q", got, tt.wantCode)
				}
			}
		})
	}
}

func TestHandler_SavedLocations(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(berlin)

	if w := env.do(t, http.MethodPost, "/locations/saved", string(body)); w.Code != http.StatusCreated {
		t.Fatalf("first save status = %d, want 201", w.Code)
	}
	w := env.do(t, http.MethodPost, "/locations/saved", string(body))
	if w.Code != http.StatusConflict || errorCode(t, w) != "ALREADY_SAVED" {
		t.Errorf("duplicate save status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/locations/saved", `{"id":1,"name":"Nowhere","country":"X","latitude":123}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid location status = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/locations/saved", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/locations/saved", "")
	var list struct {
		Locations []models.SavedLocation `json:"locations"`
	}
	decode(t, w, &list)
	if len(list.Locations) != 1 || list.Locations[0] != berlin {
		t.Errorf("locations = %+v", list.Locations)
	}

	if w := env.do(t, http.MethodDelete, "/locations/saved/2950159", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/locations/saved/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("delete bad id status = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodGet, "/locations/saved", "")
	decode(t, w, &list)
	if len(list.Locations) != 0 {
		t.Errorf("locations after delete = %+v", list.Locations)
	}
}

func TestHandler_MainLocation(t *testing.T) {
	env := newTestEnv(t)
	changes := 0
	env.main.OnChange(func() { changes++ })

	w := env.do(t, http.MethodGet, "/locations/main", "")
	var v mainLocationView
	decode(t, w, &v)
	if v.Location != nil || v.Label != "Current Location" {
		t.Errorf("initial main = %+v", v)
	}

	body, _ := json.Marshal(berlin)
	w = env.do(t, http.MethodPut, "/locations/main", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d", w.Code)
	}
	decode(t, w, &v)
	if v.Location == nil || v.Location.ID != berlin.ID || v.Label != "Berlin, Land Berlin, Germany" {
		t.Errorf("main after put = %+v", v)
	}
	if raw, ok, _ := env.store.Get(context.Background(), location.MainLocationKey); !ok || !strings.Contains(raw, "Berlin") {
		t.Errorf("persisted main = %q, %v", raw, ok)
	}

	w = env.do(t, http.MethodDelete, "/locations/main", "")
	decode(t, w, &v)
	if v.Location != nil {
		t.Errorf("main after delete = %+v", v)
	}
	if changes != 2 {
		t.Errorf("change notifications = %d, want 2", changes)
	}

	if w := env.do(t, http.MethodPut, "/locations/main", `{"id":1}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid main status = %d, want 400", w.Code)
	}
}

func TestHandler_Units(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/settings/units", `{"temperatureUnit":"Fahrenheit"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var u models.Units
	decode(t, w, &u)
	want := models.Units{Temperature: models.Fahrenheit, WindSpeed: models.KilometersPerHour, Precipitation: models.Millimeter}
	if u != want {
		t.Errorf("units = %+v, want %+v", u, want)
	}

	w = env.do(t, http.MethodPut, "/settings/units", `{"windSpeedUnit":"furlongs"}`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_UNIT" {
		t.Errorf("invalid unit status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/settings/units", "")
	decode(t, w, &u)
	if u != want {
		t.Errorf("units after invalid put = %+v", u)
	}
}

func TestHandler_TimeFormat(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPut, "/settings/time-format", `{"timeFormat":"12h"}`)
	var resp map[string]string
	decode(t, w, &resp)
	if resp["timeFormat"] != "12h" {
		t.Errorf("timeFormat = %q", resp["timeFormat"])
	}
	if w := env.do(t, http.MethodPut, "/settings/time-format", `{"timeFormat":"36h"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid format status = %d, want 400", w.Code)
	}
}

func TestHandler_Details(t *testing.T) {
	env := newTestEnv(t)
	type view struct {
		Selected []string `json:"selected"`
		Changed  bool     `json:"changed"`
	}

	w := env.do(t, http.MethodPost, "/settings/details/Humidity/toggle", "")
	var v view
	decode(t, w, &v)
	if v.Changed {
		t.Errorf("toggle beyond max changed selection: %+v", v)
	}

	w = env.do(t, http.MethodPost, "/settings/details/Temp/toggle", "")
	decode(t, w, &v)
	if !v.Changed || strings.Join(v.Selected, ",") != "Feels Like,Precip Chance" {
		t.Errorf("after toggle off = %+v", v)
	}

	w = env.do(t, http.MethodPost, "/settings/details/Precip%20Chance/move/up", "")
	decode(t, w, &v)
	if !v.Changed || strings.Join(v.Selected, ",") != "Precip Chance,Feels Like" {
		t.Errorf("after move = %+v", v)
	}

	if w := env.do(t, http.MethodPost, "/settings/details/Temp/move/left", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/settings/details/Mood/toggle", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown detail status = %d, want 400", w.Code)
	}
}

func TestHandler_GetHealth(t *testing.T) {
	tests := []struct {
		name         string
		shuttingDown bool
		pingErr      error
		wantStatus   int
		wantState    string
	}{
		{"healthy", false, nil, http.StatusOK, "healthy"},
		{"storage down", false, kv.ErrUnavailable, http.StatusServiceUnavailable, "degraded"},
		{"shutting down", true, nil, http.StatusServiceUnavailable, "shutting-down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle.SetShuttingDown(tt.shuttingDown)
			defer lifecycle.SetShuttingDown(false)
			env := newTestEnv(t)
			env.pingErr = tt.pingErr

			w := env.do(t, http.MethodGet, "/health", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp map[string]interface{}
			decode(t, w, &resp)
			if resp["status"] != tt.wantState {
				t.Errorf("status field = %v, want %s", resp["status"], tt.wantState)
			}
		})
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := newTestEnv(t)
	h := NewHandler(Deps{
		Orchestrator: env.orch,
		StoragePing:  func(ctx context.Context) error { return env.pingErr },
		Logger:       zap.New(core),
	})

	call := func() {
		w := httptest.NewRecorder()
		h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	call()
	env.pingErr = errors.New("connection refused")
	call()

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["current_status"]; got != "degraded" {
		t.Errorf("current_status = %v, want degraded", got)
	}
}
