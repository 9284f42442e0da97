package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/cache"
	"github.com/kjstillabower/weather-refresh/internal/client"
	"github.com/kjstillabower/weather-refresh/internal/device"
	"github.com/kjstillabower/weather-refresh/internal/lifecycle"
	"github.com/kjstillabower/weather-refresh/internal/location"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

// WeatherFetcher returns nil, nil when the upstream payload is incomplete.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, lat, lon float64, units models.Units) (*models.WeatherData, error)
}

// AirQualityFetcher returns nil, nil when the upstream payload is incomplete.
type AirQualityFetcher interface {
	FetchAirQuality(ctx context.Context, lat, lon float64) (*models.AirQualityData, error)
}

// UnitsSource is the units preference the weather request is made in.
type UnitsSource interface {
	Loaded() bool
	Get() models.Units
}

// MainLocationSource is the main page selection. A nil location means the
// device's current location.
type MainLocationSource interface {
	Loaded() bool
	Get() *models.SavedLocation
}

// ErrorKind classifies the error shown with a snapshot.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindPermissionDenied   ErrorKind = "permission_denied"
	ErrorKindFetchFailed        ErrorKind = "fetch_failed"
	ErrorKindWeatherUnavailable ErrorKind = "weather_unavailable"
)

// Trigger names what caused a fetch cycle. Used as a metric label.
type Trigger string

const (
	TriggerMount      Trigger = "mount"
	TriggerSettings   Trigger = "settings"
	TriggerForeground Trigger = "foreground"
	TriggerRefetch    Trigger = "refetch"
	TriggerSchedule   Trigger = "schedule"
)

const (
	msgPermissionDenied    = "Permission to access location was denied. Grant location access or choose a main location in settings."
	msgLocationUnavailable = "Could not determine your location."
	msgWeatherUnavailable  = "Weather data is not available for this location right now."
)

var ErrNotRunning = errors.New("refresh orchestrator not running")

// ErrNotReady is returned by Refetch while units or the main location have
// not loaded yet.
var ErrNotReady = errors.New("settings not loaded")

// Snapshot is the published refresh state. Weather and AirQuality are shared
// between snapshots and must be treated as read-only.
type Snapshot struct {
	LocationLabel string
	SourceKey     string
	Weather       *models.WeatherData
	AirQuality    *models.AirQualityData
	ErrorMsg      string
	ErrorKind     ErrorKind
	// DataLoaded is true once a fetch attempt resolved or a cache entry was adopted.
	DataLoaded bool
	// LastUpdated is the time of the last successful weather fetch; zero if none.
	LastUpdated     time.Time
	Fetching        bool
	Cycles          uint64
	DroppedTriggers uint64
}

// Deps are the orchestrator's collaborators. Now defaults to time.Now.
type Deps struct {
	Weather         WeatherFetcher
	AirQuality      AirQualityFetcher
	WeatherCache    *cache.Store[models.WeatherData]
	AirQualityCache *cache.Store[models.AirQualityData]
	Units           UnitsSource
	MainLocation    MainLocationSource
	Permissions     device.PermissionGate
	Position        device.PositionProvider
	Logger          *zap.Logger
	Now             func() time.Time
}

type msgKind int

const (
	msgSettings msgKind = iota
	msgAppState
	msgRefetch
	msgMaybeRefresh
	msgCycleDone
	msgBarrier
)

type message struct {
	kind     msgKind
	appState lifecycle.AppState
	done     chan struct{}
	err      *error // set before done is closed
	result   *cycleResult
}

type cycleRequest struct {
	trigger   Trigger
	source    location.Source
	sourceKey string
	label     string
	units     models.Units
	started   time.Time
}

type cycleResult struct {
	req              cycleRequest
	permissionDenied bool
	locateErr        error
	weather          *models.WeatherData
	weatherErr       error
	airQuality       *models.AirQualityData
	airQualityErr    error
	fetchedAt        time.Time
}

// Orchestrator decides when to use cached data and when to fetch, for the
// current main location. All state is owned by the goroutine running Run;
// every public method posts a message to it.
type Orchestrator struct {
	deps    Deps
	logger  *zap.Logger
	now     func() time.Time
	msgs    chan message
	running atomic.Bool
	stopped chan struct{}

	snapMu  sync.RWMutex
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int

	// Loop-owned.
	state     Snapshot
	gate      fetchGate
	primed    bool
	source    location.Source
	sourceKey string
	units     models.Units
	unitsSeen bool
	appState  lifecycle.AppState
	workCtx   context.Context
}

// New returns an orchestrator that does nothing until Run is called.
func New(deps Deps) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		deps:     deps,
		logger:   observability.OrNop(deps.Logger),
		now:      now,
		msgs:     make(chan message, 64),
		stopped:  make(chan struct{}),
		subs:     make(map[int]chan Snapshot),
		appState: lifecycle.Active,
	}
}

// Run is the mount: it evaluates settings once, then serves messages until
// ctx is done. A fetch cycle still in flight when Run returns is allowed to
// finish but its result is not published.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("refresh orchestrator already running")
	}
	defer close(o.stopped)

	o.workCtx = context.WithoutCancel(ctx)
	o.logger.Info("refresh orchestrator started")
	o.onSettings(ctx, TriggerMount)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("refresh orchestrator stopped")
			return nil
		case m := <-o.msgs:
			o.handle(ctx, m)
		}
	}
}

// Snapshot returns the latest published state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	return o.snap
}

// Subscribe returns a channel that receives the current snapshot immediately
// and then every later one. Slow readers only see the newest snapshot.
// Call cancel to unsubscribe.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	o.snapMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.snap
	o.snapMu.Unlock()

	return ch, func() {
		o.snapMu.Lock()
		delete(o.subs, id)
		o.snapMu.Unlock()
	}
}

// SettingsChanged re-evaluates units and main location. Call it when either
// finishes loading or changes.
func (o *Orchestrator) SettingsChanged() {
	o.post(message{kind: msgSettings})
}

// AppStateChanged reports a host app-state transition. Returning to active
// from background or inactive fetches when cached data is not fresh.
func (o *Orchestrator) AppStateChanged(state lifecycle.AppState) {
	o.post(message{kind: msgAppState, appState: state})
}

// MaybeRefresh applies the foreground freshness rule while the app is active.
func (o *Orchestrator) MaybeRefresh() {
	o.post(message{kind: msgMaybeRefresh})
}

// Refetch runs a fetch cycle regardless of freshness and waits for it. If a
// cycle is already running it waits for that one instead of starting another.
// It returns ErrNotReady without fetching until settings have loaded.
func (o *Orchestrator) Refetch(ctx context.Context) error {
	done := make(chan struct{})
	var err error
	if !o.post(message{kind: msgRefetch, done: done, err: &err}) {
		return ErrNotRunning
	}
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrNotRunning
	}
}

// barrier returns once every message posted before it has been handled.
func (o *Orchestrator) barrier() {
	done := make(chan struct{})
	if o.post(message{kind: msgBarrier, done: done}) {
		select {
		case <-done:
		case <-o.stopped:
		}
	}
}

func (o *Orchestrator) post(m message) bool {
	select {
	case <-o.stopped:
		return false
	default:
	}
	select {
	case o.msgs <- m:
		return true
	case <-o.stopped:
		return false
	}
}

func (o *Orchestrator) handle(ctx context.Context, m message) {
	switch m.kind {
	case msgSettings:
		o.onSettings(ctx, TriggerSettings)
	case msgAppState:
		o.onAppState(ctx, m.appState)
	case msgRefetch:
		o.onRefetch(ctx, m.done, m.err)
	case msgMaybeRefresh:
		o.onMaybeRefresh(ctx)
	case msgCycleDone:
		o.onCycleDone(ctx, m.result)
	case msgBarrier:
		close(m.done)
	}
}

func (o *Orchestrator) ready() bool {
	return o.deps.Units.Loaded() && o.deps.MainLocation.Loaded()
}

func (o *Orchestrator) onSettings(ctx context.Context, trigger Trigger) {
	if !o.ready() {
		return
	}
	src := location.FromMain(o.deps.MainLocation.Get())
	key := location.SourceKey(src)
	units := o.deps.Units.Get()
	unitsChanged := o.unitsSeen && units != o.units
	o.units, o.unitsSeen = units, true

	if !o.primed || key != o.sourceKey {
		if o.primed {
			o.logger.Info("main location changed", zap.String("from", o.sourceKey), zap.String("to", key))
		}
		o.prime(ctx, src, key)
		o.publish()
		if o.needsFetch(ctx) {
			o.startCycle(trigger, nil)
		}
		return
	}
	if unitsChanged {
		o.logger.Info("units changed, refetching", zap.Any("units", units))
		o.startCycle(TriggerSettings, nil)
	}
}

// prime switches to src and adopts cached entries written for it. Data held
// for a previous source is dropped first.
func (o *Orchestrator) prime(ctx context.Context, src location.Source, key string) {
	if o.primed {
		o.state.Weather = nil
		o.state.AirQuality = nil
		o.state.LastUpdated = time.Time{}
		o.state.LocationLabel = ""
		o.state.ErrorMsg = ""
		o.state.ErrorKind = ErrorKindNone
		o.state.DataLoaded = false
	}
	o.primed = true
	o.source, o.sourceKey = src, key
	o.state.SourceKey = key

	if e, ok := o.deps.WeatherCache.Get(ctx); ok {
		switch {
		case !location.Matches(src, e.SourceKey):
			o.logger.Debug("cached weather belongs to another location", zap.String("entry_source", e.SourceKey))
		case !cache.UnitsMatch(e, o.units):
			o.logger.Debug("cached weather was fetched in other units", zap.Any("entry_units", e.Units))
		default:
			w := e.Data
			o.state.Weather = &w
			o.state.LastUpdated = e.Timestamp
			o.state.LocationLabel = location.Label(src)
			o.state.DataLoaded = true
		}
	}
	if e, ok := o.deps.AirQualityCache.Get(ctx); ok {
		if location.Matches(src, e.SourceKey) {
			a := e.Data
			o.state.AirQuality = &a
		} else {
			o.logger.Debug("cached air quality belongs to another location", zap.String("entry_source", e.SourceKey))
		}
	}
}

// needsFetch reports whether either domain is missing from memory, or its
// cache entry is absent, stale or written for another source. Weather
// fetched in other units also needs a fetch.
func (o *Orchestrator) needsFetch(ctx context.Context) bool {
	if o.state.Weather == nil || o.state.AirQuality == nil {
		return true
	}
	now := o.now()
	we, ok := o.deps.WeatherCache.Get(ctx)
	if !ok || !location.Matches(o.source, we.SourceKey) || !cache.UnitsMatch(we, o.units) || !cache.IsValid(we, cache.TTL, now) {
		return true
	}
	ae, ok := o.deps.AirQualityCache.Get(ctx)
	if !ok || !location.Matches(o.source, ae.SourceKey) || !cache.IsValid(ae, cache.TTL, now) {
		return true
	}
	return false
}

func (o *Orchestrator) onAppState(ctx context.Context, next lifecycle.AppState) {
	prev := o.appState
	o.appState = next
	if !lifecycle.IsForegroundResume(prev, next) {
		return
	}
	o.refreshIfStale(ctx, TriggerForeground)
}

func (o *Orchestrator) onMaybeRefresh(ctx context.Context) {
	if o.appState != lifecycle.Active {
		return
	}
	o.refreshIfStale(ctx, TriggerSchedule)
}

func (o *Orchestrator) refreshIfStale(ctx context.Context, trigger Trigger) {
	if !o.ready() {
		return
	}
	if !o.primed {
		o.onSettings(ctx, trigger)
		return
	}
	if !o.needsFetch(ctx) {
		o.logger.Debug("cached data fresh, skipping fetch", zap.String("trigger", string(trigger)))
		return
	}
	o.startCycle(trigger, nil)
}

func (o *Orchestrator) onRefetch(ctx context.Context, done chan struct{}, errp *error) {
	if !o.ready() {
		if errp != nil {
			*errp = ErrNotReady
		}
		close(done)
		return
	}
	if !o.primed {
		o.onSettings(ctx, TriggerRefetch)
		// Priming may have started the cycle this refetch asked for.
		if o.gate.inFlight {
			o.gate.wait(done)
			return
		}
	}
	o.startCycle(TriggerRefetch, done)
}

func (o *Orchestrator) startCycle(trigger Trigger, done chan struct{}) {
	observability.FetchTriggersTotal.WithLabelValues(string(trigger)).Inc()
	if !o.gate.acquire(trigger, done) {
		o.logger.Debug("fetch in flight, trigger dropped",
			zap.String("trigger", string(trigger)), zap.String("in_flight", string(o.gate.trigger)))
		o.state.DroppedTriggers = o.gate.dropped
		o.publish()
		return
	}
	req := cycleRequest{
		trigger:   trigger,
		source:    o.source,
		sourceKey: o.sourceKey,
		label:     location.Label(o.source),
		units:     o.units,
		started:   o.now(),
	}
	o.state.Fetching = true
	o.publish()
	go o.runCycle(o.workCtx, req)
}

// runCycle runs on its own goroutine. It resolves coordinates, calls both
// APIs in parallel, writes what came back to the cache and posts the result.
func (o *Orchestrator) runCycle(ctx context.Context, req cycleRequest) {
	res := &cycleResult{req: req}

	if lat, lon, ok := o.resolveCoordinates(ctx, req, res); ok {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			res.weather, res.weatherErr = o.deps.Weather.FetchWeather(ctx, lat, lon, req.units)
		}()
		go func() {
			defer wg.Done()
			res.airQuality, res.airQualityErr = o.deps.AirQuality.FetchAirQuality(ctx, lat, lon)
		}()
		wg.Wait()
		res.fetchedAt = o.now()

		if res.weatherErr == nil && res.weather != nil {
			o.deps.WeatherCache.SetWithUnits(ctx, lat, lon, req.sourceKey, req.units, *res.weather)
		}
		if res.airQualityErr == nil && res.airQuality != nil {
			o.deps.AirQualityCache.Set(ctx, lat, lon, req.sourceKey, *res.airQuality)
		}
	}

	select {
	case o.msgs <- message{kind: msgCycleDone, result: res}:
	case <-o.stopped:
		o.logger.Debug("discarding fetch result after stop", zap.String("trigger", string(req.trigger)))
	}
}

// resolveCoordinates uses stored coordinates for a saved source and never
// touches the device for it.
func (o *Orchestrator) resolveCoordinates(ctx context.Context, req cycleRequest, res *cycleResult) (float64, float64, bool) {
	if loc, ok := req.source.Location(); ok {
		return loc.Latitude, loc.Longitude, true
	}
	perm, err := o.deps.Permissions.RequestLocationPermission(ctx)
	if err != nil {
		res.locateErr = fmt.Errorf("request location permission: %w", err)
		return 0, 0, false
	}
	if perm != device.PermissionGranted {
		res.permissionDenied = true
		return 0, 0, false
	}
	pos, err := o.deps.Position.CurrentPosition(ctx)
	if err != nil {
		res.locateErr = fmt.Errorf("current position: %w", err)
		return 0, 0, false
	}
	return pos.Latitude, pos.Longitude, true
}

func (o *Orchestrator) onCycleDone(ctx context.Context, res *cycleResult) {
	o.state.Fetching = false
	o.state.Cycles++
	observability.FetchCycleDuration.Observe(o.now().Sub(res.req.started).Seconds())

	if res.req.sourceKey != o.sourceKey {
		o.logger.Info("discarding fetch result for previous location", zap.String("source_key", res.req.sourceKey))
		observability.FetchCyclesTotal.WithLabelValues("discarded").Inc()
		o.publish()
		o.gate.release()
		if o.needsFetch(ctx) {
			o.startCycle(TriggerSettings, nil)
		}
		return
	}

	outcome := o.apply(res)
	observability.FetchCyclesTotal.WithLabelValues(outcome).Inc()
	o.publish()
	o.gate.release()

	if res.req.units != o.units {
		o.logger.Info("units changed during fetch, refetching")
		o.startCycle(TriggerSettings, nil)
	}
}

// apply folds a cycle result into state and returns the outcome label.
func (o *Orchestrator) apply(res *cycleResult) string {
	o.state.DataLoaded = true
	logger := o.logger.With(zap.String("trigger", string(res.req.trigger)), zap.String("source_key", res.req.sourceKey))

	switch {
	case res.permissionDenied:
		logger.Info("location permission denied")
		o.state.Weather = nil
		o.state.AirQuality = nil
		o.state.LastUpdated = time.Time{}
		o.state.ErrorMsg = msgPermissionDenied
		o.state.ErrorKind = ErrorKindPermissionDenied
		return "permission_denied"
	case res.locateErr != nil:
		logger.Warn("could not resolve location", zap.Error(res.locateErr))
		o.state.ErrorMsg = msgLocationUnavailable
		o.state.ErrorKind = ErrorKindFetchFailed
		return "failed"
	}

	o.state.LocationLabel = res.req.label

	airQualityOK := res.airQualityErr == nil && res.airQuality != nil
	switch {
	case res.airQualityErr != nil:
		logger.Warn("air quality fetch failed, keeping previous data",
			zap.Error(res.airQualityErr), zap.String("category", string(client.CategorizeError(res.airQualityErr))))
	case res.airQuality == nil:
		logger.Warn("air quality data unavailable, keeping previous data")
	default:
		o.state.AirQuality = res.airQuality
	}

	switch {
	case res.weatherErr != nil:
		logger.Error("weather fetch failed",
			zap.Error(res.weatherErr), zap.String("category", string(client.CategorizeError(res.weatherErr))))
		o.state.ErrorMsg = client.UserMessage(res.weatherErr)
		o.state.ErrorKind = ErrorKindFetchFailed
		return "failed"
	case res.weather == nil:
		logger.Warn("weather data unavailable")
		o.state.ErrorMsg = msgWeatherUnavailable
		o.state.ErrorKind = ErrorKindWeatherUnavailable
		return "weather_unavailable"
	}

	o.state.Weather = res.weather
	o.state.LastUpdated = res.fetchedAt
	o.state.ErrorMsg = ""
	o.state.ErrorKind = ErrorKindNone
	observability.LastUpdatedTimestamp.Set(float64(res.fetchedAt.Unix()))
	logger.Info("forecast refreshed", zap.Bool("air_quality", airQualityOK),
		zap.Duration("duration", res.fetchedAt.Sub(res.req.started)))

	if !airQualityOK {
		return "partial"
	}
	return "success"
}

func (o *Orchestrator) publish() {
	snap := o.state
	o.snapMu.Lock()
	o.snap = snap
	subs := make([]chan Snapshot, 0, len(o.subs))
	for _, ch := range o.subs {
		subs = append(subs, ch)
	}
	o.snapMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
