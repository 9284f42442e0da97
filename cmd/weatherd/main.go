package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-refresh/internal/cache"
	"github.com/kjstillabower/weather-refresh/internal/client"
	"github.com/kjstillabower/weather-refresh/internal/config"
	"github.com/kjstillabower/weather-refresh/internal/device"
	httphandler "github.com/kjstillabower/weather-refresh/internal/http"
	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/lifecycle"
	"github.com/kjstillabower/weather-refresh/internal/location"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
	"github.com/kjstillabower/weather-refresh/internal/scheduler"
	"github.com/kjstillabower/weather-refresh/internal/service"
	"github.com/kjstillabower/weather-refresh/internal/settings"
)

const inFlightCheckInterval = 50 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	logger.Info("storage backend", zap.String("backend", store.name))

	forecastClient := client.NewForecastClient(clientConfig(cfg, cfg.WeatherAPI), logger)
	airQualityClient := client.NewAirQualityClient(clientConfig(cfg, cfg.AirQualityAPI), logger)
	geocodingClient := client.NewGeocodingClient(clientConfig(cfg, cfg.GeocodingAPI), logger)

	units := settings.NewUnits(store.kv, logger)
	timeFormat := settings.NewTimeFormat(store.kv, logger)
	details := settings.NewDetails(store.kv, logger)
	mainLocation := location.NewMainLocation(store.kv, logger)
	saved := location.NewSavedLocations(store.kv, logger)

	var position *models.Coordinates
	if cfg.HasDevicePosition() {
		position = &models.Coordinates{Latitude: *cfg.DeviceLatitude, Longitude: *cfg.DeviceLongitude}
	}
	dev := device.NewFixed(device.Permission(cfg.DevicePermission), position)

	orch := service.New(service.Deps{
		Weather:         forecastClient,
		AirQuality:      airQualityClient,
		WeatherCache:    cache.NewWeatherStore(store.kv, logger),
		AirQualityCache: cache.NewAirQualityStore(store.kv, logger),
		Units:           units,
		MainLocation:    mainLocation,
		Permissions:     dev,
		Position:        dev,
		Logger:          logger,
	})
	units.OnChange(orch.SettingsChanged)
	mainLocation.OnChange(orch.SettingsChanged)

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		if err := orch.Run(ctx); err != nil {
			logger.Error("refresh orchestrator", zap.Error(err))
		}
	}()

	// Settings load after the orchestrator is running so the change
	// notifications they emit are delivered.
	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	units.Load(loadCtx)
	timeFormat.Load(loadCtx)
	details.Load(loadCtx)
	mainLocation.Load(loadCtx)
	loadCancel()

	refresher := scheduler.New(orch, cfg.RefreshCheckInterval, logger)
	if err := refresher.Start(); err != nil {
		logger.Fatal("refresh scheduler", zap.Error(err))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(httphandler.Deps{
		Orchestrator: orch,
		Search:       geocodingClient,
		Lookup:       service.NewLookup(forecastClient, airQualityClient, units, logger),
		Saved:        saved,
		Main:         mainLocation,
		Units:        units,
		TimeFormat:   timeFormat,
		Details:      details,
		StoragePing:  store.ping,
		Logger:       logger,
	})
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		RefreshLimiter: limiter,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	// SIGUSR1 and SIGUSR2 stand in for the host's background and foreground
	// notifications when no client drives PUT /lifecycle.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	for sig := range sigs {
		var state lifecycle.AppState
		switch sig {
		case syscall.SIGUSR1:
			state = lifecycle.Background
		case syscall.SIGUSR2:
			state = lifecycle.Active
		}
		if state == "" {
			break
		}
		prev := lifecycle.SetState(state)
		orch.AppStateChanged(state)
		logger.Info("app state changed", zap.String("from", string(prev)), zap.String("to", string(state)), zap.String("signal", sig.String()))
	}
	signal.Stop(sigs)

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	refresher.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	cancel()
	select {
	case <-orchDone:
	case <-shutdownCtx.Done():
		logger.Warn("refresh orchestrator did not stop before shutdown timeout")
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if store.close != nil {
		if err := store.close(); err != nil {
			logger.Error("storage close", zap.Error(err), zap.String("backend", store.name))
		}
	}
	logger.Info("shutdown complete")
}

// storage is the opened key-value backend with its optional health and
// shutdown hooks.
type storage struct {
	name  string
	kv    kv.Store
	ping  func(ctx context.Context) error
	close func() error
}

func openStore(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageBackend {
	case "file":
		fs, err := kv.NewFileStore(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return &storage{name: "file", kv: fs}, nil
	case "memcached":
		mc := kv.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		return &storage{
			name:  "memcached",
			kv:    mc,
			ping:  func(context.Context) error { return mc.Ping() },
			close: mc.Close,
		}, nil
	case "redis":
		rs := kv.NewRedisStore(kv.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		})
		return &storage{name: "redis", kv: rs, ping: rs.Ping, close: rs.Close}, nil
	case "dynamodb":
		ds, err := kv.NewDynamoDBStore(ctx, cfg.DynamoDBTable, cfg.DynamoDBRegion)
		if err != nil {
			return nil, err
		}
		return &storage{name: "dynamodb", kv: ds}, nil
	case "in_memory", "":
		return &storage{name: "in_memory", kv: kv.NewInMemoryStore()}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func clientConfig(cfg *config.Config, api config.APIConfig) client.Config {
	return client.Config{
		BaseURL:        api.URL,
		Timeout:        api.Timeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		Breaker: client.BreakerConfig{
			MaxRequests:      cfg.BreakerMaxRequests,
			Interval:         cfg.BreakerInterval,
			Timeout:          cfg.BreakerTimeout,
			FailureThreshold: cfg.BreakerFailureThreshold,
		},
	}
}
