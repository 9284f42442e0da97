package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

// Store is the single-slot cache for one domain. Reads never fail: a missing,
// unreadable or undecodable slot is a miss. Writes are best effort.
type Store[T any] struct {
	backend kv.Store
	codec   Codec[T]
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore creates a Store persisting through backend with codec.
func NewStore[T any](backend kv.Store, codec Codec[T], logger *zap.Logger) *Store[T] {
	return &Store[T]{
		backend: backend,
		codec:   codec,
		logger:  observability.OrNop(logger).With(zap.String("domain", codec.Domain())),
		now:     time.Now,
	}
}

// NewWeatherStore creates the weather cache.
func NewWeatherStore(backend kv.Store, logger *zap.Logger) *Store[models.WeatherData] {
	return NewStore[models.WeatherData](backend, WeatherCodec{}, logger)
}

// NewAirQualityStore creates the air-quality cache.
func NewAirQualityStore(backend kv.Store, logger *zap.Logger) *Store[models.AirQualityData] {
	return NewStore[models.AirQualityData](backend, AirQualityCodec{}, logger)
}

// WithClock replaces the clock used to stamp entries. For tests.
func (s *Store[T]) WithClock(now func() time.Time) *Store[T] {
	s.now = now
	return s
}

// Domain returns the codec's domain label.
func (s *Store[T]) Domain() string {
	return s.codec.Domain()
}

// Get returns the cached entry, or (nil, false) when there is none.
func (s *Store[T]) Get(ctx context.Context) (*Entry[T], bool) {
	raw, ok, err := s.backend.Get(ctx, s.codec.Key())
	if err != nil {
		s.logger.Warn("cache read failed", zap.Error(err))
		observability.CacheReadsTotal.WithLabelValues(s.codec.Domain(), "error").Inc()
		return nil, false
	}
	if !ok {
		observability.CacheReadsTotal.WithLabelValues(s.codec.Domain(), "miss").Inc()
		return nil, false
	}
	entry, err := decodeEntry(s.codec, raw)
	if err != nil {
		s.logger.Warn("cache entry unreadable, treating as miss", zap.Error(err))
		observability.CacheReadsTotal.WithLabelValues(s.codec.Domain(), "decode_error").Inc()
		return nil, false
	}
	observability.CacheReadsTotal.WithLabelValues(s.codec.Domain(), "hit").Inc()
	return entry, true
}

// Set overwrites the slot with data stamped at the current time.
// Failures are logged and dropped.
func (s *Store[T]) Set(ctx context.Context, lat, lon float64, sourceKey string, data T) {
	s.write(ctx, lat, lon, sourceKey, nil, data)
}

// SetWithUnits is Set for payloads whose values depend on the units they
// were requested in.
func (s *Store[T]) SetWithUnits(ctx context.Context, lat, lon float64, sourceKey string, units models.Units, data T) {
	s.write(ctx, lat, lon, sourceKey, &units, data)
}

func (s *Store[T]) write(ctx context.Context, lat, lon float64, sourceKey string, units *models.Units, data T) {
	entry := Entry[T]{
		Data:      data,
		Timestamp: time.UnixMilli(s.now().UnixMilli()),
		Latitude:  lat,
		Longitude: lon,
		SourceKey: sourceKey,
		Units:     units,
	}
	raw, err := encodeEntry(s.codec, entry)
	if err != nil {
		s.logger.Error("cache entry encode failed", zap.Error(err))
		observability.CacheWritesTotal.WithLabelValues(s.codec.Domain(), "error").Inc()
		return
	}
	if err := s.backend.Set(ctx, s.codec.Key(), raw); err != nil {
		s.logger.Warn("cache write failed", zap.Error(err), zap.String("source_key", sourceKey))
		observability.CacheWritesTotal.WithLabelValues(s.codec.Domain(), "error").Inc()
		return
	}
	observability.CacheWritesTotal.WithLabelValues(s.codec.Domain(), "success").Inc()
}

// Clear removes the slot.
func (s *Store[T]) Clear(ctx context.Context) {
	if err := s.backend.Remove(ctx, s.codec.Key()); err != nil {
		s.logger.Warn("cache clear failed", zap.Error(err))
	}
}

// Age returns how long ago the cached entry was written, false when there is none.
func (s *Store[T]) Age(ctx context.Context) (time.Duration, bool) {
	entry, ok := s.Get(ctx)
	if !ok {
		return 0, false
	}
	return Age(entry, s.now()), true
}
