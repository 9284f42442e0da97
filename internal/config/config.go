package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// APIConfig is the endpoint configuration of one Open-Meteo API.
type APIConfig struct {
	URL     string        `validate:"omitempty,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// Config holds daemon configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort     string        `validate:"required,numeric"`
	RequestTimeout time.Duration `validate:"gt=0"`

	StorageBackend string `validate:"oneof=in_memory file memcached redis dynamodb"`
	StoragePath    string `validate:"required_if=StorageBackend file"`

	MemcachedAddrs        string `validate:"required_if=StorageBackend memcached"`
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string `validate:"required_if=StorageBackend redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	RedisTLS      bool

	DynamoDBTable  string `validate:"required_if=StorageBackend dynamodb"`
	DynamoDBRegion string

	WeatherAPI    APIConfig
	AirQualityAPI APIConfig
	GeocodingAPI  APIConfig

	RetryAttempts           int `validate:"gte=1,lte=10"`
	RetryBaseDelay          time.Duration
	RetryMaxDelay           time.Duration `validate:"gtefield=RetryBaseDelay"`
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32 `validate:"gte=1"`
	RateLimitRPS            int    `validate:"gte=0"`
	RateLimitBurst          int    `validate:"gte=0"`

	DevicePermission string   `validate:"oneof=granted denied"`
	DeviceLatitude   *float64 `validate:"omitempty,gte=-90,lte=90"`
	DeviceLongitude  *float64 `validate:"omitempty,gte=-180,lte=180"`

	RefreshCheckInterval time.Duration `validate:"gte=0"`

	ShutdownTimeout time.Duration `validate:"gt=0"`
}

type fileAPI struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type fileConfig struct {
	HTTP struct {
		Port           string `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"http"`

	Storage struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
			TLS  bool   `yaml:"tls"`
		} `yaml:"redis"`
		DynamoDB struct {
			Table  string `yaml:"table"`
			Region string `yaml:"region"`
		} `yaml:"dynamodb"`
	} `yaml:"storage"`

	WeatherAPI    fileAPI `yaml:"weather_api"`
	AirQualityAPI fileAPI `yaml:"air_quality_api"`
	GeocodingAPI  fileAPI `yaml:"geocoding_api"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		CircuitBreaker   struct {
			MaxRequests      uint32 `yaml:"max_requests"`
			Interval         string `yaml:"interval"`
			Timeout          string `yaml:"timeout"`
			FailureThreshold uint32 `yaml:"failure_threshold"`
		} `yaml:"circuit_breaker"`
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Device struct {
		Permission string   `yaml:"permission"`
		Latitude   *float64 `yaml:"latitude"`
		Longitude  *float64 `yaml:"longitude"`
	} `yaml:"device"`

	Refresh struct {
		CheckInterval *string `yaml:"check_interval"`
	} `yaml:"refresh"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	RedisPassword string `yaml:"redis_password"`
}

var validate = validator.New()

// Load reads .env (optional), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml (optional). Env overrides: HTTP_PORT, STORAGE_BACKEND,
// STORAGE_PATH, MEMCACHED_ADDRS, REDIS_ADDR, REDIS_PASSWORD, DYNAMODB_TABLE.
// Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fc.HTTP.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.HTTP.RequestTimeout, 15*time.Second)

	cfg.StorageBackend = strings.ToLower(firstNonEmpty(os.Getenv("STORAGE_BACKEND"), fc.Storage.Backend, "file"))
	cfg.StoragePath = firstNonEmpty(os.Getenv("STORAGE_PATH"), fc.Storage.Path, filepath.Join(cwd, "data", "store.json"))
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Storage.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Storage.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Storage.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = firstNonEmpty(os.Getenv("REDIS_ADDR"), fc.Storage.Redis.Addr, "localhost:6379")
	cfg.RedisDB = fc.Storage.Redis.DB
	cfg.RedisTLS = fc.Storage.Redis.TLS
	cfg.DynamoDBTable = firstNonEmpty(os.Getenv("DYNAMODB_TABLE"), fc.Storage.DynamoDB.Table)
	cfg.DynamoDBRegion = fc.Storage.DynamoDB.Region

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisPassword == "" {
		pw, err := loadRedisPassword(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.RedisPassword = pw
	}

	cfg.WeatherAPI = apiConfig(fc.WeatherAPI, 10*time.Second)
	cfg.AirQualityAPI = apiConfig(fc.AirQualityAPI, 10*time.Second)
	cfg.GeocodingAPI = apiConfig(fc.GeocodingAPI, 5*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cb := fc.Reliability.CircuitBreaker
	cfg.BreakerMaxRequests = cb.MaxRequests
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 1
	}
	cfg.BreakerInterval = parseDuration(cb.Interval, time.Minute)
	cfg.BreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)
	cfg.BreakerFailureThreshold = cb.FailureThreshold
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 1
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 3
	}

	cfg.DevicePermission = strings.ToLower(firstNonEmpty(fc.Device.Permission, "granted"))
	cfg.DeviceLatitude = fc.Device.Latitude
	cfg.DeviceLongitude = fc.Device.Longitude

	// An explicit zero disables the periodic check, so only a missing key gets the default.
	cfg.RefreshCheckInterval = 5 * time.Minute
	if fc.Refresh.CheckInterval != nil {
		cfg.RefreshCheckInterval = parseDurationOrZero(*fc.Refresh.CheckInterval, 5*time.Minute)
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasDevicePosition reports whether both device coordinates are configured.
func (c *Config) HasDevicePosition() bool {
	return c.DeviceLatitude != nil && c.DeviceLongitude != nil
}

func apiConfig(f fileAPI, defaultTimeout time.Duration) APIConfig {
	return APIConfig{
		URL:     strings.TrimSpace(f.URL),
		Timeout: parseDuration(f.Timeout, defaultTimeout),
	}
}

func loadRedisPassword(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return sec.RedisPassword, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validateConfig runs struct validation and the cross-field checks the tags
// cannot express. RequestTimeout is raised to cover the slowest API call.
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if (cfg.DeviceLatitude == nil) != (cfg.DeviceLongitude == nil) {
		return fmt.Errorf("invalid config: device latitude and longitude must be set together")
	}
	for _, api := range []APIConfig{cfg.WeatherAPI, cfg.AirQualityAPI, cfg.GeocodingAPI} {
		if cfg.RequestTimeout <= api.Timeout {
			cfg.RequestTimeout = api.Timeout + time.Second
		}
	}
	return nil
}
