package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	FlightFeedURL      string
	FlightFeedTimeout  time.Duration
	FlightFeedUsername string
	FlightFeedPassword string

	MetarBaseURL string
	MetarTimeout time.Duration

	FlightsTTL     time.Duration
	WeatherTTL     time.Duration
	SimFlightCount int

	CacheBackend string // "in_memory", "memcached" or "redis"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout       time.Duration
	InFlightTimeout       time.Duration
	InFlightCheckInterval time.Duration

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerCooldown         time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	StreamInterval time.Duration
	StaticDir      string

	TrackedAirports []string
	WarmCache       bool
	WarmInterval    time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	FlightFeed struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"flight_feed"`

	Metar struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"metar"`

	Cache struct {
		Backend       string `yaml:"backend"`
		FlightsTTL    string `yaml:"flights_ttl"`
		WeatherTTL    string `yaml:"weather_ttl"`
		WarmOnStartup *bool  `yaml:"warm_on_startup"`
		WarmInterval  string `yaml:"warm_interval"`
		Memcached     struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Simulation struct {
		FlightCount int `yaml:"flight_count"`
	} `yaml:"simulation"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Cooldown         string `yaml:"cooldown"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Stream struct {
		Interval string `yaml:"interval"`
	} `yaml:"stream"`

	Static struct {
		Dir string `yaml:"dir"`
	} `yaml:"static"`

	Metrics struct {
		TrackedAirports []string `yaml:"tracked_airports"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	FlightFeedUsername string `yaml:"flight_feed_username"`
	FlightFeedPassword string `yaml:"flight_feed_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Flight feed credentials come from FLIGHT_FEED_USERNAME
// and FLIGHT_FEED_PASSWORD env or the secrets file; both are optional since
// the feed serves anonymous requests at a lower rate limit. Call from project
// root.
func Load() (*Config, error) {
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

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.FlightFeedURL = fc.FlightFeed.URL
	if cfg.FlightFeedURL == "" {
		cfg.FlightFeedURL = "https://opensky-network.org/api/states/all"
	}
	cfg.FlightFeedTimeout = parseDuration(fc.FlightFeed.Timeout, 8*time.Second)

	cfg.FlightFeedUsername = os.Getenv("FLIGHT_FEED_USERNAME")
	cfg.FlightFeedPassword = os.Getenv("FLIGHT_FEED_PASSWORD")
	if cfg.FlightFeedUsername == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.FlightFeedUsername = sec.FlightFeedUsername
			cfg.FlightFeedPassword = sec.FlightFeedPassword
		}
	}

	cfg.MetarBaseURL = fc.Metar.BaseURL
	if cfg.MetarBaseURL == "" {
		cfg.MetarBaseURL = "https://tgftp.nws.noaa.gov/data/observations/metar/stations"
	}
	cfg.MetarTimeout = parseDuration(fc.Metar.Timeout, 8*time.Second)

	cfg.FlightsTTL = parseDuration(fc.Cache.FlightsTTL, 10*time.Second)
	cfg.WeatherTTL = parseDuration(fc.Cache.WeatherTTL, 120*time.Second)

	cfg.SimFlightCount = fc.Simulation.FlightCount
	if cfg.SimFlightCount <= 0 {
		cfg.SimFlightCount = 120
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = strings.TrimSpace(fc.Cache.Redis.Addr)
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = fc.Cache.Redis.DB

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.BreakerEnabled = true
	if fc.Reliability.CircuitBreaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.Reliability.CircuitBreaker.Enabled
	}
	cfg.BreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerCooldown = parseDuration(fc.Reliability.CircuitBreaker.Cooldown, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 20*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 250*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.StreamInterval = parseDuration(fc.Stream.Interval, 5*time.Second)

	cfg.StaticDir = fc.Static.Dir
	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}

	cfg.TrackedAirports = fc.Metrics.TrackedAirports
	cfg.WarmCache = false
	if fc.Cache.WarmOnStartup != nil {
		cfg.WarmCache = *fc.Cache.WarmOnStartup
	}
	cfg.WarmInterval = parseDuration(fc.Cache.WarmInterval, 0)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal on empty
// string, parse error, or non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate checks invariants that cannot be fixed with a default. The
// per-request timeout is stretched to exceed the slowest upstream timeout so
// an upstream deadline fires before the request deadline does.
func validate(cfg *Config) error {
	upstream := cfg.FlightFeedTimeout
	if cfg.MetarTimeout > upstream {
		upstream = cfg.MetarTimeout
	}
	if cfg.RequestTimeout <= upstream {
		cfg.RequestTimeout = upstream + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	return nil
}
