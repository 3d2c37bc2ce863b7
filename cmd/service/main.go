package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahmeda07-gh/SkyGuard/internal/cache"
	"github.com/ahmeda07-gh/SkyGuard/internal/circuitbreaker"
	"github.com/ahmeda07-gh/SkyGuard/internal/client"
	"github.com/ahmeda07-gh/SkyGuard/internal/config"
	httphandler "github.com/ahmeda07-gh/SkyGuard/internal/http"
	"github.com/ahmeda07-gh/SkyGuard/internal/lifecycle"
	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
	"github.com/ahmeda07-gh/SkyGuard/internal/service"
	"github.com/ahmeda07-gh/SkyGuard/internal/stream"
	"github.com/ahmeda07-gh/SkyGuard/internal/validation"
)

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

	flightFeed := client.NewFlightFeedClient(
		cfg.FlightFeedURL,
		cfg.FlightFeedUsername,
		cfg.FlightFeedPassword,
		cfg.FlightFeedTimeout,
	)
	metarClient := client.NewMetarClient(cfg.MetarBaseURL, cfg.MetarTimeout)

	var breaker *circuitbreaker.Breaker
	if cfg.BreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Cooldown:         cfg.BreakerCooldown,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordBreakerTransition("flight_feed", from.String(), to.String())
				observability.SetBreakerState("flight_feed", int(to))
			},
		})
		flightFeed.SetCircuitBreaker(breaker)
		observability.SetBreakerState("flight_feed", 0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("cooldown", cfg.BreakerCooldown))
	}

	// The flight snapshot is a single hot key, so it always lives in process
	// memory. Only the weather cache is pluggable.
	weatherStore, pingCache, closeCache, err := newWeatherStore(cfg, logger)
	if err != nil {
		logger.Fatal("weather cache", zap.Error(err))
	}

	flightService := service.NewFlightService(
		flightFeed,
		cache.NewMemory[[]models.FlightRecord](),
		cfg.FlightsTTL,
		cfg.SimFlightCount,
		logger,
	)
	weatherService := service.NewWeatherService(metarClient, weatherStore, cfg.WeatherTTL, logger)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		StartTime:            time.Now(),
		CachePing:            pingCache,
	}
	if breaker != nil {
		healthConfig.BreakerState = func() string { return breaker.State().String() }
	}

	handler := httphandler.NewHandler(flightService, weatherService, healthConfig, logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	observability.RegisterTrafficGauges(cfg.OverloadWindow)

	airports := normalizeAirports(cfg.TrackedAirports, logger)
	if cfg.WarmCache && len(airports) > 0 {
		warmer := cache.NewWarmer(weatherService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		warmer.Warm(warmCtx, airports)
		warmCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), airports, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	hub := stream.NewHub(flightService, cfg.StreamInterval, logger)
	streamCtx, streamCancel := context.WithCancel(context.Background())
	defer streamCancel()
	go hub.Run(streamCtx)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.RecoverMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/ws", hub.HandleWS)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(httphandler.RateLimitMiddleware(limiter))
	api.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/flights", handler.GetFlights).Methods("GET")
	api.HandleFunc("/weather", handler.GetWeather).Methods("GET")

	if _, err := os.Stat(cfg.StaticDir); err == nil {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	streamCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if remaining := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); remaining > 0 {
		logger.Warn("in-flight requests not completed", zap.Int64("remaining", remaining))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if closeCache != nil {
		if err := closeCache(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// newWeatherStore builds the configured weather cache backend. The ping and
// close funcs are nil for the in-memory backend.
func newWeatherStore(cfg *config.Config, logger *zap.Logger) (cache.Store[models.WeatherObservation], func() error, func() error, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcached[models.WeatherObservation](cfg.MemcachedAddrs, "weather", cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc.Ping, mc.Close, nil
	case "redis":
		rc := cache.NewRedis[models.WeatherObservation](cfg.RedisAddr, cfg.RedisPassword, "weather", cfg.RedisDB)
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
		return rc, rc.Ping, rc.Close, nil
	default:
		logger.Info("cache backend: in_memory")
		return cache.NewMemory[models.WeatherObservation](), nil, nil, nil
	}
}

// normalizeAirports validates the configured airport codes, dropping any
// that fail ICAO validation so warming never caches a malformed key.
func normalizeAirports(codes []string, logger *zap.Logger) []string {
	out := make([]string, 0, len(codes))
	for _, raw := range codes {
		code, err := validation.NormalizeICAO(raw)
		if err != nil {
			logger.Warn("skipping invalid tracked airport", zap.String("code", raw), zap.Error(err))
			continue
		}
		out = append(out, code)
	}
	return out
}
