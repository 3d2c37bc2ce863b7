package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ahmeda07-gh/SkyGuard/internal/cache"
	"github.com/ahmeda07-gh/SkyGuard/internal/circuitbreaker"
	"github.com/ahmeda07-gh/SkyGuard/internal/client"
	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
	"github.com/ahmeda07-gh/SkyGuard/internal/simulate"
)

// flightCacheKey is the single global key for the flight list.
const flightCacheKey = "flights"

// FlightService serves the normalized flight list with bounded staleness.
// Cache hit -> source=cache; successful refresh -> source=live; upstream
// failure or empty feed -> synthetic records tagged source=simulated. The
// simulated fallback is written into the cache too, so repeated requests
// inside the TTL window neither re-run the generator nor retry a known-bad
// upstream.
type FlightService struct {
	feed     client.FlightFetcher
	cache    *cache.Freshness[[]models.FlightRecord]
	simCount int
}

// NewFlightService builds a FlightService. ttl bounds staleness of the
// single cached flight list; simCount is how many synthetic records a
// fallback produces.
func NewFlightService(feed client.FlightFetcher, store cache.Store[[]models.FlightRecord], ttl time.Duration, simCount int, logger *zap.Logger) *FlightService {
	if simCount <= 0 {
		simCount = simulate.DefaultCount
	}
	return &FlightService{
		feed:     feed,
		cache:    cache.NewFreshness(store, ttl, logger),
		simCount: simCount,
	}
}

// Flights returns the current flight list and its source tag. It never
// fails: every upstream problem degrades to simulated data.
func (s *FlightService) Flights(ctx context.Context) ([]models.FlightRecord, string) {
	logger := loggerFromContext(ctx)

	records, cached, err := s.cache.GetOrRefresh(ctx, flightCacheKey, func(ctx context.Context) ([]models.FlightRecord, error) {
		return s.feed.FetchFlights(ctx)
	})
	if cached {
		observability.CacheHitsTotal.WithLabelValues("flights").Inc()
		return records, models.SourceCache
	}
	if err == nil && len(records) > 0 {
		if logger != nil {
			logger.Debug("flights refreshed from feed", zap.Int("count", len(records)))
		}
		return records, models.SourceLive
	}

	observability.FlightFallbacksTotal.WithLabelValues(fallbackReason(err)).Inc()
	if logger != nil {
		logger.Warn("flight feed unavailable, serving simulated data", zap.Error(err))
	}
	sim := simulate.Generate(s.simCount)
	s.cache.Put(ctx, flightCacheKey, sim)
	return sim, models.SourceSimulated
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, client.ErrEmptyResult):
		return "empty"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "breaker_open"
	default:
		return "upstream_error"
	}
}

// loggerFromContext extracts the request-scoped zap.Logger, if any.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}
