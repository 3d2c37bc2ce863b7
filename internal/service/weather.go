package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ahmeda07-gh/SkyGuard/internal/cache"
	"github.com/ahmeda07-gh/SkyGuard/internal/client"
	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
)

// WeatherService serves METAR observations keyed by normalized ICAO code.
// Upstream failures are swallowed into an empty-report observation, and
// that failure outcome is cached for its natural TTL slot like any other
// result: a transient outage is stuck for at most one TTL window.
type WeatherService struct {
	metar client.MetarFetcher
	cache *cache.Freshness[models.WeatherObservation]
}

// NewWeatherService builds a WeatherService. ttl bounds staleness of each
// airport's cached observation.
func NewWeatherService(metar client.MetarFetcher, store cache.Store[models.WeatherObservation], ttl time.Duration, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		metar: metar,
		cache: cache.NewFreshness(store, ttl, logger),
	}
}

// Observation returns the cached or freshly fetched observation for icao.
// icao must already be normalized (the handler validates before calling).
// Never fails: the worst outcome is a well-formed observation with an
// empty report.
func (s *WeatherService) Observation(ctx context.Context, icao string) models.WeatherObservation {
	logger := loggerFromContext(ctx)

	obs, cached, err := s.cache.GetOrRefresh(ctx, icao, func(ctx context.Context) (models.WeatherObservation, error) {
		obs, fetchErr := s.metar.FetchMetar(ctx, icao)
		if fetchErr != nil {
			observability.WeatherFallbacksTotal.Inc()
			if logger != nil {
				logger.Warn("metar fetch failed, serving empty report",
					zap.String("icao", icao), zap.Error(fetchErr))
			}
			// The empty observation is the fallback payload; cache it so the
			// failing upstream is not hammered inside the TTL window.
			return models.WeatherObservation{ICAO: icao, FetchedAt: time.Now().UTC()}, nil
		}
		return obs, nil
	})
	if cached {
		observability.CacheHitsTotal.WithLabelValues("weather").Inc()
		return obs
	}
	if err != nil {
		// Only context/store-level failures land here; still return a
		// well-formed observation so the client boundary never sees it.
		if logger != nil {
			logger.Warn("weather refresh aborted", zap.String("icao", icao), zap.Error(err))
		}
		return models.WeatherObservation{ICAO: icao, FetchedAt: time.Now().UTC()}
	}
	return obs
}
