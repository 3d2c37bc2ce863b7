package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
)

// ObservationFetcher is implemented by the weather service. Declared here
// so the warmer does not depend on the service package.
type ObservationFetcher interface {
	Observation(ctx context.Context, icao string) models.WeatherObservation
}

// Warmer prefetches METAR observations for a fixed list of airports so the
// first dashboard request after startup hits a warm cache.
type Warmer struct {
	fetcher ObservationFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer using the given fetcher and logger.
func NewWarmer(fetcher ObservationFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches observations for each airport concurrently. Codes must
// already be normalized. Upstream failures degrade to empty observations
// inside the service, so Warm itself cannot fail; it only takes time.
func (w *Warmer) Warm(ctx context.Context, airports []string) {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming weather cache", zap.Int("airports", len(airports)))
	}
	var wg sync.WaitGroup
	for _, code := range airports {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			w.fetcher.Observation(ctx, code)
		}(code)
	}
	wg.Wait()
	observability.CacheWarmingDurationSeconds.Observe(time.Since(start).Seconds())
}

// WarmPeriodic re-warms every interval until ctx is cancelled.
func (w *Warmer) WarmPeriodic(ctx context.Context, airports []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Warm(ctx, airports)
		}
	}
}
