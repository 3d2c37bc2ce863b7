package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
)

// MetarFetcher fetches the latest METAR observation for an airport.
type MetarFetcher interface {
	FetchMetar(ctx context.Context, icao string) (models.WeatherObservation, error)
}

// MetarClient fetches raw METAR text from a per-airport static resource
// ({base}/{ICAO}.TXT). The upstream convention puts a date header on the
// first line and the observation on the last non-empty line.
type MetarClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewMetarClient creates a client against baseURL (no trailing slash needed).
func NewMetarClient(baseURL string, timeout time.Duration) *MetarClient {
	return &MetarClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchMetar issues a bounded-timeout GET for the airport's report. icao
// must already be normalized (validation happens before any network call).
// The returned observation always echoes the code and carries a fetch
// instant, even on failure; on error the report is empty and the error is
// ErrUpstream. An empty body is not an error, just an empty report.
func (c *MetarClient) FetchMetar(ctx context.Context, icao string) (models.WeatherObservation, error) {
	obs := models.WeatherObservation{ICAO: icao, FetchedAt: time.Now().UTC()}
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s.TXT", c.baseURL, icao)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		observability.MetarCallsTotal.WithLabelValues("error").Inc()
		return obs, fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		observability.MetarCallsTotal.WithLabelValues("error").Inc()
		observability.MetarDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return obs, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer httpResp.Body.Close()

	status := statusLabel(httpResp.StatusCode)
	observability.MetarCallsTotal.WithLabelValues(status).Inc()
	observability.MetarDurationSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return obs, fmt.Errorf("%w: HTTP %d", ErrUpstream, httpResp.StatusCode)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return obs, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	obs.Metar = lastNonEmptyLine(string(body))
	return obs, nil
}

// lastNonEmptyLine returns the trimmed last non-empty line, or "".
func lastNonEmptyLine(body string) string {
	lines := strings.Split(body, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
