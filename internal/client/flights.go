package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ahmeda07-gh/SkyGuard/internal/circuitbreaker"
	"github.com/ahmeda07-gh/SkyGuard/internal/geofence"
	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
)

// FlightFetcher fetches normalized flight records from an upstream feed.
type FlightFetcher interface {
	FetchFlights(ctx context.Context) ([]models.FlightRecord, error)
}

const (
	metersToFeet = 3.28084
	msToKnots    = 1.94384

	// maxFlights caps the post-filter result to bound payload size.
	maxFlights = 150

	defaultCarrier = "UA"

	// The feed carries no route information; origin and destination are
	// placeholders on live records.
	placeholderAirport = "UNKN"
)

// continentalBounds restricts ingestion to the continental US. A deliberate
// scope restriction: the dashboard renders this region only.
var continentalBounds = geofence.Box{LatMin: 20, LatMax: 55, LonMin: -130, LonMax: -60}

// FlightFeedClient fetches aircraft state vectors from an OpenSky-style
// feed and maps them into FlightRecords.
type FlightFeedClient struct {
	url      string
	username string
	password string
	client   *http.Client
	timeout  time.Duration
	breaker  *circuitbreaker.Breaker
}

// NewFlightFeedClient creates a client for the state feed at url. Credentials
// are optional; anonymous access works with tighter upstream rate limits.
func NewFlightFeedClient(url, username, password string, timeout time.Duration) *FlightFeedClient {
	return &FlightFeedClient{
		url:      url,
		username: username,
		password: password,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// SetCircuitBreaker installs a breaker around feed calls. While open, calls
// fail fast with the breaker's error so the caller falls back immediately.
func (c *FlightFeedClient) SetCircuitBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

// stateListResponse matches the upstream payload. States is a list of
// positional arrays with mixed element types; every field is optional.
type stateListResponse struct {
	Time   int64           `json:"time"`
	States [][]interface{} `json:"states"`
}

// Upstream state vector indices.
const (
	idxTransponder = 0
	idxCallsign    = 1
	idxLongitude   = 5
	idxLatitude    = 6
	idxBaroAltM    = 7
	idxVelocityMS  = 9
	idxHeadingDeg  = 10
)

// FetchFlights issues a bounded-timeout GET to the state feed and returns
// normalized records inside the continental bounding box, capped at
// maxFlights. Returns ErrUpstream on transport or decode failure and
// ErrEmptyResult when nothing qualifies; both trigger the caller's
// fallback path.
func (c *FlightFeedClient) FetchFlights(ctx context.Context) ([]models.FlightRecord, error) {
	var resp stateListResponse
	call := func() error {
		var err error
		resp, err = c.fetchStates(ctx)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}

	records := mapStates(resp.States)
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}
	return records, nil
}

func (c *FlightFeedClient) fetchStates(ctx context.Context) (stateListResponse, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.url, nil)
	if err != nil {
		observability.FlightFeedCallsTotal.WithLabelValues("error").Inc()
		return stateListResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		observability.FlightFeedCallsTotal.WithLabelValues("error").Inc()
		observability.FlightFeedDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return stateListResponse{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer httpResp.Body.Close()

	status := statusLabel(httpResp.StatusCode)
	observability.FlightFeedCallsTotal.WithLabelValues(status).Inc()
	observability.FlightFeedDurationSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return stateListResponse{}, fmt.Errorf("%w: HTTP %d", ErrUpstream, httpResp.StatusCode)
	}

	var resp stateListResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return stateListResponse{}, fmt.Errorf("%w: parse response: %v", ErrUpstream, err)
	}
	return resp, nil
}

// mapStates filters and normalizes raw state vectors. States outside the
// continental bounds are dropped; the result is capped at maxFlights.
func mapStates(states [][]interface{}) []models.FlightRecord {
	records := make([]models.FlightRecord, 0, maxFlights)
	for i, s := range states {
		lat, latOK := floatAt(s, idxLatitude)
		lon, lonOK := floatAt(s, idxLongitude)
		if !latOK || !lonOK || !continentalBounds.Contains(lat, lon) {
			continue
		}

		id := strings.TrimSpace(stringAt(s, idxTransponder))
		callsign := strings.TrimSpace(stringAt(s, idxCallsign))
		if id == "" {
			id = callsign
		}
		if id == "" {
			id = fmt.Sprintf("UNKNOWN-%d", i)
		}

		carrier := defaultCarrier
		if len(callsign) >= 2 {
			carrier = callsign[:2]
		}

		// Aircraft on the ground report small negative baro altitudes;
		// altitude and ground speed never go below zero.
		var altFt, speedKt, heading float64
		if v, ok := floatAt(s, idxBaroAltM); ok {
			altFt = math.Max(0, v*metersToFeet)
		}
		if v, ok := floatAt(s, idxVelocityMS); ok {
			speedKt = math.Max(0, v*msToKnots)
		}
		if v, ok := floatAt(s, idxHeadingDeg); ok {
			heading = v
		}

		records = append(records, models.FlightRecord{
			ID:          id,
			Carrier:     carrier,
			Lat:         lat,
			Lon:         lon,
			AltitudeFt:  altFt,
			SpeedKt:     speedKt,
			Heading:     heading,
			Origin:      placeholderAirport,
			Destination: placeholderAirport,
		})
		if len(records) == maxFlights {
			break
		}
	}
	return records
}

// floatAt extracts a finite float from a positional state vector. Missing,
// null, non-numeric, and non-finite values all report false.
func floatAt(s []interface{}, idx int) (float64, bool) {
	if idx >= len(s) || s[idx] == nil {
		return 0, false
	}
	f, ok := s[idx].(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stringAt extracts a string from a positional state vector, or "".
func stringAt(s []interface{}, idx int) string {
	if idx >= len(s) || s[idx] == nil {
		return ""
	}
	str, _ := s[idx].(string)
	return str
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
