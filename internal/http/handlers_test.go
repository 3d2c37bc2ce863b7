package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ahmeda07-gh/SkyGuard/internal/cache"
	"github.com/ahmeda07-gh/SkyGuard/internal/health"
	"github.com/ahmeda07-gh/SkyGuard/internal/lifecycle"
	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/service"
)

type stubFlightFeed struct {
	records []models.FlightRecord
	err     error
}

func (s *stubFlightFeed) FetchFlights(ctx context.Context) ([]models.FlightRecord, error) {
	return s.records, s.err
}

type stubMetarFeed struct {
	obs models.WeatherObservation
	err error
}

func (s *stubMetarFeed) FetchMetar(ctx context.Context, icao string) (models.WeatherObservation, error) {
	obs := s.obs
	obs.ICAO = icao
	return obs, s.err
}

func newTestHandler(feed *stubFlightFeed, metar *stubMetarFeed) *Handler {
	logger := zap.NewNop()
	flights := service.NewFlightService(feed, cache.NewMemory[[]models.FlightRecord](), 10*time.Second, 120, logger)
	weather := service.NewWeatherService(metar, cache.NewMemory[models.WeatherObservation](), 120*time.Second, logger)
	return NewHandler(flights, weather, &HealthConfig{
		OverloadWindow:       time.Minute,
		OverloadThresholdPct: 80,
		RateLimitRPS:         100,
		DegradedWindow:       time.Minute,
		DegradedErrorPct:     50,
		StartTime:            time.Now(),
	}, logger)
}

func TestGetFlightsLive(t *testing.T) {
	health.Reset()
	feed := &stubFlightFeed{records: []models.FlightRecord{
		{ID: "abc123", Carrier: "UA", Lat: 40.0, Lon: -90.0, AltitudeFt: 32000, SpeedKt: 450, Heading: 270},
	}}
	h := newTestHandler(feed, &stubMetarFeed{})

	req := httptest.NewRequest("GET", "/api/flights", nil)
	rec := httptest.NewRecorder()
	h.GetFlights(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp models.FlightsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != models.SourceLive {
		t.Errorf("source: got %q, want %q", resp.Source, models.SourceLive)
	}
	if len(resp.Flights) != 1 || resp.Flights[0].ID != "abc123" {
		t.Errorf("unexpected flights payload: %+v", resp.Flights)
	}
}

func TestGetFlightsFallsBackToSimulated(t *testing.T) {
	health.Reset()
	feed := &stubFlightFeed{err: errors.New("connection refused")}
	h := newTestHandler(feed, &stubMetarFeed{})

	req := httptest.NewRequest("GET", "/api/flights", nil)
	rec := httptest.NewRecorder()
	h.GetFlights(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp models.FlightsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != models.SourceSimulated {
		t.Errorf("source: got %q, want %q", resp.Source, models.SourceSimulated)
	}
	if len(resp.Flights) != 120 {
		t.Errorf("flight count: got %d, want 120", len(resp.Flights))
	}
}

func TestGetFlightsSecondCallServedFromCache(t *testing.T) {
	health.Reset()
	feed := &stubFlightFeed{records: []models.FlightRecord{{ID: "abc123"}}}
	h := newTestHandler(feed, &stubMetarFeed{})

	for i, want := range []string{models.SourceLive, models.SourceCache} {
		rec := httptest.NewRecorder()
		h.GetFlights(rec, httptest.NewRequest("GET", "/api/flights", nil))
		var resp models.FlightsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("call %d decode: %v", i, err)
		}
		if resp.Source != want {
			t.Errorf("call %d source: got %q, want %q", i, resp.Source, want)
		}
	}
}

func TestGetWeather(t *testing.T) {
	health.Reset()
	h := newTestHandler(&stubFlightFeed{}, &stubMetarFeed{
		obs: models.WeatherObservation{Metar: "KJFK 261651Z 31008KT 10SM FEW250 24/12 A3012", FetchedAt: time.Now().UTC()},
	})

	req := httptest.NewRequest("GET", "/api/weather?icao=kjfk", nil)
	rec := httptest.NewRecorder()
	h.GetWeather(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var obs models.WeatherObservation
	if err := json.NewDecoder(rec.Body).Decode(&obs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if obs.ICAO != "KJFK" {
		t.Errorf("icao: got %q, want KJFK", obs.ICAO)
	}
	if obs.Metar == "" {
		t.Error("expected raw report in response")
	}
}

func TestGetWeatherRejectsInvalidICAO(t *testing.T) {
	health.Reset()
	h := newTestHandler(&stubFlightFeed{}, &stubMetarFeed{})

	for _, icao := range []string{"", "KJ", "K-1"} {
		req := httptest.NewRequest("GET", "/api/weather?icao="+icao, nil)
		rec := httptest.NewRecorder()
		h.GetWeather(rec, req)

		if rec.Code != 400 {
			t.Errorf("icao %q: got status %d, want 400", icao, rec.Code)
			continue
		}
		var resp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error.Code != "INVALID_ICAO" {
			t.Errorf("icao %q: error code %q, want INVALID_ICAO", icao, resp.Error.Code)
		}
	}
}

func TestGetWeatherUpstreamFailureStillReturns200(t *testing.T) {
	health.Reset()
	h := newTestHandler(&stubFlightFeed{}, &stubMetarFeed{err: errors.New("timeout")})

	req := httptest.NewRequest("GET", "/api/weather?icao=KLAX", nil)
	rec := httptest.NewRecorder()
	h.GetWeather(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var obs models.WeatherObservation
	if err := json.NewDecoder(rec.Body).Decode(&obs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if obs.ICAO != "KLAX" {
		t.Errorf("icao: got %q, want KLAX", obs.ICAO)
	}
	if obs.Metar != "" {
		t.Errorf("expected empty report, got %q", obs.Metar)
	}
}

func TestGetHealthHealthy(t *testing.T) {
	health.Reset()
	h := newTestHandler(&stubFlightFeed{}, &stubMetarFeed{})

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 200 {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status field: got %v, want healthy", resp["status"])
	}
}

func TestGetHealthShuttingDown(t *testing.T) {
	health.Reset()
	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	h := newTestHandler(&stubFlightFeed{}, &stubMetarFeed{})
	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 503 {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "shutting-down" {
		t.Errorf("status field: got %v, want shutting-down", resp["status"])
	}
}

func TestGetHealthDegradedOnErrorRate(t *testing.T) {
	health.Reset()
	defer health.Reset()
	for i := 0; i < 6; i++ {
		health.RecordError()
	}
	for i := 0; i < 4; i++ {
		health.RecordSuccess()
	}

	h := newTestHandler(&stubFlightFeed{}, &stubMetarFeed{})
	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 503 {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "degraded" {
		t.Errorf("status field: got %v, want degraded", resp["status"])
	}
}

func TestGetHealthOverloaded(t *testing.T) {
	health.Reset()
	defer health.Reset()

	h := newTestHandler(&stubFlightFeed{}, &stubMetarFeed{})
	h.healthConfig.RateLimitRPS = 1
	h.healthConfig.OverloadWindow = time.Minute
	h.healthConfig.OverloadThresholdPct = 1

	for i := 0; i < 5; i++ {
		health.RecordSuccess()
	}

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 503 {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "overloaded" {
		t.Errorf("status field: got %v, want overloaded", resp["status"])
	}
}
