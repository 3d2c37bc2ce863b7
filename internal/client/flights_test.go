package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmeda07-gh/SkyGuard/internal/circuitbreaker"
)

// state builds an upstream state vector: [icao24, callsign, country, _, _,
// lon, lat, baroAltM, _, velocityMS, heading].
func state(id, callsign string, lon, lat, altM, vel, hdg interface{}) []interface{} {
	return []interface{}{id, callsign, "United States", nil, nil, lon, lat, altM, false, vel, hdg}
}

func serveStates(t *testing.T, states string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"time": 1700000000, "states": %s}`, states)
	}))
}

func TestFlightFeedClient_MapsFields(t *testing.T) {
	srv := serveStates(t, `[["abc123", "DAL789  ", "United States", null, null, -100.0, 40.0, 10000.0, false, 250.0, 183.5]]`)
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	records, err := c.FetchFlights(context.Background())
	if err != nil {
		t.Fatalf("FetchFlights() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.ID != "abc123" {
		t.Errorf("ID = %q, want abc123", r.ID)
	}
	if r.Carrier != "DA" {
		t.Errorf("Carrier = %q, want DA", r.Carrier)
	}
	// 10000 m = 32808.4 ft
	if math.Abs(r.AltitudeFt-32808.4) > 0.1 {
		t.Errorf("AltitudeFt = %v, want 32808.4 +/- 0.1", r.AltitudeFt)
	}
	// 250 m/s = 485.96 kt
	if math.Abs(r.SpeedKt-485.96) > 0.01 {
		t.Errorf("SpeedKt = %v, want 485.96 +/- 0.01", r.SpeedKt)
	}
	if r.Heading != 183.5 {
		t.Errorf("Heading = %v, want 183.5", r.Heading)
	}
}

func TestFlightFeedClient_ClampsNegativeAltitudeAndSpeed(t *testing.T) {
	srv := serveStates(t, `[["abc123", "DAL789", "United States", null, null, -100.0, 40.0, -100.0, true, -3.5, 270.0]]`)
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	records, err := c.FetchFlights(context.Background())
	if err != nil {
		t.Fatalf("FetchFlights() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].AltitudeFt != 0 {
		t.Errorf("AltitudeFt = %v, want 0 for negative baro altitude", records[0].AltitudeFt)
	}
	if records[0].SpeedKt != 0 {
		t.Errorf("SpeedKt = %v, want 0 for negative velocity", records[0].SpeedKt)
	}
}

func TestFlightFeedClient_IdentifierFallbacks(t *testing.T) {
	srv := serveStates(t, `[
		[null, "UAL1  ", null, null, null, -100.0, 40.0, null, null, null, null],
		[null, null, null, null, null, -101.0, 41.0, null, null, null, null]
	]`)
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	records, err := c.FetchFlights(context.Background())
	if err != nil {
		t.Fatalf("FetchFlights() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "UAL1" {
		t.Errorf("first ID = %q, want callsign fallback UAL1", records[0].ID)
	}
	if records[1].ID != "UNKNOWN-1" {
		t.Errorf("second ID = %q, want synthesized UNKNOWN-1", records[1].ID)
	}
	if records[1].Carrier != "UA" {
		t.Errorf("second Carrier = %q, want default UA", records[1].Carrier)
	}
}

func TestFlightFeedClient_DefaultsMissingNumericFields(t *testing.T) {
	srv := serveStates(t, `[["abc123", "SWA42", null, null, null, -100.0, 40.0, null, null, null, null]]`)
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	records, err := c.FetchFlights(context.Background())
	if err != nil {
		t.Fatalf("FetchFlights() error = %v", err)
	}
	r := records[0]
	if r.AltitudeFt != 0 || r.SpeedKt != 0 || r.Heading != 0 {
		t.Errorf("missing fields = (%v, %v, %v), want zeros", r.AltitudeFt, r.SpeedKt, r.Heading)
	}
}

func TestFlightFeedClient_FiltersOutOfBounds(t *testing.T) {
	srv := serveStates(t, `[
		["inside", "AAL1", null, null, null, -100.0, 40.0, null, null, null, null],
		["toofarwest", "AAL2", null, null, null, -140.0, 40.0, null, null, null, null],
		["toofarsouth", "AAL3", null, null, null, -100.0, 10.0, null, null, null, null],
		["nolat", "AAL4", null, null, null, -100.0, null, null, null, null, null]
	]`)
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	records, err := c.FetchFlights(context.Background())
	if err != nil {
		t.Fatalf("FetchFlights() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != "inside" {
		t.Errorf("records = %+v, want only the in-bounds state", records)
	}
}

func TestFlightFeedClient_CapsResult(t *testing.T) {
	states := "["
	for i := 0; i < maxFlights+25; i++ {
		if i > 0 {
			states += ","
		}
		states += fmt.Sprintf(`["ac%d", "AAL%d", null, null, null, -100.0, 40.0, null, null, null, null]`, i, i)
	}
	states += "]"
	srv := serveStates(t, states)
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	records, err := c.FetchFlights(context.Background())
	if err != nil {
		t.Fatalf("FetchFlights() error = %v", err)
	}
	if len(records) != maxFlights {
		t.Errorf("got %d records, want cap of %d", len(records), maxFlights)
	}
}

func TestFlightFeedClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	_, err := c.FetchFlights(context.Background())
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

func TestFlightFeedClient_EmptyAfterFilter(t *testing.T) {
	srv := serveStates(t, `[["abroad", "BAW1", null, null, null, 2.5, 48.8, null, null, null, null]]`)
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	_, err := c.FetchFlights(context.Background())
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("error = %v, want ErrEmptyResult", err)
	}
}

func TestFlightFeedClient_BreakerShortCircuits(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewFlightFeedClient(srv.URL, "", "", 2*time.Second)
	c.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, Cooldown: time.Minute}))

	for i := 0; i < 2; i++ {
		if _, err := c.FetchFlights(context.Background()); !errors.Is(err, ErrUpstream) {
			t.Fatalf("call %d error = %v, want ErrUpstream", i, err)
		}
	}
	_, err := c.FetchFlights(context.Background())
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("error = %v, want ErrOpen", err)
	}
	if calls != 2 {
		t.Errorf("upstream called %d times, want 2 (third call short-circuited)", calls)
	}
}

func TestMapStates_TolerantOfShortVectors(t *testing.T) {
	states := [][]interface{}{
		{},
		{"id-only"},
		state("ok", "DAL1", -100.0, 40.0, 1000.0, 100.0, 90.0),
	}
	records := mapStates(states)
	if len(records) != 1 || records[0].ID != "ok" {
		t.Errorf("records = %+v, want only the complete state", records)
	}
}
