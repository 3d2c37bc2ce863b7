package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahmeda07-gh/SkyGuard/internal/health"
)

func TestCorrelationIDMiddlewareGeneratesID(t *testing.T) {
	var gotCtxID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtxID, _ = r.Context().Value("correlation_id").(string)
	})

	rec := httptest.NewRecorder()
	CorrelationIDMiddleware(zap.NewNop())(next).ServeHTTP(rec, httptest.NewRequest("GET", "/api/flights", nil))

	if gotCtxID == "" {
		t.Error("expected correlation id in context")
	}
	if hdr := rec.Header().Get("X-Correlation-ID"); hdr != gotCtxID {
		t.Errorf("header %q does not match context value %q", hdr, gotCtxID)
	}
}

func TestCorrelationIDMiddlewarePreservesIncomingID(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/api/flights", nil)
	req.Header.Set("X-Correlation-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	CorrelationIDMiddleware(zap.NewNop())(next).ServeHTTP(rec, req)

	if hdr := rec.Header().Get("X-Correlation-ID"); hdr != "client-supplied-id" {
		t.Errorf("header: got %q, want client-supplied-id", hdr)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	RecoverMiddleware(zap.NewNop())(next).ServeHTTP(rec, httptest.NewRequest("GET", "/api/flights", nil))

	if rec.Code != 500 {
		t.Errorf("status: got %d, want 500", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	health.Reset()
	defer health.Reset()

	limiter := rate.NewLimiter(rate.Limit(1), 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	wrapped := RateLimitMiddleware(limiter)(next)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/api/flights", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != 200 || codes[1] != 200 {
		t.Errorf("first two requests should pass, got %v", codes)
	}
	if codes[2] != 429 {
		t.Errorf("third request: got %d, want 429", codes[2])
	}
	if health.DenialCount(time.Minute) != 1 {
		t.Errorf("denial count: got %d, want 1", health.DenialCount(time.Minute))
	}
}

func TestTimeoutMiddlewareSetsDeadline(t *testing.T) {
	var deadlineSet bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
	})

	rec := httptest.NewRecorder()
	TimeoutMiddleware(time.Second)(next).ServeHTTP(rec, httptest.NewRequest("GET", "/api/flights", nil))

	if !deadlineSet {
		t.Error("expected request context to carry a deadline")
	}
}

func TestMetricsMiddlewareTracksInFlight(t *testing.T) {
	var during int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	})

	before := InFlightCount()
	rec := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rec, httptest.NewRequest("GET", "/api/flights", nil))

	if during != before+1 {
		t.Errorf("in-flight during request: got %d, want %d", during, before+1)
	}
	if InFlightCount() != before {
		t.Errorf("in-flight after request: got %d, want %d", InFlightCount(), before)
	}
}

func TestWaitForInFlightDrains(t *testing.T) {
	incrementInFlight()
	go func() {
		time.Sleep(20 * time.Millisecond)
		decrementInFlight()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if n := WaitForInFlight(ctx, 5*time.Millisecond); n != 0 {
		t.Errorf("residual in-flight: got %d, want 0", n)
	}
}

func TestWaitForInFlightTimesOut(t *testing.T) {
	incrementInFlight()
	defer decrementInFlight()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if n := WaitForInFlight(ctx, 5*time.Millisecond); n != 1 {
		t.Errorf("residual in-flight: got %d, want 1", n)
	}
}

func TestGetRoute(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/flights", "/api/flights"},
		{"/api/weather", "/api/weather"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/ws", "/ws"},
		{"/api/unknown", "api_other"},
		{"/favicon.ico", "other"},
	}
	for _, tc := range cases {
		if got := getRoute(tc.path); got != tc.want {
			t.Errorf("getRoute(%q): got %q, want %q", tc.path, got, tc.want)
		}
	}
}
