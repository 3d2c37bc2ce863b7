package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahmeda07-gh/SkyGuard/internal/health"
	"github.com/ahmeda07-gh/SkyGuard/internal/lifecycle"
	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/service"
	"github.com/ahmeda07-gh/SkyGuard/internal/validation"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	StartTime            time.Time
	// CachePing, when set, is called to check the external cache backend.
	CachePing func() error
	// BreakerState, when set, reports the flight feed breaker state.
	BreakerState func() string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	flights      *service.FlightService
	weather      *service.WeatherService
	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(flights *service.FlightService, weather *service.WeatherService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		flights:      flights,
		weather:      weather,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetFlights handles GET /api/flights. The service never fails; every
// upstream problem degrades to simulated data, so this always writes 200.
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	records, source := h.flights.Flights(r.Context())
	if source == models.SourceSimulated {
		health.RecordError()
	} else {
		health.RecordSuccess()
	}
	writeJSON(w, http.StatusOK, models.FlightsResponse{Flights: records, Source: source})
}

// GetWeather handles GET /api/weather?icao={code}. Malformed codes are the
// only error surfaced to the client; upstream failures come back as a 200
// with an empty report.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	code, err := validation.NormalizeICAO(r.URL.Query().Get("icao"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ICAO", err.Error())
		return
	}
	obs := h.weather.Observation(r.Context(), code)
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, obs)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["flightFeed"] = "unhealthy"
	} else {
		checks["flightFeed"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	if h.healthConfig != nil && h.healthConfig.BreakerState != nil {
		checks["flightFeedBreaker"] = h.healthConfig.BreakerState()
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "skyguard",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(health.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := health.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with code, message, and
// requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID, _ = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
