package http

import (
	"context"
	"sync/atomic"
	"time"
)

var inFlightRequests atomic.Int64

func incrementInFlight() {
	inFlightRequests.Add(1)
}

func decrementInFlight() {
	inFlightRequests.Add(-1)
}

// InFlightCount returns the number of requests currently being served.
func InFlightCount() int64 {
	return inFlightRequests.Load()
}

// WaitForInFlight blocks until all in-flight requests drain or the context
// expires, polling at checkInterval. Returns the residual count.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) int64 {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		n := InFlightCount()
		if n == 0 {
			return 0
		}
		select {
		case <-ctx.Done():
			return InFlightCount()
		case <-ticker.C:
		}
	}
}
