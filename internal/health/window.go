package health

import (
	"sync"
	"time"
)

// Outcome timestamps older than this are dropped on every record; windows
// longer than maxAge will undercount.
const maxAge = 10 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a request that was served with live or cached data.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordError records a request that degraded to fallback data because of
// an upstream failure.
func RecordError() { defaultTracker.RecordError() }

// RecordDenial records a rate-limit denial (429).
func RecordDenial() { defaultTracker.RecordDenial() }

// RequestCount returns the number of outcomes (success + error + denied)
// within the window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (errorCount, totalCount) within the window. Denials are
// excluded from the total.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears all recorded outcomes. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker keeps sliding windows of request outcomes. It backs the health
// endpoint's degraded (error rate) and overloaded (denial share) checks and
// the traffic gauges exported to prometheus.
type Tracker struct {
	mu        sync.Mutex
	successes []time.Time
	errors    []time.Time
	denials   []time.Time
}

func (t *Tracker) RecordSuccess() { t.record(&t.successes) }
func (t *Tracker) RecordError()   { t.record(&t.errors) }
func (t *Tracker) RecordDenial()  { t.record(&t.denials) }

func (t *Tracker) record(bucket *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	*bucket = append(*bucket, now)
	t.pruneLocked(now)
}

// RequestCount returns all outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	return countSince(t.successes, cutoff) +
		countSince(t.errors, cutoff) +
		countSince(t.denials, cutoff)
}

// DenialCount returns denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denials, time.Now().Add(-window))
}

// ErrorRate returns (errors, successes+errors) within the window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	e := countSince(t.errors, cutoff)
	s := countSince(t.successes, cutoff)
	return e, e + s
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes = nil
	t.errors = nil
	t.denials = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Timestamps are appended
// in order, so a single scan from the front suffices. Must be called with
// the lock held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	for _, bucket := range []*[]time.Time{&t.successes, &t.errors, &t.denials} {
		times := *bucket
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*bucket = append(times[:0], times[i:]...)
		}
	}
}
