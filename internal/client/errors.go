package client

import "errors"

var (
	// ErrUpstream covers network failures, non-2xx statuses, and malformed
	// bodies. Never surfaced raw to the dashboard; handlers convert it to a
	// fallback outcome.
	ErrUpstream = errors.New("upstream failure")

	// ErrEmptyResult means the upstream succeeded but yielded nothing usable
	// after filtering. Treated like ErrUpstream for flights.
	ErrEmptyResult = errors.New("upstream returned no usable data")
)
