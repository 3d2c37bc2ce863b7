package validation

import (
	"errors"
	"strings"
)

// ErrICAOEmpty is returned when the input contains no alphanumeric characters.
var ErrICAOEmpty = errors.New("icao code is required")

// ErrICAOTooShort is returned when fewer than 4 alphanumeric characters remain
// after normalization.
var ErrICAOTooShort = errors.New("icao code too short")

// NormalizeICAO uppercases the input and strips every character outside
// [A-Z0-9]. Returns the normalized code or an error suitable for a 400
// INVALID_ICAO response. Validation happens before any network call.
func NormalizeICAO(input string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if code == "" {
		return "", ErrICAOEmpty
	}
	if len(code) < 4 {
		return "", ErrICAOTooShort
	}
	return code, nil
}
