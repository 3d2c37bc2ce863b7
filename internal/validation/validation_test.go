package validation

import (
	"errors"
	"testing"
)

func TestNormalizeICAO_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "ksea", "KSEA"},
		{"already normalized", "KSEA", "KSEA"},
		{"punctuation stripped", "ks-ea!", "KSEA"},
		{"surrounding whitespace", "  kjfk ", "KJFK"},
		{"digits allowed", "7s3x", "7S3X"},
		{"longer code passes through", "KSEA1", "KSEA1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeICAO(tc.input)
			if err != nil {
				t.Fatalf("NormalizeICAO(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("NormalizeICAO(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeICAO_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"punctuation only", "--!!"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeICAO(tc.input)
			if !errors.Is(err, ErrICAOEmpty) {
				t.Errorf("error = %v, want ErrICAOEmpty", err)
			}
		})
	}
}

func TestNormalizeICAO_TooShort(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"two letters", "KS"},
		{"three after stripping", "k-s-e"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeICAO(tc.input)
			if !errors.Is(err, ErrICAOTooShort) {
				t.Errorf("error = %v, want ErrICAOTooShort", err)
			}
		})
	}
}
