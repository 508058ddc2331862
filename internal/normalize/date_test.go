package normalize

import (
	"testing"
	"time"
)

var fallback = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-31", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{" 2023-12-01 ", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-13-40", fallback}, // invalid calendar date falls back, never panics
		{"31.01.2024", fallback}, // strict parser rejects day-first
		{"", fallback},
		{"yesterday", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseDate(tt.raw, fallback); !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDateLenient(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-31", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"31.01.2024", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"31/01/2024", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"31-01-2024", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"5.3.2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"not a date", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseDateLenient(tt.raw, fallback); !got.Equal(tt.want) {
				t.Errorf("ParseDateLenient(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMidnight(t *testing.T) {
	in := time.Date(2024, 5, 2, 17, 45, 3, 12, time.Local)
	got := Midnight(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Location() != time.UTC {
		t.Errorf("Midnight(%v) = %v", in, got)
	}
}
