package logging

import (
	"log/slog"
	"testing"
	"time"
)

func TestSetLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ll := &slog.LevelVar{}
			err := SetLevel(ll, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetLevel(%q) = %v", tt.in, err)
			}
			if ll.Level() != tt.want {
				t.Errorf("level = %v, want %v", ll.Level(), tt.want)
			}
		})
	}
}

func TestIsZero(t *testing.T) {
	zero := []any{"", false, uint64(0), int64(0), 0.0, time.Time{}, time.Duration(0), nil}
	for _, v := range zero {
		if !isZero(v) {
			t.Errorf("isZero(%#v) = false", v)
		}
	}
	nonZero := []any{"x", true, int64(1), time.Second, []string{}}
	for _, v := range nonZero {
		if isZero(v) {
			t.Errorf("isZero(%#v) = true", v)
		}
	}
}
