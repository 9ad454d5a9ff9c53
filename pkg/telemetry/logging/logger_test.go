package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetLevel(t *testing.T) {
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	if levelVar.Level() != slog.LevelDebug {
		t.Errorf("level = %v", levelVar.Level())
	}
	if err := SetLevel("nonsense"); err == nil {
		t.Error("expected error for unknown level")
	}
	// Failed set keeps the previous level.
	if levelVar.Level() != slog.LevelDebug {
		t.Errorf("level changed on failed set: %v", levelVar.Level())
	}
}
