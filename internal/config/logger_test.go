package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/simp-lee/logger"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"Error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	tests := map[string]logger.OutputFormat{
		"text":   logger.FormatText,
		" JSON ": logger.FormatJSON,
		"":       logger.FormatCustom,
		"pretty": logger.FormatCustom,
	}
	for in, want := range tests {
		if got := outputFormat(in); got != want {
			t.Errorf("outputFormat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildLoggerOpts(t *testing.T) {
	off, on := false, true
	tests := []struct {
		name string
		cfg  *LogConfig
		want int
	}{
		{"nil", nil, 0},
		{"console", &LogConfig{Level: "info", Format: "text"}, 4},
		{"console without color", &LogConfig{Level: "info", Format: "json", Color: &off}, 4},
		{"file", &LogConfig{Level: "info", FilePath: "sitekit.log"}, 6},
		{"file with rotation", &LogConfig{
			Level: "debug", Format: "json", FilePath: "sitekit.log",
			MaxSizeMB: 50, RetentionDays: 14, MaxBackups: 5, CompressRotated: &on,
		}, 10},
		// rotation settings mean nothing without a file
		{"rotation without file", &LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 5}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(BuildLoggerOpts(tt.cfg)); got != tt.want {
				t.Errorf("len(BuildLoggerOpts) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetupLogger_LevelGate(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			log, err := SetupLogger(&LogConfig{Level: level, Format: "text"})
			if err != nil {
				t.Fatalf("SetupLogger: %v", err)
			}
			defer log.Close()

			want := parseLevel(level)
			ctx := context.Background()
			if !log.Enabled(ctx, want) {
				t.Errorf("%v should be enabled", want)
			}
			if want > slog.LevelDebug && log.Enabled(ctx, want-1) {
				t.Errorf("%v should be disabled", want-1)
			}
			if !slog.Default().Enabled(ctx, want) {
				t.Error("SetupLogger should install the slog default")
			}
		})
	}
}

func TestSetupLogger_Nil(t *testing.T) {
	if _, err := SetupLogger(nil); err == nil {
		t.Fatal("expected an error for a nil config")
	}
}

// A build record logged with a request context lands in the log file as
// JSON, carrying the request_id the middleware attached.
func TestSetupLogger_FileCarriesContextAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitekit.log")
	color := false
	log, err := SetupLogger(&LogConfig{Level: "info", Format: "json", Color: &color, FilePath: path})
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}

	ctx := logger.WithContextAttrs(context.Background(), slog.String("request_id", "5b0e6c1a"))
	log.InfoContext(ctx, "build finished", slog.String("build_id", "b-9"), slog.Int("pages", 3))
	log.DebugContext(ctx, "below the configured level")
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("log file has %d lines, want 1:\n%s", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode %q: %v", lines[0], err)
	}
	for k, want := range map[string]any{"msg": "build finished", "build_id": "b-9", "pages": float64(3), "request_id": "5b0e6c1a"} {
		if rec[k] != want {
			t.Errorf("%s = %v, want %v", k, rec[k], want)
		}
	}
}
