package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/filewarden/filewarden/pkg/warden/logging"
)

// TestInit tests the Init function with various configurations.
// Note: This test cannot run in parallel with other tests that use global state.
func TestInit(t *testing.T) {
	validDir := t.TempDir()
	debugDir := t.TempDir()
	componentsDir := t.TempDir()
	invalidDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config with defaults",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(validDir, "test.log"),
			},
			wantErr: false,
		},
		{
			name: "valid config with debug level",
			cfg: logging.Config{
				Level: "debug",
				Path:  filepath.Join(debugDir, "debug.log"),
			},
			wantErr: false,
		},
		{
			name: "valid config with component overrides",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(componentsDir, "components.log"),
				Components: map[string]string{
					"watcher": "debug",
					"engine":  "warn",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: logging.Config{
				Level: "invalid",
				Path:  filepath.Join(invalidDir, "invalid.log"),
			},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(invalidDir, "comp.log"),
				Components: map[string]string{
					"watcher": "chatty",
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Note: No t.Parallel() - these tests modify global state

			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err == nil {
				if closeErr := logging.Close(); closeErr != nil {
					t.Errorf("Close() error = %v", closeErr)
				}
			}
		})
	}
}

func TestGet(t *testing.T) {
	// No t.Parallel() - uses global state

	tempDir := t.TempDir()
	cfg := logging.Config{
		Level: "info",
		Path:  filepath.Join(tempDir, "test.log"),
		Components: map[string]string{
			"watcher": "debug",
			"engine":  "error",
		},
	}

	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() {
		if err := logging.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	t.Run("returns same logger for same component", func(t *testing.T) {
		l1 := logging.Get("watcher")
		l2 := logging.Get("watcher")
		if l1 != l2 {
			t.Error("Get() returned different loggers for the same component")
		}
	})

	t.Run("messages reach the log file", func(t *testing.T) {
		logger := logging.Get("quarantine")
		logger.Info("incident recorded", "incident", "20260101T000000-abc123")

		data, err := os.ReadFile(filepath.Join(tempDir, "test.log"))
		if err != nil {
			t.Fatalf("reading log file: %v", err)
		}
		if !strings.Contains(string(data), "incident recorded") {
			t.Error("log file does not contain the logged message")
		}
		if !strings.Contains(string(data), "quarantine") {
			t.Error("log file does not carry the component prefix")
		}
	})

	t.Run("component level override suppresses info", func(t *testing.T) {
		logger := logging.Get("engine") // configured at error
		logger.Info("should not appear")

		data, err := os.ReadFile(filepath.Join(tempDir, "test.log"))
		if err != nil {
			t.Fatalf("reading log file: %v", err)
		}
		if strings.Contains(string(data), "should not appear") {
			t.Error("info message logged despite error-level override")
		}
	})
}

func TestGetBeforeInit(t *testing.T) {
	// No t.Parallel() - uses global state

	// Ensure clean state
	_ = logging.Close()

	// Must not panic; output goes to io.Discard
	logger := logging.Get("watcher")
	logger.Info("silent message")
	logger.Debug("also silent")
}

func TestWith(t *testing.T) {
	// No t.Parallel() - uses global state

	tempDir := t.TempDir()
	if err := logging.Init(logging.Config{
		Level: "info",
		Path:  filepath.Join(tempDir, "with.log"),
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = logging.Close() }()

	logger := logging.Get("engine").With("path", "/tmp/evil.jpg")
	logger.Info("mismatch")

	data, err := os.ReadFile(filepath.Join(tempDir, "with.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "/tmp/evil.jpg") {
		t.Error("bound field missing from log output")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"info", logging.LevelInfo, false},
		{"warn", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"DEBUG", logging.LevelDebug, false},
		{"warning", logging.LevelWarn, false},
		{"", 0, true},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
