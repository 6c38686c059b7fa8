package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{"DEBUG", slog.LevelDebug, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"WARNING", slog.LevelWarn, false},
		{"WARN", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if result != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level != "INFO" {
		t.Errorf("Default level = %q, want %q", config.Level, "INFO")
	}
	if !config.ConsoleEnabled {
		t.Error("Default ConsoleEnabled = false, want true")
	}
	if config.FileEnabled {
		t.Error("Default FileEnabled = true, want false")
	}
	if config.FilePath != "logs/mapforge.log" {
		t.Errorf("Default FilePath = %q, want %q", config.FilePath, "logs/mapforge.log")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("LOG_CONSOLE_FORMAT", "json")
	t.Setenv("LOG_FILE_ENABLED", "true")
	t.Setenv("LOG_FILE_PATH", "/custom/path.log")

	config := DefaultConfig()
	config.ApplyEnv()

	if config.Level != "ERROR" {
		t.Errorf("Level = %q, want %q (from env var)", config.Level, "ERROR")
	}
	if config.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want %q (from env var)", config.ConsoleFormat, "json")
	}
	if !config.FileEnabled {
		t.Error("FileEnabled = false, want true (from env var)")
	}
	if config.FilePath != "/custom/path.log" {
		t.Errorf("FilePath = %q, want %q (from env var)", config.FilePath, "/custom/path.log")
	}
}

func TestApplyEnvIgnoresBadBool(t *testing.T) {
	t.Setenv("LOG_FILE_ENABLED", "sometimes")

	config := DefaultConfig()
	config.ApplyEnv()
	if config.FileEnabled {
		t.Error("FileEnabled flipped by an unparseable value")
	}
}

func TestInitializeRejectsBadSettings(t *testing.T) {
	defer SetLogger(nil)

	config := DefaultConfig()
	config.Level = "loud"
	if err := Initialize(config); err == nil {
		t.Error("Initialize accepted unknown level")
	}

	config = DefaultConfig()
	config.ConsoleFormat = "xml"
	if err := Initialize(config); err == nil {
		t.Error("Initialize accepted unknown console format")
	}
}

func TestInitializeWritesFile(t *testing.T) {
	defer SetLogger(nil)

	path := filepath.Join(t.TempDir(), "logs", "mapforge.log")
	config := DefaultConfig()
	config.ConsoleEnabled = false
	config.FileEnabled = true
	config.FilePath = path

	if err := Initialize(config); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Info("Tileset persisted", "tileset_id", "abc")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"tileset_id":"abc"`) {
		t.Errorf("file output missing JSON field: %s", data)
	}
}

func TestTextOutputHonoursLevel(t *testing.T) {
	defer SetLogger(nil)
	var buf bytes.Buffer

	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	Info("Test message", "key", "value")
	Debug("This should not appear")

	output := buf.String()

	if !strings.Contains(output, "Test message") {
		t.Errorf("Output missing INFO message: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Output missing structured field: %s", output)
	}
	if strings.Contains(output, "This should not appear") {
		t.Errorf("Output contains DEBUG message when level is INFO: %s", output)
	}
}

func TestFormattedLogging(t *testing.T) {
	defer SetLogger(nil)
	var buf bytes.Buffer

	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	Debugf("Debug: %d + %d = %d", 1, 2, 3)
	Infof("Info: %s", "test")
	Warningf("Warning: %.2f%%", 99.95)
	Errorf("Error: %v", "failed")

	output := buf.String()

	for _, want := range []string{"Debug: 1 + 2 = 3", "Info: test", "Warning: 99.95%", "Error: failed"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWithAddsAttributes(t *testing.T) {
	defer SetLogger(nil)
	var buf bytes.Buffer

	SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	With("job_id", "j1").Info("Polling")

	if !strings.Contains(buf.String(), `"job_id":"j1"`) {
		t.Errorf("With attribute missing: %s", buf.String())
	}
}

func TestMultiHandler(t *testing.T) {
	defer SetLogger(nil)
	var buf1, buf2 bytes.Buffer

	handler1 := slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	handler2 := slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelWarn})
	SetLogger(slog.New(newMultiHandler(handler1, handler2)))

	Info("Info only", "field", "value")
	Warning("Both")

	if !strings.Contains(buf1.String(), "field=value") || !strings.Contains(buf1.String(), "Both") {
		t.Errorf("text handler output = %s", buf1.String())
	}
	if strings.Contains(buf2.String(), "Info only") {
		t.Error("WARN handler received INFO record")
	}
	if !strings.Contains(buf2.String(), `"msg":"Both"`) {
		t.Errorf("json handler output = %s", buf2.String())
	}
}

func TestNilLogger(t *testing.T) {
	SetLogger(nil)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logging with nil logger caused panic: %v", r)
		}
	}()

	Debug("debug")
	Info("info")
	Warning("warning")
	Error("error")
	Logger().Info("discarded")
}
