package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warn", "warning", "error"} {
		if _, err := parseLevel(lvl); err != nil {
			t.Errorf("parseLevel(%q) unexpected error: %v", lvl, err)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tiksound.log")

	l, err := New(Config{Level: "info", File: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	l.Info("hello", String("job_id", "abc"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), `"job_id":"abc"`) {
		t.Errorf("expected structured field in log output, got %s", data)
	}
}

func TestGlobalLoggerDefaultsToNop(t *testing.T) {
	Set(nil)
	if L() == nil {
		t.Fatal("expected non-nil logger")
	}
	Info("does not panic")
}

func TestStdoutEncoder(t *testing.T) {
	ec := zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		LineEnding:  zapcore.DefaultLineEnding,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	entry := zapcore.Entry{Level: zapcore.InfoLevel, Message: "hello"}

	tests := []struct {
		name     string
		console  bool
		wantJSON bool
	}{
		{"production writes JSON", false, true},
		{"development writes console lines", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := stdoutEncoder(Config{Console: tt.console}, ec).EncodeEntry(entry, nil)
			if err != nil {
				t.Fatalf("EncodeEntry() error: %v", err)
			}
			defer buf.Free()

			line := buf.String()
			if got := strings.HasPrefix(line, "{"); got != tt.wantJSON {
				t.Errorf("JSON output = %v, want %v: %q", got, tt.wantJSON, line)
			}
			if !strings.Contains(line, "hello") {
				t.Errorf("expected message in %q", line)
			}
		})
	}
}
