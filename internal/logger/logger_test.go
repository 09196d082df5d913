package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReleaseModeWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	log := New("release", Options{Dir: dir, Filename: "test.log"})
	log.Sugar().Infow("confirm_payment_succeeded", "registration_id", 7)
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, `"message":"confirm_payment_succeeded"`) {
		t.Fatalf("expected event message in log line, got %q", line)
	}
	if !strings.Contains(line, `"registration_id":7`) {
		t.Fatalf("expected registration_id field in log line, got %q", line)
	}
}

func TestResolveLogFilePathCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	got, err := resolveLogFilePath(Options{Dir: dir})
	if err != nil {
		t.Fatalf("resolve log path: %v", err)
	}
	if filepath.Base(got) != defaultLogFilename {
		t.Fatalf("unexpected filename %s", filepath.Base(got))
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

func TestZFallsBackBeforeInit(t *testing.T) {
	saved := L
	L = nil
	t.Cleanup(func() { L = saved })

	if Z() == nil {
		t.Fatal("expected fallback logger")
	}
	SW("k", "v").Debugw("noop")
}
