package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesCategoryFile(t *testing.T) {
	dir := t.TempDir()
	Configure(Config{DebugMode: true, Categories: map[string]bool{}}, dir)
	loggers = map[Category]*Logger{}

	l := Get(CategoryRegistry)
	l.Info("agent registered", map[string]interface{}{"name": "c1"})
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "registry.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "agent registered") {
		t.Fatalf("log file missing expected message: %s", data)
	}
}

func TestLoggerSuppressesDebugWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	Configure(Config{DebugMode: false, Categories: map[string]bool{}}, dir)
	loggers = map[Category]*Logger{}

	l := Get(CategoryDaemon)
	l.Debug("should not appear", nil)
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "daemon.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "should not appear") {
		t.Fatalf("debug log leaked while disabled: %s", data)
	}
}
