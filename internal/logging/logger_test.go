package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNoOpBeforeInitialize(t *testing.T) {
	CloseAll()
	l := Get(CategoryBus)
	// Must not panic and must not create files.
	l.Info("dropped %d", 1)
	l.Error("dropped")
}

func TestInitializeWritesCategoryFile(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{Level: "debug"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer CloseAll()

	Get(CategoryCache).Info("hello %s", "cache")
	CloseAll()

	data, err := os.ReadFile(filepath.Join(dir, "cache.log"))
	if err != nil {
		t.Fatalf("expected cache.log: %v", err)
	}
	if !strings.Contains(string(data), "hello cache") {
		t.Fatalf("log content missing message: %q", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{Level: "warn"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer CloseAll()

	Get(CategoryStore).Debug("quiet")
	Get(CategoryStore).Warn("loud")
	CloseAll()

	data, _ := os.ReadFile(filepath.Join(dir, "store.log"))
	if strings.Contains(string(data), "quiet") {
		t.Fatalf("debug message should be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Fatalf("warn message missing")
	}
}
