package cachestore

import (
	"path/filepath"
	"testing"
)

func TestAcquireOutputLock_BlocksConcurrentAcquire(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "observations.csv")

	lock, err := AcquireOutputLock(outputPath)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	if _, err := AcquireOutputLock(outputPath); err == nil {
		t.Fatalf("expected second acquire to fail")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireOutputLock(outputPath)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}
