package expiry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduleNegativeDoesNothing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "chapter")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}

	New(testLogger()).Schedule(target, -1)
	time.Sleep(50 * time.Millisecond)

	if _, err := os.Stat(target); err != nil {
		t.Errorf("expire_seconds=-1 should never remove the directory: %v", err)
	}
}

func TestScheduleZeroRemovesImmediately(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "chapter")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}

	New(testLogger()).Schedule(target, 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expire_seconds=0 should remove the directory promptly")
}

func TestScheduleDelaysRemoval(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "chapter")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}

	New(testLogger()).Schedule(target, 1)

	time.Sleep(200 * time.Millisecond)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("directory should still exist before the deadline: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("directory was not removed after its expiry")
}
