package cache

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"macropulse/pkg/logger"
)

func testDisk(t *testing.T) *Disk {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{}, "error")
	d, err := NewDisk(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewDisk() failed: %v", err)
	}
	return d
}

func TestDiskSetGet(t *testing.T) {
	d := testDisk(t)

	d.Set("key", NewEntry(json.RawMessage(`{"a":1}`), time.Minute, time.Now()))

	value, ok := d.Get("key")
	if !ok {
		t.Fatal("expected disk hit")
	}
	if string(value) != `{"a":1}` {
		t.Errorf("got %s", value)
	}
}

func TestDiskSurvivesReopen(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{}, "error")
	dir := t.TempDir()

	d1, err := NewDisk(dir, log)
	if err != nil {
		t.Fatal(err)
	}
	d1.Set("persisted", NewEntry(json.RawMessage(`42`), time.Hour, time.Now()))

	// A new instance over the same directory sees the entry.
	d2, err := NewDisk(dir, log)
	if err != nil {
		t.Fatal(err)
	}

	value, ok := d2.Get("persisted")
	if !ok || string(value) != `42` {
		t.Errorf("entry did not survive reopen: %s, %v", value, ok)
	}
}

func TestDiskExpiredEntryRemoved(t *testing.T) {
	now := time.Now()
	clock := now
	d := testDisk(t).WithClock(func() time.Time { return clock })

	d.Set("k", NewEntry(json.RawMessage(`1`), time.Second, now))

	clock = now.Add(time.Minute)

	if _, ok := d.Get("k"); ok {
		t.Error("expired entry must not be returned")
	}

	// The file is removed as a side effect.
	if _, err := os.Stat(d.path("k")); !os.IsNotExist(err) {
		t.Error("expired file should be deleted on access")
	}
}

func TestDiskCorruptFileSelfHeals(t *testing.T) {
	d := testDisk(t)

	d.Set("k", NewEntry(json.RawMessage(`{"big":"payload"}`), time.Hour, time.Now()))

	// Truncate the file to simulate corruption.
	file := d.path("k")
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, data[:len(data)/2], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := d.Get("k"); ok {
		t.Error("corrupt entry must read as a miss")
	}

	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("corrupt file should be deleted on access")
	}
}

func TestDiskDelete(t *testing.T) {
	d := testDisk(t)
	d.Set("k", NewEntry(json.RawMessage(`1`), time.Hour, time.Now()))

	if !d.Delete("k") {
		t.Error("Delete should report an existing file")
	}
	if d.Delete("k") {
		t.Error("second Delete should report no file")
	}
}

func TestDiskDeterministicFilenames(t *testing.T) {
	d := testDisk(t)

	if d.path("same-key") != d.path("same-key") {
		t.Error("identical keys must map to identical files")
	}

	if d.path("key-a") == d.path("key-b") {
		t.Error("distinct keys should map to distinct files")
	}
}

func TestDiskCleanupExpired(t *testing.T) {
	now := time.Now()
	clock := now
	d := testDisk(t).WithClock(func() time.Time { return clock })

	d.Set("fresh", NewEntry(json.RawMessage(`1`), time.Hour, now))
	d.Set("stale1", NewEntry(json.RawMessage(`1`), time.Second, now))
	d.Set("stale2", NewEntry(json.RawMessage(`1`), time.Second, now))

	clock = now.Add(time.Minute)

	removed := d.CleanupExpired()
	if removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}

	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}

	if _, ok := d.Get("fresh"); !ok {
		t.Error("fresh entry should survive cleanup")
	}
}

func TestDiskClear(t *testing.T) {
	d := testDisk(t)
	d.Set("a", NewEntry(json.RawMessage(`1`), time.Hour, time.Now()))
	d.Set("b", NewEntry(json.RawMessage(`1`), time.Hour, time.Now()))

	d.Clear()
	if d.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", d.Len())
	}
}
