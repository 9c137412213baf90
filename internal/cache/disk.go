package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"macropulse/pkg/logger"
)

// Disk is an unbounded on-disk cache surviving process restarts. Entries are
// stored one per file under a deterministic hash of the logical key, so
// distinct keys hashing to the same name silently overwrite each other.
// Unreadable or expired files are deleted on access.
type Disk struct {
	dir    string
	logger *logger.Logger
	now    func() time.Time
}

// NewDisk creates a disk cache rooted at dir, creating it if needed.
func NewDisk(dir string, log *logger.Logger) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Disk{dir: dir, logger: log, now: time.Now}, nil
}

// WithClock overrides the cache's clock. Used by tests.
func (d *Disk) WithClock(now func() time.Time) *Disk {
	d.now = now
	return d
}

// path returns the file path for a logical key. Hashing keeps filenames
// safe regardless of key content.
func (d *Disk) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".json")
}

// Get returns the payload for key, or ok=false on miss. Expired and corrupt
// files are removed as a side effect.
func (d *Disk) Get(key string) (json.RawMessage, bool) {
	file := d.path(key)

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		d.logger.WithFields(map[string]interface{}{
			"file":  file,
			"error": err.Error(),
		}).Warn("Removing corrupt cache file")
		_ = os.Remove(file)
		return nil, false
	}

	if entry.Expired(d.now()) {
		_ = os.Remove(file)
		return nil, false
	}

	return entry.Value, true
}

// Set persists the entry for key, overwriting any previous value.
func (d *Disk) Set(key string, entry *Entry) {
	file := d.path(key)

	data, err := json.Marshal(entry)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to marshal cache entry")
		return
	}

	if err := os.WriteFile(file, data, 0o644); err != nil {
		d.logger.WithFields(map[string]interface{}{
			"file":  file,
			"error": err.Error(),
		}).Warn("Failed to write cache file")
	}
}

// Delete removes the entry for key. Returns whether a file existed.
func (d *Disk) Delete(key string) bool {
	file := d.path(key)
	if _, err := os.Stat(file); err != nil {
		return false
	}
	_ = os.Remove(file)
	return true
}

// Clear removes every cache file.
func (d *Disk) Clear() {
	files, _ := filepath.Glob(filepath.Join(d.dir, "*.json"))
	for _, file := range files {
		_ = os.Remove(file)
	}
}

// Len returns the number of cache files on disk.
func (d *Disk) Len() int {
	files, _ := filepath.Glob(filepath.Join(d.dir, "*.json"))
	return len(files)
}

// Dir returns the cache directory.
func (d *Disk) Dir() string {
	return d.dir
}

// CleanupExpired removes expired and unreadable cache files, returning the
// number removed.
func (d *Disk) CleanupExpired() int {
	files, _ := filepath.Glob(filepath.Join(d.dir, "*.json"))
	now := d.now()
	removed := 0

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			_ = os.Remove(file)
			removed++
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || entry.Expired(now) {
			_ = os.Remove(file)
			removed++
		}
	}

	if removed > 0 {
		d.logger.WithField("count", removed).Info("Removed expired cache files")
	}

	return removed
}
