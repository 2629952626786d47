package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Subdirectories of the cache root. Fetched holds whole recordings pulled
// from remote locations; Windows holds serialized extraction output keyed
// by request URL.
const (
	FetchedDir = "fetched"
	WindowsDir = "windows"
)

// Cache is a size-capped local file cache rooted at Location.
type Cache struct {
	Location string
	Log      *zap.Logger
}

func New(location string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{Location: location, Log: logger}
}

// KeyFromURL flattens a request URL plus query into a cache file name.
func KeyFromURL(url string) string {
	flat := strings.Replace(url, "?", "_", 1)
	replacer := strings.NewReplacer("&", "", "=", "", ".", "", "/", "")
	return replacer.Replace(flat)
}

// Setup creates the cache directory tree.
func (c *Cache) Setup() error {
	for _, sub := range []string{FetchedDir, WindowsDir} {
		if err := os.MkdirAll(filepath.Join(c.Location, sub), 0o755); err != nil {
			return fmt.Errorf("creating cache dir %s: %w", sub, err)
		}
	}
	return nil
}

// GetData reads a cached entry whole.
func (c *Cache) GetData(key, subDir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(c.Location, subDir, key))
}

// GetItem opens a cached entry for seeking reads.
func (c *Cache) GetItem(key, subDir string) (io.ReadSeeker, error) {
	return os.Open(filepath.Join(c.Location, subDir, key))
}

// PutItem stores data under key. Failures are reported, not fatal: the
// cache is an optimization, never the source of truth.
func (c *Cache) PutItem(key, subDir string, data []byte) error {
	fullPath := filepath.Join(c.Location, subDir, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0o644)
}

// Monitor polls one cache subdirectory every interval and evicts the
// oldest entry whenever the total size exceeds maxBytes. Runs until the
// process exits; start it in its own goroutine.
func (c *Cache) Monitor(subDir string, interval time.Duration, maxBytes int64) {
	dir := filepath.Join(c.Location, subDir)
	for {
		if evicted, err := c.evictOnce(dir, maxBytes); err != nil {
			c.Log.Warn("cache check failed", zap.String("dir", dir), zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		} else if evicted {
			// Over budget: keep evicting without waiting out the interval.
			continue
		}
		time.Sleep(interval)
	}
}

func (c *Cache) evictOnce(dir string, maxBytes int64) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	var total int64
	var oldest os.FileInfo
	var oldestPath string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		if oldest == nil || info.ModTime().Before(oldest.ModTime()) {
			oldest = info
			oldestPath = filepath.Join(dir, entry.Name())
		}
	}
	if total <= maxBytes || oldest == nil {
		return false, nil
	}

	c.Log.Info("cache over budget, evicting oldest entry",
		zap.String("file", oldest.Name()),
		zap.Int64("total_bytes", total),
		zap.Int64("max_bytes", maxBytes),
	)
	if err := os.Remove(oldestPath); err != nil {
		return false, err
	}
	return true, nil
}
