package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arlow/armature/pkg/status"
)

// modelExts are the URL suffixes preserved as cache file extensions.
// Anything else falls back to defaultExt.
var modelExts = map[string]bool{
	".glb":  true,
	".gltf": true,
	".obj":  true,
	".stl":  true,
	".fbx":  true,
	".dae":  true,
	".usdz": true,
}

const defaultExt = ".bin"

// partialPrefix marks in-progress downloads inside the cache directory.
// Such files are never cache entries.
const partialPrefix = ".partial-"

type cacheEntry struct {
	path string
	size int64
}

// Cache stores downloaded models under deterministic names: the SHA-256
// hex of the full URL plus the inferred extension. The directory is the
// source of truth; the in-memory index only serves introspection and is
// kept honest by a directory watcher, so deleting files externally is
// safe at any time.
type Cache struct {
	dir string
	log *zap.Logger

	mu    sync.Mutex
	index map[string]cacheEntry // keyed by file name

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenCache creates the directory if needed and starts the watcher. A
// watcher setup failure degrades to an unwatched cache rather than
// failing the open.
func OpenCache(dir string, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, status.Wrapf(status.CacheError, err, "create cache dir %s", dir)
	}

	c := &Cache{
		dir:   dir,
		log:   log,
		index: make(map[string]cacheEntry),
		done:  make(chan struct{}),
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("cache watcher unavailable", zap.Error(err))
		close(c.done)
		return c, nil
	}
	if err := w.Add(dir); err != nil {
		log.Warn("cache watcher unavailable", zap.Error(err))
		w.Close()
		close(c.done)
		return c, nil
	}
	c.watcher = w
	go c.watch()
	return c, nil
}

// Close stops the watcher. The cached files stay on disk.
func (c *Cache) Close() error {
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	<-c.done
	return err
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// FileName derives the deterministic cache file name for a URL.
func (c *Cache) FileName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:]) + extensionFor(rawURL)
}

// extensionFor keeps a recognized model extension from the URL path and
// falls back to defaultExt for everything else.
func extensionFor(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(filepath.Ext(p))
	if modelExts[ext] {
		return ext
	}
	return defaultExt
}

// Lookup returns the cached path for a URL. A missing or zero-length
// file is a miss, never an error.
func (c *Cache) Lookup(rawURL string) (string, bool) {
	name := c.FileName(rawURL)
	path := filepath.Join(c.dir, name)

	fi, err := os.Stat(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || fi.Size() == 0 {
		delete(c.index, name)
		return "", false
	}
	c.index[name] = cacheEntry{path: path, size: fi.Size()}
	return path, true
}

// TempFile creates a download destination inside the cache directory so
// Store's rename stays on one filesystem. The caller owns the file until
// it is stored or removed.
func (c *Cache) TempFile(rawURL string) (string, error) {
	name := partialPrefix + uuid.NewString() + extensionFor(rawURL)
	path := filepath.Join(c.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", status.Wrapf(status.CacheError, err, "create temp file in %s", c.dir)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", status.Wrapf(status.CacheError, err, "close temp file %s", path)
	}
	return path, nil
}

// Store moves a fully written temp file into place under the URL's
// deterministic name. The rename is atomic, so concurrent writers of one
// URL end with the last writer's bytes and a valid entry either way.
func (c *Cache) Store(rawURL, tmpPath string) (string, error) {
	name := c.FileName(rawURL)
	dst := filepath.Join(c.dir, name)

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return "", status.Wrapf(status.CacheError, err, "store %s", name)
	}
	fi, err := os.Stat(dst)
	if err != nil {
		return "", status.Wrapf(status.CacheError, err, "stat stored %s", name)
	}

	c.mu.Lock()
	c.index[name] = cacheEntry{path: dst, size: fi.Size()}
	c.mu.Unlock()

	c.log.Debug("model cached",
		zap.String("file", name),
		zap.Int64("bytes", fi.Size()))
	return dst, nil
}

// Clear removes every file in the cache directory and resets the index.
// All removals are attempted; the first filesystem error is reported
// after the sweep completes.
func (c *Cache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return status.Wrapf(status.CacheError, err, "read cache dir %s", c.dir)
	}

	var g errgroup.Group
	g.SetLimit(8)
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		name := de.Name()
		g.Go(func() error {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return status.Wrapf(status.CacheError, err, "remove %s", name)
			}
			return nil
		})
	}
	sweepErr := g.Wait()

	c.mu.Lock()
	c.index = make(map[string]cacheEntry)
	c.mu.Unlock()

	if sweepErr != nil {
		return sweepErr
	}
	c.log.Debug("cache cleared", zap.Int("files", len(entries)))
	return nil
}

// Entries reports the number of indexed cache files.
func (c *Cache) Entries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// TotalBytes reports the summed size of indexed cache files.
func (c *Cache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, e := range c.index {
		n += e.size
	}
	return n
}

// watch keeps the index consistent with external changes to the cache
// directory.
func (c *Cache) watch() {
	defer close(c.done)
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !isCacheName(name) {
				continue
			}
			c.recheck(name)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn("cache watcher error", zap.Error(err))
		}
	}
}

// recheck re-stats one cache file and updates or drops its index entry.
func (c *Cache) recheck(name string) {
	path := filepath.Join(c.dir, name)
	fi, err := os.Stat(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || fi.Size() == 0 {
		if _, ok := c.index[name]; ok {
			delete(c.index, name)
			c.log.Debug("cache entry invalidated", zap.String("file", name))
		}
		return
	}
	c.index[name] = cacheEntry{path: path, size: fi.Size()}
}

// isCacheName matches the {sha256-hex}{ext} shape of cache entries, so
// partial downloads and foreign files are ignored by the watcher.
func isCacheName(name string) bool {
	if len(name) < 65 || name[64] != '.' {
		return false
	}
	for _, r := range name[:64] {
		ok := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
		if !ok {
			return false
		}
	}
	return true
}

// String describes the cache for logs.
func (c *Cache) String() string {
	return fmt.Sprintf("model cache at %s (%d entries)", c.dir, c.Entries())
}
