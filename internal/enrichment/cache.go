package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"reelsync/internal/enrichment/tmdb"
	"reelsync/internal/fileutil"
	"reelsync/internal/logging"
)

const (
	cachePrefix = "tmdb_"
	cacheInfix  = "_metadata_"
	cacheExt    = ".json"
)

// CacheEntry describes one cached response file.
type CacheEntry struct {
	Title    string
	TitleKey string
	Path     string
	CachedAt time.Time
	Size     int64
}

// Cache stores provider responses as one JSON file per title, named
// tmdb_<title>_metadata_<titleKey>.json. Lookups match on the key suffix only,
// so a renamed title still finds its earlier response.
type Cache struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCache returns a cache rooted at dir. An empty dir disables caching.
func NewCache(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{dir: strings.TrimSpace(dir), logger: logging.NewComponentLogger(logger, "tmdbcache")}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// FileName returns the cache file name for a title.
func FileName(title, titleKey string) string {
	return cachePrefix + sanitize(title) + cacheInfix + titleKey + cacheExt
}

// Lookup returns the cached details for titleKey and when they were written.
func (c *Cache) Lookup(titleKey string) (*tmdb.Details, time.Time, bool) {
	titleKey = strings.TrimSpace(titleKey)
	if c.dir == "" || titleKey == "" {
		return nil, time.Time{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.find(titleKey)
	if !ok {
		return nil, time.Time{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Debug("cache read failed", logging.String(logging.FieldPath, path), logging.Error(err))
		return nil, time.Time{}, false
	}
	var details tmdb.Details
	if err := json.Unmarshal(data, &details); err != nil {
		logging.WarnWithContext(c.logger, "cache file unreadable", "tmdb_cache_corrupt",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry will be fetched from the API again"),
			logging.String(logging.FieldErrorHint, "run `reelsync cache clear` if this repeats"),
		)
		return nil, time.Time{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, false
	}
	return &details, info.ModTime(), true
}

// Store writes details for a title, replacing any earlier file for the key.
func (c *Cache) Store(title, titleKey string, details *tmdb.Details) error {
	titleKey = strings.TrimSpace(titleKey)
	if titleKey == "" {
		return errors.New("title key cannot be empty")
	}
	if c.dir == "" || details == nil {
		return nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	target := filepath.Join(c.dir, FileName(title, titleKey))
	if previous, ok := c.find(titleKey); ok && previous != target {
		_ = os.Remove(previous)
	}
	if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
		return fmt.Errorf("persist cache entry: %w", err)
	}
	c.logger.Debug("cached tmdb response",
		logging.String("title", title),
		logging.String(logging.FieldTitleKey, titleKey),
		logging.Int64("tmdb_id", details.ID),
	)
	return nil
}

// List returns every cached file, newest first.
func (c *Cache) List() ([]CacheEntry, error) {
	if c.dir == "" {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	entries := make([]CacheEntry, 0, len(dirEntries))
	for _, item := range dirEntries {
		title, key, ok := parseFileName(item.Name())
		if item.IsDir() || !ok {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		entries = append(entries, CacheEntry{
			Title:    title,
			TitleKey: key,
			Path:     filepath.Join(c.dir, item.Name()),
			CachedAt: info.ModTime(),
			Size:     info.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CachedAt.Equal(entries[j].CachedAt) {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
	return entries, nil
}

// Count returns the number of cached files.
func (c *Cache) Count() int {
	entries, err := c.List()
	if err != nil {
		return 0
	}
	return len(entries)
}

// Remove deletes the cached file for titleKey.
func (c *Cache) Remove(titleKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.find(strings.TrimSpace(titleKey))
	if !ok {
		return fmt.Errorf("title key %q not found in cache", titleKey)
	}
	return os.Remove(path)
}

// Clear removes every cached file and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	entries, err := c.List()
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, entry := range entries {
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", entry.Path, err)
		}
		removed++
	}
	c.logger.Debug("cleared tmdb cache", logging.Int("removed", removed))
	return removed, nil
}

func (c *Cache) find(titleKey string) (string, bool) {
	if titleKey == "" {
		return "", false
	}
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return "", false
	}
	suffix := "_" + titleKey + cacheExt
	for _, item := range dirEntries {
		if !item.IsDir() && strings.HasPrefix(item.Name(), cachePrefix) && strings.HasSuffix(item.Name(), suffix) {
			return filepath.Join(c.dir, item.Name()), true
		}
	}
	return "", false
}

func parseFileName(name string) (title, key string, ok bool) {
	if !strings.HasPrefix(name, cachePrefix) || !strings.HasSuffix(name, cacheExt) {
		return "", "", false
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, cachePrefix), cacheExt)
	idx := strings.LastIndex(trimmed, cacheInfix)
	if idx < 0 {
		return "", "", false
	}
	return trimmed[:idx], trimmed[idx+len(cacheInfix):], true
}

func sanitize(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	for _, r := range title {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '/' || r == '\\' || r == 0:
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
