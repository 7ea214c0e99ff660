package main

import (
	"os"
	"testing"

	"reelsync/internal/enrichment"
	"reelsync/internal/enrichment/tmdb"
	"reelsync/internal/identity"
	"reelsync/internal/logging"
	"reelsync/internal/media"
)

func TestCacheListAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "No cached metadata")

	if err := os.MkdirAll(env.cfg.Paths.CacheDir, 0o755); err != nil {
		t.Fatalf("mkdir cache: %v", err)
	}
	cache := enrichment.NewCache(env.cfg.Paths.CacheDir, logging.NewNop())
	key := identity.TitleKey(media.CategoryMovie, "Heat")
	if err := cache.Store("Heat", key, &tmdb.Details{ID: 949, Title: "Heat"}); err != nil {
		t.Fatalf("cache.Store: %v", err)
	}

	out, _, err = runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "Heat")
	requireContains(t, out, key)

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 1 cached entries")
	if cache.Count() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.Count())
	}
}
