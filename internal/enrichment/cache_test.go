package enrichment

import (
	"os"
	"path/filepath"
	"testing"

	"reelsync/internal/enrichment/tmdb"
)

func TestCacheStoreAndLookup(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, nil)

	if err := cache.Store("Dune: Part Two", "abc123", &tmdb.Details{ID: 693134, Title: "Dune: Part Two"}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tmdb_dune:_part_two_metadata_abc123.json")); err != nil {
		t.Fatalf("expected cache file named after the title: %v", err)
	}

	got, cachedAt, ok := cache.Lookup("abc123")
	if !ok || got.ID != 693134 || cachedAt.IsZero() {
		t.Fatalf("Lookup = %+v, %v, %v", got, cachedAt, ok)
	}
	if _, _, ok := cache.Lookup("abc"); ok {
		t.Fatal("lookup must match the whole key suffix")
	}
}

func TestCacheStoreReplacesRenamedTitle(t *testing.T) {
	cache := NewCache(t.TempDir(), nil)
	if err := cache.Store("Old Name", "key1", &tmdb.Details{ID: 1}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := cache.Store("New Name", "key1", &tmdb.Details{ID: 2}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	entries, err := cache.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "new_name" || entries[0].TitleKey != "key1" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestCacheListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, nil)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := cache.Store("A", "k", &tmdb.Details{ID: 1}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if cache.Count() != 1 {
		t.Fatalf("Count = %d", cache.Count())
	}
}

func TestCacheCorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, nil)
	if err := os.WriteFile(filepath.Join(dir, FileName("Broken", "bad")), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := cache.Lookup("bad"); ok {
		t.Fatal("corrupt cache files must read as a miss")
	}
}

func TestCacheClearAndRemove(t *testing.T) {
	cache := NewCache(t.TempDir(), nil)
	for _, key := range []string{"k1", "k2", "k3"} {
		if err := cache.Store("T "+key, key, &tmdb.Details{ID: 1}); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}
	if err := cache.Remove("k2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := cache.Remove("k2"); err == nil {
		t.Fatal("removing a missing key must fail")
	}
	removed, err := cache.Clear()
	if err != nil || removed != 2 {
		t.Fatalf("Clear = %d, %v", removed, err)
	}
	if cache.Count() != 0 {
		t.Fatal("cache not empty after Clear")
	}
}

func TestDisabledCache(t *testing.T) {
	cache := NewCache("", nil)
	if err := cache.Store("A", "k", &tmdb.Details{ID: 1}); err != nil {
		t.Fatalf("Store on disabled cache: %v", err)
	}
	if _, _, ok := cache.Lookup("k"); ok {
		t.Fatal("disabled cache must never hit")
	}
}
