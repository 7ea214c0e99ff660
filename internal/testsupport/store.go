package testsupport

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"reelsync/internal/catalog"
	"reelsync/internal/config"
	"reelsync/internal/identity"
	"reelsync/internal/media"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MovieRecord builds a compatible movie record for path.
func MovieRecord(title, year, fingerprint, path string) media.MovieRecord {
	return media.MovieRecord{
		Title:    title,
		TitleKey: identity.TitleKey(media.CategoryMovie, title),
		Year:     year,
		Instance: instance(fingerprint, path),
	}
}

// SeriesRecord builds a compatible episode record for path.
func SeriesRecord(title string, season, episode int, fingerprint, path string) media.SeriesRecord {
	return media.SeriesRecord{
		Title:    title,
		TitleKey: identity.TitleKey(media.CategorySeries, title),
		Season:   season,
		Episode:  episode,
		Instance: instance(fingerprint, path),
	}
}

// MustIngest writes record into store and fails the test on error.
func MustIngest(t testing.TB, store *catalog.Store, record media.Record) catalog.IngestResult {
	t.Helper()

	result, err := store.Ingest(context.Background(), record)
	if err != nil {
		t.Fatalf("store.Ingest: %v", err)
	}
	return result
}

func instance(fingerprint, path string) media.Instance {
	return media.Instance{
		Fingerprint: fingerprint,
		Path:        path,
		Extension:   strings.TrimPrefix(filepath.Ext(path), "."),
		Technical: media.Technical{
			VideoCodec: "h264",
			AudioCodec: "aac",
			Resolution: "1920x1080",
			Width:      1920,
			Height:     1080,
		},
	}
}
