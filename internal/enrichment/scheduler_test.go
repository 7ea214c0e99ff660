package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reelsync/internal/enrichment/tmdb"
	"reelsync/internal/services"
	"reelsync/internal/testsupport"
)

type fakeLooker struct {
	mu      sync.Mutex
	calls   []string
	details map[string]*tmdb.Details
	err     error
}

func (f *fakeLooker) Lookup(_ context.Context, kind tmdb.Kind, title, year string) (*tmdb.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(kind)+":"+title+":"+year)
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.details[title]; ok {
		return d, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "tmdb", "search", title, nil)
}

func (f *fakeLooker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestEnrichMovieOnceThenFresh(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	res := testsupport.MustIngest(t, store, testsupport.MovieRecord("Movie X", "2020", "fp1", "/lib/movies/Movie.X.2020.mp4"))

	looker := &fakeLooker{details: map[string]*tmdb.Details{
		"Movie X": {ID: 42, ReleaseDate: "2020-03-01", Genres: []tmdb.Named{{Name: "Drama"}}},
	}}
	cache := NewCache(cfg.Paths.CacheDir, nil)
	sched := NewScheduler(cfg, store, looker, cache, nil)

	outcome, err := sched.Enrich(context.Background(), res.EntryID)
	if err != nil || outcome != OutcomeFromAPI {
		t.Fatalf("Enrich = %s, %v", outcome, err)
	}
	if looker.calls[0] != "movie:Movie X:2020" {
		t.Fatalf("unexpected lookup %v", looker.calls)
	}
	entry, err := store.GetEntry(context.Background(), res.EntryID)
	if err != nil || entry == nil || !entry.Enriched() || entry.TMDBID != "42" || entry.ReleaseDate != "2020-03-01" {
		t.Fatalf("entry not enriched: %+v, %v", entry, err)
	}
	if cache.Count() != 1 {
		t.Fatal("api responses must be cached")
	}

	outcome, err = sched.Enrich(context.Background(), res.EntryID)
	if err != nil || outcome != OutcomeFresh || looker.count() != 1 {
		t.Fatalf("second Enrich = %s, %v, calls=%d", outcome, err, looker.count())
	}
}

func TestEnrichPrefersCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	record := testsupport.MovieRecord("Cached Film", "1999", "fp1", "/lib/movies/Cached.Film.1999.mp4")
	res := testsupport.MustIngest(t, store, record)

	cache := NewCache(cfg.Paths.CacheDir, nil)
	if err := cache.Store(record.Title, record.TitleKey, &tmdb.Details{ID: 9}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	looker := &fakeLooker{}
	sched := NewScheduler(cfg, store, looker, cache, nil)

	outcome, err := sched.Enrich(context.Background(), res.EntryID)
	if err != nil || outcome != OutcomeFromCache {
		t.Fatalf("Enrich = %s, %v", outcome, err)
	}
	if looker.count() != 0 {
		t.Fatal("a cached title must not reach the api")
	}
}

func TestEnrichWithoutKeyOrCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	res := testsupport.MustIngest(t, store, testsupport.MovieRecord("Nowhere", "", "fp1", "/lib/movies/Nowhere.mp4"))

	sched := NewScheduler(cfg, store, nil, NewCache(cfg.Paths.CacheDir, nil), nil)
	outcome, err := sched.Enrich(context.Background(), res.EntryID)
	if outcome != OutcomeUnavailable || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Enrich = %s, %v", outcome, err)
	}
	entry, _ := store.GetEntry(context.Background(), res.EntryID)
	if entry.Enriched() {
		t.Fatal("entry must stay unenriched")
	}
}

func TestEnrichGoneEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	sched := NewScheduler(cfg, store, &fakeLooker{}, nil, nil)
	outcome, err := sched.Enrich(context.Background(), 12345)
	if err != nil || outcome != OutcomeGone {
		t.Fatalf("Enrich = %s, %v", outcome, err)
	}
}

func TestSeriesRecheckedWhenNewSeasonArrives(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	res := testsupport.MustIngest(t, store, testsupport.SeriesRecord("The Office", 1, 1, "fp1", "/lib/series/The.Office.S01E01.mkv"))

	looker := &fakeLooker{details: map[string]*tmdb.Details{
		"The Office": {ID: 2316, FirstAirDate: "2005-03-24", Seasons: []tmdb.Season{{SeasonNumber: 1, EpisodeCount: 6}, {SeasonNumber: 2, EpisodeCount: 22}}},
	}}
	sched := NewScheduler(cfg, store, looker, NewCache(cfg.Paths.CacheDir, nil), nil)
	ctx := context.Background()

	if outcome, err := sched.Enrich(ctx, res.EntryID); err != nil || outcome != OutcomeFromAPI {
		t.Fatalf("first Enrich = %s, %v", outcome, err)
	}
	if outcome, _ := sched.Enrich(ctx, res.EntryID); outcome != OutcomeFresh {
		t.Fatalf("expected fresh after enrichment, got %s", outcome)
	}

	testsupport.MustIngest(t, store, testsupport.SeriesRecord("The Office", 2, 1, "fp2", "/lib/series/The.Office.S02E01.mkv"))
	outcome, err := sched.Enrich(ctx, res.EntryID)
	if err != nil || outcome != OutcomeFromCache {
		t.Fatalf("new season must trigger a re-check served from the fresh cache, got %s, %v", outcome, err)
	}
	if looker.count() != 1 {
		t.Fatalf("expected one api call, got %d", looker.count())
	}

	seasons, err := store.Seasons(ctx, res.EntryID)
	if err != nil {
		t.Fatalf("Seasons: %v", err)
	}
	if len(seasons) != 2 || seasons[1].LatestEpisodeEntry == nil || seasons[1].EpisodeCount != 22 {
		t.Fatalf("unexpected seasons %+v", seasons)
	}
}

func TestStaleSeriesCacheRefetches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	record := testsupport.SeriesRecord("Show", 1, 1, "fp1", "/lib/series/Show.S01E01.mkv")
	res := testsupport.MustIngest(t, store, record)

	cache := NewCache(cfg.Paths.CacheDir, nil)
	if err := cache.Store(record.Title, record.TitleKey, &tmdb.Details{ID: 1}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	looker := &fakeLooker{err: services.Wrap(services.ErrTransient, "tmdb", "search", "down", nil)}
	sched := NewScheduler(cfg, store, looker, cache, nil)
	sched.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	outcome, err := sched.Enrich(context.Background(), res.EntryID)
	if err != nil || outcome != OutcomeFromCache {
		t.Fatalf("api failure must fall back to the stale cache, got %s, %v", outcome, err)
	}
	if looker.count() != 1 {
		t.Fatal("a stale series cache must be refetched")
	}
}

func TestRefreshAllPagesThroughCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TMDB.RefreshBatchSize = 2
	store := testsupport.MustOpenCatalog(t, cfg)
	details := map[string]*tmdb.Details{}
	for i, title := range []string{"A", "B", "C", "D", "E"} {
		testsupport.MustIngest(t, store, testsupport.MovieRecord(title, "", "fp"+title, "/lib/movies/"+title+".mp4"))
		details[title] = &tmdb.Details{ID: int64(i + 1)}
	}
	delete(details, "E")

	looker := &fakeLooker{details: details}
	sched := NewScheduler(cfg, store, looker, NewCache(cfg.Paths.CacheDir, nil), nil)

	summary, err := sched.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if summary.Checked != 5 || summary.Updated != 4 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	summary, err = sched.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if summary.Updated != 0 || looker.count() != 6 {
		t.Fatalf("second pass must only retry the failed entry: %+v, calls=%d", summary, looker.count())
	}
}

func TestRunHandlesNotifications(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	looker := &fakeLooker{details: map[string]*tmdb.Details{"Late": {ID: 5}}}
	sched := NewScheduler(cfg, store, looker, NewCache(cfg.Paths.CacheDir, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sched.Run(ctx)
	}()

	res := testsupport.MustIngest(t, store, testsupport.MovieRecord("Late", "", "fp1", "/lib/movies/Late.mp4"))
	sched.Notify(res.EntryID)

	deadline := time.Now().Add(5 * time.Second)
	for {
		entry, err := store.GetEntry(context.Background(), res.EntryID)
		if err == nil && entry != nil && entry.Enriched() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("notified entry was not enriched")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}
