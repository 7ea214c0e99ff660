package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelsync/internal/catalog"
	"reelsync/internal/ingest"
	"reelsync/internal/media"
	"reelsync/internal/pipeline"
	"reelsync/internal/testsupport"
	"reelsync/internal/transcode"
)

// extensionProber reports mp4 files as h264/aac and everything else as hevc.
type extensionProber struct{}

func (extensionProber) Probe(_ context.Context, path string) (media.Technical, error) {
	tech := media.Technical{AudioCodec: "aac", VideoCodec: "hevc", DurationSeconds: 60, Width: 1920, Height: 1080}
	if strings.HasSuffix(path, ".mp4") {
		tech.VideoCodec = "h264"
	}
	return tech, nil
}

type copyRunner struct{ calls atomic.Int32 }

func (r *copyRunner) Encode(_ context.Context, input, output string, _ transcode.Mode, _ float64, progress func(transcode.Progress)) error {
	r.calls.Add(1)
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if progress != nil {
		progress(transcode.Progress{Percent: 100})
	}
	return os.WriteFile(output, append([]byte("converted:"), data...), 0o644)
}

func newPipeline(t *testing.T) (*pipeline.Pipeline, *catalog.Store, *copyRunner, string, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := &copyRunner{}
	p, err := pipeline.New(cfg, store, nil,
		pipeline.WithProber(extensionProber{}),
		pipeline.WithRunner(runner),
		pipeline.WithLooker(nil),
	)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(p.Close)
	return p, store, runner, testsupport.MoviesRoot(cfg), testsupport.SeriesRoot(cfg)
}

func stats(t *testing.T, store *catalog.Store) catalog.Stats {
	t.Helper()
	s, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return s
}

func TestScanIngestsThenPrunesDeletedMovie(t *testing.T) {
	p, store, _, movies, _ := newPipeline(t)
	ctx := context.Background()
	path := filepath.Join(movies, "Movie.X.2020.1080p.mp4")
	testsupport.WriteFile(t, path, 4096)

	report, err := p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := report.Count(ingest.OutcomeIngested); got != 1 {
		t.Fatalf("expected 1 ingested file, got %d (%+v)", got, report.Results)
	}
	entries, err := store.ListEntries(ctx, catalog.ListFilter{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Category != media.CategoryMovie || entry.Title != "Movie X" || !strings.Contains(entry.ReleaseDate, "2020") {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if s := stats(t, store); s.Instances != 1 {
		t.Fatalf("expected one instance, got %d", s.Instances)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	report, err = p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if len(report.Plan.Missing) != 1 || report.Plan.Deleted != 1 {
		t.Fatalf("expected one missing instance deleted, got %+v", report.Plan)
	}
	if s := stats(t, store); s.Entries != 0 || s.Instances != 0 {
		t.Fatalf("expected empty catalog, got %+v", s)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	p, _, _, movies, series := newPipeline(t)
	ctx := context.Background()
	testsupport.WritePattern(t, filepath.Join(movies, "Heat (1995).mp4"), 2048, 'a')
	testsupport.WritePattern(t, filepath.Join(series, "The Office", "The.Office.S01E01.720p.mp4"), 2048, 'b')
	testsupport.WritePattern(t, filepath.Join(series, "The Office", "the_office_s01e02_1080p.mp4"), 2048, 'c')

	if _, err := p.Scan(ctx, false); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	report, err := p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if !report.Plan.Empty() {
		t.Fatalf("unchanged library produced work: new=%d missing=%d", len(report.Plan.New), len(report.Plan.Missing))
	}
}

func TestScanFollowsMovedMovie(t *testing.T) {
	p, store, _, movies, _ := newPipeline(t)
	ctx := context.Background()
	oldPath := filepath.Join(movies, "Movie.X.2020.1080p.mp4")
	testsupport.WritePattern(t, oldPath, 4096, 'a')
	if _, err := p.Scan(ctx, false); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	newPath := filepath.Join(movies, "Movie X (2020)", "Movie.X.2020.1080p.mp4")
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename: %v", err)
	}
	report, err := p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("Scan after move: %v", err)
	}
	if len(report.Plan.Moved) != 1 || len(report.Plan.New) != 0 || report.Plan.Deleted != 0 {
		t.Fatalf("expected a single move, got %+v", report.Plan)
	}
	paths, err := store.AllFingerprints(ctx)
	if err != nil {
		t.Fatalf("AllFingerprints: %v", err)
	}
	for _, path := range paths {
		if path != newPath {
			t.Fatalf("catalog still points at %s", path)
		}
	}

	// New content written where the file used to be is a new instance.
	testsupport.WritePattern(t, oldPath, 4096, 'b')
	report, err = p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("Scan after reuse: %v", err)
	}
	if got := report.Count(ingest.OutcomeIngested); got != 1 {
		t.Fatalf("expected the new content to be ingested, got %+v", report.Results)
	}
	if s := stats(t, store); s.Entries != 1 || s.Instances != 2 {
		t.Fatalf("expected one entry with two instances, got %+v", s)
	}
	report, err = p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("final Scan: %v", err)
	}
	if !report.Plan.Empty() {
		t.Fatalf("library at rest must produce no work, got %+v", report.Plan)
	}
}

func TestScanGroupsEpisodesUnderOneSeries(t *testing.T) {
	p, store, _, _, series := newPipeline(t)
	ctx := context.Background()
	testsupport.WritePattern(t, filepath.Join(series, "The.Office.S01E01.720p.mp4"), 2048, 'b')
	testsupport.WritePattern(t, filepath.Join(series, "the_office_s01e02_1080p.mp4"), 2048, 'c')

	if _, err := p.Scan(ctx, false); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	s := stats(t, store)
	if s.Entries != 1 || s.Instances != 2 {
		t.Fatalf("expected 1 entry with 2 instances, got %+v", s)
	}
}

func TestScanDryRunWritesNothing(t *testing.T) {
	p, store, runner, movies, _ := newPipeline(t)
	testsupport.WriteFile(t, filepath.Join(movies, "Alien 1979.mkv"), 1024)

	report, err := p.Scan(context.Background(), true)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Plan.New) != 1 || len(report.Results) != 0 {
		t.Fatalf("dry run should only plan: %+v", report)
	}
	if s := stats(t, store); s.Entries != 0 {
		t.Fatalf("dry run wrote %d entries", s.Entries)
	}
	if runner.calls.Load() != 0 {
		t.Fatal("dry run transcoded")
	}
}

func TestScanTranscodesIncompatibleAndCataloguesOutput(t *testing.T) {
	p, store, runner, movies, _ := newPipeline(t)
	ctx := context.Background()
	source := filepath.Join(movies, "Alien 1979 1080p.mkv")
	testsupport.WriteFile(t, source, 4096)

	report, err := p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Count(ingest.OutcomeQueued) != 1 || report.Transcoded != 1 {
		t.Fatalf("expected one queued and transcoded job, got %+v", report)
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("expected one encode, got %d", runner.calls.Load())
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("source should be removed after transcode, stat err=%v", err)
	}
	output := filepath.Join(movies, "Alien 1979 1080p.mp4")
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if got := p.Suppression().Len(); got != 2 {
		t.Fatalf("transcode output and source should be suppressed for the watcher, got %d entries", got)
	}

	entries, err := store.ListEntries(ctx, catalog.ListFilter{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected output catalogued, got %d entries", len(entries))
	}
	instances, err := store.Instances(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("Instances: %v", err)
	}
	if len(instances) != 1 || instances[0].Path != output {
		t.Fatalf("expected instance at %s, got %+v", output, instances)
	}

	report, err = p.Scan(ctx, false)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if !report.Plan.Empty() || runner.calls.Load() != 1 {
		t.Fatalf("transcoded output must not be processed again: %+v", report.Plan)
	}
}

func TestStartSyncsAndWatches(t *testing.T) {
	p, store, _, movies, _ := newPipeline(t)
	testsupport.WritePattern(t, filepath.Join(movies, "Before 2001.mp4"), 2048, 'p')

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	waitEntries(t, store, 1)
	deadline := time.Now().Add(5 * time.Second)
	for p.Status().WatchedDirs < 2 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never subscribed to the roots")
		}
		time.Sleep(10 * time.Millisecond)
	}

	testsupport.WritePattern(t, filepath.Join(movies, "After 2002.mp4"), 2048, 'q')
	waitEntries(t, store, 2)

	status := p.Status()
	if !status.Running || status.LastSync == nil {
		t.Fatalf("unexpected status %+v", status)
	}
	p.Stop()
	if p.Status().Running {
		t.Fatal("pipeline still running after Stop")
	}
}

func waitEntries(t *testing.T, store *catalog.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if s := stats(t, store); s.Entries >= want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d entries", want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
