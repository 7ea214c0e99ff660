package reconcile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reelsync/internal/catalog"
	"reelsync/internal/identity"
	"reelsync/internal/logging"
	"reelsync/internal/parser"
	"reelsync/internal/reconcile"
	"reelsync/internal/scanner"
	"reelsync/internal/services"
	"reelsync/internal/testsupport"
)

type flakyHasher struct {
	inner   identity.Hasher
	failing map[string]bool
}

func (h flakyHasher) Fingerprint(path string) (string, error) {
	if h.failing[path] {
		return "", services.Wrap(services.ErrTransient, "identity", "fingerprint", path, os.ErrPermission)
	}
	return h.inner.Fingerprint(path)
}

func ingestPlan(t *testing.T, store *catalog.Store, plan reconcile.Plan) {
	t.Helper()
	for _, lf := range plan.New {
		title := parser.MovieTitle(lf.File.Filename)
		testsupport.MustIngest(t, store, testsupport.MovieRecord(title, parser.Year(lf.File.Filename, ""), lf.Fingerprint, lf.File.Path()))
	}
}

func newReconciler(t *testing.T, hasher reconcile.Fingerprinter) (*reconcile.Reconciler, *catalog.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	scan := scanner.New(cfg.Roots(), cfg.Library.Extensions, logging.NewNop())
	return reconcile.New(store, scan, hasher, 2, logging.NewNop()), store, testsupport.MoviesRoot(cfg)
}

func TestRunIsIdempotent(t *testing.T) {
	rec, store, movies := newReconciler(t, identity.NewHasher(0))
	testsupport.WritePattern(t, filepath.Join(movies, "Movie.X.2020.1080p.mp4"), 4096, 'a')
	testsupport.WritePattern(t, filepath.Join(movies, "Other.Film.1999.mkv"), 4096, 'b')

	ctx := context.Background()
	first, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(first.New) != 2 || len(first.Missing) != 0 {
		t.Fatalf("expected two new files, got %+v", first)
	}
	if first.RunID == "" {
		t.Fatal("expected a run id")
	}
	ingestPlan(t, store, first)

	for i := 0; i < 2; i++ {
		again, err := rec.Run(ctx, false)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !again.Empty() {
			t.Fatalf("pass %d over an unchanged library must be empty, got new=%d missing=%d", i, len(again.New), len(again.Missing))
		}
	}
}

func TestRunDeletesMissingFiles(t *testing.T) {
	rec, store, movies := newReconciler(t, identity.NewHasher(0))
	path := filepath.Join(movies, "Movie.X.2020.1080p.mp4")
	testsupport.WritePattern(t, path, 2048, 'x')

	ctx := context.Background()
	plan, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ingestPlan(t, store, plan)

	entry, err := store.LookupByTitleKey(ctx, testsupport.MovieRecord("Movie X", "", "", "").TitleKey)
	if err != nil || entry == nil {
		t.Fatalf("expected entry after ingest, got %v, %v", entry, err)
	}
	if entry.ReleaseDate != "2020" {
		t.Fatalf("expected release date from filename year, got %q", entry.ReleaseDate)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	dry, err := rec.Run(ctx, true)
	if err != nil {
		t.Fatalf("Run dry: %v", err)
	}
	if len(dry.Missing) != 1 || dry.Deleted != 0 {
		t.Fatalf("dry run must report without deleting, got %+v", dry)
	}

	pruned, err := rec.PruneMissing(ctx)
	if err != nil {
		t.Fatalf("PruneMissing: %v", err)
	}
	if pruned.Deleted != 1 || len(pruned.New) != 0 {
		t.Fatalf("expected one deletion, got %+v", pruned)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 0 || stats.Instances != 0 {
		t.Fatalf("expected empty catalog after prune, got %+v", stats)
	}
}

func TestUnreadableFileIsNeverDeleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	movies := testsupport.MoviesRoot(cfg)
	path := filepath.Join(movies, "Locked.Movie.2001.mp4")
	testsupport.WritePattern(t, path, 1024, 'l')

	hasher := flakyHasher{inner: identity.NewHasher(0), failing: map[string]bool{}}
	scan := scanner.New(cfg.Roots(), cfg.Library.Extensions, logging.NewNop())
	rec := reconcile.New(store, scan, hasher, 1, logging.NewNop())

	ctx := context.Background()
	plan, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ingestPlan(t, store, plan)

	hasher.failing[path] = true
	locked, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(locked.Failed) != 1 || len(locked.Missing) != 0 || locked.Deleted != 0 {
		t.Fatalf("locked file must be protected, got %+v", locked)
	}
	_, has, err := store.InstancePath(ctx, plan.New[0].Fingerprint)
	if err != nil || !has {
		t.Fatalf("expected fingerprint to survive, got %v, %v", has, err)
	}
}

func TestDiffCollapsesLocalDuplicates(t *testing.T) {
	rec, _, movies := newReconciler(t, identity.NewHasher(0))
	testsupport.WritePattern(t, filepath.Join(movies, "a", "Copy.One.mp4"), 512, 'd')
	testsupport.WritePattern(t, filepath.Join(movies, "b", "Copy.Two.mp4"), 512, 'd')

	plan, err := rec.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(plan.New) != 1 || len(plan.Duplicates) != 1 {
		t.Fatalf("expected one new and one duplicate, got new=%d dup=%d", len(plan.New), len(plan.Duplicates))
	}
}

func TestMissingRootIsEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRoots([]string{"library/movies"}, []string{"unmounted"}))
	if err := os.RemoveAll(testsupport.SeriesRoot(cfg)); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	store := testsupport.MustOpenCatalog(t, cfg)
	scan := scanner.New(cfg.Roots(), cfg.Library.Extensions, logging.NewNop())
	rec := reconcile.New(store, scan, identity.NewHasher(0), 2, logging.NewNop())

	plan, err := rec.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(plan.MissingRoots) != 1 || !plan.Empty() {
		t.Fatalf("expected missing root reported and nothing to do, got %+v", plan)
	}
}

func TestRunRelocatesMovedFile(t *testing.T) {
	rec, store, movies := newReconciler(t, identity.NewHasher(0))
	oldPath := filepath.Join(movies, "Movie.X.2020.1080p.mp4")
	testsupport.WritePattern(t, oldPath, 2048, 'm')

	ctx := context.Background()
	first, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ingestPlan(t, store, first)

	newPath := filepath.Join(movies, "Movie X (2020)", "Movie.X.2020.1080p.mp4")
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename: %v", err)
	}

	moved, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(moved.New) != 0 || len(moved.Missing) != 0 || len(moved.Duplicates) != 0 {
		t.Fatalf("a move must not add or remove instances, got %+v", moved)
	}
	if len(moved.Moved) != 1 || moved.Moved[0].From != oldPath || moved.Moved[0].To != newPath || moved.Relocated != 1 {
		t.Fatalf("expected one relocation to %s, got %+v", newPath, moved.Moved)
	}
	path, ok, err := store.InstancePath(ctx, first.New[0].Fingerprint)
	if err != nil || !ok || path != newPath {
		t.Fatalf("catalog path = %q %v %v, want %s", path, ok, err, newPath)
	}

	again, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !again.Empty() {
		t.Fatalf("pass after a move must be empty, got %+v", again)
	}
}

func TestRunIngestsNewContentAtVacatedPath(t *testing.T) {
	rec, store, movies := newReconciler(t, identity.NewHasher(0))
	oldPath := filepath.Join(movies, "Movie.X.2020.1080p.mp4")
	testsupport.WritePattern(t, oldPath, 2048, 'm')

	ctx := context.Background()
	first, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ingestPlan(t, store, first)

	newPath := filepath.Join(movies, "Archive", "Movie.X.2020.1080p.mp4")
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename: %v", err)
	}
	testsupport.WritePattern(t, oldPath, 2048, 'n')

	plan, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(plan.Moved) != 1 || len(plan.New) != 1 || plan.New[0].File.Path() != oldPath {
		t.Fatalf("expected a move and new content at %s, got moved=%+v new=%+v", oldPath, plan.Moved, plan.New)
	}
	ingestPlan(t, store, plan)

	fingerprints, err := store.AllFingerprints(ctx)
	if err != nil {
		t.Fatalf("AllFingerprints: %v", err)
	}
	if len(fingerprints) != 2 || fingerprints[first.New[0].Fingerprint] != newPath || fingerprints[plan.New[0].Fingerprint] != oldPath {
		t.Fatalf("unexpected catalog paths %v", fingerprints)
	}

	again, err := rec.Run(ctx, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !again.Empty() {
		t.Fatalf("pass after reuse of a vacated path must be empty, got %+v", again)
	}
}

type fixedLister struct {
	result scanner.Result
}

func (l fixedLister) Scan(context.Context) (scanner.Result, error) {
	return l.result, nil
}

func TestSkippedDirectoryKeepsItsInstances(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	movies := testsupport.MoviesRoot(cfg)
	locked := filepath.Join(movies, "Locked")
	testsupport.MustIngest(t, store, testsupport.MovieRecord("Hidden Away", "2001", "fp-locked", filepath.Join(locked, "Hidden.Away.2001.mp4")))
	testsupport.MustIngest(t, store, testsupport.MovieRecord("Gone", "2002", "fp-gone", filepath.Join(movies, "Gone.2002.mp4")))
	testsupport.MustIngest(t, store, testsupport.MovieRecord("Lookalike", "2003", "fp-sibling", filepath.Join(movies, "Locked2", "Lookalike.2003.mp4")))

	lister := fixedLister{result: scanner.Result{Skipped: []string{locked}}}
	rec := reconcile.New(store, lister, identity.NewHasher(0), 1, logging.NewNop())

	plan, err := rec.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(plan.Skipped) != 1 {
		t.Fatalf("expected skipped directory on the plan, got %+v", plan.Skipped)
	}
	if len(plan.Missing) != 2 || plan.Deleted != 2 {
		t.Fatalf("expected only the readable instances to be missing, got %+v", plan.Missing)
	}
	for _, m := range plan.Missing {
		if m.Fingerprint == "fp-locked" {
			t.Fatalf("instance below a skipped directory must be kept, got %+v", plan.Missing)
		}
	}
	_, has, err := store.InstancePath(context.Background(), "fp-locked")
	if err != nil || !has {
		t.Fatalf("expected fp-locked to survive, got %v, %v", has, err)
	}
}
