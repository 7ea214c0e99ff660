package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reelsync/internal/logging"
	"reelsync/internal/media"
	"reelsync/internal/scanner"
	"reelsync/internal/services"
)

// Catalog is the subset of the catalog store the reconciler needs.
type Catalog interface {
	AllFingerprints(ctx context.Context) (map[string]string, error)
	DeleteByFingerprint(ctx context.Context, fingerprints ...string) (int64, error)
	MovePaths(ctx context.Context, moves map[string]string) (int64, error)
}

// Lister produces the current set of candidate files.
type Lister interface {
	Scan(ctx context.Context) (scanner.Result, error)
}

// Fingerprinter computes the identity of a physical file.
type Fingerprinter interface {
	Fingerprint(path string) (string, error)
}

// LocalFile is a scanned file with its computed fingerprint.
type LocalFile struct {
	File        media.File
	Fingerprint string
}

// Missing is a catalogued instance whose fingerprint was not found locally.
type Missing struct {
	Fingerprint string
	Path        string
}

// Move is a catalogued instance found under a different path.
type Move struct {
	Fingerprint string
	From        string
	To          string
}

// Failure records a file that could not be fingerprinted this pass.
type Failure struct {
	File media.File
	Err  error
}

// Plan is the outcome of diffing one scan against the catalog.
type Plan struct {
	RunID   string
	Scanned int
	New     []LocalFile
	Missing []Missing
	Moved   []Move
	Failed  []Failure
	// Duplicates are local files whose fingerprint matched another local file
	// in the same pass.
	Duplicates   []LocalFile
	MissingRoots []media.Root
	// Skipped are directories the scan could not read. Catalogued files
	// below them are neither missing nor moved.
	Skipped   []string
	Deleted   int64
	Relocated int64
}

// Empty reports whether the pass found nothing to add, move or remove.
func (p Plan) Empty() bool {
	return len(p.New) == 0 && len(p.Missing) == 0 && len(p.Moved) == 0
}

// Reconciler converges the catalog with the filesystem.
type Reconciler struct {
	catalog Catalog
	lister  Lister
	hasher  Fingerprinter
	workers int
	logger  *slog.Logger
	mu      sync.Mutex
}

// New constructs a Reconciler. workers bounds concurrent fingerprinting.
func New(catalog Catalog, lister Lister, hasher Fingerprinter, workers int, logger *slog.Logger) *Reconciler {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		catalog: catalog,
		lister:  lister,
		hasher:  hasher,
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "reconciler"),
	}
}

// Run scans the roots, diffs against the catalog and deletes missing
// instances. New files are returned for the caller to ingest. With dryRun
// nothing is deleted.
func (r *Reconciler) Run(ctx context.Context, dryRun bool) (Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = services.WithStage(services.WithRunID(ctx, uuid.NewString()), "reconcile")
	plan, err := r.plan(ctx)
	if err != nil {
		return plan, err
	}
	if !dryRun {
		if err := r.apply(ctx, &plan); err != nil {
			return plan, err
		}
	}
	logging.WithContext(ctx, r.logger).Info("reconciliation complete",
		logging.Int("scanned", plan.Scanned),
		logging.Int("new", len(plan.New)),
		logging.Int("missing", len(plan.Missing)),
		logging.Int("moved", len(plan.Moved)),
		logging.Int("failed", len(plan.Failed)),
		logging.Int("skipped_dirs", len(plan.Skipped)),
		logging.Int64("deleted", plan.Deleted),
		logging.Bool("dry_run", dryRun),
	)
	return plan, nil
}

// PruneMissing runs a pass restricted to missing-instance detection,
// deletion and relocation of moved instances. It is the watcher's response
// to delete and rename events.
func (r *Reconciler) PruneMissing(ctx context.Context) (Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = services.WithStage(services.WithRunID(ctx, uuid.NewString()), "prune")
	plan, err := r.plan(ctx)
	if err != nil {
		return plan, err
	}
	plan.New = nil
	plan.Duplicates = nil
	if err := r.apply(ctx, &plan); err != nil {
		return plan, err
	}
	if plan.Deleted > 0 || plan.Relocated > 0 {
		logging.WithContext(ctx, r.logger).Info("pruned missing instances",
			logging.Int64("deleted", plan.Deleted),
			logging.Int64("relocated", plan.Relocated),
		)
	}
	return plan, nil
}

func (r *Reconciler) plan(ctx context.Context) (Plan, error) {
	scan, err := r.lister.Scan(ctx)
	if err != nil {
		return Plan{}, err
	}
	return r.Diff(ctx, scan)
}

// Diff fingerprints the scanned files and compares them against the catalog.
// It does not modify the catalog. A catalogued fingerprint found only under
// another path is a move. Catalogued paths below a skipped directory are
// left alone.
func (r *Reconciler) Diff(ctx context.Context, scan scanner.Result) (Plan, error) {
	plan := Plan{Scanned: len(scan.Files), MissingRoots: scan.MissingRoots, Skipped: scan.Skipped}
	if id, ok := services.RunIDFromContext(ctx); ok {
		plan.RunID = id
	}

	known, err := r.catalog.AllFingerprints(ctx)
	if err != nil {
		return plan, err
	}
	local, failed, err := r.fingerprintAll(ctx, scan.Files)
	if err != nil {
		return plan, err
	}
	plan.Failed = failed

	groups := make(map[string][]LocalFile, len(local))
	order := make([]string, 0, len(local))
	for _, lf := range local {
		if _, ok := groups[lf.Fingerprint]; !ok {
			order = append(order, lf.Fingerprint)
		}
		groups[lf.Fingerprint] = append(groups[lf.Fingerprint], lf)
	}
	for _, fingerprint := range order {
		group := groups[fingerprint]
		catalogued, ok := known[fingerprint]
		if !ok {
			plan.New = append(plan.New, group[0])
			plan.Duplicates = append(plan.Duplicates, group[1:]...)
			continue
		}
		keep := -1
		for i, lf := range group {
			if filepath.Clean(lf.File.Path()) == filepath.Clean(catalogued) {
				keep = i
				break
			}
		}
		if keep < 0 && !underAny(catalogued, scan.Skipped) {
			keep = 0
			plan.Moved = append(plan.Moved, Move{Fingerprint: fingerprint, From: catalogued, To: group[0].File.Path()})
		}
		for i, lf := range group {
			if i != keep {
				plan.Duplicates = append(plan.Duplicates, lf)
			}
		}
	}

	protected := make(map[string]struct{}, len(failed))
	for _, f := range failed {
		if errors.Is(f.Err, services.ErrNotFound) {
			continue
		}
		protected[filepath.Clean(f.File.Path())] = struct{}{}
	}
	for fingerprint, path := range known {
		if _, ok := groups[fingerprint]; ok {
			continue
		}
		if _, ok := protected[filepath.Clean(path)]; ok {
			continue
		}
		if underAny(path, scan.Skipped) {
			continue
		}
		plan.Missing = append(plan.Missing, Missing{Fingerprint: fingerprint, Path: path})
	}
	sort.Slice(plan.Missing, func(i, j int) bool { return plan.Missing[i].Path < plan.Missing[j].Path })
	sort.Slice(plan.Moved, func(i, j int) bool { return plan.Moved[i].To < plan.Moved[j].To })
	return plan, nil
}

// underAny reports whether path is one of dirs or lies below one of them.
func underAny(path string, dirs []string) bool {
	path = filepath.Clean(path)
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// apply deletes missing instances before relocating moved ones, so a move
// onto a path whose previous file vanished never collides.
func (r *Reconciler) apply(ctx context.Context, plan *Plan) error {
	if len(plan.Missing) > 0 {
		fingerprints := make([]string, len(plan.Missing))
		for i, m := range plan.Missing {
			fingerprints[i] = m.Fingerprint
		}
		deleted, err := r.catalog.DeleteByFingerprint(ctx, fingerprints...)
		if err != nil {
			return err
		}
		plan.Deleted = deleted
	}
	if len(plan.Moved) > 0 {
		moves := make(map[string]string, len(plan.Moved))
		for _, m := range plan.Moved {
			moves[m.Fingerprint] = m.To
		}
		relocated, err := r.catalog.MovePaths(ctx, moves)
		if err != nil {
			return err
		}
		plan.Relocated = relocated
		logger := logging.WithContext(ctx, r.logger)
		for _, m := range plan.Moved {
			logger.Info("catalogued file moved",
				logging.String("from", m.From),
				logging.String("to", m.To),
				logging.String(logging.FieldFingerprint, m.Fingerprint),
			)
		}
	}
	return nil
}

// fingerprintAll hashes files with at most r.workers concurrent reads.
// Results come back sorted by path. Per-file failures are collected, only
// cancellation aborts.
func (r *Reconciler) fingerprintAll(ctx context.Context, files []media.File) ([]LocalFile, []Failure, error) {
	var (
		mu     sync.Mutex
		local  = make([]LocalFile, 0, len(files))
		failed []Failure
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for _, file := range files {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fingerprint, err := r.hasher.Fingerprint(file.Path())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, Failure{File: file, Err: err})
				r.logFailure(gctx, file, err)
				return nil
			}
			local = append(local, LocalFile{File: file, Fingerprint: fingerprint})
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sort.Slice(local, func(i, j int) bool { return local[i].File.Path() < local[j].File.Path() })
	return local, failed, nil
}

func (r *Reconciler) logFailure(ctx context.Context, file media.File, err error) {
	if errors.Is(err, services.ErrNotFound) {
		r.logger.Debug("file vanished during scan", logging.String(logging.FieldPath, file.Path()))
		return
	}
	attrs := append(logging.Failure(err, "file may still be copying or locked"),
		logging.String(logging.FieldPath, file.Path()),
		logging.String(logging.FieldImpact, "file skipped this pass; its catalog entry is kept"),
	)
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "fingerprint failed", "fingerprint_failed", attrs...)
}
