package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"reelsync/internal/config"
	"reelsync/internal/fileutil"
	"reelsync/internal/ingest"
	"reelsync/internal/logging"
	"reelsync/internal/media"
	"reelsync/internal/reconcile"
	"reelsync/internal/scanner"
	"reelsync/internal/services"
)

// Ingester runs a settled file through the ingestion path.
type Ingester interface {
	Process(ctx context.Context, file media.File, fingerprint string) (ingest.Result, error)
}

// Pruner removes catalog rows for files that disappeared.
type Pruner interface {
	PruneMissing(ctx context.Context) (reconcile.Plan, error)
}

// Suppressor reports whether an event path was produced by the engine itself.
type Suppressor interface {
	Observe(path string) bool
}

// Fingerprinter computes the partial-content fingerprint of a file.
type Fingerprinter interface {
	Fingerprint(path string) (string, error)
}

// Deps are the collaborators shared with the rest of the pipeline.
type Deps struct {
	Ingester   Ingester
	Pruner     Pruner
	Suppressor Suppressor
	Hasher     Fingerprinter
	Pool       *Pool
}

const pruneKey = "\x00prune"

// Watcher subscribes to the library roots and dispatches settled events.
type Watcher struct {
	roots        []media.Root
	filter       *scanner.Scanner
	deps         Deps
	debounce     time.Duration
	readyRetries int
	readyDelay   time.Duration
	logger       *slog.Logger

	fs          *fsnotify.Watcher
	mu          sync.Mutex
	timers      map[string]*time.Timer
	watched     map[string]struct{}
	fpLocks     *keyLocks
	pruneQueued atomic.Bool
}

// New builds a watcher over cfg's roots.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Watcher, error) {
	if deps.Ingester == nil || deps.Pruner == nil || deps.Hasher == nil || deps.Pool == nil {
		return nil, errors.New("watcher: ingester, pruner, hasher and pool are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	roots := cfg.Roots()
	return &Watcher{
		roots:        roots,
		filter:       scanner.New(roots, cfg.Library.Extensions, logger),
		deps:         deps,
		debounce:     cfg.Debounce(),
		readyRetries: cfg.Sync.ReadyRetries,
		readyDelay:   cfg.ReadyRetryDelay(),
		logger:       logging.NewComponentLogger(logger, "watcher"),
		timers:       make(map[string]*time.Timer),
		watched:      make(map[string]struct{}),
		fpLocks:      newKeyLocks(),
	}, nil
}

// Run watches until ctx is cancelled. Missing roots are logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "watch", "subscribe", "create fsnotify watcher", err)
	}
	w.mu.Lock()
	w.fs = fsw
	w.mu.Unlock()
	defer func() {
		w.stopTimers()
		_ = fsw.Close()
	}()

	for _, root := range w.roots {
		info, err := os.Stat(root.Path)
		if err != nil || !info.IsDir() {
			logging.WarnWithContext(w.logger, "library root not watchable", "watch_root_missing",
				logging.String(logging.FieldPath, root.Path),
				logging.String(logging.FieldCategory, root.Category.String()),
				logging.String(logging.FieldImpact, "changes under this root are only seen by the next scan"),
				logging.String(logging.FieldErrorHint, "create the directory or fix library paths in config"),
			)
			continue
		}
		w.addRecursive(root.Path)
	}
	w.logger.Info("watcher started", logging.Int("watched_dirs", w.Watched()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "filesystem watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some events may have been lost until the next scan"),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches if this is an overflow"),
			)
		}
	}
}

// Watched returns the number of directories under watch.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	base := filepath.Base(path)
	if scanner.Hidden(base) || scanner.Partial(base) {
		return
	}
	created := event.Has(fsnotify.Create)
	removed := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !created && !removed {
		return
	}

	root, ok := media.ResolveRoot(w.roots, path)
	if !ok {
		w.logger.Info("event outside library roots dropped", logging.String(logging.FieldPath, path))
		return
	}

	if created {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.directoryCreated(ctx, root, path)
			return
		}
	}
	if removed {
		w.forget(path)
		if filepath.Ext(base) == "" {
			w.settleLater(ctx, root, path)
			return
		}
	}
	if !w.filter.Accepts(base) {
		return
	}
	w.settleLater(ctx, root, path)
}

// settleLater restarts the debounce timer for path.
func (w *Watcher) settleLater(ctx context.Context, root media.Root, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing := w.timers[path]; existing != nil {
		existing.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timers[path] == timer {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.settle(ctx, root, path)
	})
	w.timers[path] = timer
}

// settle routes a quiet path by its current state on disk.
func (w *Watcher) settle(ctx context.Context, root media.Root, path string) {
	if w.deps.Suppressor != nil && w.deps.Suppressor.Observe(path) {
		w.logger.Debug("self-generated event ignored", logging.String(logging.FieldPath, path))
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.schedulePrune(path)
		}
		return
	}
	if info.IsDir() {
		return
	}
	w.submit(path, func(ctx context.Context) {
		w.processCreate(ctx, root, path)
	})
}

func (w *Watcher) schedulePrune(trigger string) {
	if !w.pruneQueued.CompareAndSwap(false, true) {
		return
	}
	w.submit(pruneKey, func(ctx context.Context) {
		w.pruneQueued.Store(false)
		ctx = services.WithStage(ctx, "watch")
		plan, err := w.deps.Pruner.PruneMissing(ctx)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, w.logger), "prune after delete failed", "watch_prune_failed",
				append(logging.Failure(err, "run `reelsync scan` to reconcile manually"),
					logging.String("trigger", trigger))...,
			)
			return
		}
		w.logger.Info("catalog pruned after delete",
			logging.String("trigger", trigger),
			logging.Int("missing", len(plan.Missing)),
			logging.Int64("deleted", plan.Deleted),
		)
	})
}

func (w *Watcher) submit(key string, fn func(context.Context)) {
	err := w.deps.Pool.Submit(key, fn)
	switch {
	case err == nil:
	case errors.Is(err, ErrPoolClosed):
		if key == pruneKey {
			w.pruneQueued.Store(false)
		}
	default:
		if key == pruneKey {
			w.pruneQueued.Store(false)
		}
		logging.WarnWithContext(w.logger, "watch backlog full; event dropped", "watch_backlog_full",
			logging.String(logging.FieldPath, key),
			logging.Int("pending", w.deps.Pool.Pending()),
			logging.String(logging.FieldImpact, "the file is picked up by the next reconciliation pass"),
			logging.String(logging.FieldErrorHint, "raise sync.watcher_workers"),
		)
	}
}

func (w *Watcher) processCreate(ctx context.Context, root media.Root, path string) {
	ctx = services.WithStage(services.WithPath(ctx, path), "watch")
	logger := logging.WithContext(ctx, w.logger)

	if _, err := fileutil.WaitReady(ctx, path, w.readyRetries, w.readyDelay); err != nil {
		if errors.Is(err, fs.ErrNotExist) || ctx.Err() != nil {
			logger.Debug("file gone before it settled", logging.Error(err))
			return
		}
		logging.WarnWithContext(logger, "file never became ready", "watch_file_not_ready",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the file is picked up by the next reconciliation pass"),
			logging.String(logging.FieldErrorHint, "raise sync.ready_retries for slow copies"),
		)
		return
	}

	fingerprint, err := w.fingerprint(ctx, path)
	if err != nil {
		logging.WarnWithContext(logger, "fingerprint failed", "fingerprint_failed",
			append(logging.Failure(err, "check file permissions"),
				logging.String(logging.FieldImpact, "the file is picked up by the next reconciliation pass"))...,
		)
		return
	}

	unlock := w.fpLocks.lock(fingerprint)
	defer unlock()
	result, err := w.deps.Ingester.Process(ctx, media.NewFile(root, path), fingerprint)
	if err != nil {
		logger.Debug("watch event not ingested",
			logging.Error(err),
			logging.String(logging.FieldDisposition, string(services.Classify(err))),
		)
		return
	}
	logger.Info("watch event processed",
		logging.String("outcome", string(result.Outcome)),
		logging.String(logging.FieldFingerprint, fingerprint),
	)
}

// fingerprint retries transient failures, which mean the file is still
// locked by its writer.
func (w *Watcher) fingerprint(ctx context.Context, path string) (string, error) {
	for attempt := 1; ; attempt++ {
		fp, err := w.deps.Hasher.Fingerprint(path)
		if err == nil || !services.IsRetryable(err) || attempt >= w.readyRetries {
			return fp, err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(w.readyDelay):
		}
	}
}

func (w *Watcher) directoryCreated(ctx context.Context, root media.Root, dir string) {
	files := w.addRecursive(dir)
	w.logger.Info("directory added to watch",
		logging.String(logging.FieldPath, dir),
		logging.Int("files", len(files)),
	)
	for _, file := range files {
		w.settleLater(ctx, root, file)
	}
}

// addRecursive watches dir and every directory below it and returns the
// media files already present.
func (w *Watcher) addRecursive(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && scanner.Hidden(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.add(path); err != nil {
				logging.WarnWithContext(w.logger, "cannot watch directory", "watch_add_failed",
					logging.String(logging.FieldPath, path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "changes in this directory are only seen by the next scan"),
					logging.String(logging.FieldErrorHint, "check permissions and fs.inotify.max_user_watches"),
				)
			}
			return nil
		}
		if w.filter.Accepts(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if w.fs != nil {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.watched[dir] = struct{}{}
	return nil
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, path)
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}
