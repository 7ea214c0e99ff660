package transcode

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reelsync/internal/compat"
	"reelsync/internal/config"
	"reelsync/internal/fileutil"
	"reelsync/internal/logging"
	"reelsync/internal/media"
	"reelsync/internal/services"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity. The
// file stays on disk and is offered again by the next reconciliation pass.
var ErrQueueFull = errors.New("transcode queue full")

// ErrSourceNotRemoved marks a successful encode whose source could not be
// deleted after every retry.
var ErrSourceNotRemoved = errors.New("source not removed after transcode")

// Job is a file rejected by the compatibility classifier.
type Job struct {
	File      media.File
	Verdict   compat.Verdict
	Technical media.Technical
}

// Mode picks a stream copy when only the container is wrong.
func (j Job) Mode(remuxAllowed bool) Mode {
	if remuxAllowed && j.Verdict.RemuxOnly() {
		return ModeRemux
	}
	return ModeEncode
}

// unknownProgressInterval throttles progress logs when ffprobe reported no
// duration and no percentage can be computed.
const unknownProgressInterval = 15 * time.Second

// Result describes a finished job.
type Result struct {
	Source string
	Output string
	Mode   Mode
	Took   time.Duration
}

// Suppressor records paths whose filesystem events the watcher must ignore.
type Suppressor interface {
	Add(paths ...string)
	Release(paths ...string)
}

// Completion receives the transcoded file for ingestion.
type Completion func(ctx context.Context, output media.File) error

// Worker serializes transcode jobs through a single goroutine.
type Worker struct {
	runner        Runner
	suppress      Suppressor
	complete      Completion
	container     string
	remux         bool
	timeout       time.Duration
	deleteRetries int
	deleteDelay   time.Duration
	logger        *slog.Logger
	now           func() time.Time

	queue   chan Job
	mu      sync.Mutex
	pending map[string]struct{}
	active  string
}

// NewWorker builds a worker from configuration. complete may be nil.
func NewWorker(cfg *config.Config, runner Runner, suppress Suppressor, complete Completion, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	size := cfg.Transcode.QueueSize
	if size <= 0 {
		size = 1
	}
	return &Worker{
		runner:        runner,
		suppress:      suppress,
		complete:      complete,
		container:     cfg.Compatibility.Extension,
		remux:         cfg.Transcode.RemuxCompatibleStreams,
		timeout:       cfg.EncodeTimeout(),
		deleteRetries: cfg.Transcode.DeleteRetries,
		deleteDelay:   cfg.DeleteRetryDelay(),
		logger:        logging.NewComponentLogger(logger, "transcoder"),
		now:           time.Now,
		queue:         make(chan Job, size),
		pending:       make(map[string]struct{}),
	}
}

// Enqueue adds job to the tail of the queue without blocking. A source that
// is already queued or being encoded is ignored.
func (w *Worker) Enqueue(job Job) error {
	key := filepath.Clean(job.File.Path())
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, queued := w.pending[key]; queued || w.active == key {
		w.logger.Debug("transcode already queued", logging.String(logging.FieldPath, key))
		return nil
	}
	select {
	case w.queue <- job:
		w.pending[key] = struct{}{}
		w.logger.Info("transcode queued",
			logging.String(logging.FieldPath, key),
			logging.String("verdict", job.Verdict.String()),
			logging.Int("queue_depth", len(w.queue)),
		)
		return nil
	default:
		logging.WarnWithContext(w.logger, "transcode queue full", "transcode_queue_full",
			logging.String(logging.FieldPath, key),
			logging.Int("capacity", cap(w.queue)),
			logging.String(logging.FieldImpact, "file stays unconverted until the next reconciliation pass"),
			logging.String(logging.FieldErrorHint, "raise transcode.queue_size or wait for the queue to drain"),
		)
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs, excluding the active one.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Run drains the queue until ctx is cancelled. Job failures are logged and
// never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-w.queue:
			w.runQueued(ctx, job)
		}
	}
}

// Drain processes queued jobs until the queue is empty or ctx is cancelled
// and returns how many ran. One-shot scans use it instead of Run.
func (w *Worker) Drain(ctx context.Context) int {
	ran := 0
	for ctx.Err() == nil {
		select {
		case job := <-w.queue:
			w.runQueued(ctx, job)
			ran++
		default:
			return ran
		}
	}
	return ran
}

func (w *Worker) runQueued(ctx context.Context, job Job) {
	key := filepath.Clean(job.File.Path())
	w.mu.Lock()
	delete(w.pending, key)
	w.active = key
	w.mu.Unlock()

	_, _ = w.Process(ctx, job)

	w.mu.Lock()
	w.active = ""
	w.mu.Unlock()
}

// Process runs one job synchronously: suppress, encode, delete the source,
// then hand the output to the completion callback.
func (w *Worker) Process(ctx context.Context, job Job) (Result, error) {
	source := job.File.Path()
	mode := job.Mode(w.remux)
	output := OutputPath(source, w.container, w.now())
	result := Result{Source: source, Output: output, Mode: mode}

	ctx = services.WithStage(services.WithPath(ctx, source), "transcode")
	logger := logging.WithContext(ctx, w.logger)

	if _, err := os.Stat(source); err != nil {
		logger.Info("transcode skipped; source gone", logging.Error(err))
		return result, services.Wrap(services.ErrNotFound, "transcode", "stat source", source, err)
	}

	if w.suppress != nil {
		w.suppress.Add(output, source)
	}

	encodeCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	logger.Info("transcode started",
		logging.String("output", output),
		logging.String("mode", string(mode)),
		logging.String("verdict", job.Verdict.String()),
	)
	started := w.now()
	sampler := logging.NewProgressSampler(5).WithInterval(unknownProgressInterval)
	err := w.runner.Encode(encodeCtx, source, output, mode, job.Technical.DurationSeconds, func(p Progress) {
		if !sampler.ShouldLog(p.Percent, string(mode)) {
			return
		}
		logger.Info("transcode progress",
			logging.Float64("percent", p.Percent),
			logging.Int64("frame", p.Frame),
			logging.Duration("position", p.Time),
			logging.String("speed", p.Speed),
		)
	})
	result.Took = w.now().Sub(started)
	if err != nil {
		_ = os.Remove(output)
		if w.suppress != nil {
			w.suppress.Release(source)
		}
		attrs := append(logging.Failure(err, "inspect the source with `reelsync probe`"),
			logging.String("output", output),
			logging.String(logging.FieldImpact, "job dropped; source left untouched"),
		)
		logging.ErrorWithContext(logger, "transcode failed", "transcode_failed", attrs...)
		return result, err
	}

	var deleteErr error
	if err := fileutil.RemoveWithRetry(ctx, source, w.deleteRetries, w.deleteDelay); err != nil {
		deleteErr = services.Wrap(ErrSourceNotRemoved, "transcode", "remove source", source, err)
		if w.suppress != nil {
			w.suppress.Release(source)
		}
		logging.ErrorWithContext(logger, "source not removed after transcode", "transcode_source_delete_failed",
			logging.Error(err),
			logging.String("output", output),
			logging.String(logging.FieldErrorHint, "remove the source manually; it will be offered for transcode again otherwise"),
		)
	}

	logger.Info("transcode complete",
		logging.String("output", output),
		logging.Duration("took", result.Took),
	)

	if w.complete != nil {
		outFile := media.File{
			Category: job.File.Category,
			Filename: filepath.Base(output),
			Dir:      filepath.Dir(output),
			Root:     job.File.Root,
		}
		if err := w.complete(ctx, outFile); err != nil {
			return result, errors.Join(deleteErr, err)
		}
	}
	return result, deleteErr
}
