package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelsync/internal/catalog"
	"reelsync/internal/compat"
	"reelsync/internal/config"
	"reelsync/internal/enrichment"
	"reelsync/internal/enrichment/tmdb"
	"reelsync/internal/identity"
	"reelsync/internal/ingest"
	"reelsync/internal/logging"
	"reelsync/internal/media"
	"reelsync/internal/media/ffprobe"
	"reelsync/internal/parser"
	"reelsync/internal/reconcile"
	"reelsync/internal/scanner"
	"reelsync/internal/subtitles"
	"reelsync/internal/suppression"
	"reelsync/internal/transcode"
	"reelsync/internal/watcher"
)

// Option overrides a collaborator, mostly for tests.
type Option func(*options)

type options struct {
	prober    ingest.Prober
	runner    transcode.Runner
	looker    tmdb.Looker
	lookerSet bool
}

// WithProber replaces the ffprobe-backed prober.
func WithProber(p ingest.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithRunner replaces the ffmpeg-backed encoder.
func WithRunner(r transcode.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithLooker replaces the TMDB client. A nil looker disables provider
// requests even when an API key is configured.
func WithLooker(l tmdb.Looker) Option {
	return func(o *options) {
		o.looker = l
		o.lookerSet = true
	}
}

// Pipeline owns the engine's shared state and background workers.
type Pipeline struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger

	hasher     identity.Hasher
	scanner    *scanner.Scanner
	reconciler *reconcile.Reconciler
	suppress   *suppression.Set
	pool       *watcher.Pool
	worker     *transcode.Worker
	ingestor   *ingest.Ingestor
	cache      *enrichment.Cache
	scheduler  *enrichment.Scheduler
	watcher    *watcher.Watcher

	poolOnce sync.Once

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastSync *Report
}

// New wires a pipeline around an open catalog store.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("pipeline requires config and catalog store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		hasher:   identity.NewHasher(cfg.Sync.FingerprintBytes),
		suppress: suppression.New(cfg.SuppressionTTL()),
		pool:     watcher.NewPool(cfg.Sync.WatcherWorkers, 0),
	}
	roots := cfg.Roots()
	p.scanner = scanner.New(roots, cfg.Library.Extensions, logger)
	p.reconciler = reconcile.New(store, p.scanner, p.hasher, cfg.Sync.ScanWorkers, logger)

	looker := o.looker
	if !o.lookerSet {
		var err error
		if looker, err = enrichment.NewLooker(cfg); err != nil {
			return nil, err
		}
	}
	p.cache = enrichment.NewCache(cfg.Paths.CacheDir, logger)
	p.scheduler = enrichment.NewScheduler(cfg, store, looker, p.cache, logger)

	runner := o.runner
	if runner == nil {
		runner = transcode.NewFFmpeg(cfg.FFmpegBinary(), transcode.SettingsFromConfig(cfg))
	}
	p.worker = transcode.NewWorker(cfg, runner, p.suppress, p.transcoded, logger)

	prober := o.prober
	if prober == nil {
		prober = ffprobe.NewProber(cfg.FFprobeBinary(), cfg.ProbeTimeout())
	}
	ingestOpts := ingest.Options{
		Catalog:    store,
		Prober:     prober,
		Hasher:     p.hasher,
		Policy:     compat.PolicyFromConfig(cfg),
		Parser:     parser.New(),
		Transcoder: p.worker,
		Enricher:   p.scheduler,
	}
	if cfg.KeyFrames.Enabled {
		ingestOpts.KeyFrames = transcode.NewKeyFrames(cfg.FFmpegBinary(), cfg.Paths.KeyFrameDir, cfg.KeyFrames.Position, cfg.ProbeTimeout())
	}
	if cfg.Subtitles.Enabled {
		var extractor *subtitles.Extractor
		if cfg.Subtitles.ExtractEmbedded {
			extractor = subtitles.NewExtractor(cfg.FFprobeBinary(), cfg.FFmpegBinary(), cfg.Subtitles.Languages,
				cfg.ProbeTimeout(), cfg.EncodeTimeout(), logger)
		}
		ingestOpts.Subtitles = subtitles.NewFinder(cfg.Subtitles.ConvertSRT, extractor, logger)
	}
	ingestor, err := ingest.New(ingestOpts, logger)
	if err != nil {
		return nil, err
	}
	p.ingestor = ingestor

	w, err := watcher.New(cfg, watcher.Deps{
		Ingester:   ingestor,
		Pruner:     p.reconciler,
		Suppressor: p.suppress,
		Hasher:     p.hasher,
		Pool:       p.pool,
	}, logger)
	if err != nil {
		return nil, err
	}
	p.watcher = w
	return p, nil
}

// transcoded hands a finished transcode output back to ingestion.
func (p *Pipeline) transcoded(ctx context.Context, output media.File) error {
	return p.ingestor.Transcoded(ctx, output)
}

func (p *Pipeline) startPool(ctx context.Context) {
	p.poolOnce.Do(func() {
		p.pool.Start(context.WithoutCancel(ctx))
	})
}

// Cache exposes the enrichment cache for maintenance commands.
func (p *Pipeline) Cache() *enrichment.Cache {
	return p.cache
}

// Scheduler exposes the enrichment scheduler.
func (p *Pipeline) Scheduler() *enrichment.Scheduler {
	return p.scheduler
}

// Suppression exposes the self-generated event set.
func (p *Pipeline) Suppression() *suppression.Set {
	return p.suppress
}

// Start launches the watcher, transcode worker and enrichment scheduler and
// runs a startup reconciliation pass in the background.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("pipeline already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.startPool(runCtx)
	p.launch(runCtx, "transcoder", p.worker.Run)
	p.launch(runCtx, "enrichment", p.scheduler.Run)
	p.launch(runCtx, "watcher", p.watcher.Run)
	p.launch(runCtx, "startup sync", func(ctx context.Context) error {
		_, err := p.Sync(ctx, false)
		return err
	})
	p.logger.Info("pipeline started",
		logging.Int("roots", len(p.cfg.Roots())),
		logging.Int("watcher_workers", p.cfg.Sync.WatcherWorkers),
	)
	return nil
}

func (p *Pipeline) launch(ctx context.Context, name string, fn func(context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			p.setLastError(err)
			logging.ErrorWithContext(p.logger, name+" stopped", "pipeline_component_failed",
				logging.Failure(err, "check the log lines above for the failing component")...,
			)
		}
	}()
}

// Stop cancels the background workers and waits for them. Queued pool tasks
// are drained with a cancelled context.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.pool.Close()
	p.logger.Info("pipeline stopped")
}

func (p *Pipeline) setLastError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

// StatusSummary is a point-in-time view of the running engine.
type StatusSummary struct {
	Running          bool
	LastError        string
	LastSync         *Report
	LastSyncAt       time.Time
	TranscodePending int
	WatchPending     int
	Suppressed       int
	WatchedDirs      int
}

// Status returns the latest pipeline information.
func (p *Pipeline) Status() StatusSummary {
	p.mu.RLock()
	summary := StatusSummary{
		Running:          p.running,
		TranscodePending: p.worker.Pending(),
		WatchPending:     p.pool.Pending(),
		Suppressed:       p.suppress.Len(),
		WatchedDirs:      p.watcher.Watched(),
	}
	if p.lastErr != nil {
		summary.LastError = p.lastErr.Error()
	}
	if p.lastSync != nil {
		copy := *p.lastSync
		summary.LastSync = &copy
		summary.LastSyncAt = copy.Finished
	}
	p.mu.RUnlock()
	return summary
}
