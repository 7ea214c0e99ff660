package pipeline

import (
	"context"
	"sync"
	"time"

	"reelsync/internal/enrichment"
	"reelsync/internal/ingest"
	"reelsync/internal/logging"
	"reelsync/internal/reconcile"
	"reelsync/internal/services"
)

// Report summarizes one synchronization pass.
type Report struct {
	Plan       reconcile.Plan
	DryRun     bool
	Results    []ingest.Result
	Failed     int
	Transcoded int
	Enrichment enrichment.Summary
	Started    time.Time
	Finished   time.Time
}

// Count returns how many results ended with outcome.
func (r Report) Count(outcome ingest.Outcome) int {
	n := 0
	for _, result := range r.Results {
		if result.Outcome == outcome {
			n++
		}
	}
	return n
}

// Sync reconciles the catalog with the library roots and ingests every new
// file through the shared pool. Missing instances are deleted before any new
// file is written. With dryRun the plan is computed and nothing changes.
func (p *Pipeline) Sync(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun, Started: time.Now()}
	plan, err := p.reconciler.Run(ctx, dryRun)
	report.Plan = plan
	if err != nil {
		report.Finished = time.Now()
		return report, err
	}
	if dryRun || len(plan.New) == 0 {
		report.Finished = time.Now()
		p.recordSync(report)
		return report, nil
	}

	p.startPool(ctx)
	ctx = services.WithStage(services.WithRunID(ctx, plan.RunID), "ingest")
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, local := range plan.New {
		wg.Add(1)
		err := p.pool.SubmitWait(ctx, local.File.Path(), func(context.Context) {
			defer wg.Done()
			result, err := p.ingestor.Process(ctx, local.File, local.Fingerprint)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				return
			}
			report.Results = append(report.Results, result)
		})
		if err != nil {
			wg.Done()
			report.Finished = time.Now()
			wg.Wait()
			return report, err
		}
	}
	wg.Wait()
	report.Finished = time.Now()

	logging.WithContext(ctx, p.logger).Info("sync ingested new files",
		logging.Int("new", len(plan.New)),
		logging.Int("ingested", report.Count(ingest.OutcomeIngested)),
		logging.Int("queued", report.Count(ingest.OutcomeQueued)),
		logging.Int("duplicate", report.Count(ingest.OutcomeDuplicate)),
		logging.Int("moved", report.Count(ingest.OutcomeMoved)),
		logging.Int("deferred", report.Count(ingest.OutcomeDeferred)),
		logging.Int("failed", report.Failed),
		logging.Duration("took", report.Finished.Sub(report.Started)),
	)
	p.recordSync(report)
	return report, ctx.Err()
}

// Scan runs one complete pass for the CLI: sync, drain every queued
// transcode, then refresh stale enrichment. The background workers are not
// started.
func (p *Pipeline) Scan(ctx context.Context, dryRun bool) (Report, error) {
	report, err := p.Sync(ctx, dryRun)
	if err != nil || dryRun {
		return report, err
	}
	report.Transcoded = p.worker.Drain(ctx)
	summary, err := p.scheduler.RefreshAll(ctx)
	report.Enrichment = summary
	if err != nil {
		logging.WarnWithContext(p.logger, "enrichment refresh failed", "enrichment_refresh_failed",
			append(logging.Failure(err, "check tmdb settings and the cache directory"),
				logging.String(logging.FieldImpact, "catalog entries keep their previous metadata"))...,
		)
	}
	report.Finished = time.Now()
	p.recordSync(report)
	return report, nil
}

// Close releases the pool workers of a pipeline that was never started.
func (p *Pipeline) Close() {
	p.Stop()
	p.pool.Close()
}

func (p *Pipeline) recordSync(report Report) {
	p.mu.Lock()
	p.lastSync = &report
	p.mu.Unlock()
}
