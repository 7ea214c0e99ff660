package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelsync/internal/catalog"
	"reelsync/internal/config"
	"reelsync/internal/enrichment/tmdb"
	"reelsync/internal/logging"
	"reelsync/internal/media"
	"reelsync/internal/services"
)

// Store is the catalog surface the scheduler reads and writes.
type Store interface {
	GetEntry(ctx context.Context, id int64) (*catalog.Entry, error)
	Seasons(ctx context.Context, entryID int64) ([]catalog.Season, error)
	ListEntries(ctx context.Context, filter catalog.ListFilter) ([]catalog.Entry, error)
	ApplyEnrichment(ctx context.Context, entryID int64, data catalog.Enrichment, now time.Time) error
}

// Outcome is what Enrich did for one entry.
type Outcome string

const (
	OutcomeFresh       Outcome = "fresh"
	OutcomeFromCache   Outcome = "cache"
	OutcomeFromAPI     Outcome = "api"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeGone        Outcome = "gone"
)

// Summary counts outcomes of a refresh pass.
type Summary struct {
	Checked int
	Updated int
	Failed  int
}

const notifyBuffer = 1024

// Scheduler applies the staleness policy and writes provider metadata.
type Scheduler struct {
	store    Store
	looker   tmdb.Looker
	cache    *Cache
	window   time.Duration
	interval time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time

	notify   chan int64
	warnOnce sync.Once
}

// NewScheduler builds a scheduler. looker may be nil when no API key is
// configured; entries are then served from the cache only.
func NewScheduler(cfg *config.Config, store Store, looker tmdb.Looker, cache *Cache, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cache == nil {
		cache = NewCache("", logger)
	}
	batch := cfg.TMDB.RefreshBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Scheduler{
		store:    store,
		looker:   looker,
		cache:    cache,
		window:   cfg.StaleAfter(),
		interval: cfg.RefreshInterval(),
		batch:    batch,
		logger:   logging.NewComponentLogger(logger, "enrichment"),
		now:      time.Now,
		notify:   make(chan int64, notifyBuffer),
	}
}

// NewLooker returns a TMDB client for cfg, or nil when no API key is set.
func NewLooker(cfg *config.Config) (tmdb.Looker, error) {
	if cfg.TMDB.APIKey == "" {
		return nil, nil
	}
	client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithMinInterval(cfg.TMDBMinInterval()),
		tmdb.WithTimeout(cfg.TMDBRequestTimeout()),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "enrichment", "tmdb client", "", err)
	}
	return client, nil
}

// Notify queues entryID for enrichment without blocking. When the buffer is
// full the entry is left for the next periodic refresh.
func (s *Scheduler) Notify(entryID int64) {
	select {
	case s.notify <- entryID:
	default:
		s.logger.Debug("enrichment notify dropped; buffer full", logging.Int64("entry_id", entryID))
	}
}

// Run enriches notified entries and refreshes the whole catalog once at start
// and on every interval, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.RefreshAll(ctx); err != nil && ctx.Err() == nil {
		s.logRefreshFailure(err)
	}

	var ticks <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-s.notify:
			_, _ = s.Enrich(ctx, id)
		case <-ticks:
			if _, err := s.RefreshAll(ctx); err != nil && ctx.Err() == nil {
				s.logRefreshFailure(err)
			}
		}
	}
}

// RefreshAll walks every entry in id order, batch entries at a time, and
// enriches the stale ones. Per-entry failures are counted, not returned.
func (s *Scheduler) RefreshAll(ctx context.Context) (Summary, error) {
	var (
		summary Summary
		afterID int64
	)
	started := s.now()
	for {
		entries, err := s.store.ListEntries(ctx, catalog.ListFilter{AfterID: afterID, Limit: s.batch})
		if err != nil {
			return summary, err
		}
		if len(entries) == 0 {
			break
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Checked++
			outcome, err := s.enrichEntry(ctx, entry)
			switch {
			case err != nil:
				summary.Failed++
			case outcome == OutcomeFromAPI || outcome == OutcomeFromCache:
				summary.Updated++
			}
		}
		afterID = entries[len(entries)-1].ID
	}
	s.logger.Info("enrichment refresh complete",
		logging.Int("checked", summary.Checked),
		logging.Int("updated", summary.Updated),
		logging.Int("failed", summary.Failed),
		logging.Duration("took", s.now().Sub(started)),
	)
	return summary, nil
}

// Enrich applies the staleness policy to one entry and writes metadata when
// it is stale.
func (s *Scheduler) Enrich(ctx context.Context, entryID int64) (Outcome, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return OutcomeGone, nil
	}
	return s.enrichEntry(ctx, *entry)
}

func (s *Scheduler) enrichEntry(ctx context.Context, entry catalog.Entry) (Outcome, error) {
	ctx = services.WithStage(services.WithCategory(ctx, entry.Category.String()), "enrichment")
	logger := logging.WithContext(ctx, s.logger).With(
		logging.Int64("entry_id", entry.ID),
		logging.String("title", entry.Title),
	)

	var seasons []catalog.Season
	if entry.Category == media.CategorySeries {
		var err error
		if seasons, err = s.store.Seasons(ctx, entry.ID); err != nil {
			return "", err
		}
	}
	now := s.now()
	decision := Decide(entry, seasons, s.window, now)
	if decision.Skip {
		logger.Debug("enrichment skipped", logging.String("reason", decision.Reason))
		return OutcomeFresh, nil
	}

	details, outcome, err := s.fetch(ctx, logger, entry, now)
	if err != nil {
		if outcome != OutcomeUnavailable {
			logging.WarnWithContext(logger, "enrichment failed", "enrichment_failed",
				append(logging.Failure(err, "check tmdb.api_key and network access"),
					logging.String(logging.FieldImpact, "entry keeps its parsed title until the next refresh"))...,
			)
		}
		return outcome, err
	}

	if err := s.store.ApplyEnrichment(ctx, entry.ID, Convert(details, entry.Category, SearchYear(entry.ReleaseDate)), now); err != nil {
		logging.ErrorWithContext(logger, "enrichment write failed", "enrichment_write_failed",
			logging.Failure(err, "check catalog.db permissions")...,
		)
		return outcome, err
	}
	logger.Info("entry enriched",
		logging.String("reason", decision.Reason),
		logging.String("source", string(outcome)),
		logging.Int64("tmdb_id", details.ID),
	)
	return outcome, nil
}

// fetch serves from the cache when it holds a response for the entry. A
// series response older than the staleness window is refetched when the API
// is available, falling back to the cached copy on failure.
func (s *Scheduler) fetch(ctx context.Context, logger *slog.Logger, entry catalog.Entry, now time.Time) (*tmdb.Details, Outcome, error) {
	cached, cachedAt, hit := s.cache.Lookup(entry.TitleKey)
	if hit && (s.looker == nil || entry.Category != media.CategorySeries || now.Sub(cachedAt) <= s.window) {
		return cached, OutcomeFromCache, nil
	}

	if s.looker == nil {
		s.warnOnce.Do(func() {
			logging.WarnWithContext(s.logger, "tmdb api key not configured", "tmdb_key_missing",
				logging.String(logging.FieldImpact, "entries without a cached response stay unenriched"),
				logging.String(logging.FieldErrorHint, "set tmdb.api_key or TMDB_API_KEY"),
			)
		})
		return nil, OutcomeUnavailable, services.Wrap(services.ErrNotFound, "enrichment", "cache", "no cached response and no api key", nil)
	}

	details, err := s.looker.Lookup(ctx, tmdb.KindFor(entry.Category), entry.Title, SearchYear(entry.ReleaseDate))
	if err != nil {
		if hit && !errors.Is(err, context.Canceled) {
			logger.Info("tmdb refresh failed; using cached response", logging.Error(err))
			return cached, OutcomeFromCache, nil
		}
		return nil, OutcomeFromAPI, err
	}
	if err := s.cache.Store(entry.Title, entry.TitleKey, details); err != nil {
		logging.WarnWithContext(logger, "tmdb cache write failed", "tmdb_cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next enrichment of this title calls the API again"),
			logging.String(logging.FieldErrorHint, "check cache_dir permissions"),
		)
	}
	return details, OutcomeFromAPI, nil
}

func (s *Scheduler) logRefreshFailure(err error) {
	logging.WarnWithContext(s.logger, "enrichment refresh failed", "enrichment_refresh_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "stale entries wait for the next interval"),
		logging.String(logging.FieldErrorHint, "check catalog.db health"),
	)
}
