// Package scheduler runs the periodic pipeline jobs.
//
// Jobs are single-flight per job-type+source through persisted store leases:
// a trigger while a lease is held is skipped, not queued, and the semantics
// survive process restarts. Pipeline ordering (scrape then analyze then
// alert) is enforced by job chaining, not locking. Every cycle runs under a
// context timeout so no job blocks indefinitely.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-intel/internal/alerts"
	"market-intel/internal/analysis"
	"market-intel/internal/config"
	"market-intel/internal/content"
	"market-intel/internal/logging"
	"market-intel/internal/models"
	"market-intel/internal/notify"
	"market-intel/internal/resilience"
	"market-intel/internal/scraper"
	"market-intel/internal/store"
	"market-intel/internal/stream"
)

// Job type keys used for leases.
const (
	JobScrape  = "scrape"
	JobAnalyze = "analyze"
	JobAlerts  = "alerts"
	JobHealth  = "health"
	JobSummary = "summary"
	JobCleanup = "cleanup"
)

const cycleTimeout = 5 * time.Minute

// Scheduler coordinates the scraping and analysis pipeline.
type Scheduler struct {
	store    store.DataStore
	cfg      *config.Config
	notifier notify.Notifier
	logger   zerolog.Logger

	mu       sync.RWMutex
	fetchers map[string]scraper.Source
	breakers map[string]*resilience.Breaker

	hub      *stream.Hub
	streamed map[string]struct{}
}

// New creates a scheduler for the configured sources.
func New(st store.DataStore, cfg *config.Config, notifier notify.Notifier, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		store:    st,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		fetchers: make(map[string]scraper.Source),
		breakers: make(map[string]*resilience.Breaker),
		streamed: make(map[string]struct{}),
	}
	for _, src := range cfg.Sources() {
		s.fetchers[src.ID] = scraper.NewSource(src, cfg.Scraping.FetchTimeout)
	}
	return s
}

// AttachHub enables live streaming of newly raised alerts.
func (s *Scheduler) AttachHub(hub *stream.Hub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = hub
}

// publishEvents streams events not yet seen this process lifetime. The
// fingerprint set is bounded; resetting it only risks a repeat on the
// live stream, where consumers key on fingerprints anyway.
func (s *Scheduler) publishEvents(events []models.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub == nil {
		return
	}
	if len(s.streamed) > 4096 {
		s.streamed = make(map[string]struct{})
	}
	for _, e := range events {
		if _, seen := s.streamed[e.Fingerprint]; seen {
			continue
		}
		s.streamed[e.Fingerprint] = struct{}{}
		s.hub.Publish(e)
	}
}

// breaker returns the fetch circuit breaker for a source, creating it on
// first use. The failure threshold tracks the degraded-source threshold.
func (s *Scheduler) breaker(sourceID string) *resilience.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[sourceID]
	if !ok {
		cfg := resilience.DefaultConfig()
		if s.cfg.Scraping.DegradedThreshold > 0 {
			cfg.FailureThreshold = s.cfg.Scraping.DegradedThreshold
		}
		b = resilience.NewBreaker(sourceID, cfg)
		s.breakers[sourceID] = b
	}
	return b
}

// SetFetcher overrides the fetcher for a source, used by tests and the
// sample-data CLI path.
func (s *Scheduler) SetFetcher(sourceID string, src scraper.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchers[sourceID] = src
}

func (s *Scheduler) fetcher(sourceID string) (scraper.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.fetchers[sourceID]
	return src, ok
}

// SeedSources writes the configured sources into the store so runtime state
// (failure counters, last-success) accumulates against them.
func (s *Scheduler) SeedSources(ctx context.Context) error {
	for _, src := range s.cfg.Sources() {
		src := src
		if err := s.store.UpsertSource(ctx, &src); err != nil {
			return fmt.Errorf("seeding source %s: %w", src.ID, err)
		}
	}
	return nil
}

// Start launches all periodic jobs and blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.SeedSources(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup

	for _, src := range s.cfg.Sources() {
		if !src.Enabled {
			continue
		}
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.scrapeLoop(ctx, src)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickLoop(ctx, s.cfg.Scheduler.AlertInterval, 30*time.Minute, func(ctx context.Context) {
			if err := s.RunAlerts(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Alert cycle failed")
			}
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickLoop(ctx, s.cfg.Scheduler.HealthInterval, 6*time.Hour, func(ctx context.Context) {
			if err := s.RunHealthCheck(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Health check failed")
			}
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickLoop(ctx, s.cfg.Scheduler.SummaryInterval, 24*time.Hour, func(ctx context.Context) {
			if err := s.RunDailySummary(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Daily summary failed")
			}
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickLoop(ctx, 24*time.Hour, 24*time.Hour, func(ctx context.Context) {
			if err := s.RunCleanup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Cleanup failed")
			}
		})
	}()

	s.logger.Info().Int("sources", len(s.fetchers)).Msg("Scheduler started")
	wg.Wait()
	return nil
}

func (s *Scheduler) scrapeLoop(ctx context.Context, src models.Source) {
	interval := src.ScrapeInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	// First cycle runs immediately so a fresh deployment has data.
	if err := s.RunScrape(ctx, src.ID); err != nil {
		s.logger.Error().Err(err).Str("source", src.ID).Msg("Scrape cycle failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunScrape(ctx, src.ID); err != nil {
				s.logger.Error().Err(err).Str("source", src.ID).Msg("Scrape cycle failed")
			}
		}
	}
}

func (s *Scheduler) tickLoop(ctx context.Context, interval, fallback time.Duration, run func(context.Context)) {
	if interval <= 0 {
		interval = fallback
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (s *Scheduler) leaseTTL() time.Duration {
	if s.cfg.Scheduler.LeaseTTL > 0 {
		return s.cfg.Scheduler.LeaseTTL
	}
	return 10 * time.Minute
}

// withLease runs fn under the job's single-flight lease. Skipped triggers
// return nil: skipping is normal operation, not a failure.
func (s *Scheduler) withLease(ctx context.Context, jobType, sourceID string, fn func(context.Context) error) error {
	acquired, err := s.store.AcquireLease(ctx, jobType, sourceID, s.leaseTTL())
	if err != nil {
		return fmt.Errorf("acquiring %s lease: %w", jobType, err)
	}
	if !acquired {
		s.logger.Debug().Str("job", jobType).Str("source", sourceID).Msg("Job already in flight, skipping")
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := s.store.ReleaseLease(releaseCtx, jobType, sourceID); rerr != nil {
			s.logger.Warn().Err(rerr).Str("job", jobType).Msg("Failed to release lease")
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()
	return fn(jobCtx)
}

// RunScrape executes one scrape cycle for a source and chains an analysis
// run on success. Fetch failures increment the source's consecutive-failure
// counter and never propagate past the cycle.
func (s *Scheduler) RunScrape(ctx context.Context, sourceID string) error {
	return s.withLease(ctx, JobScrape, sourceID, func(ctx context.Context) error {
		fetcher, ok := s.fetcher(sourceID)
		if !ok {
			return fmt.Errorf("no fetcher for source %s", sourceID)
		}

		logger := logging.WithSource(s.logger, sourceID)
		started := time.Now()
		scrapeLog := &models.ScrapeLog{
			ID:        uuid.New().String(),
			SourceID:  sourceID,
			StartedAt: started,
		}

		listings, err := resilience.Execute(s.breaker(sourceID), ctx, func() ([]scraper.Listing, error) {
			return scraper.Collect(ctx, sourceID, fetcher, s.cfg.Scraping.MaxRetries)
		})
		if errors.Is(err, resilience.ErrOpen) {
			logger.Debug().Msg("Fetch circuit open, skipping scrape")
			return nil
		}
		if err != nil {
			scrapeLog.Status = models.ScrapeFailed
			scrapeLog.Error = err.Error()
			scrapeLog.Duration = time.Since(started)
			if lerr := s.store.LogScrape(ctx, scrapeLog); lerr != nil {
				logger.Error().Err(lerr).Msg("Failed to write scrape log")
			}
			if rerr := s.store.RecordScrapeResult(ctx, sourceID, false, started); rerr != nil {
				logger.Error().Err(rerr).Msg("Failed to record scrape result")
			}
			logger.Warn().Err(err).Msg("Scrape failed")
			return nil
		}

		records, dropped := scraper.Normalize(sourceID, listings, started)
		saved, err := s.store.SaveRecords(ctx, records)
		if err != nil {
			return fmt.Errorf("saving records: %w", err)
		}

		scrapeLog.ItemsFound = len(listings)
		scrapeLog.ItemsNew = saved
		scrapeLog.ItemsDropped = dropped
		scrapeLog.Duration = time.Since(started)
		scrapeLog.Status = models.ScrapeSuccess
		if dropped > 0 {
			scrapeLog.Status = models.ScrapePartial
		}
		if err := s.store.LogScrape(ctx, scrapeLog); err != nil {
			logger.Error().Err(err).Msg("Failed to write scrape log")
		}
		if err := s.store.RecordScrapeResult(ctx, sourceID, true, started); err != nil {
			logger.Error().Err(err).Msg("Failed to record scrape result")
		}

		logging.LogScrape(s.logger, sourceID, string(scrapeLog.Status), len(listings), saved, dropped, scrapeLog.Duration)

		if err := s.RunAnalyze(ctx); err != nil {
			logger.Error().Err(err).Msg("Chained analysis failed")
		}
		return nil
	})
}

// RunAnalyze generates a fresh snapshot over the analysis window and chains
// an alert evaluation run.
func (s *Scheduler) RunAnalyze(ctx context.Context) error {
	return s.withLease(ctx, JobAnalyze, "", func(ctx context.Context) error {
		now := time.Now()
		windowStart := now.Add(-s.cfg.Analysis.Window)

		records, err := s.store.GetRecords(ctx, store.RecordFilter{Start: windowStart, End: now})
		if err != nil {
			return fmt.Errorf("loading records: %w", err)
		}

		snap := analysis.Analyze(analysis.Input{
			Records:     records,
			WindowStart: windowStart,
			WindowEnd:   now,
			MinRecords:  s.cfg.Analysis.MinRecords,
			GeneratedAt: now,
		})
		if err := s.store.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		logging.LogSnapshot(s.logger, snap.Category, snap.RecordCount, snap.LowConfidence)

		if err := s.RunAlerts(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Chained alert evaluation failed")
		}
		return nil
	})
}

// RunAlerts evaluates the latest snapshot against its baseline, persists new
// events, and delivers the undelivered backlog.
func (s *Scheduler) RunAlerts(ctx context.Context) error {
	return s.withLease(ctx, JobAlerts, "", func(ctx context.Context) error {
		current, err := s.store.GetLatestSnapshot(ctx, "")
		if err != nil {
			return fmt.Errorf("loading current snapshot: %w", err)
		}
		if current == nil {
			return nil
		}

		baseline, err := s.store.GetSnapshotBefore(ctx, current.WindowEnd, "")
		if err != nil {
			return fmt.Errorf("loading baseline snapshot: %w", err)
		}

		events := alerts.Evaluate(baseline, current, s.cfg.Alerts)

		sources, err := s.store.GetSources(ctx)
		if err != nil {
			return fmt.Errorf("loading sources: %w", err)
		}
		events = append(events, alerts.EvaluateHealth(sources, s.cfg.Alerts.SystemHealth)...)

		inserted, err := s.store.SaveAlerts(ctx, events)
		if err != nil {
			return fmt.Errorf("saving alerts: %w", err)
		}
		for _, e := range events {
			logging.LogAlert(s.logger, e.Fingerprint, string(e.Category), string(e.Severity), e.ObservedValue, e.Threshold)
		}
		if inserted > 0 {
			s.logger.Info().Int("new", inserted).Int("evaluated", len(events)).Msg("Alert evaluation completed")
			s.publishEvents(events)
		}

		return s.deliverPending(ctx)
	})
}

// deliverPending sends the undelivered alert backlog. Events are marked
// delivered only after the notifier accepts them; a failed delivery leaves
// them queued for the next cycle.
func (s *Scheduler) deliverPending(ctx context.Context) error {
	if !s.cfg.Notifications.Enabled {
		return nil
	}

	pending, err := s.store.GetUndelivered(ctx)
	if err != nil {
		return fmt.Errorf("loading undelivered alerts: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	if err := s.notifier.SendAlerts(ctx, pending); err != nil {
		// Transport errors can echo credentials back, so they are masked.
		s.logger.Warn().Str("error", logging.MaskSecrets(err.Error())).Int("count", len(pending)).Msg("Alert delivery failed, will retry")
		return nil
	}

	fingerprints := make([]string, len(pending))
	for i, a := range pending {
		fingerprints[i] = a.Fingerprint
	}
	if err := s.store.MarkDelivered(ctx, fingerprints); err != nil {
		return fmt.Errorf("marking alerts delivered: %w", err)
	}
	s.logger.Info().Int("count", len(pending)).Msg("Alerts delivered")
	return nil
}

// RunHealthCheck emits system-health alerts for degraded sources.
func (s *Scheduler) RunHealthCheck(ctx context.Context) error {
	return s.withLease(ctx, JobHealth, "", func(ctx context.Context) error {
		sources, err := s.store.GetSources(ctx)
		if err != nil {
			return fmt.Errorf("loading sources: %w", err)
		}

		events := alerts.EvaluateHealth(sources, s.cfg.Alerts.SystemHealth)
		inserted, err := s.store.SaveAlerts(ctx, events)
		if err != nil {
			return fmt.Errorf("saving health alerts: %w", err)
		}
		if inserted > 0 {
			s.publishEvents(events)
		}

		threshold := s.cfg.Scraping.DegradedThreshold
		for _, src := range sources {
			if !src.Healthy(threshold) {
				s.logger.Warn().Str("source", src.ID).Int("failures", src.ConsecutiveFailures).Msg("Source degraded")
			}
		}
		return nil
	})
}

// RunDailySummary composes and sends the daily market summary.
func (s *Scheduler) RunDailySummary(ctx context.Context) error {
	return s.withLease(ctx, JobSummary, "", func(ctx context.Context) error {
		now := time.Now()
		summary, err := s.BuildSummary(ctx, now)
		if err != nil {
			return err
		}
		if err := s.notifier.SendSummary(ctx, summary); err != nil {
			s.logger.Warn().Str("error", logging.MaskSecrets(err.Error())).Msg("Summary delivery failed")
		}
		return nil
	})
}

// BuildSummary assembles the daily summary from the latest snapshot, the
// source health state, and the last day of alerts.
func (s *Scheduler) BuildSummary(ctx context.Context, now time.Time) (*notify.MarketSummary, error) {
	summary := &notify.MarketSummary{Date: now.Format("2006-01-02")}

	snap, err := s.store.GetLatestSnapshot(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if snap != nil {
		summary.RecordCount = snap.RecordCount
		if snap.Pricing != nil {
			summary.AvgPrice = snap.Pricing.Average
		}
		if snap.Supplier != nil {
			summary.VerificationRate = snap.Supplier.VerificationRate
		}
		if snap.Trends != nil && len(snap.Trends.TopCategories) > 0 {
			summary.TopCategory = snap.Trends.TopCategories[0].Category
		}
		summary.Opportunities = len(content.Generate(snap, s.cfg.Analysis.MinRecords))
	}

	sources, err := s.store.GetSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	summary.SourceCount = len(sources)
	for _, src := range sources {
		if src.Healthy(s.cfg.Scraping.DegradedThreshold) {
			summary.HealthySources++
		}
	}

	dayAlerts, err := s.store.GetAlerts(ctx, store.AlertFilter{Since: now.Add(-24 * time.Hour)})
	if err != nil {
		return nil, fmt.Errorf("loading alerts: %w", err)
	}
	summary.AlertCount = len(dayAlerts)
	for _, a := range dayAlerts {
		if a.Severity == models.SeverityCritical {
			summary.CriticalAlerts++
		}
	}

	return summary, nil
}

// RunCleanup prunes scrape logs and delivered alerts past retention.
func (s *Scheduler) RunCleanup(ctx context.Context) error {
	return s.withLease(ctx, JobCleanup, "", func(ctx context.Context) error {
		retention := s.cfg.Scheduler.RetentionDays
		if retention <= 0 {
			retention = 30
		}
		cutoff := time.Now().AddDate(0, 0, -retention)

		logsPruned, err := s.store.PruneScrapeLogs(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning scrape logs: %w", err)
		}
		alertsPruned, err := s.store.PruneAlerts(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning alerts: %w", err)
		}

		s.logger.Info().Int64("scrape_logs", logsPruned).Int64("alerts", alertsPruned).Msg("Retention cleanup completed")
		return nil
	})
}
