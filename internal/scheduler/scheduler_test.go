package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-intel/internal/config"
	"market-intel/internal/models"
	"market-intel/internal/notify"
	"market-intel/internal/scraper"
	"market-intel/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Scraping: config.ScrapingConfig{
			Sources: []config.SourceConfig{
				{
					ID:             "alibaba-1",
					Name:           "Alibaba Sample",
					Kind:           "alibaba",
					Enabled:        true,
					ScrapeInterval: 6 * time.Hour,
				},
			},
			FetchTimeout:      5 * time.Second,
			MaxRetries:        1,
			DegradedThreshold: 3,
		},
		Analysis: config.AnalysisConfig{
			Window:     24 * time.Hour,
			MinRecords: 1,
		},
		Alerts: config.AlertsConfig{
			PriceMove:    config.RuleConfig{Enabled: true, Threshold: 15},
			MarketTrend:  config.RuleConfig{Enabled: true, Threshold: 1000},
			SystemHealth: config.RuleConfig{Enabled: true, Threshold: 3},
		},
		Scheduler: config.SchedulerConfig{
			LeaseTTL:      time.Minute,
			RetentionDays: 30,
		},
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *store.SQLiteStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sched := New(st, testConfig(), notify.NoOpNotifier{}, zerolog.Nop())
	return sched, st
}

func TestRunScrapePipeline(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	if err := sched.SeedSources(ctx); err != nil {
		t.Fatalf("SeedSources failed: %v", err)
	}
	sched.SetFetcher("alibaba-1", scraper.NewSampleSource("alibaba-1", models.SourceAlibaba))

	if err := sched.RunScrape(ctx, "alibaba-1"); err != nil {
		t.Fatalf("RunScrape failed: %v", err)
	}

	records, err := st.GetRecords(ctx, store.RecordFilter{SourceID: "alibaba-1"})
	if err != nil {
		t.Fatalf("GetRecords failed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("scrape cycle saved no records")
	}

	logs, err := st.GetScrapeLogs(ctx, "alibaba-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetScrapeLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d scrape logs, want 1", len(logs))
	}
	if logs[0].Status != models.ScrapeSuccess {
		t.Errorf("status = %s, want success", logs[0].Status)
	}
	if logs[0].ItemsNew != len(records) {
		t.Errorf("items new = %d, records = %d", logs[0].ItemsNew, len(records))
	}

	// The chained analysis run leaves a snapshot behind.
	snap, err := st.GetLatestSnapshot(ctx, "")
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if snap == nil {
		t.Fatal("scrape cycle did not produce a snapshot")
	}
	if snap.RecordCount != len(records) {
		t.Errorf("snapshot record count = %d, want %d", snap.RecordCount, len(records))
	}

	sources, err := st.GetSources(ctx)
	if err != nil {
		t.Fatalf("GetSources failed: %v", err)
	}
	if sources[0].LastSuccess == nil {
		t.Error("successful scrape did not record last success")
	}
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Fetch(ctx context.Context) ([]scraper.Listing, error) {
	return nil, context.DeadlineExceeded
}

func TestRunScrapeFailureIsolation(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	if err := sched.SeedSources(ctx); err != nil {
		t.Fatalf("SeedSources failed: %v", err)
	}
	sched.SetFetcher("alibaba-1", failingSource{})

	// A failing fetch is recorded, not propagated.
	if err := sched.RunScrape(ctx, "alibaba-1"); err != nil {
		t.Fatalf("RunScrape should swallow fetch failures, got: %v", err)
	}

	logs, err := st.GetScrapeLogs(ctx, "alibaba-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetScrapeLogs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.ScrapeFailed {
		t.Fatalf("expected one failed log, got %+v", logs)
	}
	if logs[0].Error == "" {
		t.Error("failed log should carry the error")
	}

	sources, err := st.GetSources(ctx)
	if err != nil {
		t.Fatalf("GetSources failed: %v", err)
	}
	if sources[0].ConsecutiveFailures != 1 {
		t.Errorf("failures = %d, want 1", sources[0].ConsecutiveFailures)
	}
}

func TestRunScrapeSingleFlight(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	if err := sched.SeedSources(ctx); err != nil {
		t.Fatalf("SeedSources failed: %v", err)
	}
	sched.SetFetcher("alibaba-1", scraper.NewSampleSource("alibaba-1", models.SourceAlibaba))

	// Hold the scrape lease so the trigger is skipped.
	acquired, err := st.AcquireLease(ctx, JobScrape, "alibaba-1", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("could not take lease: %v", err)
	}

	if err := sched.RunScrape(ctx, "alibaba-1"); err != nil {
		t.Fatalf("skipped run should return nil, got: %v", err)
	}

	records, err := st.GetRecords(ctx, store.RecordFilter{})
	if err != nil {
		t.Fatalf("GetRecords failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("skipped run saved %d records, want 0", len(records))
	}
}

func TestBuildSummary(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	if err := sched.SeedSources(ctx); err != nil {
		t.Fatalf("SeedSources failed: %v", err)
	}
	sched.SetFetcher("alibaba-1", scraper.NewSampleSource("alibaba-1", models.SourceAlibaba))
	if err := sched.RunScrape(ctx, "alibaba-1"); err != nil {
		t.Fatalf("RunScrape failed: %v", err)
	}

	now := time.Now()
	summary, err := sched.BuildSummary(ctx, now)
	if err != nil {
		t.Fatalf("BuildSummary failed: %v", err)
	}
	if summary.Date != now.Format("2006-01-02") {
		t.Errorf("date = %s", summary.Date)
	}
	if summary.RecordCount == 0 {
		t.Error("summary should reflect scraped records")
	}
	if summary.SourceCount != 1 || summary.HealthySources != 1 {
		t.Errorf("sources = %d healthy %d, want 1/1", summary.SourceCount, summary.HealthySources)
	}

	_ = st
}

func TestRunCleanup(t *testing.T) {
	sched, st := newTestScheduler(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -60)
	if err := st.LogScrape(ctx, &models.ScrapeLog{
		ID:        "old-log",
		SourceID:  "alibaba-1",
		Status:    models.ScrapeSuccess,
		StartedAt: old,
	}); err != nil {
		t.Fatalf("LogScrape failed: %v", err)
	}

	if err := sched.RunCleanup(ctx); err != nil {
		t.Fatalf("RunCleanup failed: %v", err)
	}

	logs, err := st.GetScrapeLogs(ctx, "alibaba-1", old.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetScrapeLogs failed: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("expected old log pruned, got %d", len(logs))
	}
}
