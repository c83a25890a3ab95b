// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"market-intel/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Scraped records (append-only)
	SaveRecords(ctx context.Context, records []models.ScrapedRecord) (int, error)
	GetRecords(ctx context.Context, filter RecordFilter) ([]models.ScrapedRecord, error)
	CountRecords(ctx context.Context, filter RecordFilter) (int, error)

	// Analysis snapshots
	SaveSnapshot(ctx context.Context, snapshot *models.AnalysisSnapshot) error
	GetLatestSnapshot(ctx context.Context, category string) (*models.AnalysisSnapshot, error)
	GetSnapshotBefore(ctx context.Context, t time.Time, category string) (*models.AnalysisSnapshot, error)
	GetSnapshots(ctx context.Context, category string, from, to time.Time) ([]models.AnalysisSnapshot, error)

	// Alert events
	SaveAlerts(ctx context.Context, alerts []models.AlertEvent) (int, error)
	GetAlerts(ctx context.Context, filter AlertFilter) ([]models.AlertEvent, error)
	GetUndelivered(ctx context.Context) ([]models.AlertEvent, error)
	MarkDelivered(ctx context.Context, fingerprints []string) error
	PruneAlerts(ctx context.Context, before time.Time) (int64, error)

	// Scrape logs
	LogScrape(ctx context.Context, log *models.ScrapeLog) error
	GetScrapeLogs(ctx context.Context, sourceID string, since time.Time) ([]models.ScrapeLog, error)
	LastSuccess(ctx context.Context, sourceID string) (time.Time, error)
	PruneScrapeLogs(ctx context.Context, before time.Time) (int64, error)

	// Sources
	UpsertSource(ctx context.Context, source *models.Source) error
	GetSources(ctx context.Context) ([]models.Source, error)
	RecordScrapeResult(ctx context.Context, sourceID string, success bool, at time.Time) error

	// Job leases (single-flight)
	AcquireLease(ctx context.Context, jobType, sourceID string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, jobType, sourceID string) error

	// Lifecycle
	Close() error
}

// RecordFilter represents filters for querying scraped records.
type RecordFilter struct {
	SourceID string
	Category string
	Start    time.Time
	End      time.Time
	Limit    int
}

// AlertFilter represents filters for querying alert events.
type AlertFilter struct {
	Category  models.AlertCategory
	Severity  models.Severity
	Since     time.Time
	Delivered *bool
	Limit     int
}
