// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"market-intel/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Sources table for scrape source config and runtime state
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		base_url TEXT,
		enabled INTEGER DEFAULT 1,
		scrape_interval INTEGER NOT NULL,
		max_items INTEGER DEFAULT 0,
		request_delay INTEGER DEFAULT 0,
		last_scraped DATETIME,
		last_success DATETIME,
		consecutive_failures INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Scraped records table, append-only
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL,
		external_id TEXT NOT NULL,
		scraped_at DATETIME NOT NULL,
		title TEXT NOT NULL,
		category TEXT,
		price REAL,
		currency TEXT,
		discount_percent REAL,
		bulk_tiers INTEGER,
		moq INTEGER,
		specs TEXT,
		certifications TEXT,
		rating REAL,
		review_count INTEGER,
		supplier_id TEXT,
		verification TEXT NOT NULL DEFAULT 'unknown',
		supplier_country TEXT,
		years_in_business INTEGER,
		supplier_rating REAL,
		views INTEGER,
		sales INTEGER,
		trending_rank INTEGER,
		price_trend TEXT,
		seasonal_demand TEXT,
		shipping_cost REAL,
		shipping_method TEXT,
		lead_time_days INTEGER,
		port_of_origin TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Analysis snapshots table; nested aggregates stored as JSON
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		generated_at DATETIME NOT NULL,
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		record_count INTEGER NOT NULL,
		low_confidence INTEGER DEFAULT 0,
		pricing TEXT,
		supplier TEXT,
		logistics TEXT,
		quality TEXT,
		trends TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Alert events table; fingerprint uniqueness gives store-level dedup
	CREATE TABLE IF NOT EXISTS alert_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT,
		metric TEXT,
		threshold REAL,
		observed_value REAL,
		created_at DATETIME NOT NULL,
		delivered INTEGER DEFAULT 0
	);

	-- Scrape logs table
	CREATE TABLE IF NOT EXISTS scrape_logs (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		status TEXT NOT NULL,
		items_found INTEGER DEFAULT 0,
		items_new INTEGER DEFAULT 0,
		items_dropped INTEGER DEFAULT 0,
		started_at DATETIME NOT NULL,
		duration INTEGER DEFAULT 0,
		error TEXT
	);

	-- Job leases table for single-flight scheduling
	CREATE TABLE IF NOT EXISTS job_leases (
		job_type TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		lease_id TEXT NOT NULL,
		acquired_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		PRIMARY KEY (job_type, source_id)
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_records_scraped_at ON records(scraped_at);
	CREATE INDEX IF NOT EXISTS idx_records_category ON records(category);
	CREATE INDEX IF NOT EXISTS idx_records_source ON records(source_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_window_end ON snapshots(window_end);
	CREATE INDEX IF NOT EXISTS idx_snapshots_category ON snapshots(category);
	CREATE INDEX IF NOT EXISTS idx_alerts_created ON alert_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_delivered ON alert_events(delivered);
	CREATE INDEX IF NOT EXISTS idx_scrape_logs_source ON scrape_logs(source_id);
	CREATE INDEX IF NOT EXISTS idx_scrape_logs_started ON scrape_logs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Record Methods
// ============================================================================

// SaveRecords appends scraped records in a single transaction. It returns the
// number of rows inserted. Records are never updated in place.
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []models.ScrapedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (source_id, external_id, scraped_at, title, category, price, currency, discount_percent, bulk_tiers, moq, specs, certifications, rating, review_count, supplier_id, verification, supplier_country, years_in_business, supplier_rating, views, sales, trending_rank, price_trend, seasonal_demand, shipping_cost, shipping_method, lead_time_days, port_of_origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, r := range records {
		specs, _ := json.Marshal(r.Specs)
		certs, _ := json.Marshal(r.Certifications)
		verification := r.Verification
		if verification == "" {
			verification = models.VerificationUnknown
		}
		_, err := stmt.ExecContext(ctx,
			r.SourceID, r.ExternalID, r.ScrapedAt, r.Title, r.Category,
			r.Price, r.Currency, r.DiscountPercent, r.BulkTiers, r.MOQ, string(specs), string(certs),
			r.Rating, r.ReviewCount, r.SupplierID, string(verification),
			r.SupplierCountry, r.YearsInBusiness, r.SupplierRating,
			r.Views, r.Sales, r.TrendingRank, r.PriceTrend, r.SeasonalDemand,
			r.ShippingCost, r.ShippingMethod, r.LeadTimeDays, r.PortOfOrigin)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return saved, nil
}

const recordColumns = "id, source_id, external_id, scraped_at, title, category, price, currency, discount_percent, bulk_tiers, moq, specs, certifications, rating, review_count, supplier_id, verification, supplier_country, years_in_business, supplier_rating, views, sales, trending_rank, price_trend, seasonal_demand, shipping_cost, shipping_method, lead_time_days, port_of_origin"

// GetRecords retrieves scraped records matching the filter, newest first.
func (s *SQLiteStore) GetRecords(ctx context.Context, filter RecordFilter) ([]models.ScrapedRecord, error) {
	query := "SELECT " + recordColumns + " FROM records WHERE 1=1"
	args := []interface{}{}

	if filter.SourceID != "" {
		query += " AND source_id = ?"
		args = append(args, filter.SourceID)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if !filter.Start.IsZero() {
		query += " AND scraped_at >= ?"
		args = append(args, filter.Start)
	}
	if !filter.End.IsZero() {
		query += " AND scraped_at <= ?"
		args = append(args, filter.End)
	}

	query += " ORDER BY scraped_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.ScrapedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (models.ScrapedRecord, error) {
	var r models.ScrapedRecord
	var specsJSON, certsJSON sql.NullString
	var category, currency, supplierID, country, priceTrend, seasonal sql.NullString
	var shippingMethod, port sql.NullString
	var verification string

	if err := rows.Scan(&r.ID, &r.SourceID, &r.ExternalID, &r.ScrapedAt, &r.Title,
		&category, &r.Price, &currency, &r.DiscountPercent, &r.BulkTiers, &r.MOQ, &specsJSON, &certsJSON,
		&r.Rating, &r.ReviewCount, &supplierID, &verification, &country,
		&r.YearsInBusiness, &r.SupplierRating, &r.Views, &r.Sales,
		&r.TrendingRank, &priceTrend, &seasonal, &r.ShippingCost,
		&shippingMethod, &r.LeadTimeDays, &port); err != nil {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}

	r.Category = category.String
	r.Currency = currency.String
	r.SupplierID = supplierID.String
	r.Verification = models.VerificationStatus(verification)
	r.SupplierCountry = country.String
	r.PriceTrend = priceTrend.String
	r.SeasonalDemand = seasonal.String
	r.ShippingMethod = shippingMethod.String
	r.PortOfOrigin = port.String

	if specsJSON.Valid && specsJSON.String != "" && specsJSON.String != "null" {
		if err := json.Unmarshal([]byte(specsJSON.String), &r.Specs); err != nil {
			return r, fmt.Errorf("failed to decode specs: %w", err)
		}
	}
	if certsJSON.Valid && certsJSON.String != "" && certsJSON.String != "null" {
		if err := json.Unmarshal([]byte(certsJSON.String), &r.Certifications); err != nil {
			return r, fmt.Errorf("failed to decode certifications: %w", err)
		}
	}

	return r, nil
}

// CountRecords counts records matching the filter.
func (s *SQLiteStore) CountRecords(ctx context.Context, filter RecordFilter) (int, error) {
	query := "SELECT COUNT(*) FROM records WHERE 1=1"
	args := []interface{}{}

	if filter.SourceID != "" {
		query += " AND source_id = ?"
		args = append(args, filter.SourceID)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if !filter.Start.IsZero() {
		query += " AND scraped_at >= ?"
		args = append(args, filter.Start)
	}
	if !filter.End.IsZero() {
		query += " AND scraped_at <= ?"
		args = append(args, filter.End)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// ============================================================================
// Snapshot Methods
// ============================================================================

// SaveSnapshot persists an analysis snapshot. The snapshot ID is set on success.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *models.AnalysisSnapshot) error {
	pricing, _ := json.Marshal(snapshot.Pricing)
	supplier, _ := json.Marshal(snapshot.Supplier)
	logistics, _ := json.Marshal(snapshot.Logistics)
	quality, _ := json.Marshal(snapshot.Quality)
	trends, _ := json.Marshal(snapshot.Trends)
	lowConfidence := 0
	if snapshot.LowConfidence {
		lowConfidence = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (generated_at, window_start, window_end, category, record_count, low_confidence, pricing, supplier, logistics, quality, trends)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snapshot.GeneratedAt, snapshot.WindowStart, snapshot.WindowEnd, snapshot.Category,
		snapshot.RecordCount, lowConfidence, string(pricing), string(supplier),
		string(logistics), string(quality), string(trends))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		snapshot.ID = id
	}
	return nil
}

const snapshotColumns = "id, generated_at, window_start, window_end, category, record_count, low_confidence, pricing, supplier, logistics, quality, trends"

// GetLatestSnapshot returns the most recent snapshot for the category
// (empty category means the unfiltered snapshot). Returns nil when none exists.
func (s *SQLiteStore) GetLatestSnapshot(ctx context.Context, category string) (*models.AnalysisSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE category = ?
		ORDER BY window_end DESC, id DESC LIMIT 1
	`, category)
	return scanSnapshot(row)
}

// GetSnapshotBefore returns the most recent snapshot whose window ended before
// t, for baseline comparisons. Returns nil when none exists.
func (s *SQLiteStore) GetSnapshotBefore(ctx context.Context, t time.Time, category string) (*models.AnalysisSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE category = ? AND window_end < ?
		ORDER BY window_end DESC, id DESC LIMIT 1
	`, category, t)
	return scanSnapshot(row)
}

// GetSnapshots returns snapshots for the category within [from, to], ordered
// oldest first.
func (s *SQLiteStore) GetSnapshots(ctx context.Context, category string, from, to time.Time) ([]models.AnalysisSnapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots WHERE category = ?"
	args := []interface{}{category}

	if !from.IsZero() {
		query += " AND window_end >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		query += " AND window_end <= ?"
		args = append(args, to)
	}
	query += " ORDER BY window_end ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.AnalysisSnapshot
	for rows.Next() {
		snap, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row *sql.Row) (*models.AnalysisSnapshot, error) {
	snap, err := scanSnapshotFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return snap, err
}

func scanSnapshotRow(rows *sql.Rows) (*models.AnalysisSnapshot, error) {
	return scanSnapshotFrom(rows)
}

func scanSnapshotFrom(row rowScanner) (*models.AnalysisSnapshot, error) {
	var snap models.AnalysisSnapshot
	var lowConfidence int
	var pricing, supplier, logistics, quality, trends sql.NullString

	err := row.Scan(&snap.ID, &snap.GeneratedAt, &snap.WindowStart, &snap.WindowEnd,
		&snap.Category, &snap.RecordCount, &lowConfidence,
		&pricing, &supplier, &logistics, &quality, &trends)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snap.LowConfidence = lowConfidence == 1

	if err := decodeJSONField(pricing, &snap.Pricing); err != nil {
		return nil, err
	}
	if err := decodeJSONField(supplier, &snap.Supplier); err != nil {
		return nil, err
	}
	if err := decodeJSONField(logistics, &snap.Logistics); err != nil {
		return nil, err
	}
	if err := decodeJSONField(quality, &snap.Quality); err != nil {
		return nil, err
	}
	if err := decodeJSONField(trends, &snap.Trends); err != nil {
		return nil, err
	}

	return &snap, nil
}

func decodeJSONField(field sql.NullString, target interface{}) error {
	if !field.Valid || field.String == "" || field.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(field.String), target); err != nil {
		return fmt.Errorf("failed to decode snapshot field: %w", err)
	}
	return nil
}

// ============================================================================
// Alert Methods
// ============================================================================

// SaveAlerts inserts alert events, ignoring fingerprints already present.
// Returns the number of newly stored events.
func (s *SQLiteStore) SaveAlerts(ctx context.Context, alerts []models.AlertEvent) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO alert_events (fingerprint, category, severity, title, message, metric, threshold, observed_value, created_at, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range alerts {
		res, err := stmt.ExecContext(ctx, a.Fingerprint, string(a.Category), string(a.Severity),
			a.Title, a.Message, a.Metric, a.Threshold, a.ObservedValue, a.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert alert: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

const alertColumns = "id, fingerprint, category, severity, title, message, metric, threshold, observed_value, created_at, delivered"

// GetAlerts retrieves alert events matching the filter, newest first.
func (s *SQLiteStore) GetAlerts(ctx context.Context, filter AlertFilter) ([]models.AlertEvent, error) {
	query := "SELECT " + alertColumns + " FROM alert_events WHERE 1=1"
	args := []interface{}{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since)
	}
	if filter.Delivered != nil {
		delivered := 0
		if *filter.Delivered {
			delivered = 1
		}
		query += " AND delivered = ?"
		args = append(args, delivered)
	}

	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.AlertEvent
	for rows.Next() {
		var a models.AlertEvent
		var message, metric sql.NullString
		var delivered int
		if err := rows.Scan(&a.ID, &a.Fingerprint, &a.Category, &a.Severity, &a.Title,
			&message, &metric, &a.Threshold, &a.ObservedValue, &a.CreatedAt, &delivered); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Message = message.String
		a.Metric = metric.String
		a.Delivered = delivered == 1
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// GetUndelivered returns alert events not yet delivered, oldest first so
// retries preserve original order.
func (s *SQLiteStore) GetUndelivered(ctx context.Context) ([]models.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alertColumns+` FROM alert_events
		WHERE delivered = 0
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query undelivered alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.AlertEvent
	for rows.Next() {
		var a models.AlertEvent
		var message, metric sql.NullString
		var delivered int
		if err := rows.Scan(&a.ID, &a.Fingerprint, &a.Category, &a.Severity, &a.Title,
			&message, &metric, &a.Threshold, &a.ObservedValue, &a.CreatedAt, &delivered); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Message = message.String
		a.Metric = metric.String
		a.Delivered = delivered == 1
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// MarkDelivered sets the delivered flag for the given fingerprints.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, fingerprints []string) error {
	if len(fingerprints) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(fingerprints))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(fingerprints))
	for i, fp := range fingerprints {
		args[i] = fp
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE alert_events SET delivered = 1 WHERE fingerprint IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to mark alerts delivered: %w", err)
	}
	return nil
}

// PruneAlerts deletes delivered alert events created before the cutoff.
func (s *SQLiteStore) PruneAlerts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM alert_events WHERE delivered = 1 AND created_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return res.RowsAffected()
}

// ============================================================================
// Scrape Log Methods
// ============================================================================

// LogScrape saves a scrape run log.
func (s *SQLiteStore) LogScrape(ctx context.Context, log *models.ScrapeLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (id, source_id, status, items_found, items_new, items_dropped, started_at, duration, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.SourceID, string(log.Status), log.ItemsFound, log.ItemsNew,
		log.ItemsDropped, log.StartedAt, log.Duration.Nanoseconds(), log.Error)
	if err != nil {
		return fmt.Errorf("failed to log scrape: %w", err)
	}
	return nil
}

// GetScrapeLogs retrieves scrape logs for a source since the given time,
// newest first. Empty sourceID matches all sources.
func (s *SQLiteStore) GetScrapeLogs(ctx context.Context, sourceID string, since time.Time) ([]models.ScrapeLog, error) {
	query := "SELECT id, source_id, status, items_found, items_new, items_dropped, started_at, duration, error FROM scrape_logs WHERE 1=1"
	args := []interface{}{}

	if sourceID != "" {
		query += " AND source_id = ?"
		args = append(args, sourceID)
	}
	if !since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, since)
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		var durationNs int64
		var errMsg sql.NullString
		if err := rows.Scan(&l.ID, &l.SourceID, &l.Status, &l.ItemsFound, &l.ItemsNew,
			&l.ItemsDropped, &l.StartedAt, &durationNs, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan scrape log: %w", err)
		}
		l.Duration = time.Duration(durationNs)
		l.Error = errMsg.String
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scrape logs: %w", err)
	}

	return logs, nil
}

// LastSuccess returns the start time of the most recent successful scrape for
// a source. Zero time when the source has never succeeded.
func (s *SQLiteStore) LastSuccess(ctx context.Context, sourceID string) (time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(started_at) FROM scrape_logs
		WHERE source_id = ? AND status IN (?, ?)
	`, sourceID, string(models.ScrapeSuccess), string(models.ScrapePartial)).Scan(&t)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get last success: %w", err)
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

// PruneScrapeLogs deletes scrape logs started before the cutoff.
func (s *SQLiteStore) PruneScrapeLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scrape_logs WHERE started_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune scrape logs: %w", err)
	}
	return res.RowsAffected()
}

// ============================================================================
// Source Methods
// ============================================================================

// UpsertSource inserts or updates a source's configuration. Runtime counters
// (last scraped, failures) are preserved on update.
func (s *SQLiteStore) UpsertSource(ctx context.Context, source *models.Source) error {
	enabled := 0
	if source.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, kind, base_url, enabled, scrape_interval, max_items, request_delay)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			base_url = excluded.base_url,
			enabled = excluded.enabled,
			scrape_interval = excluded.scrape_interval,
			max_items = excluded.max_items,
			request_delay = excluded.request_delay,
			updated_at = CURRENT_TIMESTAMP
	`, source.ID, source.Name, string(source.Kind), source.BaseURL, enabled,
		source.ScrapeInterval.Nanoseconds(), source.MaxItems, source.RequestDelay.Nanoseconds())
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// GetSources returns all sources ordered by ID.
func (s *SQLiteStore) GetSources(ctx context.Context) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, base_url, enabled, scrape_interval, max_items, request_delay, last_scraped, last_success, consecutive_failures
		FROM sources ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var src models.Source
		var baseURL sql.NullString
		var enabled int
		var intervalNs, delayNs int64
		var lastScraped, lastSuccess sql.NullTime
		if err := rows.Scan(&src.ID, &src.Name, &src.Kind, &baseURL, &enabled,
			&intervalNs, &src.MaxItems, &delayNs, &lastScraped, &lastSuccess,
			&src.ConsecutiveFailures); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.BaseURL = baseURL.String
		src.Enabled = enabled == 1
		src.ScrapeInterval = time.Duration(intervalNs)
		src.RequestDelay = time.Duration(delayNs)
		if lastScraped.Valid {
			t := lastScraped.Time
			src.LastScraped = &t
		}
		if lastSuccess.Valid {
			t := lastSuccess.Time
			src.LastSuccess = &t
		}
		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}

	return sources, nil
}

// RecordScrapeResult updates a source's scrape counters. Success resets the
// consecutive-failure count; failure increments it.
func (s *SQLiteStore) RecordScrapeResult(ctx context.Context, sourceID string, success bool, at time.Time) error {
	var err error
	if success {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sources SET last_scraped = ?, last_success = ?, consecutive_failures = 0, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, at, at, sourceID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sources SET last_scraped = ?, consecutive_failures = consecutive_failures + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, at, sourceID)
	}
	if err != nil {
		return fmt.Errorf("failed to record scrape result: %w", err)
	}
	return nil
}

// ============================================================================
// Job Lease Methods
// ============================================================================

// AcquireLease attempts to take the single-flight lease for a job. It returns
// false when an unexpired lease is already held. Expired leases are reclaimed
// atomically by the conditional upsert.
func (s *SQLiteStore) AcquireLease(ctx context.Context, jobType, sourceID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	leaseID := fmt.Sprintf("%s-%d", jobType, now.UnixNano())

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_leases (job_type, source_id, lease_id, acquired_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_type, source_id) DO UPDATE SET
			lease_id = excluded.lease_id,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE job_leases.expires_at <= excluded.acquired_at
	`, jobType, sourceID, leaseID, now, now.Add(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check lease acquisition: %w", err)
	}
	return n > 0, nil
}

// ReleaseLease releases a held lease so the job can run again before expiry.
func (s *SQLiteStore) ReleaseLease(ctx context.Context, jobType, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM job_leases WHERE job_type = ? AND source_id = ?", jobType, sourceID)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
