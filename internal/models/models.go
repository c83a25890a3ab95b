// Package models provides domain models for the market intelligence pipeline.
package models

import (
	"time"
)

// SourceKind identifies the marketplace a source scrapes.
type SourceKind string

const (
	SourceAlibaba     SourceKind = "alibaba"
	SourceGlobalTrade SourceKind = "globaltrade"
	SourceEtsy        SourceKind = "etsy"
)

// Source represents a configured scrape source and its runtime state.
type Source struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Kind                SourceKind    `json:"kind"`
	BaseURL             string        `json:"base_url"`
	Enabled             bool          `json:"enabled"`
	ScrapeInterval      time.Duration `json:"scrape_interval"`
	MaxItems            int           `json:"max_items"`
	RequestDelay        time.Duration `json:"request_delay"`
	LastScraped         *time.Time    `json:"last_scraped,omitempty"`
	LastSuccess         *time.Time    `json:"last_success,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// Healthy reports whether the source is below the degraded-failure threshold.
func (s *Source) Healthy(threshold int) bool {
	return s.ConsecutiveFailures < threshold
}

// VerificationStatus is the supplier verification tri-state.
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationUnverified VerificationStatus = "unverified"
	VerificationUnknown    VerificationStatus = "unknown"
)

// ScrapedRecord is a single observed listing at one point in time.
// Records are append-only: the same external listing scraped again
// produces a new record with a later ScrapedAt.
// Optional numeric facts are pointers so an absent value never reads as zero.
type ScrapedRecord struct {
	ID         int64     `json:"id"`
	SourceID   string    `json:"source_id"`
	ExternalID string    `json:"external_id"`
	ScrapedAt  time.Time `json:"scraped_at"`

	// Product facts
	Title           string            `json:"title"`
	Category        string            `json:"category"`
	Price           *float64          `json:"price,omitempty"`
	Currency        string            `json:"currency"`
	DiscountPercent *float64          `json:"discount_percent,omitempty"`
	BulkTiers       *int              `json:"bulk_tiers,omitempty"`
	MOQ             *int              `json:"moq,omitempty"`
	Specs           map[string]string `json:"specs,omitempty"`
	Certifications  []string          `json:"certifications,omitempty"`
	Rating          *float64          `json:"rating,omitempty"`
	ReviewCount     *int              `json:"review_count,omitempty"`

	// Supplier facts
	SupplierID      string             `json:"supplier_id,omitempty"`
	Verification    VerificationStatus `json:"verification"`
	SupplierCountry string             `json:"supplier_country,omitempty"`
	YearsInBusiness *int               `json:"years_in_business,omitempty"`
	SupplierRating  *float64           `json:"supplier_rating,omitempty"`

	// Market facts (opaque upstream signals)
	Views          *int   `json:"views,omitempty"`
	Sales          *int   `json:"sales,omitempty"`
	TrendingRank   *int   `json:"trending_rank,omitempty"`
	PriceTrend     string `json:"price_trend,omitempty"`
	SeasonalDemand string `json:"seasonal_demand,omitempty"`

	// Logistics facts
	ShippingCost   *float64 `json:"shipping_cost,omitempty"`
	ShippingMethod string   `json:"shipping_method,omitempty"`
	LeadTimeDays   *int     `json:"lead_time_days,omitempty"`
	PortOfOrigin   string   `json:"port_of_origin,omitempty"`
}

// HasPrice reports whether the record carries a usable price.
func (r *ScrapedRecord) HasPrice() bool {
	return r.Price != nil && *r.Price >= 0
}

// ScrapeStatus represents the outcome of one scrape run.
type ScrapeStatus string

const (
	ScrapeStarted ScrapeStatus = "started"
	ScrapeSuccess ScrapeStatus = "success"
	ScrapePartial ScrapeStatus = "partial"
	ScrapeFailed  ScrapeStatus = "failed"
)

// ScrapeLog records one scrape run against one source.
type ScrapeLog struct {
	ID           string        `json:"id"`
	SourceID     string        `json:"source_id"`
	Status       ScrapeStatus  `json:"status"`
	ItemsFound   int           `json:"items_found"`
	ItemsNew     int           `json:"items_new"`
	ItemsDropped int           `json:"items_dropped"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// JobLease is a single-flight lease for a scheduled job. A job type plus
// source pair holds at most one unexpired lease; triggers while a lease is
// held are skipped, not queued.
type JobLease struct {
	ID         string    `json:"id"`
	JobType    string    `json:"job_type"`
	SourceID   string    `json:"source_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease has passed its expiry.
func (l *JobLease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
