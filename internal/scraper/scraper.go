// Package scraper fetches and normalizes marketplace listings.
package scraper

import (
	"context"
	"time"

	"market-intel/internal/errors"
	"market-intel/internal/models"
	"market-intel/pkg/utils"
)

// Listing is a raw marketplace listing as delivered by a source, before
// validation. Price and lead time arrive as display strings and are parsed
// during normalization.
type Listing struct {
	ExternalID      string            `json:"external_id"`
	Title           string            `json:"title"`
	Category        string            `json:"category"`
	Price           string            `json:"price"`
	Currency        string            `json:"currency"`
	DiscountPercent *float64          `json:"discount_percent,omitempty"`
	BulkTiers       *int              `json:"bulk_tiers,omitempty"`
	MOQ             *int              `json:"moq,omitempty"`
	Specs           map[string]string `json:"specs,omitempty"`
	Certifications  []string          `json:"certifications,omitempty"`
	Rating          *float64          `json:"rating,omitempty"`
	ReviewCount     *int              `json:"review_count,omitempty"`
	SupplierID      string            `json:"supplier_id,omitempty"`
	Verified        *bool             `json:"verified,omitempty"`
	SupplierCountry string            `json:"supplier_country,omitempty"`
	YearsInBusiness *int              `json:"years_in_business,omitempty"`
	SupplierRating  *float64          `json:"supplier_rating,omitempty"`
	Views           *int              `json:"views,omitempty"`
	Sales           *int              `json:"sales,omitempty"`
	TrendingRank    *int              `json:"trending_rank,omitempty"`
	PriceTrend      string            `json:"price_trend,omitempty"`
	SeasonalDemand  string            `json:"seasonal_demand,omitempty"`
	ShippingCost    *float64          `json:"shipping_cost,omitempty"`
	ShippingMethod  string            `json:"shipping_method,omitempty"`
	LeadTime        string            `json:"lead_time,omitempty"`
	PortOfOrigin    string            `json:"port_of_origin,omitempty"`
}

// Source is implemented by each external data source. Each source fetches its
// own data format and maps it into raw listings.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Listing, error)
}

// NewSource builds the fetcher for a configured source. Sources without a
// base URL get the built-in sample source, useful for development.
func NewSource(src models.Source, timeout time.Duration) Source {
	if src.BaseURL == "" {
		return NewSampleSource(src.ID, src.Kind)
	}
	return NewHTTPSource(src, timeout)
}

// Collect fetches listings from a source with bounded exponential backoff.
// After exhausting retries it returns a SourceFetchError; a failing source
// never aborts the surrounding cycle.
func Collect(ctx context.Context, sourceID string, src Source, maxRetries int) ([]Listing, error) {
	cfg := utils.DefaultRetryConfig()
	if maxRetries > 0 {
		cfg.MaxAttempts = maxRetries
	}

	listings, err := utils.RetryWithResult(ctx, cfg, func() ([]Listing, error) {
		return src.Fetch(ctx)
	})
	if err != nil {
		return nil, errors.NewSourceFetchError(sourceID, "", cfg.MaxAttempts, err)
	}
	return listings, nil
}
