package models

import (
	"time"
)

// AnalysisSnapshot is an immutable derived aggregate over a record window.
// A snapshot is keyed by its window and optional category filter. Percentages
// are stored at full precision; presentation layers round to one decimal.
type AnalysisSnapshot struct {
	ID            int64     `json:"id"`
	GeneratedAt   time.Time `json:"generated_at"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	Category      string    `json:"category,omitempty"`
	RecordCount   int       `json:"record_count"`
	LowConfidence bool      `json:"low_confidence"`

	Pricing   *PricingStats   `json:"pricing,omitempty"`
	Supplier  *SupplierStats  `json:"supplier,omitempty"`
	Logistics *LogisticsStats `json:"logistics,omitempty"`
	Quality   *QualityStats   `json:"quality,omitempty"`
	Trends    *TrendStats     `json:"trends,omitempty"`
}

// PricingStats aggregates price observations.
type PricingStats struct {
	SampleSize       int                `json:"sample_size"`
	Average          float64            `json:"average"`
	Median           float64            `json:"median"`
	Min              float64            `json:"min"`
	Max              float64            `json:"max"`
	DiscountRate     float64            `json:"discount_rate"`
	AvgDiscount      float64            `json:"avg_discount"`
	BulkPricingCount int                `json:"bulk_pricing_count"`
	ByCategory       map[string]float64 `json:"by_category,omitempty"`
}

// SupplierStats aggregates supplier observations.
type SupplierStats struct {
	SupplierCount      int            `json:"supplier_count"`
	VerificationRate   float64        `json:"verification_rate"`
	CountryCounts      map[string]int `json:"country_counts,omitempty"`
	AvgYearsInBusiness float64        `json:"avg_years_in_business"`
	AvgSupplierRating  float64        `json:"avg_supplier_rating"`
}

// LogisticsStats aggregates MOQ, lead time, and shipping observations.
type LogisticsStats struct {
	MOQBuckets      map[string]int `json:"moq_buckets,omitempty"`
	LeadTimeBuckets map[string]int `json:"lead_time_buckets,omitempty"`
	AvgShippingCost float64        `json:"avg_shipping_cost"`
}

// QualityStats aggregates rating and certification observations.
type QualityStats struct {
	AvgRating         float64        `json:"avg_rating"`
	RatingSampleSize  int            `json:"rating_sample_size"`
	RatingBuckets     map[string]int `json:"rating_buckets,omitempty"`
	CertificationFreq map[string]int `json:"certification_freq,omitempty"`
}

// CategoryViews pairs a category with its accumulated view count.
type CategoryViews struct {
	Category string `json:"category"`
	Views    int    `json:"views"`
}

// TrendStats aggregates upstream market-trend signals.
type TrendStats struct {
	PriceTrendCounts map[string]int  `json:"price_trend_counts,omitempty"`
	SeasonalCounts   map[string]int  `json:"seasonal_counts,omitempty"`
	TopCategories    []CategoryViews `json:"top_categories,omitempty"`
	Keywords         []KeywordCount  `json:"keywords,omitempty"`
}

// KeywordCount pairs a trending keyword with its frequency.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}
