// Package analysis derives aggregate market snapshots from scraped records.
//
// Analysis is a pure function of its input slice: no I/O, no clock reads
// beyond the caller-supplied timestamps, and deterministic output for a given
// record set. Missing optional values are excluded from aggregates, never
// treated as zero. Category grouping is an exact case-sensitive string match.
package analysis

import (
	"sort"
	"time"

	"market-intel/internal/models"
)

// Input describes one analysis run.
type Input struct {
	Records     []models.ScrapedRecord
	WindowStart time.Time
	WindowEnd   time.Time
	Category    string // empty for the unfiltered snapshot
	MinRecords  int
	GeneratedAt time.Time
}

// Analyze computes an analysis snapshot over the given records. Record sets
// below MinRecords produce a LowConfidence snapshot with nil aggregates so no
// average is ever computed over an empty or unreliable sample.
func Analyze(in Input) *models.AnalysisSnapshot {
	snap := &models.AnalysisSnapshot{
		GeneratedAt: in.GeneratedAt,
		WindowStart: in.WindowStart,
		WindowEnd:   in.WindowEnd,
		Category:    in.Category,
		RecordCount: len(in.Records),
	}

	minRecords := in.MinRecords
	if minRecords < 1 {
		minRecords = 1
	}
	if len(in.Records) < minRecords {
		snap.LowConfidence = true
		return snap
	}

	snap.Pricing = analyzePricing(in.Records)
	snap.Supplier = analyzeSuppliers(in.Records)
	snap.Logistics = analyzeLogistics(in.Records)
	snap.Quality = analyzeQuality(in.Records)
	snap.Trends = analyzeTrends(in.Records)

	return snap
}

func analyzePricing(records []models.ScrapedRecord) *models.PricingStats {
	var prices []float64
	var discounts []float64
	bulkCount := 0
	categoryPrices := make(map[string][]float64)

	for _, r := range records {
		if r.Price == nil {
			continue
		}
		prices = append(prices, *r.Price)
		if r.Category != "" {
			categoryPrices[r.Category] = append(categoryPrices[r.Category], *r.Price)
		}
		if r.DiscountPercent != nil && *r.DiscountPercent > 0 {
			discounts = append(discounts, *r.DiscountPercent)
		}
		if r.BulkTiers != nil && *r.BulkTiers > 0 {
			bulkCount++
		}
	}

	if len(prices) == 0 {
		return nil
	}

	stats := &models.PricingStats{
		SampleSize:       len(prices),
		Average:          Mean(prices),
		Median:           Median(prices),
		Min:              Min(prices),
		Max:              Max(prices),
		DiscountRate:     float64(len(discounts)) / float64(len(prices)) * 100,
		BulkPricingCount: bulkCount,
	}
	if len(discounts) > 0 {
		stats.AvgDiscount = Mean(discounts)
	}

	if len(categoryPrices) > 0 {
		stats.ByCategory = make(map[string]float64, len(categoryPrices))
		for cat, ps := range categoryPrices {
			stats.ByCategory[cat] = Mean(ps)
		}
	}

	return stats
}

func analyzeSuppliers(records []models.ScrapedRecord) *models.SupplierStats {
	type supplierFacts struct {
		country      string
		verification models.VerificationStatus
		years        *int
		rating       *float64
	}

	// One record per record, matching per-listing supplier observations;
	// country distribution deduplicates by supplier identity.
	var observed []supplierFacts
	countrySuppliers := make(map[string]map[string]bool)

	for _, r := range records {
		if r.SupplierCountry == "" {
			continue
		}
		observed = append(observed, supplierFacts{
			country:      r.SupplierCountry,
			verification: r.Verification,
			years:        r.YearsInBusiness,
			rating:       r.SupplierRating,
		})
		key := r.SupplierID
		if key == "" {
			key = r.SourceID + "/" + r.ExternalID
		}
		if countrySuppliers[r.SupplierCountry] == nil {
			countrySuppliers[r.SupplierCountry] = make(map[string]bool)
		}
		countrySuppliers[r.SupplierCountry][key] = true
	}

	if len(observed) == 0 {
		return nil
	}

	verified := 0
	var years []float64
	var ratings []float64
	for _, s := range observed {
		if s.verification == models.VerificationVerified {
			verified++
		}
		if s.years != nil && *s.years > 0 {
			years = append(years, float64(*s.years))
		}
		if s.rating != nil && *s.rating > 0 {
			ratings = append(ratings, *s.rating)
		}
	}

	stats := &models.SupplierStats{
		SupplierCount:    0,
		VerificationRate: float64(verified) / float64(len(observed)) * 100,
		CountryCounts:    make(map[string]int, len(countrySuppliers)),
	}
	for country, suppliers := range countrySuppliers {
		stats.CountryCounts[country] = len(suppliers)
		stats.SupplierCount += len(suppliers)
	}
	if len(years) > 0 {
		stats.AvgYearsInBusiness = Mean(years)
	}
	if len(ratings) > 0 {
		stats.AvgSupplierRating = Mean(ratings)
	}

	return stats
}

func analyzeLogistics(records []models.ScrapedRecord) *models.LogisticsStats {
	var moqs []float64
	var leadTimes []float64
	var shippingCosts []float64

	for _, r := range records {
		if r.MOQ != nil {
			moqs = append(moqs, float64(*r.MOQ))
		}
		if r.LeadTimeDays != nil && *r.LeadTimeDays > 0 {
			leadTimes = append(leadTimes, float64(*r.LeadTimeDays))
		}
		if r.ShippingCost != nil && *r.ShippingCost > 0 {
			shippingCosts = append(shippingCosts, *r.ShippingCost)
		}
	}

	if len(moqs) == 0 && len(leadTimes) == 0 && len(shippingCosts) == 0 {
		return nil
	}

	stats := &models.LogisticsStats{
		MOQBuckets:      make(map[string]int),
		LeadTimeBuckets: make(map[string]int),
	}

	for _, m := range moqs {
		switch {
		case m <= 100:
			stats.MOQBuckets["small_business_friendly"]++
		case m <= 500:
			stats.MOQBuckets["medium_orders"]++
		default:
			stats.MOQBuckets["large_orders"]++
		}
	}

	for _, l := range leadTimes {
		switch {
		case l <= 7:
			stats.LeadTimeBuckets["fast_delivery"]++
		case l <= 21:
			stats.LeadTimeBuckets["standard_delivery"]++
		default:
			stats.LeadTimeBuckets["slow_delivery"]++
		}
	}

	if len(shippingCosts) > 0 {
		stats.AvgShippingCost = Mean(shippingCosts)
	}

	return stats
}

func analyzeQuality(records []models.ScrapedRecord) *models.QualityStats {
	var ratings []float64
	certFreq := make(map[string]int)

	for _, r := range records {
		if r.Rating != nil && *r.Rating > 0 {
			ratings = append(ratings, *r.Rating)
		}
		for _, cert := range r.Certifications {
			certFreq[cert]++
		}
	}

	if len(ratings) == 0 && len(certFreq) == 0 {
		return nil
	}

	stats := &models.QualityStats{
		RatingSampleSize: len(ratings),
		RatingBuckets:    make(map[string]int),
	}

	if len(ratings) > 0 {
		stats.AvgRating = Mean(ratings)
		for _, r := range ratings {
			switch {
			case r >= 4.5:
				stats.RatingBuckets["high_quality"]++
			case r >= 4.0:
				stats.RatingBuckets["good_quality"]++
			default:
				stats.RatingBuckets["fair_quality"]++
			}
		}
	}

	if len(certFreq) > 0 {
		stats.CertificationFreq = certFreq
	}

	return stats
}

func analyzeTrends(records []models.ScrapedRecord) *models.TrendStats {
	priceTrends := make(map[string]int)
	seasonal := make(map[string]int)
	categoryViews := make(map[string][]float64)

	for _, r := range records {
		if r.PriceTrend != "" {
			priceTrends[r.PriceTrend]++
		}
		if r.SeasonalDemand != "" {
			seasonal[r.SeasonalDemand]++
		}
		if r.Views != nil && r.Category != "" {
			categoryViews[r.Category] = append(categoryViews[r.Category], float64(*r.Views))
		}
	}

	if len(priceTrends) == 0 && len(seasonal) == 0 && len(categoryViews) == 0 {
		return nil
	}

	stats := &models.TrendStats{}
	if len(priceTrends) > 0 {
		stats.PriceTrendCounts = priceTrends
	}
	if len(seasonal) > 0 {
		stats.SeasonalCounts = seasonal
	}

	// Top categories by average views, highest first, capped at five.
	for cat, views := range categoryViews {
		stats.TopCategories = append(stats.TopCategories, models.CategoryViews{
			Category: cat,
			Views:    int(Mean(views)),
		})
	}
	sort.Slice(stats.TopCategories, func(i, j int) bool {
		if stats.TopCategories[i].Views != stats.TopCategories[j].Views {
			return stats.TopCategories[i].Views > stats.TopCategories[j].Views
		}
		return stats.TopCategories[i].Category < stats.TopCategories[j].Category
	})
	if len(stats.TopCategories) > 5 {
		stats.TopCategories = stats.TopCategories[:5]
	}

	stats.Keywords = ExtractKeywords(records, 10)

	return stats
}
