// Package content selects data-driven article opportunities from snapshots.
//
// This is a data-selection step only: fixed string templates with field
// interpolation, no prose synthesis. Confidence is the fraction of a
// template's required snapshot fields that are present.
package content

import (
	"fmt"
	"sort"

	"market-intel/internal/models"
)

// field is a named presence check against a snapshot.
type field struct {
	name    string
	present func(*models.AnalysisSnapshot) bool
}

// template declares one opportunity rule: the fields it interpolates and the
// predicate deciding whether it applies at all.
type template struct {
	typ      models.TemplateType
	priority int
	required []field
	applies  func(*models.AnalysisSnapshot) bool
	build    func(*models.AnalysisSnapshot) (string, map[string]string)
}

// Confidence returns present/required for a template's field set.
func confidence(t template, snap *models.AnalysisSnapshot) float64 {
	if len(t.required) == 0 {
		return 0
	}
	present := 0
	for _, f := range t.required {
		if f.present(snap) {
			present++
		}
	}
	return float64(present) / float64(len(t.required))
}

// Generate returns the content opportunities supported by the snapshot,
// sorted by confidence then template priority. Low-confidence snapshots and
// snapshots below the record minimum produce nothing.
func Generate(snap *models.AnalysisSnapshot, minRecords int) []models.ContentOpportunity {
	if snap == nil || snap.LowConfidence || snap.RecordCount < minRecords {
		return nil
	}

	var opportunities []models.ContentOpportunity
	for _, t := range templates() {
		if !t.applies(snap) {
			continue
		}
		title, dataPoints := t.build(snap)
		opportunities = append(opportunities, models.ContentOpportunity{
			TemplateType: t.typ,
			Title:        title,
			DataPoints:   dataPoints,
			Confidence:   confidence(t, snap),
			GeneratedAt:  snap.GeneratedAt,
		})
	}

	order := templatePriorities()
	sort.Slice(opportunities, func(i, j int) bool {
		if opportunities[i].Confidence != opportunities[j].Confidence {
			return opportunities[i].Confidence > opportunities[j].Confidence
		}
		return order[opportunities[i].TemplateType] < order[opportunities[j].TemplateType]
	})

	return opportunities
}

func templatePriorities() map[models.TemplateType]int {
	out := make(map[models.TemplateType]int)
	for _, t := range templates() {
		out[t.typ] = t.priority
	}
	return out
}

func hasPricing(s *models.AnalysisSnapshot) bool   { return s.Pricing != nil }
func hasSupplier(s *models.AnalysisSnapshot) bool  { return s.Supplier != nil }
func hasLogistics(s *models.AnalysisSnapshot) bool { return s.Logistics != nil }
func hasTrends(s *models.AnalysisSnapshot) bool    { return s.Trends != nil }

func templates() []template {
	return []template{
		{
			typ:      models.TemplatePriceAnalysis,
			priority: 1,
			required: []field{
				{"pricing.average", func(s *models.AnalysisSnapshot) bool { return hasPricing(s) && s.Pricing.SampleSize > 0 }},
				{"pricing.median", func(s *models.AnalysisSnapshot) bool { return hasPricing(s) && s.Pricing.SampleSize > 0 }},
				{"pricing.by_category", func(s *models.AnalysisSnapshot) bool { return hasPricing(s) && len(s.Pricing.ByCategory) > 0 }},
				{"pricing.discount_rate", func(s *models.AnalysisSnapshot) bool { return hasPricing(s) && s.Pricing.DiscountRate > 0 }},
			},
			applies: func(s *models.AnalysisSnapshot) bool {
				return hasPricing(s) && len(s.Pricing.ByCategory) > 0
			},
			build: func(s *models.AnalysisSnapshot) (string, map[string]string) {
				category := topPricedCategory(s)
				return fmt.Sprintf("%s Sourcing Costs: What Buyers Are Paying Now", category),
					map[string]string{
						"category":      category,
						"average_price": fmt.Sprintf("%.2f", s.Pricing.Average),
						"median_price":  fmt.Sprintf("%.2f", s.Pricing.Median),
						"price_range":   fmt.Sprintf("%.2f-%.2f", s.Pricing.Min, s.Pricing.Max),
						"discount_rate": fmt.Sprintf("%.1f%%", s.Pricing.DiscountRate),
					}
			},
		},
		{
			typ:      models.TemplateSupplierGuide,
			priority: 2,
			required: []field{
				{"supplier.verification_rate", func(s *models.AnalysisSnapshot) bool { return hasSupplier(s) }},
				{"supplier.country_counts", func(s *models.AnalysisSnapshot) bool { return hasSupplier(s) && len(s.Supplier.CountryCounts) > 0 }},
				{"supplier.avg_years", func(s *models.AnalysisSnapshot) bool { return hasSupplier(s) && s.Supplier.AvgYearsInBusiness > 0 }},
				{"supplier.avg_rating", func(s *models.AnalysisSnapshot) bool { return hasSupplier(s) && s.Supplier.AvgSupplierRating > 0 }},
			},
			applies: func(s *models.AnalysisSnapshot) bool {
				return hasSupplier(s) && len(s.Supplier.CountryCounts) > 0
			},
			build: func(s *models.AnalysisSnapshot) (string, map[string]string) {
				country := topCountry(s)
				return fmt.Sprintf("Vetting Suppliers in %s: A Data-Backed Guide", country),
					map[string]string{
						"top_country":       country,
						"verification_rate": fmt.Sprintf("%.1f%%", s.Supplier.VerificationRate),
						"supplier_count":    fmt.Sprintf("%d", s.Supplier.SupplierCount),
						"avg_years":         fmt.Sprintf("%.1f", s.Supplier.AvgYearsInBusiness),
					}
			},
		},
		{
			typ:      models.TemplateMOQGuide,
			priority: 3,
			required: []field{
				{"logistics.moq_buckets", func(s *models.AnalysisSnapshot) bool { return hasLogistics(s) && len(s.Logistics.MOQBuckets) > 0 }},
				{"logistics.lead_time_buckets", func(s *models.AnalysisSnapshot) bool { return hasLogistics(s) && len(s.Logistics.LeadTimeBuckets) > 0 }},
				{"logistics.avg_shipping_cost", func(s *models.AnalysisSnapshot) bool { return hasLogistics(s) && s.Logistics.AvgShippingCost > 0 }},
				{"pricing.average", func(s *models.AnalysisSnapshot) bool { return hasPricing(s) && s.Pricing.SampleSize > 0 }},
			},
			applies: func(s *models.AnalysisSnapshot) bool {
				return hasLogistics(s) && len(s.Logistics.MOQBuckets) > 0
			},
			build: func(s *models.AnalysisSnapshot) (string, map[string]string) {
				dataPoints := map[string]string{
					"small_friendly": fmt.Sprintf("%d", s.Logistics.MOQBuckets["small_business_friendly"]),
					"medium_orders":  fmt.Sprintf("%d", s.Logistics.MOQBuckets["medium_orders"]),
					"large_orders":   fmt.Sprintf("%d", s.Logistics.MOQBuckets["large_orders"]),
				}
				if s.Logistics.AvgShippingCost > 0 {
					dataPoints["avg_shipping_cost"] = fmt.Sprintf("%.2f", s.Logistics.AvgShippingCost)
				}
				return "Navigating MOQs: Which Suppliers Work for Small Buyers",
					dataPoints
			},
		},
		{
			typ:      models.TemplateTrendAnalysis,
			priority: 4,
			required: []field{
				{"trends.top_categories", func(s *models.AnalysisSnapshot) bool { return hasTrends(s) && len(s.Trends.TopCategories) > 0 }},
				{"trends.price_trend_counts", func(s *models.AnalysisSnapshot) bool { return hasTrends(s) && len(s.Trends.PriceTrendCounts) > 0 }},
				{"trends.seasonal_counts", func(s *models.AnalysisSnapshot) bool { return hasTrends(s) && len(s.Trends.SeasonalCounts) > 0 }},
				{"trends.keywords", func(s *models.AnalysisSnapshot) bool { return hasTrends(s) && len(s.Trends.Keywords) > 0 }},
			},
			applies: func(s *models.AnalysisSnapshot) bool {
				return hasTrends(s) && len(s.Trends.TopCategories) > 0
			},
			build: func(s *models.AnalysisSnapshot) (string, map[string]string) {
				top := s.Trends.TopCategories[0]
				return fmt.Sprintf("Market Watch: %s Is Drawing Buyer Attention", top.Category),
					map[string]string{
						"category":  top.Category,
						"avg_views": fmt.Sprintf("%d", top.Views),
					}
			},
		},
	}
}

func topPricedCategory(s *models.AnalysisSnapshot) string {
	best := ""
	bestPrice := -1.0
	for cat, price := range s.Pricing.ByCategory {
		if price > bestPrice || (price == bestPrice && cat < best) {
			best = cat
			bestPrice = price
		}
	}
	return best
}

func topCountry(s *models.AnalysisSnapshot) string {
	best := ""
	bestCount := -1
	for country, count := range s.Supplier.CountryCounts {
		if count > bestCount || (count == bestCount && country < best) {
			best = country
			bestCount = count
		}
	}
	return best
}
