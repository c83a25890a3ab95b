package content

import (
	"math"
	"testing"
	"time"

	"market-intel/internal/models"
)

func fullSnapshot() *models.AnalysisSnapshot {
	return &models.AnalysisSnapshot{
		GeneratedAt: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
		RecordCount: 80,
		Pricing: &models.PricingStats{
			SampleSize:   60,
			Average:      24.5,
			Median:       19.9,
			Min:          2.1,
			Max:          110,
			DiscountRate: 30,
			ByCategory:   map[string]float64{"Electronics": 42, "Toys": 12},
		},
		Supplier: &models.SupplierStats{
			SupplierCount:      40,
			VerificationRate:   75,
			CountryCounts:      map[string]int{"China": 30, "Vietnam": 10},
			AvgYearsInBusiness: 6.2,
			AvgSupplierRating:  4.4,
		},
		Logistics: &models.LogisticsStats{
			MOQBuckets:      map[string]int{"small_business_friendly": 20, "medium_orders": 10, "large_orders": 5},
			LeadTimeBuckets: map[string]int{"fast_delivery": 12, "standard_delivery": 18},
			AvgShippingCost: 8.4,
		},
		Trends: &models.TrendStats{
			PriceTrendCounts: map[string]int{"rising": 8},
			SeasonalCounts:   map[string]int{"summer": 5},
			TopCategories:    []models.CategoryViews{{Category: "Jewelry", Views: 3200}},
			Keywords:         []models.KeywordCount{{Keyword: "ceramic", Count: 12}},
		},
	}
}

func TestGenerateFullSnapshot(t *testing.T) {
	opportunities := Generate(fullSnapshot(), 10)
	if len(opportunities) != 4 {
		t.Fatalf("expected 4 opportunities, got %d", len(opportunities))
	}

	for _, opp := range opportunities {
		if opp.Confidence != 1.0 {
			t.Errorf("%s confidence = %v, want 1.0", opp.TemplateType, opp.Confidence)
		}
		if opp.Title == "" {
			t.Errorf("%s has empty title", opp.TemplateType)
		}
		if len(opp.DataPoints) == 0 {
			t.Errorf("%s has no data points", opp.TemplateType)
		}
	}

	// At equal confidence the order follows template priority.
	wantOrder := []models.TemplateType{
		models.TemplatePriceAnalysis,
		models.TemplateSupplierGuide,
		models.TemplateMOQGuide,
		models.TemplateTrendAnalysis,
	}
	for i, want := range wantOrder {
		if opportunities[i].TemplateType != want {
			t.Errorf("position %d = %s, want %s", i, opportunities[i].TemplateType, want)
		}
	}
}

func TestGeneratePartialConfidence(t *testing.T) {
	snap := fullSnapshot()
	// Remove one of four required pricing fields.
	snap.Pricing.DiscountRate = 0

	opportunities := Generate(snap, 10)
	var priceOpp *models.ContentOpportunity
	for i := range opportunities {
		if opportunities[i].TemplateType == models.TemplatePriceAnalysis {
			priceOpp = &opportunities[i]
		}
	}
	if priceOpp == nil {
		t.Fatal("price analysis opportunity missing")
	}
	if math.Abs(priceOpp.Confidence-0.75) > 1e-9 {
		t.Errorf("confidence = %v, want 0.75", priceOpp.Confidence)
	}

	// Reduced confidence sinks it behind the full-confidence templates.
	if opportunities[0].TemplateType == models.TemplatePriceAnalysis {
		t.Error("partial-confidence template should not rank first")
	}
}

func TestGenerateSkipsInsufficientData(t *testing.T) {
	t.Run("nil snapshot", func(t *testing.T) {
		if got := Generate(nil, 10); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("low confidence snapshot", func(t *testing.T) {
		snap := fullSnapshot()
		snap.LowConfidence = true
		if got := Generate(snap, 10); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("below record minimum", func(t *testing.T) {
		snap := fullSnapshot()
		snap.RecordCount = 5
		if got := Generate(snap, 10); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("template without its section does not apply", func(t *testing.T) {
		snap := fullSnapshot()
		snap.Trends = nil
		opportunities := Generate(snap, 10)
		for _, opp := range opportunities {
			if opp.TemplateType == models.TemplateTrendAnalysis {
				t.Error("trend template should not apply without trend stats")
			}
		}
		if len(opportunities) != 3 {
			t.Errorf("expected 3 opportunities, got %d", len(opportunities))
		}
	})
}

func TestGenerateDataPoints(t *testing.T) {
	opportunities := Generate(fullSnapshot(), 10)

	byType := make(map[models.TemplateType]models.ContentOpportunity)
	for _, opp := range opportunities {
		byType[opp.TemplateType] = opp
	}

	price := byType[models.TemplatePriceAnalysis]
	if price.DataPoints["category"] != "Electronics" {
		t.Errorf("top priced category = %s, want Electronics", price.DataPoints["category"])
	}
	if price.DataPoints["average_price"] != "24.50" {
		t.Errorf("average price = %s, want 24.50", price.DataPoints["average_price"])
	}

	supplier := byType[models.TemplateSupplierGuide]
	if supplier.DataPoints["top_country"] != "China" {
		t.Errorf("top country = %s, want China", supplier.DataPoints["top_country"])
	}

	moq := byType[models.TemplateMOQGuide]
	if moq.DataPoints["small_friendly"] != "20" {
		t.Errorf("small friendly count = %s, want 20", moq.DataPoints["small_friendly"])
	}

	trend := byType[models.TemplateTrendAnalysis]
	if trend.DataPoints["category"] != "Jewelry" {
		t.Errorf("trend category = %s, want Jewelry", trend.DataPoints["category"])
	}
}
