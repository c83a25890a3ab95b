package analysis

import (
	"fmt"
	"math"
	"testing"
	"time"

	"market-intel/internal/models"
)

func makeRecord(id string, mutate func(*models.ScrapedRecord)) models.ScrapedRecord {
	r := models.ScrapedRecord{
		SourceID:   "alibaba-1",
		ExternalID: id,
		Title:      "Stainless Steel Water Bottle",
		Category:   "Home & Kitchen",
		Currency:   "USD",
		ScrapedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func priced(id string, price float64) models.ScrapedRecord {
	return makeRecord(id, func(r *models.ScrapedRecord) {
		r.Price = &price
	})
}

func baseInput(records []models.ScrapedRecord) Input {
	return Input{
		Records:     records,
		WindowStart: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
		MinRecords:  1,
		GeneratedAt: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalyzeLowConfidence(t *testing.T) {
	t.Run("empty record set", func(t *testing.T) {
		snap := Analyze(baseInput(nil))
		if !snap.LowConfidence {
			t.Error("expected low confidence for empty input")
		}
		if snap.Pricing != nil || snap.Supplier != nil || snap.Quality != nil {
			t.Error("low confidence snapshot must carry nil aggregates")
		}
		if snap.RecordCount != 0 {
			t.Errorf("record count = %d, want 0", snap.RecordCount)
		}
	})

	t.Run("below minimum records", func(t *testing.T) {
		in := baseInput([]models.ScrapedRecord{priced("a1", 10)})
		in.MinRecords = 5
		snap := Analyze(in)
		if !snap.LowConfidence {
			t.Error("expected low confidence below minimum")
		}
		if snap.RecordCount != 1 {
			t.Errorf("record count = %d, want 1", snap.RecordCount)
		}
	})

	t.Run("at minimum records", func(t *testing.T) {
		in := baseInput([]models.ScrapedRecord{priced("a1", 10), priced("a2", 20)})
		in.MinRecords = 2
		snap := Analyze(in)
		if snap.LowConfidence {
			t.Error("expected full confidence at the minimum")
		}
	})
}

func TestAnalyzePricing(t *testing.T) {
	t.Run("basic aggregates", func(t *testing.T) {
		records := []models.ScrapedRecord{
			priced("a1", 10),
			priced("a2", 20),
			priced("a3", 30),
			makeRecord("a4", nil), // no price, excluded from pricing
		}
		snap := Analyze(baseInput(records))
		if snap.Pricing == nil {
			t.Fatal("expected pricing stats")
		}
		p := snap.Pricing
		if p.SampleSize != 3 {
			t.Errorf("sample size = %d, want 3", p.SampleSize)
		}
		if !almostEqual(p.Average, 20) {
			t.Errorf("average = %v, want 20", p.Average)
		}
		if !almostEqual(p.Median, 20) {
			t.Errorf("median = %v, want 20", p.Median)
		}
		if p.Min != 10 || p.Max != 30 {
			t.Errorf("range = %v-%v, want 10-30", p.Min, p.Max)
		}
	})

	t.Run("no prices yields nil pricing", func(t *testing.T) {
		records := []models.ScrapedRecord{makeRecord("a1", nil), makeRecord("a2", nil)}
		snap := Analyze(baseInput(records))
		if snap.Pricing != nil {
			t.Error("expected nil pricing when no record has a price")
		}
	})

	t.Run("discount rate over priced records", func(t *testing.T) {
		discount := 15.0
		records := []models.ScrapedRecord{
			makeRecord("a1", func(r *models.ScrapedRecord) {
				p := 10.0
				r.Price = &p
				r.DiscountPercent = &discount
			}),
			priced("a2", 20),
			priced("a3", 30),
			priced("a4", 40),
		}
		snap := Analyze(baseInput(records))
		if !almostEqual(snap.Pricing.DiscountRate, 25) {
			t.Errorf("discount rate = %v, want 25", snap.Pricing.DiscountRate)
		}
		if !almostEqual(snap.Pricing.AvgDiscount, 15) {
			t.Errorf("avg discount = %v, want 15", snap.Pricing.AvgDiscount)
		}
	})

	t.Run("per-category means", func(t *testing.T) {
		records := []models.ScrapedRecord{
			makeRecord("a1", func(r *models.ScrapedRecord) { p := 10.0; r.Price = &p; r.Category = "Electronics" }),
			makeRecord("a2", func(r *models.ScrapedRecord) { p := 30.0; r.Price = &p; r.Category = "Electronics" }),
			makeRecord("a3", func(r *models.ScrapedRecord) { p := 5.0; r.Price = &p; r.Category = "Toys" }),
		}
		snap := Analyze(baseInput(records))
		if !almostEqual(snap.Pricing.ByCategory["Electronics"], 20) {
			t.Errorf("Electronics mean = %v, want 20", snap.Pricing.ByCategory["Electronics"])
		}
		if !almostEqual(snap.Pricing.ByCategory["Toys"], 5) {
			t.Errorf("Toys mean = %v, want 5", snap.Pricing.ByCategory["Toys"])
		}
	})
}

func TestAnalyzeSuppliers(t *testing.T) {
	t.Run("verification rate over records with country", func(t *testing.T) {
		var records []models.ScrapedRecord
		for i := 0; i < 9; i++ {
			i := i
			records = append(records, makeRecord(fmt.Sprintf("a%d", i), func(r *models.ScrapedRecord) {
				r.SupplierCountry = "China"
				r.SupplierID = fmt.Sprintf("sup-%d", i)
				if i < 8 {
					r.Verification = models.VerificationVerified
				} else {
					r.Verification = models.VerificationUnverified
				}
			}))
		}
		// Record without a country is excluded from the denominator.
		records = append(records, makeRecord("a9", nil))

		snap := Analyze(baseInput(records))
		if snap.Supplier == nil {
			t.Fatal("expected supplier stats")
		}
		want := 8.0 / 9.0 * 100
		if !almostEqual(snap.Supplier.VerificationRate, want) {
			t.Errorf("verification rate = %v, want %v", snap.Supplier.VerificationRate, want)
		}
		if snap.Supplier.SupplierCount != 9 {
			t.Errorf("supplier count = %d, want 9", snap.Supplier.SupplierCount)
		}
	})

	t.Run("country counts deduplicate by supplier", func(t *testing.T) {
		records := []models.ScrapedRecord{
			makeRecord("a1", func(r *models.ScrapedRecord) { r.SupplierCountry = "China"; r.SupplierID = "sup-1" }),
			makeRecord("a2", func(r *models.ScrapedRecord) { r.SupplierCountry = "China"; r.SupplierID = "sup-1" }),
			makeRecord("a3", func(r *models.ScrapedRecord) { r.SupplierCountry = "Vietnam"; r.SupplierID = "sup-2" }),
		}
		snap := Analyze(baseInput(records))
		if snap.Supplier.CountryCounts["China"] != 1 {
			t.Errorf("China count = %d, want 1", snap.Supplier.CountryCounts["China"])
		}
		if snap.Supplier.CountryCounts["Vietnam"] != 1 {
			t.Errorf("Vietnam count = %d, want 1", snap.Supplier.CountryCounts["Vietnam"])
		}
		if snap.Supplier.SupplierCount != 2 {
			t.Errorf("supplier count = %d, want 2", snap.Supplier.SupplierCount)
		}
	})
}

func TestAnalyzeLogistics(t *testing.T) {
	moq := func(id string, v int) models.ScrapedRecord {
		return makeRecord(id, func(r *models.ScrapedRecord) { r.MOQ = &v })
	}
	lead := func(id string, v int) models.ScrapedRecord {
		return makeRecord(id, func(r *models.ScrapedRecord) { r.LeadTimeDays = &v })
	}

	records := []models.ScrapedRecord{
		moq("a1", 50), moq("a2", 100), moq("a3", 101), moq("a4", 500), moq("a5", 501),
		lead("b1", 7), lead("b2", 8), lead("b3", 21), lead("b4", 22),
	}
	snap := Analyze(baseInput(records))
	if snap.Logistics == nil {
		t.Fatal("expected logistics stats")
	}
	l := snap.Logistics

	wantMOQ := map[string]int{"small_business_friendly": 2, "medium_orders": 2, "large_orders": 1}
	for bucket, want := range wantMOQ {
		if l.MOQBuckets[bucket] != want {
			t.Errorf("MOQ bucket %s = %d, want %d", bucket, l.MOQBuckets[bucket], want)
		}
	}

	wantLead := map[string]int{"fast_delivery": 1, "standard_delivery": 2, "slow_delivery": 1}
	for bucket, want := range wantLead {
		if l.LeadTimeBuckets[bucket] != want {
			t.Errorf("lead time bucket %s = %d, want %d", bucket, l.LeadTimeBuckets[bucket], want)
		}
	}
}

func TestAnalyzeQuality(t *testing.T) {
	rated := func(id string, v float64) models.ScrapedRecord {
		return makeRecord(id, func(r *models.ScrapedRecord) { r.Rating = &v })
	}

	records := []models.ScrapedRecord{
		rated("a1", 4.9), rated("a2", 4.5), rated("a3", 4.2), rated("a4", 3.1),
		makeRecord("a5", func(r *models.ScrapedRecord) { r.Certifications = []string{"CE", "RoHS"} }),
		makeRecord("a6", func(r *models.ScrapedRecord) { r.Certifications = []string{"CE"} }),
	}
	snap := Analyze(baseInput(records))
	if snap.Quality == nil {
		t.Fatal("expected quality stats")
	}
	q := snap.Quality

	if q.RatingSampleSize != 4 {
		t.Errorf("rating sample = %d, want 4", q.RatingSampleSize)
	}
	if q.RatingBuckets["high_quality"] != 2 || q.RatingBuckets["good_quality"] != 1 || q.RatingBuckets["fair_quality"] != 1 {
		t.Errorf("rating buckets = %v", q.RatingBuckets)
	}
	if q.CertificationFreq["CE"] != 2 || q.CertificationFreq["RoHS"] != 1 {
		t.Errorf("certification freq = %v", q.CertificationFreq)
	}
}

func TestAnalyzeTrends(t *testing.T) {
	viewed := func(id, category string, views int) models.ScrapedRecord {
		return makeRecord(id, func(r *models.ScrapedRecord) {
			r.Category = category
			r.Views = &views
		})
	}

	t.Run("top categories capped at five, highest first", func(t *testing.T) {
		var records []models.ScrapedRecord
		for i := 0; i < 7; i++ {
			records = append(records, viewed(fmt.Sprintf("a%d", i), fmt.Sprintf("cat-%d", i), (i+1)*100))
		}
		snap := Analyze(baseInput(records))
		if snap.Trends == nil {
			t.Fatal("expected trend stats")
		}
		top := snap.Trends.TopCategories
		if len(top) != 5 {
			t.Fatalf("top categories = %d, want 5", len(top))
		}
		if top[0].Category != "cat-6" || top[0].Views != 700 {
			t.Errorf("top entry = %+v, want cat-6 with 700 views", top[0])
		}
		for i := 1; i < len(top); i++ {
			if top[i].Views > top[i-1].Views {
				t.Errorf("top categories not sorted descending at %d: %v", i, top)
			}
		}
	})

	t.Run("trend and seasonal counts", func(t *testing.T) {
		records := []models.ScrapedRecord{
			makeRecord("a1", func(r *models.ScrapedRecord) { r.PriceTrend = "rising"; r.SeasonalDemand = "summer" }),
			makeRecord("a2", func(r *models.ScrapedRecord) { r.PriceTrend = "rising" }),
			makeRecord("a3", func(r *models.ScrapedRecord) { r.PriceTrend = "falling" }),
		}
		snap := Analyze(baseInput(records))
		if snap.Trends.PriceTrendCounts["rising"] != 2 || snap.Trends.PriceTrendCounts["falling"] != 1 {
			t.Errorf("price trend counts = %v", snap.Trends.PriceTrendCounts)
		}
		if snap.Trends.SeasonalCounts["summer"] != 1 {
			t.Errorf("seasonal counts = %v", snap.Trends.SeasonalCounts)
		}
	})
}

func TestExtractKeywords(t *testing.T) {
	records := []models.ScrapedRecord{
		makeRecord("a1", func(r *models.ScrapedRecord) { r.Title = "Bamboo Cutting Board Set" }),
		makeRecord("a2", func(r *models.ScrapedRecord) { r.Title = "Bamboo Utensil Holder" }),
		makeRecord("a3", func(r *models.ScrapedRecord) { r.Title = "Acacia Cutting Board" }),
	}
	keywords := ExtractKeywords(records, 3)
	if len(keywords) != 3 {
		t.Fatalf("keywords = %d, want 3", len(keywords))
	}
	// "bamboo" and "cutting"/"board" each appear twice; first place goes
	// alphabetically among equals.
	if keywords[0].Keyword != "bamboo" || keywords[0].Count != 2 {
		t.Errorf("first keyword = %+v, want bamboo x2", keywords[0])
	}
}

func TestMedianEvenCount(t *testing.T) {
	got := Median([]float64{1, 2, 3, 4})
	if !almostEqual(got, 2.5) {
		t.Errorf("median = %v, want 2.5", got)
	}
}
