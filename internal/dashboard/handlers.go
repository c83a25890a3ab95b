package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"market-intel/internal/content"
	"market-intel/internal/models"
	"market-intel/internal/store"
)

// round1 rounds to one decimal for presentation; stored values keep full
// precision.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Server) marketOverview(ctx context.Context, f queryFilters) (interface{}, error) {
	snap, err := s.store.GetLatestSnapshot(ctx, f.Category)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return map[string]interface{}{"available": false}, nil
	}

	overview := map[string]interface{}{
		"available":      true,
		"window_start":   snap.WindowStart,
		"window_end":     snap.WindowEnd,
		"category":       snap.Category,
		"record_count":   snap.RecordCount,
		"low_confidence": snap.LowConfidence,
	}
	if snap.Pricing != nil {
		overview["pricing"] = map[string]interface{}{
			"average":       round1(snap.Pricing.Average),
			"median":        round1(snap.Pricing.Median),
			"min":           snap.Pricing.Min,
			"max":           snap.Pricing.Max,
			"discount_rate": round1(snap.Pricing.DiscountRate),
		}
	}
	if snap.Supplier != nil {
		overview["suppliers"] = map[string]interface{}{
			"count":             snap.Supplier.SupplierCount,
			"verification_rate": round1(snap.Supplier.VerificationRate),
		}
	}
	if snap.Quality != nil {
		overview["avg_rating"] = round1(snap.Quality.AvgRating)
	}
	return overview, nil
}

// priceTrends returns the per-period average series, oldest first. The series
// is finite and recomputed per query, never resumed.
func (s *Server) priceTrends(ctx context.Context, f queryFilters) (interface{}, error) {
	from := s.now().Add(-f.Window)
	snaps, err := s.store.GetSnapshots(ctx, f.Category, from, time.Time{})
	if err != nil {
		return nil, err
	}

	type point struct {
		Period  time.Time `json:"period"`
		Average float64   `json:"average"`
		Samples int       `json:"samples"`
	}

	series := make([]point, 0, len(snaps))
	for _, snap := range snaps {
		if snap.Pricing == nil {
			continue
		}
		series = append(series, point{
			Period:  snap.WindowEnd,
			Average: round1(snap.Pricing.Average),
			Samples: snap.Pricing.SampleSize,
		})
	}

	// Store order is ascending already; keep the guarantee explicit.
	sort.Slice(series, func(i, j int) bool { return series[i].Period.Before(series[j].Period) })

	return map[string]interface{}{
		"category": f.Category,
		"series":   series,
	}, nil
}

func (s *Server) supplierDistribution(ctx context.Context, f queryFilters) (interface{}, error) {
	snap, err := s.store.GetLatestSnapshot(ctx, f.Category)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.Supplier == nil {
		return map[string]interface{}{"available": false}, nil
	}

	type countryCount struct {
		Country   string `json:"country"`
		Suppliers int    `json:"suppliers"`
	}
	countries := make([]countryCount, 0, len(snap.Supplier.CountryCounts))
	for country, n := range snap.Supplier.CountryCounts {
		countries = append(countries, countryCount{Country: country, Suppliers: n})
	}
	sort.Slice(countries, func(i, j int) bool {
		if countries[i].Suppliers != countries[j].Suppliers {
			return countries[i].Suppliers > countries[j].Suppliers
		}
		return countries[i].Country < countries[j].Country
	})
	if len(countries) > 10 {
		countries = countries[:10]
	}

	return map[string]interface{}{
		"available":         true,
		"total_suppliers":   snap.Supplier.SupplierCount,
		"verification_rate": round1(snap.Supplier.VerificationRate),
		"by_country":        countries,
		"avg_years":         round1(snap.Supplier.AvgYearsInBusiness),
		"avg_rating":        round1(snap.Supplier.AvgSupplierRating),
	}, nil
}

func (s *Server) trendingTopics(ctx context.Context, f queryFilters) (interface{}, error) {
	snap, err := s.store.GetLatestSnapshot(ctx, f.Category)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.Trends == nil {
		return map[string]interface{}{"available": false}, nil
	}

	type topic struct {
		Category string  `json:"category"`
		AvgViews int     `json:"avg_views"`
		Score    float64 `json:"score"`
	}

	maxViews := 0
	for _, cv := range snap.Trends.TopCategories {
		if cv.Views > maxViews {
			maxViews = cv.Views
		}
	}

	topics := make([]topic, 0, len(snap.Trends.TopCategories))
	for _, cv := range snap.Trends.TopCategories {
		score := 0.0
		if maxViews > 0 {
			score = round1(float64(cv.Views) / float64(maxViews) * 100)
		}
		topics = append(topics, topic{Category: cv.Category, AvgViews: cv.Views, Score: score})
	}

	return map[string]interface{}{
		"available": true,
		"topics":    topics,
		"keywords":  snap.Trends.Keywords,
	}, nil
}

func (s *Server) scrapingHealth(ctx context.Context, f queryFilters) (interface{}, error) {
	sources, err := s.store.GetSources(ctx)
	if err != nil {
		return nil, err
	}

	threshold := s.cfg.Scraping.DegradedThreshold
	if threshold < 1 {
		threshold = 3
	}

	type sourceHealth struct {
		ID                  string     `json:"id"`
		Name                string     `json:"name"`
		Enabled             bool       `json:"enabled"`
		LastSuccess         *time.Time `json:"last_success,omitempty"`
		ConsecutiveFailures int        `json:"consecutive_failures"`
		Degraded            bool       `json:"degraded"`
	}

	out := make([]sourceHealth, 0, len(sources))
	degraded := 0
	for _, src := range sources {
		h := sourceHealth{
			ID:                  src.ID,
			Name:                src.Name,
			Enabled:             src.Enabled,
			LastSuccess:         src.LastSuccess,
			ConsecutiveFailures: src.ConsecutiveFailures,
			Degraded:            !src.Healthy(threshold),
		}
		if h.LastSuccess == nil {
			// The source row only tracks successes since the last reset;
			// the scrape log keeps the full history.
			if t, err := s.store.LastSuccess(ctx, src.ID); err == nil && !t.IsZero() {
				h.LastSuccess = &t
			}
		}
		if h.Degraded {
			degraded++
		}
		out = append(out, h)
	}

	return map[string]interface{}{
		"sources":        out,
		"degraded_count": degraded,
		"threshold":      threshold,
	}, nil
}

func (s *Server) contentOpportunities(ctx context.Context, f queryFilters) (interface{}, error) {
	snap, err := s.store.GetLatestSnapshot(ctx, f.Category)
	if err != nil {
		return nil, err
	}

	opportunities := content.Generate(snap, s.cfg.Analysis.MinRecords)
	if opportunities == nil {
		opportunities = []models.ContentOpportunity{}
	}

	return map[string]interface{}{
		"opportunities": opportunities,
	}, nil
}

func (s *Server) alertsSummary(ctx context.Context, f queryFilters) (interface{}, error) {
	since := s.now().Add(-f.Window)
	alerts, err := s.store.GetAlerts(ctx, store.AlertFilter{Since: since})
	if err != nil {
		return nil, err
	}

	bySeverity := map[string]int{}
	for _, a := range alerts {
		bySeverity[string(a.Severity)]++
	}

	recent := alerts
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return map[string]interface{}{
		"total":       len(alerts),
		"by_severity": bySeverity,
		"recent":      recent,
	}, nil
}
