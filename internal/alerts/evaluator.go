// Package alerts evaluates analysis snapshots against threshold rules.
//
// Evaluation is pure and idempotent: the same (baseline, current) snapshot
// pair always yields the same event set with the same fingerprints, so the
// store's fingerprint uniqueness absorbs re-runs. Evaluation never touches
// the record store; notification dispatch happens elsewhere with the
// finished event list.
package alerts

import (
	"fmt"
	"math"
	"sort"

	"market-intel/internal/config"
	"market-intel/internal/models"
)

// Rule names used in fingerprints. These are stable identifiers: changing one
// re-fires suppressed alerts.
const (
	RulePriceMove        = "price_move"
	RuleSupplyDrop       = "supply_drop"
	RuleDemandSurge      = "demand_surge"
	RuleQualityDrop      = "quality_drop"
	RuleVerificationDrop = "verification_drop"
	RuleMarketTrend      = "market_trend"
	RuleSystemHealth     = "system_health"
)

// Severity bands as a pure function of magnitude relative to threshold:
// more than double the threshold is critical, anything above it is high,
// exactly at the threshold is medium.
func severityFor(magnitude, threshold float64) models.Severity {
	if threshold <= 0 {
		return models.SeverityMedium
	}
	ratio := magnitude / threshold
	switch {
	case ratio > 2:
		return models.SeverityCritical
	case ratio > 1:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// Evaluate compares a baseline snapshot against the current one and returns
// the triggered alert events in deterministic order. A nil baseline disables
// the comparative rules; the market-trend rule still runs on the current
// snapshot alone.
func Evaluate(baseline, current *models.AnalysisSnapshot, cfg config.AlertsConfig) []models.AlertEvent {
	if current == nil || current.LowConfidence {
		return nil
	}

	var events []models.AlertEvent

	if baseline != nil && !baseline.LowConfidence {
		events = append(events, evalPriceMoves(baseline, current, cfg.PriceMove)...)
		events = append(events, evalSupplyDrops(baseline, current, cfg.SupplyDrop)...)
		events = append(events, evalDemandSurges(baseline, current, cfg.DemandSurge)...)
		events = append(events, evalQualityDrop(baseline, current, cfg.QualityDrop, cfg.QualityFloor)...)
		events = append(events, evalVerificationDrop(baseline, current, cfg.VerificationDrop, cfg.VerificationFloor)...)
	}

	events = append(events, evalMarketTrend(current, cfg.MarketTrend)...)

	sort.Slice(events, func(i, j int) bool {
		ri, rj := models.SeverityRank(events[i].Severity), models.SeverityRank(events[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return events[i].Fingerprint < events[j].Fingerprint
	})

	return events
}

func evalPriceMoves(baseline, current *models.AnalysisSnapshot, rule config.RuleConfig) []models.AlertEvent {
	if !rule.Enabled || baseline.Pricing == nil || current.Pricing == nil {
		return nil
	}

	var events []models.AlertEvent
	for category, currentAvg := range current.Pricing.ByCategory {
		baseAvg, ok := baseline.Pricing.ByCategory[category]
		if !ok || baseAvg == 0 {
			continue
		}
		change := (currentAvg - baseAvg) / baseAvg * 100
		magnitude := math.Abs(change)
		if magnitude < rule.Threshold {
			continue
		}

		title := fmt.Sprintf("Price Surge Alert: %s", category)
		if change < 0 {
			title = fmt.Sprintf("Price Drop Alert: %s", category)
		}
		events = append(events, models.AlertEvent{
			Fingerprint:   models.AlertFingerprint(RulePriceMove, category, current.WindowEnd),
			Category:      models.AlertPrice,
			Severity:      severityFor(magnitude, rule.Threshold),
			Title:         title,
			Message:       fmt.Sprintf("Average price for %s moved %.1f%% (%.2f to %.2f)", category, change, baseAvg, currentAvg),
			Metric:        "avg_price_change_percent",
			Threshold:     rule.Threshold,
			ObservedValue: change,
			CreatedAt:     current.GeneratedAt,
		})
	}
	return events
}

func evalSupplyDrops(baseline, current *models.AnalysisSnapshot, rule config.RuleConfig) []models.AlertEvent {
	if !rule.Enabled || baseline.Supplier == nil || current.Supplier == nil {
		return nil
	}

	var events []models.AlertEvent
	for country, baseCount := range baseline.Supplier.CountryCounts {
		if baseCount == 0 {
			continue
		}
		currentCount := current.Supplier.CountryCounts[country]
		change := float64(baseCount-currentCount) / float64(baseCount) * 100
		if change < rule.Threshold {
			continue
		}
		events = append(events, models.AlertEvent{
			Fingerprint:   models.AlertFingerprint(RuleSupplyDrop, country, current.WindowEnd),
			Category:      models.AlertSupply,
			Severity:      severityFor(change, rule.Threshold),
			Title:         fmt.Sprintf("Supply Shortage Alert: %s", country),
			Message:       fmt.Sprintf("Supplier count in %s dropped %.1f%% (%d to %d)", country, change, baseCount, currentCount),
			Metric:        "supplier_count_drop_percent",
			Threshold:     rule.Threshold,
			ObservedValue: change,
			CreatedAt:     current.GeneratedAt,
		})
	}
	return events
}

func evalDemandSurges(baseline, current *models.AnalysisSnapshot, rule config.RuleConfig) []models.AlertEvent {
	if !rule.Enabled || baseline.Trends == nil || current.Trends == nil {
		return nil
	}

	baseViews := make(map[string]int, len(baseline.Trends.TopCategories))
	for _, cv := range baseline.Trends.TopCategories {
		baseViews[cv.Category] = cv.Views
	}

	var events []models.AlertEvent
	for _, cv := range current.Trends.TopCategories {
		base, ok := baseViews[cv.Category]
		if !ok || base == 0 {
			continue
		}
		change := float64(cv.Views-base) / float64(base) * 100
		if change < rule.Threshold {
			continue
		}
		events = append(events, models.AlertEvent{
			Fingerprint:   models.AlertFingerprint(RuleDemandSurge, cv.Category, current.WindowEnd),
			Category:      models.AlertDemand,
			Severity:      severityFor(change, rule.Threshold),
			Title:         fmt.Sprintf("Demand Surge Alert: %s", cv.Category),
			Message:       fmt.Sprintf("Average views for %s increased %.1f%% (%d to %d)", cv.Category, change, base, cv.Views),
			Metric:        "avg_views_change_percent",
			Threshold:     rule.Threshold,
			ObservedValue: change,
			CreatedAt:     current.GeneratedAt,
		})
	}
	return events
}

func evalQualityDrop(baseline, current *models.AnalysisSnapshot, rule config.RuleConfig, floor float64) []models.AlertEvent {
	if !rule.Enabled || baseline.Quality == nil || current.Quality == nil {
		return nil
	}
	if baseline.Quality.RatingSampleSize == 0 || current.Quality.RatingSampleSize == 0 {
		return nil
	}

	drop := baseline.Quality.AvgRating - current.Quality.AvgRating
	if drop < rule.Threshold || current.Quality.AvgRating >= floor {
		return nil
	}

	return []models.AlertEvent{{
		Fingerprint:   models.AlertFingerprint(RuleQualityDrop, current.Category, current.WindowEnd),
		Category:      models.AlertQuality,
		Severity:      severityFor(drop, rule.Threshold),
		Title:         "Quality Alert: Average Rating Declining",
		Message:       fmt.Sprintf("Average rating dropped %.1f points to %.1f", drop, current.Quality.AvgRating),
		Metric:        "avg_rating_drop",
		Threshold:     rule.Threshold,
		ObservedValue: drop,
		CreatedAt:     current.GeneratedAt,
	}}
}

func evalVerificationDrop(baseline, current *models.AnalysisSnapshot, rule config.RuleConfig, floor float64) []models.AlertEvent {
	if !rule.Enabled || baseline.Supplier == nil || current.Supplier == nil {
		return nil
	}

	drop := baseline.Supplier.VerificationRate - current.Supplier.VerificationRate
	if drop < rule.Threshold || current.Supplier.VerificationRate >= floor {
		return nil
	}

	return []models.AlertEvent{{
		Fingerprint:   models.AlertFingerprint(RuleVerificationDrop, current.Category, current.WindowEnd),
		Category:      models.AlertVerification,
		Severity:      severityFor(drop, rule.Threshold),
		Title:         "Verification Alert: Verified Supplier Rate Declining",
		Message:       fmt.Sprintf("Verification rate dropped %.1f points to %.1f%%", drop, current.Supplier.VerificationRate),
		Metric:        "verification_rate_drop_points",
		Threshold:     rule.Threshold,
		ObservedValue: drop,
		CreatedAt:     current.GeneratedAt,
	}}
}

func evalMarketTrend(current *models.AnalysisSnapshot, rule config.RuleConfig) []models.AlertEvent {
	if !rule.Enabled || current.Trends == nil || len(current.Trends.TopCategories) == 0 {
		return nil
	}

	top := current.Trends.TopCategories[0]
	if float64(top.Views) <= rule.Threshold {
		return nil
	}

	return []models.AlertEvent{{
		Fingerprint:   models.AlertFingerprint(RuleMarketTrend, top.Category, current.WindowEnd),
		Category:      models.AlertMarketTrend,
		Severity:      models.SeverityLow,
		Title:         fmt.Sprintf("Trending Category: %s", top.Category),
		Message:       fmt.Sprintf("%s is the top performing category with %d average views", top.Category, top.Views),
		Metric:        "avg_views",
		Threshold:     rule.Threshold,
		ObservedValue: float64(top.Views),
		CreatedAt:     current.GeneratedAt,
	}}
}

// EvaluateHealth inspects source runtime state and emits system-health alerts
// for sources at or past the consecutive-failure threshold. The alert window
// is keyed by the last-scraped time so repeated failing cycles produce new
// fingerprints while a single failing state is not re-alerted.
func EvaluateHealth(sources []models.Source, rule config.RuleConfig) []models.AlertEvent {
	if !rule.Enabled {
		return nil
	}
	threshold := int(rule.Threshold)
	if threshold < 1 {
		threshold = 3
	}

	var events []models.AlertEvent
	for _, src := range sources {
		if !src.Enabled || src.Healthy(threshold) {
			continue
		}
		var window = src.LastScraped
		if window == nil {
			continue
		}
		events = append(events, models.AlertEvent{
			Fingerprint:   models.AlertFingerprint(RuleSystemHealth, src.ID, *window),
			Category:      models.AlertSystemHealth,
			Severity:      severityFor(float64(src.ConsecutiveFailures), rule.Threshold),
			Title:         fmt.Sprintf("Scraping Degraded: %s", src.Name),
			Message:       fmt.Sprintf("Source %s has failed %d consecutive scrapes", src.ID, src.ConsecutiveFailures),
			Metric:        "consecutive_failures",
			Threshold:     rule.Threshold,
			ObservedValue: float64(src.ConsecutiveFailures),
			CreatedAt:     *window,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Fingerprint < events[j].Fingerprint
	})
	return events
}
