package models

import (
	"fmt"
	"time"
)

// AlertCategory classifies what market condition an alert describes.
type AlertCategory string

const (
	AlertPrice        AlertCategory = "price"
	AlertSupply       AlertCategory = "supply"
	AlertDemand       AlertCategory = "demand"
	AlertQuality      AlertCategory = "quality"
	AlertVerification AlertCategory = "verification"
	AlertMarketTrend  AlertCategory = "market_trend"
	AlertSystemHealth AlertCategory = "system_health"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityRank orders severities for sorting, highest first.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// AlertEvent is an immutable alert occurrence. The fingerprint identifies the
// rule firing for a subject within a time window, so re-evaluating the same
// snapshot pair produces the same fingerprints and the store deduplicates.
// Delivered is the only mutable field.
type AlertEvent struct {
	ID            int64         `json:"id"`
	Fingerprint   string        `json:"fingerprint"`
	Category      AlertCategory `json:"category"`
	Severity      Severity      `json:"severity"`
	Title         string        `json:"title"`
	Message       string        `json:"message"`
	Metric        string        `json:"metric"`
	Threshold     float64       `json:"threshold"`
	ObservedValue float64       `json:"observed_value"`
	CreatedAt     time.Time     `json:"created_at"`
	Delivered     bool          `json:"delivered"`
}

// AlertFingerprint builds the deterministic identity for an alert: the rule,
// the subject it fired on, and the snapshot window it was evaluated against.
func AlertFingerprint(rule, subject string, windowEnd time.Time) string {
	return fmt.Sprintf("%s:%s:%s", rule, subject, windowEnd.UTC().Format(time.RFC3339))
}
