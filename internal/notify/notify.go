// Package notify delivers alert batches over configured channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"market-intel/internal/config"
	"market-intel/internal/errors"
	"market-intel/internal/models"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendAlerts(ctx context.Context, alerts []models.AlertEvent) error
	SendSummary(ctx context.Context, summary *MarketSummary) error
	SendError(ctx context.Context, err error, context string) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationAlert   NotificationType = "alert"
	NotificationError   NotificationType = "error"
	NotificationSummary NotificationType = "summary"
	NotificationInfo    NotificationType = "info"
)

// NotificationLevel represents the notification level filter.
type NotificationLevel string

const (
	LevelAll        NotificationLevel = "all"
	LevelAlertsOnly NotificationLevel = "alerts_only"
	LevelErrorsOnly NotificationLevel = "errors_only"
)

// MarketSummary represents a daily market summary.
type MarketSummary struct {
	Date             string
	RecordCount      int
	SourceCount      int
	HealthySources   int
	AlertCount       int
	CriticalAlerts   int
	TopCategory      string
	AvgPrice         float64
	VerificationRate float64
	Opportunities    int
}

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	level    NotificationLevel
	mu       sync.RWMutex
}

// NewMultiNotifier creates a new MultiNotifier with the given configuration.
func NewMultiNotifier(cfg *config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		level:    NotificationLevel(cfg.Level),
	}

	if mn.level == "" {
		mn.level = LevelAll
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Email.Enabled {
		mn.channels = append(mn.channels, NewEmailNotifier(cfg.Email))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// shouldSend checks if a notification should be sent based on the level filter.
func (mn *MultiNotifier) shouldSend(notifType NotificationType) bool {
	switch mn.level {
	case LevelAlertsOnly:
		return notifType == NotificationAlert
	case LevelErrorsOnly:
		return notifType == NotificationError
	default:
		return true
	}
}

// Send sends a notification to all enabled channels. A channel failure is
// reported but never prevents delivery over the remaining channels.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if !mn.shouldSend(n.Type) {
		return nil
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, n); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendAlerts delivers an alert batch as a single severity-grouped message.
// On failure it returns a NotificationDeliveryError so callers leave the
// events undelivered and retry next cycle.
func (mn *MultiNotifier) SendAlerts(ctx context.Context, alerts []models.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}

	title, message := FormatAlertBatch(alerts, time.Now())

	critical := countBySeverity(alerts, models.SeverityCritical)
	err := mn.Send(ctx, Notification{
		Type:    NotificationAlert,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"alert_count":    len(alerts),
			"critical_count": critical,
		},
	})
	if err != nil {
		return errors.NewNotificationDeliveryError("multi", len(alerts), err)
	}
	return nil
}

// FormatAlertBatch renders a batch into a subject and a plain-text body with
// critical, high, and medium sections. Medium alerts are capped at five; low
// alerts are summarized by count only.
func FormatAlertBatch(alerts []models.AlertEvent, now time.Time) (title, message string) {
	critical := filterBySeverity(alerts, models.SeverityCritical)
	high := filterBySeverity(alerts, models.SeverityHigh)
	medium := filterBySeverity(alerts, models.SeverityMedium)
	low := filterBySeverity(alerts, models.SeverityLow)

	title = fmt.Sprintf("Market Alert: %d alerts detected", len(alerts))
	if len(critical) > 0 {
		title = fmt.Sprintf("CRITICAL Market Alert: %d critical issues", len(critical))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Market Intelligence Alert Summary %s\n", now.Format("2006-01-02 15:04")))
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")

	writeSection := func(heading string, events []models.AlertEvent) {
		if len(events) == 0 {
			return
		}
		sb.WriteString(heading + "\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for _, a := range events {
			sb.WriteString(fmt.Sprintf("* %s: %s\n", a.Title, a.Message))
		}
		sb.WriteString("\n")
	}

	writeSection("CRITICAL ALERTS:", critical)
	writeSection("HIGH PRIORITY:", high)

	if len(medium) > 5 {
		writeSection("MEDIUM PRIORITY (top 5):", medium[:5])
		sb.WriteString(fmt.Sprintf("... and %d more medium alerts\n\n", len(medium)-5))
	} else {
		writeSection("MEDIUM PRIORITY:", medium)
	}

	if len(low) > 0 {
		sb.WriteString(fmt.Sprintf("Plus %d informational alerts.\n", len(low)))
	}

	return title, sb.String()
}

func filterBySeverity(alerts []models.AlertEvent, severity models.Severity) []models.AlertEvent {
	var out []models.AlertEvent
	for _, a := range alerts {
		if a.Severity == severity {
			out = append(out, a)
		}
	}
	return out
}

func countBySeverity(alerts []models.AlertEvent, severity models.Severity) int {
	n := 0
	for _, a := range alerts {
		if a.Severity == severity {
			n++
		}
	}
	return n
}

// SendSummary sends a daily market summary notification.
func (mn *MultiNotifier) SendSummary(ctx context.Context, summary *MarketSummary) error {
	title := fmt.Sprintf("Daily Market Summary - %s", summary.Date)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Records analyzed: %d\n", summary.RecordCount))
	sb.WriteString(fmt.Sprintf("Sources healthy: %d/%d\n", summary.HealthySources, summary.SourceCount))
	sb.WriteString(fmt.Sprintf("Alerts (24h): %d", summary.AlertCount))
	if summary.CriticalAlerts > 0 {
		sb.WriteString(fmt.Sprintf(" (%d critical)", summary.CriticalAlerts))
	}
	sb.WriteString("\n")
	if summary.TopCategory != "" {
		sb.WriteString(fmt.Sprintf("Top category: %s\n", summary.TopCategory))
	}
	if summary.AvgPrice > 0 {
		sb.WriteString(fmt.Sprintf("Average price: %.2f\n", summary.AvgPrice))
	}
	if summary.VerificationRate > 0 {
		sb.WriteString(fmt.Sprintf("Verification rate: %.1f%%\n", summary.VerificationRate))
	}
	sb.WriteString(fmt.Sprintf("Content opportunities: %d\n", summary.Opportunities))

	return mn.Send(ctx, Notification{
		Type:    NotificationSummary,
		Title:   title,
		Message: sb.String(),
		Data: map[string]interface{}{
			"date":         summary.Date,
			"record_count": summary.RecordCount,
			"alert_count":  summary.AlertCount,
		},
	})
}

// SendError sends an error notification.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	title := "Error Occurred"
	message := fmt.Sprintf("Context: %s\nError: %v\nTime: %s",
		errContext, err, time.Now().Format("15:04:05"))

	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"context": errContext,
			"error":   err.Error(),
		},
	})
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send sends a notification via webhook.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "market-intel/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// EmailNotifier sends notifications via email using SMTP.
type EmailNotifier struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
	to       string
	enabled  bool
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.To,
		enabled:  cfg.Enabled && cfg.SMTPHost != "" && cfg.From != "" && cfg.To != "",
	}
}

// Name returns the name of the notifier.
func (e *EmailNotifier) Name() string {
	return "email"
}

// IsEnabled returns whether the notifier is enabled.
func (e *EmailNotifier) IsEnabled() bool {
	return e.enabled
}

// Send sends a notification via email.
func (e *EmailNotifier) Send(ctx context.Context, n Notification) error {
	if !e.enabled {
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		e.from, e.to, n.Title, n.Message)

	addr := fmt.Sprintf("%s:%d", e.smtpHost, e.smtpPort)
	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.smtpHost)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.from, strings.Split(e.to, ","), []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoOpNotifier is a notifier that discards everything, used when
// notifications are disabled.
type NoOpNotifier struct{}

func (NoOpNotifier) Send(ctx context.Context, n Notification) error { return nil }
func (NoOpNotifier) SendAlerts(ctx context.Context, alerts []models.AlertEvent) error {
	return nil
}
func (NoOpNotifier) SendSummary(ctx context.Context, summary *MarketSummary) error { return nil }
func (NoOpNotifier) SendError(ctx context.Context, err error, context string) error {
	return nil
}
