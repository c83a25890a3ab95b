package stream

import (
	"context"
	"testing"
	"time"

	"market-intel/internal/models"
)

func event(category models.AlertCategory, fingerprint string) models.AlertEvent {
	return models.AlertEvent{
		Fingerprint: fingerprint,
		Category:    category,
		Severity:    models.SeverityHigh,
		Title:       "test alert",
		CreatedAt:   time.Now(),
	}
}

func receive(t *testing.T, ch <-chan models.AlertEvent) models.AlertEvent {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while waiting for event")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.AlertEvent{}
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	first := h.Subscribe("a", "")
	second := h.Subscribe("b", "")

	h.Publish(event(models.AlertPrice, "price_move:Electronics:w1"))

	if got := receive(t, first); got.Fingerprint != "price_move:Electronics:w1" {
		t.Errorf("first subscriber got %q", got.Fingerprint)
	}
	if got := receive(t, second); got.Fingerprint != "price_move:Electronics:w1" {
		t.Errorf("second subscriber got %q", got.Fingerprint)
	}
}

func TestHubCategoryFilter(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	priceOnly := h.Subscribe("price-watcher", string(models.AlertPrice))
	all := h.Subscribe("everything", "")

	h.Publish(event(models.AlertSupply, "supply_drop:China:w1"))
	h.Publish(event(models.AlertPrice, "price_move:Electronics:w1"))

	// The filtered subscriber skips the supply event entirely.
	if got := receive(t, priceOnly); got.Category != models.AlertPrice {
		t.Errorf("filtered subscriber got category %s", got.Category)
	}

	if got := receive(t, all); got.Category != models.AlertSupply {
		t.Errorf("unfiltered subscriber got %s first", got.Category)
	}
	if got := receive(t, all); got.Category != models.AlertPrice {
		t.Errorf("unfiltered subscriber got %s second", got.Category)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	ch := h.Subscribe("a", "")
	h.Unsubscribe("a")

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after unsubscribe")
	}
	if h.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", h.SubscriberCount())
	}
}

func TestHubSlowConsumerDoesNotBlock(t *testing.T) {
	h := NewHubWithConfig(HubConfig{BufferSize: 16, SubscriberBufferSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	slow := h.Subscribe("slow", "")
	for i := 0; i < 5; i++ {
		h.Publish(event(models.AlertPrice, "fp"))
	}

	// The first event lands, the overflow is dropped, and the hub keeps going.
	receive(t, slow)

	deadline := time.After(time.Second)
	for {
		m := h.Metrics()
		if m.EventsReceived == 5 && m.EventsDropped > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("metrics never settled: %+v", h.Metrics())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHubStopIdempotent(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	h.Stop()
	h.Stop()
	if h.IsStarted() {
		t.Error("hub should report stopped")
	}
}
