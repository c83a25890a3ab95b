package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"market-intel/internal/models"
)

// HTTPSource fetches listings from a JSON endpoint.
type HTTPSource struct {
	id       string
	name     string
	url      string
	client   *http.Client
	delay    time.Duration
	maxItems int
}

// NewHTTPSource creates an HTTP JSON source for a configured scrape source.
func NewHTTPSource(src models.Source, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		id:       src.ID,
		name:     src.Name,
		url:      src.BaseURL,
		client:   &http.Client{Timeout: timeout},
		delay:    src.RequestDelay,
		maxItems: src.MaxItems,
	}
}

func (s *HTTPSource) Name() string { return s.id }

// Fetch performs one GET against the source endpoint and decodes the listing
// array. The configured request delay is honored before the request so
// back-to-back cycles stay polite to the upstream.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Listing, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "market-intel/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request: %w", s.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", s.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", s.name, resp.StatusCode)
	}

	var listings []Listing
	if err := json.Unmarshal(body, &listings); err != nil {
		// Some endpoints wrap the array in an envelope.
		var envelope struct {
			Items []Listing `json:"items"`
		}
		if err2 := json.Unmarshal(body, &envelope); err2 != nil {
			return nil, fmt.Errorf("%s: decode: %w", s.name, err)
		}
		listings = envelope.Items
	}

	if s.maxItems > 0 && len(listings) > s.maxItems {
		listings = listings[:s.maxItems]
	}

	return listings, nil
}
