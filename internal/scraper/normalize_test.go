package scraper

import (
	stderrors "errors"
	"testing"
	"time"

	"market-intel/internal/errors"
	"market-intel/internal/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *float64
	}{
		{"plain number", "12.50", floatPtr(12.50)},
		{"currency prefix", "$1,299.99", floatPtr(1299.99)},
		{"range takes lower bound", "$2.50 - $4.80", floatPtr(2.50)},
		{"integer", "45", floatPtr(45)},
		{"embedded text", "USD 89.00 / piece", floatPtr(89)},
		{"no digits", "contact supplier", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestParseLeadTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *int
	}{
		{"days suffix", "15 days", intPtr(15)},
		{"range takes first", "7-15 days", intPtr(7)},
		{"plain number", "30", intPtr(30)},
		{"no digits", "varies", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLeadTime(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseLeadTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParseLeadTime(%q) = %d, want %d", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestValidateListing(t *testing.T) {
	tests := []struct {
		name      string
		listing   Listing
		price     *float64
		wantField string
	}{
		{"valid", Listing{ExternalID: "a1", Title: "Widget"}, floatPtr(10), ""},
		{"missing external id", Listing{Title: "Widget"}, nil, "external_id"},
		{"missing title", Listing{ExternalID: "a1"}, nil, "title"},
		{"negative price", Listing{ExternalID: "a1", Title: "Widget"}, floatPtr(-4), "price"},
		{"rating above scale", Listing{ExternalID: "a1", Title: "Widget", Rating: floatPtr(7.5)}, nil, "rating"},
		{"supplier rating below scale", Listing{ExternalID: "a1", Title: "Widget", SupplierRating: floatPtr(-1)}, nil, "supplier_rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateListing(tt.listing, tt.price)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("validateListing() = %v, want nil", err)
				}
				return
			}
			var verr *errors.ValidationError
			if !stderrors.As(err, &verr) {
				t.Fatalf("validateListing() = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	scrapedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("drops listings without identity", func(t *testing.T) {
		listings := []Listing{
			{ExternalID: "a1", Title: "Widget", Price: "10.00"},
			{ExternalID: "", Title: "No ID", Price: "5.00"},
			{ExternalID: "a2", Title: "", Price: "5.00"},
		}
		records, dropped := Normalize("alibaba-1", listings, scrapedAt)
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		if dropped != 2 {
			t.Errorf("expected 2 dropped, got %d", dropped)
		}
		if records[0].ExternalID != "a1" {
			t.Errorf("kept wrong record: %s", records[0].ExternalID)
		}
	})

	t.Run("drops negative prices", func(t *testing.T) {
		listings := []Listing{
			{ExternalID: "a1", Title: "Widget", Price: "-4.00"},
		}
		records, dropped := Normalize("alibaba-1", listings, scrapedAt)
		if len(records) != 0 || dropped != 1 {
			t.Errorf("expected negative price dropped, got %d records %d dropped", len(records), dropped)
		}
	})

	t.Run("keeps listing without price", func(t *testing.T) {
		listings := []Listing{
			{ExternalID: "a1", Title: "Widget"},
		}
		records, dropped := Normalize("alibaba-1", listings, scrapedAt)
		if len(records) != 1 || dropped != 0 {
			t.Fatalf("expected 1 record 0 dropped, got %d/%d", len(records), dropped)
		}
		if records[0].HasPrice() {
			t.Error("record without price should report no price")
		}
	})

	t.Run("drops out-of-range ratings", func(t *testing.T) {
		rating := 7.5
		supplierRating := -1.0
		listings := []Listing{
			{ExternalID: "a1", Title: "Widget", Price: "10.00", Rating: &rating},
			{ExternalID: "a2", Title: "Gadget", Price: "11.00", SupplierRating: &supplierRating},
			{ExternalID: "a3", Title: "Gizmo", Price: "12.00", Rating: floatPtr(4.5)},
		}
		records, dropped := Normalize("alibaba-1", listings, scrapedAt)
		if len(records) != 1 || dropped != 2 {
			t.Fatalf("expected 1 record 2 dropped, got %d/%d", len(records), dropped)
		}
		if records[0].ExternalID != "a3" {
			t.Errorf("kept wrong record: %s", records[0].ExternalID)
		}
	})

	t.Run("clears out-of-range auxiliary fields", func(t *testing.T) {
		moq := 0
		discount := 140.0
		listings := []Listing{
			{
				ExternalID:      "a1",
				Title:           "Widget",
				Price:           "10.00",
				MOQ:             &moq,
				DiscountPercent: &discount,
			},
		}
		records, dropped := Normalize("alibaba-1", listings, scrapedAt)
		if len(records) != 1 || dropped != 0 {
			t.Fatalf("unexpected drop: %d records %d dropped", len(records), dropped)
		}
		rec := records[0]
		if rec.MOQ != nil {
			t.Error("MOQ below 1 should be cleared")
		}
		if rec.DiscountPercent != nil {
			t.Error("discount above 100 should be cleared")
		}
	})

	t.Run("defaults and verification mapping", func(t *testing.T) {
		verified := true
		listings := []Listing{
			{ExternalID: "a1", Title: "Widget", Price: "10.00", Verified: &verified},
			{ExternalID: "a2", Title: "Gadget", Price: "11.00"},
		}
		records, _ := Normalize("alibaba-1", listings, scrapedAt)
		if records[0].Currency != "USD" {
			t.Errorf("expected USD default, got %s", records[0].Currency)
		}
		if records[0].Verification != models.VerificationVerified {
			t.Errorf("expected verified, got %s", records[0].Verification)
		}
		if records[1].Verification != models.VerificationUnknown {
			t.Errorf("expected unknown, got %s", records[1].Verification)
		}
		if !records[0].ScrapedAt.Equal(scrapedAt) {
			t.Error("scraped timestamp not propagated")
		}
	})
}
