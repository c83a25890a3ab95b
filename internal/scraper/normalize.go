package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"market-intel/internal/errors"
	"market-intel/internal/models"
)

var (
	priceRe = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?`)
	leadRe  = regexp.MustCompile(`\d+`)
)

// ParsePrice extracts the first numeric value from a display price string such
// as "US $8.20-9.10" or "$1,240.00". Range prices resolve to the lower bound.
// Returns nil when no numeric value is present.
func ParsePrice(s string) *float64 {
	match := priceRe.FindString(s)
	if match == "" {
		return nil
	}
	match = strings.ReplaceAll(match, ",", "")
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseLeadTime extracts the first integer from a lead-time string such as
// "15-20 days". Returns nil when none is present.
func ParseLeadTime(s string) *int {
	match := leadRe.FindString(s)
	if match == "" {
		return nil
	}
	v, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &v
}

// validateListing checks the fields that invalidate a listing outright:
// missing identity, a negative price, or a rating outside the 0-5 scale.
func validateListing(l Listing, price *float64) error {
	if strings.TrimSpace(l.ExternalID) == "" {
		return errors.NewValidationError("external_id", l.ExternalID, "missing listing identity")
	}
	if strings.TrimSpace(l.Title) == "" {
		return errors.NewValidationError("title", l.Title, "missing listing identity")
	}
	if price != nil && *price < 0 {
		return errors.NewValidationError("price", *price, "price must be non-negative")
	}
	if l.Rating != nil && (*l.Rating < 0 || *l.Rating > 5) {
		return errors.NewValidationError("rating", *l.Rating, "rating must be within 0-5")
	}
	if l.SupplierRating != nil && (*l.SupplierRating < 0 || *l.SupplierRating > 5) {
		return errors.NewValidationError("supplier_rating", *l.SupplierRating, "rating must be within 0-5")
	}
	return nil
}

// Normalize validates raw listings into scraped records. Entries failing
// validation are dropped and counted; out-of-range auxiliary fields (MOQ,
// discount) are cleared rather than dropping the entry. Normalization never
// fails the whole batch.
func Normalize(sourceID string, listings []Listing, scrapedAt time.Time) (records []models.ScrapedRecord, dropped int) {
	for _, l := range listings {
		price := ParsePrice(l.Price)
		if err := validateListing(l, price); err != nil {
			dropped++
			continue
		}

		moq := l.MOQ
		if moq != nil && *moq < 1 {
			moq = nil
		}

		discount := l.DiscountPercent
		if discount != nil && (*discount < 0 || *discount > 100) {
			discount = nil
		}

		verification := models.VerificationUnknown
		if l.Verified != nil {
			if *l.Verified {
				verification = models.VerificationVerified
			} else {
				verification = models.VerificationUnverified
			}
		}

		currency := l.Currency
		if currency == "" {
			currency = "USD"
		}

		records = append(records, models.ScrapedRecord{
			SourceID:        sourceID,
			ExternalID:      strings.TrimSpace(l.ExternalID),
			ScrapedAt:       scrapedAt,
			Title:           strings.TrimSpace(l.Title),
			Category:        strings.TrimSpace(l.Category),
			Price:           price,
			Currency:        currency,
			DiscountPercent: discount,
			BulkTiers:       l.BulkTiers,
			MOQ:             moq,
			Specs:           l.Specs,
			Certifications:  l.Certifications,
			Rating:          l.Rating,
			ReviewCount:     l.ReviewCount,
			SupplierID:      l.SupplierID,
			Verification:    verification,
			SupplierCountry: l.SupplierCountry,
			YearsInBusiness: l.YearsInBusiness,
			SupplierRating:  l.SupplierRating,
			Views:           l.Views,
			Sales:           l.Sales,
			TrendingRank:    l.TrendingRank,
			PriceTrend:      l.PriceTrend,
			SeasonalDemand:  l.SeasonalDemand,
			ShippingCost:    l.ShippingCost,
			ShippingMethod:  l.ShippingMethod,
			LeadTimeDays:    ParseLeadTime(l.LeadTime),
			PortOfOrigin:    l.PortOfOrigin,
		})
	}
	return records, dropped
}
