package scraper

import (
	"context"

	"market-intel/internal/models"
)

// SampleSource serves a fixed listing set without any network access. It backs
// sources configured without a base URL and is the fixture source in tests.
type SampleSource struct {
	id   string
	kind models.SourceKind
}

// NewSampleSource creates a sample source.
func NewSampleSource(id string, kind models.SourceKind) *SampleSource {
	return &SampleSource{id: id, kind: kind}
}

func (s *SampleSource) Name() string { return s.id }

func (s *SampleSource) Fetch(ctx context.Context) ([]Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sampleListings(s.kind), nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func sampleListings(kind models.SourceKind) []Listing {
	switch kind {
	case models.SourceEtsy:
		return []Listing{
			{
				ExternalID: "etsy-1001", Title: "Handmade ceramic planter",
				Category: "Home & Garden", Price: "$24.99", Currency: "USD",
				Rating: floatPtr(4.8), ReviewCount: intPtr(312),
				SupplierID: "studio-terra", Verified: boolPtr(true),
				SupplierCountry: "Portugal", Views: intPtr(5400), Sales: intPtr(220),
				PriceTrend: "stable", SeasonalDemand: "spring_peak",
			},
			{
				ExternalID: "etsy-1002", Title: "Walnut phone stand",
				Category: "Accessories", Price: "$18.50", Currency: "USD",
				Rating: floatPtr(4.6), ReviewCount: intPtr(87),
				SupplierID: "oakline", SupplierCountry: "United States",
				Views: intPtr(1900), Sales: intPtr(64), PriceTrend: "rising",
			},
		}
	case models.SourceGlobalTrade:
		return []Listing{
			{
				ExternalID: "gt-2001", Title: "Industrial ball bearing 6204-2RS",
				Category: "Machinery Parts", Price: "US $0.42-0.55", Currency: "USD",
				MOQ: intPtr(5000), Verified: boolPtr(true), SupplierID: "hbx-bearings",
				SupplierCountry: "China", YearsInBusiness: intPtr(12),
				SupplierRating: floatPtr(4.4), LeadTime: "20-30 days",
				ShippingCost: floatPtr(380), ShippingMethod: "sea",
				PortOfOrigin: "Ningbo", Certifications: []string{"ISO9001"},
			},
			{
				ExternalID: "gt-2002", Title: "Stainless steel pipe fitting",
				Category: "Machinery Parts", Price: "US $1.80", Currency: "USD",
				MOQ: intPtr(1000), SupplierID: "sv-metals", SupplierCountry: "India",
				YearsInBusiness: intPtr(7), SupplierRating: floatPtr(4.1),
				LeadTime: "15 days", ShippingMethod: "sea", PortOfOrigin: "Mundra",
			},
		}
	default: // alibaba
		return []Listing{
			{
				ExternalID: "ali-3001", Title: "Wireless earbuds TWS Pro",
				Category: "Electronics", Price: "US $8.20-9.10", Currency: "USD",
				DiscountPercent: floatPtr(12), BulkTiers: intPtr(3),
				MOQ: intPtr(500), Specs: map[string]string{"battery": "400mAh", "bt": "5.3"},
				Certifications: []string{"CE", "FCC"}, Rating: floatPtr(4.5),
				ReviewCount: intPtr(1280), SupplierID: "shenzhen-audio",
				Verified: boolPtr(true), SupplierCountry: "China",
				YearsInBusiness: intPtr(9), SupplierRating: floatPtr(4.7),
				Views: intPtr(48000), Sales: intPtr(3200), TrendingRank: intPtr(3),
				PriceTrend: "falling", SeasonalDemand: "q4_peak",
				ShippingCost: floatPtr(120), ShippingMethod: "air",
				LeadTime: "7-12 days", PortOfOrigin: "Shenzhen",
			},
			{
				ExternalID: "ali-3002", Title: "USB-C charging cable braided 1m",
				Category: "Electronics", Price: "US $0.65", Currency: "USD",
				MOQ: intPtr(2000), Rating: floatPtr(4.3), ReviewCount: intPtr(540),
				SupplierID: "dongguan-cables", Verified: boolPtr(true),
				SupplierCountry: "China", YearsInBusiness: intPtr(5),
				SupplierRating: floatPtr(4.2), Views: intPtr(21000),
				Sales: intPtr(8700), PriceTrend: "stable",
				LeadTime: "10 days", PortOfOrigin: "Guangzhou",
			},
			{
				ExternalID: "ali-3003", Title: "Smart LED desk lamp",
				Category: "Home & Garden", Price: "US $6.40-7.80", Currency: "USD",
				MOQ: intPtr(300), Rating: floatPtr(4.6), ReviewCount: intPtr(210),
				SupplierID: "zhongshan-lighting", SupplierCountry: "China",
				YearsInBusiness: intPtr(11), SupplierRating: floatPtr(4.5),
				Views: intPtr(9800), Sales: intPtr(430), SeasonalDemand: "steady",
				LeadTime: "12-18 days", ShippingMethod: "sea", PortOfOrigin: "Shenzhen",
			},
		}
	}
}
