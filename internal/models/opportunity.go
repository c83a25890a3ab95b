package models

import (
	"time"
)

// TemplateType identifies a content opportunity template.
type TemplateType string

const (
	TemplatePriceAnalysis TemplateType = "price-analysis"
	TemplateSupplierGuide TemplateType = "supplier-guide"
	TemplateMOQGuide      TemplateType = "moq-guide"
	TemplateTrendAnalysis TemplateType = "trend-analysis"
)

// ContentOpportunity is an ephemeral, data-driven suggestion for an article.
// Confidence is the fraction of the template's required snapshot fields that
// were present, in [0,1]. Opportunities are recomputed on demand and never
// persisted.
type ContentOpportunity struct {
	TemplateType TemplateType      `json:"template_type"`
	Title        string            `json:"title"`
	DataPoints   map[string]string `json:"data_points"`
	Confidence   float64           `json:"confidence"`
	GeneratedAt  time.Time         `json:"generated_at"`
}
