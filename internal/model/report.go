package model

import "time"

// Theme is one thematic cluster an analyzer's reduce phase identifies
// within a category.
type Theme struct {
	Name        string `json:"name"`
	ItemCount   int    `json:"item_count"`
	Description string `json:"description"`
}

// CategoryReport is the analyzer's (C7) output for a single category.
type CategoryReport struct {
	Category        Category `json:"category"`
	Items           []Item   `json:"items"`
	Themes          []Theme  `json:"themes"`
	CategorySummary string   `json:"category_summary"`
	TopItems        []Item   `json:"top_items"`
	ItemCountTotal  int      `json:"item_count_total"`
	Status          SourceStatusState `json:"status"`
	Notice          string            `json:"notice,omitempty"`
}

// Topic is a cross-category cluster produced by synthesis (C8).
type Topic struct {
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	CategoryMix        map[Category]int `json:"category_mix"`
	ReferencedItemIDs  []string         `json:"referenced_item_ids"`
}

// EcosystemSource identifies where an EcosystemRelease entry came from.
type EcosystemSource string

const (
	EcosystemSourceCurated   EcosystemSource = "curated"
	EcosystemSourceAuto      EcosystemSource = "auto_detected"
	EcosystemSourceExternal  EcosystemSource = "external_registry"
)

// EcosystemRelease is one tracked model/vendor release used to ground
// analysis and synthesis calls (C6).
type EcosystemRelease struct {
	Vendor                string          `yaml:"vendor" json:"vendor"`
	ModelName             string          `yaml:"model_name" json:"model_name"`
	GeneralAvailability   *time.Time      `yaml:"general_availability_date,omitempty" json:"general_availability_date,omitempty"`
	APIAvailability       *time.Time      `yaml:"api_availability_date,omitempty" json:"api_availability_date,omitempty"`
	Confidence            float64         `yaml:"confidence" json:"confidence"`
	Source                EcosystemSource `yaml:"source" json:"source"`
}

// CostEntry is one phase's accumulated token usage.
type CostEntry struct {
	Phase            string  `json:"phase"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	ReasoningTokens  int64   `json:"reasoning_tokens"`
	EstimatedUSD     float64 `json:"estimated_usd"`
}

// CostSummary is the flushed, end-of-run view of the cost accumulator.
type CostSummary struct {
	Phases       []CostEntry `json:"phases"`
	TotalUSD     float64     `json:"total_usd"`
}

// DayReport is the terminal artifact of the pipeline (§3).
type DayReport struct {
	ReportDate    string    `json:"report_date"` // YYYY-MM-DD, ET local date
	CoverageStart time.Time `json:"coverage_start"`
	CoverageEnd   time.Time `json:"coverage_end"`

	ExecutiveSummary     string `json:"executive_summary"`
	ExecutiveSummaryHTML string `json:"executive_summary_html"`

	TopTopics  []Topic                    `json:"top_topics"`
	Categories map[Category]CategoryReport `json:"categories"`

	CollectionStatus CollectionStatus `json:"collection_status"`

	HeroImageURL    string `json:"hero_image_url,omitempty"`
	HeroImagePrompt string `json:"hero_image_prompt,omitempty"`

	// HeroImageBytes carries the generated image through to report.Write,
	// which persists it as the sibling hero.webp artifact; never
	// serialized onto summary.json itself.
	HeroImageBytes []byte `json:"-"`

	CostSummary CostSummary `json:"cost_summary"`

	OverallStatus SourceStatusState `json:"overall_status"`

	// Warnings accumulates best-effort phase degradations (§4.10) that do
	// not affect OverallStatus but are worth surfacing in logs/artifacts.
	Warnings []string `json:"warnings,omitempty"`
}

// TotalItemCount sums ItemCountTotal across all categories.
func (d *DayReport) TotalItemCount() int {
	total := 0
	for _, c := range d.Categories {
		total += c.ItemCountTotal
	}
	return total
}
