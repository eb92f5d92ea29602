package domain

// RuleSet is the hand-authored, per-category configuration driving title
// parsing and scoring. It is loaded once and passed around by value.
type RuleSet struct {
	Category               string            `mapstructure:"category" json:"category"`
	Version                string            `mapstructure:"version" json:"version,omitempty"`
	IgnoreTokens           []string          `mapstructure:"ignore_tokens" json:"ignore_tokens"`
	ChipsetPatterns        []ChipsetPattern  `mapstructure:"chipset_patterns" json:"chipset_patterns"`
	BoardPartners          []string          `mapstructure:"board_partners" json:"board_partners"`
	VRAMPatterns           []string          `mapstructure:"vram_patterns" json:"vram_patterns"`
	SimilarityWeights      SimilarityWeights `mapstructure:"similarity_weights" json:"similarity_weights"`
	GroupingScoreThreshold float64           `mapstructure:"grouping_score_threshold" json:"grouping_score_threshold"`
}

// ChipsetPattern extracts chipset, model number and variant for one vendor.
// Capture group meaning depends on the vendor key.
type ChipsetPattern struct {
	Vendor          string `mapstructure:"vendor" json:"vendor"`
	Brand           string `mapstructure:"brand" json:"brand"`
	ModelExtraction string `mapstructure:"model_extraction" json:"model_extraction"`
}

// SimilarityWeights weigh the exact core match against the fuzzy residue score
type SimilarityWeights struct {
	CoreMatch     float64 `mapstructure:"core_match" json:"core_match"`
	SubBrandFuzzy float64 `mapstructure:"sub_brand_fuzzy" json:"sub_brand_fuzzy"`
}

// Sum is the best score two specs can reach under these weights
func (w SimilarityWeights) Sum() float64 {
	return w.CoreMatch + w.SubBrandFuzzy
}
