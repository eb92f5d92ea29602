package domain

import (
	"fmt"
	"strings"
)

// Placeholders used when a title part could not be recognized.
const (
	Unknown        = "Unknown"
	UnknownPartner = "UNKNOWN"
)

// KeySpecs are the structured fields extracted from a title.
// ModelVariant is empty when the model has no variant.
type KeySpecs struct {
	Chipset      string `json:"chipset"`
	ModelNumber  string `json:"model_number"`
	ModelVariant string `json:"model_variant,omitempty"`
	VRAM         int    `json:"vram"`
	BoardPartner string `json:"board_partner"`
	SubBrandText string `json:"sub_brand_text"`
}

// FullModelName is "CHIPSET MODEL [VARIANT]", or Unknown when no chipset matched.
func (k KeySpecs) FullModelName() string {
	if k.Chipset == "" || k.Chipset == Unknown {
		return Unknown
	}
	name := k.Chipset + " " + k.ModelNumber
	if k.ModelVariant != "" {
		name += " " + k.ModelVariant
	}
	return name
}

// CanonicalName derives the group identity. SubBrandText never takes part.
func (k KeySpecs) CanonicalName() string {
	var b strings.Builder
	b.WriteString(k.FullModelName())
	if vram := k.NamedVRAM(); vram > 0 {
		fmt.Fprintf(&b, " %d GB", vram)
	}
	b.WriteString(" - ")
	b.WriteString(k.BoardPartner)
	return b.String()
}

// CoreKey holds the fields that must be equal for two specs to be the
// same commercial product.
type CoreKey struct {
	Chipset      string
	ModelNumber  string
	ModelVariant string
	BoardPartner string
	VRAM         int
}

// NamedVRAM is the memory size as it appears in the canonical name, 0 when
// the name leaves it out. Sizes of 1 GB or less are not named.
func (k KeySpecs) NamedVRAM() int {
	if k.VRAM > 1 {
		return k.VRAM
	}
	return 0
}

// CoreKey returns the core identity of the specs. VRAM takes part through
// NamedVRAM, so equal core keys always mean equal canonical names.
func (k KeySpecs) CoreKey() CoreKey {
	return CoreKey{
		Chipset:      k.Chipset,
		ModelNumber:  k.ModelNumber,
		ModelVariant: k.ModelVariant,
		BoardPartner: k.BoardPartner,
		VRAM:         k.NamedVRAM(),
	}
}

// ProductSpec is the normalized form of one retailer title
type ProductSpec struct {
	Category       string   `json:"category"`
	Brand          string   `json:"brand"`
	CanonicalModel string   `json:"canonical_model"`
	KeySpecs       KeySpecs `json:"key_specs"`
	RawTitle       string   `json:"raw_title"`
}

// Grouping decisions
const (
	DecisionGroup    = "group"
	DecisionSeparate = "separate"
)

// GroupDecision is the outcome of comparing two specs
type GroupDecision struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Grouped reports whether the decision joins both products
func (d GroupDecision) Grouped() bool {
	return d.Decision == DecisionGroup
}
