package usecase

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pricetracker/backend/internal/domain"
)

// Normalizer turns a raw retailer title into a structured spec for one
// product category. Normalize is total: unrecognized parts become
// placeholders, never errors.
type Normalizer interface {
	Category() string
	Rules() domain.RuleSet
	Normalize(title string) domain.ProductSpec
}

// Vendor keys understood by the GPU normalizer. The key decides what the
// capture groups of a chipset pattern mean.
const (
	vendorNVIDIA = "nvidia"
	vendorAMD    = "amd"
	vendorIntel  = "intel"
)

// VRAM outside this range is treated as a parse miss
const (
	minVRAM = 1
	maxVRAM = 128
)

type chipsetPattern struct {
	vendor string
	brand  string
	re     *regexp.Regexp
}

// chipsetMatch is the outcome of running the chipset patterns on a title
type chipsetMatch struct {
	brand   string
	chipset string
	model   string
	variant string
	start   int
	end     int
}

type partnerPattern struct {
	name string
	word *regexp.Regexp
}

// GPUNormalizer parses graphics card titles. It is safe for concurrent use.
type GPUNormalizer struct {
	rules    domain.RuleSet
	cleaner  *TitleCleaner
	chipsets []chipsetPattern
	partners []partnerPattern
	vram     []*regexp.Regexp

	// words caches whole-word patterns of extracted tokens (chipset, model,
	// variant, brand), a small set shared by most titles
	words sync.Map
}

// NewGPUNormalizer compiles the rule set once. Patterns for vendors it does
// not know are logged and skipped.
func NewGPUNormalizer(rules domain.RuleSet) (*GPUNormalizer, error) {
	n := &GPUNormalizer{
		rules:   rules,
		cleaner: NewTitleCleaner(rules.IgnoreTokens),
	}

	for _, p := range rules.ChipsetPatterns {
		vendor := strings.ToLower(strings.TrimSpace(p.Vendor))
		switch vendor {
		case vendorNVIDIA, vendorAMD, vendorIntel:
		default:
			log.Printf("[RULES] Skipping chipset pattern for unknown vendor %q (%s)", p.Vendor, rules.Category)
			continue
		}

		re, err := regexp.Compile(p.ModelExtraction)
		if err != nil {
			return nil, fmt.Errorf("%w: chipset pattern %q: %v", domain.ErrInvalidRules, p.Vendor, err)
		}
		n.chipsets = append(n.chipsets, chipsetPattern{vendor: vendor, brand: p.Brand, re: re})
	}

	for _, partner := range rules.BoardPartners {
		partner = foldDiacritics(strings.ToLower(strings.TrimSpace(partner)))
		if partner != "" {
			n.partners = append(n.partners, partnerPattern{name: partner, word: wordPattern(partner)})
		}
	}

	for _, pattern := range rules.VRAMPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: vram pattern %q: %v", domain.ErrInvalidRules, pattern, err)
		}
		n.vram = append(n.vram, re)
	}

	return n, nil
}

// Category returns the category this normalizer serves
func (n *GPUNormalizer) Category() string {
	return n.rules.Category
}

// Rules returns the rule set the normalizer was built from
func (n *GPUNormalizer) Rules() domain.RuleSet {
	return n.rules
}

// Normalize extracts chipset, model, variant, board partner and VRAM from a
// title. Whatever is left over becomes the sub-brand text.
func (n *GPUNormalizer) Normalize(title string) domain.ProductSpec {
	clean := n.cleaner.Clean(title)

	partner := n.extractBoardPartner(clean)
	keys := domain.KeySpecs{
		Chipset:      domain.Unknown,
		ModelNumber:  domain.Unknown,
		BoardPartner: domain.UnknownPartner,
		VRAM:         n.extractVRAM(clean),
	}
	if partner != nil {
		keys.BoardPartner = strings.ToUpper(partner.name)
	}
	brand := domain.Unknown

	match, ok := n.extractChipset(clean)
	if ok {
		brand = match.brand
		keys.Chipset = match.chipset
		keys.ModelNumber = match.model
		keys.ModelVariant = match.variant
	}
	keys.SubBrandText = n.remainingText(clean, match, ok, partner, keys.VRAM)

	return domain.ProductSpec{
		Category:       n.rules.Category,
		Brand:          brand,
		CanonicalModel: keys.CanonicalName(),
		KeySpecs:       keys,
		RawTitle:       title,
	}
}

// extractChipset tries the vendor patterns in rule order and returns the first hit
func (n *GPUNormalizer) extractChipset(title string) (chipsetMatch, bool) {
	for _, p := range n.chipsets {
		loc := p.re.FindStringSubmatchIndex(title)
		if loc == nil {
			continue
		}
		group := func(i int) string {
			if 2*i+1 >= len(loc) || loc[2*i] < 0 {
				return ""
			}
			return title[loc[2*i]:loc[2*i+1]]
		}

		m := chipsetMatch{brand: p.brand, start: loc[0], end: loc[1]}
		switch p.vendor {
		case vendorNVIDIA:
			m.chipset = group(1)
			m.model = group(2)
			m.variant = group(3)
		case vendorAMD:
			m.chipset = "RX"
			m.model = group(1)
			m.variant = group(2)
		case vendorIntel:
			m.chipset = "ARC"
			m.model = group(1)
		}

		if m.chipset == "" || m.model == "" {
			continue
		}
		if m.brand == "" {
			m.brand = domain.Unknown
		}
		m.chipset = strings.ToUpper(m.chipset)
		m.model = strings.ToUpper(m.model)
		m.variant = strings.ToUpper(collapseSpaces(m.variant))
		return m, true
	}
	return chipsetMatch{}, false
}

// extractBoardPartner returns the first known partner found in the title,
// nil when there is none
func (n *GPUNormalizer) extractBoardPartner(title string) *partnerPattern {
	for i := range n.partners {
		if strings.Contains(title, n.partners[i].name) {
			return &n.partners[i]
		}
	}
	return nil
}

// extractVRAM returns the first plausible memory size in GB, 0 when none
func (n *GPUNormalizer) extractVRAM(title string) int {
	for _, re := range n.vram {
		m := re.FindStringSubmatch(title)
		if len(m) < 2 {
			continue
		}
		vram, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if vram >= minVRAM && vram <= maxVRAM {
			return vram
		}
	}
	return 0
}

// remainingText removes every recognized component from the clean title.
// Memory sizes are only removed when one was accepted.
func (n *GPUNormalizer) remainingText(clean string, match chipsetMatch, matched bool, partner *partnerPattern, vram int) string {
	rest := clean

	if matched {
		rest = rest[:match.start] + " " + rest[match.end:]
		for _, token := range []string{match.chipset, match.model, match.variant, match.brand} {
			rest = n.removeWord(rest, token)
		}
	}

	if partner != nil {
		rest = partner.word.ReplaceAllString(rest, " ")
	}

	if vram > 0 {
		for _, re := range n.vram {
			rest = re.ReplaceAllString(rest, " ")
		}
	}

	return collapseSpaces(rest)
}

// removeWord drops every whole-word occurrence of token, case-insensitively
func (n *GPUNormalizer) removeWord(s, token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" || token == strings.ToLower(domain.Unknown) {
		return s
	}

	re, ok := n.words.Load(token)
	if !ok {
		re, _ = n.words.LoadOrStore(token, wordPattern(token))
	}
	return re.(*regexp.Regexp).ReplaceAllString(s, " ")
}

func wordPattern(token string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
}
