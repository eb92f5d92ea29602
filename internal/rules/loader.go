// Package rules loads and validates the per-category rule documents that
// drive title normalization and grouping.
package rules

import (
	"bytes"
	"embed"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pricetracker/backend/internal/domain"
	"github.com/spf13/viper"
)

//go:embed defaults/*.json
var defaultRules embed.FS

// weightTolerance absorbs float noise in hand-written weights like 0.7 + 0.3
const weightTolerance = 1e-9

var supportedExtensions = map[string]string{
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
}

// Load reads a single rule document (JSON or YAML).
// The category defaults to the file name when the document omits it.
func Load(path string) (domain.RuleSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return domain.RuleSet{}, fmt.Errorf("error reading rule file %s: %w", path, err)
	}

	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return decode(v, path, fallback)
}

// LoadDir loads every rule document in dir, keyed by category
func LoadDir(dir string) (map[string]domain.RuleSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading rules dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	sets := make(map[string]domain.RuleSet, len(names))
	for _, name := range names {
		rs, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if err := add(sets, rs, name); err != nil {
			return nil, err
		}
	}

	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: no rule files found in %s", domain.ErrInvalidRules, dir)
	}
	return sets, nil
}

// Defaults returns the rule sets shipped with the binary
func Defaults() (map[string]domain.RuleSet, error) {
	entries, err := defaultRules.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded rules: %w", err)
	}

	sets := make(map[string]domain.RuleSet, len(entries))
	for _, entry := range entries {
		data, err := defaultRules.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("error reading embedded rule %s: %w", entry.Name(), err)
		}

		v := viper.New()
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("error parsing embedded rule %s: %w", entry.Name(), err)
		}

		rs, err := decode(v, entry.Name(), strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		if err := add(sets, rs, entry.Name()); err != nil {
			return nil, err
		}
	}
	return sets, nil
}

// LoadOrDefaults loads dir when set, the embedded rules otherwise
func LoadOrDefaults(dir string) (map[string]domain.RuleSet, error) {
	if dir == "" {
		log.Printf("[RULES] No rules dir configured, using embedded defaults")
		return Defaults()
	}
	log.Printf("[RULES] Loading rules from %s", dir)
	return LoadDir(dir)
}

func add(sets map[string]domain.RuleSet, rs domain.RuleSet, source string) error {
	if _, dup := sets[rs.Category]; dup {
		return fmt.Errorf("%w: category %q defined twice (%s)", domain.ErrInvalidRules, rs.Category, source)
	}
	sets[rs.Category] = rs
	log.Printf("[RULES] Loaded %q rules v%s from %s (%d chipset patterns, %d partners)",
		rs.Category, rs.Version, source, len(rs.ChipsetPatterns), len(rs.BoardPartners))
	return nil
}

func decode(v *viper.Viper, source, fallbackCategory string) (domain.RuleSet, error) {
	var rs domain.RuleSet
	if err := v.Unmarshal(&rs); err != nil {
		return domain.RuleSet{}, fmt.Errorf("unable to decode rule file %s: %w", source, err)
	}

	if rs.Category == "" {
		rs.Category = fallbackCategory
	}
	rs.Category = strings.ToLower(strings.TrimSpace(rs.Category))

	if err := Validate(rs); err != nil {
		return domain.RuleSet{}, fmt.Errorf("%s: %w", source, err)
	}
	return rs, nil
}

// Validate checks that a rule set can be compiled and can ever group two products
func Validate(rs domain.RuleSet) error {
	if rs.Category == "" {
		return fmt.Errorf("%w: category is required", domain.ErrInvalidRules)
	}

	if len(rs.ChipsetPatterns) == 0 {
		return fmt.Errorf("%w: at least one chipset pattern is required", domain.ErrInvalidRules)
	}
	for i, p := range rs.ChipsetPatterns {
		if p.Vendor == "" {
			return fmt.Errorf("%w: chipset pattern %d has no vendor", domain.ErrInvalidRules, i)
		}
		re, err := regexp.Compile(p.ModelExtraction)
		if err != nil {
			return fmt.Errorf("%w: chipset pattern %q: %v", domain.ErrInvalidRules, p.Vendor, err)
		}
		if re.NumSubexp() == 0 {
			return fmt.Errorf("%w: chipset pattern %q has no capture group", domain.ErrInvalidRules, p.Vendor)
		}
	}

	for _, pattern := range rs.VRAMPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: vram pattern %q: %v", domain.ErrInvalidRules, pattern, err)
		}
		if re.NumSubexp() == 0 {
			return fmt.Errorf("%w: vram pattern %q has no capture group", domain.ErrInvalidRules, pattern)
		}
	}

	for _, partner := range rs.BoardPartners {
		if strings.TrimSpace(partner) == "" {
			return fmt.Errorf("%w: empty board partner", domain.ErrInvalidRules)
		}
	}
	for _, token := range rs.IgnoreTokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("%w: empty ignore token", domain.ErrInvalidRules)
		}
	}

	w := rs.SimilarityWeights
	if w.CoreMatch < 0 || w.SubBrandFuzzy < 0 {
		return fmt.Errorf("%w: similarity weights must be non-negative", domain.ErrInvalidRules)
	}
	// identical titles must score exactly 1
	if math.Abs(w.Sum()-1) > weightTolerance {
		return fmt.Errorf("%w: similarity weights sum to %.3f, must be 1", domain.ErrInvalidRules, w.Sum())
	}

	t := rs.GroupingScoreThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: grouping threshold %.3f outside [0,1]", domain.ErrInvalidRules, t)
	}

	return nil
}
