package usecase

import (
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/pricetracker/backend/internal/domain"
)

// NormalizerFactory builds the normalizer of one category from its rules
type NormalizerFactory func(rules domain.RuleSet) (Normalizer, error)

// normalizerFactories lists the categories the engine knows how to parse.
// A new category needs an entry here plus a rule file.
var normalizerFactories = map[string]NormalizerFactory{
	"gpu": func(rules domain.RuleSet) (Normalizer, error) {
		return NewGPUNormalizer(rules)
	},
}

// NormalizerRegistry maps a category to its normalizer
type NormalizerRegistry struct {
	mu          sync.RWMutex
	normalizers map[string]Normalizer
}

// NewRegistry builds a normalizer for every rule set that has a factory.
// Rule sets without one are logged and skipped.
func NewRegistry(rules map[string]domain.RuleSet) (*NormalizerRegistry, error) {
	r := &NormalizerRegistry{normalizers: make(map[string]Normalizer, len(rules))}

	categories := make([]string, 0, len(rules))
	for category := range rules {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		factory, ok := normalizerFactories[category]
		if !ok {
			log.Printf("[RULES] No normalizer for category %q, rules ignored", category)
			continue
		}
		n, err := factory(rules[category])
		if err != nil {
			return nil, err
		}
		r.Register(n)
	}

	return r, nil
}

// Register adds or replaces the normalizer of n.Category()
func (r *NormalizerRegistry) Register(n Normalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalizers[normalizeCategory(n.Category())] = n
}

// Get returns the normalizer of a category
func (r *NormalizerRegistry) Get(category string) (Normalizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.normalizers[normalizeCategory(category)]
	return n, ok
}

// Categories returns the registered categories in sorted order
func (r *NormalizerRegistry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]string, 0, len(r.normalizers))
	for category := range r.normalizers {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
