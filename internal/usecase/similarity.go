package usecase

import (
	"fmt"

	"github.com/pricetracker/backend/internal/domain"
)

// Fuzzy scores used when one or both titles have no sub-brand text
const (
	fuzzyBothEmpty = 1.0
	fuzzyOneEmpty  = 0.5
)

// Similarity scores two specs in [0,1]. Specs of different categories or
// with different core identity score 0; otherwise the score is the core
// weight plus the weighted fuzzy similarity of the sub-brand text.
func Similarity(a, b domain.ProductSpec, w domain.SimilarityWeights) float64 {
	if a.Category != b.Category || a.KeySpecs.CoreKey() != b.KeySpecs.CoreKey() {
		return 0
	}
	return weightedScore(a, b, w)
}

// ShouldGroup decides whether two specs are the same commercial product
func ShouldGroup(a, b domain.ProductSpec, rules domain.RuleSet) domain.GroupDecision {
	if a.Category != b.Category {
		return domain.GroupDecision{
			Decision: domain.DecisionSeparate,
			Reason:   fmt.Sprintf("different categories (%s, %s)", a.Category, b.Category),
		}
	}

	coreA, coreB := a.KeySpecs.CoreKey(), b.KeySpecs.CoreKey()
	if coreA != coreB {
		return domain.GroupDecision{
			Decision: domain.DecisionSeparate,
			Reason:   "core specs differ: " + coreDifference(coreA, coreB),
		}
	}

	score := weightedScore(a, b, rules.SimilarityWeights)
	if score >= rules.GroupingScoreThreshold {
		return domain.GroupDecision{
			Decision:   domain.DecisionGroup,
			Confidence: score,
			Reason:     "same core product",
		}
	}

	return domain.GroupDecision{
		Decision:   domain.DecisionSeparate,
		Confidence: score,
		Reason:     fmt.Sprintf("similarity %.2f below threshold %.2f", score, rules.GroupingScoreThreshold),
	}
}

// weightedScore assumes the core match already holds
func weightedScore(a, b domain.ProductSpec, w domain.SimilarityWeights) float64 {
	score := w.CoreMatch + w.SubBrandFuzzy*subBrandSimilarity(a.KeySpecs.SubBrandText, b.KeySpecs.SubBrandText)
	return min(score, 1.0)
}

func subBrandSimilarity(a, b string) float64 {
	switch {
	case a == "" && b == "":
		return fuzzyBothEmpty
	case a == "" || b == "":
		return fuzzyOneEmpty
	default:
		return editRatio(a, b)
	}
}

// editRatio is 1 - levenshtein(a, b) / max(len(a), len(b)), over runes
func editRatio(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(a, b))/float64(longest)
}

// editDistance calculates the Levenshtein distance between two strings
func editDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

func coreDifference(a, b domain.CoreKey) string {
	switch {
	case a.Chipset != b.Chipset:
		return fmt.Sprintf("chipset %s vs %s", a.Chipset, b.Chipset)
	case a.ModelNumber != b.ModelNumber:
		return fmt.Sprintf("model %s vs %s", a.ModelNumber, b.ModelNumber)
	case a.ModelVariant != b.ModelVariant:
		return fmt.Sprintf("variant %q vs %q", a.ModelVariant, b.ModelVariant)
	case a.BoardPartner != b.BoardPartner:
		return fmt.Sprintf("board partner %s vs %s", a.BoardPartner, b.BoardPartner)
	default:
		return fmt.Sprintf("vram %d GB vs %d GB", a.VRAM, b.VRAM)
	}
}
