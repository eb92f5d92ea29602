package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Compiled regex patterns for title cleaning
var (
	// Matches "(...)" blocks such as "(PCIe 4.0)" or "(Exclusivité Web)"
	parenthesizedPattern = regexp.MustCompile(`\([^()]*\)`)

	// Unbalanced parentheses left behind by the pattern above
	strayParenPattern = regexp.MustCompile(`[()]`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// TitleCleaner reduces a retailer title to the lower-case, accent-free form
// the rule patterns are written against.
type TitleCleaner struct {
	ignore *regexp.Regexp
}

// NewTitleCleaner compiles the ignore tokens into a single whole-word pattern.
// Tokens are matched after lower-casing and diacritic folding.
func NewTitleCleaner(ignoreTokens []string) *TitleCleaner {
	tokens := make([]string, 0, len(ignoreTokens))
	for _, token := range ignoreTokens {
		token = foldDiacritics(strings.ToLower(strings.TrimSpace(token)))
		if token != "" {
			tokens = append(tokens, regexp.QuoteMeta(token))
		}
	}

	c := &TitleCleaner{}
	if len(tokens) == 0 {
		return c
	}

	// Longest first so multi-word tokens win over their own prefixes
	sort.SliceStable(tokens, func(i, j int) bool {
		return len(tokens[i]) > len(tokens[j])
	})
	c.ignore = regexp.MustCompile(`\b(?:` + strings.Join(tokens, "|") + `)\b`)
	return c
}

// Clean strips parenthesized content, lower-cases, folds diacritics, drops
// ignore tokens and collapses whitespace.
func (c *TitleCleaner) Clean(title string) string {
	cleaned := parenthesizedPattern.ReplaceAllString(title, " ")
	cleaned = strayParenPattern.ReplaceAllString(cleaned, " ")
	cleaned = foldDiacritics(strings.ToLower(cleaned))

	if c.ignore != nil {
		cleaned = c.ignore.ReplaceAllString(cleaned, " ")
	}

	return collapseSpaces(cleaned)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// foldDiacritics turns "exclusivité" into "exclusivite".
// Transformers carry state, so a fresh chain is built per call.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
