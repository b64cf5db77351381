// Package normalizer cleans statement descriptions into display names and
// assigns each transaction a category.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
)

// fallbackNameRunes is how much of the raw description is kept when cleaning
// leaves nothing.
const fallbackNameRunes = 30

var (
	// referenceDigits are long digit runs such as terminal or order numbers.
	referenceDigits = regexp.MustCompile(`\d{5,}`)
	// dashCode matches tokens like "866-579-7172" or "AB12-CD34".
	dashCode        = regexp.MustCompile(`^[A-Za-z0-9]+(?:-[A-Za-z0-9]+)+$`)
	trailingNumeric = regexp.MustCompile(`^#?\d+$`)
)

// countryCodes are issuer suffixes appended after the merchant's city.
var countryCodes = map[string]bool{
	"US": true, "USA": true, "HK": true, "HKG": true, "GB": true, "GBR": true,
	"SG": true, "CA": true, "AU": true, "IE": true, "NL": true, "LU": true,
}

// MerchantInfo contains normalized merchant information
type MerchantInfo struct {
	OriginalName   string `json:"original_name"`
	NormalizedName string `json:"normalized_name"`
	Category       string `json:"category"`
}

// Normalizer turns raw descriptions into merchant names and categories.
// It is safe for concurrent use.
type Normalizer struct {
	categories *keywordMatcher
	hints      *keywordMatcher
	aliases    *keywordMatcher
}

// NewNormalizer creates a normalizer with the built-in keyword tables.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		categories: newKeywordMatcher(keywordsOf(categoryTable)),
		hints:      newKeywordMatcher(keywordsOf(hintTable)),
		aliases:    newKeywordMatcher(keywordsOf(merchantAliases)),
	}
}

// Normalize cleans a description and categorises it. rawCategory is the
// statement's own category column, if any.
func (n *Normalizer) Normalize(description, rawCategory string) MerchantInfo {
	return MerchantInfo{
		OriginalName:   description,
		NormalizedName: n.MerchantName(description),
		Category:       n.Category(description, rawCategory),
	}
}

// Apply sets Merchant and Category on every transaction in place.
func (n *Normalizer) Apply(txs []parser.Transaction) {
	for i := range txs {
		info := n.Normalize(txs[i].Description, txs[i].Category)
		txs[i].Merchant = info.NormalizedName
		txs[i].Category = info.Category
	}
}

// Category maps a hint through the hint table, then the description through
// the category table, and defaults to Other.
func (n *Normalizer) Category(description, rawCategory string) string {
	if strings.TrimSpace(rawCategory) != "" {
		if idx, ok := n.hints.first(rawCategory); ok {
			return hintTable[idx].label
		}
	}
	if idx, ok := n.categories.first(description); ok {
		return categoryTable[idx].label
	}
	return CategoryOther
}

// MerchantName returns the display name of a description: a known alias
// when one matches, otherwise the first three cleaned words in title case.
func (n *Normalizer) MerchantName(description string) string {
	cleaned := cleanMerchantName(description)

	if idx, ok := n.aliases.first(cleaned); ok {
		return merchantAliases[idx].label
	}

	words := strings.Fields(cleaned)
	if len(words) > 3 {
		words = words[:3]
	}
	name := titleCase(strings.Join(words, " "))
	if name == "" {
		return truncateRunes(strings.TrimSpace(description), fallbackNameRunes)
	}
	return name
}

// cleanMerchantName removes reference numbers, codes and country suffixes.
func cleanMerchantName(raw string) string {
	s := referenceDigits.ReplaceAllString(raw, " ")
	s = strings.ReplaceAll(s, "*", " ")

	var words []string
	for _, w := range strings.Fields(s) {
		if dashCode.MatchString(w) && countDigits(w) >= 2 {
			continue
		}
		words = append(words, w)
	}

	for len(words) > 0 {
		last := words[len(words)-1]
		if trailingNumeric.MatchString(last) || countryCodes[last] {
			words = words[:len(words)-1]
			continue
		}
		break
	}

	return strings.Join(words, " ")
}

// titleCase lower-cases then capitalises each word. A Caser is stateful, so
// one is made per call.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
