// Package recurrence flags statement transactions that look like repeating
// charges: the same merchant billed a similar amount more than once.
//
// Grouping is greedy and order dependent. Earlier transactions claim later
// ones, so reordering the input can change the groups.
package recurrence

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
)

// Frequency is the billing cadence suggested for a transaction.
type Frequency string

const (
	FrequencyOneOff  Frequency = "one-off"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

const (
	// minSimilarity is the word-overlap ratio a pair must exceed.
	minSimilarity = 0.5
	// maxAmountDiff is the relative amount difference a pair must stay under.
	maxAmountDiff = 0.15
	// minWordLen is the shortest word counted towards similarity.
	minWordLen = 3
	// yearlyGapDays is the mean gap between charges above which a group is yearly.
	yearlyGapDays = 200
)

// subscriptionKeywords raise the confidence of a charge seen only once.
var subscriptionKeywords = []string{
	"netflix", "spotify", "apple", "amazon", "prime", "hulu", "disney",
	"youtube", "premium", "subscription", "membership", "monthly", "annual",
	"adobe", "microsoft", "office", "dropbox", "icloud", "google", "gym",
	"fitness", "streaming", "music", "video", "cloud", "storage",
}

var nonWordChars = regexp.MustCompile(`[^a-z0-9\s]`)

// DetectedSubscription is a transaction annotated for the import screen.
type DetectedSubscription struct {
	parser.Transaction
	Name        string    `json:"name"`
	Frequency   Frequency `json:"frequency"`
	Confidence  float64   `json:"confidence"`
	IsRecurring bool      `json:"is_recurring"`
	// GroupID is shared by every member of a group.
	GroupID int `json:"group_id"`
	// Transactions is the whole group, in statement order. It is shared
	// between members and must not be modified.
	Transactions []parser.Transaction `json:"transactions"`
}

// Detect annotates every transaction, in input order. Members of a group of
// two or more are recurring and default to a monthly cadence, or yearly when
// their charges are on average more than 200 days apart; the rest are
// one-off. The result depends only on txs.
func Detect(txs []parser.Transaction) []DetectedSubscription {
	out := make([]DetectedSubscription, len(txs))

	for gid, members := range Group(txs) {
		group := make([]parser.Transaction, len(members))
		for k, idx := range members {
			group[k] = txs[idx]
		}

		recurring := len(group) >= 2
		frequency := FrequencyOneOff
		if recurring {
			frequency = cadence(group)
		}
		confidence := Confidence(group)

		for _, idx := range members {
			out[idx] = DetectedSubscription{
				Transaction:  txs[idx],
				Name:         displayName(txs[idx]),
				Frequency:    frequency,
				Confidence:   confidence,
				IsRecurring:  recurring,
				GroupID:      gid,
				Transactions: group,
			}
		}
	}

	return out
}

// Group partitions transaction indices greedily. Each ungrouped transaction
// starts a group and claims every later ungrouped transaction similar to it.
// Every index appears in exactly one group.
func Group(txs []parser.Transaction) [][]int {
	words := make([][]string, len(txs))
	for i, tx := range txs {
		words[i] = normalizeWords(tx.Description)
	}

	used := make([]bool, len(txs))
	var groups [][]int

	for i := range txs {
		if used[i] {
			continue
		}
		used[i] = true
		group := []int{i}

		for j := i + 1; j < len(txs); j++ {
			if used[j] {
				continue
			}
			if wordOverlap(words[i], words[j]) > minSimilarity &&
				amountDifference(txs[i].Amount, txs[j].Amount) < maxAmountDiff {
				group = append(group, j)
				used[j] = true
			}
		}
		groups = append(groups, group)
	}

	return groups
}

// Similarity is the fraction of a's words of at least three characters that
// also appear in b, after lower-casing and removing punctuation.
func Similarity(a, b string) float64 {
	return wordOverlap(normalizeWords(a), normalizeWords(b))
}

// Confidence scores a group: 0.9 for three or more charges, 0.7 for two,
// 0.6 for a single charge from a known subscription merchant, else 0.4.
func Confidence(group []parser.Transaction) float64 {
	switch {
	case len(group) >= 3:
		return 0.9
	case len(group) == 2:
		return 0.7
	case len(group) == 1 && hasSubscriptionKeyword(group[0].Description):
		return 0.6
	default:
		return 0.4
	}
}

func wordOverlap(a, b []string) float64 {
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}

	counted, matched := 0, 0
	for _, w := range a {
		if len(w) < minWordLen {
			continue
		}
		counted++
		if _, ok := set[w]; ok {
			matched++
		}
	}
	if counted == 0 {
		return 0
	}
	return float64(matched) / float64(counted)
}

// amountDifference is |a-b|/a; a non-positive a never matches.
func amountDifference(a, b decimal.Decimal) float64 {
	if !a.IsPositive() {
		return 1
	}
	diff, _ := a.Sub(b).Abs().Div(a).Float64()
	return diff
}

func normalizeWords(s string) []string {
	return strings.Fields(nonWordChars.ReplaceAllString(strings.ToLower(s), ""))
}

func hasSubscriptionKeyword(description string) bool {
	normalized := strings.Join(normalizeWords(description), " ")
	for _, kw := range subscriptionKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

func cadence(group []parser.Transaction) Frequency {
	dates := make([]time.Time, len(group))
	for i, tx := range group {
		dates[i] = tx.Date.Time
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })

	total := dates[len(dates)-1].Sub(dates[0]).Hours() / 24
	if total/float64(len(dates)-1) > yearlyGapDays {
		return FrequencyYearly
	}
	return FrequencyMonthly
}

func displayName(tx parser.Transaction) string {
	if tx.Merchant != "" {
		return tx.Merchant
	}
	return tx.Description
}
