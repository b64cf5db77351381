// Package dedupe flags subscription records that probably describe the same
// charge twice.
package dedupe

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/billing"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
)

// Policy selects the duplicate rule.
type Policy string

const (
	// PolicyFuzzy pairs records with near-identical names, equal monthly
	// cost and the same next payment date.
	PolicyFuzzy Policy = "fuzzy"
	// PolicyStrict pairs records with equal names, equal notes and equal
	// monthly cost.
	PolicyStrict Policy = "strict"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFuzzy, PolicyStrict:
		return p, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q", s)
}

const (
	// minNameSimilarity must be strictly exceeded under the fuzzy policy.
	minNameSimilarity = 0.9
)

// amountTolerance bounds the monthly cost difference between duplicates.
// Fuzzy matching includes the bound, strict matching excludes it.
var amountTolerance = decimal.RequireFromString("0.01")

// Detector finds duplicate records.
type Detector struct {
	policy    Policy
	converter billing.Converter
	now       func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock sets the clock used for next payment dates.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDetector creates a detector. An empty policy means PolicyFuzzy.
func NewDetector(policy Policy, converter billing.Converter, opts ...Option) *Detector {
	if policy == "" {
		policy = PolicyFuzzy
	}
	d := &Detector{policy: policy, converter: converter, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the active rule.
func (d *Detector) Policy() Policy {
	return d.policy
}

// candidate holds the per-record values compared pairwise.
type candidate struct {
	id      uuid.UUID
	name    string
	notes   string
	monthly decimal.Decimal
	next    time.Time
	hasNext bool
}

// Find returns the IDs of every record that is a duplicate of another.
// Records marked NotDuplicate are never paired, and records whose currency
// cannot be converted to displayCurrency are left out.
func (d *Detector) Find(records []*repository.Subscription, displayCurrency string) map[uuid.UUID]struct{} {
	today := billing.Today(d.now())

	candidates := make([]candidate, 0, len(records))
	for _, rec := range records {
		if rec.NotDuplicate {
			continue
		}
		monthly, err := billing.MonthlyValue(rec, displayCurrency, d.converter)
		if err != nil {
			continue
		}
		next, ok := billing.NextPayment(rec, today)
		candidates = append(candidates, candidate{
			id:      rec.ID,
			name:    strings.ToLower(strings.TrimSpace(rec.Name)),
			notes:   strings.ToLower(strings.TrimSpace(rec.Notes)),
			monthly: monthly,
			next:    next,
			hasNext: ok,
		})
	}

	duplicates := make(map[uuid.UUID]struct{})
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if d.match(candidates[i], candidates[j]) {
				duplicates[candidates[i].id] = struct{}{}
				duplicates[candidates[j].id] = struct{}{}
			}
		}
	}
	return duplicates
}

func (d *Detector) match(a, b candidate) bool {
	diff := a.monthly.Sub(b.monthly).Abs()

	if d.policy == PolicyStrict {
		return diff.LessThan(amountTolerance) && a.name == b.name && a.notes == b.notes
	}

	if diff.GreaterThan(amountTolerance) {
		return false
	}

	if a.hasNext != b.hasNext || (a.hasNext && !a.next.Equal(b.next)) {
		return false
	}
	return NameSimilarity(a.name, b.name) > minNameSimilarity
}

// NameSimilarity is 1 - editDistance/maxLen over runes. Two empty names are
// identical.
func NameSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-dist) / float64(maxLen)
}
