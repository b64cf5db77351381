package dedupe

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-tracker/pkg/money"
)

var fixedNow = func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) }

func record(name string, minor int64, currency string, start string) *repository.Subscription {
	sub := &repository.Subscription{
		ID:           uuid.New(),
		Name:         name,
		AmountMinor:  minor,
		CurrencyCode: currency,
		Frequency:    repository.FrequencyMonthly,
	}
	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			panic(err)
		}
		sub.StartDate = &t
	}
	return sub
}

func fuzzy() *Detector {
	return NewDetector(PolicyFuzzy, money.DefaultConverter(), WithClock(fixedNow))
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"netflix", "netflix", 1},
		{"netflix", "netflx", 6.0 / 7.0},
		{"netflix hd", "netflix hk", 0.9},
		{"netflix premium", "netflix premiun", 14.0 / 15.0},
		{"", "", 1},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, NameSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestFuzzySimilarityBoundary(t *testing.T) {
	tests := []struct {
		name      string
		a, b      string
		duplicate bool
	}{
		{"identical names", "Netflix", "netflix ", true},
		{"one edit in seven is below", "Netflix", "Netflx", false},
		{"exactly 0.9 is not enough", "Netflix HD", "Netflix HK", false},
		{"one edit in fifteen is above", "Netflix Premium", "Netflix Premiun", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := record(tt.a, 1599, "USD", "2024-01-10")
			b := record(tt.b, 1599, "USD", "2024-01-10")

			got := fuzzy().Find([]*repository.Subscription{a, b}, "USD")
			if tt.duplicate {
				assert.Len(t, got, 2)
				assert.Contains(t, got, a.ID)
				assert.Contains(t, got, b.ID)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFuzzyAmountAndDate(t *testing.T) {
	tests := []struct {
		name      string
		a, b      *repository.Subscription
		duplicate bool
	}{
		{
			name:      "amount off by one cent",
			a:         record("Spotify", 1099, "USD", "2024-01-10"),
			b:         record("Spotify", 1100, "USD", "2024-01-10"),
			duplicate: true,
		},
		{
			name:      "amount off by two cents",
			a:         record("Spotify", 1099, "USD", "2024-01-10"),
			b:         record("Spotify", 1101, "USD", "2024-01-10"),
			duplicate: false,
		},
		{
			name:      "same value in another currency",
			a:         record("Spotify", 1000, "USD", "2024-01-10"),
			b:         record("Spotify", 7800, "HKD", "2024-01-10"),
			duplicate: true,
		},
		{
			name:      "different next payment",
			a:         record("Spotify", 1099, "USD", "2024-01-10"),
			b:         record("Spotify", 1099, "USD", "2024-01-11"),
			duplicate: false,
		},
		{
			name:      "different start but same next payment",
			a:         record("Spotify", 1099, "USD", "2024-01-10"),
			b:         record("Spotify", 1099, "USD", "2024-04-10"),
			duplicate: true,
		},
		{
			name:      "both undated",
			a:         record("Spotify", 1099, "USD", ""),
			b:         record("Spotify", 1099, "USD", ""),
			duplicate: true,
		},
		{
			name:      "one undated",
			a:         record("Spotify", 1099, "USD", "2024-01-10"),
			b:         record("Spotify", 1099, "USD", ""),
			duplicate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fuzzy().Find([]*repository.Subscription{tt.a, tt.b}, "USD")
			if tt.duplicate {
				assert.Len(t, got, 2)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFindSkipsMarkedAndUnconvertible(t *testing.T) {
	a := record("Netflix", 1599, "USD", "2024-01-10")
	b := record("Netflix", 1599, "USD", "2024-01-10")
	b.NotDuplicate = true
	c := record("Netflix", 1599, "JPY", "2024-01-10")

	assert.Empty(t, fuzzy().Find([]*repository.Subscription{a, b, c}, "USD"))
}

func TestFindThreeWay(t *testing.T) {
	a := record("Netflix", 1599, "USD", "2024-01-10")
	b := record("Netflix", 1599, "USD", "2024-02-10")
	c := record("Disney+", 799, "USD", "2024-01-10")
	d := record("Netflix", 1599, "USD", "2024-03-10")

	got := fuzzy().Find([]*repository.Subscription{a, b, c, d}, "USD")
	require.Len(t, got, 3)
	assert.NotContains(t, got, c.ID)
}

func TestStrictPolicy(t *testing.T) {
	strict := NewDetector(PolicyStrict, money.DefaultConverter(), WithClock(fixedNow))

	a := record("Netflix", 1599, "USD", "2024-01-10")
	b := record(" NETFLIX", 1599, "USD", "2024-03-22")
	got := strict.Find([]*repository.Subscription{a, b}, "USD")
	assert.Len(t, got, 2, "strict ignores dates")

	b.Notes = "family plan"
	assert.Empty(t, strict.Find([]*repository.Subscription{a, b}, "USD"), "notes differ")

	c := record("Netflx", 1599, "USD", "2024-01-10")
	assert.Empty(t, strict.Find([]*repository.Subscription{a, c}, "USD"), "names must be equal")
}

func TestAmountToleranceBoundary(t *testing.T) {
	strict := NewDetector(PolicyStrict, money.DefaultConverter(), WithClock(fixedNow))

	a := record("Netflix", 1599, "USD", "2024-01-10")
	b := record("Netflix", 1600, "USD", "2024-01-10")
	assert.Empty(t, strict.Find([]*repository.Subscription{a, b}, "USD"), "strict needs a gap below 0.01")
	assert.Len(t, fuzzy().Find([]*repository.Subscription{a, b}, "USD"), 2, "fuzzy accepts a gap of exactly 0.01")

	c := record("Netflix", 1601, "USD", "2024-01-10")
	assert.Empty(t, fuzzy().Find([]*repository.Subscription{a, c}, "USD"))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("exact")
	assert.Error(t, err)

	assert.Equal(t, PolicyFuzzy, NewDetector("", money.DefaultConverter()).Policy())
}
