package recurrence

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
)

func tx(date, desc, amount string) parser.Transaction {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return parser.Transaction{
		Date:        parser.Date{Time: d},
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
	}
}

func TestDetectStatementScenario(t *testing.T) {
	txs := []parser.Transaction{
		tx("2024-03-01", "Netflix", "15.99"),
		tx("2024-03-02", "Random Shop", "42.00"),
		tx("2024-04-01", "Netflix", "15.99"),
	}
	txs[0].Merchant = "Netflix"
	txs[2].Merchant = "Netflix"

	got := Detect(txs)
	require.Len(t, got, 3)

	assert.True(t, got[0].IsRecurring)
	assert.Equal(t, FrequencyMonthly, got[0].Frequency)
	assert.Equal(t, 0.7, got[0].Confidence)
	assert.Equal(t, "Netflix", got[0].Name)
	assert.Len(t, got[0].Transactions, 2)

	assert.False(t, got[1].IsRecurring)
	assert.Equal(t, FrequencyOneOff, got[1].Frequency)
	assert.Equal(t, 0.4, got[1].Confidence)
	assert.Equal(t, "Random Shop", got[1].Name)

	assert.True(t, got[2].IsRecurring)
	assert.Equal(t, got[0].GroupID, got[2].GroupID)
	assert.NotEqual(t, got[0].GroupID, got[1].GroupID)
	assert.Equal(t, "2024-04-01", got[2].Date.String())
}

func TestGroupThresholds(t *testing.T) {
	tests := []struct {
		name      string
		a, b      parser.Transaction
		wantGroup bool
	}{
		{
			name:      "same merchant same amount",
			a:         tx("2024-01-05", "SPOTIFY USA", "10.99"),
			b:         tx("2024-02-05", "SPOTIFY USA", "10.99"),
			wantGroup: true,
		},
		{
			name:      "amount within fifteen percent",
			a:         tx("2024-01-05", "City Power Bill", "100.00"),
			b:         tx("2024-02-05", "City Power Bill", "114.00"),
			wantGroup: true,
		},
		{
			name:      "amount at fifteen percent",
			a:         tx("2024-01-05", "City Power Bill", "100.00"),
			b:         tx("2024-02-05", "City Power Bill", "115.00"),
			wantGroup: false,
		},
		{
			name:      "half the words is not enough",
			a:         tx("2024-01-05", "Apple Store", "9.99"),
			b:         tx("2024-02-05", "Apple Music", "9.99"),
			wantGroup: false,
		},
		{
			name:      "short words ignored",
			a:         tx("2024-01-05", "AB CD Netflix", "15.99"),
			b:         tx("2024-02-05", "Netflix", "15.99"),
			wantGroup: true,
		},
		{
			name:      "punctuation removed before comparing",
			a:         tx("2024-01-05", "NETFLIX.COM", "15.99"),
			b:         tx("2024-02-05", "netflixcom", "15.99"),
			wantGroup: true,
		},
		{
			name:      "only short words never match",
			a:         tx("2024-01-05", "AB", "5.00"),
			b:         tx("2024-02-05", "AB", "5.00"),
			wantGroup: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Group([]parser.Transaction{tt.a, tt.b})
			if tt.wantGroup {
				assert.Equal(t, [][]int{{0, 1}}, groups)
			} else {
				assert.Equal(t, [][]int{{0}, {1}}, groups)
			}
		})
	}
}

func TestGroupIsOrderDependent(t *testing.T) {
	// The middle charge is within 15% of the first but the third is not,
	// so the first claims the second and the third is left alone.
	txs := []parser.Transaction{
		tx("2024-01-01", "Cloud Backup", "10.00"),
		tx("2024-02-01", "Cloud Backup", "11.00"),
		tx("2024-03-01", "Cloud Backup", "12.00"),
	}
	assert.Equal(t, [][]int{{0, 1}, {2}}, Group(txs))

	reordered := []parser.Transaction{txs[1], txs[0], txs[2]}
	assert.Equal(t, [][]int{{0, 1, 2}}, Group(reordered))
}

func TestGroupPartitionsEveryTransaction(t *testing.T) {
	faker := gofakeit.New(7)
	txs := randomTransactions(faker, 60)

	seen := make(map[int]int)
	for _, group := range Group(txs) {
		require.NotEmpty(t, group)
		for _, idx := range group {
			seen[idx]++
		}
	}
	require.Len(t, seen, len(txs))
	for idx, count := range seen {
		assert.Equal(t, 1, count, "index %d grouped %d times", idx, count)
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	faker := gofakeit.New(42)
	txs := randomTransactions(faker, 40)

	first := Detect(txs)
	second := Detect(txs)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].IsRecurring, second[i].IsRecurring)
		assert.Equal(t, first[i].GroupID, second[i].GroupID)
		assert.Equal(t, first[i].Frequency, second[i].Frequency)
	}
}

func TestFrequency(t *testing.T) {
	yearly := Detect([]parser.Transaction{
		tx("2023-02-01", "Annual Domain Renewal", "12.00"),
		tx("2024-02-01", "Annual Domain Renewal", "12.00"),
	})
	assert.Equal(t, FrequencyYearly, yearly[0].Frequency)
	assert.True(t, yearly[0].IsRecurring)

	monthly := Detect([]parser.Transaction{
		tx("2024-03-01", "Gym Membership", "50.00"),
		tx("2024-01-01", "Gym Membership", "50.00"),
		tx("2024-02-01", "Gym Membership", "50.00"),
	})
	assert.Equal(t, FrequencyMonthly, monthly[0].Frequency)
	assert.Equal(t, 0.9, monthly[0].Confidence)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.6, Confidence([]parser.Transaction{tx("2024-01-01", "YOUTUBE PREMIUM", "11.99")}))
	assert.Equal(t, 0.4, Confidence([]parser.Transaction{tx("2024-01-01", "Corner Bakery", "4.50")}))
	assert.Equal(t, 0.4, Confidence(nil))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("Netflix", "NETFLIX"), 1e-9)
	assert.InDelta(t, 0.5, Similarity("Apple Store", "Apple Music"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("", "Netflix"), 1e-9)
}

func TestDetectEmpty(t *testing.T) {
	assert.Empty(t, Detect(nil))
}

func randomTransactions(faker *gofakeit.Faker, n int) []parser.Transaction {
	merchants := []string{"Netflix", "Spotify Premium", "Corner Bakery", "Metro Gym", "Cloud Storage Plan"}
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)

	txs := make([]parser.Transaction, n)
	for i := range txs {
		desc := merchants[faker.Number(0, len(merchants)-1)]
		if faker.Bool() {
			desc = faker.Company()
		}
		txs[i] = parser.Transaction{
			Date:        parser.Date{Time: faker.DateRange(start, end).Truncate(24 * time.Hour)},
			Description: desc,
			Amount:      decimal.NewFromFloat(faker.Price(1, 200)).Round(2),
			Currency:    "USD",
		}
	}
	return txs
}
