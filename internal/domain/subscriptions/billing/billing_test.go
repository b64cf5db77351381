package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-tracker/pkg/money"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func TestMonthlyAmount(t *testing.T) {
	tests := []struct {
		frequency repository.Frequency
		amount    string
		want      string
	}{
		{repository.FrequencyDaily, "1.00", "30"},
		{repository.FrequencyWeekly, "10.00", "40"},
		{repository.FrequencyMonthly, "15.99", "15.99"},
		{repository.FrequencyYearly, "120.00", "10"},
		{repository.FrequencyOneOff, "99.00", "99"},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			got := MonthlyAmount(decimal.RequireFromString(tt.amount), tt.frequency)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestMonthlyValueConverts(t *testing.T) {
	sub := &repository.Subscription{AmountMinor: 12000, CurrencyCode: "USD", Frequency: repository.FrequencyYearly}

	got, err := MonthlyValue(sub, "HKD", money.DefaultConverter())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("78").Equal(got), "got %s", got)

	sub.CurrencyCode = "JPY"
	_, err = MonthlyValue(sub, "HKD", money.DefaultConverter())
	assert.ErrorIs(t, err, money.ErrUnsupportedCurrency)
}

func TestNextPaymentDate(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		frequency repository.Frequency
		today     string
		want      string
	}{
		{"one-off returns start", "2024-01-10", repository.FrequencyOneOff, "2024-06-01", "2024-01-10"},
		{"future start returns start", "2024-07-01", repository.FrequencyMonthly, "2024-06-01", "2024-07-01"},
		{"start today", "2024-06-01", repository.FrequencyWeekly, "2024-06-01", "2024-06-01"},
		{"daily", "2024-01-01", repository.FrequencyDaily, "2024-06-15", "2024-06-15"},
		{"weekly exact", "2024-06-01", repository.FrequencyWeekly, "2024-06-15", "2024-06-15"},
		{"weekly rounds up", "2024-06-01", repository.FrequencyWeekly, "2024-06-16", "2024-06-22"},
		{"monthly", "2024-01-15", repository.FrequencyMonthly, "2024-06-01", "2024-06-15"},
		{"monthly on the day", "2024-01-15", repository.FrequencyMonthly, "2024-06-15", "2024-06-15"},
		{"monthly across years", "2022-11-20", repository.FrequencyMonthly, "2024-02-21", "2024-03-20"},
		{"monthly from the 31st", "2024-01-31", repository.FrequencyMonthly, "2024-03-15", "2024-03-31"},
		{"yearly", "2020-02-10", repository.FrequencyYearly, "2024-03-01", "2025-02-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPaymentDate(date(tt.start), tt.frequency, date(tt.today))
			assert.Equal(t, tt.want, got.Format(time.DateOnly))
		})
	}
}

func TestNextPayment(t *testing.T) {
	today := date("2024-06-01")

	_, ok := NextPayment(&repository.Subscription{Frequency: repository.FrequencyMonthly}, today)
	assert.False(t, ok, "undated")

	_, ok = NextPayment(&repository.Subscription{StartDate: datePtr("2024-01-01"), Frequency: repository.FrequencyMonthly, Cancelled: true}, today)
	assert.False(t, ok, "cancelled")

	next, ok := NextPayment(&repository.Subscription{StartDate: datePtr("2024-01-05"), Frequency: repository.FrequencyMonthly}, today)
	require.True(t, ok)
	assert.Equal(t, "2024-06-05", next.Format(time.DateOnly))
}

func TestUpcomingPayments(t *testing.T) {
	today := date("2024-06-01")
	subs := []*repository.Subscription{
		{Name: "Yearly", StartDate: datePtr("2023-12-01"), Frequency: repository.FrequencyYearly},
		{Name: "Soon", StartDate: datePtr("2024-05-03"), Frequency: repository.FrequencyMonthly},
		{Name: "OneOff", StartDate: datePtr("2024-06-02"), Frequency: repository.FrequencyOneOff},
		{Name: "Cancelled", StartDate: datePtr("2024-05-02"), Frequency: repository.FrequencyMonthly, Cancelled: true},
		{Name: "Weekly", StartDate: datePtr("2024-05-30"), Frequency: repository.FrequencyWeekly},
	}

	got := UpcomingPayments(subs, today)
	require.Len(t, got, 3)
	assert.Equal(t, "Soon", got[0].Subscription.Name)
	assert.Equal(t, 2, got[0].DaysUntil)
	assert.Equal(t, "Weekly", got[1].Subscription.Name)
	assert.Equal(t, 5, got[1].DaysUntil)
	assert.Equal(t, "Yearly", got[2].Subscription.Name)
	assert.Equal(t, 183, got[2].DaysUntil)
}

func TestTotalMonthly(t *testing.T) {
	skippedID := uuid.New()
	subs := []*repository.Subscription{
		{AmountMinor: 1000, CurrencyCode: "USD", Frequency: repository.FrequencyMonthly},
		{AmountMinor: 7800, CurrencyCode: "HKD", Frequency: repository.FrequencyMonthly},
		{AmountMinor: 12000, CurrencyCode: "USD", Frequency: repository.FrequencyYearly},
		{AmountMinor: 99999, CurrencyCode: "USD", Frequency: repository.FrequencyMonthly, Cancelled: true},
		{ID: skippedID, AmountMinor: 500, CurrencyCode: "JPY", Frequency: repository.FrequencyMonthly},
	}

	total := TotalMonthly(subs, "USD", money.DefaultConverter())
	assert.Equal(t, "USD", total.Currency)
	assert.True(t, decimal.RequireFromString("30").Equal(total.Amount), "got %s", total.Amount)
	assert.Equal(t, []uuid.UUID{skippedID}, total.Skipped)
}

func TestDaysUntil(t *testing.T) {
	today := time.Date(2024, time.June, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysUntil(date("2024-06-01"), today))
	assert.Equal(t, 30, DaysUntil(date("2024-07-01"), today))
	assert.Equal(t, -1, DaysUntil(date("2024-05-31"), today))
}
