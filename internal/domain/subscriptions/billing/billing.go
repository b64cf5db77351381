// Package billing derives monthly costs and payment dates from subscriptions.
package billing

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
)

// Converter converts amounts between currencies.
type Converter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

var (
	daysPerMonth  = decimal.NewFromInt(30)
	weeksPerMonth = decimal.NewFromInt(4)
	monthsPerYear = decimal.NewFromInt(12)
)

// MonthlyAmount scales a charge to its monthly equivalent. One-off charges
// count in full.
func MonthlyAmount(amount decimal.Decimal, frequency repository.Frequency) decimal.Decimal {
	switch frequency {
	case repository.FrequencyDaily:
		return amount.Mul(daysPerMonth)
	case repository.FrequencyWeekly:
		return amount.Mul(weeksPerMonth)
	case repository.FrequencyYearly:
		return amount.Div(monthsPerYear)
	default:
		return amount
	}
}

// MonthlyValue is the monthly equivalent of sub converted to currency.
func MonthlyValue(sub *repository.Subscription, currency string, conv Converter) (decimal.Decimal, error) {
	monthly := MonthlyAmount(sub.Amount().ToDecimal(), sub.Frequency)
	return conv.Convert(monthly, sub.CurrencyCode, currency)
}

// Today truncates t to midnight UTC of its calendar day.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextPaymentDate is the first billing date on or after today. One-off
// charges return start. Each step is counted from start, so a charge
// starting on the 31st falls on the month's overflow day rather than
// drifting.
func NextPaymentDate(start time.Time, frequency repository.Frequency, today time.Time) time.Time {
	start, today = Today(start), Today(today)
	if frequency == repository.FrequencyOneOff || !start.Before(today) {
		return start
	}

	switch frequency {
	case repository.FrequencyDaily:
		return today
	case repository.FrequencyWeekly:
		days := int(today.Sub(start).Hours() / 24)
		weeks := (days + 6) / 7
		return start.AddDate(0, 0, weeks*7)
	case repository.FrequencyYearly:
		for n := 1; ; n++ {
			if next := start.AddDate(n, 0, 0); !next.Before(today) {
				return next
			}
		}
	default:
		months := (today.Year()-start.Year())*12 + int(today.Month()-start.Month()) - 1
		if months < 1 {
			months = 1
		}
		for n := months; ; n++ {
			if next := start.AddDate(0, n, 0); !next.Before(today) {
				return next
			}
		}
	}
}

// NextPayment returns the next payment of sub, absent for cancelled or
// undated records.
func NextPayment(sub *repository.Subscription, today time.Time) (time.Time, bool) {
	if sub.Cancelled || sub.StartDate == nil || sub.StartDate.IsZero() {
		return time.Time{}, false
	}
	return NextPaymentDate(*sub.StartDate, sub.Frequency, today), true
}

// DaysUntil counts calendar days from today to date.
func DaysUntil(date, today time.Time) int {
	return int(Today(date).Sub(Today(today)).Hours() / 24)
}

// UpcomingPayment is a scheduled charge of an active subscription.
type UpcomingPayment struct {
	Subscription    *repository.Subscription `json:"subscription"`
	NextPaymentDate time.Time                `json:"next_payment_date"`
	DaysUntil       int                      `json:"days_until"`
}

// UpcomingPayments lists active recurring subscriptions by days until their
// next payment, soonest first.
func UpcomingPayments(subs []*repository.Subscription, today time.Time) []UpcomingPayment {
	out := make([]UpcomingPayment, 0, len(subs))
	for _, sub := range subs {
		if sub.Frequency == repository.FrequencyOneOff {
			continue
		}
		next, ok := NextPayment(sub, today)
		if !ok {
			continue
		}
		out = append(out, UpcomingPayment{
			Subscription:    sub,
			NextPaymentDate: next,
			DaysUntil:       DaysUntil(next, today),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysUntil < out[j].DaysUntil })
	return out
}

// Total is the combined monthly cost of a set of subscriptions.
type Total struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	// Skipped lists subscriptions whose currency could not be converted.
	Skipped []uuid.UUID `json:"skipped,omitempty"`
}

// TotalMonthly sums the monthly value of every non-cancelled subscription.
// Subscriptions that cannot be converted are listed in Skipped.
func TotalMonthly(subs []*repository.Subscription, currency string, conv Converter) Total {
	total := Total{Amount: decimal.Zero, Currency: currency}
	for _, sub := range subs {
		if sub.Cancelled {
			continue
		}
		value, err := MonthlyValue(sub, currency, conv)
		if err != nil {
			total.Skipped = append(total.Skipped, sub.ID)
			continue
		}
		total.Amount = total.Amount.Add(value)
	}
	return total
}
