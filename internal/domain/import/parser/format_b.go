package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Format B: Hong Kong card statements. Rows read "<dd> <Mon> <yyyy>
// [<dd> <Mon> <yyyy>] <description> <amount> [CR]" with the posting date
// optionally repeated and amounts in Hong Kong dollars.

var (
	formatBDate   = regexp.MustCompile(`(?i)^(\d{1,2}) (` + MonthPattern + `)\.?,? (\d{4}|\d{2})$`)
	formatBAmount = regexp.MustCompile(`(?i)^(?:HK\$)?(?P<value>(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})(?P<credit>CR)?$`)
)

// FormatBLayout describes Hong Kong card statements.
func FormatBLayout() Layout {
	return Layout{
		Format:        FormatB,
		Currency:      "HKD",
		MinTokens:     3,
		DateWindow:    5,
		MaxDateTokens: 3,
		PairedDates:   true,
		DatePattern:   formatBDate,
		DateFromMatch: func(m []string, _ int) (time.Time, error) {
			return formatBDateFromParts(m[1], m[2], m[3])
		},
		AmountPattern: formatBAmount,
		CreditTokens:  []string{"CR"},
		SkipPatterns: compileAll(
			`(?i)\b(previous|new|statement|closing|opening) balance\b`,
			`(?i)\bbalance (b/f|c/f|brought forward|carried forward)\b`,
			`(?i)\bminimum (payment|amount) due\b`,
			`(?i)\bpayment due date\b`,
			`(?i)\bcredit limit\b`,
			`(?i)\btotal (amount|balance|due|credits?|debits?)\b`,
			`(?i)\b(interest|finance) charges?\b`,
			`(?i)\bstatement date\b`,
			`(?i)\bcard (number|no\.?)\b`,
			`(?i)\bpage \d+ of \d+\b`,
		),
		Disallowed:     regexp.MustCompile(`[^\p{L}\p{N}_\s\-&*./]`),
		PaymentPattern: regexp.MustCompile(`(?i)^(payment|credit|autopay|direct debit|e-?banking payment|pps payment|thank you|refund)\b`),
	}
}

// NewFormatB creates a parser for Hong Kong card statements.
func NewFormatB(opts ...Option) *Parser {
	return New(FormatBLayout(), opts...)
}

// ParseFormatBDate parses text such as "15 Jan 2024". Two-digit years are
// read as 20xx.
func ParseFormatBDate(text string) (time.Time, error) {
	m := formatBDate.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, fmt.Errorf("not a day-month-year date: %q", text)
	}
	return formatBDateFromParts(m[1], m[2], m[3])
}

func formatBDateFromParts(dayStr, monthName, yearStr string) (time.Time, error) {
	month, ok := lookupMonth(monthName)
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", monthName)
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", dayStr, err)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year %q: %w", yearStr, err)
	}
	if len(yearStr) == 2 {
		year += 2000
	}
	return validDate(year, month, day)
}
