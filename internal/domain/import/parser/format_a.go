package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/extractor"
)

// Format A: US card statements. Rows read "<Month> <day> <description>
// <amount>" with no year, amounts in dollars and credits marked by a
// trailing "CR" or "-" or a leading minus.

var (
	formatADate   = regexp.MustCompile(`(?i)^(` + MonthPattern + `)\.? (\d{1,2}),?$`)
	formatAAmount = regexp.MustCompile(`(?i)^(?P<sign>-)?\$?(?P<value>(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})(?P<credit>CR|-)?$`)

	statementYearToken = regexp.MustCompile(`^202\d$`)
)

// FormatALayout describes US card statements.
func FormatALayout() Layout {
	return Layout{
		Format:        FormatA,
		Currency:      "USD",
		MinTokens:     2,
		DateWindow:    3,
		MaxDateTokens: 2,
		NeedsYear:     true,
		DatePattern:   formatADate,
		DateFromMatch: func(m []string, year int) (time.Time, error) {
			return formatADateFromParts(m[1], m[2], year)
		},
		AmountPattern: formatAAmount,
		CreditTokens:  []string{"CR"},
		SkipPatterns: compileAll(
			`(?i)\b(previous|new) balance\b`,
			`(?i)\bpayment due date\b`,
			`(?i)\bminimum payment\b`,
			`(?i)\btotal (fees|interest|purchases|payments|credits|charges)\b`,
			`(?i)\binterest charged?\b`,
			`(?i)\bannual percentage rate\b`,
			`(?i)\baccount (summary|number)\b`,
			`(?i)\bcredit (limit|access line)\b`,
			`(?i)\bpayment,? thank you\b`,
			`(?i)\bdate of transaction\b`,
			`(?i)\bpage \d+ of \d+\b`,
		),
		Disallowed:     regexp.MustCompile(`[^\p{L}\p{N}_\s\-&*.']`),
		PaymentPattern: regexp.MustCompile(`(?i)^(payment|credit|autopay|auto pay|automatic payment|online payment|refund|return)\b`),
	}
}

// NewFormatA creates a parser for US card statements.
func NewFormatA(opts ...Option) *Parser {
	return New(FormatALayout(), opts...)
}

// ParseFormatADate parses text such as "March 1" or "Dec 15," against the
// statement year. Statements run back from the year they were issued, so
// October to December dates belong to the previous year.
func ParseFormatADate(text string, year int) (time.Time, error) {
	m := formatADate.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, fmt.Errorf("not a month-day date: %q", text)
	}
	return formatADateFromParts(m[1], m[2], year)
}

func formatADateFromParts(monthName, dayStr string, year int) (time.Time, error) {
	month, ok := lookupMonth(monthName)
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", monthName)
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", dayStr, err)
	}
	if month >= time.October {
		year--
	}
	return validDate(year, month, day)
}

// DetectStatementYear returns the first standalone 2020s year among the
// first 20 rows, or the current year of now.
func DetectStatementYear(rows []extractor.Row, now time.Time) int {
	for i, row := range rows {
		if i >= 20 {
			break
		}
		for _, item := range row.Items {
			token := strings.TrimRight(item.Text, ",.")
			if statementYearToken.MatchString(token) {
				year, _ := strconv.Atoi(token)
				return year
			}
		}
	}
	return now.Year()
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
