// Package parser recognises transaction rows in the positioned text of a
// bank statement. Each supported statement family is described by a Layout;
// one row-scanning routine interprets every layout.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/extractor"
)

// Format identifies a statement layout family.
type Format string

const (
	FormatA       Format = "format_a"
	FormatB       Format = "format_b"
	FormatUnknown Format = "unknown"
)

// ParseFormat maps user input such as "a", "B" or "format_a" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "unknown":
		return FormatUnknown, nil
	case "a", "format_a":
		return FormatA, nil
	case "b", "format_b":
		return FormatB, nil
	}
	return FormatUnknown, fmt.Errorf("unknown statement format %q", s)
}

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the UTC midnight of the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Transaction is one debit recovered from a statement row.
type Transaction struct {
	Date        Date            `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	// Category starts as the statement's own hint, if any, and is replaced by
	// the normalised category.
	Category string `json:"category,omitempty"`
	// Merchant is the display name assigned by the normaliser.
	Merchant string `json:"merchant,omitempty"`
	RawText  string `json:"raw_text"`
}

// Result contains the transactions recognised in a statement.
type Result struct {
	Format        Format        `json:"format"`
	Transactions  []Transaction `json:"transactions"`
	StatementYear int           `json:"statement_year,omitempty"`
	TotalRows     int           `json:"total_rows"`
	ParsedRows    int           `json:"parsed_rows"`
	SkippedRows   int           `json:"skipped_rows"`
}

// dateContext carries per-statement state needed to resolve partial dates.
type dateContext struct {
	year int
}

// Layout describes how one statement family writes a transaction row.
type Layout struct {
	Format   Format
	Currency string
	// MinTokens is the fewest tokens a transaction row can have.
	MinTokens int
	// DateWindow is how many leading tokens may hold the transaction date.
	DateWindow int
	// MaxDateTokens is how many tokens a single date may span.
	MaxDateTokens int
	// PairedDates means a posting date may directly follow the transaction date.
	PairedDates bool
	// NeedsYear means dates omit the year and it must be inferred.
	NeedsYear bool
	// DatePattern must match a whole candidate span.
	DatePattern *regexp.Regexp
	// DateFromMatch builds a date from DatePattern's submatches.
	DateFromMatch func(m []string, year int) (time.Time, error)
	// AmountPattern matches one amount token. It must name a "value" group
	// and may name "sign" and "credit" groups that mark a credit.
	AmountPattern *regexp.Regexp
	// CreditTokens are standalone tokens after the amount that mark a credit.
	CreditTokens []string
	// SkipPatterns identify summary and header rows.
	SkipPatterns []*regexp.Regexp
	// Disallowed matches description characters to strip.
	Disallowed *regexp.Regexp
	// PaymentPattern identifies descriptions of card payments and credits.
	PaymentPattern *regexp.Regexp
}

// Parser applies a Layout to extracted rows.
type Parser struct {
	layout Layout
	now    func() time.Time
	year   int
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used to infer the statement year.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithStatementYear fixes the year used for yearless dates instead of
// inferring it from the rows.
func WithStatementYear(year int) Option {
	return func(p *Parser) {
		p.year = year
	}
}

// New creates a parser for a custom layout.
func New(layout Layout, opts ...Option) *Parser {
	p := &Parser{layout: layout, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Format returns the layout family this parser reads.
func (p *Parser) Format() Format {
	return p.layout.Format
}

// Parse recognises transactions row by row. Rows that are not transactions
// are counted as skipped; parsing never fails on content.
func (p *Parser) Parse(rows []extractor.Row) *Result {
	result := &Result{
		Format:       p.layout.Format,
		Transactions: []Transaction{},
		TotalRows:    len(rows),
	}

	var dc dateContext
	if p.layout.NeedsYear {
		dc.year = p.year
		if dc.year <= 0 {
			dc.year = DetectStatementYear(rows, p.now())
		}
		result.StatementYear = dc.year
	}

	for _, row := range rows {
		tx, ok := p.parseRow(row.Texts(), dc)
		if !ok {
			result.SkippedRows++
			continue
		}
		result.Transactions = append(result.Transactions, tx)
		result.ParsedRows++
	}

	return result
}

// ParseRow recognises a single row of tokens, resolving yearless dates
// against year.
func (p *Parser) ParseRow(tokens []string, year int) (Transaction, bool) {
	return p.parseRow(tokens, dateContext{year: year})
}

func (p *Parser) parseRow(tokens []string, dc dateContext) (Transaction, bool) {
	l := p.layout
	if len(tokens) < l.MinTokens {
		return Transaction{}, false
	}

	text := strings.Join(tokens, " ")
	for _, re := range l.SkipPatterns {
		if re.MatchString(text) {
			return Transaction{}, false
		}
	}

	date, descStart, ok := p.findDate(tokens, dc)
	if !ok {
		return Transaction{}, false
	}
	if l.PairedDates {
		if _, end, ok := p.dateAt(tokens, descStart, len(tokens), dc); ok {
			descStart = end
		}
	}

	amountIdx, amount, credit, ok := p.findAmount(tokens, descStart)
	if !ok || credit || !amount.IsPositive() {
		return Transaction{}, false
	}

	desc := cleanDescription(tokens[descStart:amountIdx], l.Disallowed)
	if utf8.RuneCountInString(desc) < 2 {
		return Transaction{}, false
	}
	if l.PaymentPattern != nil && l.PaymentPattern.MatchString(desc) {
		return Transaction{}, false
	}

	return Transaction{
		Date:        Date{date},
		Description: desc,
		Amount:      amount,
		Currency:    l.Currency,
		RawText:     text,
	}, true
}

// findDate looks for a date lying entirely within the leading window and
// returns the index of the first token after it.
func (p *Parser) findDate(tokens []string, dc dateContext) (time.Time, int, bool) {
	limit := min(p.layout.DateWindow, len(tokens))
	for start := 0; start < limit; start++ {
		if date, end, ok := p.dateAt(tokens, start, limit, dc); ok {
			return date, end, true
		}
	}
	return time.Time{}, 0, false
}

// dateAt tries spans starting at start, shortest first, ending at or before limit.
func (p *Parser) dateAt(tokens []string, start, limit int, dc dateContext) (time.Time, int, bool) {
	l := p.layout
	for span := 1; span <= l.MaxDateTokens && start+span <= limit; span++ {
		candidate := strings.Join(tokens[start:start+span], " ")
		m := l.DatePattern.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		date, err := l.DateFromMatch(m, dc.year)
		if err != nil {
			return time.Time{}, 0, false
		}
		return date, start + span, true
	}
	return time.Time{}, 0, false
}

// findAmount scans right to left, stopping before the description start, for
// the last amount token.
func (p *Parser) findAmount(tokens []string, from int) (int, decimal.Decimal, bool, bool) {
	l := p.layout
	valueIdx := l.AmountPattern.SubexpIndex("value")
	signIdx := l.AmountPattern.SubexpIndex("sign")
	creditIdx := l.AmountPattern.SubexpIndex("credit")

	for j := len(tokens) - 1; j >= from; j-- {
		m := l.AmountPattern.FindStringSubmatch(tokens[j])
		if m == nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(m[valueIdx], ",", ""))
		if err != nil {
			continue
		}
		credit := (signIdx > 0 && m[signIdx] != "") || (creditIdx > 0 && m[creditIdx] != "")
		if j+1 < len(tokens) && isCreditToken(tokens[j+1], l.CreditTokens) {
			credit = true
		}
		return j, amount, credit, true
	}
	return -1, decimal.Zero, false, false
}

func isCreditToken(token string, markers []string) bool {
	for _, marker := range markers {
		if strings.EqualFold(token, marker) {
			return true
		}
	}
	return false
}

// cleanDescription joins tokens, strips disallowed characters and collapses
// whitespace.
func cleanDescription(tokens []string, disallowed *regexp.Regexp) string {
	s := strings.Join(tokens, " ")
	if disallowed != nil {
		s = disallowed.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

func validDate(year int, month time.Month, day int) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("invalid day %d for %s %d", day, month, year)
	}
	return t, nil
}
