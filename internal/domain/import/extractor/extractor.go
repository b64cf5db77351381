// Package extractor turns the text layer of a statement PDF into rows of
// positioned tokens, ordered top to bottom and left to right.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// DefaultRowTolerance is the vertical distance, in page units, within which
// tokens are considered to share a row.
const DefaultRowTolerance = 3

// ErrUnreadablePDF is returned when the renderer cannot open the document.
var ErrUnreadablePDF = errors.New("unreadable PDF")

// PositionedToken is a text run placed at its rounded page coordinates.
type PositionedToken struct {
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Row is a horizontal band of tokens sorted by X.
type Row struct {
	Y     int               `json:"y"`
	Items []PositionedToken `json:"items"`
}

// Texts returns the token strings in reading order.
func (r Row) Texts() []string {
	out := make([]string, len(r.Items))
	for i, item := range r.Items {
		out[i] = item.Text
	}
	return out
}

// Text joins the row's tokens with single spaces.
func (r Row) Text() string {
	return strings.Join(r.Texts(), " ")
}

// TextRun is a run of text reported by a Renderer. E and F are the
// horizontal and vertical translation of its text matrix.
type TextRun struct {
	Text string
	E    float64
	F    float64
}

// Document is an opened PDF.
type Document interface {
	NumPages() int
	// PageRuns returns the text runs of a 1-indexed page.
	PageRuns(page int) ([]TextRun, error)
}

// Renderer opens raw PDF bytes.
type Renderer interface {
	Open(data []byte) (Document, error)
}

// Extractor groups a document's text runs into rows page by page.
type Extractor struct {
	renderer  Renderer
	tolerance int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRowTolerance overrides DefaultRowTolerance.
func WithRowTolerance(tolerance int) Option {
	return func(e *Extractor) {
		if tolerance >= 0 {
			e.tolerance = tolerance
		}
	}
}

// NewExtractor creates an extractor. A nil renderer uses the PDF text layer renderer.
func NewExtractor(renderer Renderer, opts ...Option) *Extractor {
	if renderer == nil {
		renderer = NewPDFRenderer()
	}
	e := &Extractor{renderer: renderer, tolerance: DefaultRowTolerance}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the rows of every page, concatenated in page order.
// Within a page rows run top to bottom. A document without a text layer
// yields no rows and no error.
func (e *Extractor) Extract(ctx context.Context, data []byte) ([]Row, error) {
	doc, err := e.renderer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}

	var rows []Row
	for page := 1; page <= doc.NumPages(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runs, err := doc.PageRuns(page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrUnreadablePDF, page, err)
		}
		rows = append(rows, GroupRows(runs, e.tolerance)...)
	}
	return rows, nil
}

// GroupRows buckets runs into rows. A run joins the first existing row key,
// searched in ascending order, within tolerance of its rounded Y; otherwise
// its Y starts a new row. Rows come back with descending Y, items by X.
func GroupRows(runs []TextRun, tolerance int) []Row {
	var keys []int
	buckets := make(map[int][]PositionedToken)

	for _, run := range runs {
		text := strings.TrimSpace(run.Text)
		if text == "" {
			continue
		}
		token := PositionedToken{
			Text: text,
			X:    int(math.Round(run.E)),
			Y:    int(math.Round(run.F)),
		}

		key, ok := nearestKey(keys, token.Y, tolerance)
		if !ok {
			key = token.Y
			pos, _ := slices.BinarySearch(keys, key)
			keys = slices.Insert(keys, pos, key)
		}
		buckets[key] = append(buckets[key], token)
	}

	rows := make([]Row, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		items := buckets[keys[i]]
		sort.SliceStable(items, func(a, b int) bool { return items[a].X < items[b].X })
		rows = append(rows, Row{Y: keys[i], Items: items})
	}
	return rows
}

func nearestKey(keys []int, y, tolerance int) (int, bool) {
	for _, key := range keys {
		diff := key - y
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return key, true
		}
	}
	return 0, false
}
