package extractor

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// baselineSlack is how far two glyphs' baselines may differ and still be
	// read as one run.
	baselineSlack = 0.5
	// glyphGapRatio is the largest gap, as a fraction of font size, allowed
	// between consecutive glyphs of one run.
	glyphGapRatio = 1.0 / 6.0
)

// PDFRenderer reads the text layer with github.com/ledongthuc/pdf and merges
// its per-glyph output into whitespace-delimited runs.
type PDFRenderer struct{}

// NewPDFRenderer creates the default renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Open parses the document. Malformed input that makes the reader panic is
// reported as an error.
func (r *PDFRenderer) Open(data []byte) (doc Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &pdfDocument{reader: reader}, nil
}

type pdfDocument struct {
	reader *pdf.Reader
}

func (d *pdfDocument) NumPages() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) PageRuns(num int) (runs []TextRun, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			runs, err = nil, fmt.Errorf("read page content: %v", rec)
		}
	}()

	page := d.reader.Page(num)
	if page.V.IsNull() {
		return nil, nil
	}
	return mergeGlyphs(page.Content().Text), nil
}

// mergeGlyphs joins consecutive glyphs sharing a baseline into runs. A space
// glyph, a baseline change or a gap wider than glyphGapRatio of the font size
// ends the current run.
func mergeGlyphs(glyphs []pdf.Text) []TextRun {
	var (
		runs  []TextRun
		text  strings.Builder
		start pdf.Text
		end   float64
		open  bool
	)

	flush := func() {
		if open && text.Len() > 0 {
			runs = append(runs, TextRun{Text: text.String(), E: start.X, F: start.Y})
		}
		text.Reset()
		open = false
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		contiguous := open &&
			math.Abs(g.Y-start.Y) <= baselineSlack &&
			g.X >= start.X &&
			g.X <= end+g.FontSize*glyphGapRatio
		if !contiguous {
			flush()
			start = g
			open = true
		}
		text.WriteString(g.S)
		end = g.X + g.W
	}
	flush()

	return runs
}
