package parser

import (
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/extractor"
)

// Registry holds one parser per supported format.
type Registry struct {
	formatA *Parser
	formatB *Parser
}

// NewRegistry creates parsers for every supported format.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		formatA: NewFormatA(opts...),
		formatB: NewFormatB(opts...),
	}
}

// Parse runs the parser for format. For FormatUnknown both parsers run and
// the result with more transactions wins, FormatA on a tie.
func (r *Registry) Parse(rows []extractor.Row, format Format) *Result {
	switch format {
	case FormatA:
		return r.formatA.Parse(rows)
	case FormatB:
		return r.formatB.Parse(rows)
	}

	a := r.formatA.Parse(rows)
	b := r.formatB.Parse(rows)
	if len(b.Transactions) > len(a.Transactions) {
		return b
	}
	return a
}
