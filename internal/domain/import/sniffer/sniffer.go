// Package sniffer identifies which statement layout produced a set of rows.
// It looks for issuer names first and falls back to the shape of the dates.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/extractor"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
)

// headerRows is how many leading rows feed the fingerprint.
const headerRows = 5

// Issuer signatures, checked in order. Needles are matched against the
// lower-cased text of the whole document.
var issuerSignatures = []struct {
	format  parser.Format
	needles []string
}{
	{
		format: parser.FormatB,
		needles: []string{
			"hsbc",
			"hongkong and shanghai banking",
			"hang seng bank",
			"standard chartered bank (hong kong)",
			"bank of china (hong kong)",
			"dbs bank (hong kong)",
		},
	},
	{
		format: parser.FormatA,
		needles: []string{
			"chase.com",
			"jpmorgan chase",
			"chase card services",
			"capital one",
			"american express",
			"discover card",
			"citi cards",
		},
	},
}

var longMonthDate = regexp.MustCompile(`(?i)\b` + parser.LongMonthPattern + `\s+\d{1,2}\b`)

// Detection describes how a format was chosen.
type Detection struct {
	Format parser.Format `json:"format"`
	// Needle is the issuer text that matched, empty for the date fallback.
	Needle string `json:"needle,omitempty"`
	// Fingerprint is a hash of the normalised header rows, stable across
	// statements from the same issuer template.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// DetectFormat returns the layout family of rows.
func DetectFormat(rows []extractor.Row) parser.Format {
	return Detect(rows).Format
}

// Detect classifies rows. Issuer names win over date shapes; a document
// with month-name-first dates is FormatA; anything else is FormatUnknown.
func Detect(rows []extractor.Row) Detection {
	if len(rows) == 0 {
		return Detection{Format: parser.FormatUnknown}
	}

	detection := Detection{
		Format:      parser.FormatUnknown,
		Fingerprint: fingerprint(rows),
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = row.Text()
	}
	text := strings.ToLower(strings.Join(lines, "\n"))

	for _, sig := range issuerSignatures {
		for _, needle := range sig.needles {
			if strings.Contains(text, needle) {
				detection.Format = sig.format
				detection.Needle = needle
				return detection
			}
		}
	}

	for _, line := range lines {
		if longMonthDate.MatchString(line) {
			detection.Format = parser.FormatA
			return detection
		}
	}

	return detection
}

// fingerprint hashes the first rows with digits removed so that dates,
// amounts and account numbers do not change it.
func fingerprint(rows []extractor.Row) string {
	var b strings.Builder
	for i, row := range rows {
		if i >= headerRows {
			break
		}
		line := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return -1
			}
			return r
		}, strings.ToLower(row.Text()))
		b.WriteString(strings.Join(strings.Fields(line), " "))
		b.WriteByte('|')
	}
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}
