// Package sources parses the certification bodies' listings into candidate records.
package sources

import (
	"log"
	"strings"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/telemetry"
)

// Skip reasons reported to source_rows_skipped_total.
const (
	SkipDuplicate   = domain.SkipDuplicate
	SkipColumns     = domain.SkipColumns
	SkipMissingName = domain.SkipMissingName
	SkipOrphan      = domain.SkipOrphan
	SkipBadDate     = domain.SkipBadDate
	SkipBadNumber   = domain.SkipBadNumber
)

// Result is the outcome of parsing one source file.
type Result = domain.ParseResult

func newResult() *Result {
	return domain.NewParseResult()
}

func skip(r *Result, source domain.Source, reason string) {
	r.Skipped[reason]++
	if reason == SkipDuplicate {
		r.Duplicates++
	}
	telemetry.SourceRowsSkipped.WithLabelValues(string(source), reason).Inc()
}

// add keeps the first candidate per digest.
func add(r *Result, source domain.Source, cert domain.Certificate) bool {
	if _, dup := r.Certificates[cert.Digest]; dup {
		skip(r, source, SkipDuplicate)
		return false
	}
	r.Certificates[cert.Digest] = cert
	telemetry.SourceRecords.WithLabelValues(string(source)).Inc()
	return true
}

func logSummary(r *Result, tag, file string) {
	log.Printf("[%s] Parsed %d certificates from %s (%d duplicates, %d skipped)",
		tag, len(r.Certificates), file, r.Duplicates, r.SkippedRows())
}

// CCCategories maps the portal table ids to category names.
var CCCategories = map[string]string{
	"tblAC": "Access Control Devices and Systems",
	"tblBP": "Boundary Protection Devices and Systems",
	"tblDP": "Data Protection",
	"tblDB": "Databases",
	"tblDD": "Detection Devices and Systems",
	"tblIC": "ICs, Smart Cards and Smart Card-Related Devices and Systems",
	"tblKM": "Key Management Systems",
	"tblMD": "Mobility",
	"tblMF": "Multi-Function Devices",
	"tblNS": "Network and Network-Related Devices and Systems",
	"tblOS": "Operating Systems",
	"tblOD": "Other Devices and Systems",
	"tblDG": "Products for Digital Signatures",
	"tblTC": "Trusted Computing",
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
}

// parseDate accepts the date spellings used by the listings. Empty input is not an error.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var legalSuffixes = map[string]bool{
	"inc": true, "inc.": true, "ltd": true, "ltd.": true, "llc": true, "gmbh": true, "ag": true,
	"corp": true, "corp.": true, "corporation": true, "co.": true, "s.a.": true, "sa": true,
	"b.v.": true, "bv": true, "plc": true, "limited": true, "sas": true,
}

// splitVendors splits a manufacturer field listing several companies.
// Fragments that are only a legal suffix are glued back to the previous name.
func splitVendors(manufacturer string) []string {
	parts := strings.FieldsFunc(manufacturer, func(r rune) bool {
		return r == ',' || r == ';' || r == '/'
	})
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if legalSuffixes[strings.ToLower(p)] && len(out) > 0 {
			out[len(out)-1] += ", " + p
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitList splits a delimiter separated field into trimmed, non-empty values.
func splitList(s string, seps string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cleanText trims and collapses internal whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
