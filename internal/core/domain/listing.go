package domain

import (
	"path/filepath"
	"strings"
)

// ParseResult is the outcome of parsing one source listing.
type ParseResult struct {
	Certificates map[string]Certificate
	Duplicates   int
	Skipped      map[string]int // reason -> rows
}

// NewParseResult returns an empty result.
func NewParseResult() *ParseResult {
	return &ParseResult{
		Certificates: make(map[string]Certificate),
		Skipped:      make(map[string]int),
	}
}

// SkippedRows returns the number of rows dropped for any reason other than duplication.
func (r *ParseResult) SkippedRows() int {
	n := 0
	for reason, c := range r.Skipped {
		if reason != SkipDuplicate {
			n += c
		}
	}
	return n
}

// Skip reasons reported by the listing parsers.
const (
	SkipDuplicate   = "duplicate"
	SkipColumns     = "column_count"
	SkipMissingName = "missing_name"
	SkipOrphan      = "orphan_maintenance"
	SkipBadDate     = "bad_date"
	SkipBadNumber   = "bad_number"
)

// SourceFile is one listing handed to the pipeline.
// An empty Status is derived from the file name.
type SourceFile struct {
	Path   string
	Status Status
}

// ResolvedStatus returns the explicit status, or the one named in the file name.
func (f SourceFile) ResolvedStatus() Status {
	if f.Status != "" {
		return f.Status
	}
	name := strings.ToLower(filepath.Base(f.Path))
	switch {
	case strings.Contains(name, "revoked"):
		return StatusRevoked
	case strings.Contains(name, "historical"):
		return StatusHistorical
	case strings.Contains(name, "archived"):
		return StatusArchived
	default:
		return StatusActive
	}
}
