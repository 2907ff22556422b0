package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reference rejection reasons reported in RunSummary.RejectedReferences.
const (
	RejectGarbage      = "garbage"
	RejectSelf         = "self"
	RejectBelowMinimum = "below_minimum"
	RejectUnknown      = "unknown"
	RejectAlgorithm    = "algorithm"
	RejectYearDistance = "year_distance"
)

// RunSummary reports the counts of one pipeline run.
type RunSummary struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	Parsed      int `json:"parsed"`
	Duplicates  int `json:"duplicates"`
	SkippedRows int `json:"skipped_rows"`
	New         int `json:"new"`
	Merged      int `json:"merged"`

	// Listing changes against the records held before the run.
	Changed int `json:"changed"`
	Removed int `json:"removed"`

	FailedDownloads    int `json:"failed_downloads"`
	FailedConversions  int `json:"failed_conversions"`
	GarbageConversions int `json:"garbage_conversions"`
	Unreadable         int `json:"unreadable"`
	Extracted          int `json:"extracted"`

	Edges               int            `json:"edges"`
	RejectedReferences  map[string]int `json:"rejected_references,omitempty"`
	FlaggedCertificates int            `json:"flagged_certificates"`
	RelatedCVEs         int            `json:"related_cves"`
}

// NewRunSummary starts a summary with a fresh run id.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		ID:                 uuid.New(),
		StartedAt:          time.Now(),
		RejectedReferences: make(map[string]int),
	}
}

// TotalRejected sums every rejection reason.
func (s *RunSummary) TotalRejected() int {
	n := 0
	for _, v := range s.RejectedReferences {
		n += v
	}
	return n
}
