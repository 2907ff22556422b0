package ports

import (
	"context"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// Downloader fetches one remote resource into a local file.
// It returns the HTTP status code, or an error when no response was obtained.
type Downloader interface {
	Download(ctx context.Context, url, dest string) (int, error)
}

// ConvertResult is the outcome of a successful conversion.
type ConvertResult struct {
	// Garbage signals low-confidence text (OCR fallback or broken encoding).
	// It is surfaced on the record but does not block later stages.
	Garbage bool
}

// Converter turns a PDF into plain text.
type Converter interface {
	Convert(ctx context.Context, pdfPath, txtPath string) (ConvertResult, error)
}

// CertificateReader gives read access to the current record set.
type CertificateReader interface {
	// Snapshot returns the current records. Callers must not mutate them.
	Snapshot() map[string]*domain.Certificate
}

// DatasetReader is the read side of the dataset served by the HTTP API.
type DatasetReader interface {
	CertificateReader
	// Get returns a copy of one record or domain.ErrCertificateNotFound.
	Get(dgst string) (*domain.Certificate, error)
	State() domain.DatasetState
	Summary() domain.RunSummary
}

// ListingParser turns one certification listing into candidate records.
type ListingParser interface {
	ParseFile(path string, status domain.Status) (*domain.ParseResult, error)
}

// AlgorithmSource reads the algorithm validation list.
type AlgorithmSource interface {
	ParseFile(path string) (*domain.AlgorithmList, error)
}
