package ports

import (
	"context"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// CertificateStore defines the behavior for record persistence, keyed by digest.
type CertificateStore interface {
	// UpsertCertificates inserts or replaces records in bulk.
	UpsertCertificates(ctx context.Context, certs []domain.Certificate) error

	// LoadCertificates returns the full collection.
	LoadCertificates(ctx context.Context) ([]domain.Certificate, error)

	// GetCertificate returns one record or domain.ErrCertificateNotFound.
	GetCertificate(ctx context.Context, digest string) (*domain.Certificate, error)

	SaveState(ctx context.Context, state domain.DatasetState) error
	LoadState(ctx context.Context) (domain.DatasetState, error)

	SaveSummary(ctx context.Context, summary domain.RunSummary) error

	// LastSummary returns the most recently finished run, or nil for a fresh store.
	LastSummary(ctx context.Context) (*domain.RunSummary, error)

	// Close closes the storage connection.
	Close() error
}
