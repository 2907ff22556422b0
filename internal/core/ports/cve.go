package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// CVERepository defines the interface for CVE database operations.
type CVERepository interface {
	// Query CVEs by vendor/product
	FindByVendorProduct(ctx context.Context, vendor, product string) ([]domain.CVERecord, error)

	// Query every CVE filed against a vendor
	FindByVendor(ctx context.Context, vendor string) ([]domain.CVERecord, error)

	// Search by keywords (for fuzzy matching)
	SearchByKeywords(ctx context.Context, keywords []string) ([]domain.CVERecord, error)

	// Get specific CVE by ID
	GetByID(ctx context.Context, cveID string) (*domain.CVERecord, error)

	// Sync operations
	UpsertCVE(ctx context.Context, cve domain.CVERecord) error
	GetLastSyncTime(ctx context.Context) (time.Time, error)
	UpdateSyncStatus(ctx context.Context, status domain.CVESyncStatus) error

	// Utility
	GetTotalCount(ctx context.Context) (int, error)
	Close() error
}

// CVEMatcher defines the interface for matching certified products against the CVE database.
type CVEMatcher interface {
	// FindMatches returns all CVE matches for a given certificate
	FindMatches(ctx context.Context, cert domain.Certificate) ([]domain.CVEMatch, error)
}
