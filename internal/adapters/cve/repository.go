package cve

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

//go:embed schema.sql
var schemaSQL string

const selectColumns = `cve_id, vendor, product, version_start, version_end, version_exact,
	description, severity, cvss_vector, published_date, last_modified,
	cwe_id, attack_vector, refs`

// keywordSearchLimit caps fuzzy description searches.
const keywordSearchLimit = 50

// SQLiteRepository implements ports.CVERepository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-based CVE repository.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases are per connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// FindByVendorProduct finds CVEs matching vendor and product.
func (r *SQLiteRepository) FindByVendorProduct(ctx context.Context, vendor, product string) ([]domain.CVERecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM cve_records
		WHERE LOWER(vendor) = LOWER(?) AND LOWER(product) = LOWER(?)
		ORDER BY severity DESC, cve_id`

	return r.query(ctx, query, vendor, product)
}

// FindByVendor returns every CVE filed against a vendor.
func (r *SQLiteRepository) FindByVendor(ctx context.Context, vendor string) ([]domain.CVERecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM cve_records
		WHERE LOWER(vendor) = LOWER(?)
		ORDER BY severity DESC, cve_id`

	return r.query(ctx, query, vendor)
}

// SearchByKeywords searches CVE descriptions for any of the keywords.
func (r *SQLiteRepository) SearchByKeywords(ctx context.Context, keywords []string) ([]domain.CVERecord, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []interface{}
	for _, kw := range keywords {
		conditions = append(conditions, "LOWER(description) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	args = append(args, keywordSearchLimit)

	query := fmt.Sprintf(`SELECT DISTINCT %s
		FROM cve_records
		WHERE %s
		ORDER BY severity DESC, cve_id
		LIMIT ?`, selectColumns, strings.Join(conditions, " OR "))

	return r.query(ctx, query, args...)
}

// GetByID retrieves a specific CVE by its ID. A missing id yields nil, nil.
func (r *SQLiteRepository) GetByID(ctx context.Context, cveID string) (*domain.CVERecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM cve_records WHERE cve_id = ?`, cveID)
	cve, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get CVE: %w", err)
	}
	return &cve, nil
}

// UpsertCVE inserts or updates a CVE record.
func (r *SQLiteRepository) UpsertCVE(ctx context.Context, cve domain.CVERecord) error {
	if cve.ID == "" {
		return errors.New("cve id is required")
	}
	refsJSON, err := json.Marshal(cve.References)
	if err != nil {
		return fmt.Errorf("failed to marshal references: %w", err)
	}

	query := `
		INSERT INTO cve_records (
			cve_id, vendor, product, version_start, version_end, version_exact,
			description, severity, cvss_vector, published_date, last_modified,
			cwe_id, attack_vector, refs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cve_id) DO UPDATE SET
			vendor = excluded.vendor,
			product = excluded.product,
			version_start = excluded.version_start,
			version_end = excluded.version_end,
			version_exact = excluded.version_exact,
			description = excluded.description,
			severity = excluded.severity,
			cvss_vector = excluded.cvss_vector,
			published_date = excluded.published_date,
			last_modified = excluded.last_modified,
			cwe_id = excluded.cwe_id,
			attack_vector = excluded.attack_vector,
			refs = excluded.refs,
			updated_at = CURRENT_TIMESTAMP`

	_, err = r.db.ExecContext(ctx, query,
		cve.ID, cve.Vendor, cve.Product, cve.VersionStart, cve.VersionEnd, cve.VersionExact,
		cve.Description, cve.Severity, cve.CVSSVector, formatTime(cve.PublishedDate),
		formatTime(cve.LastModified), cve.CWEID, cve.AttackVector, string(refsJSON),
	)
	return err
}

// GetLastSyncTime returns the timestamp of the last CVE database sync.
func (r *SQLiteRepository) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	var lastSync string
	err := r.db.QueryRowContext(ctx, "SELECT last_sync_time FROM cve_sync_status WHERE id = 1").Scan(&lastSync)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(lastSync), nil
}

// UpdateSyncStatus updates the sync status.
func (r *SQLiteRepository) UpdateSyncStatus(ctx context.Context, status domain.CVESyncStatus) error {
	query := `
		UPDATE cve_sync_status
		SET last_sync_time = ?,
		    record_count = ?,
		    error_message = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`

	_, err := r.db.ExecContext(ctx, query,
		formatTime(status.LastSyncTime),
		status.RecordCount,
		status.ErrorMessage,
	)
	return err
}

// GetTotalCount returns the total number of CVE records.
func (r *SQLiteRepository) GetTotalCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cve_records").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.CVERecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var cves []domain.CVERecord
	for rows.Next() {
		cve, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		cves = append(cves, cve)
	}
	return cves, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (domain.CVERecord, error) {
	var cve domain.CVERecord
	var publishedDate, lastModified, refsJSON string
	var versionStart, versionEnd, versionExact, cvssVector, cweID sql.NullString

	err := s.Scan(
		&cve.ID, &cve.Vendor, &cve.Product, &versionStart, &versionEnd, &versionExact,
		&cve.Description, &cve.Severity, &cvssVector, &publishedDate, &lastModified,
		&cweID, &cve.AttackVector, &refsJSON,
	)
	if err != nil {
		return cve, err
	}

	cve.VersionStart = versionStart.String
	cve.VersionEnd = versionEnd.String
	cve.VersionExact = versionExact.String
	cve.CVSSVector = cvssVector.String
	cve.CWEID = cweID.String
	cve.PublishedDate = parseTime(publishedDate)
	cve.LastModified = parseTime(lastModified)

	if refsJSON != "" {
		if err := json.Unmarshal([]byte(refsJSON), &cve.References); err != nil {
			return cve, fmt.Errorf("decode refs of %s: %w", cve.ID, err)
		}
	}
	return cve, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ensure interface compliance
var _ ports.CVERepository = (*SQLiteRepository)(nil)
