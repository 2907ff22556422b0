package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// SQLiteAdapter implements ports.CertificateStore using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// CertificateModel is the GORM model for certificates.
// Set-valued and nested fields are stored as JSON text.
type CertificateModel struct {
	Digest       string `gorm:"primaryKey"`
	Kind         string `gorm:"index"`
	Status       string `gorm:"index"`
	Category     string
	Name         string
	Manufacturer string
	Scheme       string
	CertNumber   string `gorm:"index"`

	NotValidBefore time.Time
	NotValidAfter  time.Time
	ReportLink     string
	TargetLink     string

	Vendors            string // JSON []string
	SecurityLevel      string // JSON []string
	ProtectionProfiles string // JSON []ProtectionProfile
	References         string // JSON []string
	RelatedCVEs        string // JSON []string
	Provenance         string // JSON map[string]Source

	Report string // JSON Document
	Target string // JSON Document
	State  string // JSON State

	FileStatus bool `gorm:"index"`
	UpdatedAt  time.Time

	Maintenance []MaintenanceModel `gorm:"foreignKey:CertDigest"`
}

// MaintenanceModel stores the maintenance updates of a certificate.
type MaintenanceModel struct {
	ID         uint   `gorm:"primaryKey"`
	CertDigest string `gorm:"index"`
	Date       time.Time
	Title      string
	ReportLink string
	TargetLink string
}

// DatasetStateModel holds the single row of dataset stage flags.
type DatasetStateModel struct {
	ID                uint `gorm:"primaryKey"`
	MetaSourcesParsed bool
	PDFsDownloaded    bool
	PDFsConverted     bool
	CertsAnalyzed     bool
}

// RunSummaryModel keeps one row per pipeline run.
type RunSummaryModel struct {
	ID         string `gorm:"primaryKey"`
	StartedAt  time.Time
	FinishedAt time.Time `gorm:"index"`
	Parsed     int
	Edges      int
	Data       string // JSON RunSummary
}

const stateRowID = 1

// NewSQLiteAdapter initializes the database, installs tracing and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}

	// Create Indices for Performance
	db.Exec("CREATE INDEX IF NOT EXISTS idx_certificates_kind_status ON certificate_models(kind, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_maintenance_date ON maintenance_models(date)")

	return &SQLiteAdapter{db: db}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&CertificateModel{}, &MaintenanceModel{}, &DatasetStateModel{}, &RunSummaryModel{})
}

// UpsertCertificates replaces the given records and their maintenance rows in one transaction.
func (a *SQLiteAdapter) UpsertCertificates(ctx context.Context, certs []domain.Certificate) error {
	if len(certs) == 0 {
		return nil
	}

	models := make([]CertificateModel, len(certs))
	digests := make([]string, len(certs))
	var maintenance []MaintenanceModel
	for i, c := range certs {
		m, err := toModel(c)
		if err != nil {
			return &domain.StoreError{Op: "upsert", Err: err}
		}
		maintenance = append(maintenance, m.Maintenance...)
		m.Maintenance = nil
		models[i] = m
		digests[i] = c.Digest
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			UpdateAll: true,
		}).CreateInBatches(models, 100).Error; err != nil {
			return err
		}
		if err := tx.Where("cert_digest IN ?", digests).Delete(&MaintenanceModel{}).Error; err != nil {
			return err
		}
		if len(maintenance) == 0 {
			return nil
		}
		return tx.CreateInBatches(maintenance, 100).Error
	})
	if err != nil {
		return &domain.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

// LoadCertificates returns every stored record ordered by digest.
func (a *SQLiteAdapter) LoadCertificates(ctx context.Context) ([]domain.Certificate, error) {
	var models []CertificateModel
	if err := a.db.WithContext(ctx).Preload("Maintenance").Order("digest").Find(&models).Error; err != nil {
		return nil, &domain.StoreError{Op: "load", Err: err}
	}

	certs := make([]domain.Certificate, len(models))
	for i, m := range models {
		c, err := toDomain(m)
		if err != nil {
			return nil, &domain.StoreError{Op: "load", Err: err}
		}
		certs[i] = *c
	}
	return certs, nil
}

// GetCertificate retrieves a record by digest.
func (a *SQLiteAdapter) GetCertificate(ctx context.Context, digest string) (*domain.Certificate, error) {
	var model CertificateModel
	err := a.db.WithContext(ctx).Preload("Maintenance").First(&model, "digest = ?", digest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCertificateNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Err: err}
	}
	c, err := toDomain(model)
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Err: err}
	}
	return c, nil
}

// SaveState stores the dataset stage flags.
func (a *SQLiteAdapter) SaveState(ctx context.Context, state domain.DatasetState) error {
	model := DatasetStateModel{
		ID:                stateRowID,
		MetaSourcesParsed: state.MetaSourcesParsed,
		PDFsDownloaded:    state.PDFsDownloaded,
		PDFsConverted:     state.PDFsConverted,
		CertsAnalyzed:     state.CertsAnalyzed,
	}
	if err := a.db.WithContext(ctx).Save(&model).Error; err != nil {
		return &domain.StoreError{Op: "save state", Err: err}
	}
	return nil
}

// LoadState returns the stored stage flags, or the zero state for a fresh database.
func (a *SQLiteAdapter) LoadState(ctx context.Context) (domain.DatasetState, error) {
	var model DatasetStateModel
	err := a.db.WithContext(ctx).First(&model, stateRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DatasetState{}, nil
	}
	if err != nil {
		return domain.DatasetState{}, &domain.StoreError{Op: "load state", Err: err}
	}
	return domain.DatasetState{
		MetaSourcesParsed: model.MetaSourcesParsed,
		PDFsDownloaded:    model.PDFsDownloaded,
		PDFsConverted:     model.PDFsConverted,
		CertsAnalyzed:     model.CertsAnalyzed,
	}, nil
}

// SaveSummary stores a run summary, replacing an earlier save of the same run.
func (a *SQLiteAdapter) SaveSummary(ctx context.Context, summary domain.RunSummary) error {
	data, err := encode(summary)
	if err != nil {
		return &domain.StoreError{Op: "save summary", Err: err}
	}
	model := RunSummaryModel{
		ID:         summary.ID.String(),
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Parsed:     summary.Parsed,
		Edges:      summary.Edges,
		Data:       data,
	}
	if err := a.db.WithContext(ctx).Save(&model).Error; err != nil {
		return &domain.StoreError{Op: "save summary", Err: err}
	}
	return nil
}

// LastSummary returns the summary of the most recently finished run.
func (a *SQLiteAdapter) LastSummary(ctx context.Context) (*domain.RunSummary, error) {
	var model RunSummaryModel
	err := a.db.WithContext(ctx).Order("finished_at desc").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "last summary", Err: err}
	}
	var out domain.RunSummary
	if err := decode(model.Data, &out); err != nil {
		return nil, &domain.StoreError{Op: "last summary", Err: err}
	}
	return &out, nil
}

// Close closes the underlying connection.
func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var _ ports.CertificateStore = (*SQLiteAdapter)(nil)
