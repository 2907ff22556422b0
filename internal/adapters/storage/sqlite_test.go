package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// setupInMemoryDB creates a new SQLiteAdapter used for testing
func setupInMemoryDB(t *testing.T) *SQLiteAdapter {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, migrate(db))

	return &SQLiteAdapter{db: db}
}

func sampleCertificate() domain.Certificate {
	c := domain.Certificate{
		Digest:         "0123456789abcdef0123456789abcdef",
		Kind:           domain.KindCommonCriteria,
		Status:         domain.StatusArchived,
		Category:       "Databases",
		Name:           "Acme DB 1.0",
		Manufacturer:   "Acme Inc.",
		Vendors:        []string{"Acme Inc."},
		Scheme:         "DE",
		SecurityLevel:  []string{"ALC_FLR.1", "EAL4+"},
		NotValidBefore: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		ReportLink:     "https://www.commoncriteriaportal.org/files/epfiles/r1.pdf",
		CertNumber:     "BSI-DSZ-CC-0815-2012",
		Maintenance: []domain.MaintenanceUpdate{
			{Date: time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC), Title: "Update 1"},
		},
		ProtectionProfiles: []domain.ProtectionProfile{{Name: "PP-DB", Link: "https://pp"}},
		References:         []string{"fedcba9876543210fedcba9876543210"},
		Provenance:         map[string]domain.Source{domain.FieldReportLink: domain.SourceCSV},
		State:              domain.NewState(),
	}
	c.Report.TextPath = "/data/reports/txt/x.txt"
	c.Report.Keywords = domain.KeywordMatches{}
	c.Report.Keywords.Add("rules_cert_id", "bsi", "BSI-DSZ-CC-0815-2012", nil)
	c.Report.FrontPage = &domain.FrontPage{Scheme: "BSI", Variant: "english", CertID: "BSI-DSZ-CC-0815-2012"}
	c.State.Report.Download = domain.StageOK
	c.State.Report.Extract = domain.StageOK
	c.State.Analyzed = true
	return c
}

func TestUpsertAndGetCertificate(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()
	cert := sampleCertificate()

	require.NoError(t, adapter.UpsertCertificates(ctx, []domain.Certificate{cert}))

	stored, err := adapter.GetCertificate(ctx, cert.Digest)
	require.NoError(t, err)
	assert.Equal(t, cert, *stored)
}

func TestUpsertCertificates_Update(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()
	cert := sampleCertificate()
	require.NoError(t, adapter.UpsertCertificates(ctx, []domain.Certificate{cert}))

	cert.Status = domain.StatusRevoked
	cert.Maintenance = append(cert.Maintenance, domain.MaintenanceUpdate{
		Date: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), Title: "Update 2",
	})
	cert.References = nil
	require.NoError(t, adapter.UpsertCertificates(ctx, []domain.Certificate{cert}))

	stored, err := adapter.GetCertificate(ctx, cert.Digest)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRevoked, stored.Status)
	assert.Len(t, stored.Maintenance, 2, "maintenance rows are replaced, not duplicated")
	assert.Nil(t, stored.References)

	all, err := adapter.LoadCertificates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetCertificate_NotFound(t *testing.T) {
	adapter := setupInMemoryDB(t)

	_, err := adapter.GetCertificate(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCertificateNotFound)
}

func TestLoadCertificates_OrderedByDigest(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()

	var batch []domain.Certificate
	for _, d := range []string{"c", "a", "b"} {
		batch = append(batch, domain.Certificate{Digest: d, Kind: domain.KindFIPS, Status: domain.StatusActive, State: domain.NewState()})
	}
	require.NoError(t, adapter.UpsertCertificates(ctx, batch))

	all, err := adapter.LoadCertificates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Digest)
	assert.Equal(t, "c", all[2].Digest)
}

func TestStateRoundTrip(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()

	state, err := adapter.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DatasetState{}, state, "fresh database")

	want := domain.DatasetState{MetaSourcesParsed: true, PDFsDownloaded: true}
	require.NoError(t, adapter.SaveState(ctx, want))
	require.NoError(t, adapter.SaveState(ctx, want))

	state, err = adapter.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, state)
}

func TestSummaries(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()

	last, err := adapter.LastSummary(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	older := domain.NewRunSummary()
	older.FinishedAt = time.Now().Add(-time.Hour)
	newer := domain.NewRunSummary()
	newer.FinishedAt = time.Now()
	newer.Edges = 7
	newer.RejectedReferences[domain.RejectUnknown] = 3

	require.NoError(t, adapter.SaveSummary(ctx, *newer))
	require.NoError(t, adapter.SaveSummary(ctx, *older))

	last, err = adapter.LastSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, newer.ID, last.ID)
	assert.Equal(t, 7, last.Edges)
	assert.Equal(t, 3, last.RejectedReferences[domain.RejectUnknown])
}
