package cve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

func TestSQLiteRepository(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_cve.db")

	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("UpsertCVE", func(t *testing.T) {
		cve := domain.CVERecord{
			ID:            "CVE-2017-15361",
			Vendor:        "infineon",
			Product:       "rsa_library",
			VersionEnd:    "1.2.13",
			Description:   "Infineon RSA Library key generation flaw",
			Severity:      5.9,
			CVSSVector:    "CVSS:3.1/AV:N/AC:H/PR:N/UI:N/S:U/C:H/I:N/A:N",
			PublishedDate: time.Date(2017, 10, 16, 0, 0, 0, 0, time.UTC),
			AttackVector:  "NETWORK",
			References:    []string{"https://example.com/advisory"},
		}

		if err := repo.UpsertCVE(ctx, cve); err != nil {
			t.Fatalf("UpsertCVE failed: %v", err)
		}

		retrieved, err := repo.GetByID(ctx, "CVE-2017-15361")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if retrieved == nil {
			t.Fatal("CVE not found after insert")
		}
		if retrieved.Vendor != "infineon" {
			t.Errorf("Vendor mismatch: got %s, want infineon", retrieved.Vendor)
		}
		if !retrieved.PublishedDate.Equal(cve.PublishedDate) {
			t.Errorf("PublishedDate mismatch: got %v", retrieved.PublishedDate)
		}
		if len(retrieved.References) != 1 {
			t.Errorf("Expected 1 reference, got %v", retrieved.References)
		}

		cve.Severity = 7.5
		if err := repo.UpsertCVE(ctx, cve); err != nil {
			t.Fatalf("second UpsertCVE failed: %v", err)
		}
		retrieved, _ = repo.GetByID(ctx, cve.ID)
		if retrieved.Severity != 7.5 {
			t.Errorf("Severity not updated: got %v", retrieved.Severity)
		}
	})

	t.Run("RejectsEmptyID", func(t *testing.T) {
		if err := repo.UpsertCVE(ctx, domain.CVERecord{Vendor: "x"}); err == nil {
			t.Error("Expected an error for a record without id")
		}
	})

	t.Run("GetByIDMissing", func(t *testing.T) {
		cve, err := repo.GetByID(ctx, "CVE-0000-0000")
		if err != nil || cve != nil {
			t.Errorf("Expected nil, nil for a missing id, got %v, %v", cve, err)
		}
	})

	t.Run("FindByVendorProduct", func(t *testing.T) {
		cves, err := repo.FindByVendorProduct(ctx, "Infineon", "RSA_Library")
		if err != nil {
			t.Fatalf("FindByVendorProduct failed: %v", err)
		}
		if len(cves) != 1 || cves[0].ID != "CVE-2017-15361" {
			t.Errorf("Expected CVE-2017-15361, got %v", cves)
		}
	})

	t.Run("FindByVendor", func(t *testing.T) {
		if err := repo.UpsertCVE(ctx, domain.CVERecord{ID: "CVE-2018-0001", Vendor: "infineon", Product: "tpm", Severity: 9.1}); err != nil {
			t.Fatalf("UpsertCVE failed: %v", err)
		}

		cves, err := repo.FindByVendor(ctx, "INFINEON")
		if err != nil {
			t.Fatalf("FindByVendor failed: %v", err)
		}
		if len(cves) != 2 {
			t.Fatalf("Expected 2 CVEs, got %d", len(cves))
		}
		if cves[0].ID != "CVE-2018-0001" {
			t.Errorf("Expected highest severity first, got %s", cves[0].ID)
		}
	})

	t.Run("SearchByKeywords", func(t *testing.T) {
		cves, err := repo.SearchByKeywords(ctx, []string{"key generation", "unrelated"})
		if err != nil {
			t.Fatalf("SearchByKeywords failed: %v", err)
		}
		if len(cves) != 1 {
			t.Errorf("Expected 1 CVE matching keywords, got %d", len(cves))
		}

		cves, err = repo.SearchByKeywords(ctx, nil)
		if err != nil || cves != nil {
			t.Errorf("Expected nil result for no keywords, got %v, %v", cves, err)
		}
	})

	t.Run("GetTotalCount", func(t *testing.T) {
		count, err := repo.GetTotalCount(ctx)
		if err != nil {
			t.Fatalf("GetTotalCount failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected count 2, got %d", count)
		}
	})

	t.Run("SyncStatus", func(t *testing.T) {
		lastSync, err := repo.GetLastSyncTime(ctx)
		if err != nil {
			t.Fatalf("GetLastSyncTime failed: %v", err)
		}
		if !lastSync.IsZero() {
			t.Errorf("Fresh database should have no sync time, got %v", lastSync)
		}

		status := domain.CVESyncStatus{
			LastSyncTime: time.Now(),
			RecordCount:  2,
		}
		if err := repo.UpdateSyncStatus(ctx, status); err != nil {
			t.Fatalf("UpdateSyncStatus failed: %v", err)
		}

		lastSync, err = repo.GetLastSyncTime(ctx)
		if err != nil {
			t.Fatalf("GetLastSyncTime failed: %v", err)
		}
		if lastSync.IsZero() {
			t.Error("Last sync time should not be zero")
		}
	})
}
