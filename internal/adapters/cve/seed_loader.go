package cve

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// SeedLoader loads CVE records from JSON files into the database.
type SeedLoader struct {
	repo ports.CVERepository
	now  func() time.Time
}

// NewSeedLoader creates a new seed loader.
func NewSeedLoader(repo ports.CVERepository) *SeedLoader {
	return &SeedLoader{repo: repo, now: time.Now}
}

// LoadFromFile loads CVE records from a JSON array file and returns how many were stored.
func (s *SeedLoader) LoadFromFile(ctx context.Context, filepath string) (int, error) {
	log.Printf("[CVE-SEED] Loading CVEs from %s", filepath)

	data, err := os.ReadFile(filepath)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var cves []domain.CVERecord
	if err := json.Unmarshal(data, &cves); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	loaded := 0
	failed := 0
	for _, cve := range cves {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		if err := s.repo.UpsertCVE(ctx, cve); err != nil {
			log.Printf("[CVE-SEED] Failed to load %s: %v", cve.ID, err)
			failed++
			continue
		}
		loaded++
	}

	log.Printf("[CVE-SEED] Loaded %d CVEs (%d failed)", loaded, failed)

	total, err := s.repo.GetTotalCount(ctx)
	if err != nil {
		return loaded, fmt.Errorf("count records: %w", err)
	}
	status := domain.CVESyncStatus{
		LastSyncTime: s.now(),
		RecordCount:  total,
	}
	if failed > 0 {
		status.ErrorMessage = fmt.Sprintf("%d records failed to load from %s", failed, filepath)
	}
	if err := s.repo.UpdateSyncStatus(ctx, status); err != nil {
		return loaded, fmt.Errorf("update sync status: %w", err)
	}
	return loaded, nil
}

// LoadFromMultipleFiles loads CVEs from multiple JSON files. Unreadable files are logged and skipped.
func (s *SeedLoader) LoadFromMultipleFiles(ctx context.Context, filepaths []string) int {
	totalFiles := 0
	totalRecords := 0

	for _, filepath := range filepaths {
		n, err := s.LoadFromFile(ctx, filepath)
		totalRecords += n
		if err != nil {
			log.Printf("[CVE-SEED] Failed to load %s: %v", filepath, err)
			continue
		}
		totalFiles++
	}

	log.Printf("[CVE-SEED] Loaded %d CVEs from %d/%d files", totalRecords, totalFiles, len(filepaths))
	return totalRecords
}
