package cve

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSeed(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestSeedLoader_LoadFromFile(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	loader := NewSeedLoader(repo)
	loader.now = func() time.Time { return fixed }

	seed := writeSeed(t, "seed.json", `[
		{"cve_id": "CVE-2017-15361", "vendor": "infineon", "product": "rsa_library", "description": "ROCA", "severity": 5.9},
		{"cve_id": "", "vendor": "broken"},
		{"cve_id": "CVE-2019-1234", "vendor": "acme", "product": "acme_db", "description": "Acme", "severity": 7}
	]`)

	n, err := loader.LoadFromFile(ctx, seed)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 loaded records, got %d", n)
	}

	count, _ := repo.GetTotalCount(ctx)
	if count != 2 {
		t.Errorf("Expected 2 stored records, got %d", count)
	}
	last, err := repo.GetLastSyncTime(ctx)
	if err != nil {
		t.Fatalf("GetLastSyncTime failed: %v", err)
	}
	if !last.Equal(fixed) {
		t.Errorf("Sync time = %v, want %v", last, fixed)
	}
}

func TestSeedLoader_Errors(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()
	loader := NewSeedLoader(repo)

	if _, err := loader.LoadFromFile(ctx, writeSeed(t, "bad.json", `{not json`)); err == nil {
		t.Error("Expected parse error")
	}

	empty := writeSeed(t, "empty.json", `[]`)
	if n, err := loader.LoadFromFile(ctx, empty); err != nil || n != 0 {
		t.Errorf("Empty seed: got %d, %v", n, err)
	}

	good := writeSeed(t, "good.json", `[{"cve_id": "CVE-2020-0001", "vendor": "acme", "product": "x"}]`)
	total := loader.LoadFromMultipleFiles(ctx, []string{filepath.Join(t.TempDir(), "missing.json"), good})
	if total != 1 {
		t.Errorf("Expected 1 record across files, got %d", total)
	}
}
