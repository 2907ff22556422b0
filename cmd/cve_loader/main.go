package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/lcalzada-xor/certmap/internal/adapters/cve"
)

func main() {
	seedFiles := flag.String("seed-file", "./configs/cve_seed.json", "Path(s) to CVE seed JSON files (comma separated)")
	dbPath := flag.String("db-path", "./data/cve.db", "Path to CVE database")
	flag.Parse()

	log.Println("=== CVE Seed Loader ===")
	log.Printf("Seed files: %s", *seedFiles)
	log.Printf("Database: %s", *dbPath)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Create repository
	repo, err := cve.NewSQLiteRepository(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Load seed data
	loader := cve.NewSeedLoader(repo)
	var paths []string
	for _, p := range strings.Split(*seedFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 1 {
		if _, err := loader.LoadFromFile(ctx, paths[0]); err != nil {
			log.Fatalf("Failed to load seed data: %v", err)
		}
	} else {
		loader.LoadFromMultipleFiles(ctx, paths)
	}

	// Show stats
	count, _ := repo.GetTotalCount(ctx)
	log.Printf("Database now contains %d CVEs", count)
}
