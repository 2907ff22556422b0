package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lcalzada-xor/certmap/internal/adapters/convert"
	"github.com/lcalzada-xor/certmap/internal/adapters/cve"
	"github.com/lcalzada-xor/certmap/internal/adapters/fetch"
	"github.com/lcalzada-xor/certmap/internal/adapters/sources"
	"github.com/lcalzada-xor/certmap/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/certmap/internal/adapters/web/server"
	"github.com/lcalzada-xor/certmap/internal/config"
	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
	"github.com/lcalzada-xor/certmap/internal/core/services/dataset"
	"github.com/lcalzada-xor/certmap/internal/core/services/keywords"
	"github.com/lcalzada-xor/certmap/internal/core/services/persistence"
	"github.com/lcalzada-xor/certmap/internal/core/services/references"
	"github.com/lcalzada-xor/certmap/internal/telemetry"
)

// Layout of the dataset root.
const (
	ListingsDir    = "web"
	AlgorithmsFile = "fips_algorithms.html"
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config             *config.Config
	Store              *storage.SQLiteAdapter
	CVERepo            *cve.SQLiteRepository
	Downloader         *fetch.HTTPDownloader
	Dataset            *dataset.Dataset
	PersistenceManager *persistence.PersistenceManager
	WebServer          *webserver.Server
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	if err := app.bootstrap(); err != nil {
		app.Close()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	if err := os.MkdirAll(filepath.Join(app.Config.RootDir, ListingsDir), 0755); err != nil {
		return fmt.Errorf("failed to create dataset root: %w", err)
	}

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Store = store

	matcher, err := app.initCVE()
	if err != nil {
		return err
	}

	// 2. Domain Services
	catalog, err := keywords.LoadCatalog(app.Config.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load rule catalog: %w", err)
	}
	extractor := keywords.NewExtractor(catalog, keywords.Options{
		LineSeparator:    app.Config.LineSeparator,
		CapturePositions: app.Config.CapturePositions,
	})
	resolver := references.NewResolver(references.Config{
		MinCertificateID:        app.Config.MinCertificateID,
		MaxIDDigits:             app.Config.MaxIDDigits,
		YearDifferenceThreshold: app.Config.YearDifferenceThreshold,
	})

	app.PersistenceManager = persistence.NewPersistenceManager(store, 10000)
	app.Downloader = fetch.NewHTTPDownloader(app.Config.RequestsPerSecond, app.Config.HTTPTimeout)

	deps := dataset.Deps{
		Parsers: dataset.Parsers{
			CSV:        sources.NewCSVParser(),
			HTML:       sources.NewHTMLParser(nil),
			FIPSHTML:   sources.NewFIPSHTMLParser(),
			Algorithms: sources.NewAlgorithmParser(),
		},
		Downloader:  app.Downloader,
		Converter:   convert.NewPDFToText(app.Config.PDFToTextPath, 0),
		Store:       store,
		Extractor:   extractor,
		Resolver:    resolver,
		Checkpoints: app.PersistenceManager,
	}
	if matcher != nil {
		deps.Matcher = matcher
	}

	app.Dataset, err = dataset.New(deps, dataset.Options{
		RootDir:         app.Config.RootDir,
		Workers:         app.Config.Workers,
		RetryPasses:     app.Config.RetryPasses,
		MinDocumentSize: app.Config.MinDocumentSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	// 3. Servers
	if app.Config.Serve {
		app.WebServer = webserver.NewServer(app.Config.Addr, app.Dataset)
	}
	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init record storage: %w", err)
	}
	return store, nil
}

// initCVE opens the CVE database when configured. Without one, CVE enrichment is skipped.
func (app *Application) initCVE() (ports.CVEMatcher, error) {
	if app.Config.CVEDBPath == "" {
		return nil, nil
	}

	repo, err := cve.NewSQLiteRepository(app.Config.CVEDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CVE database: %w", err)
	}
	app.CVERepo = repo

	if app.Config.CVESeedPath != "" {
		n, err := cve.NewSeedLoader(repo).LoadFromFile(context.Background(), app.Config.CVESeedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to seed CVE database: %w", err)
		}
		log.Printf("[CVE-SEED] Loaded %d CVEs from %s", n, app.Config.CVESeedPath)
	}

	return cve.NewCVEMatcher(repo, cve.DefaultCacheSize), nil
}

// BuildSourceSet classifies the listing files found in dir.
// Known listing names keep their format; other files are classified by name and extension.
func BuildSourceSet(dir string) (dataset.SourceSet, error) {
	var set dataset.SourceSet

	entries, err := os.ReadDir(dir)
	if err != nil {
		return set, fmt.Errorf("read listings dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(dir, name)
		if name == AlgorithmsFile {
			set.Algorithms = path
			continue
		}

		format, ok := fetch.FormatOf(name)
		if !ok {
			format, ok = guessFormat(name)
		}
		if !ok {
			continue
		}

		file := domain.SourceFile{Path: path}
		switch format {
		case fetch.FormatCSV:
			set.CSV = append(set.CSV, file)
		case fetch.FormatHTML:
			set.HTML = append(set.HTML, file)
		case fetch.FormatFIPSHTML:
			set.FIPSHTML = append(set.FIPSHTML, file)
		}
	}
	return set, nil
}

func guessFormat(name string) (fetch.Format, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return fetch.FormatCSV, true
	case strings.HasSuffix(lower, ".html") && strings.HasPrefix(lower, "fips"):
		return fetch.FormatFIPSHTML, true
	case strings.HasSuffix(lower, ".html"):
		return fetch.FormatHTML, true
	}
	return "", false
}

// Run executes the pipeline and, when serving, blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting certmap components...")

	listings := filepath.Join(app.Config.RootDir, ListingsDir)

	// 1. Restore previous state
	if err := app.Dataset.Load(ctx); err != nil {
		return err
	}

	// 2. Optional listing refresh
	if app.Config.Fetch {
		if _, err := fetch.FetchListings(ctx, app.Downloader, listings, fetch.DefaultListings); err != nil {
			slog.Warn("some listings could not be fetched", "error", err)
		}
	}

	set, err := BuildSourceSet(listings)
	if err != nil {
		return err
	}

	// 3. Pipeline with background checkpoints
	pmCtx, stopCheckpoints := context.WithCancel(context.Background())
	app.PersistenceManager.Start(pmCtx)
	summary, runErr := app.Dataset.Run(ctx, set)
	stopCheckpoints()
	app.PersistenceManager.Wait()

	if runErr != nil {
		slog.Error("Pipeline failed", "error", runErr)
		if !app.Config.Serve || ctx.Err() != nil {
			return runErr
		}
	} else {
		slog.Info("Pipeline complete",
			"parsed", summary.Parsed,
			"new", summary.New,
			"merged", summary.Merged,
			"extracted", summary.Extracted,
			"edges", summary.Edges)
	}

	// 4. Serve
	if app.WebServer == nil {
		return runErr
	}
	slog.Info("certmap Ready. Press Ctrl+C to terminate.")
	if err := app.WebServer.Run(ctx); err != nil {
		return fmt.Errorf("web server error: %w", err)
	}
	return nil
}

// Close releases the stores.
func (app *Application) Close() error {
	var errs []error
	if app.Store != nil {
		errs = append(errs, app.Store.Close())
	}
	if app.CVERepo != nil {
		errs = append(errs, app.CVERepo.Close())
	}
	return errors.Join(errs...)
}
