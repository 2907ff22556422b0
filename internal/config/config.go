package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	RootDir     string
	DBPath      string
	CVEDBPath   string
	CVESeedPath string
	Addr        string
	Serve       bool
	Fetch       bool
	Debug       bool

	Workers           int
	RetryPasses       int
	MinDocumentSize   int64
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
	PDFToTextPath     string

	RulesPath        string
	LineSeparator    string
	CapturePositions bool

	MinCertificateID        int
	MaxIDDigits             int
	YearDifferenceThreshold int
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg, err := Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Parse builds a Config from the environment and the given arguments.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.RootDir = getEnv("CERTMAP_ROOT", getDefaultRootDir())
	cfg.DBPath = getEnv("CERTMAP_DB", "")
	cfg.CVEDBPath = getEnv("CERTMAP_CVE_DB", "")
	cfg.CVESeedPath = getEnv("CERTMAP_CVE_SEED", "")
	cfg.Addr = getEnv("CERTMAP_ADDR", ":8080")
	cfg.Serve = getEnvBool("CERTMAP_SERVE", false)
	cfg.Fetch = getEnvBool("CERTMAP_FETCH", false)
	cfg.Debug = getEnvBool("CERTMAP_DEBUG", false)
	cfg.Workers = getEnvInt("CERTMAP_WORKERS", 8)
	cfg.RetryPasses = getEnvInt("CERTMAP_RETRY_PASSES", 2)
	minSize := getEnvInt("CERTMAP_MIN_DOCUMENT_SIZE", 5000)
	cfg.RequestsPerSecond = getEnvFloat("CERTMAP_RPS", 4)
	cfg.HTTPTimeout = time.Duration(getEnvInt("CERTMAP_HTTP_TIMEOUT", 60)) * time.Second
	cfg.PDFToTextPath = getEnv("CERTMAP_PDFTOTEXT", "pdftotext")
	cfg.RulesPath = getEnv("CERTMAP_RULES", "")
	cfg.LineSeparator = getEnv("CERTMAP_LINE_SEPARATOR", " ")
	cfg.CapturePositions = getEnvBool("CERTMAP_CAPTURE_POSITIONS", false)
	cfg.MinCertificateID = getEnvInt("CERTMAP_MIN_CERT_ID", 40)
	cfg.MaxIDDigits = getEnvInt("CERTMAP_MAX_ID_DIGITS", 12)
	cfg.YearDifferenceThreshold = getEnvInt("CERTMAP_YEAR_THRESHOLD", 7)

	// Command Line Flags (Override Env)
	fs := flag.NewFlagSet("certmap", flag.ContinueOnError)
	fs.StringVar(&cfg.RootDir, "root", cfg.RootDir, "Dataset root directory (listings, PDFs, text)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite record store (default <root>/certmap.db)")
	fs.StringVar(&cfg.CVEDBPath, "cve-db", cfg.CVEDBPath, "Path to SQLite CVE database (empty disables CVE matching)")
	fs.StringVar(&cfg.CVESeedPath, "cve-seed", cfg.CVESeedPath, "CVE JSON file to load before matching")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.BoolVar(&cfg.Serve, "serve", cfg.Serve, "Serve the read-only API after the run")
	fs.BoolVar(&cfg.Fetch, "fetch", cfg.Fetch, "Download the portal listings before parsing")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent document workers")
	fs.IntVar(&cfg.RetryPasses, "retries", cfg.RetryPasses, "Extra passes over failed documents")
	fs.IntVar(&minSize, "min-doc-size", minSize, "Smallest accepted PDF in bytes")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "Download rate limit (<=0 disables)")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Per-download timeout")
	fs.StringVar(&cfg.PDFToTextPath, "pdftotext-path", cfg.PDFToTextPath, "Path to pdftotext binary")
	fs.StringVar(&cfg.RulesPath, "rules", cfg.RulesPath, "Keyword rule catalog YAML (empty uses the built-in one)")
	fs.StringVar(&cfg.LineSeparator, "line-sep", cfg.LineSeparator, `Line separator used when normalizing text ("\n" allowed)`)
	fs.BoolVar(&cfg.CapturePositions, "positions", cfg.CapturePositions, "Record match offsets")
	fs.IntVar(&cfg.MinCertificateID, "min-cert-id", cfg.MinCertificateID, "Smallest certificate number accepted as a reference")
	fs.IntVar(&cfg.MaxIDDigits, "max-id-digits", cfg.MaxIDDigits, "Longer numeric ids mark the document as garbage")
	fs.IntVar(&cfg.YearDifferenceThreshold, "year-threshold", cfg.YearDifferenceThreshold, "Max validity year distance of a reference")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.MinDocumentSize = int64(minSize)
	cfg.LineSeparator = unescape(cfg.LineSeparator)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.RootDir, "certmap.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.RootDir == "" {
		errs = append(errs, errors.New("root directory is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.RetryPasses < 0 {
		errs = append(errs, fmt.Errorf("retries cannot be negative, got %d", c.RetryPasses))
	}
	if c.MinDocumentSize < 0 {
		errs = append(errs, fmt.Errorf("min document size cannot be negative, got %d", c.MinDocumentSize))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout))
	}
	if c.LineSeparator == "" {
		errs = append(errs, errors.New("line separator cannot be empty"))
	}
	if c.MinCertificateID < 0 {
		errs = append(errs, fmt.Errorf("min certificate id cannot be negative, got %d", c.MinCertificateID))
	}
	if c.MaxIDDigits < 1 {
		errs = append(errs, fmt.Errorf("max id digits must be positive, got %d", c.MaxIDDigits))
	}
	if c.YearDifferenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("year threshold cannot be negative, got %d", c.YearDifferenceThreshold))
	}
	if c.CVESeedPath != "" && c.CVEDBPath == "" {
		errs = append(errs, errors.New("cve-seed requires cve-db"))
	}
	return errors.Join(errs...)
}

// unescape turns the two-character sequences \n and \t into the characters.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultRootDir returns the dataset directory in the user's home directory.
func getDefaultRootDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "certmap-data"
	}
	return filepath.Join(home, ".certmap")
}
