// Package dataset owns the certificate record set and drives the processing pipeline over it.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
	"github.com/lcalzada-xor/certmap/internal/core/services/keywords"
	"github.com/lcalzada-xor/certmap/internal/core/services/merge"
	"github.com/lcalzada-xor/certmap/internal/core/services/references"
	"github.com/lcalzada-xor/certmap/internal/telemetry"
)

// Defaults for Options fields left zero.
const (
	DefaultWorkers         = 8
	DefaultRetryPasses     = 2
	DefaultMinDocumentSize = 5000
)

// Parsers groups the listing parsers used by ParseSources.
type Parsers struct {
	CSV        ports.ListingParser
	HTML       ports.ListingParser
	FIPSHTML   ports.ListingParser
	Algorithms ports.AlgorithmSource
}

// Checkpointer receives records as soon as a stage has updated them.
// Flush blocks until every record handed to Persist so far is stored.
type Checkpointer interface {
	Persist(cert domain.Certificate)
	Flush()
}

// Deps are the collaborators of a Dataset. Store, Matcher and Checkpoints are optional.
type Deps struct {
	Parsers     Parsers
	Downloader  ports.Downloader
	Converter   ports.Converter
	Store       ports.CertificateStore
	Extractor   *keywords.Extractor
	Resolver    *references.Resolver
	Matcher     ports.CVEMatcher
	Checkpoints Checkpointer
}

// Options tune the pipeline.
type Options struct {
	RootDir         string
	Workers         int
	RetryPasses     int
	MinDocumentSize int64
}

// SourceSet lists the raw inputs of one run.
type SourceSet struct {
	CSV        []domain.SourceFile
	HTML       []domain.SourceFile
	FIPSHTML   []domain.SourceFile
	Algorithms string
}

// Dataset is the aggregate root. Readers get snapshots; stages build a new map and swap it in.
// Stages must not run concurrently with each other.
type Dataset struct {
	mu         sync.RWMutex
	certs      map[string]*domain.Certificate
	state      domain.DatasetState
	algorithms domain.AlgorithmIndex
	summary    *domain.RunSummary
	listed     map[string]bool

	deps   Deps
	opts   Options
	merger *merge.CertificateMerger
	tracer trace.Tracer
}

// New creates an empty dataset. A nil Extractor or Resolver gets the defaults.
func New(deps Deps, opts Options) (*Dataset, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RetryPasses < 0 {
		opts.RetryPasses = 0
	}
	if opts.MinDocumentSize <= 0 {
		opts.MinDocumentSize = DefaultMinDocumentSize
	}
	if deps.Extractor == nil {
		catalog, err := keywords.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		deps.Extractor = keywords.NewExtractor(catalog, keywords.Options{})
	}
	if deps.Resolver == nil {
		deps.Resolver = references.NewResolver(references.DefaultConfig())
	}
	return &Dataset{
		certs:      make(map[string]*domain.Certificate),
		algorithms: make(domain.AlgorithmIndex),
		summary:    domain.NewRunSummary(),
		deps:       deps,
		opts:       opts,
		merger:     merge.NewCertificateMerger(),
		tracer:     telemetry.Tracer("dataset"),
	}, nil
}

// Snapshot returns the current record map. Callers must not mutate it.
func (d *Dataset) Snapshot() map[string]*domain.Certificate {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.certs
}

// Get returns a copy of one record.
func (d *Dataset) Get(dgst string) (*domain.Certificate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.certs[dgst]
	if !ok {
		return nil, domain.ErrCertificateNotFound
	}
	return c.Clone(), nil
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.certs)
}

// State returns the dataset-level stage flags.
func (d *Dataset) State() domain.DatasetState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Algorithms returns the algorithm index loaded by ParseSources.
func (d *Dataset) Algorithms() domain.AlgorithmIndex {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.algorithms
}

// Summary returns a copy of the summary of the current or last run.
func (d *Dataset) Summary() domain.RunSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := *d.summary
	out.RejectedReferences = make(map[string]int, len(d.summary.RejectedReferences))
	for k, v := range d.summary.RejectedReferences {
		out.RejectedReferences[k] = v
	}
	return out
}

// swap installs a new record map and updates state and summary under one lock.
func (d *Dataset) swap(certs map[string]*domain.Certificate, update func(*domain.DatasetState, *domain.RunSummary)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if certs != nil {
		d.certs = certs
	}
	if update != nil {
		update(&d.state, d.summary)
	}
}

func (d *Dataset) require(stage string, ok func(domain.DatasetState) bool) error {
	if !ok(d.State()) {
		return fmt.Errorf("%w: %s", domain.ErrStagePrerequisite, stage)
	}
	return nil
}

// startStage opens a span and returns the function that closes it and records the duration.
func (d *Dataset) startStage(ctx context.Context, stage string) (context.Context, func()) {
	ctx, span := d.tracer.Start(ctx, "dataset."+stage)
	span.SetAttributes(attribute.Int("certificates", d.Len()))
	start := time.Now()
	return ctx, func() {
		telemetry.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func (d *Dataset) checkpoint(c *domain.Certificate) {
	if d.deps.Checkpoints != nil {
		d.deps.Checkpoints.Persist(*c)
	}
}

// docPath returns where a document of a certificate lives on disk.
func (d *Dataset) docPath(dgst string, kind domain.DocumentKind, ext string) string {
	dir := "reports"
	if kind == domain.DocumentTarget {
		dir = "targets"
	}
	return filepath.Join(d.opts.RootDir, dir, ext, dgst+"."+ext)
}

// Load restores records and stage flags from the store.
func (d *Dataset) Load(ctx context.Context) error {
	if d.deps.Store == nil {
		return nil
	}
	certs, err := d.deps.Store.LoadCertificates(ctx)
	if err != nil {
		return fmt.Errorf("load certificates: %w", err)
	}
	state, err := d.deps.Store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load dataset state: %w", err)
	}
	last, err := d.deps.Store.LastSummary(ctx)
	if err != nil {
		return fmt.Errorf("load last summary: %w", err)
	}

	next := make(map[string]*domain.Certificate, len(certs))
	for i := range certs {
		c := certs[i]
		next[c.Digest] = &c
	}
	d.swap(next, func(s *domain.DatasetState, _ *domain.RunSummary) { *s = state })
	if last != nil {
		d.mu.Lock()
		d.summary = last
		d.mu.Unlock()
	}
	slog.Info("dataset loaded", "certificates", len(next), "last_run", last != nil)
	return nil
}

// Persist writes every record, the stage flags and the summary to the store.
func (d *Dataset) Persist(ctx context.Context) error {
	if d.deps.Store == nil {
		return nil
	}
	snapshot := d.Snapshot()
	certs := make([]domain.Certificate, 0, len(snapshot))
	for _, dgst := range domain.SortedDigests(snapshot) {
		certs = append(certs, *snapshot[dgst])
	}
	if err := d.deps.Store.UpsertCertificates(ctx, certs); err != nil {
		return fmt.Errorf("persist certificates: %w", err)
	}
	if err := d.deps.Store.SaveState(ctx, d.State()); err != nil {
		return fmt.Errorf("persist dataset state: %w", err)
	}
	if err := d.deps.Store.SaveSummary(ctx, d.Summary()); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}
	return nil
}
