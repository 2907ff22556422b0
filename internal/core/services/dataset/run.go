package dataset

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// Run executes every stage in order, persists the result and returns the run summary.
// Rejected source files are reported as a warning; any other stage error ends the run.
func (d *Dataset) Run(ctx context.Context, set SourceSet) (domain.RunSummary, error) {
	d.mu.Lock()
	d.summary = domain.NewRunSummary()
	d.state = domain.DatasetState{}
	d.mu.Unlock()

	runID := d.Summary().ID
	log := slog.With("run", runID)
	log.Info("pipeline started")

	before := d.Snapshot()
	if err := d.ParseSources(ctx, set); err != nil {
		if errors.Is(err, domain.ErrMergeInvariant) || ctx.Err() != nil {
			return d.finish(), err
		}
		log.Warn("some source files were rejected, listing changes not recorded", "error", err)
	} else if len(before) > 0 {
		d.recordChanges(before)
	}

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"download", d.DownloadAll},
		{"convert", d.ConvertAll},
		{"extract", d.ExtractAll},
		{"resolve", d.ResolveReferences},
		{"cve", d.EnrichCVEs},
	}
	for _, st := range stages {
		if err := st.fn(ctx); err != nil {
			log.Error("stage failed", "stage", st.name, "error", err)
			return d.finish(), err
		}
	}

	d.finish()
	// Queued checkpoints hold older copies and must land before the final write.
	if d.deps.Checkpoints != nil {
		d.deps.Checkpoints.Flush()
	}
	if err := d.Persist(ctx); err != nil {
		return d.Summary(), err
	}
	sum := d.Summary()
	log.Info("pipeline finished",
		"certificates", d.Len(),
		"edges", sum.Edges,
		"rejected", sum.TotalRejected(),
		"duration", sum.FinishedAt.Sub(sum.StartedAt))
	return sum, nil
}

func (d *Dataset) finish() domain.RunSummary {
	d.swap(nil, func(_ *domain.DatasetState, sum *domain.RunSummary) { sum.FinishedAt = time.Now() })
	return d.Summary()
}
