package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
	"github.com/lcalzada-xor/certmap/internal/core/services/merge"
	"github.com/lcalzada-xor/certmap/internal/telemetry"
)

// ParseSources parses every listing of set and merges the candidates into the record set:
// CSV files first, then CC HTML, then FIPS HTML. The algorithm list is loaded last.
// A file that fails to parse contributes nothing; its error is returned joined with the
// others once every file has been tried. A merge invariant violation aborts immediately.
func (d *Dataset) ParseSources(ctx context.Context, set SourceSet) error {
	ctx, end := d.startStage(ctx, "parse")
	defer end()

	d.mu.Lock()
	d.listed = make(map[string]bool)
	d.mu.Unlock()

	var fileErrs []error
	passes := []struct {
		files  []domain.SourceFile
		parser ports.ListingParser
		source domain.Source
	}{
		{set.CSV, d.deps.Parsers.CSV, domain.SourceCSV},
		{set.HTML, d.deps.Parsers.HTML, domain.SourceHTML},
		{set.FIPSHTML, d.deps.Parsers.FIPSHTML, domain.SourceFIPSHTML},
	}
	for _, pass := range passes {
		if len(pass.files) > 0 && pass.parser == nil {
			return fmt.Errorf("no parser configured for %s listings", pass.source)
		}
		for _, f := range pass.files {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := pass.parser.ParseFile(f.Path, f.ResolvedStatus())
			if err != nil {
				slog.Error("source file rejected", "file", f.Path, "error", err)
				fileErrs = append(fileErrs, err)
				continue
			}
			if err := d.mergeResult(res, pass.source); err != nil {
				return err
			}
		}
	}

	if set.Algorithms != "" && d.deps.Parsers.Algorithms != nil {
		list, err := d.deps.Parsers.Algorithms.ParseFile(set.Algorithms)
		if err != nil {
			slog.Error("algorithm list rejected", "file", set.Algorithms, "error", err)
			fileErrs = append(fileErrs, err)
		} else {
			d.mu.Lock()
			d.algorithms = list.Index
			d.mu.Unlock()
		}
	}

	d.swap(nil, func(s *domain.DatasetState, _ *domain.RunSummary) { s.MetaSourcesParsed = true })
	slog.Info("sources parsed", "certificates", d.Len(), "failed_files", len(fileErrs))
	return errors.Join(fileErrs...)
}

func (d *Dataset) mergeResult(res *domain.ParseResult, source domain.Source) error {
	next, stats, err := d.merger.Merge(d.Snapshot(), res.Certificates, source)
	if err != nil {
		return err
	}
	telemetry.MergeRecords.WithLabelValues("new").Add(float64(stats.New))
	telemetry.MergeRecords.WithLabelValues("merged").Add(float64(stats.Merged))

	d.swap(next, func(_ *domain.DatasetState, sum *domain.RunSummary) {
		for dgst := range res.Certificates {
			d.listed[dgst] = true
		}
		sum.Parsed += len(res.Certificates)
		sum.Duplicates += res.Duplicates
		sum.SkippedRows += res.SkippedRows()
		sum.New += stats.New
		sum.Merged += stats.Merged
	})
	for _, dgst := range changedDigests(res) {
		d.checkpoint(next[dgst])
	}
	return nil
}

func changedDigests(res *domain.ParseResult) []string {
	out := make([]string, 0, len(res.Certificates))
	for dgst := range res.Certificates {
		out = append(out, dgst)
	}
	return out
}

// recordChanges diffs the records listed by the last ParseSources against before.
// Records of before that no listing mentioned any more count as removed.
func (d *Dataset) recordChanges(before map[string]*domain.Certificate) {
	d.mu.RLock()
	after := make(map[string]*domain.Certificate, len(d.listed))
	for dgst := range d.listed {
		if c, ok := d.certs[dgst]; ok {
			after[dgst] = c
		}
	}
	d.mu.RUnlock()

	counts := merge.Count(merge.Diff(before, after))
	d.swap(nil, func(_ *domain.DatasetState, sum *domain.RunSummary) {
		sum.Changed = counts[merge.ChangeUpdate]
		sum.Removed = counts[merge.ChangeRemove]
	})
	slog.Info("listing changes",
		"new", counts[merge.ChangeNew],
		"changed", counts[merge.ChangeUpdate],
		"removed", counts[merge.ChangeRemove])
}
