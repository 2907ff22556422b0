package dataset

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/references"
	"github.com/lcalzada-xor/certmap/internal/telemetry"
)

// ResolveReferences recomputes every reference edge and flag from the extracted keywords.
func (d *Dataset) ResolveReferences(ctx context.Context) error {
	if err := d.require("resolve", func(s domain.DatasetState) bool { return s.CertsAnalyzed }); err != nil {
		return err
	}
	_, end := d.startStage(ctx, "resolve")
	defer end()

	current := d.Snapshot()
	res := d.deps.Resolver.Resolve(current, d.Algorithms())

	next := make(map[string]*domain.Certificate, len(current))
	for dgst, c := range current {
		next[dgst] = c.Clone()
	}
	references.Apply(next, res)

	telemetry.References.WithLabelValues("accepted").Add(float64(res.EdgeCount()))
	for reason, n := range res.Rejected {
		telemetry.References.WithLabelValues(reason).Add(float64(n))
	}

	d.swap(next, func(_ *domain.DatasetState, sum *domain.RunSummary) {
		sum.Edges = res.EdgeCount()
		sum.FlaggedCertificates = len(res.Flagged)
		sum.RejectedReferences = make(map[string]int, len(res.Rejected))
		for reason, n := range res.Rejected {
			sum.RejectedReferences[reason] = n
		}
	})
	for _, c := range next {
		d.checkpoint(c)
	}
	slog.Info("references resolved", "edges", res.EdgeCount(), "flagged", len(res.Flagged))
	return nil
}

// EnrichCVEs attaches the ids of matching CVEs to every record. It is a no-op without a matcher.
// Lookup failures are logged per record and leave the previous list in place.
func (d *Dataset) EnrichCVEs(ctx context.Context) error {
	if d.deps.Matcher == nil {
		return nil
	}
	if err := d.require("cve", func(s domain.DatasetState) bool { return s.MetaSourcesParsed }); err != nil {
		return err
	}
	ctx, end := d.startStage(ctx, "cve")
	defer end()

	current := d.Snapshot()
	digests := domain.SortedDigests(current)

	var mu sync.Mutex
	found := make(map[string][]string, len(digests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, dgst := range digests {
		if gctx.Err() != nil {
			break
		}
		c := current[dgst]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			matches, err := d.deps.Matcher.FindMatches(gctx, *c)
			if err != nil {
				slog.Warn("cve lookup failed", "dgst", c.Digest, "error", err)
				return nil
			}
			ids := cveIDs(matches)
			mu.Lock()
			found[c.Digest] = ids
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	next := make(map[string]*domain.Certificate, len(current))
	total := 0
	for dgst, c := range current {
		ids, ok := found[dgst]
		if !ok || equalStrings(ids, c.RelatedCVEs) {
			next[dgst] = c
			total += len(c.RelatedCVEs)
			continue
		}
		c = c.Clone()
		c.RelatedCVEs = ids
		next[dgst] = c
		total += len(ids)
		d.checkpoint(c)
	}
	d.swap(next, func(_ *domain.DatasetState, sum *domain.RunSummary) { sum.RelatedCVEs = total })
	slog.Info("cve enrichment finished", "related", total)
	return ctx.Err()
}

func cveIDs(matches []domain.CVEMatch) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if !seen[m.CVE.ID] {
			seen[m.CVE.ID] = true
			out = append(out, m.CVE.ID)
		}
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
