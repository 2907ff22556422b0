package dataset

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/telemetry"
)

// docTask is one document of one certificate handed to a worker.
type docTask struct {
	cert *domain.Certificate // shared snapshot, read only
	kind domain.DocumentKind
}

// docResult is what a worker hands back. It is applied after the pool has drained.
type docResult struct {
	digest     string
	kind       domain.DocumentKind
	status     domain.StageStatus
	path       string
	httpStatus int
	garbage    bool
	unreadable bool
	keywords   domain.KeywordMatches
	frontPage  *domain.FrontPage
	err        error
}

// docStage describes one per-document stage.
type docStage struct {
	name     string
	field    func(*domain.DocumentState) *domain.StageStatus
	eligible func(c *domain.Certificate, kind domain.DocumentKind) bool
	work     func(ctx context.Context, t docTask) docResult
	apply    func(c *domain.Certificate, r docResult)
}

var documentKinds = []domain.DocumentKind{domain.DocumentReport, domain.DocumentTarget}

// runDocStage makes one pass over pending documents, then up to RetryPasses passes over failed ones.
// On cancellation the finished documents are kept and ctx.Err() is returned.
func (d *Dataset) runDocStage(ctx context.Context, st docStage) error {
	for pass := 0; pass <= d.opts.RetryPasses; pass++ {
		want := domain.StagePending
		if pass > 0 {
			want = domain.StageFailed
		}
		tasks := d.collect(st, want)
		if len(tasks) == 0 {
			if pass == 0 {
				continue
			}
			break
		}
		results := d.pool(ctx, tasks, st.work)
		d.apply(st, results)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dataset) collect(st docStage, want domain.StageStatus) []docTask {
	certs := d.Snapshot()
	var tasks []docTask
	for _, dgst := range domain.SortedDigests(certs) {
		c := certs[dgst]
		for _, kind := range documentKinds {
			if *st.field(c.State.Doc(kind)) != want || !st.eligible(c, kind) {
				continue
			}
			tasks = append(tasks, docTask{cert: c, kind: kind})
		}
	}
	return tasks
}

// pool runs work over tasks with at most Workers goroutines.
// Tasks not started or interrupted by cancellation produce no result.
func (d *Dataset) pool(ctx context.Context, tasks []docTask, work func(context.Context, docTask) docResult) []docResult {
	results := make([]docResult, len(tasks))
	done := make([]bool, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, t := range tasks {
		if gctx.Err() != nil {
			break
		}
		i, t := i, t
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r := work(gctx, t)
			if gctx.Err() != nil && r.status != domain.StageOK {
				return nil
			}
			results[i] = r
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]docResult, 0, len(tasks))
	for i, r := range results {
		if done[i] {
			out = append(out, r)
		}
	}
	return out
}

// apply writes results into clones of the affected records and swaps the map in.
func (d *Dataset) apply(st docStage, results []docResult) {
	if len(results) == 0 {
		return
	}
	current := d.Snapshot()
	next := make(map[string]*domain.Certificate, len(current))
	for k, v := range current {
		next[k] = v
	}

	cloned := make(map[string]bool)
	for _, r := range results {
		c, ok := next[r.digest]
		if !ok {
			continue
		}
		if !cloned[r.digest] {
			c = c.Clone()
			next[r.digest] = c
			cloned[r.digest] = true
		}
		field := st.field(c.State.Doc(r.kind))
		*field = field.Advance(r.status)
		if r.err != nil {
			c.State.Errors = append(c.State.Errors, st.name+" "+string(r.kind)+": "+r.err.Error())
		}
		st.apply(c, r)
		telemetry.Documents.WithLabelValues(st.name, string(r.kind), string(r.status)).Inc()
	}

	d.swap(next, nil)
	for dgst := range cloned {
		d.checkpoint(next[dgst])
	}
}

// countStatus counts documents whose stage field equals status.
func countStatus(certs map[string]*domain.Certificate, field func(*domain.DocumentState) *domain.StageStatus, status domain.StageStatus) int {
	n := 0
	for _, c := range certs {
		for _, kind := range documentKinds {
			if *field(c.State.Doc(kind)) == status {
				n++
			}
		}
	}
	return n
}
