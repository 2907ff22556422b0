package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/keywords"
)

func downloadField(s *domain.DocumentState) *domain.StageStatus { return &s.Download }
func convertField(s *domain.DocumentState) *domain.StageStatus  { return &s.Convert }
func extractField(s *domain.DocumentState) *domain.StageStatus  { return &s.Extract }

// DownloadAll fetches the report and target PDFs of every record that has a link.
func (d *Dataset) DownloadAll(ctx context.Context) error {
	if err := d.require("download", func(s domain.DatasetState) bool { return s.MetaSourcesParsed }); err != nil {
		return err
	}
	ctx, end := d.startStage(ctx, "download")
	defer end()

	err := d.runDocStage(ctx, docStage{
		name:  "download",
		field: downloadField,
		eligible: func(c *domain.Certificate, kind domain.DocumentKind) bool {
			return c.Link(kind) != ""
		},
		work: d.download,
		apply: func(c *domain.Certificate, r docResult) {
			doc := c.Document(r.kind)
			c.State.Doc(r.kind).HTTPStatus = r.httpStatus
			if r.status == domain.StageOK {
				doc.PDFPath = r.path
			}
		},
	})

	failed := countStatus(d.Snapshot(), downloadField, domain.StageFailed)
	d.swap(nil, func(s *domain.DatasetState, sum *domain.RunSummary) {
		sum.FailedDownloads = failed
		if err == nil {
			s.PDFsDownloaded = true
		}
	})
	slog.Info("downloads finished", "failed", failed)
	return err
}

func (d *Dataset) download(ctx context.Context, t docTask) docResult {
	dest := d.docPath(t.cert.Digest, t.kind, "pdf")
	r := docResult{digest: t.cert.Digest, kind: t.kind, status: domain.StageFailed, path: dest}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		r.err = err
		return r
	}
	code, err := d.deps.Downloader.Download(ctx, t.cert.Link(t.kind), dest)
	r.httpStatus = code
	switch {
	case err != nil:
		r.err = err
	case code != http.StatusOK:
		r.err = fmt.Errorf("unexpected status %d", code)
	default:
		info, statErr := os.Stat(dest)
		if statErr != nil {
			r.err = statErr
		} else if info.Size() < d.opts.MinDocumentSize {
			r.err = fmt.Errorf("document too small: %d bytes", info.Size())
		} else {
			r.status = domain.StageOK
			return r
		}
	}
	_ = os.Remove(dest)
	slog.Debug("download failed", "dgst", t.cert.Digest, "document", t.kind, "error", r.err)
	return r
}

// ConvertAll turns every downloaded PDF into text.
func (d *Dataset) ConvertAll(ctx context.Context) error {
	if err := d.require("convert", func(s domain.DatasetState) bool { return s.PDFsDownloaded }); err != nil {
		return err
	}
	ctx, end := d.startStage(ctx, "convert")
	defer end()

	err := d.runDocStage(ctx, docStage{
		name:  "convert",
		field: convertField,
		eligible: func(c *domain.Certificate, kind domain.DocumentKind) bool {
			return c.State.Doc(kind).DownloadOK()
		},
		work: d.convert,
		apply: func(c *domain.Certificate, r docResult) {
			if r.status == domain.StageOK {
				c.Document(r.kind).TextPath = r.path
				c.State.Doc(r.kind).Garbage = r.garbage
			}
		},
	})

	certs := d.Snapshot()
	failed := countStatus(certs, convertField, domain.StageFailed)
	garbage := 0
	for _, c := range certs {
		for _, kind := range documentKinds {
			if c.State.Doc(kind).Garbage {
				garbage++
			}
		}
	}
	d.swap(nil, func(s *domain.DatasetState, sum *domain.RunSummary) {
		sum.FailedConversions = failed
		sum.GarbageConversions = garbage
		if err == nil {
			s.PDFsConverted = true
		}
	})
	slog.Info("conversions finished", "failed", failed, "garbage", garbage)
	return err
}

func (d *Dataset) convert(ctx context.Context, t docTask) docResult {
	dest := d.docPath(t.cert.Digest, t.kind, "txt")
	r := docResult{digest: t.cert.Digest, kind: t.kind, status: domain.StageFailed, path: dest}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		r.err = err
		return r
	}
	res, err := d.deps.Converter.Convert(ctx, t.cert.Document(t.kind).PDFPath, dest)
	if err != nil {
		r.err = err
		return r
	}
	r.status = domain.StageOK
	r.garbage = res.Garbage
	return r
}

// ExtractAll runs the keyword catalog over every converted document, reads the front
// page of CC reports and estimates the certificate id of CC records.
func (d *Dataset) ExtractAll(ctx context.Context) error {
	if err := d.require("extract", func(s domain.DatasetState) bool { return s.PDFsConverted }); err != nil {
		return err
	}
	ctx, end := d.startStage(ctx, "extract")
	defer end()

	unreadable := make(map[string]bool)
	err := d.runDocStage(ctx, docStage{
		name:  "extract",
		field: extractField,
		eligible: func(c *domain.Certificate, kind domain.DocumentKind) bool {
			return c.State.Doc(kind).ConvertOK()
		},
		work: d.extract,
		apply: func(c *domain.Certificate, r docResult) {
			key := r.digest + "/" + string(r.kind)
			if r.unreadable {
				unreadable[key] = true
			} else {
				delete(unreadable, key)
			}
			if r.status != domain.StageOK {
				return
			}
			doc := c.Document(r.kind)
			doc.Keywords = r.keywords
			if r.frontPage != nil {
				doc.FrontPage = r.frontPage
			}
		},
	})

	// Cert id estimation needs both documents in place, so it runs over the swapped map.
	current := d.Snapshot()
	next := make(map[string]*domain.Certificate, len(current))
	extracted := 0
	for dgst, c := range current {
		next[dgst] = c
		analyzed := c.State.AnyExtracted()
		id := d.estimateCertID(c)
		if analyzed {
			extracted++
		}
		if analyzed == c.State.Analyzed && (id == "" || id == c.CertNumber) {
			continue
		}
		c = c.Clone()
		c.State.Analyzed = analyzed
		if id != "" {
			c.CertNumber = id
		}
		next[dgst] = c
		d.checkpoint(c)
	}

	d.swap(next, func(s *domain.DatasetState, sum *domain.RunSummary) {
		sum.Extracted = extracted
		sum.Unreadable = len(unreadable)
		if err == nil {
			s.CertsAnalyzed = true
		}
	})
	slog.Info("extraction finished", "extracted", extracted, "unreadable", len(unreadable))
	return err
}

func (d *Dataset) extract(ctx context.Context, t docTask) docResult {
	r := docResult{digest: t.cert.Digest, kind: t.kind, status: domain.StageFailed}

	text, tolerant, err := keywords.ReadText(t.cert.Document(t.kind).TextPath)
	if err != nil {
		r.err = err
		r.unreadable = errors.Is(err, domain.ErrUnreadableText)
		return r
	}
	if tolerant {
		slog.Debug("text decoded line by line", "dgst", t.cert.Digest, "document", t.kind)
	}

	r.keywords = d.deps.Extractor.Extract(text)
	if t.kind == domain.DocumentReport && t.cert.Kind == domain.KindCommonCriteria {
		r.frontPage = d.deps.Extractor.FrontPage(text)
	}
	r.status = domain.StageOK
	return r
}

// estimateCertID returns the certificate id of a CC record, or "" when nothing is known.
// FIPS records carry their number from the listing.
func (d *Dataset) estimateCertID(c *domain.Certificate) string {
	if c.Kind != domain.KindCommonCriteria {
		return ""
	}
	matches, ok := c.Keywords(domain.DocumentReport)
	if !ok && c.Report.FrontPage == nil {
		return ""
	}
	fileName := ""
	if c.ReportLink != "" {
		fileName = path.Base(c.ReportLink)
	}
	return d.deps.Extractor.EstimateCertID(c.Report.FrontPage, fileName, matches)
}
