package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// parsed returns a dataset whose listing stage has produced certs.
func parsed(t *testing.T, deps Deps, certs ...domain.Certificate) *Dataset {
	t.Helper()
	parser := new(MockParser)
	parser.On("ParseFile", "fips.html", domain.StatusActive).Return(parseResult(certs...), nil)
	deps.Parsers.FIPSHTML = parser
	d := newTestDataset(t, deps)
	require.NoError(t, d.ParseSources(context.Background(), SourceSet{FIPSHTML: []domain.SourceFile{{Path: "fips.html"}}}))
	return d
}

func TestDownloadAll_RetriesFailedDocuments(t *testing.T) {
	a := fipsCert("a", "1000")
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, a.ReportLink, mock.Anything).Return(503, nil).Once()
	downloader.On("Download", mock.Anything, a.ReportLink, mock.Anything).Run(writeBytes(64)).Return(200, nil).Once()
	downloader.On("Download", mock.Anything, a.TargetLink, mock.Anything).Run(writeBytes(4)).Return(200, nil)

	d := parsed(t, Deps{Downloader: downloader}, a)
	require.NoError(t, d.DownloadAll(context.Background()))

	c, _ := d.Get("a")
	assert.Equal(t, domain.StageOK, c.State.Report.Download, "second pass recovers")
	assert.Equal(t, 200, c.State.Report.HTTPStatus)
	assert.True(t, fileExists(c.Report.PDFPath))

	assert.Equal(t, domain.StageFailed, c.State.Target.Download, "short files never pass")
	assert.Empty(t, c.Target.PDFPath)
	assert.False(t, fileExists(d.docPath("a", domain.DocumentTarget, "pdf")), "partial file removed")
	assert.NotEmpty(t, c.State.Errors)

	assert.True(t, d.State().PDFsDownloaded)
	assert.Equal(t, 1, d.Summary().FailedDownloads)
	downloader.AssertNumberOfCalls(t, "Download", 4)
}

func TestDownloadAll_SkipsRecordsWithoutLinks(t *testing.T) {
	a := fipsCert("a", "1000")
	a.TargetLink = ""
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, a.ReportLink, mock.Anything).Run(writeBytes(64)).Return(200, nil)

	d := parsed(t, Deps{Downloader: downloader}, a)
	require.NoError(t, d.DownloadAll(context.Background()))

	c, _ := d.Get("a")
	assert.Equal(t, domain.StagePending, c.State.Target.Download)
	downloader.AssertNumberOfCalls(t, "Download", 1)
}

func TestDownloadAll_CancelledKeepsFinishedItems(t *testing.T) {
	downloader := new(MockDownloader)
	d := parsed(t, Deps{Downloader: downloader}, fipsCert("a", "1000"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.DownloadAll(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, d.State().PDFsDownloaded)
	c, _ := d.Get("a")
	assert.Equal(t, domain.StagePending, c.State.Report.Download)
	downloader.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
}

func TestConvertAll_FlagsGarbageAndFailures(t *testing.T) {
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, mock.Anything, mock.Anything).Run(writeBytes(64)).Return(200, nil)
	converter := &fakeConverter{
		texts:   map[string]string{"a": "text"},
		garbage: map[string]bool{"a": true},
		fail:    map[string]error{"b": errors.New("pdftotext exited 1")},
	}

	d := parsed(t, Deps{Downloader: downloader, Converter: converter}, fipsCert("a", "1000"), fipsCert("b", "2000"))
	require.NoError(t, d.DownloadAll(context.Background()))
	require.NoError(t, d.ConvertAll(context.Background()))

	a, _ := d.Get("a")
	assert.Equal(t, domain.StageOK, a.State.Report.Convert)
	assert.True(t, a.State.Report.Garbage)
	assert.True(t, fileExists(a.Report.TextPath))

	b, _ := d.Get("b")
	assert.Equal(t, domain.StageFailed, b.State.Report.Convert)

	sum := d.Summary()
	assert.Equal(t, 2, sum.FailedConversions)
	assert.Equal(t, 2, sum.GarbageConversions)
	assert.True(t, d.State().PDFsConverted)
}

func TestRun_ResolvesReferencesEndToEnd(t *testing.T) {
	a, b, c := fipsCert("a", "1000"), fipsCert("b", "2000"), fipsCert("c", "3000")
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, mock.Anything, mock.Anything).Run(writeBytes(64)).Return(200, nil)
	converter := &fakeConverter{texts: map[string]string{
		"a": "The module relies on Cert. #2000 and on #0042 for AES.\nIt also names #9999 here.",
		"b": "Standalone module, FIPS 140-2 Level 1.",
		"c": "Module\xff\xfe\n",
	}}
	checkpoints := &recordingCheckpointer{}
	store := new(MockStore)
	store.On("UpsertCertificates", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		assert.Equal(t, 1, checkpoints.flushCount(), "checkpoints are flushed before the final write")
	}).Return(nil)
	store.On("SaveState", mock.Anything, domain.DatasetState{
		MetaSourcesParsed: true, PDFsDownloaded: true, PDFsConverted: true, CertsAnalyzed: true,
	}).Return(nil)
	store.On("SaveSummary", mock.Anything, mock.Anything).Return(nil)

	parser := new(MockParser)
	parser.On("ParseFile", "fips.html", domain.StatusActive).Return(parseResult(a, b, c), nil)
	d := newTestDataset(t, Deps{
		Parsers:     Parsers{FIPSHTML: parser},
		Downloader:  downloader,
		Converter:   converter,
		Store:       store,
		Checkpoints: checkpoints,
	})

	sum, err := d.Run(context.Background(), SourceSet{FIPSHTML: []domain.SourceFile{{Path: "fips.html"}}})
	require.NoError(t, err)

	got, _ := d.Get("a")
	assert.Equal(t, []string{"b"}, got.References)
	assert.True(t, got.State.Analyzed)
	assert.True(t, got.State.FileStatus)
	assert.NotNil(t, got.Report.Keywords)

	unreadable, _ := d.Get("c")
	assert.Equal(t, domain.StageFailed, unreadable.State.Report.Extract)
	assert.False(t, unreadable.State.Analyzed)

	assert.Equal(t, 3, sum.Parsed)
	assert.Equal(t, 1, sum.Edges)
	assert.Equal(t, 2, sum.Unreadable, "report and target of c")
	assert.Equal(t, 2, sum.RejectedReferences[domain.RejectBelowMinimum]+sum.RejectedReferences[domain.RejectUnknown])
	assert.False(t, sum.FinishedAt.IsZero())
	assert.NotEmpty(t, checkpoints.digests)

	store.AssertExpectations(t)
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, mock.Anything, mock.Anything).Run(writeBytes(64)).Return(200, nil)
	converter := &fakeConverter{texts: map[string]string{"a": "see Cert. #2000 please"}}
	parser := new(MockParser)
	parser.On("ParseFile", "fips.html", domain.StatusActive).
		Return(parseResult(fipsCert("a", "1000"), fipsCert("b", "2000")), nil)

	d := newTestDataset(t, Deps{Parsers: Parsers{FIPSHTML: parser}, Downloader: downloader, Converter: converter})
	set := SourceSet{FIPSHTML: []domain.SourceFile{{Path: "fips.html"}}}

	first, err := d.Run(context.Background(), set)
	require.NoError(t, err)
	refs := d.Snapshot()["a"].References

	second, err := d.Run(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, refs, d.Snapshot()["a"].References)
	assert.Equal(t, first.Edges, second.Edges)
	assert.NotEqual(t, first.ID, second.ID)
	// finished documents are not fetched again
	downloader.AssertNumberOfCalls(t, "Download", 4)
}

func TestRun_RecordsListingChanges(t *testing.T) {
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, mock.Anything, mock.Anything).Run(writeBytes(64)).Return(200, nil)
	converter := &fakeConverter{texts: map[string]string{}}

	archived := fipsCert("a", "1000")
	archived.Status = domain.StatusArchived
	parser := new(MockParser)
	parser.On("ParseFile", "fips.html", domain.StatusActive).
		Return(parseResult(fipsCert("a", "1000"), fipsCert("b", "2000")), nil).Once()
	parser.On("ParseFile", "fips.html", domain.StatusActive).
		Return(parseResult(archived, fipsCert("c", "3000")), nil).Once()

	d := newTestDataset(t, Deps{Parsers: Parsers{FIPSHTML: parser}, Downloader: downloader, Converter: converter})
	set := SourceSet{FIPSHTML: []domain.SourceFile{{Path: "fips.html"}}}

	first, err := d.Run(context.Background(), set)
	require.NoError(t, err)
	assert.Zero(t, first.Changed, "nothing to compare against on the first run")
	assert.Zero(t, first.Removed)

	second, err := d.Run(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 1, second.New)
	assert.Equal(t, 1, second.Changed, "a was archived")
	assert.Equal(t, 1, second.Removed, "b is no longer listed")
	assert.Equal(t, 3, d.Len(), "unlisted records are kept")
	parser.AssertExpectations(t)
}

func TestExtractAll_EstimatesCCCertID(t *testing.T) {
	cc := domain.Certificate{
		Digest:     "cc1",
		Kind:       domain.KindCommonCriteria,
		Name:       "Smart card",
		ReportLink: "https://www.commoncriteriaportal.org/files/epfiles/0815a_pdf.pdf",
		State:      domain.NewState(),
	}
	downloader := new(MockDownloader)
	downloader.On("Download", mock.Anything, cc.ReportLink, mock.Anything).Run(writeBytes(64)).Return(200, nil)
	converter := &fakeConverter{texts: map[string]string{
		"cc1": "Certification Report\nBSI-DSZ-CC-0815-2012 for Smart card from Acme GmbH\n",
	}}

	d := parsed(t, Deps{Downloader: downloader, Converter: converter}, cc)
	ctx := context.Background()
	require.NoError(t, d.DownloadAll(ctx))
	require.NoError(t, d.ConvertAll(ctx))
	require.NoError(t, d.ExtractAll(ctx))

	got, _ := d.Get("cc1")
	require.NotNil(t, got.Report.FrontPage)
	assert.Equal(t, "BSI", got.Report.FrontPage.Scheme)
	assert.Equal(t, "BSI-DSZ-CC-0815-2012", got.CertNumber)
	assert.True(t, d.State().CertsAnalyzed)
}
