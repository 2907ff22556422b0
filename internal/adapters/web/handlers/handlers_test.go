package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/certmap/internal/adapters/web"
	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dgstA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	dgstB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	dgstC = "cccccccccccccccccccccccccccccccc"
)

func fixture() map[string]*domain.Certificate {
	return map[string]*domain.Certificate{
		dgstA: {
			Digest: dgstA, Kind: domain.KindFIPS, Status: domain.StatusActive, Category: "Hardware",
			Name: "Crypto Module", Manufacturer: "Acme Corp.", CertNumber: "3000",
			NotValidBefore: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
			References:     []string{dgstB}, State: domain.State{FileStatus: true},
		},
		dgstB: {
			Digest: dgstB, Kind: domain.KindFIPS, Status: domain.StatusHistorical, Category: "Software",
			Name: "Crypto Library", Manufacturer: "Acme Corp.", CertNumber: "2000",
			NotValidBefore: time.Date(2015, 5, 1, 0, 0, 0, 0, time.UTC),
			RelatedCVEs:    []string{"CVE-2020-0001"}, State: domain.State{FileStatus: true},
		},
		dgstC: {
			Digest: dgstC, Kind: domain.KindCommonCriteria, Status: domain.StatusActive, Category: "Smart Cards",
			Name: "Secure Element", Manufacturer: "Other Inc.",
		},
	}
}

func serve(t *testing.T, route, target string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc(route, h)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCertificateHandler_HandleList(t *testing.T) {
	ds := new(web.MockDataset)
	ds.On("Snapshot").Return(fixture())
	h := NewCertificateHandler(ds)

	tests := []struct {
		name    string
		query   string
		status  int
		total   int
		digests []string
	}{
		{"all", "", http.StatusOK, 3, []string{dgstA, dgstB, dgstC}},
		{"kind", "?kind=fips", http.StatusOK, 2, []string{dgstA, dgstB}},
		{"vendor", "?vendor=acme", http.StatusOK, 2, []string{dgstA, dgstB}},
		{"has cves", "?has_cves=true", http.StatusOK, 1, []string{dgstB}},
		{"has references false", "?has_references=false", http.StatusOK, 2, []string{dgstB, dgstC}},
		{"valid after", "?valid_after=2018-01-01", http.StatusOK, 1, []string{dgstA}},
		{"paginated", "?limit=1&offset=1", http.StatusOK, 3, []string{dgstB}},
		{"offset past end", "?offset=10", http.StatusOK, 3, []string{}},
		{"bad kind", "?kind=pci", http.StatusBadRequest, 0, nil},
		{"bad date", "?valid_after=yesterday", http.StatusBadRequest, 0, nil},
		{"bad bool", "?has_cves=maybe", http.StatusBadRequest, 0, nil},
		{"bad limit", "?limit=0", http.StatusBadRequest, 0, nil},
		{"inverted range", "?valid_after=2020-01-01&valid_before=2019-01-01", http.StatusBadRequest, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, "/api/certs", "/api/certs"+tt.query, h.HandleList)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			var page CertificatePage
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
			assert.Equal(t, tt.total, page.Total)
			got := []string{}
			for _, it := range page.Items {
				got = append(got, it.Digest)
			}
			assert.Equal(t, tt.digests, got)
		})
	}
}

func TestCertificateHandler_ListItemView(t *testing.T) {
	ds := new(web.MockDataset)
	ds.On("Snapshot").Return(fixture())

	rec := serve(t, "/api/certs", "/api/certs?kind=fips&status=active", NewCertificateHandler(ds).HandleList)
	require.Equal(t, http.StatusOK, rec.Code)

	var page CertificatePage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, "3000", item.CertNumber)
	assert.Equal(t, 1, item.References)
	assert.True(t, item.FileStatus)
	require.NotNil(t, item.NotValidBefore)
	assert.Equal(t, 2019, item.NotValidBefore.Year())
	assert.Equal(t, defaultPageSize, page.Limit)
}

func TestCertificateHandler_LimitIsCapped(t *testing.T) {
	ds := new(web.MockDataset)
	ds.On("Snapshot").Return(fixture())

	rec := serve(t, "/api/certs", "/api/certs?limit=5000", NewCertificateHandler(ds).HandleList)
	var page CertificatePage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, maxPageSize, page.Limit)
}

func TestCertificateHandler_HandleGet(t *testing.T) {
	certs := fixture()
	ds := new(web.MockDataset)
	ds.On("Get", dgstA).Return(certs[dgstA], nil)
	ds.On("Get", dgstC).Return(nil, domain.ErrCertificateNotFound)
	h := NewCertificateHandler(ds)

	rec := serve(t, "/api/certs/{digest}", "/api/certs/"+dgstA, h.HandleGet)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Certificate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Crypto Module", got.Name)
	assert.Equal(t, []string{dgstB}, got.References)

	rec = serve(t, "/api/certs/{digest}", "/api/certs/"+dgstC, h.HandleGet)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, "/api/certs/{digest}", "/api/certs/not-a-digest", h.HandleGet)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ds.AssertExpectations(t)
}

func TestGraphHandler(t *testing.T) {
	ds := new(web.MockDataset)
	ds.On("Snapshot").Return(fixture())
	h := NewGraphHandler(graph.NewBuilder(ds))

	rec := serve(t, "/api/graph", "/api/graph", h.HandleGraph)
	require.Equal(t, http.StatusOK, rec.Code)
	var g domain.GraphData
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&g))
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 1)

	rec = serve(t, "/api/certs/{digest}/graph", "/api/certs/"+dgstB+"/graph", h.HandleComponent)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&g))
	assert.Len(t, g.Nodes, 2)

	rec = serve(t, "/api/certs/{digest}/graph", "/api/certs/dddddddddddddddddddddddddddddddd/graph", h.HandleComponent)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, "/api/certs/{digest}/graph", "/api/certs/xyz/graph", h.HandleComponent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryHandler(t *testing.T) {
	ds := new(web.MockDataset)
	ds.On("Snapshot").Return(fixture())
	ds.On("State").Return(domain.DatasetState{MetaSourcesParsed: true})
	ds.On("Summary").Return(domain.RunSummary{Parsed: 3, Edges: 1})

	rec := serve(t, "/api/summary", "/api/summary", NewSummaryHandler(ds).HandleSummary)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Records)
	assert.Equal(t, 2, resp.ByStatus[domain.StatusActive])
	assert.Equal(t, 2, resp.ByKind[domain.KindFIPS])
	assert.True(t, resp.State.MetaSourcesParsed)
	assert.Equal(t, 1, resp.LastRun.Edges)
}

func TestExportHandler(t *testing.T) {
	ds := new(web.MockDataset)
	ds.On("Snapshot").Return(fixture())
	h := NewExportHandler(ds)

	rec := serve(t, "/api/export", "/api/export?format=csv&kind=cc", h.HandleExport)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Secure Element")

	rec = serve(t, "/api/export", "/api/export", h.HandleExport)
	require.Equal(t, http.StatusOK, rec.Code)
	var certs []domain.Certificate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&certs))
	assert.Len(t, certs, 3)

	rec = serve(t, "/api/export", "/api/export?format=xml", h.HandleExport)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
