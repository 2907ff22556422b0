package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// MockParser implements ports.ListingParser
type MockParser struct {
	mock.Mock
}

func (m *MockParser) ParseFile(path string, status domain.Status) (*domain.ParseResult, error) {
	args := m.Called(path, status)
	if res := args.Get(0); res != nil {
		return res.(*domain.ParseResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAlgorithms implements ports.AlgorithmSource
type MockAlgorithms struct {
	mock.Mock
}

func (m *MockAlgorithms) ParseFile(path string) (*domain.AlgorithmList, error) {
	args := m.Called(path)
	if list := args.Get(0); list != nil {
		return list.(*domain.AlgorithmList), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDownloader implements ports.Downloader
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, url, dest string) (int, error) {
	args := m.Called(ctx, url, dest)
	return args.Int(0), args.Error(1)
}

// writeBytes is a Run hook that writes n bytes to the destination argument.
func writeBytes(n int) func(mock.Arguments) {
	return func(args mock.Arguments) {
		_ = os.WriteFile(args.String(2), bytes.Repeat([]byte("%"), n), 0o644)
	}
}

// MockStore implements ports.CertificateStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) UpsertCertificates(ctx context.Context, certs []domain.Certificate) error {
	return m.Called(ctx, certs).Error(0)
}

func (m *MockStore) LoadCertificates(ctx context.Context) ([]domain.Certificate, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Certificate), args.Error(1)
}

func (m *MockStore) GetCertificate(ctx context.Context, digest string) (*domain.Certificate, error) {
	args := m.Called(ctx, digest)
	if c := args.Get(0); c != nil {
		return c.(*domain.Certificate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) SaveState(ctx context.Context, state domain.DatasetState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *MockStore) LoadState(ctx context.Context) (domain.DatasetState, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.DatasetState), args.Error(1)
}

func (m *MockStore) SaveSummary(ctx context.Context, summary domain.RunSummary) error {
	return m.Called(ctx, summary).Error(0)
}

func (m *MockStore) LastSummary(ctx context.Context) (*domain.RunSummary, error) {
	args := m.Called(ctx)
	if sum := args.Get(0); sum != nil {
		return sum.(*domain.RunSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

// fakeConverter writes a fixed text per digest; digests in fail make the conversion fail.
type fakeConverter struct {
	texts   map[string]string
	garbage map[string]bool
	fail    map[string]error
}

func (f *fakeConverter) Convert(ctx context.Context, pdfPath, txtPath string) (ports.ConvertResult, error) {
	dgst := strings.TrimSuffix(filepath.Base(pdfPath), ".pdf")
	if err := f.fail[dgst]; err != nil {
		return ports.ConvertResult{}, err
	}
	if err := os.WriteFile(txtPath, []byte(f.texts[dgst]), 0o644); err != nil {
		return ports.ConvertResult{}, err
	}
	return ports.ConvertResult{Garbage: f.garbage[dgst]}, nil
}

// recordingCheckpointer collects checkpointed digests.
type recordingCheckpointer struct {
	mu      sync.Mutex
	digests map[string]int
	flushes int
}

func (r *recordingCheckpointer) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *recordingCheckpointer) flushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

func (r *recordingCheckpointer) Persist(cert domain.Certificate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.digests == nil {
		r.digests = make(map[string]int)
	}
	r.digests[cert.Digest]++
}
