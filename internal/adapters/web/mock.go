// Package web holds test doubles shared by the HTTP handler and server tests.
package web

import (
	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockDataset is a mock of ports.DatasetReader
type MockDataset struct {
	mock.Mock
}

func (m *MockDataset) Snapshot() map[string]*domain.Certificate {
	args := m.Called()
	return args.Get(0).(map[string]*domain.Certificate)
}

func (m *MockDataset) Get(dgst string) (*domain.Certificate, error) {
	args := m.Called(dgst)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Certificate), args.Error(1)
}

func (m *MockDataset) State() domain.DatasetState {
	args := m.Called()
	return args.Get(0).(domain.DatasetState)
}

func (m *MockDataset) Summary() domain.RunSummary {
	args := m.Called()
	return args.Get(0).(domain.RunSummary)
}
