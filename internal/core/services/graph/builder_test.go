package graph

import (
	"testing"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReader for Builder tests
type MockReader struct {
	mock.Mock
}

func (m *MockReader) Snapshot() map[string]*domain.Certificate {
	args := m.Called()
	return args.Get(0).(map[string]*domain.Certificate)
}

// a -> b -> c, d -> c, e isolated, a -> missing
func fixture() map[string]*domain.Certificate {
	return map[string]*domain.Certificate{
		"a": {Digest: "a", Name: "A", Kind: domain.KindFIPS, References: []string{"b", "missing"}},
		"b": {Digest: "b", Name: "B", Kind: domain.KindFIPS, References: []string{"c"}},
		"c": {Digest: "c", Name: "C", Kind: domain.KindFIPS, Manufacturer: "Acme"},
		"d": {Digest: "d", Name: "D", Kind: domain.KindCommonCriteria, References: []string{"c", "d"}},
		"e": {Digest: "e", Name: "E", Kind: domain.KindCommonCriteria},
	}
}

func nodeByDigest(g domain.GraphData, dgst string) domain.GraphNode {
	for _, n := range g.Nodes {
		if n.Digest == dgst {
			return n
		}
	}
	return domain.GraphNode{}
}

func TestBuilder_BuildGraph(t *testing.T) {
	reader := new(MockReader)
	reader.On("Snapshot").Return(fixture())
	builder := NewBuilder(reader)

	g := builder.BuildGraph()

	assert.Len(t, g.Nodes, 5)
	assert.Len(t, g.Edges, 3, "dangling and self edges are dropped")

	c := nodeByDigest(g, "c")
	assert.Equal(t, identity.HashID("c"), c.ID)
	assert.Equal(t, "Acme", c.Vendor)
	assert.Equal(t, 2, c.ReferencedBy)
	assert.Equal(t, 3, c.IndirectlyReferencedBy)

	a := nodeByDigest(g, "a")
	assert.Equal(t, 1, a.References)
	assert.Equal(t, 0, a.ReferencedBy)
	assert.Equal(t, domain.GroupFIPS, a.Group)
	assert.Equal(t, domain.GroupCommonCriteria, nodeByDigest(g, "d").Group)

	require.Len(t, g.Components, 2)
	sizes := []int{len(g.Components[0]), len(g.Components[1])}
	assert.ElementsMatch(t, []int{4, 1}, sizes)

	reader.AssertExpectations(t)
}

func TestBuilder_Component(t *testing.T) {
	reader := new(MockReader)
	reader.On("Snapshot").Return(fixture())
	builder := NewBuilder(reader)

	g, err := builder.Component("a")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 3)
	require.Len(t, g.Components, 1)

	g, err = builder.Component("e")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)

	_, err = builder.Component("nope")
	assert.ErrorIs(t, err, domain.ErrCertificateNotFound)
}

func TestBuild_Deterministic(t *testing.T) {
	assert.Equal(t, Build(fixture()), Build(fixture()))
}

func TestBuild_Empty(t *testing.T) {
	g := Build(map[string]*domain.Certificate{})

	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.Empty(t, g.Components)
}
