// Package graph projects the reference edges of a record set into a node/edge graph.
package graph

import (
	"sort"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
)

// Builder handles the construction of the reference graph.
type Builder struct {
	source ports.CertificateReader
}

// NewBuilder creates a new graph builder.
func NewBuilder(source ports.CertificateReader) *Builder {
	return &Builder{source: source}
}

// BuildGraph generates the graph projection of the whole record set.
func (b *Builder) BuildGraph() domain.GraphData {
	return Build(b.source.Snapshot())
}

// Component returns the weakly connected component containing dgst.
func (b *Builder) Component(dgst string) (domain.GraphData, error) {
	certs := b.source.Snapshot()
	if _, ok := certs[dgst]; !ok {
		return domain.GraphData{}, domain.ErrCertificateNotFound
	}
	full := Build(certs)

	id := identity.HashID(dgst)
	var members map[string]bool
	for _, comp := range full.Components {
		if contains(comp, id) {
			members = make(map[string]bool, len(comp))
			for _, m := range comp {
				members[m] = true
			}
			full.Components = [][]string{comp}
			break
		}
	}

	nodes := full.Nodes[:0]
	for _, n := range full.Nodes {
		if members[n.ID] {
			nodes = append(nodes, n)
		}
	}
	edges := full.Edges[:0]
	for _, e := range full.Edges {
		if members[e.From] {
			edges = append(edges, e)
		}
	}
	full.Nodes, full.Edges = nodes, edges
	return full, nil
}

// Build projects certs into nodes, edges and components.
// Edges to digests missing from certs are dropped.
func Build(certs map[string]*domain.Certificate) domain.GraphData {
	digests := domain.SortedDigests(certs)
	ids := make(map[string]string, len(digests))
	for _, d := range digests {
		ids[d] = identity.HashID(d)
	}

	reverse := make(map[string][]string)
	edges := []domain.GraphEdge{}
	outgoing := make(map[string]int)
	uf := newUnionFind(digests)

	for _, d := range digests {
		for _, target := range certs[d].References {
			if _, ok := certs[target]; !ok || target == d {
				continue
			}
			edges = append(edges, domain.GraphEdge{From: ids[d], To: ids[target], Type: domain.TypeReference})
			reverse[target] = append(reverse[target], d)
			outgoing[d]++
			uf.union(d, target)
		}
	}

	nodes := make([]domain.GraphNode, 0, len(digests))
	for _, d := range digests {
		c := certs[d]
		nodes = append(nodes, domain.GraphNode{
			ID:                     ids[d],
			Digest:                 d,
			Label:                  c.Name,
			Group:                  group(c.Kind),
			Status:                 c.Status,
			Vendor:                 c.Manufacturer,
			CertNumber:             c.CertNumber,
			ReferencedBy:           len(reverse[d]),
			IndirectlyReferencedBy: reachableFrom(d, reverse),
			References:             outgoing[d],
		})
	}

	return domain.GraphData{Nodes: nodes, Edges: edges, Components: uf.components(ids)}
}

func group(k domain.Kind) domain.GraphGroup {
	if k == domain.KindFIPS {
		return domain.GroupFIPS
	}
	return domain.GroupCommonCriteria
}

// reachableFrom counts the distinct certificates that reach d through one or more references.
func reachableFrom(d string, reverse map[string][]string) int {
	seen := map[string]bool{d: true}
	queue := []string{d}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, src := range reverse[cur] {
			if !seen[src] {
				seen[src] = true
				queue = append(queue, src)
			}
		}
	}
	return len(seen) - 1
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type unionFind struct {
	parent map[string]string
}

func newUnionFind(keys []string) *unionFind {
	uf := &unionFind{parent: make(map[string]string, len(keys))}
	for _, k := range keys {
		uf.parent[k] = k
	}
	return uf
}

func (u *unionFind) find(x string) string {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// components groups node ids by root. Members and groups are sorted.
func (u *unionFind) components(ids map[string]string) [][]string {
	byRoot := make(map[string][]string)
	for d := range u.parent {
		root := u.find(d)
		byRoot[root] = append(byRoot[root], ids[d])
	}
	out := make([][]string, 0, len(byRoot))
	for _, members := range byRoot {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
