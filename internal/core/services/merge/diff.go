package merge

import (
	"slices"
	"sort"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// ChangeType classifies how a record differs between two snapshots.
type ChangeType string

const (
	ChangeNew    ChangeType = "new"
	ChangeUpdate ChangeType = "change"
	ChangeRemove ChangeType = "remove"
)

// Change is one entry of a snapshot diff.
type Change struct {
	Digest string     `json:"dgst"`
	Type   ChangeType `json:"type"`
}

// Diff lists the records added, changed or missing in after compared to before, ordered by digest.
// Only listing fields are compared; document state and analysis results are ignored.
func Diff(before, after map[string]*domain.Certificate) []Change {
	var changes []Change
	for dgst, cur := range after {
		prev, ok := before[dgst]
		switch {
		case !ok:
			changes = append(changes, Change{Digest: dgst, Type: ChangeNew})
		case !sameListing(prev, cur):
			changes = append(changes, Change{Digest: dgst, Type: ChangeUpdate})
		}
	}
	for dgst := range before {
		if _, ok := after[dgst]; !ok {
			changes = append(changes, Change{Digest: dgst, Type: ChangeRemove})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Digest < changes[j].Digest })
	return changes
}

// Count tallies changes by type.
func Count(changes []Change) map[ChangeType]int {
	out := make(map[ChangeType]int, 3)
	for _, c := range changes {
		out[c.Type]++
	}
	return out
}

func sameListing(a, b *domain.Certificate) bool {
	if a.Kind != b.Kind || a.Status != b.Status || a.Category != b.Category ||
		a.Name != b.Name || a.Manufacturer != b.Manufacturer || a.Scheme != b.Scheme ||
		a.CertNumber != b.CertNumber || a.ReportLink != b.ReportLink || a.TargetLink != b.TargetLink {
		return false
	}
	if !a.NotValidBefore.Equal(b.NotValidBefore) || !a.NotValidAfter.Equal(b.NotValidAfter) {
		return false
	}
	if !slices.Equal(a.Vendors, b.Vendors) || !slices.Equal(a.SecurityLevel, b.SecurityLevel) ||
		!slices.Equal(a.ProtectionProfiles, b.ProtectionProfiles) {
		return false
	}
	if len(a.Maintenance) != len(b.Maintenance) {
		return false
	}
	for i := range a.Maintenance {
		if a.Maintenance[i].Key() != b.Maintenance[i].Key() {
			return false
		}
	}
	return true
}
