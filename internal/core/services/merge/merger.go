// Package merge reconciles candidate records from several sources into one record per digest.
package merge

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// Stats counts the outcome of one merge call.
type Stats struct {
	New    int
	Merged int
}

// trust ranks sources for precedence-controlled fields. Unlisted sources rank 0.
var trust = map[string]map[domain.Source]int{
	domain.FieldReportLink:     {domain.SourceCSV: 2, domain.SourceHTML: 1, domain.SourceFIPSHTML: 1},
	domain.FieldTargetLink:     {domain.SourceCSV: 2, domain.SourceHTML: 1, domain.SourceFIPSHTML: 1},
	domain.FieldNotValidBefore: {domain.SourceCSV: 2, domain.SourceHTML: 1, domain.SourceFIPSHTML: 1},
	domain.FieldNotValidAfter:  {domain.SourceCSV: 2, domain.SourceHTML: 1, domain.SourceFIPSHTML: 1},
}

// CertificateMerger handles the logic of merging candidate records into an existing record set.
type CertificateMerger struct{}

// NewCertificateMerger creates a new CertificateMerger.
func NewCertificateMerger() *CertificateMerger {
	return &CertificateMerger{}
}

// Merge returns a new record set holding existing plus incoming.
// existing is never mutated: untouched records are shared and merged ones are cloned first.
func (m *CertificateMerger) Merge(existing map[string]*domain.Certificate, incoming map[string]domain.Certificate, source domain.Source) (map[string]*domain.Certificate, Stats, error) {
	out := make(map[string]*domain.Certificate, len(existing)+len(incoming))
	for dgst, cert := range existing {
		out[dgst] = cert
	}

	var stats Stats
	for _, dgst := range sortedKeys(incoming) {
		candidate := incoming[dgst]
		if candidate.Digest == "" {
			candidate.Digest = dgst
		}

		current, ok := out[dgst]
		if !ok {
			cert := candidate.Clone()
			stampProvenance(cert, source)
			normalizeSets(cert)
			out[dgst] = cert
			stats.New++
			continue
		}

		merged := current.Clone()
		m.MergeInto(merged, candidate, source)
		out[dgst] = merged
		stats.Merged++
	}

	if want := distinct(existing, incoming); len(out) != want {
		return nil, stats, fmt.Errorf("%w: %d records for %d digests", domain.ErrMergeInvariant, len(out), want)
	}

	slog.Info("merged certificates", "source", source, "new", stats.New, "merged", stats.Merged, "total", len(out))
	return out, stats, nil
}

// MergeInto updates existing with the fields of candidate coming from source.
func (m *CertificateMerger) MergeInto(existing *domain.Certificate, candidate domain.Certificate, source domain.Source) {
	// Status only advances
	if candidate.Status.Rank() > existing.Status.Rank() {
		existing.Status = candidate.Status
	}

	fillString(&existing.Kind, candidate.Kind)
	fillString(&existing.Category, candidate.Category)
	fillString(&existing.Name, candidate.Name)
	fillString(&existing.Manufacturer, candidate.Manufacturer)
	fillString(&existing.Scheme, candidate.Scheme)
	fillString(&existing.CertNumber, candidate.CertNumber)

	mergeLink(existing, &existing.ReportLink, candidate.ReportLink, domain.FieldReportLink, source)
	mergeLink(existing, &existing.TargetLink, candidate.TargetLink, domain.FieldTargetLink, source)
	mergeDate(existing, &existing.NotValidBefore, candidate.NotValidBefore, domain.FieldNotValidBefore, source)
	mergeDate(existing, &existing.NotValidAfter, candidate.NotValidAfter, domain.FieldNotValidAfter, source)

	existing.Vendors = unionStrings(existing.Vendors, candidate.Vendors)
	existing.SecurityLevel = unionStrings(existing.SecurityLevel, candidate.SecurityLevel)
	existing.Maintenance = unionMaintenance(existing.Maintenance, candidate.Maintenance)
	existing.ProtectionProfiles = unionProfiles(existing.ProtectionProfiles, candidate.ProtectionProfiles)
}

func fillString[T ~string](dst *T, v T) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// overrides reports whether a value from source may replace the current one of field.
func overrides(c *domain.Certificate, field string, source domain.Source, currentEmpty bool) bool {
	if currentEmpty {
		return true
	}
	prev, ok := c.Provenance[field]
	if !ok {
		return false
	}
	return trust[field][source] > trust[field][prev]
}

func mergeLink(c *domain.Certificate, dst *string, v, field string, source domain.Source) {
	if v == "" || v == *dst {
		return
	}
	if overrides(c, field, source, *dst == "") {
		*dst = v
		setProvenance(c, field, source)
	}
}

func mergeDate(c *domain.Certificate, dst *time.Time, v time.Time, field string, source domain.Source) {
	if v.IsZero() || v.Equal(*dst) {
		return
	}
	if overrides(c, field, source, dst.IsZero()) {
		*dst = v
		setProvenance(c, field, source)
	}
}

func setProvenance(c *domain.Certificate, field string, source domain.Source) {
	if c.Provenance == nil {
		c.Provenance = make(map[string]domain.Source)
	}
	c.Provenance[field] = source
}

// stampProvenance marks every populated precedence field of a new record with its source.
func stampProvenance(c *domain.Certificate, source domain.Source) {
	if c.Provenance == nil {
		c.Provenance = make(map[string]domain.Source)
	}
	set := func(field string, populated bool) {
		if _, ok := c.Provenance[field]; populated && !ok {
			c.Provenance[field] = source
		}
	}
	set(domain.FieldReportLink, c.ReportLink != "")
	set(domain.FieldTargetLink, c.TargetLink != "")
	set(domain.FieldNotValidBefore, !c.NotValidBefore.IsZero())
	set(domain.FieldNotValidAfter, !c.NotValidAfter.IsZero())
	if len(c.Provenance) == 0 {
		c.Provenance = nil
	}
	if c.Status == "" {
		c.Status = domain.StatusActive
	}
}

func normalizeSets(c *domain.Certificate) {
	c.Vendors = unionStrings(nil, c.Vendors)
	c.SecurityLevel = unionStrings(nil, c.SecurityLevel)
	c.Maintenance = unionMaintenance(nil, c.Maintenance)
	c.ProtectionProfiles = unionProfiles(nil, c.ProtectionProfiles)
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func unionMaintenance(a, b []domain.MaintenanceUpdate) []domain.MaintenanceUpdate {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[domain.MaintenanceKey]struct{}, len(a)+len(b))
	var out []domain.MaintenanceUpdate
	for _, list := range [][]domain.MaintenanceUpdate{a, b} {
		for _, u := range list {
			k := u.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func unionProfiles(a, b []domain.ProtectionProfile) []domain.ProtectionProfile {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[domain.ProtectionProfile]struct{}, len(a)+len(b))
	var out []domain.ProtectionProfile
	for _, list := range [][]domain.ProtectionProfile{a, b} {
		for _, p := range list {
			if p.Name == "" && p.Link == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Link < out[j].Link
	})
	return out
}

func distinct(existing map[string]*domain.Certificate, incoming map[string]domain.Certificate) int {
	n := len(existing)
	for dgst := range incoming {
		if _, ok := existing[dgst]; !ok {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]domain.Certificate) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
