package domain

import (
	"errors"
	"strings"
	"time"
)

// Domain Errors for filtering
var (
	ErrInvalidKind      = errors.New("kind must be cc, fips or empty")
	ErrInvalidTimeRange = errors.New("ValidAfter cannot be later than ValidBefore")
)

// CertificateFilter defines criteria for querying certificates.
// Matches keeps in-memory filtering consistent with what the API exposes.
type CertificateFilter struct {
	Kind          Kind      `json:"kind"`           // "" = any
	Status        Status    `json:"status"`         // "" = any
	Vendor        string    `json:"vendor"`         // Partial match (case-insensitive)
	Name          string    `json:"name"`           // Partial match (case-insensitive)
	Category      string    `json:"category"`       // Exact match (case-insensitive)
	ValidAfter    time.Time `json:"valid_after"`    // NotValidBefore on or after
	ValidBefore   time.Time `json:"valid_before"`   // NotValidBefore on or before
	HasReferences *bool     `json:"has_references"` // nil = any
	HasCVEs       *bool     `json:"has_cves"`       // nil = any
}

// NewCertificateFilter returns a filter that matches everything.
func NewCertificateFilter() *CertificateFilter {
	return &CertificateFilter{}
}

func (f *CertificateFilter) WithKind(k Kind) *CertificateFilter {
	f.Kind = k
	return f
}

func (f *CertificateFilter) WithStatus(s Status) *CertificateFilter {
	f.Status = s
	return f
}

func (f *CertificateFilter) WithVendor(v string) *CertificateFilter {
	f.Vendor = v
	return f
}

func (f *CertificateFilter) WithName(n string) *CertificateFilter {
	f.Name = n
	return f
}

// Validate ensures the filter criteria are logically valid.
func (f *CertificateFilter) Validate() error {
	if f.Kind != "" && f.Kind != KindCommonCriteria && f.Kind != KindFIPS {
		return ErrInvalidKind
	}
	if !f.ValidAfter.IsZero() && !f.ValidBefore.IsZero() && f.ValidAfter.After(f.ValidBefore) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches reports whether c satisfies every criterion.
func (f *CertificateFilter) Matches(c *Certificate) bool {
	if c == nil {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Category != "" && !strings.EqualFold(c.Category, f.Category) {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Vendor != "" && !vendorContains(c, f.Vendor) {
		return false
	}

	if !f.ValidAfter.IsZero() || !f.ValidBefore.IsZero() {
		from, ok := c.ValidFrom()
		if !ok {
			return false
		}
		if !f.ValidAfter.IsZero() && from.Before(f.ValidAfter) {
			return false
		}
		if !f.ValidBefore.IsZero() && from.After(f.ValidBefore) {
			return false
		}
	}

	if f.HasReferences != nil && *f.HasReferences != (len(c.References) > 0) {
		return false
	}
	if f.HasCVEs != nil && *f.HasCVEs != (len(c.RelatedCVEs) > 0) {
		return false
	}
	return true
}

func vendorContains(c *Certificate, needle string) bool {
	needle = strings.ToLower(needle)
	if strings.Contains(strings.ToLower(c.Manufacturer), needle) {
		return true
	}
	for _, v := range c.Vendors {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
