package domain

import (
	"sort"
	"time"
)

// Kind distinguishes the certification program a record belongs to.
type Kind string

const (
	KindCommonCriteria Kind = "cc"
	KindFIPS           Kind = "fips"
)

// Status is the lifecycle status published by the certification body.
type Status string

const (
	StatusActive     Status = "active"
	StatusArchived   Status = "archived"
	StatusHistorical Status = "historical"
	StatusRevoked    Status = "revoked"
)

// Rank orders statuses so that a later scrape can only advance a record.
func (s Status) Rank() int {
	switch s {
	case StatusActive:
		return 1
	case StatusArchived:
		return 2
	case StatusHistorical:
		return 3
	case StatusRevoked:
		return 4
	default:
		return 0
	}
}

// Source tags where a candidate record came from.
type Source string

const (
	SourceCSV        Source = "csv"
	SourceHTML       Source = "html"
	SourceFIPSHTML   Source = "fips_html"
	SourceStore      Source = "store"
	SourceExtraction Source = "extraction"
)

// Precedence-controlled field names, used as Provenance keys.
const (
	FieldReportLink     = "report_link"
	FieldTargetLink     = "st_link"
	FieldNotValidBefore = "not_valid_before"
	FieldNotValidAfter  = "not_valid_after"
)

// Certificate is the canonical record for one certification entry.
type Certificate struct {
	Digest       string   `json:"dgst"`
	Kind         Kind     `json:"kind"`
	Status       Status   `json:"status"`
	Category     string   `json:"category"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Vendors      []string `json:"vendors,omitempty"` // Manufacturer after split heuristics
	Scheme       string   `json:"scheme,omitempty"`  // CC national scheme or FIPS lab

	SecurityLevel  []string  `json:"security_level,omitempty"`
	NotValidBefore time.Time `json:"not_valid_before,omitempty"`
	NotValidAfter  time.Time `json:"not_valid_after,omitempty"`

	ReportLink string `json:"report_link,omitempty"`
	TargetLink string `json:"st_link,omitempty"`
	CertNumber string `json:"cert_number,omitempty"` // FIPS number or estimated CC certificate id

	Maintenance        []MaintenanceUpdate `json:"maintenance_updates,omitempty"`
	ProtectionProfiles []ProtectionProfile `json:"protection_profiles,omitempty"`

	Report Document `json:"report"`
	Target Document `json:"target"`

	References  []string `json:"references,omitempty"` // outgoing edges, target digests
	RelatedCVEs []string `json:"related_cves,omitempty"`

	Provenance map[string]Source `json:"provenance,omitempty"`
	State      State             `json:"state"`
}

// MaintenanceUpdate is a dated revision of a certification.
type MaintenanceUpdate struct {
	Date       time.Time `json:"date"`
	Title      string    `json:"title"`
	ReportLink string    `json:"report_link,omitempty"`
	TargetLink string    `json:"st_link,omitempty"`
}

// MaintenanceKey is the comparable identity of a MaintenanceUpdate.
type MaintenanceKey struct {
	Date       string
	Title      string
	ReportLink string
	TargetLink string
}

// Key returns the structural identity used for set semantics.
func (m MaintenanceUpdate) Key() MaintenanceKey {
	return MaintenanceKey{
		Date:       m.Date.Format("2006-01-02"),
		Title:      m.Title,
		ReportLink: m.ReportLink,
		TargetLink: m.TargetLink,
	}
}

// ProtectionProfile references a protection profile by name and optional link.
type ProtectionProfile struct {
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
}

// Document holds what is known about one source document (report or target).
type Document struct {
	PDFPath   string         `json:"pdf_path,omitempty"`
	TextPath  string         `json:"txt_path,omitempty"`
	Keywords  KeywordMatches `json:"keywords,omitempty"`
	FrontPage *FrontPage     `json:"frontpage,omitempty"`
}

// DocumentKind selects report or target.
type DocumentKind string

const (
	DocumentReport DocumentKind = "report"
	DocumentTarget DocumentKind = "target"
)

// ValidFrom returns the start of validity and whether it is known.
func (c *Certificate) ValidFrom() (time.Time, bool) {
	return c.NotValidBefore, !c.NotValidBefore.IsZero()
}

// ValidUntil returns the end of validity and whether it is known.
func (c *Certificate) ValidUntil() (time.Time, bool) {
	return c.NotValidAfter, !c.NotValidAfter.IsZero()
}

// ValidityYears returns the first and last year the certificate was valid.
// A missing end falls back to the start year.
func (c *Certificate) ValidityYears() (first, last int, ok bool) {
	from, ok := c.ValidFrom()
	if !ok {
		return 0, 0, false
	}
	first = from.Year()
	last = first
	if until, ok := c.ValidUntil(); ok {
		last = until.Year()
	}
	return first, last, true
}

// Link returns the remote URL of a document.
func (c *Certificate) Link(kind DocumentKind) string {
	if kind == DocumentTarget {
		return c.TargetLink
	}
	return c.ReportLink
}

// Document returns a pointer to the selected document.
func (c *Certificate) Document(kind DocumentKind) *Document {
	if kind == DocumentTarget {
		return &c.Target
	}
	return &c.Report
}

// Keywords returns the keyword map of a document and whether extraction produced one.
func (c *Certificate) Keywords(kind DocumentKind) (KeywordMatches, bool) {
	doc := c.Document(kind)
	if doc.Keywords == nil {
		return nil, false
	}
	return doc.Keywords, true
}

// Clone returns a deep copy.
func (c *Certificate) Clone() *Certificate {
	out := *c
	out.Vendors = cloneStrings(c.Vendors)
	out.SecurityLevel = cloneStrings(c.SecurityLevel)
	out.References = cloneStrings(c.References)
	out.RelatedCVEs = cloneStrings(c.RelatedCVEs)
	if c.Maintenance != nil {
		out.Maintenance = append([]MaintenanceUpdate(nil), c.Maintenance...)
	}
	if c.ProtectionProfiles != nil {
		out.ProtectionProfiles = append([]ProtectionProfile(nil), c.ProtectionProfiles...)
	}
	if c.Provenance != nil {
		out.Provenance = make(map[string]Source, len(c.Provenance))
		for k, v := range c.Provenance {
			out.Provenance[k] = v
		}
	}
	out.Report = c.Report.clone()
	out.Target = c.Target.clone()
	out.State = c.State.clone()
	return &out
}

func (d Document) clone() Document {
	out := d
	out.Keywords = d.Keywords.Clone()
	if d.FrontPage != nil {
		fp := *d.FrontPage
		fp.ReferencedProtectionProfiles = cloneStrings(d.FrontPage.ReferencedProtectionProfiles)
		out.FrontPage = &fp
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// SortedDigests returns the keys of a certificate map in ascending order.
func SortedDigests(certs map[string]*Certificate) []string {
	keys := make([]string, 0, len(certs))
	for k := range certs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
