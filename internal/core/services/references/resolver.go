// Package references turns certificate-id keyword matches into a validated reference graph.
package references

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
)

// Defaults for the rejection heuristics. They are empirical and configurable.
const (
	DefaultGroup                   = "rules_cert_id"
	DefaultVendorGroup             = "rules_vendor"
	DefaultMinCertificateID        = 40
	DefaultMaxIDDigits             = 12
	DefaultYearDifferenceThreshold = 7
)

// Config tunes the resolver.
type Config struct {
	Group                   string
	VendorGroup             string
	MinCertificateID        int
	MaxIDDigits             int
	YearDifferenceThreshold int
}

// DefaultConfig returns the default heuristics.
func DefaultConfig() Config {
	return Config{
		Group:                   DefaultGroup,
		VendorGroup:             DefaultVendorGroup,
		MinCertificateID:        DefaultMinCertificateID,
		MaxIDDigits:             DefaultMaxIDDigits,
		YearDifferenceThreshold: DefaultYearDifferenceThreshold,
	}
}

// Result is the outcome of one full resolution pass.
type Result struct {
	Edges     map[string][]string // source digest -> sorted target digests
	Processed map[string]bool     // certificates that had extracted text
	Flagged   map[string]bool     // certificates with a garbage candidate
	Rejected  map[string]int      // reason -> count
}

// EdgeCount returns the total number of accepted edges.
func (r Result) EdgeCount() int {
	n := 0
	for _, targets := range r.Edges {
		n += len(targets)
	}
	return n
}

// Resolver validates candidate references. It holds no state between calls.
type Resolver struct {
	cfg Config
}

// NewResolver creates a resolver, filling zero config values with defaults.
func NewResolver(cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.Group == "" {
		cfg.Group = def.Group
	}
	if cfg.VendorGroup == "" {
		cfg.VendorGroup = def.VendorGroup
	}
	if cfg.MinCertificateID <= 0 {
		cfg.MinCertificateID = def.MinCertificateID
	}
	if cfg.MaxIDDigits <= 0 {
		cfg.MaxIDDigits = def.MaxIDDigits
	}
	if cfg.YearDifferenceThreshold <= 0 {
		cfg.YearDifferenceThreshold = def.YearDifferenceThreshold
	}
	return &Resolver{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve recomputes every edge set from scratch. Inputs are not modified.
func (r *Resolver) Resolve(certs map[string]*domain.Certificate, algorithms domain.AlgorithmIndex) Result {
	res := Result{
		Edges:     make(map[string][]string),
		Processed: make(map[string]bool),
		Flagged:   make(map[string]bool),
		Rejected:  make(map[string]int),
	}
	known := r.knownIDs(certs)

	for _, dgst := range domain.SortedDigests(certs) {
		cert := certs[dgst]
		if !cert.State.AnyExtracted() {
			continue
		}
		res.Processed[dgst] = true

		targets, rejected, garbage := r.resolveOne(cert, certs, known, algorithms)
		// A flagged certificate counts once, as garbage, whatever else its candidates hit.
		if garbage {
			res.Flagged[dgst] = true
			res.Rejected[domain.RejectGarbage]++
			continue
		}
		for reason, n := range rejected {
			res.Rejected[reason] += n
		}
		if len(targets) > 0 {
			res.Edges[dgst] = targets
		}
	}

	slog.Debug("resolved references",
		"processed", len(res.Processed),
		"edges", res.EdgeCount(),
		"flagged", len(res.Flagged))
	return res
}

func (r *Resolver) knownIDs(certs map[string]*domain.Certificate) map[string]string {
	known := make(map[string]string, len(certs))
	for _, dgst := range domain.SortedDigests(certs) {
		id, ok := identity.NormalizeCertID(certs[dgst].CertNumber)
		if !ok {
			continue
		}
		if prev, dup := known[id]; dup {
			slog.Warn("ambiguous certificate id", "id", id, "kept", prev, "ignored", dgst)
			continue
		}
		known[id] = dgst
	}
	return known
}

func (r *Resolver) candidates(cert *domain.Certificate) []string {
	seen := make(map[string]bool)
	for _, kind := range []domain.DocumentKind{domain.DocumentReport, domain.DocumentTarget} {
		kw, ok := cert.Keywords(kind)
		if !ok {
			continue
		}
		for m := range kw.Matches(r.cfg.Group) {
			seen[m] = true
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) resolveOne(cert *domain.Certificate, certs map[string]*domain.Certificate, known map[string]string, algorithms domain.AlgorithmIndex) ([]string, map[string]int, bool) {
	rejected := make(map[string]int)
	own, _ := identity.NormalizeCertID(cert.CertNumber)
	targets := make(map[string]bool)

	for _, raw := range r.candidates(cert) {
		id, ok := identity.NormalizeCertID(raw)
		if !ok || len(id) > r.cfg.MaxIDDigits {
			return nil, rejected, true
		}

		target, isKnown := known[id]
		switch {
		case id == own || target == cert.Digest:
			rejected[domain.RejectSelf]++
		case belowMinimum(id, r.cfg.MinCertificateID):
			rejected[domain.RejectBelowMinimum]++
		case !isKnown:
			rejected[domain.RejectUnknown]++
		case r.isUncorroboratedAlgorithm(id, cert, certs[target], algorithms):
			rejected[domain.RejectAlgorithm]++
		case r.tooFarApart(cert, certs[target]):
			rejected[domain.RejectYearDistance]++
		default:
			targets[target] = true
		}
	}

	out := make([]string, 0, len(targets))
	for t := range targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, rejected, false
}

func belowMinimum(id string, minimum int) bool {
	n, err := strconv.Atoi(id)
	if err != nil {
		// Too long for int: certainly not below the minimum.
		return false
	}
	return n < minimum
}

// isUncorroboratedAlgorithm reports whether id names an algorithm certificate and
// nothing ties the referenced module's vendor to the citing certificate.
func (r *Resolver) isUncorroboratedAlgorithm(id string, source, target *domain.Certificate, algorithms domain.AlgorithmIndex) bool {
	if _, ok := algorithms.Vendor(id); !ok {
		return false
	}
	return !r.vendorsOverlap(source, target)
}

func (r *Resolver) vendorsOverlap(source, target *domain.Certificate) bool {
	theirs := vendorNames(target)
	if len(theirs) == 0 {
		return false
	}
	ours := vendorNames(source)
	for _, kind := range []domain.DocumentKind{domain.DocumentReport, domain.DocumentTarget} {
		if kw, ok := source.Keywords(kind); ok {
			for m := range kw.Matches(r.cfg.VendorGroup) {
				ours = append(ours, normalizeVendor(m))
			}
		}
	}
	for _, a := range ours {
		for _, b := range theirs {
			if sameVendor(a, b) {
				return true
			}
		}
	}
	return false
}

func vendorNames(c *domain.Certificate) []string {
	var out []string
	for _, v := range c.Vendors {
		if n := normalizeVendor(v); n != "" {
			out = append(out, n)
		}
	}
	if n := normalizeVendor(c.Manufacturer); n != "" {
		out = append(out, n)
	}
	return out
}

func normalizeVendor(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

// sameVendor treats "infineon" and "infineon technologies ag" as the same vendor.
func sameVendor(a, b string) bool {
	if len(a) < 3 || len(b) < 3 {
		return a == b
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func (r *Resolver) tooFarApart(a, b *domain.Certificate) bool {
	aFirst, aLast, okA := a.ValidityYears()
	bFirst, bLast, okB := b.ValidityYears()
	if !okA || !okB {
		return false
	}
	t := r.cfg.YearDifferenceThreshold
	return abs(aFirst-bFirst) > t && abs(aLast-bLast) > t
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Apply writes a result back onto a record set: every edge set is replaced and
// processed certificates get a fresh FileStatus. Callers pass cloned records.
func Apply(certs map[string]*domain.Certificate, res Result) {
	for dgst, cert := range certs {
		cert.References = res.Edges[dgst]
		if res.Processed[dgst] {
			cert.State.FileStatus = !res.Flagged[dgst]
		}
	}
}
