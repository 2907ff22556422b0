package cve

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// Match types reported in domain.CVEMatch.MatchType.
const (
	MatchExact   = "exact"
	MatchProduct = "product"
	MatchKeyword = "keyword"
)

var (
	versionPattern = regexp.MustCompile(`\bv?(\d+(?:\.\d+){0,3})\b`)
	nonWord        = regexp.MustCompile(`[^a-z0-9]+`)
)

// corporate suffixes dropped before vendor comparison
var vendorSuffixes = []string{
	"incorporated", "corporation", "limited", "company", "technologies", "technology",
	"inc", "ltd", "llc", "corp", "co", "gmbh", "ag", "sa", "s.a", "bv", "b.v", "nv", "plc", "oy", "ab", "kg",
}

// vendor names as they appear in certification listings, mapped to NVD vendor ids
var vendorAliases = map[string]string{
	"infineon":                    "infineon",
	"nxp semiconductors":          "nxp",
	"nxp":                         "nxp",
	"stmicroelectronics":          "st",
	"samsung electronics":         "samsung",
	"samsung":                     "samsung",
	"thales dis":                  "thalesgroup",
	"thales":                      "thalesgroup",
	"gemalto":                     "thalesgroup",
	"idemia":                      "idemia",
	"oberthur":                    "idemia",
	"giesecke devrient":           "gi-de",
	"giesecke+devrient":           "gi-de",
	"microsoft":                   "microsoft",
	"cisco systems":               "cisco",
	"cisco":                       "cisco",
	"juniper networks":            "juniper",
	"palo alto networks":          "paloaltonetworks",
	"fortinet":                    "fortinet",
	"red hat":                     "redhat",
	"oracle":                      "oracle",
	"ibm":                         "ibm",
	"hewlett packard enterprise":  "hpe",
	"hp":                          "hp",
	"apple":                       "apple",
	"google":                      "google",
	"vmware":                      "vmware",
	"canonical":                   "canonical",
	"openssl software foundation": "openssl",
}

// CVEMatcherEngine implements ports.CVEMatcher for certificates.
type CVEMatcherEngine struct {
	repo  ports.CVERepository
	cache *QueryCache
}

// NewCVEMatcher creates a new CVE matcher engine. Vendor lookups are cached.
func NewCVEMatcher(repo ports.CVERepository, cacheSize int) *CVEMatcherEngine {
	return &CVEMatcherEngine{repo: repo, cache: NewQueryCache(cacheSize)}
}

// FindMatches returns all CVE matches for a given certificate using multiple strategies.
func (m *CVEMatcherEngine) FindMatches(ctx context.Context, cert domain.Certificate) ([]domain.CVEMatch, error) {
	vendors := certificateVendors(cert)
	product := normalizeProduct(cert.Name)
	version := productVersion(cert.Name)

	var matches []domain.CVEMatch
	var errs []error

	// Strategy 1: exact vendor + product
	for _, vendor := range vendors {
		if product == "" {
			break
		}
		cves, err := m.repo.FindByVendorProduct(ctx, vendor, product)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, cve := range cves {
			if !versionAffected(cve, version) {
				continue
			}
			matches = append(matches, domain.CVEMatch{
				CVE:        cve,
				Confidence: 0.9,
				MatchType:  MatchExact,
				Evidence:   []string{"Vendor: " + vendor, "Product: " + product},
			})
		}
	}

	// Strategy 2: vendor records whose product tokens all appear in the certified name
	nameTokens := tokenSet(cert.Name)
	for _, vendor := range vendors {
		cves, err := m.byVendor(ctx, vendor)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, cve := range cves {
			if !productCovered(cve.Product, nameTokens) || !versionAffected(cve, version) {
				continue
			}
			matches = append(matches, domain.CVEMatch{
				CVE:        cve,
				Confidence: 0.75,
				MatchType:  MatchProduct,
				Evidence:   []string{"Vendor: " + vendor, "Name: " + cert.Name},
			})
		}
	}

	// Strategy 3: product name in the CVE description
	if phrase := productPhrase(cert.Name); phrase != "" {
		keywordMatches, err := m.matchKeywords(ctx, cert, phrase, vendors)
		if err != nil {
			errs = append(errs, err)
		}
		matches = append(matches, keywordMatches...)
	}

	if len(matches) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return deduplicateAndSort(matches), nil
}

func (m *CVEMatcherEngine) byVendor(ctx context.Context, vendor string) ([]domain.CVERecord, error) {
	if cves, ok := m.cache.Get(vendor); ok {
		return cves, nil
	}
	cves, err := m.repo.FindByVendor(ctx, vendor)
	if err != nil {
		return nil, err
	}
	m.cache.Set(vendor, cves)
	return cves, nil
}

func (m *CVEMatcherEngine) matchKeywords(ctx context.Context, cert domain.Certificate, phrase string, vendors []string) ([]domain.CVEMatch, error) {
	cves, err := m.repo.SearchByKeywords(ctx, []string{phrase})
	if err != nil {
		return nil, err
	}

	var matches []domain.CVEMatch
	version := productVersion(cert.Name)
	for _, cve := range cves {
		if !versionAffected(cve, version) {
			continue
		}
		cveVendor := normalizeVendor(cve.Vendor)

		// A CVE filed against a specific vendor only counts for that vendor.
		if cveVendor != "*" && cveVendor != "" && len(vendors) > 0 && !containsString(vendors, cveVendor) {
			continue
		}

		confidence := 0.5
		if cert.Manufacturer != "" && strings.Contains(strings.ToLower(cve.Description), strings.ToLower(cert.Manufacturer)) {
			confidence = 0.7
		}
		if cveVendor == "*" || cveVendor == "generic" {
			confidence = 0.4
		}

		matches = append(matches, domain.CVEMatch{
			CVE:        cve,
			Confidence: confidence,
			MatchType:  MatchKeyword,
			Evidence:   []string{"Keywords: " + phrase},
		})
	}
	return matches, nil
}

// certificateVendors returns the distinct normalized vendors of a certificate.
func certificateVendors(cert domain.Certificate) []string {
	var out []string
	add := func(v string) {
		v = normalizeVendor(v)
		if v != "" && !isGenericTerm(v) && !containsString(out, v) {
			out = append(out, v)
		}
	}
	for _, v := range cert.Vendors {
		add(v)
	}
	add(cert.Manufacturer)
	return out
}

// normalizeVendor normalizes vendor names for consistent matching.
func normalizeVendor(vendor string) string {
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	if vendor == "*" {
		return vendor
	}
	fields := strings.FieldsFunc(vendor, func(r rune) bool {
		return r == ' ' || r == ',' || r == '-' || r == '&' || r == '_'
	})
	for len(fields) > 1 && isVendorSuffix(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	vendor = strings.Join(fields, " ")

	if normalized, ok := vendorAliases[vendor]; ok {
		return normalized
	}
	if len(fields) > 1 {
		if normalized, ok := vendorAliases[fields[0]]; ok {
			return normalized
		}
	}
	return strings.ReplaceAll(vendor, " ", "_")
}

func isVendorSuffix(s string) bool {
	s = strings.TrimSuffix(s, ".")
	for _, suffix := range vendorSuffixes {
		if s == suffix {
			return true
		}
	}
	return false
}

// normalizeProduct turns a certified name into an NVD style product id, version removed.
func normalizeProduct(name string) string {
	return strings.Join(strings.Fields(productPhrase(name)), "_")
}

// productPhrase is the certified name in lower case with versions and punctuation removed.
func productPhrase(name string) string {
	name = strings.ToLower(name)
	name = versionPattern.ReplaceAllString(name, " ")
	name = nonWord.ReplaceAllString(name, " ")
	phrase := strings.Join(strings.Fields(name), " ")
	if len(phrase) < 4 || isGenericTerm(phrase) {
		return ""
	}
	return phrase
}

// productVersion extracts the first dotted version number from a certified name.
func productVersion(name string) *semver.Version {
	m := versionPattern.FindStringSubmatch(strings.ToLower(name))
	if m == nil || !strings.Contains(m[1], ".") {
		return nil
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil
	}
	return v
}

// versionAffected reports whether a certified version falls in the CVE's affected range.
// Unknown versions on either side are treated as affected.
func versionAffected(cve domain.CVERecord, v *semver.Version) bool {
	if v == nil || !cve.HasVersionBounds() {
		return true
	}
	if cve.VersionExact != "" {
		exact, err := semver.NewVersion(cve.VersionExact)
		return err != nil || exact.Equal(v)
	}
	if cve.VersionStart != "" {
		if start, err := semver.NewVersion(cve.VersionStart); err == nil && v.LessThan(start) {
			return false
		}
	}
	if cve.VersionEnd != "" {
		if end, err := semver.NewVersion(cve.VersionEnd); err == nil && v.GreaterThan(end) {
			return false
		}
	}
	return true
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(nonWord.ReplaceAllString(strings.ToLower(s), " ")) {
		out[tok] = true
	}
	return out
}

// productCovered reports whether every token of an NVD product id appears in the name.
func productCovered(product string, nameTokens map[string]bool) bool {
	tokens := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(product), " "))
	if len(tokens) == 0 || (len(tokens) == 1 && isGenericTerm(tokens[0])) {
		return false
	}
	for _, tok := range tokens {
		if !nameTokens[tok] {
			return false
		}
	}
	return true
}

// isGenericTerm checks if a string is a known generic term that shouldn't be used for matching.
func isGenericTerm(s string) bool {
	genericTerms := []string{
		"generic",
		"unknown",
		"*",
		"firmware",
		"software",
		"hardware",
		"module",
		"cryptographic module",
		"crypto module",
		"library",
		"smart card",
		"smartcard",
		"operating system",
		"version",
	}

	s = strings.ToLower(s)
	for _, term := range genericTerms {
		if s == term {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// deduplicateAndSort keeps the highest confidence match per CVE, sorted by confidence then severity.
func deduplicateAndSort(matches []domain.CVEMatch) []domain.CVEMatch {
	seen := make(map[string]int, len(matches))
	var unique []domain.CVEMatch
	for _, match := range matches {
		i, ok := seen[match.CVE.ID]
		if !ok {
			seen[match.CVE.ID] = len(unique)
			unique = append(unique, match)
			continue
		}
		if match.Confidence > unique[i].Confidence {
			unique[i] = match
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].Confidence != unique[j].Confidence {
			return unique[i].Confidence > unique[j].Confidence
		}
		if unique[i].CVE.Severity != unique[j].CVE.Severity {
			return unique[i].CVE.Severity > unique[j].CVE.Severity
		}
		return unique[i].CVE.ID < unique[j].CVE.ID
	})
	return unique
}

var _ ports.CVEMatcher = (*CVEMatcherEngine)(nil)
