package sources

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
)

const (
	// FIPSTableID is the id of the CMVP search results table.
	FIPSTableID = "searchResultsTable"
	// FIPSBaseURL resolves relative module links.
	FIPSBaseURL = "https://csrc.nist.gov"
	// FIPSSecurityPolicyURL is the security policy PDF of a module number.
	FIPSSecurityPolicyURL = "https://csrc.nist.gov/CSRC/media/projects/cryptographic-module-validation-program/documents/security-policies/140sp%s.pdf"
)

// FIPSHTMLParser reads the CMVP validated modules search results.
type FIPSHTMLParser struct{}

// NewFIPSHTMLParser creates a FIPS listing parser.
func NewFIPSHTMLParser() *FIPSHTMLParser {
	return &FIPSHTMLParser{}
}

// ParseFile parses one saved search results page.
func (p *FIPSHTMLParser) ParseFile(path string, status domain.Status) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fips html: %w", err)
	}
	defer f.Close()

	res, err := p.Parse(f, status)
	if err != nil {
		return nil, &domain.SourceFormatError{File: path, Err: err}
	}
	logSummary(res, "FIPS", path)
	return res, nil
}

// Parse reads a results page: certificate number, vendor, module name, type, validation dates.
func (p *FIPSHTMLParser) Parse(r io.Reader, status domain.Status) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := newResult()
	tables := tablesByID(doc, FIPSTableID)
	if len(tables) > 1 {
		return nil, fmt.Errorf("%w: %d tables with id %q", domain.ErrDuplicateTable, len(tables), FIPSTableID)
	}
	if len(tables) == 0 {
		return res, nil
	}

	for _, tr := range rows(tables[0]) {
		tds := cells(tr)
		if len(tds) == 0 {
			continue // header row
		}
		cert, reason := p.parseRow(tds, status)
		if reason != "" {
			log.Printf("[FIPS] Skipping row: %s", reason)
			skip(res, domain.SourceFIPSHTML, reason)
			continue
		}
		add(res, domain.SourceFIPSHTML, cert)
	}
	return res, nil
}

func (p *FIPSHTMLParser) parseRow(tds []*html.Node, status domain.Status) (domain.Certificate, string) {
	if len(tds) != 5 {
		return domain.Certificate{}, SkipColumns
	}

	number := text(tds[0])
	if _, ok := identity.NormalizeCertID(number); !ok {
		return domain.Certificate{}, SkipBadNumber
	}
	name := text(tds[2])
	if name == "" {
		return domain.Certificate{}, SkipMissingName
	}

	var dates []time.Time
	for _, s := range strippedStrings(tds[4]) {
		for _, part := range splitList(s, ";") {
			d, ok := parseDate(part)
			if !ok {
				return domain.Certificate{}, SkipBadDate
			}
			if !d.IsZero() {
				dates = append(dates, d)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	vendor := text(tds[1])
	cert := domain.Certificate{
		Digest:       identity.Digest(identity.FIPSPrimaryKey(number)...),
		Kind:         domain.KindFIPS,
		Status:       status,
		Category:     text(tds[3]),
		Name:         name,
		Manufacturer: vendor,
		Vendors:      splitVendors(vendor),
		CertNumber:   strings.TrimSpace(number),
		TargetLink:   fmt.Sprintf(FIPSSecurityPolicyURL, strings.TrimSpace(number)),
		State:        domain.NewState(),
	}
	for _, a := range findAll(tds[0], byAtom(atom.A)) {
		if href := attr(a, "href"); href != "" {
			cert.ReportLink = resolveFIPS(href)
			break
		}
	}
	if len(dates) > 0 {
		cert.NotValidBefore = dates[0]
		if len(dates) > 1 {
			cert.NotValidAfter = dates[len(dates)-1]
		}
	}
	return cert, ""
}

func resolveFIPS(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/") {
		return FIPSBaseURL + href
	}
	return href
}
