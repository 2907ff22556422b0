package sources

import (
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"sort"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
)

const (
	titleReport            = "Certification Report"
	titleTarget            = "Security Target"
	titleMaintenanceReport = "Maintenance Report"
	titleMaintenanceTarget = "Maintenance ST"
	maintenanceMarker      = "Maintenance Report(s)"
)

var maintenanceHeading = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(.+)$`)

// HTMLParser reads the Common Criteria portal product pages, one table per category.
type HTMLParser struct {
	categories map[string]string
}

// NewHTMLParser creates a parser for the given table id -> category mapping.
// A nil mapping selects CCCategories.
func NewHTMLParser(categories map[string]string) *HTMLParser {
	if categories == nil {
		categories = CCCategories
	}
	return &HTMLParser{categories: categories}
}

// ParseFile parses one HTML listing. Every record gets the given status.
func (p *HTMLParser) ParseFile(path string, status domain.Status) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open html: %w", err)
	}
	defer f.Close()

	res, err := p.Parse(f, status)
	if err != nil {
		return nil, &domain.SourceFormatError{File: path, Err: err}
	}
	logSummary(res, "HTML", path)
	return res, nil
}

// Parse reads an HTML stream. A category without a table yields nothing;
// two tables with the same id fail the whole file.
func (p *HTMLParser) Parse(r io.Reader, status domain.Status) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	ids := make([]string, 0, len(p.categories))
	for id := range p.categories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := newResult()
	for _, id := range ids {
		tables := tablesByID(doc, id)
		if len(tables) > 1 {
			return nil, fmt.Errorf("%w: %d tables with id %q", domain.ErrDuplicateTable, len(tables), id)
		}
		if len(tables) == 0 {
			continue
		}
		p.parseTable(tables[0], p.categories[id], status, res)
	}
	return res, nil
}

func (p *HTMLParser) parseTable(table *html.Node, category string, status domain.Status, res *Result) {
	all := rows(table)
	if len(all) < 2 {
		return
	}
	// header, footer, body...
	for _, tr := range all[2:] {
		cert, reason := p.parseRow(tr, category, status)
		if reason != "" {
			log.Printf("[HTML] Skipping row in %q: %s", category, reason)
			skip(res, domain.SourceHTML, reason)
			continue
		}
		add(res, domain.SourceHTML, cert)
	}
}

func (p *HTMLParser) parseRow(tr *html.Node, category string, status domain.Status) (domain.Certificate, string) {
	tds := cells(tr)
	want := 6
	if status == domain.StatusArchived {
		want = 7
	}
	if len(tds) != want {
		return domain.Certificate{}, SkipColumns
	}

	product := tds[0]
	name := ""
	if ss := strippedStrings(product); len(ss) > 0 && ss[0] != maintenanceMarker {
		name = ss[0]
	}
	if name == "" {
		return domain.Certificate{}, SkipMissingName
	}

	var reportLink, targetLink string
	for _, a := range findAll(product, byAtom(atom.A)) {
		switch attr(a, "title") {
		case titleReport:
			reportLink = identity.ResolveLink(attr(a, "href"))
		case titleTarget:
			targetLink = identity.ResolveLink(attr(a, "href"))
		}
	}

	notBefore, ok := parseDate(text(tds[2]))
	if !ok {
		return domain.Certificate{}, SkipBadDate
	}
	next := 3
	var notAfter time.Time
	if status == domain.StatusArchived {
		notAfter, ok = parseDate(text(tds[3]))
		if !ok {
			return domain.Certificate{}, SkipBadDate
		}
		next = 4
	}

	manufacturer := text(tds[1])
	cert := domain.Certificate{
		Digest:         identity.Digest(identity.CCPrimaryKey(category, name, reportLink)...),
		Kind:           domain.KindCommonCriteria,
		Status:         status,
		Category:       category,
		Name:           name,
		Manufacturer:   manufacturer,
		Vendors:        splitVendors(manufacturer),
		NotValidBefore: notBefore,
		NotValidAfter:  notAfter,
		ReportLink:     reportLink,
		TargetLink:     targetLink,
		SecurityLevel:  strippedStrings(tds[next+1]),
		Scheme:         scheme(tds[next+2]),
		State:          domain.NewState(),
	}
	for _, a := range findAll(tds[next], byAtom(atom.A)) {
		if n := text(a); n != "" {
			cert.ProtectionProfiles = append(cert.ProtectionProfiles, domain.ProtectionProfile{
				Name: n,
				Link: identity.ResolveLink(attr(a, "href")),
			})
		}
	}
	cert.Maintenance = parseMaintenance(product)
	return cert, ""
}

// scheme prefers the flag image's alt text, then its title, then plain text.
func scheme(td *html.Node) string {
	for _, img := range findAll(td, byAtom(atom.Img)) {
		if v := cleanText(attr(img, "alt")); v != "" {
			return v
		}
		if v := cleanText(attr(img, "title")); v != "" {
			return v
		}
	}
	return text(td)
}

// parseMaintenance reads the maintenance block of a product cell: "YYYY-MM-DD title"
// headings, each followed by its report and ST anchors.
func parseMaintenance(td *html.Node) []domain.MaintenanceUpdate {
	var out []domain.MaintenanceUpdate
	var cur *domain.MaintenanceUpdate

	flush := func() {
		if cur != nil && cur.Title != "" {
			out = append(out, *cur)
		}
		cur = nil
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			if m := maintenanceHeading.FindStringSubmatch(cleanText(n.Data)); m != nil {
				flush()
				date, _ := parseDate(m[1])
				cur = &domain.MaintenanceUpdate{Date: date, Title: m[2]}
			}
			return
		case n.Type == html.ElementNode && n.DataAtom == atom.A && cur != nil:
			switch attr(n, "title") {
			case titleMaintenanceReport:
				cur.ReportLink = identity.ResolveLink(attr(n, "href"))
			case titleMaintenanceTarget:
				cur.TargetLink = identity.ResolveLink(attr(n, "href"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(td)
	flush()
	return out
}
