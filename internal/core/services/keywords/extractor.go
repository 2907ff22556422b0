package keywords

import (
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

const (
	// MaxMatchLength drops runaway matches, counted in runes after normalization.
	MaxMatchLength = 300
	// DefaultLineSeparator joins the lines of a document before scanning.
	DefaultLineSeparator = " "

	headerPages    = 2
	maxHeaderBytes = 8 << 10
)

// Options tune an Extractor.
type Options struct {
	LineSeparator    string
	CapturePositions bool
}

// Extractor runs a Catalog over document text.
type Extractor struct {
	catalog   *Catalog
	sep       string
	positions bool
}

// NewExtractor creates an extractor bound to a compiled catalog.
func NewExtractor(c *Catalog, opts Options) *Extractor {
	sep := opts.LineSeparator
	if sep == "" {
		sep = DefaultLineSeparator
	}
	return &Extractor{catalog: c, sep: sep, positions: opts.CapturePositions}
}

// Catalog returns the rule set in use.
func (e *Extractor) Catalog() *Catalog {
	return e.catalog
}

// Extract scans text with every rule and returns aggregated, normalized matches.
// The result is never nil, so an empty map still records that extraction ran.
func (e *Extractor) Extract(text string) domain.KeywordMatches {
	joined := e.join(text)
	out := domain.KeywordMatches{}
	for _, g := range e.catalog.groups {
		for _, r := range g.Rules {
			for _, loc := range r.re.FindAllStringIndex(joined, -1) {
				m := Normalize(joined[loc[0]:loc[1]])
				if m == "" || utf8.RuneCountInString(m) > MaxMatchLength {
					continue
				}
				var span *domain.Span
				if e.positions {
					span = &domain.Span{Start: loc[0], End: loc[1]}
				}
				out.Add(g.Name, r.Name, m, span)
			}
		}
	}
	return out
}

// join appends the separator after every line, including the last, so a keyword
// at the very end of the document still sees its delimiter.
func (e *Extractor) join(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(e.sep))
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteString(e.sep)
	}
	return b.String()
}

// FrontPage applies the header table to the opening pages and returns the first
// layout that matches, or nil.
func (e *Extractor) FrontPage(text string) *domain.FrontPage {
	header := headerText(text)
	if header == "" {
		return nil
	}
	for _, h := range e.catalog.headers {
		m := h.re.FindStringSubmatch(header)
		if m == nil {
			continue
		}
		fp := &domain.FrontPage{Scheme: h.Scheme, Variant: h.Variant, CertLab: h.Lab}
		for i, field := range h.Fields {
			h.assign(fp, field, m[i+1])
		}
		if fp.CertID == "" {
			continue
		}
		return fp
	}
	return nil
}

func (h HeaderRule) assign(fp *domain.FrontPage, field, raw string) {
	switch field {
	case FieldCertID:
		fp.CertID = Normalize(raw)
	case FieldCertItem:
		for _, sep := range h.SplitItemOn {
			if i := strings.Index(raw, sep); i >= 0 {
				raw = raw[:i]
			}
		}
		fp.CertItem = Normalize(raw)
	case FieldCertItemVersion:
		fp.CertItemVersion = Normalize(raw)
	case FieldProfiles:
		fp.ReferencedProtectionProfiles = splitList(raw)
	case FieldCCVersion:
		fp.CCVersion = Normalize(raw)
	case FieldSecurityLevel:
		fp.CCSecurityLevel = Normalize(raw)
	case FieldDeveloper:
		for _, marker := range h.CutDeveloperAt {
			if i := strings.Index(raw, marker); i >= 0 {
				raw = raw[:i]
			}
		}
		fp.Developer = Normalize(raw)
	case FieldCertLab:
		if v := Normalize(raw); v != "" {
			fp.CertLab = v
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		if v := Normalize(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// headerText returns the first pages with lines joined by spaces, cut at a rune boundary.
func headerText(text string) string {
	pages := strings.SplitN(text, "\f", headerPages+1)
	if len(pages) > headerPages {
		pages = pages[:headerPages]
	}
	joined := strings.Join(pages, "\f")
	joined = strings.ReplaceAll(joined, "\r", "")
	joined = strings.ReplaceAll(joined, "\n", " ")
	if len(joined) > maxHeaderBytes {
		cut := maxHeaderBytes
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}

// EstimateCertID picks the most plausible certificate id for a document: the
// front page id, then an id embedded in the file name, then the most frequent
// rules_cert_id match with ties broken lexicographically.
func (e *Extractor) EstimateCertID(fp *domain.FrontPage, fileName string, matches domain.KeywordMatches) string {
	if fp != nil && fp.CertID != "" {
		return fp.CertID
	}
	if id := e.certIDFromName(fileName); id != "" {
		return id
	}
	return mostFrequent(matches.Matches(GroupCertID))
}

func (e *Extractor) certIDFromName(fileName string) string {
	if fileName == "" {
		return ""
	}
	base := path.Base(fileName)
	base = strings.TrimSuffix(base, path.Ext(base))
	g, ok := e.catalog.Group(GroupCertID)
	if !ok {
		return ""
	}
	for _, r := range g.Rules {
		if m := r.bare.FindString(base); m != "" {
			return Normalize(m)
		}
	}
	return ""
}

func mostFrequent(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}
