package keywords

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v3"
)

// Separator is the delimiter class every keyword must be followed by.
const Separator = `[ ,;\]”)(]`

// Well-known groups consumed outside the extractor.
const (
	GroupCertID             = "rules_cert_id"
	GroupVendor             = "rules_vendor"
	GroupProtectionProfiles = "rules_protection_profiles"
	GroupSecurityLevel      = "rules_security_level"
)

// Header text encodings a label-based header entry can be expanded into.
const (
	EncodingUTF8     = "utf8"
	EncodingMojibake = "mojibake"
	EncodingRaw      = "raw"
)

// Front-page fields a header rule may capture.
const (
	FieldCertID          = "cert_id"
	FieldCertItem        = "cert_item"
	FieldCertItemVersion = "cert_item_version"
	FieldProfiles        = "ref_protection_profiles"
	FieldCCVersion       = "cc_version"
	FieldSecurityLevel   = "cc_security_level"
	FieldDeveloper       = "developer"
	FieldCertLab         = "cert_lab"
)

var headerFields = map[string]bool{
	FieldCertID: true, FieldCertItem: true, FieldCertItemVersion: true, FieldProfiles: true,
	FieldCCVersion: true, FieldSecurityLevel: true, FieldDeveloper: true, FieldCertLab: true,
}

//go:embed rules.yaml
var defaultRules []byte

// Rule is one compiled keyword pattern.
type Rule struct {
	Name    string
	Pattern string
	Variant string

	re   *regexp.Regexp // Pattern + Separator
	bare *regexp.Regexp // Pattern alone, for file names
}

// Group is an ordered set of rules whose matches are aggregated together.
type Group struct {
	Name  string
	Rules []Rule
}

// HeaderRule recognizes the header table of one scheme's report layout.
type HeaderRule struct {
	Scheme  string
	Variant string
	Pattern string
	Fields  []string // capture group i+1 fills Fields[i]
	Lab     string   // fixed certification lab, if the layout implies one

	SplitItemOn    []string
	CutDeveloperAt []string

	re *regexp.Regexp
}

// Catalog is the immutable, compiled rule set. Safe for concurrent use.
type Catalog struct {
	Version int
	groups  []Group
	headers []HeaderRule
	index   map[string]int
}

type catalogFile struct {
	Version int          `yaml:"version"`
	Groups  []groupFile  `yaml:"groups"`
	Headers []headerFile `yaml:"headers"`
}

type groupFile struct {
	Name  string     `yaml:"name"`
	Rules []ruleFile `yaml:"rules"`
}

type ruleFile struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Variant string `yaml:"variant"`
}

type headerFile struct {
	Scheme         string        `yaml:"scheme"`
	Variant        string        `yaml:"variant"`
	Pattern        string        `yaml:"pattern"`
	Fields         []string      `yaml:"fields"`
	Lab            string        `yaml:"lab"`
	Encodings      []string      `yaml:"encodings"`
	Sections       []sectionFile `yaml:"sections"`
	Terminators    []string      `yaml:"terminators"`
	SplitItemOn    []string      `yaml:"split_item_on"`
	CutDeveloperAt []string      `yaml:"cut_developer_at"`
}

type sectionFile struct {
	Field  string   `yaml:"field"`
	Labels []string `yaml:"labels"`
}

// DefaultCatalog compiles the embedded rule set.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultRules)
}

// LoadCatalog reads and compiles a YAML catalog. An empty path selects the embedded one.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog compiles a YAML catalog. Any malformed pattern is fatal.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{Version: file.Version, index: make(map[string]int)}
	for _, g := range file.Groups {
		if g.Name == "" {
			return nil, &domain.RuleError{Err: fmt.Errorf("%w: group without name", domain.ErrInvalidRule)}
		}
		if _, dup := c.index[g.Name]; dup {
			return nil, &domain.RuleError{Group: g.Name, Err: fmt.Errorf("%w: duplicate group", domain.ErrInvalidRule)}
		}
		group := Group{Name: g.Name}
		for _, r := range g.Rules {
			rule, err := compileRule(g.Name, r)
			if err != nil {
				return nil, err
			}
			group.Rules = append(group.Rules, rule)
		}
		c.index[g.Name] = len(c.groups)
		c.groups = append(c.groups, group)
	}

	for _, h := range file.Headers {
		rules, err := expandHeader(h)
		if err != nil {
			return nil, err
		}
		c.headers = append(c.headers, rules...)
	}
	return c, nil
}

func compileRule(group string, r ruleFile) (Rule, error) {
	name := r.Name
	if name == "" {
		name = r.Pattern
	}
	if r.Pattern == "" {
		return Rule{}, &domain.RuleError{Group: group, Rule: name, Err: fmt.Errorf("%w: empty pattern", domain.ErrInvalidRule)}
	}
	re, err := regexp.Compile("(?:" + r.Pattern + ")" + Separator)
	if err != nil {
		return Rule{}, &domain.RuleError{Group: group, Rule: name, Err: fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)}
	}
	bare, err := regexp.Compile(r.Pattern)
	if err != nil {
		return Rule{}, &domain.RuleError{Group: group, Rule: name, Err: fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)}
	}
	return Rule{Name: name, Pattern: r.Pattern, Variant: r.Variant, re: re, bare: bare}, nil
}

// expandHeader turns one YAML header entry into one compiled rule per encoding.
func expandHeader(h headerFile) ([]HeaderRule, error) {
	ruleName := h.Scheme + "/" + h.Variant
	base := HeaderRule{
		Scheme:         h.Scheme,
		Variant:        h.Variant,
		Lab:            h.Lab,
		SplitItemOn:    h.SplitItemOn,
		CutDeveloperAt: h.CutDeveloperAt,
	}

	if h.Pattern != "" {
		rule := base
		rule.Pattern = h.Pattern
		rule.Fields = h.Fields
		if err := rule.compile(); err != nil {
			return nil, &domain.RuleError{Group: "headers", Rule: ruleName, Err: err}
		}
		return []HeaderRule{rule}, nil
	}

	if len(h.Sections) == 0 {
		return nil, &domain.RuleError{Group: "headers", Rule: ruleName, Err: fmt.Errorf("%w: neither pattern nor sections", domain.ErrInvalidRule)}
	}
	if len(h.Terminators) == 0 {
		return nil, &domain.RuleError{Group: "headers", Rule: ruleName, Err: fmt.Errorf("%w: sections need terminators", domain.ErrInvalidRule)}
	}
	encodings := h.Encodings
	if len(encodings) == 0 {
		encodings = []string{EncodingUTF8}
	}

	out := make([]HeaderRule, 0, len(encodings))
	for _, enc := range encodings {
		rule := base
		if enc == EncodingMojibake {
			rule.Variant = h.Variant + "_" + enc
		}
		var b strings.Builder
		for _, s := range h.Sections {
			alt, err := labelAlternation(s.Labels, enc)
			if err != nil {
				return nil, &domain.RuleError{Group: "headers", Rule: ruleName, Err: err}
			}
			b.WriteString(alt)
			b.WriteString("(.+?)")
			rule.Fields = append(rule.Fields, s.Field)
		}
		alt, err := labelAlternation(h.Terminators, enc)
		if err != nil {
			return nil, &domain.RuleError{Group: "headers", Rule: ruleName, Err: err}
		}
		b.WriteString(alt)
		rule.Pattern = b.String()
		if err := rule.compile(); err != nil {
			return nil, &domain.RuleError{Group: "headers", Rule: ruleName, Err: err}
		}
		out = append(out, rule)
	}
	return out, nil
}

func labelAlternation(labels []string, encoding string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("%w: section without labels", domain.ErrInvalidRule)
	}
	quoted := make([]string, 0, len(labels))
	for _, l := range labels {
		switch encoding {
		case EncodingUTF8, EncodingRaw:
		case EncodingMojibake:
			l = Mojibake(l)
		default:
			return "", fmt.Errorf("%w: unknown encoding %q", domain.ErrInvalidRule, encoding)
		}
		quoted = append(quoted, regexp.QuoteMeta(l))
	}
	return "(?:" + strings.Join(quoted, "|") + ")", nil
}

func (h *HeaderRule) compile() error {
	re, err := regexp.Compile("(?s)" + h.Pattern)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)
	}
	for _, f := range h.Fields {
		if !headerFields[f] {
			return fmt.Errorf("%w: unknown header field %q", domain.ErrInvalidRule, f)
		}
	}
	if re.NumSubexp() != len(h.Fields) {
		return fmt.Errorf("%w: %d capture groups for %d fields", domain.ErrInvalidRule, re.NumSubexp(), len(h.Fields))
	}
	h.re = re
	return nil
}

// Mojibake renders s the way a UTF-8 document reads when decoded as windows-1252.
func Mojibake(s string) string {
	out, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// Groups returns the rule groups in catalog order.
func (c *Catalog) Groups() []Group {
	return c.groups
}

// Group looks up a group by name.
func (c *Catalog) Group(name string) (Group, bool) {
	i, ok := c.index[name]
	if !ok {
		return Group{}, false
	}
	return c.groups[i], true
}

// Headers returns the header table in match order.
func (c *Catalog) Headers() []HeaderRule {
	return c.headers
}

// Schemes lists the schemes that have header rules.
func (c *Catalog) Schemes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range c.headers {
		if !seen[h.Scheme] {
			seen[h.Scheme] = true
			out = append(out, h.Scheme)
		}
	}
	sort.Strings(out)
	return out
}

// Variants enumerates the header layouts known for a scheme, in match order.
func (c *Catalog) Variants(scheme string) []string {
	var out []string
	for _, h := range c.headers {
		if h.Scheme == scheme {
			out = append(out, h.Variant)
		}
	}
	return out
}

// RuleCount returns the number of keyword rules across all groups.
func (c *Catalog) RuleCount() int {
	n := 0
	for _, g := range c.groups {
		n += len(g.Rules)
	}
	return n
}
