package domain

import "sort"

// Span is a half-open byte range of a match inside the scanned text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// MatchEntry aggregates the occurrences of one normalized match.
type MatchEntry struct {
	Count     int    `json:"count"`
	Positions []Span `json:"positions,omitempty"`
}

// KeywordMatches maps rule group -> rule -> normalized match -> occurrences.
type KeywordMatches map[string]map[string]map[string]MatchEntry

// Add records one occurrence.
func (k KeywordMatches) Add(group, rule, match string, span *Span) {
	rules, ok := k[group]
	if !ok {
		rules = make(map[string]map[string]MatchEntry)
		k[group] = rules
	}
	matches, ok := rules[rule]
	if !ok {
		matches = make(map[string]MatchEntry)
		rules[rule] = matches
	}
	entry := matches[match]
	entry.Count++
	if span != nil {
		entry.Positions = append(entry.Positions, *span)
	}
	matches[match] = entry
}

// Matches flattens a group into match -> total count across its rules.
func (k KeywordMatches) Matches(group string) map[string]int {
	out := make(map[string]int)
	for _, matches := range k[group] {
		for m, e := range matches {
			out[m] += e.Count
		}
	}
	return out
}

// Total returns the number of occurrences in a group.
func (k KeywordMatches) Total(group string) int {
	total := 0
	for _, n := range k.Matches(group) {
		total += n
	}
	return total
}

// Groups returns the group names in ascending order.
func (k KeywordMatches) Groups() []string {
	out := make([]string, 0, len(k))
	for g := range k {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Merge adds every occurrence of other into k.
func (k KeywordMatches) Merge(other KeywordMatches) {
	for group, rules := range other {
		for rule, matches := range rules {
			for m, e := range matches {
				if _, ok := k[group]; !ok {
					k[group] = make(map[string]map[string]MatchEntry)
				}
				if _, ok := k[group][rule]; !ok {
					k[group][rule] = make(map[string]MatchEntry)
				}
				cur := k[group][rule][m]
				cur.Count += e.Count
				cur.Positions = append(cur.Positions, e.Positions...)
				k[group][rule][m] = cur
			}
		}
	}
}

// Clone returns a deep copy, preserving nil.
func (k KeywordMatches) Clone() KeywordMatches {
	if k == nil {
		return nil
	}
	out := make(KeywordMatches, len(k))
	out.Merge(k)
	for group, rules := range k {
		if _, ok := out[group]; !ok {
			out[group] = make(map[string]map[string]MatchEntry, len(rules))
		}
	}
	return out
}

// FrontPage holds facts taken from the header of a certification report.
type FrontPage struct {
	Scheme                       string   `json:"scheme"`
	Variant                      string   `json:"variant"`
	CertID                       string   `json:"cert_id,omitempty"`
	CertItem                     string   `json:"cert_item,omitempty"`
	CertItemVersion              string   `json:"cert_item_version,omitempty"`
	Developer                    string   `json:"developer,omitempty"`
	CertLab                      string   `json:"cert_lab,omitempty"`
	ReferencedProtectionProfiles []string `json:"ref_protection_profiles,omitempty"`
	CCVersion                    string   `json:"cc_version,omitempty"`
	CCSecurityLevel              string   `json:"cc_security_level,omitempty"`
}
