package domain

import "time"

// CVERecord represents a Common Vulnerabilities and Exposures entry
// from the National Vulnerability Database (NVD) or similar sources.
type CVERecord struct {
	ID      string `json:"cve_id"`  // e.g., "CVE-2019-14318"
	Vendor  string `json:"vendor"`  // e.g., "infineon"
	Product string `json:"product"` // e.g., "javacard_os"

	// Version Matching
	VersionStart string `json:"version_start,omitempty"` // e.g., "1.0.0"
	VersionEnd   string `json:"version_end,omitempty"`   // e.g., "1.4.5"
	VersionExact string `json:"version_exact,omitempty"` // e.g., "1.2.3"

	// Metadata
	Description   string    `json:"description"`
	Severity      float64   `json:"severity"`              // CVSS Score 0-10
	CVSSVector    string    `json:"cvss_vector,omitempty"` // e.g., "CVSS:3.1/AV:N/AC:L/..."
	PublishedDate time.Time `json:"published_date"`
	LastModified  time.Time `json:"last_modified,omitempty"`

	// Classification
	CWEID        string `json:"cwe_id,omitempty"` // e.g., "CWE-79"
	AttackVector string `json:"attack_vector"`    // NETWORK, ADJACENT, LOCAL, PHYSICAL

	// References
	References []string `json:"references,omitempty"` // URLs to advisories, patches, etc.
}

// HasVersionBounds reports whether the record limits the affected versions.
func (c CVERecord) HasVersionBounds() bool {
	return c.VersionExact != "" || c.VersionStart != "" || c.VersionEnd != ""
}

// CVEMatch represents a match between a certified product and a CVE record.
type CVEMatch struct {
	CVE        CVERecord `json:"cve"`
	Confidence float64   `json:"confidence"` // 0.0-1.0
	MatchType  string    `json:"match_type"` // "exact", "product", "keyword"
	Evidence   []string  `json:"evidence"`   // What triggered the match
}

// CVESyncStatus tracks the last synchronization with external CVE databases.
type CVESyncStatus struct {
	LastSyncTime time.Time `json:"last_sync_time"`
	RecordCount  int       `json:"record_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
