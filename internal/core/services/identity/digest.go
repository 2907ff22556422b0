// Package identity derives stable identifiers for certificate records.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// DigestBytes is the number of SHA-256 bytes kept in a digest.
const DigestBytes = 16

// HashIDBytes is the BLAKE2b output size of a short public id.
const HashIDBytes = 10

// PortalBaseURL is used to resolve relative links found in the CC portal listings.
const PortalBaseURL = "https://www.commoncriteriaportal.org"

// Digest hashes the concatenated primary-key fields.
// An empty key is allowed but logged as a data-quality warning.
func Digest(fields ...string) string {
	dgst, err := DigestChecked(fields...)
	if err != nil {
		slog.Warn("digest computed over empty primary key", "digest", dgst)
	}
	return dgst
}

// DigestChecked is Digest that reports an empty key through domain.ErrEmptyPrimaryKey.
// The returned digest is valid in both cases.
func DigestChecked(fields ...string) (string, error) {
	key := strings.Join(fields, "")
	sum := sha256.Sum256([]byte(key))
	dgst := hex.EncodeToString(sum[:DigestBytes])
	if key == "" {
		return dgst, domain.ErrEmptyPrimaryKey
	}
	return dgst, nil
}

// CCPrimaryKey returns the key fields of a Common Criteria record.
// Both the CSV and HTML listings expose these three values.
func CCPrimaryKey(category, name, reportLink string) []string {
	return []string{category, name, CanonicalLink(reportLink)}
}

// FIPSPrimaryKey returns the key fields of a FIPS 140 module.
func FIPSPrimaryKey(certNumber string) []string {
	return []string{strings.TrimSpace(certNumber)}
}

// ResolveLink turns a portal-relative link into an absolute one and trims surrounding space.
func ResolveLink(raw string) string {
	u, ok := resolve(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return u.String()
}

// CanonicalLink is ResolveLink plus normalization of scheme and fragment.
// Only canonical links take part in digests.
func CanonicalLink(raw string) string {
	u, ok := resolve(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	u.Fragment = ""
	if u.Scheme == "http" && strings.EqualFold(u.Host, "www.commoncriteriaportal.org") {
		u.Scheme = "https"
	}
	return u.String()
}

func resolve(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if !u.IsAbs() {
		base, _ := url.Parse(PortalBaseURL)
		u = base.ResolveReference(u)
	}
	return u, true
}

// HashID returns the short public id of a digest.
func HashID(digest string) string {
	h, _ := blake2b.New(HashIDBytes, nil)
	h.Write([]byte(digest))
	return hex.EncodeToString(h.Sum(nil))
}
