package identity

import "strings"

// NormalizeCertID reduces a certificate id to its digits without leading zeros,
// so "Cert. #0042" and "42" compare equal. ok is false when no digit is present.
func NormalizeCertID(raw string) (id string, ok bool) {
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", false
	}
	id = strings.TrimLeft(digits, "0")
	if id == "" {
		id = "0"
	}
	return id, true
}
