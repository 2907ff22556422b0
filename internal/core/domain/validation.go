package domain

import (
	"regexp"
)

// Validation Helpers

var (
	digestRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)
	hashIDRegex = regexp.MustCompile(`^[0-9a-f]{20}$`)
)

// IsValidDigest checks if the string is a 16-byte hex digest
func IsValidDigest(dgst string) bool {
	return digestRegex.MatchString(dgst)
}

// IsValidHashID checks if the string is a 10-byte hex short id
func IsValidHashID(id string) bool {
	return hashIDRegex.MatchString(id)
}
