package convert

import (
	"strings"
	"unicode"
)

// Thresholds below which converted text is considered low confidence.
const (
	MinLines         = 30
	MinSize          = 1000
	MinAvgLineLength = 10
	MaxSpacedLines   = 15
	MinAlphaRatio    = 0.5
)

// IsGarbage reports whether text looks like a failed conversion:
// too short, too fragmented, letter-spaced, or mostly non-letters.
func IsGarbage(text string) bool {
	size := len(text)
	if size < MinSize {
		return true
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= MinLines {
		return true
	}

	contentLen := 0
	spaced := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		contentLen += len(line)
		if everySecondSpace(line) {
			spaced++
		}
	}
	if float64(contentLen)/float64(len(lines)) < MinAvgLineLength {
		return true
	}
	if spaced > MaxSpacedLines {
		return true
	}

	alpha := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	return float64(alpha)/float64(total) < MinAlphaRatio
}

// everySecondSpace matches letter-spaced lines such as "C e r t i f i c a t e".
func everySecondSpace(line string) bool {
	runes := []rune(line)
	if len(runes) < 4 {
		return false
	}
	for i := 1; i < len(runes); i += 2 {
		if runes[i] != ' ' {
			return false
		}
	}
	return true
}
