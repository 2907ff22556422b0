package keywords

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// ReadText loads a converted document. Invalid UTF-8 falls back to a line-by-line
// decode that drops undecodable lines; tolerant reports whether that happened.
func ReadText(path string) (text string, tolerant bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	text, tolerant, err = DecodeText(data)
	if err != nil {
		return "", tolerant, fmt.Errorf("%s: %w", path, err)
	}
	return text, tolerant, nil
}

// DecodeText is ReadText without the file system.
func DecodeText(data []byte) (string, bool, error) {
	if utf8.Valid(data) {
		return string(data), false, nil
	}

	var kept []string
	for _, line := range bytes.Split(data, []byte("\n")) {
		if utf8.Valid(line) {
			kept = append(kept, string(line))
		}
	}
	if strings.TrimSpace(strings.Join(kept, "")) == "" {
		return "", true, domain.ErrUnreadableText
	}
	return strings.Join(kept, "\n"), true, nil
}
