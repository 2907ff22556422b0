// Package convert turns PDF documents into plain text with the poppler pdftotext tool.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

const (
	DefaultBinary  = "pdftotext"
	DefaultTimeout = 2 * time.Minute
)

// PDFToText implements ports.Converter by running pdftotext.
type PDFToText struct {
	binary  string
	timeout time.Duration
}

// NewPDFToText creates a converter. An empty binary selects pdftotext from PATH.
func NewPDFToText(binary string, timeout time.Duration) *PDFToText {
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PDFToText{binary: binary, timeout: timeout}
}

// Convert writes the text of pdfPath to txtPath and grades the result.
func (c *PDFToText) Convert(ctx context.Context, pdfPath, txtPath string) (ports.ConvertResult, error) {
	if err := os.MkdirAll(filepath.Dir(txtPath), 0o755); err != nil {
		return ports.ConvertResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, "-enc", "UTF-8", pdfPath, txtPath)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(txtPath)
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return ports.ConvertResult{}, fmt.Errorf("pdftotext %s: %w: %s", filepath.Base(pdfPath), err, msg)
		}
		return ports.ConvertResult{}, fmt.Errorf("pdftotext %s: %w", filepath.Base(pdfPath), err)
	}

	text, err := os.ReadFile(txtPath)
	if err != nil {
		return ports.ConvertResult{}, fmt.Errorf("read converted text: %w", err)
	}
	return ports.ConvertResult{Garbage: IsGarbage(string(text))}, nil
}

var _ ports.Converter = (*PDFToText)(nil)
