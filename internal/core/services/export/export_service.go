// Package export writes certificate listings as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// ExportJSON writes certificates as a JSON array
func ExportJSON(w io.Writer, certs []domain.Certificate) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(certs)
}

// CSVHeader lists the exported columns in order.
var CSVHeader = []string{
	"Digest", "Kind", "Status", "Category", "Name", "Manufacturer", "Scheme",
	"SecurityLevel", "CertNumber", "NotValidBefore", "NotValidAfter",
	"ReportLink", "TargetLink", "Maintenance", "References", "RelatedCVEs",
	"Analyzed", "FileStatus",
}

// ExportCSV writes certificates as CSV with headers. Multi-valued cells are joined with ";".
func ExportCSV(w io.Writer, certs []domain.Certificate) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return err
	}

	for _, c := range certs {
		row := []string{
			c.Digest,
			string(c.Kind),
			string(c.Status),
			c.Category,
			c.Name,
			c.Manufacturer,
			c.Scheme,
			strings.Join(c.SecurityLevel, ";"),
			c.CertNumber,
			formatDate(c.NotValidBefore),
			formatDate(c.NotValidAfter),
			c.ReportLink,
			c.TargetLink,
			strconv.Itoa(len(c.Maintenance)),
			strings.Join(c.References, ";"),
			strings.Join(c.RelatedCVEs, ";"),
			strconv.FormatBool(c.State.Analyzed),
			strconv.FormatBool(c.State.FileStatus),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
