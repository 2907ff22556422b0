package handlers

import (
	"log"
	"net/http"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
	"github.com/lcalzada-xor/certmap/internal/core/services/export"
)

// ExportHandler handles data export
type ExportHandler struct {
	Dataset ports.DatasetReader
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(dataset ports.DatasetReader) *ExportHandler {
	return &ExportHandler{Dataset: dataset}
}

// HandleExport exports the filtered records as JSON (default) or CSV
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches := filtered(h.Dataset.Snapshot(), filter)
	certs := make([]domain.Certificate, len(matches))
	for i, c := range matches {
		certs[i] = *c
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=certmap_certificates.csv")
		if err := export.ExportCSV(w, certs); err != nil {
			log.Printf("[API] CSV export error: %v", err)
		}
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=certmap_certificates.json")
		if err := export.ExportJSON(w, certs); err != nil {
			log.Printf("[API] JSON export error: %v", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported format")
	}
}
