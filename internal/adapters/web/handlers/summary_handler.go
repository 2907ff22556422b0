package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// SummaryHandler reports dataset progress.
type SummaryHandler struct {
	Dataset ports.DatasetReader
}

// NewSummaryHandler creates a new SummaryHandler
func NewSummaryHandler(dataset ports.DatasetReader) *SummaryHandler {
	return &SummaryHandler{Dataset: dataset}
}

// SummaryResponse combines stage flags, record counts and the last run summary.
type SummaryResponse struct {
	Records  int                   `json:"records"`
	ByStatus map[domain.Status]int `json:"by_status"`
	ByKind   map[domain.Kind]int   `json:"by_kind"`
	State    domain.DatasetState   `json:"state"`
	LastRun  domain.RunSummary     `json:"last_run"`
}

// HandleSummary returns the dataset summary
func (h *SummaryHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	certs := h.Dataset.Snapshot()
	resp := SummaryResponse{
		Records:  len(certs),
		ByStatus: make(map[domain.Status]int),
		ByKind:   make(map[domain.Kind]int),
		State:    h.Dataset.State(),
		LastRun:  h.Dataset.Summary(),
	}
	for _, c := range certs {
		resp.ByStatus[c.Status]++
		resp.ByKind[c.Kind]++
	}
	writeJSON(w, http.StatusOK, resp)
}
