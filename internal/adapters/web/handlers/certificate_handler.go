package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// CertificateHandler serves certificate records.
type CertificateHandler struct {
	Dataset ports.DatasetReader
}

// NewCertificateHandler creates a new CertificateHandler
func NewCertificateHandler(dataset ports.DatasetReader) *CertificateHandler {
	return &CertificateHandler{Dataset: dataset}
}

// CertificateItem is the list view of a record.
type CertificateItem struct {
	Digest         string        `json:"dgst"`
	Kind           domain.Kind   `json:"kind"`
	Status         domain.Status `json:"status"`
	Category       string        `json:"category"`
	Name           string        `json:"name"`
	Manufacturer   string        `json:"manufacturer,omitempty"`
	CertNumber     string        `json:"cert_number,omitempty"`
	NotValidBefore *time.Time    `json:"not_valid_before,omitempty"`
	References     int           `json:"references"`
	RelatedCVEs    int           `json:"related_cves"`
	FileStatus     bool          `json:"file_status"`
}

// CertificatePage is one page of a filtered listing.
type CertificatePage struct {
	Total  int               `json:"total"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
	Items  []CertificateItem `json:"items"`
}

func itemOf(c *domain.Certificate) CertificateItem {
	item := CertificateItem{
		Digest:       c.Digest,
		Kind:         c.Kind,
		Status:       c.Status,
		Category:     c.Category,
		Name:         c.Name,
		Manufacturer: c.Manufacturer,
		CertNumber:   c.CertNumber,
		References:   len(c.References),
		RelatedCVEs:  len(c.RelatedCVEs),
		FileStatus:   c.State.FileStatus,
	}
	if from, ok := c.ValidFrom(); ok {
		item.NotValidBefore = &from
	}
	return item
}

// HandleList returns a filtered, paginated listing
func (h *CertificateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit or offset")
		return
	}

	matches := filtered(h.Dataset.Snapshot(), filter)
	page := CertificatePage{Total: len(matches), Offset: offset, Limit: limit, Items: []CertificateItem{}}
	for i := offset; i < len(matches) && i < offset+limit; i++ {
		page.Items = append(page.Items, itemOf(matches[i]))
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGet returns one full record
func (h *CertificateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	dgst := mux.Vars(r)["digest"]
	if !domain.IsValidDigest(dgst) {
		writeError(w, http.StatusBadRequest, "invalid digest")
		return
	}

	cert, err := h.Dataset.Get(dgst)
	if errors.Is(err, domain.ErrCertificateNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cert)
}
