package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/graph"
)

// GraphHandler serves the reference graph projection.
type GraphHandler struct {
	Builder *graph.Builder
}

// NewGraphHandler creates a new GraphHandler
func NewGraphHandler(builder *graph.Builder) *GraphHandler {
	return &GraphHandler{Builder: builder}
}

// HandleGraph returns the whole graph
func (h *GraphHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Builder.BuildGraph())
}

// HandleComponent returns the connected component of one certificate
func (h *GraphHandler) HandleComponent(w http.ResponseWriter, r *http.Request) {
	dgst := mux.Vars(r)["digest"]
	if !domain.IsValidDigest(dgst) {
		writeError(w, http.StatusBadRequest, "invalid digest")
		return
	}

	g, err := h.Builder.Component(dgst)
	if errors.Is(err, domain.ErrCertificateNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}
