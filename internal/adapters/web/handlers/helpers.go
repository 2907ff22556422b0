// Package handlers implements the read-only HTTP API over the certificate dataset.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	dateLayout      = "2006-01-02"
)

var errBadQuery = errors.New("invalid query parameter")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseFilter builds a certificate filter from query parameters.
func parseFilter(r *http.Request) (*domain.CertificateFilter, error) {
	q := r.URL.Query()
	f := domain.NewCertificateFilter().
		WithKind(domain.Kind(q.Get("kind"))).
		WithStatus(domain.Status(q.Get("status"))).
		WithVendor(q.Get("vendor")).
		WithName(q.Get("name"))
	f.Category = q.Get("category")

	var err error
	if f.ValidAfter, err = parseDate(q.Get("valid_after")); err != nil {
		return nil, err
	}
	if f.ValidBefore, err = parseDate(q.Get("valid_before")); err != nil {
		return nil, err
	}
	if f.HasReferences, err = parseBool(q.Get("has_references")); err != nil {
		return nil, err
	}
	if f.HasCVEs, err = parseBool(q.Get("has_cves")); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errBadQuery
	}
	return t, nil
}

func parseBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, errBadQuery
	}
	return &b, nil
}

// parsePage reads limit and offset. Limit defaults to defaultPageSize and is capped at maxPageSize.
func parsePage(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errBadQuery
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errBadQuery
		}
	}
	return limit, offset, nil
}

// filtered returns the records of certs matching f, ordered by digest.
func filtered(certs map[string]*domain.Certificate, f *domain.CertificateFilter) []*domain.Certificate {
	var out []*domain.Certificate
	for _, dgst := range domain.SortedDigests(certs) {
		if c := certs[dgst]; f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}
