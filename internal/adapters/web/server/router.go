package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Methods(http.MethodGet).Path("/certs").HandlerFunc(s.CertificateHandler.HandleList)
	api.Methods(http.MethodGet).Path("/certs/{digest}").HandlerFunc(s.CertificateHandler.HandleGet)
	api.Methods(http.MethodGet).Path("/certs/{digest}/graph").HandlerFunc(s.GraphHandler.HandleComponent)
	api.Methods(http.MethodGet).Path("/graph").HandlerFunc(s.GraphHandler.HandleGraph)
	api.Methods(http.MethodGet).Path("/summary").HandlerFunc(s.SummaryHandler.HandleSummary)
	api.Methods(http.MethodGet).Path("/export").HandlerFunc(s.ExportHandler.HandleExport)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
