// Package api serves the ops endpoints of a running pipeline.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ReportSource exposes the reports of the current run.
type ReportSource interface {
	Reports() []Report
}

// Server wires the ops HTTP routes.
type Server struct {
	healthHandler  *HealthHandler
	reportsHandler *ReportsHandler
}

// NewServer creates a server. A nil source serves an empty report list.
func NewServer(source ReportSource) *Server {
	if source == nil {
		source = NewBoard()
	}
	return &Server{
		healthHandler:  NewHealthHandler(source),
		reportsHandler: NewReportsHandler(source),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/reports", MetricsMiddleware(s.reportsHandler.HandleList, "reports"))
	mux.HandleFunc("/reports/", MetricsMiddleware(s.reportsHandler.HandleGet, "report"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return false
	}
	return true
}

func trimID(path string) string {
	return strings.Trim(strings.TrimPrefix(path, "/reports/"), "/")
}
