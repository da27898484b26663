package api

import (
	"net/http"
	"slices"
	"sync"

	"github.com/okian/botscope/internal/domain/model"
)

// Report is the wire shape of a per-player report.
type Report = model.Report

// Board collects reports as a run produces them. Safe for concurrent use.
type Board struct {
	mu      sync.RWMutex
	reports []Report
}

// NewBoard returns an empty board.
func NewBoard() *Board { return &Board{} }

// Add appends r.
func (b *Board) Add(r Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports = append(b.reports, r)
}

// Reports returns a copy ordered by sequence number.
func (b *Board) Reports() []Report {
	b.mu.RLock()
	out := slices.Clone(b.reports)
	b.mu.RUnlock()
	slices.SortFunc(out, func(a, b Report) int { return a.Seq - b.Seq })
	return out
}

// ReportsHandler serves /reports and /reports/{player_id}.
type ReportsHandler struct {
	source ReportSource
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(source ReportSource) *ReportsHandler {
	return &ReportsHandler{source: source}
}

// HandleList handles GET /reports.
func (h *ReportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	reports := h.source.Reports()
	if reports == nil {
		reports = []Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleGet handles GET /reports/{player_id}. The latest report for the player wins.
func (h *ReportsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	id := trimID(r.URL.Path)
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing player id")
		return
	}
	reports := h.source.Reports()
	for i := len(reports) - 1; i >= 0; i-- {
		if reports[i].PlayerID == id {
			writeJSON(w, http.StatusOK, reports[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "no report for player "+id)
}
