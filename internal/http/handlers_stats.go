package http

import (
	"net/http"
	"strconv"
	"time"

	"finscope/internal/core"
)

type totalsResponse struct {
	Income       float64 `json:"income"`
	Expense      float64 `json:"expense"`
	Net          float64 `json:"net"`
	IncomeCount  int     `json:"income_count"`
	ExpenseCount int     `json:"expense_count"`
}

type monthlySeriesResponse struct {
	Labels   []string  `json:"labels"`
	Income   []float64 `json:"income"`
	Expense  []float64 `json:"expense"`
	ScaleMax float64   `json:"scale_max"`
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := s.txns.Totals(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, totalsResponse{
		Income:       totals.Income,
		Expense:      totals.Expense,
		Net:          totals.Net,
		IncomeCount:  totals.IncomeCount,
		ExpenseCount: totals.ExpenseCount,
	})
}

// handleMonthlySeries serves the chart buckets. Optional query parameters:
// months (window size, default 6) and ref (YYYY-MM reference month, default
// the current month).
func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	monthsBack := core.DefaultMonthsBack
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "months must be between 1 and 60"})
			return
		}
		monthsBack = n
	}

	ref := time.Now().UTC()
	if v := r.URL.Query().Get("ref"); v != "" {
		parsed, err := time.Parse("2006-01", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ref must be formatted YYYY-MM"})
			return
		}
		ref = parsed
	}

	series, err := s.txns.MonthlySeries(r.Context(), identity.ID, monthsBack, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, monthlySeriesResponse{
		Labels:   series.Labels,
		Income:   series.Income,
		Expense:  series.Expense,
		ScaleMax: series.ScaleMax,
	})
}
