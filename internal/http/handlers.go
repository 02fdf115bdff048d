package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"inventario/internal/core"
	"inventario/internal/export"
	"inventario/internal/ledger"
	"inventario/internal/rain"
	"inventario/internal/report"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var draft core.TransactionDraft
	if !readJSON(w, r, &draft) {
		return
	}

	tx, err := s.deps.Store.Create(r.Context(), draft)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")

	var transactions []core.Transaction
	if month != "" {
		transactions = s.deps.Store.ListByMonth(month)
	} else {
		transactions = s.deps.Store.All()
	}
	if r.URL.Query().Get("sort") == "recent" {
		transactions = report.SortByDateDesc(transactions)
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) handlePatchTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch core.TransactionPatch
	if !readJSON(w, r, &patch) {
		return
	}

	s.deps.Store.Update(r.Context(), id, patch)
	tx, ok := s.deps.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	s.deps.Store.Delete(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Store.AvailableMonths())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if _, _, err := core.MonthKeyParts(month); err != nil {
		writeError(w, http.StatusBadRequest, "invalid month key, want YYYY-MM")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Store.SummaryForMonth(month))
}

func parseCategory(w http.ResponseWriter, r *http.Request) (ledger.SuggestionCategory, bool) {
	category := ledger.SuggestionCategory(r.PathValue("category"))
	if !category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown suggestion category")
		return "", false
	}
	return category, true
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Suggestions.List(category))
}

func (s *Server) handleRemoveSuggestion(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(w, r)
	if !ok {
		return
	}
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing value parameter")
		return
	}
	s.deps.Suggestions.Remove(r.Context(), category, value)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year := r.PathValue("year")
	if len(year) != 4 {
		writeError(w, http.StatusBadRequest, "invalid year, want YYYY")
		return
	}
	writeJSON(w, http.StatusOK, report.MonthlyBreakdown(s.deps.Store.All(), year))
}

func (s *Server) handleYearlyStats(w http.ResponseWriter, r *http.Request) {
	currentYear := time.Now().Format("2006")
	writeJSON(w, http.StatusOK, report.YearlyBreakdown(s.deps.Store.All(), currentYear))
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !core.ValidISODate(date) {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	rate := s.deps.Rates.RateForDate(r.Context(), date)
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "rate": rate})
}

func (s *Server) handlePurgeRates(w http.ResponseWriter, r *http.Request) {
	s.deps.Rates.PurgeCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRainfall(w http.ResponseWriter, r *http.Request) {
	entries := s.deps.Rain.All()
	if year := r.URL.Query().Get("year"); year != "" {
		totals := rain.MonthlyTotals(entries, year)
		writeJSON(w, http.StatusOK, map[string]any{"year": year, "monthlyTotals": totals})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type rainfallRequest struct {
	Date string  `json:"date"`
	MM   float64 `json:"mm"`
}

func (s *Server) handleUpsertRainfall(w http.ResponseWriter, r *http.Request) {
	var req rainfallRequest
	if !readJSON(w, r, &req) {
		return
	}
	entry, err := s.deps.Rain.Upsert(r.Context(), req.Date, req.MM)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDate) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteRainfall(w http.ResponseWriter, r *http.Request) {
	s.deps.Rain.Delete(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := export.Workbook(s.deps.Store.All())
	if err != nil {
		slog.ErrorContext(r.Context(), "Workbook build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="inventario.xlsx"`)
	if err := export.WriteWorkbook(f, w); err != nil {
		slog.ErrorContext(r.Context(), "Workbook write failed", "error", err)
	}
}

func (s *Server) handleExportRainfall(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	if year == "" {
		year = time.Now().Format("2006")
	}

	f, err := export.RainWorkbook(s.deps.Rain.All(), year)
	if err != nil {
		slog.ErrorContext(r.Context(), "Rainfall workbook build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="precipitaciones_%s.xlsx"`, year))
	if err := export.WriteWorkbook(f, w); err != nil {
		slog.ErrorContext(r.Context(), "Rainfall workbook write failed", "error", err)
	}
}

func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deps.Backups.Export(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Backup export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="inventario_backup.json"`)
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if err := s.deps.Backups.ImportJSON(r.Context(), raw); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
