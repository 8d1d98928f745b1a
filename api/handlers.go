/*
handlers.go - HTTP API handlers for the profit commission engine

PURPOSE:
  Exposes the true-up engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the
  calculator and store.

ENDPOINTS:
  Calculation:
    POST   /api/trueup        Run a true-up (dry run unless write=true)

  Read-only facts and audit trail:
    GET    /api/ledger        Ledger entries, newest first
    GET    /api/ibnr          IBNR snapshots for a UY
    GET    /api/splits        Resolved carrier splits for a UY as of a date
    GET    /api/cohorts       Underwriting year cohorts
    GET    /api/schemes       Registered commission scheme types

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (calculator, resolvers, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input (bad dates, missing fields)
  - 422: Domain failures (no premium, missing splits or scheme)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian/commission-engine/store/sqlite"
	"github.com/meridian/commission-engine/trueup"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Calc  *trueup.Calculator

	log zerolog.Logger
}

// NewHandler creates a new handler over the given store and calculator.
func NewHandler(store *sqlite.Store, calc *trueup.Calculator, log zerolog.Logger) *Handler {
	return &Handler{
		Store: store,
		Calc:  calc,
		log:   log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

// RunTrueUp executes a calculation run.
// POST /api/trueup
func (h *Handler) RunTrueUp(w http.ResponseWriter, r *http.Request) {
	var req TrueUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UnderwritingYear == 0 || req.DevelopmentMonth == 0 {
		writeError(w, http.StatusBadRequest, "underwriting_year and development_month are required", nil)
		return
	}

	asOf, err := trueup.ParseDate(req.AsOfDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of_date format (use YYYY-MM-DD)", err)
		return
	}
	cut := trueup.AsOf(asOf)
	if req.SystemAsOf != "" {
		sys, err := time.Parse(time.RFC3339, req.SystemAsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid system_as_of format (use RFC3339)", err)
			return
		}
		cut = cut.Replay(sys)
	}

	params := trueup.RunParams{
		UnderwritingYear: req.UnderwritingYear,
		DevelopmentMonth: req.DevelopmentMonth,
		Cutoff:           cut,
		CalcType:         trueup.CalcType(req.CalcType),
		WriteEnabled:     req.Write,
	}

	result, err := h.Calc.Run(r.Context(), params)
	if err != nil {
		if trueup.IsDomainError(err) {
			writeError(w, http.StatusUnprocessableEntity, "True-up failed", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "True-up failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// READ-ONLY ENDPOINTS
// =============================================================================

// GetLedger returns ledger entries, newest first.
// GET /api/ledger?uy=2023&limit=50
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	uy := queryInt(r, "uy", 0)
	limit := queryInt(r, "limit", 100)

	entries, err := h.Store.LedgerEntries(r.Context(), uy, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ledger entries", err)
		return
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetIBNR returns reserve snapshots for an underwriting year.
// GET /api/ibnr?uy=2023
func (h *Handler) GetIBNR(w http.ResponseWriter, r *http.Request) {
	uy := queryInt(r, "uy", 0)
	if uy == 0 {
		writeError(w, http.StatusBadRequest, "uy query parameter is required", nil)
		return
	}

	snaps, err := h.Store.ListIBNRSnapshots(r.Context(), uy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list IBNR snapshots", err)
		return
	}

	dtos := make([]IBNRSnapshotDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = toIBNRSnapshotDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSplits resolves carrier participation for a UY as of a date.
// GET /api/splits?uy=2023&as_of=2025-01-31
func (h *Handler) GetSplits(w http.ResponseWriter, r *http.Request) {
	uy := queryInt(r, "uy", 0)
	if uy == 0 {
		writeError(w, http.StatusBadRequest, "uy query parameter is required", nil)
		return
	}
	asOf, err := trueup.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	rows, err := h.Store.CarrierSplits(r.Context(), uy, trueup.AsOf(asOf))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load carrier splits", err)
		return
	}
	resolved, err := trueup.ResolveCarrierSplits(rows, uy, asOf)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Split resolution failed", err)
		return
	}

	dtos := make([]SplitDTO, len(resolved))
	for i, s := range resolved {
		dtos[i] = toSplitDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCohorts lists the underwriting year cohorts.
// GET /api/cohorts
func (h *Handler) GetCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.Store.ListCohorts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cohorts", err)
		return
	}

	dtos := make([]CohortDTO, len(cohorts))
	for i, c := range cohorts {
		dtos[i] = toCohortDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSchemes lists the registered commission scheme types.
// GET /api/schemes
func (h *Handler) GetSchemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"schemes": h.Calc.Registry.Types(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
