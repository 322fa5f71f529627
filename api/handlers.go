/*
handlers.go - HTTP API handlers for the costing engine

PURPOSE:
  Exposes the costing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Costing:
    POST   /api/costing/run                  Run a full costing pass
    GET    /api/costing/groups               List known costing groups
    POST   /api/costing/groups/{key}/recost  Rebuild one group from scratch

  Groups (key is the pipe-separated form, URL-encoded):
    GET    /api/groups/{key}/balance         Current running balance
    GET    /api/groups/{key}/daily           Daily balances in a date range
    GET    /api/groups/{key}/ledger          Kardex rows in a date range

  Traces:
    GET    /api/transactions/{id}/traces     Lot attribution for an outflow

  Adjustments:
    POST   /api/adjustments/propose          Propose a manual adjustment
    POST   /api/adjustments                  Create a manual adjustment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, insufficient balance
  - 404: Unknown group or transaction
  - 500: Internal errors

CONCURRENCY:
  Run and Recost rewrite derived state; runMu serializes them so that a
  scheduled run and an API-triggered run never interleave.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/costing-engine/costing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    costing.Store
	Engine   *costing.Engine
	Adjuster *costing.Adjuster

	// runMu serializes Run and Recost; both rewrite derived state.
	runMu sync.Mutex
}

// NewHandler creates a new handler with the given store.
func NewHandler(store costing.Store) *Handler {
	return &Handler{
		Store:    store,
		Engine:   costing.NewEngine(store),
		Adjuster: &costing.Adjuster{Store: store},
	}
}

// =============================================================================
// COSTING HANDLERS
// =============================================================================

// RunCosting performs a full costing pass over every pending transaction.
// POST /api/costing/run
func (h *Handler) RunCosting(w http.ResponseWriter, r *http.Request) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	report, err := h.Engine.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Costing run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReportDTO(report))
}

// ListGroups returns the distinct group keys present in the ledger.
// GET /api/costing/groups
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Store.ListGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list groups", err)
		return
	}

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	writeJSON(w, http.StatusOK, out)
}

// RecostGroup deletes one group's derived state and replays it.
// POST /api/costing/groups/{key}/recost
func (h *Handler) RecostGroup(w http.ResponseWriter, r *http.Request) {
	key, ok := groupKeyParam(w, r)
	if !ok {
		return
	}

	h.runMu.Lock()
	defer h.runMu.Unlock()

	report, err := h.Engine.Recost(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Re-cost failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReportDTO(report))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetRunningBalance returns the current position of one group.
// GET /api/groups/{key}/balance
func (h *Handler) GetRunningBalance(w http.ResponseWriter, r *http.Request) {
	key, ok := groupKeyParam(w, r)
	if !ok {
		return
	}

	balance, err := h.Store.RunningBalance(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}
	if balance == nil {
		writeError(w, http.StatusNotFound, "No balance for group", costing.ErrGroupNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toRunningBalanceDTO(balance))
}

// GetDailyBalances returns the per-day closing positions of one group.
// GET /api/groups/{key}/daily?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetDailyBalances(w http.ResponseWriter, r *http.Request) {
	key, ok := groupKeyParam(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRangeParams(w, r)
	if !ok {
		return
	}

	balances, err := h.Store.DailyInRange(r.Context(), key, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get daily balances", err)
		return
	}

	dtos := make([]DailyBalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toDailyBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLedger returns the kardex rows of one group in a date range.
// GET /api/groups/{key}/ledger?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	key, ok := groupKeyParam(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRangeParams(w, r)
	if !ok {
		return
	}

	entries, err := h.Store.EntriesInRange(r.Context(), key, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get ledger", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRACE HANDLERS
// =============================================================================

// GetTraces returns the lot attribution rows for an outflow transaction.
// GET /api/transactions/{id}/traces
func (h *Handler) GetTraces(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	traces, err := h.Store.TracesByOutflow(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get traces", err)
		return
	}

	dtos := make([]TraceDTO, len(traces))
	for i, t := range traces {
		dtos[i] = toTraceDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// ProposeAdjustment computes the default adjustment for a flagged
// transaction without persisting anything.
// POST /api/adjustments/propose
func (h *Handler) ProposeAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ProposeAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind, ok := parseAdjustmentKind(w, req.Kind)
	if !ok {
		return
	}

	proposal, err := h.Adjuster.Propose(r.Context(), req.TransactionID, kind)
	if err != nil {
		writeDomainError(w, "Failed to propose adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalDTO(proposal))
}

// CreateAdjustment persists a manual adjustment transaction. The new
// transaction is picked up by the next costing run.
// POST /api/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind, ok := parseAdjustmentKind(w, req.Kind)
	if !ok {
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	id, err := h.Adjuster.Create(r.Context(), req.TransactionID, kind, quantity, price)
	if err != nil {
		writeDomainError(w, "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}

// =============================================================================
// PARAMETER PARSING
// =============================================================================

// groupKeyParam extracts and parses the {key} URL parameter. The key
// contains pipe characters, so clients URL-encode it.
func groupKeyParam(w http.ResponseWriter, r *http.Request) (costing.GroupKey, bool) {
	raw := chi.URLParam(r, "key")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}

	key, err := costing.ParseGroupKey(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group key", err)
		return costing.GroupKey{}, false
	}
	return key, true
}

// dateRangeParams parses the from/to query parameters, defaulting to an
// open range when absent.
func dateRangeParams(w http.ResponseWriter, r *http.Request) (costing.Date, costing.Date, bool) {
	from := costing.NewDate(1, 1, 1)
	to := costing.NewDate(9999, 12, 31)

	if s := r.URL.Query().Get("from"); s != "" {
		d, err := costing.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return from, to, false
		}
		from = d
	}
	if s := r.URL.Query().Get("to"); s != "" {
		d, err := costing.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return from, to, false
		}
		to = d
	}
	return from, to, true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func parseAdjustmentKind(w http.ResponseWriter, s string) (costing.AdjustmentKind, bool) {
	switch costing.AdjustmentKind(s) {
	case costing.AdjustInflow, costing.AdjustOutflow:
		return costing.AdjustmentKind(s), true
	default:
		writeError(w, http.StatusBadRequest, "Invalid kind (use inflow or outflow)", nil)
		return "", false
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

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

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, costing.ErrGroupNotFound):
		status = http.StatusNotFound
	case costing.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
