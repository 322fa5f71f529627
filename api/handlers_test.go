/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Costing run and re-cost endpoints
- Group balance / ledger queries
- Manual adjustment workflow
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/costing-engine/costing"
	"github.com/warp/costing-engine/costing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, costing.Store) {
	t.Helper()
	s := store.NewMemory()
	srv := httptest.NewServer(NewRouter(NewHandler(s)))
	t.Cleanup(srv.Close)
	return srv, s
}

func testKey() costing.GroupKey {
	return costing.GroupKey{CompanyID: 1, Account: "1101", CustodianID: 1, InstrumentID: 10}
}

func seedTx(t *testing.T, s costing.Store, day costing.Date, kind costing.MovementKind, qty, price string) int64 {
	t.Helper()
	id, err := s.InsertTransaction(context.Background(), costing.Transaction{
		Group:    testKey(),
		Date:     day,
		Kind:     kind,
		Quantity: decimal.RequireFromString(qty),
		Price:    decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return id
}

func march(day int) costing.Date {
	return costing.NewDate(2025, time.March, day)
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

// =============================================================================
// COSTING ENDPOINT TESTS
// =============================================================================

func TestRunCosting_Endpoint(t *testing.T) {
	// GIVEN: Two pending transactions
	// WHEN: POSTing /api/costing/run
	// THEN: The run report shows both costed in one complete group

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "100", "10")
	seedTx(t, s, march(2), costing.KindOutflow, "40", "0")

	resp := postJSON(t, srv, "/api/costing/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report RunReportDTO
	decodeJSON(t, resp, &report)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Costed)
	assert.Equal(t, 0, report.Flagged)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "complete", report.Groups[0].State)
	assert.Equal(t, testKey().String(), report.Groups[0].Key)
}

func TestListGroups_Endpoint(t *testing.T) {
	// GIVEN: A costed group
	// WHEN: GETting /api/costing/groups
	// THEN: Its key is listed

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "100", "10")
	postJSON(t, srv, "/api/costing/run", nil).Body.Close()

	resp, err := http.Get(srv.URL + "/api/costing/groups")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var groups []string
	decodeJSON(t, resp, &groups)
	assert.Equal(t, []string{testKey().String()}, groups)
}

func TestRecostGroup_Endpoint(t *testing.T) {
	// GIVEN: A costed group
	// WHEN: POSTing a re-cost for its URL-encoded key
	// THEN: The group replays to the same complete state

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "100", "10")
	seedTx(t, s, march(2), costing.KindOutflow, "40", "0")
	postJSON(t, srv, "/api/costing/run", nil).Body.Close()

	path := "/api/costing/groups/" + url.PathEscape(testKey().String()) + "/recost"
	resp := postJSON(t, srv, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report RunReportDTO
	decodeJSON(t, resp, &report)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "complete", report.Groups[0].State)
	assert.Equal(t, 2, report.Groups[0].Costed)
}

func TestRecostGroup_InvalidKey(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv, "/api/costing/groups/not-a-key/recost", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// GROUP QUERY TESTS
// =============================================================================

func TestGetRunningBalance_Endpoint(t *testing.T) {
	// GIVEN: A costed group with 60 units at cost 600
	// WHEN: GETting its running balance
	// THEN: Decimal fields arrive as exact strings

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "100", "10")
	seedTx(t, s, march(2), costing.KindOutflow, "40", "0")
	postJSON(t, srv, "/api/costing/run", nil).Body.Close()

	resp, err := http.Get(srv.URL + "/api/groups/" + url.PathEscape(testKey().String()) + "/balance")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto RunningBalanceDTO
	decodeJSON(t, resp, &dto)
	assert.Equal(t, "60", dto.Quantity)
	assert.Equal(t, "600", dto.TotalCost)
	assert.Equal(t, "10", dto.AverageCost)
}

func TestGetRunningBalance_UnknownGroup(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/groups/" + url.PathEscape("9|none|9|9") + "/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetLedger_Endpoint(t *testing.T) {
	// GIVEN: A costed group
	// WHEN: GETting its ledger with a date range
	// THEN: Only rows inside the range come back

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "100", "10")
	seedTx(t, s, march(5), costing.KindOutflow, "40", "0")
	postJSON(t, srv, "/api/costing/run", nil).Body.Close()

	u := srv.URL + "/api/groups/" + url.PathEscape(testKey().String()) + "/ledger?from=2025-03-05&to=2025-03-05"
	resp, err := http.Get(u)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []EntryDTO
	decodeJSON(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "outflow", entries[0].Kind)
	assert.Equal(t, "400", entries[0].TotalCost)
}

func TestGetDailyBalances_Endpoint(t *testing.T) {
	// GIVEN: Movements on day 1 and day 3
	// WHEN: GETting daily balances across the range
	// THEN: Day 2 carries forward

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "100", "10")
	seedTx(t, s, march(3), costing.KindOutflow, "40", "0")
	postJSON(t, srv, "/api/costing/run", nil).Body.Close()

	u := srv.URL + "/api/groups/" + url.PathEscape(testKey().String()) + "/daily?from=2025-03-01&to=2025-03-03"
	resp, err := http.Get(u)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var daily []DailyBalanceDTO
	decodeJSON(t, resp, &daily)
	require.Len(t, daily, 3)
	assert.Equal(t, "100", daily[1].Quantity, "day 2 carries day 1 forward")
	assert.Equal(t, "60", daily[2].Quantity)
}

func TestGetTraces_Endpoint(t *testing.T) {
	// GIVEN: An outflow costed across two lots
	// WHEN: GETting its traces
	// THEN: One trace per lot touched

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "50", "10")
	seedTx(t, s, march(2), costing.KindInflow, "50", "12")
	outflow := seedTx(t, s, march(3), costing.KindOutflow, "70", "0")
	postJSON(t, srv, "/api/costing/run", nil).Body.Close()

	resp, err := http.Get(srv.URL + "/api/transactions/" + strconv.FormatInt(outflow, 10) + "/traces")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var traces []TraceDTO
	decodeJSON(t, resp, &traces)
	require.Len(t, traces, 2)
	assert.Equal(t, "500", traces[0].CostConsumed)
	assert.Equal(t, "240", traces[1].CostConsumed)
}

// =============================================================================
// ADJUSTMENT WORKFLOW TESTS
// =============================================================================

func TestAdjustmentWorkflow(t *testing.T) {
	// GIVEN: An outflow flagged for insufficient balance
	// WHEN: Proposing, then creating the suggested adjustment, then re-running
	// THEN: The group completes on the second run

	srv, s := newTestServer(t)
	seedTx(t, s, march(1), costing.KindInflow, "10", "10")
	outflow := seedTx(t, s, march(2), costing.KindOutflow, "50", "0")
	postJSON(t, srv, "/api/costing/run", nil).Body.Close()

	resp := postJSON(t, srv, "/api/adjustments/propose", ProposeAdjustmentRequest{
		TransactionID: outflow,
		Kind:          "inflow",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var proposal AdjustmentProposalDTO
	decodeJSON(t, resp, &proposal)
	assert.Equal(t, "40", proposal.Quantity)
	assert.Equal(t, "10", proposal.Price)

	resp = postJSON(t, srv, "/api/adjustments", CreateAdjustmentRequest{
		TransactionID: outflow,
		Kind:          proposal.Kind,
		Quantity:      proposal.Quantity,
		Price:         proposal.Price,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created CreatedDTO
	decodeJSON(t, resp, &created)
	assert.NotZero(t, created.ID)

	resp = postJSON(t, srv, "/api/costing/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report RunReportDTO
	decodeJSON(t, resp, &report)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "complete", report.Groups[0].State)
}

func TestCreateAdjustment_Invalid(t *testing.T) {
	srv, s := newTestServer(t)
	ref := seedTx(t, s, march(1), costing.KindInflow, "10", "10")

	// Bad kind
	resp := postJSON(t, srv, "/api/adjustments", CreateAdjustmentRequest{
		TransactionID: ref, Kind: "sideways", Quantity: "1", Price: "1",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown reference transaction
	resp = postJSON(t, srv, "/api/adjustments", CreateAdjustmentRequest{
		TransactionID: 999, Kind: "inflow", Quantity: "1", Price: "1",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
