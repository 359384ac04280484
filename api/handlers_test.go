/*
handlers_test.go - Tests for API handlers

Tests for:
- Loan creation, listing and detail (display statuses)
- Payment recording, including the 409 partial-persistence reply
- Error status mapping
- Profile, summary, preview and audit endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/loan/store"
	"github.com/warp/loan-ledger/money"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

const scenarioA = `{
	"borrower_name": "Sokha",
	"principal": 100,
	"interest_rate": 5,
	"duration_value": 30,
	"duration_unit": "Days",
	"frequency": "Daily",
	"start_date": "2023-12-29"
}`

type testServer struct {
	router http.Handler
	svc    *loan.Service
	mem    *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	svc := loan.NewService(mem,
		loan.WithClock(func() time.Time { return now }),
		loan.WithLogger(log),
	)
	return &testServer{router: NewRouter(NewHandler(svc), []string{"*"}), svc: svc, mem: mem}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createLoan(t *testing.T, lender, body string) LoanDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/lenders/"+lender+"/loans", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[LoanDTO](t, rec)
}

func paymentPath(lender string, ln LoanDTO, entry int) string {
	return "/api/lenders/" + lender + "/loans/" + ln.ID + "/entries/" + ln.Schedule[entry].ID + "/payments"
}

// =============================================================================
// LOANS
// =============================================================================

func TestCreateLoan_ReturnsScheduleAndProvisionsProfile(t *testing.T) {
	// GIVEN: A lender with no profile
	ts := newTestServer(t)

	// WHEN: A loan is posted
	ln := ts.createLoan(t, "lender-1", `{"profile_name": "Vanna", `+scenarioA[1:])

	// THEN: The loan and its schedule come back with money as strings
	assert.NotEmpty(t, ln.ID)
	assert.Equal(t, "USD", ln.Currency)
	assert.Equal(t, "105.00", ln.TotalRepayment)
	assert.Equal(t, "0.00", ln.AmountRepaid)
	assert.Equal(t, "105.00", ln.Remaining)
	assert.Equal(t, "Active", ln.Status)
	assert.Equal(t, "Simple", ln.InterestType)
	require.Len(t, ln.Schedule, 30)
	assert.Equal(t, "3.50", ln.Schedule[0].Expected)
	assert.Equal(t, "2023-12-30", ln.Schedule[0].DueDate)

	// AND: The lender profile was provisioned with the supplied name
	rec := ts.do(t, http.MethodGet, "/api/lenders/lender-1/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Vanna", decode[ProfileDTO](t, rec).FullName)
}

func TestCreateLoan_ValidationIs400(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/lenders/lender-1/loans",
		`{"borrower_name": "", "principal": 100, "interest_rate": 5, "duration_value": 30, "duration_unit": "Days", "frequency": "Daily"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Contains(t, body.Details, "borrower_name")

	rec = ts.do(t, http.MethodPost, "/api/lenders/lender-1/loans", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, ts.mem.Calls(store.OpCreateLoan), "nothing written")
}

func TestGetLoan_DisplaysOverdueEntries(t *testing.T) {
	// GIVEN: A loan started 2023-12-29, viewed on 2024-01-02
	ts := newTestServer(t)
	created := ts.createLoan(t, "lender-1", scenarioA)

	rec := ts.do(t, http.MethodGet, "/api/lenders/lender-1/loans/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	ln := decode[LoanDTO](t, rec)

	// THEN: Entries due before today read as Overdue; stored status is unchanged
	overdue := 0
	for _, e := range ln.Schedule {
		if e.Status == "Overdue" {
			overdue++
			assert.Equal(t, "Pending", e.StoredStatus)
		}
	}
	assert.Equal(t, 3, overdue)
	assert.Equal(t, "Pending", ln.Schedule[3].Status, "due today is not overdue")
}

func TestGetLoan_NotFoundAndOtherLender(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createLoan(t, "lender-1", scenarioA)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/lenders/lender-1/loans/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/lenders/lender-2/loans/"+created.ID, "").Code)
}

func TestListLoans_FilterByBorrower(t *testing.T) {
	ts := newTestServer(t)
	ts.createLoan(t, "lender-1", scenarioA)
	ts.createLoan(t, "lender-1", `{"borrower_name": "Dara", "currency": "KHR", "principal": 400000, "interest_rate": 10, "duration_value": 3, "duration_unit": "Months", "frequency": "Monthly"}`)

	rec := ts.do(t, http.MethodGet, "/api/lenders/lender-1/loans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]LoanDTO](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "Dara", all[0].BorrowerName, "newest first")
	assert.Empty(t, all[0].Schedule, "list omits schedules")

	rec = ts.do(t, http.MethodGet, "/api/lenders/lender-1/loans?q=sok", "")
	filtered := decode[[]LoanDTO](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Sokha", filtered[0].BorrowerName)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_Success(t *testing.T) {
	// GIVEN: A fresh scenario A loan
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)

	// WHEN: The first installment is paid by a named actor
	rec := ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 0), `{"amount": "3.50", "note": "cash"}`, ActorHeader, "clerk-7")

	// THEN: The entry is Paid and the aggregate reflects it
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PaymentResponse](t, rec)
	assert.Equal(t, "Paid", resp.Entry.Status)
	require.NotNil(t, resp.Entry.Actual)
	assert.Equal(t, "3.50", *resp.Entry.Actual)
	assert.Equal(t, "3.50", resp.Loan.AmountRepaid)
	assert.Equal(t, "Active", resp.Loan.Status)
	assert.False(t, resp.Completed)

	// AND: The log records the actor
	rec = ts.do(t, http.MethodGet, "/api/lenders/lender-1/loans/"+ln.ID+"/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]LogRecordDTO](t, rec)
	require.Len(t, logs, 1)
	assert.Equal(t, "clerk-7", logs[0].RecordedBy)
	assert.Equal(t, "3.50", logs[0].Amount)
}

func TestRecordPayment_ActorDefaultsToLender(t *testing.T) {
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)

	rec := ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 0), `{"amount": "1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Partial", decode[PaymentResponse](t, rec).Entry.Status)

	logs, err := ts.mem.ListLedgerLog(context.Background(), loan.LoanID(ln.ID))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "lender-1", logs[0].RecordedBy)
}

func TestRecordPayment_AmountAsJSONNumber(t *testing.T) {
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)

	rec := ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 0), `{"amount": 3.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PaymentResponse](t, rec)
	require.NotNil(t, resp.Entry.Actual)
	assert.Equal(t, "3.50", *resp.Entry.Actual)
	assert.Equal(t, "Paid", resp.Entry.Status)

	rec = ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 1), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing amount")
}

func TestRecordPayment_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad amount", paymentPath("lender-1", ln, 0), `{"amount": "lots"}`, http.StatusBadRequest},
		{"negative amount", paymentPath("lender-1", ln, 0), `{"amount": "-1"}`, http.StatusBadRequest},
		{"bad body", paymentPath("lender-1", ln, 0), `[`, http.StatusBadRequest},
		{"unknown loan", "/api/lenders/lender-1/loans/nope/entries/x/payments", `{"amount": "1"}`, http.StatusNotFound},
		{"unknown entry", "/api/lenders/lender-1/loans/" + ln.ID + "/entries/nope/payments", `{"amount": "1"}`, http.StatusNotFound},
		{"other lender", paymentPath("lender-2", ln, 0), `{"amount": "1"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ts.do(t, http.MethodPost, tc.path, tc.body).Code)
		})
	}
	assert.Zero(t, ts.mem.Calls(store.OpUpdateScheduleEntry), "no rejected payment reached the store")
}

func TestRecordPayment_PartialPersistenceIs409(t *testing.T) {
	// GIVEN: The aggregate update will fail once
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)
	ts.mem.FailNext(store.OpUpdateLoanAggregate, 1, errors.New("connection reset"))

	// WHEN: A payment is recorded
	rec := ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 0), `{"amount": "3.50"}`)

	// THEN: 409 with the re-read loan, whose aggregate was recomputed
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	resp := decode[PaymentResponse](t, rec)
	assert.Equal(t, "Payment partially persisted", resp.Error)
	require.NotNil(t, resp.Resynced)
	assert.True(t, *resp.Resynced)
	assert.Equal(t, "3.50", resp.Loan.AmountRepaid)
	assert.Equal(t, "Paid", resp.Entry.Status)
	assert.False(t, resp.Completed)
}

func TestRecordPayment_FirstStepFailureIs500(t *testing.T) {
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)
	ts.mem.FailOn(store.OpUpdateScheduleEntry, errors.New("disk full"))

	rec := ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 0), `{"amount": "3.50"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The projection was rolled back
	rec = ts.do(t, http.MethodGet, "/api/lenders/lender-1/loans/"+ln.ID, "")
	assert.Equal(t, "0.00", decode[LoanDTO](t, rec).AmountRepaid)
}

// =============================================================================
// PORTFOLIO, PROFILE, TOOLS
// =============================================================================

func TestSummary_PerCurrency(t *testing.T) {
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)
	ts.createLoan(t, "lender-1", `{"borrower_name": "Dara", "currency": "KHR", "principal": 400000, "interest_rate": 10, "duration_value": 3, "duration_unit": "Months", "frequency": "Monthly", "start_date": "2024-01-01"}`)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 0), `{"amount": "3.50"}`).Code)

	rec := ts.do(t, http.MethodGet, "/api/lenders/lender-1/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[SummaryDTO](t, rec)

	assert.Equal(t, 2, s.LoanCount)
	assert.Equal(t, 2, s.OverdueEntries, "12-31 and 01-01 of scenario A")
	require.Len(t, s.ByCurrency, 2)
	assert.Equal(t, "KHR", s.ByCurrency[0].Currency)
	assert.Equal(t, "400000.00", s.ByCurrency[0].TotalLent)
	assert.Equal(t, "USD", s.ByCurrency[1].Currency)
	assert.Equal(t, "3.50", s.ByCurrency[1].TotalRepaid)
	assert.Equal(t, "101.50", s.ByCurrency[1].Outstanding)
}

func TestProfile_UpsertAndGet(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/lenders/lender-9/profile", "").Code)

	rec := ts.do(t, http.MethodPut, "/api/lenders/lender-9/profile", `{"full_name": " Chantha ", "phone": "012"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[ProfileDTO](t, rec)
	assert.Equal(t, "lender-9", p.ID)
	assert.Equal(t, "Chantha", p.FullName)
	assert.Equal(t, loan.RoleLender, p.Role)

	rec = ts.do(t, http.MethodGet, "/api/lenders/lender-9/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "012", decode[ProfileDTO](t, rec).Phone)
}

func TestPreviewSchedule(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/schedule/preview",
		`{"principal": "1000", "interest_rate": 10, "duration_value": 3, "duration_unit": "months", "frequency": "monthly", "start_date": "2024-01-15"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decode[ScheduleDTO](t, rec)

	assert.Equal(t, "1100.00", s.TotalRepayment)
	assert.Equal(t, "366.66", s.Installment)
	require.Len(t, s.Entries, 3)
	assert.Equal(t, "366.68", s.Entries[2].Expected)
	assert.Equal(t, "2024-04-15", s.EndDate)
	assert.Zero(t, ts.mem.Calls(store.OpCreateLoan), "preview never persists")

	rec = ts.do(t, http.MethodPost, "/api/schedule/preview", `{"principal": 0, "interest_rate": 5, "duration_value": 1, "duration_unit": "Days", "frequency": "Daily"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAudit_RepairsDrift(t *testing.T) {
	ts := newTestServer(t)
	ln := ts.createLoan(t, "lender-1", scenarioA)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, paymentPath("lender-1", ln, 0), `{"amount": "3.50"}`).Code)
	ts.mem.Corrupt(loan.LoanID(ln.ID), loan.AggregateUpdate{AmountRepaid: money.Zero(money.USD), Status: loan.StatusActive})

	rec := ts.do(t, http.MethodPost, "/api/admin/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AuditResponse](t, rec)
	assert.Equal(t, 1, resp.Lenders)
	assert.Equal(t, []string{ln.ID}, resp.Repaired)

	stored, err := ts.mem.GetLoan(context.Background(), "lender-1", loan.LoanID(ln.ID))
	require.NoError(t, err)
	assert.True(t, stored.AmountRepaid.Equal(money.New("3.50", money.USD)))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
