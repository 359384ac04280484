/*
handlers.go - HTTP API handlers for the loan ledger

PURPOSE:
  Exposes the loan service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to loan.Service for every operation.

ENDPOINTS:
  Loans:
    GET    /api/lenders/{lenderID}/loans?q=       List loans (borrower filter)
    POST   /api/lenders/{lenderID}/loans          Create loan with schedule
    GET    /api/lenders/{lenderID}/loans/{loanID} Loan detail with schedule

  Payments:
    POST   /api/lenders/{lenderID}/loans/{loanID}/entries/{entryID}/payments
    GET    /api/lenders/{lenderID}/loans/{loanID}/logs   Repayment log

  Portfolio:
    GET    /api/lenders/{lenderID}/summary        Per-currency figures

  Profiles:
    GET    /api/lenders/{lenderID}/profile        Get lender profile
    PUT    /api/lenders/{lenderID}/profile        Create or update profile

  Tools:
    POST   /api/schedule/preview                  Generate without saving
    POST   /api/admin/audit                       Repair drifted aggregates

IDENTITY:
  The lender comes from the path. The acting user comes from the
  X-Actor-ID header and defaults to the lender id. It is stamped onto
  every repayment log record.

REQUEST FLOW:
  1. Parse HTTP request
  2. Build engine input (factory for loan documents)
  3. Call loan.Service
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, payments on non-repayable loans
  - 404: Loan, entry or profile not found
  - 409: Payment partially persisted; body carries the re-read loan
  - 500: Store and provisioning failures

SECURITY NOTE:
  No authentication. The lender id in the path is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - loan/service.go: Operations behind each endpoint
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/loan-ledger/factory"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/money"
)

// ActorHeader names the acting user for recorded payments.
const ActorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *loan.Service
	Log     logrus.FieldLogger
}

// NewHandler creates a handler over svc, logging through the service logger.
func NewHandler(svc *loan.Service) *Handler {
	return &Handler{Service: svc, Log: svc.Log}
}

func (h *Handler) today() loan.Date {
	return loan.Today(h.Service.Clock)
}

func lenderParam(r *http.Request) loan.LenderID {
	return loan.LenderID(chi.URLParam(r, "lenderID"))
}

func actorFrom(r *http.Request) loan.Actor {
	lender := lenderParam(r)
	id := strings.TrimSpace(r.Header.Get(ActorHeader))
	if id == "" {
		id = string(lender)
	}
	return loan.Actor{LenderID: lender, ActorID: id}
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns the lender's loans, newest first, read from the store.
// ?q= filters by borrower name.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Service.ListLoans(r.Context(), lenderParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to list loans", err)
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		loans = loan.FilterByBorrower(loans, q)
	}

	today := h.today()
	dtos := make([]LoanDTO, len(loans))
	for i, ln := range loans {
		dtos[i] = toLoanDTO(ln, today, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLoan generates a schedule from the posted loan document and saves
// the loan with its entries.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	today := h.today()
	in, err := req.NewLoan(today)
	if err != nil {
		h.writeServiceError(w, "Invalid loan", err)
		return
	}
	in.ProfileName = req.ProfileName
	in.ProfilePhone = req.ProfilePhone

	created, err := h.Service.CreateLoan(r.Context(), actorFrom(r), in)
	if err != nil {
		h.writeServiceError(w, "Failed to create loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(created, today, true))
}

// GetLoan returns one loan with its schedule. Entry statuses are display
// statuses, so Pending entries past due read as Overdue.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id := loan.LoanID(chi.URLParam(r, "loanID"))
	ln, err := h.Service.Loan(r.Context(), lenderParam(r), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(ln, h.today(), true))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records an amount against one schedule entry.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	loanID := loan.LoanID(chi.URLParam(r, "loanID"))
	entryID := loan.EntryID(chi.URLParam(r, "entryID"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// The amount is parsed in the loan's own currency.
	current, err := h.Service.Loan(r.Context(), actor.LenderID, loanID)
	if err != nil {
		h.writeServiceError(w, "Failed to record payment", err)
		return
	}
	d, err := req.Amount.Decimal("amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	amt := money.FromDecimal(d, current.Currency())

	out, err := h.Service.RecordPayment(r.Context(), actor, loan.PaymentInput{
		LoanID:  loanID,
		EntryID: entryID,
		Amount:  amt,
		Note:    req.Note,
	})

	var inc *loan.InconsistencyError
	if err != nil && !errors.As(err, &inc) {
		h.writeServiceError(w, "Failed to record payment", err)
		return
	}

	today := h.today()
	resp := PaymentResponse{
		Loan:      toLoanDTO(out.Loan, today, true),
		Entry:     toEntryDTO(out.Entry, today),
		Completed: out.Completed,
		Skipped:   out.Report.Skipped,
	}
	if inc != nil {
		resynced := inc.Resynced
		resp.Error = "Payment partially persisted"
		resp.Details = err.Error()
		resp.Resynced = &resynced
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLedgerLog returns the loan's repayment log, oldest first.
func (h *Handler) GetLedgerLog(w http.ResponseWriter, r *http.Request) {
	id := loan.LoanID(chi.URLParam(r, "loanID"))
	records, err := h.Service.LedgerLog(r.Context(), lenderParam(r), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get repayment log", err)
		return
	}

	dtos := make([]LogRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toLogDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PORTFOLIO & PROFILE HANDLERS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Summary(r.Context(), lenderParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Profile(r.Context(), lenderParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get profile", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Profile not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*p))
}

func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req UpsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lender := lenderParam(r)
	err := h.Service.UpsertProfile(r.Context(), loan.Profile{
		ID:       lender,
		FullName: strings.TrimSpace(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
		Role:     req.Role,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to save profile", err)
		return
	}

	p, err := h.Service.Profile(r.Context(), lender)
	if err != nil || p == nil {
		h.writeServiceError(w, "Failed to read saved profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*p))
}

// =============================================================================
// TOOLS
// =============================================================================

// PreviewSchedule generates a schedule from posted terms without saving it.
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var doc factory.TermsDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	today := h.today()
	terms, err := doc.Terms(today)
	if err != nil {
		h.writeServiceError(w, "Invalid terms", err)
		return
	}
	sched, err := h.Service.PreviewSchedule(terms)
	if err != nil {
		h.writeServiceError(w, "Invalid terms", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(terms.Principal.Currency, sched, today))
}

// RunAudit runs one aggregate audit pass over every lender.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Audit(r.Context())
	resp := AuditResponse{Lenders: rep.Lenders, Loans: rep.Loans, Repaired: make([]string, len(rep.Repaired))}
	for i, id := range rep.Repaired {
		resp.Repaired[i] = string(id)
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
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

// writeServiceError maps a loan service error onto an HTTP status.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var pe *loan.ProvisionError
	switch {
	case loan.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case loan.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case loan.IsRecoverable(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.As(err, &pe):
		h.Log.WithField("lender_id", pe.LenderID).WithError(err).Error("lender provisioning failed")
		writeError(w, http.StatusInternalServerError, "Lender profile could not be provisioned", err)
	default:
		h.Log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
