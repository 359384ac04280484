/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the loan domain model from the external API contract. Money is always
  rendered as a decimal string with its currency code alongside, never as
  a JSON float.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Loans:
    CreateLoanRequest (wraps factory.LoanDocument), LoanDTO, ScheduleEntryDTO

  Payments:
    RecordPaymentRequest, PaymentResponse

  Ledger log:
    LogRecordDTO

  Portfolio:
    SummaryDTO, CurrencySummaryDTO

  Profiles:
    ProfileDTO, UpsertProfileRequest

  Preview:
    ScheduleDTO (request is factory.TermsDocument)

  Audit:
    AuditResponse

VALIDATION:
  Validation is done by the factory and the loan service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/loan.go: LoanDocument and TermsDocument request bodies
*/
package api

import (
	"time"

	"github.com/warp/loan-ledger/factory"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/money"
)

// =============================================================================
// LOANS
// =============================================================================

// CreateLoanRequest is a loan document plus the optional profile details
// used if the lender has to be provisioned on first use.
type CreateLoanRequest struct {
	factory.LoanDocument
	ProfileName  string `json:"profile_name,omitempty"`
	ProfilePhone string `json:"profile_phone,omitempty"`
}

// ScheduleEntryDTO is one installment. Status is the display status, so a
// Pending entry past its due date is reported as Overdue.
type ScheduleEntryDTO struct {
	ID           string  `json:"id"`
	Sequence     int     `json:"sequence"`
	DueDate      string  `json:"due_date"`
	Expected     string  `json:"expected_amount"`
	Actual       *string `json:"actual_amount,omitempty"`
	Status       string  `json:"status"`
	StoredStatus string  `json:"stored_status"`
	PaidAt       string  `json:"paid_at,omitempty"`
	Note         string  `json:"note,omitempty"`
}

// LoanDTO represents a loan in API responses.
type LoanDTO struct {
	ID              string `json:"id"`
	LenderID        string `json:"lender_id"`
	BorrowerName    string `json:"borrower_name"`
	BorrowerPhone   string `json:"borrower_phone,omitempty"`
	BorrowerAddress string `json:"borrower_address,omitempty"`
	Purpose         string `json:"purpose,omitempty"`
	Notes           string `json:"notes,omitempty"`

	Currency       string `json:"currency"`
	Principal      string `json:"principal"`
	InterestRate   string `json:"interest_rate"`
	InterestType   string `json:"interest_type"`
	DurationValue  int    `json:"duration_value"`
	DurationUnit   string `json:"duration_unit"`
	Frequency      string `json:"frequency"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	TotalRepayment string `json:"total_repayment"`
	AmountRepaid   string `json:"amount_repaid"`
	Remaining      string `json:"remaining"`
	Progress       string `json:"progress_percent"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at,omitempty"`

	Schedule []ScheduleEntryDTO `json:"schedule,omitempty"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPaymentRequest is the body of a payment. Amount is a decimal in the
// loan's currency, written as a JSON number or a string.
type RecordPaymentRequest struct {
	Amount factory.Number `json:"amount"`
	Note   string `json:"note,omitempty"`
}

// PaymentResponse is returned for a recorded payment, and with status 409
// when the payment was only partially persisted.
type PaymentResponse struct {
	Loan      LoanDTO          `json:"loan"`
	Entry     ScheduleEntryDTO `json:"entry"`
	Completed bool             `json:"completed"`
	Skipped   []string         `json:"skipped_steps,omitempty"`
	Error     string           `json:"error,omitempty"`
	Details   string           `json:"details,omitempty"`
	Resynced  *bool            `json:"resynced,omitempty"`
}

// LogRecordDTO is one append-only repayment log record.
type LogRecordDTO struct {
	ID         string `json:"id"`
	LoanID     string `json:"loan_id"`
	EntryID    string `json:"entry_id"`
	Amount     string `json:"amount"`
	RecordedBy string `json:"recorded_by"`
	RecordedAt string `json:"recorded_at"`
}

// =============================================================================
// PORTFOLIO
// =============================================================================

type CurrencySummaryDTO struct {
	Currency         string `json:"currency"`
	TotalLent        string `json:"total_lent"`
	TotalRepaid      string `json:"total_repaid"`
	ExpectedInterest string `json:"expected_interest"`
	Outstanding      string `json:"outstanding"`
	ActiveCount      int    `json:"active_count"`
	CompletedCount   int    `json:"completed_count"`
}

type SummaryDTO struct {
	LoanCount      int                  `json:"loan_count"`
	OverdueEntries int                  `json:"overdue_entries"`
	ByCurrency     []CurrencySummaryDTO `json:"by_currency"`
}

// =============================================================================
// PROFILES, PREVIEW, AUDIT
// =============================================================================

type ProfileDTO struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

type UpsertProfileRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ScheduleDTO is a generated, unsaved schedule.
type ScheduleDTO struct {
	Currency       string             `json:"currency"`
	TotalRepayment string             `json:"total_repayment"`
	Installment    string             `json:"installment"`
	PeriodCount    int                `json:"period_count"`
	EndDate        string             `json:"end_date"`
	Entries        []ScheduleEntryDTO `json:"entries"`
}

type AuditResponse struct {
	Lenders  int      `json:"lenders"`
	Loans    int      `json:"loans"`
	Repaired []string `json:"repaired"`
	Error    string   `json:"error,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEntryDTO(e loan.ScheduleEntry, today loan.Date) ScheduleEntryDTO {
	dto := ScheduleEntryDTO{
		ID:           string(e.ID),
		Sequence:     e.Sequence,
		DueDate:      e.DueDate.String(),
		Expected:     amount(e.Expected),
		Status:       string(loan.DisplayStatus(e, today)),
		StoredStatus: string(e.Status),
		Note:         e.Note,
	}
	if e.ActualAmount != nil {
		s := amount(*e.ActualAmount)
		dto.Actual = &s
	}
	if e.PaidAt != nil {
		dto.PaidAt = e.PaidAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toLoanDTO(ln loan.Loan, today loan.Date, withSchedule bool) LoanDTO {
	dto := LoanDTO{
		ID:              string(ln.ID),
		LenderID:        string(ln.LenderID),
		BorrowerName:    ln.BorrowerName,
		BorrowerPhone:   ln.BorrowerPhone,
		BorrowerAddress: ln.BorrowerAddress,
		Purpose:         ln.Purpose,
		Notes:           ln.Notes,
		Currency:        ln.Currency().String(),
		Principal:       amount(ln.Principal),
		InterestRate:    ln.RatePercent.String(),
		InterestType:    ln.InterestType,
		DurationValue:   ln.DurationValue,
		DurationUnit:    string(ln.DurationUnit),
		Frequency:       string(ln.Frequency),
		StartDate:       ln.StartDate.String(),
		EndDate:         ln.EndDate.String(),
		TotalRepayment:  amount(ln.TotalRepayment),
		AmountRepaid:    amount(ln.AmountRepaid),
		Remaining:       amount(loan.Remaining(ln)),
		Progress:        loan.Progress(ln).StringFixed(2),
		Status:          string(ln.Status),
	}
	if !ln.CreatedAt.IsZero() {
		dto.CreatedAt = ln.CreatedAt.UTC().Format(time.RFC3339)
	}
	if withSchedule {
		dto.Schedule = make([]ScheduleEntryDTO, len(ln.Schedule))
		for i, e := range ln.Schedule {
			dto.Schedule[i] = toEntryDTO(e, today)
		}
	}
	return dto
}

func toLogDTO(r loan.LogRecord) LogRecordDTO {
	return LogRecordDTO{
		ID:         r.ID,
		LoanID:     string(r.LoanID),
		EntryID:    string(r.EntryID),
		Amount:     amount(r.Amount),
		RecordedBy: r.RecordedBy,
		RecordedAt: r.RecordedAt.UTC().Format(time.RFC3339),
	}
}

func toSummaryDTO(s loan.Summary) SummaryDTO {
	dto := SummaryDTO{
		LoanCount:      s.LoanCount,
		OverdueEntries: s.OverdueEntries,
		ByCurrency:     make([]CurrencySummaryDTO, len(s.ByCurrency)),
	}
	for i, c := range s.ByCurrency {
		dto.ByCurrency[i] = CurrencySummaryDTO{
			Currency:         c.Currency.String(),
			TotalLent:        amount(c.TotalLent),
			TotalRepaid:      amount(c.TotalRepaid),
			ExpectedInterest: amount(c.ExpectedInterest),
			Outstanding:      amount(c.Outstanding),
			ActiveCount:      c.ActiveCount,
			CompletedCount:   c.CompletedCount,
		}
	}
	return dto
}

func toProfileDTO(p loan.Profile) ProfileDTO {
	dto := ProfileDTO{
		ID:       string(p.ID),
		FullName: p.FullName,
		Phone:    p.Phone,
		Role:     p.Role,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toScheduleDTO(c money.Currency, s loan.Schedule, today loan.Date) ScheduleDTO {
	dto := ScheduleDTO{
		Currency:       c.String(),
		TotalRepayment: amount(s.TotalRepayment),
		Installment:    amount(s.Installment),
		PeriodCount:    s.PeriodCount,
		EndDate:        s.EndDate.String(),
		Entries:        make([]ScheduleEntryDTO, len(s.Entries)),
	}
	for i, e := range s.Entries {
		dto.Entries[i] = toEntryDTO(e, today)
	}
	return dto
}

// amount renders m at its currency's precision without the currency code.
func amount(m money.Money) string {
	return m.Amount.StringFixed(m.Currency.MinorUnits())
}
