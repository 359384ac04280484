/*
Package loan provides the amortization and repayment ledger engine.

PURPOSE:
  A lender records a principal, an interest rate and a term. The engine
  derives a fixed repayment schedule, then records actual payments against
  the schedule entries and keeps the loan's aggregate "amount repaid" and
  status consistent with the entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Terms:          principal, rate, duration, frequency, start date
  - Loan:           persisted loan record with derived totals
  - ScheduleEntry:  one installment (due date + expected amount)
  - Payment:        a tendered amount recorded against one entry
  - LogRecord:      append-only audit record of a recorded payment
  - Actor:          explicit identity threaded into every mutation

DESIGN PRINCIPLES:
  1. Derivation over storage: amountRepaid and statuses are recomputed
     from the entries on every mutation, never accumulated.
  2. Precision: money.Money (decimal) with explicit residual handling.
  3. Explicit identity: no ambient "current user".
  4. Consistency over availability: a failed write is resynchronized by
     a full re-read, never by patching local state.

SEE ALSO:
  - schedule.go: Schedule Generator
  - ledger.go:   Repayment Ledger (status derivation, aggregate)
  - saga.go:     Recovery Policy for the two-step write
  - service.go:  Orchestration over a Store
*/
package loan

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loan-ledger/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LenderID string
type LoanID string
type EntryID string

// Actor identifies who performs a ledger operation. LenderID scopes the
// data; ActorID is recorded on log records (usually the same person).
type Actor struct {
	LenderID LenderID
	ActorID  string
}

// RecordedBy returns the id stamped onto log records.
func (a Actor) RecordedBy() string {
	if a.ActorID != "" {
		return a.ActorID
	}
	return string(a.LenderID)
}

// =============================================================================
// ENUMERATIONS
// =============================================================================

type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusRejected  Status = "Rejected"
	StatusPending   Status = "Pending"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusRejected, StatusPending:
		return true
	}
	return false
}

// Repayable reports whether payments may be recorded in this status.
func (s Status) Repayable() bool { return s == StatusActive || s == StatusCompleted }

type EntryStatus string

const (
	EntryPending EntryStatus = "Pending"
	EntryPartial EntryStatus = "Partial"
	EntryPaid    EntryStatus = "Paid"

	// EntryOverdue is presentation only. It is never persisted; see DisplayStatus.
	EntryOverdue EntryStatus = "Overdue"
)

func (s EntryStatus) Valid() bool {
	switch s {
	case EntryPending, EntryPartial, EntryPaid:
		return true
	}
	return false
}

type Frequency string

const (
	Daily   Frequency = "Daily"
	Weekly  Frequency = "Weekly"
	Monthly Frequency = "Monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// PeriodDays is the approximate period length used for period counting.
func (f Frequency) PeriodDays() int {
	switch f {
	case Weekly:
		return 7
	case Monthly:
		return 30
	default:
		return 1
	}
}

type DurationUnit string

const (
	Days   DurationUnit = "Days"
	Months DurationUnit = "Months"
)

func (u DurationUnit) Valid() bool { return u == Days || u == Months }

// InterestSimple is the only interest type the engine computes.
const InterestSimple = "Simple"

// =============================================================================
// TERMS - Input to the Schedule Generator
// =============================================================================

type Terms struct {
	Principal     money.Money
	RatePercent   decimal.Decimal
	DurationValue int
	DurationUnit  DurationUnit
	Frequency     Frequency
	StartDate     Date
}

// =============================================================================
// LOAN
// =============================================================================

type Loan struct {
	ID       LoanID
	LenderID LenderID

	BorrowerName    string
	BorrowerPhone   string
	BorrowerAddress string
	Purpose         string
	Notes           string

	Terms
	InterestType   string
	EndDate        Date
	TotalRepayment money.Money
	AmountRepaid   money.Money
	Status         Status
	CreatedAt      time.Time

	Schedule []ScheduleEntry
}

// Currency is the loan's single currency; all of its amounts share it.
func (l Loan) Currency() money.Currency { return l.Principal.Currency }

// Entry returns the schedule entry with id, or false.
func (l Loan) Entry(id EntryID) (ScheduleEntry, bool) {
	for _, e := range l.Schedule {
		if e.ID == id {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}

// Clone returns a copy whose schedule can be mutated independently.
func (l Loan) Clone() Loan {
	c := l
	c.Schedule = make([]ScheduleEntry, len(l.Schedule))
	for i, e := range l.Schedule {
		c.Schedule[i] = e.clone()
	}
	return c
}

// =============================================================================
// SCHEDULE ENTRY
// =============================================================================

// ScheduleEntry is one installment. DueDate and Expected never change after
// creation; Status, ActualAmount, PaidAt and Note change only by recording a
// payment.
type ScheduleEntry struct {
	ID       EntryID
	LoanID   LoanID
	Sequence int // 1-based position in due-date order
	DueDate  Date
	Expected money.Money

	Status       EntryStatus
	ActualAmount *money.Money // nil until a payment is recorded
	PaidAt       *time.Time
	Note         string
}

// Actual returns the recorded amount, treating unset as zero.
func (e ScheduleEntry) Actual() money.Money {
	if e.ActualAmount == nil {
		return money.Zero(e.Expected.Currency)
	}
	return *e.ActualAmount
}

func (e ScheduleEntry) clone() ScheduleEntry {
	c := e
	if e.ActualAmount != nil {
		a := *e.ActualAmount
		c.ActualAmount = &a
	}
	if e.PaidAt != nil {
		p := *e.PaidAt
		c.PaidAt = &p
	}
	return c
}

// EntryUpdate is the mutable subset written by updateScheduleEntry.
type EntryUpdate struct {
	ActualAmount money.Money
	PaidAt       time.Time
	Status       EntryStatus
	Note         string
}

// AggregateUpdate is the subset written by updateLoanAggregate.
type AggregateUpdate struct {
	AmountRepaid money.Money
	Status       Status
}

// =============================================================================
// PAYMENT & LOG
// =============================================================================

// Payment is the ephemeral event recorded against one entry.
type Payment struct {
	LoanID   LoanID
	EntryID  EntryID
	Tendered money.Money
	Note     string
	At       time.Time
}

// LogRecord is the append-only audit trail of recorded payments.
type LogRecord struct {
	ID         string
	LoanID     LoanID
	EntryID    EntryID
	Amount     money.Money
	RecordedBy string
	RecordedAt time.Time
}

// =============================================================================
// PROFILE
// =============================================================================

type Profile struct {
	ID        LenderID
	FullName  string
	Phone     string
	Role      string
	CreatedAt time.Time
}

// RoleLender is the role assigned to auto-provisioned profiles.
const RoleLender = "lender"
