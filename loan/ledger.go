/*
ledger.go - Repayment Ledger

PURPOSE:
  Given a loan and a payment against one of its schedule entries, derive
  the entry's new state, the loan's new aggregate amount repaid and the
  loan's new status. Pure: the caller persists the result (see saga.go).

RULES:
  1. tendered >= 0, else rejected with no mutation
  2. entry status = Paid if tendered >= expected, else Partial
     (a recorded 0 is Partial: recording itself leaves Pending)
  3. amountRepaid = sum of every entry's actual amount (unset = 0),
     recomputed from scratch so that any earlier drift heals
  4. loan status = Completed if amountRepaid >= total - 0.5, else Active
  5. Overdue is never stored; DisplayStatus derives it at read time

ENTRY STATE MACHINE:
  Pending -> Partial | Paid
  Partial -> Partial | Paid
  Paid    -> Partial | Paid   (the latest tendered amount wins)

LOAN STATE MACHINE:
  Active -> Completed. Completed stays Completed when a correction drops
  amountRepaid below the threshold unless ReopenCompleted is set.
  Rejected and Pending loans do not accept payments.
*/
package loan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loan-ledger/money"
)

// CompletionTolerance absorbs rounding drift when comparing the aggregate
// against the loan total, in currency units.
var CompletionTolerance = decimal.RequireFromString("0.5")

// =============================================================================
// LEDGER - Stateless derivation rules with two policy switches
// =============================================================================

type Ledger struct {
	// ReopenCompleted lets status re-derive Completed -> Active when a
	// correction reduces amountRepaid below the threshold.
	ReopenCompleted bool

	// CapOverpayment counts at most the expected amount of each entry
	// toward amountRepaid. Entry status is unaffected.
	CapOverpayment bool
}

// Result is the derived state after applying one payment.
type Result struct {
	Loan      Loan          // updated copy; the input is not modified
	Entry     ScheduleEntry // updated entry
	EntryUpd  EntryUpdate
	Aggregate AggregateUpdate
	Previous  Status // loan status before the payment
}

// Completed reports whether this payment moved the loan to Completed.
func (r Result) Completed() bool {
	return r.Previous != StatusCompleted && r.Aggregate.Status == StatusCompleted
}

// EntryStatusFor derives an entry's status from the latest tendered amount.
func EntryStatusFor(expected, tendered money.Money) EntryStatus {
	if tendered.GreaterThanOrEqual(expected) {
		return EntryPaid
	}
	return EntryPartial
}

// AmountRepaid sums the actual amounts across all entries.
func (l Ledger) AmountRepaid(ln Loan) money.Money {
	total := money.Zero(ln.Currency())
	for _, e := range ln.Schedule {
		a := e.Actual()
		if l.CapOverpayment {
			a = a.Min(e.Expected)
		}
		total = total.MustAdd(a)
	}
	return total
}

// IsFullyRepaid applies the completion threshold.
func IsFullyRepaid(repaid, total money.Money) bool {
	threshold := total.Amount.Sub(CompletionTolerance)
	return repaid.Amount.GreaterThanOrEqual(threshold)
}

// DeriveStatus projects the loan status from its aggregate.
func (l Ledger) DeriveStatus(current Status, repaid, total money.Money) Status {
	if !current.Repayable() {
		return current
	}
	if IsFullyRepaid(repaid, total) {
		return StatusCompleted
	}
	if current == StatusCompleted && !l.ReopenCompleted {
		return StatusCompleted
	}
	return StatusActive
}

// Apply records p against ln and returns the derived state.
func (l Ledger) Apply(ln Loan, p Payment) (Result, error) {
	if p.Tendered.IsNegative() {
		return Result{}, invalid("amount", "must not be negative, got %s", p.Tendered.Amount)
	}
	if p.Tendered.Currency != ln.Currency() {
		return Result{}, invalid("currency", "payment in %s against a %s loan", p.Tendered.Currency, ln.Currency())
	}
	if !ln.Status.Repayable() {
		return Result{}, fmt.Errorf("loan %s is %s: %w", ln.ID, ln.Status, ErrNotRepayable)
	}

	next := ln.Clone()
	idx := -1
	for i := range next.Schedule {
		if next.Schedule[i].ID == p.EntryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{}, ErrEntryNotFound
	}

	at := p.At.UTC()
	tendered := p.Tendered
	entry := &next.Schedule[idx]
	entry.Status = EntryStatusFor(entry.Expected, tendered)
	entry.ActualAmount = &tendered
	entry.PaidAt = &at
	entry.Note = p.Note

	next.AmountRepaid = l.AmountRepaid(next)
	next.Status = l.DeriveStatus(ln.Status, next.AmountRepaid, next.TotalRepayment)

	return Result{
		Loan:  next,
		Entry: *entry,
		EntryUpd: EntryUpdate{
			ActualAmount: tendered,
			PaidAt:       at,
			Status:       entry.Status,
			Note:         p.Note,
		},
		Aggregate: AggregateUpdate{AmountRepaid: next.AmountRepaid, Status: next.Status},
		Previous:  ln.Status,
	}, nil
}

// Reconcile recomputes the aggregate and status of ln from its entries.
// changed is true when the stored values disagreed.
func (l Ledger) Reconcile(ln Loan) (Loan, bool) {
	next := ln.Clone()
	next.AmountRepaid = l.AmountRepaid(ln)
	next.Status = l.DeriveStatus(ln.Status, next.AmountRepaid, ln.TotalRepayment)
	changed := !next.AmountRepaid.Equal(ln.AmountRepaid) || next.Status != ln.Status
	return next, changed
}

// =============================================================================
// PRESENTATION
// =============================================================================

// DisplayStatus returns Overdue for a Pending entry whose due date is before
// today; otherwise the stored status.
func DisplayStatus(e ScheduleEntry, today Date) EntryStatus {
	if e.Status == EntryPending && e.DueDate.Before(today) {
		return EntryOverdue
	}
	return e.Status
}

// Progress returns the repaid percentage, capped at 100.
func Progress(ln Loan) decimal.Decimal {
	if !ln.TotalRepayment.IsPositive() {
		return decimal.Zero
	}
	p := ln.AmountRepaid.Amount.Div(ln.TotalRepayment.Amount).Mul(hundred)
	return decimal.Min(p, hundred).Round(2)
}

// Remaining returns total minus repaid (negative when overpaid).
func Remaining(ln Loan) money.Money {
	return ln.TotalRepayment.MustSub(ln.AmountRepaid)
}

// Today returns the current UTC calendar day from clock.
func Today(clock func() time.Time) Date {
	return DateOf(clock().UTC())
}
