/*
errors.go - Error taxonomy for the loan engine

ERROR CATEGORIES:
  1. Validation errors - rejected before any write, never partially applied
  2. First-step persistence errors - aborted, nothing committed
  3. Later-step persistence errors - recoverable inconsistency, resynced
     by a full re-read (see saga.go)
  4. Missing-dependency errors - lender profile absent on loan creation,
     healed once by provisioning

USAGE:
  if errors.Is(err, loan.ErrInconsistent) {
      // entry persisted, aggregate not; state was re-read
  }
*/
package loan

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of every input validation failure.
	ErrValidation = errors.New("validation failed")

	ErrLoanNotFound  = errors.New("loan not found")
	ErrEntryNotFound = errors.New("schedule entry not found")

	// ErrProfileMissing is returned by Store.CreateLoan when the lender has
	// no profile record (foreign key violation on the loans table).
	ErrProfileMissing = errors.New("lender profile missing")

	// ErrNotRepayable is returned when recording against a Rejected or
	// Pending loan.
	ErrNotRepayable = errors.New("loan does not accept payments")

	// ErrInconsistent marks a partially applied two-step write.
	ErrInconsistent = errors.New("persisted state inconsistent")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StepError wraps the failure of one saga step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// InconsistencyError is returned when a committed first step was followed
// by a failed later step. Resynced reports whether the compensating full
// re-read succeeded; when false the projection still holds the optimistic
// state and may be stale.
type InconsistencyError struct {
	LoanID    LoanID
	Step      string
	Err       error
	Resynced  bool
	ResyncErr error
}

func (e *InconsistencyError) Error() string {
	msg := fmt.Sprintf("loan %s: step %s failed after earlier steps committed: %v", e.LoanID, e.Step, e.Err)
	if !e.Resynced {
		msg += fmt.Sprintf(" (resync failed: %v)", e.ResyncErr)
	}
	return msg
}

func (e *InconsistencyError) Unwrap() []error { return []error{ErrInconsistent, e.Err} }

// ProvisionError is returned when loan creation fails again after the
// lender profile was auto-provisioned.
type ProvisionError struct {
	LenderID LenderID
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("create loan for lender %s after provisioning profile: %v", e.LenderID, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotRepayable)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound) || errors.Is(err, ErrEntryNotFound)
}

// IsRecoverable returns true for partial failures that were (or can be)
// reconciled by re-reading authoritative state.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInconsistent)
}
