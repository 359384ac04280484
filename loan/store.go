/*
store.go - Store Adapter boundary

PURPOSE:
  Defines the interface between the ledger engine and the persistent
  store. The engine calls these operations; it never implements them.
  Implementations: store/sqlite (sqlite3, postgres) and loan/store
  (in-memory, with fault injection for tests).

CONTRACT:
  ListLoans:           newest loan first; entries by due date ascending
  CreateLoan:          loan and all entries inserted atomically; returns
                       ErrProfileMissing if the lender has no profile
  UpdateScheduleEntry: overwrites status/actual/paidAt/note only
  AppendLedgerLog:     append-only; callers treat failures as best-effort
  UpdateLoanAggregate: overwrites amountRepaid/status only

  No locking or version checks. Two writers on one entry resolve
  last-write-wins.
*/
package loan

import "context"

// Store is the persistence boundary consumed by Service.
type Store interface {
	ListLoans(ctx context.Context, lender LenderID) ([]Loan, error)

	// GetLoan returns ErrLoanNotFound when the loan does not exist or
	// belongs to another lender.
	GetLoan(ctx context.Context, lender LenderID, id LoanID) (Loan, error)

	// CreateLoan persists ln (ID, entry IDs and CreatedAt are assigned by
	// the store) and returns the stored loan.
	CreateLoan(ctx context.Context, ln Loan) (Loan, error)

	UpdateScheduleEntry(ctx context.Context, id EntryID, upd EntryUpdate) error
	AppendLedgerLog(ctx context.Context, rec LogRecord) error
	UpdateLoanAggregate(ctx context.Context, id LoanID, upd AggregateUpdate) error

	// ListLedgerLog returns a loan's log records, oldest first.
	ListLedgerLog(ctx context.Context, id LoanID) ([]LogRecord, error)

	ProfileStore
}

// ProfileStore manages lender profiles.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p Profile) error

	// GetProfile returns (nil, nil) when no profile exists.
	GetProfile(ctx context.Context, id LenderID) (*Profile, error)

	ListProfiles(ctx context.Context) ([]Profile, error)
}
