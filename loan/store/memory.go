// Package store provides in-memory loan.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/loan-ledger/id"
	"github.com/warp/loan-ledger/loan"
)

// Operation names accepted by FailOn.
const (
	OpListLoans           = "list_loans"
	OpGetLoan             = "get_loan"
	OpCreateLoan          = "create_loan"
	OpUpdateScheduleEntry = "update_schedule_entry"
	OpAppendLedgerLog     = "append_ledger_log"
	OpUpdateLoanAggregate = "update_loan_aggregate"
	OpListLedgerLog       = "list_ledger_log"
	OpUpsertProfile       = "upsert_profile"
	OpGetProfile          = "get_profile"
	OpListProfiles        = "list_profiles"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	loans    map[loan.LoanID]*loan.Loan
	order    []loan.LoanID // insertion order, oldest first
	entries  map[loan.EntryID]loan.LoanID
	logs     map[loan.LoanID][]loan.LogRecord
	profiles map[loan.LenderID]loan.Profile
	faults   map[string]fault
	calls    map[string]int

	// RequireProfile makes CreateLoan fail with loan.ErrProfileMissing when
	// the lender has no profile, like a foreign key would.
	RequireProfile bool
}

type fault struct {
	err       error
	remaining int // <0 means every call
}

func NewMemory() *Memory {
	return &Memory{
		loans:          make(map[loan.LoanID]*loan.Loan),
		entries:        make(map[loan.EntryID]loan.LoanID),
		logs:           make(map[loan.LoanID][]loan.LogRecord),
		profiles:       make(map[loan.LenderID]loan.Profile),
		faults:         make(map[string]fault),
		calls:          make(map[string]int),
		RequireProfile: true,
	}
}

var _ loan.Store = (*Memory)(nil)

// =============================================================================
// FAULT INJECTION
// =============================================================================

// FailOn makes every call to op return err until Heal is called.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = fault{err: err, remaining: -1}
}

// FailNext makes the next n calls to op return err.
func (m *Memory) FailNext(op string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = fault{err: err, remaining: n}
}

// Heal removes the fault on op.
func (m *Memory) Heal(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.faults, op)
}

// Calls returns how many times op was invoked, failed calls included.
func (m *Memory) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// enter counts the call and returns the injected error, if any.
// Caller holds mu.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	f, ok := m.faults[op]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(m.faults, op)
		} else {
			m.faults[op] = f
		}
	}
	return f.err
}

// =============================================================================
// LOANS
// =============================================================================

func (m *Memory) ListLoans(_ context.Context, lender loan.LenderID) ([]loan.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpListLoans); err != nil {
		return nil, err
	}

	var out []loan.Loan
	for i := len(m.order) - 1; i >= 0; i-- {
		ln := m.loans[m.order[i]]
		if ln.LenderID == lender {
			out = append(out, ln.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetLoan(_ context.Context, lender loan.LenderID, lid loan.LoanID) (loan.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetLoan); err != nil {
		return loan.Loan{}, err
	}
	ln, ok := m.loans[lid]
	if !ok || ln.LenderID != lender {
		return loan.Loan{}, fmt.Errorf("loan %s: %w", lid, loan.ErrLoanNotFound)
	}
	return ln.Clone(), nil
}

// CreateLoan stores ln and its entries together.
func (m *Memory) CreateLoan(_ context.Context, ln loan.Loan) (loan.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCreateLoan); err != nil {
		return loan.Loan{}, err
	}
	if _, ok := m.profiles[ln.LenderID]; m.RequireProfile && !ok {
		return loan.Loan{}, fmt.Errorf("lender %s: %w", ln.LenderID, loan.ErrProfileMissing)
	}

	stored := ln.Clone()
	if stored.ID == "" {
		stored.ID = loan.LoanID(id.New())
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	for i := range stored.Schedule {
		e := &stored.Schedule[i]
		if e.ID == "" {
			e.ID = loan.EntryID(id.New())
		}
		e.LoanID = stored.ID
	}
	sort.SliceStable(stored.Schedule, func(i, j int) bool {
		return stored.Schedule[i].DueDate.Before(stored.Schedule[j].DueDate)
	})

	m.loans[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	for _, e := range stored.Schedule {
		m.entries[e.ID] = stored.ID
	}
	return stored.Clone(), nil
}

func (m *Memory) UpdateScheduleEntry(_ context.Context, eid loan.EntryID, upd loan.EntryUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpUpdateScheduleEntry); err != nil {
		return err
	}
	lid, ok := m.entries[eid]
	if !ok {
		return fmt.Errorf("entry %s: %w", eid, loan.ErrEntryNotFound)
	}
	ln := m.loans[lid]
	for i := range ln.Schedule {
		e := &ln.Schedule[i]
		if e.ID != eid {
			continue
		}
		amt := upd.ActualAmount
		at := upd.PaidAt
		e.ActualAmount = &amt
		e.PaidAt = &at
		e.Status = upd.Status
		e.Note = upd.Note
		return nil
	}
	return fmt.Errorf("entry %s: %w", eid, loan.ErrEntryNotFound)
}

func (m *Memory) AppendLedgerLog(_ context.Context, rec loan.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpAppendLedgerLog); err != nil {
		return err
	}
	if _, ok := m.loans[rec.LoanID]; !ok {
		return fmt.Errorf("loan %s: %w", rec.LoanID, loan.ErrLoanNotFound)
	}
	m.logs[rec.LoanID] = append(m.logs[rec.LoanID], rec)
	return nil
}

func (m *Memory) UpdateLoanAggregate(_ context.Context, lid loan.LoanID, upd loan.AggregateUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpUpdateLoanAggregate); err != nil {
		return err
	}
	ln, ok := m.loans[lid]
	if !ok {
		return fmt.Errorf("loan %s: %w", lid, loan.ErrLoanNotFound)
	}
	ln.AmountRepaid = upd.AmountRepaid
	ln.Status = upd.Status
	return nil
}

func (m *Memory) ListLedgerLog(_ context.Context, lid loan.LoanID) ([]loan.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpListLedgerLog); err != nil {
		return nil, err
	}
	return append([]loan.LogRecord(nil), m.logs[lid]...), nil
}

// =============================================================================
// PROFILES
// =============================================================================

func (m *Memory) UpsertProfile(_ context.Context, p loan.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpUpsertProfile); err != nil {
		return err
	}
	if prev, ok := m.profiles[p.ID]; ok && p.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *Memory) GetProfile(_ context.Context, lid loan.LenderID) (*loan.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetProfile); err != nil {
		return nil, err
	}
	p, ok := m.profiles[lid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProfiles(_ context.Context) ([]loan.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpListProfiles); err != nil {
		return nil, err
	}
	out := make([]loan.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// TEST HELPERS
// =============================================================================

// Corrupt overwrites a loan's aggregate without touching its entries.
func (m *Memory) Corrupt(lid loan.LoanID, upd loan.AggregateUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ln, ok := m.loans[lid]; ok {
		ln.AmountRepaid = upd.AmountRepaid
		ln.Status = upd.Status
	}
}
