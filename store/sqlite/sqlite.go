/*
Package sqlite provides a SQL-backed implementation of loan.Store.

PURPOSE:
  Persists profiles, loans, schedule entries and the repayment log over
  database/sql. SQLite (mattn/go-sqlite3) is the default; the same schema
  and queries run on PostgreSQL (lib/pq) with placeholders rebound from
  ? to $n.

INTERFACES IMPLEMENTED:
  loan.Store:        Loans, schedule entries, repayment log
  loan.ProfileStore: Lender profiles

KEY TABLES:
  profiles:           One row per lender
  loans:              Loan terms and aggregate (amount_repaid, status);
                      lender_id references profiles(id)
  repayment_schedule: One row per installment
  repayment_logs:     Append-only record of each recorded payment

MONEY:
  Amounts are stored as decimal TEXT with the loan's currency code held
  once on the loan row. Never REAL.

ATOMICITY:
  CreateLoan inserts the loan and all of its entries in one transaction.
  The payment writes (UpdateScheduleEntry, AppendLedgerLog,
  UpdateLoanAggregate) are single statements; the caller sequences them
  (see loan/saga.go).

FOREIGN KEYS:
  A loan insert for a lender with no profile fails with a foreign key
  violation (sqlite extended code SQLITE_CONSTRAINT_FOREIGNKEY, postgres
  SQLSTATE 23503). It is reported as loan.ErrProfileMissing.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL the database
  handles concurrency control as well.

USAGE:
  store, err := sqlite.New("./data/loans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := loan.NewService(store)

MIGRATION:
  Schema is auto-migrated on Open(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - loan/store.go: Interface definitions
  - loan/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/loan-ledger/id"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/money"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements loan.Store over database/sql.
type Store struct {
	db     *sql.DB
	driver string
	mu     sync.RWMutex
}

var _ loan.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects with driver ("sqlite3" or "postgres") and migrates the
// schema. For sqlite3, dsn is a file path; for postgres, a connection
// string.
func Open(driver, dsn string) (*Store, error) {
	var db *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, sqliteDSN(dsn))
		if err == nil {
			// One connection keeps ":memory:" a single database.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, driver: driver}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// sqliteDSN appends the pragmas the store relies on to dsn, which may
// already carry its own query string.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_journal_mode=WAL"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS loans (
			id TEXT PRIMARY KEY,
			lender_id TEXT NOT NULL REFERENCES profiles(id),
			borrower_name TEXT NOT NULL,
			borrower_phone TEXT NOT NULL DEFAULT '',
			borrower_address TEXT NOT NULL DEFAULT '',
			purpose TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL,
			principal TEXT NOT NULL,
			interest_rate TEXT NOT NULL,
			interest_type TEXT NOT NULL,
			duration_value INTEGER NOT NULL,
			duration_unit TEXT NOT NULL,
			frequency TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			total_repayment TEXT NOT NULL,
			amount_repaid TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_lender_created
			ON loans(lender_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS repayment_schedule (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL REFERENCES loans(id),
			sequence INTEGER NOT NULL,
			due_date TEXT NOT NULL,
			expected_amount TEXT NOT NULL,
			actual_amount TEXT,
			status TEXT NOT NULL,
			paid_at TEXT,
			note TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_loan_due
			ON repayment_schedule(loan_id, due_date)`,

		`CREATE TABLE IF NOT EXISTS repayment_logs (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL REFERENCES loans(id),
			schedule_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			recorded_by TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_loan
			ON repayment_logs(loan_id, recorded_at)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LOANS (loan.Store interface)
// =============================================================================

const loanColumns = `id, lender_id, borrower_name, borrower_phone, borrower_address,
	purpose, notes, currency, principal, interest_rate, interest_type,
	duration_value, duration_unit, frequency, start_date, end_date,
	total_repayment, amount_repaid, status, created_at`

const entryColumns = `id, loan_id, sequence, due_date, expected_amount,
	actual_amount, status, paid_at, note`

// ListLoans returns the lender's loans, newest first, with their schedules.
func (s *Store) ListLoans(ctx context.Context, lender loan.LenderID) ([]loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT "+loanColumns+" FROM loans WHERE lender_id = ? ORDER BY created_at DESC, id DESC"),
		lender,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []loan.Loan
	index := make(map[loan.LoanID]int)
	for rows.Next() {
		ln, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		index[ln.ID] = len(loans)
		loans = append(loans, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}

	entries, err := s.queryEntries(ctx,
		"SELECT "+entryColumns+` FROM repayment_schedule
		 WHERE loan_id IN (SELECT id FROM loans WHERE lender_id = ?)
		 ORDER BY loan_id, due_date, sequence`,
		lender,
	)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		i, ok := index[e.entry.LoanID]
		if !ok {
			continue
		}
		entry, err := e.withCurrency(loans[i].Currency())
		if err != nil {
			return nil, err
		}
		loans[i].Schedule = append(loans[i].Schedule, entry)
	}
	return loans, nil
}

// GetLoan returns one loan with its schedule.
func (s *Store) GetLoan(ctx context.Context, lender loan.LenderID, lid loan.LoanID) (loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT "+loanColumns+" FROM loans WHERE id = ? AND lender_id = ?"),
		lid, lender,
	)
	ln, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return loan.Loan{}, fmt.Errorf("loan %s: %w", lid, loan.ErrLoanNotFound)
	}
	if err != nil {
		return loan.Loan{}, err
	}

	entries, err := s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM repayment_schedule WHERE loan_id = ? ORDER BY due_date, sequence",
		lid,
	)
	if err != nil {
		return loan.Loan{}, err
	}
	for _, e := range entries {
		entry, err := e.withCurrency(ln.Currency())
		if err != nil {
			return loan.Loan{}, err
		}
		ln.Schedule = append(ln.Schedule, entry)
	}
	return ln, nil
}

// CreateLoan inserts the loan row and every schedule row in one transaction.
func (s *Store) CreateLoan(ctx context.Context, ln loan.Loan) (loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := ln.Clone()
	if stored.ID == "" {
		stored.ID = loan.LoanID(id.New())
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	for i := range stored.Schedule {
		if stored.Schedule[i].ID == "" {
			stored.Schedule[i].ID = loan.EntryID(id.New())
		}
		stored.Schedule[i].LoanID = stored.ID
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			"INSERT INTO loans ("+loanColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
			stored.ID, stored.LenderID, stored.BorrowerName, stored.BorrowerPhone, stored.BorrowerAddress,
			stored.Purpose, stored.Notes, string(stored.Currency()),
			stored.Principal.Amount.String(), stored.RatePercent.String(), stored.InterestType,
			stored.DurationValue, string(stored.DurationUnit), string(stored.Frequency),
			stored.StartDate.String(), stored.EndDate.String(),
			stored.TotalRepayment.Amount.String(), stored.AmountRepaid.Amount.String(),
			string(stored.Status), formatTime(stored.CreatedAt),
		)
		if err != nil {
			if isForeignKeyError(err) {
				return fmt.Errorf("lender %s: %w", stored.LenderID, loan.ErrProfileMissing)
			}
			return fmt.Errorf("failed to insert loan: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.rebind(
			"INSERT INTO repayment_schedule ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"))
		if err != nil {
			return fmt.Errorf("failed to prepare schedule insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range stored.Schedule {
			_, err := stmt.ExecContext(ctx,
				e.ID, e.LoanID, e.Sequence, e.DueDate.String(), e.Expected.Amount.String(),
				nullAmount(e.ActualAmount), string(e.Status), nullTime(e.PaidAt), e.Note,
			)
			if err != nil {
				return fmt.Errorf("failed to insert schedule entry %d: %w", e.Sequence, err)
			}
		}
		return nil
	})
	if err != nil {
		return loan.Loan{}, err
	}
	return stored, nil
}

// UpdateScheduleEntry overwrites the mutable columns of one entry.
func (s *Store) UpdateScheduleEntry(ctx context.Context, eid loan.EntryID, upd loan.EntryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE repayment_schedule
		SET actual_amount = ?, status = ?, paid_at = ?, note = ?
		WHERE id = ?`),
		upd.ActualAmount.Amount.String(), string(upd.Status), formatTime(upd.PaidAt), upd.Note, eid,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule entry: %w", err)
	}
	return expectOne(res, fmt.Errorf("entry %s: %w", eid, loan.ErrEntryNotFound))
}

// AppendLedgerLog inserts one repayment log row. Append-only.
func (s *Store) AppendLedgerLog(ctx context.Context, rec loan.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = id.New()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO repayment_logs (id, loan_id, schedule_id, amount, recorded_by, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.LoanID, rec.EntryID, rec.Amount.Amount.String(), rec.RecordedBy, formatTime(rec.RecordedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("loan %s: %w", rec.LoanID, loan.ErrLoanNotFound)
		}
		return fmt.Errorf("failed to append ledger log: %w", err)
	}
	return nil
}

// UpdateLoanAggregate overwrites amount_repaid and status.
func (s *Store) UpdateLoanAggregate(ctx context.Context, lid loan.LoanID, upd loan.AggregateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(
		"UPDATE loans SET amount_repaid = ?, status = ? WHERE id = ?"),
		upd.AmountRepaid.Amount.String(), string(upd.Status), lid,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan aggregate: %w", err)
	}
	return expectOne(res, fmt.Errorf("loan %s: %w", lid, loan.ErrLoanNotFound))
}

// ListLedgerLog returns a loan's log rows, oldest first.
func (s *Store) ListLedgerLog(ctx context.Context, lid loan.LoanID) ([]loan.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var currency string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT currency FROM loans WHERE id = ?"), lid).Scan(&currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", lid, loan.ErrLoanNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, loan_id, schedule_id, amount, recorded_by, recorded_at
		FROM repayment_logs WHERE loan_id = ? ORDER BY recorded_at, id`),
		lid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger log: %w", err)
	}
	defer rows.Close()

	var out []loan.LogRecord
	for rows.Next() {
		var rec loan.LogRecord
		var amount, recordedAt string
		if err := rows.Scan(&rec.ID, &rec.LoanID, &rec.EntryID, &amount, &rec.RecordedBy, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger log: %w", err)
		}
		if rec.Amount, err = money.Parse(amount, money.Currency(currency)); err != nil {
			return nil, err
		}
		rec.RecordedAt = parseTime(recordedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// PROFILES (loan.ProfileStore interface)
// =============================================================================

// UpsertProfile inserts or updates a profile. created_at is kept on update.
func (s *Store) UpsertProfile(ctx context.Context, p loan.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO profiles (id, full_name, phone, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			phone = excluded.phone,
			role = excluded.role`),
		p.ID, p.FullName, p.Phone, p.Role, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by ID.
func (s *Store) GetProfile(ctx context.Context, lid loan.LenderID) (*loan.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p loan.Profile
	var createdAt string
	err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT id, full_name, phone, role, created_at FROM profiles WHERE id = ?"),
		lid,
	).Scan(&p.ID, &p.FullName, &p.Phone, &p.Role, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// ListProfiles returns all profiles ordered by id.
func (s *Store) ListProfiles(ctx context.Context) ([]loan.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, full_name, phone, role, created_at FROM profiles ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []loan.Profile
	for rows.Next() {
		var p loan.Profile
		var createdAt string
		if err := rows.Scan(&p.ID, &p.FullName, &p.Phone, &p.Role, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data. Used by tests and the dev CLI.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"repayment_logs", "repayment_schedule", "loans", "profiles"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (loan.Loan, error) {
	var (
		ln                                loan.Loan
		currency, principal, rate         string
		unit, freq, status                string
		startDate, endDate, total, repaid string
		createdAt                         string
	)
	err := row.Scan(
		&ln.ID, &ln.LenderID, &ln.BorrowerName, &ln.BorrowerPhone, &ln.BorrowerAddress,
		&ln.Purpose, &ln.Notes, &currency, &principal, &rate, &ln.InterestType,
		&ln.DurationValue, &unit, &freq, &startDate, &endDate,
		&total, &repaid, &status, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ln, err
		}
		return ln, fmt.Errorf("failed to scan loan: %w", err)
	}

	c := money.Currency(currency)
	if ln.Principal, err = money.Parse(principal, c); err != nil {
		return ln, err
	}
	if ln.RatePercent, err = decimal.NewFromString(rate); err != nil {
		return ln, fmt.Errorf("loan %s: interest rate: %w", ln.ID, err)
	}
	if ln.TotalRepayment, err = money.Parse(total, c); err != nil {
		return ln, err
	}
	if ln.AmountRepaid, err = money.Parse(repaid, c); err != nil {
		return ln, err
	}
	if ln.StartDate, err = loan.ParseDate(startDate); err != nil {
		return ln, err
	}
	if ln.EndDate, err = loan.ParseDate(endDate); err != nil {
		return ln, err
	}
	ln.DurationUnit = loan.DurationUnit(unit)
	ln.Frequency = loan.Frequency(freq)
	ln.Status = loan.Status(status)
	ln.CreatedAt = parseTime(createdAt)
	return ln, nil
}

// rawEntry holds amounts as text until the loan's currency is known.
type rawEntry struct {
	entry    loan.ScheduleEntry
	expected string
	actual   sql.NullString
}

func (r rawEntry) withCurrency(c money.Currency) (loan.ScheduleEntry, error) {
	e := r.entry
	var err error
	if e.Expected, err = money.Parse(r.expected, c); err != nil {
		return e, fmt.Errorf("entry %s: expected amount: %w", e.ID, err)
	}
	if r.actual.Valid {
		a, err := money.Parse(r.actual.String, c)
		if err != nil {
			return e, fmt.Errorf("entry %s: actual amount: %w", e.ID, err)
		}
		e.ActualAmount = &a
	}
	return e, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]rawEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var out []rawEntry
	for rows.Next() {
		var (
			r       rawEntry
			dueDate string
			status  string
			paidAt  sql.NullString
		)
		if err := rows.Scan(
			&r.entry.ID, &r.entry.LoanID, &r.entry.Sequence, &dueDate, &r.expected,
			&r.actual, &status, &paidAt, &r.entry.Note,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		if r.entry.DueDate, err = loan.ParseDate(dueDate); err != nil {
			return nil, err
		}
		r.entry.Status = loan.EntryStatus(status)
		if paidAt.Valid {
			t := parseTime(paidAt.String)
			r.entry.PaidAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullAmount(m *money.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.Amount.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// isForeignKeyError reports a foreign key violation from either driver.
func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23503"
	}
	return false
}
