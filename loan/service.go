/*
service.go - Orchestration of the engine over a Store

OPERATIONS:
  PreviewSchedule  terms -> schedule, no persistence
  CreateLoan       validate, generate, persist; auto-provision the lender
                   profile once when the store reports it missing
  ListLoans        authoritative read; replaces the lender's projection
  RecordPayment    derive (ledger.go), apply optimistically (projection.go),
                   persist through the payment saga (saga.go)
  Resync           full re-read, the saga's compensating action
  Audit            recompute every aggregate from its entries and repair
                   the ones that drifted

IDENTITY:
  Every mutating call takes an explicit Actor. There is no ambient user.
*/
package loan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/loan-ledger/money"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store      Store
	Ledger     Ledger
	Projection *Projection
	Log        logrus.FieldLogger
	Clock      func() time.Time
}

type Option func(*Service)

func WithLedger(l Ledger) Option { return func(s *Service) { s.Ledger = l } }
func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.Log = l } }
func WithClock(c func() time.Time) Option { return func(s *Service) { s.Clock = c } }
func WithProjection(p *Projection) Option { return func(s *Service) { s.Projection = p } }

func NewService(st Store, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Service{
		Store:      st,
		Projection: NewProjection(),
		Log:        discard,
		Clock:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) today() Date { return Today(s.Clock) }

// =============================================================================
// LOAN CREATION
// =============================================================================

// NewLoan is the validated input for CreateLoan.
type NewLoan struct {
	BorrowerName    string
	BorrowerPhone   string
	BorrowerAddress string
	Purpose         string
	Notes           string
	Terms           Terms

	// ProfileName and ProfilePhone seed an auto-provisioned profile.
	ProfileName  string
	ProfilePhone string
}

// Validate checks the required loan fields.
func (n NewLoan) Validate() error {
	if strings.TrimSpace(n.BorrowerName) == "" {
		return invalid("borrower_name", "is required")
	}
	return ValidateTerms(n.Terms)
}

// PreviewSchedule validates t and returns its schedule without persisting.
func (s *Service) PreviewSchedule(t Terms) (Schedule, error) {
	if err := ValidateTerms(t); err != nil {
		return Schedule{}, err
	}
	return GenerateSchedule(t), nil
}

// CreateLoan generates the schedule for in and persists the loan.
func (s *Service) CreateLoan(ctx context.Context, actor Actor, in NewLoan) (Loan, error) {
	if actor.LenderID == "" {
		return Loan{}, invalid("lender_id", "is required")
	}
	if err := in.Validate(); err != nil {
		return Loan{}, err
	}

	sched := GenerateSchedule(in.Terms)
	ln := Loan{
		LenderID:        actor.LenderID,
		BorrowerName:    strings.TrimSpace(in.BorrowerName),
		BorrowerPhone:   in.BorrowerPhone,
		BorrowerAddress: in.BorrowerAddress,
		Purpose:         in.Purpose,
		Notes:           in.Notes,
		Terms:           in.Terms,
		InterestType:    InterestSimple,
		EndDate:         sched.EndDate,
		TotalRepayment:  sched.TotalRepayment,
		AmountRepaid:    money.Zero(in.Terms.Principal.Currency),
		Status:          StatusActive,
		CreatedAt:       s.Clock().UTC(),
		Schedule:        sched.Entries,
	}

	log := s.Log.WithField("lender_id", actor.LenderID)

	stored, err := s.Store.CreateLoan(ctx, ln)
	if errors.Is(err, ErrProfileMissing) {
		log.Warn("lender profile missing, provisioning before retry")
		if perr := s.provisionProfile(ctx, actor.LenderID, in); perr != nil {
			return Loan{}, &ProvisionError{LenderID: actor.LenderID, Err: perr}
		}
		stored, err = s.Store.CreateLoan(ctx, ln)
		if err != nil {
			return Loan{}, &ProvisionError{LenderID: actor.LenderID, Err: err}
		}
	}
	if err != nil {
		return Loan{}, fmt.Errorf("create loan: %w", err)
	}

	if s.Projection.Loaded(actor.LenderID) {
		s.Projection.Put(stored)
	}

	log.WithFields(logrus.Fields{
		"loan_id": stored.ID,
		"total":   stored.TotalRepayment.String(),
		"entries": len(stored.Schedule),
	}).Info("loan created")
	return stored, nil
}

func (s *Service) provisionProfile(ctx context.Context, lender LenderID, in NewLoan) error {
	name := in.ProfileName
	if name == "" {
		name = "Lender"
	}
	return s.Store.UpsertProfile(ctx, Profile{
		ID:        lender,
		FullName:  name,
		Phone:     in.ProfilePhone,
		Role:      RoleLender,
		CreatedAt: s.Clock().UTC(),
	})
}

// =============================================================================
// READS
// =============================================================================

// ListLoans reads the lender's loans from the store and refreshes the projection.
func (s *Service) ListLoans(ctx context.Context, lender LenderID) ([]Loan, error) {
	loans, err := s.Store.ListLoans(ctx, lender)
	if err != nil {
		return nil, fmt.Errorf("list loans for %s: %w", lender, err)
	}
	s.Projection.Replace(lender, loans)
	return loans, nil
}

// Loan returns one loan from the projection, loading it first if needed.
func (s *Service) Loan(ctx context.Context, lender LenderID, id LoanID) (Loan, error) {
	if err := s.ensureLoaded(ctx, lender); err != nil {
		return Loan{}, err
	}
	ln, ok := s.Projection.Loan(lender, id)
	if !ok {
		return Loan{}, fmt.Errorf("loan %s: %w", id, ErrLoanNotFound)
	}
	return ln, nil
}

// ProjectedLoans returns the lender's projection, loading it first if needed.
func (s *Service) ProjectedLoans(ctx context.Context, lender LenderID) ([]Loan, error) {
	if err := s.ensureLoaded(ctx, lender); err != nil {
		return nil, err
	}
	return s.Projection.Loans(lender), nil
}

// Summary computes per-currency portfolio figures for the lender.
func (s *Service) Summary(ctx context.Context, lender LenderID) (Summary, error) {
	loans, err := s.ProjectedLoans(ctx, lender)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(loans, s.today()), nil
}

// LedgerLog returns the audit records of a loan owned by the lender.
func (s *Service) LedgerLog(ctx context.Context, lender LenderID, id LoanID) ([]LogRecord, error) {
	if _, err := s.Store.GetLoan(ctx, lender, id); err != nil {
		return nil, err
	}
	return s.Store.ListLedgerLog(ctx, id)
}

func (s *Service) ensureLoaded(ctx context.Context, lender LenderID) error {
	if s.Projection.Loaded(lender) {
		return nil
	}
	_, err := s.ListLoans(ctx, lender)
	return err
}

// =============================================================================
// PROFILES
// =============================================================================

func (s *Service) UpsertProfile(ctx context.Context, p Profile) error {
	if p.ID == "" {
		return invalid("id", "is required")
	}
	if p.Role == "" {
		p.Role = RoleLender
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.Clock().UTC()
	}
	return s.Store.UpsertProfile(ctx, p)
}

func (s *Service) Profile(ctx context.Context, id LenderID) (*Profile, error) {
	return s.Store.GetProfile(ctx, id)
}

// =============================================================================
// RECORDING PAYMENTS
// =============================================================================

// PaymentInput is one recorded payment request.
type PaymentInput struct {
	LoanID  LoanID
	EntryID EntryID
	Amount  money.Money
	Note    string
}

// PaymentOutcome is what the caller shows after RecordPayment.
type PaymentOutcome struct {
	Loan      Loan          // projected loan after the operation
	Entry     ScheduleEntry // entry as derived by the ledger
	Completed bool          // this payment completed the loan
	Report    SagaReport
}

// RecordPayment records in against the lender's loan.
//
// On success the optimistic projection already matches the store. On a
// first-step failure the projection is restored and the error is a
// *StepError. On a later failure the projection is replaced by a full
// re-read and the error is an *InconsistencyError; the outcome then holds
// the re-read loan.
func (s *Service) RecordPayment(ctx context.Context, actor Actor, in PaymentInput) (PaymentOutcome, error) {
	log := s.Log.WithFields(logrus.Fields{
		"lender_id": actor.LenderID,
		"actor_id":  actor.RecordedBy(),
		"loan_id":   in.LoanID,
		"entry_id":  in.EntryID,
	})

	current, err := s.Loan(ctx, actor.LenderID, in.LoanID)
	if err != nil {
		return PaymentOutcome{}, err
	}

	at := s.Clock().UTC()
	res, err := s.Ledger.Apply(current, Payment{
		LoanID:   in.LoanID,
		EntryID:  in.EntryID,
		Tendered: in.Amount,
		Note:     in.Note,
		At:       at,
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	prev, _ := s.Projection.Put(res.Loan)

	saga := Saga{
		LoanID: in.LoanID,
		Steps:  PaymentSteps(s.Store, res, actor, at),
		Compensate: func(ctx context.Context) error {
			return s.Resync(ctx, actor.LenderID)
		},
		OnBestEffortFailure: func(step string, err error) {
			log.WithField("step", step).WithError(err).Warn("best-effort step failed")
		},
	}

	rep, err := saga.Run(ctx)
	out := PaymentOutcome{Loan: res.Loan, Entry: res.Entry, Completed: res.Completed(), Report: rep}
	if err != nil {
		var inc *InconsistencyError
		if errors.As(err, &inc) {
			log.WithField("step", inc.Step).WithError(err).Error("payment partially persisted")
			if ln, ok := s.Projection.Loan(actor.LenderID, in.LoanID); ok {
				out.Loan = ln
				out.Entry, _ = ln.Entry(in.EntryID)
			}
			out.Completed = false
			return out, err
		}
		s.Projection.Put(prev)
		log.WithError(err).Error("payment not persisted")
		return PaymentOutcome{Report: rep}, fmt.Errorf("record payment: %w", err)
	}

	entry := log.WithFields(logrus.Fields{
		"amount": res.EntryUpd.ActualAmount.String(),
		"status": res.Entry.Status,
		"repaid": res.Aggregate.AmountRepaid.String(),
	})
	if out.Completed {
		entry.Info("payment recorded, loan completed")
	} else {
		entry.Info("payment recorded")
	}
	return out, nil
}

// Resync replaces the lender's projection with a fresh read. Each loan's
// aggregate is recomputed from its entries; a stored aggregate that lags
// behind is rewritten, and if that write fails the projection still shows
// the recomputed value. On a read failure the projection keeps its last
// value.
func (s *Service) Resync(ctx context.Context, lender LenderID) error {
	log := s.Log.WithField("lender_id", lender)
	loans, err := s.Store.ListLoans(ctx, lender)
	if err != nil {
		log.WithError(err).Error("resync failed, projection may be stale")
		return fmt.Errorf("resync %s: %w", lender, err)
	}
	for i, ln := range loans {
		fixed, changed := s.Ledger.Reconcile(ln)
		if !changed {
			continue
		}
		loans[i] = fixed
		upd := AggregateUpdate{AmountRepaid: fixed.AmountRepaid, Status: fixed.Status}
		if err := s.Store.UpdateLoanAggregate(ctx, ln.ID, upd); err != nil {
			log.WithField("loan_id", ln.ID).WithError(err).Warn("aggregate repair failed during resync")
		}
	}
	s.Projection.Replace(lender, loans)
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditReport summarizes one Audit pass.
type AuditReport struct {
	Lenders  int
	Loans    int
	Repaired []LoanID
}

// Audit walks every lender's loans and rewrites aggregates that disagree
// with the sum of their entries. Errors for one lender do not stop the
// others; they are joined in the returned error.
func (s *Service) Audit(ctx context.Context) (AuditReport, error) {
	profiles, err := s.Store.ListProfiles(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit: list profiles: %w", err)
	}

	var rep AuditReport
	var errs []error
	for _, p := range profiles {
		rep.Lenders++
		loans, err := s.Store.ListLoans(ctx, p.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("audit %s: %w", p.ID, err))
			continue
		}
		repaired := false
		for _, ln := range loans {
			rep.Loans++
			fixed, changed := s.Ledger.Reconcile(ln)
			if !changed {
				continue
			}
			upd := AggregateUpdate{AmountRepaid: fixed.AmountRepaid, Status: fixed.Status}
			if err := s.Store.UpdateLoanAggregate(ctx, ln.ID, upd); err != nil {
				errs = append(errs, fmt.Errorf("audit %s/%s: %w", p.ID, ln.ID, err))
				continue
			}
			s.Log.WithFields(logrus.Fields{
				"lender_id": p.ID,
				"loan_id":   ln.ID,
				"was":       ln.AmountRepaid.String(),
				"now":       fixed.AmountRepaid.String(),
				"status":    fixed.Status,
			}).Warn("aggregate drift repaired")
			rep.Repaired = append(rep.Repaired, ln.ID)
			repaired = true
		}
		if repaired && s.Projection.Loaded(p.ID) {
			if err := s.Resync(ctx, p.ID); err != nil {
				errs = append(errs, fmt.Errorf("audit %s: %w", p.ID, err))
			}
		}
	}
	return rep, errors.Join(errs...)
}
