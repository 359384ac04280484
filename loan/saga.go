/*
saga.go - Recovery Policy for multi-step, non-transactional writes

PURPOSE:
  Recording a payment is an ordered sequence of writes against a store
  with no atomic guarantee:

    1. update_entry      schedule entry status/actual/paidAt/note
    2. append_log        audit record (best-effort)
    3. update_aggregate  loan amountRepaid/status

  Steps run strictly in sequence so each step can assume the previous
  one is final.

FAILURE POLICY:
  - A required step fails before anything committed: abort, return a
    StepError. Nothing is considered written.
  - A best-effort step fails: report through OnBestEffortFailure and
    continue. Never rolls back earlier steps.
  - A required step fails after an earlier step committed: run the
    compensating action (a full re-read that replaces the projection with
    authoritative state) and return an InconsistencyError. The step is
    not retried on its own.
*/
package loan

import (
	"context"
	"time"

	"github.com/warp/loan-ledger/id"
)

const (
	StepUpdateEntry     = "update_entry"
	StepAppendLog       = "append_log"
	StepUpdateAggregate = "update_aggregate"
)

// SagaStep is one ordered write.
type SagaStep struct {
	Name       string
	Run        func(ctx context.Context) error
	BestEffort bool
}

// Saga runs Steps in order and applies Compensate on a partial failure.
type Saga struct {
	LoanID     LoanID
	Steps      []SagaStep
	Compensate func(ctx context.Context) error

	// OnBestEffortFailure observes swallowed failures. Optional.
	OnBestEffortFailure func(step string, err error)
}

// SagaReport lists what ran.
type SagaReport struct {
	Committed   []string
	Skipped     []string // best-effort steps that failed
	Failed      string
	Compensated bool
}

// Run executes the saga. The report is valid on both success and failure.
func (s Saga) Run(ctx context.Context) (SagaReport, error) {
	var rep SagaReport
	for _, step := range s.Steps {
		err := step.Run(ctx)
		if err == nil {
			rep.Committed = append(rep.Committed, step.Name)
			continue
		}
		if step.BestEffort {
			rep.Skipped = append(rep.Skipped, step.Name)
			if s.OnBestEffortFailure != nil {
				s.OnBestEffortFailure(step.Name, err)
			}
			continue
		}

		rep.Failed = step.Name
		if len(rep.Committed) == 0 {
			return rep, &StepError{Step: step.Name, Err: err}
		}

		inc := &InconsistencyError{LoanID: s.LoanID, Step: step.Name, Err: err, Resynced: true}
		if s.Compensate != nil {
			if cerr := s.Compensate(ctx); cerr != nil {
				inc.Resynced = false
				inc.ResyncErr = cerr
			} else {
				rep.Compensated = true
			}
		} else {
			inc.Resynced = false
		}
		return rep, inc
	}
	return rep, nil
}

// PaymentSteps returns the three ordered writes for a derived payment.
func PaymentSteps(st Store, res Result, actor Actor, at time.Time) []SagaStep {
	loanID := res.Loan.ID
	return []SagaStep{
		{
			Name: StepUpdateEntry,
			Run: func(ctx context.Context) error {
				return st.UpdateScheduleEntry(ctx, res.Entry.ID, res.EntryUpd)
			},
		},
		{
			Name:       StepAppendLog,
			BestEffort: true,
			Run: func(ctx context.Context) error {
				return st.AppendLedgerLog(ctx, LogRecord{
					ID:         id.NewAt(at),
					LoanID:     loanID,
					EntryID:    res.Entry.ID,
					Amount:     res.EntryUpd.ActualAmount,
					RecordedBy: actor.RecordedBy(),
					RecordedAt: at,
				})
			},
		},
		{
			Name: StepUpdateAggregate,
			Run: func(ctx context.Context) error {
				return st.UpdateLoanAggregate(ctx, loanID, res.Aggregate)
			},
		},
	}
}
