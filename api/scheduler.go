/*
scheduler.go - Automated aggregate audit scheduler

PURPOSE:
  Periodically runs loan.Service.Audit so that loans whose stored
  amountRepaid or status drifted from their entries (for example after a
  partially persisted payment) are repaired without waiting for the next
  payment on that loan.

DESIGN:
  - robfig/cron drives the runs from a standard cron spec or @every
  - Runs never overlap; a run still in progress causes the next tick to be skipped
  - Every run is logged with lender, loan and repair counts

CONFIGURATION:
  - audit.enabled:  Whether the scheduler is started (default: false)
  - audit.schedule: Cron spec (default: "@every 1h")

USAGE:
  scheduler := NewAuditScheduler(svc, cfg.Audit.Schedule, log)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAudit endpoint (manual audit)
  - loan/service.go: Audit
*/
package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/loan-ledger/loan"
)

// AuditScheduler runs the aggregate audit on a cron schedule.
type AuditScheduler struct {
	Service  *loan.Service
	Schedule string
	Log      logrus.FieldLogger

	cron *cron.Cron
	mu   sync.Mutex
}

// NewAuditScheduler creates a new scheduler. It does nothing until Start.
func NewAuditScheduler(svc *loan.Service, schedule string, log logrus.FieldLogger) *AuditScheduler {
	if log == nil {
		log = svc.Log
	}
	return &AuditScheduler{Service: svc, Schedule: schedule, Log: log}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (as *AuditScheduler) Start() error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(as.Schedule, func() { as.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", as.Schedule, err)
	}
	c.Start()
	as.cron = c

	as.Log.WithField("schedule", as.Schedule).Info("audit scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running audit to finish.
func (as *AuditScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cron == nil {
		return
	}
	<-as.cron.Stop().Done()
	as.cron = nil
	as.Log.Info("audit scheduler stopped")
}

// RunOnce performs one audit pass and logs its outcome.
func (as *AuditScheduler) RunOnce(ctx context.Context) (loan.AuditReport, error) {
	rep, err := as.Service.Audit(ctx)
	entry := as.Log.WithFields(logrus.Fields{
		"lenders":  rep.Lenders,
		"loans":    rep.Loans,
		"repaired": len(rep.Repaired),
	})
	if err != nil {
		entry.WithError(err).Error("audit finished with errors")
		return rep, err
	}
	entry.Info("audit finished")
	return rep, nil
}
