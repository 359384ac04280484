package loan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-ledger/loan"
)

func step(name string, err error, ran *[]string) loan.SagaStep {
	return loan.SagaStep{
		Name: name,
		Run: func(context.Context) error {
			*ran = append(*ran, name)
			return err
		},
	}
}

func TestSaga_AllStepsCommit(t *testing.T) {
	var ran []string
	s := loan.Saga{LoanID: "loan-1", Steps: []loan.SagaStep{
		step("a", nil, &ran), step("b", nil, &ran), step("c", nil, &ran),
	}}

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	assert.Equal(t, []string{"a", "b", "c"}, rep.Committed)
	assert.Empty(t, rep.Failed)
}

func TestSaga_FirstStepFailureAborts(t *testing.T) {
	// GIVEN: The first step fails
	// THEN: Later steps never run, no compensation, StepError returned

	var ran []string
	compensated := false
	boom := errors.New("boom")
	s := loan.Saga{
		Steps:      []loan.SagaStep{step("a", boom, &ran), step("b", nil, &ran)},
		Compensate: func(context.Context) error {
			compensated = true
			return nil
		},
	}

	rep, err := s.Run(context.Background())

	var se *loan.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "a", se.Step)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, loan.ErrInconsistent))
	assert.Equal(t, []string{"a"}, ran)
	assert.False(t, compensated)
	assert.Equal(t, "a", rep.Failed)
}

func TestSaga_BestEffortFailureContinues(t *testing.T) {
	var ran []string
	var observed string
	logStep := step("log", errors.New("log down"), &ran)
	logStep.BestEffort = true
	s := loan.Saga{
		Steps:               []loan.SagaStep{step("a", nil, &ran), logStep, step("c", nil, &ran)},
		OnBestEffortFailure: func(name string, err error) { observed = name },
	}

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "log", "c"}, ran)
	assert.Equal(t, []string{"a", "c"}, rep.Committed)
	assert.Equal(t, []string{"log"}, rep.Skipped)
	assert.Equal(t, "log", observed)
}

func TestSaga_LaterFailureCompensates(t *testing.T) {
	// GIVEN: Step a commits and step c fails
	// THEN: Compensation runs once and an InconsistencyError is returned

	var ran []string
	calls := 0
	boom := errors.New("aggregate write failed")
	s := loan.Saga{
		LoanID:     "loan-1",
		Steps:      []loan.SagaStep{step("a", nil, &ran), step("c", boom, &ran)},
		Compensate: func(context.Context) error {
			calls++
			return nil
		},
	}

	rep, err := s.Run(context.Background())

	var inc *loan.InconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, loan.LoanID("loan-1"), inc.LoanID)
	assert.Equal(t, "c", inc.Step)
	assert.True(t, inc.Resynced)
	assert.ErrorIs(t, err, boom)
	assert.True(t, loan.IsRecoverable(err))
	assert.Equal(t, 1, calls)
	assert.True(t, rep.Compensated)
	assert.Equal(t, []string{"a"}, rep.Committed)
}

func TestSaga_CompensationFailureReported(t *testing.T) {
	var ran []string
	resyncErr := errors.New("read failed")
	s := loan.Saga{
		Steps:      []loan.SagaStep{step("a", nil, &ran), step("c", errors.New("down"), &ran)},
		Compensate: func(context.Context) error { return resyncErr },
	}

	rep, err := s.Run(context.Background())

	var inc *loan.InconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.False(t, inc.Resynced)
	assert.Equal(t, resyncErr, inc.ResyncErr)
	assert.False(t, rep.Compensated)
	assert.Contains(t, err.Error(), "resync failed")
}

func TestPaymentSteps_Order(t *testing.T) {
	res, err := loan.Ledger{}.Apply(scenarioA(), pay("e1", "3.50"))
	require.NoError(t, err)

	steps := loan.PaymentSteps(nil, res, loan.Actor{LenderID: "lender-1"}, paidAt)
	require.Len(t, steps, 3)
	assert.Equal(t, loan.StepUpdateEntry, steps[0].Name)
	assert.Equal(t, loan.StepAppendLog, steps[1].Name)
	assert.True(t, steps[1].BestEffort)
	assert.Equal(t, loan.StepUpdateAggregate, steps[2].Name)
	assert.False(t, steps[2].BestEffort)
}
