package loan_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/money"
)

func TestSummarize_GroupsByCurrency(t *testing.T) {
	// GIVEN: Two USD loans (one Active, one Completed), one Rejected USD
	//        loan and one KHR loan
	// WHEN: The portfolio is summarized on 2024-01-05
	// THEN: USD and KHR figures are kept apart

	active := scenarioA()
	active.AmountRepaid = usd("10")

	done := scenarioA()
	done.ID = "loan-2"
	done.Status = loan.StatusCompleted
	done.AmountRepaid = usd("105")
	for i := range done.Schedule {
		done.Schedule[i].Status = loan.EntryPaid
	}

	rejected := scenarioA()
	rejected.ID = "loan-3"
	rejected.Status = loan.StatusRejected

	khrTerms := terms("100", "10", 5, loan.Days, loan.Monthly, "2024-01-01")
	khrTerms.Principal = money.New("400000", money.KHR)
	khr := newTestLoan(khrTerms)
	khr.ID = "loan-4"
	khr.AmountRepaid = money.Zero(money.KHR)

	sum := loan.Summarize([]loan.Loan{active, done, rejected, khr}, loan.MustParseDate("2024-01-05"))

	assert.Equal(t, 4, sum.LoanCount)
	require.Len(t, sum.ByCurrency, 2)

	k := sum.ByCurrency[0]
	assert.Equal(t, money.KHR, k.Currency)
	assert.True(t, k.TotalLent.Equal(money.New("400000", money.KHR)))
	assert.True(t, k.ExpectedInterest.Equal(money.New("40000", money.KHR)))
	assert.Equal(t, 1, k.ActiveCount)

	u := sum.ByCurrency[1]
	assert.Equal(t, money.USD, u.Currency)
	assert.True(t, u.TotalLent.Equal(usd("200")), "rejected principal excluded")
	assert.True(t, u.TotalRepaid.Equal(usd("115")))
	assert.True(t, u.ExpectedInterest.Equal(usd("10")), "rejected interest excluded")
	assert.True(t, u.Outstanding.Equal(usd("95")))
	assert.Equal(t, 1, u.ActiveCount)
	assert.Equal(t, 1, u.CompletedCount)

	// Entries due 01-02..01-04 are overdue on the active and rejected loans
	assert.Equal(t, 6, sum.OverdueEntries)
}

func TestSummarize_Empty(t *testing.T) {
	sum := loan.Summarize(nil, loan.MustParseDate("2024-01-01"))
	assert.Zero(t, sum.LoanCount)
	assert.Empty(t, sum.ByCurrency)
}

func TestFilterByBorrower(t *testing.T) {
	a := scenarioA()
	b := scenarioA()
	b.ID = "loan-2"
	b.BorrowerName = "Dara Chan"

	assert.Len(t, loan.FilterByBorrower([]loan.Loan{a, b}, ""), 2)
	got := loan.FilterByBorrower([]loan.Loan{a, b}, "  dara ")
	require.Len(t, got, 1)
	assert.Equal(t, loan.LoanID("loan-2"), got[0].ID)
	assert.Empty(t, loan.FilterByBorrower([]loan.Loan{a, b}, "nobody"))
}

func TestProgress_ZeroTotal(t *testing.T) {
	assert.True(t, loan.Progress(loan.Loan{}).Equal(decimal.Zero))
}
