package loan

import (
	"sort"
	"strings"

	"github.com/warp/loan-ledger/money"
)

// CurrencySummary holds dashboard figures for one currency.
type CurrencySummary struct {
	Currency         money.Currency
	TotalLent        money.Money // principal of Active and Completed loans
	TotalRepaid      money.Money
	ExpectedInterest money.Money // total - principal over non-Rejected loans
	Outstanding      money.Money // remaining on Active loans
	ActiveCount      int
	CompletedCount   int
}

// Summary groups figures per currency. Amounts in different currencies
// are never added together.
type Summary struct {
	LoanCount      int
	ByCurrency     []CurrencySummary // sorted by currency code
	OverdueEntries int               // Pending entries past due, all loans
}

// Summarize computes the portfolio summary as of today.
func Summarize(loans []Loan, today Date) Summary {
	groups := make(map[money.Currency]*CurrencySummary)
	get := func(c money.Currency) *CurrencySummary {
		if g, ok := groups[c]; ok {
			return g
		}
		g := &CurrencySummary{
			Currency:         c,
			TotalLent:        money.Zero(c),
			TotalRepaid:      money.Zero(c),
			ExpectedInterest: money.Zero(c),
			Outstanding:      money.Zero(c),
		}
		groups[c] = g
		return g
	}

	sum := Summary{LoanCount: len(loans)}
	for _, ln := range loans {
		g := get(ln.Currency())
		g.TotalRepaid = g.TotalRepaid.MustAdd(ln.AmountRepaid)

		switch ln.Status {
		case StatusActive:
			g.ActiveCount++
			g.TotalLent = g.TotalLent.MustAdd(ln.Principal)
			if rem := Remaining(ln); rem.IsPositive() {
				g.Outstanding = g.Outstanding.MustAdd(rem)
			}
		case StatusCompleted:
			g.CompletedCount++
			g.TotalLent = g.TotalLent.MustAdd(ln.Principal)
		}
		if ln.Status != StatusRejected {
			g.ExpectedInterest = g.ExpectedInterest.MustAdd(ln.TotalRepayment.MustSub(ln.Principal))
		}

		for _, e := range ln.Schedule {
			if DisplayStatus(e, today) == EntryOverdue {
				sum.OverdueEntries++
			}
		}
	}

	for _, g := range groups {
		sum.ByCurrency = append(sum.ByCurrency, *g)
	}
	sort.Slice(sum.ByCurrency, func(i, j int) bool {
		return sum.ByCurrency[i].Currency < sum.ByCurrency[j].Currency
	})
	return sum
}

// FilterByBorrower keeps loans whose borrower name contains q, ignoring case.
func FilterByBorrower(loans []Loan, q string) []Loan {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return loans
	}
	var out []Loan
	for _, ln := range loans {
		if strings.Contains(strings.ToLower(ln.BorrowerName), q) {
			out = append(out, ln)
		}
	}
	return out
}
