package loan_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/money"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func usd(s string) money.Money { return money.New(s, money.USD) }

func terms(principal string, rate string, value int, unit loan.DurationUnit, freq loan.Frequency, start string) loan.Terms {
	return loan.Terms{
		Principal:     usd(principal),
		RatePercent:   decimal.RequireFromString(rate),
		DurationValue: value,
		DurationUnit:  unit,
		Frequency:     freq,
		StartDate:     loan.MustParseDate(start),
	}
}

func sumExpected(entries []loan.ScheduleEntry) money.Money {
	total := money.Zero(money.USD)
	for _, e := range entries {
		total = total.MustAdd(e.Expected)
	}
	return total
}

// =============================================================================
// SCHEDULE GENERATOR
// =============================================================================

func TestGenerateSchedule_DailyThirtyDays(t *testing.T) {
	// GIVEN: 100 USD at 5% over 30 days, paid daily from 2024-01-01
	// WHEN: The schedule is generated
	// THEN: 30 entries of 3.50 totalling 105.00, the last due 2024-01-31

	s := loan.GenerateSchedule(terms("100", "5", 30, loan.Days, loan.Daily, "2024-01-01"))

	assert.True(t, s.TotalRepayment.Equal(usd("105")), "total: %s", s.TotalRepayment)
	assert.Equal(t, 30, s.PeriodCount)
	require.Len(t, s.Entries, 30)
	for i, e := range s.Entries {
		assert.True(t, e.Expected.Equal(usd("3.50")), "entry %d expected %s", i+1, e.Expected)
		assert.Equal(t, loan.EntryPending, e.Status)
		assert.Equal(t, i+1, e.Sequence)
		assert.Nil(t, e.ActualAmount)
		assert.Nil(t, e.PaidAt)
		assert.Empty(t, e.Note)
	}
	assert.Equal(t, "2024-01-02", s.Entries[0].DueDate.String())
	assert.Equal(t, "2024-01-31", s.Entries[29].DueDate.String())
	assert.Equal(t, "2024-01-31", s.EndDate.String())
}

func TestGenerateSchedule_ResidualOnFinalEntry(t *testing.T) {
	// GIVEN: 1000 USD at 10% over 3 months, paid monthly
	// WHEN: 1100 is split three ways
	// THEN: 366.66, 366.66 and 366.68; the sum is exactly 1100

	s := loan.GenerateSchedule(terms("1000", "10", 3, loan.Months, loan.Monthly, "2024-01-15"))

	require.Len(t, s.Entries, 3)
	assert.True(t, s.Entries[0].Expected.Equal(usd("366.66")))
	assert.True(t, s.Entries[1].Expected.Equal(usd("366.66")))
	assert.True(t, s.Entries[2].Expected.Equal(usd("366.68")))
	assert.True(t, sumExpected(s.Entries).Equal(usd("1100")))
	assert.True(t, s.Installment.Equal(usd("366.66")))
}

func TestGenerateSchedule_ExpectedSumsToTotal(t *testing.T) {
	cases := []loan.Terms{
		terms("100", "5", 30, loan.Days, loan.Daily, "2024-01-01"),
		terms("250", "7.5", 45, loan.Days, loan.Weekly, "2024-02-10"),
		terms("999.99", "3.33", 7, loan.Months, loan.Monthly, "2023-11-30"),
		terms("10", "0", 1, loan.Days, loan.Daily, "2024-06-01"),
		terms("4", "12.5", 13, loan.Months, loan.Daily, "2024-03-01"),
		terms("5000", "20", 12, loan.Months, loan.Weekly, "2024-01-01"),
	}
	for _, tc := range cases {
		s := loan.GenerateSchedule(tc)
		assert.True(t, sumExpected(s.Entries).Equal(s.TotalRepayment.Round()),
			"%s over %d %s: sum %s vs total %s", tc.Principal, tc.DurationValue, tc.DurationUnit,
			sumExpected(s.Entries), s.TotalRepayment)
		for _, e := range s.Entries {
			assert.True(t, e.Expected.IsPositive(), "entry %d expected %s", e.Sequence, e.Expected)
		}
	}
}

func TestGenerateSchedule_DueDatesStrictlyIncrease(t *testing.T) {
	for _, freq := range []loan.Frequency{loan.Daily, loan.Weekly, loan.Monthly} {
		s := loan.GenerateSchedule(terms("1200", "12", 12, loan.Months, freq, "2024-01-31"))
		start := loan.MustParseDate("2024-01-31")
		for i, e := range s.Entries {
			assert.True(t, e.DueDate.After(start), "%s entry %d not after start", freq, i+1)
			if i > 0 {
				assert.True(t, e.DueDate.After(s.Entries[i-1].DueDate), "%s entry %d not increasing", freq, i+1)
			}
		}
	}
}

func TestGenerateSchedule_PeriodCountFloorsToAtLeastOne(t *testing.T) {
	// GIVEN: A 5 day loan paid monthly
	// THEN: One period, holding the whole total

	s := loan.GenerateSchedule(terms("100", "10", 5, loan.Days, loan.Monthly, "2024-01-01"))

	require.Len(t, s.Entries, 1)
	assert.True(t, s.Entries[0].Expected.Equal(usd("110")))
	assert.Equal(t, "2024-02-01", s.Entries[0].DueDate.String())
	assert.Equal(t, "2024-01-06", s.EndDate.String())
}

func TestPeriodCount(t *testing.T) {
	assert.Equal(t, 30, loan.PeriodCount(30, loan.Days, loan.Daily))
	assert.Equal(t, 4, loan.PeriodCount(30, loan.Days, loan.Weekly))
	assert.Equal(t, 1, loan.PeriodCount(30, loan.Days, loan.Monthly))
	assert.Equal(t, 12, loan.PeriodCount(3, loan.Months, loan.Weekly))
	assert.Equal(t, 90, loan.PeriodCount(3, loan.Months, loan.Daily))
	assert.Equal(t, 1, loan.PeriodCount(6, loan.Days, loan.Weekly))
}

func TestEndDate_MonthArithmetic(t *testing.T) {
	// Calendar month addition normalizes overflowing days.
	assert.Equal(t, "2024-03-31", loan.EndDate(loan.MustParseDate("2024-01-31"), 2, loan.Months).String())
	assert.Equal(t, "2024-03-02", loan.EndDate(loan.MustParseDate("2024-01-31"), 1, loan.Months).String())
	assert.Equal(t, "2025-02-28", loan.EndDate(loan.MustParseDate("2024-02-28"), 12, loan.Months).String())
	assert.Equal(t, "2025-01-05", loan.EndDate(loan.MustParseDate("2024-12-26"), 10, loan.Days).String())
}

func TestDueDate_MonthlyOffsetsFromStart(t *testing.T) {
	start := loan.MustParseDate("2024-01-31")

	assert.Equal(t, "2024-03-02", loan.DueDate(start, loan.Monthly, 1).String())
	assert.Equal(t, "2024-03-31", loan.DueDate(start, loan.Monthly, 2).String())
	assert.Equal(t, "2024-05-01", loan.DueDate(start, loan.Monthly, 3).String())
	assert.Equal(t, "2024-02-14", loan.DueDate(start, loan.Weekly, 2).String())
}

func TestTotalRepayment_Unrounded(t *testing.T) {
	total := loan.TotalRepayment(usd("333.33"), decimal.RequireFromString("3.3"))
	assert.Equal(t, "344.32989", total.Amount.String())
	assert.Equal(t, "344.33 USD", total.Round().String())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateTerms_RejectsInstallmentsBelowOneMinorUnit(t *testing.T) {
	// GIVEN: 1.13 USD spread over 390 daily installments
	tiny := terms("1", "12.5", 13, loan.Months, loan.Daily, "2024-03-01")

	// THEN: The terms are rejected before any zero-value entry can exist
	err := loan.ValidateTerms(tiny)
	var ve *loan.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "principal", ve.Field)

	// AND: Exactly one minor unit per installment is accepted
	edge := terms("3.90", "0", 390, loan.Days, loan.Daily, "2024-03-01")
	require.NoError(t, loan.ValidateTerms(edge))
	for _, e := range loan.GenerateSchedule(edge).Entries {
		assert.True(t, e.Expected.Equal(usd("0.01")))
	}
}

func TestValidateTerms(t *testing.T) {
	valid := terms("100", "5", 30, loan.Days, loan.Daily, "2024-01-01")
	require.NoError(t, loan.ValidateTerms(valid))

	cases := map[string]func(*loan.Terms){
		"principal":      func(t *loan.Terms) { t.Principal = usd("0") },
		"interest_rate":  func(t *loan.Terms) { t.RatePercent = decimal.NewFromInt(-1) },
		"duration_value": func(t *loan.Terms) { t.DurationValue = 0 },
		"duration_unit":  func(t *loan.Terms) { t.DurationUnit = "Years" },
		"frequency":      func(t *loan.Terms) { t.Frequency = "Hourly" },
		"start_date":     func(t *loan.Terms) { t.StartDate = loan.Date{} },
		"currency":       func(t *loan.Terms) { t.Principal = money.New("100", "EUR") },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			tt := valid
			mutate(&tt)
			err := loan.ValidateTerms(tt)

			require.Error(t, err)
			assert.True(t, errors.Is(err, loan.ErrValidation))
			var ve *loan.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, field, ve.Field)
			assert.True(t, loan.IsClientError(err))
		})
	}
}
