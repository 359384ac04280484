/*
schedule.go - Schedule Generator

PURPOSE:
  Pure function from loan terms to a repayment schedule and its totals.
  Runs once, at loan creation. No I/O, no clock, deterministic.

CALCULATION:
  total       = principal + principal * rate / 100      (simple interest)
  end date    = start + N days | start + N calendar months
  approx days = N (Days) | N * 30 (Months)
  periods     = max(1, floor(approx days / period days))
                period days: Daily 1, Weekly 7, Monthly 30
  installment = total / periods, truncated to the minor unit
  final entry = total - installment * (periods - 1)

  The final entry absorbs the rounding residual so the expected amounts
  always sum to exactly total.

DUE DATES:
  Entry i (1-based) is due at start + i periods, where a period is 1 day,
  7 days or 1 calendar month. Monthly offsets are taken from the start
  date, not chained, so a Jan 31 start does not drift after February.

EXAMPLE:
  100 USD, 5%, 30 Days, Daily, 2024-01-01
    -> total 105.00, 30 entries of 3.50, 2024-01-02 .. 2024-01-31
*/
package loan

import (
	"github.com/shopspring/decimal"
	"github.com/warp/loan-ledger/money"
)

var hundred = decimal.NewFromInt(100)

// Schedule is the Schedule Generator's output.
type Schedule struct {
	TotalRepayment money.Money
	EndDate        Date
	PeriodCount    int
	Installment    money.Money // uniform per-period amount before the final residual
	Entries        []ScheduleEntry
}

// TotalRepayment returns principal * (1 + rate/100), unrounded.
func TotalRepayment(principal money.Money, ratePercent decimal.Decimal) money.Money {
	interest := principal.Mul(ratePercent).Amount.Div(hundred)
	return money.FromDecimal(principal.Amount.Add(interest), principal.Currency)
}

// EndDate advances start by the loan duration.
func EndDate(start Date, value int, unit DurationUnit) Date {
	if unit == Months {
		return start.AddMonths(value)
	}
	return start.AddDays(value)
}

// PeriodCount converts the duration to approximate days and divides by
// the frequency's period length. Never less than 1.
func PeriodCount(value int, unit DurationUnit, freq Frequency) int {
	days := value
	if unit == Months {
		days = value * 30
	}
	n := days / freq.PeriodDays()
	if n < 1 {
		return 1
	}
	return n
}

// DueDate returns the due date of the i-th installment (1-based).
func DueDate(start Date, freq Frequency, i int) Date {
	switch freq {
	case Weekly:
		return start.AddDays(7 * i)
	case Monthly:
		return start.AddMonths(i)
	default:
		return start.AddDays(i)
	}
}

// GenerateSchedule derives the repayment schedule for t. Entries carry no
// IDs; the store assigns them. Callers validate t first (ValidateTerms);
// GenerateSchedule itself never fails.
func GenerateSchedule(t Terms) Schedule {
	total := TotalRepayment(t.Principal, t.RatePercent)
	periods := PeriodCount(t.DurationValue, t.DurationUnit, t.Frequency)

	// Money in the schedule is held at minor-unit precision.
	rounded := total.Round()
	installment := rounded.DivRoundDown(decimal.NewFromInt(int64(periods)))
	final := rounded.MustSub(installment.Mul(decimal.NewFromInt(int64(periods - 1))))

	entries := make([]ScheduleEntry, periods)
	for i := 1; i <= periods; i++ {
		expected := installment
		if i == periods {
			expected = final
		}
		entries[i-1] = ScheduleEntry{
			Sequence: i,
			DueDate:  DueDate(t.StartDate, t.Frequency, i),
			Expected: expected,
			Status:   EntryPending,
		}
	}

	return Schedule{
		TotalRepayment: total,
		EndDate:        EndDate(t.StartDate, t.DurationValue, t.DurationUnit),
		PeriodCount:    periods,
		Installment:    installment,
		Entries:        entries,
	}
}

// ValidateTerms rejects terms the generator must never see.
func ValidateTerms(t Terms) error {
	if !t.Principal.Currency.Valid() {
		return invalid("currency", "unsupported currency %q", t.Principal.Currency)
	}
	if !t.Principal.IsPositive() {
		return invalid("principal", "must be positive, got %s", t.Principal.Amount)
	}
	if t.RatePercent.IsNegative() {
		return invalid("interest_rate", "must not be negative, got %s", t.RatePercent)
	}
	if t.DurationValue <= 0 {
		return invalid("duration_value", "must be positive, got %d", t.DurationValue)
	}
	if !t.DurationUnit.Valid() {
		return invalid("duration_unit", "must be Days or Months, got %q", t.DurationUnit)
	}
	if !t.Frequency.Valid() {
		return invalid("frequency", "must be Daily, Weekly or Monthly, got %q", t.Frequency)
	}
	if t.StartDate.IsZero() {
		return invalid("start_date", "is required")
	}

	// Every installment must hold at least one minor unit.
	periods := PeriodCount(t.DurationValue, t.DurationUnit, t.Frequency)
	if total := TotalRepayment(t.Principal, t.RatePercent).Round(); total.MinorUnits() < int64(periods) {
		return invalid("principal", "total repayment %s is too small for %d installments", total, periods)
	}
	return nil
}
