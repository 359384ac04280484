/*
Package factory converts loan documents into engine inputs.

PURPOSE:
  A loan document is the flat JSON or YAML form of a loan request, as
  posted by the API or kept in a file for the schedule CLI. The factory
  parses it, normalizes enum spelling and currency codes, and returns a
  validated loan.NewLoan.

DOCUMENT SCHEMA:
  {
    "borrower_name": "Sokha",
    "borrower_phone": "012 345 678",
    "borrower_address": "Phnom Penh",
    "purpose": "Stock for shop",
    "notes": "",
    "currency": "USD",
    "principal": 100,
    "interest_rate": 5,
    "duration_value": 30,
    "duration_unit": "Days",
    "frequency": "Daily",
    "start_date": "2024-01-01"
  }

  principal and interest_rate accept numbers or decimal strings.
  duration_unit and frequency are case-insensitive. currency defaults
  to USD, start_date to the supplied "today".

USAGE:
  doc, err := factory.ParseLoanYAML(data)
  in, err := doc.NewLoan(loan.Today(time.Now))
  sched := loan.GenerateSchedule(in.Terms)

SEE ALSO:
  - loan/schedule.go: ValidateTerms, GenerateSchedule
  - api/dto.go: HTTP request bodies built on LoanDocument
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/money"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// Number is a decimal written as a JSON number or a string.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(b)
	return nil
}

// Decimal parses n, reporting problems as a validation error on field.
func (n Number) Decimal(field string) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return decimal.Decimal{}, &loan.ValidationError{Field: field, Message: "is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &loan.ValidationError{Field: field, Message: fmt.Sprintf("not a number: %q", s)}
	}
	return d, nil
}

// TermsDocument holds the repayment terms of a loan document.
type TermsDocument struct {
	Currency      string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Principal     Number `json:"principal" yaml:"principal"`
	InterestRate  Number `json:"interest_rate" yaml:"interest_rate"`
	DurationValue int    `json:"duration_value" yaml:"duration_value"`
	DurationUnit  string `json:"duration_unit" yaml:"duration_unit"`
	Frequency     string `json:"frequency" yaml:"frequency"`
	StartDate     string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
}

// LoanDocument is a complete loan request.
type LoanDocument struct {
	BorrowerName    string `json:"borrower_name" yaml:"borrower_name"`
	BorrowerPhone   string `json:"borrower_phone,omitempty" yaml:"borrower_phone,omitempty"`
	BorrowerAddress string `json:"borrower_address,omitempty" yaml:"borrower_address,omitempty"`
	Purpose         string `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Notes           string `json:"notes,omitempty" yaml:"notes,omitempty"`
	TermsDocument   `yaml:",inline"`
}

// =============================================================================
// PARSING
// =============================================================================

func ParseLoanJSON(data []byte) (LoanDocument, error) {
	var doc LoanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return LoanDocument{}, fmt.Errorf("failed to parse loan JSON: %w", err)
	}
	return doc, nil
}

func ParseLoanYAML(data []byte) (LoanDocument, error) {
	var doc LoanDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return LoanDocument{}, fmt.Errorf("failed to parse loan YAML: %w", err)
	}
	return doc, nil
}

// LoadLoanFile reads a .json, .yaml or .yml loan document.
func LoadLoanFile(path string) (LoanDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoanDocument{}, fmt.Errorf("read loan file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseLoanJSON(data)
	default:
		return ParseLoanYAML(data)
	}
}

// =============================================================================
// CONVERSION
// =============================================================================

// Terms converts and validates the terms. An empty start date becomes today.
func (d TermsDocument) Terms(today loan.Date) (loan.Terms, error) {
	code := d.Currency
	if strings.TrimSpace(code) == "" {
		code = string(money.USD)
	}
	currency, err := money.ParseCurrency(code)
	if err != nil {
		return loan.Terms{}, &loan.ValidationError{Field: "currency", Message: err.Error()}
	}

	principal, err := d.Principal.Decimal("principal")
	if err != nil {
		return loan.Terms{}, err
	}
	rate, err := d.InterestRate.Decimal("interest_rate")
	if err != nil {
		return loan.Terms{}, err
	}

	start := today
	if s := strings.TrimSpace(d.StartDate); s != "" {
		if start, err = loan.ParseDate(s); err != nil {
			return loan.Terms{}, &loan.ValidationError{Field: "start_date", Message: err.Error()}
		}
	}

	t := loan.Terms{
		Principal:     money.FromDecimal(principal, currency),
		RatePercent:   rate,
		DurationValue: d.DurationValue,
		DurationUnit:  parseDurationUnit(d.DurationUnit),
		Frequency:     parseFrequency(d.Frequency),
		StartDate:     start,
	}
	if err := loan.ValidateTerms(t); err != nil {
		return loan.Terms{}, err
	}
	return t, nil
}

// NewLoan converts and validates the whole document.
func (d LoanDocument) NewLoan(today loan.Date) (loan.NewLoan, error) {
	t, err := d.Terms(today)
	if err != nil {
		return loan.NewLoan{}, err
	}
	in := loan.NewLoan{
		BorrowerName:    strings.TrimSpace(d.BorrowerName),
		BorrowerPhone:   strings.TrimSpace(d.BorrowerPhone),
		BorrowerAddress: strings.TrimSpace(d.BorrowerAddress),
		Purpose:         d.Purpose,
		Notes:           d.Notes,
		Terms:           t,
	}
	if err := in.Validate(); err != nil {
		return loan.NewLoan{}, err
	}
	return in, nil
}

func parseDurationUnit(s string) loan.DurationUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "days", "day":
		return loan.Days
	case "months", "month":
		return loan.Months
	default:
		return loan.DurationUnit(s)
	}
}

func parseFrequency(s string) loan.Frequency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return loan.Daily
	case "weekly":
		return loan.Weekly
	case "monthly":
		return loan.Monthly
	default:
		return loan.Frequency(s)
	}
}
