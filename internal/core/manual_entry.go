package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ManualEntryLine is a single debit or credit line of a hand-keyed journal
// entry. Amount is a string so form input survives untouched until Validate.
type ManualEntryLine struct {
	AccountCode string `json:"account_code"`
	IsDebit     bool   `json:"is_debit"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// ManualEntryInput is a hand-keyed journal entry. It must already balance;
// the ledger store will not correct it.
type ManualEntryInput struct {
	EntryDate   string            `json:"entry_date"` // YYYY-MM-DD
	Period      string            `json:"period,omitempty"`
	Description string            `json:"description"`
	Lines       []ManualEntryLine `json:"lines"`
}

// Normalize cleans up common form-input issues before validation.
func (m *ManualEntryInput) Normalize() {
	m.EntryDate = strings.TrimSpace(m.EntryDate)
	m.Period = strings.TrimSpace(m.Period)
	m.Description = strings.TrimSpace(m.Description)

	for i := range m.Lines {
		line := &m.Lines[i]
		line.AccountCode = strings.TrimSpace(line.AccountCode)
		if strings.TrimSpace(line.Amount) == "" || strings.ToLower(line.Amount) == "null" {
			line.Amount = "0.00"
		}
	}
}

// Validate enforces the ledger's entry rules on user input: a parseable
// date, at least two lines, positive amounts, known-looking account codes,
// and debits equal to credits to the cent.
func (m *ManualEntryInput) Validate() error {
	if m.EntryDate == "" {
		return Validationf("entry date is required")
	}
	if _, err := time.Parse("2006-01-02", m.EntryDate); err != nil {
		return Validationf("invalid entry date %q, want YYYY-MM-DD", m.EntryDate)
	}
	if m.Period != "" && !ValidPeriod(m.Period) {
		return Validationf("invalid period %q, want YYYY-MM", m.Period)
	}
	if len(m.Lines) < 2 {
		return Validationf("entry must have at least 2 lines")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, line := range m.Lines {
		if line.AccountCode == "" {
			return Validationf("every line needs an account code")
		}
		amt, err := decimal.NewFromString(line.Amount)
		if err != nil {
			return Validationf("invalid amount %q for account %s", line.Amount, line.AccountCode)
		}
		if amt.LessThanOrEqual(decimal.Zero) {
			return Validationf("amount for account %s must be positive, got %s", line.AccountCode, line.Amount)
		}
		if line.IsDebit {
			totalDebit = totalDebit.Add(amt)
		} else {
			totalCredit = totalCredit.Add(amt)
		}
	}

	if totalDebit.Sub(totalCredit).Abs().GreaterThan(epsilon) {
		return Validationf("entry does not balance: debits %s, credits %s",
			totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}
	return nil
}

// ToCreateEntryInput converts a validated manual entry into ledger store
// input. Call Normalize and Validate first.
func (m *ManualEntryInput) ToCreateEntryInput(userID string) (CreateEntryInput, error) {
	entryDate, err := time.Parse("2006-01-02", m.EntryDate)
	if err != nil {
		return CreateEntryInput{}, Validationf("invalid entry date %q", m.EntryDate)
	}

	lines := make([]EntryLineInput, 0, len(m.Lines))
	for _, line := range m.Lines {
		amt, err := decimal.NewFromString(line.Amount)
		if err != nil {
			return CreateEntryInput{}, Validationf("invalid amount %q for account %s", line.Amount, line.AccountCode)
		}
		li := EntryLineInput{AccountCode: line.AccountCode, Description: line.Description}
		if line.IsDebit {
			li.Debit = amt
		} else {
			li.Credit = amt
		}
		lines = append(lines, li)
	}

	return CreateEntryInput{
		EntryDate:   entryDate,
		Period:      m.Period,
		Description: m.Description,
		SourceType:  SourceManual,
		Lines:       lines,
		CreatedBy:   userID,
	}, nil
}
