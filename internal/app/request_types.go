package app

import (
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest is the input for creating or updating a draft invoice.
// Amounts arrive as JSON strings or numbers; decimal handles both.
type CreateInvoiceRequest struct {
	Direction     string          `json:"direction" validate:"required,oneof=payable receivable"`
	Category      string          `json:"category" validate:"omitempty,max=50"`
	InvoiceDate   string          `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	BillingPeriod string          `json:"billing_period" validate:"omitempty,len=7"`
	PartyID       *int            `json:"party_id" validate:"omitempty,gt=0"`
	Description   string          `json:"description" validate:"max=500"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
}

// RecordPaymentRequest is the input for recording a bank transaction.
type RecordPaymentRequest struct {
	Direction   string          `json:"direction" validate:"required,oneof=outgoing incoming"`
	Method      string          `json:"method" validate:"omitempty,oneof=bank_transfer upi cash cheque card"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PartyID     *int            `json:"party_id" validate:"omitempty,gt=0"`
	Reference   string          `json:"reference" validate:"max=200"`
}

// MatchRequest is the input for a manual payment-invoice allocation.
type MatchRequest struct {
	PaymentID int             `json:"payment_id" validate:"required,gt=0"`
	InvoiceID int             `json:"invoice_id" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes" validate:"max=500"`
}

// ApplyMatchItem is one reviewed suggestion within an ApplyMatchesRequest.
type ApplyMatchItem struct {
	PaymentID int             `json:"payment_id" validate:"required,gt=0"`
	InvoiceID int             `json:"invoice_id" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount"`
}

// ApplyMatchesRequest is the input for batch-applying reviewed suggestions.
type ApplyMatchesRequest struct {
	Matches []ApplyMatchItem `json:"matches" validate:"required,min=1,max=200,dive"`
}

// CreatePartyRequest is the input for creating a counterparty.
type CreatePartyRequest struct {
	Name              string          `json:"name" validate:"required,max=200"`
	Category          string          `json:"category" validate:"omitempty,max=50"`
	TDSApplicable     bool            `json:"tds_applicable"`
	TDSRate           decimal.Decimal `json:"tds_rate"`
	TDSSection        string          `json:"tds_section" validate:"omitempty,max=20"`
	BankAccountName   string          `json:"bank_account_name" validate:"max=200"`
	BankAccountNumber string          `json:"bank_account_number" validate:"max=50"`
	BankIFSC          string          `json:"bank_ifsc" validate:"omitempty,max=20"`
}
