package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Asset      AccountType = "asset"
	Liability  AccountType = "liability"
	Income     AccountType = "income"
	DirectCost AccountType = "direct_cost"
	Expense    AccountType = "expense"
)

// DebitNormal reports whether accounts of this type accumulate debit−credit.
// Credit-normal types (liability, income) accumulate credit−debit.
func (t AccountType) DebitNormal() bool {
	switch t {
	case Asset, DirectCost, Expense:
		return true
	default:
		return false
	}
}

type Account struct {
	ID        int             `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// SourceType tags the business event that produced a ledger entry.
type SourceType string

const (
	SourceInvoiceConfirmed     SourceType = "invoice_confirmed"
	SourcePaymentOutgoing      SourceType = "payment_outgoing"
	SourcePaymentReceived      SourceType = "payment_received"
	SourceInvoicePaymentLinked SourceType = "invoice_payment_linked"
	SourceManual               SourceType = "manual"
	SourceAdjustment           SourceType = "adjustment"
)

type LedgerEntry struct {
	ID           int               `json:"id"`
	EntryDate    time.Time         `json:"entry_date"`
	Period       string            `json:"period"` // YYYY-MM
	Description  string            `json:"description"`
	SourceType   SourceType        `json:"source_type"`
	SourceID     *int              `json:"source_id,omitempty"`
	CreatedBy    string            `json:"created_by"`
	IsReversed   bool              `json:"is_reversed"`
	ReversedByID *int              `json:"reversed_by_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Lines        []LedgerEntryLine `json:"lines"`
}

type LedgerEntryLine struct {
	ID          int             `json:"id"`
	EntryID     int             `json:"entry_id"`
	AccountID   int             `json:"account_id"`
	AccountCode string          `json:"account_code,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// EntryLineInput is one debit or credit posting handed to the ledger store.
// Exactly one of Debit/Credit must be positive; the other must be zero.
type EntryLineInput struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

type InvoiceDirection string

const (
	Payable    InvoiceDirection = "payable"
	Receivable InvoiceDirection = "receivable"
)

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceConfirmed     InvoiceStatus = "confirmed"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

type Invoice struct {
	ID            int              `json:"id"`
	Direction     InvoiceDirection `json:"direction"`
	Category      Category         `json:"category"`
	Status        InvoiceStatus    `json:"status"`
	InvoiceDate   *time.Time       `json:"invoice_date,omitempty"`
	BillingPeriod string           `json:"billing_period,omitempty"` // YYYY-MM
	PartyID       *int             `json:"party_id,omitempty"`
	Description   string           `json:"description,omitempty"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	GSTAmount     decimal.Decimal  `json:"gst_amount"`
	TDSAmount     decimal.Decimal  `json:"tds_amount"`
	PaidAmount    decimal.Decimal  `json:"paid_amount"`
	BalanceDue    decimal.Decimal  `json:"balance_due"`
	LedgerEntryID *int             `json:"ledger_entry_id,omitempty"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type PaymentDirection string

const (
	Outgoing PaymentDirection = "outgoing"
	Incoming PaymentDirection = "incoming"
)

type PaymentStatus string

const (
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type Payment struct {
	ID              int              `json:"id"`
	Direction       PaymentDirection `json:"direction"`
	Method          string           `json:"method"`
	Amount          decimal.Decimal  `json:"amount"`
	MatchedAmount   decimal.Decimal  `json:"matched_amount"`
	UnmatchedAmount decimal.Decimal  `json:"unmatched_amount"`
	PaymentDate     time.Time        `json:"payment_date"`
	PartyID         *int             `json:"party_id,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	LedgerEntryID   *int             `json:"ledger_entry_id,omitempty"`
	Status          PaymentStatus    `json:"status"`
	CreatedBy       string           `json:"created_by"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PaymentInvoice is the join row allocating part of a payment to an invoice.
// Creation and deletion are its only mutations; both must symmetrically
// update the payment's matched/unmatched split and the invoice's
// paid/balance split in the same transaction.
type PaymentInvoice struct {
	ID        int             `json:"id"`
	PaymentID int             `json:"payment_id"`
	InvoiceID int             `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	MatchedBy string          `json:"matched_by"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Party is a vendor or customer record. It is mutated by the party CRUD
// collaborator; the finance core only reads its TDS and bank configuration.
type Party struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	Category          Category        `json:"category"`
	TDSApplicable     bool            `json:"tds_applicable"`
	TDSRate           decimal.Decimal `json:"tds_rate"`
	TDSSection        string          `json:"tds_section,omitempty"`
	BankAccountName   string          `json:"bank_account_name,omitempty"`
	BankAccountNumber string          `json:"bank_account_number,omitempty"`
	BankIFSC          string          `json:"bank_ifsc,omitempty"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
}
