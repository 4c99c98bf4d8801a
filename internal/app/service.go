package app

import (
	"context"

	"ops-backend/internal/core"
)

// ApplicationService is the single interface all adapters call. It decouples
// presentation from business logic. Implementations must contain no display
// logic of any kind.
type ApplicationService interface {
	// CreateInvoiceDraft creates a new draft invoice. Nothing is booked yet.
	CreateInvoiceDraft(ctx context.Context, req CreateInvoiceRequest, userID string) (*core.Invoice, error)

	// UpdateInvoiceDraft replaces the editable fields of a draft invoice.
	UpdateInvoiceDraft(ctx context.Context, invoiceID int, req CreateInvoiceRequest) (*core.Invoice, error)

	// ConfirmInvoice transitions a draft to confirmed, computing TDS and
	// booking the accrual entry. With linkedPaymentID set, the invoice is
	// settled against that payment in the same transaction.
	ConfirmInvoice(ctx context.Context, invoiceID int, linkedPaymentID *int, userID string) (*core.Invoice, error)

	// CancelInvoice cancels an invoice, releasing matches and reversing its
	// accrual entry.
	CancelInvoice(ctx context.Context, invoiceID int, userID string) (*core.Invoice, error)

	// GetInvoice returns a single invoice by ID.
	GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error)

	// ListInvoices returns invoices, optionally filtered by status.
	ListInvoices(ctx context.Context, status string) ([]core.Invoice, error)

	// RecordPayment records a bank transaction and books its cash entry.
	RecordPayment(ctx context.Context, req RecordPaymentRequest, userID string) (*core.Payment, error)

	// GetPayment returns a single payment by ID.
	GetPayment(ctx context.Context, paymentID int) (*core.Payment, error)

	// ListPayments returns payments, optionally filtered by status.
	ListPayments(ctx context.Context, status string) ([]core.Payment, error)

	// CancelPayment reverses a payment's cash entry and cancels it.
	CancelPayment(ctx context.Context, paymentID int, userID string) error

	// SuggestMatches scores unmatched outgoing payments against open payable
	// invoices, grouped by counterparty. Advisory only.
	SuggestMatches(ctx context.Context) (*SuggestionsResult, error)

	// MatchPayment allocates part of a payment to an invoice.
	MatchPayment(ctx context.Context, req MatchRequest, userID string) error

	// UnmatchPayment undoes an existing payment-invoice allocation.
	UnmatchPayment(ctx context.Context, paymentID, invoiceID int, userID string) error

	// ApplyMatches applies a batch of reviewed suggestions, reporting
	// per-item rejections instead of failing the batch.
	ApplyMatches(ctx context.Context, req ApplyMatchesRequest, userID string) (*core.ApplyMatchesResult, error)

	// PostManualEntry validates and posts a hand-keyed journal entry.
	PostManualEntry(ctx context.Context, input core.ManualEntryInput, userID string) (*core.LedgerEntry, error)

	// ReverseEntry books the mirror of an existing entry and returns it.
	ReverseEntry(ctx context.Context, entryID int, userID string) (*core.LedgerEntry, error)

	// GetEntry returns a ledger entry with its lines.
	GetEntry(ctx context.Context, entryID int) (*core.LedgerEntry, error)

	// GetBalances returns all accounts with stored running balances.
	GetBalances(ctx context.Context) ([]core.Account, error)

	// GetTrialBalance recomputes account balances from non-reversed lines.
	GetTrialBalance(ctx context.Context) (*core.TrialBalance, error)

	// GetProfitAndLoss reports income and costs for one YYYY-MM period.
	GetProfitAndLoss(ctx context.Context, period string) (*core.PLReport, error)

	// CreateParty creates a counterparty record.
	CreateParty(ctx context.Context, req CreatePartyRequest) (*core.Party, error)

	// GetParty returns a single party by ID.
	GetParty(ctx context.Context, partyID int) (*core.Party, error)

	// ListParties returns all parties.
	ListParties(ctx context.Context) ([]core.Party, error)
}
