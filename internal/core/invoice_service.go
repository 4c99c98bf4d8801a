package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CreateInvoiceInput describes a draft invoice.
type CreateInvoiceInput struct {
	Direction     InvoiceDirection
	Category      Category
	InvoiceDate   *time.Time
	BillingPeriod string // YYYY-MM, optional
	PartyID       *int
	Description   string
	TotalAmount   decimal.Decimal
	GSTAmount     decimal.Decimal
	CreatedBy     string
}

// InvoiceService owns the invoice state machine:
//
//	draft → confirmed → partially_paid → paid
//	draft | confirmed | partially_paid → cancelled
//
// Confirmation is the only transition that books a ledger entry directly;
// paid/partially_paid accumulate through the reconciliation engine; paid is
// terminal.
type InvoiceService interface {
	CreateDraft(ctx context.Context, input CreateInvoiceInput) (*Invoice, error)
	// UpdateDraft replaces a draft's mutable fields. Confirmed invoices are
	// immutable except through Cancel.
	UpdateDraft(ctx context.Context, invoiceID int, input CreateInvoiceInput) (*Invoice, error)
	// Confirm transitions draft → confirmed, computing TDS and booking the
	// confirmation entry. When linkedPaymentID is set (payable invoices
	// already paid via a standalone bank transaction), the invoice is
	// matched against that payment and marked paid in the same transaction.
	Confirm(ctx context.Context, invoiceID int, linkedPaymentID *int, userID string) (*Invoice, error)
	// Cancel unwinds all matches, reverses the booked entry, and marks the
	// invoice cancelled. Paid invoices cannot be cancelled.
	Cancel(ctx context.Context, invoiceID int, userID string) (*Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	ListInvoices(ctx context.Context, status *InvoiceStatus) ([]Invoice, error)
}

type invoiceService struct {
	pool   *pgxpool.Pool
	ledger LedgerService
}

func NewInvoiceService(pool *pgxpool.Pool, ledger LedgerService) InvoiceService {
	return &invoiceService{pool: pool, ledger: ledger}
}

func validateInvoiceInput(input CreateInvoiceInput) error {
	if input.Direction != Payable && input.Direction != Receivable {
		return Validationf("invoice direction must be payable or receivable, got %q", input.Direction)
	}
	if input.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return Validationf("invoice total must be positive, got %s", input.TotalAmount)
	}
	if input.GSTAmount.IsNegative() {
		return Validationf("gst amount cannot be negative")
	}
	if input.GSTAmount.GreaterThanOrEqual(input.TotalAmount) {
		return Validationf("gst %s cannot equal or exceed total %s", input.GSTAmount, input.TotalAmount)
	}
	if input.BillingPeriod != "" && !ValidPeriod(input.BillingPeriod) {
		return Validationf("invalid billing period %q, want YYYY-MM", input.BillingPeriod)
	}
	return nil
}

func (s *invoiceService) CreateDraft(ctx context.Context, input CreateInvoiceInput) (*Invoice, error) {
	if err := validateInvoiceInput(input); err != nil {
		return nil, err
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (direction, category, status, invoice_date, billing_period, party_id,
		                      description, total_amount, gst_amount, balance_due, created_by)
		VALUES ($1, $2, 'draft', $3, NULLIF($4, ''), $5, $6, $7, $8, $7, $9)
		RETURNING id
	`, string(input.Direction), string(input.Category), input.InvoiceDate, input.BillingPeriod,
		input.PartyID, input.Description, input.TotalAmount, input.GSTAmount, input.CreatedBy,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}
	return s.GetInvoice(ctx, id)
}

func (s *invoiceService) UpdateDraft(ctx context.Context, invoiceID int, input CreateInvoiceInput) (*Invoice, error) {
	if err := validateInvoiceInput(input); err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET direction = $1, category = $2, invoice_date = $3, billing_period = NULLIF($4, ''),
		    party_id = $5, description = $6, total_amount = $7, gst_amount = $8,
		    balance_due = $7, updated_at = NOW()
		WHERE id = $9 AND status = 'draft'
	`, string(input.Direction), string(input.Category), input.InvoiceDate, input.BillingPeriod,
		input.PartyID, input.Description, input.TotalAmount, input.GSTAmount, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		inv, err := s.GetInvoice(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		return nil, Preconditionf("invoice %d cannot be edited: status is %s (must be draft)", invoiceID, inv.Status)
	}
	return s.GetInvoice(ctx, invoiceID)
}

// accountingAnchors picks the entry date and period for an invoice's
// bookkeeping: entry date is the invoice date (falling back to now), and the
// period is the billing period (falling back to the entry date's month).
// The billing period wins so accrual lands in the month the cost belongs to.
func accountingAnchors(invoiceDate *time.Time, billingPeriod string) (time.Time, string) {
	entryDate := time.Now()
	if invoiceDate != nil && !invoiceDate.IsZero() {
		entryDate = *invoiceDate
	}
	period := billingPeriod
	if !ValidPeriod(period) {
		period = PeriodFromDate(entryDate)
	}
	return entryDate, period
}

func (s *invoiceService) Confirm(ctx context.Context, invoiceID int, linkedPaymentID *int, userID string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock order is payment before invoice, same as the matching paths.
	if linkedPaymentID != nil {
		var lockedPaymentID int
		err = tx.QueryRow(ctx,
			"SELECT id FROM payments WHERE id = $1 FOR UPDATE", *linkedPaymentID,
		).Scan(&lockedPaymentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, NotFoundf("payment %d not found", *linkedPaymentID)
			}
			return nil, fmt.Errorf("failed to lock payment %d: %w", *linkedPaymentID, err)
		}
	}

	inv, err := fetchInvoiceForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoiceDraft {
		return nil, Preconditionf("invoice %d cannot be confirmed: status is %s (must be draft)", invoiceID, inv.Status)
	}

	// TDS applies only to payable invoices with a TDS-configured party.
	tds := decimal.Zero
	if inv.Direction == Payable && inv.PartyID != nil {
		var applicable bool
		var rate decimal.Decimal
		err = tx.QueryRow(ctx,
			"SELECT tds_applicable, tds_rate FROM parties WHERE id = $1", *inv.PartyID,
		).Scan(&applicable, &rate)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, NotFoundf("party %d not found", *inv.PartyID)
			}
			return nil, fmt.Errorf("failed to fetch party %d: %w", *inv.PartyID, err)
		}
		tds = ComputeTDS(inv.TotalAmount, inv.GSTAmount, rate, applicable)
	}

	balanceDue := inv.TotalAmount.Sub(tds)
	entryDate, period := accountingAnchors(inv.InvoiceDate, inv.BillingPeriod)

	if linkedPaymentID != nil {
		if err := s.confirmAgainstPayment(ctx, tx, inv, *linkedPaymentID, tds, entryDate, period, userID); err != nil {
			return nil, err
		}
	} else {
		lines, err := BuildInvoiceConfirmedLines(inv.Direction, inv.Category, inv.TotalAmount, inv.GSTAmount, tds)
		if err != nil {
			return nil, err
		}

		entryID, err := s.ledger.CreateEntryTx(ctx, tx, CreateEntryInput{
			EntryDate:   entryDate,
			Period:      period,
			Description: fmt.Sprintf("Invoice %d confirmed: %s", invoiceID, inv.Description),
			SourceType:  SourceInvoiceConfirmed,
			SourceID:    &invoiceID,
			Lines:       lines,
			CreatedBy:   userID,
		})
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			UPDATE invoices
			SET status = 'confirmed', tds_amount = $1, balance_due = $2,
			    ledger_entry_id = $3, updated_at = NOW()
			WHERE id = $4
		`, tds, balanceDue, entryID, invoiceID)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm invoice %d: %w", invoiceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return s.GetInvoice(ctx, invoiceID)
}

// confirmAgainstPayment handles confirming a payable invoice whose money
// already left the bank as a standalone outgoing transaction. The payment's
// original entry debited a generic bucket at import time; linking books a
// reclassifying adjustment, moves the payment entry into the invoice's
// accrual period, records the match, and marks the invoice paid outright.
func (s *invoiceService) confirmAgainstPayment(ctx context.Context, tx pgx.Tx, inv *Invoice, paymentID int, tds decimal.Decimal, entryDate time.Time, period, userID string) error {
	if inv.Direction != Payable {
		return Validationf("only payable invoices can be confirmed against a payment")
	}

	matchAmount := inv.TotalAmount.Sub(tds)

	var payStatus PaymentStatus
	var unmatched decimal.Decimal
	var payEntryID *int
	err := tx.QueryRow(ctx,
		"SELECT status, unmatched_amount, ledger_entry_id FROM payments WHERE id = $1 FOR UPDATE",
		paymentID,
	).Scan(&payStatus, &unmatched, &payEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("payment %d not found", paymentID)
		}
		return fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}
	if payStatus == PaymentCancelled {
		return Preconditionf("payment %d is cancelled", paymentID)
	}
	if payEntryID == nil {
		return Preconditionf("payment %d has no ledger entry to reclassify", paymentID)
	}
	if unmatched.Add(epsilon).LessThan(matchAmount) {
		return Preconditionf("payment %d has only %s unmatched, need %s",
			paymentID, unmatched.StringFixed(2), matchAmount.StringFixed(2))
	}

	misclassified, err := findMisclassifiedDebit(ctx, tx, *payEntryID)
	if err != nil {
		return err
	}

	adjustment, err := BuildLinkAdjustmentLines(inv.Category, misclassified, inv.GSTAmount, tds, matchAmount)
	if err != nil {
		return err
	}

	var adjustmentID *int
	if len(adjustment) > 0 {
		id, err := s.ledger.CreateEntryTx(ctx, tx, CreateEntryInput{
			EntryDate:   entryDate,
			Period:      period,
			Description: fmt.Sprintf("Reclassification for invoice %d: %s", inv.ID, inv.Description),
			SourceType:  SourceAdjustment,
			SourceID:    &inv.ID,
			Lines:       adjustment,
			CreatedBy:   userID,
		})
		if err != nil {
			return err
		}
		adjustmentID = &id
	}

	// Move the cash-basis entry into the invoice's accrual month.
	if _, err := tx.Exec(ctx,
		"UPDATE ledger_entries SET period = $1 WHERE id = $2", period, *payEntryID,
	); err != nil {
		return fmt.Errorf("failed to re-period payment entry %d: %w", *payEntryID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payment_invoices (payment_id, invoice_id, amount, matched_by, notes)
		VALUES ($1, $2, $3, $4, 'linked at confirmation')
	`, paymentID, inv.ID, matchAmount, userID); err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments
		SET matched_amount = matched_amount + $1, unmatched_amount = unmatched_amount - $1
		WHERE id = $2
	`, matchAmount, paymentID); err != nil {
		return fmt.Errorf("failed to update payment split: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET status = 'paid', tds_amount = $1, paid_amount = $2, balance_due = 0,
		    ledger_entry_id = $3, updated_at = NOW()
		WHERE id = $4
	`, tds, matchAmount, adjustmentID, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to mark invoice %d paid: %w", inv.ID, err)
	}
	return nil
}

// findMisclassifiedDebit returns the code of the non-bank account the
// payment's original entry debited. Bank-imported outgoing payments are
// typically booked as DR <generic expense bucket> / CR bank.
func findMisclassifiedDebit(ctx context.Context, tx pgx.Tx, entryID int) (string, error) {
	rows, err := tx.Query(ctx, `
		SELECT a.code
		FROM ledger_entry_lines l
		JOIN accounts a ON a.id = l.account_id
		WHERE l.entry_id = $1 AND l.debit > 0
		ORDER BY l.id
	`, entryID)
	if err != nil {
		return "", fmt.Errorf("failed to query entry %d lines: %w", entryID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return "", fmt.Errorf("failed to scan line: %w", err)
		}
		if !isCashAccount(code) {
			return code, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return "", Preconditionf("payment entry %d has no non-bank debit to reclassify", entryID)
}

func isCashAccount(code string) bool {
	switch code {
	case AccountCash, AccountBankPayouts, AccountBankReceipts:
		return true
	default:
		return false
	}
}

func (s *invoiceService) Cancel(ctx context.Context, invoiceID int, userID string) (*Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := fetchInvoiceForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case InvoiceCancelled:
		return nil, Preconditionf("invoice %d is already cancelled", invoiceID)
	case InvoicePaid:
		return nil, Preconditionf("invoice %d is paid and cannot be cancelled", invoiceID)
	}

	// Give every matched payment its allocation back, then drop the matches.
	rows, err := tx.Query(ctx,
		"SELECT payment_id, amount FROM payment_invoices WHERE invoice_id = $1 ORDER BY id",
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	type matchRow struct {
		paymentID int
		amount    decimal.Decimal
	}
	var matches []matchRow
	for rows.Next() {
		var m matchRow
		if err := rows.Scan(&m.paymentID, &m.amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range matches {
		if _, err := tx.Exec(ctx, `
			UPDATE payments
			SET matched_amount = matched_amount - $1, unmatched_amount = unmatched_amount + $1
			WHERE id = $2
		`, m.amount, m.paymentID); err != nil {
			return nil, fmt.Errorf("failed to restore payment %d split: %w", m.paymentID, err)
		}
	}
	if len(matches) > 0 {
		if _, err := tx.Exec(ctx,
			"DELETE FROM payment_invoices WHERE invoice_id = $1", invoiceID,
		); err != nil {
			return nil, fmt.Errorf("failed to delete matches: %w", err)
		}
	}

	if inv.LedgerEntryID != nil {
		if _, err := s.ledger.ReverseEntryTx(ctx, tx, *inv.LedgerEntryID, userID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status = 'cancelled', paid_amount = 0, balance_due = 0, updated_at = NOW()
		WHERE id = $1
	`, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to cancel invoice %d: %w", invoiceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return s.GetInvoice(ctx, invoiceID)
}

const invoiceColumns = `id, direction, category, status, invoice_date, billing_period, party_id,
       description, total_amount, gst_amount, tds_amount, paid_amount, balance_due,
       ledger_entry_id, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var billingPeriod *string
	err := row.Scan(
		&inv.ID, &inv.Direction, &inv.Category, &inv.Status, &inv.InvoiceDate, &billingPeriod,
		&inv.PartyID, &inv.Description, &inv.TotalAmount, &inv.GSTAmount, &inv.TDSAmount,
		&inv.PaidAmount, &inv.BalanceDue, &inv.LedgerEntryID, &inv.CreatedBy,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if billingPeriod != nil {
		inv.BillingPeriod = *billingPeriod
	}
	return &inv, nil
}

func fetchInvoiceForUpdate(ctx context.Context, tx pgx.Tx, invoiceID int) (*Invoice, error) {
	inv, err := scanInvoice(tx.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = $1 FOR UPDATE", invoiceID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", invoiceID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, status *InvoiceStatus) ([]Invoice, error) {
	q := "SELECT " + invoiceColumns + " FROM invoices"
	var args []any
	if status != nil {
		args = append(args, string(*status))
		q += " WHERE status = $1"
	}
	q += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}
