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

// CreatePaymentInput describes a bank transaction being recorded.
type CreatePaymentInput struct {
	Direction   PaymentDirection
	Method      string
	Amount      decimal.Decimal
	PaymentDate time.Time
	PartyID     *int
	Reference   string
	CreatedBy   string
}

// PaymentService records standalone payments and books their ledger effect
// at creation time. Matched/unmatched splits move only through the
// reconciliation engine.
type PaymentService interface {
	// CreatePayment persists the payment and its ledger entry atomically.
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error)
	GetPayment(ctx context.Context, paymentID int) (*Payment, error)
	// ListPayments returns payments, newest first, optionally filtered by status.
	ListPayments(ctx context.Context, status *PaymentStatus) ([]Payment, error)
	// CancelPayment reverses the creation entry and cancels the payment.
	// Payments with any matched amount must be unmatched first.
	CancelPayment(ctx context.Context, paymentID int, userID string) error
}

type paymentService struct {
	pool   *pgxpool.Pool
	ledger LedgerService
}

func NewPaymentService(pool *pgxpool.Pool, ledger LedgerService) PaymentService {
	return &paymentService{pool: pool, ledger: ledger}
}

func (s *paymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, Validationf("payment amount must be positive, got %s", input.Amount)
	}
	if input.PaymentDate.IsZero() {
		return nil, Validationf("payment date is required")
	}
	if input.Method == "" {
		input.Method = "bank_transfer"
	}

	lines, err := BuildPaymentLines(input.Direction, input.Method, input.Amount)
	if err != nil {
		return nil, err
	}

	sourceType := SourcePaymentOutgoing
	if input.Direction == Incoming {
		sourceType = SourcePaymentReceived
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var paymentID int
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (direction, method, amount, matched_amount, unmatched_amount,
		                      payment_date, party_id, reference, created_by)
		VALUES ($1, $2, $3, 0, $3, $4, $5, $6, $7)
		RETURNING id
	`, string(input.Direction), input.Method, input.Amount,
		input.PaymentDate, input.PartyID, input.Reference, input.CreatedBy,
	).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	description := fmt.Sprintf("Payment %s %s", input.Direction, input.Amount.StringFixed(2))
	if input.Reference != "" {
		description = fmt.Sprintf("%s (%s)", description, input.Reference)
	}

	entryID, err := s.ledger.CreateEntryTx(ctx, tx, CreateEntryInput{
		EntryDate:   input.PaymentDate,
		Description: description,
		SourceType:  sourceType,
		SourceID:    &paymentID,
		Lines:       lines,
		CreatedBy:   input.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE payments SET ledger_entry_id = $1 WHERE id = $2", entryID, paymentID,
	); err != nil {
		return nil, fmt.Errorf("failed to link entry to payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	return s.GetPayment(ctx, paymentID)
}

const paymentColumns = `id, direction, method, amount, matched_amount, unmatched_amount,
       payment_date, party_id, reference, ledger_entry_id, status, created_by, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.Direction, &p.Method, &p.Amount, &p.MatchedAmount, &p.UnmatchedAmount,
		&p.PaymentDate, &p.PartyID, &p.Reference, &p.LedgerEntryID, &p.Status,
		&p.CreatedBy, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID int) (*Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = $1", paymentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("payment %d not found", paymentID)
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}
	return p, nil
}

func (s *paymentService) ListPayments(ctx context.Context, status *PaymentStatus) ([]Payment, error) {
	q := "SELECT " + paymentColumns + " FROM payments"
	var args []any
	if status != nil {
		args = append(args, string(*status))
		q += " WHERE status = $1"
	}
	q += " ORDER BY payment_date DESC, id DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *paymentService) CancelPayment(ctx context.Context, paymentID int, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status PaymentStatus
	var matched decimal.Decimal
	var entryID *int
	err = tx.QueryRow(ctx,
		"SELECT status, matched_amount, ledger_entry_id FROM payments WHERE id = $1 FOR UPDATE",
		paymentID,
	).Scan(&status, &matched, &entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("payment %d not found", paymentID)
		}
		return fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}
	if status == PaymentCancelled {
		return Preconditionf("payment %d is already cancelled", paymentID)
	}
	if matched.GreaterThan(epsilon) {
		return Preconditionf("payment %d has %s matched to invoices; unmatch first", paymentID, matched.StringFixed(2))
	}

	if entryID != nil {
		if _, err := s.ledger.ReverseEntryTx(ctx, tx, *entryID, userID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE payments SET status = 'cancelled' WHERE id = $1", paymentID,
	); err != nil {
		return fmt.Errorf("failed to cancel payment %d: %w", paymentID, err)
	}

	return tx.Commit(ctx)
}
