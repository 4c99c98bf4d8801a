package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// suggestFetchLimit bounds the snapshot size for auto-match suggestions.
const suggestFetchLimit = 500

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)

// MatchScore grades one (payment, invoice) candidate pair.
type MatchScore struct {
	AmountScore int    `json:"amount_score"`
	DateScore   int    `json:"date_score"`
	Total       int    `json:"total"`
	Confidence  string `json:"confidence"`
}

// MatchSuggestion is one advisory pairing produced by Suggest. It is scored
// against a snapshot and must be re-validated before being applied.
type MatchSuggestion struct {
	PaymentID       int             `json:"payment_id"`
	InvoiceID       int             `json:"invoice_id"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
	Score           MatchScore      `json:"score"`
}

// SuggestionGroup holds one counterparty's suggested matches.
type SuggestionGroup struct {
	PartyID     int               `json:"party_id"`
	PartyName   string            `json:"party_name"`
	Suggestions []MatchSuggestion `json:"suggestions"`
}

// ApplyMatchInput is one pairing submitted to ApplyMatches.
type ApplyMatchInput struct {
	PaymentID int
	InvoiceID int
	Amount    decimal.Decimal
}

// MatchError reports why one ApplyMatches item was rejected.
type MatchError struct {
	PaymentID int    `json:"payment_id"`
	InvoiceID int    `json:"invoice_id"`
	Message   string `json:"message"`
}

// ApplyMatchesResult is the typed partial-success outcome of ApplyMatches.
type ApplyMatchesResult struct {
	Applied int          `json:"applied"`
	Errors  []MatchError `json:"errors"`
}

// ReconService matches outgoing payments against payable invoices: manual
// 1:1 matches, the symmetric unmatch, scored auto-suggestions, and a
// best-effort batch apply.
type ReconService interface {
	// Match allocates amount of a payment to an invoice, moving both the
	// payment's matched/unmatched split and the invoice's paid/balance split
	// in one transaction, and recomputing the invoice status.
	Match(ctx context.Context, paymentID, invoiceID int, amount decimal.Decimal, userID, notes string) error
	// Unmatch is the exact inverse of Match for an existing pairing.
	Unmatch(ctx context.Context, paymentID, invoiceID int, userID string) error
	// Suggest scores unmatched outgoing payments against open payable
	// invoices per counterparty. The read is a non-transactional snapshot;
	// suggestions are advisory, never authoritative.
	Suggest(ctx context.Context) ([]SuggestionGroup, error)
	// ApplyMatches re-validates each pair against live balances and applies
	// the valid ones; invalid pairs are reported, not fatal.
	ApplyMatches(ctx context.Context, items []ApplyMatchInput, userID string) (*ApplyMatchesResult, error)
}

type reconService struct {
	pool *pgxpool.Pool
}

func NewReconService(pool *pgxpool.Pool) ReconService {
	return &reconService{pool: pool}
}

// ── Scoring ──────────────────────────────────────────────────────────────────

// ScoreCandidate scores one (payment, invoice) pair. Amount closeness
// dominates: within one currency unit scores 100, then 90/70/40 at the
// 1%/5%/10% relative-difference tiers; farther apart the pair is discarded.
// Date proximity adds 30/20/10 for gaps within 31/62/93 days. Pairs below
// medium confidence (total < 60) are discarded.
func ScoreCandidate(p Payment, inv Invoice) (MatchScore, bool) {
	amountDiff := p.UnmatchedAmount.Sub(inv.BalanceDue).Abs()
	floor := inv.BalanceDue
	if floor.LessThan(epsilon) {
		floor = epsilon
	}
	pctDiff := amountDiff.Div(floor)

	var score MatchScore
	switch {
	case amountDiff.LessThanOrEqual(decimal.NewFromInt(1)):
		score.AmountScore = 100
	case pctDiff.LessThanOrEqual(decimal.NewFromFloat(0.01)):
		score.AmountScore = 90
	case pctDiff.LessThanOrEqual(decimal.NewFromFloat(0.05)):
		score.AmountScore = 70
	case pctDiff.LessThanOrEqual(decimal.NewFromFloat(0.10)):
		score.AmountScore = 40
	default:
		return MatchScore{}, false
	}

	if inv.InvoiceDate != nil {
		daysDiff := p.PaymentDate.Sub(*inv.InvoiceDate).Hours() / 24
		if daysDiff < 0 {
			daysDiff = -daysDiff
		}
		switch {
		case daysDiff <= 31:
			score.DateScore = 30
		case daysDiff <= 62:
			score.DateScore = 20
		case daysDiff <= 93:
			score.DateScore = 10
		}
	}

	score.Total = score.AmountScore + score.DateScore
	switch {
	case score.Total >= 90:
		score.Confidence = ConfidenceHigh
	case score.Total >= 60:
		score.Confidence = ConfidenceMedium
	default:
		return MatchScore{}, false
	}
	return score, true
}

// BuildSuggestions scores every (payment, invoice) pair per counterparty and
// greedily assigns 1:1 matches in descending score order, ties broken by
// enumeration order. Greedy is a deliberate approximation of optimal
// bipartite matching: predictable and fast, occasionally sub-maximal.
func BuildSuggestions(payments []Payment, invoices []Invoice, partyNames map[int]string) []SuggestionGroup {
	type candidate struct {
		payment Payment
		invoice Invoice
		score   MatchScore
	}

	byParty := map[int][]candidate{}
	var partyOrder []int
	for _, p := range payments {
		if p.PartyID == nil {
			continue
		}
		for _, inv := range invoices {
			if inv.PartyID == nil || *inv.PartyID != *p.PartyID {
				continue
			}
			score, ok := ScoreCandidate(p, inv)
			if !ok {
				continue
			}
			if _, seen := byParty[*p.PartyID]; !seen {
				partyOrder = append(partyOrder, *p.PartyID)
			}
			byParty[*p.PartyID] = append(byParty[*p.PartyID], candidate{payment: p, invoice: inv, score: score})
		}
	}

	var groups []SuggestionGroup
	for _, partyID := range partyOrder {
		candidates := byParty[partyID]
		// Stable sort keeps enumeration order for equal totals.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score.Total > candidates[j].score.Total
		})

		usedPayments := map[int]bool{}
		usedInvoices := map[int]bool{}
		group := SuggestionGroup{PartyID: partyID, PartyName: partyNames[partyID]}
		for _, c := range candidates {
			if usedPayments[c.payment.ID] || usedInvoices[c.invoice.ID] {
				continue
			}
			usedPayments[c.payment.ID] = true
			usedInvoices[c.invoice.ID] = true

			amount := c.payment.UnmatchedAmount
			if c.invoice.BalanceDue.LessThan(amount) {
				amount = c.invoice.BalanceDue
			}
			group.Suggestions = append(group.Suggestions, MatchSuggestion{
				PaymentID:       c.payment.ID,
				InvoiceID:       c.invoice.ID,
				SuggestedAmount: amount,
				Score:           c.score,
			})
		}
		if len(group.Suggestions) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

// ── Manual match / unmatch ───────────────────────────────────────────────────

func (s *reconService) Match(ctx context.Context, paymentID, invoiceID int, amount decimal.Decimal, userID, notes string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := applyMatchTx(ctx, tx, paymentID, invoiceID, amount, userID, notes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit match: %w", err)
	}
	return nil
}

// applyMatchTx validates a pairing against locked live rows and applies it.
// All validation happens before the first write, so a rejected pairing
// leaves the transaction clean for further work (ApplyMatches relies on
// this to skip invalid items without aborting the batch).
func applyMatchTx(ctx context.Context, tx pgx.Tx, paymentID, invoiceID int, amount decimal.Decimal, userID, notes string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Validationf("match amount must be positive, got %s", amount)
	}

	// Lock payment before invoice everywhere to avoid deadlocks.
	var payStatus PaymentStatus
	var unmatched decimal.Decimal
	err := tx.QueryRow(ctx,
		"SELECT status, unmatched_amount FROM payments WHERE id = $1 FOR UPDATE",
		paymentID,
	).Scan(&payStatus, &unmatched)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("payment %d not found", paymentID)
		}
		return fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}
	if payStatus == PaymentCancelled {
		return Preconditionf("payment %d is cancelled", paymentID)
	}

	var invStatus InvoiceStatus
	var balanceDue decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT status, balance_due FROM invoices WHERE id = $1 FOR UPDATE",
		invoiceID,
	).Scan(&invStatus, &balanceDue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("invoice %d not found", invoiceID)
		}
		return fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if invStatus != InvoiceConfirmed && invStatus != InvoicePartiallyPaid {
		return Preconditionf("invoice %d cannot be matched: status is %s", invoiceID, invStatus)
	}
	if amount.GreaterThan(unmatched.Add(epsilon)) {
		return Preconditionf("amount %s exceeds payment %d unmatched balance %s",
			amount.StringFixed(2), paymentID, unmatched.StringFixed(2))
	}
	if amount.GreaterThan(balanceDue.Add(epsilon)) {
		return Preconditionf("amount %s exceeds invoice %d balance due %s",
			amount.StringFixed(2), invoiceID, balanceDue.StringFixed(2))
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM payment_invoices WHERE payment_id = $1 AND invoice_id = $2)",
		paymentID, invoiceID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check existing match: %w", err)
	}
	if exists {
		return Preconditionf("payment %d is already matched to invoice %d", paymentID, invoiceID)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payment_invoices (payment_id, invoice_id, amount, matched_by, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, paymentID, invoiceID, amount, userID, notes); err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments
		SET matched_amount = matched_amount + $1, unmatched_amount = unmatched_amount - $1
		WHERE id = $2
	`, amount, paymentID); err != nil {
		return fmt.Errorf("failed to update payment split: %w", err)
	}

	newBalance := balanceDue.Sub(amount)
	newStatus := InvoicePartiallyPaid
	if newBalance.LessThanOrEqual(epsilon) {
		newStatus = InvoicePaid
	}
	if _, err := tx.Exec(ctx, `
		UPDATE invoices
		SET paid_amount = paid_amount + $1, balance_due = balance_due - $1,
		    status = $2, updated_at = NOW()
		WHERE id = $3
	`, amount, string(newStatus), invoiceID); err != nil {
		return fmt.Errorf("failed to update invoice split: %w", err)
	}
	return nil
}

func (s *reconService) Unmatch(ctx context.Context, paymentID, invoiceID int, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Same lock order as Match: payment, then invoice.
	var lockedPaymentID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM payments WHERE id = $1 FOR UPDATE", paymentID,
	).Scan(&lockedPaymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("payment %d not found", paymentID)
		}
		return fmt.Errorf("failed to lock payment %d: %w", paymentID, err)
	}

	var invStatus InvoiceStatus
	var paidAmount decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT status, paid_amount FROM invoices WHERE id = $1 FOR UPDATE",
		invoiceID,
	).Scan(&invStatus, &paidAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("invoice %d not found", invoiceID)
		}
		return fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if invStatus == InvoiceCancelled {
		return Preconditionf("invoice %d is cancelled", invoiceID)
	}

	var amount decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT amount FROM payment_invoices WHERE payment_id = $1 AND invoice_id = $2",
		paymentID, invoiceID,
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("no match between payment %d and invoice %d", paymentID, invoiceID)
		}
		return fmt.Errorf("failed to fetch match: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM payment_invoices WHERE payment_id = $1 AND invoice_id = $2",
		paymentID, invoiceID,
	); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments
		SET matched_amount = matched_amount - $1, unmatched_amount = unmatched_amount + $1
		WHERE id = $2
	`, amount, paymentID); err != nil {
		return fmt.Errorf("failed to restore payment split: %w", err)
	}

	newPaid := paidAmount.Sub(amount)
	newStatus := InvoicePartiallyPaid
	if newPaid.LessThanOrEqual(epsilon) {
		newStatus = InvoiceConfirmed
	}
	if _, err := tx.Exec(ctx, `
		UPDATE invoices
		SET paid_amount = paid_amount - $1, balance_due = balance_due + $1,
		    status = $2, updated_at = NOW()
		WHERE id = $3
	`, amount, string(newStatus), invoiceID); err != nil {
		return fmt.Errorf("failed to restore invoice split: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit unmatch: %w", err)
	}
	return nil
}

// ── Auto-suggestion ──────────────────────────────────────────────────────────

func (s *reconService) Suggest(ctx context.Context) ([]SuggestionGroup, error) {
	payments, err := s.fetchUnmatchedOutgoing(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := s.fetchOpenPayables(ctx)
	if err != nil {
		return nil, err
	}

	partyIDs := map[int]bool{}
	for _, p := range payments {
		if p.PartyID != nil {
			partyIDs[*p.PartyID] = true
		}
	}
	partyNames, err := s.fetchPartyNames(ctx, partyIDs)
	if err != nil {
		return nil, err
	}

	return BuildSuggestions(payments, invoices, partyNames), nil
}

func (s *reconService) fetchUnmatchedOutgoing(ctx context.Context) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE direction = 'outgoing' AND status = 'confirmed' AND unmatched_amount > 0.01
		ORDER BY payment_date, id
		LIMIT $1
	`, suggestFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched payments: %w", err)
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

func (s *reconService) fetchOpenPayables(ctx context.Context) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE direction = 'payable'
		  AND status IN ('confirmed', 'partially_paid')
		  AND balance_due > 0.01
		ORDER BY invoice_date, id
		LIMIT $1
	`, suggestFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query open invoices: %w", err)
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

func (s *reconService) fetchPartyNames(ctx context.Context, ids map[int]bool) (map[int]string, error) {
	names := map[int]string{}
	if len(ids) == 0 {
		return names, nil
	}
	idList := make([]int, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	rows, err := s.pool.Query(ctx, "SELECT id, name FROM parties WHERE id = ANY($1)", idList)
	if err != nil {
		return nil, fmt.Errorf("failed to query party names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan party name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// ── Batch apply ──────────────────────────────────────────────────────────────

func (s *reconService) ApplyMatches(ctx context.Context, items []ApplyMatchInput, userID string) (*ApplyMatchesResult, error) {
	result := &ApplyMatchesResult{}
	if len(items) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		err := applyMatchTx(ctx, tx, item.PaymentID, item.InvoiceID, item.Amount, userID, "auto-match")
		if err != nil {
			// Business rejections are per-item; anything else poisons the
			// whole batch and must roll back.
			var de *DomainError
			if errors.As(err, &de) {
				result.Errors = append(result.Errors, MatchError{
					PaymentID: item.PaymentID,
					InvoiceID: item.InvoiceID,
					Message:   de.Message,
				})
				continue
			}
			return nil, err
		}
		result.Applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit auto-matches: %w", err)
	}
	return result, nil
}
