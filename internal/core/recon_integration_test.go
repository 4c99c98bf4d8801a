package core_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ops-backend/internal/core"
)

func TestRecon_MatchUnmatchRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	payments := core.NewPaymentService(pool, ledger)
	recon := core.NewReconService(pool)
	ctx := context.Background()

	partyID := seedTDSParty(t, pool, "Shakti Textiles", "0")
	draft := draftPayableInvoice(t, invoices, partyID, "10000.00", "0.00")
	inv, err := invoices.Confirm(ctx, draft.ID, nil, "test-user")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	payment, err := payments.CreatePayment(ctx, core.CreatePaymentInput{
		Direction:   core.Outgoing,
		Amount:      decimal.RequireFromString("6000.00"),
		PaymentDate: time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		PartyID:     &partyID,
		CreatedBy:   "test-user",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	// Partial allocation leaves the invoice partially paid.
	if err := recon.Match(ctx, payment.ID, inv.ID, decimal.RequireFromString("6000.00"), "test-user", "UTR456"); err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	inv2, _ := invoices.GetInvoice(ctx, inv.ID)
	if inv2.Status != core.InvoicePartiallyPaid {
		t.Errorf("Expected partially_paid, got %s", inv2.Status)
	}
	if inv2.PaidAmount.StringFixed(2) != "6000.00" || inv2.BalanceDue.StringFixed(2) != "4000.00" {
		t.Errorf("Unexpected split: paid %s, due %s", inv2.PaidAmount, inv2.BalanceDue)
	}
	p2, _ := payments.GetPayment(ctx, payment.ID)
	if p2.MatchedAmount.StringFixed(2) != "6000.00" || p2.UnmatchedAmount.StringFixed(2) != "0.00" {
		t.Errorf("Unexpected payment split: matched %s, unmatched %s", p2.MatchedAmount, p2.UnmatchedAmount)
	}

	// The same pair cannot match twice, and overallocation is rejected.
	if err := recon.Match(ctx, payment.ID, inv.ID, decimal.RequireFromString("1.00"), "test-user", ""); core.KindOf(err) != core.KindPrecondition {
		t.Errorf("Expected precondition error on duplicate pair, got %v", err)
	}

	// Unmatch restores both splits exactly.
	if err := recon.Unmatch(ctx, payment.ID, inv.ID, "test-user"); err != nil {
		t.Fatalf("Unmatch failed: %v", err)
	}
	inv3, _ := invoices.GetInvoice(ctx, inv.ID)
	if inv3.Status != core.InvoiceConfirmed {
		t.Errorf("Expected confirmed after unmatch, got %s", inv3.Status)
	}
	if inv3.BalanceDue.StringFixed(2) != "10000.00" || !inv3.PaidAmount.IsZero() {
		t.Errorf("Unexpected split after unmatch: paid %s, due %s", inv3.PaidAmount, inv3.BalanceDue)
	}
	p3, _ := payments.GetPayment(ctx, payment.ID)
	if p3.UnmatchedAmount.StringFixed(2) != "6000.00" {
		t.Errorf("Expected unmatched 6000.00 after unmatch, got %s", p3.UnmatchedAmount)
	}

	// Unmatching a pair that no longer exists is a not-found error.
	if err := recon.Unmatch(ctx, payment.ID, inv.ID, "test-user"); core.KindOf(err) != core.KindNotFound {
		t.Errorf("Expected not-found on second unmatch, got %v", err)
	}

	// A payment that does not exist is reported as such, not as a missing
	// pair.
	err = recon.Unmatch(ctx, 999999, inv.ID, "test-user")
	if core.KindOf(err) != core.KindNotFound {
		t.Fatalf("Expected not-found for unknown payment, got %v", err)
	}
	if !strings.Contains(err.Error(), "payment 999999") {
		t.Errorf("Expected the payment itself to be reported missing, got %q", err)
	}
}

func TestRecon_MatchRejectsOverallocation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	payments := core.NewPaymentService(pool, ledger)
	recon := core.NewReconService(pool)
	ctx := context.Background()

	partyID := seedTDSParty(t, pool, "Shakti Textiles", "0")
	draft := draftPayableInvoice(t, invoices, partyID, "5000.00", "0.00")
	inv, err := invoices.Confirm(ctx, draft.ID, nil, "test-user")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	payment, err := payments.CreatePayment(ctx, core.CreatePaymentInput{
		Direction:   core.Outgoing,
		Amount:      decimal.RequireFromString("3000.00"),
		PaymentDate: time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		PartyID:     &partyID,
		CreatedBy:   "test-user",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	// More than the payment's unmatched balance.
	err = recon.Match(ctx, payment.ID, inv.ID, decimal.RequireFromString("3500.00"), "test-user", "")
	if core.KindOf(err) != core.KindPrecondition {
		t.Errorf("Expected precondition error, got %v", err)
	}
	// Draft invoices cannot be matched.
	draft2 := draftPayableInvoice(t, invoices, partyID, "700.00", "0.00")
	err = recon.Match(ctx, payment.ID, draft2.ID, decimal.RequireFromString("700.00"), "test-user", "")
	if core.KindOf(err) != core.KindPrecondition {
		t.Errorf("Expected precondition error matching a draft, got %v", err)
	}
	// Zero and negative amounts are validation failures.
	err = recon.Match(ctx, payment.ID, inv.ID, decimal.Zero, "test-user", "")
	if core.KindOf(err) != core.KindValidation {
		t.Errorf("Expected validation error on zero amount, got %v", err)
	}
}

func TestRecon_SuggestAndApply(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	payments := core.NewPaymentService(pool, ledger)
	recon := core.NewReconService(pool)
	ctx := context.Background()

	partyID := seedTDSParty(t, pool, "Shakti Textiles", "0")

	inv1Draft := draftPayableInvoice(t, invoices, partyID, "10000.00", "0.00")
	inv1, err := invoices.Confirm(ctx, inv1Draft.ID, nil, "test-user")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	pay1, err := payments.CreatePayment(ctx, core.CreatePaymentInput{
		Direction:   core.Outgoing,
		Amount:      decimal.RequireFromString("10000.00"),
		PaymentDate: time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		PartyID:     &partyID,
		CreatedBy:   "test-user",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	groups, err := recon.Suggest(ctx)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Suggestions) != 1 {
		t.Fatalf("Expected one suggestion group with one pairing, got %+v", groups)
	}
	s := groups[0].Suggestions[0]
	if s.PaymentID != pay1.ID || s.InvoiceID != inv1.ID {
		t.Errorf("Unexpected pairing: payment %d, invoice %d", s.PaymentID, s.InvoiceID)
	}
	if s.Score.Confidence != core.ConfidenceHigh {
		t.Errorf("Expected high confidence for exact match, got %s", s.Score.Confidence)
	}

	// Apply the good suggestion alongside a bogus one: the good pair lands,
	// the bad pair is reported, the batch does not abort.
	result, err := recon.ApplyMatches(ctx, []core.ApplyMatchInput{
		{PaymentID: pay1.ID, InvoiceID: inv1.ID, Amount: s.SuggestedAmount},
		{PaymentID: 999999, InvoiceID: inv1.ID, Amount: decimal.RequireFromString("1.00")},
	}, "test-user")
	if err != nil {
		t.Fatalf("ApplyMatches failed: %v", err)
	}
	if result.Applied != 1 {
		t.Errorf("Expected 1 applied, got %d", result.Applied)
	}
	if len(result.Errors) != 1 || result.Errors[0].PaymentID != 999999 {
		t.Errorf("Expected one reported rejection for the bogus payment, got %+v", result.Errors)
	}

	inv1After, _ := invoices.GetInvoice(ctx, inv1.ID)
	if inv1After.Status != core.InvoicePaid {
		t.Errorf("Expected paid after applying exact suggestion, got %s", inv1After.Status)
	}

	// Settled invoices drop out of the next suggestion run.
	groups, err = recon.Suggest(ctx)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("Expected no suggestions after settlement, got %+v", groups)
	}
}
