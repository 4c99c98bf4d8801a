package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ops-backend/internal/core"
)

func seedTDSParty(t *testing.T, pool *pgxpool.Pool, name string, rate string) int {
	t.Helper()
	party, err := core.NewPartyService(pool).CreateParty(context.Background(), core.PartyInput{
		Name:          name,
		Category:      core.CategoryFabric,
		TDSApplicable: true,
		TDSRate:       decimal.RequireFromString(rate),
		TDSSection:    "194C",
	})
	if err != nil {
		t.Fatalf("Failed to seed party: %v", err)
	}
	return party.ID
}

func draftPayableInvoice(t *testing.T, invoices core.InvoiceService, partyID int, total, gst string) *core.Invoice {
	t.Helper()
	invoiceDate := time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC)
	inv, err := invoices.CreateDraft(context.Background(), core.CreateInvoiceInput{
		Direction:     core.Payable,
		Category:      core.CategoryFabric,
		InvoiceDate:   &invoiceDate,
		BillingPeriod: "2025-04",
		PartyID:       &partyID,
		Description:   "cotton fabric lot",
		TotalAmount:   decimal.RequireFromString(total),
		GSTAmount:     decimal.RequireFromString(gst),
		CreatedBy:     "test-user",
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	return inv
}

func TestInvoice_ConfirmPayableWithTDS(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	ctx := context.Background()

	partyID := seedTDSParty(t, pool, "Shakti Textiles", "2")
	draft := draftPayableInvoice(t, invoices, partyID, "11800.00", "1800.00")

	if draft.Status != core.InvoiceDraft {
		t.Fatalf("Expected draft status, got %s", draft.Status)
	}
	if draft.LedgerEntryID != nil {
		t.Fatal("Draft must not have a ledger entry")
	}

	inv, err := invoices.Confirm(ctx, draft.ID, nil, "test-user")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	// TDS is 2% of the 10000 net; AP carries total − TDS.
	if inv.Status != core.InvoiceConfirmed {
		t.Errorf("Expected confirmed status, got %s", inv.Status)
	}
	if inv.TDSAmount.StringFixed(2) != "200.00" {
		t.Errorf("Expected TDS 200.00, got %s", inv.TDSAmount.StringFixed(2))
	}
	if inv.BalanceDue.StringFixed(2) != "11600.00" {
		t.Errorf("Expected balance due 11600.00, got %s", inv.BalanceDue.StringFixed(2))
	}
	if inv.LedgerEntryID == nil {
		t.Fatal("Confirmed invoice must reference its ledger entry")
	}

	entry, err := ledger.GetEntry(ctx, *inv.LedgerEntryID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry.Period != "2025-04" {
		t.Errorf("Expected accrual period 2025-04, got %s", entry.Period)
	}
	if len(entry.Lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d", len(entry.Lines))
	}

	balances := fetchBalances(t, ledger)
	if balances["INVENTORY_RAW_MATERIALS"] != "10000.00" {
		t.Errorf("Expected raw materials 10000.00, got %s", balances["INVENTORY_RAW_MATERIALS"])
	}
	if balances["GST_INPUT"] != "1800.00" {
		t.Errorf("Expected GST input 1800.00, got %s", balances["GST_INPUT"])
	}
	if balances["ACCOUNTS_PAYABLE"] != "11600.00" {
		t.Errorf("Expected payable 11600.00, got %s", balances["ACCOUNTS_PAYABLE"])
	}
	if balances["TDS_PAYABLE"] != "200.00" {
		t.Errorf("Expected TDS payable 200.00, got %s", balances["TDS_PAYABLE"])
	}

	// Confirmed invoices cannot be confirmed again or edited.
	if _, err := invoices.Confirm(ctx, draft.ID, nil, "test-user"); core.KindOf(err) != core.KindPrecondition {
		t.Errorf("Expected precondition error on double confirm, got %v", err)
	}
}

func TestInvoice_ConfirmReceivable(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	ctx := context.Background()

	invoiceDate := time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC)
	draft, err := invoices.CreateDraft(ctx, core.CreateInvoiceInput{
		Direction:   core.Receivable,
		InvoiceDate: &invoiceDate,
		Description: "wholesale order",
		TotalAmount: decimal.RequireFromString("5900.00"),
		GSTAmount:   decimal.RequireFromString("900.00"),
		CreatedBy:   "test-user",
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}

	inv, err := invoices.Confirm(ctx, draft.ID, nil, "test-user")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	// Receivables never carry TDS.
	if !inv.TDSAmount.IsZero() {
		t.Errorf("Expected zero TDS on a receivable, got %s", inv.TDSAmount)
	}
	if inv.BalanceDue.StringFixed(2) != "5900.00" {
		t.Errorf("Expected balance due 5900.00, got %s", inv.BalanceDue.StringFixed(2))
	}

	balances := fetchBalances(t, ledger)
	if balances["ACCOUNTS_RECEIVABLE"] != "5900.00" {
		t.Errorf("Expected receivable 5900.00, got %s", balances["ACCOUNTS_RECEIVABLE"])
	}
	if balances["SALES_REVENUE"] != "5000.00" {
		t.Errorf("Expected revenue 5000.00, got %s", balances["SALES_REVENUE"])
	}
	if balances["GST_OUTPUT"] != "900.00" {
		t.Errorf("Expected GST output 900.00, got %s", balances["GST_OUTPUT"])
	}
}

func TestInvoice_CancelRestoresMatchesAndBalances(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	payments := core.NewPaymentService(pool, ledger)
	recon := core.NewReconService(pool)
	ctx := context.Background()

	partyID := seedTDSParty(t, pool, "Shakti Textiles", "2")
	draft := draftPayableInvoice(t, invoices, partyID, "11800.00", "1800.00")
	inv, err := invoices.Confirm(ctx, draft.ID, nil, "test-user")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	payment, err := payments.CreatePayment(ctx, core.CreatePaymentInput{
		Direction:   core.Outgoing,
		Amount:      decimal.RequireFromString("11600.00"),
		PaymentDate: time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		PartyID:     &partyID,
		Reference:   "UTR123",
		CreatedBy:   "test-user",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	if err := recon.Match(ctx, payment.ID, inv.ID, decimal.RequireFromString("11600.00"), "test-user", ""); err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	paid, err := invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if paid.Status != core.InvoicePaid {
		t.Fatalf("Expected paid status after full match, got %s", paid.Status)
	}

	// Paid invoices cannot be cancelled.
	if _, err := invoices.Cancel(ctx, inv.ID, "test-user"); core.KindOf(err) != core.KindPrecondition {
		t.Fatalf("Expected precondition error cancelling a paid invoice, got %v", err)
	}

	// Release the match first, then cancel.
	if err := recon.Unmatch(ctx, payment.ID, inv.ID, "test-user"); err != nil {
		t.Fatalf("Unmatch failed: %v", err)
	}
	cancelled, err := invoices.Cancel(ctx, inv.ID, "test-user")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != core.InvoiceCancelled {
		t.Errorf("Expected cancelled status, got %s", cancelled.Status)
	}
	if !cancelled.BalanceDue.IsZero() || !cancelled.PaidAmount.IsZero() {
		t.Error("Cancelled invoice must carry no paid or due amounts")
	}

	// The payment got its allocation back and the accrual was reversed.
	p, err := payments.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if p.UnmatchedAmount.StringFixed(2) != "11600.00" {
		t.Errorf("Expected unmatched 11600.00 after cancel, got %s", p.UnmatchedAmount.StringFixed(2))
	}

	balances := fetchBalances(t, ledger)
	if balances["INVENTORY_RAW_MATERIALS"] != "0.00" {
		t.Errorf("Expected raw materials 0.00 after reversal, got %s", balances["INVENTORY_RAW_MATERIALS"])
	}
	if balances["TDS_PAYABLE"] != "0.00" {
		t.Errorf("Expected TDS payable 0.00 after reversal, got %s", balances["TDS_PAYABLE"])
	}
}

func TestInvoice_CancelPartiallyPaidReleasesLiveMatch(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	payments := core.NewPaymentService(pool, ledger)
	recon := core.NewReconService(pool)
	ctx := context.Background()

	partyID := seedTDSParty(t, pool, "Shakti Textiles", "2")
	draft := draftPayableInvoice(t, invoices, partyID, "11800.00", "1800.00")
	inv, err := invoices.Confirm(ctx, draft.ID, nil, "test-user")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	payment, err := payments.CreatePayment(ctx, core.CreatePaymentInput{
		Direction:   core.Outgoing,
		Amount:      decimal.RequireFromString("4000.00"),
		PaymentDate: time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		PartyID:     &partyID,
		Reference:   "UTR456",
		CreatedBy:   "test-user",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	if err := recon.Match(ctx, payment.ID, inv.ID, decimal.RequireFromString("4000.00"), "test-user", ""); err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	partial, err := invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if partial.Status != core.InvoicePartiallyPaid {
		t.Fatalf("Expected partially_paid status, got %s", partial.Status)
	}

	// Cancel with the match still in place: the allocation comes back to
	// the payment and the match row is deleted in the same transaction.
	cancelled, err := invoices.Cancel(ctx, inv.ID, "test-user")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != core.InvoiceCancelled {
		t.Errorf("Expected cancelled status, got %s", cancelled.Status)
	}
	if !cancelled.BalanceDue.IsZero() || !cancelled.PaidAmount.IsZero() {
		t.Error("Cancelled invoice must carry no paid or due amounts")
	}

	p, err := payments.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if p.UnmatchedAmount.StringFixed(2) != "4000.00" {
		t.Errorf("Expected unmatched restored to 4000.00, got %s", p.UnmatchedAmount.StringFixed(2))
	}
	if !p.MatchedAmount.IsZero() {
		t.Errorf("Expected matched amount 0.00, got %s", p.MatchedAmount.StringFixed(2))
	}

	var matchCount int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM payment_invoices WHERE invoice_id = $1", inv.ID,
	).Scan(&matchCount); err != nil {
		t.Fatalf("Failed to count matches: %v", err)
	}
	if matchCount != 0 {
		t.Errorf("Expected no match rows after cancel, got %d", matchCount)
	}

	// The accrual was reversed; the bank still shows the standalone payment.
	balances := fetchBalances(t, ledger)
	if balances["INVENTORY_RAW_MATERIALS"] != "0.00" {
		t.Errorf("Expected raw materials 0.00 after reversal, got %s", balances["INVENTORY_RAW_MATERIALS"])
	}
	if balances["ACCOUNTS_PAYABLE"] != "0.00" {
		t.Errorf("Expected accounts payable 0.00 after reversal, got %s", balances["ACCOUNTS_PAYABLE"])
	}
	if balances["TDS_PAYABLE"] != "0.00" {
		t.Errorf("Expected TDS payable 0.00 after reversal, got %s", balances["TDS_PAYABLE"])
	}
	if balances["BANK_HDFC"] != "-4000.00" {
		t.Errorf("Expected bank down 4000.00, got %s", balances["BANK_HDFC"])
	}
}

func TestInvoice_ConfirmAgainstLinkedPayment(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	payments := core.NewPaymentService(pool, ledger)
	ctx := context.Background()

	partyID := seedTDSParty(t, pool, "Shakti Textiles", "2")

	// Money already left the bank as a standalone transfer of total − TDS.
	payment, err := payments.CreatePayment(ctx, core.CreatePaymentInput{
		Direction:   core.Outgoing,
		Amount:      decimal.RequireFromString("11600.00"),
		PaymentDate: time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC),
		PartyID:     &partyID,
		CreatedBy:   "test-user",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	draft := draftPayableInvoice(t, invoices, partyID, "11800.00", "1800.00")
	inv, err := invoices.Confirm(ctx, draft.ID, &payment.ID, "test-user")
	if err != nil {
		t.Fatalf("Confirm against payment failed: %v", err)
	}

	// The invoice settles outright and the payment is fully allocated.
	if inv.Status != core.InvoicePaid {
		t.Errorf("Expected paid status, got %s", inv.Status)
	}
	if inv.PaidAmount.StringFixed(2) != "11600.00" {
		t.Errorf("Expected paid amount 11600.00, got %s", inv.PaidAmount.StringFixed(2))
	}
	if !inv.BalanceDue.IsZero() {
		t.Errorf("Expected zero balance due, got %s", inv.BalanceDue)
	}

	p, err := payments.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if !p.UnmatchedAmount.IsZero() {
		t.Errorf("Expected fully matched payment, got unmatched %s", p.UnmatchedAmount.StringFixed(2))
	}

	// The payment's cash entry moved into the invoice's accrual period.
	if p.LedgerEntryID == nil {
		t.Fatal("Payment must reference its ledger entry")
	}
	payEntry, err := ledger.GetEntry(ctx, *p.LedgerEntryID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if payEntry.Period != "2025-04" {
		t.Errorf("Expected payment entry re-anchored to 2025-04, got %s", payEntry.Period)
	}

	// Net ledger effect: expense recognised, GST claimed, TDS withheld,
	// AP flat, bank down by the transfer.
	balances := fetchBalances(t, ledger)
	if balances["INVENTORY_RAW_MATERIALS"] != "10000.00" {
		t.Errorf("Expected raw materials 10000.00, got %s", balances["INVENTORY_RAW_MATERIALS"])
	}
	if balances["GST_INPUT"] != "1800.00" {
		t.Errorf("Expected GST input 1800.00, got %s", balances["GST_INPUT"])
	}
	if balances["TDS_PAYABLE"] != "200.00" {
		t.Errorf("Expected TDS payable 200.00, got %s", balances["TDS_PAYABLE"])
	}
	if balances["ACCOUNTS_PAYABLE"] != "0.00" {
		t.Errorf("Expected accounts payable flat, got %s", balances["ACCOUNTS_PAYABLE"])
	}
	if balances["BANK_HDFC"] != "-11600.00" {
		t.Errorf("Expected bank down 11600.00, got %s", balances["BANK_HDFC"])
	}

	// An unknown linked payment fails at the payment lock, leaving the
	// draft untouched.
	draft2 := draftPayableInvoice(t, invoices, partyID, "2360.00", "360.00")
	bogusPaymentID := 999999
	if _, err := invoices.Confirm(ctx, draft2.ID, &bogusPaymentID, "test-user"); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("Expected not-found for unknown linked payment, got %v", err)
	}
	stillDraft, err := invoices.GetInvoice(ctx, draft2.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if stillDraft.Status != core.InvoiceDraft {
		t.Errorf("Expected draft status after failed confirm, got %s", stillDraft.Status)
	}
}
