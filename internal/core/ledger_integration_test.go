package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"ops-backend/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed the chart of accounts used by the entry builder.
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE payment_invoices, payments, invoices, parties,
		               ledger_entry_lines, ledger_entries, accounts RESTART IDENTITY CASCADE;

		INSERT INTO accounts (code, name, type) VALUES
		('CASH',                    'Cash in Hand',           'asset'),
		('BANK_HDFC',               'HDFC Current Account',   'asset'),
		('BANK_HDFC_RECEIPTS',      'HDFC Receipts Account',  'asset'),
		('ACCOUNTS_RECEIVABLE',     'Accounts Receivable',    'asset'),
		('GST_INPUT',               'GST Input Credit',       'asset'),
		('INVENTORY_RAW_MATERIALS', 'Raw Materials',          'asset'),
		('ACCOUNTS_PAYABLE',        'Accounts Payable',       'liability'),
		('GST_OUTPUT',              'GST Output',             'liability'),
		('TDS_PAYABLE',             'TDS Payable',            'liability'),
		('SALES_REVENUE',           'Sales Revenue',          'income'),
		('MARKETPLACE_FEES',        'Marketplace Fees',       'direct_cost'),
		('OPERATING_EXPENSES',      'Operating Expenses',     'expense');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func fetchBalances(t *testing.T, ledger core.LedgerService) map[string]string {
	t.Helper()
	balances, err := ledger.GetBalances(context.Background())
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	out := make(map[string]string, len(balances))
	for _, a := range balances {
		out[a.Code] = a.Balance.StringFixed(2)
	}
	return out
}

func testEntryInput(description string, debitAccount, creditAccount, amount string) core.CreateEntryInput {
	amt, _ := decimal.NewFromString(amount)
	return core.CreateEntryInput{
		EntryDate:   time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Period:      "2025-04",
		Description: description,
		SourceType:  core.SourceManual,
		Lines: []core.EntryLineInput{
			{AccountCode: debitAccount, Debit: amt},
			{AccountCode: creditAccount, Credit: amt},
		},
		CreatedBy: "test-user",
	}
}

func TestLedger_CreateEntryAndBalances(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	entryID, err := ledger.CreateEntry(ctx, testEntryInput("raw material purchase",
		"INVENTORY_RAW_MATERIALS", "ACCOUNTS_PAYABLE", "10000.00"))
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	entry, err := ledger.GetEntry(ctx, entryID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry.Period != "2025-04" {
		t.Errorf("Expected period 2025-04, got %s", entry.Period)
	}
	if len(entry.Lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(entry.Lines))
	}
	if entry.IsReversed {
		t.Error("Fresh entry must not be flagged reversed")
	}

	balances := fetchBalances(t, ledger)
	// Asset balance runs debit-normal, liability credit-normal: both positive.
	if balances["INVENTORY_RAW_MATERIALS"] != "10000.00" {
		t.Errorf("Expected raw materials balance 10000.00, got %s", balances["INVENTORY_RAW_MATERIALS"])
	}
	if balances["ACCOUNTS_PAYABLE"] != "10000.00" {
		t.Errorf("Expected payable balance 10000.00, got %s", balances["ACCOUNTS_PAYABLE"])
	}
}

func TestLedger_RejectsUnbalancedAndUnknownAccounts(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	input := testEntryInput("unbalanced", "CASH", "SALES_REVENUE", "100.00")
	input.Lines[1].Credit = decimal.RequireFromString("90.00")
	if _, err := ledger.CreateEntry(ctx, input); err == nil {
		t.Fatal("Expected unbalanced entry to be rejected")
	}

	input = testEntryInput("ghost account", "NO_SUCH_ACCOUNT", "SALES_REVENUE", "100.00")
	if _, err := ledger.CreateEntry(ctx, input); err == nil {
		t.Fatal("Expected unknown account code to be rejected")
	}

	// Nothing may have been persisted by the failed attempts.
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no persisted entries, found %d", count)
	}
}

func TestLedger_Reversal(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	entryID, err := ledger.CreateEntry(ctx, testEntryInput("to be reversed",
		"OPERATING_EXPENSES", "BANK_HDFC", "5000.00"))
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	reversalID, err := ledger.ReverseEntry(ctx, entryID, "test-user")
	if err != nil {
		t.Fatalf("ReverseEntry failed: %v", err)
	}

	// Double reversal must fail with a precondition error.
	_, err = ledger.ReverseEntry(ctx, entryID, "test-user")
	if err == nil {
		t.Fatal("Expected double reversal to fail")
	}
	if core.KindOf(err) != core.KindPrecondition {
		t.Errorf("Expected precondition error on double reversal, got kind %s", core.KindOf(err))
	}

	// The mirror swaps sides, carries the reversal prefix, and stays in period.
	mirror, err := ledger.GetEntry(ctx, reversalID)
	if err != nil {
		t.Fatalf("GetEntry(mirror) failed: %v", err)
	}
	if mirror.Period != "2025-04" {
		t.Errorf("Expected mirror period 2025-04, got %s", mirror.Period)
	}
	if mirror.Description != "Reversal: to be reversed" {
		t.Errorf("Unexpected mirror description: %q", mirror.Description)
	}
	for _, line := range mirror.Lines {
		if line.AccountCode == "OPERATING_EXPENSES" && !line.Credit.Equal(decimal.RequireFromString("5000.00")) {
			t.Errorf("Expected expenses credited 5000.00 in mirror, got %s", line.Credit)
		}
		if line.AccountCode == "BANK_HDFC" && !line.Debit.Equal(decimal.RequireFromString("5000.00")) {
			t.Errorf("Expected bank debited 5000.00 in mirror, got %s", line.Debit)
		}
	}

	// Both sides are flagged reversed with mutual back-references, so
	// aggregation over non-reversed entries nets the pair out entirely.
	original, err := ledger.GetEntry(ctx, entryID)
	if err != nil {
		t.Fatalf("GetEntry(original) failed: %v", err)
	}
	if !original.IsReversed || original.ReversedByID == nil || *original.ReversedByID != reversalID {
		t.Error("Original must be flagged reversed and point at the mirror")
	}
	if !mirror.IsReversed || mirror.ReversedByID == nil || *mirror.ReversedByID != entryID {
		t.Error("Mirror must be flagged reversed and point at the original")
	}

	// Running balances are restored.
	balances := fetchBalances(t, ledger)
	if balances["OPERATING_EXPENSES"] != "0.00" {
		t.Errorf("Expected expenses balance 0.00 after reversal, got %s", balances["OPERATING_EXPENSES"])
	}
	if balances["BANK_HDFC"] != "0.00" {
		t.Errorf("Expected bank balance 0.00 after reversal, got %s", balances["BANK_HDFC"])
	}
}

func TestLedger_TrialBalanceExcludesReversed(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	reporting := core.NewReportingService(pool)
	ctx := context.Background()

	if _, err := ledger.CreateEntry(ctx, testEntryInput("kept",
		"OPERATING_EXPENSES", "BANK_HDFC", "1200.00")); err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	reversedID, err := ledger.CreateEntry(ctx, testEntryInput("mistake",
		"OPERATING_EXPENSES", "BANK_HDFC", "800.00"))
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	if _, err := ledger.ReverseEntry(ctx, reversedID, "test-user"); err != nil {
		t.Fatalf("ReverseEntry failed: %v", err)
	}

	tb, err := reporting.GetTrialBalance(ctx)
	if err != nil {
		t.Fatalf("GetTrialBalance failed: %v", err)
	}
	if !tb.InBalance {
		t.Error("Trial balance should reconcile with stored running balances")
	}
	for _, line := range tb.Accounts {
		if line.Code == "OPERATING_EXPENSES" {
			if line.Balance.StringFixed(2) != "1200.00" {
				t.Errorf("Expected recomputed expenses balance 1200.00, got %s", line.Balance.StringFixed(2))
			}
		}
	}
}
