package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// TrialBalanceLine is one account's recomputed position: debit and credit
// totals over all non-reversed entry lines, plus the stored running balance
// for cross-checking.
type TrialBalanceLine struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          AccountType     `json:"type"`
	DebitTotal    decimal.Decimal `json:"debit_total"`
	CreditTotal   decimal.Decimal `json:"credit_total"`
	Balance       decimal.Decimal `json:"balance"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
}

// TrialBalance is the full recomputed trial balance. InBalance is false when
// any account's recomputed balance drifts from its stored running balance,
// which indicates a posting bug.
type TrialBalance struct {
	Accounts  []TrialBalanceLine `json:"accounts"`
	InBalance bool               `json:"in_balance"`
}

// PLLine is one income or cost account's contribution for a period.
type PLLine struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// PLReport is the profit & loss statement for one YYYY-MM period.
// Reversed entries (and their mirrors) are excluded.
type PLReport struct {
	Period      string          `json:"period"`
	Income      []PLLine        `json:"income"`
	DirectCosts []PLLine        `json:"direct_costs"`
	Expenses    []PLLine        `json:"expenses"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	NetIncome   decimal.Decimal `json:"net_income"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only aggregation over the ledger. All
// aggregation skips reversed entries, which stay queryable for audit.
type ReportingService interface {
	// GetTrialBalance recomputes every account's balance from its
	// non-reversed lines and compares against the stored running balance.
	GetTrialBalance(ctx context.Context) (*TrialBalance, error)
	// GetProfitAndLoss reports income and costs attributed to one period.
	GetProfitAndLoss(ctx context.Context, period string) (*PLReport, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) GetTrialBalance(ctx context.Context) (*TrialBalance, error) {
	const q = `
		SELECT a.code, a.name, a.type, a.balance,
		       COALESCE(s.debit_total,  0) AS debit_total,
		       COALESCE(s.credit_total, 0) AS credit_total
		FROM accounts a
		LEFT JOIN (
		    SELECT l.account_id,
		           SUM(l.debit)  AS debit_total,
		           SUM(l.credit) AS credit_total
		    FROM ledger_entry_lines l
		    JOIN ledger_entries e ON e.id = l.entry_id
		    WHERE e.is_reversed = FALSE
		    GROUP BY l.account_id
		) s ON s.account_id = a.id
		ORDER BY a.code`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query trial balance: %w", err)
	}
	defer rows.Close()

	report := &TrialBalance{InBalance: true}
	for rows.Next() {
		var line TrialBalanceLine
		if err := rows.Scan(&line.Code, &line.Name, &line.Type, &line.StoredBalance,
			&line.DebitTotal, &line.CreditTotal); err != nil {
			return nil, fmt.Errorf("failed to scan trial balance row: %w", err)
		}

		line.Balance = line.DebitTotal.Sub(line.CreditTotal)
		if !line.Type.DebitNormal() {
			line.Balance = line.Balance.Neg()
		}
		if line.Balance.Sub(line.StoredBalance).Abs().GreaterThan(epsilon) {
			report.InBalance = false
		}
		report.Accounts = append(report.Accounts, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trial balance row iteration error: %w", err)
	}
	return report, nil
}

func (s *reportingService) GetProfitAndLoss(ctx context.Context, period string) (*PLReport, error) {
	if !ValidPeriod(period) {
		return nil, Validationf("invalid period %q, want YYYY-MM", period)
	}

	const q = `
		SELECT a.code, a.name, a.type,
		       COALESCE(s.debit_total,  0) AS debit_total,
		       COALESCE(s.credit_total, 0) AS credit_total
		FROM accounts a
		LEFT JOIN (
		    SELECT l.account_id,
		           SUM(l.debit)  AS debit_total,
		           SUM(l.credit) AS credit_total
		    FROM ledger_entry_lines l
		    JOIN ledger_entries e ON e.id = l.entry_id
		    WHERE e.is_reversed = FALSE
		      AND e.period = $1
		    GROUP BY l.account_id
		) s ON s.account_id = a.id
		WHERE a.type IN ('income', 'direct_cost', 'expense')
		ORDER BY a.type, a.code`

	rows, err := s.pool.Query(ctx, q, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query P&L: %w", err)
	}
	defer rows.Close()

	report := &PLReport{Period: period}
	var totalIncome, totalDirect, totalExpense decimal.Decimal

	for rows.Next() {
		var code, name string
		var accType AccountType
		var debit, credit decimal.Decimal
		if err := rows.Scan(&code, &name, &accType, &debit, &credit); err != nil {
			return nil, fmt.Errorf("failed to scan P&L row: %w", err)
		}

		switch accType {
		case Income:
			bal := credit.Sub(debit)
			report.Income = append(report.Income, PLLine{Code: code, Name: name, Balance: bal})
			totalIncome = totalIncome.Add(bal)
		case DirectCost:
			bal := debit.Sub(credit)
			report.DirectCosts = append(report.DirectCosts, PLLine{Code: code, Name: name, Balance: bal})
			totalDirect = totalDirect.Add(bal)
		case Expense:
			bal := debit.Sub(credit)
			report.Expenses = append(report.Expenses, PLLine{Code: code, Name: name, Balance: bal})
			totalExpense = totalExpense.Add(bal)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("P&L row iteration error: %w", err)
	}

	report.GrossProfit = totalIncome.Sub(totalDirect)
	report.NetIncome = report.GrossProfit.Sub(totalExpense)
	return report, nil
}
