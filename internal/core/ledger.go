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

// CreateEntryInput describes one balanced journal entry to persist.
type CreateEntryInput struct {
	EntryDate   time.Time
	Period      string // YYYY-MM; derived from EntryDate when empty
	Description string
	SourceType  SourceType
	SourceID    *int
	Lines       []EntryLineInput
	CreatedBy   string
}

// LedgerService is the durable store for accounts and journal entries.
// Every financial event in the system writes through it.
type LedgerService interface {
	// CreateEntry validates and persists a balanced entry plus its lines,
	// updating each referenced account's running balance, as one transaction.
	CreateEntry(ctx context.Context, input CreateEntryInput) (int, error)
	// CreateEntryTx is CreateEntry inside a caller-owned transaction, for
	// operations that must post an entry atomically with other row updates.
	CreateEntryTx(ctx context.Context, tx pgx.Tx, input CreateEntryInput) (int, error)

	// ReverseEntry creates a mirror entry (debits/credits swapped) in the
	// original's period and flags the original as reversed. The original's
	// lines are never mutated or deleted.
	ReverseEntry(ctx context.Context, entryID int, userID string) (int, error)
	ReverseEntryTx(ctx context.Context, tx pgx.Tx, entryID int, userID string) (int, error)

	GetEntry(ctx context.Context, entryID int) (*LedgerEntry, error)
	// GetBalances returns every account with its stored running balance.
	GetBalances(ctx context.Context) ([]Account, error)
}

type ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) LedgerService {
	return &ledger{pool: pool}
}

func (l *ledger) CreateEntry(ctx context.Context, input CreateEntryInput) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := l.CreateEntryTx(ctx, tx, input)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit entry: %w", err)
	}
	return id, nil
}

func (l *ledger) CreateEntryTx(ctx context.Context, tx pgx.Tx, input CreateEntryInput) (int, error) {
	// Defense in depth: the builders already balance their output, but the
	// store never trusts a caller-supplied line set.
	if err := checkBalanced(input.Lines); err != nil {
		return 0, err
	}

	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now()
	}
	period := input.Period
	if period == "" {
		period = PeriodFromDate(entryDate)
	}
	if !ValidPeriod(period) {
		return 0, Validationf("invalid accounting period %q, want YYYY-MM", period)
	}
	if input.SourceType == "" {
		return 0, Validationf("entry source type is required")
	}

	var entryID int
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (entry_date, period, description, source_type, source_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entryDate, period, input.Description, string(input.SourceType), input.SourceID, input.CreatedBy).Scan(&entryID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	for _, line := range input.Lines {
		accountID, accountType, err := resolveAccount(ctx, tx, line.AccountCode)
		if err != nil {
			return 0, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ledger_entry_lines (entry_id, account_id, debit, credit, description)
			VALUES ($1, $2, $3, $4, $5)
		`, entryID, accountID, line.Debit, line.Credit, line.Description)
		if err != nil {
			return 0, fmt.Errorf("failed to insert line for %s: %w", line.AccountCode, err)
		}

		if err := applyBalanceDelta(ctx, tx, accountID, accountType, line.Debit, line.Credit); err != nil {
			return 0, err
		}
	}

	return entryID, nil
}

func (l *ledger) ReverseEntry(ctx context.Context, entryID int, userID string) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	reversalID, err := l.ReverseEntryTx(ctx, tx, entryID, userID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit reversal: %w", err)
	}
	return reversalID, nil
}

func (l *ledger) ReverseEntryTx(ctx context.Context, tx pgx.Tx, entryID int, userID string) (int, error) {
	var entryDate time.Time
	var period, description, sourceType string
	var sourceID *int
	var isReversed bool
	err := tx.QueryRow(ctx, `
		SELECT entry_date, period, description, source_type, source_id, is_reversed
		FROM ledger_entries
		WHERE id = $1
		FOR UPDATE
	`, entryID).Scan(&entryDate, &period, &description, &sourceType, &sourceID, &isReversed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, NotFoundf("ledger entry %d not found", entryID)
		}
		return 0, fmt.Errorf("failed to fetch entry %d: %w", entryID, err)
	}
	if isReversed {
		return 0, Preconditionf("ledger entry %d is already reversed", entryID)
	}

	// The mirror is born flagged reversed with a back-reference to the
	// original, so balance and P&L aggregation (which skip reversed entries)
	// see the pair net to zero, and reversing a reversal is rejected.
	var reversalID int
	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (entry_date, period, description, source_type, source_id, created_by, is_reversed, reversed_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		RETURNING id
	`, entryDate, period, "Reversal: "+description, sourceType, sourceID, userID, entryID).Scan(&reversalID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reversal entry: %w", err)
	}

	rows, err := tx.Query(ctx,
		"SELECT account_id, debit, credit, description FROM ledger_entry_lines WHERE entry_id = $1 ORDER BY id",
		entryID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch lines for entry %d: %w", entryID, err)
	}

	type lineData struct {
		accountID   int
		debit       decimal.Decimal
		credit      decimal.Decimal
		description string
	}
	var lines []lineData
	for rows.Next() {
		var ld lineData
		if err := rows.Scan(&ld.accountID, &ld.debit, &ld.credit, &ld.description); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, ld)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating lines: %w", err)
	}

	for _, line := range lines {
		// Debits and credits swap on the mirror entry.
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_entry_lines (entry_id, account_id, debit, credit, description)
			VALUES ($1, $2, $3, $4, $5)
		`, reversalID, line.accountID, line.credit, line.debit, line.description)
		if err != nil {
			return 0, fmt.Errorf("failed to insert mirror line: %w", err)
		}

		var accountType AccountType
		if err := tx.QueryRow(ctx, "SELECT type FROM accounts WHERE id = $1", line.accountID).Scan(&accountType); err != nil {
			return 0, fmt.Errorf("failed to fetch account %d: %w", line.accountID, err)
		}
		if err := applyBalanceDelta(ctx, tx, line.accountID, accountType, line.credit, line.debit); err != nil {
			return 0, err
		}
	}

	_, err = tx.Exec(ctx,
		"UPDATE ledger_entries SET is_reversed = TRUE, reversed_by_id = $1 WHERE id = $2",
		reversalID, entryID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to flag entry %d reversed: %w", entryID, err)
	}

	return reversalID, nil
}

func (l *ledger) GetEntry(ctx context.Context, entryID int) (*LedgerEntry, error) {
	var e LedgerEntry
	err := l.pool.QueryRow(ctx, `
		SELECT id, entry_date, period, description, source_type, source_id,
		       created_by, is_reversed, reversed_by_id, created_at
		FROM ledger_entries
		WHERE id = $1
	`, entryID).Scan(
		&e.ID, &e.EntryDate, &e.Period, &e.Description, &e.SourceType, &e.SourceID,
		&e.CreatedBy, &e.IsReversed, &e.ReversedByID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("ledger entry %d not found", entryID)
		}
		return nil, fmt.Errorf("failed to fetch entry %d: %w", entryID, err)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT l.id, l.entry_id, l.account_id, a.code, l.debit, l.credit, l.description
		FROM ledger_entry_lines l
		JOIN accounts a ON a.id = l.account_id
		WHERE l.entry_id = $1
		ORDER BY l.id
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ln LedgerEntryLine
		if err := rows.Scan(&ln.ID, &ln.EntryID, &ln.AccountID, &ln.AccountCode, &ln.Debit, &ln.Credit, &ln.Description); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		e.Lines = append(e.Lines, ln)
	}
	return &e, rows.Err()
}

func (l *ledger) GetBalances(ctx context.Context) ([]Account, error) {
	rows, err := l.pool.Query(ctx,
		"SELECT id, code, name, type, balance, created_at FROM accounts ORDER BY code",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Balance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// resolveAccount maps a stable account code to its row id and type.
// An unknown code is a configuration bug, not a user error.
func resolveAccount(ctx context.Context, tx pgx.Tx, code string) (int, AccountType, error) {
	var id int
	var accountType AccountType
	err := tx.QueryRow(ctx,
		"SELECT id, type FROM accounts WHERE code = $1", code,
	).Scan(&id, &accountType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", Integrityf("account code %s not found", code)
		}
		return 0, "", fmt.Errorf("failed to resolve account %s: %w", code, err)
	}
	return id, accountType, nil
}

// applyBalanceDelta moves an account's running balance by one posted line.
// Debit-normal accounts accumulate debit−credit; credit-normal the reverse.
func applyBalanceDelta(ctx context.Context, tx pgx.Tx, accountID int, accountType AccountType, debit, credit decimal.Decimal) error {
	delta := debit.Sub(credit)
	if !accountType.DebitNormal() {
		delta = delta.Neg()
	}
	_, err := tx.Exec(ctx,
		"UPDATE accounts SET balance = balance + $1 WHERE id = $2",
		delta, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance for account %d: %w", accountID, err)
	}
	return nil
}
