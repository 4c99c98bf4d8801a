package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PartyInput is the subset of a party record the finance core needs:
// routing category, TDS configuration, and payout bank details.
type PartyInput struct {
	Name              string
	Category          Category
	TDSApplicable     bool
	TDSRate           decimal.Decimal
	TDSSection        string
	BankAccountName   string
	BankAccountNumber string
	BankIFSC          string
}

// PartyService stores party records. Full CRUD and search live in an
// external collaborator; this surface exists so the finance core can read
// TDS and bank configuration, and so fixtures can seed parties.
type PartyService interface {
	CreateParty(ctx context.Context, input PartyInput) (*Party, error)
	GetParty(ctx context.Context, partyID int) (*Party, error)
	ListParties(ctx context.Context) ([]Party, error)
}

type partyService struct {
	pool *pgxpool.Pool
}

func NewPartyService(pool *pgxpool.Pool) PartyService {
	return &partyService{pool: pool}
}

func (s *partyService) CreateParty(ctx context.Context, input PartyInput) (*Party, error) {
	if input.Name == "" {
		return nil, Validationf("party name is required")
	}
	if input.TDSRate.IsNegative() || input.TDSRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, Validationf("tds rate must be between 0 and 100, got %s", input.TDSRate)
	}

	var p Party
	err := s.pool.QueryRow(ctx, `
		INSERT INTO parties (name, category, tds_applicable, tds_rate, tds_section,
		                     bank_account_name, bank_account_number, bank_ifsc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, name, category, tds_applicable, tds_rate, tds_section,
		          bank_account_name, bank_account_number, bank_ifsc, is_active, created_at
	`, input.Name, string(input.Category), input.TDSApplicable, input.TDSRate, input.TDSSection,
		input.BankAccountName, input.BankAccountNumber, input.BankIFSC,
	).Scan(
		&p.ID, &p.Name, &p.Category, &p.TDSApplicable, &p.TDSRate, &p.TDSSection,
		&p.BankAccountName, &p.BankAccountNumber, &p.BankIFSC, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create party %q: %w", input.Name, err)
	}
	return &p, nil
}

func (s *partyService) GetParty(ctx context.Context, partyID int) (*Party, error) {
	var p Party
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, category, tds_applicable, tds_rate, tds_section,
		       bank_account_name, bank_account_number, bank_ifsc, is_active, created_at
		FROM parties
		WHERE id = $1
	`, partyID).Scan(
		&p.ID, &p.Name, &p.Category, &p.TDSApplicable, &p.TDSRate, &p.TDSSection,
		&p.BankAccountName, &p.BankAccountNumber, &p.BankIFSC, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("party %d not found", partyID)
		}
		return nil, fmt.Errorf("failed to fetch party %d: %w", partyID, err)
	}
	return &p, nil
}

func (s *partyService) ListParties(ctx context.Context) ([]Party, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, tds_applicable, tds_rate, tds_section,
		       bank_account_name, bank_account_number, bank_ifsc, is_active, created_at
		FROM parties
		WHERE is_active = TRUE
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.TDSApplicable, &p.TDSRate, &p.TDSSection,
			&p.BankAccountName, &p.BankAccountNumber, &p.BankIFSC, &p.IsActive, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}
