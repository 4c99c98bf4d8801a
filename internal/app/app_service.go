package app

import (
	"context"
	"time"

	"ops-backend/internal/core"

	"github.com/go-playground/validator/v10"
)

type appService struct {
	validate  *validator.Validate
	ledger    core.LedgerService
	invoices  core.InvoiceService
	payments  core.PaymentService
	recon     core.ReconService
	parties   core.PartyService
	reporting core.ReportingService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	ledger core.LedgerService,
	invoices core.InvoiceService,
	payments core.PaymentService,
	recon core.ReconService,
	parties core.PartyService,
	reporting core.ReportingService,
) ApplicationService {
	return &appService{
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		ledger:    ledger,
		invoices:  invoices,
		payments:  payments,
		recon:     recon,
		parties:   parties,
		reporting: reporting,
	}
}

// checkRequest runs struct-tag validation and converts failures into domain
// validation errors so adapters map them to the right status code.
func (s *appService) checkRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return core.Validationf("field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return core.Validationf("invalid request: %v", err)
	}
	return nil
}

// ── Invoices ──────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoiceDraft(ctx context.Context, req CreateInvoiceRequest, userID string) (*core.Invoice, error) {
	input, err := s.invoiceInput(req)
	if err != nil {
		return nil, err
	}
	input.CreatedBy = userID
	return s.invoices.CreateDraft(ctx, *input)
}

func (s *appService) UpdateInvoiceDraft(ctx context.Context, invoiceID int, req CreateInvoiceRequest) (*core.Invoice, error) {
	input, err := s.invoiceInput(req)
	if err != nil {
		return nil, err
	}
	return s.invoices.UpdateDraft(ctx, invoiceID, *input)
}

func (s *appService) ConfirmInvoice(ctx context.Context, invoiceID int, linkedPaymentID *int, userID string) (*core.Invoice, error) {
	return s.invoices.Confirm(ctx, invoiceID, linkedPaymentID, userID)
}

func (s *appService) CancelInvoice(ctx context.Context, invoiceID int, userID string) (*core.Invoice, error) {
	return s.invoices.Cancel(ctx, invoiceID, userID)
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error) {
	return s.invoices.GetInvoice(ctx, invoiceID)
}

func (s *appService) ListInvoices(ctx context.Context, status string) ([]core.Invoice, error) {
	filter, err := invoiceStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.invoices.ListInvoices(ctx, filter)
}

func (s *appService) invoiceInput(req CreateInvoiceRequest) (*core.CreateInvoiceInput, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	input := &core.CreateInvoiceInput{
		Direction:     core.InvoiceDirection(req.Direction),
		Category:      core.Category(req.Category),
		BillingPeriod: req.BillingPeriod,
		PartyID:       req.PartyID,
		Description:   req.Description,
		TotalAmount:   req.TotalAmount,
		GSTAmount:     req.GSTAmount,
	}
	if req.InvoiceDate != "" {
		d, err := time.Parse("2006-01-02", req.InvoiceDate)
		if err != nil {
			return nil, core.Validationf("invalid invoice date %q, want YYYY-MM-DD", req.InvoiceDate)
		}
		input.InvoiceDate = &d
	}
	return input, nil
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (s *appService) RecordPayment(ctx context.Context, req RecordPaymentRequest, userID string) (*core.Payment, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		return nil, core.Validationf("invalid payment date %q, want YYYY-MM-DD", req.PaymentDate)
	}
	return s.payments.CreatePayment(ctx, core.CreatePaymentInput{
		Direction:   core.PaymentDirection(req.Direction),
		Method:      req.Method,
		Amount:      req.Amount,
		PaymentDate: date,
		PartyID:     req.PartyID,
		Reference:   req.Reference,
		CreatedBy:   userID,
	})
}

func (s *appService) GetPayment(ctx context.Context, paymentID int) (*core.Payment, error) {
	return s.payments.GetPayment(ctx, paymentID)
}

func (s *appService) ListPayments(ctx context.Context, status string) ([]core.Payment, error) {
	filter, err := paymentStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.payments.ListPayments(ctx, filter)
}

func (s *appService) CancelPayment(ctx context.Context, paymentID int, userID string) error {
	return s.payments.CancelPayment(ctx, paymentID, userID)
}

// ── Reconciliation ────────────────────────────────────────────────────────────

func (s *appService) SuggestMatches(ctx context.Context) (*SuggestionsResult, error) {
	groups, err := s.recon.Suggest(ctx)
	if err != nil {
		return nil, err
	}
	return &SuggestionsResult{Groups: groups, GeneratedAt: time.Now().UTC()}, nil
}

func (s *appService) MatchPayment(ctx context.Context, req MatchRequest, userID string) error {
	if err := s.checkRequest(req); err != nil {
		return err
	}
	return s.recon.Match(ctx, req.PaymentID, req.InvoiceID, req.Amount, userID, req.Notes)
}

func (s *appService) UnmatchPayment(ctx context.Context, paymentID, invoiceID int, userID string) error {
	return s.recon.Unmatch(ctx, paymentID, invoiceID, userID)
}

func (s *appService) ApplyMatches(ctx context.Context, req ApplyMatchesRequest, userID string) (*core.ApplyMatchesResult, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	items := make([]core.ApplyMatchInput, len(req.Matches))
	for i, m := range req.Matches {
		items[i] = core.ApplyMatchInput{
			PaymentID: m.PaymentID,
			InvoiceID: m.InvoiceID,
			Amount:    m.Amount,
		}
	}
	return s.recon.ApplyMatches(ctx, items, userID)
}

// ── Ledger ────────────────────────────────────────────────────────────────────

func (s *appService) PostManualEntry(ctx context.Context, input core.ManualEntryInput, userID string) (*core.LedgerEntry, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}
	createInput, err := input.ToCreateEntryInput(userID)
	if err != nil {
		return nil, err
	}
	entryID, err := s.ledger.CreateEntry(ctx, createInput)
	if err != nil {
		return nil, err
	}
	return s.ledger.GetEntry(ctx, entryID)
}

func (s *appService) ReverseEntry(ctx context.Context, entryID int, userID string) (*core.LedgerEntry, error) {
	reversalID, err := s.ledger.ReverseEntry(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.GetEntry(ctx, reversalID)
}

func (s *appService) GetEntry(ctx context.Context, entryID int) (*core.LedgerEntry, error) {
	return s.ledger.GetEntry(ctx, entryID)
}

func (s *appService) GetBalances(ctx context.Context) ([]core.Account, error) {
	return s.ledger.GetBalances(ctx)
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *appService) GetTrialBalance(ctx context.Context) (*core.TrialBalance, error) {
	return s.reporting.GetTrialBalance(ctx)
}

func (s *appService) GetProfitAndLoss(ctx context.Context, period string) (*core.PLReport, error) {
	return s.reporting.GetProfitAndLoss(ctx, period)
}

// ── Parties ───────────────────────────────────────────────────────────────────

func (s *appService) CreateParty(ctx context.Context, req CreatePartyRequest) (*core.Party, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	return s.parties.CreateParty(ctx, core.PartyInput{
		Name:              req.Name,
		Category:          core.Category(req.Category),
		TDSApplicable:     req.TDSApplicable,
		TDSRate:           req.TDSRate,
		TDSSection:        req.TDSSection,
		BankAccountName:   req.BankAccountName,
		BankAccountNumber: req.BankAccountNumber,
		BankIFSC:          req.BankIFSC,
	})
}

func (s *appService) GetParty(ctx context.Context, partyID int) (*core.Party, error) {
	return s.parties.GetParty(ctx, partyID)
}

func (s *appService) ListParties(ctx context.Context) ([]core.Party, error) {
	return s.parties.ListParties(ctx)
}

// ── status filters ────────────────────────────────────────────────────────────

func invoiceStatusFilter(status string) (*core.InvoiceStatus, error) {
	if status == "" {
		return nil, nil
	}
	st := core.InvoiceStatus(status)
	switch st {
	case core.InvoiceDraft, core.InvoiceConfirmed, core.InvoicePartiallyPaid,
		core.InvoicePaid, core.InvoiceCancelled:
		return &st, nil
	}
	return nil, core.Validationf("unknown invoice status %q", status)
}

func paymentStatusFilter(status string) (*core.PaymentStatus, error) {
	if status == "" {
		return nil, nil
	}
	st := core.PaymentStatus(status)
	switch st {
	case core.PaymentConfirmed, core.PaymentCancelled:
		return &st, nil
	}
	return nil, core.Validationf("unknown payment status %q", status)
}
