package core

import (
	"github.com/shopspring/decimal"
)

// The entry builder turns business events into balanced debit/credit line
// sets. Builders are pure: they never touch storage, and the same inputs
// always produce the same lines. The ledger store re-validates every line
// set independently before persisting, so a builder bug cannot post an
// unbalanced entry.

// BuildInvoiceConfirmedLines produces the posting for confirming an invoice.
//
// Payable:    DR <category expense> net, DR GST_INPUT gst,
//             CR ACCOUNTS_PAYABLE total−tds, CR TDS_PAYABLE tds
// Receivable: DR ACCOUNTS_RECEIVABLE total,
//             CR SALES_REVENUE net, CR GST_OUTPUT gst
//
// where net = total − gst. GST and TDS lines are omitted when zero.
func BuildInvoiceConfirmedLines(direction InvoiceDirection, category Category, total, gst, tds decimal.Decimal) ([]EntryLineInput, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, Validationf("invoice total must be positive, got %s", total)
	}
	if gst.IsNegative() || tds.IsNegative() {
		return nil, Validationf("gst and tds amounts cannot be negative")
	}
	if gst.GreaterThanOrEqual(total) {
		return nil, Validationf("gst %s cannot equal or exceed invoice total %s", gst, total)
	}

	net := total.Sub(gst)

	var lines []EntryLineInput
	switch direction {
	case Payable:
		lines = append(lines, EntryLineInput{AccountCode: ExpenseAccountFor(category), Debit: net})
		if gst.IsPositive() {
			lines = append(lines, EntryLineInput{AccountCode: AccountGSTInput, Debit: gst})
		}
		lines = append(lines, EntryLineInput{AccountCode: AccountPayable, Credit: total.Sub(tds)})
		if tds.IsPositive() {
			lines = append(lines, EntryLineInput{AccountCode: AccountTDSPayable, Credit: tds, Description: "TDS withheld"})
		}
	case Receivable:
		lines = append(lines, EntryLineInput{AccountCode: AccountReceivable, Debit: total})
		lines = append(lines, EntryLineInput{AccountCode: AccountSalesRevenue, Credit: net})
		if gst.IsPositive() {
			lines = append(lines, EntryLineInput{AccountCode: AccountGSTOutput, Credit: gst})
		}
	default:
		return nil, Validationf("unknown invoice direction %q", direction)
	}

	if err := checkBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// BuildPaymentLines produces the posting for a standalone payment.
// Outgoing payments clear accounts payable against the routed cash/bank
// account; incoming payments are the mirror against accounts receivable.
func BuildPaymentLines(direction PaymentDirection, method string, amount decimal.Decimal) ([]EntryLineInput, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, Validationf("payment amount must be positive, got %s", amount)
	}

	cashAccount := CashAccountFor(direction, method)

	var lines []EntryLineInput
	switch direction {
	case Outgoing:
		lines = []EntryLineInput{
			{AccountCode: AccountPayable, Debit: amount},
			{AccountCode: cashAccount, Credit: amount},
		}
	case Incoming:
		lines = []EntryLineInput{
			{AccountCode: cashAccount, Debit: amount},
			{AccountCode: AccountReceivable, Credit: amount},
		}
	default:
		return nil, Validationf("unknown payment direction %q", direction)
	}

	if err := checkBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// BuildLinkAdjustmentLines reclassifies a payment that was booked against a
// generic expense bucket at bank-import time and is now being linked to a
// confirmed payable invoice: the category-correct expense and GST input are
// debited, the misclassified account is credited for the full paid amount
// (matchAmount = total − tds), and any TDS withheld is credited as a
// liability. Returns no lines when nothing needs reclassifying.
func BuildLinkAdjustmentLines(category Category, misclassifiedAccount string, gst, tds, matchAmount decimal.Decimal) ([]EntryLineInput, error) {
	if matchAmount.LessThanOrEqual(decimal.Zero) {
		return nil, Validationf("match amount must be positive, got %s", matchAmount)
	}
	if gst.IsNegative() || tds.IsNegative() {
		return nil, Validationf("gst and tds amounts cannot be negative")
	}

	expenseAccount := ExpenseAccountFor(category)
	if expenseAccount == misclassifiedAccount && gst.IsZero() && tds.IsZero() {
		return nil, nil
	}

	// total = matchAmount + tds; net = total − gst.
	net := matchAmount.Add(tds).Sub(gst)
	if net.LessThanOrEqual(decimal.Zero) {
		return nil, Validationf("adjustment net amount must be positive, got %s", net)
	}

	lines := []EntryLineInput{
		{AccountCode: expenseAccount, Debit: net},
	}
	if gst.IsPositive() {
		lines = append(lines, EntryLineInput{AccountCode: AccountGSTInput, Debit: gst})
	}
	lines = append(lines, EntryLineInput{
		AccountCode: misclassifiedAccount,
		Credit:      matchAmount,
		Description: "reclassified to invoice category",
	})
	if tds.IsPositive() {
		lines = append(lines, EntryLineInput{AccountCode: AccountTDSPayable, Credit: tds, Description: "TDS withheld"})
	}

	if err := checkBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// checkBalanced verifies the builder produced a well-formed line set:
// at least two lines, exactly one positive side per line, and total debits
// equal to total credits within the cent tolerance.
func checkBalanced(lines []EntryLineInput) error {
	if len(lines) < 2 {
		return Integrityf("entry must have at least 2 lines, got %d", len(lines))
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		debitSet := l.Debit.IsPositive()
		creditSet := l.Credit.IsPositive()
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return Integrityf("line for %s has a negative amount", l.AccountCode)
		}
		if debitSet == creditSet {
			return Integrityf("line for %s must set exactly one of debit/credit", l.AccountCode)
		}
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}

	if totalDebit.Sub(totalCredit).Abs().GreaterThan(epsilon) {
		return Integrityf("entry does not balance: debits %s, credits %s", totalDebit, totalCredit)
	}
	return nil
}

// ComputeTDS returns the tax withheld at source for a payable invoice:
// round(subtotal × rate ÷ 100) to the cent, where subtotal = total − gst.
// Zero when the party has TDS disabled or a zero rate.
func ComputeTDS(total, gst, rate decimal.Decimal, applicable bool) decimal.Decimal {
	if !applicable || !rate.IsPositive() {
		return decimal.Zero
	}
	subtotal := total.Sub(gst)
	return subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}
