package core

// Stable account codes seeded by migrations/002_chart_of_accounts.sql.
// The entry builder references these directly; renaming a code here without
// a matching migration breaks posting at runtime.
const (
	AccountCash            = "CASH"
	AccountBankPayouts     = "BANK_HDFC"
	AccountBankReceipts    = "BANK_HDFC_RECEIPTS"
	AccountReceivable      = "ACCOUNTS_RECEIVABLE"
	AccountPayable         = "ACCOUNTS_PAYABLE"
	AccountGSTInput        = "GST_INPUT"
	AccountGSTOutput       = "GST_OUTPUT"
	AccountTDSPayable      = "TDS_PAYABLE"
	AccountSalesRevenue    = "SALES_REVENUE"
	AccountRawMaterials    = "INVENTORY_RAW_MATERIALS"
	AccountMarketplaceFees = "MARKETPLACE_FEES"
	AccountOperatingExp    = "OPERATING_EXPENSES"
)

// Category classifies an invoice (and its party) for expense-account routing.
type Category string

const (
	CategoryFabric      Category = "fabric"
	CategoryTrims       Category = "trims"
	CategoryPackaging   Category = "packaging"
	CategoryService     Category = "service"
	CategoryLogistics   Category = "logistics"
	CategoryRent        Category = "rent"
	CategorySalary      Category = "salary"
	CategoryEquipment   Category = "equipment"
	CategoryMarketing   Category = "marketing"
	CategoryMarketplace Category = "marketplace"
	CategoryStatutory   Category = "statutory"
)

// ExpenseAccountFor maps an invoice category to the account its net expense
// is debited against. The mapping is total: every known category is listed
// explicitly and anything unrecognised lands in operating expenses.
func ExpenseAccountFor(c Category) string {
	switch c {
	case CategoryFabric, CategoryTrims, CategoryPackaging:
		return AccountRawMaterials
	case CategoryService, CategoryLogistics, CategoryRent,
		CategorySalary, CategoryEquipment, CategoryMarketing:
		return AccountOperatingExp
	case CategoryMarketplace:
		return AccountMarketplaceFees
	case CategoryStatutory:
		return AccountTDSPayable
	default:
		return AccountOperatingExp
	}
}

// CashAccountFor routes a payment to the cash or bank account it moves
// through: cash payments hit the till, outgoing transfers the vendor payout
// account, incoming transfers the receipts account.
func CashAccountFor(direction PaymentDirection, method string) string {
	if method == "cash" {
		return AccountCash
	}
	if direction == Incoming {
		return AccountBankReceipts
	}
	return AccountBankPayouts
}
