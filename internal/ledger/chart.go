package ledger

// Well-known account codes the billing engine and workflow post against.
// The chart can carry more accounts than these; these are the ones wired to
// bill components.
const (
	AccountCash            = "1000"
	AccountDuesReceivable  = "1100"
	AccountBank            = "1200"
	AccountSinkingFund     = "2100"
	AccountRepairFund      = "2200"
	AccountGeneralFund     = "3000"
	AccountCorpusFund      = "3100"
	AccountMaintenance     = "4100"
	AccountWaterRecovery   = "4200"
	AccountExpenseRecovery = "4300"
	AccountLateFee         = "4900"
	AccountWaterTanker     = "5110"
	AccountPumpElectricity = "5120"
	AccountRepairsExpense  = "5200"
	AccountAdminExpense    = "5300"
)

// DefaultChart returns the chart of accounts seeded at initialization.
func DefaultChart() []Account {
	return []Account{
		{Code: AccountCash, Name: "Cash in Hand", Type: AccountTypeAsset},
		{Code: AccountDuesReceivable, Name: "Members Dues Receivable", Type: AccountTypeAsset, System: true},
		{Code: AccountBank, Name: "Bank Account", Type: AccountTypeAsset},
		{Code: AccountSinkingFund, Name: "Sinking Fund", Type: AccountTypeLiability, System: true},
		{Code: AccountRepairFund, Name: "Repair Fund", Type: AccountTypeLiability, System: true},
		{Code: AccountGeneralFund, Name: "General Fund", Type: AccountTypeCapital, System: true},
		{Code: AccountCorpusFund, Name: "Corpus Fund", Type: AccountTypeCapital, System: true},
		{Code: AccountMaintenance, Name: "Maintenance Charges", Type: AccountTypeIncome, System: true},
		{Code: AccountWaterRecovery, Name: "Water Charges Recovery", Type: AccountTypeIncome, System: true},
		{Code: AccountExpenseRecovery, Name: "Fixed Expense Recovery", Type: AccountTypeIncome, System: true},
		{Code: AccountLateFee, Name: "Late Fee and Interest", Type: AccountTypeIncome, System: true},
		{Code: AccountWaterTanker, Name: "Water Tanker Charges", Type: AccountTypeExpense},
		{Code: AccountPumpElectricity, Name: "Pump Electricity", Type: AccountTypeExpense},
		{Code: AccountRepairsExpense, Name: "Repairs and Maintenance", Type: AccountTypeExpense},
		{Code: AccountAdminExpense, Name: "Administrative Expenses", Type: AccountTypeExpense},
	}
}

// ComponentAccount maps a bill component label to the account credited when
// the bill is posted. Arrears map to no account: they are already in the
// receivable.
func ComponentAccount(label string) (string, bool) {
	switch label {
	case ComponentMaintenance:
		return AccountMaintenance, true
	case ComponentWater:
		return AccountWaterRecovery, true
	case ComponentFixed:
		return AccountExpenseRecovery, true
	case ComponentSinking:
		return AccountSinkingFund, true
	case ComponentRepair:
		return AccountRepairFund, true
	case ComponentCorpus:
		return AccountCorpusFund, true
	case ComponentLateFee:
		return AccountLateFee, true
	}
	return "", false
}
