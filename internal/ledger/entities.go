package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side represents the accounting position of a journal line.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

// AccountType enumerates the broad classification of an account in the ledger.
type AccountType string

const (
	// AccountTypeAsset increases on the debit side and holds resources owned by the society.
	AccountTypeAsset AccountType = "asset"
	// AccountTypeLiability increases on the credit side and tracks obligations.
	AccountTypeLiability AccountType = "liability"
	// AccountTypeCapital captures the society's funds and accumulated surplus.
	AccountTypeCapital AccountType = "capital"
	// AccountTypeIncome represents inflows that increase capital.
	AccountTypeIncome AccountType = "income"
	// AccountTypeExpense represents outflows that decrease capital.
	AccountTypeExpense AccountType = "expense"
)

// NormalSide returns the side on which an account of this type increases.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeCapital, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Account represents one account in the society's chart of accounts.
// Code is the stable identifier; accounts are renamed, never deleted once
// they carry postings.
type Account struct {
	Code           string
	Name           string
	Type           AccountType
	OpeningBalance decimal.Decimal
	// System marks reserved accounts the billing engine posts to directly.
	System bool
}

// Period identifies a billing month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant of the period (exclusive upper bound is Start of next).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

// VoucherType identifies how a journal entry entered the ledger.
type VoucherType string

const (
	VoucherBill     VoucherType = "bill"
	VoucherReceipt  VoucherType = "receipt"
	VoucherPayment  VoucherType = "payment"
	VoucherJournal  VoucherType = "journal"
	VoucherTransfer VoucherType = "transfer"
	VoucherReversal VoucherType = "reversal"
)

// JournalEntry is a balanced set of debit/credit lines recorded as one atomic
// unit. Entries are immutable once posted; corrections happen by reversal
// plus a fresh entry, never in place.
type JournalEntry struct {
	ID          uuid.UUID
	EntryNumber int64
	Date        time.Time
	Description string
	Voucher     VoucherType
	// ExpenseMonth tags an entry to a billing period independent of its date.
	ExpenseMonth *Period
	Lines        []JournalLine
	Posted       bool
	// ReversalOf links a reversal entry back to the entry it cancels.
	ReversalOf *uuid.UUID
	// ReversedBy is set on the original once a reversal has been posted.
	ReversedBy *uuid.UUID
	// Reason records why a reversal was made.
	Reason string
}

// TotalDebit sums the debit side of all lines.
func (e JournalEntry) TotalDebit() decimal.Decimal {
	sum := decimal.Zero
	for _, ln := range e.Lines {
		sum = sum.Add(ln.Debit)
	}
	return sum
}

// TotalCredit sums the credit side of all lines.
func (e JournalEntry) TotalCredit() decimal.Decimal {
	sum := decimal.Zero
	for _, ln := range e.Lines {
		sum = sum.Add(ln.Credit)
	}
	return sum
}

// IsBalanced reports whether debits equal credits.
func (e JournalEntry) IsBalanced() bool {
	return e.TotalDebit().Equal(e.TotalCredit())
}

// JournalLine links an entry to an account with an amount on one side.
// Exactly one of Debit/Credit is non-zero in standard usage; both may be zero
// for a pure memo line.
type JournalLine struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	// FlatID tracks per-unit dues on receivable lines.
	FlatID *uuid.UUID
}

// Unit is the billable residential entity. It is owned by the membership
// subsystem and read-only here.
type Unit struct {
	ID         uuid.UUID
	FlatNumber string
	AreaSqft   decimal.Decimal
	Occupants  int
	OwnerName  string
}

// BillStatus tracks a bill through the posting state machine.
type BillStatus string

const (
	BillStatusDraft    BillStatus = "draft"
	BillStatusPosted   BillStatus = "posted"
	BillStatusReversed BillStatus = "reversed"
)

// Component labels produced by the billing engine.
const (
	ComponentMaintenance = "maintenance"
	ComponentWater       = "water"
	ComponentFixed       = "fixed_expenses"
	ComponentSinking     = "sinking_fund"
	ComponentRepair      = "repair_fund"
	ComponentCorpus      = "corpus_fund"
	ComponentLateFee     = "late_fee"
	ComponentArrears     = "arrears"
)

// BillComponent is one line of a bill breakdown. Note records how the amount
// was derived for audit.
type BillComponent struct {
	Label  string
	Amount decimal.Decimal
	Note   string
}

// BillComputation is the computed bill for one (flat, period) pair. At most
// one non-reversed bill may exist per pair at a time.
type BillComputation struct {
	ID             uuid.UUID
	FlatID         uuid.UUID
	FlatNumber     string
	Period         Period
	Components     []BillComponent
	Total          decimal.Decimal
	Status         BillStatus
	JournalEntryID *uuid.UUID
	GeneratedAt    time.Time
}

// Component returns the component with the given label, if present.
func (b BillComputation) Component(label string) (BillComponent, bool) {
	for _, c := range b.Components {
		if c.Label == label {
			return c, true
		}
	}
	return BillComponent{}, false
}

// PostableTotal is the portion of the bill that becomes a journal entry.
// Arrears are already sitting in the receivable from prior bills and must not
// be debited a second time.
func (b BillComputation) PostableTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range b.Components {
		if c.Label == ComponentArrears {
			continue
		}
		sum = sum.Add(c.Amount)
	}
	return sum
}

// DistributionMethod selects how a shared cost is split across units.
type DistributionMethod string

const (
	// DistributeEqual splits a total evenly across all units.
	DistributeEqual DistributionMethod = "equal"
	// DistributeBySqft splits a total proportional to each unit's area.
	DistributeBySqft DistributionMethod = "by_sqft"
)

// FundKind enumerates the independently configured collection buckets.
type FundKind string

const (
	FundFixed   FundKind = "fixed"
	FundSinking FundKind = "sinking"
	FundRepair  FundKind = "repair"
	FundCorpus  FundKind = "corpus"
)

// FundRule configures one fund's distribution for a generation run.
type FundRule struct {
	Method        DistributionMethod
	TotalOverride *decimal.Decimal
}

// FundConfiguration is the transient per-run input to bill generation. It is
// not persisted as its own entity; the resulting component notes record what
// was applied.
type FundConfiguration struct {
	// SqftRate prices maintenance per square foot. Zero or unset means the
	// maintenance component is skipped, not billed at zero.
	SqftRate decimal.Decimal
	// WaterChargesOverride replaces the posted water-source expense total.
	WaterChargesOverride *decimal.Decimal
	// AdjustedOccupants overrides a unit's headcount for water distribution.
	AdjustedOccupants map[uuid.UUID]int
	// FixedExpenseAccounts selects the expense accounts whose period postings
	// form the fixed-expense recovery total.
	FixedExpenseAccounts []string
	Funds                map[FundKind]FundRule
}

// OccupantsFor resolves the effective headcount for a unit: the sparse
// override when present, else the unit's own count.
func (c FundConfiguration) OccupantsFor(u Unit) int {
	if c.AdjustedOccupants != nil {
		if n, ok := c.AdjustedOccupants[u.ID]; ok {
			return n
		}
	}
	return u.Occupants
}
