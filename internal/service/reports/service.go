// Package reports derives trial balance, ledger statements, income &
// expenditure, balance sheet and member dues from the ledger core. All
// computations are pure reads over one snapshot of accounts and entries, so
// a report is internally consistent even while postings continue.
//
// Sign policy: balances are reported as magnitudes on their natural side; an
// account whose balance flips sign moves to the opposite column instead of
// being printed negative. A trial-balance or balance-sheet mismatch is
// surfaced as data, never thrown, so operators can investigate.
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/service/journal"
)

// UnitReader supplies units for the member dues register.
type UnitReader interface {
	Units(ctx context.Context) ([]ledger.Unit, error)
}

// Service answers report queries.
type Service struct {
	repo  journal.Repo
	units UnitReader
}

// New constructs the reporting service.
func New(repo journal.Repo, units UnitReader) *Service {
	return &Service{repo: repo, units: units}
}

// TrialBalanceRow is one account's balance split onto its reporting side.
type TrialBalanceRow struct {
	AccountCode string
	AccountName string
	Type        ledger.AccountType
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// TrialBalanceReport lists every account with a non-zero balance as of a
// date. Equal debit and credit totals are the engine's primary correctness
// check; IsBalanced reports the outcome either way.
type TrialBalanceReport struct {
	AsOn        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	IsBalanced  bool
}

// TrialBalance computes the trial balance as of a date.
func (s *Service) TrialBalance(ctx context.Context, asOn time.Time) (TrialBalanceReport, error) {
	accounts, entries, err := s.snapshot(ctx)
	if err != nil {
		return TrialBalanceReport{}, err
	}
	balances := balancesAsOf(accounts, entries, asOn)
	rep := TrialBalanceReport{AsOn: asOn, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, acc := range accounts {
		bal := balances[acc.Code]
		if bal.IsZero() {
			continue
		}
		row := TrialBalanceRow{AccountCode: acc.Code, AccountName: acc.Name, Type: acc.Type, Debit: decimal.Zero, Credit: decimal.Zero}
		side := acc.Type.NormalSide()
		if bal.IsNegative() {
			bal = bal.Abs()
			side = opposite(side)
		}
		if side == ledger.SideDebit {
			row.Debit = bal
			rep.TotalDebit = rep.TotalDebit.Add(bal)
		} else {
			row.Credit = bal
			rep.TotalCredit = rep.TotalCredit.Add(bal)
		}
		rep.Rows = append(rep.Rows, row)
	}
	rep.IsBalanced = rep.TotalDebit.Equal(rep.TotalCredit)
	return rep, nil
}

// LedgerLine is one movement in a ledger statement with its running balance.
type LedgerLine struct {
	Date        time.Time
	EntryNumber int64
	EntryID     uuid.UUID
	Description string
	Voucher     ledger.VoucherType
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Running     decimal.Decimal
}

// LedgerStatement is an account's activity over a date range. Closing always
// equals opening plus net movement.
type LedgerStatement struct {
	AccountCode    string
	AccountName    string
	Type           ledger.AccountType
	From           time.Time
	To             time.Time
	OpeningBalance decimal.Decimal
	Lines          []LedgerLine
	NetMovement    decimal.Decimal
	ClosingBalance decimal.Decimal
}

// GeneralLedger computes an account statement for [from, to].
func (s *Service) GeneralLedger(ctx context.Context, code string, from, to time.Time) (LedgerStatement, error) {
	accounts, entries, err := s.snapshot(ctx)
	if err != nil {
		return LedgerStatement{}, err
	}
	var acc *ledger.Account
	for i := range accounts {
		if accounts[i].Code == code {
			acc = &accounts[i]
			break
		}
	}
	if acc == nil {
		return LedgerStatement{}, fmt.Errorf("%w: account %s", errs.ErrUnknownAccount, code)
	}
	st := LedgerStatement{AccountCode: acc.Code, AccountName: acc.Name, Type: acc.Type, From: from, To: to}
	opening := acc.OpeningBalance
	for _, e := range entries {
		if !e.Date.Before(from) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountCode == code {
				opening = opening.Add(signed(acc.Type, ln))
			}
		}
	}
	st.OpeningBalance = opening
	running := opening
	for _, e := range entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountCode != code {
				continue
			}
			running = running.Add(signed(acc.Type, ln))
			desc := ln.Description
			if desc == "" {
				desc = e.Description
			}
			st.Lines = append(st.Lines, LedgerLine{
				Date:        e.Date,
				EntryNumber: e.EntryNumber,
				EntryID:     e.ID,
				Description: desc,
				Voucher:     e.Voucher,
				Debit:       ln.Debit,
				Credit:      ln.Credit,
				Running:     running,
			})
		}
	}
	st.ClosingBalance = running
	st.NetMovement = st.ClosingBalance.Sub(st.OpeningBalance)
	return st, nil
}

// ReportRow is a named amount in a grouped report.
type ReportRow struct {
	AccountCode string
	AccountName string
	Amount      decimal.Decimal
}

// IncomeExpenditureReport nets income against expenditure over a range. By
// the accrual identity the surplus equals the net change in capital over the
// same range.
type IncomeExpenditureReport struct {
	From         time.Time
	To           time.Time
	Income       []ReportRow
	Expenses     []ReportRow
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	NetSurplus   decimal.Decimal
}

// IncomeExpenditure sums income and expense movements over [from, to].
func (s *Service) IncomeExpenditure(ctx context.Context, from, to time.Time) (IncomeExpenditureReport, error) {
	accounts, entries, err := s.snapshot(ctx)
	if err != nil {
		return IncomeExpenditureReport{}, err
	}
	movements := make(map[string]decimal.Decimal, len(accounts))
	byCode := accountIndex(accounts)
	for _, e := range entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		for _, ln := range e.Lines {
			acc, ok := byCode[ln.AccountCode]
			if !ok {
				continue
			}
			movements[ln.AccountCode] = movements[ln.AccountCode].Add(signed(acc.Type, ln))
		}
	}
	rep := IncomeExpenditureReport{From: from, To: to, TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, acc := range accounts {
		mv := movements[acc.Code]
		if mv.IsZero() {
			continue
		}
		switch acc.Type {
		case ledger.AccountTypeIncome:
			rep.Income = append(rep.Income, ReportRow{AccountCode: acc.Code, AccountName: acc.Name, Amount: mv})
			rep.TotalIncome = rep.TotalIncome.Add(mv)
		case ledger.AccountTypeExpense:
			rep.Expenses = append(rep.Expenses, ReportRow{AccountCode: acc.Code, AccountName: acc.Name, Amount: mv})
			rep.TotalExpense = rep.TotalExpense.Add(mv)
		}
	}
	rep.NetSurplus = rep.TotalIncome.Sub(rep.TotalExpense)
	return rep, nil
}

// BalanceSheetReport buckets assets against liabilities plus capital. The
// accumulated surplus (income minus expenditure to date) is folded into the
// capital bucket. A mismatch sets IsBalanced false with both totals and the
// difference reported, never an error.
type BalanceSheetReport struct {
	AsOn             time.Time
	Assets           []ReportRow
	Liabilities      []ReportRow
	Capital          []ReportRow
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalCapital     decimal.Decimal
	IsBalanced       bool
	Difference       decimal.Decimal
}

// BalanceSheet computes the balance sheet as of a date.
func (s *Service) BalanceSheet(ctx context.Context, asOn time.Time) (BalanceSheetReport, error) {
	accounts, entries, err := s.snapshot(ctx)
	if err != nil {
		return BalanceSheetReport{}, err
	}
	balances := balancesAsOf(accounts, entries, asOn)
	rep := BalanceSheetReport{
		AsOn:             asOn,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
		TotalCapital:     decimal.Zero,
	}
	surplus := decimal.Zero
	for _, acc := range accounts {
		bal := balances[acc.Code]
		switch acc.Type {
		case ledger.AccountTypeAsset:
			if !bal.IsZero() {
				rep.Assets = append(rep.Assets, ReportRow{AccountCode: acc.Code, AccountName: acc.Name, Amount: bal})
				rep.TotalAssets = rep.TotalAssets.Add(bal)
			}
		case ledger.AccountTypeLiability:
			if !bal.IsZero() {
				rep.Liabilities = append(rep.Liabilities, ReportRow{AccountCode: acc.Code, AccountName: acc.Name, Amount: bal})
				rep.TotalLiabilities = rep.TotalLiabilities.Add(bal)
			}
		case ledger.AccountTypeCapital:
			if !bal.IsZero() {
				rep.Capital = append(rep.Capital, ReportRow{AccountCode: acc.Code, AccountName: acc.Name, Amount: bal})
				rep.TotalCapital = rep.TotalCapital.Add(bal)
			}
		case ledger.AccountTypeIncome:
			surplus = surplus.Add(bal)
		case ledger.AccountTypeExpense:
			surplus = surplus.Sub(bal)
		}
	}
	if !surplus.IsZero() {
		rep.Capital = append(rep.Capital, ReportRow{AccountName: "Surplus / (Deficit)", Amount: surplus})
		rep.TotalCapital = rep.TotalCapital.Add(surplus)
	}
	rep.Difference = rep.TotalAssets.Sub(rep.TotalLiabilities.Add(rep.TotalCapital))
	rep.IsBalanced = rep.Difference.IsZero()
	return rep, nil
}

// MemberDuesRow is one flat's outstanding receivable.
type MemberDuesRow struct {
	FlatID      uuid.UUID
	FlatNumber  string
	OwnerName   string
	Outstanding decimal.Decimal
}

// MemberDuesReport lists per-flat outstanding dues up to a date.
type MemberDuesReport struct {
	To               time.Time
	Rows             []MemberDuesRow
	TotalOutstanding decimal.Decimal
}

// MemberDues computes each unit's outstanding dues as of a date.
func (s *Service) MemberDues(ctx context.Context, to time.Time) (MemberDuesReport, error) {
	units, err := s.units.Units(ctx)
	if err != nil {
		return MemberDuesReport{}, err
	}
	_, entries, err := s.snapshot(ctx)
	if err != nil {
		return MemberDuesReport{}, err
	}
	perFlat := make(map[uuid.UUID]decimal.Decimal, len(units))
	for _, e := range entries {
		if e.Date.After(to) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountCode != ledger.AccountDuesReceivable || ln.FlatID == nil {
				continue
			}
			perFlat[*ln.FlatID] = perFlat[*ln.FlatID].Add(ln.Debit).Sub(ln.Credit)
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].FlatNumber < units[j].FlatNumber })
	rep := MemberDuesReport{To: to, TotalOutstanding: decimal.Zero}
	for _, u := range units {
		out := perFlat[u.ID]
		rep.Rows = append(rep.Rows, MemberDuesRow{FlatID: u.ID, FlatNumber: u.FlatNumber, OwnerName: u.OwnerName, Outstanding: out})
		rep.TotalOutstanding = rep.TotalOutstanding.Add(out)
	}
	return rep, nil
}

// snapshot fetches accounts and entries once so each report computes over a
// single consistent view.
func (s *Service) snapshot(ctx context.Context) ([]ledger.Account, []ledger.JournalEntry, error) {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, entries, nil
}

func accountIndex(accounts []ledger.Account) map[string]ledger.Account {
	m := make(map[string]ledger.Account, len(accounts))
	for _, a := range accounts {
		m[a.Code] = a
	}
	return m
}

// balancesAsOf computes each account's natural-side balance from one
// snapshot: opening balance plus signed movements dated on or before asOf.
// Future-dated entries never affect a past balance.
func balancesAsOf(accounts []ledger.Account, entries []ledger.JournalEntry, asOf time.Time) map[string]decimal.Decimal {
	byCode := accountIndex(accounts)
	out := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		out[a.Code] = a.OpeningBalance
	}
	for _, e := range entries {
		if e.Date.After(asOf) {
			continue
		}
		for _, ln := range e.Lines {
			acc, ok := byCode[ln.AccountCode]
			if !ok {
				continue
			}
			out[ln.AccountCode] = out[ln.AccountCode].Add(signed(acc.Type, ln))
		}
	}
	return out
}

func signed(t ledger.AccountType, ln ledger.JournalLine) decimal.Decimal {
	if t.NormalSide() == ledger.SideDebit {
		return ln.Debit.Sub(ln.Credit)
	}
	return ln.Credit.Sub(ln.Debit)
}

func opposite(s ledger.Side) ledger.Side {
	if s == ledger.SideDebit {
		return ledger.SideCredit
	}
	return ledger.SideDebit
}
