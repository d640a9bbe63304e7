package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/service/journal"
	"github.com/societyops/ledger/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFixture(t *testing.T, units []ledger.Unit) (*memory.Store, journal.Service, *Service) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, a := range ledger.DefaultChart() {
		_, err := store.CreateAccount(ctx, a)
		require.NoError(t, err)
	}
	for _, u := range units {
		store.SeedUnit(u)
	}
	return store, journal.New(store, store), New(store, store)
}

func post(t *testing.T, svc journal.Service, date time.Time, desc string, lines []ledger.JournalLine) ledger.JournalEntry {
	t.Helper()
	e, err := svc.Post(context.Background(), ledger.JournalEntry{Date: date, Description: desc, Voucher: ledger.VoucherJournal, Lines: lines})
	require.NoError(t, err)
	return e
}

func seedActivity(t *testing.T, svc journal.Service, flatID uuid.UUID) {
	// August bill, a part payment, and a cash expense.
	post(t, svc, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), "august dues", []ledger.JournalLine{
		{AccountCode: ledger.AccountDuesReceivable, Debit: dec("2000"), FlatID: &flatID},
		{AccountCode: ledger.AccountMaintenance, Credit: dec("2000")},
	})
	post(t, svc, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), "part payment", []ledger.JournalLine{
		{AccountCode: ledger.AccountCash, Debit: dec("1200"), FlatID: nil},
		{AccountCode: ledger.AccountDuesReceivable, Credit: dec("1200"), FlatID: &flatID},
	})
	post(t, svc, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), "tanker refill", []ledger.JournalLine{
		{AccountCode: ledger.AccountWaterTanker, Debit: dec("700")},
		{AccountCode: ledger.AccountCash, Credit: dec("700")},
	})
}

func TestTrialBalanceBalances(t *testing.T) {
	_, ledgerSvc, rpt := newFixture(t, nil)
	seedActivity(t, ledgerSvc, uuid.New())

	rep, err := rpt.TrialBalance(context.Background(), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, rep.IsBalanced)
	assert.True(t, rep.TotalDebit.Equal(rep.TotalCredit))
	// Cash 500 Dr, Dues 800 Dr, Water expense 700 Dr against Maintenance 2000 Cr.
	assert.True(t, dec("2000").Equal(rep.TotalDebit), "got %s", rep.TotalDebit)

	byCode := map[string]TrialBalanceRow{}
	for _, row := range rep.Rows {
		byCode[row.AccountCode] = row
	}
	assert.True(t, dec("500").Equal(byCode[ledger.AccountCash].Debit))
	assert.True(t, dec("800").Equal(byCode[ledger.AccountDuesReceivable].Debit))
	assert.True(t, dec("2000").Equal(byCode[ledger.AccountMaintenance].Credit))
}

func TestTrialBalanceFlipsNegativeToOppositeSide(t *testing.T) {
	_, ledgerSvc, rpt := newFixture(t, nil)
	// Credit cash without any debit history: asset goes negative, reported
	// on the credit side with a positive magnitude.
	post(t, ledgerSvc, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), "overdrawn", []ledger.JournalLine{
		{AccountCode: ledger.AccountAdminExpense, Debit: dec("300")},
		{AccountCode: ledger.AccountCash, Credit: dec("300")},
	})

	rep, err := rpt.TrialBalance(context.Background(), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	for _, row := range rep.Rows {
		if row.AccountCode == ledger.AccountCash {
			assert.True(t, row.Debit.IsZero())
			assert.True(t, dec("300").Equal(row.Credit))
			assert.False(t, row.Credit.IsNegative(), "amounts are never printed negative")
		}
	}
	assert.True(t, rep.IsBalanced)
}

func TestGeneralLedgerRunningBalance(t *testing.T) {
	_, ledgerSvc, rpt := newFixture(t, nil)
	seedActivity(t, ledgerSvc, uuid.New())

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	st, err := rpt.GeneralLedger(context.Background(), ledger.AccountCash, from, to)
	require.NoError(t, err)

	require.Len(t, st.Lines, 2)
	assert.True(t, st.OpeningBalance.IsZero())
	assert.True(t, dec("1200").Equal(st.Lines[0].Running))
	assert.True(t, dec("500").Equal(st.Lines[1].Running))
	assert.True(t, dec("500").Equal(st.ClosingBalance))
	assert.True(t, st.ClosingBalance.Equal(st.OpeningBalance.Add(st.NetMovement)))
}

func TestGeneralLedgerUnknownAccount(t *testing.T) {
	_, _, rpt := newFixture(t, nil)
	_, err := rpt.GeneralLedger(context.Background(), "9999", time.Now(), time.Now())
	assert.Error(t, err)
}

func TestIncomeExpenditureSurplus(t *testing.T) {
	_, ledgerSvc, rpt := newFixture(t, nil)
	seedActivity(t, ledgerSvc, uuid.New())

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rep, err := rpt.IncomeExpenditure(context.Background(), from, to)
	require.NoError(t, err)
	assert.True(t, dec("2000").Equal(rep.TotalIncome))
	assert.True(t, dec("700").Equal(rep.TotalExpense))
	assert.True(t, dec("1300").Equal(rep.NetSurplus))
}

func TestBalanceSheetFoldsSurplusIntoCapital(t *testing.T) {
	_, ledgerSvc, rpt := newFixture(t, nil)
	seedActivity(t, ledgerSvc, uuid.New())

	rep, err := rpt.BalanceSheet(context.Background(), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, rep.IsBalanced)
	assert.True(t, rep.Difference.IsZero())
	// Assets: cash 500 + receivable 800. Capital: surplus 1300.
	assert.True(t, dec("1300").Equal(rep.TotalAssets), "got %s", rep.TotalAssets)
	assert.True(t, dec("1300").Equal(rep.TotalCapital), "got %s", rep.TotalCapital)

	var found bool
	for _, row := range rep.Capital {
		if row.AccountName == "Surplus / (Deficit)" {
			found = true
			assert.True(t, dec("1300").Equal(row.Amount))
		}
	}
	assert.True(t, found)
}

func TestBalanceSheetReportsCorruptionAsData(t *testing.T) {
	store, _, rpt := newFixture(t, nil)
	// Slip an imbalanced entry past validation, straight into the store.
	_, err := store.AppendEntry(context.Background(), ledger.JournalEntry{
		ID:          uuid.New(),
		Date:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Description: "corrupted",
		Voucher:     ledger.VoucherJournal,
		Posted:      true,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountCash, Debit: dec("100")},
			{AccountCode: ledger.AccountMaintenance, Credit: dec("40")},
		},
	})
	require.NoError(t, err)

	rep, err := rpt.BalanceSheet(context.Background(), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err, "a broken sheet is reported, not failed")
	assert.False(t, rep.IsBalanced)
	assert.True(t, dec("60").Equal(rep.Difference), "got %s", rep.Difference)
}

func TestMemberDuesListsEveryUnit(t *testing.T) {
	owing := ledger.Unit{ID: uuid.New(), FlatNumber: "A-101", AreaSqft: dec("1000"), Occupants: 4, OwnerName: "R. Sharma"}
	settled := ledger.Unit{ID: uuid.New(), FlatNumber: "A-102", AreaSqft: dec("850"), Occupants: 2, OwnerName: "S. Iyer"}
	_, ledgerSvc, rpt := newFixture(t, []ledger.Unit{owing, settled})
	seedActivity(t, ledgerSvc, owing.ID)

	rep, err := rpt.MemberDues(context.Background(), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2, "flats with nothing outstanding still appear")

	byFlat := map[string]MemberDuesRow{}
	for _, row := range rep.Rows {
		byFlat[row.FlatNumber] = row
	}
	assert.True(t, dec("800").Equal(byFlat["A-101"].Outstanding))
	assert.True(t, byFlat["A-102"].Outstanding.IsZero())
	assert.True(t, dec("800").Equal(rep.TotalOutstanding))
}
