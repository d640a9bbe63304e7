package journal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newService(t *testing.T) (*memory.Store, Service) {
	t.Helper()
	store := memory.New()
	for _, a := range ledger.DefaultChart() {
		_, err := store.CreateAccount(context.Background(), a)
		require.NoError(t, err)
	}
	return store, New(store, store)
}

func receiptEntry(amount string, date time.Time) ledger.JournalEntry {
	return ledger.JournalEntry{
		Date:        date,
		Description: "cash receipt",
		Voucher:     ledger.VoucherReceipt,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountCash, Debit: dec(amount)},
			{AccountCode: ledger.AccountDuesReceivable, Credit: dec(amount)},
		},
	}
}

func TestPostAssignsSequentialNumbers(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()
	first, err := svc.Post(ctx, receiptEntry("100", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	second, err := svc.Post(ctx, receiptEntry("200", time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.EntryNumber)
	assert.Equal(t, int64(2), second.EntryNumber)
	assert.True(t, first.Posted)
}

func TestPostRejectsImbalance(t *testing.T) {
	_, svc := newService(t)
	e := receiptEntry("100", time.Now().UTC())
	e.Lines[1].Credit = dec("90")
	_, err := svc.Post(context.Background(), e)
	assert.ErrorIs(t, err, errs.ErrImbalancedEntry)

	entries, err := svc.ListEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may persist on validation failure")
}

func TestPostRejectsUnknownAccount(t *testing.T) {
	_, svc := newService(t)
	e := receiptEntry("100", time.Now().UTC())
	e.Lines[0].AccountCode = "9999"
	_, err := svc.Post(context.Background(), e)
	assert.ErrorIs(t, err, errs.ErrUnknownAccount)
}

func TestPostRejectsSingleLine(t *testing.T) {
	_, svc := newService(t)
	e := receiptEntry("100", time.Now().UTC())
	e.Lines = e.Lines[:1]
	_, err := svc.Post(context.Background(), e)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestPostRejectsBothSidesOnOneLine(t *testing.T) {
	_, svc := newService(t)
	e := receiptEntry("100", time.Now().UTC())
	e.Lines[0].Credit = dec("100")
	e.Lines[0].Debit = dec("100")
	_, err := svc.Post(context.Background(), e)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestReverseSwapsSides(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()
	orig, err := svc.Post(ctx, receiptEntry("250", time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	rev, err := svc.Reverse(ctx, orig.ID, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), "posted against the wrong flat")
	require.NoError(t, err)

	assert.Equal(t, ledger.VoucherReversal, rev.Voucher)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, orig.ID, *rev.ReversalOf)
	assert.True(t, rev.Lines[0].Credit.Equal(dec("250")), "debit becomes credit")
	assert.True(t, rev.Lines[1].Debit.Equal(dec("250")), "credit becomes debit")

	orig, err = svc.Entry(ctx, orig.ID)
	require.NoError(t, err)
	require.NotNil(t, orig.ReversedBy)
	assert.Equal(t, rev.ID, *orig.ReversedBy)

	// Net effect on the account is zero.
	bal, err := svc.BalanceAsOf(ctx, ledger.AccountCash, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "got %s", bal)
}

func TestReverseTwiceFails(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()
	orig, err := svc.Post(ctx, receiptEntry("10", time.Now().UTC()))
	require.NoError(t, err)
	_, err = svc.Reverse(ctx, orig.ID, time.Now().UTC(), "first reversal is fine")
	require.NoError(t, err)
	_, err = svc.Reverse(ctx, orig.ID, time.Now().UTC(), "second must be rejected")
	assert.ErrorIs(t, err, errs.ErrAlreadyReversed)
}

func TestBalanceAsOfIgnoresLaterEntries(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()
	_, err := svc.Post(ctx, receiptEntry("100", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = svc.Post(ctx, receiptEntry("50", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	bal, err := svc.BalanceAsOf(ctx, ledger.AccountCash, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(bal), "got %s", bal)
}

func TestPeriodTotalPrefersExpenseMonthTag(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()
	august := ledger.Period{Year: 2026, Month: time.August}

	// Paid in September, tagged to August.
	tagged := ledger.JournalEntry{
		Date:         time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
		Description:  "tanker bill paid late",
		Voucher:      ledger.VoucherPayment,
		ExpenseMonth: &august,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountWaterTanker, Debit: dec("700")},
			{AccountCode: ledger.AccountCash, Credit: dec("700")},
		},
	}
	_, err := svc.Post(ctx, tagged)
	require.NoError(t, err)

	// Dated in August, untagged.
	_, err = svc.Post(ctx, ledger.JournalEntry{
		Date:        time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Description: "pump electricity",
		Voucher:     ledger.VoucherPayment,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountPumpElectricity, Debit: dec("300")},
			{AccountCode: ledger.AccountCash, Credit: dec("300")},
		},
	})
	require.NoError(t, err)

	total, err := svc.PeriodTotal(ctx, []string{ledger.AccountWaterTanker, ledger.AccountPumpElectricity}, august)
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(total), "got %s", total)

	september := ledger.Period{Year: 2026, Month: time.September}
	total, err = svc.PeriodTotal(ctx, []string{ledger.AccountWaterTanker, ledger.AccountPumpElectricity}, september)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), "tagged entry must not also count in september, got %s", total)
}

func TestFlatOutstandingNetsReceipts(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()
	flatID := uuid.New()

	_, err := svc.Post(ctx, ledger.JournalEntry{
		Date:        time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Description: "july dues",
		Voucher:     ledger.VoucherBill,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountDuesReceivable, Debit: dec("1500"), FlatID: &flatID},
			{AccountCode: ledger.AccountMaintenance, Credit: dec("1500")},
		},
	})
	require.NoError(t, err)
	_, err = svc.Post(ctx, ledger.JournalEntry{
		Date:        time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		Description: "part payment",
		Voucher:     ledger.VoucherReceipt,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountCash, Debit: dec("900")},
			{AccountCode: ledger.AccountDuesReceivable, Credit: dec("900"), FlatID: &flatID},
		},
	})
	require.NoError(t, err)

	out, err := svc.FlatOutstanding(ctx, flatID, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, dec("600").Equal(out), "got %s", out)

	other, err := svc.FlatOutstanding(ctx, uuid.New(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}
