package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	for _, a := range ledger.DefaultChart() {
		if _, err := s.CreateAccount(context.Background(), a); err != nil {
			t.Fatalf("seed account %s: %v", a.Code, err)
		}
	}
	return s
}

func TestCreateAccountRejectsDuplicateCode(t *testing.T) {
	s := seededStore(t)
	_, err := s.CreateAccount(context.Background(), ledger.Account{Code: ledger.AccountCash, Name: "Dup", Type: ledger.AccountTypeAsset})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAppendEntryOrdersByDateThenNumber(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	mk := func(day int, amount string) ledger.JournalEntry {
		return ledger.JournalEntry{
			ID:      uuid.New(),
			Date:    time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
			Voucher: ledger.VoucherJournal,
			Posted:  true,
			Lines: []ledger.JournalLine{
				{AccountCode: ledger.AccountCash, Debit: dec(t, amount)},
				{AccountCode: ledger.AccountMaintenance, Credit: dec(t, amount)},
			},
		}
	}
	// Appended out of date order.
	if _, err := s.AppendEntry(ctx, mk(20, "1")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendEntry(ctx, mk(5, "2")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendEntry(ctx, mk(12, "3")); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Date.Before(entries[i-1].Date) {
			t.Fatalf("entries out of order: %v before %v", entries[i].Date, entries[i-1].Date)
		}
	}
	if entries[0].EntryNumber != 2 || entries[2].EntryNumber != 1 {
		t.Fatalf("expected date order to win over append order: %+v", entries)
	}
}

func TestAppendEntryRejectsUnknownAccount(t *testing.T) {
	s := seededStore(t)
	_, err := s.AppendEntry(context.Background(), ledger.JournalEntry{
		ID:      uuid.New(),
		Date:    time.Now().UTC(),
		Voucher: ledger.VoucherJournal,
		Lines: []ledger.JournalLine{
			{AccountCode: "9999", Debit: dec(t, "1")},
			{AccountCode: ledger.AccountCash, Credit: dec(t, "1")},
		},
	})
	if !errors.Is(err, errs.ErrUnknownAccount) {
		t.Fatalf("expected unknown account error, got %v", err)
	}
}

func TestAppendEntryUpdatesCachedBalances(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	_, err := s.AppendEntry(ctx, ledger.JournalEntry{
		ID:      uuid.New(),
		Date:    time.Now().UTC(),
		Voucher: ledger.VoucherReceipt,
		Posted:  true,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountCash, Debit: dec(t, "750")},
			{AccountCode: ledger.AccountMaintenance, Credit: dec(t, "750")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	cash, err := s.CurrentBalance(ctx, ledger.AccountCash)
	if err != nil {
		t.Fatal(err)
	}
	if !cash.Equal(dec(t, "750")) {
		t.Fatalf("cash balance: got %s", cash)
	}
	income, err := s.CurrentBalance(ctx, ledger.AccountMaintenance)
	if err != nil {
		t.Fatal(err)
	}
	if !income.Equal(dec(t, "750")) {
		t.Fatalf("income balance on its normal side: got %s", income)
	}
}

func billFor(flatID uuid.UUID, p ledger.Period, status ledger.BillStatus) ledger.BillComputation {
	return ledger.BillComputation{
		ID:          uuid.New(),
		FlatID:      flatID,
		FlatNumber:  "A-101",
		Period:      p,
		Status:      status,
		GeneratedAt: time.Now().UTC(),
	}
}

func TestSaveBillsIsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	flatA, flatB := uuid.New(), uuid.New()
	p := ledger.Period{Year: 2026, Month: time.August}

	if err := s.SaveBills(ctx, []ledger.BillComputation{billFor(flatA, p, ledger.BillStatusDraft)}); err != nil {
		t.Fatal(err)
	}
	// Second batch: flatB is new, flatA collides. Nothing may be written.
	err := s.SaveBills(ctx, []ledger.BillComputation{
		billFor(flatB, p, ledger.BillStatusDraft),
		billFor(flatA, p, ledger.BillStatusDraft),
	})
	if !errors.Is(err, errs.ErrDuplicateBill) {
		t.Fatalf("expected duplicate bill error, got %v", err)
	}
	bills, err := s.BillsByPeriod(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(bills) != 1 {
		t.Fatalf("partial write: want 1 bill, got %d", len(bills))
	}
}

func TestActiveBillIgnoresReversed(t *testing.T) {
	s := New()
	ctx := context.Background()
	flatID := uuid.New()
	p := ledger.Period{Year: 2026, Month: time.August}

	b := billFor(flatID, p, ledger.BillStatusPosted)
	if err := s.SaveBills(ctx, []ledger.BillComputation{b}); err != nil {
		t.Fatal(err)
	}
	if _, active, _ := s.ActiveBill(ctx, flatID, p); !active {
		t.Fatal("posted bill must count as active")
	}

	if err := s.TransitionBill(ctx, b.ID, ledger.BillStatusPosted, ledger.BillStatusReversed, nil); err != nil {
		t.Fatal(err)
	}
	if _, active, _ := s.ActiveBill(ctx, flatID, p); active {
		t.Fatal("reversed bill must not count as active")
	}
	// A fresh draft for the same pair is allowed again.
	if err := s.SaveBills(ctx, []ledger.BillComputation{billFor(flatID, p, ledger.BillStatusDraft)}); err != nil {
		t.Fatalf("regeneration after reversal: %v", err)
	}
}

func TestAppendReversal(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	mk := func(debit, credit string) ledger.JournalEntry {
		return ledger.JournalEntry{
			ID:      uuid.New(),
			Date:    time.Now().UTC(),
			Voucher: ledger.VoucherJournal,
			Posted:  true,
			Lines: []ledger.JournalLine{
				{AccountCode: ledger.AccountCash, Debit: dec(t, debit), Credit: dec(t, credit)},
				{AccountCode: ledger.AccountMaintenance, Debit: dec(t, credit), Credit: dec(t, debit)},
			},
		}
	}
	orig, err := s.AppendEntry(ctx, mk("1", "0"))
	if err != nil {
		t.Fatal(err)
	}
	rev, err := s.AppendReversal(ctx, orig.ID, mk("0", "1"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.EntryByID(ctx, orig.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReversedBy == nil || *got.ReversedBy != rev.ID {
		t.Fatalf("original not linked: %+v", got)
	}
	if rev.ReversalOf == nil || *rev.ReversalOf != orig.ID {
		t.Fatalf("reversal not linked back: %+v", rev)
	}
	if _, err := s.AppendReversal(ctx, uuid.New(), mk("0", "1")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppendReversalRejectsSecondReversal(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	orig, err := s.AppendEntry(ctx, ledger.JournalEntry{
		ID:      uuid.New(),
		Date:    time.Now().UTC(),
		Voucher: ledger.VoucherJournal,
		Posted:  true,
		Lines: []ledger.JournalLine{
			{AccountCode: ledger.AccountCash, Debit: dec(t, "100")},
			{AccountCode: ledger.AccountMaintenance, Credit: dec(t, "100")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	rev := func() ledger.JournalEntry {
		return ledger.JournalEntry{
			ID:      uuid.New(),
			Date:    time.Now().UTC(),
			Voucher: ledger.VoucherReversal,
			Posted:  true,
			Lines: []ledger.JournalLine{
				{AccountCode: ledger.AccountCash, Credit: dec(t, "100")},
				{AccountCode: ledger.AccountMaintenance, Debit: dec(t, "100")},
			},
		}
	}
	if _, err := s.AppendReversal(ctx, orig.ID, rev()); err != nil {
		t.Fatal(err)
	}
	// The second reversal loses atomically: no entry, no balance movement.
	second := rev()
	if _, err := s.AppendReversal(ctx, orig.ID, second); !errors.Is(err, errs.ErrAlreadyReversed) {
		t.Fatalf("expected already reversed, got %v", err)
	}
	if _, err := s.EntryByID(ctx, second.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("losing reversal must not be stored, got %v", err)
	}
	bal, err := s.CurrentBalance(ctx, ledger.AccountCash)
	if err != nil {
		t.Fatal(err)
	}
	if !bal.IsZero() {
		t.Fatalf("cash balance should net to zero after one reversal, got %s", bal)
	}
}

func TestTransitionBillRequiresCurrentStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := ledger.Period{Year: 2026, Month: time.August}
	b := billFor(uuid.New(), p, ledger.BillStatusDraft)
	if err := s.SaveBills(ctx, []ledger.BillComputation{b}); err != nil {
		t.Fatal(err)
	}
	entryID := uuid.New()
	if err := s.TransitionBill(ctx, b.ID, ledger.BillStatusDraft, ledger.BillStatusPosted, &entryID); err != nil {
		t.Fatal(err)
	}
	// A second claim of the same draft fails: the stored status moved on.
	if err := s.TransitionBill(ctx, b.ID, ledger.BillStatusDraft, ledger.BillStatusPosted, &entryID); !errors.Is(err, errs.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid state transition, got %v", err)
	}
	got, err := s.BillByID(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ledger.BillStatusPosted || got.JournalEntryID == nil || *got.JournalEntryID != entryID {
		t.Fatalf("transition not persisted: %+v", got)
	}
	if err := s.TransitionBill(ctx, uuid.New(), ledger.BillStatusDraft, ledger.BillStatusPosted, nil); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
