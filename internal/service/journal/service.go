// Package journal implements the ledger core: it accepts balanced journal
// entries, maintains account balances, and answers as-of-date queries.
// Entries are append-only; a posted entry is corrected by reversal, never by
// mutation.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Accounts(ctx context.Context) ([]ledger.Account, error)
	AccountByCode(ctx context.Context, code string) (ledger.Account, error)
	AccountsByCodes(ctx context.Context, codes []string) (map[string]ledger.Account, error)
	// Entries returns all posted entries ordered ascending by (Date, EntryNumber).
	Entries(ctx context.Context) ([]ledger.JournalEntry, error)
	EntryByID(ctx context.Context, entryID uuid.UUID) (ledger.JournalEntry, error)
}

// Writer defines write operations needed by the service. Implementations
// must serialize appends: entry numbers are sequential and cached balances
// may not interleave.
type Writer interface {
	AppendEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error)
	// AppendReversal appends the reversal entry and marks the original as
	// reversed in one atomic step. A second reversal of the same entry must
	// fail with ErrAlreadyReversed and leave nothing behind.
	AppendReversal(ctx context.Context, originalID uuid.UUID, rev ledger.JournalEntry) (ledger.JournalEntry, error)
}

// Service exposes validation, posting and balance queries over the ledger.
type Service interface {
	ValidateEntry(ctx context.Context, e ledger.JournalEntry) error
	Post(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error)
	ListEntries(ctx context.Context) ([]ledger.JournalEntry, error)
	Entry(ctx context.Context, entryID uuid.UUID) (ledger.JournalEntry, error)
	Reverse(ctx context.Context, entryID uuid.UUID, date time.Time, reason string) (ledger.JournalEntry, error)
	// BalanceAsOf returns the account's opening balance plus the signed sum of
	// lines dated on or before asOf, positive on the account's normal side.
	BalanceAsOf(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error)
	// PeriodTotal sums net debit movement across the given accounts for one
	// billing period (entries tagged with the period, or dated inside it).
	PeriodTotal(ctx context.Context, codes []string, p ledger.Period) (decimal.Decimal, error)
	// FlatOutstanding returns the net receivable carried by a flat before the
	// given date.
	FlatOutstanding(ctx context.Context, flatID uuid.UUID, before time.Time) (decimal.Decimal, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the ledger core service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) ValidateEntry(ctx context.Context, entry ledger.JournalEntry) error {
	if entry.Date.IsZero() {
		return fmt.Errorf("%w: date is required", errs.ErrValidation)
	}
	if len(entry.Lines) < 2 {
		return fmt.Errorf("%w: at least 2 lines", errs.ErrValidation)
	}
	codes := make([]string, 0, len(entry.Lines))
	for i, ln := range entry.Lines {
		if ln.AccountCode == "" {
			return fmt.Errorf("%w: line[%d]: account_code required", errs.ErrValidation, i)
		}
		if ln.Debit.IsNegative() || ln.Credit.IsNegative() {
			return fmt.Errorf("%w: line[%d]: amounts must be >= 0", errs.ErrValidation, i)
		}
		if !ln.Debit.IsZero() && !ln.Credit.IsZero() {
			return fmt.Errorf("%w: line[%d]: at most one of debit/credit", errs.ErrValidation, i)
		}
		codes = append(codes, ln.AccountCode)
	}
	if !entry.IsBalanced() {
		return fmt.Errorf("%w: sum(debits) %s != sum(credits) %s",
			errs.ErrImbalancedEntry, entry.TotalDebit().StringFixed(2), entry.TotalCredit().StringFixed(2))
	}
	accs, err := s.repo.AccountsByCodes(ctx, codes)
	if err != nil {
		return err
	}
	for i, ln := range entry.Lines {
		if _, ok := accs[ln.AccountCode]; !ok {
			return fmt.Errorf("%w: line[%d]: account %s", errs.ErrUnknownAccount, i, ln.AccountCode)
		}
	}
	return nil
}

// Post validates and appends the entry. Nothing is persisted when validation
// fails.
func (s *service) Post(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	if err := s.ValidateEntry(ctx, entry); err != nil {
		return ledger.JournalEntry{}, err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Voucher == "" {
		entry.Voucher = ledger.VoucherJournal
	}
	entry.Posted = true
	lines := make([]ledger.JournalLine, len(entry.Lines))
	copy(lines, entry.Lines)
	entry.Lines = lines
	return s.writer.AppendEntry(ctx, entry)
}

func (s *service) ListEntries(ctx context.Context) ([]ledger.JournalEntry, error) {
	return s.repo.Entries(ctx)
}

func (s *service) Entry(ctx context.Context, entryID uuid.UUID) (ledger.JournalEntry, error) {
	if entryID == uuid.Nil {
		return ledger.JournalEntry{}, errs.ErrInvalid
	}
	return s.repo.EntryByID(ctx, entryID)
}

// Reverse posts a new entry with every line's debit and credit swapped and
// links it to the original. The original stays retrievable, marked reversed.
func (s *service) Reverse(ctx context.Context, entryID uuid.UUID, date time.Time, reason string) (ledger.JournalEntry, error) {
	if entryID == uuid.Nil {
		return ledger.JournalEntry{}, errs.ErrInvalid
	}
	orig, err := s.repo.EntryByID(ctx, entryID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if orig.ReversedBy != nil {
		return ledger.JournalEntry{}, fmt.Errorf("%w: entry %s", errs.ErrAlreadyReversed, orig.ID)
	}
	lines := make([]ledger.JournalLine, 0, len(orig.Lines))
	for _, ln := range orig.Lines {
		lines = append(lines, ledger.JournalLine{
			AccountCode: ln.AccountCode,
			Debit:       ln.Credit,
			Credit:      ln.Debit,
			Description: ln.Description,
			FlatID:      ln.FlatID,
		})
	}
	rev := ledger.JournalEntry{
		Date:         date,
		Description:  fmt.Sprintf("reversal of #%d: %s", orig.EntryNumber, orig.Description),
		Voucher:      ledger.VoucherReversal,
		ExpenseMonth: orig.ExpenseMonth,
		Lines:        lines,
		ReversalOf:   &orig.ID,
		Reason:       reason,
	}
	if err := s.ValidateEntry(ctx, rev); err != nil {
		return ledger.JournalEntry{}, err
	}
	rev.ID = uuid.New()
	rev.Posted = true
	// The store rejects a second reversal atomically; the ReversedBy check
	// above is only the friendly fast path.
	return s.writer.AppendReversal(ctx, orig.ID, rev)
}

func (s *service) BalanceAsOf(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error) {
	acc, err := s.repo.AccountByCode(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	bal := acc.OpeningBalance
	for _, e := range entries {
		if e.Date.After(asOf) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountCode != code {
				continue
			}
			bal = bal.Add(signedMovement(acc.Type, ln))
		}
	}
	return bal, nil
}

func (s *service) PeriodTotal(ctx context.Context, codes []string, p ledger.Period) (decimal.Decimal, error) {
	if len(codes) == 0 {
		return decimal.Zero, nil
	}
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		if !entryInPeriod(e, p) {
			continue
		}
		for _, ln := range e.Lines {
			if _, ok := want[ln.AccountCode]; !ok {
				continue
			}
			total = total.Add(ln.Debit).Sub(ln.Credit)
		}
	}
	return total, nil
}

func (s *service) FlatOutstanding(ctx context.Context, flatID uuid.UUID, before time.Time) (decimal.Decimal, error) {
	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	out := decimal.Zero
	for _, e := range entries {
		if !e.Date.Before(before) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountCode != ledger.AccountDuesReceivable || ln.FlatID == nil || *ln.FlatID != flatID {
				continue
			}
			out = out.Add(ln.Debit).Sub(ln.Credit)
		}
	}
	return out, nil
}

// entryInPeriod matches on the explicit period tag when present, else the
// entry date.
func entryInPeriod(e ledger.JournalEntry, p ledger.Period) bool {
	if e.ExpenseMonth != nil {
		return *e.ExpenseMonth == p
	}
	return p.Contains(e.Date)
}

// signedMovement maps a line to the account's normal-side sign convention:
// assets and expenses grow on debit, the rest on credit.
func signedMovement(t ledger.AccountType, ln ledger.JournalLine) decimal.Decimal {
	if t.NormalSide() == ledger.SideDebit {
		return ln.Debit.Sub(ln.Credit)
	}
	return ln.Credit.Sub(ln.Debit)
}
