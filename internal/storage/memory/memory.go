// Package memory provides an in-memory store used for development and tests.
// It keeps code paths easy to follow while allowing the postgres store to be
// plugged in unchanged.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
)

// entryKey orders entries ascending by (Date, EntryNumber).
type entryKey struct {
	Date   time.Time
	Number int64
	ID     uuid.UUID
}

// Store is an in-memory implementation of the repository, writer and bill
// store interfaces. An RWMutex serializes writes; readers get copies, so a
// report computed from one fetch sees a consistent snapshot.
type Store struct {
	mu        sync.RWMutex
	accounts  map[string]ledger.Account
	balances  map[string]decimal.Decimal
	entries   map[uuid.UUID]*ledger.JournalEntry
	entryKeys []entryKey
	nextEntry int64
	units     map[uuid.UUID]ledger.Unit
	bills     map[uuid.UUID]*ledger.BillComputation
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]ledger.Account),
		balances:  make(map[string]decimal.Decimal),
		entries:   make(map[uuid.UUID]*ledger.JournalEntry),
		units:     make(map[uuid.UUID]ledger.Unit),
		bills:     make(map[uuid.UUID]*ledger.BillComputation),
		nextEntry: 1,
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedUnit(u ledger.Unit) { s.mu.Lock(); s.units[u.ID] = u; s.mu.Unlock() }

// Reset clears all state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.accounts = map[string]ledger.Account{}
	s.balances = map[string]decimal.Decimal{}
	s.entries = map[uuid.UUID]*ledger.JournalEntry{}
	s.entryKeys = nil
	s.nextEntry = 1
	s.units = map[uuid.UUID]ledger.Unit{}
	s.bills = map[uuid.UUID]*ledger.BillComputation{}
	s.mu.Unlock()
}

// Ready implements the readiness probe.
func (s *Store) Ready(context.Context) error { return nil }

// --- Accounts ---

// CreateAccount persists a new account and primes its cached balance.
func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Code]; ok {
		return ledger.Account{}, fmt.Errorf("%w: account %s exists", errs.ErrValidation, a.Code)
	}
	s.accounts[a.Code] = a
	s.balances[a.Code] = a.OpeningBalance
	return a, nil
}

// UpdateAccount persists descriptive changes to an account.
func (s *Store) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Code]; !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	s.accounts[a.Code] = a
	return a, nil
}

// Accounts returns every account ordered by code.
func (s *Store) Accounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// AccountByCode returns one account.
func (s *Store) AccountByCode(_ context.Context, code string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[code]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// AccountsByCodes returns the accounts matching the given codes.
func (s *Store) AccountsByCodes(_ context.Context, codes []string) (map[string]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ledger.Account, len(codes))
	for _, c := range codes {
		if a, ok := s.accounts[c]; ok {
			out[c] = a
		}
	}
	return out, nil
}

// CurrentBalance returns the cached running balance for an account.
func (s *Store) CurrentBalance(_ context.Context, code string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[code]; !ok {
		return decimal.Zero, errs.ErrNotFound
	}
	return s.balances[code], nil
}

// --- Entries ---

// AppendEntry assigns the next sequential entry number, stores the entry and
// updates each referenced account's cached balance. The whole append runs
// under one lock so concurrent posts cannot interleave.
func (s *Store) AppendEntry(_ context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendEntryLocked(entry)
}

func (s *Store) appendEntryLocked(entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	for _, ln := range entry.Lines {
		if _, ok := s.accounts[ln.AccountCode]; !ok {
			return ledger.JournalEntry{}, fmt.Errorf("%w: %s", errs.ErrUnknownAccount, ln.AccountCode)
		}
	}
	entry.EntryNumber = s.nextEntry
	s.nextEntry++
	e := entry
	e.Lines = append([]ledger.JournalLine(nil), entry.Lines...)
	s.entries[e.ID] = &e
	s.insertEntryKeyLocked(entryKey{Date: e.Date, Number: e.EntryNumber, ID: e.ID})
	for _, ln := range e.Lines {
		acc := s.accounts[ln.AccountCode]
		delta := ln.Debit.Sub(ln.Credit)
		if acc.Type.NormalSide() == ledger.SideCredit {
			delta = ln.Credit.Sub(ln.Debit)
		}
		s.balances[ln.AccountCode] = s.balances[ln.AccountCode].Add(delta)
	}
	return e, nil
}

// AppendReversal appends the reversal entry and marks the original as
// reversed in one critical section, so two concurrent reversals of the same
// entry cannot both land. The loser gets ErrAlreadyReversed and nothing is
// written.
func (s *Store) AppendReversal(_ context.Context, originalID uuid.UUID, rev ledger.JournalEntry) (ledger.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orig, ok := s.entries[originalID]
	if !ok {
		return ledger.JournalEntry{}, errs.ErrNotFound
	}
	if orig.ReversedBy != nil {
		return ledger.JournalEntry{}, fmt.Errorf("%w: entry %s", errs.ErrAlreadyReversed, originalID)
	}
	rev.ReversalOf = &orig.ID
	saved, err := s.appendEntryLocked(rev)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	orig.ReversedBy = &saved.ID
	return saved, nil
}

// Entries returns all entries ordered ascending by (Date, EntryNumber).
func (s *Store) Entries(_ context.Context) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.JournalEntry, 0, len(s.entryKeys))
	for _, k := range s.entryKeys {
		if e, ok := s.entries[k.ID]; ok {
			out = append(out, copyEntry(e))
		}
	}
	return out, nil
}

// EntryByID returns a single entry.
func (s *Store) EntryByID(_ context.Context, entryID uuid.UUID) (ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok {
		return ledger.JournalEntry{}, errs.ErrNotFound
	}
	return copyEntry(e), nil
}

// insertEntryKeyLocked keeps the (Date, EntryNumber) index sorted. Caller
// must hold the write lock.
func (s *Store) insertEntryKeyLocked(k entryKey) {
	keys := s.entryKeys
	i := sort.Search(len(keys), func(i int) bool {
		if keys[i].Date.After(k.Date) {
			return true
		}
		if keys[i].Date.Equal(k.Date) {
			return keys[i].Number > k.Number
		}
		return false
	})
	if i == len(keys) {
		s.entryKeys = append(keys, k)
		return
	}
	keys = append(keys, entryKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	s.entryKeys = keys
}

// --- Units ---

// Units returns all units.
func (s *Store) Units(_ context.Context) ([]ledger.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlatNumber < out[j].FlatNumber })
	return out, nil
}

// --- Bills ---

// SaveBills inserts a batch of bills all-or-nothing. The active-bill check
// for each (flat, period) happens under the same lock as the insert, so a
// concurrent generation of the same period cannot double-save.
func (s *Store) SaveBills(_ context.Context, bills []ledger.BillComputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(bills))
	for _, b := range bills {
		key := b.FlatID.String() + "|" + b.Period.String()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: flat %s period %s", errs.ErrDuplicateBill, b.FlatNumber, b.Period)
		}
		seen[key] = struct{}{}
		if s.activeBillLocked(b.FlatID, b.Period) != nil {
			return fmt.Errorf("%w: flat %s period %s", errs.ErrDuplicateBill, b.FlatNumber, b.Period)
		}
	}
	for _, b := range bills {
		nb := b
		nb.Components = append([]ledger.BillComponent(nil), b.Components...)
		s.bills[nb.ID] = &nb
	}
	return nil
}

// BillByID returns one bill.
func (s *Store) BillByID(_ context.Context, id uuid.UUID) (ledger.BillComputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bills[id]
	if !ok {
		return ledger.BillComputation{}, errs.ErrNotFound
	}
	return copyBill(b), nil
}

// BillsByPeriod returns every bill of a period, any status, ordered by flat.
func (s *Store) BillsByPeriod(_ context.Context, p ledger.Period) ([]ledger.BillComputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.BillComputation, 0)
	for _, b := range s.bills {
		if b.Period == p {
			out = append(out, copyBill(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FlatNumber == out[j].FlatNumber {
			return out[i].GeneratedAt.Before(out[j].GeneratedAt)
		}
		return out[i].FlatNumber < out[j].FlatNumber
	})
	return out, nil
}

// ActiveBill returns the non-reversed bill for a (flat, period), if any.
func (s *Store) ActiveBill(_ context.Context, flatID uuid.UUID, p ledger.Period) (ledger.BillComputation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b := s.activeBillLocked(flatID, p); b != nil {
		return copyBill(b), true, nil
	}
	return ledger.BillComputation{}, false, nil
}

// TransitionBill moves a bill from one status to another, checking the
// stored status under the write lock so that two concurrent transitions of
// the same bill cannot both succeed. The journal entry link is set to
// entryID as given.
func (s *Store) TransitionBill(_ context.Context, id uuid.UUID, from, to ledger.BillStatus, entryID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return errs.ErrNotFound
	}
	if b.Status != from {
		return fmt.Errorf("%w: bill %s is %s, expected %s", errs.ErrInvalidStateTransition, id, b.Status, from)
	}
	b.Status = to
	b.JournalEntryID = entryID
	return nil
}

func (s *Store) activeBillLocked(flatID uuid.UUID, p ledger.Period) *ledger.BillComputation {
	for _, b := range s.bills {
		if b.FlatID == flatID && b.Period == p && b.Status != ledger.BillStatusReversed {
			return b
		}
	}
	return nil
}

func copyEntry(e *ledger.JournalEntry) ledger.JournalEntry {
	out := *e
	out.Lines = append([]ledger.JournalLine(nil), e.Lines...)
	return out
}

func copyBill(b *ledger.BillComputation) ledger.BillComputation {
	out := *b
	out.Components = append([]ledger.BillComponent(nil), b.Components...)
	return out
}
