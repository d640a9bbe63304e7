// Package postgres provides a pgx-backed storage implementation satisfying
// the repository, writer and bill store interfaces used by the services.
//
// It is intentionally small and explicit. Migrations that create the
// expected schema live under db/migrations. Monetary values travel as text
// over the wire and are parsed into exact decimals on scan.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
)

// Store holds a pgx connection pool. All methods are safe for concurrent
// use; writes run in transactions.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Accounts ---

// CreateAccount inserts an account and primes its cached balance.
func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
		insert into accounts (code, name, type, opening_balance, system)
		values ($1, $2, $3, $4, $5)
	`, a.Code, a.Name, a.Type, a.OpeningBalance.String(), a.System); err != nil {
		if isUniqueViolation(err) {
			return ledger.Account{}, fmt.Errorf("%w: account %s exists", errs.ErrValidation, a.Code)
		}
		return ledger.Account{}, err
	}
	if _, err := tx.Exec(ctx, `
		insert into account_balances (code, balance) values ($1, $2)
	`, a.Code, a.OpeningBalance.String()); err != nil {
		return ledger.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

// UpdateAccount persists descriptive changes to an account.
func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	ct, err := s.pool.Exec(ctx, `
		update accounts set name=$1 where code=$2
	`, a.Name, a.Code)
	if err != nil {
		return ledger.Account{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// Accounts returns every account ordered by code.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `
		select code, name, type, opening_balance::text, system
		from accounts
		order by code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AccountByCode returns one account.
func (s *Store) AccountByCode(ctx context.Context, code string) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `
		select code, name, type, opening_balance::text, system
		from accounts
		where code = $1
	`, code)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, err
}

// AccountsByCodes returns accounts matching the given codes.
func (s *Store) AccountsByCodes(ctx context.Context, codes []string) (map[string]ledger.Account, error) {
	if len(codes) == 0 {
		return map[string]ledger.Account{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		select code, name, type, opening_balance::text, system
		from accounts
		where code = any($1)
	`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]ledger.Account, len(codes))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.Code] = a
	}
	return out, rows.Err()
}

// CurrentBalance returns the cached running balance for an account.
func (s *Store) CurrentBalance(ctx context.Context, code string) (decimal.Decimal, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `
		select balance::text from account_balances where code = $1
	`, code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, errs.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// --- Entries ---

// AppendEntry inserts an entry with its lines and bumps each referenced
// account's cached balance, all in one transaction. Entry numbers come from
// a sequence, so concurrent appends serialize on the database.
func (s *Store) AppendEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entry, err = s.appendEntryTx(ctx, tx, entry)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.JournalEntry{}, err
	}
	return entry, nil
}

func (s *Store) appendEntryTx(ctx context.Context, tx pgx.Tx, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	if err := tx.QueryRow(ctx, `select nextval('entry_numbers')`).Scan(&entry.EntryNumber); err != nil {
		return ledger.JournalEntry{}, err
	}
	var expYear, expMonth *int
	if entry.ExpenseMonth != nil {
		y, m := entry.ExpenseMonth.Year, int(entry.ExpenseMonth.Month)
		expYear, expMonth = &y, &m
	}
	if _, err := tx.Exec(ctx, `
		insert into entries (id, entry_number, date, description, voucher, expense_year, expense_month, posted, reversal_of, reason)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.ID, entry.EntryNumber, entry.Date, entry.Description, entry.Voucher, expYear, expMonth, entry.Posted, entry.ReversalOf, entry.Reason); err != nil {
		return ledger.JournalEntry{}, err
	}
	for _, ln := range entry.Lines {
		if _, err := tx.Exec(ctx, `
			insert into entry_lines (entry_id, account_code, debit, credit, description, flat_id)
			values ($1,$2,$3,$4,$5,$6)
		`, entry.ID, ln.AccountCode, ln.Debit.String(), ln.Credit.String(), ln.Description, ln.FlatID); err != nil {
			return ledger.JournalEntry{}, err
		}
		if _, err := tx.Exec(ctx, `
			update account_balances
			set balance = balance + (
				case when (select type from accounts where code=$1) in ('asset','expense')
				     then $2::numeric - $3::numeric
				     else $3::numeric - $2::numeric end)
			where code = $1
		`, ln.AccountCode, ln.Debit.String(), ln.Credit.String()); err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	return entry, nil
}

// AppendReversal inserts the reversal entry and marks the original reversed
// in one transaction. The update is conditional on reversed_by still being
// null, so of two concurrent reversals exactly one commits; the loser's
// insert rolls back with the transaction.
func (s *Store) AppendReversal(ctx context.Context, originalID uuid.UUID, rev ledger.JournalEntry) (ledger.JournalEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rev.ReversalOf = &originalID
	rev, err = s.appendEntryTx(ctx, tx, rev)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	ct, err := tx.Exec(ctx, `
		update entries set reversed_by=$1 where id=$2 and reversed_by is null
	`, rev.ID, originalID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `select exists(select 1 from entries where id=$1)`, originalID).Scan(&exists); err != nil {
			return ledger.JournalEntry{}, err
		}
		if !exists {
			return ledger.JournalEntry{}, errs.ErrNotFound
		}
		return ledger.JournalEntry{}, fmt.Errorf("%w: entry %s", errs.ErrAlreadyReversed, originalID)
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.JournalEntry{}, err
	}
	return rev, nil
}

// Entries returns all entries with lines, ordered by (date, entry_number).
func (s *Store) Entries(ctx context.Context) ([]ledger.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, `
		select id, entry_number, date, description, voucher, expense_year, expense_month, posted, reversal_of, reversed_by, reason
		from entries
		order by date asc, entry_number asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]ledger.JournalEntry, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}
	lineRows, err := s.pool.Query(ctx, `
		select entry_id, account_code, debit::text, credit::text, description, flat_id
		from entry_lines
		where entry_id = any($1)
		order by id asc
	`, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	idx := make(map[uuid.UUID]*ledger.JournalEntry, len(entries))
	for i := range entries {
		idx[entries[i].ID] = &entries[i]
	}
	for lineRows.Next() {
		var entryID uuid.UUID
		ln, err := scanLine(lineRows, &entryID)
		if err != nil {
			return nil, err
		}
		if e := idx[entryID]; e != nil {
			e.Lines = append(e.Lines, ln)
		}
	}
	return entries, lineRows.Err()
}

// EntryByID returns an entry with lines populated.
func (s *Store) EntryByID(ctx context.Context, entryID uuid.UUID) (ledger.JournalEntry, error) {
	row := s.pool.QueryRow(ctx, `
		select id, entry_number, date, description, voucher, expense_year, expense_month, posted, reversal_of, reversed_by, reason
		from entries
		where id = $1
	`, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.JournalEntry{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	rows, err := s.pool.Query(ctx, `
		select entry_id, account_code, debit::text, credit::text, description, flat_id
		from entry_lines
		where entry_id = $1
		order by id asc
	`, entryID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		ln, err := scanLine(rows, &id)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
		e.Lines = append(e.Lines, ln)
	}
	return e, rows.Err()
}

// --- Units ---

// Units returns all units ordered by flat number.
func (s *Store) Units(ctx context.Context) ([]ledger.Unit, error) {
	rows, err := s.pool.Query(ctx, `
		select id, flat_number, area_sqft::text, occupants, owner_name
		from units
		order by flat_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Unit, 0)
	for rows.Next() {
		var u ledger.Unit
		var area string
		if err := rows.Scan(&u.ID, &u.FlatNumber, &area, &u.Occupants, &u.OwnerName); err != nil {
			return nil, err
		}
		if u.AreaSqft, err = decimal.NewFromString(area); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- Bills ---

// billComponent is the jsonb representation of a bill component.
type billComponent struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

// SaveBills inserts the batch in one transaction. The partial unique index
// bills_active_uq makes the active-per-(flat, period) check atomic with the
// insert; a violation maps to ErrDuplicateBill.
func (s *Store) SaveBills(ctx context.Context, bills []ledger.BillComputation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, b := range bills {
		comps, err := marshalComponents(b.Components)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			insert into bills (id, flat_id, flat_number, year, month, components, total, status, journal_entry_id, generated_at)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, b.ID, b.FlatID, b.FlatNumber, b.Period.Year, int(b.Period.Month), comps, b.Total.String(), b.Status, b.JournalEntryID, b.GeneratedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: flat %s period %s", errs.ErrDuplicateBill, b.FlatNumber, b.Period)
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

// BillByID returns one bill.
func (s *Store) BillByID(ctx context.Context, id uuid.UUID) (ledger.BillComputation, error) {
	row := s.pool.QueryRow(ctx, `
		select id, flat_id, flat_number, year, month, components, total::text, status, journal_entry_id, generated_at
		from bills
		where id = $1
	`, id)
	b, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.BillComputation{}, errs.ErrNotFound
	}
	return b, err
}

// BillsByPeriod returns every bill of a period, any status.
func (s *Store) BillsByPeriod(ctx context.Context, p ledger.Period) ([]ledger.BillComputation, error) {
	rows, err := s.pool.Query(ctx, `
		select id, flat_id, flat_number, year, month, components, total::text, status, journal_entry_id, generated_at
		from bills
		where year = $1 and month = $2
		order by flat_number, generated_at
	`, p.Year, int(p.Month))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.BillComputation, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ActiveBill returns the non-reversed bill for a (flat, period), if any.
func (s *Store) ActiveBill(ctx context.Context, flatID uuid.UUID, p ledger.Period) (ledger.BillComputation, bool, error) {
	row := s.pool.QueryRow(ctx, `
		select id, flat_id, flat_number, year, month, components, total::text, status, journal_entry_id, generated_at
		from bills
		where flat_id = $1 and year = $2 and month = $3 and status <> 'reversed'
	`, flatID, p.Year, int(p.Month))
	b, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.BillComputation{}, false, nil
	}
	if err != nil {
		return ledger.BillComputation{}, false, err
	}
	return b, true, nil
}

// TransitionBill moves a bill from one status to another. The update is
// conditional on the stored status, so of two concurrent transitions of the
// same bill exactly one lands; the other gets ErrInvalidStateTransition.
func (s *Store) TransitionBill(ctx context.Context, id uuid.UUID, from, to ledger.BillStatus, entryID *uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `
		update bills set status=$1, journal_entry_id=$2 where id=$3 and status=$4
	`, to, entryID, id, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `select exists(select 1 from bills where id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%w: bill %s is no longer %s", errs.ErrInvalidStateTransition, id, from)
	}
	return nil
}

// SeedDev inserts the default chart and a few sample units for local runs.
func (s *Store) SeedDev(ctx context.Context) ([]ledger.Unit, error) {
	for _, a := range ledger.DefaultChart() {
		if _, err := s.CreateAccount(ctx, a); err != nil && !errors.Is(err, errs.ErrValidation) {
			return nil, err
		}
	}
	units := []ledger.Unit{
		{ID: uuid.New(), FlatNumber: "A-101", AreaSqft: decimal.NewFromInt(850), Occupants: 3, OwnerName: "S. Deshpande"},
		{ID: uuid.New(), FlatNumber: "A-102", AreaSqft: decimal.NewFromInt(1100), Occupants: 4, OwnerName: "R. Iyer"},
		{ID: uuid.New(), FlatNumber: "B-201", AreaSqft: decimal.NewFromInt(850), Occupants: 0, OwnerName: "M. Shah"},
	}
	for _, u := range units {
		if _, err := s.pool.Exec(ctx, `
			insert into units (id, flat_number, area_sqft, occupants, owner_name)
			values ($1,$2,$3,$4,$5)
			on conflict (flat_number) do nothing
		`, u.ID, u.FlatNumber, u.AreaSqft.String(), u.Occupants, u.OwnerName); err != nil {
			return nil, err
		}
	}
	return units, nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var a ledger.Account
	var opening string
	if err := row.Scan(&a.Code, &a.Name, &a.Type, &opening, &a.System); err != nil {
		return ledger.Account{}, err
	}
	d, err := decimal.NewFromString(opening)
	if err != nil {
		return ledger.Account{}, err
	}
	a.OpeningBalance = d
	return a, nil
}

func scanEntry(row rowScanner) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var expYear, expMonth *int
	if err := row.Scan(&e.ID, &e.EntryNumber, &e.Date, &e.Description, &e.Voucher,
		&expYear, &expMonth, &e.Posted, &e.ReversalOf, &e.ReversedBy, &e.Reason); err != nil {
		return ledger.JournalEntry{}, err
	}
	if expYear != nil && expMonth != nil {
		e.ExpenseMonth = &ledger.Period{Year: *expYear, Month: time.Month(*expMonth)}
	}
	return e, nil
}

func scanLine(row rowScanner, entryID *uuid.UUID) (ledger.JournalLine, error) {
	var ln ledger.JournalLine
	var debit, credit string
	if err := row.Scan(entryID, &ln.AccountCode, &debit, &credit, &ln.Description, &ln.FlatID); err != nil {
		return ledger.JournalLine{}, err
	}
	var err error
	if ln.Debit, err = decimal.NewFromString(debit); err != nil {
		return ledger.JournalLine{}, err
	}
	if ln.Credit, err = decimal.NewFromString(credit); err != nil {
		return ledger.JournalLine{}, err
	}
	return ln, nil
}

func scanBill(row rowScanner) (ledger.BillComputation, error) {
	var b ledger.BillComputation
	var year, month int
	var comps []byte
	var total string
	if err := row.Scan(&b.ID, &b.FlatID, &b.FlatNumber, &year, &month, &comps, &total, &b.Status, &b.JournalEntryID, &b.GeneratedAt); err != nil {
		return ledger.BillComputation{}, err
	}
	b.Period = ledger.Period{Year: year, Month: time.Month(month)}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return ledger.BillComputation{}, err
	}
	b.Total = d
	if b.Components, err = unmarshalComponents(comps); err != nil {
		return ledger.BillComputation{}, err
	}
	return b, nil
}

func marshalComponents(comps []ledger.BillComponent) ([]byte, error) {
	out := make([]billComponent, 0, len(comps))
	for _, c := range comps {
		out = append(out, billComponent{Label: c.Label, Amount: c.Amount.String(), Note: c.Note})
	}
	return json.Marshal(out)
}

func unmarshalComponents(raw []byte) ([]ledger.BillComponent, error) {
	var in []billComponent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]ledger.BillComponent, 0, len(in))
	for _, c := range in {
		d, err := decimal.NewFromString(c.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, ledger.BillComponent{Label: c.Label, Amount: d, Note: c.Note})
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
