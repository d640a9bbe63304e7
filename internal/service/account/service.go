// Package account manages the chart of accounts: creation at initialization,
// renames of descriptive fields, and nothing else. Accounts are never
// deleted once they carry postings; system accounts are reserved for the
// billing engine and cannot be renamed.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Accounts(ctx context.Context) ([]ledger.Account, error)
	AccountByCode(ctx context.Context, code string) (ledger.Account, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
}

// Service exposes chart-of-accounts operations.
type Service interface {
	EnsureChart(ctx context.Context) error
	List(ctx context.Context) ([]ledger.Account, error)
	Get(ctx context.Context, code string) (ledger.Account, error)
	Create(ctx context.Context, a ledger.Account) (ledger.Account, error)
	Rename(ctx context.Context, code, name string) (ledger.Account, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the account service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// EnsureChart seeds the default chart, creating only the accounts that are
// missing. Idempotent.
func (s *service) EnsureChart(ctx context.Context) error {
	existing, err := s.repo.Accounts(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		have[a.Code] = struct{}{}
	}
	for _, a := range ledger.DefaultChart() {
		if _, ok := have[a.Code]; ok {
			continue
		}
		if _, err := s.writer.CreateAccount(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) List(ctx context.Context) ([]ledger.Account, error) {
	return s.repo.Accounts(ctx)
}

func (s *service) Get(ctx context.Context, code string) (ledger.Account, error) {
	if code == "" {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.AccountByCode(ctx, code)
}

// Create adds a custom account to the chart.
func (s *service) Create(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	if err := validate(a); err != nil {
		return ledger.Account{}, err
	}
	if _, err := s.repo.AccountByCode(ctx, a.Code); err == nil {
		return ledger.Account{}, fmt.Errorf("%w: account %s already exists", errs.ErrValidation, a.Code)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return ledger.Account{}, err
	}
	a.System = false
	return s.writer.CreateAccount(ctx, a)
}

// Rename changes an account's display name. The code is immutable and
// system accounts stay as seeded.
func (s *service) Rename(ctx context.Context, code, name string) (ledger.Account, error) {
	if name == "" {
		return ledger.Account{}, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	a, err := s.repo.AccountByCode(ctx, code)
	if err != nil {
		return ledger.Account{}, err
	}
	if a.System {
		return ledger.Account{}, fmt.Errorf("%w: account %s", errs.ErrSystemAccount, code)
	}
	a.Name = name
	return s.writer.UpdateAccount(ctx, a)
}

func validate(a ledger.Account) error {
	if a.Code == "" {
		return fmt.Errorf("%w: code is required", errs.ErrValidation)
	}
	for _, r := range a.Code {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: code must be numeric", errs.ErrValidation)
		}
	}
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: invalid account type %q", errs.ErrValidation, a.Type)
	}
	return nil
}
