package httpapi

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/societyops/ledger/internal/ledger"
)

// listAccounts handles GET /v1/accounts.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accountSvc.List(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

// createAccount handles POST /v1/accounts.
func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req postAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	opening, err := parseAmount("opening_balance", req.OpeningBalance)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	created, err := s.accountSvc.Create(r.Context(), ledger.Account{
		Code:           req.Code,
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		OpeningBalance: opening,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(created))
}

// getAccount handles GET /v1/accounts/{code}.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accountSvc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// renameAccount handles PATCH /v1/accounts/{code}.
func (s *Server) renameAccount(w http.ResponseWriter, r *http.Request) {
	var req patchAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	acc, err := s.accountSvc.Rename(r.Context(), chi.URLParam(r, "code"), req.Name)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// getAccountBalance handles GET /v1/accounts/{code}/balance?as_of=YYYY-MM-DD.
func (s *Server) getAccountBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	asOf, err := queryDate(r, "as_of", time.Now().UTC())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	bal, err := s.ledgerSvc.BalanceAsOf(r.Context(), code, asOf)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{
		"account_code": code,
		"as_of":        asOf.Format("2006-01-02"),
		"balance":      bal.StringFixed(2),
	})
}
