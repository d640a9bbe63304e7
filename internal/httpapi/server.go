// Package httpapi wires the HTTP surface of the billing and ledger engine.
// Handlers stay thin, delegating business rules to the service layer; the UI
// performs no computation of its own.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/societyops/ledger/internal/service/account"
	"github.com/societyops/ledger/internal/service/journal"
	"github.com/societyops/ledger/internal/service/posting"
	"github.com/societyops/ledger/internal/service/reports"
)

// Server wires handlers and middleware using chi.
type Server struct {
	ledgerSvc  journal.Service
	accountSvc account.Service
	workflow   *posting.Service
	reports    *reports.Service
	ready      func() error
	log        *slog.Logger
	rt         *chi.Mux
}

// Options carries the dependencies for New.
type Options struct {
	Ledger    journal.Service
	Accounts  account.Service
	Workflow  *posting.Service
	Reports   *reports.Service
	Ready     func() error
	Logger    *slog.Logger
	RateLimit int
}

// New constructs the HTTP server with routes and middleware.
func New(opts Options) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(recoverer(opts.Logger))
	r.Use(metricsMiddleware)
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}

	s := &Server{
		ledgerSvc:  opts.Ledger,
		accountSvc: opts.Accounts,
		workflow:   opts.Workflow,
		reports:    opts.Reports,
		ready:      opts.Ready,
		log:        opts.Logger,
		rt:         r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Bills (v1)
	s.rt.Post("/v1/bills/generate", s.generateBills)
	s.rt.Post("/v1/bills/post", s.postBills)
	s.rt.Post("/v1/bills/{id}/reverse", s.reverseBill)
	s.rt.Post("/v1/bills/regenerate", s.regenerateBill)
	s.rt.Get("/v1/bills", s.listBills)
	// Vouchers (v1)
	s.rt.Post("/v1/vouchers/receipts", s.postReceipt)
	s.rt.Post("/v1/vouchers/payments", s.postPayment)
	s.rt.Post("/v1/vouchers/journals", s.postJournal)
	s.rt.Post("/v1/vouchers/transfers", s.postTransfer)
	s.rt.Post("/v1/vouchers/{id}/reverse", s.reverseVoucher)
	// Entries (v1)
	s.rt.Get("/v1/entries", s.listEntries)
	s.rt.Get("/v1/entries/{id}", s.getEntry)
	// Accounts (v1)
	s.rt.Get("/v1/accounts", s.listAccounts)
	s.rt.Post("/v1/accounts", s.createAccount)
	s.rt.Get("/v1/accounts/{code}", s.getAccount)
	s.rt.Patch("/v1/accounts/{code}", s.renameAccount)
	s.rt.Get("/v1/accounts/{code}/balance", s.getAccountBalance)
	// Reports (v1)
	s.rt.Get("/v1/reports/trial-balance", s.trialBalance)
	s.rt.Get("/v1/reports/general-ledger", s.generalLedger)
	s.rt.Get("/v1/reports/balance-sheet", s.balanceSheet)
	s.rt.Get("/v1/reports/income-and-expenditure", s.incomeExpenditure)
	s.rt.Get("/v1/reports/member-dues", s.memberDues)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}
