package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/service/posting"
)

// postReceipt handles POST /v1/vouchers/receipts.
func (s *Server) postReceipt(w http.ResponseWriter, r *http.Request) {
	s.createVoucher(w, r, ledger.VoucherReceipt)
}

// postPayment handles POST /v1/vouchers/payments.
func (s *Server) postPayment(w http.ResponseWriter, r *http.Request) {
	s.createVoucher(w, r, ledger.VoucherPayment)
}

// postJournal handles POST /v1/vouchers/journals.
func (s *Server) postJournal(w http.ResponseWriter, r *http.Request) {
	s.createVoucher(w, r, ledger.VoucherJournal)
}

// postTransfer handles POST /v1/vouchers/transfers.
func (s *Server) postTransfer(w http.ResponseWriter, r *http.Request) {
	s.createVoucher(w, r, ledger.VoucherTransfer)
}

func (s *Server) createVoucher(w http.ResponseWriter, r *http.Request, vt ledger.VoucherType) {
	var req voucherRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	in := posting.VoucherInput{Type: vt, Date: req.Date, Description: req.Description}
	if req.ExpenseMonth != "" {
		p, err := parsePeriod(req.ExpenseMonth)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		in.ExpenseMonth = &p
	}
	in.Lines = make([]ledger.JournalLine, 0, len(req.Lines))
	for _, ln := range req.Lines {
		debit, err := parseAmount("debit", ln.Debit)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		credit, err := parseAmount("credit", ln.Credit)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		in.Lines = append(in.Lines, ledger.JournalLine{
			AccountCode: ln.AccountCode,
			Debit:       debit,
			Credit:      credit,
			Description: ln.Description,
			FlatID:      ln.FlatID,
		})
	}

	entry, err := s.workflow.CreateVoucher(r.Context(), in)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toEntryResponse(entry))
}

// reverseVoucher handles POST /v1/vouchers/{id}/reverse.
func (s *Server) reverseVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid voucher id")
		return
	}
	var req reverseVoucherRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	rev, err := s.workflow.ReverseVoucher(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toEntryResponse(rev))
}
