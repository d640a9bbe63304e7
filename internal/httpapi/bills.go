package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/service/posting"
)

// generateBills handles POST /v1/bills/generate.
func (s *Server) generateBills(w http.ResponseWriter, r *http.Request) {
	var req generateBillsRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := parsePeriod(req.Period)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	cfg, err := req.Config.toConfig()
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	batch, err := s.workflow.GenerateBills(r.Context(), p, cfg)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	billsGeneratedTotal.Add(float64(len(batch.Bills)))
	toJSON(w, http.StatusCreated, toBillBatchResponse(batch))
}

// postBills handles POST /v1/bills/post.
func (s *Server) postBills(w http.ResponseWriter, r *http.Request) {
	var req postBillsRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := parsePeriod(req.Period)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	posted, err := s.workflow.PostBills(r.Context(), p)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	billsPostedTotal.Add(float64(posted))
	toJSON(w, http.StatusOK, map[string]any{"period": p.String(), "posted": posted})
}

// reverseBill handles POST /v1/bills/{id}/reverse.
func (s *Server) reverseBill(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid bill id")
		return
	}
	var req reverseBillRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := s.workflow.ReverseBill(r.Context(), id, req.Reason, req.ApprovalRef)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{
		"bill_id":           res.BillID,
		"status":            res.Status,
		"reversal_entry_id": res.ReversalEntryID,
		"approval_ref":      res.ApprovalRef,
	})
}

// regenerateBill handles POST /v1/bills/regenerate.
func (s *Server) regenerateBill(w http.ResponseWriter, r *http.Request) {
	var req regenerateBillRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := parsePeriod(req.Period)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	cfg, err := req.Config.toConfig()
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	overrides := make([]ledger.BillComponent, 0, len(req.Overrides))
	for _, o := range req.Overrides {
		amt, err := parseAmount("overrides."+o.Label+".amount", o.Amount)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		overrides = append(overrides, ledger.BillComponent{Label: o.Label, Amount: amt, Note: o.Note})
	}

	bill, err := s.workflow.RegenerateBill(r.Context(), req.FlatID, p, cfg, overrides)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toBillResponse(bill))
}

// listBills handles GET /v1/bills?period=YYYY-MM.
func (s *Server) listBills(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	bills, err := s.workflow.BillsForPeriod(r.Context(), p)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillResponse(b))
	}
	toJSON(w, http.StatusOK, out)
}

func toBillBatchResponse(batch posting.BillBatch) billBatchResponse {
	out := billBatchResponse{Period: batch.Period.String(), TotalAmount: batch.TotalAmount.StringFixed(2)}
	out.Bills = make([]billResponse, 0, len(batch.Bills))
	for _, b := range batch.Bills {
		out.Bills = append(out.Bills, toBillResponse(b))
	}
	return out
}
