package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// listEntries handles GET /v1/entries. Optional ?period=YYYY-MM filters on
// the expense-month tag, falling back to the entry date.
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledgerSvc.ListEntries(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := parsePeriod(raw)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		for _, e := range entries {
			if e.ExpenseMonth != nil {
				if *e.ExpenseMonth == p {
					out = append(out, toEntryResponse(e))
				}
				continue
			}
			if p.Contains(e.Date) {
				out = append(out, toEntryResponse(e))
			}
		}
	} else {
		for _, e := range entries {
			out = append(out, toEntryResponse(e))
		}
	}
	toJSON(w, http.StatusOK, out)
}

// getEntry handles GET /v1/entries/{id}.
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	entry, err := s.ledgerSvc.Entry(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toEntryResponse(entry))
}
