package httpapi

import (
	"errors"
	"net/http"

	"github.com/societyops/ledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }

// writeDomainErr maps domain sentinel errors onto HTTP status codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrDuplicateBill):
		writeErr(w, http.StatusConflict, msg, "duplicate_bill")
	case errors.Is(err, errs.ErrAlreadyReversed):
		writeErr(w, http.StatusConflict, msg, "already_reversed")
	case errors.Is(err, errs.ErrInvalidStateTransition):
		writeErr(w, http.StatusConflict, msg, "invalid_state")
	case errors.Is(err, errs.ErrImbalancedEntry):
		writeErr(w, http.StatusUnprocessableEntity, msg, "unbalanced_entry")
	case errors.Is(err, errs.ErrUnknownAccount):
		writeErr(w, http.StatusUnprocessableEntity, msg, "unknown_account")
	case errors.Is(err, errs.ErrValidation):
		writeErr(w, http.StatusUnprocessableEntity, msg, "validation_error")
	case errors.Is(err, errs.ErrSystemAccount):
		writeErr(w, http.StatusForbidden, msg, "system_account")
	case errors.Is(err, errs.ErrInvalid):
		badRequest(w, msg)
	default:
		writeErr(w, http.StatusInternalServerError, "internal error", "")
	}
}
