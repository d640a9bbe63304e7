package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	// ErrImbalancedEntry rejects a journal entry whose debits do not equal credits.
	ErrImbalancedEntry = errors.New("imbalanced_entry")
	// ErrUnknownAccount rejects a journal line referencing a code missing from the chart.
	ErrUnknownAccount = errors.New("unknown_account")
	// ErrDuplicateBill signals an active (non-reversed) bill already exists for a flat and period.
	ErrDuplicateBill = errors.New("duplicate_bill")
	// ErrInvalidStateTransition rejects a bill/voucher transition outside the state machine.
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	// ErrAlreadyReversed rejects reversing an entry that has already been reversed.
	ErrAlreadyReversed = errors.New("already_reversed")
	// ErrZeroOccupancy signals a building-wide adjusted headcount of zero for water billing.
	ErrZeroOccupancy = errors.New("zero_occupancy")
	// ErrValidation is used for semantic validation failures (HTTP 422).
	ErrValidation = errors.New("validation_error")
	// ErrSystemAccount indicates a system account cannot be modified/deactivated.
	ErrSystemAccount = errors.New("system_account")
)
