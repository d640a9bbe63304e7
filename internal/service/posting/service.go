// Package posting turns computed bills into ledger entries and walks them
// through the draft -> posted -> reversed -> (regenerated) state machine.
// History is never mutated or deleted: a correction is a reversal plus a new
// entry. Vouchers recorded directly against the ledger get the same reversal
// semantics.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/service/billing"
	"github.com/societyops/ledger/internal/service/journal"
)

// MinReasonLen is the shortest acceptable reversal reason.
const MinReasonLen = 10

// BillStore persists bill computations. SaveBills must be atomic with the
// (flat, period) active-uniqueness check: either every bill is inserted or
// none, and a concurrent save of the same pair cannot slip through.
type BillStore interface {
	SaveBills(ctx context.Context, bills []ledger.BillComputation) error
	BillByID(ctx context.Context, id uuid.UUID) (ledger.BillComputation, error)
	BillsByPeriod(ctx context.Context, p ledger.Period) ([]ledger.BillComputation, error)
	ActiveBill(ctx context.Context, flatID uuid.UUID, p ledger.Period) (ledger.BillComputation, bool, error)
	// TransitionBill moves a bill from one status to another, conditional on
	// the stored status still being from. A concurrent transition that got
	// there first surfaces as ErrInvalidStateTransition, never a lost update.
	TransitionBill(ctx context.Context, id uuid.UUID, from, to ledger.BillStatus, entryID *uuid.UUID) error
}

// Service is the posting and reversal workflow.
type Service struct {
	bills   BillStore
	ledger  journal.Service
	billing *billing.Service
	log     *slog.Logger
}

// New constructs the workflow.
func New(bills BillStore, ledgerSvc journal.Service, billingSvc *billing.Service, log *slog.Logger) *Service {
	return &Service{bills: bills, ledger: ledgerSvc, billing: billingSvc, log: log}
}

// BillBatch is the result of one generation run.
type BillBatch struct {
	Period      ledger.Period
	Bills       []ledger.BillComputation
	TotalAmount decimal.Decimal
}

// ReversalResult reports a completed bill reversal.
type ReversalResult struct {
	BillID          uuid.UUID
	Status          ledger.BillStatus
	ReversalEntryID uuid.UUID
	ApprovalRef     string
}

// GenerateBills computes a draft bill per unit and saves the batch. A second
// run for the same period is rejected while active bills exist.
func (s *Service) GenerateBills(ctx context.Context, p ledger.Period, cfg ledger.FundConfiguration) (BillBatch, error) {
	bills, err := s.billing.GenerateAll(ctx, p, cfg)
	if err != nil {
		return BillBatch{}, err
	}
	if err := s.bills.SaveBills(ctx, bills); err != nil {
		return BillBatch{}, err
	}
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.Total)
	}
	s.log.Info("bills generated", "period", p.String(), "count", len(bills), "total", total.StringFixed(2))
	return BillBatch{Period: p, Bills: bills, TotalAmount: total}, nil
}

// PostBills posts every draft bill of the period: one balanced entry each,
// debiting the dues receivable for the unit and crediting each component's
// income or fund account. Returns the number of bills posted.
func (s *Service) PostBills(ctx context.Context, p ledger.Period) (int, error) {
	bills, err := s.bills.BillsByPeriod(ctx, p)
	if err != nil {
		return 0, err
	}
	posted := 0
	for _, b := range bills {
		if b.Status != ledger.BillStatusDraft {
			continue
		}
		if !b.PostableTotal().IsPositive() {
			s.log.Info("bill has no postable charges, left as draft", "flat", b.FlatNumber, "period", p.String())
			continue
		}
		entry, err := s.billEntry(b)
		if err != nil {
			return posted, err
		}
		// Claim the bill before touching the ledger. A concurrent run that
		// read the same draft loses the claim and skips; the receivable is
		// debited exactly once.
		if err := s.bills.TransitionBill(ctx, b.ID, ledger.BillStatusDraft, ledger.BillStatusPosted, &entry.ID); err != nil {
			if errors.Is(err, errs.ErrInvalidStateTransition) {
				s.log.Info("bill claimed by a concurrent run, skipping", "flat", b.FlatNumber, "period", p.String())
				continue
			}
			return posted, err
		}
		if _, err := s.ledger.Post(ctx, entry); err != nil {
			if relErr := s.bills.TransitionBill(ctx, b.ID, ledger.BillStatusPosted, ledger.BillStatusDraft, nil); relErr != nil {
				s.log.Error("failed to release claimed bill", "bill_id", b.ID.String(), "error", relErr)
			}
			return posted, err
		}
		posted++
	}
	s.log.Info("bills posted", "period", p.String(), "count", posted)
	return posted, nil
}

// billEntry maps a bill to its balanced journal entry. Arrears are excluded:
// they already sit in the receivable from prior bills, and re-debiting them
// would double-post.
func (s *Service) billEntry(b ledger.BillComputation) (ledger.JournalEntry, error) {
	period := b.Period
	flatID := b.FlatID
	lines := make([]ledger.JournalLine, 0, len(b.Components)+1)
	lines = append(lines, ledger.JournalLine{
		AccountCode: ledger.AccountDuesReceivable,
		Debit:       b.PostableTotal(),
		Description: "dues for flat " + b.FlatNumber,
		FlatID:      &flatID,
	})
	for _, c := range b.Components {
		if c.Label == ledger.ComponentArrears {
			continue
		}
		code, ok := ledger.ComponentAccount(c.Label)
		if !ok {
			return ledger.JournalEntry{}, fmt.Errorf("%w: no account mapped for component %q", errs.ErrValidation, c.Label)
		}
		lines = append(lines, ledger.JournalLine{
			AccountCode: code,
			Credit:      c.Amount,
			Description: c.Label + " " + b.FlatNumber,
			FlatID:      &flatID,
		})
	}
	return ledger.JournalEntry{
		ID:           b.ID,
		Date:         period.Start(),
		Description:  fmt.Sprintf("maintenance bill %s flat %s", period.String(), b.FlatNumber),
		Voucher:      ledger.VoucherBill,
		ExpenseMonth: &period,
		Lines:        lines,
	}, nil
}

// BillsForPeriod lists every stored bill for a period, reversed ones
// included.
func (s *Service) BillsForPeriod(ctx context.Context, p ledger.Period) ([]ledger.BillComputation, error) {
	return s.bills.BillsByPeriod(ctx, p)
}

// ReverseBill reverses a posted bill: a linked entry with every line's sides
// swapped, and the bill marked reversed. The original entry and bill stay
// retrievable.
func (s *Service) ReverseBill(ctx context.Context, billID uuid.UUID, reason, approvalRef string) (ReversalResult, error) {
	if err := validateReason(reason); err != nil {
		return ReversalResult{}, err
	}
	b, err := s.bills.BillByID(ctx, billID)
	if err != nil {
		return ReversalResult{}, err
	}
	if b.Status != ledger.BillStatusPosted || b.JournalEntryID == nil {
		return ReversalResult{}, fmt.Errorf("%w: bill %s is %s, only posted bills can be reversed",
			errs.ErrInvalidStateTransition, billID, b.Status)
	}
	fullReason := reason
	if approvalRef != "" {
		fullReason += " (approval: " + approvalRef + ")"
	}
	rev, err := s.ledger.Reverse(ctx, *b.JournalEntryID, time.Now().UTC(), fullReason)
	if err != nil {
		return ReversalResult{}, err
	}
	if err := s.bills.TransitionBill(ctx, billID, ledger.BillStatusPosted, ledger.BillStatusReversed, b.JournalEntryID); err != nil {
		return ReversalResult{}, err
	}
	s.log.Info("bill reversed", "bill_id", billID.String(), "reversal_entry", rev.ID.String())
	return ReversalResult{BillID: billID, Status: ledger.BillStatusReversed, ReversalEntryID: rev.ID, ApprovalRef: approvalRef}, nil
}

// RegenerateBill creates a fresh draft for a (flat, period) whose prior bill
// was reversed, optionally with manual component overrides. This is the only
// way to correct a posted bill.
func (s *Service) RegenerateBill(ctx context.Context, flatID uuid.UUID, p ledger.Period, cfg ledger.FundConfiguration, overrides []ledger.BillComponent) (ledger.BillComputation, error) {
	if _, active, err := s.bills.ActiveBill(ctx, flatID, p); err != nil {
		return ledger.BillComputation{}, err
	} else if active {
		return ledger.BillComputation{}, fmt.Errorf("%w: active bill exists for flat %s period %s, reverse it first",
			errs.ErrInvalidStateTransition, flatID, p.String())
	}
	b, err := s.billing.GenerateForUnit(ctx, p, cfg, flatID)
	if err != nil {
		return ledger.BillComputation{}, err
	}
	if len(overrides) > 0 {
		b = applyOverrides(b, overrides)
	}
	if err := s.bills.SaveBills(ctx, []ledger.BillComputation{b}); err != nil {
		return ledger.BillComputation{}, err
	}
	return b, nil
}

// applyOverrides replaces matching components by label, appends new ones, and
// drops components overridden to zero. The total is recomputed.
func applyOverrides(b ledger.BillComputation, overrides []ledger.BillComponent) ledger.BillComputation {
	for _, o := range overrides {
		replaced := false
		for i, c := range b.Components {
			if c.Label == o.Label {
				b.Components[i] = ledger.BillComponent{Label: o.Label, Amount: o.Amount, Note: "manual override"}
				replaced = true
				break
			}
		}
		if !replaced && o.Amount.IsPositive() {
			b.Components = append(b.Components, ledger.BillComponent{Label: o.Label, Amount: o.Amount, Note: "manual override"})
		}
	}
	kept := b.Components[:0]
	for _, c := range b.Components {
		if c.Amount.IsPositive() {
			kept = append(kept, c)
		}
	}
	b.Components = kept
	total := decimal.Zero
	for _, c := range b.Components {
		total = total.Add(c.Amount)
	}
	b.Total = total
	return b
}

// VoucherInput describes a voucher recorded directly against the ledger.
type VoucherInput struct {
	Type         ledger.VoucherType
	Date         time.Time
	Description  string
	ExpenseMonth *ledger.Period
	Lines        []ledger.JournalLine
}

// CreateVoucher posts a receipt, payment, journal or transfer voucher.
func (s *Service) CreateVoucher(ctx context.Context, in VoucherInput) (ledger.JournalEntry, error) {
	switch in.Type {
	case ledger.VoucherReceipt, ledger.VoucherPayment, ledger.VoucherJournal, ledger.VoucherTransfer:
	default:
		return ledger.JournalEntry{}, fmt.Errorf("%w: voucher type %q", errs.ErrValidation, in.Type)
	}
	entry := ledger.JournalEntry{
		Date:         in.Date,
		Description:  in.Description,
		Voucher:      in.Type,
		ExpenseMonth: in.ExpenseMonth,
		Lines:        in.Lines,
	}
	return s.ledger.Post(ctx, entry)
}

// ReverseVoucher reverses a posted voucher. "Editing" a voucher is this plus
// a fresh CreateVoucher, never an update of existing lines.
func (s *Service) ReverseVoucher(ctx context.Context, entryID uuid.UUID, reason string) (ledger.JournalEntry, error) {
	if err := validateReason(reason); err != nil {
		return ledger.JournalEntry{}, err
	}
	orig, err := s.ledger.Entry(ctx, entryID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	switch orig.Voucher {
	case ledger.VoucherReversal:
		return ledger.JournalEntry{}, fmt.Errorf("%w: entry %s is itself a reversal", errs.ErrInvalidStateTransition, entryID)
	case ledger.VoucherBill:
		return ledger.JournalEntry{}, fmt.Errorf("%w: entry %s belongs to a bill, reverse the bill instead", errs.ErrInvalidStateTransition, entryID)
	}
	return s.ledger.Reverse(ctx, entryID, time.Now().UTC(), reason)
}

func validateReason(reason string) error {
	if len(strings.TrimSpace(reason)) < MinReasonLen {
		return fmt.Errorf("%w: reversal reason must be at least %d characters", errs.ErrValidation, MinReasonLen)
	}
	return nil
}
