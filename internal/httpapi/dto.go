package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
)

// Monetary amounts cross the wire as decimal strings ("1646.34"), never as
// floats.

type fundRuleRequest struct {
	Method        string  `json:"method" validate:"omitempty,oneof=equal by_sqft"`
	TotalOverride *string `json:"total_override,omitempty"`
}

type billConfigRequest struct {
	SqftRate             string                     `json:"sqft_rate,omitempty"`
	WaterChargesOverride *string                    `json:"water_charges_override,omitempty"`
	AdjustedOccupants    map[string]int             `json:"adjusted_occupants,omitempty"`
	FixedExpenseAccounts []string                   `json:"fixed_expense_accounts,omitempty"`
	Funds                map[string]fundRuleRequest `json:"funds,omitempty"`
}

type generateBillsRequest struct {
	Period string            `json:"period" validate:"required"`
	Config billConfigRequest `json:"config"`
}

type postBillsRequest struct {
	Period string `json:"period" validate:"required"`
}

type reverseBillRequest struct {
	Reason      string `json:"reason" validate:"required"`
	ApprovalRef string `json:"approval_ref,omitempty"`
}

type billOverrideRequest struct {
	Label  string `json:"label" validate:"required"`
	Amount string `json:"amount" validate:"required"`
	Note   string `json:"note,omitempty"`
}

type regenerateBillRequest struct {
	FlatID    uuid.UUID             `json:"flat_id" validate:"required"`
	Period    string                `json:"period" validate:"required"`
	Config    billConfigRequest     `json:"config"`
	Overrides []billOverrideRequest `json:"overrides,omitempty"`
}

type voucherLineRequest struct {
	AccountCode string     `json:"account_code" validate:"required"`
	Debit       string     `json:"debit,omitempty"`
	Credit      string     `json:"credit,omitempty"`
	Description string     `json:"description,omitempty"`
	FlatID      *uuid.UUID `json:"flat_id,omitempty"`
}

type voucherRequest struct {
	Date         time.Time            `json:"date" validate:"required"`
	Description  string               `json:"description,omitempty"`
	ExpenseMonth string               `json:"expense_month,omitempty"`
	Lines        []voucherLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseVoucherRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type postAccountRequest struct {
	Code           string `json:"code" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Type           string `json:"type" validate:"required,oneof=asset liability capital income expense"`
	OpeningBalance string `json:"opening_balance,omitempty"`
}

type patchAccountRequest struct {
	Name string `json:"name" validate:"required"`
}

// Responses

type billComponentResponse struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

type billResponse struct {
	ID             uuid.UUID               `json:"id"`
	FlatID         uuid.UUID               `json:"flat_id"`
	FlatNumber     string                  `json:"flat_number"`
	Period         string                  `json:"period"`
	Components     []billComponentResponse `json:"components"`
	Total          string                  `json:"total"`
	Status         ledger.BillStatus       `json:"status"`
	JournalEntryID *uuid.UUID              `json:"journal_entry_id,omitempty"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

type billBatchResponse struct {
	Period      string         `json:"period"`
	Bills       []billResponse `json:"bills"`
	TotalAmount string         `json:"total_amount"`
}

type lineResponse struct {
	AccountCode string     `json:"account_code"`
	Debit       string     `json:"debit"`
	Credit      string     `json:"credit"`
	Description string     `json:"description,omitempty"`
	FlatID      *uuid.UUID `json:"flat_id,omitempty"`
}

type entryResponse struct {
	ID           uuid.UUID          `json:"id"`
	EntryNumber  int64              `json:"entry_number"`
	Date         time.Time          `json:"date"`
	Description  string             `json:"description"`
	Voucher      ledger.VoucherType `json:"voucher"`
	ExpenseMonth string             `json:"expense_month,omitempty"`
	Lines        []lineResponse     `json:"lines"`
	ReversalOf   *uuid.UUID         `json:"reversal_of,omitempty"`
	ReversedBy   *uuid.UUID         `json:"reversed_by,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

type accountResponse struct {
	Code           string             `json:"code"`
	Name           string             `json:"name"`
	Type           ledger.AccountType `json:"type"`
	OpeningBalance string             `json:"opening_balance"`
	System         bool               `json:"system"`
}

func toBillResponse(b ledger.BillComputation) billResponse {
	comps := make([]billComponentResponse, 0, len(b.Components))
	for _, c := range b.Components {
		comps = append(comps, billComponentResponse{Label: c.Label, Amount: c.Amount.StringFixed(2), Note: c.Note})
	}
	return billResponse{
		ID:             b.ID,
		FlatID:         b.FlatID,
		FlatNumber:     b.FlatNumber,
		Period:         b.Period.String(),
		Components:     comps,
		Total:          b.Total.StringFixed(2),
		Status:         b.Status,
		JournalEntryID: b.JournalEntryID,
		GeneratedAt:    b.GeneratedAt,
	}
}

func toEntryResponse(e ledger.JournalEntry) entryResponse {
	lines := make([]lineResponse, 0, len(e.Lines))
	for _, ln := range e.Lines {
		lines = append(lines, lineResponse{
			AccountCode: ln.AccountCode,
			Debit:       ln.Debit.StringFixed(2),
			Credit:      ln.Credit.StringFixed(2),
			Description: ln.Description,
			FlatID:      ln.FlatID,
		})
	}
	resp := entryResponse{
		ID:          e.ID,
		EntryNumber: e.EntryNumber,
		Date:        e.Date,
		Description: e.Description,
		Voucher:     e.Voucher,
		Lines:       lines,
		ReversalOf:  e.ReversalOf,
		ReversedBy:  e.ReversedBy,
		Reason:      e.Reason,
	}
	if e.ExpenseMonth != nil {
		resp.ExpenseMonth = e.ExpenseMonth.String()
	}
	return resp
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		Code:           a.Code,
		Name:           a.Name,
		Type:           a.Type,
		OpeningBalance: a.OpeningBalance.StringFixed(2),
		System:         a.System,
	}
}

// parsePeriod parses "YYYY-MM".
func parsePeriod(s string) (ledger.Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return ledger.Period{}, fmt.Errorf("%w: period must look like 2026-08", errs.ErrInvalid)
	}
	return ledger.Period{Year: t.Year(), Month: t.Month()}, nil
}

// queryDate reads a YYYY-MM-DD query parameter, returning fallback when the
// parameter is absent.
func queryDate(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must look like 2026-08-31", errs.ErrInvalid, name)
	}
	return t, nil
}

// parseAmount parses a decimal string, rejecting negatives.
func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a valid amount", errs.ErrInvalid, field)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s must not be negative", errs.ErrInvalid, field)
	}
	return d, nil
}

func (r billConfigRequest) toConfig() (ledger.FundConfiguration, error) {
	cfg := ledger.FundConfiguration{FixedExpenseAccounts: r.FixedExpenseAccounts}

	rate, err := parseAmount("sqft_rate", r.SqftRate)
	if err != nil {
		return ledger.FundConfiguration{}, err
	}
	cfg.SqftRate = rate

	if r.WaterChargesOverride != nil {
		d, err := parseAmount("water_charges_override", *r.WaterChargesOverride)
		if err != nil {
			return ledger.FundConfiguration{}, err
		}
		cfg.WaterChargesOverride = &d
	}
	if len(r.AdjustedOccupants) > 0 {
		cfg.AdjustedOccupants = make(map[uuid.UUID]int, len(r.AdjustedOccupants))
		for k, v := range r.AdjustedOccupants {
			id, err := uuid.Parse(k)
			if err != nil {
				return ledger.FundConfiguration{}, fmt.Errorf("%w: adjusted_occupants key %q is not a flat id", errs.ErrInvalid, k)
			}
			if v < 0 {
				return ledger.FundConfiguration{}, fmt.Errorf("%w: adjusted_occupants must not be negative", errs.ErrInvalid)
			}
			cfg.AdjustedOccupants[id] = v
		}
	}
	if len(r.Funds) > 0 {
		cfg.Funds = make(map[ledger.FundKind]ledger.FundRule, len(r.Funds))
		for k, v := range r.Funds {
			kind := ledger.FundKind(k)
			switch kind {
			case ledger.FundFixed, ledger.FundSinking, ledger.FundRepair, ledger.FundCorpus:
			default:
				return ledger.FundConfiguration{}, fmt.Errorf("%w: unknown fund %q", errs.ErrInvalid, k)
			}
			rule := ledger.FundRule{Method: ledger.DistributeEqual}
			if v.Method != "" {
				rule.Method = ledger.DistributionMethod(v.Method)
			}
			if v.TotalOverride != nil {
				d, err := parseAmount("funds."+k+".total_override", *v.TotalOverride)
				if err != nil {
					return ledger.FundConfiguration{}, err
				}
				rule.TotalOverride = &d
			}
			cfg.Funds[kind] = rule
		}
	}
	return cfg, nil
}
