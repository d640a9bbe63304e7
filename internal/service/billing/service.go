// Package billing computes, for a (period, unit) pair, every bill component
// and the total due, from the fund configuration and per-unit facts. It only
// reads the ledger; posting is the workflow's job.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/societyops/ledger/internal/config"
	"github.com/societyops/ledger/internal/errs"
	"github.com/societyops/ledger/internal/ledger"
	"github.com/societyops/ledger/internal/service/journal"
)

// UnitReader supplies the billable units. Units are owned by the membership
// subsystem; this service never writes them.
type UnitReader interface {
	Units(ctx context.Context) ([]ledger.Unit, error)
}

// Service is the billing engine.
type Service struct {
	units  UnitReader
	ledger journal.Service
	cfg    config.Billing
	log    *slog.Logger
}

// New constructs the billing engine.
func New(units UnitReader, ledgerSvc journal.Service, cfg config.Billing, log *slog.Logger) *Service {
	return &Service{units: units, ledger: ledgerSvc, cfg: cfg, log: log}
}

// sharedInputs holds the building-wide figures computed once per run. The
// per-unit compute phase reads them without mutation, so it can fan out.
type sharedInputs struct {
	units      []ledger.Unit
	waterRate  decimal.Decimal
	waterSkip  bool
	fundShares map[ledger.FundKind][]decimal.Decimal
	fundNotes  map[ledger.FundKind]string
	arrears    map[uuid.UUID]decimal.Decimal
}

// GenerateAll produces one bill computation per unit for the period, ordered
// by flat number.
func (s *Service) GenerateAll(ctx context.Context, p ledger.Period, cfg ledger.FundConfiguration) ([]ledger.BillComputation, error) {
	in, err := s.prepare(ctx, p, cfg)
	if err != nil {
		return nil, err
	}
	bills := make([]ledger.BillComputation, len(in.units))
	g, gctx := errgroup.WithContext(ctx)
	for i := range in.units {
		i := i
		g.Go(func() error {
			b, err := s.computeUnit(gctx, p, cfg, in, i)
			if err != nil {
				return err
			}
			bills[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bills, nil
}

// GenerateForUnit recomputes the whole building (distributions depend on the
// full unit set) and returns the one bill for flatID.
func (s *Service) GenerateForUnit(ctx context.Context, p ledger.Period, cfg ledger.FundConfiguration, flatID uuid.UUID) (ledger.BillComputation, error) {
	bills, err := s.GenerateAll(ctx, p, cfg)
	if err != nil {
		return ledger.BillComputation{}, err
	}
	for _, b := range bills {
		if b.FlatID == flatID {
			return b, nil
		}
	}
	return ledger.BillComputation{}, fmt.Errorf("%w: unit %s", errs.ErrNotFound, flatID)
}

// prepare resolves every building-wide figure the per-unit phase needs.
func (s *Service) prepare(ctx context.Context, p ledger.Period, cfg ledger.FundConfiguration) (sharedInputs, error) {
	units, err := s.units.Units(ctx)
	if err != nil {
		return sharedInputs{}, err
	}
	sort.Slice(units, func(i, j int) bool { return units[i].FlatNumber < units[j].FlatNumber })

	out := sharedInputs{
		units:      units,
		fundShares: make(map[ledger.FundKind][]decimal.Decimal, 4),
		fundNotes:  make(map[ledger.FundKind]string, 4),
		arrears:    make(map[uuid.UUID]decimal.Decimal, len(units)),
	}
	if len(units) == 0 {
		return out, nil
	}

	// Water: total from override or the posted water-source expenses, spread
	// per adjusted head.
	waterTotal, err := s.waterTotal(ctx, p, cfg)
	if err != nil {
		return sharedInputs{}, err
	}
	if waterTotal.IsPositive() {
		occ := 0
		for _, u := range units {
			occ += cfg.OccupantsFor(u)
		}
		rate, err := perPersonRate(waterTotal, occ)
		switch {
		case errors.Is(err, errs.ErrZeroOccupancy):
			// Building-wide zero occupancy: skip water this period rather
			// than divide by zero.
			s.log.Warn("zero adjusted occupancy, skipping water billing", "period", p.String())
			out.waterSkip = true
		case err != nil:
			return sharedInputs{}, err
		default:
			out.waterRate = rate
		}
	}

	// Shared-cost distributions.
	areas := make([]decimal.Decimal, len(units))
	for i, u := range units {
		areas[i] = u.AreaSqft
	}
	for _, kind := range []ledger.FundKind{ledger.FundFixed, ledger.FundSinking, ledger.FundRepair, ledger.FundCorpus} {
		rule := cfg.Funds[kind]
		total, err := s.fundTotal(ctx, p, cfg, kind, rule)
		if err != nil {
			return sharedInputs{}, err
		}
		if !total.IsPositive() {
			continue
		}
		method := rule.Method
		if method == "" {
			method = ledger.DistributeEqual
		}
		var shares []decimal.Decimal
		switch method {
		case ledger.DistributeBySqft:
			shares = distributeBySqft(total, areas)
			if shares == nil {
				s.log.Warn("total area is zero, skipping fund distribution", "fund", string(kind), "period", p.String())
				continue
			}
			out.fundNotes[kind] = fmt.Sprintf("sqft share of %s", total.StringFixed(2))
		default:
			shares = distributeEqual(total, len(units))
			out.fundNotes[kind] = fmt.Sprintf("equal share of %s across %d units", total.StringFixed(2), len(units))
		}
		out.fundShares[kind] = shares
	}

	// Arrears carried from prior periods.
	start := p.Start()
	for _, u := range units {
		d, err := s.ledger.FlatOutstanding(ctx, u.ID, start)
		if err != nil {
			return sharedInputs{}, err
		}
		out.arrears[u.ID] = d
	}
	return out, nil
}

func (s *Service) waterTotal(ctx context.Context, p ledger.Period, cfg ledger.FundConfiguration) (decimal.Decimal, error) {
	if cfg.WaterChargesOverride != nil {
		return *cfg.WaterChargesOverride, nil
	}
	return s.ledger.PeriodTotal(ctx, s.cfg.WaterSourceAccounts, p)
}

// perPersonRate spreads the building's water cost over its adjusted heads.
func perPersonRate(total decimal.Decimal, occupants int) (decimal.Decimal, error) {
	if occupants == 0 {
		return decimal.Zero, fmt.Errorf("%w: no adjusted occupants in the building", errs.ErrZeroOccupancy)
	}
	return total.Div(decimal.NewFromInt(int64(occupants))), nil
}

func (s *Service) fundTotal(ctx context.Context, p ledger.Period, cfg ledger.FundConfiguration, kind ledger.FundKind, rule ledger.FundRule) (decimal.Decimal, error) {
	if rule.TotalOverride != nil {
		return *rule.TotalOverride, nil
	}
	if kind == ledger.FundFixed {
		return s.ledger.PeriodTotal(ctx, cfg.FixedExpenseAccounts, p)
	}
	return s.cfg.FundDefaults[kind], nil
}

// computeUnit assembles one unit's bill from the shared inputs. Components
// with zero contribution are omitted, not zero-filled.
func (s *Service) computeUnit(_ context.Context, p ledger.Period, cfg ledger.FundConfiguration, in sharedInputs, idx int) (ledger.BillComputation, error) {
	u := in.units[idx]
	comps := make([]ledger.BillComponent, 0, 8)

	// Maintenance: a zero rate is a deliberate skip, not a zero bill.
	if cfg.SqftRate.IsPositive() {
		amt := cfg.SqftRate.Mul(u.AreaSqft).Round(2)
		if amt.IsPositive() {
			comps = append(comps, ledger.BillComponent{
				Label:  ledger.ComponentMaintenance,
				Amount: amt,
				Note:   fmt.Sprintf("%s/sqft x %s sqft", cfg.SqftRate.String(), u.AreaSqft.String()),
			})
		}
	}

	// Water: per-person rate, or the vacancy fee for empty units.
	if !in.waterSkip && in.waterRate.IsPositive() {
		occ := cfg.OccupantsFor(u)
		switch {
		case occ == 0:
			if s.cfg.VacancyFee.IsPositive() {
				comps = append(comps, ledger.BillComponent{
					Label:  ledger.ComponentWater,
					Amount: s.cfg.VacancyFee.Round(2),
					Note:   "vacancy fee",
				})
			}
		default:
			amt := in.waterRate.Mul(decimal.NewFromInt(int64(occ))).Round(2)
			comps = append(comps, ledger.BillComponent{
				Label:  ledger.ComponentWater,
				Amount: amt,
				Note:   fmt.Sprintf("%s/person x %d", in.waterRate.String(), occ),
			})
		}
	}

	// Shared-cost funds.
	for _, fc := range []struct {
		kind  ledger.FundKind
		label string
	}{
		{ledger.FundFixed, ledger.ComponentFixed},
		{ledger.FundSinking, ledger.ComponentSinking},
		{ledger.FundRepair, ledger.ComponentRepair},
		{ledger.FundCorpus, ledger.ComponentCorpus},
	} {
		shares, ok := in.fundShares[fc.kind]
		if !ok {
			continue
		}
		if amt := shares[idx]; amt.IsPositive() {
			comps = append(comps, ledger.BillComponent{Label: fc.label, Amount: amt, Note: in.fundNotes[fc.kind]})
		}
	}

	// Arrears and late fee from unpaid prior-period dues.
	if arr := in.arrears[u.ID]; arr.IsPositive() {
		if fee := s.lateFee(arr); fee.IsPositive() {
			comps = append(comps, ledger.BillComponent{
				Label:  ledger.ComponentLateFee,
				Amount: fee,
				Note:   s.lateFeeNote(arr),
			})
		}
		comps = append(comps, ledger.BillComponent{
			Label:  ledger.ComponentArrears,
			Amount: arr.Round(2),
			Note:   "carried from prior periods, not re-posted",
		})
	}

	total := decimal.Zero
	for _, c := range comps {
		total = total.Add(c.Amount)
	}
	return ledger.BillComputation{
		ID:          uuid.New(),
		FlatID:      u.ID,
		FlatNumber:  u.FlatNumber,
		Period:      p,
		Components:  comps,
		Total:       total,
		Status:      ledger.BillStatusDraft,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *Service) lateFee(arrears decimal.Decimal) decimal.Decimal {
	switch s.cfg.LateFeeMode {
	case config.LateFeeFlat:
		return s.cfg.LateFeeValue.Round(2)
	default:
		return arrears.Mul(s.cfg.LateFeeValue).Div(decimal.NewFromInt(100)).Round(2)
	}
}

func (s *Service) lateFeeNote(arrears decimal.Decimal) string {
	if s.cfg.LateFeeMode == config.LateFeeFlat {
		return "flat late fee"
	}
	return fmt.Sprintf("%s%% of arrears %s", s.cfg.LateFeeValue.String(), arrears.StringFixed(2))
}
