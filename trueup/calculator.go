/*
calculator.go - The true-up orchestrator

PURPOSE:
  One Run is one unit of work: GATHER -> SCHEME_SELECT -> ALLOCATE ->
  PERSIST -> DONE, with ABORTED reachable from any state on a domain
  error. No component below this calls back upward.

FAILURE SEMANTICS:
  Any domain error in GATHER or SCHEME_SELECT aborts before a single
  write. PERSIST hands all carrier rows to the store as one atomic batch,
  so a persistence failure leaves no partial ledger for the run.

CLAWBACK AND FLOOR:
  Clawback policy "Option B" - never pay a negative delta back - is a
  configuration default (AllowNegativeCommission=false), not a hardcoded
  law. The floor guard (minimum cumulative commission of
  MinCommissionRate times the carrier's premium share) is an independent
  check applied after the clawback clamp.

REPRODUCIBILITY:
  Two runs with the same logical parameters against an unchanged fact
  set observe the same facts and produce byte-identical ledger rows
  except for their own write timestamps. The Cutoff's SystemAsOf replay
  parameter reproduces what the system knew at an earlier wall-clock
  instant.
*/
package trueup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Defaults for Config. Staleness and divergence thresholds come from the
// reporting standards the BAA settlements follow.
const (
	DefaultStalenessDays = 90
)

var (
	DefaultMinCommissionRate   = MustDecimal("0.05")
	DefaultDivergenceThreshold = MustDecimal("0.10")
)

// Config tunes policy knobs the contract leaves open.
type Config struct {
	// MinCommissionRate is the floor-guard rate: cumulative commission
	// per carrier never ends below earned_premium * pct * this rate.
	MinCommissionRate decimal.Decimal

	// AllowNegativeCommission permits negative deltas (money back from
	// the MGU). Default false: clawback Option B.
	AllowNegativeCommission bool

	// StalenessDays is the age beyond which an IBNR snapshot draws a
	// staleness warning.
	StalenessDays int

	// DivergenceThreshold is the carrier-vs-MGU ULR gap (in ratio
	// points) beyond which a divergence warning fires.
	DivergenceThreshold decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		MinCommissionRate:   DefaultMinCommissionRate,
		StalenessDays:       DefaultStalenessDays,
		DivergenceThreshold: DefaultDivergenceThreshold,
	}
}

// RunParams identifies one calculation.
type RunParams struct {
	UnderwritingYear int
	DevelopmentMonth int
	Cutoff           Cutoff
	CalcType         CalcType

	// WriteEnabled gates PERSIST; false is a dry run.
	WriteEnabled bool
}

// Calculator is the orchestrator. It is the sole writer of ledger rows;
// every other entity is read-only from here.
type Calculator struct {
	Facts    FactStore
	Registry *Registry
	Config   Config

	log zerolog.Logger
}

func NewCalculator(facts FactStore, log zerolog.Logger) *Calculator {
	return &Calculator{
		Facts:    facts,
		Registry: NewRegistry(),
		Config:   DefaultConfig(),
		log:      log.With().Str("component", "calculator").Logger(),
	}
}

type runState string

const (
	stateGather       runState = "GATHER"
	stateSchemeSelect runState = "SCHEME_SELECT"
	stateAllocate     runState = "ALLOCATE"
	statePersist      runState = "PERSIST"
	stateDone         runState = "DONE"
	stateAborted      runState = "ABORTED"
)

// gathered holds everything GATHER resolves.
type gathered struct {
	earnedPremium decimal.Decimal
	paidClaims    decimal.Decimal
	ibnrCarrier   decimal.Decimal
	ibnrMGU       decimal.Decimal
	ulr           decimal.Decimal
	mguULR        decimal.Decimal
	devMonth      int
	staleDays     int
	divergence    bool
	warnings      []string
}

// Run executes one true-up calculation.
func (c *Calculator) Run(ctx context.Context, p RunParams) (*TrueUpResult, error) {
	runID := uuid.NewString()
	log := c.log.With().
		Str("run_id", runID).
		Int("uy", p.UnderwritingYear).
		Int("dev_month", p.DevelopmentMonth).
		Str("as_of", p.Cutoff.String()).
		Str("calc_type", string(p.CalcType)).
		Logger()

	if p.CalcType == "" {
		p.CalcType = CalcTrueUp
	}

	log.Debug().Str("state", string(stateGather)).Msg("run started")
	g, err := c.gather(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("state", string(stateAborted)).Msg("gather failed")
		return nil, err
	}

	log.Debug().Str("state", string(stateSchemeSelect)).Msg("resolving splits and schemes")
	splits, err := c.resolveSplits(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("state", string(stateAborted)).Msg("split resolution failed")
		return nil, err
	}
	assignments, err := c.Facts.SchemeAssignments(ctx, p.UnderwritingYear, p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("scheme assignments: %w", err)
	}

	result := &TrueUpResult{
		RunID:            runID,
		UnderwritingYear: p.UnderwritingYear,
		DevelopmentMonth: g.devMonth,
		AsOfDate:         p.Cutoff.AsOf,
		CalcType:         p.CalcType,
		EarnedPremium:    g.earnedPremium,
		PaidClaims:       g.paidClaims,
		IBNRCarrier:      g.ibnrCarrier,
		IBNRMGU:          g.ibnrMGU,
		UltimateLR:       g.ulr,
		MGULossRatio:     g.mguULR,
		Warnings:         g.warnings,
		IBNRStaleDays:    g.staleDays,
		ULRDivergence:    g.divergence,
	}

	log.Debug().Str("state", string(stateAllocate)).Int("carriers", len(splits)).Msg("allocating")
	entries := make([]LedgerEntry, 0, len(splits))
	totalGross := decimal.Zero
	now := time.Now().UTC()

	for _, split := range splits {
		alloc, err := c.allocate(ctx, p, g, assignments, split, result)
		if err != nil {
			log.Warn().Err(err).Str("state", string(stateAborted)).
				Str("carrier", string(split.CarrierID)).Msg("allocation failed")
			return nil, err
		}
		totalGross = totalGross.Add(alloc.GrossCommission)
		result.Allocations = append(result.Allocations, *alloc)
		entries = append(entries, c.ledgerEntry(runID, p, g, *alloc, now))
	}

	result.GrossCommission = totalGross
	result.CommissionRate = totalGross.Div(g.earnedPremium)

	if p.WriteEnabled {
		log.Debug().Str("state", string(statePersist)).Int("rows", len(entries)).Msg("persisting ledger rows")
		if err := c.Facts.AppendLedger(ctx, entries); err != nil {
			log.Error().Err(err).Str("state", string(stateAborted)).Msg("ledger append failed")
			return nil, fmt.Errorf("persist ledger: %w", err)
		}
		result.Written = true
	}

	log.Info().Str("state", string(stateDone)).
		Str("gross_commission", totalGross.StringFixed(2)).
		Str("ulr", g.ulr.StringFixed(4)).
		Bool("written", result.Written).
		Msg("run complete")
	return result, nil
}

// gather pulls premium, claims and both reserve sources, producing
// warnings for staleness and divergence. Any failure here aborts the
// whole run before a single write.
func (c *Calculator) gather(ctx context.Context, p RunParams) (*gathered, error) {
	g := &gathered{devMonth: p.DevelopmentMonth}

	cohort, err := c.Facts.Cohort(ctx, p.UnderwritingYear)
	if err != nil {
		return nil, fmt.Errorf("cohort: %w", err)
	}
	if cohort != nil && cohort.Status == CohortClosed {
		g.warn("cohort %d is closed", p.UnderwritingYear)
	}

	earned, err := c.Facts.EarnedPremium(ctx, p.UnderwritingYear, p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("earned premium: %w", err)
	}
	if earned.IsZero() {
		return nil, &NoEarnedPremiumError{UnderwritingYear: p.UnderwritingYear, Cutoff: p.Cutoff}
	}
	g.earnedPremium = earned

	claims, err := c.Facts.PaidClaims(ctx, p.UnderwritingYear, p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("paid claims: %w", err)
	}
	g.paidClaims = claims

	carrierSnap, err := c.Facts.IBNR(ctx, p.UnderwritingYear, p.DevelopmentMonth, SourceCarrierOfficial, "", p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("carrier IBNR: %w", err)
	}
	if carrierSnap == nil {
		return nil, &NoIBNRSnapshotError{
			UnderwritingYear: p.UnderwritingYear,
			DevelopmentMonth: p.DevelopmentMonth,
			Source:           SourceCarrierOfficial,
			Cutoff:           p.Cutoff,
		}
	}
	g.ibnrCarrier = carrierSnap.Amount
	// Development month provenance comes from the snapshot actually
	// used, not the requested parameter.
	g.devMonth = carrierSnap.DevelopmentMonth

	g.staleDays = p.Cutoff.AsOf.DaysSince(carrierSnap.AsOfDate)
	if g.staleDays > c.Config.StalenessDays {
		g.warn("IBNR is %d days stale (threshold %d)", g.staleDays, c.Config.StalenessDays)
	}

	mguSnap, err := c.Facts.IBNR(ctx, p.UnderwritingYear, p.DevelopmentMonth, SourceMGUInternal, "", p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("mgu IBNR: %w", err)
	}
	if mguSnap == nil {
		g.ibnrMGU = decimal.Zero
		g.warn("no mgu_internal IBNR snapshot for UY %d dev %d; treating MGU IBNR as zero",
			p.UnderwritingYear, p.DevelopmentMonth)
	} else {
		g.ibnrMGU = mguSnap.Amount
	}

	g.ulr = g.paidClaims.Add(g.ibnrCarrier).Div(g.earnedPremium)
	if err := checkULR(g.ulr); err != nil {
		return nil, err
	}
	g.mguULR = g.paidClaims.Add(g.ibnrMGU).Div(g.earnedPremium)

	if g.ulr.Sub(g.mguULR).Abs().GreaterThan(c.Config.DivergenceThreshold) {
		g.divergence = true
		g.warn("carrier ULR %s vs MGU ULR %s diverge beyond %s",
			g.ulr.StringFixed(4), g.mguULR.StringFixed(4), c.Config.DivergenceThreshold)
	}

	return g, nil
}

func (c *Calculator) resolveSplits(ctx context.Context, p RunParams) ([]ResolvedSplit, error) {
	rows, err := c.Facts.CarrierSplits(ctx, p.UnderwritingYear, p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("carrier splits: %w", err)
	}
	return ResolveCarrierSplits(rows, p.UnderwritingYear, p.Cutoff.AsOf)
}

// allocate computes one carrier's slice: scheme rate (or LPT freeze),
// gross, prior paid, clawback clamp, floor guard.
func (c *Calculator) allocate(ctx context.Context, p RunParams, g *gathered,
	assignments []SchemeAssignment, split ResolvedSplit, result *TrueUpResult) (*CarrierAllocation, error) {

	priorPaid, err := c.Facts.PriorPaid(ctx, p.UnderwritingYear, split.CarrierID, p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("prior paid for %s: %w", split.CarrierID, err)
	}

	frozen, err := c.Facts.LPTFreeze(ctx, split.CarrierID, p.UnderwritingYear, p.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("lpt freeze for %s: %w", split.CarrierID, err)
	}
	if frozen {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("commission frozen for %s due to LPT", split.CarrierID))
		return &CarrierAllocation{
			CarrierID:          split.CarrierID,
			CarrierName:        split.CarrierName,
			ParticipationPct:   split.ParticipationPct,
			SplitEffectiveFrom: split.EffectiveFrom,
			SchemeType:         SchemeLPTFrozen,
			CommissionRate:     decimal.Zero,
			GrossCommission:    decimal.Zero,
			PriorPaid:          priorPaid,
			DeltaPayment:       decimal.Zero,
			Frozen:             true,
		}, nil
	}

	scheme, err := ResolveSchemeAssignment(assignments, p.UnderwritingYear, split.CarrierID, p.Cutoff.AsOf)
	if err != nil {
		return nil, err
	}
	rate, err := c.Registry.RateFor(scheme.SchemeType, scheme.Parameters, g.ulr, split.CarrierID)
	if err != nil {
		return nil, err
	}

	carrierGross := g.earnedPremium.Mul(split.ParticipationPct).Mul(rate)
	delta := carrierGross.Sub(priorPaid)

	// Clawback Option B: no negative deltas ever paid back.
	if !c.Config.AllowNegativeCommission && delta.IsNegative() {
		delta = decimal.Zero
	}

	// Floor guard, independent of the clawback clamp and applied after
	// it: cumulative commission never ends below the carrier floor.
	floorApplied := false
	carrierFloor := g.earnedPremium.Mul(split.ParticipationPct).Mul(c.Config.MinCommissionRate)
	if priorPaid.Add(delta).LessThan(carrierFloor) {
		delta = carrierFloor.Sub(priorPaid)
		floorApplied = true
		result.FloorGuard = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("floor guard applied for %s (minimum rate %s)",
				split.CarrierID, c.Config.MinCommissionRate))
	}

	return &CarrierAllocation{
		CarrierID:          split.CarrierID,
		CarrierName:        split.CarrierName,
		ParticipationPct:   split.ParticipationPct,
		SplitEffectiveFrom: split.EffectiveFrom,
		SchemeType:         scheme.SchemeType,
		CommissionRate:     rate,
		GrossCommission:    carrierGross,
		PriorPaid:          priorPaid,
		DeltaPayment:       delta,
		FloorGuardApplied:  floorApplied,
	}, nil
}

// ledgerEntry builds the immutable audit row for one carrier. Monetary
// inputs are the carrier's participation share rounded to 2dp; the ULR
// is recorded at 6dp.
func (c *Calculator) ledgerEntry(runID string, p RunParams, g *gathered, a CarrierAllocation, now time.Time) LedgerEntry {
	pct := a.ParticipationPct
	return LedgerEntry{
		ID:               uuid.NewString(),
		RunID:            runID,
		UnderwritingYear: p.UnderwritingYear,
		CarrierID:        a.CarrierID,
		DevelopmentMonth: g.devMonth,
		AsOfDate:         p.Cutoff.AsOf,
		CalcType:         p.CalcType,

		EarnedPremium:     g.earnedPremium.Mul(pct).Round(money2dp),
		PaidClaims:        g.paidClaims.Mul(pct).Round(money2dp),
		IBNRAmount:        g.ibnrCarrier.Mul(pct).Round(money2dp),
		UltimateLossRatio: g.ulr.Round(ratio6dp),

		CommissionRate:  a.CommissionRate,
		GrossCommission: a.GrossCommission.Round(money2dp),
		PriorPaidTotal:  a.PriorPaid.Round(money2dp),
		DeltaPayment:    a.DeltaPayment.Round(money2dp),

		FloorGuardApplied:  a.FloorGuardApplied,
		Frozen:             a.Frozen,
		SchemeType:         a.SchemeType,
		SplitEffectiveFrom: a.SplitEffectiveFrom,
		SplitPct:           pct,
		IBNRStaleDays:      g.staleDays,
		ULRDivergence:      g.divergence,
		CreatedAt:          now,
	}
}

func (g *gathered) warn(format string, args ...any) {
	g.warnings = append(g.warnings, fmt.Sprintf(format, args...))
}
