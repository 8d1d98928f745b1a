/*
Package trueup computes profit ("true-up") commission under multi-year
Binding Authority Agreements.

PURPOSE:
  A policy bound in one underwriting year accumulates claims and reserve
  revisions for years afterwards. At each development age the MGU owes
  (or has overpaid) profit commission relative to what has already been
  settled. This package resolves premium, claims and reserves as they
  were known at a point in time, picks a commission rate through a
  pluggable scheme, allocates it across participating carriers using
  historically-correct split percentages, applies clawback/floor policy,
  and appends an immutable audit row per carrier.

KEY CONCEPTS IN THIS FILE (types.go):
  - Fact entities: UnderwritingCohort, Policy, Transaction, IBNRSnapshot,
    CarrierSplit, SchemeAssignment, LPTEvent. All append-only; the engine
    never writes them.
  - LedgerEntry: the one entity the engine writes. Immutable after insert.
  - TrueUpResult / CarrierAllocation: what a run returns to the caller.

DESIGN PRINCIPLES:
  1. Immutability: facts and ledger rows are never updated or deleted
  2. Precision: decimal.Decimal for every monetary amount and ratio
  3. Type safety: distinct types for carrier IDs, policy refs, scheme
     types, calc types
  4. Provenance: every ledger row records which split vintage, scheme
     and reserve snapshot produced it

SEE ALSO:
  - time.go:       Date and Cutoff (the dual temporal filter)
  - facts.go:      Read/write contracts over the store
  - calculator.go: The orchestrating state machine
*/
package trueup

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS AND ENUMS
// =============================================================================

type CarrierID string
type PolicyRef string
type SchemeType string
type IBNRSource string

// CohortStatus transitions forward only: open -> run_off -> closed.
type CohortStatus string

const (
	CohortOpen   CohortStatus = "open"
	CohortRunOff CohortStatus = "run_off"
	CohortClosed CohortStatus = "closed"
)

// TxnType classifies the transactional facts premium and claim activity
// arrive as.
type TxnType string

const (
	TxnPremium              TxnType = "premium"
	TxnReturnPremium        TxnType = "return_premium"
	TxnClaimPaid            TxnType = "claim_paid"
	TxnClaimReserveMovement TxnType = "claim_reserve_movement"
)

const (
	SourceCarrierOfficial IBNRSource = "carrier_official"
	SourceMGUInternal     IBNRSource = "mgu_internal"
)

// CalcType labels what kind of calculation a run is.
type CalcType string

const (
	CalcProvisional CalcType = "provisional"
	CalcTrueUp      CalcType = "true_up"
	CalcFinal       CalcType = "final"
)

// Registered scheme types. SchemeLPTFrozen is not a computable scheme; it
// tags ledger rows short-circuited by a Loss Portfolio Transfer.
const (
	SchemeSlidingScale         SchemeType = "sliding_scale"
	SchemeCorridor             SchemeType = "corridor"
	SchemeFixedPlusVariable    SchemeType = "fixed_plus_variable"
	SchemeCappedScale          SchemeType = "capped_scale"
	SchemeCarrierSpecificScale SchemeType = "carrier_specific_scale"
	SchemeLPTFrozen            SchemeType = "lpt_frozen"
)

// =============================================================================
// FACT ENTITIES (read-only from the engine's perspective)
// =============================================================================

// UnderwritingCohort is the year bucket every policy is permanently
// locked to at bind time.
type UnderwritingCohort struct {
	Year        int
	PeriodStart Date
	PeriodEnd   Date
	Status      CohortStatus
}

// Policy is a bound risk. The UY lock is immutable after creation.
type Policy struct {
	Ref              PolicyRef
	UnderwritingYear int
	EffectiveDate    Date
	ExpiryDate       Date
	GrossPremium     decimal.Decimal
}

// Transaction is a premium or claim fact. It inherits its policy's UY at
// insert time; late-recorded events stay in their cohort regardless of
// when they were written (no cohort contamination).
type Transaction struct {
	ID               string
	PolicyRef        PolicyRef
	UnderwritingYear int
	Type             TxnType
	TxnDate          Date
	Amount           decimal.Decimal
	SystemTimestamp  time.Time
}

// IBNRSnapshot is a supplied actuarial estimate for a UY as of a date.
// CarrierID is empty for cohort-level snapshots; a non-empty CarrierID
// marks a per-carrier estimate, which accessors prefer when asked for
// that carrier.
type IBNRSnapshot struct {
	ID               string
	UnderwritingYear int
	CarrierID        CarrierID
	DevelopmentMonth int
	Source           IBNRSource
	AsOfDate         Date
	Amount           decimal.Decimal
	SystemTimestamp  time.Time
}

// CarrierSplit is one participation vintage for a carrier in a UY.
// Superseding rows never delete prior ones; resolution picks the latest
// effective_from on or before the as-of date.
type CarrierSplit struct {
	ID               string
	UnderwritingYear int
	CarrierID        CarrierID
	CarrierName      string
	ParticipationPct decimal.Decimal
	EffectiveFrom    Date
	SystemTimestamp  time.Time
}

// SchemeAssignment binds a carrier within a UY to a commission scheme,
// versioned by effective date with the same vintage discipline as
// CarrierSplit. An empty CarrierID is the program-level default for the
// whole UY.
type SchemeAssignment struct {
	ID               string
	UnderwritingYear int
	CarrierID        CarrierID
	SchemeType       SchemeType
	Parameters       Parameters
	EffectiveFrom    Date
	SystemTimestamp  time.Time
}

// LPTEvent marks a Loss Portfolio Transfer for a carrier/UY. When
// FreezeCommission is set, true-ups on or after EffectiveDate
// short-circuit to a frozen zero-delta result for that carrier.
type LPTEvent struct {
	ID               string
	UnderwritingYear int
	CarrierID        CarrierID
	EffectiveDate    Date
	FreezeCommission bool
	SystemTimestamp  time.Time
}

// Parameters is a scheme's free-form configuration, decoded from the
// assignment's JSON document.
type Parameters map[string]any

// =============================================================================
// LEDGER ENTRY - The one entity this engine writes
// =============================================================================

// LedgerEntry is one immutable audit row per carrier per run. Monetary
// inputs are the carrier's participation share. Reproducing a run with
// identical stored inputs must produce a byte-identical row except for
// CreatedAt.
type LedgerEntry struct {
	ID               string
	RunID            string
	UnderwritingYear int
	CarrierID        CarrierID
	DevelopmentMonth int
	AsOfDate         Date
	CalcType         CalcType

	// Inputs
	EarnedPremium     decimal.Decimal
	PaidClaims        decimal.Decimal
	IBNRAmount        decimal.Decimal
	UltimateLossRatio decimal.Decimal

	// Outputs
	CommissionRate  decimal.Decimal
	GrossCommission decimal.Decimal
	PriorPaidTotal  decimal.Decimal
	DeltaPayment    decimal.Decimal

	// Provenance
	FloorGuardApplied  bool
	Frozen             bool
	SchemeType         SchemeType
	SplitEffectiveFrom Date
	SplitPct           decimal.Decimal
	IBNRStaleDays      int
	ULRDivergence      bool
	CreatedAt          time.Time
}

// =============================================================================
// RUN RESULT - What the caller gets back
// =============================================================================

// CarrierAllocation is one carrier's slice of a run.
type CarrierAllocation struct {
	CarrierID          CarrierID       `json:"carrier_id"`
	CarrierName        string          `json:"carrier_name"`
	ParticipationPct   decimal.Decimal `json:"participation_pct"`
	SplitEffectiveFrom Date            `json:"split_effective_from"`
	SchemeType         SchemeType      `json:"scheme_type"`
	CommissionRate     decimal.Decimal `json:"commission_rate"`
	GrossCommission    decimal.Decimal `json:"gross_commission"`
	PriorPaid          decimal.Decimal `json:"prior_paid"`
	DeltaPayment       decimal.Decimal `json:"delta_payment"`
	FloorGuardApplied  bool            `json:"floor_guard_applied"`
	Frozen             bool            `json:"frozen"`
}

// TrueUpResult is the full outcome of one run. Run-level monetary
// figures are unscaled (not per-carrier shares); CommissionRate is the
// effective rate, gross commission over earned premium.
type TrueUpResult struct {
	RunID            string              `json:"run_id"`
	UnderwritingYear int                 `json:"underwriting_year"`
	DevelopmentMonth int                 `json:"development_month"`
	AsOfDate         Date                `json:"as_of_date"`
	CalcType         CalcType            `json:"calc_type"`
	EarnedPremium    decimal.Decimal     `json:"earned_premium"`
	PaidClaims       decimal.Decimal     `json:"paid_claims"`
	IBNRCarrier      decimal.Decimal     `json:"ibnr_carrier"`
	IBNRMGU          decimal.Decimal     `json:"ibnr_mgu"`
	UltimateLR       decimal.Decimal     `json:"ultimate_loss_ratio"`
	MGULossRatio     decimal.Decimal     `json:"mgu_loss_ratio"`
	CommissionRate   decimal.Decimal     `json:"commission_rate"`
	GrossCommission  decimal.Decimal     `json:"gross_commission"`
	Allocations      []CarrierAllocation `json:"carrier_allocations"`
	Warnings         []string            `json:"warnings"`
	FloorGuard       bool                `json:"floor_guard_applied"`
	IBNRStaleDays    int                 `json:"ibnr_stale_days"`
	ULRDivergence    bool                `json:"ulr_divergence"`
	Written          bool                `json:"written"`
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var (
	one      = decimal.NewFromInt(1)
	money2dp = int32(2)
	ratio6dp = int32(6)
)
