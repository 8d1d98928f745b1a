/*
facts.go - Read/write contracts between the engine and the store

PURPOSE:
  The engine's entire boundary is this interface: parameterized reads
  over append-only transactional facts, and one atomic write path for
  ledger rows. Column layout is a store concern; temporal semantics are
  fixed here.

TEMPORAL CONTRACT:
  Every read takes a Cutoff. A fact is visible only when its business
  date is on or before Cutoff.AsOf AND, when Cutoff.SystemAsOf is set,
  its write timestamp is on or before that instant. Two reads with the
  same Cutoff against an unchanged fact set must return the same answer
  regardless of wall-clock time.

VINTAGE ROWS:
  CarrierSplits and SchemeAssignments return ALL effective-dated rows
  visible under the system cutoff; business-date filtering and
  latest-per-key selection happen in the resolver (splits.go) so the
  selection discipline is one piece of code, not one per store.

WRITE CONTRACT:
  AppendLedger persists all rows of one run as a single atomic unit -
  either every carrier row lands or none do. Ledger rows are never
  updated or deleted.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - trueup/store: in-memory store for tests
*/
package trueup

import (
	"context"

	"github.com/shopspring/decimal"
)

// FactStore is the engine's view of the relational store.
type FactStore interface {
	// Cohort returns the underwriting cohort, or nil if none exists.
	Cohort(ctx context.Context, underwritingYear int) (*UnderwritingCohort, error)

	// EarnedPremium returns net earned premium: premium minus
	// return_premium, both bounded by the cutoff.
	EarnedPremium(ctx context.Context, underwritingYear int, cut Cutoff) (decimal.Decimal, error)

	// PaidClaims returns the sum of claim_paid amounts bounded by the
	// cutoff.
	PaidClaims(ctx context.Context, underwritingYear int, cut Cutoff) (decimal.Decimal, error)

	// IBNR returns the reserve snapshot to use: the latest-written
	// snapshot whose as_of_date does not exceed the cutoff, for the
	// UY/source/development month. When carrier is non-empty, a
	// per-carrier snapshot is preferred over a cohort-level one; an
	// empty carrier considers cohort-level snapshots only. Returns nil
	// when none qualifies.
	IBNR(ctx context.Context, underwritingYear, developmentMonth int, source IBNRSource, carrier CarrierID, cut Cutoff) (*IBNRSnapshot, error)

	// CarrierSplits returns every participation vintage for the UY
	// visible under the system cutoff.
	CarrierSplits(ctx context.Context, underwritingYear int, cut Cutoff) ([]CarrierSplit, error)

	// SchemeAssignments returns every scheme assignment vintage for the
	// UY visible under the system cutoff.
	SchemeAssignments(ctx context.Context, underwritingYear int, cut Cutoff) ([]SchemeAssignment, error)

	// LPTFreeze reports whether a freeze_commission LPT event with
	// effective_date on or before the cutoff exists for the carrier/UY.
	LPTFreeze(ctx context.Context, carrier CarrierID, underwritingYear int, cut Cutoff) (bool, error)

	// PriorPaid returns the sum of delta_payment over previously
	// persisted ledger rows for the UY/carrier, bounded by the system
	// cutoff.
	PriorPaid(ctx context.Context, underwritingYear int, carrier CarrierID, cut Cutoff) (decimal.Decimal, error)

	// AppendLedger persists all rows of one run atomically.
	AppendLedger(ctx context.Context, entries []LedgerEntry) error
}

// LedgerBrowser is the read side of the ledger, used by the report and
// API layers rather than the calculation itself.
type LedgerBrowser interface {
	// LedgerEntries returns ledger rows for a UY (0 = all), most recent
	// first, capped at limit (0 = no cap).
	LedgerEntries(ctx context.Context, underwritingYear, limit int) ([]LedgerEntry, error)
}
