/*
splits.go - Vintage resolution for carrier splits and scheme assignments

PURPOSE:
  Carrier participation and scheme assignments are effective-dated,
  append-only tables. Resolution is always "filter by cutoff, then pick
  the row with the max effective_from per key" - never a mutable
  current-state row. A split superseded by a later effective_from must
  never be selected for an as-of date before that later date; that is
  what makes old audit rows reproducible.

TIE-BREAKING:
  Two rows for the same carrier with the same effective_from are broken
  by the later write time, matching how a correction is issued in
  practice (re-key the same vintage, newest write wins).
*/
package trueup

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SplitTolerance is the allowed deviation of resolved participation
// percentages from 1.0.
var SplitTolerance = MustDecimal("0.0001")

// ResolvedSplit is the single applicable participation row for a carrier
// at an as-of date. EffectiveFrom is mandatory audit provenance and is
// carried into the ledger row.
type ResolvedSplit struct {
	CarrierID        CarrierID
	CarrierName      string
	ParticipationPct decimal.Decimal
	EffectiveFrom    Date
}

// ResolveCarrierSplits selects the applicable vintage per carrier and
// validates completeness. Fails with CarrierSplitsError on an empty set
// or a participation sum off 1.0 by more than SplitTolerance.
func ResolveCarrierSplits(rows []CarrierSplit, underwritingYear int, asOf Date) ([]ResolvedSplit, error) {
	latest := make(map[CarrierID]CarrierSplit)
	for _, row := range rows {
		if row.EffectiveFrom.After(asOf) {
			continue
		}
		cur, ok := latest[row.CarrierID]
		if !ok || supersedesSplit(row, cur) {
			latest[row.CarrierID] = row
		}
	}

	if len(latest) == 0 {
		return nil, &CarrierSplitsError{UnderwritingYear: underwritingYear, Reason: "no splits"}
	}

	resolved := make([]ResolvedSplit, 0, len(latest))
	sum := decimal.Zero
	for _, row := range latest {
		resolved = append(resolved, ResolvedSplit{
			CarrierID:        row.CarrierID,
			CarrierName:      row.CarrierName,
			ParticipationPct: row.ParticipationPct,
			EffectiveFrom:    row.EffectiveFrom,
		})
		sum = sum.Add(row.ParticipationPct)
	}

	if sum.Sub(one).Abs().GreaterThan(SplitTolerance) {
		return nil, &CarrierSplitsError{UnderwritingYear: underwritingYear, Reason: "invalid sum", Sum: sum}
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].CarrierID < resolved[j].CarrierID })
	return resolved, nil
}

func supersedesSplit(candidate, current CarrierSplit) bool {
	if candidate.EffectiveFrom.After(current.EffectiveFrom) {
		return true
	}
	if candidate.EffectiveFrom.Equal(current.EffectiveFrom) {
		return candidate.SystemTimestamp.After(current.SystemTimestamp)
	}
	return false
}

// ResolvedScheme is the scheme assignment vintage actually in force for
// a carrier at an as-of date.
type ResolvedScheme struct {
	SchemeType    SchemeType
	Parameters    Parameters
	EffectiveFrom Date
}

// ResolveSchemeAssignment applies the same vintage discipline to scheme
// assignments. Carrier-specific rows win over the program-level default
// (empty CarrierID); absence of both fails with MissingSchemeError.
func ResolveSchemeAssignment(rows []SchemeAssignment, underwritingYear int, carrier CarrierID, asOf Date) (*ResolvedScheme, error) {
	pick := func(target CarrierID) *SchemeAssignment {
		var best *SchemeAssignment
		for i := range rows {
			row := &rows[i]
			if row.CarrierID != target || row.EffectiveFrom.After(asOf) {
				continue
			}
			if best == nil || supersedesAssignment(*row, *best) {
				best = row
			}
		}
		return best
	}

	best := pick(carrier)
	if best == nil && carrier != "" {
		best = pick("") // program-level default for the UY
	}
	if best == nil {
		return nil, &MissingSchemeError{UnderwritingYear: underwritingYear, CarrierID: carrier, AsOf: asOf}
	}

	return &ResolvedScheme{
		SchemeType:    best.SchemeType,
		Parameters:    best.Parameters,
		EffectiveFrom: best.EffectiveFrom,
	}, nil
}

func supersedesAssignment(candidate, current SchemeAssignment) bool {
	if candidate.EffectiveFrom.After(current.EffectiveFrom) {
		return true
	}
	if candidate.EffectiveFrom.Equal(current.EffectiveFrom) {
		return candidate.SystemTimestamp.After(current.SystemTimestamp)
	}
	return false
}
