/*
schemes.go - Commission rate schemes

PURPOSE:
  Every scheme is a pure rate function: (ultimate loss ratio, parameters)
  -> commission rate in [0,1]. Allocation, clawback and floor policy live
  in the orchestrator, never here - a scheme answers "what rate does this
  loss performance earn" and nothing else.

BAND SEMANTICS:
  Sliding-scale bands are (ulr_ceiling, rate) pairs; the first band whose
  ceiling strictly exceeds the ULR fires. Boundaries are exclusive on the
  upper end: a ULR of exactly 0.45 selects the 0.55 band, not the 0.45
  band.

VALIDATION:
  Parameters are validated structurally before any rate math runs -
  missing keys, wrong types and inverted band ordering all fail with
  InvalidSchemeParametersError up front. A ULR outside [0,10] is a data
  sanity failure (ULRBoundsError), not a zero-rate answer.
*/
package trueup

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scheme computes a commission rate from an ultimate loss ratio.
type Scheme interface {
	Type() SchemeType

	// Validate checks parameters structurally. Must pass before Rate is
	// called.
	Validate(params Parameters) error

	// Rate returns the commission rate in [0,1] for the given ULR.
	// carrier identifies the carrier being rated; only
	// carrier_specific_scale uses it.
	Rate(ulr decimal.Decimal, carrier CarrierID, params Parameters) (decimal.Decimal, error)
}

var (
	ulrFloor   = decimal.Zero
	ulrCeiling = decimal.NewFromInt(10)
)

func checkULR(ulr decimal.Decimal) error {
	if ulr.LessThan(ulrFloor) || ulr.GreaterThan(ulrCeiling) {
		return &ULRBoundsError{ULR: ulr}
	}
	return nil
}

// =============================================================================
// BANDS
// =============================================================================

// Band is one (ulr_ceiling, rate) pair of a sliding scale.
type Band struct {
	Ceiling decimal.Decimal
	Rate    decimal.Decimal
}

// DefaultBands is the contract-standard sliding scale:
// <0.45 -> 27%, <0.55 -> 23%, <0.65 -> 18%, <0.75 -> 10%, else 0%.
func DefaultBands() []Band {
	return []Band{
		{Ceiling: MustDecimal("0.45"), Rate: MustDecimal("0.27")},
		{Ceiling: MustDecimal("0.55"), Rate: MustDecimal("0.23")},
		{Ceiling: MustDecimal("0.65"), Rate: MustDecimal("0.18")},
		{Ceiling: MustDecimal("0.75"), Rate: MustDecimal("0.10")},
		{Ceiling: decimal.NewFromInt(999), Rate: decimal.Zero},
	}
}

// pickBand returns the rate of the first band whose ceiling exceeds the
// ULR; past the last ceiling the rate is zero.
func pickBand(bands []Band, ulr decimal.Decimal) decimal.Decimal {
	for _, b := range bands {
		if ulr.LessThan(b.Ceiling) {
			return b.Rate
		}
	}
	return decimal.Zero
}

func validateBands(st SchemeType, bands []Band) error {
	if len(bands) == 0 {
		return &InvalidSchemeParametersError{SchemeType: st, Reason: "empty band table"}
	}
	prev := decimal.NewFromInt(-1)
	for i, b := range bands {
		if !b.Ceiling.GreaterThan(prev) {
			return &InvalidSchemeParametersError{
				SchemeType: st,
				Reason:     fmt.Sprintf("band %d: ceilings must be strictly increasing", i),
			}
		}
		if b.Rate.LessThan(decimal.Zero) || b.Rate.GreaterThan(one) {
			return &InvalidSchemeParametersError{
				SchemeType: st,
				Reason:     fmt.Sprintf("band %d: rate %s outside [0,1]", i, b.Rate),
			}
		}
		prev = b.Ceiling
	}
	return nil
}

// =============================================================================
// PARAMETER DECODING
// =============================================================================
// Parameters arrive as decoded JSON, so numbers may be float64,
// json.Number, or strings depending on the ingestion path. Everything is
// normalized to decimal at the edge.

func paramDecimal(st SchemeType, params Parameters, key string) (decimal.Decimal, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return decimal.Zero, false, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, false, &InvalidSchemeParametersError{
			SchemeType: st,
			Reason:     fmt.Sprintf("%s: %v", key, err),
		}
	}
	return d, true, nil
}

func requireDecimal(st SchemeType, params Parameters, key string) (decimal.Decimal, error) {
	d, ok, err := paramDecimal(st, params, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, &InvalidSchemeParametersError{
			SchemeType: st,
			Reason:     "missing required parameter " + key,
		}
	}
	return d, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	case decimal.Decimal:
		return n, nil
	default:
		return decimal.Zero, fmt.Errorf("not a number (%T)", v)
	}
}

func paramBands(st SchemeType, v any) ([]Band, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, &InvalidSchemeParametersError{SchemeType: st, Reason: "bands must be a list of [ceiling, rate] pairs"}
	}
	bands := make([]Band, 0, len(list))
	for i, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, &InvalidSchemeParametersError{
				SchemeType: st,
				Reason:     fmt.Sprintf("band %d: expected [ceiling, rate] pair", i),
			}
		}
		ceiling, err := toDecimal(pair[0])
		if err != nil {
			return nil, &InvalidSchemeParametersError{SchemeType: st, Reason: fmt.Sprintf("band %d ceiling: %v", i, err)}
		}
		rate, err := toDecimal(pair[1])
		if err != nil {
			return nil, &InvalidSchemeParametersError{SchemeType: st, Reason: fmt.Sprintf("band %d rate: %v", i, err)}
		}
		bands = append(bands, Band{Ceiling: ceiling, Rate: rate})
	}
	if err := validateBands(st, bands); err != nil {
		return nil, err
	}
	return bands, nil
}

// bandsFromParams reads the optional "bands" parameter, falling back to
// the default table.
func bandsFromParams(st SchemeType, params Parameters) ([]Band, error) {
	v, ok := params["bands"]
	if !ok || v == nil {
		return DefaultBands(), nil
	}
	return paramBands(st, v)
}

// =============================================================================
// SLIDING SCALE
// =============================================================================

// SlidingScale selects a rate from an ordered band table.
type SlidingScale struct{}

func (SlidingScale) Type() SchemeType { return SchemeSlidingScale }

func (SlidingScale) Validate(params Parameters) error {
	_, err := bandsFromParams(SchemeSlidingScale, params)
	return err
}

func (SlidingScale) Rate(ulr decimal.Decimal, _ CarrierID, params Parameters) (decimal.Decimal, error) {
	if err := checkULR(ulr); err != nil {
		return decimal.Zero, err
	}
	bands, err := bandsFromParams(SchemeSlidingScale, params)
	if err != nil {
		return decimal.Zero, err
	}
	return pickBand(bands, ulr), nil
}

// =============================================================================
// CORRIDOR
// =============================================================================

// Corridor pays a flat rate when the ULR lands inside
// [corridor_low, corridor_high], zero outside.
type Corridor struct{}

func (Corridor) Type() SchemeType { return SchemeCorridor }

func (Corridor) Validate(params Parameters) error {
	low, err := requireDecimal(SchemeCorridor, params, "corridor_low")
	if err != nil {
		return err
	}
	high, err := requireDecimal(SchemeCorridor, params, "corridor_high")
	if err != nil {
		return err
	}
	rate, err := requireDecimal(SchemeCorridor, params, "rate")
	if err != nil {
		return err
	}
	if high.LessThan(low) {
		return &InvalidSchemeParametersError{SchemeType: SchemeCorridor, Reason: "corridor_high below corridor_low"}
	}
	if rate.LessThan(decimal.Zero) || rate.GreaterThan(one) {
		return &InvalidSchemeParametersError{SchemeType: SchemeCorridor, Reason: "rate outside [0,1]"}
	}
	return nil
}

func (c Corridor) Rate(ulr decimal.Decimal, _ CarrierID, params Parameters) (decimal.Decimal, error) {
	if err := checkULR(ulr); err != nil {
		return decimal.Zero, err
	}
	low, _, _ := paramDecimal(SchemeCorridor, params, "corridor_low")
	high, _, _ := paramDecimal(SchemeCorridor, params, "corridor_high")
	rate, _, _ := paramDecimal(SchemeCorridor, params, "rate")
	if ulr.GreaterThanOrEqual(low) && ulr.LessThanOrEqual(high) {
		return rate, nil
	}
	return decimal.Zero, nil
}

// =============================================================================
// FIXED PLUS VARIABLE
// =============================================================================

// FixedPlusVariable pays a fixed rate plus a profit participation:
// variable_rate times the margin by which the ULR beats profit_threshold,
// with the variable part optionally capped at variable_cap.
type FixedPlusVariable struct{}

func (FixedPlusVariable) Type() SchemeType { return SchemeFixedPlusVariable }

func (FixedPlusVariable) Validate(params Parameters) error {
	fixed, err := requireDecimal(SchemeFixedPlusVariable, params, "fixed_rate")
	if err != nil {
		return err
	}
	if fixed.LessThan(decimal.Zero) || fixed.GreaterThan(one) {
		return &InvalidSchemeParametersError{SchemeType: SchemeFixedPlusVariable, Reason: "fixed_rate outside [0,1]"}
	}
	for _, key := range []string{"variable_rate", "profit_threshold", "variable_cap"} {
		if _, _, err := paramDecimal(SchemeFixedPlusVariable, params, key); err != nil {
			return err
		}
	}
	return nil
}

func (FixedPlusVariable) Rate(ulr decimal.Decimal, _ CarrierID, params Parameters) (decimal.Decimal, error) {
	if err := checkULR(ulr); err != nil {
		return decimal.Zero, err
	}
	fixed, _, _ := paramDecimal(SchemeFixedPlusVariable, params, "fixed_rate")
	variable, _, _ := paramDecimal(SchemeFixedPlusVariable, params, "variable_rate")
	threshold, _, _ := paramDecimal(SchemeFixedPlusVariable, params, "profit_threshold")
	cap, hasCap, _ := paramDecimal(SchemeFixedPlusVariable, params, "variable_cap")

	margin := threshold.Sub(ulr)
	if margin.LessThan(decimal.Zero) {
		margin = decimal.Zero
	}
	variablePart := variable.Mul(margin)
	if hasCap && variablePart.GreaterThan(cap) {
		variablePart = cap
	}

	rate := fixed.Add(variablePart)
	if rate.GreaterThan(one) {
		rate = one
	}
	return rate, nil
}

// =============================================================================
// CAPPED SCALE
// =============================================================================

// CappedScale runs the sliding scale, then clamps the result to
// max_rate.
type CappedScale struct{}

func (CappedScale) Type() SchemeType { return SchemeCappedScale }

func (CappedScale) Validate(params Parameters) error {
	if _, err := bandsFromParams(SchemeCappedScale, params); err != nil {
		return err
	}
	max, err := requireDecimal(SchemeCappedScale, params, "max_rate")
	if err != nil {
		return err
	}
	if max.LessThan(decimal.Zero) || max.GreaterThan(one) {
		return &InvalidSchemeParametersError{SchemeType: SchemeCappedScale, Reason: "max_rate outside [0,1]"}
	}
	return nil
}

func (CappedScale) Rate(ulr decimal.Decimal, carrier CarrierID, params Parameters) (decimal.Decimal, error) {
	rate, err := (SlidingScale{}).Rate(ulr, carrier, params)
	if err != nil {
		return decimal.Zero, err
	}
	max, _, _ := paramDecimal(SchemeCappedScale, params, "max_rate")
	if rate.GreaterThan(max) {
		rate = max
	}
	return rate, nil
}

// =============================================================================
// CARRIER-SPECIFIC SCALE
// =============================================================================

// CarrierSpecificScale is a sliding scale whose band table varies per
// carrier: parameters carry a "scales" map of carrier ID to band table.
type CarrierSpecificScale struct{}

func (CarrierSpecificScale) Type() SchemeType { return SchemeCarrierSpecificScale }

func (CarrierSpecificScale) Validate(params Parameters) error {
	scales, err := carrierScales(params)
	if err != nil {
		return err
	}
	for carrier, raw := range scales {
		if _, err := paramBands(SchemeCarrierSpecificScale, raw); err != nil {
			return &InvalidSchemeParametersError{
				SchemeType: SchemeCarrierSpecificScale,
				Reason:     fmt.Sprintf("carrier %s: %v", carrier, err),
			}
		}
	}
	return nil
}

func (CarrierSpecificScale) Rate(ulr decimal.Decimal, carrier CarrierID, params Parameters) (decimal.Decimal, error) {
	if err := checkULR(ulr); err != nil {
		return decimal.Zero, err
	}
	scales, err := carrierScales(params)
	if err != nil {
		return decimal.Zero, err
	}
	raw, ok := scales[string(carrier)]
	if !ok {
		return decimal.Zero, &InvalidSchemeParametersError{
			SchemeType: SchemeCarrierSpecificScale,
			Reason:     fmt.Sprintf("no band table for carrier %s", carrier),
		}
	}
	bands, err := paramBands(SchemeCarrierSpecificScale, raw)
	if err != nil {
		return decimal.Zero, err
	}
	return pickBand(bands, ulr), nil
}

func carrierScales(params Parameters) (map[string]any, error) {
	v, ok := params["scales"]
	if !ok || v == nil {
		return nil, &InvalidSchemeParametersError{SchemeType: SchemeCarrierSpecificScale, Reason: "missing required parameter scales"}
	}
	scales, ok := v.(map[string]any)
	if !ok {
		return nil, &InvalidSchemeParametersError{SchemeType: SchemeCarrierSpecificScale, Reason: "scales must map carrier IDs to band tables"}
	}
	if len(scales) == 0 {
		return nil, &InvalidSchemeParametersError{SchemeType: SchemeCarrierSpecificScale, Reason: "scales is empty"}
	}
	return scales, nil
}
