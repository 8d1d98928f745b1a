package trueup_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/meridian/commission-engine/trueup"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	return trueup.MustDecimal(s)
}

func rateFor(t *testing.T, st trueup.SchemeType, params trueup.Parameters, ulr string) decimal.Decimal {
	t.Helper()
	rate, err := trueup.NewRegistry().RateFor(st, params, d(ulr), "CAR_A")
	if err != nil {
		t.Fatalf("RateFor(%s, ulr=%s): %v", st, ulr, err)
	}
	return rate
}

// =============================================================================
// SLIDING SCALE
// =============================================================================

func TestSlidingScale_DefaultBands(t *testing.T) {
	// GIVEN: The default band table
	// WHEN: Rating ULRs across all bands
	// THEN: Each ULR maps to its band's rate

	cases := []struct {
		ulr  string
		rate string
	}{
		{"0.00", "0.27"},
		{"0.30", "0.27"},
		{"0.449999", "0.27"},
		{"0.50", "0.23"},
		{"0.60", "0.18"},
		{"0.70", "0.10"},
		{"0.80", "0"},
		{"1.50", "0"},
	}
	for _, tc := range cases {
		rate := rateFor(t, trueup.SchemeSlidingScale, trueup.Parameters{}, tc.ulr)
		if !rate.Equal(d(tc.rate)) {
			t.Errorf("ULR %s: expected rate %s, got %s", tc.ulr, tc.rate, rate)
		}
	}
}

func TestSlidingScale_BoundaryIsUpperExclusive(t *testing.T) {
	// GIVEN: The default bands with a 0.45 ceiling at 27%
	// WHEN: Rating a ULR of exactly 0.45
	// THEN: The next band fires (23%), not the 0.45 band

	rate := rateFor(t, trueup.SchemeSlidingScale, trueup.Parameters{}, "0.45")
	if !rate.Equal(d("0.23")) {
		t.Errorf("ULR 0.45 should land in the 0.55 band at 23%%, got %s", rate)
	}
}

func TestSlidingScale_MonotonicNonIncreasing(t *testing.T) {
	// Worse loss performance never earns a higher rate.

	prev := d("1")
	for _, ulr := range []string{"0.10", "0.30", "0.45", "0.55", "0.65", "0.75", "0.90", "2.00"} {
		rate := rateFor(t, trueup.SchemeSlidingScale, trueup.Parameters{}, ulr)
		if rate.GreaterThan(prev) {
			t.Errorf("rate increased from %s to %s at ULR %s", prev, rate, ulr)
		}
		prev = rate
	}
}

func TestSlidingScale_CustomBands(t *testing.T) {
	params := trueup.Parameters{
		"bands": []any{
			[]any{"0.50", "0.30"},
			[]any{"0.80", "0.15"},
		},
	}

	if rate := rateFor(t, trueup.SchemeSlidingScale, params, "0.40"); !rate.Equal(d("0.30")) {
		t.Errorf("expected 0.30, got %s", rate)
	}
	if rate := rateFor(t, trueup.SchemeSlidingScale, params, "0.60"); !rate.Equal(d("0.15")) {
		t.Errorf("expected 0.15, got %s", rate)
	}
	// Past the last ceiling the rate is zero.
	if rate := rateFor(t, trueup.SchemeSlidingScale, params, "0.90"); !rate.IsZero() {
		t.Errorf("expected 0 past last ceiling, got %s", rate)
	}
}

func TestSlidingScale_InvalidBands(t *testing.T) {
	// Ceilings out of order fail validation before any rate math.

	params := trueup.Parameters{
		"bands": []any{
			[]any{"0.80", "0.15"},
			[]any{"0.50", "0.30"},
		},
	}
	_, err := trueup.NewRegistry().RateFor(trueup.SchemeSlidingScale, params, d("0.40"), "CAR_A")
	var invalid *trueup.InvalidSchemeParametersError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSchemeParametersError, got %v", err)
	}
	if !trueup.IsDomainError(err) {
		t.Error("parameter errors should be domain errors")
	}
}

// =============================================================================
// CORRIDOR
// =============================================================================

func TestCorridor_InsideAndOutside(t *testing.T) {
	params := trueup.Parameters{
		"corridor_low":  "0.40",
		"corridor_high": "0.60",
		"rate":          "0.15",
	}

	cases := []struct {
		ulr  string
		rate string
	}{
		{"0.39", "0"},
		{"0.40", "0.15"}, // inclusive low edge
		{"0.50", "0.15"},
		{"0.60", "0.15"}, // inclusive high edge
		{"0.61", "0"},
	}
	for _, tc := range cases {
		rate := rateFor(t, trueup.SchemeCorridor, params, tc.ulr)
		if !rate.Equal(d(tc.rate)) {
			t.Errorf("ULR %s: expected %s, got %s", tc.ulr, tc.rate, rate)
		}
	}
}

func TestCorridor_MissingParameters(t *testing.T) {
	_, err := trueup.NewRegistry().RateFor(trueup.SchemeCorridor,
		trueup.Parameters{"corridor_low": "0.40"}, d("0.50"), "CAR_A")
	var invalid *trueup.InvalidSchemeParametersError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSchemeParametersError, got %v", err)
	}
}

func TestCorridor_InvertedBounds(t *testing.T) {
	_, err := trueup.NewRegistry().RateFor(trueup.SchemeCorridor, trueup.Parameters{
		"corridor_low":  "0.70",
		"corridor_high": "0.40",
		"rate":          "0.15",
	}, d("0.50"), "CAR_A")
	if err == nil {
		t.Fatal("expected validation failure for inverted corridor bounds")
	}
}

// =============================================================================
// FIXED PLUS VARIABLE
// =============================================================================

func TestFixedPlusVariable(t *testing.T) {
	params := trueup.Parameters{
		"fixed_rate":       "0.10",
		"variable_rate":    "0.50",
		"profit_threshold": "0.60",
		"variable_cap":     "0.12",
	}

	// GIVEN: ULR 0.50, margin 0.10, variable 0.05 under the cap
	// THEN: rate = 0.10 + 0.05
	if rate := rateFor(t, trueup.SchemeFixedPlusVariable, params, "0.50"); !rate.Equal(d("0.15")) {
		t.Errorf("expected 0.15, got %s", rate)
	}

	// GIVEN: ULR 0.20, margin 0.40, variable 0.20 over the cap
	// THEN: variable part clamps to 0.12
	if rate := rateFor(t, trueup.SchemeFixedPlusVariable, params, "0.20"); !rate.Equal(d("0.22")) {
		t.Errorf("expected 0.22, got %s", rate)
	}

	// GIVEN: ULR above the threshold
	// THEN: only the fixed part pays
	if rate := rateFor(t, trueup.SchemeFixedPlusVariable, params, "0.80"); !rate.Equal(d("0.10")) {
		t.Errorf("expected 0.10, got %s", rate)
	}
}

func TestFixedPlusVariable_NoCap(t *testing.T) {
	params := trueup.Parameters{
		"fixed_rate":       "0.05",
		"variable_rate":    "0.25",
		"profit_threshold": "0.70",
	}

	// margin 0.50, variable 0.125, no cap
	if rate := rateFor(t, trueup.SchemeFixedPlusVariable, params, "0.20"); !rate.Equal(d("0.175")) {
		t.Errorf("expected 0.175, got %s", rate)
	}
}

// =============================================================================
// CAPPED SCALE
// =============================================================================

func TestCappedScale(t *testing.T) {
	params := trueup.Parameters{"max_rate": "0.20"}

	// Default bands would pay 27%; the cap clamps it.
	if rate := rateFor(t, trueup.SchemeCappedScale, params, "0.30"); !rate.Equal(d("0.20")) {
		t.Errorf("expected 0.20, got %s", rate)
	}
	// Under the cap the scale answer stands.
	if rate := rateFor(t, trueup.SchemeCappedScale, params, "0.60"); !rate.Equal(d("0.18")) {
		t.Errorf("expected 0.18, got %s", rate)
	}
}

func TestCappedScale_RequiresMaxRate(t *testing.T) {
	_, err := trueup.NewRegistry().RateFor(trueup.SchemeCappedScale, trueup.Parameters{}, d("0.30"), "CAR_A")
	var invalid *trueup.InvalidSchemeParametersError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSchemeParametersError, got %v", err)
	}
}

// =============================================================================
// CARRIER-SPECIFIC SCALE
// =============================================================================

func TestCarrierSpecificScale(t *testing.T) {
	params := trueup.Parameters{
		"scales": map[string]any{
			"CAR_A": []any{
				[]any{"0.50", "0.25"},
				[]any{"0.70", "0.12"},
			},
			"CAR_B": []any{
				[]any{"0.50", "0.30"},
			},
		},
	}
	reg := trueup.NewRegistry()

	rateA, err := reg.RateFor(trueup.SchemeCarrierSpecificScale, params, d("0.45"), "CAR_A")
	if err != nil {
		t.Fatal(err)
	}
	rateB, err := reg.RateFor(trueup.SchemeCarrierSpecificScale, params, d("0.45"), "CAR_B")
	if err != nil {
		t.Fatal(err)
	}

	if !rateA.Equal(d("0.25")) || !rateB.Equal(d("0.30")) {
		t.Errorf("same ULR should rate per carrier: got A=%s B=%s", rateA, rateB)
	}

	// Unknown carrier has no table.
	_, err = reg.RateFor(trueup.SchemeCarrierSpecificScale, params, d("0.45"), "CAR_Z")
	var invalid *trueup.InvalidSchemeParametersError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSchemeParametersError for unknown carrier, got %v", err)
	}
}

// =============================================================================
// SHARED GUARDS
// =============================================================================

func TestSchemes_ULRBounds(t *testing.T) {
	// A ULR outside [0, 10] is a data sanity failure, not a zero rate.

	reg := trueup.NewRegistry()
	for _, ulr := range []string{"-0.01", "10.01"} {
		_, err := reg.RateFor(trueup.SchemeSlidingScale, trueup.Parameters{}, d(ulr), "CAR_A")
		var bounds *trueup.ULRBoundsError
		if !errors.As(err, &bounds) {
			t.Errorf("ULR %s: expected ULRBoundsError, got %v", ulr, err)
		}
	}

	// The edges themselves are legal.
	for _, ulr := range []string{"0", "10"} {
		if _, err := reg.RateFor(trueup.SchemeSlidingScale, trueup.Parameters{}, d(ulr), "CAR_A"); err != nil {
			t.Errorf("ULR %s should be in bounds: %v", ulr, err)
		}
	}
}

func TestRegistry_UnknownSchemeType(t *testing.T) {
	_, err := trueup.NewRegistry().RateFor("retro_premium", trueup.Parameters{}, d("0.50"), "CAR_A")
	var unknown *trueup.UnknownSchemeTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSchemeTypeError, got %v", err)
	}
	if !trueup.IsDomainError(err) {
		t.Error("unknown scheme type should be a domain error")
	}
}

func TestRegistry_Types(t *testing.T) {
	types := trueup.NewRegistry().Types()
	if len(types) != 5 {
		t.Fatalf("expected 5 registered schemes, got %d", len(types))
	}
}
