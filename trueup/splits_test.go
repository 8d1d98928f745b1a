package trueup_test

import (
	"errors"
	"testing"
	"time"

	"github.com/meridian/commission-engine/trueup"
)

func day(s string) trueup.Date {
	parsed, err := trueup.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func split(carrier trueup.CarrierID, pct, from string, sys time.Time) trueup.CarrierSplit {
	return trueup.CarrierSplit{
		UnderwritingYear: 2023,
		CarrierID:        carrier,
		ParticipationPct: d(pct),
		EffectiveFrom:    day(from),
		SystemTimestamp:  sys,
	}
}

// =============================================================================
// CARRIER SPLIT RESOLUTION
// =============================================================================

func TestResolveCarrierSplits_PicksVintageInForce(t *testing.T) {
	// GIVEN: An initial 50/30/20 placement and a later 45/30/25 restructure
	// WHEN: Resolving as of a date between the two vintages
	// THEN: The original placement applies, untouched by the later rows

	sys := time.Date(2022, 12, 10, 9, 0, 0, 0, time.UTC)
	rows := []trueup.CarrierSplit{
		split("CAR_A", "0.50", "2023-01-01", sys),
		split("CAR_B", "0.30", "2023-01-01", sys),
		split("CAR_C", "0.20", "2023-01-01", sys),
		split("CAR_A", "0.45", "2024-07-01", sys.AddDate(1, 6, 0)),
		split("CAR_B", "0.30", "2024-07-01", sys.AddDate(1, 6, 0)),
		split("CAR_C", "0.25", "2024-07-01", sys.AddDate(1, 6, 0)),
	}

	resolved, err := trueup.ResolveCarrierSplits(rows, 2023, day("2024-01-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 3 {
		t.Fatalf("expected 3 carriers, got %d", len(resolved))
	}
	if !resolved[0].ParticipationPct.Equal(d("0.50")) {
		t.Errorf("CAR_A should keep the January vintage 0.50, got %s", resolved[0].ParticipationPct)
	}
	if !resolved[0].EffectiveFrom.Equal(day("2023-01-01")) {
		t.Errorf("effective_from provenance wrong: %s", resolved[0].EffectiveFrom)
	}

	// After the restructure date the later vintage wins.
	resolved, err = trueup.ResolveCarrierSplits(rows, 2023, day("2024-07-01"))
	if err != nil {
		t.Fatal(err)
	}
	if !resolved[0].ParticipationPct.Equal(d("0.45")) {
		t.Errorf("CAR_A should move to 0.45 on the restructure date, got %s", resolved[0].ParticipationPct)
	}
}

func TestResolveCarrierSplits_SortedByCarrier(t *testing.T) {
	sys := time.Now().UTC()
	rows := []trueup.CarrierSplit{
		split("CAR_C", "0.20", "2023-01-01", sys),
		split("CAR_A", "0.50", "2023-01-01", sys),
		split("CAR_B", "0.30", "2023-01-01", sys),
	}

	resolved, err := trueup.ResolveCarrierSplits(rows, 2023, day("2023-06-30"))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []trueup.CarrierID{"CAR_A", "CAR_B", "CAR_C"} {
		if resolved[i].CarrierID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, resolved[i].CarrierID)
		}
	}
}

func TestResolveCarrierSplits_TieBrokenByWriteTime(t *testing.T) {
	// GIVEN: A mis-keyed split corrected by re-keying the same vintage
	// WHEN: Resolving
	// THEN: The later write wins

	early := time.Date(2023, 1, 5, 10, 0, 0, 0, time.UTC)
	rows := []trueup.CarrierSplit{
		split("CAR_A", "0.55", "2023-01-01", early),
		split("CAR_A", "0.60", "2023-01-01", early.Add(2*time.Hour)), // correction
		split("CAR_B", "0.40", "2023-01-01", early),
	}

	resolved, err := trueup.ResolveCarrierSplits(rows, 2023, day("2023-12-31"))
	if err != nil {
		t.Fatal(err)
	}
	if !resolved[0].ParticipationPct.Equal(d("0.60")) {
		t.Errorf("correction should win the tie, got %s", resolved[0].ParticipationPct)
	}
}

func TestResolveCarrierSplits_NoSplits(t *testing.T) {
	_, err := trueup.ResolveCarrierSplits(nil, 2023, day("2024-01-31"))
	var splitsErr *trueup.CarrierSplitsError
	if !errors.As(err, &splitsErr) {
		t.Fatalf("expected CarrierSplitsError, got %v", err)
	}

	// Rows exist but all post-date the as-of: same failure.
	rows := []trueup.CarrierSplit{split("CAR_A", "1.0", "2024-07-01", time.Now())}
	_, err = trueup.ResolveCarrierSplits(rows, 2023, day("2024-01-31"))
	if !errors.As(err, &splitsErr) {
		t.Fatalf("expected CarrierSplitsError for future-only vintages, got %v", err)
	}
}

func TestResolveCarrierSplits_InvalidSum(t *testing.T) {
	sys := time.Now().UTC()
	rows := []trueup.CarrierSplit{
		split("CAR_A", "0.50", "2023-01-01", sys),
		split("CAR_B", "0.30", "2023-01-01", sys),
		// CAR_C missing: resolved sum 0.80
	}

	_, err := trueup.ResolveCarrierSplits(rows, 2023, day("2023-12-31"))
	var splitsErr *trueup.CarrierSplitsError
	if !errors.As(err, &splitsErr) {
		t.Fatalf("expected CarrierSplitsError, got %v", err)
	}
	if !splitsErr.Sum.Equal(d("0.80")) {
		t.Errorf("error should carry the bad sum, got %s", splitsErr.Sum)
	}
}

func TestResolveCarrierSplits_SumWithinTolerance(t *testing.T) {
	// Decimal system feeds sometimes land at 0.99995 after rounding.

	sys := time.Now().UTC()
	rows := []trueup.CarrierSplit{
		split("CAR_A", "0.33335", "2023-01-01", sys),
		split("CAR_B", "0.33335", "2023-01-01", sys),
		split("CAR_C", "0.33325", "2023-01-01", sys),
	}

	if _, err := trueup.ResolveCarrierSplits(rows, 2023, day("2023-12-31")); err != nil {
		t.Fatalf("sum 0.99995 is inside tolerance: %v", err)
	}
}

// =============================================================================
// SCHEME ASSIGNMENT RESOLUTION
// =============================================================================

func assignment(carrier trueup.CarrierID, st trueup.SchemeType, from string, sys time.Time) trueup.SchemeAssignment {
	return trueup.SchemeAssignment{
		UnderwritingYear: 2023,
		CarrierID:        carrier,
		SchemeType:       st,
		EffectiveFrom:    day(from),
		SystemTimestamp:  sys,
	}
}

func TestResolveSchemeAssignment_CarrierOverridesDefault(t *testing.T) {
	sys := time.Now().UTC()
	rows := []trueup.SchemeAssignment{
		assignment("", trueup.SchemeSlidingScale, "2023-01-01", sys),
		assignment("CAR_B", trueup.SchemeCorridor, "2023-01-01", sys),
	}

	// CAR_B has its own assignment.
	got, err := trueup.ResolveSchemeAssignment(rows, 2023, "CAR_B", day("2023-12-31"))
	if err != nil {
		t.Fatal(err)
	}
	if got.SchemeType != trueup.SchemeCorridor {
		t.Errorf("carrier row should beat the default, got %s", got.SchemeType)
	}

	// CAR_A falls back to the program default.
	got, err = trueup.ResolveSchemeAssignment(rows, 2023, "CAR_A", day("2023-12-31"))
	if err != nil {
		t.Fatal(err)
	}
	if got.SchemeType != trueup.SchemeSlidingScale {
		t.Errorf("expected program default sliding_scale, got %s", got.SchemeType)
	}
}

func TestResolveSchemeAssignment_VintageDiscipline(t *testing.T) {
	// A renegotiated scheme applies only from its effective date.

	sys := time.Now().UTC()
	rows := []trueup.SchemeAssignment{
		assignment("CAR_A", trueup.SchemeSlidingScale, "2023-01-01", sys),
		assignment("CAR_A", trueup.SchemeCappedScale, "2024-01-01", sys),
	}

	got, err := trueup.ResolveSchemeAssignment(rows, 2023, "CAR_A", day("2023-06-30"))
	if err != nil {
		t.Fatal(err)
	}
	if got.SchemeType != trueup.SchemeSlidingScale {
		t.Errorf("expected the 2023 vintage, got %s", got.SchemeType)
	}

	got, err = trueup.ResolveSchemeAssignment(rows, 2023, "CAR_A", day("2024-06-30"))
	if err != nil {
		t.Fatal(err)
	}
	if got.SchemeType != trueup.SchemeCappedScale {
		t.Errorf("expected the 2024 vintage, got %s", got.SchemeType)
	}
}

func TestResolveSchemeAssignment_Missing(t *testing.T) {
	_, err := trueup.ResolveSchemeAssignment(nil, 2023, "CAR_A", day("2023-12-31"))
	var missing *trueup.MissingSchemeError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSchemeError, got %v", err)
	}
	if !trueup.IsDomainError(err) {
		t.Error("missing scheme should be a domain error")
	}
}
