// Package seed loads a deterministic demonstration book: three
// underwriting years of premium, claims, reserve snapshots, split
// vintages and scheme assignments, exercising every registered scheme
// plus an LPT freeze.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian/commission-engine/trueup"
)

// Target is the ingestion surface seeding writes through. Both the
// SQLite store and the in-memory store satisfy it.
type Target interface {
	InsertCohort(ctx context.Context, c trueup.UnderwritingCohort) error
	InsertPolicy(ctx context.Context, p trueup.Policy) error
	InsertTransaction(ctx context.Context, tx trueup.Transaction) error
	InsertIBNRSnapshot(ctx context.Context, s trueup.IBNRSnapshot) error
	InsertCarrierSplit(ctx context.Context, s trueup.CarrierSplit) error
	InsertSchemeAssignment(ctx context.Context, a trueup.SchemeAssignment) error
	InsertLPTEvent(ctx context.Context, e trueup.LPTEvent) error
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func date(s string) trueup.Date {
	d, err := trueup.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Load writes the demonstration book. UY 2023 reproduces the worked
// example used across the test suite: earned 2,847,320 against ultimate
// losses of 730,680 gives a 25.66% loss ratio and a 27% sliding-scale
// commission split 50/30/20 across three carriers.
func Load(ctx context.Context, t Target) error {
	type step struct {
		name string
		fn   func() error
	}
	steps := []step{
		{"cohorts", func() error { return cohorts(ctx, t) }},
		{"policies and transactions", func() error { return book(ctx, t) }},
		{"ibnr snapshots", func() error { return ibnr(ctx, t) }},
		{"carrier splits", func() error { return splits(ctx, t) }},
		{"scheme assignments", func() error { return schemes(ctx, t) }},
		{"lpt events", func() error { return lpt(ctx, t) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("seed %s: %w", s.name, err)
		}
	}
	return nil
}

func cohorts(ctx context.Context, t Target) error {
	for _, c := range []trueup.UnderwritingCohort{
		{Year: 2022, PeriodStart: date("2022-01-01"), PeriodEnd: date("2022-12-31"), Status: trueup.CohortRunOff},
		{Year: 2023, PeriodStart: date("2023-01-01"), PeriodEnd: date("2023-12-31"), Status: trueup.CohortOpen},
		{Year: 2024, PeriodStart: date("2024-01-01"), PeriodEnd: date("2024-12-31"), Status: trueup.CohortOpen},
	} {
		if err := t.InsertCohort(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func book(ctx context.Context, t Target) error {
	policies := []trueup.Policy{
		{Ref: "POL-2022-0001", UnderwritingYear: 2022, EffectiveDate: date("2022-03-01"), ExpiryDate: date("2023-02-28"), GrossPremium: trueup.MustDecimal("1250000")},
		{Ref: "POL-2023-0001", UnderwritingYear: 2023, EffectiveDate: date("2023-02-01"), ExpiryDate: date("2024-01-31"), GrossPremium: trueup.MustDecimal("1600000")},
		{Ref: "POL-2023-0002", UnderwritingYear: 2023, EffectiveDate: date("2023-06-15"), ExpiryDate: date("2024-06-14"), GrossPremium: trueup.MustDecimal("1400000")},
		{Ref: "POL-2024-0001", UnderwritingYear: 2024, EffectiveDate: date("2024-01-10"), ExpiryDate: date("2025-01-09"), GrossPremium: trueup.MustDecimal("900000")},
	}
	for _, p := range policies {
		if err := t.InsertPolicy(ctx, p); err != nil {
			return err
		}
	}

	txns := []struct {
		policy trueup.PolicyRef
		uy     int
		typ    trueup.TxnType
		day    string
		amount string
		sys    string
	}{
		// UY 2022
		{"POL-2022-0001", 2022, trueup.TxnPremium, "2022-03-01", "1250000.00", "2022-03-02T09:00:00Z"},
		{"POL-2022-0001", 2022, trueup.TxnReturnPremium, "2022-09-15", "50000.00", "2022-09-16T10:00:00Z"},
		{"POL-2022-0001", 2022, trueup.TxnClaimPaid, "2022-11-20", "310000.00", "2022-11-22T14:30:00Z"},
		{"POL-2022-0001", 2022, trueup.TxnClaimPaid, "2023-04-03", "145000.00", "2023-04-05T11:00:00Z"},

		// UY 2023: earned 1,600,000 + 1,400,000 - 152,680 = 2,847,320;
		// paid claims 265,000 + 147,180 = 412,180.
		{"POL-2023-0001", 2023, trueup.TxnPremium, "2023-02-01", "1600000.00", "2023-02-02T08:15:00Z"},
		{"POL-2023-0002", 2023, trueup.TxnPremium, "2023-06-15", "1400000.00", "2023-06-16T08:15:00Z"},
		{"POL-2023-0002", 2023, trueup.TxnReturnPremium, "2023-10-01", "152680.00", "2023-10-02T16:45:00Z"},
		{"POL-2023-0001", 2023, trueup.TxnClaimPaid, "2023-08-12", "265000.00", "2023-08-14T09:20:00Z"},
		// late-recorded claim: booked to 2023 even though written in 2024
		{"POL-2023-0002", 2023, trueup.TxnClaimPaid, "2023-12-28", "147180.00", "2024-01-15T10:05:00Z"},

		// UY 2024
		{"POL-2024-0001", 2024, trueup.TxnPremium, "2024-01-10", "900000.00", "2024-01-11T08:00:00Z"},
		{"POL-2024-0001", 2024, trueup.TxnClaimPaid, "2024-07-22", "95000.00", "2024-07-23T13:40:00Z"},
	}
	for _, x := range txns {
		err := t.InsertTransaction(ctx, trueup.Transaction{
			ID:               uuid.NewString(),
			PolicyRef:        x.policy,
			UnderwritingYear: x.uy,
			Type:             x.typ,
			TxnDate:          date(x.day),
			Amount:           trueup.MustDecimal(x.amount),
			SystemTimestamp:  ts(x.sys),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func ibnr(ctx context.Context, t Target) error {
	snaps := []struct {
		uy     int
		dev    int
		source trueup.IBNRSource
		asOf   string
		amount string
		sys    string
	}{
		{2022, 12, trueup.SourceCarrierOfficial, "2022-12-31", "520000.00", "2023-01-20T12:00:00Z"},
		{2022, 12, trueup.SourceMGUInternal, "2022-12-31", "560000.00", "2023-01-10T12:00:00Z"},
		{2022, 24, trueup.SourceCarrierOfficial, "2023-12-31", "260000.00", "2024-01-25T12:00:00Z"},
		{2022, 24, trueup.SourceMGUInternal, "2023-12-31", "275000.00", "2024-01-12T12:00:00Z"},
		{2022, 36, trueup.SourceCarrierOfficial, "2024-12-31", "90000.00", "2025-01-28T12:00:00Z"},

		{2023, 12, trueup.SourceCarrierOfficial, "2023-12-31", "840000.00", "2024-01-22T12:00:00Z"},
		{2023, 12, trueup.SourceMGUInternal, "2023-12-31", "905000.00", "2024-01-09T12:00:00Z"},
		{2023, 24, trueup.SourceCarrierOfficial, "2024-12-31", "318500.00", "2025-01-24T12:00:00Z"},
		{2023, 24, trueup.SourceMGUInternal, "2024-12-31", "342000.00", "2025-01-11T12:00:00Z"},

		{2024, 12, trueup.SourceCarrierOfficial, "2024-12-31", "410000.00", "2025-01-26T12:00:00Z"},
		{2024, 12, trueup.SourceMGUInternal, "2024-12-31", "455000.00", "2025-01-13T12:00:00Z"},
	}
	for _, s := range snaps {
		err := t.InsertIBNRSnapshot(ctx, trueup.IBNRSnapshot{
			ID:               uuid.NewString(),
			UnderwritingYear: s.uy,
			DevelopmentMonth: s.dev,
			Source:           s.source,
			AsOfDate:         date(s.asOf),
			Amount:           trueup.MustDecimal(s.amount),
			SystemTimestamp:  ts(s.sys),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func splits(ctx context.Context, t Target) error {
	rows := []struct {
		uy      int
		carrier trueup.CarrierID
		name    string
		pct     string
		from    string
		sys     string
	}{
		{2022, "CAR_A", "Alpine Specialty", "0.60", "2022-01-01", "2021-12-15T09:00:00Z"},
		{2022, "CAR_B", "Borealis Re", "0.40", "2022-01-01", "2021-12-15T09:00:00Z"},

		// UY 2023 initial placement
		{2023, "CAR_A", "Alpine Specialty", "0.50", "2023-01-01", "2022-12-10T09:00:00Z"},
		{2023, "CAR_B", "Borealis Re", "0.30", "2023-01-01", "2022-12-10T09:00:00Z"},
		{2023, "CAR_C", "Cascade Indemnity", "0.20", "2023-01-01", "2022-12-10T09:00:00Z"},
		// mid-term restructure effective July 2024; earlier true-ups keep
		// the January vintage
		{2023, "CAR_A", "Alpine Specialty", "0.45", "2024-07-01", "2024-06-20T09:00:00Z"},
		{2023, "CAR_B", "Borealis Re", "0.30", "2024-07-01", "2024-06-20T09:00:00Z"},
		{2023, "CAR_C", "Cascade Indemnity", "0.25", "2024-07-01", "2024-06-20T09:00:00Z"},

		{2024, "CAR_A", "Alpine Specialty", "0.55", "2024-01-01", "2023-12-12T09:00:00Z"},
		{2024, "CAR_C", "Cascade Indemnity", "0.45", "2024-01-01", "2023-12-12T09:00:00Z"},
	}
	for _, r := range rows {
		err := t.InsertCarrierSplit(ctx, trueup.CarrierSplit{
			ID:               uuid.NewString(),
			UnderwritingYear: r.uy,
			CarrierID:        r.carrier,
			CarrierName:      r.name,
			ParticipationPct: trueup.MustDecimal(r.pct),
			EffectiveFrom:    date(r.from),
			SystemTimestamp:  ts(r.sys),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func schemes(ctx context.Context, t Target) error {
	rows := []trueup.SchemeAssignment{
		// UY 2022: corridor for Alpine, capped scale for Borealis
		{
			UnderwritingYear: 2022, CarrierID: "CAR_A", SchemeType: trueup.SchemeCorridor,
			Parameters:    trueup.Parameters{"corridor_low": "0.40", "corridor_high": "0.70", "rate": "0.15"},
			EffectiveFrom: date("2022-01-01"), SystemTimestamp: ts("2021-12-15T09:05:00Z"),
		},
		{
			UnderwritingYear: 2022, CarrierID: "CAR_B", SchemeType: trueup.SchemeCappedScale,
			Parameters:    trueup.Parameters{"max_rate": "0.20"},
			EffectiveFrom: date("2022-01-01"), SystemTimestamp: ts("2021-12-15T09:05:00Z"),
		},

		// UY 2023: program default sliding scale plus per-carrier overrides
		{
			UnderwritingYear: 2023, CarrierID: "", SchemeType: trueup.SchemeSlidingScale,
			Parameters:    trueup.Parameters{},
			EffectiveFrom: date("2023-01-01"), SystemTimestamp: ts("2022-12-10T09:05:00Z"),
		},
		{
			UnderwritingYear: 2023, CarrierID: "CAR_B", SchemeType: trueup.SchemeFixedPlusVariable,
			Parameters:    trueup.Parameters{"fixed_rate": "0.10", "variable_rate": "0.50", "profit_threshold": "0.60", "variable_cap": "0.17"},
			EffectiveFrom: date("2023-01-01"), SystemTimestamp: ts("2022-12-10T09:05:00Z"),
		},

		// UY 2024: carrier-specific scale shared by both participants
		{
			UnderwritingYear: 2024, CarrierID: "", SchemeType: trueup.SchemeCarrierSpecificScale,
			Parameters: trueup.Parameters{"scales": map[string]any{
				"CAR_A": []any{
					[]any{"0.50", "0.25"},
					[]any{"0.70", "0.12"},
				},
				"CAR_C": []any{
					[]any{"0.55", "0.22"},
					[]any{"0.75", "0.08"},
				},
			}},
			EffectiveFrom: date("2024-01-01"), SystemTimestamp: ts("2023-12-12T09:05:00Z"),
		},
	}
	for i := range rows {
		rows[i].ID = uuid.NewString()
		if err := t.InsertSchemeAssignment(ctx, rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func lpt(ctx context.Context, t Target) error {
	// Borealis transferred its UY 2022 book; commission frozen from the
	// transfer date on.
	return t.InsertLPTEvent(ctx, trueup.LPTEvent{
		ID:               uuid.NewString(),
		UnderwritingYear: 2022,
		CarrierID:        "CAR_B",
		EffectiveDate:    date("2024-10-01"),
		FreezeCommission: true,
		SystemTimestamp:  ts("2024-10-02T09:00:00Z"),
	})
}
