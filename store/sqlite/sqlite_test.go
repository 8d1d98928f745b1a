package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/commission-engine/seed"
	"github.com/meridian/commission-engine/store/sqlite"
	"github.com/meridian/commission-engine/trueup"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal {
	return trueup.MustDecimal(s)
}

func day(s string) trueup.Date {
	parsed, err := trueup.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func txn(id string, uy int, typ trueup.TxnType, date, amount string, sys time.Time) trueup.Transaction {
	return trueup.Transaction{
		ID: id, PolicyRef: "POL-1", UnderwritingYear: uy, Type: typ,
		TxnDate: day(date), Amount: d(amount), SystemTimestamp: sys,
	}
}

// =============================================================================
// PREMIUM AND CLAIMS ACCESSORS
// =============================================================================

func TestEarnedPremium_NetsReturns(t *testing.T) {
	// GIVEN: Premium, a return and a claim across two years
	// WHEN: Summing earned premium for 2023
	// THEN: Premium minus returns, other years and claims excluded

	store := newTestStore(t)
	ctx := context.Background()
	sys := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertTransaction(ctx, txn("t1", 2023, trueup.TxnPremium, "2023-02-01", "1000000", sys)))
	require.NoError(t, store.InsertTransaction(ctx, txn("t2", 2023, trueup.TxnReturnPremium, "2023-08-01", "150000", sys)))
	require.NoError(t, store.InsertTransaction(ctx, txn("t3", 2023, trueup.TxnClaimPaid, "2023-09-01", "400000", sys)))
	require.NoError(t, store.InsertTransaction(ctx, txn("t4", 2024, trueup.TxnPremium, "2024-02-01", "999999", sys)))

	earned, err := store.EarnedPremium(ctx, 2023, trueup.AsOf(day("2023-12-31")))
	require.NoError(t, err)
	assert.True(t, earned.Equal(d("850000")), "earned = %s", earned)

	claims, err := store.PaidClaims(ctx, 2023, trueup.AsOf(day("2023-12-31")))
	require.NoError(t, err)
	assert.True(t, claims.Equal(d("400000")), "claims = %s", claims)
}

func TestEarnedPremium_AsOfFiltersByTransactionDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sys := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertTransaction(ctx, txn("t1", 2023, trueup.TxnPremium, "2023-02-01", "1000000", sys)))
	require.NoError(t, store.InsertTransaction(ctx, txn("t2", 2023, trueup.TxnPremium, "2023-11-01", "500000", sys)))

	earned, err := store.EarnedPremium(ctx, 2023, trueup.AsOf(day("2023-06-30")))
	require.NoError(t, err)
	assert.True(t, earned.Equal(d("1000000")), "mid-year earned = %s", earned)
}

func TestEarnedPremium_SystemCutoffReplay(t *testing.T) {
	// GIVEN: A claim with a 2023 loss date recorded in January 2024
	// WHEN: Replaying as the system stood at year-end 2023
	// THEN: The late-recorded claim is invisible; without the replay it counts

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTransaction(ctx,
		txn("t1", 2023, trueup.TxnClaimPaid, "2023-12-28", "147180",
			time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))))

	cut := trueup.AsOf(day("2023-12-31"))
	claims, err := store.PaidClaims(ctx, 2023, cut)
	require.NoError(t, err)
	assert.True(t, claims.Equal(d("147180")), "current view should count the claim")

	replay := cut.Replay(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC))
	claims, err = store.PaidClaims(ctx, 2023, replay)
	require.NoError(t, err)
	assert.True(t, claims.IsZero(), "replayed view must not see the late write, got %s", claims)
}

// =============================================================================
// IBNR SELECTION
// =============================================================================

func ibnrSnap(id string, uy, dev int, source trueup.IBNRSource, carrier trueup.CarrierID, asOf, amount string, sys time.Time) trueup.IBNRSnapshot {
	return trueup.IBNRSnapshot{
		ID: id, UnderwritingYear: uy, CarrierID: carrier, DevelopmentMonth: dev,
		Source: source, AsOfDate: day(asOf), Amount: d(amount), SystemTimestamp: sys,
	}
}

func TestIBNR_LatestAsOfWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sys := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertIBNRSnapshot(ctx,
		ibnrSnap("i1", 2023, 24, trueup.SourceCarrierOfficial, "", "2024-09-30", "400000", sys)))
	require.NoError(t, store.InsertIBNRSnapshot(ctx,
		ibnrSnap("i2", 2023, 24, trueup.SourceCarrierOfficial, "", "2024-12-31", "318500", sys.Add(time.Hour))))

	snap, err := store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "", trueup.AsOf(day("2025-01-31")))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("318500")), "latest as-of should win, got %s", snap.Amount)

	// As of November 2024 only the September snapshot existed.
	snap, err = store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "", trueup.AsOf(day("2024-11-30")))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("400000")))
}

func TestIBNR_SubSecondWriteTieBreak(t *testing.T) {
	// GIVEN: Two snapshots for the same UY/dev/as-of written within the
	//        same second, with different fractional-second widths
	// WHEN: Selecting the snapshot and replaying between the two writes
	// THEN: The later write wins, and a sub-second replay cutoff sees
	//       exactly the writes at or before it

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertIBNRSnapshot(ctx,
		ibnrSnap("i1", 2023, 24, trueup.SourceCarrierOfficial, "", "2024-12-31", "100", base.Add(500*time.Millisecond))))
	require.NoError(t, store.InsertIBNRSnapshot(ctx,
		ibnrSnap("i2", 2023, 24, trueup.SourceCarrierOfficial, "", "2024-12-31", "200", base.Add(520*time.Millisecond))))
	require.NoError(t, store.InsertIBNRSnapshot(ctx,
		ibnrSnap("i3", 2023, 24, trueup.SourceCarrierOfficial, "", "2024-12-31", "300", base.Add(time.Second))))

	snap, err := store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "", trueup.AsOf(day("2025-01-31")))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("300")), "latest-written snapshot must win, got %s", snap.Amount)

	replay := trueup.AsOf(day("2025-01-31")).Replay(base.Add(510 * time.Millisecond))
	snap, err = store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "", replay)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("100")), "replay must stop at the .5s write, got %s", snap.Amount)

	// A whole-second cutoff still includes every fractional write before it.
	replay = trueup.AsOf(day("2025-01-31")).Replay(base.Add(time.Second))
	snap, err = store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "", replay)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("300")), "whole-second cutoff must include its own instant, got %s", snap.Amount)
}

func TestIBNR_PerCarrierPreference(t *testing.T) {
	// GIVEN: A cohort-level snapshot and a CAR_A-specific one
	// WHEN: Asking for CAR_A, CAR_B and the cohort level
	// THEN: CAR_A gets its own row, CAR_B falls back to cohort level,
	//       the unqualified ask never sees carrier rows

	store := newTestStore(t)
	ctx := context.Background()
	sys := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertIBNRSnapshot(ctx,
		ibnrSnap("i1", 2023, 24, trueup.SourceCarrierOfficial, "", "2024-12-31", "318500", sys)))
	require.NoError(t, store.InsertIBNRSnapshot(ctx,
		ibnrSnap("i2", 2023, 24, trueup.SourceCarrierOfficial, "CAR_A", "2024-12-31", "200000", sys)))

	cut := trueup.AsOf(day("2025-01-31"))

	snap, err := store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "CAR_A", cut)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("200000")), "CAR_A should get its own estimate")

	snap, err = store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "CAR_B", cut)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("318500")), "CAR_B falls back to the cohort row")

	snap, err = store.IBNR(ctx, 2023, 24, trueup.SourceCarrierOfficial, "", cut)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Amount.Equal(d("318500")))
}

func TestIBNR_MissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	snap, err := store.IBNR(context.Background(), 2023, 36,
		trueup.SourceCarrierOfficial, "", trueup.AsOf(day("2025-01-31")))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

// =============================================================================
// LEDGER
// =============================================================================

func ledgerRow(id, runID string, carrier trueup.CarrierID, delta string, created time.Time) trueup.LedgerEntry {
	return trueup.LedgerEntry{
		ID: id, RunID: runID, UnderwritingYear: 2023, CarrierID: carrier,
		DevelopmentMonth: 24, AsOfDate: day("2025-01-31"), CalcType: trueup.CalcTrueUp,
		EarnedPremium: d("1423660.00"), PaidClaims: d("206090.00"), IBNRAmount: d("159250.00"),
		UltimateLossRatio: d("0.256619"), CommissionRate: d("0.27"),
		GrossCommission: d("384388.20"), PriorPaidTotal: d("0"), DeltaPayment: d(delta),
		SchemeType: trueup.SchemeSlidingScale, SplitEffectiveFrom: day("2023-01-01"),
		SplitPct: d("0.50"), CreatedAt: created,
	}
}

func TestLedger_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	in := ledgerRow("l1", "run-1", "CAR_A", "384388.20", created)
	in.FloorGuardApplied = true
	in.IBNRStaleDays = 31
	require.NoError(t, store.AppendLedger(ctx, []trueup.LedgerEntry{in}))

	entries, err := store.LedgerEntries(ctx, 2023, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out := entries[0]
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.RunID, out.RunID)
	assert.Equal(t, in.CarrierID, out.CarrierID)
	assert.True(t, out.EarnedPremium.Equal(in.EarnedPremium))
	assert.True(t, out.UltimateLossRatio.Equal(in.UltimateLossRatio))
	assert.True(t, out.DeltaPayment.Equal(in.DeltaPayment))
	assert.True(t, out.SplitEffectiveFrom.Equal(in.SplitEffectiveFrom))
	assert.True(t, out.FloorGuardApplied)
	assert.Equal(t, 31, out.IBNRStaleDays)
	assert.True(t, out.CreatedAt.Equal(created))
}

func TestLedger_AppendIsAtomic(t *testing.T) {
	// GIVEN: A batch where the second row violates the primary key
	// WHEN: Appending
	// THEN: Neither row lands

	store := newTestStore(t)
	ctx := context.Background()
	created := time.Now().UTC()

	batch := []trueup.LedgerEntry{
		ledgerRow("dup", "run-1", "CAR_A", "100.00", created),
		ledgerRow("dup", "run-1", "CAR_B", "200.00", created),
	}
	require.Error(t, store.AppendLedger(ctx, batch))

	entries, err := store.LedgerEntries(ctx, 2023, 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial batch must roll back")
}

func TestPriorPaid_SumsDeltasUpToSystemCutoff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	second := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendLedger(ctx, []trueup.LedgerEntry{
		ledgerRow("l1", "run-1", "CAR_A", "300000.00", first),
	}))
	require.NoError(t, store.AppendLedger(ctx, []trueup.LedgerEntry{
		ledgerRow("l2", "run-2", "CAR_A", "84388.20", second),
		ledgerRow("l3", "run-2", "CAR_B", "50000.00", second),
	}))

	cut := trueup.AsOf(day("2025-06-30"))
	prior, err := store.PriorPaid(ctx, 2023, "CAR_A", cut)
	require.NoError(t, err)
	assert.True(t, prior.Equal(d("384388.20")), "prior = %s", prior)

	// Replaying before the second run sees only the first settlement.
	replay := cut.Replay(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	prior, err = store.PriorPaid(ctx, 2023, "CAR_A", replay)
	require.NoError(t, err)
	assert.True(t, prior.Equal(d("300000.00")), "replayed prior = %s", prior)
}

// =============================================================================
// END TO END OVER THE SEEDED BOOK
// =============================================================================

func TestCalculator_EndToEndOnSeededStore(t *testing.T) {
	// GIVEN: The demonstration book
	// WHEN: Running the UY 2023 true-up at 24 months as of 2025-01-31
	// THEN: ULR 25.66% earns 27% on 2,847,320 = 768,776.40 gross,
	//       allocated over the restructured 45/30/25 placement

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, seed.Load(ctx, store))

	calc := trueup.NewCalculator(store, zerolog.Nop())
	res, err := calc.Run(ctx, trueup.RunParams{
		UnderwritingYear: 2023,
		DevelopmentMonth: 24,
		Cutoff:           trueup.AsOf(day("2025-01-31")),
		CalcType:         trueup.CalcTrueUp,
		WriteEnabled:     true,
	})
	require.NoError(t, err)

	assert.True(t, res.EarnedPremium.Equal(d("2847320")), "earned = %s", res.EarnedPremium)
	assert.True(t, res.PaidClaims.Equal(d("412180")), "claims = %s", res.PaidClaims)
	assert.True(t, res.IBNRCarrier.Equal(d("318500")), "ibnr = %s", res.IBNRCarrier)
	assert.True(t, res.GrossCommission.Equal(d("768776.40")), "gross = %s", res.GrossCommission)
	assert.True(t, res.CommissionRate.Equal(d("0.27")), "rate = %s", res.CommissionRate)

	// The July 2024 restructure vintage governs a January 2025 as-of.
	want := map[trueup.CarrierID]string{
		"CAR_A": "345949.38", // 45%
		"CAR_B": "230632.92", // 30%, fixed_plus_variable lands at 27% too
		"CAR_C": "192194.10", // 25%
	}
	require.Len(t, res.Allocations, 3)
	for _, a := range res.Allocations {
		assert.True(t, a.GrossCommission.Equal(d(want[a.CarrierID])),
			"%s gross = %s", a.CarrierID, a.GrossCommission)
		assert.True(t, a.SplitEffectiveFrom.Equal(day("2024-07-01")),
			"%s vintage = %s", a.CarrierID, a.SplitEffectiveFrom)
	}

	entries, err := store.LedgerEntries(ctx, 2023, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// A second identical run settles to zero deltas.
	res2, err := calc.Run(ctx, trueup.RunParams{
		UnderwritingYear: 2023,
		DevelopmentMonth: 24,
		Cutoff:           trueup.AsOf(day("2025-01-31")),
		CalcType:         trueup.CalcTrueUp,
		WriteEnabled:     true,
	})
	require.NoError(t, err)
	for _, a := range res2.Allocations {
		assert.True(t, a.DeltaPayment.IsZero(), "%s second delta = %s", a.CarrierID, a.DeltaPayment)
	}
}

func TestCalculator_SeededLPTFreeze(t *testing.T) {
	// CAR_B's 2022 book transferred in October 2024; a later true-up
	// freezes its allocation.

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, seed.Load(ctx, store))

	calc := trueup.NewCalculator(store, zerolog.Nop())
	res, err := calc.Run(ctx, trueup.RunParams{
		UnderwritingYear: 2022,
		DevelopmentMonth: 36,
		Cutoff:           trueup.AsOf(day("2025-01-31")),
		CalcType:         trueup.CalcTrueUp,
		WriteEnabled:     false,
	})
	require.NoError(t, err)

	var carB *trueup.CarrierAllocation
	for i := range res.Allocations {
		if res.Allocations[i].CarrierID == "CAR_B" {
			carB = &res.Allocations[i]
		}
	}
	require.NotNil(t, carB)
	assert.True(t, carB.Frozen)
	assert.Equal(t, trueup.SchemeLPTFrozen, carB.SchemeType)
	assert.True(t, carB.DeltaPayment.IsZero())
}
