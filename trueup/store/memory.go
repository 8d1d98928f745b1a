// Package store provides an in-memory FactStore implementation
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian/commission-engine/trueup"
)

// =============================================================================
// MEMORY STORE - In-memory fact set with the same temporal semantics as
// the SQLite store. Facts are seeded through the Add* methods; the
// ledger is append-only.
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	cohorts     map[int]trueup.UnderwritingCohort
	policies    []trueup.Policy
	txns        []trueup.Transaction
	ibnr        []trueup.IBNRSnapshot
	splits      []trueup.CarrierSplit
	assignments []trueup.SchemeAssignment
	lptEvents   []trueup.LPTEvent
	ledger      []trueup.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{cohorts: make(map[int]trueup.UnderwritingCohort)}
}

// -----------------------------------------------------------------------------
// Fact ingestion (the external write paths the engine never touches)
// -----------------------------------------------------------------------------

func (m *Memory) AddCohort(c trueup.UnderwritingCohort) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cohorts[c.Year] = c
}

func (m *Memory) AddPolicy(p trueup.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = append(m.policies, p)
}

func (m *Memory) AddTransaction(tx trueup.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.SystemTimestamp.IsZero() {
		tx.SystemTimestamp = time.Now().UTC()
	}
	m.txns = append(m.txns, tx)
}

func (m *Memory) AddIBNRSnapshot(s trueup.IBNRSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.SystemTimestamp.IsZero() {
		s.SystemTimestamp = time.Now().UTC()
	}
	m.ibnr = append(m.ibnr, s)
}

func (m *Memory) AddCarrierSplit(s trueup.CarrierSplit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.SystemTimestamp.IsZero() {
		s.SystemTimestamp = time.Now().UTC()
	}
	m.splits = append(m.splits, s)
}

func (m *Memory) AddSchemeAssignment(a trueup.SchemeAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.SystemTimestamp.IsZero() {
		a.SystemTimestamp = time.Now().UTC()
	}
	m.assignments = append(m.assignments, a)
}

func (m *Memory) AddLPTEvent(e trueup.LPTEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.SystemTimestamp.IsZero() {
		e.SystemTimestamp = time.Now().UTC()
	}
	m.lptEvents = append(m.lptEvents, e)
}

// Insert* mirror the SQLite store's ingestion surface so seeding code
// can treat both backends the same.

func (m *Memory) InsertCohort(_ context.Context, c trueup.UnderwritingCohort) error {
	m.AddCohort(c)
	return nil
}

func (m *Memory) InsertPolicy(_ context.Context, p trueup.Policy) error {
	m.AddPolicy(p)
	return nil
}

func (m *Memory) InsertTransaction(_ context.Context, tx trueup.Transaction) error {
	m.AddTransaction(tx)
	return nil
}

func (m *Memory) InsertIBNRSnapshot(_ context.Context, s trueup.IBNRSnapshot) error {
	m.AddIBNRSnapshot(s)
	return nil
}

func (m *Memory) InsertCarrierSplit(_ context.Context, s trueup.CarrierSplit) error {
	m.AddCarrierSplit(s)
	return nil
}

func (m *Memory) InsertSchemeAssignment(_ context.Context, a trueup.SchemeAssignment) error {
	m.AddSchemeAssignment(a)
	return nil
}

func (m *Memory) InsertLPTEvent(_ context.Context, e trueup.LPTEvent) error {
	m.AddLPTEvent(e)
	return nil
}

// -----------------------------------------------------------------------------
// trueup.FactStore
// -----------------------------------------------------------------------------

func (m *Memory) Cohort(_ context.Context, uy int) (*trueup.UnderwritingCohort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cohorts[uy]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) EarnedPremium(_ context.Context, uy int, cut trueup.Cutoff) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, tx := range m.txns {
		if tx.UnderwritingYear != uy || !cut.Includes(tx.TxnDate, tx.SystemTimestamp) {
			continue
		}
		switch tx.Type {
		case trueup.TxnPremium:
			total = total.Add(tx.Amount)
		case trueup.TxnReturnPremium:
			total = total.Sub(tx.Amount)
		}
	}
	return total, nil
}

func (m *Memory) PaidClaims(_ context.Context, uy int, cut trueup.Cutoff) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, tx := range m.txns {
		if tx.UnderwritingYear == uy && tx.Type == trueup.TxnClaimPaid && cut.Includes(tx.TxnDate, tx.SystemTimestamp) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (m *Memory) IBNR(_ context.Context, uy, devMonth int, source trueup.IBNRSource, carrier trueup.CarrierID, cut trueup.Cutoff) (*trueup.IBNRSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pick := func(target trueup.CarrierID) *trueup.IBNRSnapshot {
		var best *trueup.IBNRSnapshot
		for i := range m.ibnr {
			s := m.ibnr[i]
			if s.UnderwritingYear != uy || s.DevelopmentMonth != devMonth || s.Source != source {
				continue
			}
			if s.CarrierID != target || !cut.Includes(s.AsOfDate, s.SystemTimestamp) {
				continue
			}
			if best == nil || s.AsOfDate.After(best.AsOfDate) ||
				(s.AsOfDate.Equal(best.AsOfDate) && s.SystemTimestamp.After(best.SystemTimestamp)) {
				snap := s
				best = &snap
			}
		}
		return best
	}

	if carrier != "" {
		if best := pick(carrier); best != nil {
			return best, nil
		}
	}
	return pick(""), nil
}

func (m *Memory) CarrierSplits(_ context.Context, uy int, cut trueup.Cutoff) ([]trueup.CarrierSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trueup.CarrierSplit
	for _, s := range m.splits {
		if s.UnderwritingYear == uy && cut.IncludesWrite(s.SystemTimestamp) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) SchemeAssignments(_ context.Context, uy int, cut trueup.Cutoff) ([]trueup.SchemeAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trueup.SchemeAssignment
	for _, a := range m.assignments {
		if a.UnderwritingYear == uy && cut.IncludesWrite(a.SystemTimestamp) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) LPTFreeze(_ context.Context, carrier trueup.CarrierID, uy int, cut trueup.Cutoff) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.lptEvents {
		if e.CarrierID == carrier && e.UnderwritingYear == uy && e.FreezeCommission &&
			cut.Includes(e.EffectiveDate, e.SystemTimestamp) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) PriorPaid(_ context.Context, uy int, carrier trueup.CarrierID, cut trueup.Cutoff) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, e := range m.ledger {
		if e.UnderwritingYear == uy && e.CarrierID == carrier && cut.IncludesWrite(e.CreatedAt) {
			total = total.Add(e.DeltaPayment)
		}
	}
	return total, nil
}

// AppendLedger is atomic: the slice is only extended once every entry is
// accepted.
func (m *Memory) AppendLedger(_ context.Context, entries []trueup.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, entries...)
	return nil
}

// -----------------------------------------------------------------------------
// trueup.LedgerBrowser
// -----------------------------------------------------------------------------

func (m *Memory) LedgerEntries(_ context.Context, uy, limit int) ([]trueup.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trueup.LedgerEntry
	for _, e := range m.ledger {
		if uy == 0 || e.UnderwritingYear == uy {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
