/*
Package sqlite provides the SQLite-backed implementation of the fact
store.

PURPOSE:
  Implements trueup.FactStore and trueup.LedgerBrowser plus the fact
  ingestion paths (cohorts, policies, transactions, IBNR snapshots,
  carrier splits, scheme assignments, LPT events) the engine itself
  never writes. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  No UPDATE statements. No DELETE statements. Superseding facts are new
  rows with later effective dates; ledger corrections are new runs.

TEMPORAL QUERIES:
  Every read applies the business as-of filter on the fact's own
  effective/event date and, when a system cutoff is supplied, a second
  independent filter on system_timestamp. Vintage selection (latest
  effective_from per carrier) happens in trueup/splits.go so the
  discipline is store-agnostic; this store only pre-filters by the
  system cutoff.

AMOUNT STORAGE:
  Monetary amounts are stored as decimal strings and summed in Go with
  shopspring/decimal. SQLite's SUM would coerce to float and lose the
  exactness the ledger's reproducibility contract depends on.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/commission.db")
  if err != nil { ... }
  defer st.Close()
  calc := trueup.NewCalculator(st, logger)

SEE ALSO:
  - trueup/facts.go:        Interface contracts
  - trueup/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/meridian/commission-engine/trueup"
)

const (
	dateFormat = "2006-01-02"
	// Fixed-width fractional seconds so stored strings compare
	// lexicographically in chronological order.
	tsFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Underwriting cohorts (one per year, status moves forward only)
	CREATE TABLE IF NOT EXISTS cohorts (
		underwriting_year INTEGER PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Policies, permanently locked to their cohort at bind time
	CREATE TABLE IF NOT EXISTS policies (
		policy_ref TEXT PRIMARY KEY,
		underwriting_year INTEGER NOT NULL,
		effective_date TEXT NOT NULL,
		expiry_date TEXT NOT NULL,
		gross_premium TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_uy
		ON policies(underwriting_year);

	-- Premium and claim facts (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		policy_ref TEXT NOT NULL,
		underwriting_year INTEGER NOT NULL,
		txn_type TEXT NOT NULL,
		txn_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		system_timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_uy_type_date
		ON transactions(underwriting_year, txn_type, txn_date);

	-- Actuarial reserve snapshots (carrier_id '' = cohort-level)
	CREATE TABLE IF NOT EXISTS ibnr_snapshots (
		id TEXT PRIMARY KEY,
		underwriting_year INTEGER NOT NULL,
		carrier_id TEXT NOT NULL DEFAULT '',
		development_month INTEGER NOT NULL,
		source TEXT NOT NULL,
		as_of_date TEXT NOT NULL,
		ibnr_amount TEXT NOT NULL,
		system_timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ibnr_lookup
		ON ibnr_snapshots(underwriting_year, development_month, source, as_of_date DESC);

	-- Carrier participation vintages (superseding rows never delete old ones)
	CREATE TABLE IF NOT EXISTS carrier_splits (
		id TEXT PRIMARY KEY,
		underwriting_year INTEGER NOT NULL,
		carrier_id TEXT NOT NULL,
		carrier_name TEXT NOT NULL,
		participation_pct TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		system_timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_splits_uy_carrier
		ON carrier_splits(underwriting_year, carrier_id, effective_from DESC);

	-- Scheme assignments (carrier_id '' = program-level default for the UY)
	CREATE TABLE IF NOT EXISTS scheme_assignments (
		id TEXT PRIMARY KEY,
		underwriting_year INTEGER NOT NULL,
		carrier_id TEXT NOT NULL DEFAULT '',
		scheme_type TEXT NOT NULL,
		parameters_json TEXT NOT NULL DEFAULT '{}',
		effective_from TEXT NOT NULL,
		system_timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schemes_uy_carrier
		ON scheme_assignments(underwriting_year, carrier_id, effective_from DESC);

	-- Loss Portfolio Transfer events
	CREATE TABLE IF NOT EXISTS lpt_events (
		id TEXT PRIMARY KEY,
		underwriting_year INTEGER NOT NULL,
		carrier_id TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		freeze_commission INTEGER NOT NULL DEFAULT 0,
		system_timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lpt_carrier_uy
		ON lpt_events(carrier_id, underwriting_year, effective_date);

	-- Commission ledger (append-only; the engine's only write path)
	CREATE TABLE IF NOT EXISTS commission_ledger (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		underwriting_year INTEGER NOT NULL,
		carrier_id TEXT NOT NULL,
		development_month INTEGER NOT NULL,
		as_of_date TEXT NOT NULL,
		calc_type TEXT NOT NULL,
		earned_premium TEXT NOT NULL,
		paid_claims TEXT NOT NULL,
		ibnr_amount TEXT NOT NULL,
		ultimate_loss_ratio TEXT NOT NULL,
		commission_rate TEXT NOT NULL,
		gross_commission TEXT NOT NULL,
		prior_paid_total TEXT NOT NULL,
		delta_payment TEXT NOT NULL,
		floor_guard_applied INTEGER NOT NULL DEFAULT 0,
		frozen INTEGER NOT NULL DEFAULT 0,
		scheme_type TEXT NOT NULL,
		split_effective_from TEXT NOT NULL,
		split_pct TEXT NOT NULL,
		ibnr_stale_days INTEGER NOT NULL DEFAULT 0,
		ulr_divergence INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_uy_carrier
		ON commission_ledger(underwriting_year, carrier_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_run
		ON commission_ledger(run_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_created
		ON commission_ledger(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// systemClause appends a system_timestamp filter when the cutoff carries
// one. Column must be the fully qualified timestamp column name.
func systemClause(cut trueup.Cutoff, column string, args []any) (string, []any) {
	if cut.SystemAsOf == nil {
		return "", args
	}
	return " AND " + column + " <= ?", append(args, cut.SystemAsOf.Format(tsFormat))
}

// =============================================================================
// FACT INGESTION (external write paths; the engine never calls these)
// =============================================================================

func (s *Store) InsertCohort(ctx context.Context, c trueup.UnderwritingCohort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cohorts (underwriting_year, period_start, period_end, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.Year, c.PeriodStart.String(), c.PeriodEnd.String(), string(c.Status),
		time.Now().UTC().Format(tsFormat))
	if err != nil {
		return fmt.Errorf("failed to insert cohort: %w", err)
	}
	return nil
}

func (s *Store) InsertPolicy(ctx context.Context, p trueup.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (policy_ref, underwriting_year, effective_date, expiry_date, gross_premium, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(p.Ref), p.UnderwritingYear, p.EffectiveDate.String(), p.ExpiryDate.String(),
		p.GrossPremium.String(), time.Now().UTC().Format(tsFormat))
	if err != nil {
		return fmt.Errorf("failed to insert policy: %w", err)
	}
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx trueup.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, policy_ref, underwriting_year, txn_type, txn_date, amount, system_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.PolicyRef), tx.UnderwritingYear, string(tx.Type),
		tx.TxnDate.String(), tx.Amount.String(), systemTS(tx.SystemTimestamp))
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) InsertIBNRSnapshot(ctx context.Context, snap trueup.IBNRSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ibnr_snapshots (id, underwriting_year, carrier_id, development_month, source, as_of_date, ibnr_amount, system_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.UnderwritingYear, string(snap.CarrierID), snap.DevelopmentMonth,
		string(snap.Source), snap.AsOfDate.String(), snap.Amount.String(), systemTS(snap.SystemTimestamp))
	if err != nil {
		return fmt.Errorf("failed to insert ibnr snapshot: %w", err)
	}
	return nil
}

func (s *Store) InsertCarrierSplit(ctx context.Context, split trueup.CarrierSplit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carrier_splits (id, underwriting_year, carrier_id, carrier_name, participation_pct, effective_from, system_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		split.ID, split.UnderwritingYear, string(split.CarrierID), split.CarrierName,
		split.ParticipationPct.String(), split.EffectiveFrom.String(), systemTS(split.SystemTimestamp))
	if err != nil {
		return fmt.Errorf("failed to insert carrier split: %w", err)
	}
	return nil
}

func (s *Store) InsertSchemeAssignment(ctx context.Context, a trueup.SchemeAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	paramsJSON, err := json.Marshal(a.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode scheme parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheme_assignments (id, underwriting_year, carrier_id, scheme_type, parameters_json, effective_from, system_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UnderwritingYear, string(a.CarrierID), string(a.SchemeType),
		string(paramsJSON), a.EffectiveFrom.String(), systemTS(a.SystemTimestamp))
	if err != nil {
		return fmt.Errorf("failed to insert scheme assignment: %w", err)
	}
	return nil
}

func (s *Store) InsertLPTEvent(ctx context.Context, e trueup.LPTEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lpt_events (id, underwriting_year, carrier_id, effective_date, freeze_commission, system_timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UnderwritingYear, string(e.CarrierID), e.EffectiveDate.String(),
		boolInt(e.FreezeCommission), systemTS(e.SystemTimestamp))
	if err != nil {
		return fmt.Errorf("failed to insert lpt event: %w", err)
	}
	return nil
}

// =============================================================================
// TEMPORAL READS (trueup.FactStore)
// =============================================================================

func (s *Store) Cohort(ctx context.Context, uy int) (*trueup.UnderwritingCohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c          trueup.UnderwritingCohort
		start, end string
		status     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT underwriting_year, period_start, period_end, status
		FROM cohorts WHERE underwriting_year = ?`, uy).
		Scan(&c.Year, &start, &end, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort: %w", err)
	}
	if c.PeriodStart, err = trueup.ParseDate(start); err != nil {
		return nil, err
	}
	if c.PeriodEnd, err = trueup.ParseDate(end); err != nil {
		return nil, err
	}
	c.Status = trueup.CohortStatus(status)
	return &c, nil
}

func (s *Store) EarnedPremium(ctx context.Context, uy int, cut trueup.Cutoff) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT txn_type, amount FROM transactions
		WHERE underwriting_year = ? AND txn_type IN ('premium', 'return_premium')
		  AND txn_date <= ?`
	args := []any{uy, cut.AsOf.String()}
	clause, args := systemClause(cut, "system_timestamp", args)
	query += clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query earned premium: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var txnType, amount string
		if err := rows.Scan(&txnType, &amount); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad amount %q: %w", amount, err)
		}
		if trueup.TxnType(txnType) == trueup.TxnReturnPremium {
			total = total.Sub(d)
		} else {
			total = total.Add(d)
		}
	}
	return total, rows.Err()
}

func (s *Store) PaidClaims(ctx context.Context, uy int, cut trueup.Cutoff) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT amount FROM transactions
		WHERE underwriting_year = ? AND txn_type = 'claim_paid' AND txn_date <= ?`
	args := []any{uy, cut.AsOf.String()}
	clause, args := systemClause(cut, "system_timestamp", args)
	query += clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query paid claims: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad amount %q: %w", amount, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

func (s *Store) IBNR(ctx context.Context, uy, devMonth int, source trueup.IBNRSource, carrier trueup.CarrierID, cut trueup.Cutoff) (*trueup.IBNRSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Per-carrier snapshots are preferred over cohort-level ones when a
	// carrier is named; otherwise only cohort-level rows qualify.
	query := `
		SELECT id, underwriting_year, carrier_id, development_month, source, as_of_date, ibnr_amount, system_timestamp
		FROM ibnr_snapshots
		WHERE underwriting_year = ? AND development_month = ? AND source = ?
		  AND as_of_date <= ?`
	args := []any{uy, devMonth, string(source), cut.AsOf.String()}
	if carrier != "" {
		query += ` AND carrier_id IN (?, '')`
		args = append(args, string(carrier))
	} else {
		query += ` AND carrier_id = ''`
	}
	clause, args := systemClause(cut, "system_timestamp", args)
	query += clause
	if carrier != "" {
		query += ` ORDER BY CASE WHEN carrier_id = ? THEN 0 ELSE 1 END, as_of_date DESC, system_timestamp DESC LIMIT 1`
		args = append(args, string(carrier))
	} else {
		query += ` ORDER BY as_of_date DESC, system_timestamp DESC LIMIT 1`
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	snap, err := scanIBNR(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ibnr snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) CarrierSplits(ctx context.Context, uy int, cut trueup.Cutoff) ([]trueup.CarrierSplit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, underwriting_year, carrier_id, carrier_name, participation_pct, effective_from, system_timestamp
		FROM carrier_splits WHERE underwriting_year = ?`
	args := []any{uy}
	clause, args := systemClause(cut, "system_timestamp", args)
	query += clause + ` ORDER BY carrier_id, effective_from`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query carrier splits: %w", err)
	}
	defer rows.Close()

	var splits []trueup.CarrierSplit
	for rows.Next() {
		var (
			split                trueup.CarrierSplit
			carrierID, pct       string
			effectiveFrom, sysTS string
		)
		if err := rows.Scan(&split.ID, &split.UnderwritingYear, &carrierID, &split.CarrierName,
			&pct, &effectiveFrom, &sysTS); err != nil {
			return nil, err
		}
		split.CarrierID = trueup.CarrierID(carrierID)
		if split.ParticipationPct, err = decimal.NewFromString(pct); err != nil {
			return nil, fmt.Errorf("bad participation_pct %q: %w", pct, err)
		}
		if split.EffectiveFrom, err = trueup.ParseDate(effectiveFrom); err != nil {
			return nil, err
		}
		if split.SystemTimestamp, err = time.Parse(tsFormat, sysTS); err != nil {
			return nil, fmt.Errorf("bad system_timestamp %q: %w", sysTS, err)
		}
		splits = append(splits, split)
	}
	return splits, rows.Err()
}

func (s *Store) SchemeAssignments(ctx context.Context, uy int, cut trueup.Cutoff) ([]trueup.SchemeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, underwriting_year, carrier_id, scheme_type, parameters_json, effective_from, system_timestamp
		FROM scheme_assignments WHERE underwriting_year = ?`
	args := []any{uy}
	clause, args := systemClause(cut, "system_timestamp", args)
	query += clause + ` ORDER BY carrier_id, effective_from`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheme assignments: %w", err)
	}
	defer rows.Close()

	var assignments []trueup.SchemeAssignment
	for rows.Next() {
		var (
			a                                           trueup.SchemeAssignment
			carrierID, schemeType, paramsJSON, eff, sys string
		)
		if err := rows.Scan(&a.ID, &a.UnderwritingYear, &carrierID, &schemeType, &paramsJSON, &eff, &sys); err != nil {
			return nil, err
		}
		a.CarrierID = trueup.CarrierID(carrierID)
		a.SchemeType = trueup.SchemeType(schemeType)
		if paramsJSON != "" {
			if err := json.Unmarshal([]byte(paramsJSON), &a.Parameters); err != nil {
				return nil, fmt.Errorf("bad parameters_json for assignment %s: %w", a.ID, err)
			}
		}
		if a.EffectiveFrom, err = trueup.ParseDate(eff); err != nil {
			return nil, err
		}
		if a.SystemTimestamp, err = time.Parse(tsFormat, sys); err != nil {
			return nil, fmt.Errorf("bad system_timestamp %q: %w", sys, err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *Store) LPTFreeze(ctx context.Context, carrier trueup.CarrierID, uy int, cut trueup.Cutoff) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM lpt_events
		WHERE carrier_id = ? AND underwriting_year = ? AND freeze_commission = 1
		  AND effective_date <= ?`
	args := []any{string(carrier), uy, cut.AsOf.String()}
	clause, args := systemClause(cut, "system_timestamp", args)
	query += clause

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query lpt events: %w", err)
	}
	return count > 0, nil
}

func (s *Store) PriorPaid(ctx context.Context, uy int, carrier trueup.CarrierID, cut trueup.Cutoff) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT delta_payment FROM commission_ledger
		WHERE underwriting_year = ? AND carrier_id = ?`
	args := []any{uy, string(carrier)}
	clause, args := systemClause(cut, "created_at", args)
	query += clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query prior paid: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var delta string
		if err := rows.Scan(&delta); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(delta)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad delta_payment %q: %w", delta, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// =============================================================================
// LEDGER WRITES (trueup.FactStore)
// =============================================================================

// AppendLedger writes all rows of one run inside a single SQL
// transaction. Either every carrier row lands or none do.
func (s *Store) AppendLedger(ctx context.Context, entries []trueup.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, e := range entries {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO commission_ledger (
				id, run_id, underwriting_year, carrier_id, development_month, as_of_date, calc_type,
				earned_premium, paid_claims, ibnr_amount, ultimate_loss_ratio,
				commission_rate, gross_commission, prior_paid_total, delta_payment,
				floor_guard_applied, frozen, scheme_type, split_effective_from, split_pct,
				ibnr_stale_days, ulr_divergence, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.RunID, e.UnderwritingYear, string(e.CarrierID), e.DevelopmentMonth,
			e.AsOfDate.String(), string(e.CalcType),
			e.EarnedPremium.String(), e.PaidClaims.String(), e.IBNRAmount.String(),
			e.UltimateLossRatio.String(), e.CommissionRate.String(), e.GrossCommission.String(),
			e.PriorPaidTotal.String(), e.DeltaPayment.String(),
			boolInt(e.FloorGuardApplied), boolInt(e.Frozen), string(e.SchemeType),
			e.SplitEffectiveFrom.String(), e.SplitPct.String(),
			e.IBNRStaleDays, boolInt(e.ULRDivergence), e.CreatedAt.Format(tsFormat))
		if err != nil {
			return fmt.Errorf("failed to append ledger row for %s: %w", e.CarrierID, err)
		}
	}

	return sqlTx.Commit()
}

// =============================================================================
// LEDGER READS (trueup.LedgerBrowser)
// =============================================================================

func (s *Store) LedgerEntries(ctx context.Context, uy, limit int) ([]trueup.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, run_id, underwriting_year, carrier_id, development_month, as_of_date, calc_type,
		       earned_premium, paid_claims, ibnr_amount, ultimate_loss_ratio,
		       commission_rate, gross_commission, prior_paid_total, delta_payment,
		       floor_guard_applied, frozen, scheme_type, split_effective_from, split_pct,
		       ibnr_stale_days, ulr_divergence, created_at
		FROM commission_ledger`
	var args []any
	if uy != 0 {
		query += ` WHERE underwriting_year = ?`
		args = append(args, uy)
	}
	query += ` ORDER BY created_at DESC, carrier_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []trueup.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListIBNRSnapshots returns all snapshots for a UY (0 = all), newest
// as-of first. Read path for the report and API layers.
func (s *Store) ListIBNRSnapshots(ctx context.Context, uy int) ([]trueup.IBNRSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, underwriting_year, carrier_id, development_month, source, as_of_date, ibnr_amount, system_timestamp
		FROM ibnr_snapshots`
	var args []any
	if uy != 0 {
		query += ` WHERE underwriting_year = ?`
		args = append(args, uy)
	}
	query += ` ORDER BY underwriting_year DESC, development_month DESC, source, as_of_date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ibnr snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []trueup.IBNRSnapshot
	for rows.Next() {
		snap, err := scanIBNR(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// ListCohorts returns all cohorts, newest year first.
func (s *Store) ListCohorts(ctx context.Context) ([]trueup.UnderwritingCohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT underwriting_year, period_start, period_end, status
		FROM cohorts ORDER BY underwriting_year DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cohorts: %w", err)
	}
	defer rows.Close()

	var cohorts []trueup.UnderwritingCohort
	for rows.Next() {
		var (
			c                   trueup.UnderwritingCohort
			start, end, status string
		)
		if err := rows.Scan(&c.Year, &start, &end, &status); err != nil {
			return nil, err
		}
		if c.PeriodStart, err = trueup.ParseDate(start); err != nil {
			return nil, err
		}
		if c.PeriodEnd, err = trueup.ParseDate(end); err != nil {
			return nil, err
		}
		c.Status = trueup.CohortStatus(status)
		cohorts = append(cohorts, c)
	}
	return cohorts, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIBNR(row rowScanner) (*trueup.IBNRSnapshot, error) {
	var (
		snap                          trueup.IBNRSnapshot
		carrierID, source             string
		asOf, amount, systemTimestamp string
	)
	err := row.Scan(&snap.ID, &snap.UnderwritingYear, &carrierID, &snap.DevelopmentMonth,
		&source, &asOf, &amount, &systemTimestamp)
	if err != nil {
		return nil, err
	}
	snap.CarrierID = trueup.CarrierID(carrierID)
	snap.Source = trueup.IBNRSource(source)
	if snap.AsOfDate, err = trueup.ParseDate(asOf); err != nil {
		return nil, err
	}
	if snap.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("bad ibnr_amount %q: %w", amount, err)
	}
	if snap.SystemTimestamp, err = time.Parse(tsFormat, systemTimestamp); err != nil {
		return nil, fmt.Errorf("bad system_timestamp %q: %w", systemTimestamp, err)
	}
	return &snap, nil
}

func scanLedgerEntry(rows *sql.Rows) (trueup.LedgerEntry, error) {
	var (
		e                                                 trueup.LedgerEntry
		carrierID, asOf, calcType, schemeType             string
		earned, claims, ibnr, ulr, rate, gross            string
		prior, delta, splitEff, splitPct, createdAt       string
		floorGuard, frozen, divergence                    int
	)
	err := rows.Scan(&e.ID, &e.RunID, &e.UnderwritingYear, &carrierID, &e.DevelopmentMonth,
		&asOf, &calcType, &earned, &claims, &ibnr, &ulr, &rate, &gross, &prior, &delta,
		&floorGuard, &frozen, &schemeType, &splitEff, &splitPct,
		&e.IBNRStaleDays, &divergence, &createdAt)
	if err != nil {
		return e, err
	}

	e.CarrierID = trueup.CarrierID(carrierID)
	e.CalcType = trueup.CalcType(calcType)
	e.SchemeType = trueup.SchemeType(schemeType)
	e.FloorGuardApplied = floorGuard != 0
	e.Frozen = frozen != 0
	e.ULRDivergence = divergence != 0

	if e.AsOfDate, err = trueup.ParseDate(asOf); err != nil {
		return e, err
	}
	if e.SplitEffectiveFrom, err = trueup.ParseDate(splitEff); err != nil {
		return e, err
	}
	if e.CreatedAt, err = time.Parse(tsFormat, createdAt); err != nil {
		return e, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&e.EarnedPremium, earned}, {&e.PaidClaims, claims}, {&e.IBNRAmount, ibnr},
		{&e.UltimateLossRatio, ulr}, {&e.CommissionRate, rate}, {&e.GrossCommission, gross},
		{&e.PriorPaidTotal, prior}, {&e.DeltaPayment, delta}, {&e.SplitPct, splitPct},
	} {
		if *field.dst, err = decimal.NewFromString(field.src); err != nil {
			return e, fmt.Errorf("bad decimal %q: %w", field.src, err)
		}
	}
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func systemTS(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(tsFormat)
}
