/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes crossing the HTTP boundary and the converters
  from domain entities. Domain types never leak raw time.Time or
  decimal internals; everything is rendered as strings the way the
  ledger stores them.

CONVENTIONS:
  - Dates:      "2006-01-02"
  - Timestamps: RFC3339
  - Money:      fixed 2 decimal places
  - Ratios:     fixed 6 decimal places

SEE ALSO:
  - handlers.go: Where these are produced and consumed
*/
package api

import (
	"time"

	"github.com/meridian/commission-engine/trueup"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TrueUpRequest triggers a calculation run.
type TrueUpRequest struct {
	UnderwritingYear int    `json:"underwriting_year"`
	DevelopmentMonth int    `json:"development_month"`
	AsOfDate         string `json:"as_of_date"`
	SystemAsOf       string `json:"system_as_of,omitempty"` // RFC3339, optional replay cutoff
	CalcType         string `json:"calc_type,omitempty"`    // provisional | true_up | final
	Write            bool   `json:"write"`
}

// LedgerEntryDTO is one immutable audit row.
type LedgerEntryDTO struct {
	ID               string `json:"id"`
	RunID            string `json:"run_id"`
	UnderwritingYear int    `json:"underwriting_year"`
	CarrierID        string `json:"carrier_id"`
	DevelopmentMonth int    `json:"development_month"`
	AsOfDate         string `json:"as_of_date"`
	CalcType         string `json:"calc_type"`

	EarnedPremium     string `json:"earned_premium"`
	PaidClaims        string `json:"paid_claims"`
	IBNRAmount        string `json:"ibnr_amount"`
	UltimateLossRatio string `json:"ultimate_loss_ratio"`

	CommissionRate  string `json:"commission_rate"`
	GrossCommission string `json:"gross_commission"`
	PriorPaidTotal  string `json:"prior_paid_total"`
	DeltaPayment    string `json:"delta_payment"`

	FloorGuardApplied  bool   `json:"floor_guard_applied"`
	Frozen             bool   `json:"frozen"`
	SchemeType         string `json:"scheme_type"`
	SplitEffectiveFrom string `json:"split_effective_from"`
	SplitPct           string `json:"split_pct"`
	IBNRStaleDays      int    `json:"ibnr_stale_days"`
	ULRDivergence      bool   `json:"ulr_divergence"`
	CreatedAt          string `json:"created_at"`
}

func toLedgerEntryDTO(e trueup.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:               e.ID,
		RunID:            e.RunID,
		UnderwritingYear: e.UnderwritingYear,
		CarrierID:        string(e.CarrierID),
		DevelopmentMonth: e.DevelopmentMonth,
		AsOfDate:         e.AsOfDate.String(),
		CalcType:         string(e.CalcType),

		EarnedPremium:     e.EarnedPremium.StringFixed(2),
		PaidClaims:        e.PaidClaims.StringFixed(2),
		IBNRAmount:        e.IBNRAmount.StringFixed(2),
		UltimateLossRatio: e.UltimateLossRatio.StringFixed(6),

		CommissionRate:  e.CommissionRate.StringFixed(6),
		GrossCommission: e.GrossCommission.StringFixed(2),
		PriorPaidTotal:  e.PriorPaidTotal.StringFixed(2),
		DeltaPayment:    e.DeltaPayment.StringFixed(2),

		FloorGuardApplied:  e.FloorGuardApplied,
		Frozen:             e.Frozen,
		SchemeType:         string(e.SchemeType),
		SplitEffectiveFrom: e.SplitEffectiveFrom.String(),
		SplitPct:           e.SplitPct.StringFixed(6),
		IBNRStaleDays:      e.IBNRStaleDays,
		ULRDivergence:      e.ULRDivergence,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
	}
}

// IBNRSnapshotDTO is a reserve estimate row.
type IBNRSnapshotDTO struct {
	ID               string `json:"id"`
	UnderwritingYear int    `json:"underwriting_year"`
	CarrierID        string `json:"carrier_id,omitempty"`
	DevelopmentMonth int    `json:"development_month"`
	Source           string `json:"source"`
	AsOfDate         string `json:"as_of_date"`
	Amount           string `json:"amount"`
	SystemTimestamp  string `json:"system_timestamp"`
}

func toIBNRSnapshotDTO(s trueup.IBNRSnapshot) IBNRSnapshotDTO {
	return IBNRSnapshotDTO{
		ID:               s.ID,
		UnderwritingYear: s.UnderwritingYear,
		CarrierID:        string(s.CarrierID),
		DevelopmentMonth: s.DevelopmentMonth,
		Source:           string(s.Source),
		AsOfDate:         s.AsOfDate.String(),
		Amount:           s.Amount.StringFixed(2),
		SystemTimestamp:  s.SystemTimestamp.Format(time.RFC3339),
	}
}

// SplitDTO is one resolved participation share.
type SplitDTO struct {
	CarrierID        string `json:"carrier_id"`
	CarrierName      string `json:"carrier_name,omitempty"`
	ParticipationPct string `json:"participation_pct"`
	EffectiveFrom    string `json:"effective_from"`
}

func toSplitDTO(s trueup.ResolvedSplit) SplitDTO {
	return SplitDTO{
		CarrierID:        string(s.CarrierID),
		CarrierName:      s.CarrierName,
		ParticipationPct: s.ParticipationPct.StringFixed(6),
		EffectiveFrom:    s.EffectiveFrom.String(),
	}
}

// CohortDTO is an underwriting year bucket.
type CohortDTO struct {
	Year        int    `json:"year"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Status      string `json:"status"`
}

func toCohortDTO(c trueup.UnderwritingCohort) CohortDTO {
	return CohortDTO{
		Year:        c.Year,
		PeriodStart: c.PeriodStart.String(),
		PeriodEnd:   c.PeriodEnd.String(),
		Status:      string(c.Status),
	}
}
