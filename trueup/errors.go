/*
errors.go - Centralized domain error taxonomy

PURPOSE:
  All calculation-invalidating conditions in one place. Every error here
  derives from ErrProfitCommission so callers can classify with a single
  errors.Is check, then drill into the concrete type for context.

ERROR CATEGORIES:
  1. Gather errors  - missing premium or reserve facts
  2. Resolve errors - carrier splits or scheme assignments unusable
  3. Sanity errors  - inputs outside plausible bounds

NONE OF THESE ARE RETRIED. A failed run is reported and must be
re-invoked by the caller. Warnings (staleness, divergence, floor guard,
freeze) are NOT errors - they ride on the result as audit metadata.

USAGE:
    res, err := calc.Run(ctx, params)
    if trueup.IsDomainError(err) {
        // invalid run: bad inputs, nothing was written
    }
*/
package trueup

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrProfitCommission is the root of the domain error taxonomy.
var ErrProfitCommission = errors.New("profit commission calculation invalid")

// IsDomainError reports whether err is any calculation-domain error, as
// opposed to a store/infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrProfitCommission)
}

// NoEarnedPremiumError signals a cohort with zero net earned premium at
// the cutoff: either no premium transactions exist or returns net them
// to nothing.
type NoEarnedPremiumError struct {
	UnderwritingYear int
	Cutoff           Cutoff
}

func (e *NoEarnedPremiumError) Error() string {
	return fmt.Sprintf("no earned premium for UY %d as of %s", e.UnderwritingYear, e.Cutoff)
}

func (e *NoEarnedPremiumError) Unwrap() error { return ErrProfitCommission }

// NoIBNRSnapshotError signals that no usable reserve snapshot exists for
// the UY/source/development month at the cutoff.
type NoIBNRSnapshotError struct {
	UnderwritingYear int
	DevelopmentMonth int
	Source           IBNRSource
	Cutoff           Cutoff
}

func (e *NoIBNRSnapshotError) Error() string {
	return fmt.Sprintf("no %s IBNR snapshot for UY %d dev %d as of %s",
		e.Source, e.UnderwritingYear, e.DevelopmentMonth, e.Cutoff)
}

func (e *NoIBNRSnapshotError) Unwrap() error { return ErrProfitCommission }

// CarrierSplitsError signals an empty or inconsistent resolved split
// set. Reason is "no splits" or "invalid sum"; Sum carries the offending
// total in the latter case.
type CarrierSplitsError struct {
	UnderwritingYear int
	Reason           string
	Sum              decimal.Decimal
}

func (e *CarrierSplitsError) Error() string {
	if e.Reason == "invalid sum" {
		return fmt.Sprintf("carrier splits for UY %d: %s (%s, expected 1.0)",
			e.UnderwritingYear, e.Reason, e.Sum)
	}
	return fmt.Sprintf("carrier splits for UY %d: %s", e.UnderwritingYear, e.Reason)
}

func (e *CarrierSplitsError) Unwrap() error { return ErrProfitCommission }

// MissingSchemeError signals that neither a carrier-specific nor a
// program-level scheme assignment is effective for the date.
type MissingSchemeError struct {
	UnderwritingYear int
	CarrierID        CarrierID
	AsOf             Date
}

func (e *MissingSchemeError) Error() string {
	return fmt.Sprintf("no scheme assignment for carrier %s in UY %d as of %s",
		e.CarrierID, e.UnderwritingYear, e.AsOf)
}

func (e *MissingSchemeError) Unwrap() error { return ErrProfitCommission }

// UnknownSchemeTypeError signals a scheme_type with no registered
// implementation.
type UnknownSchemeTypeError struct {
	SchemeType SchemeType
}

func (e *UnknownSchemeTypeError) Error() string {
	return fmt.Sprintf("unknown scheme type %q", e.SchemeType)
}

func (e *UnknownSchemeTypeError) Unwrap() error { return ErrProfitCommission }

// InvalidSchemeParametersError signals structurally invalid scheme
// parameters: wrong types, missing required keys, inverted band
// ordering. Raised before any rate is computed.
type InvalidSchemeParametersError struct {
	SchemeType SchemeType
	Reason     string
}

func (e *InvalidSchemeParametersError) Error() string {
	return fmt.Sprintf("invalid parameters for scheme %s: %s", e.SchemeType, e.Reason)
}

func (e *InvalidSchemeParametersError) Unwrap() error { return ErrProfitCommission }

// ULRBoundsError signals an ultimate loss ratio outside [0, 10] - a data
// sanity failure, not a legitimate rate computation.
type ULRBoundsError struct {
	ULR decimal.Decimal
}

func (e *ULRBoundsError) Error() string {
	return fmt.Sprintf("ultimate loss ratio %s outside sane range [0, 10]", e.ULR)
}

func (e *ULRBoundsError) Unwrap() error { return ErrProfitCommission }
