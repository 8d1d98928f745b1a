/*
registry.go - Scheme registry and dispatch

PURPOSE:
  Maps scheme_type identifiers to their rate functions. Resolution of
  WHICH scheme applies to a carrier/UY/date is a vintage question
  (splits.go); this file answers what that scheme_type means and
  guarantees parameters are validated before any rate math runs.
*/
package trueup

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Registry maps scheme types to implementations.
type Registry struct {
	schemes map[SchemeType]Scheme
}

// NewRegistry returns a registry with all five standard schemes
// registered.
func NewRegistry() *Registry {
	r := &Registry{schemes: make(map[SchemeType]Scheme)}
	r.Register(SlidingScale{})
	r.Register(Corridor{})
	r.Register(FixedPlusVariable{})
	r.Register(CappedScale{})
	r.Register(CarrierSpecificScale{})
	return r
}

func (r *Registry) Register(s Scheme) {
	r.schemes[s.Type()] = s
}

// Resolve returns the scheme for a type, failing with
// UnknownSchemeTypeError for unregistered identifiers.
func (r *Registry) Resolve(st SchemeType) (Scheme, error) {
	s, ok := r.schemes[st]
	if !ok {
		return nil, &UnknownSchemeTypeError{SchemeType: st}
	}
	return s, nil
}

// Types returns the registered scheme type identifiers, sorted.
func (r *Registry) Types() []SchemeType {
	out := make([]SchemeType, 0, len(r.schemes))
	for st := range r.schemes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RateFor dispatches: resolve the type, validate parameters, compute the
// rate. Validation failures surface before any rate is computed.
func (r *Registry) RateFor(st SchemeType, params Parameters, ulr decimal.Decimal, carrier CarrierID) (decimal.Decimal, error) {
	scheme, err := r.Resolve(st)
	if err != nil {
		return decimal.Zero, err
	}
	if params == nil {
		params = Parameters{}
	}
	if err := scheme.Validate(params); err != nil {
		return decimal.Zero, err
	}
	return scheme.Rate(ulr, carrier, params)
}
