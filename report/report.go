// Package report renders true-up results as plain-text summaries for
// the CLI and scheduled-run logs.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridian/commission-engine/trueup"
)

var hundred = decimal.NewFromInt(100)

// Render formats a completed run as a human-readable report.
func Render(res *trueup.TrueUpResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Profit Commission True-Up — UY %d @ %d months (%s)\n",
		res.UnderwritingYear, res.DevelopmentMonth, res.CalcType)
	fmt.Fprintf(&b, "Run %s, as of %s\n", res.RunID, res.AsOfDate)
	b.WriteString(strings.Repeat("=", 72))
	b.WriteByte('\n')

	fmt.Fprintf(&b, "  Earned premium:      %16s\n", money(res.EarnedPremium))
	fmt.Fprintf(&b, "  Paid claims:         %16s\n", money(res.PaidClaims))
	fmt.Fprintf(&b, "  IBNR (carrier):      %16s\n", money(res.IBNRCarrier))
	fmt.Fprintf(&b, "  IBNR (MGU):          %16s\n", money(res.IBNRMGU))
	fmt.Fprintf(&b, "  Ultimate loss ratio: %15s%%\n", pct(res.UltimateLR))
	fmt.Fprintf(&b, "  Commission rate:     %15s%%\n", pct(res.CommissionRate))
	fmt.Fprintf(&b, "  Gross commission:    %16s\n", money(res.GrossCommission))
	b.WriteByte('\n')

	fmt.Fprintf(&b, "  %-10s %6s  %-22s %7s  %14s %14s %14s\n",
		"Carrier", "Share", "Scheme", "Rate", "Gross", "Prior paid", "Delta")
	b.WriteString("  " + strings.Repeat("-", 96) + "\n")
	for _, a := range res.Allocations {
		flags := ""
		if a.Frozen {
			flags = " [frozen]"
		} else if a.FloorGuardApplied {
			flags = " [floor]"
		}
		fmt.Fprintf(&b, "  %-10s %5s%%  %-22s %6s%%  %14s %14s %14s%s\n",
			a.CarrierID, pctShort(a.ParticipationPct), a.SchemeType, pctShort(a.CommissionRate),
			money(a.GrossCommission), money(a.PriorPaid), money(a.DeltaPayment), flags)
	}

	if len(res.Warnings) > 0 {
		b.WriteByte('\n')
		b.WriteString("  Warnings:\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "    - %s\n", w)
		}
	}

	b.WriteByte('\n')
	if res.Written {
		fmt.Fprintf(&b, "  Ledger: %d entries written.\n", len(res.Allocations))
	} else {
		b.WriteString("  Dry run: no ledger entries written.\n")
	}
	return b.String()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func pct(d decimal.Decimal) string {
	return d.Mul(hundred).StringFixed(4)
}

func pctShort(d decimal.Decimal) string {
	return d.Mul(hundred).StringFixed(1)
}
