/*
main.go - Operator CLI for the profit commission engine

PURPOSE:
  Runs true-ups and inspects the fact base from the command line,
  against the same SQLite database the server uses.

SUBCOMMANDS:
  trueup    Run a calculation (dry run unless -write)
  ledger    Print ledger entries, newest first
  ibnr      Print IBNR snapshots for a UY
  schemes   List registered scheme types
  seed      Load the deterministic demonstration book

EXAMPLES:
  # Dry-run a true-up for UY 2023 at 24 months of development
  trueup -db=commission.db trueup -uy=2023 -dev-month=24 -as-of=2025-01-31

  # Persist it
  trueup trueup -uy=2023 -dev-month=24 -as-of=2025-01-31 -write

  # Reproduce the same run as the system stood last March
  trueup trueup -uy=2023 -dev-month=24 -as-of=2025-01-31 \
      -system-as-of=2025-03-01T00:00:00Z

  # Inspect what was booked
  trueup ledger -uy=2023
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian/commission-engine/report"
	"github.com/meridian/commission-engine/seed"
	"github.com/meridian/commission-engine/store/sqlite"
	"github.com/meridian/commission-engine/trueup"
)

func main() {
	dbPath := flag.String("db", "commission.db", "SQLite database path")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		fatal("open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	args := flag.Args()[1:]

	switch flag.Arg(0) {
	case "trueup":
		runTrueUp(ctx, store, log, args)
	case "ledger":
		showLedger(ctx, store, args)
	case "ibnr":
		showIBNR(ctx, store, args)
	case "schemes":
		showSchemes()
	case "seed":
		if err := seed.Load(ctx, store); err != nil {
			fatal("seed: %v", err)
		}
		fmt.Println("Demonstration book loaded.")
	default:
		usage()
		os.Exit(2)
	}
}

func runTrueUp(ctx context.Context, store *sqlite.Store, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("trueup", flag.ExitOnError)
	uy := fs.Int("uy", 0, "underwriting year (required)")
	devMonth := fs.Int("dev-month", 0, "development month (required)")
	asOfStr := fs.String("as-of", "", "business as-of date YYYY-MM-DD (default: today)")
	systemAsOf := fs.String("system-as-of", "", "optional RFC3339 system-time cutoff for replay")
	calcType := fs.String("calc-type", "true_up", "provisional | true_up | final")
	write := fs.Bool("write", false, "persist ledger entries (default: dry run)")
	allowNegative := fs.Bool("allow-negative", false, "permit negative deltas (money back from the MGU)")
	fs.Parse(args)

	if *uy == 0 || *devMonth == 0 {
		fatal("trueup: -uy and -dev-month are required")
	}

	asOf := trueup.DateOf(time.Now().UTC())
	if *asOfStr != "" {
		var err error
		asOf, err = trueup.ParseDate(*asOfStr)
		if err != nil {
			fatal("invalid -as-of: %v", err)
		}
	}
	cut := trueup.AsOf(asOf)
	if *systemAsOf != "" {
		sys, err := time.Parse(time.RFC3339, *systemAsOf)
		if err != nil {
			fatal("invalid -system-as-of: %v", err)
		}
		cut = cut.Replay(sys)
	}

	calc := trueup.NewCalculator(store, log)
	calc.Config.AllowNegativeCommission = *allowNegative

	result, err := calc.Run(ctx, trueup.RunParams{
		UnderwritingYear: *uy,
		DevelopmentMonth: *devMonth,
		Cutoff:           cut,
		CalcType:         trueup.CalcType(*calcType),
		WriteEnabled:     *write,
	})
	if err != nil {
		fatal("true-up failed: %v", err)
	}

	fmt.Print(report.Render(result))
}

func showLedger(ctx context.Context, store *sqlite.Store, args []string) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	uy := fs.Int("uy", 0, "filter by underwriting year (0 = all)")
	limit := fs.Int("limit", 50, "max entries")
	fs.Parse(args)

	entries, err := store.LedgerEntries(ctx, *uy, *limit)
	if err != nil {
		fatal("ledger: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("No ledger entries.")
		return
	}

	fmt.Printf("%-20s %4s %-8s %4s %-11s %-10s %8s %14s %14s\n",
		"Created", "UY", "Carrier", "Dev", "As of", "Calc", "Rate", "Gross", "Delta")
	for _, e := range entries {
		flags := ""
		if e.Frozen {
			flags = " frozen"
		} else if e.FloorGuardApplied {
			flags = " floor"
		}
		fmt.Printf("%-20s %4d %-8s %4d %-11s %-10s %7s%% %14s %14s%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.UnderwritingYear, e.CarrierID, e.DevelopmentMonth,
			e.AsOfDate, e.CalcType,
			e.CommissionRate.Mul(trueup.MustDecimal("100")).StringFixed(2),
			e.GrossCommission.StringFixed(2), e.DeltaPayment.StringFixed(2), flags)
	}
}

func showIBNR(ctx context.Context, store *sqlite.Store, args []string) {
	fs := flag.NewFlagSet("ibnr", flag.ExitOnError)
	uy := fs.Int("uy", 0, "underwriting year (required)")
	fs.Parse(args)

	if *uy == 0 {
		fatal("ibnr: -uy is required")
	}

	snaps, err := store.ListIBNRSnapshots(ctx, *uy)
	if err != nil {
		fatal("ibnr: %v", err)
	}
	if len(snaps) == 0 {
		fmt.Printf("No IBNR snapshots for UY %d.\n", *uy)
		return
	}

	fmt.Printf("%4s %-8s %4s %-17s %-11s %14s %-20s\n",
		"UY", "Carrier", "Dev", "Source", "As of", "Amount", "Recorded")
	for _, s := range snaps {
		carrier := string(s.CarrierID)
		if carrier == "" {
			carrier = "-"
		}
		fmt.Printf("%4d %-8s %4d %-17s %-11s %14s %-20s\n",
			s.UnderwritingYear, carrier, s.DevelopmentMonth, s.Source,
			s.AsOfDate, s.Amount.StringFixed(2),
			s.SystemTimestamp.Format("2006-01-02 15:04:05"))
	}
}

func showSchemes() {
	fmt.Println("Registered commission schemes:")
	for _, st := range trueup.NewRegistry().Types() {
		fmt.Printf("  %s\n", st)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: trueup [-db=path] [-v] <command> [options]

Commands:
  trueup   Run a true-up calculation (dry run unless -write)
  ledger   Print ledger entries, newest first
  ibnr     Print IBNR snapshots for a UY
  schemes  List registered scheme types
  seed     Load the deterministic demonstration book`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
