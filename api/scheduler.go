/*
scheduler.go - Cron-driven calculation runs

PURPOSE:
  Executes true-up runs on a cron schedule loaded from the YAML
  schedule file. Typical use is a monthly provisional run per open
  underwriting year so drift shows up between formal true-ups.

DESIGN:
  - robfig/cron drives the timing; each entry is an independent job
  - Jobs run against today's date as the business cutoff
  - Scheduled runs default to dry runs; a run only writes ledger rows
    when the schedule entry sets write: true
  - Failures are logged, never fatal; the next tick retries

SEE ALSO:
  - config/config.go: Schedule file layout
  - trueup/calculator.go: What a run does
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/meridian/commission-engine/config"
	"github.com/meridian/commission-engine/trueup"
)

// Scheduler runs scheduled true-up calculations.
type Scheduler struct {
	Calc *trueup.Calculator

	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler builds a scheduler from a parsed schedule file.
func NewScheduler(calc *trueup.Calculator, sched *config.Schedule, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		Calc: calc,
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}

	for _, entry := range sched.Runs {
		entry := entry
		_, err := s.cron.AddFunc(entry.Cron, func() { s.execute(entry) })
		if err != nil {
			return nil, err
		}
		s.log.Info().
			Str("cron", entry.Cron).
			Int("uy", entry.UnderwritingYear).
			Int("dev_month", entry.DevelopmentMonth).
			Bool("write", entry.Write).
			Msg("scheduled run registered")
	}
	return s, nil
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop halts the cron loop and waits for in-flight runs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) execute(entry config.ScheduleEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	calcType := trueup.CalcType(entry.CalcType)
	if calcType == "" {
		calcType = trueup.CalcProvisional
	}

	params := trueup.RunParams{
		UnderwritingYear: entry.UnderwritingYear,
		DevelopmentMonth: entry.DevelopmentMonth,
		Cutoff:           trueup.AsOf(trueup.DateOf(time.Now().UTC())),
		CalcType:         calcType,
		WriteEnabled:     entry.Write,
	}

	result, err := s.Calc.Run(ctx, params)
	if err != nil {
		s.log.Error().Err(err).
			Int("uy", entry.UnderwritingYear).
			Int("dev_month", entry.DevelopmentMonth).
			Msg("scheduled run failed")
		return
	}

	s.log.Info().
		Str("run_id", result.RunID).
		Int("uy", result.UnderwritingYear).
		Str("ulr", result.UltimateLR.String()).
		Str("rate", result.CommissionRate.String()).
		Str("gross", result.GrossCommission.StringFixed(2)).
		Bool("written", result.Written).
		Msg("scheduled run complete")
}
