// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Port         int    // HTTP port for the API server
	DBPath       string // SQLite database path (":memory:" supported)
	LogLevel     string // zerolog level: debug, info, warn, error
	ScheduleFile string // optional YAML file of scheduled runs

	// Calculation policy knobs
	AllowNegativeCommission bool
	MinCommissionRate       decimal.Decimal
}

// Load reads configuration from the environment, after loading a .env
// file if one is present. Missing variables fall back to defaults.
func Load() (*Config, error) {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvInt("PORT", 8080),
		DBPath:       getEnv("TRUEUP_DB", "commission.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ScheduleFile: getEnv("SCHEDULE_FILE", ""),

		AllowNegativeCommission: getEnvBool("ALLOW_NEGATIVE_COMMISSION", false),
	}

	minRate := getEnv("MIN_COMMISSION_RATE", "0.05")
	rate, err := decimal.NewFromString(minRate)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_COMMISSION_RATE %q: %w", minRate, err)
	}
	cfg.MinCommissionRate = rate

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// =============================================================================
// SCHEDULED RUNS
// =============================================================================

// ScheduleEntry is one cron-driven calculation.
type ScheduleEntry struct {
	Cron             string `yaml:"cron"`
	UnderwritingYear int    `yaml:"underwriting_year"`
	DevelopmentMonth int    `yaml:"development_month"`
	CalcType         string `yaml:"calc_type"`
	Write            bool   `yaml:"write"`
}

// Schedule is the YAML schedule file layout:
//
//	runs:
//	  - cron: "0 6 1 * *"
//	    underwriting_year: 2023
//	    development_month: 24
//	    calc_type: provisional
//	    write: false
type Schedule struct {
	Runs []ScheduleEntry `yaml:"runs"`
}

// LoadSchedule parses a YAML schedule file.
func LoadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	var sched Schedule
	if err := yaml.Unmarshal(data, &sched); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file %s: %w", path, err)
	}
	for i, run := range sched.Runs {
		if run.Cron == "" || run.UnderwritingYear == 0 || run.DevelopmentMonth == 0 {
			return nil, fmt.Errorf("schedule entry %d: cron, underwriting_year and development_month are required", i)
		}
	}
	return &sched, nil
}
