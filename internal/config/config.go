package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/societyops/ledger/internal/ledger"
)

// Config holds runtime configuration for the service.
type Config struct {
	Addr         string `envconfig:"APP_ADDR" default:":8080"`
	ReadTimeout  int    `envconfig:"APP_READ_TIMEOUT_SECONDS" default:"5"`
	WriteTimeout int    `envconfig:"APP_WRITE_TIMEOUT_SECONDS" default:"10"`
	IdleTimeout  int    `envconfig:"APP_IDLE_TIMEOUT_SECONDS" default:"60"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DevSeed     bool   `envconfig:"DEV_SEED"`

	// RateLimit caps requests per client IP per minute.
	RateLimit int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"300"`

	// Currency is display-only; amounts are minor-unit-free decimals.
	Currency string `envconfig:"CURRENCY" default:"INR"`

	// Water billing sums these expense accounts' period postings unless a
	// run-level override is supplied.
	WaterSourceAccounts []string `envconfig:"WATER_SOURCE_ACCOUNTS" default:"5110,5120"`
	// VacancyFee is billed to units with an adjusted headcount of zero.
	VacancyFee string `envconfig:"VACANCY_FEE" default:"200"`

	// LateFeeMode is "percent" (of arrears) or "flat".
	LateFeeMode  string `envconfig:"LATE_FEE_MODE" default:"percent"`
	LateFeeValue string `envconfig:"LATE_FEE_VALUE" default:"2"`

	// Default monthly fund totals, used when a generation run does not
	// override them. Zero skips the fund.
	SinkingFundTotal string `envconfig:"SINKING_FUND_TOTAL" default:"0"`
	RepairFundTotal  string `envconfig:"REPAIR_FUND_TOTAL" default:"0"`
	CorpusFundTotal  string `envconfig:"CORPUS_FUND_TOTAL" default:"0"`
}

// LateFeeMode values.
const (
	LateFeePercent = "percent"
	LateFeeFlat    = "flat"
)

// Billing is the parsed, decimal-typed slice of Config the billing engine
// consumes.
type Billing struct {
	WaterSourceAccounts []string
	VacancyFee          decimal.Decimal
	LateFeeMode         string
	LateFeeValue        decimal.Decimal
	FundDefaults        map[ledger.FundKind]decimal.Decimal
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.LateFeeMode != LateFeePercent && cfg.LateFeeMode != LateFeeFlat {
		return nil, fmt.Errorf("LATE_FEE_MODE must be %q or %q", LateFeePercent, LateFeeFlat)
	}
	if _, err := cfg.BillingDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BillingDefaults parses the decimal-valued settings into a Billing struct.
func (c *Config) BillingDefaults() (Billing, error) {
	b := Billing{
		WaterSourceAccounts: c.WaterSourceAccounts,
		LateFeeMode:         c.LateFeeMode,
		FundDefaults:        make(map[ledger.FundKind]decimal.Decimal, 3),
	}
	var err error
	if b.VacancyFee, err = parseAmount("VACANCY_FEE", c.VacancyFee); err != nil {
		return Billing{}, err
	}
	if b.LateFeeValue, err = parseAmount("LATE_FEE_VALUE", c.LateFeeValue); err != nil {
		return Billing{}, err
	}
	for _, fd := range []struct {
		kind ledger.FundKind
		name string
		raw  string
	}{
		{ledger.FundSinking, "SINKING_FUND_TOTAL", c.SinkingFundTotal},
		{ledger.FundRepair, "REPAIR_FUND_TOTAL", c.RepairFundTotal},
		{ledger.FundCorpus, "CORPUS_FUND_TOTAL", c.CorpusFundTotal},
	} {
		d, err := parseAmount(fd.name, fd.raw)
		if err != nil {
			return Billing{}, err
		}
		b.FundDefaults[fd.kind] = d
	}
	return b, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid amount %q: %w", name, raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: amount must not be negative", name)
	}
	return d, nil
}
