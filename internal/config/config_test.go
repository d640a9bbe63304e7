package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyops/ledger/internal/ledger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, LateFeePercent, cfg.LateFeeMode)
	assert.Equal(t, []string{"5110", "5120"}, cfg.WaterSourceAccounts)
	assert.Equal(t, 300, cfg.RateLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("LATE_FEE_MODE", "flat")
	t.Setenv("LATE_FEE_VALUE", "50")
	t.Setenv("SINKING_FUND_TOTAL", "12000")
	t.Setenv("WATER_SOURCE_ACCOUNTS", "5110")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"5110"}, cfg.WaterSourceAccounts)

	b, err := cfg.BillingDefaults()
	require.NoError(t, err)
	assert.Equal(t, LateFeeFlat, b.LateFeeMode)
	assert.True(t, decimal.NewFromInt(50).Equal(b.LateFeeValue))
	assert.True(t, decimal.NewFromInt(12000).Equal(b.FundDefaults[ledger.FundSinking]))
	assert.True(t, b.FundDefaults[ledger.FundCorpus].IsZero())
}

func TestLoadRejectsBadLateFeeMode(t *testing.T) {
	t.Setenv("LATE_FEE_MODE", "compound")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNegativeAmounts(t *testing.T) {
	t.Setenv("VACANCY_FEE", "-5")
	_, err := Load()
	assert.Error(t, err)
}
