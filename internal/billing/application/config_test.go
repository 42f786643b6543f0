package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "school-soa/internal/billing/domain"
)

func TestParseConfigOverlaysPolicy(t *testing.T) {
	cfg := Config{StorageRoot: "var/statements", Bulk: BulkConfig{Workers: 4}}
	data := []byte(`
policy:
  carry_over_unpaid_balance: false
  due_excluded_categories: [REGISTRATION, MISC]
currency:
  code: USD
  symbol: "$"
bulk:
  workers: 8
  rate_per_second: 0
schedule:
  daily_at: "01:30"
  school_years: [sy-2024]
`)
	require.NoError(t, ParseConfig(data, &cfg))
	require.NoError(t, cfg.Validate())

	policy := cfg.BillingPolicy()
	assert.False(t, policy.Allocation.CarryOverUnpaidBalance)
	assert.Equal(t, []billing.CategoryID{"REGISTRATION", "MISC"}, policy.DueExcludedCategories)
	assert.Equal(t, "$", policy.CurrencySymbol)
	assert.Equal(t, 8, cfg.Bulk.Workers)
	assert.Equal(t, "01:30", cfg.Schedule.DailyAt)
	assert.Equal(t, []string{"sy-2024"}, cfg.Schedule.SchoolYears)
}

func TestBillingPolicyDefaults(t *testing.T) {
	policy := Config{}.BillingPolicy()
	assert.True(t, policy.Allocation.CarryOverUnpaidBalance)
	assert.Equal(t, []billing.CategoryID{"REGISTRATION"}, policy.DueExcludedCategories)
	assert.Equal(t, "₱", policy.CurrencySymbol)
}

func TestLoadConfigFromEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_root: /srv/soa\nbulk:\n  archive: false\n"), 0o600))
	t.Setenv("SOA_CONFIG", path)
	t.Setenv("SOA_BULK_WORKERS", "2")
	t.Setenv("SOA_BULK_DAILY_AT", "02:00")
	t.Setenv("SOA_BULK_SCHOOL_YEARS", "sy-2024, sy-2025,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/soa", cfg.StorageRoot)
	assert.Equal(t, 2, cfg.Bulk.Workers)
	assert.False(t, cfg.Bulk.Archive)
	assert.Equal(t, "02:00", cfg.Schedule.DailyAt)
	assert.Equal(t, []string{"sy-2024", "sy-2025"}, cfg.Schedule.SchoolYears)
}

func TestValidateRejectsBadBulkSettings(t *testing.T) {
	cfg := Config{StorageRoot: "x", Bulk: BulkConfig{Workers: 0}}
	assert.Error(t, cfg.Validate())
	cfg.Bulk.Workers = 1
	cfg.Bulk.RatePerSecond = -1
	assert.Error(t, cfg.Validate())
	cfg.Bulk.RatePerSecond = 1
	cfg.StorageRoot = ""
	assert.Error(t, cfg.Validate())
}
