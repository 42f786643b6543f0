package application

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	billing "school-soa/internal/billing/domain"
)

// PolicyConfig mirrors billing.Policy in the config file.
type PolicyConfig struct {
	CarryOverUnpaidBalance *bool    `yaml:"carry_over_unpaid_balance"`
	DueExcludedCategories  []string `yaml:"due_excluded_categories"`
}

// CurrencyConfig controls amount labels.
type CurrencyConfig struct {
	Code   string `yaml:"code"`
	Symbol string `yaml:"symbol"`
}

// BulkConfig controls the bulk runner.
type BulkConfig struct {
	Workers       int     `yaml:"workers"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Archive       bool    `yaml:"archive"`
}

// ScheduleConfig defines the daily bulk trigger.
type ScheduleConfig struct {
	DailyAt     string   `yaml:"daily_at"`
	SchoolYears []string `yaml:"school_years"`
}

// Config defines statement generation configuration.
type Config struct {
	Policy      PolicyConfig   `yaml:"policy"`
	Currency    CurrencyConfig `yaml:"currency"`
	Bulk        BulkConfig     `yaml:"bulk"`
	Schedule    ScheduleConfig `yaml:"schedule"`
	StorageRoot string         `yaml:"storage_root"`
	WebhookURL  string         `yaml:"webhook_url"`
}

// LoadConfig loads config from the yaml file named by SOA_CONFIG, then env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Currency: CurrencyConfig{Code: "PHP", Symbol: "₱"},
		Bulk: BulkConfig{
			Workers:       getenvIntDefault("SOA_BULK_WORKERS", 4),
			RatePerSecond: getenvFloatDefault("SOA_BULK_RATE_PER_SECOND", 5),
			Archive:       true,
		},
		StorageRoot: getenvDefault("SOA_STORAGE_ROOT", filepath.FromSlash("var/statements")),
		WebhookURL:  os.Getenv("SOA_WEBHOOK_URL"),
	}

	if path := os.Getenv("SOA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := ParseConfig(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = os.Getenv("SOA_BULK_DAILY_AT")
	}
	if len(cfg.Schedule.SchoolYears) == 0 {
		cfg.Schedule.SchoolYears = splitCSV(os.Getenv("SOA_BULK_SCHOOL_YEARS"))
	}
	return cfg, cfg.Validate()
}

// ParseConfig overlays yaml data onto cfg.
func ParseConfig(data []byte, cfg *Config) error {
	if cfg == nil {
		return errors.New("statement config: nil config")
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.StorageRoot == "" {
		return errors.New("statement config: storage root required")
	}
	if c.Bulk.Workers <= 0 {
		return errors.New("statement config: bulk workers must be positive")
	}
	if c.Bulk.RatePerSecond < 0 {
		return errors.New("statement config: bulk rate must not be negative")
	}
	return nil
}

// BillingPolicy converts the config into the engine policy.
func (c Config) BillingPolicy() billing.Policy {
	policy := billing.DefaultPolicy()
	if c.Policy.CarryOverUnpaidBalance != nil {
		policy.Allocation.CarryOverUnpaidBalance = *c.Policy.CarryOverUnpaidBalance
	}
	if c.Policy.DueExcludedCategories != nil {
		policy.DueExcludedCategories = make([]billing.CategoryID, 0, len(c.Policy.DueExcludedCategories))
		for _, category := range c.Policy.DueExcludedCategories {
			policy.DueExcludedCategories = append(policy.DueExcludedCategories, billing.CategoryID(category))
		}
	}
	if c.Currency.Symbol != "" {
		policy.CurrencySymbol = c.Currency.Symbol
	}
	return policy
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
