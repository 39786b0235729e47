package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Tax      TaxConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// TaxConfig holds the statutory calculation parameters. These are
// point-in-time legislative values (caps, thresholds, eligibility windows)
// that change by statute, so they live in configuration rather than as
// literals in the engines.
type TaxConfig struct {
	// CombinedCapPercent caps the sum of late-filing and late-payment
	// penalties on the same tax base, as a fraction (0.25 = 25%).
	CombinedCapPercent decimal.Decimal

	// SafeHarbor1Percent is the current-year safe harbor fraction (0.90).
	SafeHarbor1Percent decimal.Decimal
	// SafeHarbor2BasePercent is the prior-year safe harbor fraction (1.00).
	SafeHarbor2BasePercent decimal.Decimal
	// SafeHarbor2HighPercent replaces the base fraction when AGI exceeds
	// AGIThreshold (1.10).
	SafeHarbor2HighPercent decimal.Decimal
	// AGIThreshold is the AGI above which the higher prior-year safe harbor
	// fraction applies.
	AGIThreshold decimal.Decimal

	// CarrybackWindowStart and CarrybackWindowEnd bound the origin tax years
	// eligible for an NOL carryback election (CARES Act: 2018-2020).
	CarrybackWindowStart int
	CarrybackWindowEnd   int
	// ExpirationRuleChangeYear is the first origin year whose losses carry
	// forward indefinitely (TCJA: 2018). Earlier vintages expire after
	// ExpirationTermYears.
	ExpirationRuleChangeYear int
	ExpirationTermYears      int

	// AlertCriticalYears and AlertWarningYears are the years-until-expiration
	// thresholds for NOL expiration alert severity.
	AlertCriticalYears int
	AlertWarningYears  int

	// MinAbatementExplanationLength is the minimum character count for an
	// abatement request explanation.
	MinAbatementExplanationLength int
	// FirstTimeAbatementLookbackYears is how far back the first-time
	// abatement check looks for prior abatements.
	FirstTimeAbatementLookbackYears int
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "civitax")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	// Statutory parameter defaults. These mirror the values in effect for
	// the 2024 filing season and are expected to be overridden as statute
	// changes.
	v.SetDefault("PENALTY_COMBINED_CAP_PERCENT", "0.25")
	v.SetDefault("SAFE_HARBOR_1_PERCENT", "0.90")
	v.SetDefault("SAFE_HARBOR_2_BASE_PERCENT", "1.00")
	v.SetDefault("SAFE_HARBOR_2_HIGH_PERCENT", "1.10")
	v.SetDefault("SAFE_HARBOR_AGI_THRESHOLD", "150000")
	v.SetDefault("NOL_CARRYBACK_WINDOW_START", 2018)
	v.SetDefault("NOL_CARRYBACK_WINDOW_END", 2020)
	v.SetDefault("NOL_EXPIRATION_RULE_CHANGE_YEAR", 2018)
	v.SetDefault("NOL_EXPIRATION_TERM_YEARS", 20)
	v.SetDefault("NOL_ALERT_CRITICAL_YEARS", 1)
	v.SetDefault("NOL_ALERT_WARNING_YEARS", 3)
	v.SetDefault("ABATEMENT_MIN_EXPLANATION_LENGTH", 25)
	v.SetDefault("ABATEMENT_FIRST_TIME_LOOKBACK_YEARS", 3)

	// Bind environment variables
	v.AutomaticEnv()

	tax, err := loadTaxConfig(v)
	if err != nil {
		return nil, fmt.Errorf("tax configuration invalid: %w", err)
	}

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Tax: tax,
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadTaxConfig parses the statutory parameters, converting the monetary and
// rate fields from their string form into decimals.
func loadTaxConfig(v *viper.Viper) (TaxConfig, error) {
	cfg := TaxConfig{
		CarrybackWindowStart:            v.GetInt("NOL_CARRYBACK_WINDOW_START"),
		CarrybackWindowEnd:              v.GetInt("NOL_CARRYBACK_WINDOW_END"),
		ExpirationRuleChangeYear:        v.GetInt("NOL_EXPIRATION_RULE_CHANGE_YEAR"),
		ExpirationTermYears:             v.GetInt("NOL_EXPIRATION_TERM_YEARS"),
		AlertCriticalYears:              v.GetInt("NOL_ALERT_CRITICAL_YEARS"),
		AlertWarningYears:               v.GetInt("NOL_ALERT_WARNING_YEARS"),
		MinAbatementExplanationLength:   v.GetInt("ABATEMENT_MIN_EXPLANATION_LENGTH"),
		FirstTimeAbatementLookbackYears: v.GetInt("ABATEMENT_FIRST_TIME_LOOKBACK_YEARS"),
	}

	decimals := []struct {
		key  string
		dest *decimal.Decimal
	}{
		{"PENALTY_COMBINED_CAP_PERCENT", &cfg.CombinedCapPercent},
		{"SAFE_HARBOR_1_PERCENT", &cfg.SafeHarbor1Percent},
		{"SAFE_HARBOR_2_BASE_PERCENT", &cfg.SafeHarbor2BasePercent},
		{"SAFE_HARBOR_2_HIGH_PERCENT", &cfg.SafeHarbor2HighPercent},
		{"SAFE_HARBOR_AGI_THRESHOLD", &cfg.AGIThreshold},
	}
	for _, d := range decimals {
		val, err := decimal.NewFromString(v.GetString(d.key))
		if err != nil {
			return TaxConfig{}, fmt.Errorf("%s must be a decimal number: %w", d.key, err)
		}
		*d.dest = val
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return c.Tax.Validate()
}

// Validate checks the statutory parameters for internally consistent values.
func (t *TaxConfig) Validate() error {
	one := decimal.NewFromInt(1)

	if t.CombinedCapPercent.LessThanOrEqual(decimal.Zero) || t.CombinedCapPercent.GreaterThanOrEqual(one) {
		return fmt.Errorf("PENALTY_COMBINED_CAP_PERCENT must be in (0, 1)")
	}
	if t.SafeHarbor1Percent.LessThanOrEqual(decimal.Zero) || t.SafeHarbor1Percent.GreaterThan(one) {
		return fmt.Errorf("SAFE_HARBOR_1_PERCENT must be in (0, 1]")
	}
	if t.SafeHarbor2HighPercent.LessThan(t.SafeHarbor2BasePercent) {
		return fmt.Errorf("SAFE_HARBOR_2_HIGH_PERCENT must not be below SAFE_HARBOR_2_BASE_PERCENT")
	}
	if t.AGIThreshold.IsNegative() {
		return fmt.Errorf("SAFE_HARBOR_AGI_THRESHOLD must be non-negative")
	}
	if t.CarrybackWindowStart > t.CarrybackWindowEnd {
		return fmt.Errorf("NOL_CARRYBACK_WINDOW_START must not be after NOL_CARRYBACK_WINDOW_END")
	}
	if t.ExpirationTermYears < 1 {
		return fmt.Errorf("NOL_EXPIRATION_TERM_YEARS must be at least 1")
	}
	if t.AlertCriticalYears > t.AlertWarningYears {
		return fmt.Errorf("NOL_ALERT_CRITICAL_YEARS must not exceed NOL_ALERT_WARNING_YEARS")
	}
	if t.MinAbatementExplanationLength < 1 {
		return fmt.Errorf("ABATEMENT_MIN_EXPLANATION_LENGTH must be at least 1")
	}
	if t.FirstTimeAbatementLookbackYears < 1 {
		return fmt.Errorf("ABATEMENT_FIRST_TIME_LOOKBACK_YEARS must be at least 1")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
