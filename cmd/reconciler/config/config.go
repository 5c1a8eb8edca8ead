// Package config builds component configurations from CLI flags and viper
// settings.
package config

import (
	"bookkeeping-reconciliation-service/internal/detector"
	"bookkeeping-reconciliation-service/internal/matcher"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// CreateMatchingConfig builds a matching configuration from defaults plus
// any viper overrides
func CreateMatchingConfig() (*matcher.MatchingConfig, error) {
	config := matcher.DefaultMatchingConfig()

	if viper.IsSet("accept-threshold") {
		config.AcceptThreshold = viper.GetFloat64("accept-threshold")
	}
	if viper.IsSet("exact-threshold") {
		config.ExactThreshold = viper.GetFloat64("exact-threshold")
	}
	if viper.IsSet("amount-exact-tolerance") {
		config.AmountExactTolerance = decimal.NewFromFloat(viper.GetFloat64("amount-exact-tolerance"))
	}
	if viper.IsSet("amount-close-tolerance") {
		config.AmountCloseTolerance = decimal.NewFromFloat(viper.GetFloat64("amount-close-tolerance"))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateDetectorConfig builds a suspicious-transaction detector
// configuration from defaults plus any viper overrides
func CreateDetectorConfig() (*detector.Config, error) {
	config := detector.DefaultConfig()

	if viper.IsSet("large-amount-threshold") {
		config.LargeAmountThreshold = decimal.NewFromFloat(viper.GetFloat64("large-amount-threshold"))
	}
	if viper.IsSet("off-hours-start") {
		config.OffHoursStart = viper.GetInt("off-hours-start")
	}
	if viper.IsSet("off-hours-end") {
		config.OffHoursEnd = viper.GetInt("off-hours-end")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
