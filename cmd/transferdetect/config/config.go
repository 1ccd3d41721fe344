// Package config bridges CLI flags and configuration files into the
// engine's configuration types.
package config

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"transfer-detection-service/internal/extract"
	"transfer-detection-service/internal/matcher"
	"transfer-detection-service/internal/reporter"
	apperrors "transfer-detection-service/pkg/errors"
)

// MatchingOptions carries the flag values that override a matching profile.
type MatchingOptions struct {
	Profile                  string
	DateToleranceHours       int
	AmountOnlyToleranceHours int
	AmountEpsilon            float64
	ConfirmationThreshold    float64
	TransferCategory         string
}

// LoadBankRules reads a YAML rules file of the form:
//
//	banks:
//	  Wise:
//	    - template: "Sent money to {name}"
//	  Alfalah:
//	    - template: "Outgoing fund transfer to {name}"
//	      strip: [" - Internet Banking"]
//
// Bank keys are folded to lowercase during loading; the extractor compares
// labels case-insensitively, so this is invisible to callers. An empty path
// yields an empty rule set: detection then runs without the name-based
// strategy.
func LoadBankRules(path string) (extract.RuleSet, error) {
	if path == "" {
		return extract.RuleSet{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeMissingConfig,
			"cannot read bank rules file "+path, err)
	}

	var rules extract.RuleSet
	if err := v.UnmarshalKey("banks", &rules); err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig,
			"malformed bank rules in "+path, err)
	}

	if rules == nil {
		rules = extract.RuleSet{}
	}

	return rules, nil
}

// CreateMatchingConfig builds the engine configuration from a named profile
// plus flag overrides. Overrides apply on top of the profile, so a strict
// profile with a widened date tolerance stays strict everywhere else.
func CreateMatchingConfig(opts MatchingOptions) (*matcher.Config, error) {
	var cfg *matcher.Config

	switch opts.Profile {
	case "", "default":
		cfg = matcher.DefaultConfig()
	case "strict":
		cfg = matcher.StrictConfig()
	case "relaxed":
		cfg = matcher.RelaxedConfig()
	default:
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig,
			"unknown matching profile "+opts.Profile, nil)
	}

	if opts.DateToleranceHours > 0 {
		cfg.DateToleranceHours = opts.DateToleranceHours
	}
	if opts.AmountOnlyToleranceHours > 0 {
		cfg.AmountOnlyToleranceHours = opts.AmountOnlyToleranceHours
	}
	if opts.AmountEpsilon > 0 {
		cfg.AmountEpsilon = decimal.NewFromFloat(opts.AmountEpsilon)
	}
	if opts.ConfirmationThreshold > 0 {
		cfg.ConfirmationThreshold = opts.ConfirmationThreshold
	}
	if opts.TransferCategory != "" {
		cfg.TransferCategory = opts.TransferCategory
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig,
			"matching configuration", err)
	}

	return cfg, nil
}

// CreateReportConfig builds the reporter configuration for an output format.
// Colors are only used for console output going to a terminal-like stream;
// file and structured formats never carry escape codes.
func CreateReportConfig(format string, includeReasons bool) *reporter.Config {
	cfg := reporter.DefaultConfig()
	cfg.Format = reporter.OutputFormat(format)
	cfg.IncludeReasons = includeReasons

	if cfg.Format != reporter.FormatConsole {
		cfg.UseColors = false
	}

	return cfg
}
