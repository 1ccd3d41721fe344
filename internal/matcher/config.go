// Package matcher implements the cross-bank transfer matching engine: a
// bucketed candidate index over outgoing/incoming pools, an ordered table of
// matching strategies, evidence-weighted confidence scoring and greedy
// conflict resolution.
//
// The engine is a pure function of its inputs. All tunables live in Config
// and are passed in per request; nothing is read from process-wide state, so
// concurrent requests can share nothing and still be safe.
//
// Example usage:
//
//	cfg := matcher.DefaultConfig()
//	cfg.DateToleranceHours = 48
//
//	m, err := matcher.NewCrossBankMatcher(cfg, log)
//	idx := matcher.NewCandidateIndex(annotated, cfg)
//	candidates := m.Match(idx)
//	resolution := matcher.NewConflictResolver(cfg, log).Resolve(candidates, manual, records)
package matcher

import (
	"fmt"
	"time"

	"transfer-detection-service/internal/models"

	"github.com/shopspring/decimal"
)

// ScoreWeights defines the relative importance of the four evidence
// components combined into a confidence score.
type ScoreWeights struct {
	NameWeight     float64 `json:"name_weight"`
	AmountWeight   float64 `json:"amount_weight"`
	DateWeight     float64 `json:"date_weight"`
	CurrencyWeight float64 `json:"currency_weight"`
}

// Validate checks if the score weights are valid.
func (w *ScoreWeights) Validate() error {
	for name, v := range map[string]float64{
		"name":     w.NameWeight,
		"amount":   w.AmountWeight,
		"date":     w.DateWeight,
		"currency": w.CurrencyWeight,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", name, v)
		}
	}

	total := w.NameWeight + w.AmountWeight + w.DateWeight + w.CurrencyWeight
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("weights should sum to approximately 1.0, got %f", total)
	}

	return nil
}

// Config holds all tunables of the transfer matching engine. Different
// profiles suit different statement sets; use the factory functions for
// common scenarios:
//   - DefaultConfig(): balanced settings for typical multi-bank imports
//   - StrictConfig(): tight windows for high-volume accounts
//   - RelaxedConfig(): wide windows for exploratory matching
type Config struct {
	// DateToleranceHours is the maximum gap between the two legs' dates for
	// the exchange-amount and name+amount strategies. A gap exactly equal to
	// the tolerance is still inside the window.
	DateToleranceHours int `json:"date_tolerance_hours"`

	// AmountOnlyToleranceHours is the tighter window used by the bare
	// amount-only fallback strategy.
	AmountOnlyToleranceHours int `json:"amount_only_tolerance_hours"`

	// AmountEpsilon is the absolute difference under which two amounts count
	// as equal.
	AmountEpsilon decimal.Decimal `json:"amount_epsilon"`

	// AmountTolerancePercent sets the boundary of the linear amount-score
	// decay, as a percentage of the target amount. Inside AmountEpsilon the
	// score is 1; at the boundary it reaches 0.
	AmountTolerancePercent float64 `json:"amount_tolerance_percent"`

	// ConfirmationThreshold is the minimum confidence for auto-confirmation.
	ConfirmationThreshold float64 `json:"confirmation_threshold"`

	// DeclaredExchangeFloor is the confidence floor for exchange-amount hits
	// backed by bank-declared conversion fields.
	DeclaredExchangeFloor float64 `json:"declared_exchange_floor"`

	// DerivedExchangeFloor is the lower floor for exchange-amount hits whose
	// conversion data was parsed out of description text.
	DerivedExchangeFloor float64 `json:"derived_exchange_floor"`

	// AmountOnlyCeiling caps amount-only candidates so bare-amount evidence
	// always scores below the name and exchange strategies.
	AmountOnlyCeiling float64 `json:"amount_only_ceiling"`

	// TransferCategory is the label written onto both legs of confirmed pairs.
	TransferCategory string `json:"transfer_category"`

	// MaxCandidatesPerLeg limits how many scored candidates one outgoing
	// transaction contributes to conflict resolution.
	MaxCandidatesPerLeg int `json:"max_candidates_per_leg"`

	Weights ScoreWeights `json:"weights"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DateToleranceHours:       72,
		AmountOnlyToleranceHours: 24,
		AmountEpsilon:            decimal.NewFromFloat(0.01),
		AmountTolerancePercent:   0.5,
		ConfirmationThreshold:    0.70,
		DeclaredExchangeFloor:    0.85,
		DerivedExchangeFloor:     0.75,
		AmountOnlyCeiling:        0.65,
		TransferCategory:         "Balance Correction",
		MaxCandidatesPerLeg:      10,
		Weights: ScoreWeights{
			NameWeight:     0.30,
			AmountWeight:   0.35,
			DateWeight:     0.20,
			CurrencyWeight: 0.15,
		},
	}
}

// StrictConfig returns a configuration for strict matching.
func StrictConfig() *Config {
	cfg := DefaultConfig()
	cfg.DateToleranceHours = 24
	cfg.AmountOnlyToleranceHours = 12
	cfg.ConfirmationThreshold = 0.85
	cfg.MaxCandidatesPerLeg = 5
	return cfg
}

// RelaxedConfig returns a configuration for relaxed, exploratory matching.
func RelaxedConfig() *Config {
	cfg := DefaultConfig()
	cfg.DateToleranceHours = 120
	cfg.AmountOnlyToleranceHours = 48
	cfg.ConfirmationThreshold = 0.60
	cfg.MaxCandidatesPerLeg = 20
	return cfg
}

// Validate checks if the matching configuration is valid.
func (c *Config) Validate() error {
	if c.DateToleranceHours <= 0 {
		return fmt.Errorf("date tolerance hours must be positive: %d", c.DateToleranceHours)
	}

	if c.AmountOnlyToleranceHours <= 0 {
		return fmt.Errorf("amount-only tolerance hours must be positive: %d", c.AmountOnlyToleranceHours)
	}

	if c.AmountOnlyToleranceHours > c.DateToleranceHours {
		return fmt.Errorf("amount-only tolerance (%dh) cannot exceed the general date tolerance (%dh)",
			c.AmountOnlyToleranceHours, c.DateToleranceHours)
	}

	if c.AmountEpsilon.IsNegative() {
		return fmt.Errorf("amount epsilon cannot be negative: %s", c.AmountEpsilon.String())
	}

	if c.AmountTolerancePercent < 0.0 || c.AmountTolerancePercent > 100.0 {
		return fmt.Errorf("amount tolerance percent must be between 0.0 and 100.0: %f", c.AmountTolerancePercent)
	}

	for name, v := range map[string]float64{
		"confirmation threshold":  c.ConfirmationThreshold,
		"declared exchange floor": c.DeclaredExchangeFloor,
		"derived exchange floor":  c.DerivedExchangeFloor,
		"amount-only ceiling":     c.AmountOnlyCeiling,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0: %f", name, v)
		}
	}

	if c.DerivedExchangeFloor > c.DeclaredExchangeFloor {
		return fmt.Errorf("derived exchange floor (%f) cannot exceed the declared floor (%f)",
			c.DerivedExchangeFloor, c.DeclaredExchangeFloor)
	}

	if c.TransferCategory == "" {
		return fmt.Errorf("transfer category label cannot be empty")
	}

	if c.MaxCandidatesPerLeg <= 0 {
		return fmt.Errorf("max candidates per leg must be positive: %d", c.MaxCandidatesPerLeg)
	}

	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}

// DateWindow returns the general date tolerance as a duration.
func (c *Config) DateWindow() time.Duration {
	return time.Duration(c.DateToleranceHours) * time.Hour
}

// AmountOnlyWindow returns the tighter amount-only tolerance as a duration.
func (c *Config) AmountOnlyWindow() time.Duration {
	return time.Duration(c.AmountOnlyToleranceHours) * time.Hour
}

// WindowFor returns the date window applicable to a strategy.
func (c *Config) WindowFor(strategy models.MatchStrategy) time.Duration {
	if strategy == models.StrategyAmountOnly {
		return c.AmountOnlyWindow()
	}
	return c.DateWindow()
}

// WithinWindow reports whether two dates are within the window, boundary
// inclusive: a gap exactly equal to the window still qualifies.
func (c *Config) WithinWindow(a, b time.Time, window time.Duration) bool {
	return dateGap(a, b) <= window
}

// AmountsEqual reports whether two amounts match within the epsilon.
func (c *Config) AmountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(c.AmountEpsilon)
}

// AmountDecayBoundary returns the absolute difference at which the amount
// score decays to zero for a given target amount. Never below the epsilon.
func (c *Config) AmountDecayBoundary(target decimal.Decimal) decimal.Decimal {
	pct := decimal.NewFromFloat(c.AmountTolerancePercent / 100.0)
	boundary := target.Abs().Mul(pct)
	if boundary.LessThan(c.AmountEpsilon) {
		return c.AmountEpsilon
	}
	return boundary
}

// String returns a human-readable description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DateTolerance: %dh, AmountOnly: %dh, Epsilon: %s, Threshold: %.2f}",
		c.DateToleranceHours, c.AmountOnlyToleranceHours, c.AmountEpsilon.String(), c.ConfirmationThreshold)
}

// dateGap returns the absolute duration between two dates.
func dateGap(a, b time.Time) time.Duration {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
