package matcher

import (
	"fmt"
	"math"

	"transfer-detection-service/internal/extract"
	"transfer-detection-service/internal/models"

	"github.com/shopspring/decimal"
)

// ConfidenceCalculator scores a candidate pair on evidence strength. The
// score is a weighted combination of name exactness, amount exactness, date
// proximity and currency consistency, clipped to [0,1]. Exchange-amount hits
// receive a fixed floor reflecting the trust placed in bank-declared
// conversion data; text-derived conversions get a lower floor.
type ConfidenceCalculator struct {
	cfg *Config
}

// NewConfidenceCalculator creates a calculator for the given configuration.
func NewConfidenceCalculator(cfg *Config) *ConfidenceCalculator {
	return &ConfidenceCalculator{cfg: cfg}
}

// Score computes the confidence for a (outgoing, incoming) pair produced by
// the given strategy, along with human-readable reasons for auditability.
func (cc *ConfidenceCalculator) Score(out, inc *AnnotatedRecord, strategy models.MatchStrategy) (float64, []string) {
	nameScore := cc.nameScore(out, inc)
	amountScore := cc.amountScore(out, inc)
	dateScore := cc.dateScore(out, inc, strategy)
	currencyScore := cc.currencyScore(out, inc)

	w := cc.cfg.Weights
	score := nameScore*w.NameWeight +
		amountScore*w.AmountWeight +
		dateScore*w.DateWeight +
		currencyScore*w.CurrencyWeight

	if strategy == models.StrategyExchangeAmount && out.Exchange != nil {
		floor := cc.cfg.DerivedExchangeFloor
		if out.Exchange.Source == extract.SourceDeclared {
			floor = cc.cfg.DeclaredExchangeFloor
		}
		score = math.Max(score, floor)
	}

	if strategy == models.StrategyAmountOnly {
		score = math.Min(score, cc.cfg.AmountOnlyCeiling)
	}

	score = clamp(score)
	reasons := cc.reasons(out, inc, strategy, nameScore, amountScore, dateScore, currencyScore)

	return score, reasons
}

// nameScore is 1 for an exact normalized counterparty match, 0 otherwise.
func (cc *ConfidenceCalculator) nameScore(out, inc *AnnotatedRecord) float64 {
	if out.Name != "" && out.Name == inc.Name {
		return 1.0
	}
	return 0.0
}

// amountScore is 1 when the incoming amount equals the matching target
// within the epsilon, decaying linearly to 0 at the configured boundary.
// The target is the declared conversion amount when the incoming leg is in
// the conversion currency, otherwise the outgoing absolute amount.
func (cc *ConfidenceCalculator) amountScore(out, inc *AnnotatedRecord) float64 {
	target := cc.matchTarget(out, inc)
	diff := inc.Record.AbsoluteAmount().Sub(target).Abs()

	if diff.LessThanOrEqual(cc.cfg.AmountEpsilon) {
		return 1.0
	}

	boundary := cc.cfg.AmountDecayBoundary(target)
	if boundary.IsZero() || diff.GreaterThanOrEqual(boundary) {
		return 0.0
	}

	ratio, _ := diff.Div(boundary).Float64()
	return math.Max(0.0, 1.0-ratio)
}

// dateScore is 1 at zero gap, decaying linearly to 0 at the edge of the
// window applicable to the strategy.
func (cc *ConfidenceCalculator) dateScore(out, inc *AnnotatedRecord, strategy models.MatchStrategy) float64 {
	window := cc.cfg.WindowFor(strategy)
	if window <= 0 {
		return 0.0
	}

	gap := dateGap(out.Record.Date, inc.Record.Date)
	if gap > window {
		return 0.0
	}

	return math.Max(0.0, 1.0-float64(gap)/float64(window))
}

// currencyScore is 1 when the currencies align directly or through the
// declared/implied conversion, 0 otherwise.
func (cc *ConfidenceCalculator) currencyScore(out, inc *AnnotatedRecord) float64 {
	if models.SameCurrency(out.Record.Currency, inc.Record.Currency) {
		return 1.0
	}

	if out.Exchange != nil && models.SameCurrency(out.Exchange.Currency, inc.Record.Currency) {
		return 1.0
	}

	return 0.0
}

// matchTarget returns the amount the incoming leg is expected to carry.
func (cc *ConfidenceCalculator) matchTarget(out, inc *AnnotatedRecord) decimal.Decimal {
	if out.Exchange != nil && models.SameCurrency(out.Exchange.Currency, inc.Record.Currency) {
		return out.Exchange.Amount
	}
	return out.Record.AbsoluteAmount()
}

// reasons builds the audit trail attached to every candidate.
func (cc *ConfidenceCalculator) reasons(out, inc *AnnotatedRecord, strategy models.MatchStrategy,
	nameScore, amountScore, dateScore, currencyScore float64) []string {

	var reasons []string

	switch strategy {
	case models.StrategyExchangeAmount:
		reasons = append(reasons, fmt.Sprintf("%s conversion to %s %s matches incoming amount",
			out.Exchange.Source, out.Exchange.Amount.String(), out.Exchange.Currency))
	case models.StrategyNameAmount:
		reasons = append(reasons, fmt.Sprintf("counterparty %q on both legs", out.Name))
	case models.StrategyAmountOnly:
		reasons = append(reasons, "bare amount match, no counterparty evidence")
	}

	if amountScore == 1.0 {
		reasons = append(reasons, "exact amount match")
	} else if amountScore > 0.0 {
		reasons = append(reasons, "amount within tolerance")
	}

	gap := dateGap(out.Record.Date, inc.Record.Date)
	if dateScore >= 1.0 {
		reasons = append(reasons, "same date")
	} else if dateScore > 0.0 {
		reasons = append(reasons, fmt.Sprintf("dates %s apart", gap))
	}

	if currencyScore == 0.0 {
		reasons = append(reasons, "currency mismatch")
	}

	if nameScore == 0.0 && strategy != models.StrategyAmountOnly {
		if out.Name == "" || inc.Name == "" {
			reasons = append(reasons, "counterparty missing on one leg")
		}
	}

	return reasons
}

// clamp clips a score to [0,1].
func clamp(score float64) float64 {
	return math.Max(0.0, math.Min(1.0, score))
}
