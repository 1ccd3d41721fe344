package matcher

import (
	"transfer-detection-service/internal/models"
)

// StrategyHit is one qualifying incoming record found by a strategy for a
// given outgoing transaction.
type StrategyHit struct {
	Incoming *AnnotatedRecord
	Strategy models.MatchStrategy
}

// StrategyFunc is the shared signature of all matching strategies: given one
// outgoing transaction and the indexed incoming pool, return every
// qualifying hit. Strategies are pure functions dispatched from an ordered
// table; there is no strategy hierarchy.
type StrategyFunc func(out *AnnotatedRecord, idx *CandidateIndex, cfg *Config) []StrategyHit

// strategyTable returns the strategies in priority order. The matcher runs
// all of them for every outgoing transaction and collects every hit, so the
// conflict resolver sees the full picture; higher-priority strategies only
// win when the same pair is produced twice.
func strategyTable() []StrategyFunc {
	return []StrategyFunc{
		exchangeAmountStrategy,
		nameAmountStrategy,
		amountOnlyStrategy,
	}
}

// exchangeAmountStrategy matches via the conversion data attached to the
// outgoing leg: the incoming leg must carry exactly the declared converted
// amount in the declared target currency, within the date window. This is
// the highest-trust strategy; the conversion was stated by the bank, not
// inferred.
func exchangeAmountStrategy(out *AnnotatedRecord, idx *CandidateIndex, cfg *Config) []StrategyHit {
	if out.Exchange == nil {
		return nil
	}

	var hits []StrategyHit
	for _, inc := range idx.IncomingNear(out.Exchange.Amount, out.Record.Date) {
		if !models.SameCurrency(inc.Record.Currency, out.Exchange.Currency) {
			continue
		}

		if !cfg.AmountsEqual(inc.Record.AbsoluteAmount(), out.Exchange.Amount) {
			continue
		}

		if !cfg.WithinWindow(out.Record.Date, inc.Record.Date, cfg.DateWindow()) {
			continue
		}

		hits = append(hits, StrategyHit{Incoming: inc, Strategy: models.StrategyExchangeAmount})
	}

	return hits
}

// nameAmountStrategy matches when both legs resolve to the same counterparty
// and the amounts agree, either directly in the same currency or through the
// outgoing leg's declared exchange amount.
func nameAmountStrategy(out *AnnotatedRecord, idx *CandidateIndex, cfg *Config) []StrategyHit {
	if out.Name == "" {
		return nil
	}

	pool := idx.IncomingNear(out.Record.AbsoluteAmount(), out.Record.Date)
	if out.Exchange != nil {
		pool = append(pool, idx.IncomingNear(out.Exchange.Amount, out.Record.Date)...)
	}

	var hits []StrategyHit
	seen := make(map[*AnnotatedRecord]bool, len(pool))

	for _, inc := range pool {
		if seen[inc] {
			continue
		}
		seen[inc] = true

		if inc.Name == "" || inc.Name != out.Name {
			continue
		}

		if !amountsAgree(out, inc, cfg) {
			continue
		}

		if !cfg.WithinWindow(out.Record.Date, inc.Record.Date, cfg.DateWindow()) {
			continue
		}

		hits = append(hits, StrategyHit{Incoming: inc, Strategy: models.StrategyNameAmount})
	}

	return hits
}

// amountOnlyStrategy is the fallback for transactions where no counterparty
// name could be extracted on either side: bare amount equality in the same
// currency, within the tighter date window. Hits are always flagged for
// manual review.
func amountOnlyStrategy(out *AnnotatedRecord, idx *CandidateIndex, cfg *Config) []StrategyHit {
	if out.Name != "" {
		return nil
	}

	var hits []StrategyHit
	for _, inc := range idx.IncomingNear(out.Record.AbsoluteAmount(), out.Record.Date) {
		if inc.Name != "" {
			continue
		}

		if !models.SameCurrency(inc.Record.Currency, out.Record.Currency) {
			continue
		}

		if !cfg.AmountsEqual(inc.Record.AbsoluteAmount(), out.Record.AbsoluteAmount()) {
			continue
		}

		if !cfg.WithinWindow(out.Record.Date, inc.Record.Date, cfg.AmountOnlyWindow()) {
			continue
		}

		hits = append(hits, StrategyHit{Incoming: inc, Strategy: models.StrategyAmountOnly})
	}

	return hits
}

// amountsAgree checks the name+amount strategy's amount condition: a direct
// same-currency match, or a match against the declared conversion target.
func amountsAgree(out, inc *AnnotatedRecord, cfg *Config) bool {
	if models.SameCurrency(inc.Record.Currency, out.Record.Currency) &&
		cfg.AmountsEqual(inc.Record.AbsoluteAmount(), out.Record.AbsoluteAmount()) {
		return true
	}

	if out.Exchange != nil &&
		models.SameCurrency(inc.Record.Currency, out.Exchange.Currency) &&
		cfg.AmountsEqual(inc.Record.AbsoluteAmount(), out.Exchange.Amount) {
		return true
	}

	return false
}
