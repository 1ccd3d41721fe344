package matcher

import (
	"fmt"
	"sort"

	"transfer-detection-service/internal/models"
	"transfer-detection-service/pkg/logger"
)

// CrossBankMatcher runs the ordered strategy table for every outgoing
// transaction against the indexed incoming pool and scores every hit. It
// deliberately does not pick winners: all qualifying candidates go to the
// ConflictResolver so ambiguity is resolved with the full picture in view.
type CrossBankMatcher struct {
	cfg  *Config
	calc *ConfidenceCalculator
	log  logger.Logger
}

// NewCrossBankMatcher creates a matcher with the given configuration.
func NewCrossBankMatcher(cfg *Config, log logger.Logger) (*CrossBankMatcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}

	return &CrossBankMatcher{
		cfg:  cfg,
		calc: NewConfidenceCalculator(cfg),
		log:  log.WithComponent("cross-bank-matcher"),
	}, nil
}

// Match produces every scored transfer candidate for the indexed request.
// All strategies run for every outgoing transaction; when two strategies
// produce the same (outgoing, incoming) pair, the higher-priority strategy's
// candidate is kept. Each outgoing transaction contributes at most
// MaxCandidatesPerLeg candidates, highest confidence first.
func (m *CrossBankMatcher) Match(idx *CandidateIndex) []*models.TransferCandidate {
	strategies := strategyTable()

	var all []*models.TransferCandidate
	for _, out := range idx.Outgoing {
		candidates := m.matchOne(out, idx, strategies)
		all = append(all, candidates...)
	}

	stats := idx.Stats()
	m.log.WithFields(logger.Fields{
		"outgoing":   stats.OutgoingCount,
		"incoming":   stats.IncomingCount,
		"buckets":    stats.BucketCount,
		"candidates": len(all),
	}).Debug("candidate generation complete")

	return all
}

// matchOne collects, dedups and scores the hits for a single outgoing leg.
func (m *CrossBankMatcher) matchOne(out *AnnotatedRecord, idx *CandidateIndex, strategies []StrategyFunc) []*models.TransferCandidate {
	seen := make(map[*AnnotatedRecord]bool)

	var candidates []*models.TransferCandidate
	for _, strategy := range strategies {
		for _, hit := range strategy(out, idx, m.cfg) {
			if seen[hit.Incoming] {
				// An earlier, higher-priority strategy already produced
				// this pair.
				continue
			}
			seen[hit.Incoming] = true

			confidence, reasons := m.calc.Score(out, hit.Incoming, hit.Strategy)
			candidates = append(candidates, &models.TransferCandidate{
				Outgoing:    out.Record,
				Incoming:    hit.Incoming.Record,
				Strategy:    hit.Strategy,
				Confidence:  confidence,
				Status:      models.StatusCandidate,
				NeedsReview: hit.Strategy == models.StrategyAmountOnly,
				Reasons:     reasons,
			})
		}
	}

	sortCandidates(candidates)

	if len(candidates) > m.cfg.MaxCandidatesPerLeg {
		candidates = candidates[:m.cfg.MaxCandidatesPerLeg]
	}

	return candidates
}

// sortCandidates orders candidates deterministically: confidence descending,
// then strategy priority, then record IDs. Identical inputs always resolve
// identically.
func sortCandidates(candidates []*models.TransferCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Strategy.Priority() != b.Strategy.Priority() {
			return a.Strategy.Priority() < b.Strategy.Priority()
		}
		if a.Outgoing.RecordID != b.Outgoing.RecordID {
			return a.Outgoing.RecordID < b.Outgoing.RecordID
		}
		return a.Incoming.RecordID < b.Incoming.RecordID
	})
}
