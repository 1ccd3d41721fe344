// Package reconciler orchestrates one transfer detection request end to
// end: preprocessing, annotation, indexing, matching, conflict resolution
// and categorization. The service holds only configuration values passed in
// at construction, so it is safely re-entrant across concurrent requests.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"transfer-detection-service/internal/categorizer"
	"transfer-detection-service/internal/extract"
	"transfer-detection-service/internal/matcher"
	"transfer-detection-service/internal/models"
	apperrors "transfer-detection-service/pkg/errors"
	"transfer-detection-service/pkg/logger"
)

// DetectionRequest is one immutable snapshot of cleaned transactions plus
// the user-approved pairs to force-confirm.
type DetectionRequest struct {
	Records []*models.TransactionRecord
	Manual  []models.ManualConfirmation
}

// TransferService runs the transfer detection engine. Per-bank name
// patterns, tolerance windows and the category label are fixed at
// construction; every Detect call computes a fresh TransferAnalysis from its
// own inputs with no shared mutable state.
type TransferService struct {
	cfg         *matcher.Config
	extractor   *extract.NameExtractor
	engine      *matcher.CrossBankMatcher
	resolver    *matcher.ConflictResolver
	categorizer *categorizer.TransferCategorizer
	log         logger.Logger
}

// NewTransferService creates a service from a matching configuration and
// the per-bank extraction rules.
func NewTransferService(cfg *matcher.Config, rules extract.RuleSet, log logger.Logger) (*TransferService, error) {
	if cfg == nil {
		cfg = matcher.DefaultConfig()
	}
	if log == nil {
		log = logger.Discard()
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig, "matching configuration", err)
	}

	engine, err := matcher.NewCrossBankMatcher(cfg, log)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig, "matching engine", err)
	}

	cat, err := categorizer.New(cfg.TransferCategory, log)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeInvalidConfig, "categorizer", err)
	}

	return &TransferService{
		cfg:         cfg,
		extractor:   extract.NewNameExtractor(rules, log),
		engine:      engine,
		resolver:    matcher.NewConflictResolver(cfg, log),
		categorizer: cat,
		log:         log.WithComponent("transfer-service"),
	}, nil
}

// Detect runs the full pipeline and returns the analysis. The whole
// computation is CPU-bound and in-memory; the context is only consulted
// between phases so an aborted request stops early.
func (s *TransferService) Detect(ctx context.Context, req *DetectionRequest) (*models.TransferAnalysis, error) {
	if req == nil {
		return nil, apperrors.DetectionFailed("request cannot be nil", nil)
	}

	started := time.Now()

	if len(req.Records) == 0 {
		analysis := models.EmptyAnalysis()
		analysis.Summary.ProcessingDuration = time.Since(started)
		return analysis, nil
	}

	pre := preprocess(req.Records, s.log)
	if err := ctx.Err(); err != nil {
		return nil, apperrors.DetectionFailed("request aborted", err)
	}

	annotated := annotate(pre.usable, s.extractor)
	idx := matcher.NewCandidateIndex(annotated, s.cfg)

	candidates := s.engine.Match(idx)
	if err := ctx.Err(); err != nil {
		return nil, apperrors.DetectionFailed("request aborted", err)
	}

	resolution := s.resolver.Resolve(candidates, req.Manual, pre.usable)

	analysis := s.buildAnalysis(resolution, idx, pre, started)
	s.categorizer.Apply(analysis)

	if err := verifyExclusivity(analysis); err != nil {
		// A double-claimed leg is a programming bug, not a data problem.
		return nil, apperrors.Wrap(err, apperrors.CategoryInternal,
			apperrors.CodeUnexpectedError, "confirmed pair invariant violated")
	}

	s.log.WithFields(logger.Fields{
		"records":   analysis.Summary.TotalRecords,
		"skipped":   analysis.Summary.SkippedRecords,
		"confirmed": analysis.Summary.PairsFound,
		"potential": analysis.Summary.PotentialPairs,
		"conflicts": analysis.Summary.Conflicts,
		"duration":  analysis.Summary.ProcessingDuration,
	}).Info("transfer detection complete")

	return analysis, nil
}

// buildAnalysis assembles the immutable result object and its summary.
func (s *TransferService) buildAnalysis(res *matcher.Resolution, idx *matcher.CandidateIndex,
	pre preprocessResult, started time.Time) *models.TransferAnalysis {

	stats := idx.Stats()

	flagged := 0
	manual := 0
	for _, c := range res.Confirmed {
		if c.NeedsReview {
			flagged++
		}
		if c.ManuallyConfirmed {
			manual++
		}
	}
	for _, c := range res.Potential {
		if c.NeedsReview {
			flagged++
		}
	}
	for _, c := range res.Conflicted {
		if c.NeedsReview {
			flagged++
		}
	}

	return &models.TransferAnalysis{
		ConfirmedPairs: res.Confirmed,
		PotentialPairs: res.Potential,
		Conflicts:      res.Conflicted,
		ProcessedAt:    time.Now(),
		Summary: models.AnalysisSummary{
			TotalRecords:        len(pre.usable) + pre.skipped,
			SkippedRecords:      pre.skipped,
			OutgoingCount:       stats.OutgoingCount,
			IncomingCount:       stats.IncomingCount,
			PairsFound:          len(res.Confirmed),
			PotentialPairs:      len(res.Potential),
			Conflicts:           len(res.Conflicted),
			FlaggedForReview:    flagged,
			ManualConfirmations: manual,
			ProcessingDuration:  time.Since(started),
		},
	}
}

// verifyExclusivity asserts that no record appears in two confirmed pairs
// and that every confirmed pair points the right way.
func verifyExclusivity(analysis *models.TransferAnalysis) error {
	seen := make(map[*models.TransactionRecord]bool, len(analysis.ConfirmedPairs)*2)

	for _, pair := range analysis.ConfirmedPairs {
		if err := pair.Validate(); err != nil {
			return err
		}

		if seen[pair.Outgoing] || seen[pair.Incoming] {
			return fmt.Errorf("record claimed by more than one confirmed pair: %s", pair)
		}
		seen[pair.Outgoing] = true
		seen[pair.Incoming] = true
	}

	return nil
}

// Config returns a copy of the service's matching configuration.
func (s *TransferService) Config() *matcher.Config {
	return s.cfg.Clone()
}
