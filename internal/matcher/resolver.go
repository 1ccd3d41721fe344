package matcher

import (
	"transfer-detection-service/internal/models"
	"transfer-detection-service/pkg/logger"
)

// Resolution is the outcome of conflict resolution: the confirmed pairs,
// the candidates that lost a leg to a stronger pair, and the still-open
// potential candidates below the confirmation threshold.
type Resolution struct {
	Confirmed  []*models.TransferCandidate
	Conflicted []*models.TransferCandidate
	Potential  []*models.TransferCandidate
}

// ConflictResolver enforces the core invariant: no transaction record
// participates in more than one confirmed pair. Candidates are confirmed
// greedily in descending confidence order; any later candidate touching an
// already-claimed leg is surfaced as conflicted rather than dropped.
type ConflictResolver struct {
	cfg *Config
	log logger.Logger
}

// NewConflictResolver creates a resolver with the given configuration.
func NewConflictResolver(cfg *Config, log logger.Logger) *ConflictResolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Discard()
	}

	return &ConflictResolver{
		cfg: cfg,
		log: log.WithComponent("conflict-resolver"),
	}
}

// Resolve applies manual confirmations first, then greedy automatic
// confirmation. records is the usable input set, needed to honor manual
// pairs the engine produced no candidate for.
func (cr *ConflictResolver) Resolve(candidates []*models.TransferCandidate,
	manual []models.ManualConfirmation, records []*models.TransactionRecord) *Resolution {

	res := &Resolution{
		Confirmed:  []*models.TransferCandidate{},
		Conflicted: []*models.TransferCandidate{},
		Potential:  []*models.TransferCandidate{},
	}

	// Claims are tracked by record identity, not ID, so records with blank
	// upstream IDs still obey the one-confirmed-pair invariant.
	claimed := make(map[*models.TransactionRecord]bool)

	cr.applyManual(candidates, manual, records, claimed, res)

	sortCandidates(candidates)

	for _, cand := range candidates {
		if cand.Status.IsTerminal() {
			continue // confirmed manually above
		}

		if claimed[cand.Outgoing] || claimed[cand.Incoming] {
			cand.Status = models.StatusConflicted
			res.Conflicted = append(res.Conflicted, cand)
			continue
		}

		if cand.Confidence >= cr.cfg.ConfirmationThreshold {
			cand.Status = models.StatusConfirmed
			claimed[cand.Outgoing] = true
			claimed[cand.Incoming] = true
			res.Confirmed = append(res.Confirmed, cand)
			continue
		}

		res.Potential = append(res.Potential, cand)
	}

	return res
}

// applyManual confirms user-approved pairs before automatic resolution. A
// manual pair matching an engine candidate confirms that candidate; a pair
// the engine never produced is synthesized directly from the records. Manual
// pairs touching an already-claimed leg become conflicts, in list order.
func (cr *ConflictResolver) applyManual(candidates []*models.TransferCandidate,
	manual []models.ManualConfirmation, records []*models.TransactionRecord,
	claimed map[*models.TransactionRecord]bool, res *Resolution) {

	if len(manual) == 0 {
		return
	}

	byID := make(map[string]*models.TransactionRecord, len(records))
	for _, rec := range records {
		if rec.RecordID == "" {
			continue
		}
		if _, dup := byID[rec.RecordID]; dup {
			cr.log.WithField("record", rec.RecordID).
				Warn("duplicate record id, manual confirmations resolve to the first occurrence")
			continue
		}
		byID[rec.RecordID] = rec
	}

	byPair := make(map[[2]string]*models.TransferCandidate, len(candidates))
	for _, cand := range candidates {
		key := [2]string{cand.Outgoing.RecordID, cand.Incoming.RecordID}
		if _, exists := byPair[key]; !exists {
			byPair[key] = cand
		}
	}

	applied := make(map[models.ManualConfirmation]bool, len(manual))

	for _, mc := range manual {
		if applied[mc] {
			// A repeated entry for the same pair must not disturb the
			// already-resolved candidate.
			continue
		}
		applied[mc] = true

		cand := byPair[[2]string{mc.OutgoingID, mc.IncomingID}]
		if cand == nil {
			cand = cr.synthesize(mc, byID)
			if cand == nil {
				continue
			}
		}

		if cand.Status.IsTerminal() {
			continue
		}

		if claimed[cand.Outgoing] || claimed[cand.Incoming] {
			cr.log.WithFields(logger.Fields{
				"outgoing": mc.OutgoingID,
				"incoming": mc.IncomingID,
			}).Warn("manual confirmation conflicts with an earlier pair")
			cand.Status = models.StatusConflicted
			cand.ManuallyConfirmed = true
			res.Conflicted = append(res.Conflicted, cand)
			continue
		}

		cand.Status = models.StatusConfirmed
		cand.ManuallyConfirmed = true
		claimed[cand.Outgoing] = true
		claimed[cand.Incoming] = true
		res.Confirmed = append(res.Confirmed, cand)
	}
}

// synthesize builds a candidate for a manual pair the engine did not
// propose. Unknown IDs or legs pointing the wrong way are logged and
// skipped; a bad manual entry never aborts the run.
func (cr *ConflictResolver) synthesize(mc models.ManualConfirmation,
	byID map[string]*models.TransactionRecord) *models.TransferCandidate {

	out, okOut := byID[mc.OutgoingID]
	inc, okInc := byID[mc.IncomingID]
	if !okOut || !okInc {
		cr.log.WithFields(logger.Fields{
			"outgoing": mc.OutgoingID,
			"incoming": mc.IncomingID,
		}).Warn("manual confirmation references unknown records")
		return nil
	}

	if !out.IsOutgoing() || !inc.IsIncoming() {
		cr.log.WithFields(logger.Fields{
			"outgoing": mc.OutgoingID,
			"incoming": mc.IncomingID,
		}).Warn("manual confirmation legs have wrong directions")
		return nil
	}

	return &models.TransferCandidate{
		Outgoing: out,
		Incoming: inc,
		Strategy: models.StrategyManual,
		// Confidence stays 0: the pair is confirmed by authority, not
		// evidence, and the summary reports it separately.
		Status:  models.StatusCandidate,
		Reasons: []string{"confirmed manually"},
	}
}
