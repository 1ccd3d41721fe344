// Package categorizer applies the final category label to the legs of
// confirmed transfer pairs. It performs the only mutation the engine makes
// to input records and is idempotent: re-running on the same analysis
// rewrites the same labels.
package categorizer

import (
	"fmt"

	"transfer-detection-service/internal/models"
	"transfer-detection-service/pkg/logger"
)

// TransferCategorizer writes the configured category onto both legs of
// every confirmed pair, leaving all other record fields untouched.
type TransferCategorizer struct {
	label string
	log   logger.Logger
}

// New creates a categorizer writing the given label.
func New(label string, log logger.Logger) (*TransferCategorizer, error) {
	if label == "" {
		return nil, fmt.Errorf("transfer category label cannot be empty")
	}
	if log == nil {
		log = logger.Discard()
	}

	return &TransferCategorizer{
		label: label,
		log:   log.WithComponent("categorizer"),
	}, nil
}

// Label returns the category label being applied.
func (tc *TransferCategorizer) Label() string {
	return tc.label
}

// Apply categorizes both legs of every confirmed pair in the analysis and
// returns the number of records written. Confirmed pairs include manually
// approved ones, even those the engine scored below threshold.
func (tc *TransferCategorizer) Apply(analysis *models.TransferAnalysis) int {
	if analysis == nil {
		return 0
	}

	written := 0
	for _, pair := range analysis.ConfirmedPairs {
		pair.Outgoing.Category = tc.label
		pair.Incoming.Category = tc.label
		written += 2
	}

	if written > 0 {
		tc.log.WithFields(logger.Fields{
			"category": tc.label,
			"records":  written,
		}).Debug("categorized transfer legs")
	}

	return written
}
