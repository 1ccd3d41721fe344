package reconciler

import (
	"transfer-detection-service/internal/extract"
	"transfer-detection-service/internal/matcher"
	"transfer-detection-service/internal/models"
	"transfer-detection-service/pkg/logger"
)

// preprocessResult carries the usable records and the count of rows that
// were excluded from matching.
type preprocessResult struct {
	usable  []*models.TransactionRecord
	skipped int
}

// preprocess filters out records that cannot participate in matching:
// missing dates and zero amounts. Each exclusion is logged as a warning;
// bad rows never abort a run.
func preprocess(records []*models.TransactionRecord, log logger.Logger) preprocessResult {
	result := preprocessResult{usable: make([]*models.TransactionRecord, 0, len(records))}

	for _, rec := range records {
		if rec == nil {
			result.skipped++
			continue
		}

		if !rec.Usable() {
			result.skipped++
			log.WithFields(logger.Fields{
				"record":  rec.RecordID,
				"account": rec.Account,
			}).Warn("excluding record with missing date or zero amount")
			continue
		}

		result.usable = append(result.usable, rec)
	}

	return result
}

// annotate attaches counterparty and exchange evidence to each usable
// record. A pre-extracted counterparty supplied upstream wins over pattern
// extraction; names are normalized once here so strategies compare them
// directly.
func annotate(records []*models.TransactionRecord, extractor *extract.NameExtractor) []*matcher.AnnotatedRecord {
	annotated := make([]*matcher.AnnotatedRecord, 0, len(records))

	for _, rec := range records {
		name := rec.Counterparty
		if name == "" {
			name = extractor.Extract(rec.Account, rec.Description)
		}

		annotated = append(annotated, &matcher.AnnotatedRecord{
			Record:   rec,
			Name:     extract.NormalizeName(name),
			Exchange: extract.AnalyzeExchange(rec),
		})
	}

	return annotated
}
