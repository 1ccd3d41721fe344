package matcher

import (
	"time"

	"transfer-detection-service/internal/extract"
	"transfer-detection-service/internal/models"

	"github.com/shopspring/decimal"
)

// AnnotatedRecord wraps a read-only transaction record with the evidence the
// strategies need: the normalized counterparty name (empty when none could
// be extracted) and the normalized exchange data (nil when no conversion
// applies). Annotations live here so the input records are never mutated.
type AnnotatedRecord struct {
	Record   *models.TransactionRecord
	Name     string
	Exchange *extract.ExchangeInfo
}

// bucketKey addresses one cell of the candidate index: a date bucket the
// width of the tolerance window and the absolute amount rounded to whole
// units.
type bucketKey struct {
	window int64
	amount int64
}

// CandidateIndex partitions a request's records into outgoing and incoming
// pools and buckets the incoming pool by (date bucket, rounded amount), so
// each outgoing transaction probes a bounded neighborhood instead of the
// whole pool. Keeps matching near O(n log n) for multi-thousand-row imports.
type CandidateIndex struct {
	Outgoing []*AnnotatedRecord
	Incoming []*AnnotatedRecord

	buckets      map[bucketKey][]*AnnotatedRecord
	width        time.Duration
	amountRadius int64
}

// NewCandidateIndex builds the pools and buckets from annotated records.
// Records with a zero amount belong to neither pool; unusable records are
// expected to have been filtered out by preprocessing.
func NewCandidateIndex(records []*AnnotatedRecord, cfg *Config) *CandidateIndex {
	idx := &CandidateIndex{
		buckets:      make(map[bucketKey][]*AnnotatedRecord),
		width:        cfg.DateWindow(),
		amountRadius: amountRadiusFor(cfg.AmountEpsilon),
	}

	for _, ar := range records {
		switch ar.Record.Direction() {
		case models.DirectionOutgoing:
			idx.Outgoing = append(idx.Outgoing, ar)
		case models.DirectionIncoming:
			idx.Incoming = append(idx.Incoming, ar)
			key := idx.keyFor(ar.Record.AbsoluteAmount(), ar.Record.Date)
			idx.buckets[key] = append(idx.buckets[key], ar)
		}
	}

	return idx
}

// keyFor computes the bucket cell for an amount/date combination.
func (ci *CandidateIndex) keyFor(amount decimal.Decimal, date time.Time) bucketKey {
	return bucketKey{
		window: date.UTC().Unix() / int64(ci.width/time.Second),
		amount: amount.Abs().Round(0).IntPart(),
	}
}

// IncomingNear returns incoming records whose amount and date fall in the
// neighborhood of the given target: the adjacent date buckets crossed with
// the amount buckets reachable within the configured epsilon. Callers still
// apply the precise epsilon and window checks; the neighborhood only bounds
// the search. Iteration order is fixed, so results are deterministic for
// identical input order.
func (ci *CandidateIndex) IncomingNear(amount decimal.Decimal, date time.Time) []*AnnotatedRecord {
	center := ci.keyFor(amount, date)

	var result []*AnnotatedRecord
	for dw := int64(-1); dw <= 1; dw++ {
		for da := -ci.amountRadius; da <= ci.amountRadius; da++ {
			key := bucketKey{window: center.window + dw, amount: center.amount + da}
			result = append(result, ci.buckets[key]...)
		}
	}

	return result
}

// amountRadiusFor sizes the amount-bucket neighborhood so every pair the
// epsilon accepts lands within it. Buckets are whole units, so the radius is
// the epsilon rounded up, never below one (rounding alone can shift adjacent
// amounts into neighboring buckets).
func amountRadiusFor(epsilon decimal.Decimal) int64 {
	radius := epsilon.Ceil().IntPart()
	if radius < 1 {
		radius = 1
	}
	return radius
}

// IndexStats provides statistics about index shape, used for debug logging.
type IndexStats struct {
	OutgoingCount int
	IncomingCount int
	BucketCount   int
}

// Stats returns statistics about the index.
func (ci *CandidateIndex) Stats() IndexStats {
	return IndexStats{
		OutgoingCount: len(ci.Outgoing),
		IncomingCount: len(ci.Incoming),
		BucketCount:   len(ci.buckets),
	}
}
