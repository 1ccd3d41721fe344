// Package models defines the core data types shared by the transfer
// detection engine: cleaned transaction records, transfer candidates with
// their status lifecycle, and the analysis result returned per request.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferDirection classifies which leg of a transfer a record represents.
type TransferDirection string

const (
	// DirectionOutgoing marks records with a negative amount (money leaving).
	DirectionOutgoing TransferDirection = "OUTGOING"
	// DirectionIncoming marks records with a positive amount (money arriving).
	DirectionIncoming TransferDirection = "INCOMING"
	// DirectionNone marks records that cannot participate in matching.
	DirectionNone TransferDirection = "NONE"
)

// TransactionRecord is one cleaned bank-statement row as supplied by the
// upstream parsing layer. The engine treats every field except Category as
// read-only; Category is the single mutation written back by the categorizer.
//
// The amount sign encodes direction within the statement's own convention:
// negative amounts are outgoing, positive amounts are incoming.
type TransactionRecord struct {
	// RecordID uniquely identifies the record within one request. It is
	// assigned upstream and used to reference legs in manual confirmations.
	RecordID string `json:"record_id"`

	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Note        string          `json:"note"`

	// Account is the bank/account label the record came from. It selects
	// which name-extraction patterns apply.
	Account string `json:"account"`

	// ExchangeToAmount and ExchangeToCurrency carry bank-declared conversion
	// data for foreign-currency transactions, when present.
	ExchangeToAmount   *decimal.Decimal `json:"exchange_to_amount,omitempty"`
	ExchangeToCurrency string           `json:"exchange_to_currency,omitempty"`

	// Counterparty is an optional pre-extracted counterparty name supplied
	// upstream. When set it takes precedence over pattern extraction.
	Counterparty string `json:"counterparty,omitempty"`

	// Category is written by the categorizer on confirmed transfer legs.
	Category string `json:"category,omitempty"`
}

// NewTransactionRecord creates a TransactionRecord with the required fields.
func NewTransactionRecord(id string, date time.Time, amount decimal.Decimal, currency string) *TransactionRecord {
	return &TransactionRecord{
		RecordID: id,
		Date:     date,
		Amount:   amount,
		Currency: NormalizeCurrency(currency),
	}
}

// Direction returns which matching pool the record belongs to.
func (r *TransactionRecord) Direction() TransferDirection {
	switch {
	case r.Amount.IsNegative():
		return DirectionOutgoing
	case r.Amount.IsPositive():
		return DirectionIncoming
	default:
		return DirectionNone
	}
}

// IsOutgoing reports whether the record is an outgoing leg (amount < 0).
func (r *TransactionRecord) IsOutgoing() bool {
	return r.Amount.IsNegative()
}

// IsIncoming reports whether the record is an incoming leg (amount > 0).
func (r *TransactionRecord) IsIncoming() bool {
	return r.Amount.IsPositive()
}

// AbsoluteAmount returns the unsigned transaction amount.
func (r *TransactionRecord) AbsoluteAmount() decimal.Decimal {
	return r.Amount.Abs()
}

// HasDeclaredExchange reports whether the record carries bank-declared
// conversion fields.
func (r *TransactionRecord) HasDeclaredExchange() bool {
	return r.ExchangeToAmount != nil && strings.TrimSpace(r.ExchangeToCurrency) != ""
}

// Usable reports whether the record can participate in matching at all.
// Records without a date or with a zero amount are excluded from the pools.
func (r *TransactionRecord) Usable() bool {
	return !r.Date.IsZero() && !r.Amount.IsZero()
}

// Validate performs basic validation on the TransactionRecord.
func (r *TransactionRecord) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("record %s: date cannot be zero", r.RecordID)
	}

	if r.Amount.IsZero() {
		return fmt.Errorf("record %s: amount cannot be zero", r.RecordID)
	}

	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("record %s: currency cannot be empty", r.RecordID)
	}

	if r.ExchangeToAmount != nil && strings.TrimSpace(r.ExchangeToCurrency) == "" {
		return fmt.Errorf("record %s: exchange amount without exchange currency", r.RecordID)
	}

	return nil
}

// String returns a compact representation for logs and test failures.
func (r *TransactionRecord) String() string {
	return fmt.Sprintf("TransactionRecord{ID: %s, Amount: %s %s, Date: %s, Account: %s}",
		r.RecordID, r.Amount.String(), r.Currency, r.Date.Format("2006-01-02"), r.Account)
}

// CandidateStatus tracks a transfer candidate through the resolution
// lifecycle. Confirmed and conflicted are terminal within a single run.
type CandidateStatus string

const (
	// StatusCandidate is the initial state of every strategy hit. Candidates
	// below the confirmation threshold remain in this state and are surfaced
	// as potential pairs.
	StatusCandidate CandidateStatus = "candidate"
	// StatusConfirmed marks the unique winning pair for both of its legs.
	StatusConfirmed CandidateStatus = "confirmed"
	// StatusConflicted marks a candidate that lost one of its legs to a
	// higher-confidence pair, or tied ambiguously. Surfaced for review,
	// never silently discarded.
	StatusConflicted CandidateStatus = "conflicted"
	// StatusRejected is reserved for the manual-review layer; the engine
	// itself never produces it.
	StatusRejected CandidateStatus = "rejected"
)

// IsValid checks if the candidate status is one of the known states.
func (s CandidateStatus) IsValid() bool {
	switch s {
	case StatusCandidate, StatusConfirmed, StatusConflicted, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status admits no further transition
// within one run.
func (s CandidateStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusConflicted
}

// String returns the string representation of CandidateStatus.
func (s CandidateStatus) String() string {
	return string(s)
}

// MatchStrategy identifies which matching strategy produced a candidate.
type MatchStrategy string

const (
	// StrategyExchangeAmount matches via bank-declared (or text-derived)
	// conversion data. Highest trust: the bank itself stated the converted
	// amount and currency.
	StrategyExchangeAmount MatchStrategy = "exchange_amount"
	// StrategyNameAmount matches on counterparty name plus amount.
	StrategyNameAmount MatchStrategy = "name_amount"
	// StrategyAmountOnly is the fallback on bare amounts within a tighter
	// date window. Always low confidence and flagged for review.
	StrategyAmountOnly MatchStrategy = "amount_only"
	// StrategyManual marks pairs confirmed by explicit user approval that
	// had no engine-produced candidate.
	StrategyManual MatchStrategy = "manual"
)

// Priority returns the execution/trust order of the strategy. Lower values
// run first and win dedup ties.
func (ms MatchStrategy) Priority() int {
	switch ms {
	case StrategyManual:
		return 0
	case StrategyExchangeAmount:
		return 1
	case StrategyNameAmount:
		return 2
	case StrategyAmountOnly:
		return 3
	default:
		return 99
	}
}

// String returns the string representation of MatchStrategy.
func (ms MatchStrategy) String() string {
	return string(ms)
}

// TransferCandidate pairs exactly one outgoing and one incoming record that
// may represent the two legs of a single money transfer.
type TransferCandidate struct {
	Outgoing *TransactionRecord `json:"outgoing"`
	Incoming *TransactionRecord `json:"incoming"`

	Strategy   MatchStrategy   `json:"strategy"`
	Confidence float64         `json:"confidence"`
	Status     CandidateStatus `json:"status"`

	// ManuallyConfirmed is set when the pair was confirmed by explicit user
	// approval rather than by scoring.
	ManuallyConfirmed bool `json:"manually_confirmed"`

	// NeedsReview flags weak-evidence candidates (amount-only fallback) for
	// manual inspection regardless of their resolution outcome.
	NeedsReview bool `json:"needs_review"`

	// Reasons lists human-readable evidence collected during scoring.
	Reasons []string `json:"reasons,omitempty"`
}

// Validate checks structural invariants of the candidate: an outgoing leg
// with a negative amount, an incoming leg with a positive amount, and a
// confidence inside [0,1].
func (c *TransferCandidate) Validate() error {
	if c.Outgoing == nil || c.Incoming == nil {
		return fmt.Errorf("transfer candidate must reference both legs")
	}

	if !c.Outgoing.IsOutgoing() {
		return fmt.Errorf("outgoing leg %s has non-negative amount %s",
			c.Outgoing.RecordID, c.Outgoing.Amount.String())
	}

	if !c.Incoming.IsIncoming() {
		return fmt.Errorf("incoming leg %s has non-positive amount %s",
			c.Incoming.RecordID, c.Incoming.Amount.String())
	}

	if c.Confidence < 0.0 || c.Confidence > 1.0 {
		return fmt.Errorf("confidence %f outside [0,1]", c.Confidence)
	}

	if !c.Status.IsValid() {
		return fmt.Errorf("invalid candidate status: %s", c.Status)
	}

	return nil
}

// String returns a compact representation for logs and test failures.
func (c *TransferCandidate) String() string {
	return fmt.Sprintf("TransferCandidate{%s -> %s, strategy: %s, confidence: %.2f, status: %s}",
		c.Outgoing.RecordID, c.Incoming.RecordID, c.Strategy, c.Confidence, c.Status)
}

// ManualConfirmation references a pair of legs the user approved for
// confirmation regardless of computed confidence.
type ManualConfirmation struct {
	OutgoingID string `json:"outgoing_id"`
	IncomingID string `json:"incoming_id"`
}

// AnalysisSummary provides aggregate statistics about one detection run.
type AnalysisSummary struct {
	TotalRecords   int `json:"total_records"`
	SkippedRecords int `json:"skipped_records"`
	OutgoingCount  int `json:"outgoing_count"`
	IncomingCount  int `json:"incoming_count"`

	PairsFound          int `json:"pairs_found"`
	PotentialPairs      int `json:"potential_pairs"`
	Conflicts           int `json:"conflicts"`
	FlaggedForReview    int `json:"flagged_for_review"`
	ManualConfirmations int `json:"manual_confirmations"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// TransferAnalysis is the immutable result of one detection request:
// confirmed pairs, still-open potential pairs, surfaced conflicts and the
// summary counts. It is computed fresh per request and never persisted.
type TransferAnalysis struct {
	ConfirmedPairs []*TransferCandidate `json:"confirmed_pairs"`
	PotentialPairs []*TransferCandidate `json:"potential_pairs"`
	Conflicts      []*TransferCandidate `json:"conflicts"`
	Summary        AnalysisSummary      `json:"summary"`
	ProcessedAt    time.Time            `json:"processed_at"`
}

// EmptyAnalysis returns a zeroed analysis for requests with no usable input.
func EmptyAnalysis() *TransferAnalysis {
	return &TransferAnalysis{
		ConfirmedPairs: []*TransferCandidate{},
		PotentialPairs: []*TransferCandidate{},
		Conflicts:      []*TransferCandidate{},
		ProcessedAt:    time.Now(),
	}
}

// Utility functions for parsing normalized upstream values

// ParseDecimalFromString parses a decimal value from string, tolerating
// currency symbols and thousands separators left over from upstream.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDateWithFormats attempts to parse a date from string using the
// formats commonly seen in cleaned statement exports.
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02.01.2006",
		"01/02/2006",
		"2006/01/02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// NormalizeCurrency canonicalizes a currency code for comparison.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SameCurrency compares two currency codes ignoring case and whitespace.
func SameCurrency(a, b string) bool {
	return NormalizeCurrency(a) == NormalizeCurrency(b)
}
