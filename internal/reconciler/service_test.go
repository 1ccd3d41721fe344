package reconciler

import (
	"context"
	"testing"
	"time"

	"transfer-detection-service/internal/extract"
	"transfer-detection-service/internal/matcher"
	"transfer-detection-service/internal/models"
	apperrors "transfer-detection-service/pkg/errors"
	"transfer-detection-service/pkg/logger"

	"github.com/shopspring/decimal"
)

func testRules() extract.RuleSet {
	return extract.RuleSet{
		"Wise": {
			{Template: "Sent money to {name}"},
		},
		"Alfalah": {
			{Template: "Incoming fund transfer from {name}"},
		},
	}
}

func newTestService(t *testing.T, cfg *matcher.Config) *TransferService {
	t.Helper()

	svc, err := NewTransferService(cfg, testRules(), logger.Discard())
	if err != nil {
		t.Fatalf("NewTransferService() error: %v", err)
	}
	return svc
}

func record(id string, date time.Time, amount float64, currency string) *models.TransactionRecord {
	return models.NewTransactionRecord(id, date, decimal.NewFromFloat(amount), currency)
}

func detect(t *testing.T, svc *TransferService, req *DetectionRequest) *models.TransferAnalysis {
	t.Helper()

	analysis, err := svc.Detect(context.Background(), req)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	return analysis
}

// TestDetectCrossCurrencyViaDeclaredExchange reproduces the canonical case
// the exchange strategy exists for: a USD payment whose bank-declared
// conversion pairs it with a PKR deposit a day later, with no usable name
// match because the receiving bank prints the name differently.
func TestDetectCrossCurrencyViaDeclaredExchange(t *testing.T) {
	out := record("W1", time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC), -181.26, "USD")
	out.Account = "Wise"
	out.Description = "Sent money to Ammar Qazi"
	declared := decimal.NewFromInt(50000)
	out.ExchangeToAmount = &declared
	out.ExchangeToCurrency = "PKR"

	inc := record("A1", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), 50000.00, "PKR")
	inc.Account = "Alfalah"
	inc.Description = "Funds received via IBFT"

	svc := newTestService(t, nil)
	analysis := detect(t, svc, &DetectionRequest{Records: []*models.TransactionRecord{out, inc}})

	if len(analysis.ConfirmedPairs) != 1 {
		t.Fatalf("confirmed = %d, want 1", len(analysis.ConfirmedPairs))
	}

	pair := analysis.ConfirmedPairs[0]
	if pair.Strategy != models.StrategyExchangeAmount {
		t.Errorf("Strategy = %s, want %s", pair.Strategy, models.StrategyExchangeAmount)
	}
	if pair.Confidence < 0.85 {
		t.Errorf("Confidence = %.3f, want >= 0.85 for a declared conversion", pair.Confidence)
	}
	if pair.Outgoing.RecordID != "W1" || pair.Incoming.RecordID != "A1" {
		t.Errorf("paired %s -> %s, want W1 -> A1", pair.Outgoing.RecordID, pair.Incoming.RecordID)
	}

	// Both legs carry the category label afterwards.
	if out.Category != svc.Config().TransferCategory {
		t.Errorf("outgoing category = %q, want %q", out.Category, svc.Config().TransferCategory)
	}
	if inc.Category != svc.Config().TransferCategory {
		t.Errorf("incoming category = %q, want %q", inc.Category, svc.Config().TransferCategory)
	}
}

func TestDetectNameExtractionPairsLegs(t *testing.T) {
	out := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -500.00, "EUR")
	out.Account = "Wise"
	out.Description = "Sent money to Surraiya Riaz"

	inc := record("A1", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), 500.00, "EUR")
	inc.Account = "Alfalah"
	inc.Description = "Incoming fund transfer from SURRAIYA RIAZ"

	analysis := detect(t, newTestService(t, nil),
		&DetectionRequest{Records: []*models.TransactionRecord{out, inc}})

	if len(analysis.ConfirmedPairs) != 1 {
		t.Fatalf("confirmed = %d, want 1", len(analysis.ConfirmedPairs))
	}

	pair := analysis.ConfirmedPairs[0]
	if pair.Strategy != models.StrategyNameAmount {
		t.Errorf("Strategy = %s, want %s", pair.Strategy, models.StrategyNameAmount)
	}
}

func TestDetectPreExtractedCounterpartyWins(t *testing.T) {
	// A counterparty supplied upstream takes precedence over the description,
	// which would extract a different name here.
	out := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -500.00, "EUR")
	out.Account = "Wise"
	out.Description = "Sent money to Some Intermediary Ltd"
	out.Counterparty = "Surraiya Riaz"

	inc := record("A1", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), 500.00, "EUR")
	inc.Account = "Alfalah"
	inc.Counterparty = "surraiya riaz"

	analysis := detect(t, newTestService(t, nil),
		&DetectionRequest{Records: []*models.TransactionRecord{out, inc}})

	if len(analysis.ConfirmedPairs) != 1 {
		t.Fatalf("confirmed = %d, want 1", len(analysis.ConfirmedPairs))
	}
	if analysis.ConfirmedPairs[0].Strategy != models.StrategyNameAmount {
		t.Errorf("Strategy = %s, want %s",
			analysis.ConfirmedPairs[0].Strategy, models.StrategyNameAmount)
	}
}

func TestDetectEmptyInput(t *testing.T) {
	analysis := detect(t, newTestService(t, nil), &DetectionRequest{})

	if len(analysis.ConfirmedPairs) != 0 || len(analysis.PotentialPairs) != 0 || len(analysis.Conflicts) != 0 {
		t.Error("empty input should yield an empty analysis")
	}
	if analysis.Summary.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0", analysis.Summary.TotalRecords)
	}
}

func TestDetectNilRequest(t *testing.T) {
	svc := newTestService(t, nil)

	if _, err := svc.Detect(context.Background(), nil); err == nil {
		t.Error("nil request should be rejected")
	}
}

func TestDetectSkipsUnusableRecords(t *testing.T) {
	good := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -500.00, "EUR")
	good.Account = "Wise"

	zeroAmount := record("Z1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 0, "EUR")
	noDate := record("Z2", time.Time{}, 100.00, "EUR")

	analysis := detect(t, newTestService(t, nil), &DetectionRequest{
		Records: []*models.TransactionRecord{good, zeroAmount, noDate, nil},
	})

	if analysis.Summary.SkippedRecords != 3 {
		t.Errorf("SkippedRecords = %d, want 3", analysis.Summary.SkippedRecords)
	}
	if analysis.Summary.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d, want 4", analysis.Summary.TotalRecords)
	}
	if analysis.Summary.OutgoingCount != 1 {
		t.Errorf("OutgoingCount = %d, want 1", analysis.Summary.OutgoingCount)
	}
}

func TestDetectConflictSurfacing(t *testing.T) {
	// Two identical payments to John Smith compete for a single deposit.
	out1 := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -500.00, "EUR")
	out1.Account = "Wise"
	out1.Description = "Sent money to John Smith"

	out2 := record("W2", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), -500.00, "EUR")
	out2.Account = "Wise"
	out2.Description = "Sent money to John Smith"

	inc := record("A1", time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), 500.00, "EUR")
	inc.Account = "Alfalah"
	inc.Description = "Incoming fund transfer from John Smith"

	analysis := detect(t, newTestService(t, nil), &DetectionRequest{
		Records: []*models.TransactionRecord{out1, out2, inc},
	})

	if len(analysis.ConfirmedPairs) != 1 {
		t.Fatalf("confirmed = %d, want 1", len(analysis.ConfirmedPairs))
	}
	if analysis.ConfirmedPairs[0].Outgoing.RecordID != "W1" {
		t.Errorf("winner = %s, want W1 (closer date)", analysis.ConfirmedPairs[0].Outgoing.RecordID)
	}

	if len(analysis.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(analysis.Conflicts))
	}
	if analysis.Conflicts[0].Outgoing.RecordID != "W2" {
		t.Errorf("conflicted = %s, want W2", analysis.Conflicts[0].Outgoing.RecordID)
	}

	// The losing payment keeps its original category: only confirmed legs
	// are labeled.
	if out2.Category != "" {
		t.Errorf("conflicted leg category = %q, want empty", out2.Category)
	}
}

func TestDetectManualConfirmationBelowThreshold(t *testing.T) {
	out := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -250.00, "EUR")
	inc := record("A1", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), 250.00, "EUR")

	req := &DetectionRequest{
		Records: []*models.TransactionRecord{out, inc},
		Manual:  []models.ManualConfirmation{{OutgoingID: "W1", IncomingID: "A1"}},
	}

	svc := newTestService(t, nil)
	analysis := detect(t, svc, req)

	if len(analysis.ConfirmedPairs) != 1 {
		t.Fatalf("confirmed = %d, want 1", len(analysis.ConfirmedPairs))
	}
	if !analysis.ConfirmedPairs[0].ManuallyConfirmed {
		t.Error("pair should be marked manually confirmed")
	}
	if analysis.Summary.ManualConfirmations != 1 {
		t.Errorf("ManualConfirmations = %d, want 1", analysis.Summary.ManualConfirmations)
	}

	// Manual confirmation categorizes the legs like any other confirmation.
	if out.Category != svc.Config().TransferCategory {
		t.Errorf("outgoing category = %q, want %q", out.Category, svc.Config().TransferCategory)
	}
}

func TestDetectAmountOnlyStaysPotential(t *testing.T) {
	out := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -250.00, "EUR")
	inc := record("A1", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), 250.00, "EUR")

	analysis := detect(t, newTestService(t, nil), &DetectionRequest{
		Records: []*models.TransactionRecord{out, inc},
	})

	if len(analysis.ConfirmedPairs) != 0 {
		t.Errorf("confirmed = %d, want 0 (bare amounts never auto-confirm)", len(analysis.ConfirmedPairs))
	}
	if len(analysis.PotentialPairs) != 1 {
		t.Fatalf("potential = %d, want 1", len(analysis.PotentialPairs))
	}
	if !analysis.PotentialPairs[0].NeedsReview {
		t.Error("amount-only pair should be flagged for review")
	}
	if analysis.Summary.FlaggedForReview != 1 {
		t.Errorf("FlaggedForReview = %d, want 1", analysis.Summary.FlaggedForReview)
	}
}

func TestDetectDeterministicAcrossRuns(t *testing.T) {
	build := func() []*models.TransactionRecord {
		out1 := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -500.00, "EUR")
		out1.Account = "Wise"
		out1.Description = "Sent money to John Smith"

		out2 := record("W2", time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC), -500.00, "EUR")
		out2.Account = "Wise"
		out2.Description = "Sent money to John Smith"

		inc1 := record("A1", time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), 500.00, "EUR")
		inc1.Account = "Alfalah"
		inc1.Description = "Incoming fund transfer from John Smith"

		inc2 := record("A2", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), 500.00, "EUR")
		inc2.Account = "Alfalah"
		inc2.Description = "Incoming fund transfer from John Smith"

		return []*models.TransactionRecord{out1, out2, inc1, inc2}
	}

	svc := newTestService(t, nil)

	first := detect(t, svc, &DetectionRequest{Records: build()})
	second := detect(t, svc, &DetectionRequest{Records: build()})

	if len(first.ConfirmedPairs) != len(second.ConfirmedPairs) {
		t.Fatalf("confirmed counts differ: %d vs %d",
			len(first.ConfirmedPairs), len(second.ConfirmedPairs))
	}

	for i := range first.ConfirmedPairs {
		a, b := first.ConfirmedPairs[i], second.ConfirmedPairs[i]
		if a.Outgoing.RecordID != b.Outgoing.RecordID || a.Incoming.RecordID != b.Incoming.RecordID {
			t.Errorf("pair %d differs between identical runs: %s vs %s", i, a, b)
		}
	}
}

func TestDetectExclusivityInvariant(t *testing.T) {
	// A dense cluster of same-amount transfers; however they pair off, no
	// record may appear in two confirmed pairs.
	var records []*models.TransactionRecord
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		out := record(string(rune('A'+i))+"-out", base.Add(time.Duration(i)*time.Hour), -100.00, "EUR")
		out.Counterparty = "John Smith"
		inc := record(string(rune('A'+i))+"-in", base.Add(time.Duration(i+1)*time.Hour), 100.00, "EUR")
		inc.Counterparty = "John Smith"
		records = append(records, out, inc)
	}

	analysis := detect(t, newTestService(t, nil), &DetectionRequest{Records: records})

	seen := make(map[string]bool)
	for _, pair := range analysis.ConfirmedPairs {
		if seen[pair.Outgoing.RecordID] || seen[pair.Incoming.RecordID] {
			t.Fatalf("record claimed by two confirmed pairs: %s", pair)
		}
		seen[pair.Outgoing.RecordID] = true
		seen[pair.Incoming.RecordID] = true
	}
}

func TestDetectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := record("W1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), -500.00, "EUR")
	inc := record("A1", time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), 500.00, "EUR")

	svc := newTestService(t, nil)
	_, err := svc.Detect(ctx, &DetectionRequest{Records: []*models.TransactionRecord{out, inc}})

	if err == nil {
		t.Fatal("cancelled context should abort detection")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryDetection) {
		t.Errorf("expected a detection-category error, got %v", err)
	}
}

func TestNewTransferServiceValidatesConfig(t *testing.T) {
	cfg := matcher.DefaultConfig()
	cfg.ConfirmationThreshold = 1.5

	if _, err := NewTransferService(cfg, nil, logger.Discard()); err == nil {
		t.Error("invalid configuration should be rejected")
	}
	if _, err := NewTransferService(cfg, nil, logger.Discard()); !apperrors.IsCategory(err, apperrors.CategoryConfiguration) {
		t.Error("expected a configuration-category error")
	}
}

func TestConfigReturnsCopy(t *testing.T) {
	svc := newTestService(t, nil)

	cfg := svc.Config()
	cfg.DateToleranceHours = 1

	if svc.Config().DateToleranceHours == 1 {
		t.Error("Config() must return a copy, not the live configuration")
	}
}
