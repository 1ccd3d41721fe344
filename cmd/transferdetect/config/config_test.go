package config

import (
	"os"
	"path/filepath"
	"testing"

	"transfer-detection-service/internal/reporter"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "banks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	return path
}

func TestLoadBankRules(t *testing.T) {
	path := writeRulesFile(t, `
banks:
  wise:
    - template: "Sent money to {name}"
  alfalah:
    - template: "Outgoing fund transfer to {name}"
      strip:
        - " - Internet Banking"
`)

	rules, err := LoadBankRules(path)
	if err != nil {
		t.Fatalf("LoadBankRules() error: %v", err)
	}

	if len(rules) != 2 {
		t.Fatalf("loaded %d banks, want 2", len(rules))
	}

	wise := rules["wise"]
	if len(wise) != 1 || wise[0].Template != "Sent money to {name}" {
		t.Errorf("wise rules = %+v", wise)
	}

	alfalah := rules["alfalah"]
	if len(alfalah) != 1 {
		t.Fatalf("Alfalah rules = %+v", alfalah)
	}
	if len(alfalah[0].Strip) != 1 || alfalah[0].Strip[0] != " - Internet Banking" {
		t.Errorf("Alfalah strip = %+v", alfalah[0].Strip)
	}
}

func TestLoadBankRulesEmptyPath(t *testing.T) {
	rules, err := LoadBankRules("")
	if err != nil {
		t.Fatalf("LoadBankRules(\"\") error: %v", err)
	}
	if rules == nil || len(rules) != 0 {
		t.Errorf("empty path should yield an empty rule set, got %+v", rules)
	}
}

func TestLoadBankRulesMissingFile(t *testing.T) {
	if _, err := LoadBankRules("/nonexistent/banks.yaml"); err == nil {
		t.Error("missing rules file should be an error")
	}
}

func TestCreateMatchingConfigProfiles(t *testing.T) {
	tests := []struct {
		profile string
		wantErr bool
	}{
		{"default", false},
		{"", false},
		{"strict", false},
		{"relaxed", false},
		{"bogus", true},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			_, err := CreateMatchingConfig(MatchingOptions{Profile: tt.profile})
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateMatchingConfig(%q) error = %v, wantErr %v", tt.profile, err, tt.wantErr)
			}
		})
	}
}

func TestCreateMatchingConfigOverrides(t *testing.T) {
	cfg, err := CreateMatchingConfig(MatchingOptions{
		Profile:                  "default",
		DateToleranceHours:       120,
		AmountOnlyToleranceHours: 48,
		ConfirmationThreshold:    0.80,
		TransferCategory:         "Internal Transfer",
	})
	if err != nil {
		t.Fatalf("CreateMatchingConfig() error: %v", err)
	}

	if cfg.DateToleranceHours != 120 {
		t.Errorf("DateToleranceHours = %d, want 120", cfg.DateToleranceHours)
	}
	if cfg.ConfirmationThreshold != 0.80 {
		t.Errorf("ConfirmationThreshold = %.2f, want 0.80", cfg.ConfirmationThreshold)
	}
	if cfg.TransferCategory != "Internal Transfer" {
		t.Errorf("TransferCategory = %q, want Internal Transfer", cfg.TransferCategory)
	}

	// Unset options keep the profile's values.
	if cfg.DeclaredExchangeFloor != 0.85 {
		t.Errorf("DeclaredExchangeFloor = %.2f, want profile default 0.85", cfg.DeclaredExchangeFloor)
	}
}

func TestCreateMatchingConfigRejectsInvalidCombination(t *testing.T) {
	// Amount-only window wider than the general window fails validation.
	_, err := CreateMatchingConfig(MatchingOptions{
		Profile:                  "default",
		DateToleranceHours:       24,
		AmountOnlyToleranceHours: 48,
	})
	if err == nil {
		t.Error("expected validation error for inconsistent windows")
	}
}

func TestCreateReportConfig(t *testing.T) {
	console := CreateReportConfig("console", true)
	if console.Format != reporter.FormatConsole {
		t.Errorf("Format = %s, want console", console.Format)
	}
	if !console.IncludeReasons {
		t.Error("IncludeReasons should be set")
	}

	jsonCfg := CreateReportConfig("json", false)
	if jsonCfg.UseColors {
		t.Error("non-console formats must not use colors")
	}
}
