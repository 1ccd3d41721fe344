package errors

import (
	"fmt"
	"testing"
)

func TestDetectionErrorMessage(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "file not found: data.csv")
	if err.Error() != "file not found: data.csv" {
		t.Errorf("Error() = %q", err.Error())
	}

	err.WithSuggestion("check the path")
	if err.Error() != "file not found: data.csv (suggestion: check the path)" {
		t.Errorf("Error() with suggestion = %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(cause, CategoryParse, CodeInvalidFormat, "parse failed")

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the wrapped cause")
	}

	if Wrap(nil, CategoryParse, CodeInvalidFormat, "parse failed") != nil {
		t.Error("wrapping nil should yield nil")
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryDetection, 5},
		{CategoryInternal, 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, CodeUnexpectedError, "test")
			if got := err.GetExitCode(); got != tt.expected {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeFromPlainError(t *testing.T) {
	if got := GetExitCode(fmt.Errorf("plain error")); got != 1 {
		t.Errorf("GetExitCode(plain) = %d, want 1", got)
	}
	if got := GetExitCode(FileError(CodeFileNotFound, "x.csv", nil)); got != 2 {
		t.Errorf("GetExitCode(file error) = %d, want 2", got)
	}
}

func TestGetExitCodeUnwrapsWrappedErrors(t *testing.T) {
	inner := ParseError(CodeMissingColumn, "x.csv", 1, "missing column", nil)
	outer := fmt.Errorf("loading input: %w", inner)

	if got := GetExitCode(outer); got != 3 {
		t.Errorf("GetExitCode(wrapped) = %d, want 3", got)
	}
}

func TestIsCategory(t *testing.T) {
	err := ConfigError(CodeInvalidConfig, "bad threshold", nil)

	if !IsCategory(err, CategoryConfiguration) {
		t.Error("IsCategory should match the error's category")
	}
	if IsCategory(err, CategoryFile) {
		t.Error("IsCategory should not match a different category")
	}
	if IsCategory(fmt.Errorf("plain"), CategoryFile) {
		t.Error("plain errors belong to no category")
	}
}

func TestParseErrorContext(t *testing.T) {
	err := ParseError(CodeInvalidFormat, "data.csv", 42, "malformed row", nil)

	if err.Context["file"] != "data.csv" {
		t.Errorf("context file = %v, want data.csv", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("context line = %v, want 42", err.Context["line"])
	}
	if err.Suggestion == "" {
		t.Error("parse errors should carry a suggestion")
	}
}

func TestPatternError(t *testing.T) {
	err := PatternError("Wise", "bad (template {name}", fmt.Errorf("missing closing )"))

	if err.Category != CategoryConfiguration {
		t.Errorf("Category = %s, want configuration", err.Category)
	}
	if err.Code != CodeInvalidPattern {
		t.Errorf("Code = %s, want invalid_pattern", err.Code)
	}
	if err.Context["bank"] != "Wise" {
		t.Errorf("context bank = %v, want Wise", err.Context["bank"])
	}
}
