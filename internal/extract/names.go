// Package extract annotates transaction records with evidence used by the
// matching strategies: counterparty names pulled from free-text descriptions
// via declarative per-bank patterns, and normalized foreign-exchange data.
package extract

import (
	"regexp"
	"strings"

	"transfer-detection-service/pkg/logger"
)

// namePlaceholder marks where the counterparty name sits inside a template.
const namePlaceholder = "{name}"

// NamePattern is one declarative extraction rule for a bank. The template is
// a regular expression in which the {name} placeholder is replaced by a
// capture group, so plain literal templates like
// "Outgoing fund transfer to {name}" work without any regex knowledge.
//
// Strip lists literal fragments removed from the description before the
// template is applied, for banks that append boilerplate after the name.
type NamePattern struct {
	Template string   `json:"template" yaml:"template" mapstructure:"template"`
	Strip    []string `json:"strip,omitempty" yaml:"strip,omitempty" mapstructure:"strip"`
}

// RuleSet maps a bank/account label to its ordered extraction patterns.
// Labels compare case-insensitively; configuration loaders are free to fold
// key case. Rules are plain data loaded once per request; there are no
// bank-specific code branches anywhere in the engine.
type RuleSet map[string][]NamePattern

// compiledPattern pairs a pattern with its compiled matcher. re is nil when
// the template failed to compile; the extractor then skips the pattern.
type compiledPattern struct {
	pattern NamePattern
	re      *regexp.Regexp
}

// NameExtractor extracts counterparty names from transaction descriptions
// using the per-bank patterns of a RuleSet. Patterns that fail to compile
// are logged once at construction and treated as no-match afterwards; a bad
// pattern never aborts a detection run.
type NameExtractor struct {
	patterns map[string][]compiledPattern
	log      logger.Logger
}

// NewNameExtractor compiles the rule set into an extractor.
func NewNameExtractor(rules RuleSet, log logger.Logger) *NameExtractor {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("name-extractor")

	compiled := make(map[string][]compiledPattern, len(rules))
	for bank, patterns := range rules {
		entries := make([]compiledPattern, 0, len(patterns))
		for _, p := range patterns {
			re, err := compileTemplate(p.Template)
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{
					"bank":     bank,
					"template": p.Template,
				}).Warn("skipping malformed name pattern")
				re = nil
			}
			entries = append(entries, compiledPattern{pattern: p, re: re})
		}
		compiled[strings.ToLower(bank)] = entries
	}

	return &NameExtractor{patterns: compiled, log: log}
}

// compileTemplate turns a {name} template into a case-insensitive regexp.
// Everything outside the placeholder is regular expression syntax, so rule
// authors can use alternations or character classes when a bank's wording
// varies.
func compileTemplate(template string) (*regexp.Regexp, error) {
	if !strings.Contains(template, namePlaceholder) {
		return nil, &MissingPlaceholderError{Template: template}
	}

	expr := strings.Replace(template, namePlaceholder, "(.+)", 1)
	return regexp.Compile("(?i)" + expr)
}

// MissingPlaceholderError reports a template without a {name} placeholder.
type MissingPlaceholderError struct {
	Template string
}

func (e *MissingPlaceholderError) Error() string {
	return "name pattern template has no {name} placeholder: " + e.Template
}

// Extract returns the counterparty name extracted from description using the
// patterns of the given bank, or "" when no pattern matches. Patterns are
// tried in configuration order; the first match wins.
func (ne *NameExtractor) Extract(bank, description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}

	for _, cp := range ne.patterns[strings.ToLower(bank)] {
		if cp.re == nil {
			continue
		}

		cleaned := description
		for _, strip := range cp.pattern.Strip {
			cleaned = strings.ReplaceAll(cleaned, strip, "")
		}

		if m := cp.re.FindStringSubmatch(cleaned); len(m) > 1 {
			name := strings.TrimSpace(m[1])
			if name != "" {
				return name
			}
		}
	}

	return ""
}

// HasRules reports whether any patterns are configured for the bank.
// Without rules the name-based strategy is skipped for that bank's records.
func (ne *NameExtractor) HasRules(bank string) bool {
	return len(ne.patterns[strings.ToLower(bank)]) > 0
}

// NormalizeName folds case and collapses whitespace so names extracted from
// differently formatted descriptions compare equal.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// SameCounterparty compares two extracted names after normalization.
// Empty names never match anything.
func SameCounterparty(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	return na != "" && na == nb
}
