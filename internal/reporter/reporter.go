// Package reporter renders a TransferAnalysis for the export/UI layer.
//
// Supported output formats:
//   - Console: human-readable, optionally colorized
//   - JSON: structured data for programmatic consumption
//   - CSV: flat pair listing for spreadsheet applications
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"transfer-detection-service/internal/models"

	"github.com/fatih/color"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Config holds configuration options for report generation.
type Config struct {
	Format OutputFormat `json:"format"`

	IncludePotential bool `json:"include_potential"`
	IncludeConflicts bool `json:"include_conflicts"`
	IncludeReasons   bool `json:"include_reasons"`

	// Console options
	UseColors bool `json:"use_colors"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultConfig returns a default report configuration.
func DefaultConfig() *Config {
	return &Config{
		Format:           FormatConsole,
		IncludePotential: true,
		IncludeConflicts: true,
		IncludeReasons:   false,
		UseColors:        true,
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration.
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// Generator renders transfer analyses in the configured format.
type Generator struct {
	config *Config
}

// NewGenerator creates a report generator with the given configuration.
func NewGenerator(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &Generator{config: config}, nil
}

// Generate writes the analysis to the writer in the configured format.
func (g *Generator) Generate(analysis *models.TransferAnalysis, w io.Writer) error {
	if analysis == nil {
		return fmt.Errorf("transfer analysis cannot be nil")
	}

	switch g.config.Format {
	case FormatConsole:
		return g.generateConsole(analysis, w)
	case FormatJSON:
		return g.generateJSON(analysis, w)
	case FormatCSV:
		return g.generateCSV(analysis, w)
	default:
		return fmt.Errorf("unsupported output format: %s", g.config.Format)
	}
}

func (g *Generator) generateConsole(analysis *models.TransferAnalysis, w io.Writer) error {
	green := g.sprint(color.FgGreen)
	yellow := g.sprint(color.FgYellow)
	red := g.sprint(color.FgRed)

	fmt.Fprintf(w, "TRANSFER DETECTION REPORT\n")
	fmt.Fprintf(w, "Generated: %s\n\n", analysis.ProcessedAt.Format(time.RFC3339))

	s := analysis.Summary
	fmt.Fprintf(w, "=== SUMMARY ===\n")
	fmt.Fprintf(w, "Records processed:    %d (skipped: %d)\n", s.TotalRecords, s.SkippedRecords)
	fmt.Fprintf(w, "Outgoing / incoming:  %d / %d\n", s.OutgoingCount, s.IncomingCount)
	fmt.Fprintf(w, "Confirmed pairs:      %s\n", green(strconv.Itoa(s.PairsFound)))
	fmt.Fprintf(w, "Potential pairs:      %s\n", yellow(strconv.Itoa(s.PotentialPairs)))
	fmt.Fprintf(w, "Conflicts:            %s\n", red(strconv.Itoa(s.Conflicts)))
	fmt.Fprintf(w, "Flagged for review:   %d\n", s.FlaggedForReview)
	fmt.Fprintf(w, "Manual confirmations: %d\n", s.ManualConfirmations)
	fmt.Fprintf(w, "Processing time:      %v\n\n", s.ProcessingDuration)

	if len(analysis.ConfirmedPairs) > 0 {
		fmt.Fprintf(w, "=== CONFIRMED PAIRS ===\n")
		for _, pair := range analysis.ConfirmedPairs {
			g.printPair(w, pair, green)
		}
		fmt.Fprintf(w, "\n")
	}

	if g.config.IncludePotential && len(analysis.PotentialPairs) > 0 {
		fmt.Fprintf(w, "=== POTENTIAL PAIRS (below threshold) ===\n")
		for _, pair := range analysis.PotentialPairs {
			g.printPair(w, pair, yellow)
		}
		fmt.Fprintf(w, "\n")
	}

	if g.config.IncludeConflicts && len(analysis.Conflicts) > 0 {
		fmt.Fprintf(w, "=== CONFLICTS (need review) ===\n")
		for _, pair := range analysis.Conflicts {
			g.printPair(w, pair, red)
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}

// sprint returns a colorizer for the attribute, or identity when colors are
// disabled.
func (g *Generator) sprint(attr color.Attribute) func(...interface{}) string {
	if !g.config.UseColors {
		return fmt.Sprint
	}
	return color.New(attr).SprintFunc()
}

func (g *Generator) printPair(w io.Writer, pair *models.TransferCandidate, paint func(...interface{}) string) {
	flags := ""
	if pair.ManuallyConfirmed {
		flags += " [manual]"
	}
	if pair.NeedsReview {
		flags += " [review]"
	}

	fmt.Fprintf(w, "  %s  %s %s (%s) -> %s %s (%s)  conf=%.2f strategy=%s%s\n",
		paint(pair.Status.String()),
		pair.Outgoing.Amount.String(), pair.Outgoing.Currency, pair.Outgoing.RecordID,
		pair.Incoming.Amount.String(), pair.Incoming.Currency, pair.Incoming.RecordID,
		pair.Confidence, pair.Strategy, flags)

	if g.config.IncludeReasons {
		for _, reason := range pair.Reasons {
			fmt.Fprintf(w, "      - %s\n", reason)
		}
	}
}

func (g *Generator) generateJSON(analysis *models.TransferAnalysis, w io.Writer) error {
	view := struct {
		*models.TransferAnalysis
		PotentialPairs []*models.TransferCandidate `json:"potential_pairs"`
		Conflicts      []*models.TransferCandidate `json:"conflicts"`
	}{
		TransferAnalysis: analysis,
		PotentialPairs:   analysis.PotentialPairs,
		Conflicts:        analysis.Conflicts,
	}

	if !g.config.IncludePotential {
		view.PotentialPairs = []*models.TransferCandidate{}
	}
	if !g.config.IncludeConflicts {
		view.Conflicts = []*models.TransferCandidate{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}

func (g *Generator) generateCSV(analysis *models.TransferAnalysis, w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = g.config.CSVDelimiter
	defer writer.Flush()

	if g.config.CSVHeaders {
		header := []string{
			"status", "strategy", "confidence",
			"outgoing_id", "outgoing_amount", "outgoing_currency", "outgoing_date",
			"incoming_id", "incoming_amount", "incoming_currency", "incoming_date",
			"manual", "needs_review",
		}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	rows := make([]*models.TransferCandidate, 0,
		len(analysis.ConfirmedPairs)+len(analysis.PotentialPairs)+len(analysis.Conflicts))
	rows = append(rows, analysis.ConfirmedPairs...)
	if g.config.IncludePotential {
		rows = append(rows, analysis.PotentialPairs...)
	}
	if g.config.IncludeConflicts {
		rows = append(rows, analysis.Conflicts...)
	}

	for _, pair := range rows {
		row := []string{
			pair.Status.String(),
			pair.Strategy.String(),
			strconv.FormatFloat(pair.Confidence, 'f', 2, 64),
			pair.Outgoing.RecordID,
			pair.Outgoing.Amount.String(),
			pair.Outgoing.Currency,
			pair.Outgoing.Date.Format("2006-01-02"),
			pair.Incoming.RecordID,
			pair.Incoming.Amount.String(),
			pair.Incoming.Currency,
			pair.Incoming.Date.Format("2006-01-02"),
			strconv.FormatBool(pair.ManuallyConfirmed),
			strconv.FormatBool(pair.NeedsReview),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return writer.Error()
}
