// Package loader reads already-cleaned transaction records in the
// normalized layout produced by the upstream parsing pipeline. It is the
// host-side boundary to that collaborator: a fixed header, canonical decimal
// numbers and ISO-ish dates. Encoding detection, per-bank column mapping and
// bank auto-detection all happen upstream, never here.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"transfer-detection-service/internal/models"
	apperrors "transfer-detection-service/pkg/errors"
	"transfer-detection-service/pkg/logger"
)

// Required and optional columns of the normalized record layout.
var (
	requiredColumns = []string{"date", "amount", "currency"}
	knownColumns    = []string{
		"id", "date", "amount", "currency", "description", "note",
		"account", "exchange_to_amount", "exchange_to_currency", "counterparty",
	}
)

// RecordLoader reads normalized transaction records from CSV files.
type RecordLoader struct {
	log logger.Logger
}

// New creates a record loader.
func New(log logger.Logger) *RecordLoader {
	if log == nil {
		log = logger.Discard()
	}
	return &RecordLoader{log: log.WithComponent("loader")}
}

// LoadFiles reads every file in order and concatenates the records.
// Records missing an explicit id get one derived from file and line so
// manual confirmations can reference them.
func (l *RecordLoader) LoadFiles(paths []string) ([]*models.TransactionRecord, error) {
	var all []*models.TransactionRecord

	for _, path := range paths {
		records, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	return all, nil
}

// LoadFile reads one normalized CSV file.
func (l *RecordLoader) LoadFile(path string) ([]*models.TransactionRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, apperrors.Wrap(err, apperrors.CategoryFile, apperrors.CodeFileNotFound,
			fmt.Sprintf("cannot open %s", path))
	}
	defer file.Close()

	return l.load(path, file)
}

func (l *RecordLoader) load(path string, r io.Reader) ([]*models.TransactionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 1, "cannot read header", err)
	}

	columns, err := mapHeader(path, header)
	if err != nil {
		return nil, err
	}

	var records []*models.TransactionRecord
	line := 1
	for {
		line++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, line, "malformed row", err)
		}

		rec, err := l.parseRow(path, line, columns, row)
		if err != nil {
			// Unusable rows are reported but never abort the load; the
			// engine applies the same skip-and-warn policy.
			l.log.WithError(err).WithFields(logger.Fields{
				"file": path,
				"line": line,
			}).Warn("skipping unparseable record")
			continue
		}

		records = append(records, rec)
	}

	l.log.WithFields(logger.Fields{
		"file":    path,
		"records": len(records),
	}).Debug("loaded normalized records")

	return records, nil
}

// mapHeader resolves column positions and verifies required columns exist.
func mapHeader(path string, header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, apperrors.ParseError(apperrors.CodeMissingColumn, path, 1,
				fmt.Sprintf("missing required column %q", required), nil)
		}
	}

	return columns, nil
}

// parseRow converts one CSV row into a TransactionRecord.
func (l *RecordLoader) parseRow(path string, line int, columns map[string]int, row []string) (*models.TransactionRecord, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	date, err := models.ParseDateWithFormats(field("date"))
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	amount, err := models.ParseDecimalFromString(field("amount"))
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	id := field("id")
	if id == "" {
		id = fmt.Sprintf("%s:%d", path, line)
	}

	rec := models.NewTransactionRecord(id, date, amount, field("currency"))
	rec.Description = field("description")
	rec.Note = field("note")
	rec.Account = field("account")
	rec.Counterparty = field("counterparty")

	if raw := field("exchange_to_amount"); raw != "" {
		exAmount, err := models.ParseDecimalFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid exchange amount: %w", err)
		}
		rec.ExchangeToAmount = &exAmount
		rec.ExchangeToCurrency = models.NormalizeCurrency(field("exchange_to_currency"))
	}

	return rec, nil
}

// KnownColumns returns the full normalized layout, for help output.
func KnownColumns() []string {
	out := make([]string, len(knownColumns))
	copy(out, knownColumns)
	return out
}
