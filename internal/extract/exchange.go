package extract

import (
	"regexp"

	"transfer-detection-service/internal/models"

	"github.com/shopspring/decimal"
)

// ExchangeSource tells where normalized conversion data came from. The
// confidence calculator trusts bank-declared fields more than values parsed
// out of description text.
type ExchangeSource int

const (
	// SourceDeclared means the record carried structured
	// exchange_to_amount/exchange_to_currency fields.
	SourceDeclared ExchangeSource = iota
	// SourceDerived means the values were parsed from description text.
	SourceDerived
)

// String returns the string representation of ExchangeSource.
func (s ExchangeSource) String() string {
	if s == SourceDeclared {
		return "declared"
	}
	return "derived"
}

// ExchangeInfo is the normalized (amount, currency) a transaction became
// after conversion.
type ExchangeInfo struct {
	Amount   decimal.Decimal
	Currency string
	Source   ExchangeSource
}

// convertedPattern matches conversion notes like
// "Converted 181.26 USD to 50,000 PKR" in description text.
var convertedPattern = regexp.MustCompile(
	`(?i)\bconverted\s+([0-9][0-9.,]*)\s*([A-Za-z]{3})\s+to\s+([0-9][0-9.,]*)\s*([A-Za-z]{3})`)

// AnalyzeExchange returns the normalized conversion attached to a record, or
// nil when no conversion applies. Structured fields are preferred; text
// extraction is the lower-trust fallback.
func AnalyzeExchange(rec *models.TransactionRecord) *ExchangeInfo {
	if rec == nil {
		return nil
	}

	if rec.HasDeclaredExchange() {
		return &ExchangeInfo{
			Amount:   rec.ExchangeToAmount.Abs(),
			Currency: models.NormalizeCurrency(rec.ExchangeToCurrency),
			Source:   SourceDeclared,
		}
	}

	return analyzeDescription(rec.Description)
}

// analyzeDescription extracts conversion data from free text. Numeric
// values are expected in canonical decimal form; thousands separators are
// tolerated the same way the models helpers tolerate them.
func analyzeDescription(description string) *ExchangeInfo {
	m := convertedPattern.FindStringSubmatch(description)
	if m == nil {
		return nil
	}

	amount, err := models.ParseDecimalFromString(m[3])
	if err != nil || amount.IsZero() {
		return nil
	}

	return &ExchangeInfo{
		Amount:   amount.Abs(),
		Currency: models.NormalizeCurrency(m[4]),
		Source:   SourceDerived,
	}
}
