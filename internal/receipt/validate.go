package receipt

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/extract"
)

// Field names reported in validation failures.
const (
	FieldVendorName         = "vendor_name"
	FieldTransactionDate    = "transaction_date"
	FieldAmount             = "amount"
	FieldBillingPeriodStart = "billing_period_start"
	FieldBillingPeriodEnd   = "billing_period_end"
)

// ManualEntry is a receipt typed in by hand; every value arrives as a string.
type ManualEntry struct {
	VendorName         string
	TransactionDate    string
	Amount             string
	Currency           string
	CategoryName       string
	BillingPeriodStart string
	BillingPeriodEnd   string
	RawText            string
}

var reAmountNoise = regexp.MustCompile(`(?i)[$€£₹¥\s]|\brs\.?`)

// Validator turns extracted fields into a Record or reports every violation at once.
type Validator struct {
	defaultCurrency string
	schema          *jsonschema.Schema
	logger          *slog.Logger
}

// NewValidator builds a Validator. An unknown default currency falls back to USD.
func NewValidator(defaultCurrency string, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileRecordSchema()
	if err != nil {
		return nil, common.NewAppError("RECORD_SCHEMA", err.Error(), common.ErrInternal)
	}
	def := strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if !knownCurrency(def) {
		def = money.USD
	}
	return &Validator{defaultCurrency: def, schema: schema, logger: logger}, nil
}

// Validate checks fields produced by the extractor.
func (v *Validator) Validate(f extract.Fields) (Record, error) {
	check := common.NewValidator()

	vendor := extract.NormalizeVendor(f.VendorName())
	check.Field(FieldVendorName, vendor, common.Required)

	date, hasDate := f.TransactionDate()
	if !hasDate {
		check.Add(FieldTransactionDate, common.MissingRequiredField, nil, "is required")
	}

	currency := v.currencyOrDefault(f.Currency())
	raw, hasAmount := f.Amount()
	amount := raw.Round(fractionOf(currency))
	switch {
	case !hasAmount:
		check.Add(FieldAmount, common.MissingRequiredField, nil, "is required")
	case !raw.IsPositive():
		check.Add(FieldAmount, common.MalformedAmount, raw.String(), "must be greater than zero")
	case !amount.IsPositive():
		check.Add(FieldAmount, common.MalformedAmount, raw.String(), "rounds to zero in "+currency)
	}

	if err := check.Err(); err != nil {
		v.logger.Debug("extracted fields rejected", "fields", check.Errors().Fields())
		return Record{}, err
	}

	start, end, _ := f.BillingPeriod()
	return v.finish(Record{
		vendorName:  vendor,
		txDate:      date,
		amount:      amount,
		currency:    currency,
		category:    strings.TrimSpace(f.CategoryName()),
		periodStart: start,
		periodEnd:   end,
		rawText:     f.RawText(),
	})
}

// ValidateManual checks a hand-entered receipt, coercing each string value.
func (v *Validator) ValidateManual(in ManualEntry) (Record, error) {
	check := common.NewValidator()

	vendor := extract.NormalizeVendor(in.VendorName)
	check.Field(FieldVendorName, vendor, common.Required, common.MaxLength(200))

	date, _ := v.manualDate(check, FieldTransactionDate, in.TransactionDate, true)

	currency := v.currencyOrDefault(in.Currency)
	var amount decimal.Decimal
	rawAmount := strings.TrimSpace(in.Amount)
	if rawAmount == "" {
		check.Add(FieldAmount, common.MissingRequiredField, nil, "is required")
	} else if d, ok := extract.ParseAmount(reAmountNoise.ReplaceAllString(rawAmount, "")); !ok {
		check.Add(FieldAmount, common.MalformedAmount, rawAmount, "is not a number")
	} else if !d.IsPositive() {
		check.Add(FieldAmount, common.MalformedAmount, rawAmount, "must be greater than zero")
	} else if amount = d.Round(fractionOf(currency)); !amount.IsPositive() {
		check.Add(FieldAmount, common.MalformedAmount, rawAmount, "rounds to zero in "+currency)
	}

	start, hasStart := v.manualDate(check, FieldBillingPeriodStart, in.BillingPeriodStart, false)
	end, hasEnd := v.manualDate(check, FieldBillingPeriodEnd, in.BillingPeriodEnd, false)
	switch {
	case hasStart != hasEnd:
		if strings.TrimSpace(in.BillingPeriodStart) == "" {
			check.Add(FieldBillingPeriodStart, common.MissingRequiredField, nil, "is required when billing_period_end is set")
		} else if strings.TrimSpace(in.BillingPeriodEnd) == "" {
			check.Add(FieldBillingPeriodEnd, common.MissingRequiredField, nil, "is required when billing_period_start is set")
		}
	case hasStart && end.Before(start):
		check.Add(FieldBillingPeriodEnd, common.InvalidValue, in.BillingPeriodEnd, "must not precede billing_period_start")
	}

	if err := check.Err(); err != nil {
		return Record{}, err
	}

	r := Record{
		vendorName: vendor,
		txDate:     date,
		amount:     amount,
		currency:   currency,
		category:   strings.TrimSpace(in.CategoryName),
		rawText:    in.RawText,
	}
	if hasStart {
		r.periodStart, r.periodEnd = start, end
	}
	return v.finish(r)
}

func (v *Validator) manualDate(check *common.Validator, field, raw string, required bool) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			check.Add(field, common.MissingRequiredField, nil, "is required")
		}
		return time.Time{}, false
	}
	t, ok := extract.ParseDate(raw)
	if !ok {
		check.Add(field, common.MalformedDate, raw, "is not a recognizable date")
		return time.Time{}, false
	}
	return t, true
}

func (v *Validator) finish(r Record) (Record, error) {
	if err := checkShape(v.schema, r); err != nil {
		return Record{}, common.NewAppError("RECORD_SHAPE", err.Error(), common.ErrInternal)
	}
	return r, nil
}

func (v *Validator) currencyOrDefault(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if knownCurrency(code) {
		return code
	}
	if code != "" {
		v.logger.Debug("unknown currency replaced with default", "currency", code, "default", v.defaultCurrency)
	}
	return v.defaultCurrency
}

// DefaultCurrency is the code used when a document carries none.
func (v *Validator) DefaultCurrency() string { return v.defaultCurrency }

func knownCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return money.GetCurrency(code) != nil
}

func fractionOf(code string) int32 {
	if c := money.GetCurrency(code); c != nil {
		return int32(c.Fraction)
	}
	return 2
}
