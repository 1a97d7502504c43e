package extract

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	// DefaultCurrency applies when the text carries no currency indicator; default "USD".
	DefaultCurrency string
	// AmountCeiling is the largest plausible amount; default 1,000,000.
	AmountCeiling float64
	// Categories overrides the keyword table.
	Categories *CategoryTable
}

var minPlausibleAmount = decimal.New(1, -2)

// Extractor turns document text into Fields with ordered rule lists.
// It holds no per-document state and is safe for concurrent use.
type Extractor struct {
	defaultCurrency string
	ceiling         decimal.Decimal

	amountRules   []AmountRule
	dateRules     []DateRule
	vendorRules   []VendorRule
	categoryRules []CategoryRule

	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.AmountCeiling <= 0 {
		cfg.AmountCeiling = 1_000_000
	}
	return &Extractor{
		defaultCurrency: strings.ToUpper(cfg.DefaultCurrency),
		ceiling:         decimal.NewFromFloat(cfg.AmountCeiling),
		amountRules:     DefaultAmountRules(),
		dateRules:       DefaultDateRules(),
		vendorRules:     DefaultVendorRules(),
		categoryRules:   DefaultCategoryRules(cfg.Categories),
		logger:          logger,
	}
}

// DefaultCurrency is the code used when none is found.
func (e *Extractor) DefaultCurrency() string { return e.defaultCurrency }

// Extract never fails; fields it cannot find are left absent.
func (e *Extractor) Extract(text string) Fields {
	b := NewBuilder(text)

	c, found := e.findAmount(text)
	currency := c.Currency
	if currency == "" {
		currency = detectCurrency(text)
	}
	if currency == "" {
		currency = e.defaultCurrency
	}
	if found {
		b.Amount(roundToCurrency(c.Value, currency))
	}
	b.Currency(currency)

	for _, r := range e.dateRules {
		if t, ok := r.FindDate(text); ok {
			b.TransactionDate(t)
			e.logger.Debug("date matched", "rule", r.Name())
			break
		}
	}

	vendor := ""
	for _, r := range e.vendorRules {
		if v, ok := r.FindVendor(text); ok {
			vendor = NormalizeVendor(v)
			b.Vendor(vendor)
			e.logger.Debug("vendor matched", "rule", r.Name())
			break
		}
	}

	for _, r := range e.categoryRules {
		if c, ok := r.FindCategory(text, vendor); ok {
			b.Category(c)
			e.logger.Debug("category matched", "rule", r.Name(), "category", c)
			break
		}
	}

	if start, end, ok := findBillingPeriod(text); ok {
		b.BillingPeriod(start, end)
	}

	f := b.Build()
	_, hasAmount := f.Amount()
	_, hasDate := f.TransactionDate()
	e.logger.Debug("fields extracted",
		"has_amount", hasAmount,
		"has_date", hasDate,
		"has_vendor", f.VendorName() != "",
		"currency", f.Currency(),
		"category", f.CategoryName(),
	)
	return f
}

// findAmount walks the rules in order and returns the first plausible candidate.
func (e *Extractor) findAmount(text string) (AmountCandidate, bool) {
	for _, r := range e.amountRules {
		for _, c := range r.Candidates(text) {
			if c.Value.LessThan(minPlausibleAmount) || c.Value.GreaterThan(e.ceiling) {
				e.logger.Debug("discarding implausible amount", "rule", r.Name(), "value", c.Value.String())
				continue
			}
			e.logger.Debug("amount matched", "rule", r.Name(), "value", c.Value.String())
			return c, true
		}
	}
	return AmountCandidate{}, false
}
