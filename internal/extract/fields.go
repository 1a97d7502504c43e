package extract

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fields is the partial record found in one document's text. Absent values
// are zero; build it with a Builder.
type Fields struct {
	vendorName  string
	txDate      time.Time
	amount      decimal.NullDecimal
	currency    string
	category    string
	periodStart time.Time
	periodEnd   time.Time
	rawText     string
}

func (f Fields) VendorName() string { return f.vendorName }

// TransactionDate reports the date and whether one was found.
func (f Fields) TransactionDate() (time.Time, bool) { return f.txDate, !f.txDate.IsZero() }

// Amount reports the amount and whether one was found.
func (f Fields) Amount() (decimal.Decimal, bool) { return f.amount.Decimal, f.amount.Valid }

func (f Fields) Currency() string { return f.currency }

// CategoryName is empty when the document is uncategorized.
func (f Fields) CategoryName() string { return f.category }

// BillingPeriod returns both ends or reports false; never one without the other.
func (f Fields) BillingPeriod() (start, end time.Time, ok bool) {
	if f.periodStart.IsZero() || f.periodEnd.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return f.periodStart, f.periodEnd, true
}

func (f Fields) RawText() string { return f.rawText }

// Builder accumulates fields during one extraction. It is not shared.
type Builder struct {
	f Fields
}

func NewBuilder(rawText string) *Builder {
	return &Builder{f: Fields{rawText: rawText}}
}

func (b *Builder) Vendor(name string) *Builder {
	b.f.vendorName = name
	return b
}

func (b *Builder) TransactionDate(t time.Time) *Builder {
	b.f.txDate = dateOnly(t)
	return b
}

func (b *Builder) Amount(d decimal.Decimal) *Builder {
	b.f.amount = decimal.NewNullDecimal(d)
	return b
}

func (b *Builder) Currency(code string) *Builder {
	b.f.currency = code
	return b
}

func (b *Builder) Category(name string) *Builder {
	b.f.category = name
	return b
}

// BillingPeriod sets both ends, or neither when either is missing or the
// range is inverted.
func (b *Builder) BillingPeriod(start, end time.Time) *Builder {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		b.f.periodStart, b.f.periodEnd = time.Time{}, time.Time{}
		return b
	}
	b.f.periodStart, b.f.periodEnd = dateOnly(start), dateOnly(end)
	return b
}

// Build returns the accumulated value. Later builder calls do not affect it.
func (b *Builder) Build() Fields {
	return b.f
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
