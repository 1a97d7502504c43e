package receipt

import (
	"encoding/json"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Record is a validated receipt. It can only be produced by Validator, so a
// Record in hand always has a vendor, a date, a positive amount and a known currency.
type Record struct {
	vendorName  string
	txDate      time.Time
	amount      decimal.Decimal
	currency    string
	category    string
	periodStart time.Time
	periodEnd   time.Time
	rawText     string
}

func (r Record) VendorName() string { return r.vendorName }
func (r Record) TransactionDate() time.Time { return r.txDate }
func (r Record) Amount() decimal.Decimal { return r.amount }
func (r Record) Currency() string { return r.currency }
func (r Record) CategoryName() string { return r.category }
func (r Record) RawText() string { return r.rawText }
func (r Record) HasBillingPeriod() bool { return !r.periodStart.IsZero() && !r.periodEnd.IsZero() }
func (r Record) BillingPeriod() (time.Time, time.Time) { return r.periodStart, r.periodEnd }

// FormattedAmount renders the amount with the currency's minor units.
func (r Record) FormattedAmount() string {
	fraction := int32(2)
	if c := money.GetCurrency(r.currency); c != nil {
		fraction = int32(c.Fraction)
	}
	return r.amount.StringFixed(fraction)
}

type recordJSON struct {
	VendorName         string `json:"vendor_name"`
	TransactionDate    string `json:"transaction_date"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	CategoryName       string `json:"category_name,omitempty"`
	BillingPeriodStart string `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   string `json:"billing_period_end,omitempty"`
	RawText            string `json:"raw_text"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		VendorName:      r.vendorName,
		TransactionDate: r.txDate.Format(dateLayout),
		Amount:          r.FormattedAmount(),
		Currency:        r.currency,
		CategoryName:    r.category,
		RawText:         r.rawText,
	}
	if r.HasBillingPeriod() {
		out.BillingPeriodStart = r.periodStart.Format(dateLayout)
		out.BillingPeriodEnd = r.periodEnd.Format(dateLayout)
	}
	return json.Marshal(out)
}
