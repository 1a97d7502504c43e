package receipt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/extract"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator("usd", nil)
	require.NoError(t, err)
	return v
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func violations(t *testing.T, err error) common.ValidationErrors {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	var ve common.ValidationErrors
	require.True(t, errors.As(err, &ve))
	return ve
}

func TestValidateCompleteFields(t *testing.T) {
	v := newValidator(t)
	f := extract.NewBuilder("raw").
		Vendor("testshop").
		TransactionDate(day(2023, 1, 15)).
		Amount(decimal.RequireFromString("100")).
		Currency("usd").
		Category("Groceries").
		Build()

	rec, err := v.Validate(f)
	require.NoError(t, err)
	assert.Equal(t, "Testshop", rec.VendorName())
	assert.Equal(t, day(2023, 1, 15), rec.TransactionDate())
	assert.True(t, decimal.RequireFromString("100").Equal(rec.Amount()))
	assert.Equal(t, "USD", rec.Currency())
	assert.Equal(t, "Groceries", rec.CategoryName())
	assert.Equal(t, "raw", rec.RawText())
	assert.False(t, rec.HasBillingPeriod())
	assert.Equal(t, "100.00", rec.FormattedAmount())
}

func TestValidateMissingAmount(t *testing.T) {
	v := newValidator(t)
	f := extract.NewBuilder("x").Vendor("Shop").TransactionDate(day(2023, 1, 1)).Build()

	_, err := v.Validate(f)
	ve := violations(t, err)
	require.Len(t, ve, 1)
	assert.Equal(t, FieldAmount, ve[0].Field)
	assert.Equal(t, common.MissingRequiredField, ve[0].Kind)
}

func TestValidateAggregatesViolations(t *testing.T) {
	v := newValidator(t)
	f := extract.NewBuilder("x").Amount(decimal.NewFromInt(5)).Build()

	_, err := v.Validate(f)
	ve := violations(t, err)
	assert.True(t, ve.Has(FieldVendorName))
	assert.True(t, ve.Has(FieldTransactionDate))
	assert.False(t, ve.Has(FieldAmount))
}

func TestValidateNonPositiveAmount(t *testing.T) {
	v := newValidator(t)
	f := extract.NewBuilder("x").
		Vendor("Shop").
		TransactionDate(day(2023, 1, 1)).
		Amount(decimal.Zero).
		Build()

	_, err := v.Validate(f)
	ve := violations(t, err)
	require.Len(t, ve, 1)
	assert.Equal(t, common.MalformedAmount, ve[0].Kind)
}

func TestValidateAmountRoundingToZero(t *testing.T) {
	v := newValidator(t)
	f := extract.NewBuilder("x").
		Vendor("Shop").
		TransactionDate(day(2023, 1, 1)).
		Amount(decimal.RequireFromString("0.004")).
		Currency("USD").
		Build()

	_, err := v.Validate(f)
	ve := violations(t, err)
	require.Len(t, ve, 1)
	assert.Equal(t, FieldAmount, ve[0].Field)
	assert.Equal(t, common.MalformedAmount, ve[0].Kind)

	_, err = v.ValidateManual(ManualEntry{VendorName: "Shop", TransactionDate: "2023-01-01", Amount: "0.4", Currency: "JPY"})
	ve = violations(t, err)
	require.Len(t, ve, 1)
	assert.Equal(t, common.MalformedAmount, ve[0].Kind)

	rec, err := v.ValidateManual(ManualEntry{VendorName: "Shop", TransactionDate: "2023-01-01", Amount: "0.6", Currency: "JPY"})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(rec.Amount()))
}

func TestValidateCurrencyFallback(t *testing.T) {
	v, err := NewValidator("eur", nil)
	require.NoError(t, err)
	assert.Equal(t, "EUR", v.DefaultCurrency())

	for _, code := range []string{"", "ZZZ", "DOLLARS", "u$d"} {
		f := extract.NewBuilder("x").
			Vendor("Shop").
			TransactionDate(day(2023, 1, 1)).
			Amount(decimal.NewFromInt(1)).
			Currency(code).
			Build()
		rec, err := v.Validate(f)
		require.NoError(t, err, code)
		assert.Equal(t, "EUR", rec.Currency(), code)
	}

	bad, err := NewValidator("nope", nil)
	require.NoError(t, err)
	assert.Equal(t, "USD", bad.DefaultCurrency())
}

func TestValidateKeepsBillingPeriod(t *testing.T) {
	v := newValidator(t)
	f := extract.NewBuilder("x").
		Vendor("Power Co").
		TransactionDate(day(2023, 2, 5)).
		Amount(decimal.RequireFromString("80.5")).
		BillingPeriod(day(2023, 1, 1), day(2023, 1, 31)).
		Build()

	rec, err := v.Validate(f)
	require.NoError(t, err)
	require.True(t, rec.HasBillingPeriod())
	start, end := rec.BillingPeriod()
	assert.Equal(t, day(2023, 1, 1), start)
	assert.Equal(t, day(2023, 1, 31), end)
}

func TestValidateManual(t *testing.T) {
	v := newValidator(t)

	rec, err := v.ValidateManual(ManualEntry{
		VendorName:      "  corner   deli ",
		TransactionDate: "15/01/2023",
		Amount:          "€1.250,50",
		Currency:        "eur",
		CategoryName:    "Dining",
	})
	require.NoError(t, err)
	assert.Equal(t, "Corner Deli", rec.VendorName())
	assert.Equal(t, day(2023, 1, 15), rec.TransactionDate())
	assert.True(t, decimal.RequireFromString("1250.50").Equal(rec.Amount()))
	assert.Equal(t, "EUR", rec.Currency())
	assert.Equal(t, "Dining", rec.CategoryName())

	rec, err = v.ValidateManual(ManualEntry{
		VendorName:         "Grid",
		TransactionDate:    "2023-03-02",
		Amount:             "Rs. 499",
		Currency:           "INR",
		BillingPeriodStart: "2023-02-01",
		BillingPeriodEnd:   "2023-02-28",
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(499).Equal(rec.Amount()))
	assert.True(t, rec.HasBillingPeriod())
}

func TestValidateManualViolations(t *testing.T) {
	v := newValidator(t)

	_, err := v.ValidateManual(ManualEntry{
		TransactionDate: "not a date",
		Amount:          "twelve",
	})
	ve := violations(t, err)
	kinds := map[string]common.ViolationKind{}
	for _, e := range ve {
		kinds[e.Field] = e.Kind
	}
	assert.Equal(t, common.MissingRequiredField, kinds[FieldVendorName])
	assert.Equal(t, common.MalformedDate, kinds[FieldTransactionDate])
	assert.Equal(t, common.MalformedAmount, kinds[FieldAmount])

	_, err = v.ValidateManual(ManualEntry{
		VendorName:         "Grid",
		TransactionDate:    "2023-03-02",
		Amount:             "10",
		BillingPeriodStart: "2023-02-01",
	})
	ve = violations(t, err)
	assert.Equal(t, []string{FieldBillingPeriodEnd}, ve.Fields())

	_, err = v.ValidateManual(ManualEntry{
		VendorName:         "Grid",
		TransactionDate:    "2023-03-02",
		Amount:             "10",
		BillingPeriodStart: "2023-02-28",
		BillingPeriodEnd:   "2023-02-01",
	})
	ve = violations(t, err)
	assert.Equal(t, common.InvalidValue, ve[0].Kind)

	_, err = v.ValidateManual(ManualEntry{VendorName: "Grid", TransactionDate: "2023-03-02", Amount: "0"})
	ve = violations(t, err)
	assert.Equal(t, common.MalformedAmount, ve[0].Kind)
}

func TestRecordJSON(t *testing.T) {
	v := newValidator(t)
	f := extract.NewBuilder("TOTAL 5").
		Vendor("Shop").
		TransactionDate(day(2023, 1, 2)).
		Amount(decimal.NewFromInt(5)).
		Currency("JPY").
		Build()
	rec, err := v.Validate(f)
	require.NoError(t, err)

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Shop", got["vendor_name"])
	assert.Equal(t, "2023-01-02", got["transaction_date"])
	assert.Equal(t, "5", got["amount"])
	assert.Equal(t, "JPY", got["currency"])
	assert.Equal(t, "TOTAL 5", got["raw_text"])
	assert.NotContains(t, got, "category_name")
	assert.NotContains(t, got, "billing_period_start")
}
