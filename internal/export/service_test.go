package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-parser/internal/entity"
)

type fakeLister struct {
	recs     []*entity.Receipt
	err      error
	from, to *time.Time
}

func (f *fakeLister) ListReceipts(_ context.Context, _ uuid.UUID, from, to *time.Time) ([]*entity.Receipt, error) {
	f.from, f.to = from, to
	return f.recs, f.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleReceipts() []*entity.Receipt {
	start, end := day(2023, 1, 1), day(2023, 1, 31)
	return []*entity.Receipt{
		{
			VendorName:       "Fresh Mart",
			CategoryName:     "Groceries",
			TransactionDate:  day(2023, 1, 15),
			Amount:           decimal.RequireFromString("12.5"),
			Currency:         "USD",
			OriginalFilename: "a.txt",
			FileLocation:     "ab/abc.txt",
		},
		{
			VendorName:         "City Power",
			TransactionDate:    day(2023, 2, 3),
			Amount:             decimal.NewFromInt(1500),
			Currency:           "JPY",
			OriginalFilename:   "bill.pdf",
			BillingPeriodStart: &start,
			BillingPeriodEnd:   &end,
		},
	}
}

func TestExportCSV(t *testing.T) {
	svc := NewService(&fakeLister{recs: sampleReceipts()}, nil)

	out, err := svc.ExportReceiptsCSV(context.Background(), uuid.New(), nil, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "transaction_date,vendor,category,amount,currency,billing_period,original_filename,file_location", lines[0])
	assert.Equal(t, "2023-01-15,Fresh Mart,Groceries,12.50,USD,,a.txt,ab/abc.txt", lines[1])
	assert.Equal(t, "2023-02-03,City Power,,1500,JPY,2023-01-01 to 2023-01-31,bill.pdf,", lines[2])
}

func TestExportXLSX(t *testing.T) {
	svc := NewService(&fakeLister{recs: sampleReceipts()}, nil)

	out, err := svc.ExportReceiptsXLSX(context.Background(), uuid.New(), nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "Fresh Mart", rows[1][1])
	assert.Equal(t, "12.50", rows[1][3])
	assert.Equal(t, "2023-01-01 to 2023-01-31", rows[2][5])
}

func TestExportWindow(t *testing.T) {
	lister := &fakeLister{}
	svc := NewService(lister, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 18, 45, 0, 0, time.UTC) }

	from := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	_, err := svc.Rows(context.Background(), uuid.New(), &from, nil)
	require.NoError(t, err)
	require.NotNil(t, lister.from)
	require.NotNil(t, lister.to)
	assert.Equal(t, day(2024, 6, 1), *lister.from)
	assert.Equal(t, day(2024, 6, 30), *lister.to)

	_, err = svc.Rows(context.Background(), uuid.New(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, lister.from)
	assert.Nil(t, lister.to)
}

func TestExportListFailure(t *testing.T) {
	svc := NewService(&fakeLister{err: errors.New("db down")}, nil)
	_, err := svc.ExportReceiptsCSV(context.Background(), uuid.New(), nil, nil)
	assert.ErrorContains(t, err, "db down")
}
