package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/extract"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "receipts.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.HealthCheck(ctx, time.Second))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type recordFields struct {
	vendor   string
	date     time.Time
	amount   string
	category string
}

func makeRecord(t *testing.T, s recordFields) receipt.Record {
	t.Helper()
	v, err := receipt.NewValidator("USD", nil)
	require.NoError(t, err)
	b := extract.NewBuilder("raw " + s.vendor).
		Vendor(s.vendor).
		TransactionDate(s.date).
		Amount(decimal.RequireFromString(s.amount)).
		Category(s.category)
	rec, err := v.Validate(b.Build())
	require.NoError(t, err)
	return rec
}

func newOwner(t *testing.T, db *DB, name string) *entity.Owner {
	t.Helper()
	o, err := NewOwnerRepository(db, nil).GetOrCreateByName(context.Background(), name, "usd")
	require.NoError(t, err)
	return o
}

func TestOwnerGetOrCreate(t *testing.T) {
	db := openTestDB(t)
	repo := NewOwnerRepository(db, nil)
	ctx := context.Background()

	a, err := repo.GetOrCreateByName(ctx, "Alice", "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", a.DefaultCurrency)

	b, err := repo.GetOrCreateByName(ctx, "  alice ", "eur")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = repo.GetOrCreateByName(ctx, " ", "usd")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestReceiptSaveMatchesReferencesCaseInsensitively(t *testing.T) {
	db := openTestDB(t)
	owner := newOwner(t, db, "alice")
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	first, err := repo.Save(ctx, SaveReceiptRequest{
		OwnerID:          owner.ID,
		Record:           makeRecord(t, recordFields{"Fresh Mart", day(2023, 1, 15), "12.50", "Groceries"}),
		OriginalFilename: "a.txt",
		FileLocation:     "ab/abc.txt",
	})
	require.NoError(t, err)

	second, err := repo.Save(ctx, SaveReceiptRequest{
		OwnerID:          owner.ID,
		Record:           makeRecord(t, recordFields{"FRESH MART", day(2023, 1, 20), "3", "groceries"}),
		OriginalFilename: "b.txt",
	})
	require.NoError(t, err)

	assert.Equal(t, first.VendorID, second.VendorID)
	assert.Equal(t, "Fresh Mart", second.VendorName)
	require.NotNil(t, second.CategoryID)
	assert.Equal(t, *first.CategoryID, *second.CategoryID)
	assert.Equal(t, "Groceries", second.CategoryName)

	// another owner gets its own vendor row
	other := newOwner(t, db, "bob")
	third, err := repo.Save(ctx, SaveReceiptRequest{
		OwnerID:          other.ID,
		Record:           makeRecord(t, recordFields{"Fresh Mart", day(2023, 1, 2), "1", ""}),
		OriginalFilename: "c.txt",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.VendorID, third.VendorID)
	assert.Nil(t, third.CategoryID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh Mart", got.VendorName)
	assert.Equal(t, day(2023, 1, 15), got.TransactionDate)
	assert.True(t, decimal.RequireFromString("12.50").Equal(got.Amount))
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "ab/abc.txt", got.FileLocation)
	assert.Equal(t, "raw Fresh Mart", got.RawText)
}

func TestReceiptBillingPeriodRoundTrip(t *testing.T) {
	db := openTestDB(t)
	owner := newOwner(t, db, "alice")
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	v, err := receipt.NewValidator("USD", nil)
	require.NoError(t, err)
	rec, err := v.Validate(extract.NewBuilder("bill").
		Vendor("City Power").
		TransactionDate(day(2023, 2, 3)).
		Amount(decimal.NewFromInt(80)).
		BillingPeriod(day(2023, 1, 1), day(2023, 1, 31)).
		Build())
	require.NoError(t, err)

	saved, err := repo.Save(ctx, SaveReceiptRequest{OwnerID: owner.ID, Record: rec, OriginalFilename: "bill.pdf"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BillingPeriodStart)
	require.NotNil(t, got.BillingPeriodEnd)
	assert.Equal(t, day(2023, 1, 1), *got.BillingPeriodStart)
	assert.Equal(t, day(2023, 1, 31), *got.BillingPeriodEnd)
}

func TestListReceiptsDateWindow(t *testing.T) {
	db := openTestDB(t)
	owner := newOwner(t, db, "alice")
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	for i, d := range []time.Time{day(2023, 3, 1), day(2023, 1, 1), day(2023, 2, 1)} {
		_, err := repo.Save(ctx, SaveReceiptRequest{
			OwnerID:          owner.ID,
			Record:           makeRecord(t, recordFields{"Shop", d, "10", ""}),
			OriginalFilename: string(rune('a'+i)) + ".txt",
		})
		require.NoError(t, err)
	}

	all, err := repo.ListReceipts(ctx, owner.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(2023, 1, 1), all[0].TransactionDate)
	assert.Equal(t, day(2023, 3, 1), all[2].TransactionDate)

	from, to := day(2023, 1, 15), day(2023, 3, 1)
	window, err := repo.ListReceipts(ctx, owner.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, day(2023, 2, 1), window[0].TransactionDate)
}

func TestSearchByVendor(t *testing.T) {
	db := openTestDB(t)
	owner := newOwner(t, db, "alice")
	repo := NewReceiptRepository(db, nil)
	ctx := context.Background()

	for _, v := range []string{"Starbucks Coffee", "Shell Station", "Star Market"} {
		_, err := repo.Save(ctx, SaveReceiptRequest{
			OwnerID:          owner.ID,
			Record:           makeRecord(t, recordFields{v, day(2023, 1, 1), "5", ""}),
			OriginalFilename: v + ".txt",
		})
		require.NoError(t, err)
	}

	hits, err := repo.SearchByVendor(ctx, owner.ID, "starbks")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Starbucks Coffee", hits[0].VendorName)

	hits, err = repo.SearchByVendor(ctx, owner.ID, "star")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	_, err = repo.SearchByVendor(ctx, owner.ID, "  ")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestParseJobLifecycle(t *testing.T) {
	db := openTestDB(t)
	owner := newOwner(t, db, "alice")
	jobs := NewParseJobRepository(db, nil)
	receipts := NewReceiptRepository(db, nil)
	ctx := context.Background()

	ok, err := jobs.Start(ctx, StartJobRequest{OwnerID: owner.ID, Filename: "a.txt", FileLocation: "aa/a.txt", ContentHash: "aa"})
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRunning), ok.Status)

	saved, err := receipts.Save(ctx, SaveReceiptRequest{
		OwnerID:          owner.ID,
		Record:           makeRecord(t, recordFields{"Shop", day(2023, 1, 1), "5", ""}),
		OriginalFilename: "a.txt",
	})
	require.NoError(t, err)
	require.NoError(t, jobs.FinishSuccess(ctx, ok.ID, JobSuccess{ReceiptID: saved.ID, TextSource: string(constants.SourceDirectDecode)}))

	bad, err := jobs.Start(ctx, StartJobRequest{OwnerID: owner.ID, Filename: "b.docx"})
	require.NoError(t, err)
	require.NoError(t, jobs.FinishFailure(ctx, bad.ID, JobFailure{Kind: "UnsupportedFileType", Message: "unsupported"}))

	got, err := jobs.GetByID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusParsed), got.Status)
	require.NotNil(t, got.ReceiptID)
	assert.Equal(t, saved.ID, *got.ReceiptID)
	require.NotNil(t, got.TextSource)
	assert.Equal(t, string(constants.SourceDirectDecode), *got.TextSource)
	assert.Nil(t, got.Language)
	assert.NotNil(t, got.FinishedAt)

	failed, err := jobs.ListByOwner(ctx, owner.ID, constants.JobStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b.docx", failed[0].Filename)
	require.NotNil(t, failed[0].FailureKind)
	assert.Equal(t, "UnsupportedFileType", *failed[0].FailureKind)
	assert.Nil(t, failed[0].FailureReason)

	all, err := jobs.ListByOwner(ctx, owner.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = jobs.FinishFailure(ctx, uuid.New(), JobFailure{Kind: "x"})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
