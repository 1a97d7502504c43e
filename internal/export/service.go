package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-parser/internal/entity"
)

// ReceiptLister is the slice of the receipt repository exports need.
type ReceiptLister interface {
	ListReceipts(ctx context.Context, ownerID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Receipt, error)
}

// Service produces spreadsheet exports of stored receipts.
type Service struct {
	receipts ReceiptLister
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(receipts ReceiptLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, logger: logger, now: time.Now}
}

// Row is one exported receipt.
type Row struct {
	TransactionDate  string `csv:"transaction_date"`
	Vendor           string `csv:"vendor"`
	Category         string `csv:"category"`
	Amount           string `csv:"amount"`
	Currency         string `csv:"currency"`
	BillingPeriod    string `csv:"billing_period"`
	OriginalFilename string `csv:"original_filename"`
	FileLocation     string `csv:"file_location"`
}

var headers = []string{
	"Transaction Date",
	"Vendor",
	"Category",
	"Amount",
	"Currency",
	"Billing Period",
	"Original File",
	"Stored Location",
}

// Rows lists the owner's receipts in the window as export rows.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all receipts for the owner.
func (s *Service) Rows(ctx context.Context, ownerID uuid.UUID, from, to *time.Time) ([]Row, error) {
	fromDate, toDate := dateOnly(from), dateOnly(to)
	if fromDate != nil && toDate == nil {
		toDate = dateOnly(ptr(s.now().UTC()))
	}

	recs, err := s.receipts.ListReceipts(ctx, ownerID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	rows := make([]Row, 0, len(recs))
	for _, r := range recs {
		row := Row{
			TransactionDate:  r.TransactionDate.Format("2006-01-02"),
			Vendor:           r.VendorName,
			Category:         r.CategoryName,
			Amount:           formatAmount(r),
			Currency:         r.Currency,
			OriginalFilename: r.OriginalFilename,
			FileLocation:     r.FileLocation,
		}
		if r.BillingPeriodStart != nil && r.BillingPeriodEnd != nil {
			row.BillingPeriod = r.BillingPeriodStart.Format("2006-01-02") + " to " + r.BillingPeriodEnd.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportReceiptsXLSX returns an XLSX workbook (as bytes) for the given owner and date window.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, ownerID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	rows, err := s.Rows(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Receipts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		values := []any{r.TransactionDate, r.Vendor, r.Category, r.Amount, r.Currency, r.BillingPeriod, r.OriginalFilename, r.FileLocation}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // vendor
	_ = f.SetColWidth(sheet, "C", "C", 18) // category
	_ = f.SetColWidth(sheet, "D", "E", 12) // amount, currency
	_ = f.SetColWidth(sheet, "F", "F", 26) // period
	_ = f.SetColWidth(sheet, "G", "H", 48) // files

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("receipts exported",
		"format", "xlsx",
		"owner_id", ownerID.String(),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportReceiptsCSV returns the same rows as ExportReceiptsXLSX as CSV with a header line.
func (s *Service) ExportReceiptsCSV(ctx context.Context, ownerID uuid.UUID, from, to *time.Time) ([]byte, error) {
	rows, err := s.Rows(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	s.logger.Info("receipts exported", "format", "csv", "owner_id", ownerID.String(), "rows", len(rows))
	return out, nil
}

func formatAmount(r *entity.Receipt) string {
	fraction := int32(2)
	if c := money.GetCurrency(r.Currency); c != nil {
		fraction = int32(c.Fraction)
	}
	return r.Amount.StringFixed(fraction)
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func ptr[T any](v T) *T { return &v }
