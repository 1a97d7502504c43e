package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
)

const dateLayout = "2006-01-02"

// SaveReceiptRequest wraps parameters for storing a validated record.
type SaveReceiptRequest struct {
	OwnerID          uuid.UUID
	Record           receipt.Record
	OriginalFilename string
	FileLocation     string
}

type ReceiptRepository interface {
	Save(ctx context.Context, req SaveReceiptRequest) (*entity.Receipt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	ListReceipts(ctx context.Context, ownerID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Receipt, error)
	SearchByVendor(ctx context.Context, ownerID uuid.UUID, query string) ([]*entity.Receipt, error)
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{db: db, logger: logger}
}

// Save stores the record, creating the vendor and category for the owner
// when no case-insensitive match exists yet.
func (r *receiptRepository) Save(ctx context.Context, req SaveReceiptRequest) (*entity.Receipt, error) {
	rec := req.Record
	out := &entity.Receipt{
		ID:               uuid.New(),
		OwnerID:          req.OwnerID,
		TransactionDate:  rec.TransactionDate(),
		Amount:           rec.Amount(),
		Currency:         rec.Currency(),
		OriginalFilename: req.OriginalFilename,
		FileLocation:     req.FileLocation,
		RawText:          rec.RawText(),
		CreatedAt:        time.Now().UTC(),
	}

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		vendorID, vendorName, err := r.db.matchOrCreate(ctx, tx, tableVendors, req.OwnerID, rec.VendorName())
		if err != nil {
			return err
		}
		out.VendorID, out.VendorName = vendorID, vendorName

		var categoryID sql.NullString
		if name := rec.CategoryName(); name != "" {
			id, stored, err := r.db.matchOrCreate(ctx, tx, tableCategories, req.OwnerID, name)
			if err != nil {
				return err
			}
			categoryID = sql.NullString{String: id.String(), Valid: true}
			out.CategoryID, out.CategoryName = &id, stored
		}

		var periodStart, periodEnd sql.NullString
		if rec.HasBillingPeriod() {
			start, end := rec.BillingPeriod()
			out.BillingPeriodStart, out.BillingPeriodEnd = &start, &end
			periodStart = sql.NullString{String: start.Format(dateLayout), Valid: true}
			periodEnd = sql.NullString{String: end.Format(dateLayout), Valid: true}
		}

		q, args, err := r.db.sb.Insert("receipts").
			Columns("id", "owner_id", "vendor_id", "category_id", "transaction_date", "amount", "currency",
				"original_filename", "file_location", "raw_text", "billing_period_start", "billing_period_end", "created_at").
			Values(out.ID.String(), out.OwnerID.String(), out.VendorID.String(), categoryID, out.TransactionDate.Format(dateLayout),
				out.Amount.String(), out.Currency, out.OriginalFilename, out.FileLocation, out.RawText,
				periodStart, periodEnd, out.CreatedAt).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, q, args...)
		return err
	})
	if err != nil {
		r.logger.Error("failed to save receipt", "owner_id", req.OwnerID, "file_name", req.OriginalFilename, "error", err)
		return nil, fmt.Errorf("%w: save receipt: %v", common.ErrDatabase, err)
	}

	r.logger.Info("receipt saved",
		"receipt_id", out.ID, "owner_id", out.OwnerID,
		"vendor", out.VendorName, "amount", out.Amount.String(), "currency", out.Currency,
	)
	return out, nil
}

var receiptColumns = []string{
	"r.id", "r.owner_id", "r.vendor_id", "v.name", "r.category_id", "COALESCE(c.name, '')",
	"r.transaction_date", "r.amount", "r.currency", "r.original_filename", "r.file_location", "r.raw_text",
	"r.billing_period_start", "r.billing_period_end", "r.created_at",
}

func (r *receiptRepository) selectReceipts() sq.SelectBuilder {
	return r.db.sb.Select(receiptColumns...).
		From("receipts r").
		Join("vendors v ON v.id = r.vendor_id").
		LeftJoin("categories c ON c.id = r.category_id")
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	recs, err := r.query(ctx, r.selectReceipts().Where(sq.Eq{"r.id": id.String()}).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "receipt "+id.String(), common.ErrNotFound)
	}
	return recs[0], nil
}

// ListReceipts returns an owner's receipts ordered by transaction date, optionally bounded (inclusive).
func (r *receiptRepository) ListReceipts(ctx context.Context, ownerID uuid.UUID, fromDate, toDate *time.Time) ([]*entity.Receipt, error) {
	b := r.selectReceipts().Where(sq.Eq{"r.owner_id": ownerID.String()})
	if fromDate != nil {
		b = b.Where(sq.GtOrEq{"r.transaction_date": fromDate.Format(dateLayout)})
	}
	if toDate != nil {
		b = b.Where(sq.LtOrEq{"r.transaction_date": toDate.Format(dateLayout)})
	}
	recs, err := r.query(ctx, b.OrderBy("r.transaction_date", "r.created_at"))
	if err != nil {
		r.logger.Error("failed to list receipts", "owner_id", ownerID, "error", err)
		return nil, err
	}
	return recs, nil
}

// SearchByVendor ranks an owner's receipts by how closely the vendor name
// fuzzy-matches query. Receipts whose vendor does not match are left out.
func (r *receiptRepository) SearchByVendor(ctx context.Context, ownerID uuid.UUID, query string) ([]*entity.Receipt, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, common.NewAppError("INVALID_QUERY", "vendor query is required", common.ErrInvalidInput)
	}
	all, err := r.ListReceipts(ctx, ownerID, nil, nil)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(all))
	for i, rec := range all {
		names[i] = rec.VendorName
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Stable(ranks)

	out := make([]*entity.Receipt, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, all[rank.OriginalIndex])
	}
	r.logger.Debug("vendor search", "owner_id", ownerID, "query", query, "matches", len(out))
	return out, nil
}

func (r *receiptRepository) query(ctx context.Context, b sq.SelectBuilder) ([]*entity.Receipt, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query receipts: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate receipts: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func scanReceipt(rows *sql.Rows) (*entity.Receipt, error) {
	var (
		rec              entity.Receipt
		categoryID       uuid.NullUUID
		txDate           string
		amount           string
		periodStart, end sql.NullString
	)
	if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.VendorID, &rec.VendorName, &categoryID, &rec.CategoryName,
		&txDate, &amount, &rec.Currency, &rec.OriginalFilename, &rec.FileLocation, &rec.RawText,
		&periodStart, &end, &rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	if categoryID.Valid {
		id := categoryID.UUID
		rec.CategoryID = &id
	}

	var err error
	if rec.TransactionDate, err = time.Parse(dateLayout, txDate); err != nil {
		return nil, fmt.Errorf("scan receipt %s: transaction_date: %w", rec.ID, err)
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("scan receipt %s: amount: %w", rec.ID, err)
	}
	if periodStart.Valid && end.Valid {
		s, err1 := time.Parse(dateLayout, periodStart.String)
		e, err2 := time.Parse(dateLayout, end.String)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("scan receipt %s: billing period: %w", rec.ID, err)
		}
		rec.BillingPeriodStart, rec.BillingPeriodEnd = &s, &e
	}
	return &rec, nil
}
