package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
)

type OwnerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Owner, error)
	GetOrCreateByName(ctx context.Context, name, defaultCurrency string) (*entity.Owner, error)
}

type ownerRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewOwnerRepository(db *DB, logger *slog.Logger) OwnerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ownerRepository{db: db, logger: logger}
}

var ownerColumns = []string{"id", "name", "default_currency", "created_at"}

func (r *ownerRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Owner, error) {
	return r.one(ctx, sq.Eq{"id": id.String()})
}

// GetOrCreateByName returns the owner whose name matches case-insensitively,
// creating it when absent.
func (r *ownerRepository) GetOrCreateByName(ctx context.Context, name, defaultCurrency string) (*entity.Owner, error) {
	name = strings.TrimSpace(name)
	defaultCurrency = strings.ToUpper(strings.TrimSpace(defaultCurrency))
	check := common.NewValidator().
		Field("name", name, common.Required, common.MaxLength(200)).
		Field("default_currency", defaultCurrency, common.CurrencyCode)
	if err := check.Err(); err != nil {
		return nil, common.NewAppError("INVALID_OWNER", err.Error(), common.ErrInvalidInput)
	}
	byName := sq.Expr("LOWER(name) = LOWER(?)", name)

	o, err := r.one(ctx, byName)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	o = &entity.Owner{
		ID:              uuid.New(),
		Name:            name,
		DefaultCurrency: defaultCurrency,
		CreatedAt:       time.Now().UTC(),
	}
	q, args, err := r.db.sb.Insert("owners").Columns(ownerColumns...).
		Values(o.ID.String(), o.Name, o.DefaultCurrency, o.CreatedAt).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.SQL.ExecContext(ctx, q, args...); err != nil {
		// lost a race with another writer; the row exists now
		if existing, getErr := r.one(ctx, byName); getErr == nil {
			return existing, nil
		}
		r.logger.Error("failed to create owner", "name", name, "error", err)
		return nil, fmt.Errorf("%w: create owner: %v", common.ErrDatabase, err)
	}
	r.logger.Info("owner created", "owner_id", o.ID, "name", o.Name)
	return o, nil
}

func (r *ownerRepository) one(ctx context.Context, where sq.Sqlizer) (*entity.Owner, error) {
	q, args, err := r.db.sb.Select(ownerColumns...).From("owners").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	var o entity.Owner
	err = r.db.SQL.QueryRowContext(ctx, q, args...).Scan(&o.ID, &o.Name, &o.DefaultCurrency, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get owner: %v", common.ErrDatabase, err)
	}
	return &o, nil
}
