package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Reference tables hold per-owner names that receipts point at.
const (
	tableVendors    = "vendors"
	tableCategories = "categories"
)

// matchOrCreate returns the id of the row in table whose name matches
// case-insensitively for owner, inserting one when none exists.
func (db *DB) matchOrCreate(ctx context.Context, tx *sql.Tx, table string, ownerID uuid.UUID, name string) (uuid.UUID, string, error) {
	name = strings.TrimSpace(name)
	find := func() (uuid.UUID, string, error) {
		q, args, err := db.sb.Select("id", "name").From(table).
			Where(sq.Eq{"owner_id": ownerID.String()}).
			Where(sq.Expr("LOWER(name) = LOWER(?)", name)).
			Limit(1).ToSql()
		if err != nil {
			return uuid.Nil, "", err
		}
		var (
			id     uuid.UUID
			stored string
		)
		err = tx.QueryRowContext(ctx, q, args...).Scan(&id, &stored)
		return id, stored, err
	}

	id, stored, err := find()
	if err == nil {
		return id, stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, "", fmt.Errorf("find %s: %w", table, err)
	}

	id = uuid.New()
	q, args, err := db.sb.Insert(table).Columns("id", "owner_id", "name").Values(id.String(), ownerID.String(), name).ToSql()
	if err != nil {
		return uuid.Nil, "", err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return uuid.Nil, "", fmt.Errorf("create %s: %w", table, err)
	}
	db.logger.Debug("reference row created", "table", table, "owner_id", ownerID, "name", name)
	return id, name, nil
}
