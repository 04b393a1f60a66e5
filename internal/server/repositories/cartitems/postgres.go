package cartitems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

const cartItemColumns = `id, user_id, item_id, quantity`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Find(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = $1 AND item_id = $2`
	return scanCartItem(r.db.QueryRowContext(ctx, query, userID, itemID))
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE id = $1`
	return scanCartItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Create(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	query :=
		`INSERT INTO cart_items (user_id, item_id, quantity)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, item_id) DO NOTHING
		 RETURNING ` + cartItemColumns

	var ci models.CartItem
	err := r.db.QueryRowContext(ctx, query, userID, itemID).Scan(&ci.ID, &ci.UserID, &ci.ItemID, &ci.Quantity)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// DO NOTHING returned no row: the pair already exists.
		return nil, common.ErrAlreadyExists
	case dbx.IsUniqueViolation(err):
		return nil, common.ErrAlreadyExists
	case dbx.IsForeignKeyViolation(err), dbx.IsInvalidTextRepresentation(err):
		return nil, fmt.Errorf("%w: item %s", common.ErrorNotFound, itemID)
	case err != nil:
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &ci, nil
}

func (r *PostgresRepository) Increment(ctx context.Context, id string) (*models.CartItem, error) {
	query :=
		`UPDATE cart_items SET quantity = quantity + 1
		 WHERE id = $1
		 RETURNING ` + cartItemColumns
	return scanCartItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.CartItem
	for rows.Next() {
		ci, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (*models.CartItem, error) {
	query := `DELETE FROM cart_items WHERE id = $1 RETURNING ` + cartItemColumns
	return scanCartItem(r.db.QueryRowContext(ctx, query, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCartItem(row scanner) (*models.CartItem, error) {
	var ci models.CartItem
	if err := row.Scan(&ci.ID, &ci.UserID, &ci.ItemID, &ci.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &ci, nil
}
