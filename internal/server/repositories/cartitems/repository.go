// Package cartitems declares the persistence contract for cart lines.
//
// The store enforces UNIQUE (user_id, item_id): Create never produces a
// second line for the same pair and reports common.ErrAlreadyExists instead,
// so callers can fall back to Increment.
package cartitems

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type Repository interface {
	// Find returns the line for (userID, itemID) or common.ErrorNotFound.
	Find(ctx context.Context, userID, itemID string) (*models.CartItem, error)
	Get(ctx context.Context, id string) (*models.CartItem, error)
	// Create inserts a line with quantity 1. A missing item yields
	// common.ErrorNotFound, an existing line common.ErrAlreadyExists.
	Create(ctx context.Context, userID, itemID string) (*models.CartItem, error)
	// Increment atomically adds one to the line's quantity.
	Increment(ctx context.Context, id string) (*models.CartItem, error)
	ListByUser(ctx context.Context, userID string) ([]*models.CartItem, error)
	Delete(ctx context.Context, id string) (*models.CartItem, error)
}
