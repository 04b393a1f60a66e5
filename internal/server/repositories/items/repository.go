// Package items declares the persistence contract for shop items.
package items

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, item *models.Item) (*models.Item, error)
	Get(ctx context.Context, id string) (*models.Item, error)
	List(ctx context.Context, limit, offset int) ([]*models.Item, error)
	Update(ctx context.Context, item *models.Item) (*models.Item, error)
	// Delete removes the item and returns the row as it was.
	Delete(ctx context.Context, id string) (*models.Item, error)
}
