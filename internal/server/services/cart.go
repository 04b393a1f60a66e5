package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

// CartService manages the caller's cart. A (user, item) pair never has more
// than one line; adding the same item again bumps the quantity.
type CartService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewCartService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *CartService {
	return &CartService{db: db, repomanager: m, logger: logger.With("module", "cart")}
}

// AddToCart puts one more itemID into the caller's cart.
func (s *CartService) AddToCart(ctx context.Context, rc *Request, itemID string) (*models.CartItem, error) {
	if !rc.authenticated() {
		return nil, common.ErrUnauthenticated
	}
	repo := s.repomanager.CartItems(s.db)

	existing, err := repo.Find(ctx, rc.UserID, itemID)
	switch {
	case err == nil:
		return s.increment(ctx, existing.ID)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error searching cart: %w", err)
	}

	line, err := repo.Create(ctx, rc.UserID, itemID)
	if err == nil {
		return line, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: item %s", common.ErrorNotFound, itemID)
	}
	if !errors.Is(err, common.ErrAlreadyExists) {
		return nil, fmt.Errorf("error adding to cart: %w", err)
	}

	// A concurrent request created the line between Find and Create.
	existing, err = repo.Find(ctx, rc.UserID, itemID)
	if err != nil {
		return nil, fmt.Errorf("error searching cart: %w", err)
	}
	s.logger.Debug(ctx, "cart insert raced, incrementing", "user_id", rc.UserID, "item_id", itemID)
	return s.increment(ctx, existing.ID)
}

// Cart lists the caller's cart lines.
func (s *CartService) Cart(ctx context.Context, rc *Request) ([]*models.CartItem, error) {
	if !rc.authenticated() {
		return nil, common.ErrUnauthenticated
	}
	return s.repomanager.CartItems(s.db).ListByUser(ctx, rc.UserID)
}

// RemoveFromCart deletes one of the caller's cart lines.
func (s *CartService) RemoveFromCart(ctx context.Context, rc *Request, id string) (*models.CartItem, error) {
	if !rc.authenticated() {
		return nil, common.ErrUnauthenticated
	}
	repo := s.repomanager.CartItems(s.db)

	line, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: cart item %s", common.ErrorNotFound, id)
		}
		return nil, fmt.Errorf("error searching cart: %w", err)
	}
	if line.UserID != rc.UserID {
		return nil, fmt.Errorf("%w: this cart item is not yours", common.ErrForbidden)
	}

	return repo.Delete(ctx, id)
}

func (s *CartService) increment(ctx context.Context, id string) (*models.CartItem, error) {
	line, err := s.repomanager.CartItems(s.db).Increment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error updating cart: %w", err)
	}
	return line, nil
}
