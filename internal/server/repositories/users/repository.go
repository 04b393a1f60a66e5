// Package users declares the persistence contract for accounts and its
// PostgreSQL implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

// Repository is the account store. Lookups return common.ErrorNotFound when
// nothing matches; Create returns common.ErrAlreadyExists on a duplicate email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)

	// SetResetToken stores a reset token, replacing any previous one.
	SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error

	// FindByResetToken returns the user holding token whose stored expiry is
	// not older than notBefore. Inside a transaction the row stays locked
	// until commit.
	FindByResetToken(ctx context.Context, token string, notBefore time.Time) (*models.User, error)

	// UpdatePassword replaces the password hash and clears the reset token pair.
	UpdatePassword(ctx context.Context, userID, passwordHash string) (*models.User, error)

	// UpdatePermissions replaces the permission set.
	UpdatePermissions(ctx context.Context, userID string, perms []models.Permission) (*models.User, error)
}
