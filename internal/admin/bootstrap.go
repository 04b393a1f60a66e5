// Package admin implements the bootstrap command that creates the first
// ADMIN account, or promotes an existing one, directly in the database.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
)

// Bootstrap makes email an ADMIN. An unknown email gets a new account with
// name and password; a known one keeps its password and gains ADMIN.
// The second result reports whether an account was created.
func Bootstrap(ctx context.Context, repo users.Repository, hasher *auth.PasswordHasher, email, name, password string) (*models.User, bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, false, fmt.Errorf("%w: email is required", common.ErrValidation)
	}

	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.HasAny(models.PermissionAdmin) {
			return existing, false, nil
		}
		perms := append(append([]models.Permission(nil), existing.Permissions...), models.PermissionAdmin)
		u, err := repo.UpdatePermissions(ctx, existing.ID, perms)
		return u, false, err
	case !errors.Is(err, common.ErrorNotFound):
		return nil, false, err
	}

	if strings.TrimSpace(name) == "" {
		return nil, false, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if len(password) < 6 || len(password) > auth.MaxPasswordBytes {
		return nil, false, fmt.Errorf("%w: password must be 6 to %d bytes", common.ErrValidation, auth.MaxPasswordBytes)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}
	u, err := repo.Create(ctx, &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Permissions:  []models.Permission{models.PermissionUser, models.PermissionAdmin},
	})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// Run prompts for the account details on reader/w and bootstraps it.
func Run(ctx context.Context, repo users.Repository, reader *bufio.Reader, w io.Writer) error {
	email, err := GetSimpleText(reader, "Admin email", w)
	if err != nil {
		return err
	}

	var name, password string
	_, err = repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error searching user: %w", err)
	}
	if errors.Is(err, common.ErrorNotFound) {
		if name, err = GetSimpleText(reader, "Name", w); err != nil {
			return err
		}
		if password, err = GetPassword("Password", w); err != nil {
			return err
		}
		confirm, err := GetPassword("Repeat password", w)
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("%w: passwords don't match", common.ErrValidation)
		}
	}

	u, created, err := Bootstrap(ctx, repo, auth.NewPasswordHasher(), email, name, password)
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(w, "Created admin %s (%s)\n", u.Email, u.ID)
	} else {
		fmt.Fprintf(w, "%s is an admin\n", u.Email)
	}
	return nil
}

// normalizeEmail matches how accounts are stored at signup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
