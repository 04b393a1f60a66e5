package auth

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

// Authorize succeeds when user holds any of anyOf. A nil user is forbidden.
func Authorize(user *models.User, anyOf ...models.Permission) error {
	if user == nil || !user.HasAny(anyOf...) {
		return fmt.Errorf("%w: you need one of %s", common.ErrForbidden, joinPermissions(anyOf))
	}
	return nil
}

// AuthorizeOwnerOr lets the resource owner through, otherwise falls back to
// Authorize.
func AuthorizeOwnerOr(user *models.User, ownerID string, anyOf ...models.Permission) error {
	if user != nil && ownerID != "" && user.ID == ownerID {
		return nil
	}
	return Authorize(user, anyOf...)
}

// ParsePermissions validates a permission set supplied by a caller. Labels
// are upper-cased, duplicates dropped, unknown labels rejected. The result
// is never empty.
func ParsePermissions(labels []string) ([]models.Permission, error) {
	seen := make(map[models.Permission]bool, len(labels))
	out := make([]models.Permission, 0, len(labels))

	for _, l := range labels {
		p := models.Permission(strings.ToUpper(strings.TrimSpace(l)))
		if !isKnown(p) {
			return nil, fmt.Errorf("%w: unknown permission %q", common.ErrValidation, l)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", common.ErrValidation)
	}
	return out, nil
}

func isKnown(p models.Permission) bool {
	for _, k := range models.KnownPermissions {
		if k == p {
			return true
		}
	}
	return false
}

func joinPermissions(perms []models.Permission) string {
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
