// Package models defines server-side data models persisted in the database.
package models

import "time"

// Permission is a role label granting access to gated operations.
type Permission string

const (
	PermissionUser             Permission = "USER"
	PermissionAdmin            Permission = "ADMIN"
	// PermissionItemCreate is stored and grantable but not checked yet:
	// any signed-in user may list an item.
	PermissionItemCreate       Permission = "ITEMCREATE"
	PermissionItemUpdate       Permission = "ITEMUPDATE"
	PermissionItemDelete       Permission = "ITEMDELETE"
	PermissionPermissionUpdate Permission = "PERMISSIONUPDATE"
)

// KnownPermissions lists every label the server accepts.
var KnownPermissions = []Permission{
	PermissionUser,
	PermissionAdmin,
	PermissionItemCreate,
	PermissionItemUpdate,
	PermissionItemDelete,
	PermissionPermissionUpdate,
}

// User is an account. ResetToken and ResetTokenExpiry are either both set
// or both nil.
type User struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	Name             string       `json:"name"`
	PasswordHash     string       `json:"-"`
	Permissions      []Permission `json:"permissions"`
	ResetToken       *string      `json:"-"`
	ResetTokenExpiry *time.Time   `json:"-"`
	CreatedAt        time.Time    `json:"created_at"`
}

// HasAny reports whether u holds at least one of perms.
func (u *User) HasAny(perms ...Permission) bool {
	for _, have := range u.Permissions {
		for _, want := range perms {
			if have == want {
				return true
			}
		}
	}
	return false
}
