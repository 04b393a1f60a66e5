package models

import "testing"

func TestUser_HasAny(t *testing.T) {
	u := &User{Permissions: []Permission{PermissionUser, PermissionItemDelete}}

	if !u.HasAny(PermissionAdmin, PermissionItemDelete) {
		t.Fatal("expected match on ITEMDELETE")
	}
	if u.HasAny(PermissionAdmin, PermissionPermissionUpdate) {
		t.Fatal("unexpected match")
	}
	if u.HasAny() {
		t.Fatal("empty wanted set must not match")
	}
}
