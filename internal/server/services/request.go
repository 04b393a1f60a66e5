// Package services contains server-side business logic: the account and
// session flows, item management and the cart.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
)

// SessionSink receives session cookie changes decided by a service call.
// The HTTP layer implements it on top of the response writer.
type SessionSink interface {
	SetSession(token string, maxAge time.Duration)
	ClearSession()
}

// Request is the per-call context every service operation receives: the
// caller identity (empty when anonymous), the client address and where
// session changes go.
type Request struct {
	UserID   string
	ClientIP string
	Sink     SessionSink
}

func (r *Request) authenticated() bool {
	return r != nil && r.UserID != ""
}

func (r *Request) clientIP() string {
	if r == nil {
		return ""
	}
	return r.ClientIP
}

func (r *Request) setSession(token string, maxAge time.Duration) {
	if r != nil && r.Sink != nil {
		r.Sink.SetSession(token, maxAge)
	}
}

func (r *Request) clearSession() {
	if r != nil && r.Sink != nil {
		r.Sink.ClearSession()
	}
}

// loadCaller resolves the authenticated caller. A session pointing at a
// deleted account counts as no session.
func loadCaller(ctx context.Context, repo users.Repository, rc *Request) (*models.User, error) {
	if !rc.authenticated() {
		return nil, common.ErrUnauthenticated
	}
	user, err := repo.GetByID(ctx, rc.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, fmt.Errorf("error loading caller: %w", err)
	}
	return user, nil
}
