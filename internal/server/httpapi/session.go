package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/services"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// SessionVerifier resolves a session token to a user id.
type SessionVerifier interface {
	Verify(token string) (string, error)
}

// session resolves the session cookie, if any, into a user id on the
// request context. A bad token makes the request anonymous rather than
// failing it; operations that need a caller reject it themselves.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(common.SessionCookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := h.sessions.Verify(c.Value)
		if err != nil {
			h.logger.Debug(r.Context(), "ignoring invalid session cookie", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = logging.ContextWith(ctx, "user_id", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cookieSink writes session changes as Set-Cookie headers. It must be used
// before the response status is written.
type cookieSink struct {
	w      http.ResponseWriter
	secure bool
}

func (s cookieSink) SetSession(token string, maxAge time.Duration) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s cookieSink) ClearSession() {
	http.SetCookie(s.w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// request builds the service call context for r.
func (h *Handler) request(w http.ResponseWriter, r *http.Request) *services.Request {
	userID, _ := r.Context().Value(userIDKey).(string)
	return &services.Request{
		UserID:   userID,
		ClientIP: clientIP(r),
		Sink:     cookieSink{w: w, secure: h.secureCookies},
	}
}

// clientIP is the peer address of the connection. Forwarding headers are
// not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
