// Package common contains shared constants and sentinel errors used across
// storefront components.
package common

import "time"

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "token"

// SessionMaxAge is the lifetime of the session cookie. The token itself
// carries no expiry claim.
const SessionMaxAge = 365 * 24 * time.Hour

// ResetTokenTTL bounds how long a password reset token stays usable.
const ResetTokenTTL = time.Hour
