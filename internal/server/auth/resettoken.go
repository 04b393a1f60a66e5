package auth

import (
	"crypto/subtle"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
)

// ResetTokenBytes is the entropy of a reset token before hex encoding.
const ResetTokenBytes = 20

// GenerateResetToken returns a fresh 40-character hex token and the expiry
// to store with it (now + common.ResetTokenTTL).
func GenerateResetToken(now time.Time) (string, time.Time, error) {
	token, err := common.MakeRandHexString(ResetTokenBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, now.Add(common.ResetTokenTTL), nil
}

// ResetTokenNotBefore is the oldest stored expiry still accepted at now.
// The comparison is storedExpiry >= now - TTL: "issued within the last
// hour" applied to the expiry column, so a token stays usable for up to
// two hours after it was issued.
func ResetTokenNotBefore(now time.Time) time.Time {
	return now.Add(-common.ResetTokenTTL)
}

// ResetTokenValid mirrors the store-side lookup: candidate must equal the
// stored token and the stored expiry must not be older than
// ResetTokenNotBefore(now).
func ResetTokenValid(candidate, stored string, storedExpiry, now time.Time) bool {
	if candidate == "" || stored == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) != 1 {
		return false
	}
	return !storedExpiry.Before(ResetTokenNotBefore(now))
}
