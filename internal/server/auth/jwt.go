package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session claim set: the registered claims (left empty) and
// the user identity.
//
// No ExpiresAt is set. The token stays cryptographically valid for as long
// as the secret does; the session cookie's max-age is what retires it.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// SessionCodec issues and verifies HS256 session tokens with a secret
// injected at construction.
type SessionCodec struct {
	secret []byte
}

func NewSessionCodec(secret []byte) *SessionCodec {
	return &SessionCodec{secret: secret}
}

// Issue signs a token for userID.
func (c *SessionCodec) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: userID})
	return token.SignedString(c.secret)
}

// Verify returns the user id carried by token. Every failure, malformed
// input included, is reported as common.ErrUnauthenticated.
func (c *SessionCodec) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", common.ErrUnauthenticated
	}

	return claims.UserID, nil
}
