// Package auth implements the stateless signed-token issuer: it mints and
// verifies short-lived HS256 access tokens from immutable key material.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/obelousov/authkeeper/internal/common"
)

// MinSecretKeyLen is the minimum HMAC key length accepted at startup.
const MinSecretKeyLen = 32

// Claims is the access token payload: registered claims plus the principal's
// role set. The subject carries the principal id.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Issuer builds and verifies access tokens. It is stateless and safe for
// concurrent use: every method is a pure function of its inputs and the
// immutable key material.
type Issuer struct {
	secretKey []byte
	issuer    string
	audience  string
	validity  time.Duration
	now       func() time.Time
}

// NewIssuer validates the key material eagerly and returns a ready Issuer.
// A key shorter than MinSecretKeyLen bytes yields common.ErrSigningKeyInvalid;
// the caller is expected to treat that as fatal.
func NewIssuer(secretKey []byte, issuer, audience string, validity time.Duration) (*Issuer, error) {
	if len(secretKey) < MinSecretKeyLen {
		return nil, common.ErrSigningKeyInvalid
	}
	return &Issuer{
		secretKey: secretKey,
		issuer:    issuer,
		audience:  audience,
		validity:  validity,
		now:       time.Now,
	}, nil
}

// Issue mints a signed access token for the principal with a fresh jti and
// an expiry of now+validity.
func (i *Issuer) Issue(principalID string, roles []string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
			ID:        uuid.NewString(),
		},
		Roles: roles,
	})

	return token.SignedString(i.secretKey)
}

// Verify checks signature, issuer, audience and expiry, and returns the
// embedded claims. Every failure mode is reported as
// common.ErrInvalidAccessToken so callers cannot probe validation internals.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		return nil, common.ErrInvalidAccessToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidAccessToken
	}

	return claims, nil
}
