// Package auth verifies bearer tokens issued by the identity provider
// (a Cognito user pool) and extracts the stable subject identifier every
// core operation is scoped by.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims is the verified payload the rest of the service consumes. Sub is
// the opaque owning-user identifier; nothing downstream inspects the rest.
type Claims struct {
	Sub      string
	Username string
	TokenUse string
}

// Verifier validates a raw bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// tokenClaims mirrors the Cognito JWT payload.
type tokenClaims struct {
	Username        string `json:"username"`
	CognitoUsername string `json:"cognito:username"`
	TokenUse        string `json:"token_use"`
	jwt.RegisteredClaims
}

// CognitoVerifier checks RS256 signatures against the pool's JWKS and pins
// the expected issuer.
type CognitoVerifier struct {
	keys   *KeySet
	issuer string
}

// NewCognitoVerifier builds a verifier over an owned key set.
func NewCognitoVerifier(keys *KeySet, issuer string) *CognitoVerifier {
	return &CognitoVerifier{
		keys:   keys,
		issuer: issuer,
	}
}

// Verify parses and validates the token: RS256 only, known kid, live
// signature, expiry, and the configured issuer. Both id and access tokens
// from the pool are accepted; both carry the sub claim.
func (v *CognitoVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header missing kid")
		}
		return v.keys.Key(ctx, kid)
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}

	username := claims.Username
	if username == "" {
		username = claims.CognitoUsername
	}

	return &Claims{
		Sub:      claims.Subject,
		Username: username,
		TokenUse: claims.TokenUse,
	}, nil
}
