package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the portal token payload.
type Claims struct {
	SchoolID string `json:"school_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 portal tokens and turns them into identities.
type TokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// VerifierOption customizes a TokenVerifier.
type VerifierOption func(*TokenVerifier)

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) VerifierOption {
	return func(v *TokenVerifier) { v.issuer = issuer }
}

// WithLeeway tolerates clock skew on exp/nbf/iat.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *TokenVerifier) {
		if d > 0 {
			v.leeway = d
		}
	}
}

func NewTokenVerifier(secret []byte, opts ...VerifierOption) *TokenVerifier {
	v := &TokenVerifier{secret: secret, leeway: 30 * time.Second}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses raw and returns the identity it carries.
func (v *TokenVerifier) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	if len(v.secret) == 0 {
		return Identity{}, errors.New("auth: verifier has no secret")
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, claims.Role)
	}
	return Identity{SchoolID: claims.SchoolID, Role: role, Subject: claims.Subject}, nil
}

// Issue signs a token for id valid for ttl. The portal mints its own tokens;
// this exists for operators and tests.
func (v *TokenVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("auth: verifier has no secret")
	}
	now := time.Now()
	claims := Claims{
		SchoolID: id.SchoolID,
		Role:     string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
