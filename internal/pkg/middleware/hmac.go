package middleware

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type userClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// HMACVerifier accepts HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	key    []byte
	issuer string
}

type HMACOption func(*HMACVerifier)

// WithIssuer makes the verifier reject tokens issued by anyone else.
func WithIssuer(iss string) HMACOption {
	return func(v *HMACVerifier) {
		v.issuer = iss
	}
}

func NewHMACVerifier(key []byte, opts ...HMACOption) *HMACVerifier {
	if len(key) == 0 {
		panic("hmac key is required")
	}

	v := &HMACVerifier{key: key}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *HMACVerifier) Verify(ctx context.Context, raw string) (Principal, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	var claims userClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, parserOpts...)
	if err != nil {
		return Principal{}, fmt.Errorf("parse jwt: %w", err)
	}
	if !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	return Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}
