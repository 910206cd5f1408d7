package middleware

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

type idTokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// OIDCVerifier accepts ID tokens of an OpenID Connect issuer, such as the identity
// platform the mobile clients sign in with.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's keys. audience is the client id the tokens are
// issued for.
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}

	return NewOIDCVerifierWith(p.Verifier(&oidc.Config{ClientID: audience})), nil
}

func NewOIDCVerifierWith(v *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: v}
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (Principal, error) {
	idTok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return Principal{}, fmt.Errorf("verify id token: %w", err)
	}

	var c idTokenClaims
	if err := idTok.Claims(&c); err != nil {
		return Principal{}, fmt.Errorf("read claims: %w", err)
	}

	return Principal{
		UserID: idTok.Subject,
		Email:  c.Email,
		Name:   c.Name,
	}, nil
}
