package core

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ExternalIdentity holds the verified claims of a Google ID token.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// AssertionVerifier validates a third-party identity assertion and
// extracts its claims. Implemented by GoogleVerifier; faked in tests.
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, rawToken string) (ExternalIdentity, error)
}

// GoogleVerifier verifies Google-issued ID tokens against the configured
// OAuth client id via OIDC discovery.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers the issuer's signing keys. The issuer URL is
// configurable so tests and non-Google deployments can point elsewhere.
func NewGoogleVerifier(ctx context.Context, issuerURL, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("empty google client id")
	}
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", issuerURL, err)
	}
	return &GoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// DisabledAssertionVerifier rejects every assertion. Used when no Google
// client id is configured.
type DisabledAssertionVerifier struct{}

func (DisabledAssertionVerifier) VerifyAssertion(ctx context.Context, rawToken string) (ExternalIdentity, error) {
	return ExternalIdentity{}, fmt.Errorf("%w: google sign-in is not configured", ErrAssertionInvalid)
}

// VerifyAssertion checks signature, expiry, and audience, failing closed
// with ErrAssertionInvalid on any mismatch.
func (g *GoogleVerifier) VerifyAssertion(ctx context.Context, rawToken string) (ExternalIdentity, error) {
	idToken, err := g.verifier.Verify(ctx, rawToken)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}

	return ExternalIdentity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
