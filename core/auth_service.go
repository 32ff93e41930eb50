package core

import (
	"context"
	"errors"
	"strings"
)

// AuthService implements registration, login, Google sign-in, and account
// deletion for both principal namespaces.
type AuthService struct {
	principals PrincipalRepository
	tokens     *TokenIssuer
	assertions AssertionVerifier
}

func NewAuthService(principals PrincipalRepository, tokens *TokenIssuer, assertions AssertionVerifier) *AuthService {
	return &AuthService{principals: principals, tokens: tokens, assertions: assertions}
}

// Register creates a locally-credentialed principal and issues a token.
func (s *AuthService) Register(ctx context.Context, ns Namespace, name, email, password string) (*Principal, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, "", errors.New("name, email, password are required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	p := &Principal{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		ProfilePic:   ns.DefaultProfilePic(),
	}
	// The unique email constraint is the authority; the insert, not a
	// prior lookup, decides whether the identity already exists.
	if err := s.principals.Create(ctx, ns, p); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(p, ns)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

// Login verifies a local credential and issues a token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, ns Namespace, email, password string) (*Principal, string, error) {
	p, err := s.principals.FindByEmail(ctx, ns, email)
	if err != nil {
		return nil, "", err
	}
	if p == nil || !VerifyPassword(password, p.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(p, ns)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

// GoogleLogin verifies the assertion and resolves it to a principal:
// lookup by Google subject, then by email; create when neither matches;
// link-on-first-use when found by email without a Google identity.
func (s *AuthService) GoogleLogin(ctx context.Context, ns Namespace, rawAssertion string) (*Principal, string, error) {
	ident, err := s.assertions.VerifyAssertion(ctx, rawAssertion)
	if err != nil {
		return nil, "", err
	}

	p, err := s.principals.FindByGoogleID(ctx, ns, ident.Subject)
	if err != nil {
		return nil, "", err
	}
	if p == nil && ident.Email != "" {
		p, err = s.principals.FindByEmail(ctx, ns, ident.Email)
		if err != nil {
			return nil, "", err
		}
	}

	switch {
	case p == nil:
		pic := ident.Picture
		if pic == "" {
			pic = ns.DefaultProfilePic()
		}
		p = &Principal{
			Name:       ident.Name,
			Email:      ident.Email,
			GoogleID:   ident.Subject,
			ProfilePic: pic,
		}
		if err := s.principals.Create(ctx, ns, p); err != nil {
			return nil, "", err
		}
	case p.GoogleID == "":
		p, err = s.principals.AttachGoogleID(ctx, ns, p.ID, ident.Subject, ident.Picture)
		if err != nil {
			return nil, "", err
		}
	}

	token, err := s.tokens.Issue(p, ns)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

// DeleteAccount removes the principal behind the claims together with all
// resources it owns.
func (s *AuthService) DeleteAccount(ctx context.Context, claims *Claims) error {
	return s.principals.Delete(ctx, claims.Namespace(), claims.PrincipalID())
}
