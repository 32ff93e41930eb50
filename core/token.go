package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors, distinguished so the gate can map them to 401 vs 403.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const tokenTTL = 24 * time.Hour

// Claims is the session token payload. Exactly one of UserID and AdminID
// is set; which one decides the namespace the bearer belongs to.
type Claims struct {
	UserID     string `json:"user_id,omitempty"`
	AdminID    string `json:"admin_id,omitempty"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic"`
	jwt.RegisteredClaims
}

// Namespace returns which principal table the claims refer to.
func (c *Claims) Namespace() Namespace {
	if c.AdminID != "" {
		return NamespaceAdmin
	}
	return NamespaceUser
}

// PrincipalID returns the surrogate id regardless of namespace.
func (c *Claims) PrincipalID() string {
	if c.AdminID != "" {
		return c.AdminID
	}
	return c.UserID
}

// TokenIssuer mints and verifies HS256 session tokens with a process-wide
// secret. Rotating the secret invalidates all outstanding tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: tokenTTL, now: time.Now}
}

// Issue signs a token for the principal in the given namespace.
func (i *TokenIssuer) Issue(p *Principal, ns Namespace) (string, error) {
	now := i.now()
	claims := Claims{
		Email:      p.Email,
		Name:       p.Name,
		ProfilePic: p.ProfilePic,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	if ns == NamespaceAdmin {
		claims.AdminID = p.ID
	} else {
		claims.UserID = p.ID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and returns the decoded claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	// A token must carry exactly one principal id.
	if (claims.UserID == "") == (claims.AdminID == "") {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
