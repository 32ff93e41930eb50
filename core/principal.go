package core

import (
	"errors"
	"time"
)

// Namespace selects which principal table an operation works against.
// Admins and users are disjoint: the same email may exist once as each.
type Namespace string

const (
	NamespaceAdmin Namespace = "admin"
	NamespaceUser  Namespace = "user"
)

// table maps the namespace to its backing table name. Only the two fixed
// values above exist, so interpolating the result into SQL is safe.
func (n Namespace) table() string {
	if n == NamespaceAdmin {
		return "admins"
	}
	return "users"
}

// DefaultProfilePic is the placeholder avatar assigned when registration
// (or a Google assertion without a picture) provides none.
func (n Namespace) DefaultProfilePic() string {
	if n == NamespaceAdmin {
		return "https://github.com/shadcn.png"
	}
	return "https://github.com/evilrabbit.png"
}

// Principal is a registered identity (admin or user). PasswordHash is empty
// for principals created via Google sign-in only; GoogleID is empty until
// an external identity is linked. At least one of the two is always set.
type Principal struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-"`
	ProfilePic   string    `json:"profilePic"`
	CreatedAt    time.Time `json:"createdAt"`
}

var (
	// ErrInvalidCredentials is returned when email/password is wrong. The
	// message is deliberately the same whether the email is unknown or the
	// password mismatched.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateIdentity is returned when registering an email that
	// already exists in the namespace.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrAssertionInvalid is returned when a Google ID token fails
	// signature, expiry, or audience verification.
	ErrAssertionInvalid = errors.New("external identity assertion invalid")
	// ErrNotFound covers both missing rows and ownership mismatches on
	// resource-scoped operations, so existence is not leaked.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyPurchased is returned when a user purchases a course twice.
	ErrAlreadyPurchased = errors.New("course already purchased")
)
