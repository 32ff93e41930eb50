package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalRepository defines persistence operations for principals. All
// operations are scoped to a single namespace; absent rows are returned as
// (nil, nil), not as errors.
type PrincipalRepository interface {
	FindByEmail(ctx context.Context, ns Namespace, email string) (*Principal, error)
	FindByGoogleID(ctx context.Context, ns Namespace, googleID string) (*Principal, error)
	FindByID(ctx context.Context, ns Namespace, id string) (*Principal, error)
	Create(ctx context.Context, ns Namespace, p *Principal) error
	AttachGoogleID(ctx context.Context, ns Namespace, id, googleID, profilePic string) (*Principal, error)
	Delete(ctx context.Context, ns Namespace, id string) error
	HasAny(ctx context.Context, ns Namespace) (bool, error)
}

// PgPrincipalRepository implements PrincipalRepository using pgxpool.
type PgPrincipalRepository struct {
	db *pgxpool.Pool
}

func NewPgPrincipalRepository(db *pgxpool.Pool) *PgPrincipalRepository {
	return &PgPrincipalRepository{db: db}
}

const principalColumns = `id, name, email, COALESCE(password_hash, ''), COALESCE(google_id, ''), profile_pic, created_at`

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.GoogleID, &p.ProfilePic, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgPrincipalRepository) FindByEmail(ctx context.Context, ns Namespace, email string) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE email=$1`, principalColumns, ns.table())
	return scanPrincipal(r.db.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(email))))
}

func (r *PgPrincipalRepository) FindByGoogleID(ctx context.Context, ns Namespace, googleID string) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE google_id=$1`, principalColumns, ns.table())
	return scanPrincipal(r.db.QueryRow(ctx, q, googleID))
}

func (r *PgPrincipalRepository) FindByID(ctx context.Context, ns Namespace, id string) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, principalColumns, ns.table())
	return scanPrincipal(r.db.QueryRow(ctx, q, id))
}

// Create inserts a new principal, assigning ID and CreatedAt. A unique
// violation on email or google_id surfaces as ErrDuplicateIdentity.
func (r *PgPrincipalRepository) Create(ctx context.Context, ns Namespace, p *Principal) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	q := fmt.Sprintf(`INSERT INTO %s (id, name, email, password_hash, google_id, profile_pic)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
RETURNING created_at`, ns.table())
	err := r.db.QueryRow(ctx, q, p.ID, p.Name, p.Email, p.PasswordHash, p.GoogleID, p.ProfilePic).Scan(&p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateIdentity
	}
	return err
}

// AttachGoogleID links an external identity to an existing principal and
// refreshes its avatar. The link is one-way: google_id is never cleared.
func (r *PgPrincipalRepository) AttachGoogleID(ctx context.Context, ns Namespace, id, googleID, profilePic string) (*Principal, error) {
	q := fmt.Sprintf(`UPDATE %s SET google_id=$2, profile_pic=COALESCE(NULLIF($3, ''), profile_pic)
WHERE id=$1
RETURNING %s`, ns.table(), principalColumns)
	p, err := scanPrincipal(r.db.QueryRow(ctx, q, id, googleID, profilePic))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// Delete removes a principal and everything it owns in one transaction:
// a user's purchases, or an admin's courses together with their purchases.
func (r *PgPrincipalRepository) Delete(ctx context.Context, ns Namespace, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if ns == NamespaceUser {
		if _, err := tx.Exec(ctx, `DELETE FROM user_courses WHERE user_id=$1`, id); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `DELETE FROM user_courses WHERE course_id IN (SELECT id FROM courses WHERE admin_id=$1)`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM courses WHERE admin_id=$1`, id); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, ns.table()), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *PgPrincipalRepository) HasAny(ctx context.Context, ns Namespace) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, ns.table())
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
