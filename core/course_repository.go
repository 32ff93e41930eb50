package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Course is a purchasable catalog entry owned by one admin.
type Course struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ImageLink   string            `json:"imageLink"`
	Price       float64           `json:"price"`
	AdminID     string            `json:"adminId"`
	CreatedAt   time.Time         `json:"createdAt"`
	Admin       *PrincipalSummary `json:"admin,omitempty"`
}

// PrincipalSummary is the public projection of a principal embedded in
// course and purchase payloads.
type PrincipalSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Purchase is one row of the user/course join.
type Purchase struct {
	UserID      string            `json:"userId"`
	CourseID    string            `json:"courseId"`
	PurchasedAt time.Time         `json:"purchasedAt"`
	Course      *Course           `json:"course,omitempty"`
	User        *PrincipalSummary `json:"user,omitempty"`
}

// CourseUpdate carries the optional fields of a course update; empty
// strings and zero price leave the stored value unchanged.
type CourseUpdate struct {
	Title       string
	Description string
	ImageLink   string
	Price       float64
}

// CourseRepository defines persistence operations for courses and
// purchases. Ownership-scoped operations (Update, Delete) return
// ErrNotFound when the course does not exist or belongs to another admin.
type CourseRepository interface {
	Create(ctx context.Context, c *Course) error
	Update(ctx context.Context, id, adminID string, upd CourseUpdate) (*Course, error)
	Delete(ctx context.Context, id, adminID string) error
	FindByID(ctx context.Context, id string) (*Course, error)
	ListAll(ctx context.Context) ([]Course, error)
	ListByAdmin(ctx context.Context, adminID string) ([]Course, error)
	Purchase(ctx context.Context, userID, courseID string) (*Purchase, error)
	ListPurchasedByUser(ctx context.Context, userID string) ([]Purchase, error)
	IsPurchased(ctx context.Context, userID, courseID string) (*Purchase, error)
	ListPurchasers(ctx context.Context, courseID string) ([]PrincipalSummary, error)
}

// PgCourseRepository implements CourseRepository using pgxpool.
type PgCourseRepository struct {
	db *pgxpool.Pool
}

func NewPgCourseRepository(db *pgxpool.Pool) *PgCourseRepository {
	return &PgCourseRepository{db: db}
}

const courseJoinColumns = `c.id, c.title, c.description, c.image_link, c.price, c.admin_id, c.created_at, a.id, a.name, a.email`

func scanCourseWithAdmin(row pgx.Row) (*Course, error) {
	var c Course
	var a PrincipalSummary
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ImageLink, &c.Price, &c.AdminID, &c.CreatedAt, &a.ID, &a.Name, &a.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Admin = &a
	return &c, nil
}

func (r *PgCourseRepository) Create(ctx context.Context, c *Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `INSERT INTO courses (id, title, description, image_link, price, admin_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`
	return r.db.QueryRow(ctx, q, c.ID, c.Title, c.Description, c.ImageLink, c.Price, c.AdminID).Scan(&c.CreatedAt)
}

func (r *PgCourseRepository) Update(ctx context.Context, id, adminID string, upd CourseUpdate) (*Course, error) {
	const q = `UPDATE courses SET
	title       = COALESCE(NULLIF($3, ''), title),
	description = COALESCE(NULLIF($4, ''), description),
	image_link  = COALESCE(NULLIF($5, ''), image_link),
	price       = CASE WHEN $6 > 0 THEN $6 ELSE price END
WHERE id=$1 AND admin_id=$2
RETURNING id, title, description, image_link, price, admin_id, created_at`
	var c Course
	err := r.db.QueryRow(ctx, q, id, adminID, upd.Title, upd.Description, upd.ImageLink, upd.Price).
		Scan(&c.ID, &c.Title, &c.Description, &c.ImageLink, &c.Price, &c.AdminID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Missing and not-owned are indistinguishable on purpose.
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes an owned course and its purchases in one transaction.
func (r *PgCourseRepository) Delete(ctx context.Context, id, adminID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var owned int
	err = tx.QueryRow(ctx, `SELECT 1 FROM courses WHERE id=$1 AND admin_id=$2`, id, adminID).Scan(&owned)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM user_courses WHERE course_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM courses WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgCourseRepository) FindByID(ctx context.Context, id string) (*Course, error) {
	q := `SELECT ` + courseJoinColumns + ` FROM courses c JOIN admins a ON a.id = c.admin_id WHERE c.id=$1`
	return scanCourseWithAdmin(r.db.QueryRow(ctx, q, id))
}

func (r *PgCourseRepository) ListAll(ctx context.Context) ([]Course, error) {
	q := `SELECT ` + courseJoinColumns + ` FROM courses c JOIN admins a ON a.id = c.admin_id ORDER BY c.created_at DESC, c.id`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCoursesWithAdmin(rows)
}

func (r *PgCourseRepository) ListByAdmin(ctx context.Context, adminID string) ([]Course, error) {
	const q = `SELECT id, title, description, image_link, price, admin_id, created_at
FROM courses WHERE admin_id=$1 ORDER BY created_at DESC, id`
	rows, err := r.db.Query(ctx, q, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Course, 0)
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.ImageLink, &c.Price, &c.AdminID, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Purchase inserts the join row. The primary key on (user_id, course_id)
// makes a double purchase surface as ErrAlreadyPurchased.
func (r *PgCourseRepository) Purchase(ctx context.Context, userID, courseID string) (*Purchase, error) {
	const q = `INSERT INTO user_courses (user_id, course_id) VALUES ($1, $2) RETURNING purchased_at`
	var p Purchase
	p.UserID = userID
	p.CourseID = courseID
	err := r.db.QueryRow(ctx, q, userID, courseID).Scan(&p.PurchasedAt)
	if isUniqueViolation(err) {
		return nil, ErrAlreadyPurchased
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgCourseRepository) ListPurchasedByUser(ctx context.Context, userID string) ([]Purchase, error) {
	q := `SELECT uc.user_id, uc.purchased_at, ` + courseJoinColumns + `
FROM user_courses uc
JOIN courses c ON c.id = uc.course_id
JOIN admins a ON a.id = c.admin_id
WHERE uc.user_id=$1
ORDER BY uc.purchased_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Purchase, 0)
	for rows.Next() {
		var p Purchase
		var c Course
		var a PrincipalSummary
		if err := rows.Scan(&p.UserID, &p.PurchasedAt,
			&c.ID, &c.Title, &c.Description, &c.ImageLink, &c.Price, &c.AdminID, &c.CreatedAt,
			&a.ID, &a.Name, &a.Email); err != nil {
			return nil, err
		}
		c.Admin = &a
		p.CourseID = c.ID
		p.Course = &c
		items = append(items, p)
	}
	return items, rows.Err()
}

// IsPurchased returns the purchase row, or (nil, nil) when absent.
func (r *PgCourseRepository) IsPurchased(ctx context.Context, userID, courseID string) (*Purchase, error) {
	const q = `SELECT user_id, course_id, purchased_at FROM user_courses WHERE user_id=$1 AND course_id=$2`
	var p Purchase
	err := r.db.QueryRow(ctx, q, userID, courseID).Scan(&p.UserID, &p.CourseID, &p.PurchasedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgCourseRepository) ListPurchasers(ctx context.Context, courseID string) ([]PrincipalSummary, error) {
	const q = `SELECT u.id, u.name, u.email
FROM user_courses uc JOIN users u ON u.id = uc.user_id
WHERE uc.course_id=$1 ORDER BY uc.purchased_at DESC`
	rows, err := r.db.Query(ctx, q, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]PrincipalSummary, 0)
	for rows.Next() {
		var s PrincipalSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func collectCoursesWithAdmin(rows pgx.Rows) ([]Course, error) {
	items := make([]Course, 0)
	for rows.Next() {
		var c Course
		var a PrincipalSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.ImageLink, &c.Price, &c.AdminID, &c.CreatedAt, &a.ID, &a.Name, &a.Email); err != nil {
			return nil, err
		}
		c.Admin = &a
		items = append(items, c)
	}
	return items, rows.Err()
}
