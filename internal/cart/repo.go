// Package cart provides the per-user cart store. Lines are unique per
// (user, course); adding an existing course increments its quantity.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func newID() string { return uuid.NewString() }

var (
	ErrNotFound  = errors.New("cart item not found")
	ErrForbidden = errors.New("cart item belongs to another user")
)

type Repository interface {
	Add(ctx context.Context, userID, courseID string, qty int) (*Line, error)
	Get(ctx context.Context, id string) (*Line, error)
	Remove(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) (int64, error)
	Lines(ctx context.Context, userID string) ([]Line, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

// Add upserts: the UNIQUE (user_id, course_id) constraint turns a repeat add
// into a quantity increment.
func (r *PGRepo) Add(ctx context.Context, userID, courseID string, qty int) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, course_id, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NOW(),NOW())
		ON CONFLICT (user_id, course_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id
	`, newID(), userID, courseID, qty).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *PGRepo) Get(ctx context.Context, id string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var l Line
	err := r.db.QueryRow(ctx, `
		SELECT ci.id, ci.user_id, ci.course_id, ci.quantity, c.title, c.price::text, ci.created_at, ci.updated_at
		FROM cart_items ci JOIN courses c ON c.id = ci.course_id
		WHERE ci.id=$1
	`, id).Scan(&l.ID, &l.UserID, &l.CourseID, &l.Quantity, &l.CourseTitle, &l.CoursePrice, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, ErrNotFound
	}
	return &l, nil
}

// Remove is owner-checked: deleting another user's line is ErrForbidden, not
// a silent no-op.
func (r *PGRepo) Remove(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var owner string
	if err := r.db.QueryRow(ctx, `SELECT user_id FROM cart_items WHERE id=$1`, id).Scan(&owner); err != nil {
		return ErrNotFound
	}
	if owner != userID {
		return ErrForbidden
	}
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, id)
	return err
}

func (r *PGRepo) Clear(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepo) Lines(ctx context.Context, userID string) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT ci.id, ci.user_id, ci.course_id, ci.quantity, c.title, c.price::text, ci.created_at, ci.updated_at
		FROM cart_items ci JOIN courses c ON c.id = ci.course_id
		WHERE ci.user_id=$1
		ORDER BY ci.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.UserID, &l.CourseID, &l.Quantity, &l.CourseTitle, &l.CoursePrice, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
