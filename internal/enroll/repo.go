// Package enroll provisions course access. Ensure relies on the UNIQUE
// (user_id, course_id) constraint: an insert conflict means the user is
// already enrolled and counts as success, which makes the operation safe to
// call concurrently from racing reconciliation triggers.
package enroll

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("enrollment not found")
)

type Repository interface {
	Ensure(ctx context.Context, e *Enrollment) (created bool, err error)
	ListByUser(ctx context.Context, userID string) ([]Enrollment, error)
	Stats(ctx context.Context, userID string) (*Stats, error)
	UpdateProgress(ctx context.Context, id, userID string, progress int) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Ensure(ctx context.Context, e *Enrollment) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		INSERT INTO enrollments (id, user_id, course_id, order_id, status, progress, enrolled_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,NOW())
		ON CONFLICT (user_id, course_id) DO NOTHING
	`, e.ID, e.UserID, e.CourseID, e.OrderID, e.Status, e.Progress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Enrollment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT e.id, e.user_id, e.course_id, COALESCE(e.order_id,''), e.status, e.progress,
		       e.enrolled_at, e.completed_at, COALESCE(c.title,'')
		FROM enrollments e LEFT JOIN courses c ON c.id = e.course_id
		WHERE e.user_id=$1
		ORDER BY e.enrolled_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Enrollment
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.OrderID, &e.Status, &e.Progress,
			&e.EnrolledAt, &e.CompletedAt, &e.CourseTitle); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepo) Stats(ctx context.Context, userID string) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status='completed'),
		       COUNT(*) FILTER (WHERE status='active'),
		       COALESCE(AVG(progress), 0)::float8
		FROM enrollments WHERE user_id=$1
	`, userID).Scan(&s.TotalEnrollments, &s.CompletedCourses, &s.InProgressCourses, &s.AverageProgress)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateProgress is owner-scoped; hitting 100 flips the enrollment to
// completed and stamps completed_at once.
func (r *PGRepo) UpdateProgress(ctx context.Context, id, userID string, progress int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE enrollments
		SET progress = $3,
		    status = CASE WHEN $3 >= 100 THEN 'completed' ELSE 'active' END,
		    completed_at = CASE WHEN $3 >= 100 AND completed_at IS NULL THEN NOW()
		                        WHEN $3 < 100 THEN NULL
		                        ELSE completed_at END
		WHERE id=$1 AND user_id=$2
	`, id, userID, progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
