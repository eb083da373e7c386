// Package order is the durable ledger of completed purchases. The UNIQUE
// constraint on payment_ref is the reconciliation idempotency gate: a create
// racing another trigger fails with ErrDuplicateReference and the caller
// treats the existing row as the outcome.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound           = errors.New("order not found")
	ErrDuplicateReference = errors.New("order already exists for payment reference")
	ErrTerminal           = errors.New("order status is terminal")
)

type Repository interface {
	Create(ctx context.Context, o *Order, items []Item) error
	GetByID(ctx context.Context, id string) (*Order, []Item, error)
	GetByPaymentRef(ctx context.Context, ref string) (*Order, []Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	GetItems(ctx context.Context, orderID string) ([]Item, error)
	Stats(ctx context.Context, userID string) (*Stats, error)
	UpdateStatus(ctx context.Context, id, status, lastError string) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const uniqueViolation = "23505"

func (r *PGRepo) Create(ctx context.Context, o *Order, items []Item) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO orders (id, user_id, total, status, payment_method, payment_ref, last_error, created_at, paid_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),NOW(),CASE WHEN $4='paid' THEN NOW() END,NOW())
  `, o.ID, o.UserID, o.Total, o.Status, o.PaymentMethod, o.PaymentRef, o.LastError); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateReference
		}
		return err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, course_id, quantity, price)
      VALUES ($1,$2,$3,$4,$5)
    `, it.ID, o.ID, it.CourseID, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const orderCols = `id,user_id,status,total::text,payment_method,payment_ref,COALESCE(last_error,''),created_at,paid_at,updated_at`

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, []Item, error) {
	return r.getBy(ctx, `WHERE id=$1`, id)
}

func (r *PGRepo) GetByPaymentRef(ctx context.Context, ref string) (*Order, []Item, error) {
	return r.getBy(ctx, `WHERE payment_ref=$1`, ref)
}

func (r *PGRepo) getBy(ctx context.Context, where, arg string) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Order
	err := r.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders `+where, arg).
		Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.PaymentMethod, &o.PaymentRef, &o.LastError, &o.CreatedAt, &o.PaidAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	items, err := r.GetItems(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
    SELECT `+orderCols+`
    FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.PaymentMethod, &o.PaymentRef, &o.LastError, &o.CreatedAt, &o.PaidAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetItems(ctx context.Context, orderID string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, course_id, quantity, price::text
    FROM order_items
    WHERE order_id = $1
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.CourseID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus only moves pending rows. A second gateway event reporting the
// opposite terminal status gets ErrTerminal and is ignored by callers.
func (r *PGRepo) Stats(ctx context.Context, userID string) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s Stats
	err := r.db.QueryRow(ctx, `
    SELECT COUNT(*),
           COALESCE(SUM(total) FILTER (WHERE status='paid'), 0)::numeric(12,2)::text,
           COUNT(*) FILTER (WHERE status='paid')
    FROM orders WHERE user_id=$1
  `, userID).Scan(&s.TotalOrders, &s.TotalSpent, &s.CompletedOrders)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id, status, lastError string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
    UPDATE orders
    SET status = $2,
        last_error = NULLIF($3,''),
        paid_at = CASE WHEN $2='paid' THEN NOW() ELSE paid_at END,
        updated_at = NOW()
    WHERE id = $1 AND status = 'pending'
  `, id, status, lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var current string
		if err := r.db.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&current); err != nil {
			return ErrNotFound
		}
		return ErrTerminal
	}
	return nil
}
