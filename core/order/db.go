package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/learnhub/lms/core/entitlement"
	"github.com/learnhub/lms/database"
)

// ErrNotSettleable reports that a settlement did not apply: the order id is
// unknown or the order was settled before. Webhook callers swallow it to
// stay tolerant of replayed gateway notifications.
var ErrNotSettleable = errors.New("order unknown or already settled")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, course_id, amount, provider, payment_ref, status, settled_at, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :course_id, :amount, :provider, :payment_ref, :status, :settled_at, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}

	return ord, nil
}

func FetchByPaymentRef(ctx context.Context, db sqlx.ExtContext, ref string) (Order, error) {
	const q = `SELECT * FROM orders WHERE payment_ref = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, ref); err != nil {
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", ref, err)
	}

	return ord, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]AdminOrder, error) {
	const q = `
	SELECT o.*, u.email AS user_email, c.title AS course_title
	FROM orders o
	JOIN users u ON u.user_id = o.user_id
	JOIN courses c ON c.course_id = o.course_id
	ORDER BY o.created_at DESC`

	orders := []AdminOrder{}
	if err := sqlx.SelectContext(ctx, db, &orders, q); err != nil {
		return nil, fmt.Errorf("selecting orders: %w", err)
	}

	return orders, nil
}

// markSettled performs the single idempotent transition of an order to
// paid. Zero rows updated means unknown-or-already-settled.
func markSettled(ctx context.Context, tx sqlx.ExtContext, orderID string, paymentRef string) (Order, error) {
	const q = `
	UPDATE orders
	SET status = 'paid', payment_ref = $2, settled_at = $3, updated_at = $3
	WHERE order_id = $1 AND settled_at IS NULL
	RETURNING *`

	var ord Order
	err := sqlx.GetContext(ctx, tx, &ord, q, orderID, paymentRef, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotSettleable
		}
		return Order{}, fmt.Errorf("marking order[%s] settled: %w", orderID, err)
	}

	return ord, nil
}

func incrementSales(ctx context.Context, tx sqlx.ExtContext, courseID string) error {
	const q = `UPDATE courses SET sales = sales + 1 WHERE course_id = $1`

	if _, err := tx.ExecContext(ctx, q, courseID); err != nil {
		return fmt.Errorf("incrementing sales of course[%s]: %w", courseID, err)
	}

	return nil
}

// Settle transitions the order to paid, grants the entitlement and counts
// the sale, all inside one transaction keyed on the order's settlement
// marker. A replay or an unknown order id leaves every table untouched and
// returns ErrNotSettleable.
func Settle(ctx context.Context, db *sqlx.DB, orderID string, paymentRef string) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		ord, err := markSettled(ctx, tx, orderID, paymentRef)
		if err != nil {
			return err
		}

		if err := entitlement.Grant(ctx, tx, ord.UserID, ord.CourseID); err != nil {
			return err
		}

		return incrementSales(ctx, tx, ord.CourseID)
	})

	if err != nil && !errors.Is(err, ErrNotSettleable) {
		return fmt.Errorf("settling order[%s]: %w", orderID, err)
	}
	return err
}
