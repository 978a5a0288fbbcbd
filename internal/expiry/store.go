package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/order"
	"github.com/scooterparts/backend/internal/payment"
	"github.com/scooterparts/backend/internal/user"
)

type postgresStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) SelectExpired(ctx context.Context, cutoff time.Time) ([]ExpiredOrder, error) {
	// Orders without a payment row belong to a checkout flow this sweep
	// does not own; the join filters them out.
	rows, err := s.db.Query(ctx, `
		SELECT o.id, o.order_number, p.id, u.email
		FROM orders o
		JOIN payments p ON p.order_id = o.id
		JOIN users u ON u.id = o.user_id
		WHERE o.status = $1
		  AND o.created_at < $2
		  AND u.tier = $3
		ORDER BY o.created_at
	`, string(order.StatusPending), cutoff, string(user.TierMember))
	if err != nil {
		return nil, fmt.Errorf("store: failed to query expired orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*ExpiredOrder)
	var orderIDs []uuid.UUID
	for rows.Next() {
		var o ExpiredOrder
		if err := rows.Scan(&o.OrderID, &o.OrderNumber, &o.PaymentID, &o.UserEmail); err != nil {
			return nil, fmt.Errorf("store: failed to scan expired order: %w", err)
		}
		ordersMap[o.OrderID] = &o
		orderIDs = append(orderIDs, o.OrderID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating expired orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []ExpiredOrder{}, nil
	}

	itemRows, err := s.db.Query(ctx, `
		SELECT order_id, product_id, quantity
		FROM order_items
		WHERE order_id = ANY($1)
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query expired order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID uuid.UUID
			item    ExpiredOrderItem
		)
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("store: failed to scan expired order item: %w", err)
		}
		if o, ok := ordersMap[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating expired order items: %w", err)
	}

	result := make([]ExpiredOrder, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}
	return result, nil
}

func (s *postgresStore) CancelOrder(ctx context.Context, o ExpiredOrder) (err error) {
	tx, beginErr := s.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if pv := recover(); pv != nil {
			log.Error().Interface("panic_value", pv).Stringer("order_id", o.OrderID).Msg("Panic recovered during CancelOrder, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.OrderID).Msg("Failed to rollback transaction after panic")
			}
			panic(pv)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.OrderID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("store: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	now := time.Now().UTC()

	// The status guard makes the cancellation idempotent under a racing
	// sweep: a second transaction affects zero rows and backs out.
	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, string(order.StatusCancelled), now, o.OrderID, string(order.StatusPending))
	if err != nil {
		return fmt.Errorf("store: failed to cancel order %s: %w", o.OrderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		err = fmt.Errorf("store: order %s is no longer pending", o.OrderID)
		return err
	}

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1
		`, item.ProductID, item.Quantity, now)
		if err != nil {
			return fmt.Errorf("store: failed to restore stock for product %s: %w", item.ProductID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3
	`, string(payment.StatusExpired), now, o.PaymentID)
	if err != nil {
		return fmt.Errorf("store: failed to expire payment %s: %w", o.PaymentID, err)
	}

	return nil
}
