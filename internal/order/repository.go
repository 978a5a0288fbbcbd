package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/payment"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// page clamps client-supplied pagination to values Postgres accepts.
func (f ListFilter) page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type Repository interface {
	// CreateCheckout reserves stock for every line item, inserts the order
	// with its items and the payment record, all inside one transaction.
	CreateCheckout(ctx context.Context, o *Order, p *payment.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateCheckout(ctx context.Context, o *Order, p *payment.Payment) (err error) {
	orderID := o.ID
	if orderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		orderID = genID
	}
	o.ID = orderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if pv := recover(); pv != nil {
			log.Error().Interface("panic_value", pv).Stringer("order_id_attempted", orderID).Msg("Panic recovered during CreateCheckout, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", orderID).Msg("Failed to rollback transaction after panic")
			}
			panic(pv)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", orderID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	// Reserve stock first: lock each product row, verify, decrement. Any
	// shortage rolls back the whole checkout.
	for _, item := range o.OrderItems {
		var stock int
		err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, item.ProductID).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
			}
			return err
		}
		if stock < item.Quantity {
			err = fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, item.ProductID, stock, item.Quantity)
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = $3 WHERE id = $1`,
			item.ProductID, item.Quantity, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("repository: failed to reserve stock for product %s: %w", item.ProductID, err)
		}
	}

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, total_amount, shipping_cost, shipping_address, destination, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, orderID, o.OrderNumber, o.UserID, string(o.Status), o.TotalAmount, o.ShippingCost, o.ShippingAddress, o.Destination, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.OrderItems {
		item := &o.OrderItems[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return err
		}
		item.ID = itemID
		item.OrderID = orderID
		item.CreatedAt = now

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price_per_unit, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, orderID, item.ProductID, item.Quantity, item.PricePerUnit, item.CreatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
		}
	}

	paymentID, genErr := uuid.NewV4()
	if genErr != nil {
		err = fmt.Errorf("repository: failed to generate payment ID: %w", genErr)
		return err
	}
	p.ID = paymentID
	p.OrderID = orderID
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, method, status, amount, gateway_ref, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, orderID, string(p.Method), string(p.Status), p.Amount, p.GatewayRef, p.PaidAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert payment for order %s: %w", orderID, err)
	}

	return nil
}

const orderColumns = `id, order_number, user_id, status, total_amount, shipping_cost, shipping_address, destination, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmount,
		&o.ShippingCost, &o.ShippingAddress, &o.Destination, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *postgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns), orderID), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_per_unit, created_at
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order id %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PricePerUnit, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order id %s: %w", orderID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order id %s: %w", orderID, err)
	}

	o.OrderItems = items
	return &o, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, orderColumns)

	orderRows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer orderRows.Close()

	return r.collectWithItems(ctx, orderRows)
}

func (r *postgresRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	limit, offset := f.page()

	var (
		query string
		args  []interface{}
	)
	if f.Status != "" {
		query = fmt.Sprintf(`SELECT %s FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, orderColumns)
		args = []interface{}{string(f.Status), limit, offset}
	} else {
		query = fmt.Sprintf(`SELECT %s FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, orderColumns)
		args = []interface{}{limit, offset}
	}

	orderRows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer orderRows.Close()

	return r.collectWithItems(ctx, orderRows)
}

// collectWithItems scans the order rows then loads all their items in a
// single second query, stitching by order id.
func (r *postgresRepository) collectWithItems(ctx context.Context, orderRows pgx.Rows) ([]Order, error) {
	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for orderRows.Next() {
		var o Order
		if err := scanOrder(orderRows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.OrderItems = make([]OrderItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err := orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_per_unit, created_at
		FROM order_items
		WHERE order_id = ANY($1)
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PricePerUnit, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.OrderItems = append(o.OrderItems, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}
	return result, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3
	`, string(newStatus), time.Now().UTC(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Str("new_status", string(newStatus)).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
