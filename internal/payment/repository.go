package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Repository interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	GetByGatewayRef(ctx context.Context, ref string) (*Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const paymentColumns = `id, order_id, method, status, amount, gateway_ref, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount,
		&p.GatewayRef, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE order_id = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, orderID))
}

func (r *postgresRepository) GetByGatewayRef(ctx context.Context, ref string) (*Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE gateway_ref = $1`, paymentColumns)
	return scanPayment(r.db.QueryRow(ctx, query, ref))
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update payment status %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *postgresRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE payments SET status = $1, paid_at = $2, updated_at = $3 WHERE id = $4
	`, string(StatusPaid), paidAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to mark payment %s paid: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
