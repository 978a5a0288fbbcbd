package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadySettled  = errors.New("payment already settled")
	ErrNotBankTransfer = errors.New("payment is not a bank transfer")
)

// OrderMarker flips the owning order when a payment settles. Implemented by
// the order service; declared here to keep the dependency one-way.
type OrderMarker interface {
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error
}

type Service interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	// HandleGatewayCallback settles a gateway payment: success marks the
	// payment and its order paid, failure marks the payment FAILED and
	// leaves the order PENDING for retry or expiration.
	HandleGatewayCallback(ctx context.Context, gatewayRef string, succeeded bool) error
	// ConfirmBankTransfer is the admin acknowledging a manual transfer.
	ConfirmBankTransfer(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo   Repository
	orders OrderMarker
	now    func() time.Time
}

func NewService(repo Repository, orders OrderMarker) Service {
	return &service{repo: repo, orders: orders, now: time.Now}
}

func (s *service) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch payment: %w", err)
	}
	return p, nil
}

func (s *service) HandleGatewayCallback(ctx context.Context, gatewayRef string, succeeded bool) error {
	p, err := s.repo.GetByGatewayRef(ctx, gatewayRef)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("service: failed to fetch payment by gateway ref: %w", err)
	}

	if p.Status != StatusUnpaid && p.Status != StatusFailed {
		log.Warn().Stringer("payment_id", p.ID).Str("status", string(p.Status)).Msg("service: callback for settled payment ignored")
		return ErrAlreadySettled
	}

	if !succeeded {
		if err := s.repo.UpdateStatus(ctx, p.ID, StatusFailed); err != nil {
			return fmt.Errorf("service: failed to mark payment failed: %w", err)
		}
		log.Info().Stringer("payment_id", p.ID).Stringer("order_id", p.OrderID).Msg("service: gateway payment failed")
		return nil
	}

	if err := s.repo.MarkPaid(ctx, p.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("service: failed to mark payment paid: %w", err)
	}
	if err := s.orders.MarkOrderPaid(ctx, p.OrderID); err != nil {
		return fmt.Errorf("service: payment settled but order update failed: %w", err)
	}

	log.Info().Stringer("payment_id", p.ID).Stringer("order_id", p.OrderID).Msg("service: gateway payment settled")
	return nil
}

func (s *service) ConfirmBankTransfer(ctx context.Context, orderID uuid.UUID) error {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("service: failed to fetch payment: %w", err)
	}

	// Gateway payments settle only through the provider callback.
	if p.Method != MethodBankTransfer {
		return fmt.Errorf("%w: order %s uses %s", ErrNotBankTransfer, orderID, p.Method)
	}
	if p.Status != StatusUnpaid {
		return ErrAlreadySettled
	}

	if err := s.repo.MarkPaid(ctx, p.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("service: failed to mark payment paid: %w", err)
	}
	if err := s.orders.MarkOrderPaid(ctx, p.OrderID); err != nil {
		return fmt.Errorf("service: payment settled but order update failed: %w", err)
	}

	log.Info().Stringer("payment_id", p.ID).Stringer("order_id", orderID).Msg("service: bank transfer confirmed")
	return nil
}
