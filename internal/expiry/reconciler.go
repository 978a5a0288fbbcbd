// Package expiry cancels stale pending orders. Bank-transfer checkouts by
// member-tier customers reserve stock up front; when no money arrives within
// the age limit, the sweep cancels the order, puts the stock back and expires
// the payment record, one atomic transaction per order.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/erp"
)

type ExpiredOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// ExpiredOrder is a pending order selected for cancellation, with just the
// fields the sweep needs: line items for restocking, payment id to expire,
// owner email for the log.
type ExpiredOrder struct {
	OrderID     uuid.UUID
	OrderNumber string
	PaymentID   uuid.UUID
	UserEmail   string
	Items       []ExpiredOrderItem
}

type Store interface {
	// SelectExpired returns pending orders created before cutoff, owned by
	// member-tier customers, that have a payment record.
	SelectExpired(ctx context.Context, cutoff time.Time) ([]ExpiredOrder, error)
	// CancelOrder atomically cancels the order, restores stock for every
	// line item and marks the payment EXPIRED.
	CancelOrder(ctx context.Context, o ExpiredOrder) error
}

type Reconciler struct {
	store  Store
	maxAge time.Duration
	// The accounting system never saw a stock decrement for these pending
	// member orders, so restoring stock here must not push to it either.
	// The client is held only so the wiring stays explicit about that.
	erp erp.Client
	now func() time.Time
}

func NewReconciler(store Store, maxAge time.Duration, erpClient erp.Client) *Reconciler {
	return &Reconciler{store: store, maxAge: maxAge, erp: erpClient, now: time.Now}
}

// Sweep runs one pass. A selection failure aborts the sweep and is returned;
// a failure on an individual order is logged and the sweep moves on, leaving
// that order PENDING for the next pass.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := r.now().Add(-r.maxAge)

	expired, err := r.store.SelectExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expiry: failed to select expired orders: %w", err)
	}

	if len(expired) == 0 {
		log.Info().Time("cutoff", cutoff).Msg("expiry: no expired pending orders")
		return nil
	}

	log.Info().Int("count", len(expired)).Time("cutoff", cutoff).Msg("expiry: sweep started")

	cancelled := 0
	for _, o := range expired {
		if err := r.store.CancelOrder(ctx, o); err != nil {
			log.Error().Err(err).
				Stringer("order_id", o.OrderID).
				Str("order_number", o.OrderNumber).
				Msg("expiry: failed to cancel order, skipping")
			continue
		}
		cancelled++
		log.Info().
			Stringer("order_id", o.OrderID).
			Str("order_number", o.OrderNumber).
			Str("user_email", o.UserEmail).
			Msg("expiry: order cancelled, stock restored, payment expired")
	}

	log.Info().Int("cancelled", cancelled).Int("selected", len(expired)).Msg("expiry: sweep finished")
	return nil
}
