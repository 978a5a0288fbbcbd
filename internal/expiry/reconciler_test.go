package expiry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scooterparts/backend/internal/expiry"
	"github.com/scooterparts/backend/internal/payment"
	"github.com/scooterparts/backend/internal/user"
)

// seededOrder is a pending order as the mock store sees it, with enough
// attributes to exercise the selection contract.
type seededOrder struct {
	order      expiry.ExpiredOrder
	createdAt  time.Time
	tier       user.Tier
	hasPayment bool
	status     string
}

type mockStore struct {
	orders    []seededOrder
	stocks    map[uuid.UUID]int
	payments  map[uuid.UUID]payment.Status
	failFor   map[uuid.UUID]error
	selectErr error

	cancelCalls []uuid.UUID
	lastCutoff  time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		stocks:   make(map[uuid.UUID]int),
		payments: make(map[uuid.UUID]payment.Status),
		failFor:  make(map[uuid.UUID]error),
	}
}

func (m *mockStore) SelectExpired(ctx context.Context, cutoff time.Time) ([]expiry.ExpiredOrder, error) {
	m.lastCutoff = cutoff
	if m.selectErr != nil {
		return nil, m.selectErr
	}

	var out []expiry.ExpiredOrder
	for _, s := range m.orders {
		if s.status != "PENDING" || s.tier != user.TierMember || !s.hasPayment {
			continue
		}
		if !s.createdAt.Before(cutoff) {
			continue
		}
		out = append(out, s.order)
	}
	return out, nil
}

func (m *mockStore) CancelOrder(ctx context.Context, o expiry.ExpiredOrder) error {
	m.cancelCalls = append(m.cancelCalls, o.OrderID)
	if err, ok := m.failFor[o.OrderID]; ok {
		return err
	}

	for i := range m.orders {
		if m.orders[i].order.OrderID == o.OrderID {
			m.orders[i].status = "CANCELLED"
		}
	}
	for _, item := range o.Items {
		m.stocks[item.ProductID] += item.Quantity
	}
	m.payments[o.PaymentID] = payment.StatusExpired
	return nil
}

func (m *mockStore) statusOf(orderID uuid.UUID) string {
	for _, s := range m.orders {
		if s.order.OrderID == orderID {
			return s.status
		}
	}
	return ""
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func seedOrder(t *testing.T, store *mockStore, age time.Duration, tier user.Tier, hasPayment bool, now time.Time, quantities ...int) expiry.ExpiredOrder {
	t.Helper()

	o := expiry.ExpiredOrder{
		OrderID:     mustUUID(t),
		OrderNumber: "SP-20250601-TEST01",
		PaymentID:   mustUUID(t),
		UserEmail:   "customer@example.com",
	}
	for _, q := range quantities {
		o.Items = append(o.Items, expiry.ExpiredOrderItem{ProductID: mustUUID(t), Quantity: q})
	}

	store.orders = append(store.orders, seededOrder{
		order:      o,
		createdAt:  now.Add(-age),
		tier:       tier,
		hasPayment: hasPayment,
		status:     "PENDING",
	})
	return o
}

func newReconciler(store expiry.Store) *expiry.Reconciler {
	return expiry.NewReconciler(store, 24*time.Hour, nil)
}

func TestSweep_CancelsExpiredMemberOrder(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	o := seedOrder(t, store, 25*time.Hour, user.TierMember, true, now, 2, 1)

	err := newReconciler(store).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "CANCELLED", store.statusOf(o.OrderID))
	assert.Equal(t, 2, store.stocks[o.Items[0].ProductID])
	assert.Equal(t, 1, store.stocks[o.Items[1].ProductID])
	assert.Equal(t, payment.StatusExpired, store.payments[o.PaymentID])
}

func TestSweep_LeavesRecentOrderAlone(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	o := seedOrder(t, store, 23*time.Hour, user.TierMember, true, now, 2)

	err := newReconciler(store).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "PENDING", store.statusOf(o.OrderID))
	assert.Empty(t, store.cancelCalls)
	assert.Empty(t, store.stocks)
}

func TestSweep_LeavesResellerOrderAlone(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	o := seedOrder(t, store, 25*time.Hour, user.TierReseller, true, now, 2)

	err := newReconciler(store).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "PENDING", store.statusOf(o.OrderID))
	assert.Empty(t, store.cancelCalls)
}

func TestSweep_LeavesOrderWithoutPaymentAlone(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	o := seedOrder(t, store, 25*time.Hour, user.TierMember, false, now, 2)

	err := newReconciler(store).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "PENDING", store.statusOf(o.OrderID))
	assert.Empty(t, store.cancelCalls)
}

func TestSweep_EmptySelectionIsNoop(t *testing.T) {
	store := newMockStore()

	err := newReconciler(store).Sweep(context.Background())
	require.NoError(t, err)

	assert.Empty(t, store.cancelCalls)
	assert.Empty(t, store.stocks)
	assert.Empty(t, store.payments)
}

func TestSweep_OrderFailureDoesNotAbortBatch(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	first := seedOrder(t, store, 26*time.Hour, user.TierMember, true, now, 3)
	second := seedOrder(t, store, 25*time.Hour, user.TierMember, true, now, 2)
	store.failFor[first.OrderID] = errors.New("deadlock detected")

	err := newReconciler(store).Sweep(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.cancelCalls, 2)
	assert.Equal(t, "PENDING", store.statusOf(first.OrderID))
	assert.Equal(t, "CANCELLED", store.statusOf(second.OrderID))
	assert.Equal(t, 2, store.stocks[second.Items[0].ProductID])
	assert.Equal(t, payment.StatusExpired, store.payments[second.PaymentID])
	_, firstTouched := store.stocks[first.Items[0].ProductID]
	assert.False(t, firstTouched)
}

func TestSweep_SelectionFailureAbortsSweep(t *testing.T) {
	store := newMockStore()
	store.selectErr = errors.New("connection refused")

	err := newReconciler(store).Sweep(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.cancelCalls)
}

func TestSweep_CutoffIsMaxAgeBeforeNow(t *testing.T) {
	store := newMockStore()

	before := time.Now()
	err := expiry.NewReconciler(store, 24*time.Hour, nil).Sweep(context.Background())
	after := time.Now()
	require.NoError(t, err)

	assert.True(t, !store.lastCutoff.Before(before.Add(-24*time.Hour)))
	assert.True(t, !store.lastCutoff.After(after.Add(-24*time.Hour)))
}
