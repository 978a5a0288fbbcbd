package order_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scooterparts/backend/internal/catalog"
	"github.com/scooterparts/backend/internal/erp"
	"github.com/scooterparts/backend/internal/order"
	"github.com/scooterparts/backend/internal/payment"
	"github.com/scooterparts/backend/internal/shipping"
)

type mockOrderRepo struct {
	createCheckoutFunc func(ctx context.Context, o *order.Order, p *payment.Payment) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	updateStatusFunc   func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) error

	createdOrder   *order.Order
	createdPayment *payment.Payment
	updateCalls    int
}

func (m *mockOrderRepo) CreateCheckout(ctx context.Context, o *order.Order, p *payment.Payment) error {
	m.createdOrder = o
	m.createdPayment = p
	if m.createCheckoutFunc != nil {
		return m.createCheckoutFunc(ctx, o, p)
	}
	return nil
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, order.ErrOrderNotFound
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus order.Status) error {
	m.updateCalls++
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, orderID, newStatus)
	}
	return nil
}

// mockCatalog serves GetProduct from a fixed map; the order service never
// touches the rest of the catalog surface.
type mockCatalog struct {
	products map[uuid.UUID]catalog.View
}

func (m *mockCatalog) GetProduct(ctx context.Context, id uuid.UUID, priceCategoryID string) (*catalog.View, error) {
	v, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &v, nil
}

func (m *mockCatalog) ListProducts(ctx context.Context, f catalog.Filter, priceCategoryID string) ([]catalog.View, error) {
	return nil, nil
}
func (m *mockCatalog) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	return nil, nil
}
func (m *mockCatalog) CreateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	return nil, nil
}
func (m *mockCatalog) UpdateProduct(ctx context.Context, p *catalog.Product) error     { return nil }
func (m *mockCatalog) DeactivateProduct(ctx context.Context, id uuid.UUID) error       { return nil }
func (m *mockCatalog) SetStock(ctx context.Context, id uuid.UUID, stock int) error { return nil }
func (m *mockCatalog) SyncStock(ctx context.Context) (int, error)                  { return 0, nil }
func (m *mockCatalog) AddTier(ctx context.Context, t *catalog.PriceTier) (*catalog.PriceTier, error) {
	return nil, nil
}
func (m *mockCatalog) RemoveTier(ctx context.Context, productID, tierID uuid.UUID) error {
	return nil
}
func (m *mockCatalog) AddRule(ctx context.Context, r *catalog.PriceRule) (*catalog.PriceRule, error) {
	return nil, nil
}
func (m *mockCatalog) RemoveRule(ctx context.Context, productID, ruleID uuid.UUID) error {
	return nil
}
func (m *mockCatalog) CreateCategory(ctx context.Context, c *catalog.Category) (*catalog.Category, error) {
	return nil, nil
}

type mockGateway struct {
	createFunc func(ctx context.Context, orderNumber string, amount float64) (payment.GatewayTransaction, error)

	lastOrderNumber string
	lastAmount      float64
}

func (m *mockGateway) CreateTransaction(ctx context.Context, orderNumber string, amount float64) (payment.GatewayTransaction, error) {
	m.lastOrderNumber = orderNumber
	m.lastAmount = amount
	if m.createFunc != nil {
		return m.createFunc(ctx, orderNumber, amount)
	}
	return payment.GatewayTransaction{Ref: "gw-ref-1", RedirectURL: "https://pay.example/gw-ref-1"}, nil
}

type mockERP struct {
	invoices []erp.Invoice
	pushErr  error
}

func (m *mockERP) PushStock(ctx context.Context, update erp.StockUpdate) error { return nil }

func (m *mockERP) PushInvoice(ctx context.Context, inv erp.Invoice) error {
	m.invoices = append(m.invoices, inv)
	return m.pushErr
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func view(id uuid.UUID, sku string, finalPrice float64, weightGrams int) catalog.View {
	return catalog.View{
		Product:    catalog.Product{ID: id, SKU: sku, WeightGrams: weightGrams},
		FinalPrice: finalPrice,
		Price:      finalPrice,
	}
}

var orderNumberPattern = regexp.MustCompile(`^SP-\d{8}-[0-9A-F]{6}$`)

func TestService_Checkout(t *testing.T) {
	productA := mustUUID(t)
	productB := mustUUID(t)
	userID := mustUUID(t)

	catalogSvc := &mockCatalog{products: map[uuid.UUID]catalog.View{
		productA: view(productA, "SKU-A", 40, 500),
		productB: view(productB, "SKU-B", 12.5, 1200),
	}}

	t.Run("bank transfer order totals items plus shipping", func(t *testing.T) {
		repo := &mockOrderRepo{}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		res, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID: userID,
			Items: []order.CheckoutItem{
				{ProductID: productA, Quantity: 2},
				{ProductID: productB, Quantity: 1},
			},
			Destination:     "domestic",
			ShippingAddress: "1 Main St",
			PaymentMethod:   payment.MethodBankTransfer,
		}, "")
		require.NoError(t, err)
		require.NotNil(t, res.Order)

		// 2*500g + 1200g = 2.2kg, billed as 3 started kilograms.
		quote, err := shipping.NewCalculator().Calculate("domestic", 2200)
		require.NoError(t, err)

		assert.Equal(t, order.StatusPending, res.Order.Status)
		assert.Equal(t, userID, res.Order.UserID)
		assert.InDelta(t, 2*40+12.5+quote.Cost, res.Order.TotalAmount, 0.001)
		assert.InDelta(t, quote.Cost, res.Order.ShippingCost, 0.001)
		assert.Regexp(t, orderNumberPattern, res.Order.OrderNumber)
		assert.Nil(t, res.RedirectURL)

		require.Len(t, res.Order.OrderItems, 2)
		assert.InDelta(t, 40, res.Order.OrderItems[0].PricePerUnit, 0.001)

		require.NotNil(t, repo.createdPayment)
		assert.Equal(t, payment.MethodBankTransfer, repo.createdPayment.Method)
		assert.Equal(t, payment.StatusUnpaid, repo.createdPayment.Status)
		assert.InDelta(t, res.Order.TotalAmount, repo.createdPayment.Amount, 0.001)
		assert.Nil(t, repo.createdPayment.GatewayRef)
	})

	t.Run("gateway order carries transaction ref and redirect", func(t *testing.T) {
		repo := &mockOrderRepo{}
		gw := &mockGateway{}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), gw, &mockERP{})

		res, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID:          userID,
			Items:           []order.CheckoutItem{{ProductID: productA, Quantity: 1}},
			Destination:     "local",
			ShippingAddress: "1 Main St",
			PaymentMethod:   payment.MethodGateway,
		}, "")
		require.NoError(t, err)

		assert.Equal(t, res.Order.OrderNumber, gw.lastOrderNumber)
		assert.InDelta(t, res.Order.TotalAmount, gw.lastAmount, 0.001)

		require.NotNil(t, res.RedirectURL)
		assert.Equal(t, "https://pay.example/gw-ref-1", *res.RedirectURL)
		require.NotNil(t, repo.createdPayment.GatewayRef)
		assert.Equal(t, "gw-ref-1", *repo.createdPayment.GatewayRef)
	})

	t.Run("gateway failure aborts before the repository", func(t *testing.T) {
		repo := &mockOrderRepo{}
		gw := &mockGateway{createFunc: func(ctx context.Context, orderNumber string, amount float64) (payment.GatewayTransaction, error) {
			return payment.GatewayTransaction{}, errors.New("provider down")
		}}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), gw, &mockERP{})

		_, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID:        userID,
			Items:         []order.CheckoutItem{{ProductID: productA, Quantity: 1}},
			Destination:   "local",
			PaymentMethod: payment.MethodGateway,
		}, "")
		require.Error(t, err)
		assert.Nil(t, repo.createdOrder)
	})

	t.Run("empty cart is rejected", func(t *testing.T) {
		svc := order.NewService(&mockOrderRepo{}, catalogSvc, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		_, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID:        userID,
			Destination:   "local",
			PaymentMethod: payment.MethodBankTransfer,
		}, "")
		assert.ErrorIs(t, err, order.ErrEmptyOrder)
	})

	t.Run("zero quantity is rejected", func(t *testing.T) {
		svc := order.NewService(&mockOrderRepo{}, catalogSvc, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		_, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID:        userID,
			Items:         []order.CheckoutItem{{ProductID: productA, Quantity: 0}},
			Destination:   "local",
			PaymentMethod: payment.MethodBankTransfer,
		}, "")
		require.Error(t, err)
	})

	t.Run("unknown product surfaces not found", func(t *testing.T) {
		svc := order.NewService(&mockOrderRepo{}, catalogSvc, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		_, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID:        userID,
			Items:         []order.CheckoutItem{{ProductID: mustUUID(t), Quantity: 1}},
			Destination:   "local",
			PaymentMethod: payment.MethodBankTransfer,
		}, "")
		assert.ErrorIs(t, err, order.ErrProductNotFound)
	})

	t.Run("unknown destination surfaces shipping error", func(t *testing.T) {
		svc := order.NewService(&mockOrderRepo{}, catalogSvc, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		_, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID:        userID,
			Items:         []order.CheckoutItem{{ProductID: productA, Quantity: 1}},
			Destination:   "moon",
			PaymentMethod: payment.MethodBankTransfer,
		}, "")
		assert.ErrorIs(t, err, shipping.ErrUnknownDestination)
	})

	t.Run("insufficient stock passes through unwrapped", func(t *testing.T) {
		repo := &mockOrderRepo{createCheckoutFunc: func(ctx context.Context, o *order.Order, p *payment.Payment) error {
			return order.ErrInsufficientStock
		}}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		_, err := svc.Checkout(context.Background(), order.CheckoutInput{
			UserID:        userID,
			Items:         []order.CheckoutItem{{ProductID: productA, Quantity: 99}},
			Destination:   "local",
			PaymentMethod: payment.MethodBankTransfer,
		}, "")
		assert.ErrorIs(t, err, order.ErrInsufficientStock)
	})
}

func TestService_UpdateOrderStatus(t *testing.T) {
	orderID := mustUUID(t)

	newSvc := func(current order.Status, repo *mockOrderRepo) order.Service {
		repo.getByIDFunc = func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return &order.Order{ID: orderID, Status: current}, nil
		}
		return order.NewService(repo, &mockCatalog{}, shipping.NewCalculator(), &mockGateway{}, &mockERP{})
	}

	t.Run("allowed transition is persisted", func(t *testing.T) {
		repo := &mockOrderRepo{}
		svc := newSvc(order.StatusPaid, repo)

		require.NoError(t, svc.UpdateOrderStatus(context.Background(), orderID, order.StatusProcessing))
		assert.Equal(t, 1, repo.updateCalls)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		repo := &mockOrderRepo{}
		svc := newSvc(order.StatusShipped, repo)

		require.NoError(t, svc.UpdateOrderStatus(context.Background(), orderID, order.StatusShipped))
		assert.Equal(t, 0, repo.updateCalls)
	})

	t.Run("illegal transition is rejected", func(t *testing.T) {
		repo := &mockOrderRepo{}
		svc := newSvc(order.StatusPending, repo)

		err := svc.UpdateOrderStatus(context.Background(), orderID, order.StatusShipped)
		assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)
		assert.Equal(t, 0, repo.updateCalls)
	})

	t.Run("terminal statuses stay put", func(t *testing.T) {
		for _, terminal := range []order.Status{order.StatusCompleted, order.StatusCancelled, order.StatusRefunded} {
			repo := &mockOrderRepo{}
			svc := newSvc(terminal, repo)

			err := svc.UpdateOrderStatus(context.Background(), orderID, order.StatusProcessing)
			assert.ErrorIs(t, err, order.ErrInvalidStatusTransition, "from %s", terminal)
		}
	})

	t.Run("missing order surfaces not found", func(t *testing.T) {
		repo := &mockOrderRepo{getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		}}
		svc := order.NewService(repo, &mockCatalog{}, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		err := svc.UpdateOrderStatus(context.Background(), orderID, order.StatusPaid)
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})
}

func TestService_MarkOrderPaid(t *testing.T) {
	orderID := mustUUID(t)
	productA := mustUUID(t)

	catalogSvc := &mockCatalog{products: map[uuid.UUID]catalog.View{
		productA: view(productA, "SKU-A", 40, 500),
	}}

	pendingOrder := func() *order.Order {
		return &order.Order{
			ID:          orderID,
			OrderNumber: "SP-20260831-ABCDEF",
			Status:      order.StatusPending,
			TotalAmount: 89,
			OrderItems: []order.OrderItem{
				{ProductID: productA, Quantity: 2, PricePerUnit: 40},
			},
		}
	}

	t.Run("pending order is paid and invoiced", func(t *testing.T) {
		repo := &mockOrderRepo{getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return pendingOrder(), nil
		}}
		erpClient := &mockERP{}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, erpClient)

		require.NoError(t, svc.MarkOrderPaid(context.Background(), orderID))
		assert.Equal(t, 1, repo.updateCalls)

		require.Len(t, erpClient.invoices, 1)
		inv := erpClient.invoices[0]
		assert.Equal(t, "SP-20260831-ABCDEF", inv.OrderNumber)
		assert.InDelta(t, 89, inv.Total, 0.001)
		require.Len(t, inv.Lines, 1)
		assert.Equal(t, "SKU-A", inv.Lines[0].SKU)
		assert.Equal(t, 2, inv.Lines[0].Quantity)
	})

	t.Run("already paid order is left alone", func(t *testing.T) {
		repo := &mockOrderRepo{getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			o := pendingOrder()
			o.Status = order.StatusPaid
			return o, nil
		}}
		erpClient := &mockERP{}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, erpClient)

		require.NoError(t, svc.MarkOrderPaid(context.Background(), orderID))
		assert.Equal(t, 0, repo.updateCalls)
		assert.Empty(t, erpClient.invoices)
	})

	t.Run("cancelled order cannot be paid", func(t *testing.T) {
		repo := &mockOrderRepo{getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			o := pendingOrder()
			o.Status = order.StatusCancelled
			return o, nil
		}}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, &mockERP{})

		err := svc.MarkOrderPaid(context.Background(), orderID)
		assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)
	})

	t.Run("paid order invoice can be resynced", func(t *testing.T) {
		repo := &mockOrderRepo{getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			o := pendingOrder()
			o.Status = order.StatusShipped
			return o, nil
		}}
		erpClient := &mockERP{}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, erpClient)

		require.NoError(t, svc.SyncInvoice(context.Background(), orderID))
		require.Len(t, erpClient.invoices, 1)
		assert.Equal(t, "SP-20260831-ABCDEF", erpClient.invoices[0].OrderNumber)
	})

	t.Run("pending order invoice cannot be resynced", func(t *testing.T) {
		repo := &mockOrderRepo{getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return pendingOrder(), nil
		}}
		erpClient := &mockERP{}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, erpClient)

		err := svc.SyncInvoice(context.Background(), orderID)
		assert.ErrorIs(t, err, order.ErrOrderNotPaid)
		assert.Empty(t, erpClient.invoices)
	})

	t.Run("invoice push failure does not fail the payment", func(t *testing.T) {
		repo := &mockOrderRepo{getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return pendingOrder(), nil
		}}
		erpClient := &mockERP{pushErr: errors.New("erp offline")}
		svc := order.NewService(repo, catalogSvc, shipping.NewCalculator(), &mockGateway{}, erpClient)

		require.NoError(t, svc.MarkOrderPaid(context.Background(), orderID))
		assert.Equal(t, 1, repo.updateCalls)
	})
}
