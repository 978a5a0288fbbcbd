package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/catalog"
	"github.com/scooterparts/backend/internal/erp"
	"github.com/scooterparts/backend/internal/payment"
	"github.com/scooterparts/backend/internal/shipping"
)

var (
	ErrEmptyOrder              = errors.New("order must contain at least one item")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

type CheckoutItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type CheckoutInput struct {
	UserID          uuid.UUID
	Items           []CheckoutItem
	Destination     string
	ShippingAddress string
	PaymentMethod   payment.Method
}

// CheckoutResult is the created order plus, for gateway payments, the URL
// the customer is redirected to.
type CheckoutResult struct {
	Order       *Order  `json:"order"`
	RedirectURL *string `json:"redirect_url,omitempty"`
}

type Service interface {
	Checkout(ctx context.Context, in CheckoutInput, priceCategoryID string) (*CheckoutResult, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error
	SyncInvoice(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	orderRepo Repository
	catalog   catalog.Service
	shipping  *shipping.Calculator
	gateway   payment.GatewayClient
	erp       erp.Client
	now       func() time.Time
}

func NewService(orderRepo Repository, catalogSvc catalog.Service, shippingCalc *shipping.Calculator, gateway payment.GatewayClient, erpClient erp.Client) Service {
	return &service{
		orderRepo: orderRepo,
		catalog:   catalogSvc,
		shipping:  shippingCalc,
		gateway:   gateway,
		erp:       erpClient,
		now:       time.Now,
	}
}

func (s *service) Checkout(ctx context.Context, in CheckoutInput, priceCategoryID string) (*CheckoutResult, error) {
	if len(in.Items) == 0 {
		log.Warn().Stringer("user_id", in.UserID).Msg("service: attempt to checkout with no items")
		return nil, ErrEmptyOrder
	}

	var (
		items       []OrderItem
		itemsTotal  float64
		totalWeight int
	)
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("service: quantity for product %s must be greater than zero", it.ProductID)
		}

		view, err := s.catalog.GetProduct(ctx, it.ProductID, priceCategoryID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
			}
			return nil, fmt.Errorf("service: failed to load product %s: %w", it.ProductID, err)
		}

		items = append(items, OrderItem{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			PricePerUnit: view.FinalPrice,
		})
		itemsTotal += float64(it.Quantity) * view.FinalPrice
		totalWeight += it.Quantity * view.WeightGrams
	}

	quote, err := s.shipping.Calculate(in.Destination, totalWeight)
	if err != nil {
		return nil, fmt.Errorf("service: failed to quote shipping: %w", err)
	}

	o := &Order{
		OrderNumber:     s.newOrderNumber(),
		UserID:          in.UserID,
		Status:          StatusPending,
		OrderItems:      items,
		TotalAmount:     itemsTotal + quote.Cost,
		ShippingCost:    quote.Cost,
		ShippingAddress: in.ShippingAddress,
		Destination:     quote.Destination,
	}

	p := &payment.Payment{
		Method: in.PaymentMethod,
		Status: payment.StatusUnpaid,
		Amount: o.TotalAmount,
	}

	var redirectURL *string
	if in.PaymentMethod == payment.MethodGateway {
		tx, err := s.gateway.CreateTransaction(ctx, o.OrderNumber, o.TotalAmount)
		if err != nil {
			log.Error().Err(err).Str("order_number", o.OrderNumber).Msg("service: gateway transaction create failed")
			return nil, fmt.Errorf("service: failed to initiate gateway payment: %w", err)
		}
		p.GatewayRef = &tx.Ref
		redirectURL = &tx.RedirectURL
	}

	if err := s.orderRepo.CreateCheckout(ctx, o, p); err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrProductNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", in.UserID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Str("order_number", o.OrderNumber).Stringer("user_id", in.UserID).Msg("service: order created")
	return &CheckoutResult{Order: o, RedirectURL: redirectURL}, nil
}

func (s *service) newOrderNumber() string {
	suffix := "000000"
	if id, err := uuid.NewV4(); err == nil {
		suffix = strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
	}
	return fmt.Sprintf("SP-%s-%s", s.now().UTC().Format("20060102"), suffix)
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	orders, err := s.orderRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.Status == newStatus {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order status already set, no update needed")
		return nil
	}

	if !CanTransition(current.Status, newStatus) {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", current.Status).Stringer("new_status", newStatus).Msg("service: order status updated")
	return nil
}

// MarkOrderPaid moves a pending order to PAID and pushes its invoice to the
// accounting system. Called by the payment service once money has settled.
func (s *service) MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error {
	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for paid transition: %w", err)
	}

	if current.Status == StatusPaid {
		return nil
	}
	if !CanTransition(current.Status, StatusPaid) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, StatusPaid)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, StatusPaid); err != nil {
		return fmt.Errorf("service: failed to mark order paid: %w", err)
	}

	if err := s.pushInvoice(ctx, current); err != nil {
		// The order is paid either way; the accounting system catches up
		// on the next manual sync.
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: invoice push to ERP failed")
	}

	log.Info().Stringer("order_id", orderID).Str("order_number", current.OrderNumber).Msg("service: order marked paid")
	return nil
}

var ErrOrderNotPaid = errors.New("order is not paid")

// SyncInvoice re-pushes a paid order's invoice to the accounting system, for
// when the push at payment time failed.
func (s *service) SyncInvoice(ctx context.Context, orderID uuid.UUID) error {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for invoice sync: %w", err)
	}

	switch o.Status {
	case StatusPaid, StatusProcessing, StatusShipped, StatusDelivered, StatusCompleted:
	default:
		return fmt.Errorf("%w: %s is %s", ErrOrderNotPaid, o.OrderNumber, o.Status)
	}

	if err := s.pushInvoice(ctx, o); err != nil {
		return fmt.Errorf("service: failed to push invoice: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Str("order_number", o.OrderNumber).Msg("service: invoice resynced to ERP")
	return nil
}

func (s *service) pushInvoice(ctx context.Context, o *Order) error {
	lines := make([]erp.InvoiceLine, 0, len(o.OrderItems))
	for _, item := range o.OrderItems {
		view, err := s.catalog.GetProduct(ctx, item.ProductID, "")
		if err != nil {
			return fmt.Errorf("service: failed to load product %s for invoice: %w", item.ProductID, err)
		}
		lines = append(lines, erp.InvoiceLine{
			SKU:       view.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.PricePerUnit,
		})
	}

	return s.erp.PushInvoice(ctx, erp.Invoice{
		OrderNumber: o.OrderNumber,
		Total:       o.TotalAmount,
		IssuedAt:    s.now().UTC(),
		Lines:       lines,
	})
}
