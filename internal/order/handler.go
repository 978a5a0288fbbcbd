package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/auth"
	"github.com/scooterparts/backend/internal/httpx"
	"github.com/scooterparts/backend/internal/payment"
)

type CheckoutItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type CheckoutRequest struct {
	Items           []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Destination     string                `json:"destination" validate:"required"`
	ShippingAddress string                `json:"shipping_address" validate:"required,min=10"`
	PaymentMethod   string                `json:"payment_method" validate:"required,oneof=BANK_TRANSFER GATEWAY"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PAID PROCESSING SHIPPED DELIVERED COMPLETED CANCELLED REFUNDED"`
}

type Handler struct {
	svc      Service
	payments payment.Service
	validate *validator.Validate
}

func NewHandler(svc Service, payments payment.Service) *Handler {
	return &Handler{svc: svc, payments: payments, validate: validator.New()}
}

// RegisterCustomerRoutes mounts checkout and own-order routes; the group is
// expected to be wrapped in auth.RequireAuth.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Post("/checkout", h.handleCheckout)
	r.Get("/orders", h.handleListOwnOrders)
	r.Get("/orders/{id}", h.handleGetOwnOrder)
	r.Get("/orders/{id}/payment", h.handleGetOwnOrderPayment)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/orders", h.handleListOrders)
	r.Patch("/orders/{id}/status", h.handleUpdateStatus)
	r.Post("/erp/sync-invoice/{orderID}", h.handleSyncInvoice)
}

func (h *Handler) handleSyncInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.svc.SyncInvoice(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			httpx.RespondError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrOrderNotPaid):
			httpx.RespondError(w, http.StatusConflict, err.Error())
		default:
			log.Error().Err(err).Stringer("order_id", id).Msg("Failed to resync invoice to ERP")
			httpx.RespondError(w, http.StatusBadGateway, "invoice sync to ERP failed")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	var req CheckoutRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.RespondValidationErrors(w, validationErrors)
			return
		}
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	in := CheckoutInput{
		UserID:          sess.UserID,
		Destination:     req.Destination,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   payment.Method(req.PaymentMethod),
	}
	for _, item := range req.Items {
		productID, err := uuid.FromString(item.ProductID)
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		in.Items = append(in.Items, CheckoutItem{ProductID: productID, Quantity: item.Quantity})
	}

	result, err := h.svc.Checkout(r.Context(), in, auth.PriceCategoryFromContext(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyOrder):
			httpx.RespondError(w, http.StatusBadRequest, "order must contain at least one item")
		case errors.Is(err, ErrProductNotFound):
			httpx.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrInsufficientStock):
			httpx.RespondError(w, http.StatusConflict, err.Error())
		default:
			log.Error().Err(err).Stringer("user_id", sess.UserID).Msg("Failed to checkout")
			httpx.RespondError(w, http.StatusInternalServerError, "failed to create order")
		}
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListOwnOrders(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	orders, err := h.svc.GetOrdersByUserID(r.Context(), sess.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", sess.UserID).Msg("Failed to list orders")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOwnOrder(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "order not found")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	if o.UserID != sess.UserID {
		httpx.RespondError(w, http.StatusNotFound, "order not found")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, o)
}

func (h *Handler) handleGetOwnOrderPayment(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "order not found")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if o.UserID != sess.UserID {
		httpx.RespondError(w, http.StatusNotFound, "order not found")
		return
	}

	p, err := h.payments.GetByOrderID(r.Context(), id)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "payment not found")
			return
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("Failed to get payment")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to get payment")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Status: Status(q.Get("status"))}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	orders, err := h.svc.ListOrders(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.RespondValidationErrors(w, validationErrors)
			return
		}
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	newStatus := Status(req.Status)

	// Marking an order paid settles its payment record too, so it goes
	// through the payment service (the bank-transfer confirmation path).
	if newStatus == StatusPaid {
		err = h.payments.ConfirmBankTransfer(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, payment.ErrPaymentNotFound):
				httpx.RespondError(w, http.StatusNotFound, "payment not found")
			case errors.Is(err, payment.ErrAlreadySettled):
				httpx.RespondError(w, http.StatusConflict, "payment already settled")
			case errors.Is(err, payment.ErrNotBankTransfer):
				httpx.RespondError(w, http.StatusConflict, "payment is not a bank transfer")
			default:
				log.Error().Err(err).Stringer("order_id", id).Msg("Failed to confirm bank transfer")
				httpx.RespondError(w, http.StatusInternalServerError, "failed to update order status")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.svc.UpdateOrderStatus(r.Context(), id, newStatus); err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			httpx.RespondError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrInvalidStatusTransition):
			httpx.RespondError(w, http.StatusConflict, err.Error())
		default:
			log.Error().Err(err).Stringer("order_id", id).Msg("Failed to update order status")
			httpx.RespondError(w, http.StatusInternalServerError, "failed to update order status")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
