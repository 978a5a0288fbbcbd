package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/auth"
	"github.com/scooterparts/backend/internal/httpx"
	"github.com/scooterparts/backend/internal/pricing"
)

type ProductRequest struct {
	SKU         string  `json:"sku" validate:"required"`
	Name        string  `json:"name" validate:"required,min=2"`
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	BasePrice   float64 `json:"base_price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	WeightGrams int     `json:"weight_grams" validate:"gte=0"`
	CategoryID  *string `json:"category_id,omitempty" validate:"omitempty,uuid4"`
	ImagePath   string  `json:"image_path"`
	Active      bool    `json:"active"`
}

type TierRequest struct {
	PriceCategoryID string  `json:"price_category_id" validate:"required"`
	Price           float64 `json:"price" validate:"gte=0"`
	Position        int     `json:"position" validate:"gte=0"`
}

type RuleRequest struct {
	PriceCategoryID *string    `json:"price_category_id,omitempty"`
	DiscountType    string     `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED_DISCOUNT"`
	DiscountValue   float64    `json:"discount_value" validate:"gte=0"`
	Active          bool       `json:"active"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
}

type CategoryRequest struct {
	Name     string  `json:"name" validate:"required,min=2"`
	Slug     string  `json:"slug" validate:"required"`
	ParentID *string `json:"parent_id,omitempty" validate:"omitempty,uuid4"`
}

type SetStockRequest struct {
	Stock int `json:"stock" validate:"gte=0"`
}

type Handler struct {
	svc      Service
	validate *validator.Validate
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Get("/products/{id}", h.handleGetProduct)
	r.Get("/categories", h.handleListCategories)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/products", h.handleCreateProduct)
	r.Put("/products/{id}", h.handleUpdateProduct)
	r.Delete("/products/{id}", h.handleDeactivateProduct)
	r.Put("/products/{id}/stock", h.handleSetStock)
	r.Post("/products/{id}/tiers", h.handleAddTier)
	r.Delete("/products/{id}/tiers/{tierID}", h.handleRemoveTier)
	r.Post("/products/{id}/rules", h.handleAddRule)
	r.Delete("/products/{id}/rules/{ruleID}", h.handleRemoveRule)
	r.Post("/categories", h.handleCreateCategory)
	r.Post("/erp/sync-stock", h.handleSyncStock)
}

func (h *Handler) handleSyncStock(w http.ResponseWriter, r *http.Request) {
	pushed, err := h.svc.SyncStock(r.Context())
	if err != nil {
		log.Error().Err(err).Int("pushed", pushed).Msg("Failed to resync stock to ERP")
		httpx.RespondError(w, http.StatusBadGateway, "stock sync to ERP failed")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]int{"products_synced": pushed})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		CategorySlug: q.Get("category"),
		Brand:        q.Get("brand"),
		Search:       q.Get("q"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	views, err := h.svc.ListProducts(r.Context(), f, auth.PriceCategoryFromContext(r.Context()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	view, err := h.svc.GetProduct(r.Context(), id, auth.PriceCategoryFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "product not found")
			return
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("Failed to get product")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list categories")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, categories)
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.RespondValidationErrors(w, validationErrors)
			return false
		}
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	p := productFromRequest(req)
	created, err := h.svc.CreateProduct(r.Context(), p)
	if err != nil {
		log.Error().Err(err).Str("sku", req.SKU).Msg("Failed to create product")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req ProductRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	p := productFromRequest(req)
	p.ID = id
	if err := h.svc.UpdateProduct(r.Context(), p); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "product not found")
			return
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("Failed to update product")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.svc.DeactivateProduct(r.Context(), id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "product not found")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "failed to deactivate product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req SetStockRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	if err := h.svc.SetStock(r.Context(), id, req.Stock); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "product not found")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "failed to set stock")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddTier(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req TierRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	tier := &PriceTier{
		ProductID:       productID,
		PriceCategoryID: req.PriceCategoryID,
		Price:           req.Price,
		Position:        req.Position,
	}
	created, err := h.svc.AddTier(r.Context(), tier)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "failed to create price tier")
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleRemoveTier(w http.ResponseWriter, r *http.Request) {
	productID, err1 := uuid.FromString(chi.URLParam(r, "id"))
	tierID, err2 := uuid.FromString(chi.URLParam(r, "tierID"))
	if err1 != nil || err2 != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.RemoveTier(r.Context(), productID, tierID); err != nil {
		if errors.Is(err, ErrTierNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "price tier not found")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "failed to delete price tier")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddRule(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req RuleRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	rule := &PriceRule{
		ProductID:       productID,
		PriceCategoryID: req.PriceCategoryID,
		DiscountType:    pricing.DiscountType(req.DiscountType),
		DiscountValue:   req.DiscountValue,
		Active:          req.Active,
		StartsAt:        req.StartsAt,
	}
	created, err := h.svc.AddRule(r.Context(), rule)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "failed to create price rule")
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleRemoveRule(w http.ResponseWriter, r *http.Request) {
	productID, err1 := uuid.FromString(chi.URLParam(r, "id"))
	ruleID, err2 := uuid.FromString(chi.URLParam(r, "ruleID"))
	if err1 != nil || err2 != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.RemoveRule(r.Context(), productID, ruleID); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "price rule not found")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "failed to delete price rule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	c := &Category{Name: req.Name, Slug: req.Slug}
	if req.ParentID != nil {
		parentID, err := uuid.FromString(*req.ParentID)
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
		c.ParentID = &parentID
	}

	created, err := h.svc.CreateCategory(r.Context(), c)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, created)
}

func productFromRequest(req ProductRequest) *Product {
	p := &Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Brand:       req.Brand,
		BasePrice:   req.BasePrice,
		Stock:       req.Stock,
		WeightGrams: req.WeightGrams,
		ImagePath:   req.ImagePath,
		Active:      req.Active,
	}
	if req.CategoryID != nil {
		if categoryID, err := uuid.FromString(*req.CategoryID); err == nil {
			p.CategoryID = &categoryID
		}
	}
	return p
}
