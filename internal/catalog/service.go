package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/erp"
	"github.com/scooterparts/backend/internal/pricing"
)

type Service interface {
	ListProducts(ctx context.Context, f Filter, priceCategoryID string) ([]View, error)
	GetProduct(ctx context.Context, id uuid.UUID, priceCategoryID string) (*View, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
	SyncStock(ctx context.Context) (int, error)

	AddTier(ctx context.Context, t *PriceTier) (*PriceTier, error)
	RemoveTier(ctx context.Context, productID, tierID uuid.UUID) error
	AddRule(ctx context.Context, r *PriceRule) (*PriceRule, error)
	RemoveRule(ctx context.Context, productID, ruleID uuid.UUID) error
	CreateCategory(ctx context.Context, c *Category) (*Category, error)
}

type service struct {
	repo Repository
	erp  erp.Client
	now  func() time.Time
}

func NewService(repo Repository, erpClient erp.Client) Service {
	return &service{repo: repo, erp: erpClient, now: time.Now}
}

// resolveViews is the batch form of price resolution: every product comes
// back augmented with its computed price under both output fields.
func resolveViews(products []Product, priceCategoryID string, now time.Time) []View {
	views := make([]View, 0, len(products))
	for i := range products {
		views = append(views, resolveView(&products[i], priceCategoryID, now))
	}
	return views
}

func resolveView(p *Product, priceCategoryID string, now time.Time) View {
	final := pricing.Resolve(p.BasePrice, p.pricingTiers(), p.pricingRules(), priceCategoryID, now)
	return View{Product: *p, FinalPrice: final, Price: final}
}

func (s *service) ListProducts(ctx context.Context, f Filter, priceCategoryID string) ([]View, error) {
	products, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return resolveViews(products, priceCategoryID, s.now()), nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID, priceCategoryID string) (*View, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}
	v := resolveView(p, priceCategoryID, s.now())
	return &v, nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if p.BasePrice < 0 {
		return nil, errors.New("service: base price cannot be negative")
	}
	if p.Stock < 0 {
		return nil, errors.New("service: stock cannot be negative")
	}

	if _, err := s.repo.CreateProduct(ctx, p); err != nil {
		log.Error().Err(err).Str("sku", p.SKU).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("sku", p.SKU).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, p *Product) error {
	if p.BasePrice < 0 {
		return errors.New("service: base price cannot be negative")
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("service: failed to update product: %w", err)
	}
	return nil
}

func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("service: failed to deactivate product: %w", err)
	}
	log.Info().Stringer("product_id", id).Msg("service: product deactivated")
	return nil
}

// SetStock overwrites a product's stock level and pushes the new level to the
// accounting system, mirroring how warehouse corrections flow in.
func (s *service) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return errors.New("service: stock cannot be negative")
	}

	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("service: failed to fetch product for stock update: %w", err)
	}

	if err := s.repo.SetStock(ctx, id, stock); err != nil {
		return fmt.Errorf("service: failed to set stock: %w", err)
	}

	if err := s.erp.PushStock(ctx, erp.StockUpdate{SKU: p.SKU, Quantity: stock}); err != nil {
		// Local stock is authoritative for the storefront; the ERP catches
		// up on the next sync rather than failing the admin edit.
		log.Error().Err(err).Str("sku", p.SKU).Msg("service: stock sync to ERP failed")
	}

	log.Info().Stringer("product_id", id).Int("stock", stock).Msg("service: stock updated")
	return nil
}

// SyncStock pushes every active product's stock level to the accounting
// system and returns how many were pushed. Used by admins after the inline
// sync has been failing for a while.
func (s *service) SyncStock(ctx context.Context) (int, error) {
	levels, err := s.repo.ListStockLevels(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: failed to list stock levels: %w", err)
	}

	pushed := 0
	for _, l := range levels {
		if err := s.erp.PushStock(ctx, erp.StockUpdate{SKU: l.SKU, Quantity: l.Stock}); err != nil {
			return pushed, fmt.Errorf("service: stock sync stopped at %s: %w", l.SKU, err)
		}
		pushed++
	}

	log.Info().Int("products", pushed).Msg("service: stock resynced to ERP")
	return pushed, nil
}

func (s *service) AddTier(ctx context.Context, t *PriceTier) (*PriceTier, error) {
	if t.Price < 0 {
		return nil, errors.New("service: tier price cannot be negative")
	}
	if t.PriceCategoryID == "" {
		return nil, errors.New("service: tier price category is required")
	}

	if _, err := s.repo.CreateTier(ctx, t); err != nil {
		return nil, fmt.Errorf("service: failed to create price tier: %w", err)
	}
	return t, nil
}

func (s *service) RemoveTier(ctx context.Context, productID, tierID uuid.UUID) error {
	if err := s.repo.DeleteTier(ctx, productID, tierID); err != nil {
		if errors.Is(err, ErrTierNotFound) {
			return ErrTierNotFound
		}
		return fmt.Errorf("service: failed to delete price tier: %w", err)
	}
	return nil
}

func (s *service) AddRule(ctx context.Context, r *PriceRule) (*PriceRule, error) {
	if r.DiscountValue < 0 {
		return nil, errors.New("service: discount value cannot be negative")
	}
	switch r.DiscountType {
	case pricing.DiscountPercentage, pricing.DiscountFixed:
	default:
		return nil, fmt.Errorf("service: unknown discount type %q", r.DiscountType)
	}

	if _, err := s.repo.CreateRule(ctx, r); err != nil {
		return nil, fmt.Errorf("service: failed to create price rule: %w", err)
	}
	return r, nil
}

func (s *service) RemoveRule(ctx context.Context, productID, ruleID uuid.UUID) error {
	if err := s.repo.DeleteRule(ctx, productID, ruleID); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("service: failed to delete price rule: %w", err)
	}
	return nil
}

func (s *service) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	if c.Name == "" || c.Slug == "" {
		return nil, errors.New("service: category name and slug are required")
	}
	if _, err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}
	return c, nil
}
