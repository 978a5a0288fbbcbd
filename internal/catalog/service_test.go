package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scooterparts/backend/internal/catalog"
	"github.com/scooterparts/backend/internal/erp"
	"github.com/scooterparts/backend/internal/pricing"
)

type mockRepo struct {
	getProductFunc   func(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	listProductsFunc func(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	setStockFunc     func(ctx context.Context, id uuid.UUID, stock int) error
	createRuleFunc   func(ctx context.Context, r *catalog.PriceRule) (uuid.UUID, error)
	createTierFunc   func(ctx context.Context, t *catalog.PriceTier) (uuid.UUID, error)

	stockLevels    []catalog.StockLevel
	stockLevelsErr error

	setStockCalls int
}

func (m *mockRepo) ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
	if m.listProductsFunc != nil {
		return m.listProductsFunc(ctx, f)
	}
	return nil, nil
}

func (m *mockRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	if m.getProductFunc != nil {
		return m.getProductFunc(ctx, id)
	}
	return nil, catalog.ErrProductNotFound
}

func (m *mockRepo) CreateProduct(ctx context.Context, p *catalog.Product) (uuid.UUID, error) {
	return p.ID, nil
}

func (m *mockRepo) UpdateProduct(ctx context.Context, p *catalog.Product) error { return nil }

func (m *mockRepo) DeactivateProduct(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockRepo) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	m.setStockCalls++
	if m.setStockFunc != nil {
		return m.setStockFunc(ctx, id, stock)
	}
	return nil
}

func (m *mockRepo) ListStockLevels(ctx context.Context) ([]catalog.StockLevel, error) {
	return m.stockLevels, m.stockLevelsErr
}

func (m *mockRepo) CreateTier(ctx context.Context, t *catalog.PriceTier) (uuid.UUID, error) {
	if m.createTierFunc != nil {
		return m.createTierFunc(ctx, t)
	}
	return t.ID, nil
}

func (m *mockRepo) DeleteTier(ctx context.Context, productID, tierID uuid.UUID) error { return nil }

func (m *mockRepo) CreateRule(ctx context.Context, r *catalog.PriceRule) (uuid.UUID, error) {
	if m.createRuleFunc != nil {
		return m.createRuleFunc(ctx, r)
	}
	return r.ID, nil
}

func (m *mockRepo) DeleteRule(ctx context.Context, productID, ruleID uuid.UUID) error { return nil }

func (m *mockRepo) ListCategories(ctx context.Context) ([]catalog.Category, error) { return nil, nil }

func (m *mockRepo) CreateCategory(ctx context.Context, c *catalog.Category) (uuid.UUID, error) {
	return c.ID, nil
}

type recordingERP struct {
	updates []erp.StockUpdate
	pushErr error
}

func (r *recordingERP) PushStock(ctx context.Context, update erp.StockUpdate) error {
	r.updates = append(r.updates, update)
	return r.pushErr
}

func (r *recordingERP) PushInvoice(ctx context.Context, inv erp.Invoice) error { return nil }

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func TestService_GetProduct_ResolvesPrice(t *testing.T) {
	productID := mustUUID(t)
	product := &catalog.Product{
		ID:        productID,
		SKU:       "DECK-GRIP-01",
		BasePrice: 100,
		Tiers: []catalog.PriceTier{
			{PriceCategoryID: "wholesale", Price: 80},
		},
		Rules: []catalog.PriceRule{
			{DiscountType: pricing.DiscountPercentage, DiscountValue: 10, Active: true},
		},
	}

	repo := &mockRepo{getProductFunc: func(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
		return product, nil
	}}
	svc := catalog.NewService(repo, &recordingERP{})

	t.Run("tier price for matching category", func(t *testing.T) {
		v, err := svc.GetProduct(context.Background(), productID, "wholesale")
		require.NoError(t, err)
		assert.InDelta(t, 72, v.FinalPrice, 0.001)
		assert.InDelta(t, v.FinalPrice, v.Price, 0.001)
	})

	t.Run("base price for anonymous caller", func(t *testing.T) {
		v, err := svc.GetProduct(context.Background(), productID, "")
		require.NoError(t, err)
		assert.InDelta(t, 90, v.FinalPrice, 0.001)
	})

	t.Run("missing product surfaces not found", func(t *testing.T) {
		missingRepo := &mockRepo{}
		missingSvc := catalog.NewService(missingRepo, &recordingERP{})

		_, err := missingSvc.GetProduct(context.Background(), productID, "")
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})
}

func TestService_ListProducts_ResolvesEveryView(t *testing.T) {
	repo := &mockRepo{listProductsFunc: func(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
		return []catalog.Product{
			{BasePrice: 50, Tiers: []catalog.PriceTier{{PriceCategoryID: "reseller", Price: 42}}},
			{BasePrice: 30},
		}, nil
	}}
	svc := catalog.NewService(repo, &recordingERP{})

	views, err := svc.ListProducts(context.Background(), catalog.Filter{}, "reseller")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.InDelta(t, 42, views[0].FinalPrice, 0.001)
	assert.InDelta(t, 30, views[1].FinalPrice, 0.001)
}

func TestService_SetStock(t *testing.T) {
	productID := mustUUID(t)

	stockedRepo := func() *mockRepo {
		return &mockRepo{getProductFunc: func(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
			return &catalog.Product{ID: productID, SKU: "WHEEL-110"}, nil
		}}
	}

	t.Run("persists and syncs to ERP", func(t *testing.T) {
		repo := stockedRepo()
		erpClient := &recordingERP{}
		svc := catalog.NewService(repo, erpClient)

		require.NoError(t, svc.SetStock(context.Background(), productID, 25))
		assert.Equal(t, 1, repo.setStockCalls)

		require.Len(t, erpClient.updates, 1)
		assert.Equal(t, "WHEEL-110", erpClient.updates[0].SKU)
		assert.Equal(t, 25, erpClient.updates[0].Quantity)
	})

	t.Run("ERP failure does not fail the update", func(t *testing.T) {
		repo := stockedRepo()
		svc := catalog.NewService(repo, &recordingERP{pushErr: errors.New("erp offline")})

		require.NoError(t, svc.SetStock(context.Background(), productID, 5))
		assert.Equal(t, 1, repo.setStockCalls)
	})

	t.Run("negative stock is rejected", func(t *testing.T) {
		repo := stockedRepo()
		svc := catalog.NewService(repo, &recordingERP{})

		require.Error(t, svc.SetStock(context.Background(), productID, -1))
		assert.Equal(t, 0, repo.setStockCalls)
	})

	t.Run("missing product surfaces not found", func(t *testing.T) {
		svc := catalog.NewService(&mockRepo{}, &recordingERP{})
		assert.ErrorIs(t, svc.SetStock(context.Background(), productID, 5), catalog.ErrProductNotFound)
	})
}

func TestService_SyncStock(t *testing.T) {
	t.Run("pushes every active product", func(t *testing.T) {
		repo := &mockRepo{stockLevels: []catalog.StockLevel{
			{SKU: "DECK-GRIP-01", Stock: 12},
			{SKU: "WHEEL-110", Stock: 3},
		}}
		erpClient := &recordingERP{}
		svc := catalog.NewService(repo, erpClient)

		pushed, err := svc.SyncStock(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, pushed)

		require.Len(t, erpClient.updates, 2)
		assert.Equal(t, "DECK-GRIP-01", erpClient.updates[0].SKU)
		assert.Equal(t, 12, erpClient.updates[0].Quantity)
	})

	t.Run("push failure stops the sync and reports progress", func(t *testing.T) {
		repo := &mockRepo{stockLevels: []catalog.StockLevel{{SKU: "A", Stock: 1}}}
		svc := catalog.NewService(repo, &recordingERP{pushErr: errors.New("erp offline")})

		pushed, err := svc.SyncStock(context.Background())
		require.Error(t, err)
		assert.Equal(t, 0, pushed)
	})
}

func TestService_CreateProduct_Validation(t *testing.T) {
	svc := catalog.NewService(&mockRepo{}, &recordingERP{})

	_, err := svc.CreateProduct(context.Background(), &catalog.Product{SKU: "X", BasePrice: -1})
	require.Error(t, err)

	_, err = svc.CreateProduct(context.Background(), &catalog.Product{SKU: "X", BasePrice: 10, Stock: -3})
	require.Error(t, err)

	_, err = svc.CreateProduct(context.Background(), &catalog.Product{SKU: "X", BasePrice: 10, Stock: 3})
	require.NoError(t, err)
}

func TestService_AddRule_Validation(t *testing.T) {
	svc := catalog.NewService(&mockRepo{}, &recordingERP{})

	t.Run("unknown discount type", func(t *testing.T) {
		_, err := svc.AddRule(context.Background(), &catalog.PriceRule{
			DiscountType:  "BOGOF",
			DiscountValue: 10,
		})
		require.Error(t, err)
	})

	t.Run("negative value", func(t *testing.T) {
		_, err := svc.AddRule(context.Background(), &catalog.PriceRule{
			DiscountType:  pricing.DiscountFixed,
			DiscountValue: -5,
		})
		require.Error(t, err)
	})

	t.Run("valid rule passes", func(t *testing.T) {
		_, err := svc.AddRule(context.Background(), &catalog.PriceRule{
			DiscountType:  pricing.DiscountPercentage,
			DiscountValue: 15,
		})
		require.NoError(t, err)
	})
}

func TestService_AddTier_Validation(t *testing.T) {
	svc := catalog.NewService(&mockRepo{}, &recordingERP{})

	_, err := svc.AddTier(context.Background(), &catalog.PriceTier{Price: 20})
	require.Error(t, err, "price category is required")

	_, err = svc.AddTier(context.Background(), &catalog.PriceTier{PriceCategoryID: "wholesale", Price: -1})
	require.Error(t, err)

	_, err = svc.AddTier(context.Background(), &catalog.PriceTier{PriceCategoryID: "wholesale", Price: 20})
	require.NoError(t, err)
}
