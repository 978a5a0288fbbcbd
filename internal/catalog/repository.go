package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrTierNotFound     = errors.New("price tier not found")
	ErrRuleNotFound     = errors.New("price rule not found")
	ErrCategoryNotFound = errors.New("category not found")
)

type Filter struct {
	CategorySlug string
	Brand        string
	Search       string
	Limit        int
	Offset       int
}

// page clamps client-supplied pagination to values Postgres accepts.
func (f Filter) page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// StockLevel is the sku/stock pair pushed to the accounting system during a
// full resync.
type StockLevel struct {
	SKU   string
	Stock int
}

type Repository interface {
	ListProducts(ctx context.Context, f Filter) ([]Product, error)
	ListStockLevels(ctx context.Context) ([]StockLevel, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) (uuid.UUID, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
	SetStock(ctx context.Context, id uuid.UUID, stock int) error

	CreateTier(ctx context.Context, t *PriceTier) (uuid.UUID, error)
	DeleteTier(ctx context.Context, productID, tierID uuid.UUID) error
	CreateRule(ctx context.Context, r *PriceRule) (uuid.UUID, error)
	DeleteRule(ctx context.Context, productID, ruleID uuid.UUID) error

	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c *Category) (uuid.UUID, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const productColumns = `id, sku, name, description, brand, base_price, stock, weight_grams, category_id, image_path, active, created_at, updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Brand,
		&p.BasePrice, &p.Stock, &p.WeightGrams, &p.CategoryID,
		&p.ImagePath, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *postgresRepository) ListProducts(ctx context.Context, f Filter) ([]Product, error) {
	var (
		conds = []string{"active = TRUE"}
		args  []interface{}
	)

	if f.CategorySlug != "" {
		args = append(args, f.CategorySlug)
		conds = append(conds, fmt.Sprintf("category_id = (SELECT id FROM product_categories WHERE slug = $%d)", len(args)))
	}
	if f.Brand != "" {
		args = append(args, f.Brand)
		conds = append(conds, fmt.Sprintf("brand = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}

	limit, offset := f.page()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE %s
		ORDER BY name
		LIMIT $%d OFFSET $%d
	`, productColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	productsMap := make(map[uuid.UUID]*Product)
	var ids []uuid.UUID
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		p.Tiers = make([]PriceTier, 0)
		p.Rules = make([]PriceRule, 0)
		productsMap[p.ID] = &p
		ids = append(ids, p.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	if len(ids) == 0 {
		return []Product{}, nil
	}

	if err := r.attachTiersAndRules(ctx, productsMap, ids); err != nil {
		return nil, err
	}

	result := make([]Product, 0, len(ids))
	for _, id := range ids {
		result = append(result, *productsMap[id])
	}
	return result, nil
}

func (r *postgresRepository) ListStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.db.Query(ctx, `SELECT sku, stock FROM products WHERE active = TRUE ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var l StockLevel
		if err := rows.Scan(&l.SKU, &l.Stock); err != nil {
			return nil, fmt.Errorf("repository: failed to scan stock level: %w", err)
		}
		levels = append(levels, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating stock levels: %w", err)
	}
	return levels, nil
}

func (r *postgresRepository) attachTiersAndRules(ctx context.Context, productsMap map[uuid.UUID]*Product, ids []uuid.UUID) error {
	// First-match-wins in the price engine relies on this ordering.
	tierRows, err := r.db.Query(ctx, `
		SELECT id, product_id, price_category_id, price, position
		FROM price_tiers
		WHERE product_id = ANY($1)
		ORDER BY position, id
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query price tiers: %w", err)
	}
	defer tierRows.Close()

	for tierRows.Next() {
		var t PriceTier
		if err := tierRows.Scan(&t.ID, &t.ProductID, &t.PriceCategoryID, &t.Price, &t.Position); err != nil {
			return fmt.Errorf("repository: failed to scan price tier: %w", err)
		}
		if p, ok := productsMap[t.ProductID]; ok {
			p.Tiers = append(p.Tiers, t)
		}
	}
	if err = tierRows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating price tiers: %w", err)
	}

	ruleRows, err := r.db.Query(ctx, `
		SELECT id, product_id, price_category_id, discount_type, discount_value, active, starts_at
		FROM price_rules
		WHERE product_id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query price rules: %w", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var rule PriceRule
		if err := ruleRows.Scan(&rule.ID, &rule.ProductID, &rule.PriceCategoryID, &rule.DiscountType, &rule.DiscountValue, &rule.Active, &rule.StartsAt); err != nil {
			return fmt.Errorf("repository: failed to scan price rule: %w", err)
		}
		if p, ok := productsMap[rule.ProductID]; ok {
			p.Rules = append(p.Rules, rule)
		}
	}
	if err = ruleRows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating price rules: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := scanProduct(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns), id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	p.Tiers = make([]PriceTier, 0)
	p.Rules = make([]PriceRule, 0)
	productsMap := map[uuid.UUID]*Product{p.ID: &p}
	if err := r.attachTiersAndRules(ctx, productsMap, []uuid.UUID{p.ID}); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, p *Product) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate product ID: %w", err)
	}
	p.ID = id

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO products (id, sku, name, description, brand, base_price, stock, weight_grams, category_id, image_path, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.Exec(ctx, query,
		p.ID, p.SKU, p.Name, p.Description, p.Brand,
		p.BasePrice, p.Stock, p.WeightGrams, p.CategoryID,
		p.ImagePath, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return id, nil
}

func (r *postgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET sku = $1, name = $2, description = $3, brand = $4, base_price = $5,
		    weight_grams = $6, category_id = $7, image_path = $8, active = $9, updated_at = $10
		WHERE id = $11
	`
	cmdTag, err := r.db.Exec(ctx, query,
		p.SKU, p.Name, p.Description, p.Brand, p.BasePrice,
		p.WeightGrams, p.CategoryID, p.ImagePath, p.Active, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeactivateProduct hides a product from the storefront. Rows are never
// deleted because order_items keep referencing them.
func (r *postgresRepository) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE products SET active = FALSE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to deactivate product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE products SET stock = $1, updated_at = $2 WHERE id = $3`, stock, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to set stock for product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) CreateTier(ctx context.Context, t *PriceTier) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate tier ID: %w", err)
	}
	t.ID = id

	_, err = r.db.Exec(ctx, `
		INSERT INTO price_tiers (id, product_id, price_category_id, price, position)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.ProductID, t.PriceCategoryID, t.Price, t.Position)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to insert price tier: %w", err)
	}
	return id, nil
}

func (r *postgresRepository) DeleteTier(ctx context.Context, productID, tierID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM price_tiers WHERE id = $1 AND product_id = $2`, tierID, productID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete price tier %s: %w", tierID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTierNotFound
	}
	return nil
}

func (r *postgresRepository) CreateRule(ctx context.Context, rule *PriceRule) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate rule ID: %w", err)
	}
	rule.ID = id

	_, err = r.db.Exec(ctx, `
		INSERT INTO price_rules (id, product_id, price_category_id, discount_type, discount_value, active, starts_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rule.ID, rule.ProductID, rule.PriceCategoryID, string(rule.DiscountType), rule.DiscountValue, rule.Active, rule.StartsAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to insert price rule: %w", err)
	}
	return id, nil
}

func (r *postgresRepository) DeleteRule(ctx context.Context, productID, ruleID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM price_rules WHERE id = $1 AND product_id = $2`, ruleID, productID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete price rule %s: %w", ruleID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, parent_id FROM product_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}
	return categories, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, c *Category) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate category ID: %w", err)
	}
	c.ID = id

	_, err = r.db.Exec(ctx, `
		INSERT INTO product_categories (id, name, slug, parent_id)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.Slug, c.ParentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to insert category: %w", err)
	}
	return id, nil
}
