package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crestrock/storefront/internal/model"
)

type ProductFilter struct {
	Search      string
	Brand       string
	InStockOnly bool
	Sort        string
	Order       string
	Limit       int
	Offset      int
}

type StockSummary struct {
	Total      int
	InStock    int
	OutOfStock int
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	StockSummary(ctx context.Context) (*StockSummary, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, brand, description, price, original_price, image, features,
	in_stock, is_new, is_best_seller, created_at, updated_at`

func (r *pgProductRepo) Create(ctx context.Context, p *model.Product) error {
	p.ID = uuid.New()
	if p.Features == nil {
		p.Features = []string{}
	}
	query := `INSERT INTO products (id, name, brand, description, price, original_price, image, features,
	                                in_stock, is_new, is_best_seller, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Brand, p.Description, p.Price, p.OriginalPrice, p.Image, p.Features,
		p.InStock, p.IsNew, p.IsBestSeller,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	allowedSorts := map[string]bool{"name": true, "price": true, "created_at": true}
	if !allowedSorts[f.Sort] {
		f.Sort = "created_at"
	}
	if f.Order != "asc" && f.Order != "desc" {
		f.Order = "desc"
	}

	const where = `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		AND ($2 = '' OR brand = $2)
		AND (NOT $3 OR in_stock)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products `+where, f.Search, f.Brand, f.InStockOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY %s %s LIMIT $4 OFFSET $5`,
		productColumns, where, f.Sort, f.Order)
	rows, err := r.pool.Query(ctx, query, f.Search, f.Brand, f.InStockOnly, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *pgProductRepo) Update(ctx context.Context, p *model.Product) error {
	if p.Features == nil {
		p.Features = []string{}
	}
	query := `UPDATE products SET name = $2, brand = $3, description = $4, price = $5, original_price = $6,
	                             image = $7, features = $8, in_stock = $9, is_new = $10, is_best_seller = $11,
	                             updated_at = NOW()
			  WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Brand, p.Description, p.Price, p.OriginalPrice, p.Image, p.Features,
		p.InStock, p.IsNew, p.IsBestSeller,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgProductRepo) StockSummary(ctx context.Context) (*StockSummary, error) {
	s := &StockSummary{}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE in_stock), COUNT(*) FILTER (WHERE NOT in_stock) FROM products`,
	).Scan(&s.Total, &s.InStock, &s.OutOfStock)
	if err != nil {
		return nil, fmt.Errorf("summarize stock: %w", err)
	}
	return s, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Description, &p.Price, &p.OriginalPrice, &p.Image, &p.Features,
		&p.InStock, &p.IsNew, &p.IsBestSeller, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
