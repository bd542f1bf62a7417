package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"nullashop.io/shop/driver"
	"nullashop.io/shop/models"
)

var ErrNotFound = errors.New("product not found")

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, product *models.Product) error
	Get(ctx context.Context, tx pgx.Tx, id uint64) (*models.Product, error)
	Update(ctx context.Context, tx pgx.Tx, product *models.Product) error
	UpdateImageURLs(ctx context.Context, tx pgx.Tx, id uint64, urls []string) error
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
	List(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Product, error)
	ListFeatured(ctx context.Context, tx pgx.Tx) ([]*models.Product, error)
	Search(ctx context.Context, tx pgx.Tx, term string) ([]*models.Product, error)
}

type repository struct {
	conn   driver.PostgresPool
	cache  *driver.Cache
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, cache *driver.Cache, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		cache:  cache,
		logger: logger,
	}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *repository) db(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.conn
}

const productColumns = `id, name, description, price, featured, image_urls, created_at, updated_at`

// featuredCacheKey holds the home page's featured list; invalidated on any
// product mutation.
const featuredCacheKey = "products:featured"

func (r *repository) Create(ctx context.Context, tx pgx.Tx, product *models.Product) error {
	urlsJSON, err := json.Marshal(urlsOrEmpty(product.ImageURLs))
	if err != nil {
		return fmt.Errorf("marshal image urls: %w", err)
	}

	err = r.db(tx).QueryRow(ctx,
		`INSERT INTO products (name, description, price, featured, image_urls, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 RETURNING id, created_at, updated_at`,
		product.Name, product.Description, product.Price, product.Featured, urlsJSON,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create product", zap.Error(err))
		return err
	}

	r.invalidateListCaches(ctx)

	return nil
}

func (r *repository) Get(ctx context.Context, tx pgx.Tx, id uint64) (*models.Product, error) {
	cacheKey := fmt.Sprintf("product:%d", id)
	var product models.Product

	found, err := r.cache.Get(ctx, cacheKey, &product)
	if err != nil {
		r.logger.Warn("Failed to get product from cache", zap.Error(err))
	}
	if found {
		return &product, nil
	}

	row := r.db(tx).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	got, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get product", zap.Uint64("product_id", id), zap.Error(err))
		return nil, err
	}

	if err = r.cache.Set(ctx, cacheKey, got, 30*time.Minute); err != nil {
		r.logger.Warn("Failed to cache product", zap.Error(err))
	}

	return got, nil
}

func (r *repository) Update(ctx context.Context, tx pgx.Tx, product *models.Product) error {
	urlsJSON, err := json.Marshal(urlsOrEmpty(product.ImageURLs))
	if err != nil {
		return fmt.Errorf("marshal image urls: %w", err)
	}

	tag, err := r.db(tx).Exec(ctx,
		`UPDATE products
		 SET name = $2, description = $3, price = $4, featured = $5, image_urls = $6, updated_at = now()
		 WHERE id = $1`,
		product.ID, product.Name, product.Description, product.Price, product.Featured, urlsJSON)
	if err != nil {
		r.logger.Error("Failed to update product", zap.Uint64("product_id", product.ID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.invalidateProductCache(ctx, product.ID)
	r.invalidateListCaches(ctx)

	return nil
}

func (r *repository) UpdateImageURLs(ctx context.Context, tx pgx.Tx, id uint64, urls []string) error {
	urlsJSON, err := json.Marshal(urlsOrEmpty(urls))
	if err != nil {
		return fmt.Errorf("marshal image urls: %w", err)
	}

	tag, err := r.db(tx).Exec(ctx,
		`UPDATE products SET image_urls = $2, updated_at = now() WHERE id = $1`, id, urlsJSON)
	if err != nil {
		r.logger.Error("Failed to update product images", zap.Uint64("product_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.invalidateProductCache(ctx, id)
	r.invalidateListCaches(ctx)

	return nil
}

func (r *repository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := r.db(tx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete product", zap.Uint64("product_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.invalidateProductCache(ctx, id)
	r.invalidateListCaches(ctx)

	return nil
}

func (r *repository) List(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`

	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = r.db(tx).Query(ctx, query+` LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = r.db(tx).Query(ctx, query)
	}
	if err != nil {
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (r *repository) ListFeatured(ctx context.Context, tx pgx.Tx) ([]*models.Product, error) {
	var cached []*models.Product
	found, err := r.cache.Get(ctx, featuredCacheKey, &cached)
	if err != nil {
		r.logger.Warn("Failed to get featured products from cache", zap.Error(err))
	}
	if found {
		return cached, nil
	}

	rows, err := r.db(tx).Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE featured ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Error("Failed to list featured products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}

	if err = r.cache.Set(ctx, featuredCacheKey, products, 30*time.Minute); err != nil {
		r.logger.Warn("Failed to cache featured products", zap.Error(err))
	}

	return products, nil
}

func (r *repository) Search(ctx context.Context, tx pgx.Tx, term string) ([]*models.Product, error) {
	rows, err := r.db(tx).Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC`, term)
	if err != nil {
		r.logger.Error("Failed to search products", zap.String("term", term), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (r *repository) invalidateProductCache(ctx context.Context, id uint64) {
	cacheKey := fmt.Sprintf("product:%d", id)
	if err := r.cache.Delete(ctx, cacheKey); err != nil {
		r.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

func (r *repository) invalidateListCaches(ctx context.Context) {
	if err := r.cache.Delete(ctx, featuredCacheKey); err != nil {
		r.logger.Warn("Failed to invalidate product list caches", zap.Error(err))
	}
}

func urlsOrEmpty(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var product models.Product
	var urlsJSON []byte

	if err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Featured,
		&urlsJSON,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(urlsJSON, &product.ImageURLs); err != nil {
		return nil, fmt.Errorf("unmarshal image urls: %w", err)
	}

	return &product, nil
}

func collectProducts(rows pgx.Rows) ([]*models.Product, error) {
	products := make([]*models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product rows: %w", err)
	}
	return products, nil
}
