package image

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"nullashop.io/shop/driver"
	"nullashop.io/shop/models"
)

var _ Repository = (*repository)(nil)

// Repository stores image metadata rows; the files themselves live in the
// product-images bucket.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, img *models.Image) error
	ListByProduct(ctx context.Context, tx pgx.Tx, productID uint64) ([]*models.Image, error)
	DeleteByProduct(ctx context.Context, tx pgx.Tx, productID uint64) error
	DeleteByProductURL(ctx context.Context, tx pgx.Tx, productID uint64, url string) error
}

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
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

func (r *repository) Insert(ctx context.Context, tx pgx.Tx, img *models.Image) error {
	err := r.db(tx).QueryRow(ctx,
		`INSERT INTO images (product_id, url, owner, created_at)
		 VALUES ($1, $2, $3, now())
		 RETURNING id, created_at`,
		img.ProductID, img.URL, img.Owner,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert image row", zap.Uint64("product_id", img.ProductID), zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) ListByProduct(ctx context.Context, tx pgx.Tx, productID uint64) ([]*models.Image, error) {
	rows, err := r.db(tx).Query(ctx,
		`SELECT id, product_id, url, owner, created_at FROM images WHERE product_id = $1`, productID)
	if err != nil {
		r.logger.Error("Failed to list image rows", zap.Uint64("product_id", productID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	images := make([]*models.Image, 0)
	for rows.Next() {
		var img models.Image
		if err = rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.Owner, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, &img)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("image rows: %w", err)
	}
	return images, nil
}

func (r *repository) DeleteByProduct(ctx context.Context, tx pgx.Tx, productID uint64) error {
	if _, err := r.db(tx).Exec(ctx, `DELETE FROM images WHERE product_id = $1`, productID); err != nil {
		r.logger.Error("Failed to delete image rows", zap.Uint64("product_id", productID), zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) DeleteByProductURL(ctx context.Context, tx pgx.Tx, productID uint64, url string) error {
	if _, err := r.db(tx).Exec(ctx,
		`DELETE FROM images WHERE product_id = $1 AND url = $2`, productID, url); err != nil {
		r.logger.Error("Failed to delete image row", zap.Uint64("product_id", productID), zap.Error(err))
		return err
	}
	return nil
}
