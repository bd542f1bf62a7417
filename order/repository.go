package order

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
	"nullashop.io/shop/models/enum"
)

var ErrNotFound = errors.New("order not found")

var _ Repository = (*repository)(nil)

type Repository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *models.Order) error
	GetOrder(ctx context.Context, tx pgx.Tx, id uint64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, tx pgx.Tx, userID string) ([]*models.Order, error)
	ListOrders(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, tx pgx.Tx, id uint64, status enum.OrderStatus) error
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

// querier lets repository methods run on the pool or inside a transaction.
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

func (r *repository) CreateOrder(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	err = r.db(tx).QueryRow(ctx,
		`INSERT INTO orders (user_id, items, total, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING id`,
		order.UserID, itemsJSON, order.Total, order.Currency, order.Status, order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return err
	}

	return nil
}

func (r *repository) GetOrder(ctx context.Context, tx pgx.Tx, id uint64) (*models.Order, error) {
	cacheKey := fmt.Sprintf("order:%d", id)
	var order models.Order

	found, err := r.cache.Get(ctx, cacheKey, &order)
	if err != nil {
		r.logger.Warn("Failed to get order from cache", zap.Error(err))
	}
	if found {
		return &order, nil
	}

	row := r.db(tx).QueryRow(ctx,
		`SELECT id, user_id, items, total, currency, status, created_at, updated_at
		 FROM orders WHERE id = $1`, id)

	got, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order", zap.Uint64("order_id", id), zap.Error(err))
		return nil, err
	}

	if err = r.cache.Set(ctx, cacheKey, got, 30*time.Minute); err != nil {
		r.logger.Warn("Failed to cache order", zap.Error(err))
	}

	return got, nil
}

func (r *repository) ListOrdersByUser(ctx context.Context, tx pgx.Tx, userID string) ([]*models.Order, error) {
	rows, err := r.db(tx).Query(ctx,
		`SELECT id, user_id, items, total, currency, status, created_at, updated_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		r.logger.Error("Failed to list orders by user", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *repository) ListOrders(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Order, error) {
	query := `SELECT id, user_id, items, total, currency, status, created_at, updated_at
		 FROM orders ORDER BY created_at DESC`

	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = r.db(tx).Query(ctx, query+` LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = r.db(tx).Query(ctx, query)
	}
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *repository) UpdateOrderStatus(ctx context.Context, tx pgx.Tx, id uint64, status enum.OrderStatus) error {
	tag, err := r.db(tx).Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.Uint64("order_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	cacheKey := fmt.Sprintf("order:%d", id)
	if err = r.cache.Delete(ctx, cacheKey); err != nil {
		r.logger.Warn("Failed to invalidate order cache", zap.Error(err))
	}

	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	var itemsJSON []byte

	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}

	return &order, nil
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order rows: %w", err)
	}
	return orders, nil
}
