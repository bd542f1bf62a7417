package shop

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"nullashop.io/shop/driver"
	"nullashop.io/shop/image"
	"nullashop.io/shop/models"
	"nullashop.io/shop/models/enum"
	"nullashop.io/shop/order"
	"nullashop.io/shop/product"
	"nullashop.io/shop/storage"
)

var (
	ErrNotOrderOwner       = errors.New("order does not belong to this user")
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
	ErrInvalidStatusChange = errors.New("invalid order status transition")
)

type Service interface {
	ListProducts(ctx context.Context, limit, offset uint64) ([]*models.Product, error)
	ListFeaturedProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id uint64) (*models.Product, error)
	SearchProducts(ctx context.Context, term string) ([]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint64) error
	AttachProductImage(ctx context.Context, productID uint64, owner, filename string, data []byte) (*models.Product, error)
	RemoveProductImage(ctx context.Context, productID uint64, url string) error

	PlaceOrder(ctx context.Context, o *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*models.Order, error)
	ListAllOrders(ctx context.Context, limit, offset uint64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint64, status enum.OrderStatus) error
	CancelOrder(ctx context.Context, orderID uint64, userID string) error
}

type service struct {
	product product.Repository
	order   order.Repository
	image   image.Repository
	bucket  *storage.Bucket

	transactionManager *driver.TransactionManager
	eventManager       *EventManager
	workerPool         *WorkerPool

	logger *zap.Logger
}

func NewService(
	product product.Repository, order order.Repository, image image.Repository,
	bucket *storage.Bucket, tm *driver.TransactionManager,
	natsConn *nats.Conn,
	logger *zap.Logger) Service {
	s := &service{
		product:            product,
		order:              order,
		image:              image,
		bucket:             bucket,
		transactionManager: tm,
		logger:             logger,
	}
	s.eventManager = NewEventManager(natsConn, logger)
	s.workerPool = NewWorkerPool(10, s, logger)
	s.registerEventHandlers()

	// 訂閱訂單事件
	if err := s.eventManager.SubscribeToEvents(s.workerPool); err != nil {
		logger.Error("Failed to subscribe to events", zap.Error(err))
	}

	return s
}

func (s *service) ListProducts(ctx context.Context, limit, offset uint64) ([]*models.Product, error) {
	return s.product.List(ctx, nil, limit, offset)
}

func (s *service) ListFeaturedProducts(ctx context.Context) ([]*models.Product, error) {
	return s.product.ListFeatured(ctx, nil)
}

func (s *service) GetProduct(ctx context.Context, id uint64) (*models.Product, error) {
	return s.product.Get(ctx, nil, id)
}

func (s *service) SearchProducts(ctx context.Context, term string) ([]*models.Product, error) {
	return s.product.Search(ctx, nil, term)
}

func (s *service) CreateProduct(ctx context.Context, p *models.Product) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.product.Create(ctx, tx, p)
	})
}

func (s *service) UpdateProduct(ctx context.Context, p *models.Product) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.product.Update(ctx, tx, p)
	})
}

// DeleteProduct removes a product together with its image rows and bucket
// objects. Storage cleanup is best-effort: a failed object delete is logged
// and never blocks the product mutation.
func (s *service) DeleteProduct(ctx context.Context, id uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		// 1. 取得圖片 metadata，沒有記錄時退回 products.image_urls
		urls := make([]string, 0)
		imgs, err := s.image.ListByProduct(ctx, tx, id)
		if err != nil {
			s.logger.Warn("Failed to list image rows before delete", zap.Uint64("product_id", id), zap.Error(err))
		}
		if len(imgs) > 0 {
			for _, img := range imgs {
				urls = append(urls, img.URL)
			}
		} else {
			p, err := s.product.Get(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("failed to get product: %w", err)
			}
			urls = append(urls, p.ImageURLs...)
		}

		// 2. 刪除 bucket 裡的檔案（best-effort）
		s.removeObjects(ctx, urls)

		// 3. 刪除圖片 metadata
		if err = s.image.DeleteByProduct(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to delete image rows: %w", err)
		}

		// 4. 刪除商品本身
		if err = s.product.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}

		return nil
	})
}

// AttachProductImage uploads the file to the bucket, records its metadata
// and appends the public URL to the product.
func (s *service) AttachProductImage(ctx context.Context, productID uint64, owner, filename string, data []byte) (*models.Product, error) {
	objectPath := fmt.Sprintf("%d/%s%s", productID, uuid.NewString(), path.Ext(filename))

	url, err := s.bucket.Upload(ctx, objectPath, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	var updated *models.Product
	err = s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		p, err := s.product.Get(ctx, tx, productID)
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}

		if err = s.image.Insert(ctx, tx, &models.Image{
			ProductID: productID,
			URL:       url,
			Owner:     owner,
		}); err != nil {
			return fmt.Errorf("failed to insert image row: %w", err)
		}

		p.ImageURLs = append(p.ImageURLs, url)
		if err = s.product.UpdateImageURLs(ctx, tx, productID, p.ImageURLs); err != nil {
			return fmt.Errorf("failed to update product images: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		// roll the uploaded object back so the bucket doesn't leak files
		s.removeObjects(ctx, []string{url})
		return nil, err
	}

	return updated, nil
}

// RemoveProductImage detaches one image: bucket object (best-effort),
// metadata row, and the URL on the product.
func (s *service) RemoveProductImage(ctx context.Context, productID uint64, url string) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		p, err := s.product.Get(ctx, tx, productID)
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}

		s.removeObjects(ctx, []string{url})

		if err = s.image.DeleteByProductURL(ctx, tx, productID, url); err != nil {
			return fmt.Errorf("failed to delete image row: %w", err)
		}

		urls := make([]string, 0, len(p.ImageURLs))
		for _, u := range p.ImageURLs {
			if u != url {
				urls = append(urls, u)
			}
		}
		if err = s.product.UpdateImageURLs(ctx, tx, productID, urls); err != nil {
			return fmt.Errorf("failed to update product images: %w", err)
		}

		return nil
	})
}

// removeObjects resolves public URLs to object paths and deletes them.
// Failures are logged only.
func (s *service) removeObjects(ctx context.Context, urls []string) {
	paths := make([]string, 0, len(urls))
	for _, u := range urls {
		if p := s.bucket.ExtractPath(u); p != "" {
			paths = append(paths, p)
		} else if u != "" {
			s.logger.Warn("無法解析 storage path，跳過 storage 刪除", zap.String("url", u))
		}
	}
	if len(paths) == 0 {
		return
	}
	if err := s.bucket.Remove(ctx, paths); err != nil {
		s.logger.Warn("Failed to remove bucket objects", zap.Error(err))
	}
}

// PlaceOrder persists a confirmed checkout. It implements checkout.Gateway.
func (s *service) PlaceOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	if o.UserID == "" {
		return nil, errors.New("order requires a user id")
	}
	if len(o.Items) == 0 {
		return nil, errors.New("order has no items")
	}
	if o.Status == "" {
		o.Status = enum.OrderStatusPlaced
	}

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.order.CreateOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.publishOrderEvent(models.OrderEventCreated, o)

	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	return s.order.GetOrder(ctx, nil, id)
}

func (s *service) ListUserOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	return s.order.ListOrdersByUser(ctx, nil, userID)
}

func (s *service) ListAllOrders(ctx context.Context, limit, offset uint64) ([]*models.Order, error) {
	return s.order.ListOrders(ctx, nil, limit, offset)
}

// UpdateOrderStatus 後台更新訂單狀態，轉換規則見 models.Order
func (s *service) UpdateOrderStatus(ctx context.Context, orderID uint64, newStatus enum.OrderStatus) error {
	var updated *models.Order
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		orderModel, err := s.order.GetOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}

		if !orderModel.AllowChangeStatus(newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChange, orderModel.Status, newStatus)
		}

		if err = s.order.UpdateOrderStatus(ctx, tx, orderID, newStatus); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		orderModel.Status = newStatus
		updated = orderModel
		return nil
	})
	if err != nil {
		return err
	}

	s.publishOrderEvent(models.OrderEventStatusChanged, updated)

	return nil
}

// CancelOrder 訂單擁有者取消自己的訂單，僅限已成立
func (s *service) CancelOrder(ctx context.Context, orderID uint64, userID string) error {
	var cancelled *models.Order
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		orderModel, err := s.order.GetOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}

		if orderModel.UserID != userID {
			return ErrNotOrderOwner
		}
		if !orderModel.CanCancel() {
			return fmt.Errorf("%w: current status is %s", ErrOrderNotCancellable, orderModel.Status)
		}

		if err = s.order.UpdateOrderStatus(ctx, tx, orderID, enum.OrderStatusCancelled); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		orderModel.Status = enum.OrderStatusCancelled
		cancelled = orderModel
		return nil
	})
	if err != nil {
		return err
	}

	s.publishOrderEvent(models.OrderEventStatusChanged, cancelled)

	return nil
}

// publishOrderEvent is best-effort: the user action already committed.
func (s *service) publishOrderEvent(eventType models.OrderEventType, o *models.Order) {
	event := &models.OrderEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Total:     o.Total,
		CreatedAt: time.Now(),
	}
	if err := s.eventManager.Publish(event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("event_type", string(eventType)),
			zap.Uint64("order_id", o.ID),
			zap.Error(err))
	}
}
