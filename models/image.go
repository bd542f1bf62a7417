package models

import "time"

// Image 代表商品圖片的 metadata，檔案本體存在 product-images bucket
type Image struct {
	ID        uint64    `json:"id"`
	ProductID uint64    `json:"product_id"`
	URL       string    `json:"url"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}
