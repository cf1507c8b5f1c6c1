package model

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品模型
type Product struct {
	ID               int64          `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	PriceCents       int64          `db:"price_cents" json:"priceCents"`
	ImageURL         sql.NullString `db:"image_url" json:"-"`
	ShopifyVariantID sql.NullString `db:"shopify_variant_id" json:"-"`
	Active           bool           `db:"active" json:"active"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// CartItem 购物车明细，与商品联表查询
type CartItem struct {
	ProductID        int64          `db:"product_id" json:"productId"`
	Quantity         int            `db:"quantity" json:"quantity"`
	Name             string         `db:"name" json:"name"`
	PriceCents       int64          `db:"price_cents" json:"priceCents"`
	ImageURL         sql.NullString `db:"image_url" json:"-"`
	ShopifyVariantID sql.NullString `db:"shopify_variant_id" json:"-"`
}

// CartItemView 返回给前端的购物车明细
type CartItemView struct {
	ProductID        int64   `json:"productId"`
	Quantity         int     `json:"quantity"`
	Name             string  `json:"name"`
	PriceCents       int64   `json:"priceCents"`
	ImageURL         *string `json:"imageUrl"`
	ShopifyVariantID *string `json:"shopifyVariantId"`
}

// View 转换为前端格式
func (c CartItem) View() CartItemView {
	return CartItemView{
		ProductID:        c.ProductID,
		Quantity:         c.Quantity,
		Name:             c.Name,
		PriceCents:       c.PriceCents,
		ImageURL:         nullable(c.ImageURL),
		ShopifyVariantID: nullable(c.ShopifyVariantID),
	}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// ProductView 返回给前端的商品
type ProductView struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	PriceCents       int64   `json:"priceCents"`
	Price            string  `json:"price"`
	ImageURL         *string `json:"imageUrl"`
	ShopifyVariantID *string `json:"shopifyVariantId"`
}

// View 转换为前端格式
func (p *Product) View() ProductView {
	return ProductView{
		ID:               p.ID,
		Name:             p.Name,
		PriceCents:       p.PriceCents,
		Price:            FormatMinorUnits(p.PriceCents),
		ImageURL:         nullable(p.ImageURL),
		ShopifyVariantID: nullable(p.ShopifyVariantID),
	}
}

// FormatMinorUnits 将分转为两位小数字符串
func FormatMinorUnits(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
