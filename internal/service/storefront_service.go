package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"plgshop/internal/constants"
	"plgshop/pkg/shopify"
)

// CartCreator Storefront购物车
type CartCreator interface {
	Configured() bool
	CartCreate(ctx context.Context, input shopify.CartInput) (*shopify.CartCreateResult, error)
}

// ProductCatalog Admin API商品
type ProductCatalog interface {
	Configured() bool
	GetProduct(ctx context.Context, productID string) (*shopify.Product, error)
}

// StorefrontLine 前端传入的购物车行，merchandiseId必须是字符串
type StorefrontLine struct {
	MerchandiseID any              `json:"merchandiseId"`
	Quantity      any              `json:"quantity"`
	SellingPlanID string           `json:"sellingPlanId,omitempty"`
	Attributes    []map[string]any `json:"attributes,omitempty"`
}

// StorefrontCheckoutRequest Storefront结账请求
type StorefrontCheckoutRequest struct {
	Lines            []StorefrontLine `json:"lines"`
	CustomAttributes any              `json:"customAttributes,omitempty"`
	BuyerIdentity    map[string]any   `json:"buyerIdentity,omitempty"`
	ShippingAddress  map[string]any   `json:"shippingAddress,omitempty"`
}

// StorefrontCheckout 结账结果
type StorefrontCheckout struct {
	CheckoutURL string `json:"checkoutUrl"`
	CartID      string `json:"cartId"`
}

// VariantView 商品规格
type VariantView struct {
	ID    int64  `json:"id"`
	GID   string `json:"gid"`
	Title string `json:"title"`
	SKU   string `json:"sku"`
}

// ErrStorefrontNotConfigured Storefront凭证缺失
var ErrStorefrontNotConfigured = errors.New("storefront api not configured")

// StorefrontService Storefront结账与商品规格
type StorefrontService struct {
	carts    CartCreator
	products ProductCatalog
}

// NewStorefrontService 创建Storefront服务
func NewStorefrontService(carts CartCreator, products ProductCatalog) *StorefrontService {
	return &StorefrontService{carts: carts, products: products}
}

// Checkout 建立Storefront购物车并返回结账网址
func (s *StorefrontService) Checkout(ctx context.Context, req StorefrontCheckoutRequest) (*StorefrontCheckout, error) {
	if !s.carts.Configured() {
		return nil, ErrStorefrontNotConfigured
	}
	if len(req.Lines) == 0 {
		return nil, NewValidationError(constants.ErrItemsMissing)
	}

	lines := make([]shopify.CartLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		id, ok := line.MerchandiseID.(string)
		if !ok {
			continue
		}
		lines = append(lines, shopify.CartLine{
			MerchandiseID: id,
			Quantity:      max(1, lineQuantity(line.Quantity)),
			SellingPlanID: line.SellingPlanID,
			Attributes:    line.Attributes,
		})
	}
	if len(lines) == 0 {
		return nil, NewValidationError(constants.ErrNoValidVariant)
	}

	result, err := s.carts.CartCreate(ctx, shopify.CartInput{
		Lines:            lines,
		CustomAttributes: req.CustomAttributes,
		BuyerIdentity:    req.BuyerIdentity,
		ShippingAddress:  req.ShippingAddress,
	})
	var gqlErr *shopify.GraphQLError
	if errors.As(err, &gqlErr) {
		return nil, NewValidationError(gqlErr.Error())
	}
	if err != nil {
		return nil, downstream("shopify-storefront", err)
	}

	if len(result.UserErrors) > 0 {
		msgs := make([]string, 0, len(result.UserErrors))
		for _, ue := range result.UserErrors {
			msgs = append(msgs, ue.Message)
		}
		return nil, NewValidationError(strings.Join(msgs, "; "))
	}
	if result.Cart == nil || result.Cart.CheckoutURL == "" {
		return nil, downstream("shopify-storefront", errors.New(constants.ErrNoCheckoutURL))
	}
	return &StorefrontCheckout{CheckoutURL: result.Cart.CheckoutURL, CartID: result.Cart.ID}, nil
}

// Variants 商品的所有规格
func (s *StorefrontService) Variants(ctx context.Context, productID string) ([]VariantView, error) {
	if !s.products.Configured() {
		return nil, shopify.ErrNotConfigured
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, downstream("shopify", fmt.Errorf("get product %s: %w", productID, err))
	}
	views := make([]VariantView, 0, len(product.Variants))
	for _, v := range product.Variants {
		views = append(views, VariantView{
			ID:    v.ID,
			GID:   fmt.Sprintf("gid://shopify/ProductVariant/%d", v.ID),
			Title: v.Title,
			SKU:   v.SKU,
		})
	}
	return views, nil
}

func lineQuantity(v any) int {
	switch q := v.(type) {
	case float64:
		return int(q)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil {
			return 0
		}
		return int(n)
	}
	return 0
}
