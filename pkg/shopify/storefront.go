package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StorefrontConfig Storefront API配置
type StorefrontConfig struct {
	StoreDomain string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	Endpoint    string
}

type gqlError struct {
	Message string `json:"message"`
}

// GraphQLError GraphQL层错误
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// UserError cartCreate返回的业务错误
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// CartLine 购物车行
type CartLine struct {
	MerchandiseID string           `json:"merchandiseId"`
	Quantity      int              `json:"quantity"`
	SellingPlanID string           `json:"sellingPlanId,omitempty"`
	Attributes    []map[string]any `json:"attributes,omitempty"`
}

// CartInput cartCreate输入
type CartInput struct {
	Lines            []CartLine     `json:"lines"`
	CustomAttributes any            `json:"customAttributes,omitempty"`
	BuyerIdentity    map[string]any `json:"buyerIdentity,omitempty"`
	ShippingAddress  map[string]any `json:"shippingAddress,omitempty"`
}

// Cart 建立完成的购物车
type Cart struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
}

// CartCreateResult cartCreate结果
type CartCreateResult struct {
	Cart       *Cart
	UserErrors []UserError
}

const cartCreateMutation = `mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart { id checkoutUrl }
    userErrors { field message }
  }
}`

// StorefrontClient Storefront GraphQL客户端
type StorefrontClient struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
}

// NewStorefrontClient 创建Storefront客户端
func NewStorefrontClient(cfg StorefrontConfig) *StorefrontClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-04"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.StoreDomain != "" {
		endpoint = fmt.Sprintf("https://%s/api/%s/graphql.json", cfg.StoreDomain, cfg.APIVersion)
	}
	return &StorefrontClient{
		endpoint:    endpoint,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured 是否已设置凭证
func (c *StorefrontClient) Configured() bool {
	return c.endpoint != "" && c.accessToken != ""
}

// CartCreate 建立购物车并取得结账网址
func (c *StorefrontClient) CartCreate(ctx context.Context, input CartInput) (*CartCreateResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]any{
		"query":     cartCreateMutation,
		"variables": map[string]any{"input": input},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storefront request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out struct {
		Data struct {
			CartCreate struct {
				Cart       *Cart       `json:"cart"`
				UserErrors []UserError `json:"userErrors"`
			} `json:"cartCreate"`
		} `json:"data"`
		Errors []gqlError `json:"errors"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode storefront response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, &GraphQLError{Messages: messagesOf(out.Errors)}
	}
	return &CartCreateResult{Cart: out.Data.CartCreate.Cart, UserErrors: out.Data.CartCreate.UserErrors}, nil
}

func messagesOf(errs []gqlError) []string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return msgs
}
