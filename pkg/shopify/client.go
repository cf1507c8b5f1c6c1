package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMissingOrderID 建单回应中没有订单ID
var ErrMissingOrderID = errors.New("shopify did not return an order id")

// ErrNotConfigured 缺少店铺域名或凭证
var ErrNotConfigured = errors.New("shopify api is not configured")

// APIError 非2xx回应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify api status %d: %s", e.StatusCode, e.Body)
}

// Config Admin API配置
type Config struct {
	StoreDomain string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	BaseURL     string // 为空时由域名与版本拼出
}

// Client Shopify Admin API客户端
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient 创建Admin API客户端
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-04"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" && cfg.StoreDomain != "" {
		baseURL = fmt.Sprintf("https://%s/admin/api/%s", cfg.StoreDomain, cfg.APIVersion)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured 是否已设置凭证
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.accessToken != ""
}

// CreateOrder 建立订单
func (c *Client) CreateOrder(ctx context.Context, input OrderInput) (*Order, error) {
	var out struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders.json", map[string]any{"order": input}, &out); err != nil {
		return nil, err
	}
	if out.Order == nil || out.Order.ID == 0 {
		return nil, ErrMissingOrderID
	}
	return out.Order, nil
}

// GetOrder 根据ID获取订单
func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var out struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10)+".json", nil, &out); err != nil {
		return nil, err
	}
	if out.Order == nil || out.Order.ID == 0 {
		return nil, ErrMissingOrderID
	}
	return out.Order, nil
}

// GetProduct 获取商品及其规格
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var out struct {
		Product *Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodGet, "/products/"+productID+".json", nil, &out); err != nil {
		return nil, err
	}
	if out.Product == nil {
		return &Product{}, nil
	}
	return out.Product, nil
}

const ordersByTagQuery = `query ordersByTag($q: String!) {
  orders(first: 1, query: $q) {
    edges { node { legacyResourceId } }
  }
}`

// FindOrderByTag 通过标签查找订单，未找到时返回nil
func (c *Client) FindOrderByTag(ctx context.Context, tag string) (*Order, error) {
	var out struct {
		Data struct {
			Orders struct {
				Edges []struct {
					Node struct {
						LegacyResourceID string `json:"legacyResourceId"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"orders"`
		} `json:"data"`
		Errors []gqlError `json:"errors"`
	}
	body := map[string]any{
		"query":     ordersByTagQuery,
		"variables": map[string]string{"q": fmt.Sprintf("tag:'%s' status:any", tag)},
	}
	if err := c.do(ctx, http.MethodPost, "/graphql.json", body, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, &GraphQLError{Messages: messagesOf(out.Errors)}
	}
	if len(out.Data.Orders.Edges) == 0 {
		return nil, nil
	}

	id, err := strconv.ParseInt(out.Data.Orders.Edges[0].Node.LegacyResourceID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", out.Data.Orders.Edges[0].Node.LegacyResourceID, err)
	}
	return c.GetOrder(ctx, id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode shopify response: %w", err)
	}
	return nil
}
