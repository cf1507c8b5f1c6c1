package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrNotConfigured 未设置Google OAuth凭证
var ErrNotConfigured = errors.New("google oauth is not configured")

// ErrEmailNotVerified Google帐号邮箱未验证
var ErrEmailNotVerified = errors.New("google email not verified")

// UserInfo Google返回的用户资料
type UserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Client Google OAuth客户端
type Client struct {
	oauth       *oauth2.Config
	userInfoURL string
}

// New 创建Google OAuth客户端
func New(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: defaultUserInfoURL,
	}
}

// WithEndpoint 替换授权与用户资料端点
func (c *Client) WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) *Client {
	c.oauth.Endpoint = endpoint
	c.userInfoURL = userInfoURL
	return c
}

// Configured 是否已设置凭证
func (c *Client) Configured() bool {
	return c.oauth.ClientID != "" && c.oauth.ClientSecret != "" && c.oauth.RedirectURL != ""
}

// AuthCodeURL 生成授权跳转地址
func (c *Client) AuthCodeURL(state string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account")), nil
}

// Exchange 用授权码换取令牌并读取用户资料
func (c *Client) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, body)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" || !info.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return &info, nil
}
