package ecpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// LogisticsConfig 物流客户端配置
type LogisticsConfig struct {
	Credentials    Config
	PlatformID     string
	MapURL         string
	CreateURL      string
	SelectionURL   string
	ServerReplyURL string // 物流状态通知地址
	Timeout        time.Duration
}

// ShipmentRequest 超商取货物流订单
type ShipmentRequest struct {
	MerchantTradeNo   string
	MerchantTradeDate time.Time
	LogisticsSubType  string
	GoodsAmount       int64
	GoodsName         string
	SenderName        string
	SenderCellPhone   string
	ReceiverName      string
	ReceiverCellPhone string
	ReceiverStoreID   string
	IsCollection      string
}

// SelectionResult 门市选择接口回应
type SelectionResult struct {
	Response  Response
	Decrypted string
	Parsed    map[string]any
}

// LogisticsClient 绿界物流接口客户端
type LogisticsClient struct {
	cfg        LogisticsConfig
	signer     *Signer
	httpClient *http.Client
	now        func() time.Time
}

// NewLogisticsClient 创建物流客户端
func NewLogisticsClient(cfg LogisticsConfig) *LogisticsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LogisticsClient{
		cfg:        cfg,
		signer:     NewSigner(cfg.Credentials),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Signer 返回物流凭证的签名器
func (c *LogisticsClient) Signer() *Signer {
	return c.signer
}

// MapForm 生成电子地图选店表单
func (c *LogisticsClient) MapForm(subType, extraData, replyURL string) (string, Params) {
	if subType == "" {
		subType = "FAMI"
	}
	params := Params{
		"MerchantID":       c.cfg.Credentials.MerchantID,
		"LogisticsType":    "CVS",
		"LogisticsSubType": subType,
		"IsCollection":     "N",
		"ServerReplyURL":   replyURL,
		"ExtraData":        extraData,
		"Device":           "0",
	}
	return c.cfg.MapURL, c.signer.Sign(params, HashMD5)
}

// CreateShipment 调用 Express/Create 建立超商物流订单
func (c *LogisticsClient) CreateShipment(ctx context.Context, req ShipmentRequest) (Response, error) {
	if req.MerchantTradeDate.IsZero() {
		req.MerchantTradeDate = c.now()
	}
	if req.IsCollection == "" {
		req.IsCollection = "N"
	}

	params := Params{
		"MerchantID":        c.cfg.Credentials.MerchantID,
		"MerchantTradeNo":   req.MerchantTradeNo,
		"MerchantTradeDate": FormatTradeDate(req.MerchantTradeDate),
		"LogisticsType":     "CVS",
		"LogisticsSubType":  req.LogisticsSubType,
		"GoodsAmount":       strconv.FormatInt(req.GoodsAmount, 10),
		"GoodsName":         req.GoodsName,
		"SenderName":        req.SenderName,
		"SenderCellPhone":   req.SenderCellPhone,
		"ReceiverName":      req.ReceiverName,
		"ReceiverCellPhone": req.ReceiverCellPhone,
		"ReceiverStoreID":   req.ReceiverStoreID,
		"IsCollection":      req.IsCollection,
		"ServerReplyURL":    c.cfg.ServerReplyURL,
	}
	if c.cfg.PlatformID != "" {
		params["PlatformID"] = c.cfg.PlatformID
	}
	form := c.signer.Sign(params, HashMD5).Form()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CreateURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(httpReq)
}

// RedirectToSelection 调用v2门市选择接口，data会被加密放入Data字段
func (c *LogisticsClient) RedirectToSelection(ctx context.Context, data any) (*SelectionResult, error) {
	cph, err := NewCipher(c.cfg.Credentials)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"MerchantID": c.cfg.Credentials.MerchantID,
		"RqHeader":   map[string]string{"Timestamp": strconv.FormatInt(c.now().Unix(), 10)},
		"Data":       cph.Encrypt(string(plain)),
	}
	if c.cfg.PlatformID != "" {
		payload["PlatformID"] = c.cfg.PlatformID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SelectionURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	result := &SelectionResult{Response: resp}
	if s, ok := resp.(*Success); ok && s.Field("Data") != "" {
		decrypted, err := cph.Decrypt(s.Field("Data"))
		if err != nil {
			return result, fmt.Errorf("解密回应Data失败: %w", err)
		}
		result.Decrypted = decrypted
		var parsed map[string]any
		if json.Unmarshal([]byte(decrypted), &parsed) == nil {
			result.Parsed = parsed
		}
	}
	return result, nil
}

func (c *LogisticsClient) do(req *http.Request) (Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求绿界物流接口失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取绿界回应失败: %w", err)
	}
	return ParseResponse(resp.StatusCode, body), nil
}
