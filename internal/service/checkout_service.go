package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
)

var tradeNoPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,20}$`)

// CheckoutRequest 前端结账请求
type CheckoutRequest struct {
	TradeNo     string             `json:"tradeNo"`
	TotalAmount float64            `json:"totalAmount"`
	Description *string            `json:"description"`
	ReturnURL   *string            `json:"returnURL"`
	Order       model.OrderPayload `json:"order"`
}

// CheckoutForm 提交到绿界付款页的表单
type CheckoutForm struct {
	Action string       `json:"action"`
	Fields ecpay.Params `json:"fields"`
}

// CheckoutConfig 金流参数
type CheckoutConfig struct {
	MerchantID    string
	PaymentURL    string
	ReturnURL     string
	ClientBackURL string
}

// CheckoutService 建立待付款交易并签名付款表单
type CheckoutService struct {
	transactions repository.TransactionRepository
	signer       *ecpay.Signer
	cfg          CheckoutConfig
	logger       *logger.Logger
	now          func() time.Time
}

// NewCheckoutService 创建结账服务
func NewCheckoutService(transactions repository.TransactionRepository, signer *ecpay.Signer, cfg CheckoutConfig, log *logger.Logger) *CheckoutService {
	return &CheckoutService{
		transactions: transactions,
		signer:       signer,
		cfg:          cfg,
		logger:       log,
		now:          time.Now,
	}
}

// Initiate 保存待付款交易并返回签名后的付款表单
func (s *CheckoutService) Initiate(ctx context.Context, userID int64, req CheckoutRequest) (*CheckoutForm, error) {
	total := int64(math.Round(req.TotalAmount))
	if req.TradeNo == "" || total <= 0 {
		return nil, NewValidationError(constants.ErrTradeNoOrAmount)
	}
	if !tradeNoPattern.MatchString(req.TradeNo) {
		return nil, NewValidationError(constants.ErrTradeNoFormat)
	}
	if len(req.Order.Items) == 0 {
		return nil, NewValidationError(constants.ErrOrderItemsMissing)
	}

	if err := s.transactions.Upsert(ctx, req.TradeNo, userID, total, req.Order); err != nil {
		if errors.Is(err, repository.ErrTradeNoTaken) {
			s.logger.Warn("交易编号属于其他用户", "trade_no", req.TradeNo, "user_id", userID)
			return nil, statusError(ErrConflict, constants.ErrTradeNoTaken)
		}
		return nil, fmt.Errorf("persist pending order: %w", err)
	}

	desc := "PLG order"
	if req.Description != nil {
		desc = *req.Description
	}
	returnURL := s.cfg.ReturnURL
	if req.ReturnURL != nil && *req.ReturnURL != "" {
		returnURL = *req.ReturnURL
	}

	fields := s.signer.Sign(ecpay.Params{
		"MerchantID":        s.cfg.MerchantID,
		"MerchantTradeNo":   req.TradeNo,
		"MerchantTradeDate": ecpay.FormatTradeDate(s.now()),
		"PaymentType":       "aio",
		"TotalAmount":       strconv.FormatInt(total, 10),
		"TradeDesc":         desc,
		"ItemName":          "PLG item",
		"ReturnURL":         returnURL,
		"ClientBackURL":     s.cfg.ClientBackURL,
		"ChoosePayment":     "Credit",
		"EncryptType":       "1",
	}, ecpay.HashSHA256)

	s.logger.Info("建立待付款交易", "trade_no", req.TradeNo, "user_id", userID, "total", total)
	return &CheckoutForm{Action: s.cfg.PaymentURL, Fields: fields}, nil
}
