package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"plgshop/internal/metrics"
	"plgshop/internal/model"
	"plgshop/internal/repository"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
)

// CallbackResult 付款回调处理结果
type CallbackResult struct {
	TradeNo   string
	Duplicate bool
	Order     *model.OrderRef
}

// SweepReport 一次对账扫描的结果
type SweepReport struct {
	Scanned   int       `json:"scanned"`
	Settled   int       `json:"settled"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	TradeNos  []string  `json:"tradeNos"`
	StartedAt time.Time `json:"startedAt"`
}

// ReconcilerService 付款回调对账，保证每笔交易只建立一次下游订单
type ReconcilerService struct {
	transactions repository.TransactionRepository
	fulfillment  *FulfillmentService
	signer       *ecpay.Signer
	lease        time.Duration
	batchSize    int
	metrics      *metrics.Metrics
	logger       *logger.Logger
	newToken     func() string
	onPaid       func(ctx context.Context, tx *model.Transaction, ref model.OrderRef)
}

// NewReconcilerService 创建对账服务
func NewReconcilerService(
	transactions repository.TransactionRepository,
	fulfillment *FulfillmentService,
	signer *ecpay.Signer,
	lease time.Duration,
	batchSize int,
	m *metrics.Metrics,
	log *logger.Logger,
) *ReconcilerService {
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &ReconcilerService{
		transactions: transactions,
		fulfillment:  fulfillment,
		signer:       signer,
		lease:        lease,
		batchSize:    batchSize,
		metrics:      m,
		logger:       log,
		newToken:     uuid.NewString,
	}
}

// HandlePaymentCallback 处理绿界付款结果通知
func (s *ReconcilerService) HandlePaymentCallback(ctx context.Context, params ecpay.Params) (*CallbackResult, error) {
	result, err := s.handle(ctx, params)
	s.metrics.CallbackOutcome(callbackOutcome(result, err))
	return result, err
}

func (s *ReconcilerService) handle(ctx context.Context, params ecpay.Params) (*CallbackResult, error) {
	tradeNo := params["MerchantTradeNo"]
	if tradeNo == "" || params[ecpay.FieldCheckMacValue] == "" {
		return nil, NewValidationError("missing MerchantTradeNo or CheckMacValue")
	}

	// 先验签再查询，伪造请求不会触及任何状态
	if !s.signer.Verify(params, ecpay.HashSHA256) {
		s.logger.Warn("付款回调签名不符", "trade_no", tradeNo)
		return nil, ErrSignatureMismatch
	}

	tx, err := s.transactions.GetByTradeNo(ctx, tradeNo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}

	result := &CallbackResult{TradeNo: tradeNo}
	if tx.Processed() {
		result.Duplicate = true
		result.Order = orderRefOf(tx)
		return result, nil
	}

	if code, err := strconv.Atoi(strings.TrimSpace(params["RtnCode"])); err != nil || code != 1 {
		s.logger.Info("付款未成功", "trade_no", tradeNo, "rtn_code", params["RtnCode"], "rtn_msg", params["RtnMsg"])
		return nil, ErrPaymentFailed
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(params["TradeAmt"]), 10, 64)
	if err != nil || amount != tx.TotalAmount {
		s.logger.Warn("付款金额不符", "trade_no", tradeNo, "trade_amt", params["TradeAmt"], "expected", tx.TotalAmount)
		return nil, ErrAmountMismatch
	}

	token := s.newToken()
	claimed, err := s.transactions.Claim(ctx, tradeNo, token, s.lease, &model.PaymentInfo{
		GatewayTradeNo: params["TradeNo"],
		PaymentDate:    params["PaymentDate"],
		PaymentType:    params["PaymentType"],
	})
	if err != nil {
		return nil, fmt.Errorf("claim transaction: %w", err)
	}
	if !claimed {
		return s.afterLostRace(ctx, tradeNo)
	}

	// 重新读取以获得claim_attempts
	tx, err = s.transactions.GetByTradeNo(ctx, tradeNo)
	if err != nil {
		s.release(ctx, tradeNo, token)
		return nil, fmt.Errorf("reload claimed transaction: %w", err)
	}

	ref, err := s.settle(ctx, tx, token, true)
	if errors.Is(err, repository.ErrClaimLost) {
		return s.afterLostRace(ctx, tradeNo)
	}
	if err != nil {
		return nil, err
	}
	result.Order = ref
	return result, nil
}

// settle 持有claim时建立或沿用下游订单并提交结果
func (s *ReconcilerService) settle(ctx context.Context, tx *model.Transaction, token string, releaseOnFailure bool) (*model.OrderRef, error) {
	order, adopted, err := s.fulfillment.CreateOrAdoptOrder(ctx, tx, tx.ClaimAttempts > 1)
	if err != nil {
		s.logger.Error("建立Shopify订单失败", "trade_no", tx.MerchantTradeNo, "error", err)
		if releaseOnFailure {
			s.release(ctx, tx.MerchantTradeNo, token)
		}
		return nil, err
	}

	shipping := tx.OrderPayload.Shipping
	if err := s.fulfillment.RecordOrder(ctx, order, tx.UserID, tx.MerchantTradeNo, &shipping); err != nil {
		// 订单已存在于Shopify，镜像写入失败不回滚
		s.logger.Error("保存订单镜像失败", "trade_no", tx.MerchantTradeNo, "shopify_order_id", order.ID, "error", err)
	}

	ref := model.OrderRef{ID: order.ID, Name: order.Name, Number: order.OrderNumber}
	if err := s.transactions.MarkProcessed(ctx, tx.MerchantTradeNo, token, ref); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			s.logger.Warn("提交对账结果时claim已失效", "trade_no", tx.MerchantTradeNo, "shopify_order_id", order.ID)
			return nil, err
		}
		return nil, fmt.Errorf("mark processed: %w", err)
	}

	s.logger.Info("交易对账完成",
		"trade_no", tx.MerchantTradeNo,
		"shopify_order_id", order.ID,
		"adopted", adopted,
		"attempts", tx.ClaimAttempts,
	)

	s.fulfillment.ShipAfterPayment(ctx, tx)
	if s.onPaid != nil {
		s.onPaid(ctx, tx, ref)
	}
	return &ref, nil
}

// OnPaid 设置交易完成后的回调，只在提交成功后调用一次
func (s *ReconcilerService) OnPaid(fn func(ctx context.Context, tx *model.Transaction, ref model.OrderRef)) {
	s.onPaid = fn
}

// afterLostRace 未取得claim时根据最新状态判断是重复通知还是处理中
func (s *ReconcilerService) afterLostRace(ctx context.Context, tradeNo string) (*CallbackResult, error) {
	tx, err := s.transactions.GetByTradeNo(ctx, tradeNo)
	if err != nil {
		return nil, fmt.Errorf("reload transaction: %w", err)
	}
	if tx.Processed() {
		return &CallbackResult{TradeNo: tradeNo, Duplicate: true, Order: orderRefOf(tx)}, nil
	}
	return nil, ErrClaimHeld
}

func (s *ReconcilerService) release(ctx context.Context, tradeNo, token string) {
	if err := s.transactions.ReleaseClaim(ctx, tradeNo, token); err != nil {
		s.logger.Error("释放claim失败", "trade_no", tradeNo, "error", err)
	}
}

// Sweep 接管租约过期的claim并完成对账
func (s *ReconcilerService) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{StartedAt: time.Now(), TradeNos: []string{}}

	stale, err := s.transactions.ListStaleClaims(ctx, s.lease, s.batchSize)
	if err != nil {
		s.metrics.ReconcileItem("error")
		return report, fmt.Errorf("list stale claims: %w", err)
	}
	report.Scanned = len(stale)

	for _, row := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome := s.sweepOne(ctx, row.MerchantTradeNo)
		s.metrics.ReconcileItem(outcome)
		switch outcome {
		case "settled":
			report.Settled++
			report.TradeNos = append(report.TradeNos, row.MerchantTradeNo)
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
	}

	if report.Scanned > 0 {
		s.logger.Info("对账扫描完成",
			"scanned", report.Scanned,
			"settled", report.Settled,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return report, nil
}

func (s *ReconcilerService) sweepOne(ctx context.Context, tradeNo string) string {
	token := s.newToken()
	claimed, err := s.transactions.Claim(ctx, tradeNo, token, s.lease, nil)
	if err != nil {
		s.logger.Error("接管claim失败", "trade_no", tradeNo, "error", err)
		return "error"
	}
	if !claimed {
		return "skipped"
	}

	tx, err := s.transactions.GetByTradeNo(ctx, tradeNo)
	if err != nil {
		s.logger.Error("读取交易失败", "trade_no", tradeNo, "error", err)
		return "error"
	}

	// 失败时保留claim，租约过期后下一轮重试
	if _, err := s.settle(ctx, tx, token, false); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			return "skipped"
		}
		return "error"
	}
	return "settled"
}

func orderRefOf(tx *model.Transaction) *model.OrderRef {
	if !tx.ShopifyOrderID.Valid {
		return nil
	}
	return &model.OrderRef{
		ID:     tx.ShopifyOrderID.Int64,
		Name:   tx.ShopifyOrderName.String,
		Number: tx.ShopifyOrderNumber.Int64,
	}
}

func callbackOutcome(result *CallbackResult, err error) string {
	var downstreamErr *DownstreamError
	switch {
	case err == nil && result != nil && result.Duplicate:
		return "duplicate"
	case err == nil:
		return "processed"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrSignatureMismatch):
		return "bad_signature"
	case errors.Is(err, ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrClaimHeld):
		return "processing"
	case errors.As(err, &downstreamErr):
		return "downstream_error"
	}
	return "error"
}
