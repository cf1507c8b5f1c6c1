package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plgshop/internal/model"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/shopify"
)

func TestPaymentCallbackCreatesOrderOnce(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T1", 42, 500, homePayload()))

	res, err := f.svc.HandlePaymentCallback(ctx, f.callback("T1", "500", "1"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.Order)
	assert.Equal(t, 1, f.platform.created())

	tx, err := f.txs.GetByTradeNo(ctx, "T1")
	require.NoError(t, err)
	assert.True(t, tx.Processed())
	assert.Equal(t, res.Order.ID, tx.ShopifyOrderID.Int64)
	assert.False(t, tx.ClaimToken.Valid)
	assert.Equal(t, "2405011234567890", tx.GatewayTradeNo.String)

	mirror := f.orders.rows[res.Order.ID]
	require.NotNil(t, mirror)
	assert.Equal(t, int64(42), mirror.UserID.Int64)
	assert.Equal(t, "home", mirror.ShippingMethod.String)
	assert.Equal(t, "T1", mirror.MerchantTradeNo.String)

	// 重复通知不再建单
	again, err := f.svc.HandlePaymentCallback(ctx, f.callback("T1", "500", "1"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, res.Order.ID, again.Order.ID)
	assert.Equal(t, 1, f.platform.created())
	assert.Empty(t, f.shipments.requests)
}

func TestPaymentCallbackRejections(t *testing.T) {
	tests := []struct {
		name   string
		params func(f *reconcileFixture) ecpay.Params
		want   error
	}{
		{
			name: "missing check mac",
			params: func(f *reconcileFixture) ecpay.Params {
				p := f.callback("T1", "500", "1")
				delete(p, ecpay.FieldCheckMacValue)
				return p
			},
			want: ErrValidation,
		},
		{
			name: "missing trade no",
			params: func(f *reconcileFixture) ecpay.Params {
				return f.signer.Sign(ecpay.Params{"RtnCode": "1", "TradeAmt": "500"}, ecpay.HashSHA256)
			},
			want: ErrValidation,
		},
		{
			name: "tampered amount",
			params: func(f *reconcileFixture) ecpay.Params {
				p := f.callback("T1", "500", "1")
				p["TradeAmt"] = "1"
				return p
			},
			want: ErrSignatureMismatch,
		},
		{
			name: "sha256 required",
			params: func(f *reconcileFixture) ecpay.Params {
				return f.signer.Sign(ecpay.Params{"MerchantTradeNo": "T1", "RtnCode": "1", "TradeAmt": "500"}, ecpay.HashMD5)
			},
			want: ErrSignatureMismatch,
		},
		{
			name:   "unknown trade",
			params: func(f *reconcileFixture) ecpay.Params { return f.callback("NOPE", "500", "1") },
			want:   ErrTransactionNotFound,
		},
		{
			name:   "payment failed",
			params: func(f *reconcileFixture) ecpay.Params { return f.callback("T1", "500", "10100058") },
			want:   ErrPaymentFailed,
		},
		{
			name:   "amount mismatch",
			params: func(f *reconcileFixture) ecpay.Params { return f.callback("T1", "499", "1") },
			want:   ErrAmountMismatch,
		},
		{
			name:   "non integer amount",
			params: func(f *reconcileFixture) ecpay.Params { return f.callback("T1", "500.0", "1") },
			want:   ErrAmountMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcileFixture()
			ctx := context.Background()
			require.NoError(t, f.txs.Upsert(ctx, "T1", 42, 500, homePayload()))

			_, err := f.svc.HandlePaymentCallback(ctx, tt.params(f))
			assert.ErrorIs(t, err, tt.want)

			tx, err := f.txs.GetByTradeNo(ctx, "T1")
			require.NoError(t, err)
			assert.False(t, tx.Processed())
			assert.False(t, tx.ClaimToken.Valid)
			assert.Zero(t, tx.ClaimAttempts)
			assert.False(t, tx.GatewayTradeNo.Valid)
			assert.Equal(t, 0, f.platform.created())
		})
	}
}

func TestPaymentCallbackDownstreamFailureReleasesClaim(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T2", 1, 500, homePayload()))

	f.platform.createFn = func(shopify.OrderInput) error {
		return &shopify.APIError{StatusCode: 503, Body: "unavailable"}
	}
	_, err := f.svc.HandlePaymentCallback(ctx, f.callback("T2", "500", "1"))
	var downstreamErr *DownstreamError
	require.ErrorAs(t, err, &downstreamErr)
	assert.Equal(t, "shopify", downstreamErr.Service)

	tx, err := f.txs.GetByTradeNo(ctx, "T2")
	require.NoError(t, err)
	assert.False(t, tx.Processed())
	assert.False(t, tx.ClaimToken.Valid, "claim released for redelivery")

	// 绿界重送后成功，重新claim会先按标签查找
	f.platform.createFn = nil
	res, err := f.svc.HandlePaymentCallback(ctx, f.callback("T2", "500", "1"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, f.platform.created())

	tx, err = f.txs.GetByTradeNo(ctx, "T2")
	require.NoError(t, err)
	assert.True(t, tx.Processed())
	assert.Equal(t, 2, tx.ClaimAttempts)
}

func TestPaymentCallbackLookupFailureOnReclaimIsDownstream(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T3", 1, 500, homePayload()))

	claimed, err := f.txs.Claim(ctx, "T3", "crashed", 2*time.Minute, nil)
	require.NoError(t, err)
	require.True(t, claimed)
	f.txs.age("T3", 5*time.Minute)

	f.platform.findErr = errors.New("graphql timeout")
	_, err = f.svc.HandlePaymentCallback(ctx, f.callback("T3", "500", "1"))
	var downstreamErr *DownstreamError
	require.ErrorAs(t, err, &downstreamErr)
	assert.Equal(t, 0, f.platform.created())
}

func TestPaymentCallbackAdoptsOrderAfterCrash(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T4", 9, 500, homePayload()))

	// 上一次处理在建单后、提交前中断
	claimed, err := f.txs.Claim(ctx, "T4", "crashed", 2*time.Minute, nil)
	require.NoError(t, err)
	require.True(t, claimed)
	tx, err := f.txs.GetByTradeNo(ctx, "T4")
	require.NoError(t, err)
	existing, err := f.platform.CreateOrder(ctx, BuildPaidOrder(tx))
	require.NoError(t, err)

	// 租约未过期时视为处理中
	_, err = f.svc.HandlePaymentCallback(ctx, f.callback("T4", "500", "1"))
	assert.ErrorIs(t, err, ErrClaimHeld)

	f.txs.age("T4", 5*time.Minute)
	res, err := f.svc.HandlePaymentCallback(ctx, f.callback("T4", "500", "1"))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.Order.ID)
	assert.Equal(t, 1, f.platform.created())
}

func TestPaymentCallbackConcurrentDeliveries(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T5", 1, 500, homePayload()))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.HandlePaymentCallback(ctx, f.callback("T5", "500", "1"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrClaimHeld)
		}
	}
	assert.Equal(t, 1, f.platform.created())

	tx, err := f.txs.GetByTradeNo(ctx, "T5")
	require.NoError(t, err)
	assert.True(t, tx.Processed())
}

func TestPaymentCallbackHeldWhileInFlight(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T6", 1, 500, homePayload()))

	f.platform.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.HandlePaymentCallback(ctx, f.callback("T6", "500", "1"))
		done <- err
	}()

	require.Eventually(t, func() bool {
		tx, err := f.txs.GetByTradeNo(ctx, "T6")
		return err == nil && tx.ClaimToken.Valid
	}, time.Second, 5*time.Millisecond)

	_, err := f.svc.HandlePaymentCallback(ctx, f.callback("T6", "500", "1"))
	assert.ErrorIs(t, err, ErrClaimHeld)

	close(f.platform.gate)
	require.NoError(t, <-done)

	res, err := f.svc.HandlePaymentCallback(ctx, f.callback("T6", "500", "1"))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 1, f.platform.created())
}

func TestPaymentCallbackPickupCreatesShipment(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T7", 1, 500, pickupPayload()))

	_, err := f.svc.HandlePaymentCallback(ctx, f.callback("T7", "500", "1"))
	require.NoError(t, err)

	require.Len(t, f.shipments.requests, 1)
	req := f.shipments.requests[0]
	assert.Equal(t, "FAMIC2C", req.LogisticsSubType)
	assert.Equal(t, "006598", req.ReceiverStoreID)
	assert.Equal(t, int64(500), req.GoodsAmount)
	assert.Equal(t, "PLG 經典款", req.GoodsName)
	assert.Equal(t, "全家台北店", req.ReceiverName)

	tx, err := f.txs.GetByTradeNo(ctx, "T7")
	require.NoError(t, err)
	assert.Equal(t, "LGT7", tx.AllPayLogisticsID.String)
}

func TestPaymentCallbackShipmentFailureIsSwallowed(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T8", 1, 500, pickupPayload()))
	f.shipments.resp = &ecpay.ProtocolError{Code: "0", Message: "門市關轉"}

	res, err := f.svc.HandlePaymentCallback(ctx, f.callback("T8", "500", "1"))
	require.NoError(t, err)
	assert.NotNil(t, res.Order)

	tx, err := f.txs.GetByTradeNo(ctx, "T8")
	require.NoError(t, err)
	assert.True(t, tx.Processed())
	assert.False(t, tx.AllPayLogisticsID.Valid)
}

func TestSweepTakesOverExpiredClaims(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()

	// A: 已在Shopify建单但未提交；B: 从未建单；C: 租约未过期
	for _, no := range []string{"A1", "B1", "C1"} {
		require.NoError(t, f.txs.Upsert(ctx, no, 1, 500, homePayload()))
		claimed, err := f.txs.Claim(ctx, no, "dead-"+no, 2*time.Minute, nil)
		require.NoError(t, err)
		require.True(t, claimed)
	}
	txA, err := f.txs.GetByTradeNo(ctx, "A1")
	require.NoError(t, err)
	adopted, err := f.platform.CreateOrder(ctx, BuildPaidOrder(txA))
	require.NoError(t, err)
	f.txs.age("A1", 5*time.Minute)
	f.txs.age("B1", 5*time.Minute)

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Settled)
	assert.ElementsMatch(t, []string{"A1", "B1"}, report.TradeNos)
	assert.Equal(t, 2, f.platform.created())

	txA, err = f.txs.GetByTradeNo(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, adopted.ID, txA.ShopifyOrderID.Int64)

	txC, err := f.txs.GetByTradeNo(ctx, "C1")
	require.NoError(t, err)
	assert.False(t, txC.Processed())
}

func TestSweepFailureKeepsClaim(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "S1", 1, 500, homePayload()))
	_, err := f.txs.Claim(ctx, "S1", "dead", 2*time.Minute, nil)
	require.NoError(t, err)
	f.txs.age("S1", 5*time.Minute)

	f.platform.createFn = func(shopify.OrderInput) error { return errors.New("boom") }
	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	tx, err := f.txs.GetByTradeNo(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, tx.ClaimToken.Valid)
	assert.False(t, tx.Processed())
}

func TestCallbackOutcomeLabels(t *testing.T) {
	assert.Equal(t, "processed", callbackOutcome(&CallbackResult{}, nil))
	assert.Equal(t, "duplicate", callbackOutcome(&CallbackResult{Duplicate: true}, nil))
	assert.Equal(t, "bad_signature", callbackOutcome(nil, ErrSignatureMismatch))
	assert.Equal(t, "downstream_error", callbackOutcome(nil, downstream("shopify", errors.New("x"))))
	assert.Equal(t, "error", callbackOutcome(nil, errors.New("db down")))
}

func TestPaymentCallbackOnPaidFiresOnce(t *testing.T) {
	f := newReconcileFixture()
	ctx := context.Background()
	require.NoError(t, f.txs.Upsert(ctx, "T1", 42, 500, homePayload()))

	var paid []string
	f.svc.OnPaid(func(_ context.Context, tx *model.Transaction, ref model.OrderRef) {
		paid = append(paid, tx.MerchantTradeNo+" "+ref.Name)
	})

	res, err := f.svc.HandlePaymentCallback(ctx, f.callback("T1", "500", "1"))
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCallback(ctx, f.callback("T1", "500", "1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"T1 " + res.Order.Name}, paid)
}
