package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"plgshop/internal/model"
)

// TransactionRepository 绿界待付款交易仓库
type TransactionRepository interface {
	Upsert(ctx context.Context, tradeNo string, userID, totalAmount int64, payload model.OrderPayload) error
	GetByTradeNo(ctx context.Context, tradeNo string) (*model.Transaction, error)
	Claim(ctx context.Context, tradeNo, token string, lease time.Duration, payment *model.PaymentInfo) (bool, error)
	ReleaseClaim(ctx context.Context, tradeNo, token string) error
	MarkProcessed(ctx context.Context, tradeNo, token string, ref model.OrderRef) error
	SaveLogistics(ctx context.Context, tradeNo string, shipment model.LogisticsShipment) error
	UpdateLogisticsStatus(ctx context.Context, logisticsID, status, message string) (bool, error)
	ListStaleClaims(ctx context.Context, lease time.Duration, limit int) ([]*model.Transaction, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
	List(ctx context.Context, offset, limit int) ([]*model.Transaction, error)
}

type transactionRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewTransactionRepository 创建交易仓库
func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db, now: time.Now}
}

// Upsert 写入待付款交易，同一用户重复结账时重置处理状态，交易编号属于他人时返回ErrTradeNoTaken
func (r *transactionRepository) Upsert(ctx context.Context, tradeNo string, userID, totalAmount int64, payload model.OrderPayload) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var owner int64
	err = tx.GetContext(ctx, &owner, `SELECT user_id FROM ecpay_transactions WHERE merchant_trade_no = ? FOR UPDATE`, tradeNo)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return err
	case owner != userID:
		err = ErrTradeNoTaken
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO ecpay_transactions (merchant_trade_no, user_id, total_amount, order_payload)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   user_id = VALUES(user_id),
		   total_amount = VALUES(total_amount),
		   order_payload = VALUES(order_payload),
		   processed_at = NULL,
		   claim_token = NULL,
		   claimed_at = NULL,
		   claim_attempts = 0,
		   gateway_trade_no = NULL,
		   payment_date = NULL,
		   payment_type = NULL,
		   shopify_order_id = NULL,
		   shopify_order_name = NULL,
		   shopify_order_number = NULL,
		   allpay_logistics_id = NULL,
		   logistics_subtype = NULL,
		   cvs_payment_no = NULL,
		   cvs_validation_no = NULL,
		   logistics_status = NULL,
		   logistics_status_msg = NULL,
		   updated_at = CURRENT_TIMESTAMP`,
		tradeNo, userID, totalAmount, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByTradeNo 根据商店交易编号查询
func (r *transactionRepository) GetByTradeNo(ctx context.Context, tradeNo string) (*model.Transaction, error) {
	tx := &model.Transaction{}
	err := r.db.GetContext(ctx, tx, `SELECT * FROM ecpay_transactions WHERE merchant_trade_no = ? LIMIT 1`, tradeNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Claim 原子认领未处理的交易，未被认领或认领已超过lease时才会成功
func (r *transactionRepository) Claim(ctx context.Context, tradeNo, token string, lease time.Duration, payment *model.PaymentInfo) (bool, error) {
	now := r.now()
	var gatewayTradeNo, paymentDate, paymentType sql.NullString
	if payment != nil {
		gatewayTradeNo = nullString(payment.GatewayTradeNo)
		paymentDate = nullString(payment.PaymentDate)
		paymentType = nullString(payment.PaymentType)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE ecpay_transactions
		    SET claim_token = ?,
		        claimed_at = ?,
		        claim_attempts = claim_attempts + 1,
		        gateway_trade_no = COALESCE(?, gateway_trade_no),
		        payment_date = COALESCE(?, payment_date),
		        payment_type = COALESCE(?, payment_type),
		        updated_at = CURRENT_TIMESTAMP
		  WHERE merchant_trade_no = ?
		    AND processed_at IS NULL
		    AND (claim_token IS NULL OR claimed_at < ?)`,
		token, now, gatewayTradeNo, paymentDate, paymentType, tradeNo, now.Add(-lease))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseClaim 释放仍由token持有且未完成的认领
func (r *transactionRepository) ReleaseClaim(ctx context.Context, tradeNo, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ecpay_transactions
		    SET claim_token = NULL, claimed_at = NULL, updated_at = CURRENT_TIMESTAMP
		  WHERE merchant_trade_no = ? AND claim_token = ? AND processed_at IS NULL`,
		tradeNo, token)
	return err
}

// MarkProcessed 以认领token为条件写入处理结果，processed_at只会写入一次
func (r *transactionRepository) MarkProcessed(ctx context.Context, tradeNo, token string, ref model.OrderRef) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ecpay_transactions
		    SET processed_at = ?,
		        shopify_order_id = ?,
		        shopify_order_name = ?,
		        shopify_order_number = ?,
		        claim_token = NULL,
		        claimed_at = NULL,
		        updated_at = CURRENT_TIMESTAMP
		  WHERE merchant_trade_no = ? AND processed_at IS NULL AND claim_token = ?`,
		r.now(), ref.ID, nullString(ref.Name), nullInt64(ref.Number), tradeNo, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrClaimLost
	}
	return nil
}

// SaveLogistics 保存物流单，寄件代码与验证码为空时保留原值
func (r *transactionRepository) SaveLogistics(ctx context.Context, tradeNo string, shipment model.LogisticsShipment) error {
	if tradeNo == "" || shipment.AllPayLogisticsID == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE ecpay_transactions
		    SET allpay_logistics_id = ?,
		        logistics_subtype = ?,
		        cvs_payment_no = COALESCE(?, cvs_payment_no),
		        cvs_validation_no = COALESCE(?, cvs_validation_no),
		        updated_at = CURRENT_TIMESTAMP
		  WHERE merchant_trade_no = ?`,
		shipment.AllPayLogisticsID, shipment.LogisticsSubType,
		nullString(shipment.CVSPaymentNo), nullString(shipment.CVSValidationNo), tradeNo)
	return err
}

// UpdateLogisticsStatus 更新物流状态，返回是否找到对应物流单
func (r *transactionRepository) UpdateLogisticsStatus(ctx context.Context, logisticsID, status, message string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ecpay_transactions
		    SET logistics_status = ?, logistics_status_msg = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE allpay_logistics_id = ?`,
		status, message, logisticsID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListStaleClaims 列出认领已过期但仍未完成的交易
func (r *transactionRepository) ListStaleClaims(ctx context.Context, lease time.Duration, limit int) ([]*model.Transaction, error) {
	items := []*model.Transaction{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM ecpay_transactions
		  WHERE processed_at IS NULL AND claim_token IS NOT NULL AND claimed_at < ?
		  ORDER BY claimed_at
		  LIMIT ?`,
		r.now().Add(-lease), limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListByUser 用户的交易记录
func (r *transactionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	items := []*model.Transaction{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM ecpay_transactions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// List 分页列出交易
func (r *transactionRepository) List(ctx context.Context, offset, limit int) ([]*model.Transaction, error) {
	items := []*model.Transaction{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM ecpay_transactions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
