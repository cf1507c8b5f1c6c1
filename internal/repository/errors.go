package repository

import "errors"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ErrClaimLost 认领已失效，处理权被其他请求接管或订单已完成
var ErrClaimLost = errors.New("transaction claim lost")

// ErrTradeNoTaken 交易编号已属于其他用户
var ErrTradeNoTaken = errors.New("trade number owned by another user")
