package service

import (
	"errors"
	"fmt"
)

// ErrValidation 请求参数校验失败
var ErrValidation = errors.New("validation failed")

// 付款回调相关错误
var (
	ErrSignatureMismatch   = errors.New("CheckMacValue mismatch")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPaymentFailed       = errors.New("payment not successful")
	ErrAmountMismatch      = errors.New("amount mismatch")
	ErrClaimHeld           = errors.New("transaction is being processed")
)

// 认证相关错误
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTooFrequent  = errors.New("too frequent")
	ErrNotFound     = errors.New("not found")
)

// ValidationError 带用户提示的参数错误
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError 创建参数错误
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// StatusError 带用户提示的业务错误，Kind为上面的哨兵错误之一
type StatusError struct {
	Kind    error
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

func statusError(kind error, msg string) error {
	return &StatusError{Kind: kind, Message: msg}
}

// DownstreamError 外部服务（Shopify或绿界物流）调用失败
type DownstreamError struct {
	Service string
	Err     error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

func downstream(service string, err error) error {
	return &DownstreamError{Service: service, Err: err}
}
