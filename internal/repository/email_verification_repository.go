package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"plgshop/internal/model"
)

// EmailVerificationRepository 邮箱验证码仓库
type EmailVerificationRepository interface {
	Save(ctx context.Context, email, code string, expiresAt time.Time) error
	Get(ctx context.Context, email string) (*model.EmailVerification, error)
	MarkUsed(ctx context.Context, email string) error
}

type emailVerificationRepository struct {
	db *sqlx.DB
}

// NewEmailVerificationRepository 创建验证码仓库
func NewEmailVerificationRepository(db *sqlx.DB) EmailVerificationRepository {
	return &emailVerificationRepository{db: db}
}

// Save 写入验证码，已存在时覆盖并重置使用状态
func (r *emailVerificationRepository) Save(ctx context.Context, email, code string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_verifications (email, code, expires_at, is_used) VALUES (?, ?, ?, 0)
		 ON DUPLICATE KEY UPDATE code = VALUES(code), expires_at = VALUES(expires_at), is_used = 0`,
		email, code, expiresAt)
	return err
}

// Get 获取验证码
func (r *emailVerificationRepository) Get(ctx context.Context, email string) (*model.EmailVerification, error) {
	v := &model.EmailVerification{}
	err := r.db.GetContext(ctx, v, `SELECT * FROM email_verifications WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// MarkUsed 标记验证码已使用
func (r *emailVerificationRepository) MarkUsed(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE email_verifications SET is_used = 1 WHERE email = ?`, email)
	return err
}
