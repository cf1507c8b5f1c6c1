package model

import (
	"database/sql"
	"time"
)

// User 用户模型
type User struct {
	ID            int64          `db:"id" json:"id"`
	Email         string         `db:"email" json:"email"`
	PasswordHash  sql.NullString `db:"password_hash" json:"-"`
	EmailVerified bool           `db:"email_verified" json:"emailVerified"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// EmailVerification 邮箱验证码
type EmailVerification struct {
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	ExpiresAt time.Time `db:"expires_at"`
	IsUsed    bool      `db:"is_used"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
