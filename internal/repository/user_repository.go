package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"plgshop/internal/model"
)

// UserRepository 用户仓库接口
type UserRepository interface {
	Create(ctx context.Context, email string, passwordHash sql.NullString, verified bool) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	MarkVerified(ctx context.Context, id int64, passwordHash sql.NullString) error
}

type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository 创建用户仓库实例
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, email string, passwordHash sql.NullString, verified bool) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, email_verified) VALUES (?, ?, ?)`,
		email, passwordHash, verified)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.get(ctx, `SELECT * FROM users WHERE id = ? LIMIT 1`, id)
}

// GetByEmail 根据邮箱获取用户
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.get(ctx, `SELECT * FROM users WHERE email = ? LIMIT 1`, email)
}

func (r *userRepository) get(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	if err := r.db.GetContext(ctx, user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// MarkVerified 标记邮箱已验证，passwordHash无效时保留原密码
func (r *userRepository) MarkVerified(ctx context.Context, id int64, passwordHash sql.NullString) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = COALESCE(?, password_hash), email_verified = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id)
	return err
}
