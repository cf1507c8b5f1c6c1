package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"plgshop/internal/model"
)

// CartRepository 购物车仓库
type CartRepository interface {
	SetItem(ctx context.Context, userID, productID int64, quantity int) error
	ListItems(ctx context.Context, userID int64) ([]model.CartItem, error)
	CountItems(ctx context.Context, userID int64) (int, error)
	RemoveItem(ctx context.Context, userID, productID int64) error
}

// ErrCartEmpty 用户还没有购物车
var ErrCartEmpty = errors.New("cart not found")

type cartRepository struct {
	db *sqlx.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *sqlx.DB) CartRepository {
	return &cartRepository{db: db}
}

// SetItem 在事务中写入商品数量，商品不存在返回ErrNotFound
func (r *cartRepository) SetItem(ctx context.Context, userID, productID int64, quantity int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int64
	if err = tx.GetContext(ctx, &exists, `SELECT id FROM products WHERE id = ? AND active = 1 LIMIT 1`, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return err
	}

	cartID, err := cartIDForUpdate(ctx, tx, userID)
	if errors.Is(err, ErrCartEmpty) {
		var res sql.Result
		if res, err = tx.ExecContext(ctx, `INSERT INTO carts (user_id) VALUES (?)`, userID); err != nil {
			return fmt.Errorf("create cart: %w", err)
		}
		if cartID, err = res.LastInsertId(); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), updated_at = CURRENT_TIMESTAMP`,
		cartID, productID, quantity); err != nil {
		return err
	}
	return tx.Commit()
}

// ListItems 联表查询购物车明细
func (r *cartRepository) ListItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	items := []model.CartItem{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT ci.product_id, ci.quantity, p.name, p.price_cents, p.image_url, p.shopify_variant_id
		   FROM cart_items ci
		   JOIN carts c ON c.id = ci.cart_id
		   JOIN products p ON p.id = ci.product_id
		  WHERE c.user_id = ?
		  ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// CountItems 购物车商品种类数
func (r *cartRepository) CountItems(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM cart_items ci JOIN carts c ON c.id = ci.cart_id WHERE c.user_id = ?`, userID)
	return count, err
}

// RemoveItem 删除商品，没有购物车返回ErrCartEmpty，商品不在购物车返回ErrNotFound
func (r *cartRepository) RemoveItem(ctx context.Context, userID, productID int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cartID, err := cartIDForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	return tx.Commit()
}

func cartIDForUpdate(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	var cartID int64
	err := tx.GetContext(ctx, &cartID, `SELECT id FROM carts WHERE user_id = ? LIMIT 1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCartEmpty
	}
	return cartID, err
}
