package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"plgshop/internal/model"
)

const (
	sendCodeKeyPrefix    = "plg:email_code_throttle:"
	oauthStateKeyPrefix  = "plg:oauth_state:"
	storeSelectionPrefix = "plg:store_selection:"
)

// StoreSelectionTTL 门市选择结果保存时间
const StoreSelectionTTL = 30 * time.Minute

// StoreSelectionRepository 门市选择结果仓库
type StoreSelectionRepository interface {
	Save(ctx context.Context, sel *model.StoreSelection) error
	Get(ctx context.Context, token string) (*model.StoreSelection, error)
}

type storeSelectionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStoreSelectionRepository 创建门市选择仓库
func NewStoreSelectionRepository(rdb *redis.Client) StoreSelectionRepository {
	return &storeSelectionRepository{rdb: rdb, ttl: StoreSelectionTTL}
}

// Save 保存门市选择结果
func (r *storeSelectionRepository) Save(ctx context.Context, sel *model.StoreSelection) error {
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, storeSelectionPrefix+sel.Token, b, r.ttl).Err()
}

// Get 读取门市选择结果，过期或不存在返回ErrNotFound
func (r *storeSelectionRepository) Get(ctx context.Context, token string) (*model.StoreSelection, error) {
	raw, err := r.rdb.Get(ctx, storeSelectionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sel := &model.StoreSelection{}
	if err := json.Unmarshal(raw, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// AuthStateStore 验证码节流与OAuth state
type AuthStateStore interface {
	AcquireSendSlot(ctx context.Context, email string, window time.Duration) (bool, error)
	SaveOAuthState(ctx context.Context, state string, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (bool, error)
}

type authStateStore struct {
	rdb *redis.Client
}

// NewAuthStateStore 创建基于Redis的认证状态存储
func NewAuthStateStore(rdb *redis.Client) AuthStateStore {
	return &authStateStore{rdb: rdb}
}

// AcquireSendSlot 同一邮箱在window内只能发送一次
func (s *authStateStore) AcquireSendSlot(ctx context.Context, email string, window time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, sendCodeKeyPrefix+email, 1, window).Result()
}

// SaveOAuthState 保存OAuth state
func (s *authStateStore) SaveOAuthState(ctx context.Context, state string, ttl time.Duration) error {
	return s.rdb.Set(ctx, oauthStateKeyPrefix+state, 1, ttl).Err()
}

// ConsumeOAuthState 读取并删除state，只能使用一次
func (s *authStateStore) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	err := s.rdb.GetDel(ctx, oauthStateKeyPrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
