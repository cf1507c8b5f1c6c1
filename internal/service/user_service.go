package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"k8s.io/apimachinery/pkg/util/rand"

	"plgshop/internal/auth"
	"plgshop/internal/constants"
	"plgshop/internal/repository"
	"plgshop/pkg/googleauth"
	"plgshop/pkg/logger"
)

const (
	codeTTL        = 5 * time.Minute
	sendCodeWindow = 60 * time.Second
	oauthStateTTL  = 10 * time.Minute
	bcryptCost     = 10
	minPasswordLen = 6
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// Mailer 认证邮件
type Mailer interface {
	SendVerificationCode(to, code string, ttl time.Duration) error
	SendWelcomeEmail(to string) error
	SendOrderPaid(to, orderName string, total int64) error
}

// TaskQueue 异步任务队列
type TaskQueue interface {
	AddTask(name string, retryMax int, timeout time.Duration, handler func(ctx context.Context) error) (string, error)
}

// GoogleIdentity Google登录
type GoogleIdentity interface {
	Configured() bool
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*googleauth.UserInfo, error)
}

// Session 登录成功后的凭证
type Session struct {
	UserID int64
	Email  string
	Token  string
}

// UserService 用户注册与登录
type UserService struct {
	users         repository.UserRepository
	verifications repository.EmailVerificationRepository
	states        repository.AuthStateStore
	tokens        *auth.TokenManager
	mailer        Mailer
	queue         TaskQueue
	google        GoogleIdentity
	logger        *logger.Logger
	now           func() time.Time
	newCode       func() string
}

// NewUserService 创建用户服务
func NewUserService(
	users repository.UserRepository,
	verifications repository.EmailVerificationRepository,
	states repository.AuthStateStore,
	tokens *auth.TokenManager,
	mailer Mailer,
	queue TaskQueue,
	google GoogleIdentity,
	log *logger.Logger,
) *UserService {
	return &UserService{
		users:         users,
		verifications: verifications,
		states:        states,
		tokens:        tokens,
		mailer:        mailer,
		queue:         queue,
		google:        google,
		logger:        log,
		now:           time.Now,
		newCode: func() string {
			return strconv.Itoa(rand.IntnRange(100000, 1000000))
		},
	}
}

// ValidEmail 邮箱格式校验
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// SendEmailCode 生成验证码并异步发送
func (s *UserService) SendEmailCode(ctx context.Context, email string) error {
	if !ValidEmail(email) {
		return NewValidationError(constants.ErrInvalidEmail)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user != nil && user.EmailVerified {
		return statusError(ErrConflict, constants.ErrEmailRegistered)
	}

	ok, err := s.states.AcquireSendSlot(ctx, email, sendCodeWindow)
	if err != nil {
		return fmt.Errorf("acquire send slot: %w", err)
	}
	if !ok {
		return statusError(ErrTooFrequent, constants.ErrOperationTooFrequent)
	}

	code := s.newCode()
	if err := s.verifications.Save(ctx, email, code, s.now().Add(codeTTL)); err != nil {
		return fmt.Errorf("save verification code: %w", err)
	}

	_, err = s.queue.AddTask("verification-email", 2, 30*time.Second, func(context.Context) error {
		return s.mailer.SendVerificationCode(email, code, codeTTL)
	})
	if err != nil {
		return fmt.Errorf("enqueue verification email: %w", err)
	}
	s.logger.Info("验证码已生成", "email", email)
	return nil
}

// Register 使用验证码完成注册
func (s *UserService) Register(ctx context.Context, email, password, code string) (*Session, error) {
	if !ValidEmail(email) {
		return nil, NewValidationError(constants.ErrInvalidEmail)
	}
	if len(password) < minPasswordLen {
		return nil, NewValidationError(constants.ErrPasswordTooShort)
	}
	if !codePattern.MatchString(code) {
		return nil, NewValidationError(constants.ErrCodeFormat)
	}

	record, err := s.verifications.Get(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewValidationError(constants.ErrCodeMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("load verification: %w", err)
	}
	switch {
	case record.IsUsed:
		return nil, NewValidationError(constants.ErrCodeUsed)
	case record.ExpiresAt.Before(s.now()):
		return nil, NewValidationError(constants.ErrCodeExpired)
	case record.Code != code:
		return nil, NewValidationError(constants.ErrCodeIncorrect)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	passwordHash := sql.NullString{String: string(hash), Valid: true}

	var userID int64
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.EmailVerified:
		return nil, statusError(ErrConflict, constants.ErrEmailRegistered)
	case err == nil:
		if err := s.users.MarkVerified(ctx, existing.ID, passwordHash); err != nil {
			return nil, fmt.Errorf("verify user: %w", err)
		}
		userID = existing.ID
	case errors.Is(err, repository.ErrNotFound):
		userID, err = s.users.Create(ctx, email, passwordHash, true)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	default:
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.verifications.MarkUsed(ctx, email); err != nil {
		return nil, fmt.Errorf("mark code used: %w", err)
	}

	if _, err := s.queue.AddTask("welcome-email", 1, 30*time.Second, func(context.Context) error {
		return s.mailer.SendWelcomeEmail(email)
	}); err != nil {
		s.logger.Warn("欢迎邮件未排队", "email", email, "error", err)
	}

	return s.issue(userID, email)
}

// Login 邮箱密码登录
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	if !ValidEmail(email) || password == "" {
		return nil, NewValidationError(constants.ErrLoginFormat)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !user.EmailVerified) {
		return nil, statusError(ErrUnauthorized, constants.ErrAccountNotVerified)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.PasswordHash.Valid ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)) != nil {
		return nil, statusError(ErrUnauthorized, constants.ErrPasswordIncorrect)
	}

	return s.issue(user.ID, user.Email)
}

// GoogleAuthURL 生成授权地址并保存state
func (s *UserService) GoogleAuthURL(ctx context.Context) (string, error) {
	if s.google == nil || !s.google.Configured() {
		return "", googleauth.ErrNotConfigured
	}
	state := uuid.NewString()
	if err := s.states.SaveOAuthState(ctx, state, oauthStateTTL); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return s.google.AuthCodeURL(state)
}

// GoogleLogin 校验state并用授权码换取用户，不存在时建立已验证用户
func (s *UserService) GoogleLogin(ctx context.Context, state, code string) (*Session, error) {
	if code == "" {
		return nil, NewValidationError("missing code")
	}
	ok, err := s.states.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}
	if !ok {
		return nil, statusError(ErrUnauthorized, "invalid oauth state")
	}

	info, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(info.Email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.EmailVerified {
			if err := s.users.MarkVerified(ctx, user.ID, sql.NullString{}); err != nil {
				return nil, fmt.Errorf("verify user: %w", err)
			}
		}
		return s.issue(user.ID, email)
	case errors.Is(err, repository.ErrNotFound):
		id, err := s.users.Create(ctx, email, sql.NullString{}, true)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.logger.Info("Google登录建立新用户", "user_id", id)
		return s.issue(id, email)
	default:
		return nil, fmt.Errorf("lookup user: %w", err)
	}
}

func (s *UserService) issue(userID int64, email string) (*Session, error) {
	token, err := s.tokens.Issue(userID, email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{UserID: userID, Email: email, Token: token}, nil
}

// NotifyOrderPaid 异步寄出付款完成通知
func (s *UserService) NotifyOrderPaid(ctx context.Context, userID int64, orderName string, total int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", userID, err)
	}
	_, err = s.queue.AddTask("order-paid-email", 2, 30*time.Second, func(context.Context) error {
		return s.mailer.SendOrderPaid(user.Email, orderName, total)
	})
	return err
}
