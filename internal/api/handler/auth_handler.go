package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/middleware"
	"plgshop/internal/service"
	"plgshop/internal/types"
	"plgshop/pkg/googleauth"
	"plgshop/pkg/logger"
)

// Authenticator 邮箱与Google登录
type Authenticator interface {
	SendEmailCode(ctx context.Context, email string) error
	Register(ctx context.Context, email, password, code string) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	GoogleAuthURL(ctx context.Context) (string, error)
	GoogleLogin(ctx context.Context, state, code string) (*service.Session, error)
}

// CookieConfig 登录Cookie设置
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// AuthHandler 认证处理器
type AuthHandler struct {
	users        Authenticator
	cookie       CookieConfig
	clientOrigin string
	logger       *logger.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(users Authenticator, cookie CookieConfig, clientOrigin string, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, cookie: cookie, clientOrigin: clientOrigin, logger: log}
}

func (h *AuthHandler) setSession(c *gin.Context, session *service.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, session.Token, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
}

// SendEmailCode 发送邮箱验证码
func (h *AuthHandler) SendEmailCode(c *gin.Context) {
	var req types.SendEmailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidEmail)
		return
	}
	if err := h.users.SendEmailCode(c.Request.Context(), req.Email); err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": constants.SuccessCodeSent})
}

// RegisterEmail 邮箱注册并登录
func (h *AuthHandler) RegisterEmail(c *gin.Context) {
	var req types.RegisterEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidRequest)
		return
	}
	session, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.VerificationCode)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	h.setSession(c, session)
	c.JSON(http.StatusCreated, gin.H{
		"code": 201,
		"msg":  constants.SuccessRegister,
		"data": gin.H{"userId": session.UserID, "email": session.Email},
	})
}

// LoginEmail 邮箱密码登录
func (h *AuthHandler) LoginEmail(c *gin.Context) {
	var req types.LoginEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrLoginFormat)
		return
	}
	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	h.setSession(c, session)
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": gin.H{"userId": session.UserID, "email": session.Email}})
}

// Logout 清除登录Cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": constants.SuccessLogout})
}

// Me 当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{
		"userId": middleware.UserID(c),
		"email":  c.GetString(middleware.ContextEmail),
	}})
}

// GoogleRedirect 跳转到Google授权页
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	target, err := h.users.GoogleAuthURL(c.Request.Context())
	if errors.Is(err, googleauth.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "Google OAuth 未設定"})
		return
	}
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// GoogleCallback Google授权回调，失败时带错误码跳回登录页
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, h.clientOrigin+"/login?error=google")
		return
	}

	session, err := h.users.GoogleLogin(c.Request.Context(), c.Query("state"), code)
	if errors.Is(err, googleauth.ErrEmailNotVerified) {
		c.Redirect(http.StatusFound, h.clientOrigin+"/login?error=no-email")
		return
	}
	if err != nil {
		h.logger.Warn("Google登录失败", "error", err)
		c.Redirect(http.StatusFound, h.clientOrigin+"/login?error=google")
		return
	}
	h.setSession(c, session)
	c.Redirect(http.StatusFound, h.clientOrigin)
}
