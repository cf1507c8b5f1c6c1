package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/service"
	"plgshop/pkg/logger"
)

// Fail 将服务层错误映射为HTTP状态码与提示
func Fail(c *gin.Context, log *logger.Logger, err error) {
	var (
		validation *service.ValidationError
		status     *service.StatusError
		down       *service.DownstreamError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": validation.Message})
	case errors.As(err, &status):
		code := statusCode(status.Kind)
		c.JSON(code, gin.H{"code": code, "msg": status.Message})
	case errors.As(err, &down):
		log.Error("外部服务调用失败", "service", down.Service, "error", down.Err, "path", c.FullPath())
		c.JSON(http.StatusBadGateway, gin.H{"code": 502, "msg": constants.ErrUpstream, "detail": down.Err.Error()})
	default:
		log.Error("请求处理失败", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": constants.ErrInternalServer})
	}
}

func statusCode(kind error) int {
	switch {
	case errors.Is(kind, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, service.ErrTooFrequent):
		return http.StatusTooManyRequests
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": msg})
}
