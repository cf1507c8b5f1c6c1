package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"plgshop/internal/constants"
	"plgshop/internal/model"
	"plgshop/pkg/logger"
)

// Catalog 本地商品目录
type Catalog interface {
	List(ctx context.Context) ([]model.ProductView, error)
	Get(ctx context.Context, id int64) (*model.ProductView, error)
}

// ProductHandler 商品处理器
type ProductHandler struct {
	catalog Catalog
	logger  *logger.Logger
}

// NewProductHandler 创建商品处理器
func NewProductHandler(catalog Catalog, log *logger.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, logger: log}
}

// List 商品列表
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": products})
}

// Get 商品详情
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, constants.ErrProductIDInvalid)
		return
	}
	product, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": product})
}
