package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"plgshop/internal/api/handler"
	"plgshop/internal/middleware"
	"plgshop/internal/model"
	"plgshop/internal/service"
	"plgshop/pkg/logger"
)

// Transactions 交易查询
type Transactions interface {
	ListTransactions(ctx context.Context, page, size int) ([]model.TransactionView, error)
}

// Reconciler 手动触发对账
type Reconciler interface {
	Sweep(ctx context.Context) (*service.SweepReport, error)
}

// Shipper 手动建立物流单
type Shipper interface {
	ShipTransaction(ctx context.Context, tradeNo string) (*model.LogisticsShipment, error)
}

// Handler 管理员处理器
type Handler struct {
	transactions Transactions
	reconciler   Reconciler
	shipper      Shipper
	logger       *logger.Logger
}

// NewHandler 创建管理员处理器
func NewHandler(transactions Transactions, reconciler Reconciler, shipper Shipper, log *logger.Logger) *Handler {
	return &Handler{transactions: transactions, reconciler: reconciler, shipper: shipper, logger: log}
}

// ListTransactions 分页列出交易
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	rows, err := h.transactions.ListTransactions(c.Request.Context(), page, size)
	if err != nil {
		handler.Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"transactions": rows, "page": page}})
}

// Reconcile 立即执行一次对账
func (h *Handler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Sweep(c.Request.Context())
	if err != nil {
		handler.Fail(c, h.logger, err)
		return
	}
	h.logger.Info("管理员触发对账", "email", c.GetString(middleware.ContextEmail), "settled", report.Settled, "failed", report.Failed)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": report})
}

// CreateShipment 为交易建立物流单
func (h *Handler) CreateShipment(c *gin.Context) {
	shipment, err := h.shipper.ShipTransaction(c.Request.Context(), c.Param("tradeNo"))
	if err != nil {
		handler.Fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": shipment})
}
