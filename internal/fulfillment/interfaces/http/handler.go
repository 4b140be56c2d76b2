// Package http 提供履约 Saga 的 HTTP 查询接口
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/ecommerce/internal/fulfillment/domain"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// SagaHandler 履约 Saga 查询处理器
type SagaHandler struct {
	store domain.Store
}

// NewSagaHandler 创建处理器
func NewSagaHandler(store domain.Store) *SagaHandler {
	return &SagaHandler{store: store}
}

// RegisterRoutes 注册路由
func (h *SagaHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/v1/sagas/:order_id", h.GetSaga)
}

// GetSaga 按订单 ID 查询 Saga 状态
func (h *SagaHandler) GetSaga(c *gin.Context) {
	record, err := h.store.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if record == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "saga not found", "saga_not_found")
		return
	}
	response.Success(c, gin.H{
		"order_id":   record.OrderID,
		"status":     record.Status,
		"next_step":  record.NextStep,
		"payment_id": record.PaymentID,
		"lines":      record.Lines,
		"reason":     record.Reason,
		"created_at": record.CreatedAt,
		"updated_at": record.UpdatedAt,
	})
}
