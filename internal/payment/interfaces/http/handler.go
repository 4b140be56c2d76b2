package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/ecommerce/internal/payment/application"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// PaymentHandler HTTP 处理器
// 负责处理与支付相关的 HTTP 请求
type PaymentHandler struct {
	cmd   *application.PaymentCommandService
	query *application.PaymentQueryService
}

// NewPaymentHandler 创建 HTTP 处理器实例
func NewPaymentHandler(cmd *application.PaymentCommandService, query *application.PaymentQueryService) *PaymentHandler {
	return &PaymentHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/payments")
	{
		api.POST("", h.InitiatePayment)
		api.GET("/:id", h.GetPayment)
		api.POST("/:id/process", h.StartProcessing)
		api.POST("/:id/success", h.RecordSuccess)
		api.POST("/:id/failure", h.RecordFailure)
		api.POST("/:id/retry", h.RetryPayment)
		api.POST("/:id/refunds", h.RequestRefund)
		api.POST("/:id/refunds/:refund_id/complete", h.CompleteRefund)
	}
}

// InitiatePayment 发起支付
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var cmd application.InitiatePaymentCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	paymentID, err := h.cmd.InitiatePayment(c.Request.Context(), cmd)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to initiate payment", "error", err)
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"payment_id": paymentID})
}

// GetPayment 查询支付
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	view, err := h.query.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// StartProcessing 开始处理
func (h *PaymentHandler) StartProcessing(c *gin.Context) {
	cmd := application.StartProcessingCommand{PaymentID: c.Param("id")}
	if err := h.cmd.StartProcessing(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RecordSuccess 记录扣款成功
func (h *PaymentHandler) RecordSuccess(c *gin.Context) {
	var body struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd := application.RecordSuccessCommand{PaymentID: c.Param("id"), TransactionID: body.TransactionID}
	if err := h.cmd.RecordSuccess(c.Request.Context(), cmd); err != nil {
		logger.Error(c.Request.Context(), "Failed to record payment success", "error", err)
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RecordFailure 记录扣款失败
func (h *PaymentHandler) RecordFailure(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd := application.RecordFailureCommand{PaymentID: c.Param("id"), Reason: body.Reason}
	if err := h.cmd.RecordFailure(c.Request.Context(), cmd); err != nil {
		logger.Error(c.Request.Context(), "Failed to record payment failure", "error", err)
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RetryPayment 重试扣款
func (h *PaymentHandler) RetryPayment(c *gin.Context) {
	cmd := application.RetryPaymentCommand{PaymentID: c.Param("id")}
	if err := h.cmd.RetryPayment(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RequestRefund 申请退款
func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	var cmd application.RequestRefundCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.PaymentID = c.Param("id")

	refundID, err := h.cmd.RequestRefund(c.Request.Context(), cmd)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to request refund", "error", err)
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"refund_id": refundID})
}

// CompleteRefund 完成退款
func (h *PaymentHandler) CompleteRefund(c *gin.Context) {
	cmd := application.CompleteRefundCommand{
		PaymentID: c.Param("id"),
		RefundID:  c.Param("refund_id"),
	}
	if err := h.cmd.CompleteRefund(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
