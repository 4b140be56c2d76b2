package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/ecommerce/internal/order/application"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// OrderHandler HTTP 处理器
// 负责处理与订单相关的 HTTP 请求
type OrderHandler struct {
	cmd   *application.OrderCommandService
	query *application.OrderQueryService
}

// NewOrderHandler 创建 HTTP 处理器实例
func NewOrderHandler(cmd *application.OrderCommandService, query *application.OrderQueryService) *OrderHandler {
	return &OrderHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/orders")
	{
		api.POST("", h.CreateOrder)
		api.GET("/:id", h.GetOrder)
		api.POST("/:id/items", h.AddItem)
		api.DELETE("/:id/items/:sku", h.RemoveItem)
		api.PUT("/:id/items/:sku/quantity", h.ChangeItemQuantity)
		api.POST("/:id/coupon", h.ApplyCoupon)
		api.PUT("/:id/shipping-address", h.SetShippingAddress)
		api.PUT("/:id/billing-address", h.SetBillingAddress)
		api.PATCH("/:id/contact", h.UpdateContact)
		api.POST("/:id/confirm", h.Confirm)
		api.POST("/:id/payment-pending", h.RecordPaymentPending)
		api.POST("/:id/payment-success", h.RecordPaymentSuccess)
		api.POST("/:id/payment-failure", h.RecordPaymentFailure)
		api.POST("/:id/process", h.MarkProcessing)
		api.POST("/:id/ship", h.Ship)
		api.POST("/:id/deliver", h.Deliver)
		api.POST("/:id/complete", h.Complete)
		api.POST("/:id/return-request", h.RequestReturn)
		api.POST("/:id/return-approve", h.ApproveReturn)
		api.POST("/:id/returned", h.MarkReturned)
		api.DELETE("/:id", h.Cancel)
		api.POST("/:id/refunded", h.MarkRefunded)
	}
}

// CreateOrder 创建订单
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var cmd application.CreateOrderCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	orderID, err := h.cmd.CreateOrder(c.Request.Context(), cmd)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to create order", "error", err)
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"order_id": orderID})
}

// GetOrder 查询订单
func (h *OrderHandler) GetOrder(c *gin.Context) {
	view, err := h.query.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// AddItem 加购
func (h *OrderHandler) AddItem(c *gin.Context) {
	var cmd application.AddItemCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.AddItem(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveItem 移除商品
func (h *OrderHandler) RemoveItem(c *gin.Context) {
	cmd := application.RemoveItemCommand{
		OrderID: c.Param("id"),
		SKU:     c.Param("sku"),
	}
	if err := h.cmd.RemoveItem(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ChangeItemQuantity 修改数量
func (h *OrderHandler) ChangeItemQuantity(c *gin.Context) {
	var cmd application.ChangeItemQuantityCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")
	cmd.SKU = c.Param("sku")

	if err := h.cmd.ChangeItemQuantity(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ApplyCoupon 使用优惠券
func (h *OrderHandler) ApplyCoupon(c *gin.Context) {
	var cmd application.ApplyCouponCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.ApplyCoupon(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SetShippingAddress 设定收货地址
func (h *OrderHandler) SetShippingAddress(c *gin.Context) {
	var cmd application.SetAddressCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.SetShippingAddress(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SetBillingAddress 设定账单地址
func (h *OrderHandler) SetBillingAddress(c *gin.Context) {
	var cmd application.SetAddressCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.SetBillingAddress(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// UpdateContact 部分更新联系方式
func (h *OrderHandler) UpdateContact(c *gin.Context) {
	var cmd application.UpdateContactCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.UpdateContact(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Confirm 确认订单
func (h *OrderHandler) Confirm(c *gin.Context) {
	cmd := application.ConfirmOrderCommand{OrderID: c.Param("id")}
	if err := h.cmd.ConfirmOrder(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RecordPaymentPending 记录支付发起
func (h *OrderHandler) RecordPaymentPending(c *gin.Context) {
	var cmd application.RecordPaymentPendingCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.RecordPaymentPending(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RecordPaymentSuccess 记录支付成功
func (h *OrderHandler) RecordPaymentSuccess(c *gin.Context) {
	var cmd application.RecordPaymentSuccessCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.RecordPaymentSuccess(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RecordPaymentFailure 记录支付失败
func (h *OrderHandler) RecordPaymentFailure(c *gin.Context) {
	var cmd application.RecordPaymentFailureCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.RecordPaymentFailure(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkProcessing 进入拣货处理
func (h *OrderHandler) MarkProcessing(c *gin.Context) {
	cmd := application.MarkProcessingCommand{OrderID: c.Param("id")}
	if err := h.cmd.MarkProcessing(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Ship 发货
func (h *OrderHandler) Ship(c *gin.Context) {
	var cmd application.ShipOrderCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	shipmentID, err := h.cmd.ShipOrder(c.Request.Context(), cmd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"shipment_id": shipmentID})
}

// Deliver 签收
func (h *OrderHandler) Deliver(c *gin.Context) {
	cmd := application.DeliverOrderCommand{OrderID: c.Param("id")}
	if err := h.cmd.DeliverOrder(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Complete 完成订单
func (h *OrderHandler) Complete(c *gin.Context) {
	cmd := application.CompleteOrderCommand{OrderID: c.Param("id")}
	if err := h.cmd.CompleteOrder(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RequestReturn 申请退货
func (h *OrderHandler) RequestReturn(c *gin.Context) {
	var cmd application.RequestReturnCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.OrderID = c.Param("id")

	if err := h.cmd.RequestReturn(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ApproveReturn 退货审批
func (h *OrderHandler) ApproveReturn(c *gin.Context) {
	cmd := application.ApproveReturnCommand{OrderID: c.Param("id")}
	if err := h.cmd.ApproveReturn(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkReturned 退货入库
func (h *OrderHandler) MarkReturned(c *gin.Context) {
	cmd := application.MarkReturnedCommand{OrderID: c.Param("id")}
	if err := h.cmd.MarkReturned(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Cancel 取消订单
func (h *OrderHandler) Cancel(c *gin.Context) {
	cmd := application.CancelOrderCommand{
		OrderID: c.Param("id"),
		Reason:  c.Query("reason"),
	}
	if err := h.cmd.CancelOrder(c.Request.Context(), cmd); err != nil {
		logger.Warn(c.Request.Context(), "Cancel rejected", "order_id", cmd.OrderID, "error", err)
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkRefunded 退款完成
func (h *OrderHandler) MarkRefunded(c *gin.Context) {
	cmd := application.MarkRefundedCommand{OrderID: c.Param("id")}
	if err := h.cmd.MarkRefunded(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
