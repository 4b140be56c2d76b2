package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/ecommerce/internal/inventory/application"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

// InventoryHandler HTTP 处理器
type InventoryHandler struct {
	cmd   *application.InventoryCommandService
	query *application.InventoryQueryService
}

// NewInventoryHandler 创建 HTTP 处理器实例
func NewInventoryHandler(cmd *application.InventoryCommandService, query *application.InventoryQueryService) *InventoryHandler {
	return &InventoryHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/inventory")
	{
		api.POST("/items", h.CreateItem)
		api.GET("/items/:id", h.GetItem)
		api.POST("/items/:id/receive", h.ReceiveStock)
		api.POST("/items/:id/reservations", h.ReserveStock)
		api.DELETE("/items/:id/reservations/:order_id", h.ReleaseReservation)
		api.POST("/items/:id/reservations/:order_id/confirm", h.ConfirmReservation)
		api.POST("/items/:id/reservations/:order_id/commit", h.CommitStock)
		api.POST("/items/:id/adjust", h.AdjustStock)
		api.POST("/items/:id/damage", h.MarkDamaged)
		api.POST("/items/:id/damage/write-off", h.WriteOffDamaged)
		api.POST("/items/:id/damage/return", h.ReturnToStock)
		api.POST("/items/:id/stock-check", h.RecordStockCheck)
	}
}

// CreateItem 库存建档
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var cmd application.CreateItemCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	itemID, err := h.cmd.CreateItem(c.Request.Context(), cmd)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to create inventory item", "error", err)
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"item_id": itemID})
}

// GetItem 查询库存项
func (h *InventoryHandler) GetItem(c *gin.Context) {
	view, err := h.query.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// ReceiveStock 入库
func (h *InventoryHandler) ReceiveStock(c *gin.Context) {
	var cmd application.ReceiveStockCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.ItemID = c.Param("id")

	if err := h.cmd.ReceiveStock(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ReserveStock 预占库存
func (h *InventoryHandler) ReserveStock(c *gin.Context) {
	var cmd application.ReserveStockCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.ItemID = c.Param("id")

	if err := h.cmd.ReserveStock(c.Request.Context(), cmd); err != nil {
		logger.Warn(c.Request.Context(), "Reservation rejected",
			"item_id", cmd.ItemID,
			"order_id", cmd.OrderID,
			"error", err,
		)
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ReleaseReservation 释放预占
func (h *InventoryHandler) ReleaseReservation(c *gin.Context) {
	cmd := application.ReleaseReservationCommand{
		ItemID:  c.Param("id"),
		OrderID: c.Param("order_id"),
		Reason:  c.Query("reason"),
	}
	if err := h.cmd.ReleaseReservation(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ConfirmReservation 确认预占
func (h *InventoryHandler) ConfirmReservation(c *gin.Context) {
	cmd := application.ConfirmReservationCommand{
		ItemID:  c.Param("id"),
		OrderID: c.Param("order_id"),
	}
	if err := h.cmd.ConfirmReservation(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// CommitStock 落实出库
func (h *InventoryHandler) CommitStock(c *gin.Context) {
	cmd := application.CommitStockCommand{
		ItemID:  c.Param("id"),
		OrderID: c.Param("order_id"),
	}
	if err := h.cmd.CommitStock(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// AdjustStock 手工调整
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var cmd application.AdjustStockCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.ItemID = c.Param("id")

	if err := h.cmd.AdjustStock(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkDamaged 破损登记
func (h *InventoryHandler) MarkDamaged(c *gin.Context) {
	var cmd application.MarkDamagedCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.ItemID = c.Param("id")

	if err := h.cmd.MarkDamaged(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// WriteOffDamaged 破损核销
func (h *InventoryHandler) WriteOffDamaged(c *gin.Context) {
	var cmd application.WriteOffDamagedCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.ItemID = c.Param("id")

	if err := h.cmd.WriteOffDamaged(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ReturnToStock 破损回库
func (h *InventoryHandler) ReturnToStock(c *gin.Context) {
	var cmd application.ReturnToStockCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.ItemID = c.Param("id")

	if err := h.cmd.ReturnToStock(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RecordStockCheck 盘点
func (h *InventoryHandler) RecordStockCheck(c *gin.Context) {
	var cmd application.RecordStockCheckCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	cmd.ItemID = c.Param("id")

	if err := h.cmd.RecordStockCheck(c.Request.Context(), cmd); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
