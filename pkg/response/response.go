// Package response 提供统一的 HTTP 响应封装与领域错误到状态码的映射
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/ecommerce/pkg/errs"
)

// Body 统一响应结构
type Body struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success 返回 200 与数据
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Data: data})
}

// Created 返回 201 与数据
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Data: data})
}

// ErrorWithStatus 返回指定状态码与错误信息
func ErrorWithStatus(c *gin.Context, status int, message string, code string) {
	c.JSON(status, Body{Code: code, Message: message})
}

// Error 根据领域错误类型映射 HTTP 状态码后返回
func Error(c *gin.Context, err error) {
	var de *errs.Error
	if errors.As(err, &de) {
		c.JSON(statusOf(de), Body{Code: de.Code, Message: de.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, Body{Code: "internal", Message: err.Error()})
}

// statusOf 映射错误类别到状态码
func statusOf(de *errs.Error) int {
	switch de.Kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindStateTransition:
		return http.StatusConflict
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
