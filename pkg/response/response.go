package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// StatusFor 把业务错误码映射为 HTTP 状态码，非业务错误一律 500
func StatusFor(err error) int {
	var def errors.Definition
	if !stderrors.As(err, &def) {
		return http.StatusInternalServerError
	}

	switch def.Code {
	case errors.RateLimitExceeded.Code:
		return http.StatusTooManyRequests // 429
	case errors.Unauthorized.Code:
		return http.StatusUnauthorized // 401
	case errors.Forbidden.Code:
		return http.StatusForbidden // 403
	case errors.NotFound.Code, errors.JourneyNotFound.Code, errors.ContactNotFound.Code:
		return http.StatusNotFound // 404
	case errors.JourneyNotActive.Code:
		return http.StatusConflict // 409
	case errors.LocationPermissionDenied.Code, errors.AddressNotFound.Code:
		return http.StatusUnprocessableEntity // 422
	case errors.RouteUnavailable.Code:
		return http.StatusBadGateway // 502
	case errors.RealtimeUnavailable.Code:
		return http.StatusServiceUnavailable // 503
	case errors.InvalidRequest.Code, errors.ValidationError.Code,
		errors.ContactsRequired.Code, errors.ConfirmationRequired.Code,
		errors.CheckInIntervalRange.Code, errors.CheckInResponseBad.Code,
		errors.InvalidCoordinates.Code:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	statusCode := StatusFor(err)

	var code, message string
	var def errors.Definition
	if stderrors.As(err, &def) {
		code = def.Code
		message = def.Message
	} else {
		// 内部错误不把原始信息暴露给调用方
		logger.Logger.Error("Request failed",
			zap.String("path", string(c.Path())),
			zap.Error(err),
		)
		code = errors.InternalError.Code
		message = errors.InternalError.Message
	}

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

// Created 返回 201
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
	})
}

func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}

// NoContent 返回 204 No Content
func NoContent(ctx context.Context, c *app.RequestContext) {
	c.Status(http.StatusNoContent)
}
