package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfront_console/internal/model"
	"shopfront_console/internal/service"
	"shopfront_console/internal/task"
)

var errFileTooLarge = errors.New("文件过大")

// errorStatus 业务错误到 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrMixedCurrencies),
		errors.Is(err, service.ErrProductInactive),
		errors.Is(err, service.ErrUnknownOrderStat):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrInvalidPermissionTransition),
		errors.Is(err, service.ErrNotificationsUnsupported),
		errors.Is(err, task.ErrTaskDisabled):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidPassphrase),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respondError(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.JSON(errorStatus(err), gin.H{"error": err.Error()})
}
