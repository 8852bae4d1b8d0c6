package api

import (
	"errors"
	"net/http"

	"wallet-custody-go/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.KindSubmission:
		return http.StatusBadGateway
	case apperr.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindConversion:
		return http.StatusUnprocessableEntity
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// toAppError classifies err, hiding the detail of anything unclassified
func toAppError(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.Internal("internal error", err)
}

func writeError(c *gin.Context, err error) {
	appErr := toAppError(err)
	status := statusFor(appErr.Kind)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, appErr.JSON())
}

func abortWithError(c *gin.Context, err error) {
	appErr := toAppError(err)
	c.AbortWithStatusJSON(statusFor(appErr.Kind), appErr.JSON())
}

func bindError(err error) error {
	return apperr.Validation("invalid request: " + err.Error())
}
