package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
	"github.com/prohmpiriya/class-checkout/pkg/logger"
	"github.com/prohmpiriya/class-checkout/pkg/middleware"
	"github.com/prohmpiriya/class-checkout/pkg/response"
)

// handleError converts domain and gateway errors to HTTP responses
func handleError(c *gin.Context, err error) {
	switch {
	// a checkout owned by someone else is reported as missing
	case domain.IsNotFoundError(err), errors.Is(err, domain.ErrCheckoutOwnerMismatch):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error(), "")
	case errors.Is(err, domain.ErrCheckoutExpired):
		response.Error(c, http.StatusGone, "CHECKOUT_EXPIRED", err.Error(), "")
	case errors.Is(err, domain.ErrAlreadyBooked):
		response.Error(c, http.StatusConflict, "ALREADY_BOOKED", err.Error(), "")
	case errors.Is(err, domain.ErrGroupFull):
		response.Error(c, http.StatusConflict, "SESSION_FULL", err.Error(), "")
	case errors.Is(err, domain.ErrSubmissionInProgress):
		response.Error(c, http.StatusConflict, "SUBMISSION_IN_PROGRESS", err.Error(), "")
	case errors.Is(err, domain.ErrAlreadySubmitted):
		response.Error(c, http.StatusConflict, "ALREADY_PAID", err.Error(), "")
	case domain.IsConflictError(err):
		response.Error(c, http.StatusConflict, "INVALID_STATE", err.Error(), "")
	case errors.Is(err, domain.ErrInvalidUserID):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), "")
	case domain.IsValidationError(err):
		response.Error(c, http.StatusBadRequest, validationCode(err), err.Error(), "")
	case gateway.IsUnauthorized(err):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", backendMessage(err), "")
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, http.StatusGatewayTimeout, "BACKEND_TIMEOUT", "booking backend did not answer in time", "")
	case errors.Is(err, gateway.ErrBackendUnavailable):
		response.Error(c, http.StatusBadGateway, "BACKEND_UNAVAILABLE", err.Error(), "")
	default:
		if _, ok := gateway.AsBackendError(err); ok {
			response.Error(c, http.StatusBadGateway, "BACKEND_ERROR", backendMessage(err), "")
			return
		}
		logger.Get().ErrorContext(c.Request.Context(), "unhandled error", zap.Error(err))
		response.InternalError(c, err)
	}
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrWalletBalanceUnknown):
		return "WALLET_BALANCE_UNKNOWN"
	case errors.Is(err, domain.ErrVoucherExpired):
		return "VOUCHER_EXPIRED"
	case errors.Is(err, domain.ErrVoucherNotApplicable):
		return "VOUCHER_NOT_APPLICABLE"
	case errors.Is(err, domain.ErrVoucherRequired):
		return "VOUCHER_REQUIRED"
	case errors.Is(err, domain.ErrFundingMethodRequired), errors.Is(err, domain.ErrInvalidFundingMethod):
		return "INVALID_FUNDING_METHOD"
	case errors.Is(err, domain.ErrEquipmentNotApplicable), errors.Is(err, domain.ErrInvalidEquipment):
		return "INVALID_EQUIPMENT"
	default:
		return "INVALID_REQUEST"
	}
}

func backendMessage(err error) string {
	if be, ok := gateway.AsBackendError(err); ok && be.Message != "" {
		return be.Message
	}
	return err.Error()
}

func bindError(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
}

// actingUser reads the authenticated user id; it aborts with 401 when absent
func actingUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return "", false
	}
	return userID, true
}
