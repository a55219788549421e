package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/dto"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/service"
	"github.com/prohmpiriya/class-checkout/pkg/response"
	"github.com/prohmpiriya/class-checkout/pkg/telemetry"
)

// CheckoutHandler handles checkout HTTP requests
type CheckoutHandler struct {
	checkouts service.CheckoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkouts service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts}
}

// StartCheckout handles POST /checkouts
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.checkout.start")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req dto.StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		bindError(c, err)
		return
	}
	span.SetAttributes(attribute.String("target_kind", req.Target.Kind))

	result, err := h.checkouts.StartCheckout(ctx, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("checkout_id", result.ID))
	response.Created(c, result)
}

// GetCheckout handles GET /checkouts/:id
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	result, err := h.checkouts.GetCheckout(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateEquipment handles PUT /checkouts/:id/equipment
func (h *CheckoutHandler) UpdateEquipment(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req dto.EquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.checkouts.UpdateEquipment(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// SelectVoucher handles PUT /checkouts/:id/voucher
func (h *CheckoutHandler) SelectVoucher(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req dto.SelectVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.checkouts.SelectVoucher(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// ClearVoucher handles DELETE /checkouts/:id/voucher
func (h *CheckoutHandler) ClearVoucher(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	result, err := h.checkouts.ClearVoucher(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// SelectFundingMethod handles PUT /checkouts/:id/funding-method
func (h *CheckoutHandler) SelectFundingMethod(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req dto.SelectFundingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.checkouts.SelectFundingMethod(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// RefreshWallet handles POST /checkouts/:id/wallet/refresh
func (h *CheckoutHandler) RefreshWallet(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	result, err := h.checkouts.RefreshWallet(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Submit handles POST /checkouts/:id/submit. Failures the member can act on
// come back as 200 with the checkout's state and reason; a rejected
// credential is reported as 401 so the client re-authenticates.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.checkout.submit")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := actingUser(c)
	if !ok {
		return
	}
	checkoutID := c.Param("id")
	span.SetAttributes(attribute.String("checkout_id", checkoutID))

	result, err := h.checkouts.Submit(ctx, checkoutID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("state", result.State),
		attribute.String("reason", result.Reason),
	)
	if result.State == string(domain.CheckoutFailedFatal) && result.Reason == string(domain.ReasonUnauthorized) {
		c.JSON(http.StatusUnauthorized, response.Response{
			Success: false,
			Data:    result,
			Error:   &response.ErrorData{Code: "UNAUTHORIZED", Message: result.Message},
		})
		return
	}
	response.Success(c, result)
}

// Abandon handles DELETE /checkouts/:id
func (h *CheckoutHandler) Abandon(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	if err := h.checkouts.Abandon(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Quote handles POST /quotes
func (h *CheckoutHandler) Quote(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.checkouts.Quote(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
