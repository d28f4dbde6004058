package handler

import (
	"errors"
	"net/http"
	"strings"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/middleware"
	"marketstock/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
)

// PaymentHandler receives the payment provider's callback.
type PaymentHandler struct {
	checkout *usecase.CheckoutCoordinator
}

func NewPaymentHandler(checkout *usecase.CheckoutCoordinator) *PaymentHandler {
	return &PaymentHandler{checkout: checkout}
}

type PaymentCallbackRequest struct {
	UserID      int64                  `json:"user_id"`
	PaymentRef  string                 `json:"payment_ref"`
	CheckoutRef string                 `json:"checkout_ref"`
	Status      string                 `json:"status"`
	Lines       []usecase.CheckoutLine `json:"lines"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, webhookSecret string) {
	g := e.Group("/payments")
	g.Use(middleware.WebhookSecret(webhookSecret))

	g.POST("/callback", h.callback)
}

func (h *PaymentHandler) callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	ctx := c.Request().Context()

	switch strings.ToLower(strings.TrimSpace(req.Status)) {
	case PaymentConfirmed:
		out, err := h.checkout.FinalizeOrder(ctx, usecase.FinalizeInput{
			UserID:      req.UserID,
			PaymentRef:  req.PaymentRef,
			CheckoutRef: req.CheckoutRef,
			Lines:       req.Lines,
		})
		var ce *apperr.CheckoutError
		if errors.As(err, &ce) {
			// partially filled: report created orders with the failed lines
			return c.JSON(http.StatusConflict, checkoutErrorBody(ce, out.Orders))
		}
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)

	case PaymentFailed:
		productIDs := make([]int64, 0, len(req.Lines))
		for _, l := range req.Lines {
			productIDs = append(productIDs, l.ProductID)
		}
		n, err := h.checkout.ReleaseCheckout(ctx, req.UserID, productIDs)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, ReleaseResponse{Released: n})
	}

	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status must be confirmed or failed"})
}
