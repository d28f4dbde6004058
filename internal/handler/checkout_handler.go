package handler

import (
	"math"
	"net/http"
	"time"

	"marketstock/internal/middleware"
	"marketstock/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /checkout: buyer-side holds
type CheckoutHandler struct {
	checkout     *usecase.CheckoutCoordinator
	reservations *usecase.ReservationManager
}

func NewCheckoutHandler(checkout *usecase.CheckoutCoordinator, reservations *usecase.ReservationManager) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, reservations: reservations}
}

type ReserveRequest struct {
	Lines       []usecase.CheckoutLine `json:"lines"`
	CheckoutRef string                 `json:"checkout_ref"`
	TTLSeconds  int64                  `json:"ttl_seconds"` // 0 = server default
}

type HoldRequest struct {
	Quantity   int64 `json:"quantity"`
	TTLSeconds int64 `json:"ttl_seconds"`
}

type ReleaseResponse struct {
	Released int `json:"released"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, v middleware.TokenVerifier) {
	g := e.Group("/checkout")
	g.Use(middleware.AuthJWT(v))

	g.POST("/reservations", h.reserve)
	g.GET("/reservations", h.listActive)
	g.DELETE("/reservations", h.releaseAll)
	g.DELETE("/reservations/:id", h.cancel)
	g.PUT("/holds/:product_id", h.hold)
}

func (h *CheckoutHandler) reserve(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ReserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.TTLSeconds < 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid ttl_seconds"})
	}

	out, err := h.checkout.ReserveForCheckout(c.Request().Context(), usecase.ReserveInput{
		UserID:      userID,
		Lines:       req.Lines,
		TTL:         ttlFromSeconds(req.TTLSeconds),
		CheckoutRef: req.CheckoutRef,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// hold sets the buyer's hold on one product ("add to cart").
func (h *CheckoutHandler) hold(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	productID, err := paramID(c, "product_id")
	if err != nil {
		return writeError(c, err)
	}

	var req HoldRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.TTLSeconds < 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid ttl_seconds"})
	}
	ttl := ttlFromSeconds(req.TTLSeconds)

	// availability is checked the same way a checkout does
	out, err := h.checkout.ReserveForCheckout(c.Request().Context(), usecase.ReserveInput{
		UserID: userID,
		Lines:  []usecase.CheckoutLine{{ProductID: productID, Quantity: req.Quantity}},
		TTL:    ttl,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) listActive(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.reservations.ListActive(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.reservations.MarkCancelled(c.Request().Context(), id, userID, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) releaseAll(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	n, err := h.checkout.ReleaseCheckout(c.Request().Context(), userID, nil)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ReleaseResponse{Released: n})
}

// ttlFromSeconds saturates instead of wrapping, so a huge ttl_seconds is
// rejected by the maximum TTL check rather than overflowing. 0 = server default.
func ttlFromSeconds(sec int64) time.Duration {
	if sec > int64(math.MaxInt64/time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(sec) * time.Second
}
