package handler

import (
	"net/http"

	"marketstock/internal/domain/model"
	"marketstock/internal/middleware"
	repo "marketstock/internal/repository"
	"marketstock/internal/usecase"

	"github.com/labstack/echo/v4"
)

// staff operations on orders, holds and the audit trail
type AdminOrderHandler struct {
	orders       *usecase.AdminOrderUsecase
	reservations *usecase.ReservationManager
	audit        *usecase.AuditUsecase
}

func NewAdminOrderHandler(orders *usecase.AdminOrderUsecase, reservations *usecase.ReservationManager, audit *usecase.AuditUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{orders: orders, reservations: reservations, audit: audit}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type SweepResponse struct {
	Expired int64 `json:"expired"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, v middleware.TokenVerifier) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(v))
	admin.Use(middleware.AdminRoleGuard())

	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.POST("/reservations/sweep", h.sweep)
	admin.DELETE("/reservations/:id", h.cancelReservation)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	// acting admin goes into the audit log
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.orders.UpdateStatus(
		c.Request().Context(),
		adminID,
		orderID,
		usecase.AdminUpdateOrderStatusInput{Status: req.Status},
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) sweep(c echo.Context) error {
	n, err := h.reservations.ExpireStale(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SweepResponse{Expired: n})
}

func (h *AdminOrderHandler) cancelReservation(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	// owner 0: staff may cancel any hold
	out, err := h.reservations.MarkCancelled(c.Request().Context(), id, 0, adminID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) auditLogs(c echo.Context) error {
	var (
		f   repo.AuditLogFilter
		err error
	)
	if f.ActorUserID, err = queryInt64Ptr(c, "actor_id"); err != nil {
		return writeError(c, err)
	}
	if f.ResourceID, err = queryInt64Ptr(c, "resource_id"); err != nil {
		return writeError(c, err)
	}
	if f.CreatedFrom, err = queryTimePtr(c, "from"); err != nil {
		return writeError(c, err)
	}
	if f.CreatedTo, err = queryTimePtr(c, "to"); err != nil {
		return writeError(c, err)
	}
	if f.Limit, err = queryInt(c, "limit", 50); err != nil {
		return writeError(c, err)
	}
	if before, err := queryInt64Ptr(c, "before_id"); err != nil {
		return writeError(c, err)
	} else if before != nil {
		f.BeforeID = *before
	}
	if v := c.QueryParam("action"); v != "" {
		a := model.AuditAction(v)
		f.Action = &a
	}
	if v := c.QueryParam("resource_type"); v != "" {
		rt := model.AuditResourceType(v)
		f.ResourceType = &rt
	}

	out, err := h.audit.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
