package handler

import (
	"net/http"

	"marketstock/internal/domain/model"
	"marketstock/internal/middleware"
	repo "marketstock/internal/repository"
	"marketstock/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ProductCreateRequest struct {
	SellerID       int64           `json:"seller_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	InitialStock   int64           `json:"initial_stock"`
	Status         string          `json:"status"`
	ApprovalStatus string          `json:"approval_status"`
}

type ProductStatusRequest struct {
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
}

// StockChangeRequest is a restock, sale or write-off of Quantity units.
type StockChangeRequest struct {
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// InventoryUpdateRequest sets stock to an absolute count.
type InventoryUpdateRequest struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

// /admin/products and /admin/inventory
type AdminProductHandler struct {
	mutator *usecase.StockMutator
	ledger  *usecase.Ledger
	catalog *usecase.CatalogUsecase
}

func NewAdminProductHandler(mutator *usecase.StockMutator, ledger *usecase.Ledger, catalog *usecase.CatalogUsecase) *AdminProductHandler {
	return &AdminProductHandler{mutator: mutator, ledger: ledger, catalog: catalog}
}

func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, v middleware.TokenVerifier) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(v))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id/status", h.setStatus)
	admin.POST("/products/:id/sold-out", h.markSoldOut)

	admin.GET("/inventory/low-stock", h.lowStock)
	admin.PUT("/inventory/:product_id", h.updateInventory)
	admin.POST("/inventory/:product_id/restock", h.restock)
	admin.POST("/inventory/:product_id/reduce", h.reduce)
	admin.POST("/inventory/:product_id/damage", h.writeOff)
	admin.GET("/inventory/:product_id/history", h.history)
	admin.GET("/inventory/:product_id/summary", h.summary)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.mutator.CreateProduct(c.Request().Context(), usecase.CreateProductInput{
		SellerID:       req.SellerID,
		Name:           req.Name,
		Price:          req.Price,
		InitialStock:   req.InitialStock,
		Status:         model.ProductStatus(req.Status),
		ApprovalStatus: model.ApprovalStatus(req.ApprovalStatus),
		ActorID:        &adminID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminProductHandler) setStatus(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req ProductStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.mutator.SetStatus(c.Request().Context(), usecase.SetStatusInput{
		ProductID:      id,
		Status:         model.ProductStatus(req.Status),
		ApprovalStatus: model.ApprovalStatus(req.ApprovalStatus),
		ActorID:        adminID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) markSoldOut(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.mutator.MarkSoldOut(c.Request().Context(), id, adminID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) updateInventory(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	productID, err := paramID(c, "product_id")
	if err != nil {
		return writeError(c, err)
	}

	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.mutator.Adjust(c.Request().Context(), usecase.AdjustInput{
		ProductID: productID,
		NewStock:  req.Stock,
		Reason:    req.Reason,
		ActorID:   &adminID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) restock(c echo.Context) error {
	return h.stockChange(c, func(productID, adminID int64, req StockChangeRequest) (usecase.StockChange, error) {
		return h.mutator.Increase(c.Request().Context(), usecase.IncreaseInput{
			ProductID: productID, Quantity: req.Quantity, Reason: req.Reason, ActorID: &adminID,
		})
	})
}

func (h *AdminProductHandler) reduce(c echo.Context) error {
	return h.stockChange(c, func(productID, adminID int64, req StockChangeRequest) (usecase.StockChange, error) {
		return h.mutator.Reduce(c.Request().Context(), usecase.ReduceInput{
			ProductID: productID, Quantity: req.Quantity, Reason: req.Reason, ActorID: &adminID,
		})
	})
}

func (h *AdminProductHandler) writeOff(c echo.Context) error {
	return h.stockChange(c, func(productID, adminID int64, req StockChangeRequest) (usecase.StockChange, error) {
		return h.mutator.WriteOff(c.Request().Context(), usecase.ReduceInput{
			ProductID: productID, Quantity: req.Quantity, Reason: req.Reason, ActorID: &adminID,
		})
	})
}

func (h *AdminProductHandler) stockChange(c echo.Context, apply func(productID, adminID int64, req StockChangeRequest) (usecase.StockChange, error)) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	productID, err := paramID(c, "product_id")
	if err != nil {
		return writeError(c, err)
	}

	var req StockChangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := apply(productID, adminID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type HistoryPage struct {
	Items []model.StockHistory `json:"items"`
	// pass as before_id for the next page; 0 when this was the last one
	NextBeforeID int64 `json:"next_before_id"`
}

func (h *AdminProductHandler) history(c echo.Context) error {
	productID, err := paramID(c, "product_id")
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return writeError(c, err)
	}
	if limit < 1 || limit > 200 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}
	beforeID, err := queryInt64Ptr(c, "before_id")
	if err != nil {
		return writeError(c, err)
	}
	since, err := queryTimePtr(c, "since")
	if err != nil {
		return writeError(c, err)
	}

	q := repo.StockHistoryQuery{ProductID: productID, Since: since, Limit: limit}
	if beforeID != nil {
		q.BeforeID = *beforeID
	}
	items, err := h.ledger.Page(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}

	out := HistoryPage{Items: items}
	if out.Items == nil {
		out.Items = []model.StockHistory{}
	}
	if len(items) == limit {
		out.NextBeforeID = items[len(items)-1].ID
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) summary(c echo.Context) error {
	productID, err := paramID(c, "product_id")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.ledger.SummaryFor(c.Request().Context(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminProductHandler) lowStock(c echo.Context) error {
	threshold, err := queryInt64Ptr(c, "threshold")
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return writeError(c, err)
	}

	var t int64
	if threshold != nil {
		t = *threshold
	}
	out, err := h.catalog.LowStock(c.Request().Context(), t, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
