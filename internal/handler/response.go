package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/middleware"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// InsufficientStockResponse lets the storefront show how many are left.
type InsufficientStockResponse struct {
	Error     string `json:"error"`
	ProductID int64  `json:"product_id"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

type LineErrorResponse struct {
	ProductID int64  `json:"product_id"`
	Error     string `json:"error"`
	Available *int64 `json:"available,omitempty"`
}

type CheckoutErrorResponse struct {
	Error string              `json:"error"`
	Lines []LineErrorResponse `json:"lines"`
	// orders a partial finalization did create
	Orders any `json:"orders,omitempty"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	// checked first: it unwraps to its line errors
	var ce *apperr.CheckoutError
	if errors.As(err, &ce) {
		return c.JSON(http.StatusConflict, checkoutErrorBody(ce, nil))
	}

	var (
		ia *apperr.InvalidArgumentError
		nf *apperr.NotFoundError
		is *apperr.InsufficientStockError
		st *apperr.InvalidStateError
	)
	switch {
	case errors.As(err, &ia):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ia.Error()})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: nf.Error()})
	case errors.As(err, &is):
		return c.JSON(http.StatusConflict, InsufficientStockResponse{
			Error:     "insufficient stock",
			ProductID: is.ProductID,
			Requested: is.Requested,
			Available: is.Available,
		})
	case errors.As(err, &st):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: st.Error()})
	}

	// 500; the request logger records the internal error
	return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Error: "internal error"}).SetInternal(err)
}

func checkoutErrorBody(ce *apperr.CheckoutError, orders any) CheckoutErrorResponse {
	out := CheckoutErrorResponse{Error: "checkout failed", Lines: make([]LineErrorResponse, 0, len(ce.Lines)), Orders: orders}
	for _, l := range ce.Lines {
		lr := LineErrorResponse{ProductID: l.ProductID, Error: l.Err.Error()}
		var is *apperr.InsufficientStockError
		if errors.As(l.Err, &is) {
			lr.Available = &is.Available
		}
		out.Lines = append(out.Lines, lr)
	}
	return out
}

// middleware.AuthJWT stores the caller id as int64
func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NewInvalidArgument(name, "must be a positive integer", c.Param(name))
	}
	return id, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.NewInvalidArgument(name, "must be a number", v)
	}
	return n, nil
}

func queryInt64Ptr(c echo.Context, name string) (*int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, apperr.NewInvalidArgument(name, "must be a number", v)
	}
	return &n, nil
}

func queryTimePtr(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	tm, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.NewInvalidArgument(name, "must be RFC3339", v)
	}
	return &tm, nil
}
