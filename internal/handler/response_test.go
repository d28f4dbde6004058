package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketstock/internal/domain/apperr"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	checkout := &apperr.CheckoutError{}
	checkout.Add(4, apperr.NewInsufficientStock(4, 3, 1))
	checkout.Add(5, apperr.NewNotFound("product", 5))

	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"invalid argument", apperr.NewInvalidArgument("quantity", "must be at least 1", 0), http.StatusBadRequest,
			`{"error":"invalid argument: field=quantity, reason=must be at least 1, value=0"}`},
		{"not found wrapped", fmt.Errorf("load: %w", apperr.NewNotFound("product", 9)), http.StatusNotFound,
			`{"error":"product not found: id=9"}`},
		{"insufficient", apperr.NewInsufficientStock(4, 3, 1), http.StatusConflict,
			`{"error":"insufficient stock","product_id":4,"requested":3,"available":1}`},
		{"invalid state", apperr.NewInvalidState("order", 2, "shipped", "closed"), http.StatusConflict,
			`{"error":"invalid state: order id=2 state=shipped: closed"}`},
		{"checkout", checkout, http.StatusConflict,
			`{"error":"checkout failed","lines":[
				{"product_id":4,"error":"insufficient stock: product_id=4, requested=3, available=1","available":1},
				{"product_id":5,"error":"product not found: id=5"}]}`},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError,
			`{"error":"internal error"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			if err := writeError(c, tc.err); err != nil {
				e.HTTPErrorHandler(err, c)
			}
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestWriteError_Nil(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	assert.NoError(t, writeError(c, nil))
	assert.False(t, c.Response().Committed)
}
