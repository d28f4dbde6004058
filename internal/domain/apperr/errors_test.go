package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsSurviveWrapping(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"invalid argument", NewInvalidArgument("quantity", "must be >= 1", 0), IsInvalidArgument},
		{"insufficient stock", NewInsufficientStock(1, 5, 3), IsInsufficientStock},
		{"invalid state", NewInvalidState("product", 1, "draft", "must be active"), IsInvalidState},
		{"not found", NewNotFound("product", 9), IsNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("reduce stock: %w", tc.err)
			assert.True(t, tc.check(wrapped))
			assert.True(t, errors.Is(wrapped, tc.err))
		})
	}
}

func TestHelpersDoNotCrossMatch(t *testing.T) {
	err := NewInsufficientStock(1, 5, 3)

	assert.False(t, IsNotFound(err))
	assert.False(t, IsInvalidState(err))
	assert.False(t, IsInvalidArgument(err))
}

func TestInsufficientStockCarriesAvailability(t *testing.T) {
	err := fmt.Errorf("finalize: %w", NewInsufficientStock(7, 5, 3))

	var ise *InsufficientStockError
	if assert.True(t, errors.As(err, &ise)) {
		assert.Equal(t, int64(7), ise.ProductID)
		assert.Equal(t, int64(5), ise.Requested)
		assert.Equal(t, int64(3), ise.Available)
	}
	assert.Contains(t, err.Error(), "requested=5")
}

func TestCheckoutError_UnwrapsLines(t *testing.T) {
	ce := &CheckoutError{}
	assert.NoError(t, ce.OrNil())

	ce.Add(1, NewInsufficientStock(1, 5, 2))
	ce.Add(2, NewNotFound("product", 2))
	err := ce.OrNil()

	assert.True(t, IsInsufficientStock(err))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidState(err))

	var ise *InsufficientStockError
	if assert.ErrorAs(t, err, &ise) {
		assert.Equal(t, int64(2), ise.Available)
	}
	assert.Contains(t, err.Error(), "product 1:")
	assert.Contains(t, err.Error(), "product 2:")
}
