package usecase

import (
	"context"
	"testing"

	"marketstock/internal/domain/apperr"
	"marketstock/internal/domain/model"
	repo "marketstock/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) paidOrder(t *testing.T, stock, qty int64, paymentRef string) (model.Product, model.Order) {
	t.Helper()
	p := f.product(t, stock)
	out, err := f.checkout.FinalizeOrder(context.Background(), FinalizeInput{
		UserID:     1,
		PaymentRef: paymentRef,
		Lines:      []CheckoutLine{{ProductID: p.ID, Quantity: qty}},
	})
	require.NoError(t, err)
	require.Len(t, out.Orders, 1)
	return p, out.Orders[0]
}

func TestAdminUpdateStatus_MovesForward(t *testing.T) {
	f := newFixture(t)
	_, o := f.paidOrder(t, 5, 2, "pay-1")
	ctx := context.Background()

	got, err := f.adminOrders.UpdateStatus(ctx, 99, o.ID, AdminUpdateOrderStatusInput{Status: " Processing "})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, got.Status)

	// same status is a no-op without an audit entry
	_, err = f.adminOrders.UpdateStatus(ctx, 99, o.ID, AdminUpdateOrderStatusInput{Status: "processing"})
	require.NoError(t, err)

	_, err = f.adminOrders.UpdateStatus(ctx, 99, o.ID, AdminUpdateOrderStatusInput{Status: "pending"})
	assert.True(t, apperr.IsInvalidState(err))

	logs, err := f.audit.List(ctx, repo.AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, logs[0].Action)
	assert.Equal(t, int64(99), logs[0].ActorUserID)
}

func TestAdminUpdateStatus_CancelReturnsStock(t *testing.T) {
	f := newFixture(t)
	p, o := f.paidOrder(t, 5, 2, "pay-1")
	ctx := context.Background()
	require.Equal(t, int64(3), f.stockOf(t, p.ID))

	got, err := f.adminOrders.UpdateStatus(ctx, 99, o.ID, AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))

	entry := f.history(t, p.ID)[0]
	assert.Equal(t, model.StockChangeReturn, entry.ChangeType)
	assert.Equal(t, int64(2), entry.QuantityChange)
	require.NotNil(t, entry.OrderID)
	assert.Equal(t, o.ID, *entry.OrderID)
	f.assertLedgerReconciles(t, p.ID)

	// closed orders stay closed
	_, err = f.adminOrders.UpdateStatus(ctx, 99, o.ID, AdminUpdateOrderStatusInput{Status: "processing"})
	assert.True(t, apperr.IsInvalidState(err))
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))
}

func TestAdminUpdateStatus_ShippedCannotCancel(t *testing.T) {
	f := newFixture(t)
	p, o := f.paidOrder(t, 5, 1, "pay-1")
	ctx := context.Background()

	_, err := f.adminOrders.UpdateStatus(ctx, 99, o.ID, AdminUpdateOrderStatusInput{Status: "shipped"})
	require.NoError(t, err)
	_, err = f.adminOrders.UpdateStatus(ctx, 99, o.ID, AdminUpdateOrderStatusInput{Status: "cancelled"})
	assert.True(t, apperr.IsInvalidState(err))
	assert.Equal(t, int64(4), f.stockOf(t, p.ID))
}

func TestAdminUpdateStatus_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.adminOrders.UpdateStatus(ctx, 0, 1, AdminUpdateOrderStatusInput{Status: "shipped"})
	assert.True(t, apperr.IsInvalidArgument(err))
	_, err = f.adminOrders.UpdateStatus(ctx, 1, 1, AdminUpdateOrderStatusInput{Status: "lost"})
	assert.True(t, apperr.IsInvalidArgument(err))
	_, err = f.adminOrders.UpdateStatus(ctx, 1, 404, AdminUpdateOrderStatusInput{Status: "shipped"})
	assert.True(t, apperr.IsNotFound(err))
}

func TestOrderUsecase_OwnOrdersOnly(t *testing.T) {
	f := newFixture(t)
	_, o := f.paidOrder(t, 5, 1, "pay-1")
	f.paidOrder(t, 5, 1, "pay-2")
	ctx := context.Background()

	page, err := f.orders.ListMyOrders(ctx, 1, 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Total)
	assert.NotEqual(t, o.ID, page.Items[0].ID)

	got, err := f.orders.GetMyOrder(ctx, 1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.orders.GetMyOrder(ctx, 2, o.ID)
	assert.True(t, apperr.IsNotFound(err))
}
