package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"marketstock/internal/app"
	"marketstock/internal/auth"
	"marketstock/internal/config"
	"marketstock/internal/domain/model"
	"marketstock/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Config{Store: config.StoreMemory, ReservationTTL: time.Minute, LowStockThreshold: 5}
	a, err := app.Build(context.Background(), cfg, "test", zap.NewNop())
	require.NoError(t, err)
	return a
}

func execute(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	built := 0
	root := NewRootCommand(func(context.Context, config.Config, *zap.Logger) (*app.App, error) {
		built++
		return a, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--store", "memory", "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	assert.LessOrEqual(t, built, 1)
	return out.String(), err
}

func decodeChange(t *testing.T, out string) usecase.StockChange {
	t.Helper()
	var c usecase.StockChange
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	return c
}

func TestStockctl_InventoryRoundTrip(t *testing.T) {
	a := memoryApp(t)

	out, err := execute(t, a, "--actor", "42", "create-product",
		"--name", "Mug", "--price", "9.90", "--stock", "4", "--status", "active", "--approval", "approved")
	require.NoError(t, err)
	created := decodeChange(t, out)
	require.NotZero(t, created.Product.ID)
	assert.Equal(t, int64(4), created.Product.Stock)
	require.NotNil(t, created.Entry.ActorID)
	assert.Equal(t, int64(42), *created.Entry.ActorID)
	id := strconv.FormatInt(created.Product.ID, 10)

	out, err = execute(t, a, "restock", id, "--qty", "6", "--reason", "delivery")
	require.NoError(t, err)
	assert.Equal(t, int64(10), decodeChange(t, out).Product.Stock)

	out, err = execute(t, a, "reduce", id, "--qty", "2", "--damaged")
	require.NoError(t, err)
	assert.Equal(t, model.StockChangeDamaged, decodeChange(t, out).Entry.ChangeType)

	out, err = execute(t, a, "adjust", id, "--stock", "3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), decodeChange(t, out).Product.Stock)

	out, err = execute(t, a, "history", id, "--limit", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var newest model.StockHistory
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &newest))
	assert.Equal(t, model.StockChangeAdjustment, newest.ChangeType)

	out, err = execute(t, a, "summary", id)
	require.NoError(t, err)
	var s usecase.LedgerSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.True(t, s.Reconciled)
	assert.Equal(t, int64(4), s.EntryCount)
	assert.Equal(t, int64(3), s.CurrentStock)

	out, err = execute(t, a, "low-stock")
	require.NoError(t, err)
	var low []model.Product
	require.NoError(t, json.Unmarshal([]byte(out), &low))
	require.Len(t, low, 1)
	assert.Equal(t, created.Product.ID, low[0].ID)

	out, err = execute(t, a, "sold-out", id)
	require.NoError(t, err)
	sold := decodeChange(t, out)
	assert.Equal(t, int64(0), sold.Product.Stock)
	assert.Equal(t, model.ProductStatusSold, sold.Product.Status)
}

func TestStockctl_Sweep(t *testing.T) {
	a := memoryApp(t)
	ctx := context.Background()
	p, err := a.Mutator.CreateProduct(ctx, usecase.CreateProductInput{
		Name: "Lamp", InitialStock: 2, Status: model.ProductStatusActive, ApprovalStatus: model.ApprovalApproved,
	})
	require.NoError(t, err)
	_, _, err = a.Reservations.CreateOrRenew(ctx, 1, p.Product.ID, 1, time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	out, err := execute(t, a, "sweep")
	require.NoError(t, err)
	assert.JSONEq(t, `{"expired":1}`, out)

	out, err = execute(t, a, "sweep")
	require.NoError(t, err)
	assert.JSONEq(t, `{"expired":0}`, out)
}

func TestStockctl_Token(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	root := NewRootCommand(func(context.Context, config.Config, *zap.Logger) (*app.App, error) {
		t.Fatal("token must not open the store")
		return nil, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"token", "--user", "7", "--role", "admin"})
	require.NoError(t, root.Execute())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	id, err := auth.NewIssuer("cli-secret", time.Minute).Verify(body.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: 7, Role: auth.RoleAdmin}, id)
}

func TestStockctl_Errors(t *testing.T) {
	a := memoryApp(t)

	cases := []struct {
		name string
		args []string
		msg  string
	}{
		{"bad product id", []string{"restock", "abc", "--qty", "1"}, "invalid product id"},
		{"adjust without stock", []string{"adjust", "1"}, "--stock is required"},
		{"bad since", []string{"history", "1", "--since", "yesterday"}, "invalid --since"},
		{"unknown product", []string{"restock", "404", "--qty", "1"}, "not found"},
		{"bad price", []string{"create-product", "--name", "x", "--price", "cheap"}, "invalid price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, a, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestStockctl_InvalidStoreFailsBeforeBuild(t *testing.T) {
	root := NewRootCommand(func(context.Context, config.Config, *zap.Logger) (*app.App, error) {
		t.Fatal("build must not run on invalid config")
		return nil, nil
	})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--store", "mongo", "sweep"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE")
}
