package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"marketstock/internal/handler"
	"marketstock/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Handlers is every HTTP surface the service exposes.
type Handlers struct {
	Products     *handler.ProductHandler
	Checkout     *handler.CheckoutHandler
	Payments     *handler.PaymentHandler
	Orders       *handler.OrderHandler
	AdminProduct *handler.AdminProductHandler
	AdminOrder   *handler.AdminOrderHandler
}

type Options struct {
	Tokens        middleware.TokenVerifier
	WebhookSecret string
	Log           *zap.Logger
}

// New builds the echo instance with the ambient middleware and every route.
func New(h Handlers, opt Options) *echo.Echo {
	log := opt.Log
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))

	RegisterRoutes(e, h, opt)
	return e
}

func RegisterRoutes(e *echo.Echo, h Handlers, opt Options) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})

	h.Products.RegisterRoutes(e)
	h.Checkout.RegisterRoutes(e, opt.Tokens)
	h.Payments.RegisterRoutes(e, opt.WebhookSecret)
	h.Orders.RegisterRoutes(e, opt.Tokens)
	h.AdminProduct.RegisterRoutes(e, opt.Tokens)
	h.AdminOrder.RegisterRoutes(e, opt.Tokens)
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				var he *echo.HTTPError
				if errors.As(v.Error, &he) && he.Internal != nil {
					fields = append(fields, zap.Error(he.Internal))
				} else {
					fields = append(fields, zap.Error(v.Error))
				}
			}
			if v.Status >= http.StatusInternalServerError {
				log.Error("request failed", fields...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}

// Run serves on addr until ctx is done, then drains in-flight requests.
func Run(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("http server stopped")
	return nil
}
