package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/pharmastock/stock-system/docs" // Swagger docs
	"github.com/pharmastock/stock-system/internal/api/handler"
	"github.com/pharmastock/stock-system/internal/api/middleware"
	"github.com/pharmastock/stock-system/internal/core/ports"
)

// Dependencies carries everything the HTTP layer needs. Idempotency is
// optional.
type Dependencies struct {
	Inventory   ports.InventoryService
	Auth        ports.AuthService
	Idempotency ports.IdempotencyStore
	JWTSecret   string
	Checks      map[string]handler.Check
	Logger      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.Metrics())
	e.Use(requestLogger(deps.Logger))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.Logger)
	medicationHandler := handler.NewMedicationHandler(deps.Inventory, deps.Idempotency, deps.Logger)
	healthHandler := handler.NewHealthHandler(deps.Checks, deps.Logger)
	authMiddleware := middleware.Auth(deps.JWTSecret)

	// --- Public routes ---
	e.POST("/auth/login", authHandler.Login)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Authenticated routes ---
	v1 := e.Group("/v1", authMiddleware)
	v1.POST("/users", authHandler.CreateUser, middleware.AdminOnly())

	meds := v1.Group("/medications")
	meds.GET("", medicationHandler.List)
	meds.GET("/expired", medicationHandler.Expired)
	meds.POST("", medicationHandler.Create)
	meds.GET("/:id", medicationHandler.Get)
	meds.PATCH("/:id", medicationHandler.Update)
	meds.DELETE("/:id", medicationHandler.Delete)
	meds.PUT("/:id/quantity", medicationHandler.SetQuantity)
	meds.POST("/:id/stock", medicationHandler.AdjustStock)

	v1.GET("/reports/inventory", medicationHandler.Report)

	return e
}

// requestLogger emits one structured line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
