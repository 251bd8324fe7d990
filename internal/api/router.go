package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/taxflow/taxflow-api/internal/api/handler"
	"github.com/taxflow/taxflow-api/internal/api/middleware"
	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
	"github.com/taxflow/taxflow-api/internal/pkg/token"

	_ "github.com/taxflow/taxflow-api/docs"
)

// loginRoutes carry their own CORS policy and answer preflight with 200.
var loginRoutes = map[string]struct{}{
	"/auth/login":            {},
	"/auth/login/verify-2fa": {},
}

// Dependencies is everything the router needs, assembled by main.
type Dependencies struct {
	Auth          ports.AuthService
	Accounts      ports.AccountService
	Admin         ports.AdminService
	TwoFactor     ports.TwoFactorService
	Subscriptions ports.SubscriptionService
	Tokens        *token.Issuer

	WebhookSecret    string
	CORSAllowOrigins []string
	Readiness        map[string]handler.Pinger
	Log              zerolog.Logger

	// MetricsRegistry receives the HTTP request metrics and backs /metrics.
	// Nil means the default Prometheus registry.
	MetricsRegistry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	origins := d.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomiddleware.BodyLimit("1M"))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		Skipper: func(c echo.Context) bool {
			_, ok := loginRoutes[c.Path()]
			return ok
		},
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.MetricsRegistry != nil {
		registerer, gatherer = d.MetricsRegistry, d.MetricsRegistry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "taxflow",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	userHandler := handler.NewUserHandler(d.Accounts)
	adminHandler := handler.NewAdminHandler(d.Admin)
	securityHandler := handler.NewSecurityHandler(d.TwoFactor)
	webhookHandler := handler.NewWebhookHandler(d.Subscriptions, d.WebhookSecret)
	authMiddleware := middleware.Auth(d.Tokens)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	loginCORS := middleware.LoginCORS()
	auth.POST("/login", authHandler.Login, loginCORS)
	auth.OPTIONS("/login", middleware.Preflight, loginCORS)
	auth.POST("/login/verify-2fa", authHandler.VerifyTwoFactor, loginCORS)
	auth.OPTIONS("/login/verify-2fa", middleware.Preflight, loginCORS)

	// --- Signed-in user ---
	user := e.Group("/user", authMiddleware)
	user.GET("/me", userHandler.Me)
	user.POST("/password", userHandler.ChangePassword)
	user.POST("/piva-request", userHandler.SubmitPivaRequest)

	security := e.Group("/security/2fa", authMiddleware)
	security.POST("/enable", securityHandler.EnableTwoFactor)
	security.POST("/verify", securityHandler.ConfirmTwoFactor)
	security.POST("/disable", securityHandler.DisableTwoFactor)
	security.GET("/status", securityHandler.TwoFactorStatus)

	// --- Consultants ---
	admin := e.Group("/admin", authMiddleware, middleware.CurrentRole(d.Accounts), middleware.RBAC(domain.RoleAdmin))
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/plans", adminHandler.Plans)
	admin.POST("/users/:id/registration", adminHandler.DecideRegistration)
	admin.POST("/users/:id/piva/approve", adminHandler.ApprovePiva)
	admin.POST("/users/:id/piva/reject", adminHandler.RejectPiva)

	// --- Payment provider ---
	e.POST("/webhooks/payments", webhookHandler.Payments)

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
