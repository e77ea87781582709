// Package router wires the HTTP routes and middleware of the API.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"moneyminder/internal/handlers"
	"moneyminder/internal/metrics"
	"moneyminder/internal/middleware"
	"moneyminder/internal/ratelimit"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Summary      *handlers.SummaryHandler
	Transactions *handlers.TransactionHandler
	Goals        *handlers.GoalHandler
	Chat         *handlers.ChatHandler
	Admin        *handlers.AdminHandler
}

// Options configures New.
type Options struct {
	Handlers      Handlers
	Authenticator middleware.SessionAuthenticator
	// Limiter throttles the credential endpoints; nil disables it.
	Limiter       ratelimit.Limiter
	Metrics       *metrics.Metrics
	Registry      *prometheus.Registry
	AdminAPIKey   string
	AllowedOrigin string
	Swagger       bool
}

// New builds the Gin engine with every route registered.
func New(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogging(opts.Metrics))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORS(opts.AllowedOrigin))

	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if opts.Registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Registry)))
	}

	h := opts.Handlers
	api := r.Group("/api")
	api.GET("/health", h.Admin.Health)

	limited := middleware.RateLimit(opts.Limiter, opts.Metrics)

	// Public auth routes
	auth := api.Group("/auth")
	auth.POST("/register", limited, h.Auth.Register)
	auth.POST("/login", limited, h.Auth.Login)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/verify-email", h.Auth.VerifyEmail)
	auth.POST("/resend-verification", limited, h.Auth.ResendVerification)
	auth.POST("/two-factor/verify", limited, h.Auth.VerifyTwoFactor)

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.Authenticator))

	protected.GET("/auth/me", h.Auth.Me)
	protected.POST("/auth/two-factor/setup", h.Auth.SetupTwoFactor)
	protected.POST("/auth/two-factor/activate", h.Auth.ActivateTwoFactor)
	protected.POST("/auth/two-factor/disable", h.Auth.DisableTwoFactor)

	protected.GET("/profile", h.Auth.GetProfile)
	protected.PATCH("/profile", h.Auth.UpdateProfile)

	protected.GET("/summary", h.Summary.GetSummary)
	protected.PATCH("/summary", h.Summary.UpdateSummary)
	protected.POST("/summary/reconcile", h.Summary.ReconcileSummary)

	transactions := protected.Group("/transactions")
	transactions.GET("", h.Transactions.ListTransactions)
	transactions.POST("", h.Transactions.CreateTransaction)

	goals := protected.Group("/goals")
	goals.GET("", h.Goals.ListGoals)
	goals.POST("", h.Goals.CreateGoal)
	goals.PATCH("/:id", h.Goals.UpdateGoal)
	goals.DELETE("/:id", h.Goals.DeleteGoal)
	goals.POST("/:id/contribute", h.Goals.Contribute)

	protected.POST("/chat", h.Chat.Chat)

	// Admin routes
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(opts.AdminAPIKey))
	admin.POST("/migrate", h.Admin.Migrate)

	return r
}
