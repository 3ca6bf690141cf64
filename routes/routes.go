package routes

import (
	"net/http"
	"time"

	"ledgerpay/handlers"
	"ledgerpay/middleware"
	"ledgerpay/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterPaymentRoutes registers the payment endpoints. The webhook is public; everything else needs a bearer token.
func RegisterPaymentRoutes(r *gin.Engine, hb *handlers.HandlerBundle, limiter gin.HandlerFunc) {
	public := r.Group("/api/payments")
	{
		public.POST("/webhook", limiter, hb.WebhookHandler)
	}

	api := r.Group("/api/payments")
	{
		// Protected routes (Require Authentication)
		api.Use(middleware.JWTAuthMiddleware(hb.JWTSecret))
		api.POST("/create-order", hb.CreateOrderHandler)
		api.POST("/verify", hb.VerifyPaymentHandler)
		api.POST("/manual", hb.ManualPaymentHandler)
		api.GET("/invoice/:invoiceId", hb.PaymentHistoryHandler)
		api.GET("/:paymentId", hb.GetPaymentHandler)

		admin := api.Group("")
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		admin.DELETE("/:paymentId", hb.DeletePaymentHandler)
		admin.POST("/invoice/:invoiceId/reconcile", hb.ReconcileInvoiceHandler)
	}
}

// RegisterPaymentLinkRoutes registers link issuing (authenticated) and the public pay-by-link flow.
func RegisterPaymentLinkRoutes(r *gin.Engine, hb *handlers.HandlerBundle, limiter gin.HandlerFunc) {
	links := r.Group("/api/payment-links")
	{
		links.POST("", middleware.JWTAuthMiddleware(hb.JWTSecret), hb.IssueLinkHandler)

		public := links.Group("")
		public.Use(limiter)
		public.GET("/verify/:token", hb.PreviewLinkHandler)
		public.POST("/process/:token", hb.ProcessLinkHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint backed by the last monitor snapshot.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		healthy := status.Mongo
		for _, ok := range status.Redis {
			healthy = healthy && ok
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "services": status})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "services": status})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, logger *zap.Logger) {
	r.Use(utils.ErrorHandler())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// One limiter shared by every public endpoint.
	limiter := middleware.RateLimitMiddleware(hb.MaxRequestsPerMin, logger)

	RegisterPaymentRoutes(r, hb, limiter)
	RegisterPaymentLinkRoutes(r, hb, limiter)
	RegisterHealthRoute(r)
}
