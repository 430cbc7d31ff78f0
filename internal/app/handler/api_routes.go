package handler

import (
	"net/http"

	"filingdesk/internal/app/middleware"
	"filingdesk/internal/app/role"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RegisterAPIRoutes registers every REST route. limiter may be nil.
func (h *APIHandler) RegisterAPIRoutes(router *gin.Engine, authMiddleware *middleware.AuthMiddleware, limiter *middleware.RateLimiter) {
	api := router.Group("/api")
	limited := limiter.Middleware()
	anyUser := authMiddleware.WithAuthCheck()

	// ============ Plans (public) ============
	plans := api.Group("/plans")
	{
		plans.GET("", h.GetPlans)
		plans.GET("/:key", h.GetPlan)
	}

	// ============ Submissions ============
	submissions := api.Group("/submissions")
	submissions.Use(anyUser)
	{
		submissions.GET("", h.ListSubmissions)
		submissions.GET("/:id", h.GetSubmission)
		submissions.POST("", limited, h.CreateSubmission)
		submissions.PUT("/:id", limited, h.UpdateSubmission)
		submissions.PUT("/:id/documents/:key", limited, h.LinkDocument)

		submissions.POST("/:id/payment/order", limited, h.CreateOrder)
		submissions.POST("/:id/payment/confirm", limited, h.ConfirmPayment)
		submissions.POST("/:id/finalize", limited, h.Finalize)
	}

	api.POST("/files", anyUser, limited, h.UploadFile)

	// ============ Support ============
	support := api.Group("/support")
	support.Use(authMiddleware.WithAuthCheck(role.Support, role.Admin))
	{
		support.GET("/submissions/stuck", h.ListStuckSubmissions)
		support.GET("/submissions/:id/documents/:key/url", h.GetDocumentURL)
	}

	// ============ Authentication ============
	auth := api.Group("/auth")
	{
		auth.POST("/register", limited, h.AuthHandler.RegisterUser)
		auth.POST("/login", limited, h.AuthHandler.LoginUser)

		auth.GET("/profile", anyUser, h.AuthHandler.GetUserProfile)
		auth.POST("/logout", anyUser, h.AuthHandler.LogoutUser)
	}

	// Provider callbacks, authenticated by signature
	async := api.Group("/async")
	{
		async.POST("/payments", h.PaymentWebhook)
	}

	router.GET("/ping", h.Ping)
}

// Ping reports liveness, and redis reachability when redis is configured
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ping [get]
func (h *APIHandler) Ping(ctx *gin.Context) {
	if h.RedisClient != nil {
		if err := h.RedisClient.Ping(ctx.Request.Context()); err != nil {
			logrus.WithError(err).Warn("ping: redis unreachable")
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"message": "redis unavailable"})
			return
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "pong"})
}
