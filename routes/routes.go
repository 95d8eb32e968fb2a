package routes

import (
	"net/http"
	"time"

	"atpkiosk/handlers"
	"atpkiosk/middleware"
	"atpkiosk/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		health := utils.GetHealthStatus()
		status := "ok"
		if !health.Healthy {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "message": "ATP kiosk agent", "health": health})
	})
}

// RegisterKioskRoutes sets up the endpoints the renderer drives the visit with.
func RegisterKioskRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	kiosk := r.Group("/api/kiosk")
	{
		kiosk.Use(middleware.RendererAuthMiddleware(hb.AuthSecret))
		kiosk.GET("/state", hb.GetStateHandler)
		kiosk.GET("/events", hb.StreamEventsHandler)
		kiosk.POST("/session/:sessionID", hb.OpenSessionHandler)
		kiosk.POST("/navigate", hb.NavigateHandler)
		kiosk.POST("/upload", hb.UploadHandler)
		kiosk.GET("/estimate", hb.EstimateHandler)
		kiosk.POST("/payment", hb.StartPaymentHandler)
		kiosk.GET("/checkout", hb.GetCheckoutHandler)
		kiosk.POST("/checkout/result", hb.CheckoutResultHandler)
		kiosk.DELETE("/notification", hb.DismissNotificationHandler)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	origins := hb.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowAll := len(origins) == 1 && origins[0] == "*"
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(hb.RatePerMin))

	RegisterHealthRoute(r)
	RegisterKioskRoutes(r, hb)
}
