package handler

import (
	"net/http"
	"time"

	"github.com/Krisp140/sebi/internal/middleware"
	"github.com/Krisp140/sebi/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultAllowedOrigin = "http://localhost:3000"

// NewRouter создает gin.Engine с общими middleware и /health.
// Маршруты API регистрируются отдельно через ComicHandler.RegisterRoutes.
func NewRouter(logger *zap.Logger, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.GinZapLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{defaultAllowedOrigin}
		logger.Info("CORSAllowedOrigins not set, allowing default", zap.String("origin", defaultAllowedOrigin))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader, SessionIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, SessionIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	return router
}
