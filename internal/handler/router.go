package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"dreamlets-server/internal/auth"
	"dreamlets-server/internal/middleware"
)

// RouterConfig carries the HTTP-level settings the router needs.
type RouterConfig struct {
	CORSAllowedOrigins []string
	GuestCookie        middleware.GuestCookieConfig

	// ServeLocalImages mounts the local image directory under the
	// public base URL. Off when object storage serves images itself.
	ServeLocalImages   bool
	ImageDir           string
	ImagePublicBaseURL string
}

// NewRouter assembles the gin engine: logging, metrics, CORS, identity
// resolution and the API routes.
func NewRouter(h *Handler, verifier *auth.JWTVerifier, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ZapLogging(logger))

	prom := ginprometheus.NewPrometheus("gin")
	prom.Use(router)

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.ServeLocalImages {
		router.Static(cfg.ImagePublicBaseURL, cfg.ImageDir)
	}

	api := router.Group("/api")
	api.Use(middleware.Identity(verifier, cfg.GuestCookie, logger))
	h.RegisterRoutes(api)

	return router
}
