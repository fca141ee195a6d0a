package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/metrics"
	"github.com/pavitra93/go-election-system/shared/middleware"
	"github.com/pavitra93/go-election-system/shared/utils"
)

func main() {
	config.LoadEnv()
	config.ConfigureLogging()

	cfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	var sessions middleware.SessionStore
	store, err := utils.NewRedisStore(cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		logrus.Warnf("Failed to connect to Redis, session revocation checked by services only: %v", err)
	} else {
		defer store.Close()
		sessions = store
	}

	clients := &ServiceClients{
		AuthService:     NewServiceClient("auth_service", envOr("AUTH_SERVICE_URL", "http://localhost:8001")),
		ElectionService: NewServiceClient("election_service", envOr("ELECTION_SERVICE_URL", "http://localhost:8002")),
	}
	router := setupRouter(clients, middleware.NewAuthMiddleware(cfg.JWTSecret, sessions))

	port := config.ServicePort("API_GATEWAY_PORT", "8080")
	logrus.Infof("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start API Gateway:", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupRouter(clients *ServiceClients, am *middleware.AuthMiddleware) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.Instrument())

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Voting-Capability")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		status, healthy := clients.GetServiceStatus()
		if !healthy {
			utils.SuccessResponse(c, http.StatusServiceUnavailable, "Some services are unavailable", status)
			return
		}
		utils.OKResponse(c, "API Gateway is healthy", status)
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/signup", clients.AuthService.ProxyRequest)
		auth.POST("/login", clients.AuthService.ProxyRequest)
		auth.POST("/logout", am.RequireAuth(), clients.AuthService.ProxyRequest)
		auth.GET("/me", am.RequireAuth(), clients.AuthService.ProxyRequest)
		auth.DELETE("/account", am.RequireAuth(), clients.AuthService.ProxyRequest)
	}

	api := router.Group("/api")
	{
		api.GET("/verify-email/:token", clients.ElectionService.ProxyRequest)
		api.Any("/elections/*path", clients.ElectionService.ProxyRequest)
		api.Any("/admin/*path", am.RequireAuth(), clients.ElectionService.ProxyRequest)
	}

	return router
}
