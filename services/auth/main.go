package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

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

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := config.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	h := &handlers{db: db, secret: cfg.JWTSecret, tokenTTL: cfg.AdminTokenTTL, cost: bcrypt.DefaultCost}
	var sessions middleware.SessionStore
	store, err := utils.NewRedisStore(cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		logrus.WithError(err).Warn("Redis unavailable, admin tokens cannot be revoked before expiry")
	} else {
		defer store.Close()
		h.sessions = store
		sessions = store
	}

	router := setupRouter(db, h, middleware.NewAuthMiddleware(cfg.JWTSecret, sessions))

	port := config.ServicePort("AUTH_SERVICE_PORT", "8001")
	logrus.Infof("Auth service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start auth service:", err)
	}
}

func setupRouter(db *gorm.DB, h *handlers, am *middleware.AuthMiddleware) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.Instrument())

	router.GET("/health", func(c *gin.Context) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			utils.ServiceUnavailableResponse(c, "Database unavailable")
			return
		}
		utils.OKResponse(c, "Auth service is healthy", nil)
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/signup", h.signup)
		auth.POST("/login", h.login)
		auth.POST("/logout", am.RequireAuth(), h.logout)
		auth.GET("/me", am.RequireAuth(), h.me)
		auth.DELETE("/account", am.RequireAuth(), h.deleteAccount)
	}
	return router
}
