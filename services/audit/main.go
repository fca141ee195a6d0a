package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/metrics"
	"github.com/pavitra93/go-election-system/shared/utils"
)

func main() {
	config.LoadEnv()
	config.ConfigureLogging()

	cfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if cfg.KafkaBroker == "" {
		log.Fatal("KAFKA_BROKER must be set for the audit service")
	}

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(&AuditFinding{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	source := NewKafkaSource(cfg.KafkaBroker, cfg.KafkaBallotTopic, "ballot-auditor")
	defer source.Close()
	auditor := NewAuditor(db, source, time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go auditor.Consume(ctx)
	go auditor.RunSweeper(ctx)

	router := setupRouter(auditor)
	port := config.ServicePort("AUDIT_SERVICE_PORT", "8085")
	go func() {
		logrus.Infof("Audit service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			logrus.WithError(err).Fatal("Failed to start audit service")
		}
	}()

	<-ctx.Done()
	logrus.Info("Audit service stopping")
}

func setupRouter(a *Auditor) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Instrument())

	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Audit service is healthy", nil)
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/stats", func(c *gin.Context) {
		utils.OKResponse(c, "Audit statistics", a.Stats())
	})

	router.GET("/findings", func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if err != nil || limit < 1 || limit > 1000 {
			utils.BadRequestResponse(c, "limit must be between 1 and 1000")
			return
		}
		var tenantID *uuid.UUID
		if raw := c.Query("tenant_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid tenant_id")
				return
			}
			tenantID = &id
		}
		findings, err := a.Findings(c.Request.Context(), tenantID, limit)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to load findings")
			return
		}
		utils.OKResponse(c, "Audit findings", findings)
	})

	return router
}
