package main

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/metrics"
	"github.com/pavitra93/go-election-system/shared/middleware"
	"github.com/pavitra93/go-election-system/shared/utils"
)

type server struct {
	core *election.Core
	cfg  *config.AppConfig
}

func setupRouter(s *server, db *gorm.DB, am *middleware.AuthMiddleware, limiter middleware.Limiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.Instrument())

	router.GET("/health", func(c *gin.Context) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			utils.ServiceUnavailableResponse(c, "Database unavailable")
			return
		}
		utils.OKResponse(c, "Election service is healthy", nil)
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")

	// Voter-facing routes
	throttle := middleware.Throttle(limiter, "verify", s.cfg.ThrottleLimit, s.cfg.ThrottleWindow)
	api.GET("/verify-email/:token", s.consumeToken)
	elections := api.Group("/elections/:tenant_id")
	{
		elections.POST("/verification/request", throttle, s.requestVerification)
		elections.POST("/verification/code", throttle, s.verifyCode)
		elections.POST("/votes", s.castVote)
		elections.GET("/candidates", s.publicCandidates)
		elections.GET("/results", s.publicResults)
		elections.GET("/results/:position", s.publicPositionResults)
	}

	// Administration routes, scoped to the tenant of the access token
	admin := api.Group("/admin")
	admin.Use(am.RequireAuth())
	{
		partitions := admin.Group("/partitions")
		partitions.POST("", s.createPartition)
		partitions.GET("", s.listPartitions)
		partitions.POST("/generate-code", s.generateCode)
		partitions.GET("/:code", s.getPartition)
		partitions.PATCH("/:code", s.updatePartition)
		partitions.DELETE("/:code", s.deletePartition)
		partitions.GET("/:code/voters", s.listPartitionVoters)
		partitions.POST("/:code/voters", s.bulkAssign)
		partitions.DELETE("/:code/voters/:matric_id", s.unassignVoter)

		voters := admin.Group("/voters")
		voters.POST("", s.enrollVoter)
		voters.POST("/bulk", s.enrollVoters)
		voters.POST("/reassign", s.bulkReassign)
		voters.GET("", s.listVoters)
		voters.GET("/stats", s.voterStats)
		voters.GET("/:matric_id", s.getVoter)
		voters.PATCH("/:matric_id", s.updateVoter)
		voters.DELETE("/:matric_id", s.deleteVoter)

		candidates := admin.Group("/candidates")
		candidates.POST("", s.addCandidate)
		candidates.GET("", s.listCandidates)
		candidates.GET("/positions", s.listPositions)
		candidates.POST("/ensure-void", s.ensureVoid)
		candidates.DELETE("/:id", s.deleteCandidate)

		admin.GET("/results", s.adminResults)
		admin.GET("/results/audit", s.auditResults)

		admin.POST("/links", s.generateLink)
		admin.GET("/links", s.listLinks)
	}

	return router
}
