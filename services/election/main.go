package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/events"
	"github.com/pavitra93/go-election-system/shared/middleware"
	"github.com/pavitra93/go-election-system/shared/notify"
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

	notifier, err := notify.New(cfg)
	if err != nil {
		log.Fatal("Failed to initialize notifier:", err)
	}

	opts := election.Options{
		CapabilitySecret: cfg.CapabilitySecret,
		VotingSessionTTL: cfg.VotingSessionTTL,
		TokenTTL:         cfg.TokenTTL,
		TokenRateWindow:  cfg.TokenRateWindow,
		VerifyLinkBase:   cfg.PublicBaseURL + "/api/verify-email",
		VotingLinkBase:   cfg.ClientVoteURL,
		CodeDigits:       cfg.CodeDigits,
		CodeMaxAttempts:  cfg.CodeMaxAttempts,
		Notifier:         notifier,
	}

	if cfg.KafkaBroker != "" {
		publisher := events.NewKafkaPublisher(events.Config{Broker: cfg.KafkaBroker, Topic: cfg.KafkaBallotTopic})
		defer publisher.Close()
		opts.Publisher = publisher
	} else {
		logrus.Warn("KAFKA_BROKER not set, ballot events will not be published")
	}

	// Redis backs admin session revocation and the verification throttle.
	// Without it both degrade instead of failing startup.
	var sessions middleware.SessionStore
	var limiter middleware.Limiter
	store, err := utils.NewRedisStore(cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		logrus.WithError(err).Warn("Redis unavailable, running without throttling or session revocation")
	} else {
		defer store.Close()
		sessions = store
		limiter = store
	}

	core := election.NewCore(db, opts)
	router := setupRouter(&server{core: core, cfg: cfg}, db, middleware.NewAuthMiddleware(cfg.JWTSecret, sessions), limiter)

	port := config.ServicePort("ELECTION_SERVICE_PORT", "8002")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.Infof("Election service starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start election service")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down election service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}
