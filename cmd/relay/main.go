package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/config"
	"github.com/dimasfr/careerlink-api/internal/database"
	"github.com/dimasfr/careerlink-api/internal/handler"
	"github.com/dimasfr/careerlink-api/internal/middleware"
	"github.com/dimasfr/careerlink-api/internal/router"
	"github.com/dimasfr/careerlink-api/internal/service"
	"github.com/dimasfr/careerlink-api/pkg/insight"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	insightClient, err := insight.New(insight.Config{
		BaseURL: cfg.InsightBaseURL,
		Timeout: cfg.InsightTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create insight client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	verifier := auth.NewVerifier(cfg.JWTSecret)

	activityLog := service.NewActivityLog(service.DefaultActivityCapacity)
	stream := service.NewActivityStream(activityLog, logger)
	insightService := service.NewInsightService(insightClient, stream, redisClient, cfg.AnalyticsCacheTTL, validate, logger)
	relayService := service.NewRelayService(service.RelayOptions{
		Stream:      stream,
		Insight:     insightService,
		Validator:   validate,
		Logger:      logger,
		Redis:       redisClient,
		NATS:        natsConn,
		ChannelBase: cfg.ChannelBase,
	})

	relayHandler := handler.NewRelayHandler(relayService, verifier, logger)
	insightHandler := handler.NewInsightHandler(insightService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:        &logger,
		AllowedOrigin: cfg.AllowedOrigin,
	})
	router.Register(app, cfg, router.Dependencies{
		RelayHandler:   relayHandler,
		InsightHandler: insightHandler,
		JWTMiddleware:  middleware.JWTProtected(verifier),
		RateLimit:      middleware.RateLimit("insight", 30, time.Minute),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relayService.Start(ctx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
