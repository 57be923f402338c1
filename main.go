package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/sukruuzun/PayKript/config"
	"github.com/sukruuzun/PayKript/controllers"
	"github.com/sukruuzun/PayKript/database"
	"github.com/sukruuzun/PayKript/kafka"
	"github.com/sukruuzun/PayKript/logger"
	"github.com/sukruuzun/PayKript/middleware"
	"github.com/sukruuzun/PayKript/models"
	awspkg "github.com/sukruuzun/PayKript/pkg/aws"
	"github.com/sukruuzun/PayKript/repository"
	"github.com/sukruuzun/PayKript/routes"
	"github.com/sukruuzun/PayKript/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[Reconciler] Failed to load config: ", err)
	}

	logger.Initialize(cfg.Environment)
	defer logger.Log.Sync()
	zlog := logger.Log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Payment state store
	var repo repository.PaymentRepository
	if cfg.DBDriver == "memory" {
		repo = repository.NewMemoryPaymentRepo()
		zlog.Info("Using in-memory payment store")
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			zlog.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := db.AutoMigrate(&models.Payment{}); err != nil {
			zlog.Fatal("Failed to migrate Payment model", zap.Error(err))
		}
		repo = repository.NewGormPaymentRepo(db)
	}

	// Order-callback event transport
	var publisher services.EventPublisher
	switch cfg.EventTransport {
	case "sns":
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			zlog.Fatal("Failed to load AWS config", zap.Error(err))
		}
		publisher = awspkg.NewSNSEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN, zlog)
	default:
		producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.PaymentEventTopic, zlog)
		defer producer.Close()
		publisher = producer
	}

	// Remote processor client with explicit token handling
	tokens := services.NewTokenSource(cfg.ProcessorAPIURL, cfg.ProcessorAPIKey, cfg.ProcessorSecretKey)
	processor := services.NewProcessorClient(cfg.ProcessorAPIURL, tokens)

	metricsClient, err := awspkg.NewMetricsClient(ctx)
	if err != nil {
		zlog.Warn("CloudWatch metrics unavailable", zap.Error(err))
	}

	reconciler := services.NewReconciler(repo, processor, publisher, zlog)
	if metricsClient != nil {
		reconciler.WithMetrics(metricsClient)
	}
	dispatcher := services.NewDispatcher(reconciler, zlog)

	// Server-side expiry sweep: resolves deadlines even when no client polls.
	sweeper := services.NewExpiryWorker(repo, reconciler, cfg.SweepInterval, zlog)
	go sweeper.Start(ctx)

	if cfg.PaymentRequestTopic != "" {
		consumer := services.NewPaymentRequestConsumer(
			strings.Split(cfg.KafkaBrokers, ","),
			cfg.PaymentRequestTopic,
			cfg.ConsumerGroupID,
			repo,
			cfg.ConsumerTTL,
			zlog,
		)
		defer consumer.Close()
		go consumer.Start(ctx)
	}

	// HTTP server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.IPRateLimit(middleware.NewKeyedRateLimiter(rate.Every(time.Minute/100), 50, 5*time.Minute)))
	r.Use(middleware.MetricsMiddleware(metricsClient, "payment-reconciler"))

	pc := controllers.NewPaymentController(repo, reconciler, cfg.PaymentTTL, zlog)
	wc := controllers.NewWebhookController(cfg.WebhookSecret, dispatcher, zlog)
	wc.Metrics = metricsClient
	routes.RegisterRoutes(r, pc, wc, cfg.MerchantAPIKey)

	zlog.Info("Payment reconciler running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed", zap.Error(err))
	}
}
