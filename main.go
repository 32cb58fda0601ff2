package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dayvhiid/Simple-E-commerce-API/cache"
	"github.com/Dayvhiid/Simple-E-commerce-API/common/logger"
	"github.com/Dayvhiid/Simple-E-commerce-API/config"
	"github.com/Dayvhiid/Simple-E-commerce-API/controllers"
	"github.com/Dayvhiid/Simple-E-commerce-API/database"
	"github.com/Dayvhiid/Simple-E-commerce-API/kafka"
	"github.com/Dayvhiid/Simple-E-commerce-API/middleware"
	aws_pkg "github.com/Dayvhiid/Simple-E-commerce-API/pkg/aws"
	"github.com/Dayvhiid/Simple-E-commerce-API/providers"
	"github.com/Dayvhiid/Simple-E-commerce-API/repository"
	"github.com/Dayvhiid/Simple-E-commerce-API/routes"
	"github.com/Dayvhiid/Simple-E-commerce-API/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "storefront-api"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog, _ := zap.NewProduction()
		bootLog.Fatal("Failed to load configuration", zap.Error(err))
	}

	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSEndpoint)

	// --- 1. Logging ---
	var cwWriter io.Writer
	if cfg.CloudWatchEnabled && awsErr == nil {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.LogGroupName, serviceName)
		if err != nil {
			os.Stderr.WriteString("CloudWatch logs client init failed (non-fatal): " + err.Error() + "\n")
		} else {
			cwWriter = cwLogs
		}
	}
	log, err := logger.New(cfg.AppEnv, cwWriter)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if awsErr != nil {
		log.Warn("AWS config unavailable, CloudWatch and SNS disabled", zap.Error(awsErr))
	}

	// --- 2. Storage ---
	mongoClient, db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatal("Failed to ensure indexes", zap.Error(err))
	}

	var productCache services.ProductCache
	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, product cache disabled", zap.Error(err))
	} else if redisClient != nil {
		productCache = cache.NewProductCache(redisClient, cfg.ProductCacheTTL, log)
	}

	users := repository.NewUserRepository(db)
	products := repository.NewProductRepository(db)
	carts := repository.NewCartRepository(db)
	orders := repository.NewOrderRepository(db)

	// --- 3. Outbound integrations ---
	var metrics *aws_pkg.MetricsClient
	if awsErr == nil {
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.CloudWatchEnabled)
	}

	events, closeEvents := newEventPublisher(cfg, awsCfg, awsErr, log)
	defer closeEvents()

	gateway := providers.NewFlutterwaveProvider(cfg.FlutterwaveBaseURL, cfg.FlutterwaveSecretKey, cfg.GatewayTimeout)

	// --- 4. Services & controllers ---
	tokens := services.NewTokenService(cfg.JWTSecret)
	authService := services.NewAuthService(users, tokens, log)
	productService := services.NewProductService(products, productCache, log)
	cartService := services.NewCartService(carts, products, log)
	checkoutService := services.NewCheckoutService(services.CheckoutConfig{
		Currency:      cfg.PaymentCurrency,
		FrontendURL:   cfg.FrontendURL,
		WebhookSecret: cfg.FlutterwaveSecretHash,
	}, services.CheckoutDeps{
		Carts:    carts,
		Products: products,
		Orders:   orders,
		Users:    users,
		Provider: gateway,
		Events:   events,
		Metrics:  metrics,
		Cache:    productCache,
		Logger:   log,
	})

	// --- 5. HTTP server & middleware ---
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	routes.RegisterRoutes(r, routes.Controllers{
		Auth:    controllers.NewAuthController(authService, log),
		Product: controllers.NewProductController(productService, log),
		Cart:    controllers.NewCartController(cartService, log),
		Payment: controllers.NewPaymentController(checkoutService, log),
	}, tokens)

	// --- 6. Graceful shutdown ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Storefront API starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down Storefront API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := database.Close(mongoClient); err != nil {
		log.Error("Failed to close MongoDB", zap.Error(err))
	}
	log.Info("Storefront API stopped gracefully")
}

// newEventPublisher picks the payment event sink named by EVENT_BUS. The returned func
// releases its resources.
func newEventPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsErr error, log *zap.Logger) (services.EventPublisher, func()) {
	switch cfg.EventBus {
	case config.EventBusSNS:
		if awsErr != nil {
			log.Warn("SNS event bus requested without AWS config, payment events disabled")
			return services.NopEventPublisher{}, func() {}
		}
		return services.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN), func() {}
	case config.EventBusKafka:
		producer := kafka.NewPaymentEventProducer(cfg.KafkaBrokers, cfg.KafkaPaymentTopic)
		return producer, func() {
			if err := producer.Close(); err != nil {
				log.Error("Failed to close Kafka producer", zap.Error(err))
			}
		}
	default:
		return services.NopEventPublisher{}, func() {}
	}
}
