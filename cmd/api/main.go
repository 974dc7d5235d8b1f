package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/crestrock/storefront/internal/config"
	"github.com/crestrock/storefront/internal/email"
	"github.com/crestrock/storefront/internal/handler"
	"github.com/crestrock/storefront/internal/middleware"
	"github.com/crestrock/storefront/internal/payment"
	"github.com/crestrock/storefront/internal/reconcile"
	"github.com/crestrock/storefront/internal/repository"
	"github.com/crestrock/storefront/internal/service"
	"github.com/crestrock/storefront/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	if cfg.Server.AutoMigrate {
		if err := repository.Migrate(ctx, dbPool); err != nil {
			log.Error("migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Event publishing
	events := worker.Fanout{worker.NewAMQPPublisher(amqpCh)}
	if cfg.Kafka.Enabled() {
		kafkaWriter := worker.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaWriter.Close()
		events = append(events, worker.NewKafkaPublisher(kafkaWriter))
		log.Info("mirroring events to Kafka", "topic", cfg.Kafka.Topic)
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	notificationRepo := repository.NewNotificationRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, redisClient, events, log)
	cartSvc := service.NewCartService(productRepo)
	orderSvc := service.NewOrderService(orderRepo, events, log)
	notificationSvc := service.NewNotificationService(notificationRepo)
	statsSvc := service.NewStatsService(orderRepo, productRepo, notificationRepo)

	if created, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Error("bootstrap admin", "error", err)
		os.Exit(1)
	} else if created {
		log.Info("bootstrap admin created", "email", cfg.Admin.Email)
	}

	if cfg.Catalog.SeedSample {
		samples, err := service.SampleProducts()
		if err != nil {
			log.Error("load sample catalog", "error", err)
			os.Exit(1)
		}
		if _, err := productSvc.SeedIfEmpty(ctx, samples); err != nil {
			log.Error("seed sample catalog", "error", err)
			os.Exit(1)
		}
	}

	// Reconciliation
	gateway := payment.NewClient(cfg.Payment.APIURL, cfg.Payment.Timeout)
	deduper := reconcile.NewRedisDeduper(redisClient, cfg.Reconcile.NotifiedTTL)
	mailer := newMailer(cfg.Email, log)
	newController := func() *reconcile.Controller {
		return reconcile.New(reconcile.Deps{
			Store:   orderSvc,
			Gateway: gateway,
			Mailer:  mailer,
			Deduper: deduper,
			Log:     log,
		}, reconcile.Options{
			PollInterval:    cfg.Reconcile.PollInterval,
			PollMaxDuration: cfg.Reconcile.PollMaxDuration,
			OrderLinkBase:   cfg.Email.StorefrontURL,
		})
	}

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc)
	orderH := handler.NewOrderHandler(orderSvc, cartSvc)
	checkoutH := handler.NewCheckoutHandler(cartSvc, orderSvc, newController, cfg.WhatsApp.Number, log)
	streamH := handler.NewStreamHandler(orderSvc, newController)
	paymentH := handler.NewPaymentHandler(orderSvc, log)
	notificationH := handler.NewNotificationHandler(notificationSvc, statsSvc)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn, gateway)

	// Worker
	eventWorker := worker.NewEventWorker(amqpCh, notificationSvc, redisClient, log)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, cfg.RateLimit.Expiry)
	requireAdmin := []gin.HandlerFunc{middleware.AuthMiddleware(authSvc), middleware.AdminOnly()}

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/login", authH.Login)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)

		adminProducts := products.Group("", requireAdmin...)
		adminProducts.POST("", productH.Create)
		adminProducts.PUT("/:id", productH.Update)
		adminProducts.DELETE("/:id", productH.Delete)

		v1.POST("/cart/quote", cartH.Quote)
		v1.POST("/checkout", middleware.RateLimit(limiter), checkoutH.Checkout)

		orders := v1.Group("/orders")
		orders.POST("", middleware.RateLimit(limiter), orderH.Create)
		orders.GET("/:id", orderH.Get)
		orders.PUT("/:id/payment-request", middleware.RateLimit(limiter), orderH.AttachPaymentRequest)
		orders.GET("/:id/events", streamH.Events)

		v1.POST("/payments/callback", paymentH.Callback)

		admin := v1.Group("/admin", requireAdmin...)
		admin.GET("/me", authH.Me)
		admin.POST("/users", authH.CreateAdmin)
		admin.GET("/orders", orderH.List)
		admin.PATCH("/orders/:id/status", orderH.UpdateStatus)
		admin.GET("/notifications", notificationH.List)
		admin.PATCH("/notifications/:id/read", notificationH.MarkRead)
		admin.POST("/notifications/read-all", notificationH.MarkAllRead)
		admin.GET("/stats", notificationH.Stats)
	}

	if err := eventWorker.Start(ctx); err != nil {
		log.Error("start event worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	eventWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}

// newMailer returns nil when EmailJS is not configured; controllers then
// skip the confirmation email.
func newMailer(cfg config.EmailConfig, log *slog.Logger) email.Sender {
	if !cfg.Enabled() {
		log.Warn("EmailJS not configured, confirmation emails disabled")
		return nil
	}
	mailer, err := email.NewEmailJS(email.EmailJSConfig{
		Endpoint:   cfg.Endpoint,
		ServiceID:  cfg.ServiceID,
		TemplateID: cfg.TemplateID,
		PublicKey:  cfg.PublicKey,
		PrivateKey: cfg.PrivateKey,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		log.Warn("EmailJS disabled", "error", err)
		return nil
	}
	return mailer
}
