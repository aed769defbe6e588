package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-service/config"
	"pos-service/internal/api"
	"pos-service/internal/broker"
	"pos-service/internal/redisclient"
	"pos-service/internal/service"
	"pos-service/internal/store"
	"pos-service/internal/store/memory"
	"pos-service/internal/util"
	"pos-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pos service")

	tp, err := util.InitTracer("pos-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ctx := context.Background()
	loc := cfg.Business.Location()

	var repo store.Repository
	switch cfg.Database.Driver {
	case "memory":
		repo = memory.New()
		log.Println("Using in-memory store")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		repo = db
		log.Println("Database connected")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	var publisher broker.Publisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.Println("Kafka producer initialized")
	}
	eventPublisher := broker.NewEventPublisher(publisher)

	settingsService := service.NewSettingsService(repo)
	authService := service.NewAuthService(repo, redisClient, service.AuthConfig{
		Secret:          cfg.Auth.JWTSecret,
		TokenTTL:        cfg.Auth.TokenTTL,
		ResetTTL:        cfg.Auth.ResetTTL,
		MaxFailedLogins: cfg.Auth.MaxFailedLogins,
		FailureWindow:   cfg.Auth.FailureWindow,
	})
	catalogService := service.NewCatalogService(repo, settingsService, cfg.Business.ReorderDefaultQty)
	saleService := service.NewSaleService(repo, settingsService, eventPublisher)
	orderService := service.NewPurchaseOrderService(repo, redisClient, eventPublisher, cfg.Business.LockTTL, loc)
	cashService := service.NewCashService(repo, settingsService, redisClient, eventPublisher, cfg.Business.LockTTL, loc)
	alertService := service.NewAlertService(repo, settingsService)

	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var alertWorker *worker.AlertWorker
	if cfg.Kafka.Enabled {
		alertConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
		alertWorker = worker.NewAlertWorker(alertConsumer, alertService)
		go func() {
			if err := alertWorker.Start(workerCtx); err != nil {
				log.Printf("Alert worker error: %v", err)
			}
		}()
	}

	reminder, err := worker.NewClosingReminder(cfg.Business.ClosingReminderCron, loc, cashService)
	if err != nil {
		log.Fatalf("Failed to schedule closing reminder: %v", err)
	}
	reminder.Start()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Auth:     authService,
		Catalog:  catalogService,
		Sales:    saleService,
		Orders:   orderService,
		Cash:     cashService,
		Settings: settingsService,
		Alerts:   alertService,
	}, loc,
		api.ReadinessCheck{Name: "database", Check: repo.Ping},
		api.ReadinessCheck{Name: "redis", Check: redisClient.Ping},
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	reminder.Stop()
	workerCancel()
	if alertWorker != nil {
		alertWorker.Stop()
	}

	log.Println("Server exited")
}
