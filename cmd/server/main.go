package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"returns-reconciliation-service/internal/config"
	"returns-reconciliation-service/internal/controller"
	"returns-reconciliation-service/internal/logger"
	"returns-reconciliation-service/internal/middleware"
	"returns-reconciliation-service/internal/rabbit"
	"returns-reconciliation-service/internal/repository"
	"returns-reconciliation-service/internal/service"
	"returns-reconciliation-service/internal/source"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Canonical store
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := repository.OpenPostgres(startCtx, repository.DatabaseConfig{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		LogLevel:     cfg.LogLevel,
	}, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := repository.Migrate(db, log); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer sqlDB.Close()
	store := repository.NewStore(db)

	// Status and sync journal
	mongoClient, err := mongo.Connect(startCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("mongo", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	journal := repository.NewMongoJournal(mongoClient.Database(cfg.MongoDBName))
	if err := journal.EnsureIndexes(startCtx); err != nil {
		log.Warn("mongo indexes", zap.Error(err))
	}

	// Sync window lock
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	lock := repository.NewRedisSyncLock(rdb, cfg.SyncLockTTL)

	// Services
	engine := service.NewEngine(service.NewStoreRunner(store), log.Named("engine"))
	coordinator := service.NewCoordinator(source.DefaultRegistry(), engine, lock, journal, log.Named("ingest"))
	returnsService := service.NewReturnsService(store, journal, log.Named("returns"))
	formsService := service.NewFormsService(store, log.Named("forms"))
	authService := service.NewAuthService(cfg.AuthURL)

	// RabbitMQ
	conn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbitmq dial", zap.Error(err))
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbitmq channel", zap.Error(err))
	}
	consumer := rabbit.NewRawPayloadConsumer(coordinator, log.Named("rabbit"))
	if err := rabbit.SetupConsumers(ctx, ch, consumer, log.Named("rabbit")); err != nil {
		log.Fatal("rabbitmq consumer", zap.Error(err))
	}

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logger.Recovery(log), logger.GinMiddleware(log))
	controller.Routes{
		Returns: controller.NewReturnsController(returnsService, coordinator, journal, log),
		Forms:   controller.NewFormsController(formsService, log),
		Auth:    middleware.AuthMiddleware(authService),
		Health:  controller.Health(sqlDB),
	}.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("returns reconciliation service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}
