package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Krisp140/sebi/internal/comic"
	"github.com/Krisp140/sebi/internal/config"
	"github.com/Krisp140/sebi/internal/gateway"
	"github.com/Krisp140/sebi/internal/handler"
	"github.com/Krisp140/sebi/internal/logger"
	"github.com/Krisp140/sebi/internal/messaging"
	"github.com/Krisp140/sebi/internal/pipeline"
	"github.com/Krisp140/sebi/internal/session"
	"github.com/Krisp140/sebi/internal/story"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

const (
	// Флаг занятости сессии в Redis переживает упавший процесс не дольше этого времени.
	sessionLockTTL = 15 * time.Minute

	maxRetries = 20
	retryDelay = 3 * time.Second
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Service:     "comic-generator",
		Env:         cfg.Env,
		Development: cfg.Env == "development",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized successfully", zap.String("logLevel", cfg.LogLevel))

	// --- Model gateways ---
	textClient, err := gateway.NewTextClient(cfg, log)
	if err != nil {
		zap.L().Fatal("Failed to create text model client", zap.Error(err))
	}
	imageClient := gateway.NewReplicateClient(cfg, log)
	imageOpts := gateway.ImageOptions{Steps: cfg.ImageInferenceSteps, Model: cfg.ImageModel}

	// --- Session store ---
	var sessions session.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		redisClient, err := setupRedis(cfg)
		if err != nil {
			zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL, sessionLockTTL, log)
	default:
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}
	zap.L().Info("Session store configured", zap.String("store", cfg.SessionStore))

	// --- Event publishing (optional) ---
	var events comic.Emitter
	if cfg.RabbitMQURL != "" {
		mqConn, err := connectRabbitMQ(cfg.RabbitMQURL, log)
		if err != nil {
			zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()

		mqChannel, err := mqConn.Channel()
		if err != nil {
			zap.L().Fatal("Failed to open RabbitMQ channel", zap.Error(err))
		}
		publisher, err := messaging.NewComicEventPublisher(mqChannel, cfg.ComicEventsExchange, log)
		if err != nil {
			zap.L().Fatal("Failed to create comic event publisher", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				zap.L().Warn("Failed to close comic event publisher", zap.Error(err))
			}
		}()
		events = publisher
	} else {
		zap.L().Info("RABBITMQ_URL not set, comic events are not published")
	}

	// --- Dependency Injection ---
	stories := story.NewGenerator(textClient, cfg.MaxPromptLength, log)
	panels := pipeline.New(imageClient, imageOpts, cfg.PipelineConcurrency, log)
	comicService := comic.NewService(stories, panels, sessions, events, log)
	comicHandler := handler.NewComicHandler(comicService, stories, imageClient, imageOpts, log)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := handler.NewRouter(log, cfg.CORSAllowedOrigins)
	p := ginprometheus.NewPrometheus("gin")
	comicHandler.RegisterRoutes(router)
	// Prometheus middleware применяется после регистрации роутов
	p.Use(router)

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Стриминговые ответы живут столько же, сколько генерация
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.ServerPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// setupRedis создает клиент Redis и ждет, пока он ответит на PING.
func setupRedis(cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	}
	zap.L().Info("Attempting to connect and ping Redis",
		zap.String("address", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("max_retries", maxRetries),
	)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		attempt := i + 1
		client := redis.NewClient(opts)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err == nil {
			zap.L().Info("Successfully connected and pinged Redis", zap.Int("attempt", attempt))
			return client, nil
		}

		_ = client.Close()
		lastErr = err
		zap.L().Warn("Redis ping failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}

// connectRabbitMQ подключается к RabbitMQ с несколькими попытками.
func connectRabbitMQ(rawURL string, log *zap.Logger) (*amqp.Connection, error) {
	log.Info("Attempting to connect to RabbitMQ",
		zap.String("url", redactURL(rawURL)),
		zap.Int("max_retries", maxRetries),
		zap.Duration("retry_delay", retryDelay),
	)

	var err error
	for i := 0; i < maxRetries; i++ {
		attempt := i + 1
		var conn *amqp.Connection
		conn, err = amqp.Dial(rawURL)
		if err == nil {
			log.Info("Successfully connected to RabbitMQ", zap.Int("attempt", attempt))
			go func() {
				notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
				if closeErr := <-notifyClose; closeErr != nil {
					log.Error("RabbitMQ connection closed unexpectedly", zap.Error(closeErr))
				}
			}()
			return conn, nil
		}
		log.Warn("RabbitMQ connection failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
