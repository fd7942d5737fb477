package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/workhub/backend/internal/config"
	"github.com/workhub/backend/internal/db"
	"github.com/workhub/backend/internal/events"
	httpHandlers "github.com/workhub/backend/internal/http/handlers"
	httpRouter "github.com/workhub/backend/internal/http/router"
	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/logger"
	"github.com/workhub/backend/internal/repository"
	"github.com/workhub/backend/internal/service"
	"github.com/workhub/backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis необязателен: без него кэш деградирует до прямых чтений.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("main: redis недоступен, кэш отключён: %v", err)
			redisClient = nil
		}
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	cacheService := service.NewCacheService(redisClient)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	profileRepo := repository.NewProfileRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)

	// Вебсокеты и стоки событий.
	notificationService := service.NewNotificationService(notificationRepo)
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	var amqpPublisher *events.AMQPPublisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err = events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Printf("main: rabbitmq недоступен, события публикуются только в websocket: %v", err)
		} else {
			defer amqpPublisher.Close()
		}
	}
	var sink lifecycle.EventSink = events.NewHubSink(hub)
	if amqpPublisher != nil {
		sink = events.NewMultiSink(events.NewHubSink(hub), amqpPublisher)
	}

	// Движок жизненного цикла и пересчёт агрегатов.
	paymentService := service.NewPaymentService(paymentRepo)
	engine := lifecycle.NewEngine(projectRepo, profileRepo, paymentService, sink)
	recalculator := service.NewRecalculator(reviewRepo, profileRepo, projectRepo)

	// Сервисы.
	authService := service.NewAuthService(userRepo, profileRepo, tokenManager)
	projectService := service.NewProjectService(projectRepo, profileRepo, engine, cacheService, sink)
	profileService := service.NewProfileService(profileRepo, userRepo, cacheService)
	reviewService := service.NewReviewService(reviewRepo, projectRepo, recalculator)
	statsService := service.NewStatsService(projectRepo, profileRepo, recalculator, cacheService)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	profileHandler := httpHandlers.NewProfileHandler(profileService)
	projectHandler := httpHandlers.NewProjectHandler(projectService)
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService)
	reviewHandler := httpHandlers.NewReviewHandler(reviewService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	statsHandler := httpHandlers.NewStatsHandler(statsService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engineHTTP := httpRouter.SetupRouter(
		cfg,
		authHandler,
		profileHandler,
		projectHandler,
		paymentHandler,
		reviewHandler,
		notificationHandler,
		statsHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engineHTTP,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
