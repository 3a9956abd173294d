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

	"support_chat/internal/config"
	"support_chat/internal/handler"
	"support_chat/internal/middleware"
	"support_chat/internal/realtime"
	"support_chat/internal/repository"
	"support_chat/internal/service"
	"support_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)
	defer appLogger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Подключение к PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Invalid database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := repository.EnsureSchema(ctx, dbPool); err != nil {
			appLogger.Fatal("Failed to apply schema", "error", err)
		}
		appLogger.Info("Database schema applied")
	}

	// Подключение к Redis (опционально при REALTIME_DRIVER=memory)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	// Шина событий изменений и локальный хаб подписок
	bus, err := newBus(cfg, rdb, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to init realtime bus", "error", err)
	}
	defer bus.Close()

	hub := realtime.NewHub(cfg.Realtime.SubscriptionBuffer, appLogger)
	defer hub.Close()

	if err := bus.StartForwarder(ctx, hub.Broadcast); err != nil {
		appLogger.Fatal("Failed to start realtime forwarder", "error", err)
	}
	appLogger.Info("Realtime started", "driver", cfg.Realtime.Driver)

	// Инициализация репозиториев
	repos := repository.NewRepositories(dbPool, rdb, appLogger)

	// Инициализация сервисов
	services := service.NewServices(repos, bus, cfg, appLogger)

	// Инициализация middleware
	authMiddleware := middleware.NewAuthMiddleware(services.AgentAuth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	// Инициализация handlers
	checks := map[string]handler.Pinger{"postgres": dbPool.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	handlers := handler.NewHandlers(services, hub, checks, cfg, appLogger)

	// Настройка роутера
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	// Запуск HTTP сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// WebSocket соединения захвачены и Shutdown их не ждет: закрываем подписки сами
	stop()
	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func newBus(cfg *config.Config, rdb *redis.Client, log logger.Logger) (realtime.Bus, error) {
	if cfg.Realtime.Driver == "redis" {
		return realtime.NewRedisBus(rdb, cfg.Realtime.Channel, log)
	}
	return realtime.NewLocalBus(), nil
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	// Health check
	router.GET("/health", handlers.Health.Check)

	identity := middleware.Identity(cfg.Identity)
	requireAgent := authMiddleware.RequireAgent()

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Клиент: идентификатор из cookie/заголовка, без аутентификации
		customer := v1.Group("/conversations")
		customer.Use(identity)
		{
			customer.POST("", rateLimitMiddleware.Limit("conversations"), handlers.Conversation.Create)
			customer.GET("", handlers.Conversation.List)
			customer.GET("/:id", handlers.Conversation.Get)
			customer.GET("/:id/messages", handlers.Conversation.ListMessages)
			customer.POST("/:id/messages", rateLimitMiddleware.Limit("messages"), handlers.Conversation.SendMessage)
			customer.POST("/:id/read", handlers.Conversation.MarkRead)
		}

		// Агенты: публичные endpoints
		agents := v1.Group("/agents")
		{
			agents.POST("/register", rateLimitMiddleware.Limit("register"), handlers.AgentAuth.Register)
			agents.POST("/login", rateLimitMiddleware.Limit("login"), handlers.AgentAuth.Login)
			agents.POST("/refresh", handlers.AgentAuth.Refresh)
			agents.POST("/logout", handlers.AgentAuth.Logout)
			agents.GET("", requireAgent, handlers.AgentAuth.List)
		}

		// Панель агента
		agent := v1.Group("/agent")
		agent.Use(requireAgent)
		{
			agent.GET("/conversations", handlers.AgentConversation.List)
			agent.GET("/conversations/:id", handlers.AgentConversation.Get)
			agent.POST("/conversations/:id/assign", handlers.AgentConversation.Assign)
			agent.PUT("/conversations/:id/status", handlers.AgentConversation.UpdateStatus)
			agent.POST("/conversations/:id/messages", handlers.AgentConversation.SendMessage)
			agent.POST("/conversations/:id/read", handlers.AgentConversation.MarkRead)
			agent.GET("/stats", handlers.Stats.GetDashboard)
		}
	}

	// WebSocket: снимки живых представлений
	ws := router.Group("/ws")
	{
		ws.GET("/conversations", identity, handlers.WebSocket.CustomerConversations)
		ws.GET("/conversations/:id", identity, handlers.WebSocket.CustomerConversation)
		ws.GET("/agent/conversations", requireAgent, handlers.WebSocket.AgentConversations)
		ws.GET("/agent/conversations/:id", requireAgent, handlers.WebSocket.AgentConversation)
	}

	return router
}
