package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/api/handlers"
	"github.com/datachat/backend/internal/auth"
	cache "github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/chunker"
	"github.com/datachat/backend/internal/embedding"
	"github.com/datachat/backend/internal/engine"
	"github.com/datachat/backend/internal/ingestion"
	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/middleware/authmw"
	"github.com/datachat/backend/internal/middleware/ratelimit"
	"github.com/datachat/backend/internal/middleware/security"
	"github.com/datachat/backend/internal/middleware/validation"
	"github.com/datachat/backend/internal/storage/sqlite"
	"github.com/datachat/backend/internal/usage"
	"github.com/datachat/backend/internal/vector/milvus"
	"github.com/datachat/backend/pkg/config"
	appLogger "github.com/datachat/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting DataChat API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *cache.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTLSec)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		appLogger.Fatal("Failed to create embedding service", zap.Error(err))
	}

	generator, err := llm.New(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Embedding.Dimension, embedder, redisClient)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	textChunker, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		appLogger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, textChunker, cfg.Auth.MaxFileBytes)
	qaEngine := engine.New(milvusClient, generator, cfg.Retrieval.TopK, cfg.Retrieval.MaxDistance, cfg.LLM.Temperature)
	gate := usage.NewGate(sqliteClient)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMin)
	if err != nil {
		appLogger.Fatal("Failed to create token manager", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	authHandler := handlers.NewAuthHandler(sqliteClient, tokens)
	chatHandler := handlers.NewChatHandler(qaEngine, sqliteClient, redisClient, gate)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient, milvusClient, redisClient, qaEngine, gate)
	systemHandler := handlers.NewSystemHandler(sqliteClient, milvusClient, generator, qaEngine)
	wsHandler := handlers.NewWebSocketHandler(qaEngine, gate)

	api := app.Group("/api/v1")

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Get("/auth/me", authmw.RequireAuth(tokens), authHandler.Me)

	api.Post("/chat", authmw.RequireAuth(tokens), chatHandler.HandleChat)
	api.Get("/chat/history", authmw.RequireAuth(tokens), chatHandler.GetChatHistory)
	api.Post("/chat/clear", authmw.RequireAuth(tokens), chatHandler.ClearConversation)

	api.Post("/documents/upload", authmw.RequireAuth(tokens), documentHandler.UploadDocuments)
	api.Get("/documents", authmw.RequireAuth(tokens), documentHandler.ListDocuments)
	api.Delete("/documents/:id", authmw.RequireAuth(tokens), documentHandler.DeleteDocument)
	api.Post("/documents/reset", authmw.RequireAuth(tokens), documentHandler.ResetKnowledgeBase)

	api.Get("/health", systemHandler.Health)
	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})
	api.Get("/stats", authmw.RequireAuth(tokens), systemHandler.Stats)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", authmw.RequireAuthUpgrade(tokens), websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
