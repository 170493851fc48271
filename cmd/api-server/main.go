// Package main API Server 入口
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

	"workerbee/internal/apiserver/auth"
	"workerbee/internal/apiserver/server"
	"workerbee/internal/config"
	"workerbee/internal/shared/eventbus"
	redisbus "workerbee/internal/shared/eventbus/redis"
	"workerbee/internal/shared/storage"
	"workerbee/internal/shared/storage/driver/postgres"
	"workerbee/internal/shared/storage/driver/sqlite"
	"workerbee/internal/shared/storage/memstore"
	"workerbee/internal/shared/storage/mongostore"
	"workerbee/internal/shared/storage/repository"
	"workerbee/internal/shared/storage/sheetstore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 叠加 YAML）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// 初始化存储层
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage backend: %v", err)
	}
	defer store.Close()
	log.Printf("Storage backend ready [driver=%s]", cfg.DBDriver)

	// 初始化事件总线（Redis Streams 支持多实例，未启用时退化为进程内总线）
	bus, err := openEventBus(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to event bus: %v", err)
	}
	defer bus.Close()

	// 初始化 Handler
	h := server.NewHandler(store, bus, server.Options{
		AuthConfig:     auth.Config{JWTSecret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL},
		StrictStatus:   cfg.StrictStatus,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// 启动 WebSocket 网关（订阅任务事件并推送给客户端）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := h.Gateway().Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Task gateway stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openStore 根据配置选择存储后端
func openStore(cfg *config.Config) (storage.PersistentStore, error) {
	switch cfg.DBDriver {
	case config.DriverMongoDB:
		return mongostore.NewStore(cfg.MongoURI, cfg.MongoDBName)

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		dialect := sqlite.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return repository.NewStore(db, dialect), nil

	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialect := postgres.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return repository.NewStore(db, dialect), nil

	case config.DriverSheets:
		return sheetstore.NewStore(cfg.SheetsURL, cfg.SheetsAPIKey, cfg.SheetsTimeout), nil

	case config.DriverMemory:
		return memstore.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}

// openEventBus 根据配置选择事件总线
func openEventBus(cfg *config.Config) (eventbus.EventBus, error) {
	if !cfg.RedisEnabled {
		log.Println("Redis disabled, using in-process event bus")
		return eventbus.NewLocal(), nil
	}
	bus, err := redisbus.NewBus(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to Redis event bus [addr=%s]", cfg.RedisAddr)
	return bus, nil
}
