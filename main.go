package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go_stocksync/config"
	"go_stocksync/models"
	"go_stocksync/routes"
	"go_stocksync/scheduler"
	"go_stocksync/services/backup"
	"go_stocksync/services/cache"
	"go_stocksync/services/datafetcher"
	"go_stocksync/services/notifier"
	syncsvc "go_stocksync/services/sync"
)

func main() {
	log.Println("==============================================")
	log.Println("  Stock Sync Engine - Starting...")
	log.Println("==============================================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	log.Println("Running database migrations...")
	if err := runMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database migrations completed successfully")

	taipei, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		log.Fatalf("Failed to load Asia/Taipei location: %v", err)
	}

	// Cache tiers. A missing Redis leaves fast nil and the manager degrades
	// to the durable tier.
	var fast cache.FastStore
	if rdb := config.InitRedis(); rdb != nil {
		fast = cache.NewRedisStore(rdb)
	}
	cacheManager := cache.NewManager(fast, cache.NewGormStore(db), "stocksync")

	store := syncsvc.NewGormStore(db)
	orchestrator := syncsvc.NewOrchestrator(
		store,
		cacheManager,
		datafetcher.NewTwseClient(),
		datafetcher.NewTpexClient(),
		datafetcher.NewTwelveDataClient(cfg.TwelveKey),
		datafetcher.NewFinMindClient(cfg.FinMindKey),
		notifier.FromWebhookURL(cfg.WebhookURL),
		syncsvc.Options{UsSymbols: cfg.UsSymbols},
		taipei,
	)

	mongoStore, err := backup.NewMongoStore(context.Background(), cfg.MongoURI)
	if err != nil {
		log.Printf("MongoDB backup unavailable: %v", err)
	} else if mongoStore != nil {
		orchestrator.SetSnapshotter(mongoStore)
		defer mongoStore.Close()
	}

	jobScheduler := scheduler.NewScheduler(orchestrator, taipei)
	jobScheduler.Start()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	routes.SetupRoutes(router, orchestrator, store)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // manual sync runs are synchronous
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(server, jobScheduler)
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	if err := models.MigrateStockModels(db); err != nil {
		return err
	}
	if err := models.MigrateSyncModels(db); err != nil {
		return err
	}
	return models.MigrateCacheModels(db)
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first so no new sync run starts mid-shutdown
	if jobScheduler != nil {
		jobScheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
