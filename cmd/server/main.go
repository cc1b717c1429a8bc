package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bucketdrive/backend/internal/config"
	"github.com/bucketdrive/backend/internal/database"
	"github.com/bucketdrive/backend/internal/handlers"
	"github.com/bucketdrive/backend/internal/middleware"
	"github.com/bucketdrive/backend/internal/services"
	"github.com/bucketdrive/backend/internal/storage"
	"github.com/bucketdrive/backend/pkg/logger"
	"github.com/bucketdrive/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	utils.ConfigureEncryption(cfg.JWT.Secret)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	pool := storage.NewMinIOPool()

	// the default bucket is best-effort: the server still serves attached
	// buckets when the configured MinIO endpoint is down at boot
	if err := database.SeedDefaultBucket(context.Background(), db, pool, cfg.MinIO); err != nil {
		logger.Warn("default_bucket_unavailable", map[string]interface{}{
			"endpoint": cfg.MinIO.Endpoint,
			"bucket":   cfg.MinIO.Bucket,
			"error":    err.Error(),
		})
	}

	sizeService := services.NewSizeService(db)
	cascadeService := services.NewCascadeService(db, pool, sizeService, cfg.Upload.PruneEmptyFolders)
	keyAllocator := services.NewKeyAllocator(db, cfg.Upload.RenameAttempts)
	quotaService := services.NewQuotaService(cfg.Upload)
	reconciler := services.NewReconciler(db, pool)

	authHandler := handlers.NewAuthHandler(db)
	bucketsHandler := handlers.NewBucketsHandler(db, pool, reconciler)
	foldersHandler := handlers.NewFoldersHandler(db, sizeService, cascadeService)
	filesHandler := handlers.NewFilesHandler(db, pool, cascadeService, cfg.Upload.PresignTTL)
	uploadsHandler := handlers.NewUploadsHandler(db, pool, keyAllocator, quotaService, cfg.Upload.PresignTTL)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	bucketRoutes := api.Group("/buckets", authMiddleware.RequireAuth)
	bucketRoutes.Post("/", bucketsHandler.Attach)
	bucketRoutes.Get("/", bucketsHandler.List)
	bucketRoutes.Get("/:id", bucketsHandler.Get)
	bucketRoutes.Delete("/:id", bucketsHandler.Detach)
	bucketRoutes.Post("/:id/reconcile", bucketsHandler.Reconcile)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/", foldersHandler.ListRoot)
	folderRoutes.Post("/sizes", foldersHandler.CommitSizes)
	folderRoutes.Get("/:id/children", foldersHandler.Children)
	folderRoutes.Get("/:id/path", foldersHandler.Path)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/batch", filesHandler.BatchCreate)
	fileRoutes.Get("/:id/download-url", filesHandler.DownloadURL)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	uploadRoutes := api.Group("/uploads", authMiddleware.RequireAuth)
	uploadRoutes.Post("/precheck", uploadsHandler.Precheck)
	uploadRoutes.Post("/grants", uploadsHandler.Grants)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
