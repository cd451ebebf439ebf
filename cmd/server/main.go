package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillsphere/course-studio/internal/api"
	"skillsphere/course-studio/internal/backend"
	"skillsphere/course-studio/internal/config"
	"skillsphere/course-studio/internal/lock"
	"skillsphere/course-studio/internal/logger"
	"skillsphere/course-studio/internal/repository/mongo"
	"skillsphere/course-studio/internal/service"
	"skillsphere/course-studio/internal/storage"

	"github.com/gin-gonic/gin"
)

// @title SkillSphere Course Studio API
// @version 1.0
// @description Authoring API for building SkillSphere courses: curriculum editing, pending files and deploy.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the SkillSphere access token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("could not load config: " + err.Error())
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic("could not build logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("starting course studio", "address", cfg.Server.Address, "backend", cfg.Backend.BaseURL)
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatal("could not connect to MongoDB", "error", err)
	}
	defer func() {
		log.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error("failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			log.Warn("index creation failed", "error", err)
			return
		}
		log.Info("database indexes ensured")
	}()

	// --- Storage for pending files ---
	var fileStorage storage.FileStorage
	if cfg.S3.BucketName != "" {
		fileStorage, err = storage.NewS3Storage(context.Background(), cfg.S3, log)
		if err != nil {
			log.Fatal("failed to initialize S3 storage", "error", err)
		}
	} else {
		log.Warn("S3_BUCKET_NAME not set, pending files are kept in memory")
		fileStorage = storage.NewMemoryStorage()
	}

	// --- Deploy lock ---
	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		redisLocker, closeRedis, err := lock.NewRedisLocker(cfg.Redis, log)
		if err != nil {
			log.Fatal("failed to connect to Redis", "error", err)
		}
		defer func() { _ = closeRedis() }()
		locker = redisLocker
	} else {
		locker = lock.NewMemoryLocker()
	}

	// --- Repositories and services ---
	draftRepo := mongo.NewMongoDraftRepository(appDB)
	uploadRepo := mongo.NewMongoUploadRepository(appDB)
	courses := backend.NewClient(cfg.Backend, log)

	draftService := service.NewDraftService(draftRepo, uploadRepo, fileStorage, courses, locker, log,
		service.Options{MaxUploadBytes: cfg.Server.MaxUploadBytes})

	// --- HTTP ---
	if cfg.Log.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))
	api.SetupRoutes(router, api.RouteConfig{
		JWTSecret:      cfg.JWT.Secret,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, draftService, log)

	server := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     api.CorsSettings(cfg.CORS.AllowedOrigins).Handler(router),
		ReadTimeout: 10 * time.Minute, // large video uploads
		// Deploy streams every pending file to SkillSphere inside the request
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exiting")
}
