package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meetspot/config"
	"meetspot/internal/cache"
	"meetspot/internal/registry"
	"meetspot/internal/repository"
	"meetspot/internal/service"
	"meetspot/internal/store"
	"meetspot/internal/transport/rest"
	"meetspot/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		slog.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		slog.Error("failed to ping MongoDB", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		slog.Error("failed to ping Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	roomRepo := repository.NewRoomRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	activityCache := cache.NewActivityCache(rdb)

	sessions := registry.NewMemoryRegistry()
	votes := store.NewMemoryVoteStore()
	roomLocks := service.NewKeyLock()
	voteLocks := service.NewKeyLock()

	authSvc := service.NewAuthService(cfg.JWTSecret)
	activitySvc := service.NewActivityService(activityCache, roomRepo, categoryRepo, cfg.RoomTTL)
	voteSvc := service.NewVoteService(votes, sessions, activitySvc, voteLocks)
	roomSvc := service.NewRoomService(sessions, roomRepo, categoryRepo, activitySvc, roomLocks)
	roomSvc.SetVoteDetacher(voteSvc)
	categorySvc := service.NewCategoryService(sessions, roomRepo, categoryRepo, voteSvc, activitySvc, roomLocks)

	wsHub := ws.NewHub()
	roomSvc.SetBroadcaster(wsHub)
	categorySvc.SetBroadcaster(wsHub)
	voteSvc.SetBroadcaster(wsHub)

	runCtx, stop := context.WithCancel(ctx)
	go activitySvc.Run(runCtx, cfg.FlushInterval, cfg.ReapInterval)

	router := rest.NewRouter(&rest.Container{
		AuthService:     authSvc,
		RoomService:     roomSvc,
		CategoryService: categorySvc,
		VoteService:     voteSvc,
		ActivityService: activitySvc,
		RoomRepo:        roomRepo,
		CategoryRepo:    categoryRepo,
		WSHub:           wsHub,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		slog.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	slog.Info("server exited")
}
