package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/screamboard/screamboard/internal/config"
	"github.com/screamboard/screamboard/internal/db"
	routes "github.com/screamboard/screamboard/internal/http"
	"github.com/screamboard/screamboard/internal/identity"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/meme"
	"github.com/screamboard/screamboard/internal/scheduler"
	"github.com/screamboard/screamboard/internal/scream"
	"github.com/screamboard/screamboard/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "screamboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Production sets variables directly; .env is for local runs.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Initialize(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	if envErr != nil {
		logger.Log.Info("No .env file found, reading from environment")
	}

	database, err := db.Init(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(database)

	logger.Log.Info("Running database migrations")
	if err := db.Migrate(database); err != nil {
		return err
	}

	hub := ws.NewHub()

	sessions, closeSessions, err := sessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	board := scream.NewService(database, scream.Options{
		Memes:        memeGenerator(cfg.Meme),
		MemeTimeout:  cfg.Meme.Timeout,
		ArchiveLimit: cfg.Archive.Limit,
		Sessions:     sessions,
		Notifier:     hub,
	})
	hasher := identity.NewHasher(cfg.Identity.Salt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Admin.DefaultID != "" {
		if err := seedAdmin(ctx, board, hasher, cfg.Admin.DefaultID); err != nil {
			return err
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	limiter := routes.NewIPRateLimiter(rate.Every(cfg.Server.PostInterval), 1)
	env := &routes.Env{Board: board, Hasher: hasher, Top: cfg.Top}
	routes.SetupRoutes(router, env, hub, limiter, cfg.Server.CORSOrigin)

	sup := suture.New("screamboard", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Log.Warn("Supervisor event", zap.String("event", e.String()))
		},
		Timeout: cfg.Server.ShutdownTimeout + time.Second,
	})
	sup.Add(hub)
	sup.Add(limiter)
	sup.Add(routes.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), router, cfg.Server.ShutdownTimeout))
	if cfg.Archive.Schedule {
		sup.Add(scheduler.NewWeeklyArchiver(board, cfg.ArchiveWeekday(), cfg.Archive.Hour, cfg.Archive.Minute))
	}

	logger.Log.Info("Screamboard starting", zap.Int("port", cfg.Server.Port))
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if unstopped, err := sup.UnstoppedServiceReport(); err == nil {
		for _, svc := range unstopped {
			logger.Log.Warn("Service failed to stop", zap.String("service", svc.Name))
		}
	}
	logger.Log.Info("Server exiting")
	return nil
}

func memeGenerator(cfg config.MemeConfig) meme.Generator {
	if cfg.Username == "" || cfg.Password == "" {
		logger.Log.Warn("Imgflip credentials not set, top screams will have no memes")
		return meme.Noop{}
	}
	return meme.NewImgflip(meme.ImgflipConfig{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
}

func sessionStore(cfg *config.Config) (scream.SessionStore, func(), error) {
	if cfg.Moderation.Store != "redis" {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Log.Info("Using redis moderation sessions", zap.String("addr", cfg.Redis.Addr))
	return scream.NewRedisSessionStore(client, cfg.Moderation.SessionTTL), func() { _ = client.Close() }, nil
}

func seedAdmin(ctx context.Context, board *scream.Service, hasher *identity.Hasher, rawID string) error {
	id, err := hasher.Hash(rawID)
	if err != nil {
		return fmt.Errorf("invalid default admin id: %w", err)
	}
	status, err := board.EnsureAdmin(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to seed default admin: %w", err)
	}
	logger.Log.Info("Default admin ready", logger.WithIdentity(id), zap.String("status", string(status)))
	return nil
}
