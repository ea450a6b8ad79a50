package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/360john360/childnur-sub000/cmd/api/router/v1"
	"github.com/360john360/childnur-sub000/internal/infrastructure/auth"
	cacheadapter "github.com/360john360/childnur-sub000/internal/infrastructure/cache/adapter"
	cacheport "github.com/360john360/childnur-sub000/internal/infrastructure/cache/port"
	"github.com/360john360/childnur-sub000/internal/infrastructure/config"
	"github.com/360john360/childnur-sub000/internal/infrastructure/database"
	"github.com/360john360/childnur-sub000/internal/infrastructure/logger"
	"github.com/360john360/childnur-sub000/internal/infrastructure/metrics"
	qadapter "github.com/360john360/childnur-sub000/internal/infrastructure/queue/adapter"
	"github.com/360john360/childnur-sub000/internal/infrastructure/realtime"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/delivery"
	"github.com/360john360/childnur-sub000/internal/pkg/chat/application/task"
	repoAdapter "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/adapter"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"
	chathttp "github.com/360john360/childnur-sub000/internal/pkg/chat/presentation/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, err := openStore(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer store.close()

	directory := store.directory
	var profileCache cacheport.Cache
	if cfg.RedisURL != "" {
		cache, err := cacheadapter.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		profileCache = cache
		directory = repoAdapter.NewCachedDirectoryRepository(directory, cache, cfg.ProfileCacheTTL, zlog)
	}

	presence := realtime.NewPresence()
	groups := realtime.NewGroups()
	router := delivery.NewRouter(presence, groups, directory, m, zlog)

	deps := chathttp.Dependencies{
		Chat:           store.chat,
		Directory:      directory,
		Presence:       presence,
		Groups:         groups,
		Router:         router,
		Tokens:         auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer),
		Metrics:        m,
		Log:            zlog,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}
	uc := chathttp.NewUseCases(deps)

	workerDone := make(chan error, 1)
	if cfg.QueueEnabled() {
		client, err := qadapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		deps.Queue = client

		worker, err := qadapter.NewAsynqServer(cfg.RedisURL, cfg.Queue.Concurrency, cfg.Queue.Queues, zlog)
		if err != nil {
			return err
		}
		task.RegisterSendMessageTask(worker, uc.Send, m, zlog)
		go func() { workerDone <- worker.Run(ctx) }()
	} else {
		close(workerDone)
	}

	if cfg.Log.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(zlog))

	r.GET("/healthz", func(c *gin.Context) {
		users, channels := presence.Count()
		body := gin.H{
			"status":   "OK",
			"store":    cfg.Store.Driver,
			"users":    users,
			"channels": channels,
		}
		if profileCache != nil {
			pingCtx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()
			if err := profileCache.Ping(pingCtx); err != nil {
				// Profile lookups fall back to the store.
				body["cache"] = "unavailable"
			} else {
				body["cache"] = "ok"
			}
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	v1.RegisterRoutes(r, deps, uc)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTP.Addr), zap.String("store", cfg.Store.Driver), zap.Bool("queue", cfg.QueueEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	stop()
	if err := <-workerDone; err != nil {
		zlog.Warn("queue worker", zap.Error(err))
	}
	return nil
}

type stores struct {
	chat      repository.ChatRepository
	directory repository.DirectoryRepository
	close     func()
}

// openStore selects the persistence backend from STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		zlog.Warn("using in-memory store; data is lost on restart")
		return stores{
			chat:      repoAdapter.NewMemoryChatRepository(),
			directory: repoAdapter.NewOpenMemoryDirectoryRepository(),
			close:     func() {},
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.Store.DSN, database.WithMaxConns(int32(cfg.Store.MaxConns)))
	if err != nil {
		return stores{}, err
	}
	if err := database.EnsureSchema(connectCtx, pool); err != nil {
		pool.Close()
		return stores{}, err
	}
	return stores{
		chat:      repoAdapter.NewPgChatRepository(pool),
		directory: repoAdapter.NewPgDirectoryRepository(pool),
		close:     pool.Close,
	}, nil
}
