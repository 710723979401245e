package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "bankpost/internal/api"
    "bankpost/internal/config"
    "bankpost/internal/metrics"
    "bankpost/internal/posting"
    "bankpost/internal/redislock"
    "bankpost/internal/store"
    "bankpost/internal/store/memory"
    "bankpost/internal/telemetry"
)

type backend interface {
    posting.UnitOfWork
    posting.Ledger
}

func newLogger(level string) (*zap.Logger, error) {
    if strings.EqualFold(level, "debug") {
        return zap.NewDevelopment()
    }
    cfg := zap.NewProductionConfig()
    if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
        return nil, err
    }
    return cfg.Build()
}

func main() {
    cfg, err := config.Load()
    if err != nil {
        fmt.Fprintf(os.Stderr, "config error: %v\n", err)
        os.Exit(1)
    }

    logger, err := newLogger(cfg.LogLevel)
    if err != nil {
        fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
        os.Exit(1)
    }
    defer func() { _ = logger.Sync() }()

    postingCfg, err := cfg.PostingConfig()
    if err != nil {
        logger.Fatal("posting config", zap.Error(err))
    }

    ctx := context.Background()

    tel, err := telemetry.New(ctx, cfg.TelemetryOptions(), logger.Named("telemetry"))
    if err != nil {
        logger.Fatal("telemetry error", zap.Error(err))
    }
    defer func() {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        tel.Shutdown(ctx)
    }()

    var db backend
    switch cfg.Store {
    case config.StoreMemory:
        mem := memory.New()
        if cfg.SeedFile != "" {
            if err := mem.LoadSeed(cfg.SeedFile); err != nil {
                logger.Fatal("seed error", zap.String("seed_file", cfg.SeedFile), zap.Error(err))
            }
        }
        db = mem
    default:
        pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
        if err != nil {
            logger.Fatal("db error", zap.Error(err))
        }
        defer pool.Close()
        db = store.New(pool)
    }

    opts := []posting.Option{
        posting.WithLogger(logger.Named("posting")),
        posting.WithTracer(tel.TracerProvider.Tracer("bankpost/posting")),
    }
    if cfg.RedisAddr != "" {
        client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
        defer client.Close()

        lockOpts := redislock.DefaultOptions()
        lockOpts.Expiry = cfg.LockTTL
        opts = append(opts, posting.WithLocker(redislock.New(client, lockOpts, logger.Named("lock"))))
    }

    poster, err := posting.New(db, postingCfg, opts...)
    if err != nil {
        logger.Fatal("poster error", zap.Error(err))
    }

    srv, err := api.NewServer(poster, db, metrics.NewCollector(), cfg.JWTSecret, logger.Named("api"))
    if err != nil {
        logger.Fatal("server error", zap.Error(err))
    }

    httpServer := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srv.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    go func() {
        logger.Info("listening",
            zap.String("addr", httpServer.Addr),
            zap.String("store", cfg.Store),
            zap.Bool("redis_lock", cfg.RedisAddr != ""))
        if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.Fatal("server error", zap.Error(err))
        }
    }()

    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit

    ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := httpServer.Shutdown(ctxShutdown); err != nil {
        logger.Warn("shutdown", zap.Error(err))
    }
}
