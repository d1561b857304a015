package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/config"
	"github.com/onglesrivieres/salon360-sub003/internal/httpapi"
	"github.com/onglesrivieres/salon360-sub003/internal/notify"
	"github.com/onglesrivieres/salon360-sub003/internal/store/postgres"
	"github.com/onglesrivieres/salon360-sub003/internal/sweeper"
	"github.com/onglesrivieres/salon360-sub003/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	shutdownTelemetry := telemetry.Setup("approval-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	store.SetSessionTTL(cfg.SessionTTL)
	handler := httpapi.NewHandler(store, httpapi.Options{
		JWTSecret: cfg.JWTSecret,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		StorePerMinute: cfg.RateLimitPerMinute,
		StoreBurst:     cfg.RateLimitBurst,
	})

	chain := handler.AuthMiddleware(handler.Routes())
	chain = limiter.Middleware(chain)
	chain = httpapi.LoggingMiddleware(chain)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(chain, "approval-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	go func() {
		log.Printf("approval-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	go func() {
		if cfg.SweepInterval <= 0 {
			return
		}
		sweeper.Start(workerCtx, cfg.SweepInterval, sweeper.New(store, sweeper.Config{
			BatchSize: cfg.SweepBatchSize,
		}))
	}()

	go func() {
		if cfg.NotifyInterval <= 0 {
			return
		}
		notify.Start(workerCtx, cfg.NotifyInterval, notify.New(store, notify.Config{
			BatchSize: cfg.NotifyBatchSize,
		}))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
