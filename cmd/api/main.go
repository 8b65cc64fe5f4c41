package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loopgate/internal/config"
	"loopgate/internal/gateway"
	httpx "loopgate/internal/http"
	"loopgate/internal/services/delivery"
	"loopgate/internal/services/reconcile"
	"loopgate/internal/store/postgres"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init DB
	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()

	events := postgres.NewWebhookEventRepository(pool, cfg.Sec.AESKey)
	creds := postgres.NewCredentialRepository(pool, cfg.Sec.AESKey)
	payments := postgres.NewPaymentRepository(pool)

	// Gateway client and reconciliation
	gw := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.TimeoutSec)
	svc := reconcile.NewService(gw, creds)

	// Webhook delivery engine with its dispatch worker
	deliverer := delivery.NewDeliverer(events)
	var locker delivery.Locker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		locker = delivery.NewRedisLocker(rdb)
	}
	worker := delivery.NewWorker(events, deliverer, locker,
		time.Duration(cfg.Webhook.PollEverySec)*time.Second, cfg.Webhook.BatchSize)
	go worker.Run(ctx)

	// Router
	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:      cfg,
		Reconcile:   svc,
		Deliverer:   deliverer,
		Credentials: creds,
		Resolver:    creds,
		Payments:    payments,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Msgf("Loopgate API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	log.Info().Msg("server stopped")
}
