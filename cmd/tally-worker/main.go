package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/cli"
	tlog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, tlog.ComponentWorker)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker cannot start", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting tally-worker", "backend", cfg.DataBackend, "queue", cfg.AMQPQueue)

	res := cli.InitBackend(context.Background(), logger, cfg, false)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	cal := services.NewCalendar(time.Now, cfg.Location())
	engine := services.NewEngine(res.Backend, cal)
	w := worker.NewNetWorthWorker(engine, cfg.CacheSize, cfg.CacheTTL)

	caches := cache.NewManager()
	caches.Register("seen_messages", w.Seen())
	caches.StartCleanup(10 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		caches.Stop()
		if err := errors.Join(client.Close(), res.Cleanup()); err != nil {
			logger.Error("Worker cleanup failed", "error", err)
		}
	})

	if err := w.StartupCheck(ctx); err != nil {
		// not fatal; the next message retries
		logger.Error("Startup net worth check failed", "error", err)
	}

	go func() {
		err := client.ConsumeNetWorthRefresh(ctx, w.HandleRefreshMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
