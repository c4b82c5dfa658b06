package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	"expenses/internal/log"
	"expenses/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentEvents)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required to consume expense events")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	w := worker.NewEventWorker(logger, worker.DefaultDedupeSize, worker.DefaultDedupeTTL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeExpenseEvents(gctx, w.HandleExpenseEvent)
	})
	g.Go(func() error {
		return w.CleanupLoop(gctx, time.Minute)
	})

	logger.Info("Consuming expense events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err)
		client.Close()
		os.Exit(1)
	}

	logger.Info("Event consumer stopped")
}
