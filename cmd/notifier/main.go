package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/config"
	"github.com/chen220-Yee/social-shop/internal/events"
	kafkax "github.com/chen220-Yee/social-shop/internal/kafka"
	"github.com/chen220-Yee/social-shop/internal/notifier"
	"github.com/chen220-Yee/social-shop/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifier.Service{Redis: rdb, Log: log}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")

	consume := func(topic string, h kafkax.Handler) {
		c := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, log)
		go func() {
			log.Info("consumer started",
				zap.String("group", group), zap.String("topic", topic), zap.Int("workers", workers))
			if err := c.Start(ctx, h); err != nil {
				log.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}()
	}

	consume(events.TopicOrderPaid, svc.HandleOrderEvent)
	consume(events.TopicOrderCancelled, svc.HandleOrderEvent)
	consume(events.TopicRechargeResolved, svc.HandleRechargeResolved)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumers...")
	case <-ctx.Done():
	}
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
