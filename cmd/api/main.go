package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/auth"
	"github.com/chen220-Yee/social-shop/internal/cart"
	"github.com/chen220-Yee/social-shop/internal/catalog"
	"github.com/chen220-Yee/social-shop/internal/checkout"
	"github.com/chen220-Yee/social-shop/internal/config"
	"github.com/chen220-Yee/social-shop/internal/events"
	"github.com/chen220-Yee/social-shop/internal/httpx"
	kafkax "github.com/chen220-Yee/social-shop/internal/kafka"
	"github.com/chen220-Yee/social-shop/internal/metrics"
	"github.com/chen220-Yee/social-shop/internal/orders"
	"github.com/chen220-Yee/social-shop/internal/postgres"
	"github.com/chen220-Yee/social-shop/internal/redisx"
	"github.com/chen220-Yee/social-shop/internal/wallet"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderPaid, 1024, log)
	pPaid.Start(ctx)
	pCancel := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderCancelled, 1024, log)
	pCancel.Start(ctx)
	pRecharge := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicRechargeResolved, 1024, log)
	pRecharge.Start(ctx)

	// Stores
	stock := &catalog.StockRepo{DB: db, Log: log}
	ledger := &wallet.Ledger{DB: db, Log: log}
	orderRepo := &orders.Repo{DB: db}
	cartStore := &cart.Store{DB: db}
	catalogRepo := &catalog.Repo{DB: db}

	// Saga orchestrator
	orch := &checkout.Orchestrator{
		Stock:       stock,
		Ledger:      ledger,
		Orders:      orderRepo,
		Cart:        cartStore,
		Credentials: &auth.PayPasswordVerifier{DB: db},
		Log:         log,
		Metrics:     metrics.NewCheckout(prometheus.DefaultRegisterer),
	}

	// Router & handlers
	router := httpx.NewRouter()
	sh := &httpx.ShopHandler{
		Checkout:        orch,
		Orders:          orderRepo,
		Wallet:          ledger,
		Cart:            cartStore,
		Catalog:         catalogRepo,
		OrderEvents:     pPaid,
		CancelEvents:    pCancel,
		RechargeEvents:  pRecharge,
		Redis:           rdb,
		Log:             log,
		RechargeMetrics: metrics.NewRecharge(prometheus.DefaultRegisterer),
		Service:         cfg.ServiceName,
	}
	sh.Register(router, cfg.JWTSecret)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pPaid.Close()
	pCancel.Close()
	pRecharge.Close()
	cancel()
	pPaid.WaitClosed()
	pCancel.WaitClosed()
	pRecharge.WaitClosed()
}
