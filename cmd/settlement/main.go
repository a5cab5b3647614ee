package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fizennn/serverTest-sub000/internal/catalog"
	"github.com/fizennn/serverTest-sub000/internal/checkout"
	"github.com/fizennn/serverTest-sub000/internal/compensation"
	"github.com/fizennn/serverTest-sub000/internal/config"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
	"github.com/fizennn/serverTest-sub000/internal/postgres"
	"github.com/fizennn/serverTest-sub000/internal/redisx"
	"github.com/fizennn/serverTest-sub000/internal/settlement"
	"github.com/fizennn/serverTest-sub000/internal/voucher"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	ledger := &catalog.Ledger{DB: db}
	vouchers := &voucher.Repo{DB: db}
	orders := &checkout.Repo{DB: db, Catalog: ledger, Vouchers: vouchers}
	dedup := redisx.Dedup{R: rdb}

	settle := &settlement.Service{
		Store: orders, Dedup: dedup,
		ServiceName: cfg.ServiceName + "-settlement",
	}
	comp := &compensation.Service{
		Store: orders, Dedup: dedup,
		ServiceName: cfg.ServiceName + "-compensation",
	}

	group := getenv("SETTLEMENT_GROUP", "settlement-svc")
	workers := mustAtoi(os.Getenv("SETTLEMENT_WORKERS"), "4")

	payCons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicPaymentGateway, workers)
	go func() {
		log.Printf("payment consumer started: group=%s topic=%s workers=%d",
			group, checkout.TopicPaymentGateway, workers)
		if err := payCons.Start(ctx, settle.HandlePaymentEvent); err != nil {
			log.Printf("payment consumer exit: %v", err)
			cancel()
		}
	}()

	cancelCons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicOrderCancelled, workers)
	go func() {
		log.Printf("compensation consumer started: group=%s topic=%s workers=%d",
			group, checkout.TopicOrderCancelled, workers)
		if err := cancelCons.Start(ctx, comp.HandleOrderCancelled); err != nil {
			log.Printf("compensation consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumers...")
	cancel()
	time.Sleep(500 * time.Millisecond)
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
