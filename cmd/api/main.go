package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fizennn/serverTest-sub000/internal/catalog"
	"github.com/fizennn/serverTest-sub000/internal/checkout"
	"github.com/fizennn/serverTest-sub000/internal/config"
	"github.com/fizennn/serverTest-sub000/internal/httpx"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
	"github.com/fizennn/serverTest-sub000/internal/payment"
	"github.com/fizennn/serverTest-sub000/internal/postgres"
	"github.com/fizennn/serverTest-sub000/internal/redisx"
	"github.com/fizennn/serverTest-sub000/internal/voucher"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.TransferChecksumKey == "" || cfg.CardWebhookSecret == "" {
		log.Fatal("TRANSFER_CHECKSUM_KEY and CARD_WEBHOOK_SECRET must be set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	created := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderCreated, 1024)
	created.Start(ctx)
	cancelled := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderCancelled, 1024)
	cancelled.Start(ctx)
	gateway := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicPaymentGateway, 1024)
	gateway.Start(ctx)

	ledger := &catalog.Ledger{DB: db}
	vouchers := &voucher.Repo{DB: db}
	orders := &checkout.Repo{DB: db, Catalog: ledger, Vouchers: vouchers}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Repo: orders, Created: created, Cancelled: cancelled,
		Redis: rdb, Service: cfg.ServiceName,
	}).Register(router)
	(&httpx.VouchersHandler{Repo: vouchers}).Register(router)
	(&httpx.CatalogHandler{Ledger: ledger}).Register(router)
	(&httpx.WebhooksHandler{
		Transfer: &payment.TransferAdapter{ChecksumKey: cfg.TransferChecksumKey},
		Card:     &payment.CardAdapter{Secret: cfg.CardWebhookSecret},
		Producer: gateway,
		Service:  cfg.ServiceName,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	created.Close()
	cancelled.Close()
	gateway.Close()
	cancel()
	created.WaitClosed()
	cancelled.WaitClosed()
	gateway.WaitClosed()
}
