package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	appcart "github.com/somba-market/commerce/internal/application/cart"
	appcheckout "github.com/somba-market/commerce/internal/application/checkout"
	appinventory "github.com/somba-market/commerce/internal/application/inventory"
	apporder "github.com/somba-market/commerce/internal/application/order"
	apppayment "github.com/somba-market/commerce/internal/application/payment"
	"github.com/somba-market/commerce/internal/config"
	domcart "github.com/somba-market/commerce/internal/domain/cart"
	domorder "github.com/somba-market/commerce/internal/domain/order"
	dompayment "github.com/somba-market/commerce/internal/domain/payment"
	domproduct "github.com/somba-market/commerce/internal/domain/product"
	"github.com/somba-market/commerce/internal/infrastructure/id"
	"github.com/somba-market/commerce/internal/infrastructure/memory"
	mysqlstore "github.com/somba-market/commerce/internal/infrastructure/mysql"
	"github.com/somba-market/commerce/internal/infrastructure/observability/oteltrace"
	"github.com/somba-market/commerce/internal/infrastructure/observability/prometrics"
	"github.com/somba-market/commerce/internal/infrastructure/observability/telemetry"
	"github.com/somba-market/commerce/internal/infrastructure/observability/zaplogger"
	"github.com/somba-market/commerce/internal/infrastructure/outbox"
	"github.com/somba-market/commerce/internal/infrastructure/redisstore"
	"github.com/somba-market/commerce/internal/observability"
	httppresentation "github.com/somba-market/commerce/internal/presentation/http"
)

func main() {
	cfg := config.Load()

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New("", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MStockConflicts: registry.Counter(
			string(observability.MStockConflicts),
			"Optimistic concurrency conflicts observed on stock writes.",
			"use_case",
		),
		observability.MPaymentRefRetries: registry.Counter(
			string(observability.MPaymentRefRetries),
			"Transaction reference regenerations after a uniqueness collision.",
			"method",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			nil,
			"method", "route", "status",
		),
	}

	tel := telemetry.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)
	log := tel.Logger()

	var (
		productRepo domproduct.Repository
		orderRepo   domorder.Repository
		paymentRepo dompayment.Repository
	)
	switch cfg.Storage {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Error("mysql_open_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		productRepo = mysqlstore.NewProductRepository(db)
		orderRepo = mysqlstore.NewOrderRepository(db)
		paymentRepo = mysqlstore.NewPaymentRepository(db)
	default:
		productRepo = memory.NewProductRepository()
		orderRepo = memory.NewOrderRepository()
		paymentRepo = memory.NewPaymentRepository()
	}

	var cartRepo domcart.Repository
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = client.Close() }()
		cartRepo = redisstore.NewCartRepository(client, cfg.CartTTL)
	} else {
		cartRepo = memory.NewCartRepository(cfg.CartTTL)
	}

	bus := outbox.NewBus(log)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	idGenerator := id.NewUUIDGenerator()

	inventoryService := appinventory.NewService(productRepo, idGenerator, tel)
	cartService := appcart.NewService(cartRepo, tel)
	orderService := apporder.NewService(orderRepo, idGenerator, tel)
	paymentService := apppayment.NewService(paymentRepo, idGenerator, bus, tel)
	coordinator := appcheckout.NewCoordinator(inventoryService, orderService, paymentService, cartService, bus, tel)

	checkoutWorker := appcheckout.NewWorker(bus, coordinator, tel)
	checkoutWorker.Start()

	handler := httppresentation.NewHandler(inventoryService, cartService, orderService, paymentService, coordinator, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		log.Info("http_server_stopped")
	}
}
