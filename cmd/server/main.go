package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jackc/pgx/v5/pgxpool"

	httpdelivery "github.com/Xausdorf/btcpay-checkout/internal/delivery/http"
	"github.com/Xausdorf/btcpay-checkout/internal/domain/session"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/btcpay"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/config"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/events"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/memstore"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/postgres"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/qrgenerator"
	"github.com/Xausdorf/btcpay-checkout/internal/usecase/checkout"
)

const (
	qrCodeSize            = 256
	readHeaderTimeout     = 5 * time.Second
	gracefulShutdownDelay = 5 * time.Second
	sweepInterval         = 10 * time.Minute

	dbMaxConns        = 10
	dbMinConns        = 2
	dbMaxConnLifetime = 30 * time.Minute
	dbMaxConnIdleTime = 5 * time.Minute
)

type sweepingStore interface {
	session.Store
	StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		logger.Error("session store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	store.StartSweeper(ctx, sweepInterval, logger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()
	if err := events.RunAuditLog(ctx, pubSub, logger); err != nil {
		logger.Error("event subscriber init failed", "error", err)
		os.Exit(1)
	}

	btcpayClient := btcpay.NewClient(btcpay.Config{
		BaseURL: cfg.BTCPayURL,
		APIKey:  cfg.BTCPayAPIKey,
		StoreID: cfg.BTCPayStoreID,
		Timeout: cfg.BTCPayTimeout,
	})

	checkoutUC := checkout.NewUseCase(btcpayClient, store, events.NewPublisher(pubSub), cfg.Invoice, logger)

	handler := httpdelivery.NewHandler(checkoutUC, qrgenerator.NewGenerator(qrCodeSize), httpdelivery.Product{
		Name:        cfg.Invoice.ItemDesc,
		Price:       cfg.Invoice.Amount.StringFixed(2) + " " + cfg.Invoice.Currency,
		Description: cfg.ProductDescription,
	}, logger)
	router := httpdelivery.NewRouter(handler, httpdelivery.SessionConfig{
		CookieName: cfg.SessionCookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.SessionCookieSecure,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "btcpay_url", cfg.BTCPayURL)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", serveErr)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownDelay)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func initStore(ctx context.Context, cfg *config.Config) (sweepingStore, func(), error) {
	if cfg.DatabaseURL == "" {
		return memstore.NewStore(cfg.SessionTTL), func() {}, nil
	}

	pool, err := initDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	store := postgres.NewSessionStore(pool, cfg.SessionTTL)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func initDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = dbMaxConns
	cfg.MinConns = dbMinConns
	cfg.MaxConnLifetime = dbMaxConnLifetime
	cfg.MaxConnIdleTime = dbMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
