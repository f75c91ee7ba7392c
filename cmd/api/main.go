package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-cart/internal/cart"
	"github.com/ariefcatur/go-storefront-cart/internal/catalog"
	"github.com/ariefcatur/go-storefront-cart/internal/config"
	"github.com/ariefcatur/go-storefront-cart/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-cart/internal/kafka"
	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/ariefcatur/go-storefront-cart/internal/metrics"
	"github.com/ariefcatur/go-storefront-cart/internal/migrate"
	"github.com/ariefcatur/go-storefront-cart/internal/notify"
	"github.com/ariefcatur/go-storefront-cart/internal/postgres"
	"github.com/ariefcatur/go-storefront-cart/internal/redisx"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.New(logx.Options{ServiceName: "cart-api"}).Error(context.Background(), "config", err)
		os.Exit(1)
	}
	log := logx.New(logx.Options{
		ServiceName: cfg.ServiceName,
		Level:       logx.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCart(reg)

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		log.Error(ctx, "db connect", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		sqlDB := stdlib.OpenDBFromPool(db)
		err := migrate.Run(ctx, sqlDB, "up")
		_ = sqlDB.Close()
		if err != nil {
			log.Error(ctx, "auto migrate", err)
			os.Exit(1)
		}
	}

	// Cart slot
	var slot cart.Slot
	switch cfg.CartStorage {
	case config.StorageRedis:
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			// carts stay usable in memory until redis is back
			log.Warn(ctx, "redis unreachable at startup", err)
		}
		slot = redisx.NewSlot(rdb, redisx.SlotOptions{TTL: cfg.CartSlotTTL, Log: log})
	default:
		slot = cart.NewMemorySlot()
	}

	// Notifications
	var prod *kafkax.Producer
	if cfg.NotifySink == config.SinkKafka {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, 1024, log)
		prod.Start(ctx)
	}
	notifierFor := func(sessionID string) cart.Notifier {
		if prod != nil {
			return &notify.Publisher{Producer: prod, Service: cfg.ServiceName, SessionID: sessionID}
		}
		return &notify.Log{Logger: log, SessionID: sessionID}
	}

	sessions := cart.NewSessions(func(ctx context.Context, sessionID string) *cart.Store {
		return cart.NewStore(ctx, slot, notifierFor(sessionID),
			cart.WithKey(redisx.CartSlotKey(sessionID)),
			cart.WithLogger(log),
			cart.WithMetrics(cartMetrics),
		)
	})

	// Router & handler
	router := httpx.NewRouter(log, reg)
	ch := &httpx.CartHandler{
		Catalog:  &catalog.Repo{DB: db},
		Sessions: sessions,
	}
	ch.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info(log.WithField(ctx, "addr", cfg.HTTPAddr), "http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "listen", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info(ctx, "shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close() // flush pending notices
		prod.WaitClosed()
	}
	cancel()
}
