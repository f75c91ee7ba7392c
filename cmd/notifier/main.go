package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-cart/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-cart/internal/kafka"
	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/ariefcatur/go-storefront-cart/internal/notify"
	"github.com/ariefcatur/go-storefront-cart/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.New(logx.Options{ServiceName: "cart-notifier"}).Error(context.Background(), "config", err)
		os.Exit(1)
	}
	service := cfg.ServiceName + "-notifier"
	log := logx.New(logx.Options{
		ServiceName: service,
		Level:       logx.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Error(ctx, "redis ping", err)
		os.Exit(1)
	}

	relay := &notify.Relay{
		Redis:       rdb,
		Sink:        notify.LogSink{Log: log},
		ServiceName: service,
		Log:         log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.NotifyTopic, cfg.NotifierWorkers, log)

	done := make(chan struct{})
	var consumeErr error
	go func() {
		defer close(done)
		log.Info(log.WithFields(ctx, map[string]any{
			"group":   cfg.NotifierGroup,
			"topic":   cfg.NotifyTopic,
			"workers": cfg.NotifierWorkers,
		}), "notifier consumer started")
		if err := cons.Start(ctx, relay.HandleNotice); err != nil {
			// offsets past the failed notice are uncommitted; a restart redelivers it
			consumeErr = err
			log.Error(ctx, "consumer exit", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down consumer")
	cancel()

	select {
	case <-done:
		if consumeErr != nil {
			os.Exit(1)
		}
	case <-time.After(5 * time.Second):
	}
}
