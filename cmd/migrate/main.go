package main

import (
	"context"
	"flag"
	"os"

	"github.com/ariefcatur/go-storefront-cart/internal/config"
	"github.com/ariefcatur/go-storefront-cart/internal/logx"
	"github.com/ariefcatur/go-storefront-cart/internal/migrate"
	"github.com/ariefcatur/go-storefront-cart/internal/postgres"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "goose command: up|down|status|version|redo|reset")
	flag.Parse()

	log := logx.New(logx.Options{ServiceName: "cart-migrate", Format: "console"})
	cfg, err := config.Load()
	if err != nil {
		log.Error(context.Background(), "config", err)
		os.Exit(1)
	}
	ctx := log.WithField(context.Background(), "cmd", *cmd)

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		log.Error(ctx, "db connect", err)
		os.Exit(1)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := migrate.Run(ctx, db, *cmd, flag.Args()...); err != nil {
		log.Error(ctx, "migrate", err)
		os.Exit(1)
	}
	log.Info(ctx, "migrate done")
}
