package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/adw-ith/hack25-spicechain/internal/adapters/cli"
	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/config"
	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/db"
	"github.com/adw-ith/hack25-spicechain/internal/lock"
	"github.com/adw-ith/hack25-spicechain/internal/logger"
	"github.com/adw-ith/hack25-spicechain/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: spicectl [-config file] <command> [args]\n%s\n  migrate                apply pending Postgres migrations\n  migrate-status         show applied Postgres migrations\n", cli.Usage)
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	switch args[0] {
	case "migrate":
		if err := db.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		fmt.Println("migrations applied")
		return
	case "migrate-status":
		if err := db.MigrationStatus(ctx, cfg.Postgres.DSN); err != nil {
			log.Fatalf("migrate-status: %v", err)
		}
		return
	}

	st, closeStore, err := store.Open(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	ledger, err := core.OpenLedger(ctx, st, lock.NewKeyed())
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
	svc := app.NewAppService(ledger, zl, nil)

	if err := cli.Run(ctx, svc, args, os.Stdout); err != nil {
		if errors.Is(err, cli.ErrViolations) {
			os.Exit(1)
		}
		log.Fatalf("%v", err)
	}
}
