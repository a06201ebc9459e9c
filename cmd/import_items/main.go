// Command import_items loads an item registry workbook into the database.
// Opening quantities enter through the stock ledger like any other receipt.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/backuppapnj/simbara-new-sub003/internal/authz"
	"github.com/backuppapnj/simbara-new-sub003/internal/cache"
	"github.com/backuppapnj/simbara-new-sub003/internal/config"
	"github.com/backuppapnj/simbara-new-sub003/internal/db"
	"github.com/backuppapnj/simbara-new-sub003/internal/domain"
	"github.com/backuppapnj/simbara-new-sub003/internal/excel"
	"github.com/backuppapnj/simbara-new-sub003/internal/logging"
	"github.com/backuppapnj/simbara-new-sub003/internal/repository"
	"github.com/backuppapnj/simbara-new-sub003/internal/service"
	"github.com/backuppapnj/simbara-new-sub003/internal/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type options struct {
	path    string
	kind    string
	actorID int64
	dryRun  bool
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("config error")
	}
	log := logging.New(cfg.LogLevel)

	rows, err := readItemRows(opts.path, domain.ItemKind(opts.kind))
	if err != nil {
		log.WithError(err).Fatal("read item file")
	}
	if opts.dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			log.WithError(err).Fatal("print rows")
		}
		return
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:    4,
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("database error")
	}
	defer pool.Close()

	if _, err := db.RunMigrations(ctx, pool, log); err != nil {
		log.WithError(err).Fatal("migration error")
	}

	// Cached aggregates served by a running backend must not outlive the import.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if redisClient, err = cache.Connect(ctx, cfg.RedisURL); err != nil {
			log.WithError(err).Warn("redis unavailable, cached summaries expire on their own")
			redisClient = nil
		}
	}
	cacheLayer := cache.New(redisClient, cfg.CacheTTL, log)
	defer cacheLayer.Close()

	repo := repository.New(pool)
	svc := service.New(repo, workflow.New(repo, log), service.Options{
		Cache:            cacheLayer,
		Log:              log,
		ReorderThreshold: cfg.DefaultReorderThreshold,
	})

	actor := authz.Actor{UserID: opts.actorID, Name: "import_items", Role: authz.RoleSuperAdmin}
	result, err := svc.ImportItems(ctx, actor, rows)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"created": result.Created,
			"updated": result.Updated,
		}).Fatal("import failed")
	}

	log.WithFields(logrus.Fields{
		"file":    opts.path,
		"rows":    len(rows),
		"created": result.Created,
		"updated": result.Updated,
	}).Info("import complete")
}

func parseFlags() options {
	var opts options
	flag.StringVar(
		&opts.path,
		"file",
		"items.xlsx",
		"path to the item registry workbook",
	)
	flag.StringVar(
		&opts.kind,
		"kind",
		"",
		"kind for rows without a kind column (atk or office)",
	)
	flag.Int64Var(
		&opts.actorID,
		"actor-id",
		1,
		"user id recorded as the author of opening ledger entries",
	)
	flag.BoolVar(
		&opts.dryRun,
		"dry-run",
		false,
		"parse and print the rows without touching the database",
	)
	flag.Parse()

	if opts.kind != "" && !domain.ItemKind(opts.kind).Valid() {
		fmt.Fprintf(os.Stderr, "invalid -kind %q (expected atk or office)\n", opts.kind)
		os.Exit(2)
	}
	if opts.actorID <= 0 {
		fmt.Fprintln(os.Stderr, "-actor-id must be positive")
		os.Exit(2)
	}
	return opts
}

func readItemRows(path string, kind domain.ItemKind) ([]domain.ItemImportRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	rows, err := excel.ParseItemRows(file, kind)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}
