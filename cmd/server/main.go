package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/backuppapnj/simbara-new-sub003/internal/cache"
	"github.com/backuppapnj/simbara-new-sub003/internal/config"
	"github.com/backuppapnj/simbara-new-sub003/internal/db"
	httpapi "github.com/backuppapnj/simbara-new-sub003/internal/http"
	"github.com/backuppapnj/simbara-new-sub003/internal/logging"
	"github.com/backuppapnj/simbara-new-sub003/internal/notify"
	"github.com/backuppapnj/simbara-new-sub003/internal/repository"
	"github.com/backuppapnj/simbara-new-sub003/internal/service"
	"github.com/backuppapnj/simbara-new-sub003/internal/workflow"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("config error")
	}
	log := logging.New(cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:    cfg.DBMaxConns,
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("database error")
	}
	defer pool.Close()

	applied, err := db.RunMigrations(ctx, pool, log)
	if err != nil {
		log.WithError(err).Fatal("migration error")
	}
	log.WithField("applied", applied).Info("migrations up to date")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, caching disabled")
			redisClient = nil
		}
	}
	cacheLayer := cache.New(redisClient, cfg.CacheTTL, log)
	defer cacheLayer.Close()

	var events notify.Publisher = notify.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		events = notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.WithField("topic", cfg.KafkaTopic).Info("publishing events to kafka")
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.WithError(err).Warn("event publisher close failed")
		}
	}()

	repo := repository.New(pool)
	engine := workflow.New(repo, log)
	svc := service.New(repo, engine, service.Options{
		Cache:            cacheLayer,
		Events:           events,
		Log:              log,
		ReorderThreshold: cfg.DefaultReorderThreshold,
	})
	handler := httpapi.NewHandler(svc, log)
	router := httpapi.NewRouter(handler, log, cfg.JWTSecret)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
		if closeErr := server.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("force close failed")
		}
	}
}
