package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"teamboard.io/internal/authz"
	"teamboard.io/internal/cache"
	"teamboard.io/internal/config"
	"teamboard.io/internal/httpapi"
	"teamboard.io/internal/obs"
	"teamboard.io/internal/store/pg"
	"teamboard.io/internal/token"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("TEAMBOARD_CONFIG"), "Path to YAML config")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	accessTTL, _ := cfg.AccessTTL()
	refreshTTL, _ := cfg.RefreshTTL()

	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	c := cache.New(redisClient, "teamboard")

	tokens, err := token.NewService(cfg.Auth.Secret, token.NewBlacklist(c),
		token.WithIssuer(cfg.Auth.Issuer),
		token.WithAccessTTL(accessTTL),
		token.WithRefreshTTL(refreshTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	resolver, err := authz.NewResolver(store, c)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}

	// Graph mutations flow through Admin, which publishes invalidation
	// events; the invalidator keeps the permission cache honest.
	events := authz.NewEvents()
	invalidatorCtx, stopInvalidator := context.WithCancel(context.Background())
	invalidatorDone := make(chan struct{})
	go func() {
		authz.NewInvalidator(resolver).Run(invalidatorCtx, events)
		close(invalidatorDone)
	}()
	admin, err := authz.NewAdmin(store, events)
	if err != nil {
		log.Fatalf("admin: %v", err)
	}

	api := httpapi.New(tokens, resolver, store, admin, httpapi.ReadyProbe{DB: store.DB(), Cache: c}, version)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting teamboard-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	stopInvalidator()
	<-invalidatorDone
	log.Println("Stopped")
}
