package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jkeevk/VKinder/internal/app"
	"github.com/jkeevk/VKinder/internal/bot"
	"github.com/jkeevk/VKinder/internal/cache"
	"github.com/jkeevk/VKinder/internal/config"
	"github.com/jkeevk/VKinder/internal/db"
	"github.com/jkeevk/VKinder/internal/logger"
	"github.com/jkeevk/VKinder/internal/matchmaker"
	"github.com/jkeevk/VKinder/internal/repository"
	"github.com/jkeevk/VKinder/internal/transport/callback"
	"github.com/jkeevk/VKinder/internal/vk"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log)

	// Wire the matchmaking pipeline
	client := vk.NewClient(cfg)
	store := repository.NewDecisionStore(appCtx.DB)
	directory := matchmaker.NewDirectory(client, appCtx.RedisCache)
	sessions := matchmaker.NewRegistry()
	dispatcher := matchmaker.NewDispatcher(store, directory, sessions, cfg.Search.Count, log)

	events := make(chan vk.Event, 64)

	// Ops/webhook HTTP server
	if cfg.HTTP.Enabled {
		srv := callback.NewServer(cfg, events, log)
		go func() {
			log.Info("starting http server", "addr", cfg.HTTP.Addr)
			if err := http.ListenAndServe(cfg.HTTP.Addr, srv.Router()); err != nil {
				log.Error("http server stopped", "err", err)
			}
		}()
	}

	// Long poll feed
	poller := vk.NewLongPoller(client, cfg.VK.GroupID)
	go poller.Run(ctx, events)

	log.Info("bot is running")
	bot.New(dispatcher, client, log).Run(ctx, events)
	log.Info("bot stopped")
}
