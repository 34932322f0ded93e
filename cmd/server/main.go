package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Louie-KC/chat/internal/config"
	"github.com/Louie-KC/chat/internal/cron"
	"github.com/Louie-KC/chat/internal/db"
	clog "github.com/Louie-KC/chat/internal/log"
	"github.com/Louie-KC/chat/internal/relay"
	"github.com/Louie-KC/chat/internal/server"
	"github.com/Louie-KC/chat/internal/service"
	"github.com/Louie-KC/chat/internal/ws"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	port := pflag.StringP("port", "p", "", "listen port, overrides APP_PORT")
	pflag.Parse()

	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
	}
	if *port != "" {
		cfg.Port = *port
	}
	clog.Init(cfg.Env, cfg.LogLevel)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	var notify service.Notifier = hub
	if cfg.RedisURL != "" {
		rel, err := relay.New(cfg.RedisURL, "", hub)
		if err != nil {
			log.Fatal().Err(err).Msg("redis relay")
		}
		defer rel.Close()
		go func() {
			if err := rel.Run(ctx); err != nil {
				log.Error().Err(err).Msg("redis relay stopped")
			}
		}()
		notify = rel
		log.Info().Msg("room events relayed through redis")
	}

	svc := server.NewServices(cfg, gdb, hub, notify)
	if cfg.PurgeIntervalMins > 0 {
		sched, err := cron.Start(svc.Tokens, time.Duration(cfg.PurgeIntervalMins)*time.Minute)
		if err != nil {
			log.Fatal().Err(err).Msg("start token purge")
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, gdb, hub, svc, notify),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}
