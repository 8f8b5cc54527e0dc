package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/adgen/adgen/internal/agents"
	"github.com/adgen/adgen/internal/api"
	"github.com/adgen/adgen/internal/config"
	"github.com/adgen/adgen/internal/eventbus"
	"github.com/adgen/adgen/internal/logx"
	"github.com/adgen/adgen/internal/seed"
	"github.com/adgen/adgen/internal/state"
	"github.com/adgen/adgen/internal/web"
)

func main() {
	cfg := config.Load()

	fs := pflag.NewFlagSet("controlpanel", pflag.ExitOnError)
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.WebDir, "web-dir", cfg.WebDir, "dashboard asset directory (embedded assets when missing)")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file, reloaded on change")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	sweep := fs.String("sweep", eventbus.DefaultSweepSchedule, "cron schedule for expiring idle runs")
	_ = fs.Parse(os.Args[1:])

	fileErr := cfg.LoadFile()
	log := logx.New(logx.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, os.Stdout)
	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", cfg.ConfigFile).Msg("config file ignored")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create data dir")
	}
	db, err := state.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	store := state.NewStore(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	live := config.NewLive(cfg.Dynamic)
	if cfg.ConfigFile != "" {
		go func() {
			if err := config.Watch(ctx, cfg.ConfigFile, cfg.Dynamic, live, logx.Component(log, "config")); err != nil {
				log.Warn().Err(err).Msg("config watch disabled")
			}
		}()
	}
	if cfg.Dynamic.WebhookSecret == config.DefaultWebhookSecret {
		log.Warn().Msg("WEBHOOK_SECRET is the default placeholder")
	}

	broker := eventbus.NewBroker(eventbus.Options{})
	stopJanitor, err := broker.StartJanitor(*sweep, logx.Component(log, "eventbus"))
	if err != nil {
		log.Fatal().Err(err).Msg("start janitor")
	}
	defer stopJanitor()

	apiServer := &api.Server{
		Broker:     broker,
		Store:      store,
		Agents:     &agents.Client{Log: logx.Component(log, "agents")},
		Seeder:     &seed.Seeder{Store: store, Log: logx.Component(log, "seed")},
		Live:       live,
		Production: cfg.Production(),
		Log:        logx.Component(log, "api"),
		StartedAt:  time.Now().UTC(),
		Info: api.DiagnosticsInfo{
			HTTPAddr: cfg.HTTPAddr,
			DataDir:  cfg.DataDir,
			DBPath:   cfg.DBPath,
			WebDir:   cfg.WebDir,
			Env:      cfg.Env,
		},
	}
	webServer := &web.Server{Dir: cfg.WebDir}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("/", webServer.Handler())

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	httpServer := &http.Server{
		Handler:           logx.Middleware(logx.Component(log, "http"), mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Str("env", cfg.Env).Msg("control panel listening")
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}
	_ = httpServer.Close()
}
