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

	"github.com/adgen/adgen/internal/config"
	"github.com/adgen/adgen/internal/geo"
	"github.com/adgen/adgen/internal/logx"
	"github.com/adgen/adgen/internal/seed"
	"github.com/adgen/adgen/internal/state"
	"github.com/adgen/adgen/internal/storefront"
)

func main() {
	cfg := config.Load()

	fs := pflag.NewFlagSet("storefront", pflag.ExitOnError)
	fs.StringVar(&cfg.StorefrontAddr, "addr", cfg.StorefrontAddr, "listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file, reloaded on change")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	geoEndpoints := fs.StringSlice("geo-endpoint", geo.DefaultEndpoints, "IP lookup endpoints tried in order; {ip} is substituted")
	seedCatalog := fs.Bool("seed-catalog", false, "write the product catalog to the store on startup")
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

	store := state.NewStore(db)
	if *seedCatalog {
		count, err := seed.SeedProducts(ctx, store)
		if err != nil {
			log.Fatal().Err(err).Msg("seed catalog")
		}
		log.Info().Int("count", count).Msg("catalog seeded")
	}

	server := &storefront.Server{
		Store: store,
		Geo:   &geo.Resolver{Endpoints: *geoEndpoints, Log: logx.Component(log, "geo")},
		Live:  live,
		Log:   logx.Component(log, "storefront"),
	}
	listener, err := net.Listen("tcp", cfg.StorefrontAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	httpServer := &http.Server{
		Handler:           logx.Middleware(logx.Component(log, "http"), server.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("storefront listening")
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
