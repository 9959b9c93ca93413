package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/wlctl/internal/discovery"
	"github.com/danmuck/wlctl/internal/monitor"
	"github.com/danmuck/wlctl/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	observability.InitLogger("wlmon", "")
	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("wlmon exited")
		fmt.Fprintf(os.Stderr, "wlmon: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, listen string
	flagSet := pflag.NewFlagSet("wlmon", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "wlmon config file")
	flagSet.StringVar(&listen, "listen", "", "HTTP listen address (overrides metrics_addr)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := defaultServiceConfig()
	if configPath != "" {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listen != "" {
		cfg.Client.MetricsAddr = listen
	}

	sessCfg, err := cfg.Client.SessionConfig(os.LookupEnv)
	if err != nil {
		return err
	}
	cat, files, err := discovery.Load(cfg.Client.ProtocolPaths, discovery.EnvFromLookup(os.LookupEnv))
	if err != nil {
		return err
	}
	m, err := monitor.New(monitor.Config{
		Node:         cfg.Client.Name,
		Session:      sessCfg,
		Catalog:      cat,
		Backoff:      cfg.Backoff,
		SyncInterval: cfg.SyncInterval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := observability.InitLogger("wlmon", cfg.Client.Name)
	router := monitor.NewRouter(m, cfg.Client.CorsOrigins)
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- monitor.Serve(ctx, cfg.Client.MetricsAddr, router)
	}()
	monErr := make(chan error, 1)
	go func() {
		monErr <- m.Run(ctx)
	}()
	logger.Info().Msgf("wlmon.start listen=%s protocol_files=%d interfaces=%d",
		cfg.Client.MetricsAddr, len(files), cat.Len())

	select {
	case err := <-httpErr:
		stop()
		<-monErr
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-monErr:
		stop()
		if herr := <-httpErr; herr != nil && !errors.Is(herr, http.ErrServerClosed) {
			return errors.Join(err, herr)
		}
		return err
	}
}
