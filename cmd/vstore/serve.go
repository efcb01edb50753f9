package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/pkg/devtools"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured stores over the devtools API",
		Long: `Start the devtools server for the stores in the config file.

The server exposes store snapshots, manual dispatch, a websocket
snapshot stream per store, and Prometheus metrics when enabled.

Examples:
  vstore serve
  vstore serve --address :7600
  vstore serve --config ./vstore.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (default from config)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	w := cmd.OutOrStdout()
	logger := newLogger(cfg, cmd.ErrOrStderr())

	promReg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	reg, err := newRegistry(cfg, logger, promReg)
	if err != nil {
		return err
	}

	opts := []devtools.Option{devtools.WithLogger(logger.With("component", "devtools"))}
	if cfg.Metrics.Enabled {
		opts = append(opts, devtools.WithMetrics(cfg.Metrics.Path, promReg))
	}
	srv := devtools.New(reg, opts...)

	printBanner(w)
	success(w, "Serving %d store(s) on http://%s", len(reg.Names()), cfg.Server.Address)
	for _, name := range reg.Names() {
		info(w, "%s  %s", accentStyle.Render(name), mutedStyle.Render("/stores/"+name))
	}
	if cfg.Metrics.Enabled {
		info(w, "metrics  %s", mutedStyle.Render(cfg.Metrics.Path))
	}

	return srv.Run(ctx, cfg.Server.Address)
}
