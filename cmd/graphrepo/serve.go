package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vanshika/graphrepo/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	var registry *prometheus.Registry
	var registerer prometheus.Registerer
	if a.cfg.HTTP.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = registry
	}

	client, err := a.connect(ctx, registerer)
	if err != nil {
		a.logger.Error("failed to create graph client", "error", err)
		return err
	}
	defer a.closeClient(client)

	svc, err := a.buildServices(ctx, client)
	if err != nil {
		a.logger.Error("failed to prepare services", "error", err)
		return err
	}

	router := server.NewRouter(a.logger, server.RouterDependencies{
		Health:           server.GraphHealthService{Client: client},
		API:              server.NewAPIHandlers(a.logger, svc.users, svc.cinemas),
		AllowedOrigins:   server.ParseAllowedOrigins(a.cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
		Metrics:          registry,
	})

	return server.New(a.logger, a.cfg.HTTP, router).Run(ctx)
}
