package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vanshika/graphrepo/internal/config"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/logging"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "graphrepo",
		Short: "Repository layer over Neo4j with a movies sample application",
		Long: `graphrepo maps Go entities onto a Neo4j graph and serves a small movies
application on top of it.

Commands:
  serve    - run the HTTP API
  ingest   - load a JSON dataset through the bulk ingestor
  datagen  - write a synthetic dataset
  query    - run a Cypher query and print the rows as JSON`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(a.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = logging.NewWriter(cmd.ErrOrStderr(), cfg.Logging)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a config file (default ./graphrepo.yaml when present)")

	root.AddCommand(
		newServeCmd(a),
		newIngestCmd(a),
		newDatagenCmd(a),
		newQueryCmd(a),
	)
	return root
}

// connect opens the Neo4j client, checks connectivity and wraps it with
// metrics and tracing. reg may be nil.
func (a *app) connect(ctx context.Context, reg prometheus.Registerer) (graph.Client, error) {
	if a.cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}
	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            a.cfg.Graph.URI,
		Database:       a.cfg.Graph.Database,
		Username:       a.cfg.Graph.Username,
		Password:       a.cfg.Graph.Password,
		MaxConnections: a.cfg.Graph.MaxConnections,
	})
	if err != nil {
		return nil, err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	a.logger.Info("connected to graph", "uri", a.cfg.Graph.URI, "database", a.cfg.Graph.Database)

	instrumented, err := graph.Instrument(client, graph.InstrumentOptions{Logger: a.logger, Registerer: reg})
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return instrumented, nil
}

// services is the movies application assembled over one graph client.
type services struct {
	users   *service.UserService
	cinemas *service.CinemaService
}

func (a *app) buildServices(ctx context.Context, client graph.Client) (services, error) {
	if err := service.EnsureSchema(ctx, client); err != nil {
		return services{}, err
	}

	session := ogm.NewSession(client, a.logger)
	users, err := service.NewUserRepository(session, a.logger)
	if err != nil {
		return services{}, fmt.Errorf("build user repository: %w", err)
	}
	genres, err := service.NewGenreRepository(session, a.logger)
	if err != nil {
		return services{}, fmt.Errorf("build genre repository: %w", err)
	}
	cinemas, err := service.NewCinemaRepository(session, a.logger)
	if err != nil {
		return services{}, fmt.Errorf("build cinema repository: %w", err)
	}

	limits := service.PageLimits{
		DefaultSize: a.cfg.Repository.DefaultPageSize,
		MaxSize:     a.cfg.Repository.MaxPageSize,
	}
	return services{
		users:   service.NewUserService(users, genres, limits, a.logger),
		cinemas: service.NewCinemaService(cinemas, users, a.logger),
	}, nil
}

func (a *app) closeClient(client graph.Client) {
	if err := client.Close(context.Background()); err != nil {
		a.logger.Warn("closing graph client failed", "error", err)
	}
}
