package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshika/graphrepo/internal/generator"
	"github.com/vanshika/graphrepo/internal/service"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		datasetDir string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a JSON dataset through the bulk ingestor",
		Long: `Load users.json, cinemas.json, friendships.json and visits.json from a
dataset directory. Only users.json is required. Users and cinemas that already
exist are skipped, so a dataset can be ingested more than once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.logger.With("component", "ingest")

			dataset, err := generator.ReadDataset(datasetDir)
			if err != nil {
				logger.Error("failed to load dataset", "error", err, "dir", datasetDir)
				return err
			}
			if len(dataset.Users) == 0 {
				return fmt.Errorf("users dataset in %s is empty", datasetDir)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := a.connect(ctx, nil)
			if err != nil {
				logger.Error("failed to create graph client", "error", err)
				return err
			}
			defer a.closeClient(client)

			svc, err := a.buildServices(ctx, client)
			if err != nil {
				return err
			}

			start := time.Now()
			logger.Info("ingesting dataset",
				"users", len(dataset.Users),
				"cinemas", len(dataset.Cinemas),
				"friendships", len(dataset.Friendships),
				"visits", len(dataset.Visits),
				"workers", workers,
			)
			ingestor := service.NewBulkIngestor(svc.users, svc.cinemas, workers, a.logger)
			report, err := ingestor.IngestDataset(ctx, dataset)
			if err != nil {
				logger.Error("ingestion failed", "error", err)
				return err
			}

			logger.Info("ingestion complete",
				"duration", time.Since(start).String(),
				"users", report.Users,
				"cinemas", report.Cinemas,
				"friendships", report.Friendships,
				"visits", report.Visits,
				"skipped", report.Skipped,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetDir, "dataset-dir", "./seed-data", "directory containing the dataset JSON files")
	cmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent workers for ingestion")
	return cmd
}
