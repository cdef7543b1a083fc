package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshika/graphrepo/internal/generator"
)

func newDatagenCmd(_ *app) *cobra.Command {
	cfg := generator.DefaultConfig()
	var (
		outputDir   string
		writeStdout bool
	)
	cmd := &cobra.Command{
		Use:   "datagen",
		Short: "Write a synthetic users and cinemas dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			dataset, err := generator.New(cfg).Generate(ctx)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			if writeStdout {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(dataset)
			}
			if err := generator.WriteDataset(dataset, outputDir); err != nil {
				return fmt.Errorf("write dataset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d users, %d cinemas, %d friendships and %d visits into %s\n",
				len(dataset.Users), len(dataset.Cinemas), len(dataset.Friendships), len(dataset.Visits), outputDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.NumUsers, "users", cfg.NumUsers, "number of users to generate")
	flags.IntVar(&cfg.NumCinemas, "cinemas", cfg.NumCinemas, "number of cinemas to generate")
	flags.IntVar(&cfg.MaxGenres, "max-genres", cfg.MaxGenres, "maximum genres a user is interested in")
	flags.Float64Var(&cfg.FriendsPerUser, "friends-per-user", cfg.FriendsPerUser, "average friendships per user")
	flags.Float64Var(&cfg.VisitsPerUser, "visits-per-user", cfg.VisitsPerUser, "average cinema visits per user")
	flags.Float64Var(&cfg.PopularityBias, "popularity-bias", cfg.PopularityBias, "probability a visit goes to one of the first three cinemas")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for deterministic generation")
	flags.StringVar(&outputDir, "output-dir", "seed-data", "directory to write the dataset files")
	flags.BoolVar(&writeStdout, "stdout", false, "write the combined dataset to stdout instead of files")
	return cmd
}
