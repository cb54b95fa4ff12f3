package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prodigyranking/ratingengine/internal/adapters/source"
	service "github.com/prodigyranking/ratingengine/internal/app"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ratingengine",
		Short:        "Multi-factor rating aggregation engine",
		Long:         "ratingengine rates entities from configurable factor sources, publishes\nthe result set atomically and serves it over HTTP.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $RATING_CONFIG)")

	root.AddCommand(
		rebuildCmd(),
		captureSnapshotCmd(),
		weeklyCmd(),
		auditCmd(),
		leaderboardCmd(),
		ingestCmd(),
		generateCmd(),
		serveCmd(),
	)
	return root
}

func rebuildCmd() *cobra.Command {
	var (
		asOf       string
		dryRun     bool
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute and publish every rating",
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate(asOf)
			if err != nil {
				return err
			}
			return runRebuild(cmd.Context(), cmd.OutOrStdout(), date, dryRun, jsonOutput)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "rating date YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and audit without publishing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func captureSnapshotCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "capture-snapshot",
		Short: "Capture weekly counter snapshots for a date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			return runCaptureSnapshot(cmd.Context(), cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "snapshot date YYYY-MM-DD (default: today)")
	return cmd
}

func weeklyCmd() *cobra.Command {
	var (
		mode       string
		date       string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Run the weekly snapshot and rebuild job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := service.ParseMode(mode)
			if err != nil {
				return err
			}
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			return runWeekly(cmd.Context(), cmd.OutOrStdout(), m, d, jsonOutput)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(service.ModeFull), "job mode: "+modeNames())
	cmd.Flags().StringVar(&date, "date", "", "job date YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func auditCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit report of the last published run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd.Context(), cmd.OutOrStdout(), jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top published ratings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLeaderboard(cmd.Context(), cmd.OutOrStdout(), limit, jsonOutput)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func ingestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load entities, factor records and counters from a YAML dataset",
		Long:  "ingest applies a YAML dataset in one transaction. Records and counters may\nname entities listed in the file or already stored.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout(), file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "dataset file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func generateCmd() *cobra.Command {
	var (
		entities int
		seed     uint64
		firstID  int64
		out      string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic dataset for ingest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.OutOrStdout(), out, source.GenerateOptions{
				Entities: entities,
				Seed:     seed,
				FirstID:  firstID,
			})
		},
	}
	cmd.Flags().IntVar(&entities, "entities", 100, "number of entities")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Int64Var(&firstID, "first-id", 1, "id of the first entity")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the published ratings over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func modeNames() string {
	modes := service.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, "|")
}

// parseDate returns the zero time for an empty flag so the service picks today.
func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseDay(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %w", err)
	}
	return t, nil
}
