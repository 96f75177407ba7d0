package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osmraw/internal/config"
	"github.com/wegman-software/osmraw/internal/importer"
	"github.com/wegman-software/osmraw/internal/logger"
)

var importCmd = &cobra.Command{
	Use:   "import <input.osm.pbf>",
	Short: "Import an OSM file into the raw tables",
	Long: `Read an OSM file once, in order, and write every kept element to its table:

  points            nodes inside the spatial filter
  ways              ways whose nodes were all kept
  relations         relations whose point and way members were all kept
  relation_members  one row per member of a kept relation

The input must be sorted nodes, then ways, then relations, as produced by
planet dumps and extracts. Use --sink parquet to write Parquet files into
--output-dir instead of PostgreSQL, or --sink discard for a dry run.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&cfg.Sink, "sink", cfg.Sink, "Output: postgres, parquet or discard")
	importCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet record batch")
	importCmd.Flags().BoolVar(&cfg.StrictOrder, "strict-order", cfg.StrictOrder, "Fail on unsorted input instead of dropping unresolved elements")
}

func runImport(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	logFields := []zap.Field{
		zap.String("input", cfg.InputFile),
		zap.String("sink", cfg.Sink),
		zap.Int("workers", cfg.Workers),
	}
	switch cfg.Sink {
	case config.SinkPostgres:
		logFields = append(logFields,
			zap.String("output", fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)),
			zap.String("schema", cfg.DBSchema),
		)
	case config.SinkParquet:
		logFields = append(logFields, zap.String("output", cfg.OutputDir))
	}
	log.Info("Starting osmraw import", logFields...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	imp, err := importer.New(ctx, cfg)
	if err != nil {
		exitWithError("failed to create importer", err)
	}
	defer imp.Close()

	res, err := imp.Run(ctx)
	if err != nil {
		exitWithError("import failed", err)
	}

	log.Info("Import complete",
		zap.Duration("total_time", res.TotalDuration.Round(time.Second)),
		zap.Duration("pass_time", res.PassDuration.Round(time.Second)),
		zap.Duration("finalize_time", res.FinalizeDuration.Round(time.Second)),
		zap.Int64("nodes", res.Elements.PointsSeen),
		zap.Int64("ways", res.Elements.WaysSeen),
		zap.Int64("relations", res.Elements.RelationsSeen),
		zap.Int64("total_rows", res.Rows.Total()),
		zap.Float64("throughput_mb_s", float64(res.BytesRead)/(1024*1024)/res.TotalDuration.Seconds()),
	)
}
