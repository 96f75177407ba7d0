package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osmraw/internal/loader"
	"github.com/wegman-software/osmraw/internal/logger"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load Parquet output into PostgreSQL",
	Long: `Bulk load the Parquet files written by "import --sink parquet" into PostgreSQL.

This stage:
  1. Prepares the schema (tables, lookup tables, keys)
  2. Streams all four files in parallel with COPY
  3. Switches the tables to logged, builds indexes and runs ANALYZE

The files are read from --output-dir.`,
	Args: cobra.NoArgs,
	Run:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) {
	log := logger.Get()
	log.Info("Starting PostgreSQL load",
		zap.String("input_dir", cfg.OutputDir),
		zap.String("database", cfg.DBName),
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("user", cfg.DBUser),
		zap.String("schema", cfg.DBSchema),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ldr, err := loader.NewLoader(ctx, cfg)
	if err != nil {
		exitWithError("failed to create loader", err)
	}
	defer ldr.Close()

	stats, err := ldr.Run(ctx)
	if err != nil {
		exitWithError("load failed", err)
	}

	rows := stats.Counts.Total()
	log.Info("Load complete",
		zap.Duration("duration", stats.Duration.Round(time.Second)),
		zap.Int64("rows", rows),
		zap.Float64("throughput_rows_s", float64(rows)/stats.Duration.Seconds()),
	)
}
