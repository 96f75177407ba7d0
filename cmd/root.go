package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wegman-software/osmraw/internal/config"
	"github.com/wegman-software/osmraw/internal/logger"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "osmraw",
	Short: "Raw OSM element importer",
	Long: `osmraw imports OpenStreetMap elements into four raw tables:
points, ways, relations and relation_members.

Features:
  - Single ordered pass over .osm.pbf, .osm and .osm.bz2 files
  - Optional bounding box or polygon filter on points
  - Ways and relations are kept only when every reference was kept
  - PostgreSQL COPY streams, Parquet files, or a counting dry run`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyConfigFile(cmd.Flags()); err != nil {
			return err
		}

		logger.Init(logger.Options{Debug: cfg.Verbose, File: cfg.LogFile})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file; flags given on the command line take precedence")

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Directory for Parquet files")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of decoder goroutines and database connections")
	rootCmd.PersistentFlags().IntVar(&cfg.ChannelBuffer, "channel-buffer", cfg.ChannelBuffer, "Rows buffered per COPY stream")
	rootCmd.PersistentFlags().BoolVar(&cfg.DropExisting, "drop-existing", cfg.DropExisting, "Drop and recreate tables instead of truncating them")
	rootCmd.PersistentFlags().BoolVar(&cfg.SkipFinalize, "skip-finalize", cfg.SkipFinalize, "Leave tables unlogged and skip indexes and ANALYZE")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for system metrics logging (e.g., 10s, 1m), 0 to disable")
	rootCmd.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address (e.g., :9100)")

	// Database flags (persistent so they're available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")

	// Spatial filter flags
	rootCmd.PersistentFlags().StringVarP(&cfg.BBox, "bbox", "b", cfg.BBox, "Bounding box filter: minlon,minlat,maxlon,maxlat")
	rootCmd.PersistentFlags().StringVar(&cfg.Polygon, "polygon", cfg.Polygon, "Polygon filter as WKT; takes precedence over --bbox")
	rootCmd.PersistentFlags().StringVar(&cfg.PolygonFile, "polygon-file", cfg.PolygonFile, "File containing a WKT polygon filter")
}

// applyConfigFile loads the YAML file over cfg, then re-applies every flag
// set on the command line so that flags win over the file
func applyConfigFile(flags *pflag.FlagSet) error {
	if configFile == "" {
		return nil
	}
	// flag values are bound to cfg, so capture them before the file overwrites cfg
	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := config.LoadFile(configFile, cfg); err != nil {
		return err
	}

	for name, value := range changed {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
