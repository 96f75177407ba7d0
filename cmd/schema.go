package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osmraw/internal/logger"
	"github.com/wegman-software/osmraw/internal/schema"
	"github.com/wegman-software/osmraw/internal/sink/postgres"
)

var (
	printOnly bool
	finalize  bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the raw tables without importing",
	Long: `Create the schema, lookup tables and the four raw tables in PostgreSQL.

With --print the DDL is written to stdout instead of being executed.
With --finalize the post-import maintenance (SET LOGGED, indexes, ANALYZE)
is run on existing tables, e.g. after an import with --skip-finalize.`,
	Args: cobra.NoArgs,
	Run:  runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().BoolVar(&printOnly, "print", false, "Print the DDL instead of executing it")
	schemaCmd.Flags().BoolVar(&finalize, "finalize", false, "Finalize existing tables instead of creating them")
}

func runSchema(cmd *cobra.Command, args []string) {
	if printOnly {
		for _, stmt := range schema.Statements(cfg.DBSchema, cfg.DropExisting) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", stmt)
		}
		return
	}

	log := logger.Get()
	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.ConnectionString(), cfg.Workers)
	if err != nil {
		exitWithError("failed to connect", err)
	}
	defer pool.Close()

	if finalize {
		if err := schema.Finalize(ctx, pool, cfg.DBSchema); err != nil {
			exitWithError("finalize failed", err)
		}
		log.Info("Tables finalized", zap.String("schema", cfg.DBSchema))
		return
	}

	if err := schema.Prepare(ctx, pool, cfg.DBSchema, cfg.DropExisting); err != nil {
		exitWithError("schema creation failed", err)
	}
	log.Info("Schema ready", zap.String("schema", cfg.DBSchema))
}
