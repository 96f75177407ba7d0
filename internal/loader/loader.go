package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmraw/internal/config"
	"github.com/wegman-software/osmraw/internal/logger"
	"github.com/wegman-software/osmraw/internal/metrics"
	"github.com/wegman-software/osmraw/internal/schema"
	"github.com/wegman-software/osmraw/internal/sink"
	"github.com/wegman-software/osmraw/internal/sink/parquet"
	"github.com/wegman-software/osmraw/internal/sink/postgres"
)

// Stats holds loader statistics
type Stats struct {
	Counts   sink.Counts
	Duration time.Duration
}

// Loader copies the Parquet files of a previous parquet-sink import into
// PostgreSQL. The files already hold the admitted rows, so no filtering or
// reference resolution happens here.
type Loader struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

// NewLoader connects to PostgreSQL
func NewLoader(ctx context.Context, cfg *config.Config) (*Loader, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("input directory is required")
	}
	if cfg.DBSchema == "" {
		return nil, fmt.Errorf("db schema is required")
	}

	pool, err := postgres.Connect(ctx, cfg.ConnectionString(), cfg.Workers)
	if err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg, pool: pool}, nil
}

// Close closes connections
func (l *Loader) Close() error {
	l.pool.Close()
	return nil
}

// Files returns the expected Parquet file for each output table in dir,
// failing if any is missing
func Files(dir string) ([]string, error) {
	tables := sink.Tables()
	paths := make([]string, len(tables))
	for i, t := range tables {
		paths[i] = filepath.Join(dir, parquet.FileName(t))
		if _, err := os.Stat(paths[i]); err != nil {
			return nil, fmt.Errorf("missing %s: %w", parquet.FileName(t), err)
		}
	}
	return paths, nil
}

// Run prepares the schema and loads all four tables in parallel
func (l *Loader) Run(ctx context.Context) (*Stats, error) {
	log := logger.Get()
	start := time.Now()

	paths, err := Files(l.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	if err := schema.Prepare(ctx, l.pool, l.cfg.DBSchema, l.cfg.DropExisting); err != nil {
		return nil, err
	}

	sinks, err := postgres.OpenSet(ctx, l.pool, l.cfg.DBSchema, l.cfg.ChannelBuffer)
	if err != nil {
		return nil, err
	}

	dests := []sink.Destination{sinks.Points, sinks.Ways, sinks.Relations, sinks.Members}
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range sink.Tables() {
		i, t := i, t
		g.Go(func() error {
			log.Info("Loading table", zap.String("table", t.Name), zap.String("file", paths[i]))
			rows := metrics.RowsTotal.WithLabelValues(t.Name)
			_, err := parquet.ReadFile(gctx, paths[i], t, func(values []any) error {
				if err := dests[i].Append(values); err != nil {
					return err
				}
				rows.Inc()
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", t.Name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		sinks.Abort()
		return nil, err
	}

	counts, err := sinks.Finish()
	if err != nil {
		return nil, err
	}
	log.Info("Tables loaded",
		zap.Int64("points", counts.Points),
		zap.Int64("ways", counts.Ways),
		zap.Int64("relations", counts.Relations),
		zap.Int64("relation_members", counts.Members),
	)

	if l.cfg.SkipFinalize {
		log.Info("Skipping finalization")
	} else {
		log.Info("Finalizing tables in parallel")
		if err := schema.Finalize(ctx, l.pool, l.cfg.DBSchema); err != nil {
			return nil, err
		}
	}

	return &Stats{Counts: counts, Duration: time.Since(start)}, nil
}
