package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/osmraw/internal/bounds"
	"github.com/wegman-software/osmraw/internal/config"
	"github.com/wegman-software/osmraw/internal/logger"
	"github.com/wegman-software/osmraw/internal/metrics"
	"github.com/wegman-software/osmraw/internal/router"
	"github.com/wegman-software/osmraw/internal/schema"
	"github.com/wegman-software/osmraw/internal/sink"
	"github.com/wegman-software/osmraw/internal/sink/parquet"
	"github.com/wegman-software/osmraw/internal/sink/postgres"
	"github.com/wegman-software/osmraw/internal/source"
)

// progressInterval is how often pass progress is logged
const progressInterval = 5 * time.Second

// Result summarises a completed import
type Result struct {
	Filter    string
	Elements  router.Stats
	Rows      sink.Counts
	BytesRead int64

	// Referential index size at the end of the pass
	IndexPoints int64
	IndexWays   int64
	IndexBytes  int64

	PassDuration     time.Duration
	FinalizeDuration time.Duration
	TotalDuration    time.Duration
}

// Importer runs one pass over an input file into the configured sink
type Importer struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

// New creates an importer. For the postgres sink it connects to the database.
func New(ctx context.Context, cfg *config.Config) (*Importer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	imp := &Importer{cfg: cfg}
	if cfg.Sink == config.SinkPostgres {
		pool, err := postgres.Connect(ctx, cfg.ConnectionString(), cfg.Workers)
		if err != nil {
			return nil, err
		}
		imp.pool = pool
	}
	return imp, nil
}

// Close releases database connections
func (i *Importer) Close() error {
	if i.pool != nil {
		i.pool.Close()
	}
	return nil
}

// Run executes the import
func (i *Importer) Run(ctx context.Context) (*Result, error) {
	log := logger.Get()
	start := time.Now()

	filter, err := bounds.FromConfig(i.cfg.BBox, i.cfg.Polygon, i.cfg.PolygonFile)
	if err != nil {
		return nil, err
	}
	if n := filter.IgnoredHoles(); n > 0 {
		log.Warn("Polygon holes are not supported and will be ignored", zap.Int("holes", n))
	}
	log.Info("Spatial filter", zap.Stringer("filter", filter))

	if i.cfg.MetricsInterval > 0 {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()

		collector := metrics.NewCollector(i.cfg.MetricsInterval, log)
		go collector.Start(metricsCtx)
		log.Info("System metrics collection started", zap.Duration("interval", i.cfg.MetricsInterval))
	}

	if i.cfg.MetricsAddr != "" {
		serveCtx, cancelServe := context.WithCancel(ctx)
		defer cancelServe()
		go func() {
			if err := metrics.Serve(serveCtx, i.cfg.MetricsAddr, log); err != nil {
				log.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	if i.pool != nil {
		if err := schema.Prepare(ctx, i.pool, i.cfg.DBSchema, i.cfg.DropExisting); err != nil {
			return nil, err
		}
	}

	src, err := source.Open(ctx, i.cfg.InputFile, i.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer src.Close()

	sinks, err := i.openSinks(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("Reading input",
		zap.String("file", i.cfg.InputFile),
		zap.String("format", src.Format()),
		zap.String("size", FormatBytes(src.Size())),
		zap.String("sink", i.cfg.Sink),
	)

	r := router.New(filter, sinks, router.Options{StrictOrder: i.cfg.StrictOrder})

	progressCtx, cancelProgress := context.WithCancel(ctx)
	tracker := NewProgressTracker(src.Size(), time.Now())
	go tick(progressCtx, progressInterval, func() {
		reportProgress(tracker, r.Progress(), src.BytesRead())
	})

	stats, err := r.Run(ctx, src)
	cancelProgress()
	if err != nil {
		sinks.Abort()
		if errors.Is(err, router.ErrOutOfOrder) {
			return nil, fmt.Errorf("%w (sort the input or run without --strict-order)", err)
		}
		return nil, err
	}
	if stats.OutOfOrder > 0 {
		log.Warn("Input was not sorted; some elements may be missing",
			zap.Int64("out_of_order", stats.OutOfOrder))
	}

	counts, err := sinks.Finish()
	if err != nil {
		return nil, err
	}
	passDuration := time.Since(start)

	for _, c := range []struct {
		table string
		n     int64
	}{
		{sink.PointsTable.Name, counts.Points},
		{sink.WaysTable.Name, counts.Ways},
		{sink.RelationsTable.Name, counts.Relations},
		{sink.MembersTable.Name, counts.Members},
	} {
		metrics.RowsTotal.WithLabelValues(c.table).Add(float64(c.n))
		log.Info(fmt.Sprintf("Imported %d %s", c.n, c.table), zap.String("table", c.table), zap.Int64("rows", c.n))
	}

	index := r.Index()
	metrics.IndexMemoryBytes.Set(float64(index.MemoryBytes()))
	log.Info("Referential index",
		zap.Int64("points", index.Points()),
		zap.Int64("ways", index.Ways()),
		zap.String("memory", FormatBytes(index.MemoryBytes())),
	)

	var finalizeDuration time.Duration
	if i.pool != nil {
		if i.cfg.SkipFinalize {
			log.Info("Skipping finalization")
		} else {
			finalizeStart := time.Now()
			log.Info("Finalizing tables in parallel")
			if err := schema.Finalize(ctx, i.pool, i.cfg.DBSchema); err != nil {
				return nil, err
			}
			finalizeDuration = time.Since(finalizeStart)
			log.Info("Tables finalized", zap.Duration("duration", finalizeDuration.Round(time.Second)))
		}
	}

	return &Result{
		Filter:           filter.String(),
		Elements:         stats,
		Rows:             counts,
		BytesRead:        src.BytesRead(),
		IndexPoints:      index.Points(),
		IndexWays:        index.Ways(),
		IndexBytes:       index.MemoryBytes(),
		PassDuration:     passDuration,
		FinalizeDuration: finalizeDuration,
		TotalDuration:    time.Since(start),
	}, nil
}

func (i *Importer) openSinks(ctx context.Context) (*sink.Set, error) {
	switch i.cfg.Sink {
	case config.SinkPostgres:
		return postgres.OpenSet(ctx, i.pool, i.cfg.DBSchema, i.cfg.ChannelBuffer)
	case config.SinkParquet:
		return parquet.OpenSet(i.cfg.OutputDir, i.cfg.BatchSize)
	case config.SinkDiscard:
		return sink.NewDiscardSet(), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", i.cfg.Sink)
	}
}

func reportProgress(tracker *ProgressTracker, stats router.Stats, bytesRead int64) {
	elements := stats.PointsSeen + stats.WaysSeen + stats.RelationsSeen
	p := tracker.Calculate(time.Now(), elements, bytesRead)

	logger.Get().Info("Import progress",
		zap.String("progress", fmt.Sprintf("%.1f%%", p.Percentage)),
		zap.String("read", FormatBytes(p.Bytes)),
		zap.Int64("points", stats.PointsAdmitted),
		zap.Int64("ways", stats.WaysAdmitted),
		zap.Int64("relations", stats.RelationsAdmitted),
		zap.String("rate", FormatThroughput(p.Throughput)),
		zap.Duration("elapsed", p.Elapsed),
		zap.String("eta", FormatETA(p.ETA)),
	)
}
