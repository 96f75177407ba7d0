package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ElementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmraw_elements_total",
			Help: "Elements read from the input, by kind and admission outcome",
		},
		[]string{"kind", "outcome"},
	)

	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmraw_rows_total",
			Help: "Rows appended to each output table",
		},
		[]string{"table"},
	)

	OutOfOrderTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osmraw_out_of_order_elements_total",
			Help: "Elements that arrived after an element of a later kind",
		},
	)

	IndexMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmraw_index_memory_bytes",
			Help: "Estimated size of the referential index at the end of the last pass",
		},
	)

	ProcessMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmraw_process_resident_memory_bytes",
			Help: "Resident memory of the importer at the last system sample",
		},
	)
)

// Pre-resolved series for the per-element hot path
var (
	PointsAdmitted    = ElementsTotal.WithLabelValues("point", "admitted")
	PointsDropped     = ElementsTotal.WithLabelValues("point", "dropped")
	WaysAdmitted      = ElementsTotal.WithLabelValues("way", "admitted")
	WaysDropped       = ElementsTotal.WithLabelValues("way", "dropped")
	RelationsAdmitted = ElementsTotal.WithLabelValues("relation", "admitted")
	RelationsDropped  = ElementsTotal.WithLabelValues("relation", "dropped")
)

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
