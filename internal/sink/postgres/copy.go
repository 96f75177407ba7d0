package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/osmraw/internal/logger"
	"github.com/wegman-software/osmraw/internal/sink"
)

// errAborted is reported by a COPY stream that was torn down by Abort
var errAborted = errors.New("copy aborted")

// Destination streams rows into one table with COPY FROM STDIN.
// The COPY runs on a dedicated pooled connection in its own goroutine and
// is fed through a buffered channel, so Append only blocks on back pressure.
type Destination struct {
	table  pgx.Identifier
	rows   chan []any
	done   chan struct{}
	cancel context.CancelFunc

	once     sync.Once
	finished bool

	// set by the COPY goroutine before done is closed
	count int64
	err   error
}

// Open acquires a connection and starts a COPY into schema.table
func Open(ctx context.Context, pool *pgxpool.Pool, schema string, table sink.Table, buffer int) (*Destination, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	copyCtx, cancel := context.WithCancel(ctx)
	columns := table.ColumnNames()
	ident := pgx.Identifier{schema, table.Name}

	d := start(ident, buffer, cancel, func(src pgx.CopyFromSource) (int64, error) {
		defer conn.Release()
		return conn.Conn().CopyFrom(copyCtx, ident, columns, src)
	})
	return d, nil
}

// start launches copyFn in its own goroutine, reading from the row channel
func start(table pgx.Identifier, buffer int, cancel context.CancelFunc, copyFn func(pgx.CopyFromSource) (int64, error)) *Destination {
	d := &Destination{
		table:  table,
		rows:   make(chan []any, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(d.done)
		d.count, d.err = copyFn(&rowSource{rows: d.rows})
		if d.err != nil {
			d.err = fmt.Errorf("COPY to %s failed: %w", d.table.Sanitize(), d.err)
		}
	}()

	return d
}

// Append queues one row. A COPY that already failed is reported here.
func (d *Destination) Append(values []any) error {
	if d.finished {
		return sink.ErrFinished
	}
	select {
	case d.rows <- values:
		return nil
	case <-d.done:
		if d.err != nil {
			return d.err
		}
		return errAborted
	}
}

// Finish ends the COPY stream and waits for the server to acknowledge it
func (d *Destination) Finish() (int64, error) {
	if d.finished {
		return 0, sink.ErrFinished
	}
	d.finished = true

	d.closeRows()
	<-d.done
	d.cancel()
	if d.err != nil {
		return 0, d.err
	}
	return d.count, nil
}

// Abort cancels the COPY. The server discards the rows of this stream.
func (d *Destination) Abort() {
	d.finished = true
	d.cancel()
	d.closeRows()
	<-d.done
	if d.err != nil && !errors.Is(d.err, context.Canceled) {
		logger.Get().Debug("COPY aborted with error", zap.String("table", d.table.Sanitize()), zap.Error(d.err))
	}
}

func (d *Destination) closeRows() {
	d.once.Do(func() { close(d.rows) })
}

// OpenSet starts COPY streams for all four tables, each on its own connection
func OpenSet(ctx context.Context, pool *pgxpool.Pool, schema string, buffer int) (*sink.Set, error) {
	var opened []*Destination
	open := func(t sink.Table) (*Destination, error) {
		d, err := Open(ctx, pool, schema, t, buffer)
		if err != nil {
			for _, o := range opened {
				o.Abort()
			}
			return nil, fmt.Errorf("failed to open %s: %w", t.Name, err)
		}
		opened = append(opened, d)
		return d, nil
	}

	points, err := open(sink.PointsTable)
	if err != nil {
		return nil, err
	}
	ways, err := open(sink.WaysTable)
	if err != nil {
		return nil, err
	}
	rels, err := open(sink.RelationsTable)
	if err != nil {
		return nil, err
	}
	members, err := open(sink.MembersTable)
	if err != nil {
		return nil, err
	}

	return &sink.Set{Points: points, Ways: ways, Relations: rels, Members: members}, nil
}

// rowSource implements pgx.CopyFromSource for streaming rows
type rowSource struct {
	rows    <-chan []any
	current []any
}

func (r *rowSource) Next() bool {
	row, ok := <-r.rows
	if !ok {
		return false
	}
	r.current = row
	return true
}

func (r *rowSource) Values() ([]any, error) {
	return r.current, nil
}

func (r *rowSource) Err() error {
	return nil
}
