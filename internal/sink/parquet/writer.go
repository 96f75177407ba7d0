package parquet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osmraw/internal/sink"
)

// arrowType maps a sink column type to its Arrow representation.
// JSON tags are stored as strings.
func arrowType(t sink.ColumnType) arrow.DataType {
	switch t {
	case sink.Int16:
		return arrow.PrimitiveTypes.Int16
	case sink.Int32:
		return arrow.PrimitiveTypes.Int32
	case sink.Int64:
		return arrow.PrimitiveTypes.Int64
	case sink.Float64:
		return arrow.PrimitiveTypes.Float64
	case sink.Int64Array:
		return arrow.ListOf(arrow.PrimitiveTypes.Int64)
	default:
		return arrow.BinaryTypes.String
	}
}

// Schema returns the Arrow schema for a table
func Schema(t sink.Table) *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: c.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

// Destination writes the rows of one table to a Parquet file in record
// batches of batchSize rows
type Destination struct {
	table     sink.Table
	path      string
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	pending   int
	total     int64
	finished  bool
}

// Open creates path and a writer for table
func Open(path string, table sink.Table, batchSize int) (*Destination, error) {
	schema := Schema(table)

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Destination{
		table:     table,
		path:      path,
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

// Append adds one row; values must follow the table's column order
func (d *Destination) Append(values []any) error {
	if d.finished {
		return sink.ErrFinished
	}
	if len(values) != len(d.table.Columns) {
		return fmt.Errorf("%s: expected %d values, got %d", d.table.Name, len(d.table.Columns), len(values))
	}

	for i, v := range values {
		if err := appendValue(d.builder.Field(i), d.table.Columns[i], v); err != nil {
			return fmt.Errorf("%s.%s: %w", d.table.Name, d.table.Columns[i].Name, err)
		}
	}

	d.pending++
	d.total++
	if d.pending >= d.batchSize {
		return d.flush()
	}
	return nil
}

func appendValue(b array.Builder, col sink.Column, v any) error {
	switch col.Type {
	case sink.Int16:
		x, ok := v.(int16)
		if !ok {
			return fmt.Errorf("expected int16, got %T", v)
		}
		b.(*array.Int16Builder).Append(x)
	case sink.Int32:
		x, ok := v.(int32)
		if !ok {
			return fmt.Errorf("expected int32, got %T", v)
		}
		b.(*array.Int32Builder).Append(x)
	case sink.Int64:
		x, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64, got %T", v)
		}
		b.(*array.Int64Builder).Append(x)
	case sink.Float64:
		x, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
		b.(*array.Float64Builder).Append(x)
	case sink.Int64Array:
		x, ok := v.([]int64)
		if !ok {
			return fmt.Errorf("expected []int64, got %T", v)
		}
		lb := b.(*array.ListBuilder)
		lb.Append(true)
		lb.ValueBuilder().(*array.Int64Builder).AppendValues(x, nil)
	default:
		sb := b.(*array.StringBuilder)
		switch x := v.(type) {
		case string:
			sb.Append(x)
		case []byte:
			if x == nil {
				sb.AppendNull()
			} else {
				sb.Append(string(x))
			}
		case nil:
			sb.AppendNull()
		default:
			return fmt.Errorf("expected text, got %T", v)
		}
	}
	return nil
}

func (d *Destination) flush() error {
	if d.pending == 0 {
		return nil
	}
	rec := d.builder.NewRecord()
	defer rec.Release()
	d.pending = 0
	return d.writer.Write(rec)
}

// Finish flushes the last batch and closes the file
func (d *Destination) Finish() (int64, error) {
	if d.finished {
		return 0, sink.ErrFinished
	}
	d.finished = true
	defer d.builder.Release()

	if err := d.flush(); err != nil {
		d.writer.Close()
		return 0, err
	}
	if err := d.writer.Close(); err != nil {
		return 0, err
	}
	// the parquet writer may already have closed the file
	if err := d.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return 0, err
	}
	return d.total, nil
}

// Abort closes the file without flushing pending rows
func (d *Destination) Abort() {
	if d.finished {
		return
	}
	d.finished = true
	d.builder.Release()
	d.writer.Close()
	d.file.Close()
}

// FileName returns the file name used for a table
func FileName(t sink.Table) string {
	return t.Name + ".parquet"
}

// OpenSet creates one Parquet file per table in dir
func OpenSet(dir string, batchSize int) (*sink.Set, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var dests []*Destination
	for _, t := range sink.Tables() {
		d, err := Open(filepath.Join(dir, FileName(t)), t, batchSize)
		if err != nil {
			for _, o := range dests {
				o.Abort()
			}
			return nil, fmt.Errorf("failed to open %s: %w", FileName(t), err)
		}
		dests = append(dests, d)
	}

	return &sink.Set{Points: dests[0], Ways: dests[1], Relations: dests[2], Members: dests[3]}, nil
}
