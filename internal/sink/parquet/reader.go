package parquet

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osmraw/internal/sink"
)

// readChunkSize is the number of rows materialised per record while reading
const readChunkSize = 64 * 1024

// ReadFile streams the rows of a table file written by Destination to fn,
// with values in the same Go types the router appends. It returns the number
// of rows delivered.
func ReadFile(ctx context.Context, path string, table sink.Table, fn func(values []any) error) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return 0, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read table: %w", err)
	}
	defer tbl.Release()

	if err := checkSchema(tbl.Schema(), table); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	tr := array.NewTableReader(tbl, readChunkSize)
	defer tr.Release()

	var count int64
	for tr.Next() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			values := make([]any, len(table.Columns))
			for c, col := range table.Columns {
				values[c] = value(rec.Column(c), col, r)
			}
			if err := fn(values); err != nil {
				return count, err
			}
			count++
		}
	}

	return count, nil
}

func checkSchema(schema *arrow.Schema, table sink.Table) error {
	fields := schema.Fields()
	if len(fields) != len(table.Columns) {
		return fmt.Errorf("expected %d columns for %s, found %d", len(table.Columns), table.Name, len(fields))
	}
	for i, c := range table.Columns {
		if fields[i].Name != c.Name {
			return fmt.Errorf("column %d of %s is %q, expected %q", i, table.Name, fields[i].Name, c.Name)
		}
		if fields[i].Type.ID() != arrowType(c.Type).ID() {
			return fmt.Errorf("column %s.%s has type %s, expected %s", table.Name, c.Name, fields[i].Type, arrowType(c.Type))
		}
	}
	return nil
}

// value extracts row r of arr as the Go type appendValue accepts for col
func value(arr arrow.Array, col sink.Column, r int) any {
	if arr.IsNull(r) {
		return nil
	}

	switch col.Type {
	case sink.Int16:
		return arr.(*array.Int16).Value(r)
	case sink.Int32:
		return arr.(*array.Int32).Value(r)
	case sink.Int64:
		return arr.(*array.Int64).Value(r)
	case sink.Float64:
		return arr.(*array.Float64).Value(r)
	case sink.Int64Array:
		list := arr.(*array.List)
		start, end := list.ValueOffsets(r)
		refs := make([]int64, end-start)
		copy(refs, list.ListValues().(*array.Int64).Int64Values()[start:end])
		return refs
	case sink.JSON:
		return []byte(arr.(*array.String).Value(r))
	default:
		return arr.(*array.String).Value(r)
	}
}
