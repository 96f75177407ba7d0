package sink

// ColumnType is the logical type of an output column
type ColumnType int

const (
	Int16 ColumnType = iota
	Int32
	Int64
	Float64
	Int64Array
	Text
	JSON
)

// SQL returns the PostgreSQL type for the column
func (t ColumnType) SQL() string {
	switch t {
	case Int16:
		return "int2"
	case Int32:
		return "int4"
	case Int64:
		return "int8"
	case Float64:
		return "float8"
	case Int64Array:
		return "int8[]"
	case Text:
		return "text"
	case JSON:
		return "jsonb"
	default:
		return "unknown"
	}
}

// Column describes one output column
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Table describes one of the four output tables. Rows passed to a
// Destination carry their values in Columns order.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

var (
	PointsTable = Table{
		Name: "points",
		Columns: []Column{
			{Name: "id", Type: Int64},
			{Name: "lon", Type: Float64},
			{Name: "lat", Type: Float64},
			{Name: "tags", Type: JSON, Nullable: true},
		},
	}

	WaysTable = Table{
		Name: "ways",
		Columns: []Column{
			{Name: "id", Type: Int64},
			{Name: "refs", Type: Int64Array},
			{Name: "tags", Type: JSON, Nullable: true},
		},
	}

	RelationsTable = Table{
		Name: "relations",
		Columns: []Column{
			{Name: "id", Type: Int64},
			{Name: "type_id", Type: Int16},
			{Name: "tags", Type: JSON, Nullable: true},
		},
	}

	MembersTable = Table{
		Name: "relation_members",
		Columns: []Column{
			{Name: "rel_id", Type: Int64},
			{Name: "member_id", Type: Int64},
			{Name: "member_type_id", Type: Int16},
			{Name: "role", Type: Text, Nullable: true},
			{Name: "sequence_id", Type: Int32},
		},
	}
)

// Tables returns the output tables in load order
func Tables() []Table {
	return []Table{PointsTable, WaysTable, RelationsTable, MembersTable}
}
