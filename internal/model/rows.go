package model

// PointRow is one row of the points table
type PointRow struct {
	ID   int64
	Lon  float64
	Lat  float64
	Tags []byte // JSON object, nil when the point has no tags
}

// Values returns the row in column order
func (r PointRow) Values() []any {
	return []any{r.ID, r.Lon, r.Lat, r.Tags}
}

// WayRow is one row of the ways table
type WayRow struct {
	ID   int64
	Refs []int64
	Tags []byte
}

func (r WayRow) Values() []any {
	return []any{r.ID, r.Refs, r.Tags}
}

// RelationRow is one row of the relations table
type RelationRow struct {
	ID   int64
	Type RelationType
	Tags []byte
}

func (r RelationRow) Values() []any {
	return []any{r.ID, int16(r.Type), r.Tags}
}

// MemberRow is one row of the relation_members table.
// Sequence is the zero-based position of the member within its relation.
type MemberRow struct {
	RelationID int64
	MemberID   int64
	MemberType MemberType
	Role       string
	Sequence   int32
}

func (r MemberRow) Values() []any {
	return []any{r.RelationID, r.MemberID, int16(r.MemberType), r.Role, r.Sequence}
}
