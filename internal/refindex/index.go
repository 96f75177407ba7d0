package refindex

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// key maps an OSM ID onto the bitmap's unsigned domain. The conversion is
// one-to-one, so negative IDs keep their own bits.
func key(id int64) uint64 {
	return uint64(id)
}

// Index records which point and way IDs were admitted during one pass.
// Both sets only grow; there is no removal. An Index is owned by a single
// goroutine and is not safe for concurrent use.
type Index struct {
	points *roaring64.Bitmap
	ways   *roaring64.Bitmap
}

// New creates an empty index for a new pass
func New() *Index {
	return &Index{
		points: roaring64.New(),
		ways:   roaring64.New(),
	}
}

// RecordPoint marks a point ID as admitted
func (x *Index) RecordPoint(id int64) {
	x.points.Add(key(id))
}

// RecordWay marks a way ID as admitted
func (x *Index) RecordWay(id int64) {
	x.ways.Add(key(id))
}

// HasPoint reports whether the point ID was admitted earlier in the pass
func (x *Index) HasPoint(id int64) bool {
	return x.points.Contains(key(id))
}

// HasWay reports whether the way ID was admitted earlier in the pass
func (x *Index) HasWay(id int64) bool {
	return x.ways.Contains(key(id))
}

// Points returns the number of distinct admitted point IDs
func (x *Index) Points() int64 {
	return int64(x.points.GetCardinality())
}

// Ways returns the number of distinct admitted way IDs
func (x *Index) Ways() int64 {
	return int64(x.ways.GetCardinality())
}

// MemoryBytes estimates the serialized size of both sets
func (x *Index) MemoryBytes() int64 {
	return int64(x.points.GetSizeInBytes() + x.ways.GetSizeInBytes())
}
