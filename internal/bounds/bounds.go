package bounds

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Kind identifies the variant of a Filter
type Kind uint8

const (
	KindUnbounded Kind = iota
	KindBox
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "bbox"
	case KindPolygon:
		return "polygon"
	default:
		return "none"
	}
}

// Box is an axis-aligned bounding box in degrees. All bounds are inclusive.
type Box struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Contains reports whether lon/lat lies inside or on the edge of the box
func (b Box) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ParseBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBox(s string) (Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Box{}, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Box{}, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Box{}, fmt.Errorf("bbox coordinate %q is not finite", p)
		}
		coords[i] = v
	}

	box := Box{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
	}

	if box.MinLon > box.MaxLon {
		return Box{}, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", box.MinLon, box.MaxLon)
	}
	if box.MinLat > box.MaxLat {
		return Box{}, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", box.MinLat, box.MaxLat)
	}

	return box, nil
}

// Filter decides whether a coordinate is admissible. It is one of three
// variants selected once before a pass: unbounded, box or polygon.
// The zero value is the unbounded filter.
type Filter struct {
	kind  Kind
	box   Box
	ring  orb.Ring
	holes int
}

// Unbounded returns a filter that admits every coordinate
func Unbounded() Filter {
	return Filter{kind: KindUnbounded}
}

// NewBox returns a filter admitting coordinates inside b
func NewBox(b Box) Filter {
	return Filter{kind: KindBox, box: b}
}

// NewPolygon returns a filter admitting coordinates enclosed by ring.
// The ring must be closed (first point repeated as last).
func NewPolygon(ring orb.Ring) (Filter, error) {
	if len(ring) < 4 {
		return Filter{}, fmt.Errorf("%w: got %d points", ErrShortRing, len(ring))
	}
	if !ring.Closed() {
		return Filter{}, ErrOpenRing
	}
	return Filter{kind: KindPolygon, ring: ring}, nil
}

// Kind returns the variant of the filter
func (f Filter) Kind() Kind {
	return f.kind
}

// Box returns the box of a box filter
func (f Filter) Box() Box {
	return f.box
}

// Ring returns the exterior ring of a polygon filter
func (f Filter) Ring() orb.Ring {
	return f.ring
}

// IgnoredHoles returns the number of interior rings dropped when the
// filter was parsed from WKT. Only the exterior ring is evaluated.
func (f Filter) IgnoredHoles() int {
	return f.holes
}

// Admits reports whether the coordinate passes the filter
func (f Filter) Admits(lon, lat float64) bool {
	switch f.kind {
	case KindBox:
		return f.box.Contains(lon, lat)
	case KindPolygon:
		return WindingNumber(f.ring, lon, lat) != 0
	default:
		return true
	}
}

func (f Filter) String() string {
	switch f.kind {
	case KindBox:
		return fmt.Sprintf("bbox(%.4f,%.4f,%.4f,%.4f)", f.box.MinLon, f.box.MinLat, f.box.MaxLon, f.box.MaxLat)
	case KindPolygon:
		b := f.ring.Bound()
		return fmt.Sprintf("polygon(%d points, extent %.4f,%.4f,%.4f,%.4f)",
			len(f.ring), b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
	default:
		return "none"
	}
}

// WindingNumber computes the winding number of the closed ring around x/y.
// Upward edge crossings with the point strictly left add one, downward
// crossings with the point strictly right subtract one. Horizontal edges
// never count. A non-zero result means the point is enclosed.
func WindingNumber(ring orb.Ring, x, y float64) int {
	wn := 0
	for i := 0; i+1 < len(ring); i++ {
		x0, y0 := ring[i][0], ring[i][1]
		x1, y1 := ring[i+1][0], ring[i+1][1]
		if y0 <= y {
			if y1 > y && isLeft(x0, y0, x1, y1, x, y) > 0 {
				wn++
			}
		} else if y1 <= y && isLeft(x0, y0, x1, y1, x, y) < 0 {
			wn--
		}
	}
	return wn
}

// isLeft is the cross product of (p1-p0) and (p2-p0): positive when p2 is
// left of the directed line p0->p1, negative when right, zero when on it.
func isLeft(x0, y0, x1, y1, x2, y2 float64) float64 {
	return (x1-x0)*(y2-y0) - (x2-x0)*(y1-y0)
}
