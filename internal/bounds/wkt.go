package bounds

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

var (
	ErrOpenRing     = errors.New("polygon ring is not closed")
	ErrShortRing    = errors.New("polygon ring needs at least 4 points")
	ErrNotPolygon   = errors.New("filter geometry must be a WKT POLYGON")
	ErrEmptyPolygon = errors.New("polygon has no exterior ring")
)

// ParseWKT builds a polygon filter from a WKT POLYGON string. The exterior
// ring is kept in order, including the closing coordinate. Interior rings
// are not supported; they are counted in IgnoredHoles and otherwise dropped.
func ParseWKT(s string) (Filter, error) {
	geom, err := wkt.Unmarshal(strings.TrimSpace(s))
	if err != nil {
		return Filter{}, fmt.Errorf("invalid polygon WKT: %w", err)
	}

	poly, ok := geom.(orb.Polygon)
	if !ok {
		return Filter{}, fmt.Errorf("%w, got %s", ErrNotPolygon, geom.GeoJSONType())
	}
	if len(poly) == 0 {
		return Filter{}, ErrEmptyPolygon
	}

	f, err := NewPolygon(poly[0])
	if err != nil {
		return Filter{}, err
	}
	f.holes = len(poly) - 1
	return f, nil
}

// FromConfig selects the filter variant for a pass. A polygon (inline WKT or
// read from polygonFile) takes precedence over a bbox; with neither set the
// filter is unbounded.
func FromConfig(bbox, polygonWKT, polygonFile string) (Filter, error) {
	if polygonWKT != "" && polygonFile != "" {
		return Filter{}, fmt.Errorf("polygon and polygon file are mutually exclusive")
	}

	if polygonFile != "" {
		data, err := os.ReadFile(polygonFile)
		if err != nil {
			return Filter{}, fmt.Errorf("failed to read polygon file: %w", err)
		}
		polygonWKT = string(data)
	}

	switch {
	case polygonWKT != "":
		return ParseWKT(polygonWKT)
	case bbox != "":
		b, err := ParseBox(bbox)
		if err != nil {
			return Filter{}, err
		}
		return NewBox(b), nil
	default:
		return Unbounded(), nil
	}
}
