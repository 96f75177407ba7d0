package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmraw/internal/bounds"
	"github.com/wegman-software/osmraw/internal/logger"
	"github.com/wegman-software/osmraw/internal/metrics"
	"github.com/wegman-software/osmraw/internal/model"
	"github.com/wegman-software/osmraw/internal/refindex"
	"github.com/wegman-software/osmraw/internal/sink"
	"github.com/wegman-software/osmraw/internal/tags"
)

// ErrOutOfOrder is returned in strict mode when the input presents an
// element after an element of a later kind (e.g. a node after a way)
var ErrOutOfOrder = errors.New("input is not ordered nodes, ways, relations")

// contextCheckInterval is how many elements are routed between context checks
const contextCheckInterval = 1 << 16

// Scanner is a forward-only element sequence
type Scanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
}

// Options tune a Router
type Options struct {
	// StrictOrder aborts the pass on the first out-of-order element instead
	// of counting it
	StrictOrder bool
}

// Stats summarises one pass
type Stats struct {
	PointsSeen        int64
	PointsAdmitted    int64
	WaysSeen          int64
	WaysAdmitted      int64
	RelationsSeen     int64
	RelationsAdmitted int64
	MembersWritten    int64
	OutOfOrder        int64
}

// counters are written by the routing goroutine and read by progress reporters
type counters struct {
	pointsSeen, pointsAdmitted       atomic.Int64
	waysSeen, waysAdmitted           atomic.Int64
	relationsSeen, relationsAdmitted atomic.Int64
	membersWritten, outOfOrder       atomic.Int64
}

// reset zeroes every counter. Readers may be polling concurrently.
func (c *counters) reset() {
	for _, v := range []*atomic.Int64{
		&c.pointsSeen, &c.pointsAdmitted,
		&c.waysSeen, &c.waysAdmitted,
		&c.relationsSeen, &c.relationsAdmitted,
		&c.membersWritten, &c.outOfOrder,
	} {
		v.Store(0)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		PointsSeen:        c.pointsSeen.Load(),
		PointsAdmitted:    c.pointsAdmitted.Load(),
		WaysSeen:          c.waysSeen.Load(),
		WaysAdmitted:      c.waysAdmitted.Load(),
		RelationsSeen:     c.relationsSeen.Load(),
		RelationsAdmitted: c.relationsAdmitted.Load(),
		MembersWritten:    c.membersWritten.Load(),
		OutOfOrder:        c.outOfOrder.Load(),
	}
}

// phase orders element kinds as the input is expected to present them
type phase int

const (
	phaseNodes phase = iota
	phaseWays
	phaseRelations
)

func (p phase) String() string {
	return [...]string{"node", "way", "relation"}[p]
}

// Router routes each element of one pass to its output table. Ways and
// relations are only admitted when everything they reference was admitted
// earlier in the same pass, so the Router must see the input in order and
// from a single goroutine.
type Router struct {
	filter bounds.Filter
	sinks  *sink.Set
	opts   Options

	index   *refindex.Index
	members []model.MemberRow
	refs    []int64
	phase   phase
	stats   counters
}

// New creates a Router writing to sinks
func New(filter bounds.Filter, sinks *sink.Set, opts Options) *Router {
	return &Router{
		filter: filter,
		sinks:  sinks,
		opts:   opts,
	}
}

// Progress returns the counters of the running pass. Safe for concurrent use.
func (r *Router) Progress() Stats {
	return r.stats.snapshot()
}

// Index returns the referential index of the current or last pass
func (r *Router) Index() *refindex.Index {
	return r.index
}

// Run consumes the scanner to the end. Unresolved references drop the
// element silently; decode and sink errors abort the pass.
func (r *Router) Run(ctx context.Context, sc Scanner) (Stats, error) {
	r.index = refindex.New()
	r.phase = phaseNodes
	r.stats.reset()

	var n int
	for sc.Scan() {
		n++
		if n%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return r.Progress(), err
			}
		}

		if err := r.route(sc.Object()); err != nil {
			return r.Progress(), err
		}
	}

	if err := sc.Err(); err != nil {
		return r.Progress(), fmt.Errorf("failed to decode input: %w", err)
	}
	return r.Progress(), nil
}

func (r *Router) route(obj osm.Object) error {
	switch e := obj.(type) {
	case *osm.Node:
		if err := r.enter(phaseNodes, e.ObjectID()); err != nil {
			return err
		}
		if err := r.handleNode(e); err != nil {
			return fmt.Errorf("node %d: %w", e.ID, err)
		}
	case *osm.Way:
		if err := r.enter(phaseWays, e.ObjectID()); err != nil {
			return err
		}
		if err := r.handleWay(e); err != nil {
			return fmt.Errorf("way %d: %w", e.ID, err)
		}
	case *osm.Relation:
		if err := r.enter(phaseRelations, e.ObjectID()); err != nil {
			return err
		}
		if err := r.handleRelation(e); err != nil {
			return fmt.Errorf("relation %d: %w", e.ID, err)
		}
	}
	return nil
}

// enter tracks the element phase and reports elements arriving late
func (r *Router) enter(p phase, id osm.ObjectID) error {
	if p >= r.phase {
		r.phase = p
		return nil
	}

	if r.opts.StrictOrder {
		return fmt.Errorf("%w: %s after %s elements", ErrOutOfOrder, id, r.phase)
	}
	if r.stats.outOfOrder.Add(1) == 1 {
		logger.Get().Warn("Input is not sorted; references to later elements will be dropped",
			zap.String("element", id.String()),
			zap.String("after", r.phase.String()),
		)
	}
	metrics.OutOfOrderTotal.Inc()
	return nil
}

func (r *Router) handleNode(n *osm.Node) error {
	r.stats.pointsSeen.Add(1)
	if !r.filter.Admits(n.Lon, n.Lat) {
		metrics.PointsDropped.Inc()
		return nil
	}

	tagsJSON, err := tags.Encode(n.Tags)
	if err != nil {
		return err
	}

	id := int64(n.ID)
	row := model.PointRow{ID: id, Lon: n.Lon, Lat: n.Lat, Tags: tagsJSON}
	if err := r.sinks.Points.Append(row.Values()); err != nil {
		return err
	}
	r.index.RecordPoint(id)

	r.stats.pointsAdmitted.Add(1)
	metrics.PointsAdmitted.Inc()
	return nil
}

func (r *Router) handleWay(w *osm.Way) error {
	r.stats.waysSeen.Add(1)

	r.refs = r.refs[:0]
	for _, wn := range w.Nodes {
		ref := int64(wn.ID)
		if !r.index.HasPoint(ref) {
			metrics.WaysDropped.Inc()
			return nil
		}
		r.refs = append(r.refs, ref)
	}

	tagsJSON, err := tags.Encode(w.Tags)
	if err != nil {
		return err
	}

	// the sink may hold on to the row, so refs are copied out of the scratch buffer
	refs := make([]int64, len(r.refs))
	copy(refs, r.refs)

	id := int64(w.ID)
	row := model.WayRow{ID: id, Refs: refs, Tags: tagsJSON}
	if err := r.sinks.Ways.Append(row.Values()); err != nil {
		return err
	}
	r.index.RecordWay(id)

	r.stats.waysAdmitted.Add(1)
	metrics.WaysAdmitted.Inc()
	return nil
}

// handleRelation admits a relation with all its members, or nothing at all.
// Member rows are buffered until every point and way member has resolved.
func (r *Router) handleRelation(rel *osm.Relation) error {
	r.stats.relationsSeen.Add(1)

	id := int64(rel.ID)
	r.members = r.members[:0]
	resolved := true

	for i, m := range rel.Members {
		mt, err := model.MemberTypeOf(m.Type)
		if err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
		if !utf8.ValidString(m.Role) {
			return fmt.Errorf("member %d: %w in role %q", i, tags.ErrInvalidText, m.Role)
		}

		switch mt {
		case model.MemberPoint:
			resolved = resolved && r.index.HasPoint(m.Ref)
		case model.MemberWay:
			resolved = resolved && r.index.HasWay(m.Ref)
		}

		r.members = append(r.members, model.MemberRow{
			RelationID: id,
			MemberID:   m.Ref,
			MemberType: mt,
			Role:       m.Role,
			Sequence:   int32(i),
		})
	}

	if !resolved {
		metrics.RelationsDropped.Inc()
		return nil
	}

	tagsJSON, err := tags.Encode(rel.Tags)
	if err != nil {
		return err
	}

	row := model.RelationRow{ID: id, Type: model.RelationTypeOf(rel.Tags), Tags: tagsJSON}
	if err := r.sinks.Relations.Append(row.Values()); err != nil {
		return err
	}
	for _, mr := range r.members {
		if err := r.sinks.Members.Append(mr.Values()); err != nil {
			return err
		}
	}

	r.stats.relationsAdmitted.Add(1)
	r.stats.membersWritten.Add(int64(len(r.members)))
	metrics.RelationsAdmitted.Inc()
	return nil
}
