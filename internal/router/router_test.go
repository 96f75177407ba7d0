package router

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osmraw/internal/bounds"
	"github.com/wegman-software/osmraw/internal/model"
	"github.com/wegman-software/osmraw/internal/sink"
	"github.com/wegman-software/osmraw/internal/source"
)

func node(id int64, lon, lat float64, tags ...osm.Tag) *osm.Node {
	return &osm.Node{ID: osm.NodeID(id), Lon: lon, Lat: lat, Tags: tags}
}

func way(id int64, refs []int64, tags ...osm.Tag) *osm.Way {
	nodes := make(osm.WayNodes, len(refs))
	for i, ref := range refs {
		nodes[i] = osm.WayNode{ID: osm.NodeID(ref)}
	}
	return &osm.Way{ID: osm.WayID(id), Nodes: nodes, Tags: tags}
}

func relation(id int64, members []osm.Member, tags ...osm.Tag) *osm.Relation {
	return &osm.Relation{ID: osm.RelationID(id), Members: members, Tags: tags}
}

func member(t osm.Type, ref int64, role string) osm.Member {
	return osm.Member{Type: t, Ref: ref, Role: role}
}

func run(t *testing.T, filter bounds.Filter, opts Options, objs ...osm.Object) (Stats, [4]*sink.Memory, error) {
	t.Helper()
	set, mems := sink.NewMemorySet()
	stats, err := New(filter, set, opts).Run(context.Background(), source.Objects(objs...))
	return stats, mems, err
}

func ids(rows [][]any) []int64 {
	out := make([]int64, len(rows))
	for i, row := range rows {
		out[i] = row[0].(int64)
	}
	return out
}

func TestPointsAndWays(t *testing.T) {
	stats, mems, err := run(t, bounds.Unbounded(), Options{},
		node(1, 0, 0),
		node(2, 1, 1),
		way(10, []int64{1, 2}, osm.Tag{Key: "highway", Value: "residential"}),
		way(11, []int64{1, 99}),
	)
	require.NoError(t, err)

	points, ways := mems[0].Rows(), mems[1].Rows()
	assert.Equal(t, []int64{1, 2}, ids(points))
	assert.Nil(t, points[0][3], "untagged point stores NULL tags")

	require.Len(t, ways, 1)
	assert.Equal(t, int64(10), ways[0][0])
	assert.Equal(t, []int64{1, 2}, ways[0][1])
	assert.JSONEq(t, `{"highway":"residential"}`, string(ways[0][2].([]byte)))

	assert.Equal(t, Stats{
		PointsSeen:     2,
		PointsAdmitted: 2,
		WaysSeen:       2,
		WaysAdmitted:   1,
	}, stats)
}

func TestPointRowValues(t *testing.T) {
	_, mems, err := run(t, bounds.Unbounded(), Options{},
		node(7, 12.5, 55.25, osm.Tag{Key: "amenity", Value: "cafe"}, osm.Tag{Key: "name", Value: "Kaffe"}),
	)
	require.NoError(t, err)

	rows := mems[0].Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0][0])
	assert.Equal(t, 12.5, rows[0][1])
	assert.Equal(t, 55.25, rows[0][2])
	assert.JSONEq(t, `{"amenity":"cafe","name":"Kaffe"}`, string(rows[0][3].([]byte)))
}

func TestBoxFilterDropsPointsAndDependentWays(t *testing.T) {
	filter := bounds.NewBox(bounds.Box{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10})

	stats, mems, err := run(t, filter, Options{},
		node(1, 5, 5),
		node(2, 10, 10),
		node(3, 11, 5),
		way(20, []int64{1, 2}),
		way(21, []int64{2, 3}),
		relation(30, []osm.Member{member(osm.TypeWay, 21, "outer")}),
	)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, ids(mems[0].Rows()))
	assert.Equal(t, []int64{20}, ids(mems[1].Rows()))
	assert.Empty(t, mems[2].Rows())
	assert.Empty(t, mems[3].Rows())

	assert.Equal(t, int64(3), stats.PointsSeen)
	assert.Equal(t, int64(2), stats.PointsAdmitted)
	assert.Equal(t, int64(1), stats.RelationsSeen)
	assert.Equal(t, int64(0), stats.RelationsAdmitted)
}

func TestPolygonFilter(t *testing.T) {
	filter, err := bounds.ParseWKT("POLYGON ((0 0, 0 1, 1 1, 1 0, 0 0))")
	require.NoError(t, err)

	_, mems, err := run(t, filter, Options{},
		node(1, 0.5, 0.5),
		node(2, 1.5, 1.5),
		node(3, -1.5, -1.5),
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(mems[0].Rows()))
}

func TestRelationWithMembers(t *testing.T) {
	stats, mems, err := run(t, bounds.Unbounded(), Options{},
		node(1, 0, 0),
		node(2, 1, 1),
		way(10, []int64{1, 2}),
		relation(100, []osm.Member{
			member(osm.TypeWay, 10, "outer"),
			member(osm.TypeNode, 2, "label"),
			member(osm.TypeRelation, 12345, "subarea"),
		}, osm.Tag{Key: "type", Value: "boundary"}, osm.Tag{Key: "name", Value: "Somewhere"}),
	)
	require.NoError(t, err)

	relations := mems[2].Rows()
	require.Len(t, relations, 1)
	assert.Equal(t, int64(100), relations[0][0])
	assert.Equal(t, int16(model.RelationBoundary), relations[0][1])
	assert.JSONEq(t, `{"type":"boundary","name":"Somewhere"}`, string(relations[0][2].([]byte)))

	assert.Equal(t, [][]any{
		{int64(100), int64(10), int16(model.MemberWay), "outer", int32(0)},
		{int64(100), int64(2), int16(model.MemberPoint), "label", int32(1)},
		{int64(100), int64(12345), int16(model.MemberRelation), "subarea", int32(2)},
	}, mems[3].Rows())

	assert.Equal(t, int64(1), stats.RelationsAdmitted)
	assert.Equal(t, int64(3), stats.MembersWritten)
}

func TestRelationIsAtomic(t *testing.T) {
	_, mems, err := run(t, bounds.Unbounded(), Options{},
		node(1, 0, 0),
		node(2, 1, 1),
		relation(100, []osm.Member{
			member(osm.TypeNode, 1, ""),
			member(osm.TypeNode, 99, ""),
			member(osm.TypeNode, 2, ""),
		}),
		relation(101, []osm.Member{
			member(osm.TypeNode, 1, "a"),
			member(osm.TypeNode, 2, "b"),
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, []int64{101}, ids(mems[2].Rows()))
	members := mems[3].Rows()
	require.Len(t, members, 2)
	for _, row := range members {
		assert.Equal(t, int64(101), row[0], "no member row may leak from a dropped relation")
	}
}

func TestRelationWithMissingWayIsAtomic(t *testing.T) {
	stats, mems, err := run(t, bounds.Unbounded(), Options{},
		node(1, 0, 0),
		node(2, 1, 1),
		way(10, []int64{1, 2}),
		relation(100, []osm.Member{
			member(osm.TypeWay, 10, "outer"),
			member(osm.TypeWay, 77, "outer"),
			member(osm.TypeNode, 1, "label"),
		}),
	)
	require.NoError(t, err)

	assert.Empty(t, mems[2].Rows())
	assert.Empty(t, mems[3].Rows())
	assert.Equal(t, int64(1), stats.RelationsSeen)
	assert.Equal(t, int64(0), stats.RelationsAdmitted)
	assert.Equal(t, int64(0), stats.MembersWritten)
}

func TestDuplicateTypeTagUsesLastValue(t *testing.T) {
	_, mems, err := run(t, bounds.Unbounded(), Options{},
		relation(100, nil,
			osm.Tag{Key: "type", Value: "route"},
			osm.Tag{Key: "type", Value: "boundary"},
		),
	)
	require.NoError(t, err)

	relations := mems[2].Rows()
	require.Len(t, relations, 1)
	assert.Equal(t, int16(model.RelationBoundary), relations[0][1])
	assert.JSONEq(t, `{"type":"boundary"}`, string(relations[0][2].([]byte)))
}

func TestRelationTypeIDs(t *testing.T) {
	tests := []struct {
		tags osm.Tags
		want model.RelationType
	}{
		{osm.Tags{{Key: "type", Value: "multipolygon"}}, model.RelationMultipolygon},
		{osm.Tags{{Key: "type", Value: "route"}}, model.RelationRoute},
		{osm.Tags{{Key: "type", Value: "route_master"}}, model.RelationRouteMaster},
		{osm.Tags{{Key: "type", Value: "public_transport"}}, model.RelationPublicTransport},
		{osm.Tags{{Key: "type", Value: "site"}}, model.RelationUnknown},
		{osm.Tags{{Key: "name", Value: "x"}}, model.RelationUnknown},
		{nil, model.RelationUnknown},
	}

	objs := make([]osm.Object, len(tests))
	for i, tt := range tests {
		objs[i] = relation(int64(i+1), nil, tt.tags...)
	}

	_, mems, err := run(t, bounds.Unbounded(), Options{}, objs...)
	require.NoError(t, err)

	rows := mems[2].Rows()
	require.Len(t, rows, len(tests))
	for i, tt := range tests {
		assert.Equal(t, int16(tt.want), rows[i][1], "relation %d", i+1)
	}
	assert.Empty(t, mems[3].Rows())
}

func TestWayWithoutRefsIsAdmitted(t *testing.T) {
	_, mems, err := run(t, bounds.Unbounded(), Options{}, way(5, nil))
	require.NoError(t, err)

	rows := mems[1].Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, []int64{}, rows[0][1])
}

func TestWayRefsAreNotShared(t *testing.T) {
	_, mems, err := run(t, bounds.Unbounded(), Options{},
		node(1, 0, 0),
		node(2, 0, 0),
		way(10, []int64{1, 2}),
		way(11, []int64{2, 1}),
	)
	require.NoError(t, err)

	rows := mems[1].Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []int64{1, 2}, rows[0][1])
	assert.Equal(t, []int64{2, 1}, rows[1][1])
}

func TestInvalidTextAborts(t *testing.T) {
	_, _, err := run(t, bounds.Unbounded(), Options{},
		node(1, 0, 0, osm.Tag{Key: "name", Value: "bad\xff"}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node 1")

	_, _, err = run(t, bounds.Unbounded(), Options{},
		node(1, 0, 0),
		relation(2, []osm.Member{member(osm.TypeNode, 1, "\xfe")}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation 2")
}

type failingDestination struct {
	sink.Memory
	err error
}

func (f *failingDestination) Append([]any) error { return f.err }

func TestSinkErrorAborts(t *testing.T) {
	boom := errors.New("disk full")
	set, _ := sink.NewMemorySet()
	set.Ways = &failingDestination{err: boom}

	r := New(bounds.Unbounded(), set, Options{})
	stats, err := r.Run(context.Background(), source.Objects(
		node(1, 0, 0),
		way(10, []int64{1}),
		way(11, []int64{1}),
	))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), stats.WaysSeen)
	assert.False(t, r.Index().HasWay(10))
}

func TestOutOfOrder(t *testing.T) {
	objs := []osm.Object{
		node(1, 0, 0),
		way(10, []int64{1, 2}),
		node(2, 1, 1),
	}

	stats, mems, err := run(t, bounds.Unbounded(), Options{}, objs...)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.OutOfOrder)
	assert.Equal(t, []int64{1, 2}, ids(mems[0].Rows()))
	assert.Empty(t, mems[1].Rows(), "way referencing a later point is dropped")

	_, _, err = run(t, bounds.Unbounded(), Options{StrictOrder: true}, objs...)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestIgnoresOtherObjects(t *testing.T) {
	stats, _, err := run(t, bounds.Unbounded(), Options{},
		&osm.Changeset{ID: 1},
		node(1, 0, 0),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PointsAdmitted)
}

func TestPassesDoNotShareState(t *testing.T) {
	set, _ := sink.NewMemorySet()
	r := New(bounds.Unbounded(), set, Options{})
	_, err := r.Run(context.Background(), source.Objects(node(1, 0, 0)))
	require.NoError(t, err)

	set2, mems := sink.NewMemorySet()
	r2 := New(bounds.Unbounded(), set2, Options{})
	stats, err := r2.Run(context.Background(), source.Objects(way(10, []int64{1})))
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.WaysAdmitted)
	assert.Empty(t, mems[1].Rows())
}

func TestProgressDuringRun(t *testing.T) {
	objs := make([]osm.Object, 1000)
	for i := range objs {
		objs[i] = node(int64(i), 0, 0)
	}

	r := New(bounds.Unbounded(), sink.NewDiscardSet(), Options{})
	done := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-done:
				return
			default:
				_ = r.Progress()
			}
		}
	}()

	for pass := 0; pass < 2; pass++ {
		stats, err := r.Run(context.Background(), source.Objects(objs...))
		require.NoError(t, err)
		assert.Equal(t, int64(len(objs)), stats.PointsSeen, "pass %d", pass)
	}
	close(done)
	<-polled
}

func TestContextCancel(t *testing.T) {
	objs := make([]osm.Object, contextCheckInterval+10)
	for i := range objs {
		objs[i] = node(int64(i), 0, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := sink.NewDiscardSet()
	stats, err := New(bounds.Unbounded(), set, Options{}).Run(ctx, source.Objects(objs...))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(contextCheckInterval-1), stats.PointsSeen)
}
