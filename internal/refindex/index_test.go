package refindex

import (
	"math"
	"math/rand"
	"testing"
)

func TestRecordAndHas(t *testing.T) {
	x := New()

	if x.HasPoint(1) || x.HasWay(1) {
		t.Fatal("empty index reports membership")
	}

	x.RecordPoint(1)
	x.RecordWay(10)

	if !x.HasPoint(1) {
		t.Error("expected point 1")
	}
	if x.HasWay(1) {
		t.Error("point id leaked into way set")
	}
	if !x.HasWay(10) {
		t.Error("expected way 10")
	}
	if x.HasPoint(10) {
		t.Error("way id leaked into point set")
	}
}

func TestMembershipIsMonotonic(t *testing.T) {
	x := New()
	x.RecordPoint(42)

	for i := int64(0); i < 200_000; i += 7 {
		x.RecordPoint(i * 13)
		x.RecordWay(42)
		if !x.HasPoint(42) {
			t.Fatalf("point 42 lost after recording %d", i*13)
		}
	}
}

// span is the ID range covered by one bitmap container
const span = 1 << 16

func TestEdgeIDs(t *testing.T) {
	ids := []int64{
		0, 1, -1, -2,
		span - 1, span, span + 1,
		-span, -span - 1,
		63, 64, 65,
		12_345_678_901,
		math.MaxInt64, math.MinInt64,
	}

	x := New()
	for _, id := range ids {
		x.RecordPoint(id)
	}
	for _, id := range ids {
		if !x.HasPoint(id) {
			t.Errorf("expected point %d", id)
		}
	}

	absent := []int64{2, -3, span + 2, 62, 66, 12_345_678_900, math.MaxInt64 - 1}
	for _, id := range absent {
		if x.HasPoint(id) {
			t.Errorf("unexpected point %d", id)
		}
	}

	if got := x.Points(); got != int64(len(ids)) {
		t.Errorf("expected %d points, got %d", len(ids), got)
	}
}

func TestCountsDistinct(t *testing.T) {
	x := New()
	for i := 0; i < 3; i++ {
		x.RecordWay(5)
		x.RecordWay(6)
	}
	if x.Ways() != 2 {
		t.Errorf("expected 2 ways, got %d", x.Ways())
	}
	if x.Points() != 0 {
		t.Errorf("expected 0 points, got %d", x.Points())
	}
}

func TestMatchesMapSet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	want := make(map[int64]struct{})
	x := New()

	for i := 0; i < 50_000; i++ {
		id := rng.Int63n(20_000_000) - 1_000_000
		want[id] = struct{}{}
		x.RecordPoint(id)
	}

	for i := 0; i < 100_000; i++ {
		id := rng.Int63n(20_000_000) - 1_000_000
		_, ok := want[id]
		if got := x.HasPoint(id); got != ok {
			t.Fatalf("HasPoint(%d) = %v, want %v", id, got, ok)
		}
	}
	if x.Points() != int64(len(want)) {
		t.Errorf("expected %d points, got %d", len(want), x.Points())
	}
}

func TestIndexesAreIndependent(t *testing.T) {
	a := New()
	a.RecordPoint(7)

	b := New()
	if b.HasPoint(7) {
		t.Error("state leaked between indexes")
	}
}

func TestMemoryBytes(t *testing.T) {
	x := New()
	empty := x.MemoryBytes()

	x.RecordPoint(1)
	x.RecordPoint(2)
	x.RecordWay(3 * span)
	small := x.MemoryBytes()
	if small <= empty {
		t.Errorf("expected growth after recording, got %d then %d", empty, small)
	}

	for i := int64(0); i < 100; i++ {
		x.RecordPoint(i * span)
	}
	if got := x.MemoryBytes(); got <= small {
		t.Errorf("expected growth with new containers, got %d then %d", small, got)
	}
}

func TestNegativeIDsAreDistinct(t *testing.T) {
	x := New()
	x.RecordWay(-5)

	if !x.HasWay(-5) {
		t.Error("expected way -5")
	}
	for _, id := range []int64{5, -6, -span, math.MaxInt64 - 4} {
		if x.HasWay(id) {
			t.Errorf("unexpected way %d", id)
		}
	}
}
