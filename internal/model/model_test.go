package model

import (
	"testing"

	"github.com/paulmach/osm"
)

func TestClassifyRelation(t *testing.T) {
	tests := []struct {
		value   string
		present bool
		want    RelationType
		wantID  int16
	}{
		{"multipolygon", true, RelationMultipolygon, 2},
		{"route", true, RelationRoute, 3},
		{"route_master", true, RelationRouteMaster, 4},
		{"restriction", true, RelationRestriction, 5},
		{"boundary", true, RelationBoundary, 6},
		{"public_transport", true, RelationPublicTransport, 7},
		{"destination_sign", true, RelationDestinationSign, 8},
		{"waterway", true, RelationWaterway, 9},
		{"enforcement", true, RelationEnforcement, 10},
		{"connectivity", true, RelationConnectivity, 11},
		{"unknown", true, RelationUnknown, 1},
		{"bogus_type", true, RelationUnknown, 1},
		{"", true, RelationUnknown, 1},
		{"", false, RelationUnknown, 1},
		{"multipolygon", false, RelationUnknown, 1},
		{"MULTIPOLYGON", true, RelationMultipolygon, 2},
		{"Route-Master", true, RelationRouteMaster, 4},
		{"public transport", true, RelationPublicTransport, 7},
		{"__route__master__", true, RelationRouteMaster, 4},
		{"routemaster", true, RelationUnknown, 1},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := ClassifyRelation(tt.value, tt.present)
			if got != tt.want {
				t.Errorf("ClassifyRelation(%q, %v) = %v, want %v", tt.value, tt.present, got, tt.want)
			}
			if int16(got) != tt.wantID {
				t.Errorf("type id = %d, want %d", int16(got), tt.wantID)
			}
		})
	}
}

func TestRelationTypeOf(t *testing.T) {
	if got := RelationTypeOf(osm.Tags{{Key: "name", Value: "x"}, {Key: "type", Value: "boundary"}}); got != RelationBoundary {
		t.Errorf("expected boundary, got %v", got)
	}
	if got := RelationTypeOf(osm.Tags{{Key: "name", Value: "x"}}); got != RelationUnknown {
		t.Errorf("expected unknown for missing type tag, got %v", got)
	}
	dup := osm.Tags{{Key: "type", Value: "route"}, {Key: "type", Value: "boundary"}}
	if got := RelationTypeOf(dup); got != RelationBoundary {
		t.Errorf("expected the last type value to win, got %v", got)
	}
	if got := RelationTypeOf(nil); got != RelationUnknown {
		t.Errorf("expected unknown for nil tags, got %v", got)
	}
}

func TestRelationTypeNames(t *testing.T) {
	types := RelationTypes()
	if len(types) != 11 {
		t.Fatalf("expected 11 relation types, got %d", len(types))
	}
	for i, rt := range types {
		if int(rt) != i+1 {
			t.Errorf("type %v has id %d, want %d", rt, rt, i+1)
		}
		// the tag spelling must classify back to the same type
		if got := ClassifyRelation(rt.Name(), true); got != rt {
			t.Errorf("%q classified as %v, want %v", rt.Name(), got, rt)
		}
	}
	if RelationPublicTransport.String() != "PublicTransport" {
		t.Errorf("unexpected name %q", RelationPublicTransport.String())
	}
	if RelationType(99).Name() != "unknown" {
		t.Errorf("out of range type should name as unknown")
	}
}

func TestPascalCase(t *testing.T) {
	tests := map[string]string{
		"public_transport": "PublicTransport",
		"route":            "Route",
		"ROUTE_MASTER":     "RouteMaster",
		"a1_b2":            "A1B2",
		"  ":               "",
		"über_straße":      "ÜberStraße",
	}
	for in, want := range tests {
		if got := pascalCase(in); got != want {
			t.Errorf("pascalCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMemberTypeOf(t *testing.T) {
	tests := []struct {
		in   osm.Type
		want MemberType
		id   int16
	}{
		{osm.TypeNode, MemberPoint, 1},
		{osm.TypeWay, MemberWay, 2},
		{osm.TypeRelation, MemberRelation, 3},
	}
	for _, tt := range tests {
		got, err := MemberTypeOf(tt.in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want || int16(got) != tt.id {
			t.Errorf("MemberTypeOf(%q) = %v (%d), want %v (%d)", tt.in, got, int16(got), tt.want, tt.id)
		}
	}

	if _, err := MemberTypeOf(osm.Type("changeset")); err == nil {
		t.Error("expected error for changeset member")
	}
}

func TestRowValues(t *testing.T) {
	p := PointRow{ID: 1, Lon: 2, Lat: 3}.Values()
	if len(p) != 4 || p[0] != int64(1) || p[1] != 2.0 || p[2] != 3.0 {
		t.Errorf("unexpected point values %v", p)
	}
	if tags, ok := p[3].([]byte); !ok || tags != nil {
		t.Errorf("expected nil tags, got %#v", p[3])
	}

	r := RelationRow{ID: 5, Type: RelationRoute}.Values()
	if r[1] != int16(3) {
		t.Errorf("expected int16 type id 3, got %#v", r[1])
	}

	m := MemberRow{RelationID: 5, MemberID: 6, MemberType: MemberWay, Role: "outer", Sequence: 2}.Values()
	if m[2] != int16(2) || m[3] != "outer" || m[4] != int32(2) {
		t.Errorf("unexpected member values %v", m)
	}
}
