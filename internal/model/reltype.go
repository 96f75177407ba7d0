package model

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/paulmach/osm"
)

// RelationType classifies a relation by its "type" tag.
// The numeric values are the ids of the relation_types lookup table.
type RelationType int16

const (
	RelationUnknown RelationType = iota + 1
	RelationMultipolygon
	RelationRoute
	RelationRouteMaster
	RelationRestriction
	RelationBoundary
	RelationPublicTransport
	RelationDestinationSign
	RelationWaterway
	RelationEnforcement
	RelationConnectivity
)

var relationTypeNames = [...]string{
	"Unknown",
	"Multipolygon",
	"Route",
	"RouteMaster",
	"Restriction",
	"Boundary",
	"PublicTransport",
	"DestinationSign",
	"Waterway",
	"Enforcement",
	"Connectivity",
}

var relationTypeTags = [...]string{
	"unknown",
	"multipolygon",
	"route",
	"route_master",
	"restriction",
	"boundary",
	"public_transport",
	"destination_sign",
	"waterway",
	"enforcement",
	"connectivity",
}

// relationTypesByName maps the PascalCase variant name to its type
var relationTypesByName = func() map[string]RelationType {
	m := make(map[string]RelationType, len(relationTypeNames))
	for i, name := range relationTypeNames {
		m[name] = RelationType(i + 1)
	}
	return m
}()

// RelationTypes returns all relation types in id order
func RelationTypes() []RelationType {
	out := make([]RelationType, len(relationTypeNames))
	for i := range out {
		out[i] = RelationType(i + 1)
	}
	return out
}

func (t RelationType) valid() bool {
	return t >= RelationUnknown && t <= RelationConnectivity
}

// String returns the variant name, e.g. "RouteMaster"
func (t RelationType) String() string {
	if !t.valid() {
		return relationTypeNames[0]
	}
	return relationTypeNames[t-1]
}

// Name returns the tag spelling, e.g. "route_master"
func (t RelationType) Name() string {
	if !t.valid() {
		return relationTypeTags[0]
	}
	return relationTypeTags[t-1]
}

// ClassifyRelation maps the value of a "type" tag to a RelationType.
// Absent or unrecognised values yield RelationUnknown.
func ClassifyRelation(value string, present bool) RelationType {
	if !present {
		return RelationUnknown
	}
	if t, ok := relationTypesByName[pascalCase(value)]; ok {
		return t
	}
	return RelationUnknown
}

// RelationTypeOf classifies a relation from its tags. A repeated type key
// resolves to its last value, as in the stored tags.
func RelationTypeOf(tags osm.Tags) RelationType {
	for i := len(tags) - 1; i >= 0; i-- {
		if tags[i].Key == "type" {
			return ClassifyRelation(tags[i].Value, true)
		}
	}
	return RelationUnknown
}

// pascalCase splits s on runs of non-alphanumeric runes and joins the
// segments with the first rune upper-cased and the rest lower-cased:
// "public_transport" becomes "PublicTransport".
func pascalCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	start := true
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			start = true
			continue
		}
		if start {
			b.WriteRune(unicode.ToUpper(r))
			start = false
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
