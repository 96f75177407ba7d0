package model

import (
	"fmt"

	"github.com/paulmach/osm"
)

// MemberType is the kind of entity a relation member references.
// The numeric values are the ids of the member_types lookup table.
type MemberType int16

const (
	MemberPoint MemberType = iota + 1
	MemberWay
	MemberRelation
)

var memberTypeNames = [...]string{"point", "way", "relation"}

// MemberTypes returns all member types in id order
func MemberTypes() []MemberType {
	return []MemberType{MemberPoint, MemberWay, MemberRelation}
}

func (t MemberType) String() string {
	if t < MemberPoint || t > MemberRelation {
		return fmt.Sprintf("MemberType(%d)", int16(t))
	}
	return memberTypeNames[t-1]
}

// MemberTypeOf converts the decoder's member kind
func MemberTypeOf(t osm.Type) (MemberType, error) {
	switch t {
	case osm.TypeNode:
		return MemberPoint, nil
	case osm.TypeWay:
		return MemberWay, nil
	case osm.TypeRelation:
		return MemberRelation, nil
	default:
		return 0, fmt.Errorf("unsupported member type %q", t)
	}
}
