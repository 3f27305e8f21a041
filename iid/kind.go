// Package iid defines the bit-exact byte identifiers this hypergraph core
// uses as storage keys: vertex IIDs and edge view IIDs, assembled from
// self-describing fixed-width segments so that plain byte-lexicographic
// order is the graph's iteration order.
package iid

// Kind is the prefix byte identifying a vertex's kind.
type Kind byte

const (
	EntityType    Kind = 0x01
	AttributeType Kind = 0x02
	RelationType  Kind = 0x03
	RoleType      Kind = 0x04

	Entity    Kind = 0x11
	Attribute Kind = 0x12
	Relation  Kind = 0x13
	Role      Kind = 0x14
)

func (k Kind) String() string {
	switch k {
	case EntityType:
		return "entity-type"
	case AttributeType:
		return "attribute-type"
	case RelationType:
		return "relation-type"
	case RoleType:
		return "role-type"
	case Entity:
		return "entity"
	case Attribute:
		return "attribute"
	case Relation:
		return "relation"
	case Role:
		return "role"
	default:
		return "unknown-kind"
	}
}

// IsType reports whether k identifies a type (schema) vertex.
func (k Kind) IsType() bool { return k >= EntityType && k <= RoleType }

// IsThing reports whether k identifies a thing (instance) vertex.
func (k Kind) IsThing() bool { return k >= Entity && k <= Role }

// ThingKindForType returns the thing kind instantiated by a type of kind k.
// Panics if k is not a type kind.
func (k Kind) ThingKindForType() Kind {
	switch k {
	case EntityType:
		return Entity
	case AttributeType:
		return Attribute
	case RelationType:
		return Relation
	case RoleType:
		return Role
	default:
		panic("iid: not a type kind: " + k.String())
	}
}
