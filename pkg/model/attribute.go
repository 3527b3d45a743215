package model

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Attribute is a Property or a Relationship of an entity.
type Attribute interface {
	Name() string
	Entity() *EntityDescription
	attribute()
}

// Property is a scalar attribute with a declared type and optional default.
type Property struct {
	entity       *EntityDescription
	name         string
	typ          types.AttributeType
	defaultValue any
}

func (p *Property) attribute() {}

// Name returns the property name, which is also its column name.
func (p *Property) Name() string { return p.name }

// Entity returns the owning entity.
func (p *Property) Entity() *EntityDescription { return p.entity }

// Type returns the declared attribute type.
func (p *Property) Type() types.AttributeType { return p.typ }

// DefaultValue returns the hydrated default, or nil when none was declared.
func (p *Property) DefaultValue() any { return p.defaultValue }

// SetDefaultValue coerces v into the property type and stores it.
// Binary properties never carry a default.
func (p *Property) SetDefaultValue(v any) error {
	if p.typ == types.TypeBinary || v == nil {
		p.defaultValue = nil
		return nil
	}
	val, err := Coerce(p.typ, v)
	if err != nil {
		return &types.InvalidDataTypeError{Attribute: p.String(), Type: p.typ, Value: v, Err: err}
	}
	p.defaultValue = val
	return nil
}

func (p *Property) String() string { return p.entity.name + "." + p.name }

// Cardinality marks one end of a relationship.
type Cardinality int

const (
	ToOne Cardinality = iota
	ToMany
)

func (c Cardinality) String() string {
	if c == ToMany {
		return "many"
	}
	return "one"
}

// RelationshipKind is derived from both ends of a linked relationship.
type RelationshipKind int

const (
	KindUnknown RelationshipKind = iota
	KindOneToOne
	KindOneToMany
	KindManyToMany
)

func (k RelationshipKind) String() string {
	switch k {
	case KindOneToOne:
		return "OneToOne"
	case KindOneToMany:
		return "OneToMany"
	case KindManyToMany:
		return "ManyToMany"
	default:
		return "Unknown"
	}
}

// Relationship references another entity. Its inverse, when linked, is the
// relationship on the target entity that mirrors it.
type Relationship struct {
	entity      *EntityDescription
	name        string
	target      string
	destination *EntityDescription
	to          Cardinality
	singular    string
	inverse     *Relationship
}

func (r *Relationship) attribute() {}

// Name returns the relationship name.
func (r *Relationship) Name() string { return r.name }

// Entity returns the owning entity.
func (r *Relationship) Entity() *EntityDescription { return r.entity }

// Target returns the declared target entity name.
func (r *Relationship) Target() string { return r.target }

// Destination returns the resolved target entity. It is nil until the
// relationship belongs to a parsed model.
func (r *Relationship) Destination() *EntityDescription { return r.destination }

// Cardinality returns this end's cardinality.
func (r *Relationship) Cardinality() Cardinality { return r.to }

// IsToMany reports whether this end holds a set of objects.
func (r *Relationship) IsToMany() bool { return r.to == ToMany }

// Singular returns the alternate singular name, if any.
func (r *Relationship) Singular() string { return r.singular }

// Inverse returns the linked inverse relationship, or nil.
func (r *Relationship) Inverse() *Relationship { return r.inverse }

// IsReflexive reports whether the relationship is its own inverse.
func (r *Relationship) IsReflexive() bool { return r.inverse == r }

// Kind derives the relationship kind from both ends. It is KindUnknown when
// no inverse is linked.
func (r *Relationship) Kind() RelationshipKind {
	if r.inverse == nil {
		return KindUnknown
	}
	switch {
	case r.to == ToMany && r.inverse.to == ToMany:
		return KindManyToMany
	case r.to == ToOne && r.inverse.to == ToOne:
		return KindOneToOne
	default:
		return KindOneToMany
	}
}

// TableName returns the join table shared by both ends. Without an inverse
// the target entity name stands in for the missing pair.
func (r *Relationship) TableName() string {
	names := []string{r.entity.name, r.target, r.name}
	if r.inverse != nil {
		names = []string{r.entity.name, r.inverse.entity.name, r.name, r.inverse.name}
	}
	sort.Strings(names)
	return "Z_" + strings.ToUpper(digest(strings.Join(names, "")))
}

// ColumnName returns the join column holding objectIDs of this end's entity.
func (r *Relationship) ColumnName() string {
	return digest(r.entity.name + r.name)
}

// InverseColumnName returns the join column holding objectIDs of the far end.
func (r *Relationship) InverseColumnName() string {
	switch {
	case r.inverse == nil:
		return digest(r.target)
	case r.inverse == r:
		return r.ColumnName() + "_inverse"
	default:
		return r.inverse.ColumnName()
	}
}

func (r *Relationship) String() string { return r.entity.name + "." + r.name }

// digest returns the first 16 lowercase hex characters of the MD5 of s.
func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
