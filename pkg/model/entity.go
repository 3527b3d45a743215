package model

import (
	"fmt"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// ObjectIDColumn is the primary key column every entity table carries.
const ObjectIDColumn = "objectID"

// EntityDescription is the schema of one record type: its name, plural
// (the table name), backing class and ordered attributes.
type EntityDescription struct {
	name       string
	plural     string
	class      string
	attributes []Attribute
}

// NewEntityDescription creates an entity with no attributes. Empty plural
// and class default to the inflected plural and the name.
func NewEntityDescription(name, plural, class string) *EntityDescription {
	if plural == "" {
		plural = rules.Pluralize(name)
	}
	if class == "" {
		class = name
	}
	return &EntityDescription{name: name, plural: plural, class: class}
}

// Name returns the entity name.
func (e *EntityDescription) Name() string { return e.name }

// Plural returns the plural form, used as the table name.
func (e *EntityDescription) Plural() string { return e.plural }

// Class returns the backing class identifier used to pick a factory.
func (e *EntityDescription) Class() string { return e.class }

// Attributes returns the attributes in declaration order.
func (e *EntityDescription) Attributes() []Attribute {
	return append([]Attribute(nil), e.attributes...)
}

// Properties returns the properties in declaration order.
func (e *EntityDescription) Properties() []*Property {
	var out []*Property
	for _, a := range e.attributes {
		if p, ok := a.(*Property); ok {
			out = append(out, p)
		}
	}
	return out
}

// Relationships returns the relationships in declaration order.
func (e *EntityDescription) Relationships() []*Relationship {
	var out []*Relationship
	for _, a := range e.attributes {
		if r, ok := a.(*Relationship); ok {
			out = append(out, r)
		}
	}
	return out
}

// AttributeWithName returns the attribute whose name is name or, for
// relationships, whose singular name is name. It returns nil when absent.
func (e *EntityDescription) AttributeWithName(name string) Attribute {
	for _, a := range e.attributes {
		if a.Name() == name {
			return a
		}
	}
	for _, r := range e.Relationships() {
		if r.singular != "" && r.singular == name {
			return r
		}
	}
	return nil
}

// Property returns the property named name, or nil.
func (e *EntityDescription) Property(name string) *Property {
	p, _ := e.AttributeWithName(name).(*Property)
	return p
}

// Relationship returns the relationship named name (or singular), or nil.
func (e *EntityDescription) Relationship(name string) *Relationship {
	r, _ := e.AttributeWithName(name).(*Relationship)
	return r
}

// AddProperty appends a property. Returns an error if name is taken.
func (e *EntityDescription) AddProperty(name string, t types.AttributeType) (*Property, error) {
	if err := e.checkName(name); err != nil {
		return nil, err
	}
	if !types.IsValidAttributeType(t) {
		return nil, fmt.Errorf("property %s.%s: %w: %q", e.name, name, types.ErrInvalidDataType, t)
	}
	p := &Property{entity: e, name: name, typ: t}
	e.attributes = append(e.attributes, p)
	return p, nil
}

// AddRelationship appends a relationship to the entity named target.
// Returns an error if name or singular is taken.
func (e *EntityDescription) AddRelationship(name, target string, to Cardinality, singular string) (*Relationship, error) {
	if err := e.checkName(name); err != nil {
		return nil, err
	}
	if singular != "" && singular != name {
		if err := e.checkName(singular); err != nil {
			return nil, err
		}
	}
	r := &Relationship{entity: e, name: name, target: target, to: to, singular: singular}
	e.attributes = append(e.attributes, r)
	return r, nil
}

// RemoveAttribute drops the attribute named name. It reports whether one was removed.
func (e *EntityDescription) RemoveAttribute(name string) bool {
	for i, a := range e.attributes {
		if a.Name() == name {
			e.attributes = append(e.attributes[:i], e.attributes[i+1:]...)
			return true
		}
	}
	return false
}

func (e *EntityDescription) checkName(name string) error {
	if name == "" {
		return fmt.Errorf("entity %s: attribute name must not be empty", e.name)
	}
	if name == ObjectIDColumn {
		return fmt.Errorf("entity %s: %q is reserved", e.name, name)
	}
	if e.AttributeWithName(name) != nil {
		return fmt.Errorf("entity %s: duplicate attribute %q", e.name, name)
	}
	return nil
}

func (e *EntityDescription) String() string { return e.name }
