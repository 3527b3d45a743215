package larder

import (
	"fmt"

	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// UnknownID is the objectID of an object that has not been inserted yet.
const UnknownID int64 = -1

// ManagedObject is a record of one entity bound to one Context. Committed
// values mirror the store; pending values and relationship buffers hold
// changes until the next save.
type ManagedObject struct {
	entity   *model.EntityDescription
	context  *Context
	objectID int64
	self     Object

	data    map[string]any
	updated map[string]any

	relationships map[string]*objectSet
	inserted      map[string]*objectSet
	removed       map[string]*objectSet

	saving         bool
	savingInserted map[linkKey]bool
	savingRemoved  map[linkKey]bool
}

// linkKey names one side of one link that a store is currently writing.
type linkKey struct {
	rel     string
	partner *ManagedObject
}

func newManagedObject(entity *model.EntityDescription, ctx *Context, id int64) *ManagedObject {
	return &ManagedObject{
		entity:         entity,
		context:        ctx,
		objectID:       id,
		data:           make(map[string]any),
		updated:        make(map[string]any),
		relationships:  make(map[string]*objectSet),
		inserted:       make(map[string]*objectSet),
		removed:        make(map[string]*objectSet),
		savingInserted: make(map[linkKey]bool),
		savingRemoved:  make(map[linkKey]bool),
	}
}

// Managed returns o, so *ManagedObject satisfies Object.
func (o *ManagedObject) Managed() *ManagedObject { return o }

// Object returns the value built by the entity's factory, or o itself.
func (o *ManagedObject) Object() Object { return o.self }

// Entity returns the entity description.
func (o *ManagedObject) Entity() *model.EntityDescription { return o.entity }

// Context returns the owning context.
func (o *ManagedObject) Context() *Context { return o.context }

// ObjectID returns the store-assigned identifier, or UnknownID.
func (o *ManagedObject) ObjectID() int64 { return o.objectID }

// IsFault reports whether the object has an identity but nothing loaded.
func (o *ManagedObject) IsFault() bool {
	return o.objectID != UnknownID && len(o.data) == 0 && len(o.relationships) == 0
}

// IsSaving reports whether a store is saving the object.
func (o *ManagedObject) IsSaving() bool { return o.saving }

// HasChanges reports whether the object has pending values or relationship
// changes and is not being saved.
func (o *ManagedObject) HasChanges() bool {
	return !o.saving && (len(o.updated) > 0 || len(o.inserted) > 0 || len(o.removed) > 0)
}

// FireFault loads committed values and relationships from the store. It is a
// no-op when the object is not a fault.
func (o *ManagedObject) FireFault() error {
	if !o.IsFault() {
		return nil
	}
	req, err := NewFaultRequest(o.context, o)
	if err != nil {
		return err
	}
	failed, err := o.context.coordinator.ExecuteRequest(req)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return types.NewPersistentStoreError(fmt.Sprintf("fault %s %d", o.entity.Name(), o.objectID), types.ErrFaultFailed)
	}
	return nil
}

// Get returns the value of attr. Pending values shadow committed ones. A
// to-many relationship yields []*ManagedObject, a to-one relationship the
// related *ManagedObject or nil.
func (o *ManagedObject) Get(attr model.Attribute) (any, error) {
	if err := o.checkAttribute(attr); err != nil {
		return nil, err
	}
	if err := o.FireFault(); err != nil {
		return nil, err
	}
	switch a := attr.(type) {
	case *model.Property:
		if v, ok := o.updated[a.Name()]; ok {
			return v, nil
		}
		return o.data[a.Name()], nil
	case *model.Relationship:
		objs := o.related(a)
		if a.IsToMany() {
			return objs, nil
		}
		if len(objs) == 0 {
			return nil, nil
		}
		return objs[len(objs)-1], nil
	default:
		return nil, o.unsupported(attr)
	}
}

// Set assigns a property value, or replaces the partner of a to-one
// relationship. The value's kind must match the property type; to-many
// relationships must be changed with AddTo and RemoveFrom.
func (o *ManagedObject) Set(attr model.Attribute, value any) error {
	if err := o.checkAttribute(attr); err != nil {
		return err
	}
	switch a := attr.(type) {
	case *model.Property:
		if !model.MatchesKind(a.Type(), value) {
			return &types.InvalidOperationError{
				Entity:    o.entity.Name(),
				Attribute: a.Name(),
				Msg:       fmt.Sprintf("cannot assign %T to %s property", value, a.Type()),
			}
		}
		if err := o.FireFault(); err != nil {
			return err
		}
		o.updated[a.Name()] = value
		return nil
	case *model.Relationship:
		if a.IsToMany() {
			return &types.InvalidOperationError{
				Entity:    o.entity.Name(),
				Attribute: a.Name(),
				Msg:       "to-many relationships are changed with add and remove",
			}
		}
		if value == nil {
			return o.clearToOne(a)
		}
		target, ok := value.(Object)
		if !ok {
			return &types.InvalidOperationError{
				Entity:    o.entity.Name(),
				Attribute: a.Name(),
				Msg:       fmt.Sprintf("cannot assign %T to a relationship", value),
			}
		}
		return o.AddTo(a, target)
	default:
		return o.unsupported(attr)
	}
}

// AddTo adds obj to rel and mirrors the change on rel's inverse.
func (o *ManagedObject) AddTo(rel *model.Relationship, obj Object) error {
	target, err := o.prepareLink(rel, obj)
	if err != nil {
		return err
	}
	return link(o, rel, target)
}

// RemoveFrom removes obj from rel and mirrors the change on rel's inverse.
func (o *ManagedObject) RemoveFrom(rel *model.Relationship, obj Object) error {
	target, err := o.prepareLink(rel, obj)
	if err != nil {
		return err
	}
	unlink(o, rel, target)
	return nil
}

// Related returns the objects currently in rel.
func (o *ManagedObject) Related(rel *model.Relationship) ([]*ManagedObject, error) {
	if rel == nil {
		return nil, &types.ManagedObjectError{Entity: o.entity.Name(), Msg: "nil relationship"}
	}
	if err := o.checkAttribute(rel); err != nil {
		return nil, err
	}
	if err := o.FireFault(); err != nil {
		return nil, err
	}
	return o.related(rel), nil
}

// Value returns the attribute named name.
func (o *ManagedObject) Value(name string) (any, error) {
	attr, err := o.attributeNamed(name)
	if err != nil {
		return nil, err
	}
	return o.Get(attr)
}

// SetValue assigns the attribute named name.
func (o *ManagedObject) SetValue(name string, value any) error {
	attr, err := o.attributeNamed(name)
	if err != nil {
		return err
	}
	return o.Set(attr, value)
}

// Add adds obj to the relationship named name (or its singular).
func (o *ManagedObject) Add(name string, obj Object) error {
	rel, err := o.relationshipNamed(name)
	if err != nil {
		return err
	}
	return o.AddTo(rel, obj)
}

// Remove removes obj from the relationship named name (or its singular).
func (o *ManagedObject) Remove(name string, obj Object) error {
	rel, err := o.relationshipNamed(name)
	if err != nil {
		return err
	}
	return o.RemoveFrom(rel, obj)
}

// Values returns a plain snapshot: property values by name, and for each
// relationship the related objectIDs ([]int64 for to-many, int64 or nil for
// to-one). The objectID is stored under model.ObjectIDColumn.
func (o *ManagedObject) Values() (map[string]any, error) {
	if err := o.FireFault(); err != nil {
		return nil, err
	}
	out := map[string]any{model.ObjectIDColumn: o.objectID}
	for _, attr := range o.entity.Attributes() {
		switch a := attr.(type) {
		case *model.Property:
			v, _ := o.Get(a)
			out[a.Name()] = v
		case *model.Relationship:
			objs := o.related(a)
			if a.IsToMany() {
				ids := make([]int64, 0, len(objs))
				for _, r := range objs {
					ids = append(ids, r.objectID)
				}
				out[a.Name()] = ids
				continue
			}
			if len(objs) == 0 {
				out[a.Name()] = nil
			} else {
				out[a.Name()] = objs[len(objs)-1].objectID
			}
		}
	}
	return out, nil
}

// DiscardChanges drops pending values and relationship buffers on this
// object only.
func (o *ManagedObject) DiscardChanges() {
	o.updated = make(map[string]any)
	o.inserted = make(map[string]*objectSet)
	o.removed = make(map[string]*objectSet)
}

// PersistChanges commits pending values and relationship buffers. Links
// marked by BeginSavingInserted or BeginSavingRemoved stay pending; the
// partner's save commits them.
func (o *ManagedObject) PersistChanges() {
	for k, v := range o.updated {
		o.data[k] = v
	}
	inserted := make(map[string]*objectSet)
	for name, set := range o.inserted {
		committed := o.committedSet(name)
		for _, it := range set.items {
			if o.savingInserted[linkKey{name, it}] {
				pendingSet(inserted, name).add(it)
				continue
			}
			committed.add(it)
		}
	}
	removed := make(map[string]*objectSet)
	for name, set := range o.removed {
		committed := o.committedSet(name)
		for _, it := range set.items {
			if o.savingRemoved[linkKey{name, it}] {
				pendingSet(removed, name).add(it)
				continue
			}
			committed.remove(it)
		}
	}
	o.updated = make(map[string]any)
	o.inserted = inserted
	o.removed = removed
}

func pendingSet(buf map[string]*objectSet, name string) *objectSet {
	s, ok := buf[name]
	if !ok {
		s = &objectSet{}
		buf[name] = s
	}
	return s
}

func (o *ManagedObject) String() string {
	return fmt.Sprintf("%s(%d)", o.entity.Name(), o.objectID)
}

// related computes committed ∪ inserted − removed in stable order.
func (o *ManagedObject) related(rel *model.Relationship) []*ManagedObject {
	name := rel.Name()
	var out objectSet
	for _, it := range o.relationships[name].slice() {
		out.add(it)
	}
	for _, it := range o.inserted[name].slice() {
		out.add(it)
	}
	for _, it := range o.removed[name].slice() {
		out.remove(it)
	}
	return out.items
}

func (o *ManagedObject) committedSet(name string) *objectSet {
	s, ok := o.relationships[name]
	if !ok {
		s = &objectSet{}
		o.relationships[name] = s
	}
	return s
}

// bufferInsert records x as added to rel, cancelling a pending removal.
func (o *ManagedObject) bufferInsert(rel *model.Relationship, x *ManagedObject) {
	name := rel.Name()
	if o.removed[name].remove(x) {
		if o.removed[name].len() == 0 {
			delete(o.removed, name)
		}
		return
	}
	if o.relationships[name].contains(x) || o.inserted[name].contains(x) {
		return
	}
	s, ok := o.inserted[name]
	if !ok {
		s = &objectSet{}
		o.inserted[name] = s
	}
	s.add(x)
}

// bufferRemove records x as removed from rel, cancelling a pending insert.
func (o *ManagedObject) bufferRemove(rel *model.Relationship, x *ManagedObject) {
	name := rel.Name()
	if o.inserted[name].remove(x) {
		if o.inserted[name].len() == 0 {
			delete(o.inserted, name)
		}
		return
	}
	if !o.relationships[name].contains(x) || o.removed[name].contains(x) {
		return
	}
	s, ok := o.removed[name]
	if !ok {
		s = &objectSet{}
		o.removed[name] = s
	}
	s.add(x)
}

func (o *ManagedObject) clearToOne(rel *model.Relationship) error {
	if err := o.FireFault(); err != nil {
		return err
	}
	return dropPartners(o, rel, nil)
}

func (o *ManagedObject) prepareLink(rel *model.Relationship, obj Object) (*ManagedObject, error) {
	if rel == nil {
		return nil, &types.ManagedObjectError{Entity: o.entity.Name(), Msg: "nil relationship"}
	}
	if err := o.checkAttribute(rel); err != nil {
		return nil, err
	}
	if obj == nil || obj.Managed() == nil {
		return nil, &types.InvalidOperationError{Entity: o.entity.Name(), Attribute: rel.Name(), Msg: "related object is nil"}
	}
	target := obj.Managed()
	if !accepts(rel, target.entity) {
		return nil, &types.InvalidOperationError{
			Entity:    o.entity.Name(),
			Attribute: rel.Name(),
			Msg:       fmt.Sprintf("expected %s, got %s", rel.Target(), target.entity.Class()),
		}
	}
	if err := o.FireFault(); err != nil {
		return nil, err
	}
	if err := target.FireFault(); err != nil {
		return nil, err
	}
	return target, nil
}

// accepts reports whether objects of e may be related through rel.
func accepts(rel *model.Relationship, e *model.EntityDescription) bool {
	if d := rel.Destination(); d != nil {
		return d == e
	}
	t := rel.Target()
	return t == e.Name() || t == e.Plural() || t == e.Class()
}

func (o *ManagedObject) checkAttribute(attr model.Attribute) error {
	if attr == nil {
		return &types.ManagedObjectError{Entity: o.entity.Name(), Msg: "nil attribute"}
	}
	if attr.Entity() != o.entity {
		return &types.ManagedObjectError{
			Entity:    o.entity.Name(),
			Attribute: attr.Name(),
			Msg:       fmt.Sprintf("attribute belongs to %s", attr.Entity().Name()),
		}
	}
	return nil
}

func (o *ManagedObject) unsupported(attr model.Attribute) error {
	return &types.ManagedObjectError{
		Entity:    o.entity.Name(),
		Attribute: attr.Name(),
		Msg:       fmt.Sprintf("unsupported attribute kind %T", attr),
	}
}

func (o *ManagedObject) attributeNamed(name string) (model.Attribute, error) {
	attr := o.entity.AttributeWithName(name)
	if attr == nil {
		return nil, &types.ManagedObjectError{Entity: o.entity.Name(), Attribute: name, Msg: "no such attribute"}
	}
	return attr, nil
}

func (o *ManagedObject) relationshipNamed(name string) (*model.Relationship, error) {
	rel := o.entity.Relationship(name)
	if rel == nil {
		return nil, &types.ManagedObjectError{Entity: o.entity.Name(), Attribute: name, Msg: "no such relationship"}
	}
	return rel, nil
}
