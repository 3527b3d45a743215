package larder

import "github.com/mesh-intelligence/larder/pkg/model"

// The methods in this file are the surface a PersistentStore uses to move
// an object through a save or a fault. Application code does not call them.

// SetObjectID records the identifier assigned by the store on insert.
func (o *ManagedObject) SetObjectID(id int64) { o.objectID = id }

// PendingValues returns a copy of the pending property values.
func (o *ManagedObject) PendingValues() map[string]any {
	out := make(map[string]any, len(o.updated))
	for k, v := range o.updated {
		out[k] = v
	}
	return out
}

// PendingInsertedRelationships lists, in declaration order, the
// relationships with pending additions.
func (o *ManagedObject) PendingInsertedRelationships() []*model.Relationship {
	return o.pendingRelationships(o.inserted)
}

// PendingRemovedRelationships lists, in declaration order, the
// relationships with pending removals.
func (o *ManagedObject) PendingRemovedRelationships() []*model.Relationship {
	return o.pendingRelationships(o.removed)
}

// PendingInsertedObjects returns the objects pending addition to rel.
func (o *ManagedObject) PendingInsertedObjects(rel *model.Relationship) []*ManagedObject {
	return o.inserted[rel.Name()].slice()
}

// PendingRemovedObjects returns the objects pending removal from rel.
func (o *ManagedObject) PendingRemovedObjects(rel *model.Relationship) []*ManagedObject {
	return o.removed[rel.Name()].slice()
}

// HasPendingInsert reports whether x is still pending addition to rel.
func (o *ManagedObject) HasPendingInsert(rel *model.Relationship, x *ManagedObject) bool {
	return o.inserted[rel.Name()].contains(x)
}

// HasPendingRemove reports whether x is still pending removal from rel.
func (o *ManagedObject) HasPendingRemove(rel *model.Relationship, x *ManagedObject) bool {
	return o.removed[rel.Name()].contains(x)
}

// BeginSaving marks the object as being saved; HasChanges reports false
// until EndSaving.
func (o *ManagedObject) BeginSaving() { o.saving = true }

// EndSaving clears the saving mark.
func (o *ManagedObject) EndSaving() { o.saving = false }

// BeginSavingInserted marks the link to partner in rel as being written by
// the partner's save.
func (o *ManagedObject) BeginSavingInserted(rel *model.Relationship, partner *ManagedObject) {
	o.savingInserted[linkKey{rel.Name(), partner}] = true
}

// IsSavingInserted reports whether the partner's save owns the link.
func (o *ManagedObject) IsSavingInserted(rel *model.Relationship, partner *ManagedObject) bool {
	return o.savingInserted[linkKey{rel.Name(), partner}]
}

// EndSavingInserted commits the written link and clears the mark.
func (o *ManagedObject) EndSavingInserted(rel *model.Relationship, partner *ManagedObject) {
	delete(o.savingInserted, linkKey{rel.Name(), partner})
	name := rel.Name()
	if o.inserted[name].remove(partner) {
		o.committedSet(name).add(partner)
		if o.inserted[name].len() == 0 {
			delete(o.inserted, name)
		}
	}
}

// AbortSavingInserted clears the mark set by BeginSavingInserted and leaves
// the link pending.
func (o *ManagedObject) AbortSavingInserted(rel *model.Relationship, partner *ManagedObject) {
	delete(o.savingInserted, linkKey{rel.Name(), partner})
}

// BeginSavingRemoved marks the removed link to partner in rel as being
// deleted by the partner's save.
func (o *ManagedObject) BeginSavingRemoved(rel *model.Relationship, partner *ManagedObject) {
	o.savingRemoved[linkKey{rel.Name(), partner}] = true
}

// IsSavingRemoved reports whether the partner's save owns the removal.
func (o *ManagedObject) IsSavingRemoved(rel *model.Relationship, partner *ManagedObject) bool {
	return o.savingRemoved[linkKey{rel.Name(), partner}]
}

// EndSavingRemoved commits the deleted link and clears the mark.
func (o *ManagedObject) EndSavingRemoved(rel *model.Relationship, partner *ManagedObject) {
	delete(o.savingRemoved, linkKey{rel.Name(), partner})
	name := rel.Name()
	if o.removed[name].remove(partner) {
		o.relationships[name].remove(partner)
		if o.removed[name].len() == 0 {
			delete(o.removed, name)
		}
	}
}

// LoadFault installs committed values and relationships read by a store.
// Every relationship of the entity gets an entry, empty or not.
func (o *ManagedObject) LoadFault(values map[string]any, related map[string][]*ManagedObject) {
	for k, v := range values {
		o.data[k] = v
	}
	for _, rel := range o.entity.Relationships() {
		set := o.committedSet(rel.Name())
		for _, r := range related[rel.Name()] {
			set.add(r)
		}
	}
}

// AbortSavingRemoved clears the mark set by BeginSavingRemoved and leaves
// the removal pending.
func (o *ManagedObject) AbortSavingRemoved(rel *model.Relationship, partner *ManagedObject) {
	delete(o.savingRemoved, linkKey{rel.Name(), partner})
}

func (o *ManagedObject) pendingRelationships(buf map[string]*objectSet) []*model.Relationship {
	var out []*model.Relationship
	for _, rel := range o.entity.Relationships() {
		if buf[rel.Name()].len() > 0 {
			out = append(out, rel)
		}
	}
	return out
}
