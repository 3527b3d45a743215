package larder

import (
	"fmt"

	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// RequestType distinguishes the persistent store requests.
type RequestType int

// Request types understood by a PersistentStore.
const (
	FetchRequestType RequestType = iota
	FaultRequestType
	SaveRequestType
)

// String returns the lower-case request name used in log fields.
func (t RequestType) String() string {
	switch t {
	case FetchRequestType:
		return "fetch"
	case FaultRequestType:
		return "fault"
	case SaveRequestType:
		return "save"
	default:
		return fmt.Sprintf("RequestType(%d)", int(t))
	}
}

// Request is an immutable unit of work for a persistent store.
type Request interface {
	RequestType() RequestType
	Context() *Context
}

// FetchRequest selects the objectIDs of an entity matching a predicate.
// The predicate is a raw SQL fragment; empty matches every row.
type FetchRequest struct {
	context   *Context
	entity    *model.EntityDescription
	predicate string
}

// NewFetchRequest builds a fetch for entity.
func NewFetchRequest(ctx *Context, entity *model.EntityDescription, predicate string) *FetchRequest {
	return &FetchRequest{context: ctx, entity: entity, predicate: predicate}
}

// RequestType returns FetchRequestType.
func (r *FetchRequest) RequestType() RequestType { return FetchRequestType }

// Context returns the context the fetched objects are registered in.
func (r *FetchRequest) Context() *Context { return r.context }

// Entity returns the entity whose table is queried.
func (r *FetchRequest) Entity() *model.EntityDescription { return r.entity }

// Predicate returns the SQL condition, or "" for every row.
func (r *FetchRequest) Predicate() string { return r.predicate }

// FaultRequest loads the committed state of fault objects. A store answers
// it with the objects it could not find.
type FaultRequest struct {
	context *Context
	faults  []*ManagedObject
}

// NewFaultRequest builds a fault request. Every object must be a fault.
func NewFaultRequest(ctx *Context, faults ...*ManagedObject) (*FaultRequest, error) {
	for _, f := range faults {
		if !f.IsFault() {
			return nil, types.NewPersistentStoreError("fault request "+f.String(), types.ErrNotFault)
		}
	}
	return &FaultRequest{context: ctx, faults: append([]*ManagedObject(nil), faults...)}, nil
}

// RequestType returns FaultRequestType.
func (r *FaultRequest) RequestType() RequestType { return FaultRequestType }

// Context returns the context that owns the faults.
func (r *FaultRequest) Context() *Context { return r.context }

// Faults returns the objects to load.
func (r *FaultRequest) Faults() []*ManagedObject { return append([]*ManagedObject(nil), r.faults...) }

// SaveRequest carries the objects to insert, update and delete. A store
// answers it with every object it inserted, updated or deleted.
type SaveRequest struct {
	context  *Context
	inserted []*ManagedObject
	updated  []*ManagedObject
	deleted  []*ManagedObject
}

// NewSaveRequest builds a save request.
func NewSaveRequest(ctx *Context, inserted, updated, deleted []*ManagedObject) *SaveRequest {
	return &SaveRequest{
		context:  ctx,
		inserted: append([]*ManagedObject(nil), inserted...),
		updated:  append([]*ManagedObject(nil), updated...),
		deleted:  append([]*ManagedObject(nil), deleted...),
	}
}

// RequestType returns SaveRequestType.
func (r *SaveRequest) RequestType() RequestType { return SaveRequestType }

// Context returns the context being saved.
func (r *SaveRequest) Context() *Context { return r.context }

// InsertedObjects returns the objects without an objectID, in context order.
func (r *SaveRequest) InsertedObjects() []*ManagedObject {
	return append([]*ManagedObject(nil), r.inserted...)
}

// UpdatedObjects returns the stored objects with pending changes.
func (r *SaveRequest) UpdatedObjects() []*ManagedObject {
	return append([]*ManagedObject(nil), r.updated...)
}

// DeletedObjects returns the objects whose rows are removed.
func (r *SaveRequest) DeletedObjects() []*ManagedObject {
	return append([]*ManagedObject(nil), r.deleted...)
}
