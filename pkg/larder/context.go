package larder

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Context is a unit of work: it owns the live and deleted objects created or
// fetched through it and saves their changes through its coordinator.
// A Context is not safe for concurrent use.
type Context struct {
	id          string
	coordinator *Coordinator
	objects     []*ManagedObject
	live        map[*ManagedObject]struct{}
	deleted     []*ManagedObject
}

// NewContext creates a context bound to c.
func NewContext(c *Coordinator) *Context {
	ctx := &Context{
		id:          newContextID(),
		coordinator: c,
		live:        make(map[*ManagedObject]struct{}),
	}
	c.context = ctx
	return ctx
}

func newContextID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ID identifies the context in logs.
func (c *Context) ID() string { return c.id }

// Coordinator returns the coordinator the context saves through.
func (c *Context) Coordinator() *Coordinator { return c.coordinator }

// Model returns the coordinator's model.
func (c *Context) Model() *model.Model { return c.coordinator.model }

// Objects returns the live objects in creation order.
func (c *Context) Objects() []*ManagedObject {
	return append([]*ManagedObject(nil), c.objects...)
}

// DeletedObjects returns objects deleted since the last save.
func (c *Context) DeletedObjects() []*ManagedObject {
	return append([]*ManagedObject(nil), c.deleted...)
}

// NewObject creates and registers a new object of entity. Property defaults
// become pending values.
func (c *Context) NewObject(entity *model.EntityDescription) *ManagedObject {
	return c.NewObjectWithID(entity, UnknownID)
}

// NewObjectWithID creates and registers an object of entity. A known id
// yields a fault for that row.
func (c *Context) NewObjectWithID(entity *model.EntityDescription, id int64) *ManagedObject {
	o := newManagedObject(entity, c, id)
	o.self = o
	if f := c.coordinator.factoryFor(entity); f != nil {
		if obj := f(o); obj != nil {
			o.self = obj
		}
	}
	if id == UnknownID {
		for _, p := range entity.Properties() {
			if v := p.DefaultValue(); v != nil {
				o.updated[p.Name()] = v
			}
		}
	}
	c.insert(o)
	if cr, ok := o.self.(Creator); ok {
		cr.DidCreateObject()
	}
	return o
}

// NewObjectNamed creates an object of the entity with the given name or plural.
func (c *Context) NewObjectNamed(name string) (*ManagedObject, error) {
	entity := c.Model().EntityWithName(name)
	if entity == nil {
		return nil, &types.EntityNotFoundError{Name: name}
	}
	return c.NewObject(entity), nil
}

func (c *Context) insert(o *ManagedObject) {
	if _, ok := c.live[o]; ok {
		return
	}
	c.live[o] = struct{}{}
	c.objects = append(c.objects, o)
}

// Delete moves obj to the deleted set. The row is removed on the next save.
// Returns an InvalidOperationError for a nil object or one owned by another
// context.
func (c *Context) Delete(obj Object) error {
	if obj == nil || obj.Managed() == nil {
		return &types.InvalidOperationError{Msg: "delete of nil object"}
	}
	o := obj.Managed()
	if o.context != c {
		return &types.InvalidOperationError{Entity: o.entity.Name(), Msg: "object belongs to another context"}
	}
	if _, ok := c.live[o]; ok {
		delete(c.live, o)
		for i, it := range c.objects {
			if it == o {
				c.objects = append(c.objects[:i], c.objects[i+1:]...)
				break
			}
		}
	}
	for _, d := range c.deleted {
		if d == o {
			return nil
		}
	}
	c.deleted = append(c.deleted, o)
	return nil
}

// HasChanges reports whether the dirty set is non-empty.
func (c *Context) HasChanges() bool {
	if len(c.deleted) > 0 {
		return true
	}
	for _, o := range c.objects {
		if o.HasChanges() {
			return true
		}
	}
	return false
}

// Save writes inserted, updated and deleted objects through the coordinator.
// It returns false without touching any store when nothing changed.
func (c *Context) Save() (bool, error) {
	if !c.HasChanges() {
		return false, nil
	}
	var inserted, updated []*ManagedObject
	for _, o := range c.objects {
		if !o.HasChanges() {
			continue
		}
		if o.objectID == UnknownID {
			inserted = append(inserted, o)
		} else {
			updated = append(updated, o)
		}
	}
	req := NewSaveRequest(c, inserted, updated, c.deleted)
	affected, err := c.coordinator.ExecuteRequest(req)
	if err != nil {
		return false, fmt.Errorf("save context %s: %w", c.id, err)
	}
	for _, o := range affected {
		if c.dropDeleted(o) {
			continue
		}
		o.PersistChanges()
	}
	c.coordinator.logger.Debugw("context saved", "context", c.id,
		"inserted", len(inserted), "updated", len(updated), "affected", len(affected))
	return true, nil
}

func (c *Context) dropDeleted(o *ManagedObject) bool {
	for i, d := range c.deleted {
		if d == o {
			c.deleted = append(c.deleted[:i], c.deleted[i+1:]...)
			return true
		}
	}
	return false
}

// ExecuteFetchRequest runs req and returns fault objects for the matches.
func (c *Context) ExecuteFetchRequest(req *FetchRequest) ([]*ManagedObject, error) {
	return c.coordinator.ExecuteRequest(req)
}

// Fetch returns fault objects of entity matching predicate, a raw SQL
// condition. An empty predicate matches every row.
func (c *Context) Fetch(entity *model.EntityDescription, predicate string) ([]*ManagedObject, error) {
	return c.ExecuteFetchRequest(NewFetchRequest(c, entity, predicate))
}

// ObjectWithObjectID returns the object of entity with id, or nil.
func (c *Context) ObjectWithObjectID(entity *model.EntityDescription, id int64) (*ManagedObject, error) {
	return c.fetchLast(entity, fmt.Sprintf("%s = %d", quoteIdentifier(model.ObjectIDColumn), id))
}

// ObjectWith returns the last object whose property equals value, or nil.
// A nil value matches NULL.
func (c *Context) ObjectWith(prop *model.Property, value any) (*ManagedObject, error) {
	if prop == nil {
		return nil, &types.ManagedObjectError{Msg: "nil property"}
	}
	if value == nil {
		return c.fetchLast(prop.Entity(), quoteIdentifier(prop.Name())+" IS NULL")
	}
	lit, err := literal(prop, value)
	if err != nil {
		return nil, err
	}
	return c.fetchLast(prop.Entity(), quoteIdentifier(prop.Name())+" = "+lit)
}

// ObjectWithAttributePath resolves "Entity.property" and calls ObjectWith.
func (c *Context) ObjectWithAttributePath(path string, value any) (*ManagedObject, error) {
	prop, ok := c.Model().AttributeWithPath(path).(*model.Property)
	if !ok {
		return nil, &types.ManagedObjectError{Attribute: path, Msg: "path does not name a property"}
	}
	return c.ObjectWith(prop, value)
}

func (c *Context) fetchLast(entity *model.EntityDescription, predicate string) (*ManagedObject, error) {
	objs, err := c.Fetch(entity, predicate)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return objs[len(objs)-1], nil
}

// literal renders value as an SQL literal for prop's column.
func literal(prop *model.Property, value any) (string, error) {
	v, err := model.Coerce(prop.Type(), value)
	if err != nil {
		return "", &types.InvalidDataTypeError{Attribute: prop.Name(), Type: prop.Type(), Value: value, Err: err}
	}
	switch x := v.(type) {
	case string:
		return "'" + escapeStringValue(x) + "'", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return strconv.FormatInt(x.Unix(), 10), nil
	case []byte:
		return "X'" + hex.EncodeToString(x) + "'", nil
	default:
		return "'" + escapeStringValue(cast.ToString(x)) + "'", nil
	}
}

// escapeStringValue doubles single quotes for a standard SQL string literal.
func escapeStringValue(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}
	return strings.ReplaceAll(s, "'", "''")
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
