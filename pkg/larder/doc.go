// Package larder is the managed object graph: objects bound to an entity and
// a Context, lazily loaded from persistent stores through a Coordinator, with
// pending changes buffered until Context.Save.
//
// A typical unit of work:
//
//	coord := larder.NewCoordinator(m)
//	coord.AddStore(store)
//	ctx := larder.NewContext(coord)
//	ann := ctx.NewObject(m.EntityWithName("Person"))
//	_ = ann.SetValue("name", "Ann")
//	saved, err := ctx.Save()
//
// Objects fetched from a store start as faults holding only their objectID;
// the first attribute access loads the row and its relationships.
package larder
