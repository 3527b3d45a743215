package larder

// PersistentStore executes requests against a backing store.
//
// ExecuteRequest answers a FetchRequest with fault objects for the matching
// rows, a FaultRequest with the faults that could not be loaded, and a
// SaveRequest with every object it inserted, updated or deleted.
type PersistentStore interface {
	ExecuteRequest(req Request) ([]*ManagedObject, error)
	Coordinator() *Coordinator
	SetCoordinator(c *Coordinator)
}

// StoreDelegate is notified about store lifecycle events.
type StoreDelegate interface {
	// DidCreatePersistentStore is called after a store bootstraps its schema.
	DidCreatePersistentStore(store PersistentStore)
}
