package larder

// Object is any value backed by a managed object. *ManagedObject is one;
// application types usually embed it.
type Object interface {
	Managed() *ManagedObject
}

// Factory wraps a newly created managed object in an application type.
type Factory func(base *ManagedObject) Object

// Creator is implemented by objects that want a callback once they are
// registered with their context.
type Creator interface {
	DidCreateObject()
}

// As returns the factory-built value of o as T.
func As[T Object](o *ManagedObject) (T, bool) {
	t, ok := o.self.(T)
	return t, ok
}
