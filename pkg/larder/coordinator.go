package larder

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Coordinator routes requests from a Context to its persistent stores and
// exposes the shared model.
type Coordinator struct {
	model     *model.Model
	stores    []PersistentStore
	context   *Context
	factories map[string]Factory
	logger    *zap.SugaredLogger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger used by the coordinator and its contexts.
func WithLogger(l *zap.SugaredLogger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFactory registers a factory for an entity class or name.
func WithFactory(classOrEntity string, f Factory) CoordinatorOption {
	return func(c *Coordinator) { c.factories[classOrEntity] = f }
}

// NewCoordinator creates a coordinator for m with no stores.
func NewCoordinator(m *model.Model, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		model:     m,
		factories: make(map[string]Factory),
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the shared model.
func (c *Coordinator) Model() *model.Model { return c.model }

// Context returns the context most recently bound to the coordinator.
func (c *Coordinator) Context() *Context { return c.context }

// Logger returns the coordinator's logger.
func (c *Coordinator) Logger() *zap.SugaredLogger { return c.logger }

// Stores returns the registered stores in registration order.
func (c *Coordinator) Stores() []PersistentStore {
	return append([]PersistentStore(nil), c.stores...)
}

// AddStore registers s and attaches it to the coordinator. Adding a store
// twice has no effect.
func (c *Coordinator) AddStore(s PersistentStore) {
	for _, existing := range c.stores {
		if existing == s {
			return
		}
	}
	c.stores = append(c.stores, s)
	s.SetCoordinator(c)
}

// RemoveStore unregisters s and detaches it.
func (c *Coordinator) RemoveStore(s PersistentStore) {
	for i, existing := range c.stores {
		if existing == s {
			c.stores = append(c.stores[:i], c.stores[i+1:]...)
			s.SetCoordinator(nil)
			return
		}
	}
}

// RegisterFactory registers a factory for an entity class or name.
func (c *Coordinator) RegisterFactory(classOrEntity string, f Factory) {
	c.factories[classOrEntity] = f
}

func (c *Coordinator) factoryFor(e *model.EntityDescription) Factory {
	if f, ok := c.factories[e.Class()]; ok {
		return f
	}
	return c.factories[e.Name()]
}

// ExecuteRequest sends a save to every store and returns the last store's
// result; fetch and fault requests go to the first store.
func (c *Coordinator) ExecuteRequest(req Request) ([]*ManagedObject, error) {
	if len(c.stores) == 0 {
		return nil, types.NewPersistentStoreError("route request", types.ErrNoPersistentStores)
	}
	if req == nil {
		return nil, types.NewPersistentStoreError("route request", types.ErrUnsupportedRequest)
	}
	switch req.RequestType() {
	case SaveRequestType:
		var result []*ManagedObject
		for _, s := range c.stores {
			objs, err := s.ExecuteRequest(req)
			if err != nil {
				return nil, err
			}
			result = objs
		}
		c.logger.Debugw("save routed", "stores", len(c.stores), "affected", len(result))
		return result, nil
	case FetchRequestType, FaultRequestType:
		c.logger.Debugw("request routed", "type", req.RequestType().String())
		return c.stores[0].ExecuteRequest(req)
	default:
		return nil, types.NewPersistentStoreError("route "+req.RequestType().String(), types.ErrUnsupportedRequest)
	}
}
