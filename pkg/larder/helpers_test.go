package larder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/pkg/model"
)

const testModelXML = `<models current-version="1">
  <model version="1">
    <entity name="Person" plural="People">
      <property name="name" type="String"/>
      <property name="age" type="Integer" defaultValue="30"/>
      <property name="score" type="Float"/>
      <property name="active" type="Boolean"/>
      <property name="born" type="Date"/>
      <property name="photo" type="Binary"/>
      <relationship name="friends" type="Person" to="many" singular="friend" inverse="friends"/>
      <relationship name="pets" type="Pet" to="many" inverse="owner"/>
    </entity>
    <entity name="Pet">
      <property name="name"/>
      <relationship name="owner" type="Person" inverse="pets"/>
    </entity>
  </model>
</models>`

// fakeStore answers requests from in-memory rows keyed by entity name and
// objectID, and records every request it receives.
type fakeStore struct {
	coordinator *Coordinator
	requests    []Request
	rows        map[string]map[int64]map[string]any
	links       map[string]map[int64]map[string][]int64
	nextID      int64
	saveErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:   make(map[string]map[int64]map[string]any),
		links:  make(map[string]map[int64]map[string][]int64),
		nextID: 1,
	}
}

func (s *fakeStore) Coordinator() *Coordinator     { return s.coordinator }
func (s *fakeStore) SetCoordinator(c *Coordinator) { s.coordinator = c }

func (s *fakeStore) put(entity string, id int64, values map[string]any) {
	if s.rows[entity] == nil {
		s.rows[entity] = make(map[int64]map[string]any)
	}
	s.rows[entity][id] = values
}

func (s *fakeStore) count(t RequestType) int {
	n := 0
	for _, r := range s.requests {
		if r.RequestType() == t {
			n++
		}
	}
	return n
}

func (s *fakeStore) lastSave() *SaveRequest {
	for i := len(s.requests) - 1; i >= 0; i-- {
		if sr, ok := s.requests[i].(*SaveRequest); ok {
			return sr
		}
	}
	return nil
}

func (s *fakeStore) ExecuteRequest(req Request) ([]*ManagedObject, error) {
	s.requests = append(s.requests, req)
	switch r := req.(type) {
	case *SaveRequest:
		if s.saveErr != nil {
			return nil, s.saveErr
		}
		var out []*ManagedObject
		for _, o := range r.InsertedObjects() {
			o.SetObjectID(s.nextID)
			s.nextID++
			out = append(out, o)
		}
		out = append(out, r.UpdatedObjects()...)
		out = append(out, r.DeletedObjects()...)
		return out, nil
	case *FaultRequest:
		var failed []*ManagedObject
		for _, f := range r.Faults() {
			values, ok := s.rows[f.Entity().Name()][f.ObjectID()]
			if !ok {
				failed = append(failed, f)
				continue
			}
			related := make(map[string][]*ManagedObject)
			for relName, ids := range s.links[f.Entity().Name()][f.ObjectID()] {
				rel := f.Entity().Relationship(relName)
				for _, id := range ids {
					related[relName] = append(related[relName], r.Context().NewObjectWithID(rel.Destination(), id))
				}
			}
			f.LoadFault(values, related)
		}
		return failed, nil
	case *FetchRequest:
		var out []*ManagedObject
		for id := int64(1); id < 100; id++ {
			if _, ok := s.rows[r.Entity().Name()][id]; ok {
				out = append(out, r.Context().NewObjectWithID(r.Entity(), id))
			}
		}
		return out, nil
	}
	return nil, nil
}

type fixture struct {
	model  *model.Model
	store  *fakeStore
	coord  *Coordinator
	ctx    *Context
	person *model.EntityDescription
	pet    *model.EntityDescription
}

func setupFixture(t *testing.T, opts ...CoordinatorOption) *fixture {
	t.Helper()
	m, err := model.Parse([]byte(testModelXML), model.FormatXML, "")
	require.NoError(t, err)
	store := newFakeStore()
	coord := NewCoordinator(m, opts...)
	coord.AddStore(store)
	return &fixture{
		model:  m,
		store:  store,
		coord:  coord,
		ctx:    NewContext(coord),
		person: m.EntityWithName("Person"),
		pet:    m.EntityWithName("Pet"),
	}
}
