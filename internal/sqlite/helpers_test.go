package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
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
      <relationship name="badges" type="Badge" to="many"/>
    </entity>
    <entity name="Pet">
      <property name="name"/>
      <relationship name="owner" type="Person" inverse="pets"/>
    </entity>
    <entity name="Badge"/>
  </model>
</models>`

type harness struct {
	dir    string
	model  *model.Model
	store  *Store
	coord  *larder.Coordinator
	ctx    *larder.Context
	person *model.EntityDescription
	pet    *model.EntityDescription
	badge  *model.EntityDescription
}

// openHarness opens a store in dir with a fresh coordinator and context.
func openHarness(t *testing.T, dir string, opts ...Option) *harness {
	t.Helper()
	return openHarnessWithModel(t, dir, testModelXML, opts...)
}

func openHarnessWithModel(t *testing.T, dir, doc string, opts ...Option) *harness {
	t.Helper()
	m, err := model.Parse([]byte(doc), model.FormatXML, "")
	require.NoError(t, err)

	store, err := NewStore(types.Config{Backend: types.BackendSQLite, DataDir: dir}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coord := larder.NewCoordinator(m)
	coord.AddStore(store)
	return &harness{
		dir:    dir,
		model:  m,
		store:  store,
		coord:  coord,
		ctx:    larder.NewContext(coord),
		person: m.EntityWithName("Person"),
		pet:    m.EntityWithName("Pet"),
		badge:  m.EntityWithName("Badge"),
	}
}

// countRows counts table rows through the raw handle so store statistics
// are left untouched.
func (h *harness) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, h.store.db.QueryRow("SELECT COUNT(*) FROM "+quote(table)).Scan(&n))
	return n
}

func (h *harness) newPerson(t *testing.T, name string) *larder.ManagedObject {
	t.Helper()
	o := h.ctx.NewObject(h.person)
	require.NoError(t, o.SetValue("name", name))
	return o
}

func (h *harness) save(t *testing.T) {
	t.Helper()
	saved, err := h.ctx.Save()
	require.NoError(t, err)
	require.True(t, saved)
}

type recordingDelegate struct {
	created []larder.PersistentStore
}

func (d *recordingDelegate) DidCreatePersistentStore(s larder.PersistentStore) {
	d.created = append(d.created, s)
}
